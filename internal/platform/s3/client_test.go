package s3

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// testClient creates a Client backed by a test HTTP server.
// The handler receives real S3 XML-protocol requests.
func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := s3.New(s3.Options{
		Region:       "eu-central-1",
		BaseEndpoint: aws.String(server.URL),
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider("test-key", "test-secret", ""),
		HTTPClient: &http.Client{
			Transport: &http.Transport{},
		},
	})

	return &Client{s3: client, region: "eu-central-1"}
}

// xmlResponse is a helper to write S3-style XML responses.
func xmlResponse(w http.ResponseWriter, statusCode int, body string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(statusCode)
	_, _ = w.Write([]byte(body))
}

func s3Error(code string) string {
	return `<?xml version="1.0" encoding="UTF-8"?><Error><Code>` + code + `</Code><Message>` + code + `</Message></Error>`
}

func TestNewClient(t *testing.T) {
	client, err := NewClient(context.Background(), Options{
		Endpoint:  "https://fsn1.your-objectstorage.com",
		Region:    "fsn1",
		AccessKey: "access",
		SecretKey: "secret",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.region != "fsn1" {
		t.Errorf("expected region fsn1, got %s", client.region)
	}
}

func TestEnsureBucket_CreatesMissingBucket(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var methods []string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		methods = append(methods, r.Method)
		mu.Unlock()
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			xmlResponse(w, http.StatusOK, `<?xml version="1.0" encoding="UTF-8"?><CreateBucketResult/>`)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))

	if err := client.EnsureBucket(context.Background(), "reports"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if strings.Join(methods, ",") != "HEAD,PUT" {
		t.Errorf("expected HEAD then PUT, got %v", methods)
	}
}

func TestEnsureBucket_ExistingBucket(t *testing.T) {
	t.Parallel()

	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		t.Errorf("unexpected %s request", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))

	if err := client.EnsureBucket(context.Background(), "reports"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateBucket_AlreadyOwnedByYou(t *testing.T) {
	t.Parallel()

	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		xmlResponse(w, http.StatusConflict, s3Error("BucketAlreadyOwnedByYou"))
	}))

	if err := client.CreateBucket(context.Background(), "reports"); err != nil {
		t.Fatalf("expected nil error for already owned bucket, got: %v", err)
	}
}

func TestCreateBucket_Error(t *testing.T) {
	t.Parallel()

	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		xmlResponse(w, http.StatusForbidden, s3Error("AccessDenied"))
	}))

	err := client.CreateBucket(context.Background(), "reports")
	if err == nil {
		t.Fatal("expected error but got nil")
	}
	if !strings.Contains(err.Error(), "failed to create bucket reports") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestPutObject(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var body, contentType, path string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		contentType = r.Header.Get("Content-Type")
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))

	err := client.PutObject(context.Background(), "reports", "runs/abc.json", "application/json", []byte(`{"runId":"abc"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if body != `{"runId":"abc"}` {
		t.Errorf("unexpected body %q", body)
	}
	if contentType != "application/json" {
		t.Errorf("unexpected content type %q", contentType)
	}
	if path != "/reports/runs/abc.json" {
		t.Errorf("unexpected path %q", path)
	}
}

func TestPutObject_Error(t *testing.T) {
	t.Parallel()

	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		xmlResponse(w, http.StatusBadRequest, s3Error("InvalidRequest"))
	}))

	err := client.PutObject(context.Background(), "reports", "key", "", []byte("data"))
	if err == nil {
		t.Fatal("expected error but got nil")
	}
	if !strings.Contains(err.Error(), "failed to put object key in bucket reports") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		alreadyOwned bool
		notFound     bool
	}{
		{"nil error", nil, false, false},
		{"generic error", errors.New("boom"), false, false},
		{"typed already owned", &s3types.BucketAlreadyOwnedByYou{}, true, false},
		{"typed no such bucket", &s3types.NoSuchBucket{}, false, true},
		{"typed not found", &s3types.NotFound{}, false, true},
		{"api code already owned", &smithy.GenericAPIError{Code: "BucketAlreadyOwnedByYou"}, true, false},
		{"api code 404", &smithy.GenericAPIError{Code: "404"}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isBucketAlreadyOwnedByYou(tt.err); got != tt.alreadyOwned {
				t.Errorf("isBucketAlreadyOwnedByYou() = %v, want %v", got, tt.alreadyOwned)
			}
			if got := isNotFoundError(tt.err); got != tt.notFound {
				t.Errorf("isNotFoundError() = %v, want %v", got, tt.notFound)
			}
		})
	}
}
