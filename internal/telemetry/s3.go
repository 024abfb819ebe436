package telemetry

import (
	"context"
	"path"
	"sync"
)

// ObjectStore is the part of the S3 client the sink uses.
type ObjectStore interface {
	EnsureBucket(ctx context.Context, bucket string) error
	PutObject(ctx context.Context, bucket, key, contentType string, data []byte) error
}

// S3Sink uploads the report as <prefix>/<run id>.json.
type S3Sink struct {
	Store  ObjectStore
	Bucket string
	Prefix string

	once      sync.Once
	bucketErr error
}

// Name implements Sink.
func (s *S3Sink) Name() string { return "s3://" + path.Join(s.Bucket, s.Prefix) }

// Key returns the object key for a report.
func (s *S3Sink) Key(r *Report) string {
	return path.Join(s.Prefix, r.RunID+".json")
}

// Write implements Sink. The bucket is created on first use.
func (s *S3Sink) Write(ctx context.Context, r *Report) error {
	s.once.Do(func() {
		s.bucketErr = s.Store.EnsureBucket(ctx, s.Bucket)
	})
	if s.bucketErr != nil {
		return s.bucketErr
	}
	data, err := Encode(r, FormatJSON)
	if err != nil {
		return err
	}
	return s.Store.PutObject(ctx, s.Bucket, s.Key(r), "application/json", data)
}
