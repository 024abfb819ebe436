package ssh

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/imamik/nodechaos/internal/util/keygen"
)

// generateTestKey generates a test RSA key pair for use in tests.
func generateTestKey(t *testing.T) *keygen.KeyPair {
	t.Helper()
	keyPair, err := keygen.GenerateRSAKeyPair(2048)
	require.NoError(t, err)
	return keyPair
}

type staticResolver map[string]string

func (r staticResolver) NodeAddress(_ context.Context, node string) (string, error) {
	addr, ok := r[node]
	if !ok {
		return "", fmt.Errorf("node %s not found", node)
	}
	return addr, nil
}

// testServer is a minimal SSH server that answers exec requests. The
// command "fail" exits with status 1; every other command echoes itself.
type testServer struct {
	addr     string
	mu       sync.Mutex
	commands []string
}

func startTestServer(t *testing.T, clientKey *keygen.KeyPair) *testServer {
	t.Helper()

	hostKey, err := keygen.GenerateEd25519KeyPair()
	require.NoError(t, err)
	hostSigner, err := ssh.ParsePrivateKey(hostKey.PrivateKey)
	require.NoError(t, err)
	authorized, _, _, _, err := ssh.ParseAuthorizedKey(clientKey.PublicKey)
	require.NoError(t, err)

	cfg := &ssh.ServerConfig{
		PublicKeyCallback: func(_ ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if string(key.Marshal()) == string(authorized.Marshal()) {
				return &ssh.Permissions{}, nil
			}
			return nil, errors.New("unauthorized")
		},
	}
	cfg.AddHostKey(hostSigner)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	srv := &testServer{addr: ln.Addr().String()}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go srv.serve(conn, cfg)
		}
	}()
	return srv
}

func (s *testServer) serve(conn net.Conn, cfg *ssh.ServerConfig) {
	_, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		return
	}
	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			_ = newCh.Reject(ssh.UnknownChannelType, "only sessions")
			continue
		}
		ch, requests, err := newCh.Accept()
		if err != nil {
			return
		}
		go func() {
			defer ch.Close()
			for req := range requests {
				if req.Type != "exec" {
					_ = req.Reply(false, nil)
					continue
				}
				var payload struct{ Command string }
				_ = ssh.Unmarshal(req.Payload, &payload)
				_ = req.Reply(true, nil)

				s.mu.Lock()
				s.commands = append(s.commands, payload.Command)
				s.mu.Unlock()

				status := uint32(0)
				if payload.Command == "fail" {
					status = 1
					_, _ = ch.Stderr().Write([]byte("boom\n"))
				} else {
					_, _ = ch.Write([]byte("ran: " + payload.Command))
				}
				_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{status}))
				return
			}
		}()
	}
}

func (s *testServer) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func TestNewRunner_Validation(t *testing.T) {
	keyPair := generateTestKey(t)
	resolver := staticResolver{}

	tests := []struct {
		name     string
		cfg      *Config
		resolver AddressResolver
		want     string
	}{
		{name: "nil config", cfg: nil, resolver: resolver, want: "config cannot be nil"},
		{name: "nil resolver", cfg: &Config{User: "root", PrivateKey: keyPair.PrivateKey}, want: "address resolver cannot be nil"},
		{name: "empty user", cfg: &Config{PrivateKey: keyPair.PrivateKey}, resolver: resolver, want: "config user cannot be empty"},
		{name: "empty key", cfg: &Config{User: "root"}, resolver: resolver, want: "config private key cannot be empty"},
		{name: "invalid key", cfg: &Config{User: "root", PrivateKey: []byte("invalid key")}, resolver: resolver, want: "failed to parse private key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRunner(tt.cfg, tt.resolver)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewRunner_AppliesDefaults(t *testing.T) {
	keyPair := generateTestKey(t)
	cfg := &Config{User: "root", PrivateKey: keyPair.PrivateKey}

	r, err := NewRunner(cfg, staticResolver{})
	require.NoError(t, err)

	assert.Equal(t, defaultPort, r.config.Port)
	assert.Equal(t, defaultDialTimeout, r.config.DialTimeout)
	assert.Equal(t, defaultMaxRetries, r.config.MaxRetries)
	assert.Equal(t, defaultRetryDelay, r.config.RetryDelay)
	assert.NotNil(t, r.config.HostKeyCallback)
	assert.Zero(t, cfg.Port, "caller config is not mutated")
}

func TestRunner_Run(t *testing.T) {
	keyPair := generateTestKey(t)
	srv := startTestServer(t, keyPair)

	r, err := NewRunner(&Config{User: "root", PrivateKey: keyPair.PrivateKey, MaxRetries: 1}, staticResolver{"worker-1": srv.addr})
	require.NoError(t, err)

	out, err := r.Run(context.Background(), "worker-1", "systemctl stop kubelet")
	require.NoError(t, err)
	assert.Equal(t, "ran: systemctl stop kubelet", out)
	assert.Equal(t, []string{"systemctl stop kubelet"}, srv.Commands())
}

func TestRunner_CommandFailure(t *testing.T) {
	keyPair := generateTestKey(t)
	srv := startTestServer(t, keyPair)

	r, err := NewRunner(&Config{User: "root", PrivateKey: keyPair.PrivateKey, MaxRetries: 1}, staticResolver{"worker-1": srv.addr})
	require.NoError(t, err)

	out, err := r.Run(context.Background(), "worker-1", "fail")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command failed")
	assert.Contains(t, out, "boom")
}

func TestRunner_ViaHelperHost(t *testing.T) {
	keyPair := generateTestKey(t)
	helper := startTestServer(t, keyPair)

	r, err := NewRunner(&Config{
		User:       "root",
		PrivateKey: keyPair.PrivateKey,
		HelperHost: helper.addr,
		MaxRetries: 1,
		RetryDelay: 10 * time.Millisecond,
	}, staticResolver{"worker-1": "10.0.0.5:22"})
	require.NoError(t, err)

	// The minimal test server refuses direct-tcpip channels, so the hop
	// fails after reaching the helper.
	_, err = r.Run(context.Background(), "worker-1", "true")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "via helper")
}

func TestRunner_ResolveError(t *testing.T) {
	keyPair := generateTestKey(t)
	r, err := NewRunner(&Config{User: "root", PrivateKey: keyPair.PrivateKey}, staticResolver{})
	require.NoError(t, err)

	_, err = r.Run(context.Background(), "ghost", "true")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to resolve address of node ghost")
}

func TestRunner_ContextCancellation(t *testing.T) {
	keyPair := generateTestKey(t)
	r, err := NewRunner(&Config{
		User:       "root",
		PrivateKey: keyPair.PrivateKey,
		MaxRetries:  5,
		DialTimeout: 100 * time.Millisecond,
	}, staticResolver{"worker-1": "192.0.2.1:22"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = r.Run(ctx, "worker-1", "true")
	require.Error(t, err)
}

func TestLoadPrivateKey(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".ssh"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".ssh", "id_rsa"), []byte("key"), 0o600))

	data, err := LoadPrivateKey("~/.ssh/id_rsa")
	require.NoError(t, err)
	assert.Equal(t, "key", string(data))

	_, err = LoadPrivateKey(filepath.Join(home, "missing"))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "failed to read private key"))
}
