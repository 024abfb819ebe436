package ssh

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/imamik/nodechaos/internal/util/retry"
)

const (
	defaultPort        = 22
	defaultDialTimeout = 10 * time.Second
	defaultMaxRetries  = 3
	defaultRetryDelay  = 2 * time.Second
	defaultMaxDelay    = 10 * time.Second
)

// AddressResolver maps a node name to a reachable address.
type AddressResolver interface {
	NodeAddress(ctx context.Context, nodeName string) (string, error)
}

// Config holds SSH runner configuration.
type Config struct {
	Port       int
	User       string
	PrivateKey []byte

	// HelperHost, when set, is used as a jump host for every connection.
	HelperHost string

	// DialTimeout is the timeout for establishing the TCP connection.
	// If zero, defaultDialTimeout is used.
	DialTimeout time.Duration

	// MaxRetries is the maximum number of connection retry attempts.
	// If zero, defaultMaxRetries is used.
	MaxRetries int

	// RetryDelay is the initial delay between retry attempts.
	// If zero, defaultRetryDelay is used.
	RetryDelay time.Duration

	// HostKeyCallback handles host key verification.
	// If nil, ssh.InsecureIgnoreHostKey() is used; chaos targets are
	// routinely reinstalled and their host keys change.
	HostKeyCallback ssh.HostKeyCallback
}

// Runner executes commands on cluster nodes via SSH.
// It parses the private key once during construction and
// creates connections on-demand per Run call.
type Runner struct {
	config   *Config
	signer   ssh.Signer
	resolver AddressResolver
}

// NewRunner creates a runner and validates the private key.
func NewRunner(cfg *Config, resolver AddressResolver) (*Runner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if resolver == nil {
		return nil, fmt.Errorf("address resolver cannot be nil")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("config user cannot be empty")
	}
	if len(cfg.PrivateKey) == 0 {
		return nil, fmt.Errorf("config private key cannot be empty")
	}

	// Copy config to avoid mutating caller's struct
	configCopy := *cfg

	if configCopy.Port == 0 {
		configCopy.Port = defaultPort
	}
	if configCopy.DialTimeout == 0 {
		configCopy.DialTimeout = defaultDialTimeout
	}
	if configCopy.MaxRetries == 0 {
		configCopy.MaxRetries = defaultMaxRetries
	}
	if configCopy.RetryDelay == 0 {
		configCopy.RetryDelay = defaultRetryDelay
	}
	if configCopy.HostKeyCallback == nil {
		configCopy.HostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // chaos targets are rebuilt often
	}

	signer, err := ssh.ParsePrivateKey(configCopy.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return &Runner{
		config:   &configCopy,
		signer:   signer,
		resolver: resolver,
	}, nil
}

// LoadPrivateKey reads a private key file, expanding a leading "~/".
func LoadPrivateKey(path string) ([]byte, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}
	return data, nil
}

// Run resolves the node's address and runs command on it.
// Returns command output (stdout+stderr) and any execution error.
func (r *Runner) Run(ctx context.Context, nodeName, command string) (string, error) {
	host, err := r.resolver.NodeAddress(ctx, nodeName)
	if err != nil {
		return "", fmt.Errorf("failed to resolve address of node %s: %w", nodeName, err)
	}

	client, closeAll, err := r.connect(ctx, host)
	if err != nil {
		return "", err
	}
	defer closeAll()

	return r.runCommand(ctx, client, host, command)
}

func (r *Runner) clientConfig() *ssh.ClientConfig {
	return &ssh.ClientConfig{
		User: r.config.User,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(r.signer),
		},
		HostKeyCallback: r.config.HostKeyCallback,
		Timeout:         r.config.DialTimeout,
	}
}

func (r *Runner) addr(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, strconv.Itoa(r.config.Port))
}

// connect establishes the SSH connection with retry logic, through the
// helper host when one is configured.
func (r *Runner) connect(ctx context.Context, host string) (*ssh.Client, func(), error) {
	target := r.addr(host)
	config := r.clientConfig()

	var client *ssh.Client
	var jump *ssh.Client

	err := retry.WithExponentialBackoff(ctx, func() error {
		if r.config.HelperHost == "" {
			var dialErr error
			client, dialErr = ssh.Dial("tcp", target, config)
			return dialErr
		}

		helper, err := ssh.Dial("tcp", r.addr(r.config.HelperHost), config)
		if err != nil {
			return fmt.Errorf("helper host: %w", err)
		}
		conn, err := helper.Dial("tcp", target)
		if err != nil {
			_ = helper.Close()
			return fmt.Errorf("dial %s via helper: %w", target, err)
		}
		c, chans, reqs, err := ssh.NewClientConn(conn, target, config)
		if err != nil {
			_ = conn.Close()
			_ = helper.Close()
			return err
		}
		client = ssh.NewClient(c, chans, reqs)
		jump = helper
		return nil
	},
		retry.WithMaxRetries(r.config.MaxRetries),
		retry.WithInitialDelay(r.config.RetryDelay),
		retry.WithMaxDelay(defaultMaxDelay),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to establish SSH connection to %s after %d retry attempts: %w",
			target, r.config.MaxRetries, err)
	}

	closeAll := func() {
		_ = client.Close()
		if jump != nil {
			_ = jump.Close()
		}
	}
	return client, closeAll, nil
}

// runCommand executes a command on an established connection. Cancelling
// ctx closes the session.
func (r *Runner) runCommand(ctx context.Context, client *ssh.Client, host, command string) (string, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to create SSH session on %s: %w", host, err)
	}
	defer func() { _ = session.Close() }()

	type result struct {
		output []byte
		err    error
	}
	done := make(chan result, 1)
	go func() {
		out, err := session.CombinedOutput(command)
		done <- result{output: out, err: err}
	}()

	select {
	case <-ctx.Done():
		_ = session.Close()
		return "", fmt.Errorf("command on %s cancelled: %w", host, ctx.Err())
	case res := <-done:
		if res.err != nil {
			return string(res.output), fmt.Errorf("command failed on %s: %w\nCommand: %s\nOutput: %s",
				host, res.err, command, string(res.output))
		}
		return string(res.output), nil
	}
}
