package hcloud

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/nodechaos/internal/chaos"
	"github.com/imamik/nodechaos/internal/config"
	"github.com/imamik/nodechaos/internal/util/retry"
)

// Backend implements chaos.CloudBackend and chaos.VolumeManager using the
// Hetzner Cloud API.
type Backend struct {
	client   *hcloud.Client
	timeouts *config.Timeouts
}

var (
	_ chaos.CloudBackend  = (*Backend)(nil)
	_ chaos.VolumeManager = (*Backend)(nil)
)

// Option configures a Backend.
type Option func(*Backend)

// WithTimeouts sets custom timeouts for the backend.
func WithTimeouts(t *config.Timeouts) Option {
	return func(b *Backend) {
		b.timeouts = t
	}
}

// WithHCloudClient sets a custom hcloud client (useful for testing).
func WithHCloudClient(hc *hcloud.Client) Option {
	return func(b *Backend) {
		b.client = hc
	}
}

// NewBackend creates a Backend authenticated with token.
func NewBackend(token string, opts ...Option) *Backend {
	b := &Backend{
		client:   hcloud.NewClient(hcloud.WithToken(token), hcloud.WithApplication("nodechaos", "")),
		timeouts: config.LoadTimeouts(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Capabilities reports every action. The hcloud client is safe for
// concurrent use.
func (b *Backend) Capabilities() chaos.Capabilities {
	return chaos.Capabilities{
		Actions:    chaos.NewActionSet(chaos.CloudActions, chaos.RemoteActions),
		Concurrent: true,
	}
}

// serverAction is the shape shared by the hcloud power operations.
type serverAction func(ctx context.Context, server *hcloud.Server) (*hcloud.Action, *hcloud.Response, error)

// runAction issues an action and waits for it to finish, retrying locked
// resources and rate limiting.
func (b *Backend) runAction(ctx context.Context, op string, call func(ctx context.Context) (*hcloud.Action, error)) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeouts.API)
	defer cancel()

	return retry.WithExponentialBackoff(ctx, func() error {
		action, err := call(ctx)
		if err != nil {
			if isRetryable(err) {
				return err
			}
			return retry.Fatal(fmt.Errorf("failed to %s: %w", op, err))
		}
		if action == nil {
			return nil
		}
		if err := b.client.Action.WaitFor(ctx, action); err != nil {
			return retry.Fatal(fmt.Errorf("%s action failed: %w", op, err))
		}
		return nil
	},
		retry.WithMaxRetries(b.timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(b.timeouts.RetryInitialDelay))
}

// parseID converts an instance ID back to a server ID.
func parseID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid hetzner server id %q", id)
	}
	return n, nil
}
