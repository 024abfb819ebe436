package hcloud

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/nodechaos/internal/chaos"
)

// ResolveInstanceID returns the ID of the server named like the node.
func (b *Backend) ResolveInstanceID(ctx context.Context, nodeName string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeouts.API)
	defer cancel()

	server, _, err := b.client.Server.GetByName(ctx, nodeName)
	if err != nil {
		return "", fmt.Errorf("failed to get server %s: %w", nodeName, err)
	}
	if server == nil {
		return "", &chaos.NotFoundError{NodeName: nodeName}
	}
	return strconv.FormatInt(server.ID, 10), nil
}

// Start powers the server on.
func (b *Backend) Start(ctx context.Context, id string) error {
	return b.power(ctx, "power on server "+id, id, b.client.Server.Poweron)
}

// Stop cuts power to the server.
func (b *Backend) Stop(ctx context.Context, id string) error {
	return b.power(ctx, "power off server "+id, id, b.client.Server.Poweroff)
}

// Reboot sends an ACPI reboot when soft is set and resets the server otherwise.
func (b *Backend) Reboot(ctx context.Context, id string, soft bool) error {
	if soft {
		return b.power(ctx, "reboot server "+id, id, b.client.Server.Reboot)
	}
	return b.power(ctx, "reset server "+id, id, b.client.Server.Reset)
}

// Terminate deletes the server.
func (b *Backend) Terminate(ctx context.Context, id string) error {
	serverID, err := parseID(id)
	if err != nil {
		return err
	}
	server := &hcloud.Server{ID: serverID}
	return b.runAction(ctx, "delete server "+id, func(ctx context.Context) (*hcloud.Action, error) {
		result, _, err := b.client.Server.DeleteWithResult(ctx, server)
		if err != nil {
			return nil, err
		}
		return result.Action, nil
	})
}

// Status maps the server status onto a provider state. A server that no
// longer exists is terminated.
func (b *Backend) Status(ctx context.Context, id string) (chaos.ProviderState, error) {
	serverID, err := parseID(id)
	if err != nil {
		return chaos.StateUnknown, err
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeouts.API)
	defer cancel()

	server, _, err := b.client.Server.GetByID(ctx, serverID)
	if err != nil {
		if IsNotFound(err) {
			return chaos.StateTerminated, nil
		}
		return chaos.StateUnknown, fmt.Errorf("failed to get server %s: %w", id, err)
	}
	if server == nil {
		return chaos.StateTerminated, nil
	}
	return providerState(server.Status), nil
}

func (b *Backend) power(ctx context.Context, op, id string, call serverAction) error {
	serverID, err := parseID(id)
	if err != nil {
		return err
	}
	server := &hcloud.Server{ID: serverID}
	return b.runAction(ctx, op, func(ctx context.Context) (*hcloud.Action, error) {
		action, _, err := call(ctx, server)
		return action, err
	})
}

func providerState(status hcloud.ServerStatus) chaos.ProviderState {
	switch status {
	case hcloud.ServerStatusRunning:
		return chaos.StateRunning
	case hcloud.ServerStatusOff:
		return chaos.StateStopped
	case hcloud.ServerStatusInitializing, hcloud.ServerStatusStarting:
		return chaos.StatePending
	case hcloud.ServerStatusStopping, hcloud.ServerStatusDeleting:
		return chaos.StateStopping
	default:
		return chaos.StateUnknown
	}
}
