// Package generic is the backend for nodes without a cloud API, such as bare
// metal or unmanaged VMs. It supports only the actions carried out over SSH.
package generic

import (
	"context"
	"fmt"

	"github.com/imamik/nodechaos/internal/chaos"
	"github.com/imamik/nodechaos/internal/config"
)

// Backend implements chaos.CloudBackend for nodes reachable only over SSH.
// The instance ID is the node name.
type Backend struct{}

var _ chaos.CloudBackend = Backend{}

// New returns a generic backend.
func New() Backend { return Backend{} }

// Capabilities lists the remote actions and the sysfs disk action.
func (Backend) Capabilities() chaos.Capabilities {
	return chaos.Capabilities{
		Actions:    chaos.NewActionSet(chaos.RemoteActions, []config.Action{config.ActionDiskDetachAttach}),
		Concurrent: true,
	}
}

// ResolveInstanceID returns the node name unchanged.
func (Backend) ResolveInstanceID(_ context.Context, nodeName string) (string, error) {
	if nodeName == "" {
		return "", &chaos.NotFoundError{NodeName: nodeName}
	}
	return nodeName, nil
}

// Start is not supported.
func (Backend) Start(context.Context, string) error { return unsupported("start") }

// Stop is not supported.
func (Backend) Stop(context.Context, string) error { return unsupported("stop") }

// Reboot is not supported.
func (Backend) Reboot(context.Context, string, bool) error { return unsupported("reboot") }

// Terminate is not supported.
func (Backend) Terminate(context.Context, string) error { return unsupported("terminate") }

// Status is always unknown.
func (Backend) Status(context.Context, string) (chaos.ProviderState, error) {
	return chaos.StateUnknown, nil
}

func unsupported(op string) error {
	return fmt.Errorf("%s is not supported by the generic backend", op)
}
