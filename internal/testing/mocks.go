package testing

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/imamik/nodechaos/internal/chaos"
)

// MockBackend is a testify mock of chaos.CloudBackend. Capabilities is not
// mocked; it returns Caps.
type MockBackend struct {
	mock.Mock
	Caps chaos.Capabilities
}

// ResolveInstanceID resolves a mock instance ID.
func (m *MockBackend) ResolveInstanceID(ctx context.Context, nodeName string) (string, error) {
	args := m.Called(ctx, nodeName)
	return args.String(0), args.Error(1)
}

// Start starts a mock instance.
func (m *MockBackend) Start(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Stop stops a mock instance.
func (m *MockBackend) Stop(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Reboot reboots a mock instance.
func (m *MockBackend) Reboot(ctx context.Context, id string, soft bool) error {
	args := m.Called(ctx, id, soft)
	return args.Error(0)
}

// Terminate terminates a mock instance.
func (m *MockBackend) Terminate(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Status returns the mock instance state.
func (m *MockBackend) Status(ctx context.Context, id string) (chaos.ProviderState, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(chaos.ProviderState), args.Error(1)
}

// Capabilities returns Caps.
func (m *MockBackend) Capabilities() chaos.Capabilities {
	return m.Caps
}
