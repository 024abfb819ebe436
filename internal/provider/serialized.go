package provider

import (
	"context"
	"sync"
	"time"

	"github.com/imamik/nodechaos/internal/chaos"
)

// Serialized wraps a backend whose client must not be used concurrently and
// guards every call with one mutex. Volume support and native state waits
// are kept when the wrapped backend has them.
func Serialized(b chaos.CloudBackend) chaos.CloudBackend {
	s := &serialized{backend: b}
	vm, hasVolumes := b.(chaos.VolumeManager)
	w, hasWaiter := b.(chaos.StateWaiter)
	switch {
	case hasVolumes && hasWaiter:
		return &volumesWaiterBackend{s, &serializedVolumes{s, vm}, &serializedWaiter{s, w}}
	case hasVolumes:
		return &volumesBackend{s, &serializedVolumes{s, vm}}
	case hasWaiter:
		return &waiterBackend{s, &serializedWaiter{s, w}}
	}
	return s
}

type volumesBackend struct {
	*serialized
	*serializedVolumes
}

type waiterBackend struct {
	*serialized
	*serializedWaiter
}

type volumesWaiterBackend struct {
	*serialized
	*serializedVolumes
	*serializedWaiter
}

type serialized struct {
	mu      sync.Mutex
	backend chaos.CloudBackend
}

func (s *serialized) ResolveInstanceID(ctx context.Context, nodeName string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.ResolveInstanceID(ctx, nodeName)
}

func (s *serialized) Start(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Start(ctx, id)
}

func (s *serialized) Stop(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Stop(ctx, id)
}

func (s *serialized) Reboot(ctx context.Context, id string, soft bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Reboot(ctx, id, soft)
}

func (s *serialized) Terminate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Terminate(ctx, id)
}

func (s *serialized) Status(ctx context.Context, id string) (chaos.ProviderState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Status(ctx, id)
}

func (s *serialized) Capabilities() chaos.Capabilities {
	return s.backend.Capabilities()
}

type serializedVolumes struct {
	s       *serialized
	volumes chaos.VolumeManager
}

func (v *serializedVolumes) NonRootVolumes(ctx context.Context, id string) (chaos.AttachmentSnapshot, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return v.volumes.NonRootVolumes(ctx, id)
}

func (v *serializedVolumes) Detach(ctx context.Context, id string, volumeIDs []string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return v.volumes.Detach(ctx, id, volumeIDs)
}

func (v *serializedVolumes) Attach(ctx context.Context, snapshot chaos.AttachmentSnapshot) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return v.volumes.Attach(ctx, snapshot)
}

type serializedWaiter struct {
	s      *serialized
	waiter chaos.StateWaiter
}

func (w *serializedWaiter) WaitUntil(ctx context.Context, id string, state chaos.ProviderState, timeout, interval time.Duration) (time.Duration, error) {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	return w.waiter.WaitUntil(ctx, id, state, timeout, interval)
}
