// Package provider maps a scenario entry's cloud type to its backend.
package provider

import (
	"context"
	"os"
	"sync"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/imamik/nodechaos/internal/chaos"
	"github.com/imamik/nodechaos/internal/config"
	"github.com/imamik/nodechaos/internal/platform/aws"
	"github.com/imamik/nodechaos/internal/platform/generic"
	"github.com/imamik/nodechaos/internal/platform/hcloud"
)

// Constructor builds a backend for one cloud type.
type Constructor func(ctx context.Context, entry *config.ScenarioEntry) (chaos.CloudBackend, error)

// Factory implements chaos.BackendFactory. Backends are built once per cloud
// type and region and reused by later entries.
type Factory struct {
	mu           sync.Mutex
	constructors map[config.CloudType]Constructor
	cache        map[string]chaos.CloudBackend
	getenv       func(string) string
	timeouts     *config.Timeouts
}

var _ chaos.BackendFactory = (*Factory)(nil)

// Option configures a Factory.
type Option func(*Factory)

// WithConstructor overrides the constructor for a cloud type.
func WithConstructor(cloud config.CloudType, c Constructor) Option {
	return func(f *Factory) {
		f.constructors[cloud] = c
	}
}

// WithEnv overrides the environment lookup used for credentials.
func WithEnv(getenv func(string) string) Option {
	return func(f *Factory) {
		f.getenv = getenv
	}
}

// WithTimeouts sets the API timeouts handed to cloud backends.
func WithTimeouts(t *config.Timeouts) Option {
	return func(f *Factory) {
		f.timeouts = t
	}
}

// NewFactory returns a factory with the built-in backends.
func NewFactory(opts ...Option) *Factory {
	f := &Factory{
		constructors: map[config.CloudType]Constructor{},
		cache:        map[string]chaos.CloudBackend{},
		getenv:       os.Getenv,
		timeouts:     config.LoadTimeouts(),
	}
	f.constructors[config.CloudHetzner] = f.newHetzner
	f.constructors[config.CloudAWS] = f.newAWS
	f.constructors[config.CloudGeneric] = func(context.Context, *config.ScenarioEntry) (chaos.CloudBackend, error) {
		return generic.New(), nil
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Backend returns the backend for entry's cloud type. Backends that cannot
// be used concurrently are wrapped with Serialized.
func (f *Factory) Backend(ctx context.Context, entry *config.ScenarioEntry) (chaos.CloudBackend, error) {
	cloud := entry.Cloud()

	f.mu.Lock()
	defer f.mu.Unlock()

	key := string(cloud) + "/" + entry.Region
	if b, ok := f.cache[key]; ok {
		return b, nil
	}

	construct, ok := f.constructors[cloud]
	if !ok {
		return nil, chaos.Configf("unsupported cloud_type %q", entry.CloudType)
	}
	b, err := construct(ctx, entry)
	if err != nil {
		return nil, err
	}
	if !b.Capabilities().Concurrent {
		log.FromContext(ctx).Info("backend is not safe for concurrent use, serializing calls", "cloud", cloud)
		b = Serialized(b)
	}
	f.cache[key] = b
	return b, nil
}

func (f *Factory) newHetzner(_ context.Context, _ *config.ScenarioEntry) (chaos.CloudBackend, error) {
	token := f.getenv("HCLOUD_TOKEN")
	if token == "" {
		return nil, chaos.Configf("HCLOUD_TOKEN must be set for cloud_type %q", config.CloudHetzner)
	}
	return hcloud.NewBackend(token, hcloud.WithTimeouts(f.timeouts)), nil
}

func (f *Factory) newAWS(ctx context.Context, entry *config.ScenarioEntry) (chaos.CloudBackend, error) {
	b, err := aws.NewBackend(ctx, entry.Region, aws.WithTimeouts(f.timeouts))
	if err != nil {
		return nil, err
	}
	return b, nil
}
