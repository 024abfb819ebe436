package provider

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/nodechaos/internal/chaos"
	"github.com/imamik/nodechaos/internal/config"
	"github.com/imamik/nodechaos/internal/platform/generic"
	"github.com/imamik/nodechaos/internal/platform/hcloud"
	chaostesting "github.com/imamik/nodechaos/internal/testing"
)

func entry(cloud string) *config.ScenarioEntry {
	return &config.ScenarioEntry{CloudType: cloud}
}

func TestFactory_BuiltInBackends(t *testing.T) {
	env := map[string]string{"HCLOUD_TOKEN": "secret"}
	f := NewFactory(WithEnv(func(k string) string { return env[k] }))
	ctx := context.Background()

	b, err := f.Backend(ctx, entry("hcloud"))
	require.NoError(t, err)
	assert.IsType(t, &hcloud.Backend{}, b)

	b, err = f.Backend(ctx, entry("bm"))
	require.NoError(t, err)
	assert.IsType(t, generic.Backend{}, b)
}

func TestFactory_HetznerRequiresToken(t *testing.T) {
	f := NewFactory(WithEnv(func(string) string { return "" }))

	_, err := f.Backend(context.Background(), entry("hetzner"))
	require.Error(t, err)
	assert.ErrorIs(t, err, chaos.ErrConfiguration)
	assert.Contains(t, err.Error(), "HCLOUD_TOKEN")
}

func TestFactory_UnknownCloud(t *testing.T) {
	_, err := NewFactory().Backend(context.Background(), entry("openstack"))
	require.Error(t, err)
	assert.ErrorIs(t, err, chaos.ErrConfiguration)
}

func TestFactory_CachesPerCloudAndRegion(t *testing.T) {
	var built int
	f := NewFactory(WithConstructor(config.CloudAWS, func(context.Context, *config.ScenarioEntry) (chaos.CloudBackend, error) {
		built++
		return chaostesting.NewFakeBackend("worker-1"), nil
	}))
	ctx := context.Background()

	a := &config.ScenarioEntry{CloudType: "aws", Region: "eu-west-1"}
	b := &config.ScenarioEntry{CloudType: "aws", Region: "us-east-1"}

	first, err := f.Backend(ctx, a)
	require.NoError(t, err)
	again, err := f.Backend(ctx, a)
	require.NoError(t, err)
	assert.Same(t, first, again)

	_, err = f.Backend(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, 2, built)
}

func TestFactory_WrapsNonConcurrentBackends(t *testing.T) {
	fake := chaostesting.NewFakeBackend("worker-1")
	fake.SetCapabilities(chaos.Capabilities{
		Actions:    chaos.NewActionSet(chaos.CloudActions),
		Concurrent: false,
	})
	f := NewFactory(WithConstructor(config.CloudGeneric, func(context.Context, *config.ScenarioEntry) (chaos.CloudBackend, error) {
		return fake, nil
	}))

	b, err := f.Backend(context.Background(), entry("generic"))
	require.NoError(t, err)
	_, isFake := b.(*chaostesting.FakeBackend)
	assert.False(t, isFake)
	_, hasVolumes := b.(chaos.VolumeManager)
	assert.True(t, hasVolumes)
}

// overlapBackend records how many calls run at the same time.
type overlapBackend struct {
	generic.Backend
	active  atomic.Int32
	maxSeen atomic.Int32
}

func (o *overlapBackend) Status(context.Context, string) (chaos.ProviderState, error) {
	n := o.active.Add(1)
	defer o.active.Add(-1)
	for {
		seen := o.maxSeen.Load()
		if n <= seen || o.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	return chaos.StateRunning, nil
}

func TestSerialized_NoOverlappingCalls(t *testing.T) {
	inner := &overlapBackend{}
	b := Serialized(inner)
	_, hasVolumes := b.(chaos.VolumeManager)
	assert.False(t, hasVolumes)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = b.Status(context.Background(), "x")
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), inner.maxSeen.Load())
}

// waitingBackend has a native state wait but no volume support.
type waitingBackend struct {
	generic.Backend
	waits []chaos.ProviderState
}

func (w *waitingBackend) WaitUntil(_ context.Context, _ string, state chaos.ProviderState, _, _ time.Duration) (time.Duration, error) {
	w.waits = append(w.waits, state)
	return 3 * time.Second, nil
}

func TestSerialized_KeepsStateWaiter(t *testing.T) {
	inner := &waitingBackend{}
	b := Serialized(inner)

	_, hasVolumes := b.(chaos.VolumeManager)
	assert.False(t, hasVolumes)
	w, ok := b.(chaos.StateWaiter)
	require.True(t, ok)

	elapsed, err := w.WaitUntil(context.Background(), "worker-1", chaos.StateStopped, time.Minute, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, elapsed)
	assert.Equal(t, []chaos.ProviderState{chaos.StateStopped}, inner.waits)
}

func TestSerialized_KeepsVolumesAndStateWaiter(t *testing.T) {
	b := Serialized(&volumeWaitingBackend{FakeBackend: chaostesting.NewFakeBackend("worker-1")})

	_, hasVolumes := b.(chaos.VolumeManager)
	_, hasWaiter := b.(chaos.StateWaiter)
	assert.True(t, hasVolumes)
	assert.True(t, hasWaiter)
}

type volumeWaitingBackend struct {
	*chaostesting.FakeBackend
}

func (volumeWaitingBackend) WaitUntil(context.Context, string, chaos.ProviderState, time.Duration, time.Duration) (time.Duration, error) {
	return 0, nil
}
