package testing

import (
	"slices"

	"github.com/imamik/nodechaos/internal/config"
)

// ScenarioBuilder provides a fluent interface for constructing scenario
// entries. Each method returns a new builder (immutable) for chaining.
type ScenarioBuilder struct {
	entry config.ScenarioEntry
}

// NewScenarioBuilder creates a builder for a generic-cloud entry with short
// timings suitable for simulated clocks.
func NewScenarioBuilder() *ScenarioBuilder {
	return &ScenarioBuilder{
		entry: config.ScenarioEntry{
			CloudType:           string(config.CloudGeneric),
			TimeoutSeconds:      60,
			DurationSeconds:     10,
			PollIntervalSeconds: 1,
		},
	}
}

// WithCloud sets the cloud type.
func (b *ScenarioBuilder) WithCloud(ct config.CloudType) *ScenarioBuilder {
	nb := b.clone()
	nb.entry.CloudType = string(ct)
	return nb
}

// WithNodeName targets explicit nodes.
func (b *ScenarioBuilder) WithNodeName(names string) *ScenarioBuilder {
	nb := b.clone()
	nb.entry.NodeName = names
	nb.entry.LabelSelector = ""
	return nb
}

// WithLabelSelector targets nodes by label.
func (b *ScenarioBuilder) WithLabelSelector(selector string) *ScenarioBuilder {
	nb := b.clone()
	nb.entry.LabelSelector = selector
	nb.entry.NodeName = ""
	return nb
}

// WithExcludeLabel sets the exclusion selector.
func (b *ScenarioBuilder) WithExcludeLabel(selector string) *ScenarioBuilder {
	nb := b.clone()
	nb.entry.ExcludeLabel = selector
	return nb
}

// WithInstanceCount sets the number of nodes to select.
func (b *ScenarioBuilder) WithInstanceCount(n int) *ScenarioBuilder {
	nb := b.clone()
	nb.entry.InstanceCount = &n
	return nb
}

// WithRuns sets the iterations per node.
func (b *ScenarioBuilder) WithRuns(n int) *ScenarioBuilder {
	nb := b.clone()
	nb.entry.Runs = n
	return nb
}

// WithTimeout sets the wait timeout in seconds.
func (b *ScenarioBuilder) WithTimeout(seconds int) *ScenarioBuilder {
	nb := b.clone()
	nb.entry.TimeoutSeconds = seconds
	return nb
}

// WithDuration sets the inter-phase wait in seconds.
func (b *ScenarioBuilder) WithDuration(seconds int) *ScenarioBuilder {
	nb := b.clone()
	nb.entry.DurationSeconds = seconds
	return nb
}

// WithPollInterval sets the poll interval in seconds.
func (b *ScenarioBuilder) WithPollInterval(seconds int) *ScenarioBuilder {
	nb := b.clone()
	nb.entry.PollIntervalSeconds = seconds
	return nb
}

// WithParallel enables parallel dispatch.
func (b *ScenarioBuilder) WithParallel(parallel bool) *ScenarioBuilder {
	nb := b.clone()
	nb.entry.Parallel = parallel
	return nb
}

// WithKubeCheck toggles cluster-health confirmation.
func (b *ScenarioBuilder) WithKubeCheck(enabled bool) *ScenarioBuilder {
	nb := b.clone()
	nb.entry.KubeCheck = &enabled
	return nb
}

// WithActions sets the ordered action list.
func (b *ScenarioBuilder) WithActions(actions ...config.Action) *ScenarioBuilder {
	nb := b.clone()
	nb.entry.Actions = slices.Clone(actions)
	return nb
}

// WithDiskPath sets the sysfs disk path.
func (b *ScenarioBuilder) WithDiskPath(p string) *ScenarioBuilder {
	nb := b.clone()
	nb.entry.DiskPath = p
	return nb
}

// Build returns the defaulted entry.
func (b *ScenarioBuilder) Build() *config.ScenarioEntry {
	e := b.clone().entry
	e.ApplyDefaults()
	return &e
}

func (b *ScenarioBuilder) clone() *ScenarioBuilder {
	e := b.entry
	e.Actions = slices.Clone(b.entry.Actions)
	if b.entry.InstanceCount != nil {
		n := *b.entry.InstanceCount
		e.InstanceCount = &n
	}
	if b.entry.KubeCheck != nil {
		k := *b.entry.KubeCheck
		e.KubeCheck = &k
	}
	return &ScenarioBuilder{entry: e}
}
