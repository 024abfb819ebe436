package chaos

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"sync/atomic"

	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/imamik/nodechaos/internal/config"
	"github.com/imamik/nodechaos/internal/util/async"
)

// BackendFactory builds the cloud backend for a scenario entry.
type BackendFactory interface {
	Backend(ctx context.Context, entry *config.ScenarioEntry) (CloudBackend, error)
}

// BackendFactoryFunc adapts a function to BackendFactory.
type BackendFactoryFunc func(ctx context.Context, entry *config.ScenarioEntry) (CloudBackend, error)

// Backend calls f.
func (f BackendFactoryFunc) Backend(ctx context.Context, entry *config.ScenarioEntry) (CloudBackend, error) {
	return f(ctx, entry)
}

// RemoteFactory builds the remote executor for a scenario entry. It is only
// called for entries that run remote commands.
type RemoteFactory func(ctx context.Context, entry *config.ScenarioEntry) (RemoteExecutor, error)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRemoteFactory sets the factory for remote command executors.
func WithRemoteFactory(f RemoteFactory) Option {
	return func(o *Orchestrator) {
		o.remote = f
	}
}

// WithRand sets the random source used for node sampling. The source is
// shared by every Run call, so concurrent runs need separate orchestrators.
func WithRand(rng *rand.Rand) Option {
	return func(o *Orchestrator) {
		o.rng = rng
	}
}

// WithOrchestratorClock sets the clock passed to every node scenario.
func WithOrchestratorClock(clk clock.Clock) Option {
	return func(o *Orchestrator) {
		o.clock = clk
	}
}

// Orchestrator executes scenario entries: it builds the backend, selects the
// nodes for every action and dispatches the action to them.
type Orchestrator struct {
	factory BackendFactory
	probe   ClusterProbe
	remote  RemoteFactory
	rng     *rand.Rand
	clock   clock.Clock
	seq     atomic.Int64
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(factory BackendFactory, probe ClusterProbe, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		factory: factory,
		probe:   probe,
		clock:   clock.RealClock{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// EntryResult is the outcome of one scenario entry.
type EntryResult struct {
	Entry  config.ScenarioEntry
	Ledger *Ledger
	Err    error
}

// Run executes every action of entry in order and returns the entry's
// ledger. The ledger holds every attempted action-iteration, including
// failed ones, even when an error is returned. A failure aborts the
// remaining actions; parallel siblings of a failed node still finish.
func (o *Orchestrator) Run(ctx context.Context, entry *config.ScenarioEntry) (*Ledger, error) {
	logger := log.FromContext(ctx).WithValues("cloud", entry.Cloud())
	ctx = log.IntoContext(ctx, logger)
	ledger := NewLedger()

	if err := entry.Validate(); err != nil {
		return ledger, &ConfigurationError{Err: err}
	}

	backend, err := o.factory.Backend(ctx, entry)
	if err != nil {
		if errors.Is(err, ErrConfiguration) {
			return ledger, err
		}
		return ledger, &BackendError{Op: "create backend", Node: string(entry.Cloud()), Err: err}
	}

	caps := backend.Capabilities()
	for _, a := range entry.Actions {
		if !caps.Actions.Has(a) {
			return ledger, Configf("action %q is not supported by cloud type %q", a, entry.Cloud())
		}
	}
	if entry.DiskPath == "" && slices.Contains(entry.Actions, config.ActionDiskDetachAttach) {
		if _, ok := backend.(VolumeManager); !ok {
			return ledger, Configf("action %q needs disk_path: cloud type %q does not manage volumes", config.ActionDiskDetachAttach, entry.Cloud())
		}
	}

	opts := []ScenarioOption{
		WithClock(o.clock),
		WithScenarioID(fmt.Sprintf("s%d", o.seq.Add(1))),
	}
	if needsRemote(entry) {
		if o.remote == nil {
			return ledger, Configf("actions %v need remote command access, none configured", entry.Actions)
		}
		remote, err := o.remote(ctx, entry)
		if err != nil {
			return ledger, &ConfigurationError{Err: fmt.Errorf("remote executor: %w", err)}
		}
		opts = append(opts, WithRemoteExecutor(remote))
	}
	scenario := NewNodeScenario(backend, o.probe, SettingsFor(entry), opts...)

	parallel := entry.Parallel
	if parallel && !caps.Concurrent {
		logger.Info("Backend does not support concurrent calls, dispatching sequentially")
		parallel = false
	}

	selector := NewSelector(o.probe, o.rng)
	target := TargetFor(entry)

	var runErr error
	for _, action := range entry.Actions {
		nodes, err := selector.Select(ctx, target, entry.Count())
		if err != nil {
			runErr = err
			break
		}
		logger.Info("Dispatching action", "action", action, "nodes", nodes, "runs", entry.Runs, "parallel", parallel)

		if parallel {
			err = dispatchParallel(ctx, scenario, action, nodes, entry.Runs)
		} else {
			err = dispatchSequential(ctx, scenario, action, nodes, entry.Runs)
		}
		if err != nil {
			runErr = fmt.Errorf("action %s: %w", action, err)
			break
		}
	}

	ledger.Join(scenario.Ledger())
	ledger.Merge()
	return ledger, runErr
}

// RunEach runs every entry, continuing past failed ones, and returns one
// result per entry. Cancellation of ctx stops before the next entry.
func (o *Orchestrator) RunEach(ctx context.Context, entries []config.ScenarioEntry) []EntryResult {
	results := make([]EntryResult, 0, len(entries))
	for i := range entries {
		entry := entries[i]
		if err := ctx.Err(); err != nil {
			results = append(results, EntryResult{Entry: entry, Ledger: NewLedger(), Err: err})
			continue
		}
		ledger, err := o.Run(ctx, &entry)
		if err != nil {
			log.FromContext(ctx).Error(err, "Scenario entry failed", "index", i)
		}
		results = append(results, EntryResult{Entry: entry, Ledger: ledger, Err: err})
	}
	return results
}

// RunAll runs every entry and returns the combined ledger and the joined
// errors of all failed entries.
func (o *Orchestrator) RunAll(ctx context.Context, entries []config.ScenarioEntry) (*Ledger, error) {
	combined := NewLedger()
	var errs []error
	for i, res := range o.RunEach(ctx, entries) {
		combined.Join(res.Ledger)
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("node_scenarios[%d]: %w", i, res.Err))
		}
	}
	return combined, errors.Join(errs...)
}

func dispatchSequential(ctx context.Context, scenario *NodeScenario, action config.Action, nodes []string, runs int) error {
	for _, node := range nodes {
		if err := scenario.Run(ctx, action, node, runs); err != nil {
			return err
		}
	}
	return nil
}

// dispatchParallel runs one worker per node, each on its own fork. The fork
// ledgers are joined in node order after every worker has finished.
func dispatchParallel(ctx context.Context, scenario *NodeScenario, action config.Action, nodes []string, runs int) error {
	forks := make([]*NodeScenario, len(nodes))
	tasks := make([]async.Task, len(nodes))
	for i, node := range nodes {
		fork := scenario.Fork()
		forks[i] = fork
		tasks[i] = async.Task{
			Name: node,
			Func: func(ctx context.Context) error {
				return fork.Run(ctx, action, node, runs)
			},
		}
	}

	results := async.RunPool(ctx, tasks, len(nodes))

	for _, f := range forks {
		scenario.Ledger().Join(f.Ledger())
	}
	return async.Errors(results)
}

// needsRemote reports whether the entry runs commands on its nodes.
func needsRemote(entry *config.ScenarioEntry) bool {
	if entry.DiskPath != "" && slices.Contains(entry.Actions, config.ActionDiskDetachAttach) {
		return true
	}
	for _, a := range entry.Actions {
		if slices.Contains(RemoteActions, a) {
			return true
		}
	}
	return false
}
