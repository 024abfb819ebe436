package chaos

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/imamik/nodechaos/internal/config"
	"github.com/imamik/nodechaos/internal/util/retry"
)

// Extras keys recorded by compound actions.
const (
	ExtraCloudStoppingTime = "cloud_stopping_time"
	ExtraCloudRunningTime  = "cloud_running_time"
	ExtraDetachTime        = "disk_detach_time"
	ExtraAttachTime        = "disk_attach_time"
)

// Settings are the timing and action parameters of one scenario entry.
type Settings struct {
	Timeout      time.Duration
	Duration     time.Duration
	PollInterval time.Duration
	ClusterCheck bool
	SoftReboot   bool
	DiskPath     string
	Service      string
}

// SettingsFor extracts the settings of a defaulted scenario entry.
func SettingsFor(e *config.ScenarioEntry) Settings {
	return Settings{
		Timeout:      e.Timeout(),
		Duration:     e.Duration(),
		PollInterval: e.PollInterval(),
		ClusterCheck: e.ClusterCheck(),
		SoftReboot:   e.SoftReboot,
		DiskPath:     e.DiskPath,
		Service:      e.Service,
	}
}

// ScenarioOption configures a NodeScenario.
type ScenarioOption func(*NodeScenario)

// WithRemoteExecutor sets the executor used by kubelet, crash and sysfs disk
// actions.
func WithRemoteExecutor(r RemoteExecutor) ScenarioOption {
	return func(s *NodeScenario) {
		s.remote = r
	}
}

// WithClock overrides the clock used for polling and inter-phase waits.
func WithClock(clk clock.Clock) ScenarioOption {
	return func(s *NodeScenario) {
		s.clock = clk
	}
}

// WithScenarioID sets the prefix of the event IDs issued by the scenario.
func WithScenarioID(id string) ScenarioOption {
	return func(s *NodeScenario) {
		s.id = id
	}
}

// NodeScenario executes chaos actions against single nodes and records every
// action-iteration in its ledger. Each mutation is confirmed twice: first
// through the cloud backend, then through the cluster probe.
//
// A NodeScenario is not safe for concurrent use. Parallel workers call Fork
// to obtain their own copy.
type NodeScenario struct {
	id       string
	backend  CloudBackend
	probe    ClusterProbe
	remote   RemoteExecutor
	settings Settings
	clock    clock.Clock
	ledger   *Ledger
	seq      *atomic.Int64
}

// NewNodeScenario creates a scenario bound to backend and probe.
func NewNodeScenario(backend CloudBackend, probe ClusterProbe, settings Settings, opts ...ScenarioOption) *NodeScenario {
	s := &NodeScenario{
		id:       "scenario",
		backend:  backend,
		probe:    probe,
		settings: settings,
		clock:    clock.RealClock{},
		ledger:   NewLedger(),
		seq:      &atomic.Int64{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fork returns a copy that shares the backend, probe, executor and event
// sequence but records into a fresh ledger.
func (s *NodeScenario) Fork() *NodeScenario {
	f := *s
	f.ledger = NewLedger()
	return &f
}

// Ledger returns the scenario's ledger.
func (s *NodeScenario) Ledger() *Ledger {
	return s.ledger
}

// Run performs runs iterations of action against node. The first failing
// iteration stops the loop.
func (s *NodeScenario) Run(ctx context.Context, action config.Action, node string, runs int) error {
	for i := 0; i < runs; i++ {
		if err := s.Do(ctx, action, node); err != nil {
			return err
		}
	}
	return nil
}

// Do performs a single iteration of action against node.
func (s *NodeScenario) Do(ctx context.Context, action config.Action, node string) error {
	switch action {
	case config.ActionStart:
		return s.Start(ctx, node)
	case config.ActionStop:
		return s.Stop(ctx, node)
	case config.ActionStopStart:
		return s.StopStart(ctx, node)
	case config.ActionReboot:
		return s.Reboot(ctx, node)
	case config.ActionTerminate:
		return s.Terminate(ctx, node)
	case config.ActionDiskDetachAttach:
		return s.DiskDetachAttach(ctx, node)
	case config.ActionStopKubelet:
		return s.StopKubelet(ctx, node)
	case config.ActionRestartKubelet:
		return s.RestartKubelet(ctx, node)
	case config.ActionStopStartKubelet:
		return s.StopStartKubelet(ctx, node)
	case config.ActionCrash:
		return s.Crash(ctx, node)
	default:
		return Configf("unsupported action %q", action)
	}
}

// clusterWait is one expected Ready condition status after a mutation.
type clusterWait struct {
	status     corev1.ConditionStatus
	transition Transition
}

var (
	waitReady    = clusterWait{status: corev1.ConditionTrue, transition: TransitionReady}
	waitNotReady = clusterWait{status: corev1.ConditionUnknown, transition: TransitionNotReady}
)

// cloudStep is a backend mutation and its confirmation policy.
type cloudStep struct {
	op         string
	mutate     func(ctx context.Context, id string) error
	state      ProviderState
	transition Transition
	cluster    []clusterWait
	// clusterFatal makes a cluster-health timeout abort the action.
	clusterFatal bool
}

// Start powers a stopped node on and waits for running, then Ready=True.
func (s *NodeScenario) Start(ctx context.Context, node string) error {
	it := s.begin(ctx, node, config.ActionStart, "")
	return it.finish(s.runCloudStep(ctx, it, s.startStep()))
}

// Stop powers a node off and waits for stopped, then Ready=Unknown.
func (s *NodeScenario) Stop(ctx context.Context, node string) error {
	it := s.begin(ctx, node, config.ActionStop, "")
	return it.finish(s.runCloudStep(ctx, it, s.stopStep()))
}

// Reboot restarts a node and waits for running, then for the Ready
// condition to go Unknown and back to True.
func (s *NodeScenario) Reboot(ctx context.Context, node string) error {
	it := s.begin(ctx, node, config.ActionReboot, "")
	return it.finish(s.runCloudStep(ctx, it, cloudStep{
		op: "reboot",
		mutate: func(ctx context.Context, id string) error {
			return s.backend.Reboot(ctx, id, s.settings.SoftReboot)
		},
		state:      StateRunning,
		transition: TransitionRunning,
		cluster:    []clusterWait{waitNotReady, waitReady},
	}))
}

// Terminate deletes a node's instance and waits for terminated. The node
// object is expected to disappear, so no cluster wait is done.
func (s *NodeScenario) Terminate(ctx context.Context, node string) error {
	it := s.begin(ctx, node, config.ActionTerminate, "")
	return it.finish(s.runCloudStep(ctx, it, cloudStep{
		op:         "terminate",
		mutate:     s.backend.Terminate,
		state:      StateTerminated,
		transition: TransitionTerminated,
	}))
}

// StopStart stops a node, waits the configured duration and starts it again.
// Both passes share one event and are merged into a single ledger entry.
func (s *NodeScenario) StopStart(ctx context.Context, node string) error {
	eventID := s.nextEventID()

	stop := s.begin(ctx, node, config.ActionStopStart, eventID)
	err := s.runCloudStep(ctx, stop, s.stopStep())
	if d, ok := stop.node.Duration(TransitionStopped); ok {
		stop.node.SetExtra(ExtraCloudStoppingTime, d)
	}
	if err := stop.finish(err); err != nil {
		return err
	}

	if err := s.pause(ctx, stop.logger); err != nil {
		return err
	}

	start := s.begin(ctx, node, config.ActionStopStart, eventID)
	err = s.runCloudStep(ctx, start, s.startStep())
	if d, ok := start.node.Duration(TransitionRunning); ok {
		start.node.SetExtra(ExtraCloudRunningTime, d)
	}
	err = start.finish(err)
	s.ledger.Merge()
	return err
}

func (s *NodeScenario) startStep() cloudStep {
	return cloudStep{
		op:         "start",
		mutate:     s.backend.Start,
		state:      StateRunning,
		transition: TransitionRunning,
		cluster:    []clusterWait{waitReady},
	}
}

func (s *NodeScenario) stopStep() cloudStep {
	return cloudStep{
		op:         "stop",
		mutate:     s.backend.Stop,
		state:      StateStopped,
		transition: TransitionStopped,
		cluster:    []clusterWait{waitNotReady},
	}
}

// DiskDetachAttach detaches every non-root volume of a node, waits the
// configured duration and reattaches exactly the volumes it detached. When a
// disk path is configured the block device is taken offline through sysfs
// instead.
func (s *NodeScenario) DiskDetachAttach(ctx context.Context, node string) error {
	it := s.begin(ctx, node, config.ActionDiskDetachAttach, "")
	if s.settings.DiskPath != "" {
		return it.finish(s.sysfsDiskCycle(ctx, it))
	}

	vm, ok := s.backend.(VolumeManager)
	if !ok {
		return it.finish(&BackendError{Op: "disk detach", Node: node, Err: errors.New("backend does not manage volumes")})
	}

	id, err := s.resolve(ctx, it)
	if err != nil {
		return it.finish(err)
	}

	snapshot, err := vm.NonRootVolumes(ctx, id)
	if err != nil {
		return it.finish(&BackendError{Op: "list volumes", Node: node, Err: err})
	}
	if snapshot.Empty() {
		it.logger.Info("Node has no non-root volumes, nothing to detach")
		return it.finish(nil)
	}

	started := s.clock.Now()
	if err := vm.Detach(ctx, id, snapshot.VolumeIDs()); err != nil {
		return it.finish(&BackendError{Op: "detach volumes", Node: node, Err: err})
	}
	it.node.SetExtra(ExtraDetachTime, s.clock.Since(started))
	it.enter(phaseMutationIssued)
	it.logger.Info("Detached volumes", "volumes", snapshot.VolumeIDs())

	if err := s.pause(ctx, it.logger); err != nil {
		return it.finish(err)
	}

	started = s.clock.Now()
	if err := vm.Attach(ctx, snapshot); err != nil {
		return it.finish(&BackendError{Op: "attach volumes", Node: node, Err: err})
	}
	it.node.SetExtra(ExtraAttachTime, s.clock.Since(started))
	it.enter(phaseCloudConfirmed)
	it.logger.Info("Reattached volumes", "volumes", snapshot.VolumeIDs())
	return it.finish(nil)
}

func (s *NodeScenario) sysfsDiskCycle(ctx context.Context, it *iteration) error {
	if _, err := s.resolve(ctx, it); err != nil {
		return err
	}
	state := fmt.Sprintf("/sys/block/%s/device/state", path.Base(s.settings.DiskPath))

	started := s.clock.Now()
	if err := s.remoteRun(ctx, it, "disk offline", "echo offline > "+state); err != nil {
		return err
	}
	it.node.SetExtra(ExtraDetachTime, s.clock.Since(started))
	it.enter(phaseMutationIssued)

	if err := s.pause(ctx, it.logger); err != nil {
		return err
	}

	started = s.clock.Now()
	if err := s.remoteRun(ctx, it, "disk online", "echo running > "+state); err != nil {
		return err
	}
	it.node.SetExtra(ExtraAttachTime, s.clock.Since(started))
	it.enter(phaseCloudConfirmed)
	return nil
}

// StopKubelet stops the kubelet service and waits for Ready=Unknown.
func (s *NodeScenario) StopKubelet(ctx context.Context, node string) error {
	it := s.begin(ctx, node, config.ActionStopKubelet, "")
	return it.finish(s.runRemoteStep(ctx, it, "stop kubelet",
		"systemctl stop "+s.settings.Service, waitNotReady))
}

// RestartKubelet restarts the kubelet service and waits for Ready=True.
func (s *NodeScenario) RestartKubelet(ctx context.Context, node string) error {
	it := s.begin(ctx, node, config.ActionRestartKubelet, "")
	return it.finish(s.runRemoteStep(ctx, it, "restart kubelet",
		"systemctl restart "+s.settings.Service, waitReady))
}

// StopStartKubelet stops the kubelet, waits for Ready=Unknown, pauses for
// the configured duration, starts it again and waits for Ready=True.
func (s *NodeScenario) StopStartKubelet(ctx context.Context, node string) error {
	it := s.begin(ctx, node, config.ActionStopStartKubelet, "")
	err := s.runRemoteStep(ctx, it, "stop kubelet", "systemctl stop "+s.settings.Service, waitNotReady)
	if err == nil {
		err = s.pause(ctx, it.logger)
	}
	if err == nil {
		err = s.runRemoteStep(ctx, it, "start kubelet", "systemctl start "+s.settings.Service, waitReady)
	}
	return it.finish(err)
}

// crashCommand triggers a kernel panic after the remote session returned.
const crashCommand = `echo 1 > /proc/sys/kernel/sysrq; nohup sh -c 'sleep 1; echo c > /proc/sysrq-trigger' >/dev/null 2>&1 &`

// Crash panics the node's kernel through sysrq. Recovery is not awaited.
func (s *NodeScenario) Crash(ctx context.Context, node string) error {
	it := s.begin(ctx, node, config.ActionCrash, "")
	if _, err := s.resolve(ctx, it); err != nil {
		return it.finish(err)
	}
	if err := s.remoteRun(ctx, it, "crash", crashCommand); err != nil {
		return it.finish(err)
	}
	it.enter(phaseMutationIssued)
	return it.finish(nil)
}

func (s *NodeScenario) runCloudStep(ctx context.Context, it *iteration, st cloudStep) error {
	id, err := s.resolve(ctx, it)
	if err != nil {
		return err
	}

	it.logger.Info("Issuing cloud action", "op", st.op, "instance", id)
	if err := st.mutate(ctx, id); err != nil {
		return &BackendError{Op: st.op, Node: it.node.NodeName, Err: err}
	}
	it.enter(phaseMutationIssued)

	elapsed, err := s.waitCloud(ctx, it.node.NodeName, id, st.state)
	if err != nil {
		return err
	}
	it.node.Record(st.transition, elapsed)
	it.enter(phaseCloudConfirmed)
	it.logger.Info("Cloud state confirmed", "state", st.state, "elapsed", elapsed)

	return s.confirmCluster(ctx, it, st.cluster, st.clusterFatal)
}

func (s *NodeScenario) runRemoteStep(ctx context.Context, it *iteration, op, command string, wait clusterWait) error {
	if _, err := s.resolve(ctx, it); err != nil {
		return err
	}
	if err := s.remoteRun(ctx, it, op, command); err != nil {
		return err
	}
	it.enter(phaseMutationIssued)
	return s.confirmCluster(ctx, it, []clusterWait{wait}, true)
}

// resolve maps the node to its instance ID once per iteration.
func (s *NodeScenario) resolve(ctx context.Context, it *iteration) (string, error) {
	if it.node.NodeID != "" {
		return it.node.NodeID, nil
	}
	id, err := s.backend.ResolveInstanceID(ctx, it.node.NodeName)
	if err != nil {
		return "", &BackendError{Op: "resolve instance", Node: it.node.NodeName, Err: err}
	}
	it.node.NodeID = id
	return id, nil
}

func (s *NodeScenario) remoteRun(ctx context.Context, it *iteration, op, command string) error {
	if s.remote == nil {
		return &BackendError{Op: op, Node: it.node.NodeName, Err: errors.New("no remote executor configured")}
	}
	it.logger.Info("Running remote command", "op", op)
	out, err := s.remote.Run(ctx, it.node.NodeName, command)
	if err != nil {
		return &BackendError{Op: op, Node: it.node.NodeName, Err: err}
	}
	if out != "" {
		it.logger.V(1).Info("Remote command output", "op", op, "output", out)
	}
	return nil
}

// waitCloud waits until the instance reports state.
func (s *NodeScenario) waitCloud(ctx context.Context, node, id string, state ProviderState) (time.Duration, error) {
	var elapsed time.Duration
	var err error
	if w, ok := s.backend.(StateWaiter); ok {
		elapsed, err = w.WaitUntil(ctx, id, state, s.settings.Timeout, s.settings.PollInterval)
	} else {
		elapsed, err = retry.Poll(ctx, s.clock, s.settings.PollInterval, s.settings.Timeout, func(ctx context.Context) (bool, error) {
			current, err := s.backend.Status(ctx, id)
			if err != nil {
				return false, err
			}
			return current == state, nil
		})
	}
	if err == nil {
		return elapsed, nil
	}
	if errors.Is(err, retry.ErrPollTimeout) || errors.Is(err, ErrCloudStateTimeout) {
		return elapsed, &CloudStateTimeoutError{
			Node:       node,
			InstanceID: id,
			State:      state,
			Timeout:    s.settings.Timeout,
			Elapsed:    elapsed,
		}
	}
	return elapsed, &BackendError{Op: "wait for " + string(state), Node: node, Err: err}
}

// confirmCluster runs the cluster-health waits of a step. A timeout aborts
// the action only when fatal is set; otherwise it is logged and the next
// wait still runs.
func (s *NodeScenario) confirmCluster(ctx context.Context, it *iteration, waits []clusterWait, fatal bool) error {
	if !s.settings.ClusterCheck || len(waits) == 0 {
		return nil
	}
	node := it.node.NodeName
	confirmed := true
	for _, w := range waits {
		elapsed, err := s.probe.WatchNodeCondition(ctx, node, w.status, s.settings.Timeout)
		if err != nil {
			if !errors.Is(err, retry.ErrPollTimeout) && !errors.Is(err, ErrClusterStateTimeout) {
				return &BackendError{Op: "watch node condition", Node: node, Err: err}
			}
			if fatal {
				return &ClusterStateTimeoutError{Node: node, Status: w.status, Timeout: s.settings.Timeout}
			}
			it.logger.Info("Cluster state not confirmed, continuing",
				"status", w.status, "timeout", s.settings.Timeout)
			confirmed = false
			continue
		}
		it.node.Record(w.transition, elapsed)
	}
	if confirmed {
		it.enter(phaseClusterConfirmed)
	}
	return nil
}

// pause waits the configured inter-phase duration or until ctx is done.
func (s *NodeScenario) pause(ctx context.Context, logger logr.Logger) error {
	if s.settings.Duration <= 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	logger.Info("Waiting before next phase", "duration", s.settings.Duration)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.clock.After(s.settings.Duration):
		return nil
	}
}

func (s *NodeScenario) nextEventID() string {
	return fmt.Sprintf("%s-%d", s.id, s.seq.Add(1))
}

// phase is a state of the per-iteration state machine.
type phase string

const (
	phaseInitial          phase = "initial"
	phaseMutationIssued   phase = "mutation_issued"
	phaseCloudConfirmed   phase = "cloud_state_confirmed"
	phaseClusterConfirmed phase = "cluster_state_confirmed"
	phaseRecorded         phase = "recorded"
)

// iteration tracks one action-iteration from start to ledger append.
type iteration struct {
	s      *NodeScenario
	node   *AffectedNode
	logger logr.Logger
	phase  phase
}

func (s *NodeScenario) begin(ctx context.Context, node string, action config.Action, eventID string) *iteration {
	if eventID == "" {
		eventID = s.nextEventID()
	}
	return &iteration{
		s:      s,
		node:   NewAffectedNode(node, action, eventID),
		logger: log.FromContext(ctx).WithValues("node", node, "action", action, "event", eventID),
		phase:  phaseInitial,
	}
}

func (it *iteration) enter(p phase) {
	it.logger.V(1).Info("State change", "from", it.phase, "to", p)
	it.phase = p
}

// finish appends the record to the ledger, classifying err into the
// record's outcome, and returns err unchanged.
func (it *iteration) finish(err error) error {
	if err != nil {
		it.node.Fail(outcomeOf(err), err)
		it.logger.V(1).Info("State change", "from", it.phase, "to", it.node.Outcome)
		it.logger.Error(err, "Action failed")
	} else {
		it.enter(phaseRecorded)
	}
	it.s.ledger.Append(*it.node)
	return err
}

func outcomeOf(err error) Outcome {
	switch {
	case errors.Is(err, ErrCloudStateTimeout):
		return OutcomeCloudTimeout
	case errors.Is(err, ErrClusterStateTimeout):
		return OutcomeClusterTimeout
	default:
		return OutcomeBackendError
	}
}
