package testing

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/labels"

	"github.com/imamik/nodechaos/internal/chaos"
	"github.com/imamik/nodechaos/internal/util/retry"
)

// FakeNode is a node known to FakeCluster.
type FakeNode struct {
	Name   string
	Labels map[string]string
	Ready  bool
}

// WatchCall records one WatchNodeCondition call.
type WatchCall struct {
	Node   string
	Status corev1.ConditionStatus
}

// FakeCluster is an in-memory chaos.ClusterProbe. Conditions are confirmed
// immediately unless the node/status pair was marked unreachable.
type FakeCluster struct {
	mu          sync.Mutex
	nodes       []FakeNode
	unreachable map[WatchCall]bool
	delay       time.Duration
	listErr     error
	listCalls   []string
	watchCalls  []WatchCall
}

// NewFakeCluster returns an empty cluster.
func NewFakeCluster() *FakeCluster {
	return &FakeCluster{unreachable: map[WatchCall]bool{}}
}

// AddNode adds a node and returns the cluster for chaining.
func (c *FakeCluster) AddNode(name string, ready bool, lbls map[string]string) *FakeCluster {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes = append(c.nodes, FakeNode{Name: name, Labels: lbls, Ready: ready})
	return c
}

// AddWorkers adds n Ready nodes named worker-1..worker-n carrying lbls.
func (c *FakeCluster) AddWorkers(n int, lbls map[string]string) *FakeCluster {
	for i := 1; i <= n; i++ {
		c.AddNode(fmt.Sprintf("worker-%d", i), true, lbls)
	}
	return c
}

// NodeNames returns every node name in insertion order.
func (c *FakeCluster) NodeNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, len(c.nodes))
	for i, n := range c.nodes {
		names[i] = n.Name
	}
	return names
}

// NeverReach makes WatchNodeCondition time out for node and status.
func (c *FakeCluster) NeverReach(node string, status corev1.ConditionStatus) *FakeCluster {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unreachable[WatchCall{Node: node, Status: status}] = true
	return c
}

// SetConditionDelay sets the elapsed time reported for confirmed conditions.
func (c *FakeCluster) SetConditionDelay(d time.Duration) *FakeCluster {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delay = d
	return c
}

// FailList makes ListKillableNodes return err.
func (c *FakeCluster) FailList(err error) *FakeCluster {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listErr = err
	return c
}

// ListKillableNodes implements chaos.ClusterProbe.
func (c *FakeCluster) ListKillableNodes(_ context.Context, selector string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listCalls = append(c.listCalls, selector)
	if c.listErr != nil {
		return nil, c.listErr
	}

	sel, err := labels.Parse(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid label selector %q: %w", selector, err)
	}
	var out []string
	for _, n := range c.nodes {
		if n.Ready && sel.Matches(labels.Set(n.Labels)) {
			out = append(out, n.Name)
		}
	}
	return out, nil
}

// WatchNodeCondition implements chaos.ClusterProbe.
func (c *FakeCluster) WatchNodeCondition(ctx context.Context, node string, status corev1.ConditionStatus, timeout time.Duration) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	call := WatchCall{Node: node, Status: status}
	c.watchCalls = append(c.watchCalls, call)
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if c.unreachable[call] {
		return timeout, fmt.Errorf("node %s condition %s: %w", node, status, retry.ErrPollTimeout)
	}
	return c.delay, nil
}

// NodeAddress implements ssh.AddressResolver. Nodes resolve to
// "<name>.internal"; unknown nodes return an error.
func (c *FakeCluster) NodeAddress(_ context.Context, node string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range c.nodes {
		if n.Name == node {
			return n.Name + ".internal", nil
		}
	}
	return "", fmt.Errorf("node %s not found", node)
}

// WatchCalls returns the recorded WatchNodeCondition calls.
func (c *FakeCluster) WatchCalls() []WatchCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.watchCalls)
}

// ListCalls returns the selectors passed to ListKillableNodes.
func (c *FakeCluster) ListCalls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.listCalls)
}

// FakeInstance is the backend view of one node.
type FakeInstance struct {
	ID       string
	State    chaos.ProviderState
	Volumes  []chaos.VolumeAttachment
	Attached map[string]bool
	// Stuck instances accept mutations but never change state.
	Stuck bool
}

// FakeBackend is an in-memory chaos.CloudBackend and chaos.VolumeManager.
// Mutations take effect immediately.
type FakeBackend struct {
	mu        sync.Mutex
	instances map[string]*FakeInstance
	byID      map[string]*FakeInstance
	failures  map[string]error
	calls     []string
	caps      chaos.Capabilities
}

// NewFakeBackend returns a backend with one running instance per node name.
// Instance IDs are "i-<node>".
func NewFakeBackend(nodes ...string) *FakeBackend {
	b := &FakeBackend{
		instances: map[string]*FakeInstance{},
		byID:      map[string]*FakeInstance{},
		failures:  map[string]error{},
		caps: chaos.Capabilities{
			Actions:    chaos.NewActionSet(chaos.CloudActions, chaos.RemoteActions),
			Concurrent: true,
		},
	}
	for _, n := range nodes {
		b.AddInstance(n, chaos.StateRunning)
	}
	return b
}

// AddInstance registers an instance for node in state.
func (b *FakeBackend) AddInstance(node string, state chaos.ProviderState) *FakeInstance {
	b.mu.Lock()
	defer b.mu.Unlock()
	inst := &FakeInstance{ID: "i-" + node, State: state, Attached: map[string]bool{}}
	b.instances[node] = inst
	b.byID[inst.ID] = inst
	return inst
}

// AddVolumes attaches volumes to node's instance.
func (b *FakeBackend) AddVolumes(node string, volumeIDs ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	inst := b.instances[node]
	for i, v := range volumeIDs {
		inst.Volumes = append(inst.Volumes, chaos.VolumeAttachment{VolumeID: v, Device: fmt.Sprintf("/dev/sd%c", 'b'+i)})
		inst.Attached[v] = true
	}
}

// SetStuck makes node's instance ignore state changes.
func (b *FakeBackend) SetStuck(node string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.instances[node].Stuck = true
}

// Fail makes op ("start", "stop", "reboot", "terminate", "status", "resolve",
// "detach", "attach") fail with err for node.
func (b *FakeBackend) Fail(node, op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[op+":"+node] = err
}

// SetCapabilities overrides the declared capabilities.
func (b *FakeBackend) SetCapabilities(caps chaos.Capabilities) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.caps = caps
}

// Calls returns the recorded calls as "op:node".
func (b *FakeBackend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.calls)
}

// State returns the current state of node's instance.
func (b *FakeBackend) State(node string) chaos.ProviderState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.instances[node].State
}

// AttachedVolumes returns the IDs of volumes attached to node's instance.
func (b *FakeBackend) AttachedVolumes(node string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, v := range b.instances[node].Volumes {
		if b.instances[node].Attached[v.VolumeID] {
			out = append(out, v.VolumeID)
		}
	}
	return out
}

// call records op and returns the instance for id plus any injected failure.
// The caller must hold b.mu.
func (b *FakeBackend) call(op, id string) (*FakeInstance, error) {
	inst, ok := b.byID[id]
	if !ok {
		return nil, fmt.Errorf("unknown instance %q", id)
	}
	node := id[len("i-"):]
	b.calls = append(b.calls, op+":"+node)
	if err := b.failures[op+":"+node]; err != nil {
		return nil, err
	}
	return inst, nil
}

func (b *FakeBackend) transition(op, id string, state chaos.ProviderState) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	inst, err := b.call(op, id)
	if err != nil {
		return err
	}
	if !inst.Stuck {
		inst.State = state
	}
	return nil
}

// ResolveInstanceID implements chaos.CloudBackend.
func (b *FakeBackend) ResolveInstanceID(_ context.Context, node string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "resolve:"+node)
	if err := b.failures["resolve:"+node]; err != nil {
		return "", err
	}
	inst, ok := b.instances[node]
	if !ok {
		return "", &chaos.NotFoundError{NodeName: node}
	}
	return inst.ID, nil
}

// Start implements chaos.CloudBackend.
func (b *FakeBackend) Start(_ context.Context, id string) error {
	return b.transition("start", id, chaos.StateRunning)
}

// Stop implements chaos.CloudBackend.
func (b *FakeBackend) Stop(_ context.Context, id string) error {
	return b.transition("stop", id, chaos.StateStopped)
}

// Reboot implements chaos.CloudBackend.
func (b *FakeBackend) Reboot(_ context.Context, id string, _ bool) error {
	return b.transition("reboot", id, chaos.StateRunning)
}

// Terminate implements chaos.CloudBackend.
func (b *FakeBackend) Terminate(_ context.Context, id string) error {
	return b.transition("terminate", id, chaos.StateTerminated)
}

// Status implements chaos.CloudBackend. Status calls are not recorded.
func (b *FakeBackend) Status(_ context.Context, id string) (chaos.ProviderState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	inst, ok := b.byID[id]
	if !ok {
		return chaos.StateUnknown, fmt.Errorf("unknown instance %q", id)
	}
	if err := b.failures["status:"+id[len("i-"):]]; err != nil {
		return chaos.StateUnknown, err
	}
	return inst.State, nil
}

// Capabilities implements chaos.CloudBackend.
func (b *FakeBackend) Capabilities() chaos.Capabilities {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.caps
}

// NonRootVolumes implements chaos.VolumeManager.
func (b *FakeBackend) NonRootVolumes(_ context.Context, id string) (chaos.AttachmentSnapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	inst, err := b.call("volumes", id)
	if err != nil {
		return chaos.AttachmentSnapshot{}, err
	}
	var attached []chaos.VolumeAttachment
	for _, v := range inst.Volumes {
		if inst.Attached[v.VolumeID] {
			attached = append(attached, v)
		}
	}
	return chaos.NewAttachmentSnapshot(id, attached), nil
}

// Detach implements chaos.VolumeManager.
func (b *FakeBackend) Detach(_ context.Context, id string, volumeIDs []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	inst, err := b.call("detach", id)
	if err != nil {
		return err
	}
	for _, v := range volumeIDs {
		if !inst.Attached[v] {
			return fmt.Errorf("volume %s is not attached", v)
		}
		inst.Attached[v] = false
	}
	return nil
}

// Attach implements chaos.VolumeManager.
func (b *FakeBackend) Attach(_ context.Context, snapshot chaos.AttachmentSnapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	inst, err := b.call("attach", snapshot.InstanceID())
	if err != nil {
		return err
	}
	for _, v := range snapshot.VolumeIDs() {
		if inst.Attached[v] {
			return fmt.Errorf("volume %s is already attached", v)
		}
		inst.Attached[v] = true
	}
	return nil
}

// FakeRemote records remote commands per node.
type FakeRemote struct {
	mu       sync.Mutex
	commands map[string][]string
	failures map[string]error
}

// NewFakeRemote returns an executor on which every command succeeds.
func NewFakeRemote() *FakeRemote {
	return &FakeRemote{commands: map[string][]string{}, failures: map[string]error{}}
}

// Fail makes every command on node fail with err.
func (r *FakeRemote) Fail(node string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[node] = err
}

// Commands returns the commands run on node.
func (r *FakeRemote) Commands(node string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.commands[node])
}

// Run implements chaos.RemoteExecutor.
func (r *FakeRemote) Run(_ context.Context, node, command string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[node] = append(r.commands[node], command)
	if err := r.failures[node]; err != nil {
		return "", err
	}
	return "", nil
}

// ErrInjected is a convenience error for failure injection.
var ErrInjected = errors.New("injected failure")
