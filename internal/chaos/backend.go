package chaos

import (
	"context"
	"slices"
	"time"

	corev1 "k8s.io/api/core/v1"

	"github.com/imamik/nodechaos/internal/config"
)

// ProviderState is a backend-neutral view of an instance's power state.
type ProviderState string

// Provider states reported by CloudBackend.Status.
const (
	StateRunning    ProviderState = "running"
	StateStopped    ProviderState = "stopped"
	StateTerminated ProviderState = "terminated"
	StatePending    ProviderState = "pending"
	StateStopping   ProviderState = "stopping"
	StateUnknown    ProviderState = "unknown"
)

// CloudActions are the actions that mutate instances through a cloud API.
var CloudActions = []config.Action{
	config.ActionStart,
	config.ActionStop,
	config.ActionStopStart,
	config.ActionReboot,
	config.ActionTerminate,
	config.ActionDiskDetachAttach,
}

// RemoteActions are the actions carried out by remote commands on the node.
var RemoteActions = []config.Action{
	config.ActionStopKubelet,
	config.ActionRestartKubelet,
	config.ActionStopStartKubelet,
	config.ActionCrash,
}

// ActionSet is a set of supported actions.
type ActionSet map[config.Action]struct{}

// NewActionSet builds a set from the given action lists.
func NewActionSet(lists ...[]config.Action) ActionSet {
	set := ActionSet{}
	for _, list := range lists {
		for _, a := range list {
			set[a] = struct{}{}
		}
	}
	return set
}

// Has reports whether a is in the set.
func (s ActionSet) Has(a config.Action) bool {
	_, ok := s[a]
	return ok
}

// Capabilities describes what a backend can do.
type Capabilities struct {
	Actions ActionSet
	// Concurrent is false when the backend's client must not be used from
	// several workers at once. The orchestrator then dispatches sequentially.
	Concurrent bool
}

// CloudBackend drives the instance lifecycle through a provider API.
type CloudBackend interface {
	// ResolveInstanceID maps a Kubernetes node name to a provider instance
	// ID. It returns *NotFoundError when no instance matches.
	ResolveInstanceID(ctx context.Context, nodeName string) (string, error)
	Start(ctx context.Context, id string) error
	Stop(ctx context.Context, id string) error
	Reboot(ctx context.Context, id string, soft bool) error
	Terminate(ctx context.Context, id string) error
	Status(ctx context.Context, id string) (ProviderState, error)
	Capabilities() Capabilities
}

// StateWaiter is implemented by backends with a native wait primitive.
// Backends without one are polled through Status.
type StateWaiter interface {
	WaitUntil(ctx context.Context, id string, state ProviderState, timeout, interval time.Duration) (time.Duration, error)
}

// VolumeManager is implemented by backends that can detach and reattach
// block volumes.
type VolumeManager interface {
	NonRootVolumes(ctx context.Context, id string) (AttachmentSnapshot, error)
	Detach(ctx context.Context, id string, volumeIDs []string) error
	Attach(ctx context.Context, snapshot AttachmentSnapshot) error
}

// ClusterProbe answers questions about node health from the Kubernetes API.
type ClusterProbe interface {
	// ListKillableNodes returns the Ready nodes matching selector. An empty
	// selector matches every node.
	ListKillableNodes(ctx context.Context, selector string) ([]string, error)
	// WatchNodeCondition waits until the node's Ready condition has status
	// and returns the time it took.
	WatchNodeCondition(ctx context.Context, node string, status corev1.ConditionStatus, timeout time.Duration) (time.Duration, error)
}

// RemoteExecutor runs shell commands on a node.
type RemoteExecutor interface {
	Run(ctx context.Context, nodeName, command string) (string, error)
}

// VolumeAttachment is one non-root volume and the device it was attached as.
type VolumeAttachment struct {
	VolumeID string `json:"volumeId"`
	Device   string `json:"device,omitempty"`
}

// AttachmentSnapshot records the non-root volumes of an instance before they
// are detached so they can be reattached exactly. It is immutable.
type AttachmentSnapshot struct {
	instanceID  string
	attachments []VolumeAttachment
}

// NewAttachmentSnapshot copies attachments into a new snapshot.
func NewAttachmentSnapshot(instanceID string, attachments []VolumeAttachment) AttachmentSnapshot {
	return AttachmentSnapshot{
		instanceID:  instanceID,
		attachments: slices.Clone(attachments),
	}
}

// InstanceID returns the instance the volumes belong to.
func (s AttachmentSnapshot) InstanceID() string { return s.instanceID }

// Attachments returns a copy of the recorded attachments.
func (s AttachmentSnapshot) Attachments() []VolumeAttachment {
	return slices.Clone(s.attachments)
}

// VolumeIDs returns the recorded volume IDs in order.
func (s AttachmentSnapshot) VolumeIDs() []string {
	ids := make([]string, len(s.attachments))
	for i, a := range s.attachments {
		ids[i] = a.VolumeID
	}
	return ids
}

// Empty reports whether the instance had no non-root volumes.
func (s AttachmentSnapshot) Empty() bool { return len(s.attachments) == 0 }
