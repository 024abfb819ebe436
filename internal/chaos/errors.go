package chaos

import (
	"errors"
	"fmt"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
)

// Sentinel errors. Every typed error below matches exactly one of them with
// errors.Is so callers can classify failures without type switches.
var (
	ErrConfiguration       = errors.New("invalid scenario configuration")
	ErrSelection           = errors.New("node selection failed")
	ErrBackend             = errors.New("cloud backend error")
	ErrCloudStateTimeout   = errors.New("cloud state timeout")
	ErrClusterStateTimeout = errors.New("cluster state timeout")
)

// ErrNoMatchingNodes is returned when no killable node matches the target.
var ErrNoMatchingNodes = fmt.Errorf("%w: no killable nodes match the target", ErrSelection)

// ConfigurationError reports an invalid or unsupported scenario entry.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %v", ErrConfiguration, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// Configf returns a ConfigurationError with a formatted message.
func Configf(format string, args ...any) error {
	return &ConfigurationError{Err: fmt.Errorf(format, args...)}
}

// NodeNotFoundError reports explicitly named nodes that are not killable.
type NodeNotFoundError struct {
	Names []string
}

func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("%s: nodes not found or not ready: %s", ErrSelection, strings.Join(e.Names, ", "))
}

// Is reports whether target is ErrSelection.
func (e *NodeNotFoundError) Is(target error) bool { return target == ErrSelection }

// NotFoundError is returned by a CloudBackend that cannot map a node name to
// an instance. It is never retried.
type NotFoundError struct {
	NodeName string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no cloud instance found for node %q", e.NodeName)
}

// BackendError wraps a failed cloud backend or remote command call.
type BackendError struct {
	Op   string
	Node string
	Err  error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", ErrBackend, e.Op, e.Node, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Is reports whether target is ErrBackend.
func (e *BackendError) Is(target error) bool { return target == ErrBackend }

// CloudStateTimeoutError reports that the provider never reported the
// expected instance state within the timeout.
type CloudStateTimeoutError struct {
	Node       string
	InstanceID string
	State      ProviderState
	Timeout    time.Duration
	Elapsed    time.Duration
}

func (e *CloudStateTimeoutError) Error() string {
	return fmt.Sprintf("%s: node %s (%s) did not reach %s within %s",
		ErrCloudStateTimeout, e.Node, e.InstanceID, e.State, e.Timeout)
}

// Is reports whether target is ErrCloudStateTimeout.
func (e *CloudStateTimeoutError) Is(target error) bool { return target == ErrCloudStateTimeout }

// ClusterStateTimeoutError reports that a node's Ready condition never
// reached the expected status within the timeout.
type ClusterStateTimeoutError struct {
	Node    string
	Status  corev1.ConditionStatus
	Timeout time.Duration
}

func (e *ClusterStateTimeoutError) Error() string {
	return fmt.Sprintf("%s: node %s Ready condition did not become %s within %s",
		ErrClusterStateTimeout, e.Node, e.Status, e.Timeout)
}

// Is reports whether target is ErrClusterStateTimeout.
func (e *ClusterStateTimeoutError) Is(target error) bool { return target == ErrClusterStateTimeout }
