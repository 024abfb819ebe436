// Package k8s provides the Kubernetes side of the chaos engine: listing
// killable nodes and watching their Ready condition.
package k8s

import (
	"context"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/utils/clock"
)

// DefaultPollInterval is the cadence of node condition checks.
const DefaultPollInterval = 5 * time.Second

// Client wraps the Kubernetes API operations used by chaos scenarios.
type Client struct {
	clientset    kubernetes.Interface
	clock        clock.Clock
	pollInterval time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithClock overrides the clock used when polling node conditions.
func WithClock(clk clock.Clock) Option {
	return func(c *Client) {
		c.clock = clk
	}
}

// WithPollInterval overrides the node condition poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		c.pollInterval = d
	}
}

// NewClient creates a client from a kubeconfig file. An empty path falls
// back to $KUBECONFIG, ~/.kube/config and finally in-cluster config.
func NewClient(kubeconfigPath string, opts ...Option) (*Client, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfigPath != "" {
		rules.ExplicitPath = kubeconfigPath
	}
	config, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{}).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to build kubeconfig: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	return NewForClientset(clientset, opts...), nil
}

// NewForClientset wraps an existing clientset.
func NewForClientset(clientset kubernetes.Interface, opts ...Option) *Client {
	c := &Client{
		clientset:    clientset,
		clock:        clock.RealClock{},
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListKillableNodes returns the names of Ready nodes matching selector.
// An empty selector matches every node.
func (c *Client) ListKillableNodes(ctx context.Context, selector string) ([]string, error) {
	nodes, err := c.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes with selector %q: %w", selector, err)
	}

	var names []string
	for i := range nodes.Items {
		if isNodeReady(&nodes.Items[i]) {
			names = append(names, nodes.Items[i].Name)
		}
	}
	return names, nil
}

// NodeAddress returns the internal IP of a node, falling back to its
// external IP and then its hostname.
func (c *Client) NodeAddress(ctx context.Context, name string) (string, error) {
	node, err := c.clientset.CoreV1().Nodes().Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to get node %s: %w", name, err)
	}

	var external, hostname string
	for _, addr := range node.Status.Addresses {
		switch addr.Type {
		case corev1.NodeInternalIP:
			return addr.Address, nil
		case corev1.NodeExternalIP:
			if external == "" {
				external = addr.Address
			}
		case corev1.NodeHostName:
			if hostname == "" {
				hostname = addr.Address
			}
		}
	}
	switch {
	case external != "":
		return external, nil
	case hostname != "":
		return hostname, nil
	}
	return "", fmt.Errorf("node %s has no internal, external or hostname address", name)
}

// isNodeReady checks if a node has the Ready condition set to True.
func isNodeReady(node *corev1.Node) bool {
	return readyStatus(node) == corev1.ConditionTrue
}

// readyStatus returns the status of the node's Ready condition, Unknown when
// the condition is missing.
func readyStatus(node *corev1.Node) corev1.ConditionStatus {
	for _, cond := range node.Status.Conditions {
		if cond.Type == corev1.NodeReady {
			return cond.Status
		}
	}
	return corev1.ConditionUnknown
}
