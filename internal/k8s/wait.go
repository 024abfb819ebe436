package k8s

import (
	"context"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/imamik/nodechaos/internal/util/retry"
)

// WatchNodeCondition waits until the node's Ready condition matches status
// and returns how long that took. True must be observed exactly; Unknown and
// False both match any not-ready state, including a node that was removed.
// Transient API errors are retried until the timeout. On timeout the error
// wraps retry.ErrPollTimeout.
func (c *Client) WatchNodeCondition(ctx context.Context, name string, status corev1.ConditionStatus, timeout time.Duration) (time.Duration, error) {
	elapsed, err := retry.Poll(ctx, c.clock, c.pollInterval, timeout, func(ctx context.Context) (bool, error) {
		node, err := c.clientset.CoreV1().Nodes().Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			if apierrors.IsNotFound(err) {
				return status != corev1.ConditionTrue, nil
			}
			return false, nil
		}
		return conditionMatches(readyStatus(node), status), nil
	})
	if err != nil {
		return elapsed, fmt.Errorf("node %s Ready=%s: %w", name, status, err)
	}
	return elapsed, nil
}

func conditionMatches(current, want corev1.ConditionStatus) bool {
	if want == corev1.ConditionTrue {
		return current == corev1.ConditionTrue
	}
	return current != corev1.ConditionTrue
}
