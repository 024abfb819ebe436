package chaos

import (
	"maps"
	"time"

	"github.com/imamik/nodechaos/internal/config"
)

// Transition is a state change whose elapsed time is recorded.
type Transition string

// Recorded transitions. running, stopped and terminated are observed through
// the cloud backend; ready and not_ready through the cluster probe.
const (
	TransitionRunning    Transition = "running"
	TransitionStopped    Transition = "stopped"
	TransitionTerminated Transition = "terminated"
	TransitionReady      Transition = "ready"
	TransitionNotReady   Transition = "not_ready"
)

// Outcome is the terminal state of one action-iteration.
type Outcome string

// Outcomes ordered from best to worst.
const (
	OutcomeRecorded       Outcome = "recorded"
	OutcomeClusterTimeout Outcome = "cluster_timeout"
	OutcomeCloudTimeout   Outcome = "cloud_timeout"
	OutcomeBackendError   Outcome = "backend_error"
)

var outcomeRank = map[Outcome]int{
	OutcomeRecorded:       0,
	OutcomeClusterTimeout: 1,
	OutcomeCloudTimeout:   2,
	OutcomeBackendError:   3,
}

// worse returns the more severe of a and b.
func worse(a, b Outcome) Outcome {
	if outcomeRank[b] > outcomeRank[a] {
		return b
	}
	return a
}

// AffectedNode is the record of one node action-iteration.
type AffectedNode struct {
	NodeName    string                 `json:"nodeName"`
	NodeID      string                 `json:"nodeId,omitempty"`
	Action      config.Action          `json:"action"`
	EventID     string                 `json:"eventId"`
	Transitions map[Transition]float64 `json:"transitions,omitempty"`
	Extras      map[string]float64     `json:"extras,omitempty"`
	Outcome     Outcome                `json:"outcome"`
	Error       string                 `json:"error,omitempty"`
}

// NewAffectedNode starts a record for one action-iteration.
func NewAffectedNode(nodeName string, action config.Action, eventID string) *AffectedNode {
	return &AffectedNode{
		NodeName:    nodeName,
		Action:      action,
		EventID:     eventID,
		Transitions: map[Transition]float64{},
		Extras:      map[string]float64{},
		Outcome:     OutcomeRecorded,
	}
}

// Record stores d as the elapsed time of t. A transition is recorded at most
// once; later calls leave the first value untouched and return false.
// Negative durations are stored as zero.
func (n *AffectedNode) Record(t Transition, d time.Duration) bool {
	if n.Transitions == nil {
		n.Transitions = map[Transition]float64{}
	}
	if _, ok := n.Transitions[t]; ok {
		return false
	}
	n.Transitions[t] = seconds(d)
	return true
}

// Duration returns the recorded elapsed time of t.
func (n *AffectedNode) Duration(t Transition) (time.Duration, bool) {
	s, ok := n.Transitions[t]
	if !ok {
		return 0, false
	}
	return time.Duration(s * float64(time.Second)), true
}

// SetExtra stores a scenario-specific timing.
func (n *AffectedNode) SetExtra(key string, d time.Duration) {
	if n.Extras == nil {
		n.Extras = map[string]float64{}
	}
	n.Extras[key] = seconds(d)
}

// Fail marks the record with a terminal failure.
func (n *AffectedNode) Fail(outcome Outcome, err error) {
	n.Outcome = worse(n.Outcome, outcome)
	if err != nil && n.Error == "" {
		n.Error = err.Error()
	}
}

func (n AffectedNode) clone() AffectedNode {
	n.Transitions = maps.Clone(n.Transitions)
	n.Extras = maps.Clone(n.Extras)
	if n.Transitions == nil {
		n.Transitions = map[Transition]float64{}
	}
	if n.Extras == nil {
		n.Extras = map[string]float64{}
	}
	return n
}

func seconds(d time.Duration) float64 {
	if d < 0 {
		return 0
	}
	return d.Seconds()
}

// Ledger is an ordered, append-only list of affected nodes. It is owned by a
// single worker and is not safe for concurrent use; parallel workers each
// keep their own ledger and the results are joined afterwards.
type Ledger struct {
	entries []AffectedNode
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Append copies n into the ledger.
func (l *Ledger) Append(n AffectedNode) {
	l.entries = append(l.entries, n.clone())
}

// Join appends the entries of others in order.
func (l *Ledger) Join(others ...*Ledger) {
	for _, o := range others {
		if o == nil {
			continue
		}
		for _, e := range o.entries {
			l.Append(e)
		}
	}
}

// Merge collapses entries that share an EventID into the first of them.
// Transitions are unioned with the earliest value winning, extras likewise,
// and the worst outcome is kept. Merge is idempotent.
func (l *Ledger) Merge() {
	index := make(map[string]int, len(l.entries))
	merged := l.entries[:0:0]
	for _, e := range l.entries {
		i, seen := index[e.EventID]
		if !seen || e.EventID == "" {
			index[e.EventID] = len(merged)
			merged = append(merged, e)
			continue
		}
		dst := &merged[i]
		if dst.NodeID == "" {
			dst.NodeID = e.NodeID
		}
		for t, v := range e.Transitions {
			if _, ok := dst.Transitions[t]; !ok {
				dst.Transitions[t] = v
			}
		}
		for k, v := range e.Extras {
			if _, ok := dst.Extras[k]; !ok {
				dst.Extras[k] = v
			}
		}
		dst.Outcome = worse(dst.Outcome, e.Outcome)
		if dst.Error == "" {
			dst.Error = e.Error
		}
	}
	l.entries = merged
}

// Entries returns a deep copy of the ledger entries.
func (l *Ledger) Entries() []AffectedNode {
	out := make([]AffectedNode, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.clone()
	}
	return out
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	return len(l.entries)
}
