package chaos

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/nodechaos/internal/config"
)

func TestAffectedNode_RecordAtMostOnce(t *testing.T) {
	n := NewAffectedNode("worker-1", config.ActionStop, "e1")

	assert.True(t, n.Record(TransitionStopped, 3*time.Second))
	assert.False(t, n.Record(TransitionStopped, 9*time.Second))

	d, ok := n.Duration(TransitionStopped)
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, d)
}

func TestAffectedNode_NegativeDurationClamped(t *testing.T) {
	n := NewAffectedNode("worker-1", config.ActionStart, "e1")
	n.Record(TransitionRunning, -2*time.Second)
	n.SetExtra(ExtraCloudRunningTime, -time.Second)

	assert.Equal(t, 0.0, n.Transitions[TransitionRunning])
	assert.Equal(t, 0.0, n.Extras[ExtraCloudRunningTime])
}

func TestAffectedNode_FailKeepsWorstOutcome(t *testing.T) {
	n := NewAffectedNode("worker-1", config.ActionStart, "e1")
	n.Fail(OutcomeCloudTimeout, assert.AnError)
	n.Fail(OutcomeClusterTimeout, nil)

	assert.Equal(t, OutcomeCloudTimeout, n.Outcome)
	assert.Equal(t, assert.AnError.Error(), n.Error)
}

func TestLedger_AppendCopies(t *testing.T) {
	l := NewLedger()
	n := NewAffectedNode("worker-1", config.ActionStop, "e1")
	n.Record(TransitionStopped, time.Second)
	l.Append(*n)

	n.Transitions[TransitionRunning] = 5
	assert.NotContains(t, l.Entries()[0].Transitions, TransitionRunning)

	entries := l.Entries()
	entries[0].Transitions[TransitionTerminated] = 1
	assert.NotContains(t, l.Entries()[0].Transitions, TransitionTerminated)
}

func TestLedger_MergeCollapsesSharedEvents(t *testing.T) {
	l := NewLedger()

	stop := NewAffectedNode("worker-1", config.ActionStopStart, "e1")
	stop.NodeID = "i-1"
	stop.Record(TransitionStopped, 4*time.Second)
	l.Append(*stop)

	other := NewAffectedNode("worker-2", config.ActionStopStart, "e2")
	other.Record(TransitionStopped, time.Second)
	l.Append(*other)

	start := NewAffectedNode("worker-1", config.ActionStopStart, "e1")
	start.Record(TransitionRunning, 6*time.Second)
	start.Record(TransitionStopped, 99*time.Second)
	start.Fail(OutcomeClusterTimeout, nil)
	l.Append(*start)

	l.Merge()
	entries := l.Entries()
	require.Len(t, entries, 2)

	merged := entries[0]
	assert.Equal(t, "worker-1", merged.NodeName)
	assert.Equal(t, "i-1", merged.NodeID)
	assert.Equal(t, 4.0, merged.Transitions[TransitionStopped], "first value wins")
	assert.Equal(t, 6.0, merged.Transitions[TransitionRunning])
	assert.Equal(t, OutcomeClusterTimeout, merged.Outcome)
	assert.Equal(t, "worker-2", entries[1].NodeName)
}

func TestLedger_Join(t *testing.T) {
	a, b := NewLedger(), NewLedger()
	a.Append(*NewAffectedNode("worker-1", config.ActionStop, "e1"))
	b.Append(*NewAffectedNode("worker-2", config.ActionStop, "e2"))

	l := NewLedger()
	l.Join(a, nil, b)
	require.Equal(t, 2, l.Len())
	assert.Equal(t, "worker-1", l.Entries()[0].NodeName)
	assert.Equal(t, "worker-2", l.Entries()[1].NodeName)
}

func TestLedgerProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	transitions := []Transition{TransitionRunning, TransitionStopped, TransitionTerminated, TransitionReady, TransitionNotReady}

	properties.Property("merge is idempotent", prop.ForAll(
		func(events []int, secs []int) bool {
			l := NewLedger()
			for i, ev := range events {
				n := NewAffectedNode("node", config.ActionStopStart, string(rune('a'+ev%4)))
				n.Record(transitions[i%len(transitions)], time.Duration(secs[i%len(secs)])*time.Second)
				l.Append(*n)
			}
			l.Merge()
			once := l.Entries()
			l.Merge()
			twice := l.Entries()
			if len(once) != len(twice) {
				return false
			}
			for i := range once {
				if once[i].EventID != twice[i].EventID || len(once[i].Transitions) != len(twice[i].Transitions) {
					return false
				}
				for k, v := range once[i].Transitions {
					if twice[i].Transitions[k] != v {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 100)),
		gen.SliceOfN(5, gen.IntRange(-30, 300)),
	))

	properties.Property("recorded durations are never negative", prop.ForAll(
		func(secs []int) bool {
			n := NewAffectedNode("node", config.ActionStop, "e")
			for i, s := range secs {
				n.Record(transitions[i%len(transitions)], time.Duration(s)*time.Second)
			}
			for _, v := range n.Transitions {
				if v < 0 {
					return false
				}
			}
			return len(n.Transitions) <= len(transitions)
		},
		gen.SliceOf(gen.IntRange(-1000, 1000)),
	))

	properties.TestingRun(t)
}
