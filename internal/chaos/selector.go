package chaos

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/imamik/nodechaos/internal/config"
)

// Target describes which nodes an entry acts on. Exactly one of NodeNames
// and LabelSelector is set.
type Target struct {
	NodeNames     []string
	LabelSelector string
	ExcludeLabel  string
}

// TargetFor builds the target of a scenario entry.
func TargetFor(e *config.ScenarioEntry) Target {
	return Target{
		NodeNames:     e.NodeNames(),
		LabelSelector: e.LabelSelector,
		ExcludeLabel:  e.ExcludeLabel,
	}
}

// Selector picks the nodes an action is applied to.
type Selector struct {
	probe ClusterProbe
	rng   *rand.Rand
}

// NewSelector returns a selector backed by probe. A nil rng is replaced by
// one seeded from the current time.
func NewSelector(probe ClusterProbe, rng *rand.Rand) *Selector {
	if rng == nil {
		// #nosec G404 -- node sampling is not security sensitive
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Selector{probe: probe, rng: rng}
}

// Select returns up to count distinct killable nodes for target. A count of
// zero, or one at least as large as the available set, returns every
// available node.
func (s *Selector) Select(ctx context.Context, target Target, count int) ([]string, error) {
	logger := log.FromContext(ctx)

	var available []string
	var err error
	if len(target.NodeNames) > 0 {
		available, err = s.byName(ctx, target.NodeNames)
	} else {
		available, err = s.bySelector(ctx, target.LabelSelector)
	}
	if err != nil {
		return nil, err
	}

	if target.ExcludeLabel != "" {
		excluded, err := s.probe.ListKillableNodes(ctx, target.ExcludeLabel)
		if err != nil {
			return nil, fmt.Errorf("%w: listing excluded nodes %q: %w", ErrSelection, target.ExcludeLabel, err)
		}
		available = subtract(available, excluded)
		if len(available) == 0 {
			return nil, fmt.Errorf("%w after excluding %q", ErrNoMatchingNodes, target.ExcludeLabel)
		}
	}

	if count <= 0 || count >= len(available) {
		if count > len(available) {
			logger.Info("Requested more nodes than available, selecting all",
				"requested", count, "available", len(available))
		}
		return available, nil
	}

	// Draw an index, remove it, repeat.
	pool := append([]string(nil), available...)
	selected := make([]string, 0, count)
	for range count {
		i := s.rng.Intn(len(pool))
		selected = append(selected, pool[i])
		pool = append(pool[:i], pool[i+1:]...)
	}
	return selected, nil
}

func (s *Selector) byName(ctx context.Context, names []string) ([]string, error) {
	killable, err := s.probe.ListKillableNodes(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("%w: listing nodes: %w", ErrSelection, err)
	}
	ready := make(map[string]bool, len(killable))
	for _, n := range killable {
		ready[n] = true
	}

	var missing []string
	for _, n := range dedupe(names) {
		if !ready[n] {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return nil, &NodeNotFoundError{Names: missing}
	}
	return dedupe(names), nil
}

func (s *Selector) bySelector(ctx context.Context, selectors string) ([]string, error) {
	var union []string
	for _, sel := range config.SplitList(selectors) {
		nodes, err := s.probe.ListKillableNodes(ctx, sel)
		if err != nil {
			return nil, fmt.Errorf("%w: listing nodes for %q: %w", ErrSelection, sel, err)
		}
		union = append(union, nodes...)
	}
	union = dedupe(union)
	if len(union) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoMatchingNodes, selectors)
	}
	return union, nil
}

// dedupe removes duplicates while keeping first-seen order.
func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func subtract(from, remove []string) []string {
	drop := make(map[string]bool, len(remove))
	for _, r := range remove {
		drop[r] = true
	}
	out := make([]string, 0, len(from))
	for _, f := range from {
		if !drop[f] {
			out = append(out, f)
		}
	}
	return out
}
