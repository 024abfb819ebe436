package handlers

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/imamik/nodechaos/internal/chaos"
	"github.com/imamik/nodechaos/internal/telemetry"
)

var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorYellow = lipgloss.Color("#eab308")
	colorRed    = lipgloss.Color("#ef4444")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorDim    = lipgloss.Color("#6b7280")
	colorWhite  = lipgloss.Color("#f9fafb")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBlue)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	greenStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	yellowStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	redStyle = lipgloss.NewStyle().
			Foreground(colorRed)
)

// transitionOrder fixes the column order of recorded transitions.
var transitionOrder = []chaos.Transition{
	chaos.TransitionStopped,
	chaos.TransitionNotReady,
	chaos.TransitionTerminated,
	chaos.TransitionRunning,
	chaos.TransitionReady,
}

// renderRunSummary produces a lipgloss-styled summary of a run.
func renderRunSummary(r *telemetry.Report) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(titleStyle.Render("  nodechaos run " + r.RunID))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("  " + strings.Repeat("═", 44)))
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render("  Scenario Entries"))
	b.WriteString("\n")
	for i, e := range r.Entries {
		status := greenStyle.Render("ok")
		if e.Error != "" {
			status = redStyle.Render("failed")
		}
		b.WriteString(fmt.Sprintf("    [%d] %-8s %-6s %d node action(s)  %s\n", i, e.CloudType, status, e.Nodes, joinActions(e)))
		if e.Error != "" {
			b.WriteString(redStyle.Render("        " + e.Error))
			b.WriteString("\n")
		}
	}

	if len(r.AffectedNodes) > 0 {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render("  Affected Nodes"))
		b.WriteString("\n")
		for _, n := range r.AffectedNodes {
			b.WriteString(fmt.Sprintf("    %-10s %-20s %-34s %s  %s\n",
				n.EventID, n.NodeName, n.Action, outcomeStyle(n.Outcome).Render(string(n.Outcome)), formatTransitions(n)))
		}
	}

	b.WriteString("\n")
	b.WriteString(sectionStyle.Render("  Summary"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("  " + strings.Repeat("─", 35)))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("    Duration:  %s\n", r.Duration().Round(time.Second)))
	b.WriteString(fmt.Sprintf("    Outcomes:  %s\n", formatOutcomes(r.Outcomes())))
	b.WriteString("    Result:    ")
	if r.Failed() {
		b.WriteString(redStyle.Render("FAILED"))
	} else {
		b.WriteString(greenStyle.Render("PASSED"))
	}
	b.WriteString("\n\n")

	return b.String()
}

func joinActions(e telemetry.EntryReport) string {
	names := make([]string, 0, len(e.Actions))
	for _, a := range e.Actions {
		names = append(names, string(a))
	}
	return dimStyle.Render(strings.Join(names, ", "))
}

func outcomeStyle(o chaos.Outcome) lipgloss.Style {
	switch o {
	case chaos.OutcomeRecorded:
		return greenStyle
	case chaos.OutcomeClusterTimeout:
		return yellowStyle
	default:
		return redStyle
	}
}

func formatTransitions(n chaos.AffectedNode) string {
	parts := make([]string, 0, len(n.Transitions))
	for _, t := range transitionOrder {
		if secs, ok := n.Transitions[t]; ok {
			parts = append(parts, fmt.Sprintf("%s=%.1fs", t, secs))
		}
	}
	if len(parts) == 0 {
		return dimStyle.Render("-")
	}
	return strings.Join(parts, " ")
}

func formatOutcomes(counts map[chaos.Outcome]int) string {
	if len(counts) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(counts))
	for o := range counts {
		keys = append(keys, string(o))
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[chaos.Outcome(k)]))
	}
	return strings.Join(parts, " ")
}
