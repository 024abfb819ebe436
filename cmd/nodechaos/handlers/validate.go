package handlers

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/imamik/nodechaos/internal/chaos"
	"github.com/imamik/nodechaos/internal/config"
)

// validateOut receives the validate report.
var validateOut io.Writer = os.Stdout

// Validate loads a scenario file and checks every entry, including the
// per-cloud action support, without contacting any API.
func Validate(_ context.Context, configPath string) error {
	file, err := loadScenarioFile(configPath)
	if err != nil {
		return &ExitError{Code: ExitConfig, Err: err}
	}

	var problems []string
	for i := range file.NodeScenarios {
		entry := &file.NodeScenarios[i]
		for _, a := range entry.Actions {
			if supportedActions(entry).Has(a) {
				continue
			}
			if a == config.ActionDiskDetachAttach {
				problems = append(problems, fmt.Sprintf("node_scenarios[%d]: action %q needs disk_path with cloud type %q", i, a, entry.Cloud()))
				continue
			}
			problems = append(problems, fmt.Sprintf("node_scenarios[%d]: action %q is not supported by cloud type %q", i, a, entry.Cloud()))
		}
	}
	if len(problems) > 0 {
		return &ExitError{Code: ExitConfig, Err: chaos.Configf("%s", strings.Join(problems, "; "))}
	}

	_, _ = fmt.Fprintf(validateOut, "%s: %d scenario entries OK\n", configPath, len(file.NodeScenarios))
	for i, e := range file.NodeScenarios {
		_, _ = fmt.Fprintf(validateOut, "  [%d] %s %s -> %v (runs=%d, parallel=%t)\n", i, e.Cloud(), describeTarget(&e), e.Actions, e.Runs, e.Parallel)
	}
	return nil
}

// supportedActions mirrors the capabilities of the built-in backends. The
// generic backend manages no volumes, so it offers disk faults only through
// sysfs when disk_path is set.
func supportedActions(entry *config.ScenarioEntry) chaos.ActionSet {
	if entry.Cloud() == config.CloudGeneric {
		if entry.DiskPath == "" {
			return chaos.NewActionSet(chaos.RemoteActions)
		}
		return chaos.NewActionSet(chaos.RemoteActions, []config.Action{config.ActionDiskDetachAttach})
	}
	return chaos.NewActionSet(chaos.CloudActions, chaos.RemoteActions)
}

func describeTarget(e *config.ScenarioEntry) string {
	if names := e.NodeNames(); len(names) > 0 {
		return "nodes " + strings.Join(names, ",")
	}
	count := "all"
	if e.Count() > 0 {
		count = fmt.Sprint(e.Count())
	}
	target := fmt.Sprintf("%s of %q", count, e.LabelSelector)
	if e.ExcludeLabel != "" {
		target += fmt.Sprintf(" excluding %q", e.ExcludeLabel)
	}
	return target
}
