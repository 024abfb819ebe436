package wizard

import (
	"strings"

	"github.com/imamik/nodechaos/internal/config"
)

// BuildFile converts wizard answers into a defaulted and validated
// scenario file with a single entry.
func BuildFile(r *Result) (*config.File, error) {
	entry := config.ScenarioEntry{
		CloudType:       r.CloudType,
		Region:          strings.TrimSpace(r.Region),
		Runs:            r.Runs,
		TimeoutSeconds:  r.Timeout,
		DurationSeconds: r.Duration,
		Parallel:        r.Parallel,
		SoftReboot:      r.SoftReboot,
		DiskPath:        strings.TrimSpace(r.DiskPath),
	}

	for _, a := range r.Actions {
		entry.Actions = append(entry.Actions, config.Action(a))
	}

	if r.TargetMode == TargetName {
		entry.NodeName = strings.Join(config.SplitList(r.NodeNames), ",")
	} else {
		entry.LabelSelector = strings.TrimSpace(r.LabelSelector)
		entry.ExcludeLabel = strings.TrimSpace(r.ExcludeLabel)
		count := r.InstanceCount
		entry.InstanceCount = &count
	}

	if !r.KubeCheck {
		disabled := false
		entry.KubeCheck = &disabled
	}

	if r.NeedsRemote() {
		entry.SSHUser = strings.TrimSpace(r.SSHUser)
		entry.SSHPrivateKey = strings.TrimSpace(r.SSHKeyPath)
		entry.HelperNodeIP = strings.TrimSpace(r.HelperNode)
	}

	entry.ApplyDefaults()
	f := &config.File{NodeScenarios: []config.ScenarioEntry{entry}}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}
