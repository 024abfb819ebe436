package wizard

import (
	"github.com/charmbracelet/huh"

	"github.com/imamik/nodechaos/internal/chaos"
	"github.com/imamik/nodechaos/internal/config"
)

// Target modes.
const (
	TargetLabel = "label"
	TargetName  = "name"
)

// CloudOptions lists the selectable cloud backends.
var CloudOptions = []huh.Option[string]{
	huh.NewOption("Hetzner Cloud", string(config.CloudHetzner)),
	huh.NewOption("AWS EC2", string(config.CloudAWS)),
	huh.NewOption("Generic (no cloud API, SSH only)", string(config.CloudGeneric)),
}

// TargetOptions lists the ways nodes can be picked.
var TargetOptions = []huh.Option[string]{
	huh.NewOption("Label selector", TargetLabel),
	huh.NewOption("Explicit node names", TargetName),
}

// AWSRegions contains commonly used AWS regions. An empty value uses the
// default credential chain's region.
var AWSRegions = []huh.Option[string]{
	huh.NewOption("From environment / profile", ""),
	huh.NewOption("us-east-1", "us-east-1"),
	huh.NewOption("us-west-2", "us-west-2"),
	huh.NewOption("eu-central-1", "eu-central-1"),
	huh.NewOption("eu-west-1", "eu-west-1"),
	huh.NewOption("ap-southeast-1", "ap-southeast-1"),
}

var actionLabels = map[config.Action]string{
	config.ActionStart:            "Start node",
	config.ActionStop:             "Stop node",
	config.ActionStopStart:        "Stop, wait, start node",
	config.ActionReboot:           "Reboot node",
	config.ActionTerminate:        "Terminate node (destructive)",
	config.ActionDiskDetachAttach: "Detach and re-attach data disks",
	config.ActionStopKubelet:      "Stop kubelet",
	config.ActionRestartKubelet:   "Restart kubelet",
	config.ActionStopStartKubelet: "Stop, wait, start kubelet",
	config.ActionCrash:            "Crash kernel (sysrq)",
}

// ActionsFor returns the actions offered for a cloud type. The generic
// backend has no cloud API, so only remote actions and sysfs disk faults
// are offered.
func ActionsFor(cloud config.CloudType) []config.Action {
	if cloud == config.CloudGeneric {
		out := append([]config.Action{}, chaos.RemoteActions...)
		return append(out, config.ActionDiskDetachAttach)
	}
	return append([]config.Action{}, config.AllActions...)
}

// ActionOptions converts actions to huh options.
func ActionOptions(actions []config.Action) []huh.Option[string] {
	opts := make([]huh.Option[string], 0, len(actions))
	for _, a := range actions {
		label := actionLabels[a]
		if label == "" {
			label = string(a)
		}
		opts = append(opts, huh.NewOption(label, string(a)))
	}
	return opts
}
