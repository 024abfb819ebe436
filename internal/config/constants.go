package config

import "time"

// CloudType selects the cloud backend implementation for a scenario entry.
type CloudType string

// Supported cloud types. Aliases are normalized by [ParseCloudType].
const (
	CloudHetzner CloudType = "hetzner"
	CloudAWS     CloudType = "aws"
	CloudGeneric CloudType = "generic"
)

// cloudAliases maps accepted spellings to their canonical cloud type.
var cloudAliases = map[string]CloudType{
	"hetzner": CloudHetzner,
	"hcloud":  CloudHetzner,
	"aws":     CloudAWS,
	"generic": CloudGeneric,
	"bm":      CloudGeneric,
}

// ParseCloudType returns the canonical cloud type for s.
func ParseCloudType(s string) (CloudType, bool) {
	ct, ok := cloudAliases[s]
	return ct, ok
}

// Action names one chaos action of a scenario entry.
type Action string

// Supported actions.
const (
	ActionStart            Action = "node_start_scenario"
	ActionStop             Action = "node_stop_scenario"
	ActionStopStart        Action = "node_stop_start_scenario"
	ActionReboot           Action = "node_reboot_scenario"
	ActionTerminate        Action = "node_termination_scenario"
	ActionDiskDetachAttach Action = "node_disk_detach_attach_scenario"
	ActionStopKubelet      Action = "stop_kubelet_scenario"
	ActionRestartKubelet   Action = "restart_kubelet_scenario"
	ActionStopStartKubelet Action = "stop_start_kubelet_scenario"
	ActionCrash            Action = "node_crash_scenario"
)

// AllActions lists every action in a stable order.
var AllActions = []Action{
	ActionStart,
	ActionStop,
	ActionStopStart,
	ActionReboot,
	ActionTerminate,
	ActionDiskDetachAttach,
	ActionStopKubelet,
	ActionRestartKubelet,
	ActionStopStartKubelet,
	ActionCrash,
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	for _, known := range AllActions {
		if a == known {
			return true
		}
	}
	return false
}

// Defaults applied to unset scenario entry fields.
const (
	DefaultRuns          = 1
	DefaultInstanceCount = 1
	DefaultTimeout       = 180 * time.Second
	DefaultDuration      = 120 * time.Second
	DefaultPollInterval  = 15 * time.Second
	DefaultService       = "kubelet"
	DefaultSSHUser       = "root"
	DefaultSSHKeyPath    = "~/.ssh/id_rsa"
)
