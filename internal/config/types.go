package config

import (
	"strings"
	"time"
)

// File is the top-level scenario file.
type File struct {
	NodeScenarios []ScenarioEntry `yaml:"node_scenarios"`
}

// ScenarioEntry is one declarative unit of chaos configuration: a target set,
// an ordered action list and timing parameters. Durations are expressed in
// whole seconds in YAML.
type ScenarioEntry struct {
	CloudType string   `yaml:"cloud_type"`
	Actions   []Action `yaml:"actions"`

	// Target selection. Exactly one of NodeName and LabelSelector is set.
	NodeName      string `yaml:"node_name,omitempty"`
	LabelSelector string `yaml:"label_selector,omitempty"`
	ExcludeLabel  string `yaml:"exclude_label,omitempty"`

	// InstanceCount is the number of nodes to select; 0 selects all.
	InstanceCount *int `yaml:"instance_count,omitempty"`
	// Runs is the number of iterations of each action per selected node.
	Runs int `yaml:"runs,omitempty"`

	TimeoutSeconds      int   `yaml:"timeout,omitempty"`
	DurationSeconds     int   `yaml:"duration,omitempty"`
	PollIntervalSeconds int   `yaml:"poll_interval,omitempty"`
	BackoffSeconds      int   `yaml:"backoff,omitempty"`
	Parallel            bool  `yaml:"parallel,omitempty"`
	KubeCheck           *bool `yaml:"kube_check,omitempty"`

	// Action-specific extras.
	DiskPath      string `yaml:"disk_path,omitempty"`
	SoftReboot    bool   `yaml:"soft_reboot,omitempty"`
	Service       string `yaml:"service,omitempty"`
	SSHPrivateKey string `yaml:"ssh_private_key,omitempty"`
	SSHUser       string `yaml:"ssh_user,omitempty"`
	HelperNodeIP  string `yaml:"helper_node_ip,omitempty"`
	Region        string `yaml:"region,omitempty"`
}

// ApplyDefaults fills unset fields with their defaults. backoff is accepted
// as an alias of poll_interval; poll_interval wins when both are set.
func (e *ScenarioEntry) ApplyDefaults() {
	if e.InstanceCount == nil {
		n := DefaultInstanceCount
		e.InstanceCount = &n
	}
	if e.Runs == 0 {
		e.Runs = DefaultRuns
	}
	if e.TimeoutSeconds == 0 {
		e.TimeoutSeconds = int(DefaultTimeout.Seconds())
	}
	if e.DurationSeconds == 0 {
		e.DurationSeconds = int(DefaultDuration.Seconds())
	}
	if e.PollIntervalSeconds == 0 {
		e.PollIntervalSeconds = e.BackoffSeconds
	}
	if e.PollIntervalSeconds == 0 {
		e.PollIntervalSeconds = int(DefaultPollInterval.Seconds())
	}
	if e.KubeCheck == nil {
		enabled := true
		e.KubeCheck = &enabled
	}
	if e.Service == "" {
		e.Service = DefaultService
	}
	if e.SSHUser == "" {
		e.SSHUser = DefaultSSHUser
	}
	if e.SSHPrivateKey == "" {
		e.SSHPrivateKey = DefaultSSHKeyPath
	}
}

// Cloud returns the canonical cloud type. Unknown values are returned as-is
// and rejected by Validate.
func (e *ScenarioEntry) Cloud() CloudType {
	if ct, ok := ParseCloudType(strings.ToLower(strings.TrimSpace(e.CloudType))); ok {
		return ct
	}
	return CloudType(e.CloudType)
}

// Count returns the configured instance count (default applied).
func (e *ScenarioEntry) Count() int {
	if e.InstanceCount == nil {
		return DefaultInstanceCount
	}
	return *e.InstanceCount
}

// Timeout returns the per-wait timeout.
func (e *ScenarioEntry) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// Duration returns the inter-phase wait of compound actions.
func (e *ScenarioEntry) Duration() time.Duration {
	return time.Duration(e.DurationSeconds) * time.Second
}

// PollInterval returns the polling cadence for state waits.
func (e *ScenarioEntry) PollInterval() time.Duration {
	return time.Duration(e.PollIntervalSeconds) * time.Second
}

// ClusterCheck reports whether cluster-health confirmation is enabled.
func (e *ScenarioEntry) ClusterCheck() bool {
	return e.KubeCheck == nil || *e.KubeCheck
}

// NodeNames returns the explicit node names, split on commas.
func (e *ScenarioEntry) NodeNames() []string {
	return SplitList(e.NodeName)
}

// LabelSelectors returns the label selectors, split on commas.
func (e *ScenarioEntry) LabelSelectors() []string {
	return SplitList(e.LabelSelector)
}

// SplitList splits a comma-separated list, trimming blanks and dropping
// empty items.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
