package wizard

import (
	"context"
	"fmt"
	"slices"

	"github.com/imamik/nodechaos/internal/config"
)

// Result holds the answers of the interactive wizard.
type Result struct {
	// Backend
	CloudType string
	Region    string

	// Targets
	TargetMode    string // TargetLabel or TargetName
	LabelSelector string
	NodeNames     string
	ExcludeLabel  string
	InstanceCount int

	// Actions and pacing
	Actions  []string
	Runs     int
	Parallel bool

	// Timing, in seconds
	Timeout  int
	Duration int

	KubeCheck  bool
	SoftReboot bool
	DiskPath   string

	// Remote access, only asked when an action needs it
	SSHUser     string
	SSHKeyPath  string
	GenerateKey bool
	HelperNode  string
}

// NeedsRemote reports whether any selected action runs commands on the node.
func (r *Result) NeedsRemote() bool {
	for _, a := range r.Actions {
		action := config.Action(a)
		if slices.Contains(remoteActions(), action) {
			return true
		}
		if action == config.ActionDiskDetachAttach && r.DiskPath != "" {
			return true
		}
	}
	return false
}

func (r *Result) hasAction(a config.Action) bool {
	return slices.Contains(r.Actions, string(a))
}

// RunWizard runs the interactive scenario wizard.
// The context is used for cancellation support (e.g., Ctrl+C).
func RunWizard(ctx context.Context) (*Result, error) {
	result := defaultResult()

	if err := runBackendGroup(ctx, result); err != nil {
		return nil, fmt.Errorf("backend: %w", err)
	}

	if err := runTargetGroup(ctx, result); err != nil {
		return nil, fmt.Errorf("targets: %w", err)
	}

	if err := runActionsGroup(ctx, result); err != nil {
		return nil, fmt.Errorf("actions: %w", err)
	}

	if err := runTimingGroup(ctx, result); err != nil {
		return nil, fmt.Errorf("timing: %w", err)
	}

	if err := runActionExtrasGroup(ctx, result); err != nil {
		return nil, fmt.Errorf("action options: %w", err)
	}

	if result.NeedsRemote() {
		if err := runRemoteAccessGroup(ctx, result); err != nil {
			return nil, fmt.Errorf("remote access: %w", err)
		}
	}

	return result, nil
}

func defaultResult() *Result {
	return &Result{
		CloudType:     string(config.CloudHetzner),
		TargetMode:    TargetLabel,
		LabelSelector: "node-role.kubernetes.io/worker",
		InstanceCount: config.DefaultInstanceCount,
		Runs:          config.DefaultRuns,
		Timeout:       int(config.DefaultTimeout.Seconds()),
		Duration:      int(config.DefaultDuration.Seconds()),
		KubeCheck:     true,
		SSHUser:       config.DefaultSSHUser,
		SSHKeyPath:    config.DefaultSSHKeyPath,
	}
}
