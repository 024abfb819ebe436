package wizard

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"k8s.io/apimachinery/pkg/labels"

	"github.com/imamik/nodechaos/internal/chaos"
	"github.com/imamik/nodechaos/internal/config"
)

func remoteActions() []config.Action { return chaos.RemoteActions }

// runBackendGroup prompts for the cloud backend and, for AWS, the region.
func runBackendGroup(ctx context.Context, result *Result) error {
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Cloud Backend").
				Description("Where the cluster nodes run").
				Options(CloudOptions...).
				Value(&result.CloudType),
		).Title("Backend"),
	).RunWithContext(ctx)
	if err != nil {
		return err
	}

	if config.CloudType(result.CloudType) != config.CloudAWS {
		return nil
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("AWS Region").
				Options(AWSRegions...).
				Value(&result.Region),
		).Title("Region"),
	).RunWithContext(ctx)
}

// runTargetGroup prompts for how nodes are selected.
func runTargetGroup(ctx context.Context, result *Result) error {
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Target Nodes By").
				Options(TargetOptions...).
				Value(&result.TargetMode),
		).Title("Targets"),
	).RunWithContext(ctx)
	if err != nil {
		return err
	}

	if result.TargetMode == TargetName {
		return huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Node Names").
					Description("Comma-separated Kubernetes node names").
					Placeholder("worker-1, worker-2").
					Value(&result.NodeNames).
					Validate(validateNodeNames),
			).Title("Targets"),
		).RunWithContext(ctx)
	}

	count := strconv.Itoa(result.InstanceCount)
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Label Selector").
				Description("Nodes matching this selector are candidates").
				Value(&result.LabelSelector).
				Validate(validateSelector),
			huh.NewInput().
				Title("Exclude Label (Optional)").
				Description("Nodes matching this selector are never touched").
				Placeholder("chaos.nodechaos.io/protected=true").
				Value(&result.ExcludeLabel).
				Validate(validateOptionalSelector),
			huh.NewInput().
				Title("Instance Count").
				Description("Nodes to pick at random; 0 picks all").
				Value(&count).
				Validate(validateNonNegative),
		).Title("Targets"),
	).RunWithContext(ctx)
	if err != nil {
		return err
	}
	result.InstanceCount, _ = strconv.Atoi(strings.TrimSpace(count))
	return nil
}

// runActionsGroup prompts for the actions and how often they run.
func runActionsGroup(ctx context.Context, result *Result) error {
	runs := strconv.Itoa(result.Runs)
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Actions").
				Description("Run in the listed order against every selected node").
				Options(ActionOptions(ActionsFor(config.CloudType(result.CloudType)))...).
				Value(&result.Actions).
				Validate(validateActions),
			huh.NewInput().
				Title("Runs").
				Description("Iterations of each action per node").
				Value(&runs).
				Validate(validatePositive),
			huh.NewConfirm().
				Title("Run nodes in parallel?").
				Value(&result.Parallel),
		).Title("Actions"),
	).RunWithContext(ctx)
	if err != nil {
		return err
	}
	result.Runs, _ = strconv.Atoi(strings.TrimSpace(runs))
	return nil
}

// runTimingGroup prompts for wait timeouts and the cluster check.
func runTimingGroup(ctx context.Context, result *Result) error {
	timeout := strconv.Itoa(result.Timeout)
	duration := strconv.Itoa(result.Duration)
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Timeout (seconds)").
				Description("Maximum wait for each cloud and cluster state change").
				Value(&timeout).
				Validate(validatePositive),
			huh.NewInput().
				Title("Duration (seconds)").
				Description("Pause between the phases of stop/start actions").
				Value(&duration).
				Validate(validateNonNegative),
			huh.NewConfirm().
				Title("Confirm node health in Kubernetes?").
				Description("Wait for the Ready condition after each action").
				Value(&result.KubeCheck),
		).Title("Timing"),
	).RunWithContext(ctx)
	if err != nil {
		return err
	}
	result.Timeout, _ = strconv.Atoi(strings.TrimSpace(timeout))
	result.Duration, _ = strconv.Atoi(strings.TrimSpace(duration))
	return nil
}

// runActionExtrasGroup asks only for options of the selected actions.
func runActionExtrasGroup(ctx context.Context, result *Result) error {
	var fields []huh.Field
	if result.hasAction(config.ActionReboot) && config.CloudType(result.CloudType) == config.CloudHetzner {
		fields = append(fields, huh.NewConfirm().
			Title("Soft reboot?").
			Description("ACPI reboot instead of a hard reset").
			Value(&result.SoftReboot))
	}
	if result.hasAction(config.ActionDiskDetachAttach) {
		input := huh.NewInput().
			Title("Disk Path").
			Description("Block device to take offline via sysfs, e.g. sdb. Leave empty to detach cloud volumes.").
			Value(&result.DiskPath)
		if config.CloudType(result.CloudType) == config.CloudGeneric {
			input = input.Validate(validateRequired("disk path"))
		}
		fields = append(fields, input)
	}
	if len(fields) == 0 {
		return nil
	}
	return huh.NewForm(huh.NewGroup(fields...).Title("Action Options")).RunWithContext(ctx)
}

// runRemoteAccessGroup prompts for SSH settings.
func runRemoteAccessGroup(ctx context.Context, result *Result) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("SSH User").
				Value(&result.SSHUser).
				Validate(validateRequired("ssh user")),
			huh.NewInput().
				Title("SSH Private Key").
				Value(&result.SSHKeyPath).
				Validate(validateRequired("ssh private key")),
			huh.NewConfirm().
				Title("Generate a new key pair at this path?").
				Description("The public key must then be authorized on the nodes").
				Value(&result.GenerateKey),
			huh.NewInput().
				Title("Helper Node (Optional)").
				Description("Jump host used to reach the nodes").
				Placeholder("10.0.0.2").
				Value(&result.HelperNode),
		).Title("Remote Access"),
	).RunWithContext(ctx)
}

func validateNodeNames(s string) error {
	if len(config.SplitList(s)) == 0 {
		return fmt.Errorf("at least one node name is required")
	}
	return nil
}

func validateSelector(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("label selector is required")
	}
	return validateOptionalSelector(s)
}

func validateOptionalSelector(s string) error {
	for _, sel := range config.SplitList(s) {
		if _, err := labels.Parse(sel); err != nil {
			return fmt.Errorf("invalid selector %q: %w", sel, err)
		}
	}
	return nil
}

func validateActions(actions []string) error {
	if len(actions) == 0 {
		return fmt.Errorf("select at least one action")
	}
	return nil
}

func validatePositive(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return fmt.Errorf("must be a whole number of at least 1")
	}
	return nil
}

func validateNonNegative(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return fmt.Errorf("must be a whole number of at least 0")
	}
	return nil
}

func validateRequired(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}
