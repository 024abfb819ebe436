package aws

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"k8s.io/utils/clock"

	"github.com/imamik/nodechaos/internal/chaos"
	"github.com/imamik/nodechaos/internal/config"
	"github.com/imamik/nodechaos/internal/util/retry"
)

// EC2API is the subset of the EC2 client the backend uses.
type EC2API interface {
	DescribeInstances(ctx context.Context, in *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	StartInstances(ctx context.Context, in *ec2.StartInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error)
	StopInstances(ctx context.Context, in *ec2.StopInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error)
	RebootInstances(ctx context.Context, in *ec2.RebootInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RebootInstancesOutput, error)
	TerminateInstances(ctx context.Context, in *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error)
	DescribeVolumes(ctx context.Context, in *ec2.DescribeVolumesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error)
	DetachVolume(ctx context.Context, in *ec2.DetachVolumeInput, optFns ...func(*ec2.Options)) (*ec2.DetachVolumeOutput, error)
	AttachVolume(ctx context.Context, in *ec2.AttachVolumeInput, optFns ...func(*ec2.Options)) (*ec2.AttachVolumeOutput, error)
}

// Backend implements chaos.CloudBackend, chaos.StateWaiter and
// chaos.VolumeManager on top of EC2.
type Backend struct {
	client   EC2API
	timeouts *config.Timeouts
	clock    clock.Clock
}

var (
	_ chaos.CloudBackend  = (*Backend)(nil)
	_ chaos.StateWaiter   = (*Backend)(nil)
	_ chaos.VolumeManager = (*Backend)(nil)
)

// Option configures a Backend.
type Option func(*Backend)

// WithTimeouts sets custom timeouts for the backend.
func WithTimeouts(t *config.Timeouts) Option {
	return func(b *Backend) {
		b.timeouts = t
	}
}

// WithClock sets the clock used to measure waits.
func WithClock(clk clock.Clock) Option {
	return func(b *Backend) {
		b.clock = clk
	}
}

// New wraps an existing EC2 client.
func New(client EC2API, opts ...Option) *Backend {
	b := &Backend{
		client:   client,
		timeouts: config.LoadTimeouts(),
		clock:    clock.RealClock{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewBackend loads the default AWS configuration and creates an EC2 backend.
// An empty region keeps the region from the environment.
func NewBackend(ctx context.Context, region string, opts ...Option) (*Backend, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return New(ec2.NewFromConfig(cfg), opts...), nil
}

// Capabilities reports every action. The EC2 client is safe for concurrent
// use.
func (b *Backend) Capabilities() chaos.Capabilities {
	return chaos.Capabilities{
		Actions:    chaos.NewActionSet(chaos.CloudActions, chaos.RemoteActions),
		Concurrent: true,
	}
}

// call runs one API request with the configured timeout, retrying throttling
// and transient state conflicts.
func (b *Backend) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeouts.API)
	defer cancel()

	return retry.WithExponentialBackoff(ctx, func() error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if isRetryable(err) {
			return err
		}
		return retry.Fatal(fmt.Errorf("failed to %s: %w", op, err))
	},
		retry.WithMaxRetries(b.timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(b.timeouts.RetryInitialDelay))
}

// ResolveInstanceID finds the non-terminated instance whose private DNS name
// or Name tag equals the node name.
func (b *Backend) ResolveInstanceID(ctx context.Context, nodeName string) (string, error) {
	for _, filter := range []string{"private-dns-name", "tag:Name"} {
		var out *ec2.DescribeInstancesOutput
		err := b.call(ctx, "describe instances for "+nodeName, func(ctx context.Context) error {
			var err error
			out, err = b.client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
				Filters: []types.Filter{{Name: aws.String(filter), Values: []string{nodeName}}},
			})
			return err
		})
		if err != nil {
			return "", err
		}
		for _, inst := range instances(out) {
			if inst.State != nil && inst.State.Name == types.InstanceStateNameTerminated {
				continue
			}
			return aws.ToString(inst.InstanceId), nil
		}
	}
	return "", &chaos.NotFoundError{NodeName: nodeName}
}

// Start starts a stopped instance.
func (b *Backend) Start(ctx context.Context, id string) error {
	return b.call(ctx, "start instance "+id, func(ctx context.Context) error {
		_, err := b.client.StartInstances(ctx, &ec2.StartInstancesInput{InstanceIds: []string{id}})
		return err
	})
}

// Stop stops a running instance.
func (b *Backend) Stop(ctx context.Context, id string) error {
	return b.call(ctx, "stop instance "+id, func(ctx context.Context) error {
		_, err := b.client.StopInstances(ctx, &ec2.StopInstancesInput{InstanceIds: []string{id}})
		return err
	})
}

// Reboot reboots the instance. EC2 offers a single reboot primitive, so soft
// is ignored.
func (b *Backend) Reboot(ctx context.Context, id string, _ bool) error {
	return b.call(ctx, "reboot instance "+id, func(ctx context.Context) error {
		_, err := b.client.RebootInstances(ctx, &ec2.RebootInstancesInput{InstanceIds: []string{id}})
		return err
	})
}

// Terminate terminates the instance.
func (b *Backend) Terminate(ctx context.Context, id string) error {
	return b.call(ctx, "terminate instance "+id, func(ctx context.Context) error {
		_, err := b.client.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: []string{id}})
		return err
	})
}

// Status returns the instance state. An instance EC2 no longer knows about
// is terminated.
func (b *Backend) Status(ctx context.Context, id string) (chaos.ProviderState, error) {
	inst, err := b.describe(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return chaos.StateTerminated, nil
		}
		return chaos.StateUnknown, err
	}
	if inst == nil || inst.State == nil {
		return chaos.StateTerminated, nil
	}
	return providerState(inst.State.Name), nil
}

// WaitUntil waits for running, stopped or terminated with the EC2 waiters
// and polls Status for any other state.
func (b *Backend) WaitUntil(ctx context.Context, id string, state chaos.ProviderState, timeout, interval time.Duration) (time.Duration, error) {
	start := b.clock.Now()
	params := &ec2.DescribeInstancesInput{InstanceIds: []string{id}}

	var err error
	switch state {
	case chaos.StateRunning:
		err = ec2.NewInstanceRunningWaiter(b.client, func(o *ec2.InstanceRunningWaiterOptions) {
			o.MinDelay, o.MaxDelay = interval, interval
		}).Wait(ctx, params, timeout)
	case chaos.StateStopped:
		err = ec2.NewInstanceStoppedWaiter(b.client, func(o *ec2.InstanceStoppedWaiterOptions) {
			o.MinDelay, o.MaxDelay = interval, interval
		}).Wait(ctx, params, timeout)
	case chaos.StateTerminated:
		err = ec2.NewInstanceTerminatedWaiter(b.client, func(o *ec2.InstanceTerminatedWaiterOptions) {
			o.MinDelay, o.MaxDelay = interval, interval
		}).Wait(ctx, params, timeout)
	default:
		return retry.Poll(ctx, b.clock, interval, timeout, func(ctx context.Context) (bool, error) {
			current, err := b.Status(ctx, id)
			return current == state, err
		})
	}

	elapsed := b.clock.Since(start)
	if err != nil && isWaiterTimeout(err) {
		return elapsed, fmt.Errorf("%w: instance %s did not reach %s: %v", chaos.ErrCloudStateTimeout, id, state, err)
	}
	return elapsed, err
}

func (b *Backend) describe(ctx context.Context, id string) (*types.Instance, error) {
	var out *ec2.DescribeInstancesOutput
	err := b.call(ctx, "describe instance "+id, func(ctx context.Context) error {
		var err error
		out, err = b.client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{id}})
		return err
	})
	if err != nil {
		return nil, err
	}
	all := instances(out)
	if len(all) == 0 {
		return nil, nil
	}
	return &all[0], nil
}

func instances(out *ec2.DescribeInstancesOutput) []types.Instance {
	if out == nil {
		return nil
	}
	var all []types.Instance
	for _, r := range out.Reservations {
		all = append(all, r.Instances...)
	}
	return all
}

func providerState(name types.InstanceStateName) chaos.ProviderState {
	switch name {
	case types.InstanceStateNameRunning:
		return chaos.StateRunning
	case types.InstanceStateNameStopped:
		return chaos.StateStopped
	case types.InstanceStateNameTerminated:
		return chaos.StateTerminated
	case types.InstanceStateNamePending:
		return chaos.StatePending
	case types.InstanceStateNameStopping, types.InstanceStateNameShuttingDown:
		return chaos.StateStopping
	default:
		return chaos.StateUnknown
	}
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "InvalidInstanceID.NotFound"
	}
	return false
}

// isRetryable checks for throttling and resources that are briefly busy.
func isRetryable(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "RequestLimitExceeded", "Throttling", "ThrottlingException", "IncorrectState":
			return true
		}
	}
	return false
}

func isWaiterTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "exceeded max wait time")
}
