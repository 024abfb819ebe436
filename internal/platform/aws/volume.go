package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"

	"github.com/imamik/nodechaos/internal/chaos"
)

// NonRootVolumes returns the EBS volumes attached to the instance other than
// its root device.
func (b *Backend) NonRootVolumes(ctx context.Context, id string) (chaos.AttachmentSnapshot, error) {
	inst, err := b.describe(ctx, id)
	if err != nil {
		return chaos.AttachmentSnapshot{}, err
	}
	if inst == nil {
		return chaos.AttachmentSnapshot{}, fmt.Errorf("instance %s not found", id)
	}

	root := aws.ToString(inst.RootDeviceName)
	var attachments []chaos.VolumeAttachment
	for _, m := range inst.BlockDeviceMappings {
		if m.Ebs == nil || aws.ToString(m.DeviceName) == root {
			continue
		}
		attachments = append(attachments, chaos.VolumeAttachment{
			VolumeID: aws.ToString(m.Ebs.VolumeId),
			Device:   aws.ToString(m.DeviceName),
		})
	}
	return chaos.NewAttachmentSnapshot(id, attachments), nil
}

// Detach detaches the volumes and waits until they are available.
func (b *Backend) Detach(ctx context.Context, id string, volumeIDs []string) error {
	for _, vid := range volumeIDs {
		err := b.call(ctx, fmt.Sprintf("detach volume %s from %s", vid, id), func(ctx context.Context) error {
			_, err := b.client.DetachVolume(ctx, &ec2.DetachVolumeInput{
				VolumeId:   aws.String(vid),
				InstanceId: aws.String(id),
			})
			return err
		})
		if err != nil {
			return err
		}
	}
	if len(volumeIDs) == 0 {
		return nil
	}
	err := ec2.NewVolumeAvailableWaiter(b.client).Wait(ctx, &ec2.DescribeVolumesInput{VolumeIds: volumeIDs}, b.timeouts.API)
	if err != nil {
		return fmt.Errorf("volumes of %s did not detach: %w", id, err)
	}
	return nil
}

// Attach reattaches every recorded volume at its original device name and
// waits until they are in use.
func (b *Backend) Attach(ctx context.Context, snapshot chaos.AttachmentSnapshot) error {
	id := snapshot.InstanceID()
	for _, att := range snapshot.Attachments() {
		err := b.call(ctx, fmt.Sprintf("attach volume %s to %s", att.VolumeID, id), func(ctx context.Context) error {
			_, err := b.client.AttachVolume(ctx, &ec2.AttachVolumeInput{
				VolumeId:   aws.String(att.VolumeID),
				InstanceId: aws.String(id),
				Device:     aws.String(att.Device),
			})
			return err
		})
		if err != nil {
			return err
		}
	}
	if snapshot.Empty() {
		return nil
	}
	err := ec2.NewVolumeInUseWaiter(b.client).Wait(ctx, &ec2.DescribeVolumesInput{VolumeIds: snapshot.VolumeIDs()}, b.timeouts.API)
	if err != nil {
		return fmt.Errorf("volumes of %s did not reattach: %w", id, err)
	}
	return nil
}
