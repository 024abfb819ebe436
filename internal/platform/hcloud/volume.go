package hcloud

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/nodechaos/internal/chaos"
)

// NonRootVolumes returns every volume attached to the server together with
// its Linux device path.
func (b *Backend) NonRootVolumes(ctx context.Context, id string) (chaos.AttachmentSnapshot, error) {
	serverID, err := parseID(id)
	if err != nil {
		return chaos.AttachmentSnapshot{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeouts.API)
	defer cancel()

	server, _, err := b.client.Server.GetByID(ctx, serverID)
	if err != nil {
		return chaos.AttachmentSnapshot{}, fmt.Errorf("failed to get server %s: %w", id, err)
	}
	if server == nil {
		return chaos.AttachmentSnapshot{}, fmt.Errorf("server %s not found", id)
	}

	attachments := make([]chaos.VolumeAttachment, 0, len(server.Volumes))
	for _, ref := range server.Volumes {
		volume, _, err := b.client.Volume.GetByID(ctx, ref.ID)
		if err != nil {
			return chaos.AttachmentSnapshot{}, fmt.Errorf("failed to get volume %d: %w", ref.ID, err)
		}
		device := ""
		if volume != nil {
			device = volume.LinuxDevice
		}
		attachments = append(attachments, chaos.VolumeAttachment{
			VolumeID: strconv.FormatInt(ref.ID, 10),
			Device:   device,
		})
	}
	return chaos.NewAttachmentSnapshot(id, attachments), nil
}

// Detach detaches the given volumes one after another.
func (b *Backend) Detach(ctx context.Context, id string, volumeIDs []string) error {
	for _, vid := range volumeIDs {
		volumeID, err := parseID(vid)
		if err != nil {
			return err
		}
		volume := &hcloud.Volume{ID: volumeID}
		err = b.runAction(ctx, fmt.Sprintf("detach volume %s from server %s", vid, id), func(ctx context.Context) (*hcloud.Action, error) {
			action, _, err := b.client.Volume.Detach(ctx, volume)
			return action, err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Attach reattaches every volume recorded in the snapshot to its server.
func (b *Backend) Attach(ctx context.Context, snapshot chaos.AttachmentSnapshot) error {
	serverID, err := parseID(snapshot.InstanceID())
	if err != nil {
		return err
	}
	server := &hcloud.Server{ID: serverID}

	for _, att := range snapshot.Attachments() {
		volumeID, err := parseID(att.VolumeID)
		if err != nil {
			return err
		}
		volume := &hcloud.Volume{ID: volumeID}
		err = b.runAction(ctx, fmt.Sprintf("attach volume %s to server %s", att.VolumeID, snapshot.InstanceID()), func(ctx context.Context) (*hcloud.Action, error) {
			action, _, err := b.client.Volume.Attach(ctx, volume, server)
			return action, err
		})
		if err != nil {
			return err
		}
	}
	return nil
}
