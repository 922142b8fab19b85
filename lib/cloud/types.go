package cloud

import (
	"time"

	"github.com/digitalocean/godo"
	"github.com/samber/lo"
)

const (
	// FilesystemType is the only filesystem volumes are created with.
	FilesystemType = "ext4"

	// DefaultSizeGigabytes is used when a provision request carries no size.
	DefaultSizeGigabytes = 1
)

// Action statuses reported by the volume actions API.
const (
	statusInProgress = "in-progress"
	statusCompleted  = "completed"
	statusErrored    = "errored"
)

// Volume is a remote block storage volume.
type Volume struct {
	ID             string
	Name           string
	Region         string
	SizeGigabytes  int
	HostIDs        []int
	FilesystemType string
	CreatedAt      time.Time
}

// Attached reports whether the volume is attached to any host.
func (v *Volume) Attached() bool {
	return len(v.HostIDs) > 0
}

// AttachedTo reports whether the volume is attached to the given host.
func (v *Volume) AttachedTo(hostID int) bool {
	return lo.Contains(v.HostIDs, hostID)
}

func fromGodo(v *godo.Volume) *Volume {
	vol := &Volume{
		ID:             v.ID,
		Name:           v.Name,
		SizeGigabytes:  int(v.SizeGigaBytes),
		HostIDs:        append([]int(nil), v.DropletIDs...),
		FilesystemType: v.FilesystemType,
		CreatedAt:      v.CreatedAt,
	}
	if v.Region != nil {
		vol.Region = v.Region.Slug
	}
	return vol
}
