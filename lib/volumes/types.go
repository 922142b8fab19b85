package volumes

import "time"

// Volume is a registered volume as seen by the plugin.
type Volume struct {
	Name          string
	CloudName     string
	Region        string
	SizeGigabytes int
	CreatedAt     time.Time
	Mountpoint    string
	// Mounts is the number of callers currently using the mount.
	Mounts int
}

// ProvisionRequest describes a volume to create.
type ProvisionRequest struct {
	Name string
	// CloudName overrides the remote volume name. Defaults to Name.
	CloudName string
	// SizeGigabytes of zero uses the cloud default.
	SizeGigabytes int
}
