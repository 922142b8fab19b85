package volumes

import "errors"

var (
	// ErrNotFound is returned when a logical name is not registered
	ErrNotFound = errors.New("volume not found")

	// ErrNoSuchVolume is returned when a registered volume no longer exists remotely
	ErrNoSuchVolume = errors.New("no such volume in region")

	// ErrInUse is returned when removing a volume that is still mounted
	ErrInUse = errors.New("volume is in use")

	// ErrInvalidName is returned for names that cannot be used as a mount directory
	ErrInvalidName = errors.New("invalid volume name")
)
