package mounts

import "errors"

var (
	// ErrMountFailed is returned when the OS mount command fails
	ErrMountFailed = errors.New("mount failed")

	// ErrUnmountFailed is returned when the OS unmount command fails
	ErrUnmountFailed = errors.New("unmount failed")

	// ErrTimeout is returned when a device or mount state does not settle in time
	ErrTimeout = errors.New("timed out waiting for mount state")
)

var (
	errDeviceMissing = errors.New("device not present")
	errStillMounted  = errors.New("still mounted")
)
