// Package mounts wraps the host's mount primitives for block volumes.
package mounts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/moby/sys/mountinfo"
	"github.com/onkernel/dobs/lib/logger"
	"k8s.io/mount-utils"
)

const (
	// FilesystemType is the filesystem every volume carries.
	FilesystemType = "ext4"

	defaultSettleTimeout = time.Minute
	defaultPollInterval  = 250 * time.Millisecond
)

// Options tolerate a transiently missing device and reduce write tracking.
var Options = []string{"defaults", "nofail", "discard", "noatime"}

// Mounter performs local mount operations.
type Mounter interface {
	// Mount mounts device at target.
	Mount(ctx context.Context, device, target string) error

	// Unmount unmounts target and waits until the kernel no longer lists it.
	Unmount(ctx context.Context, target string) error

	// IsMounted reports whether target is a mount point.
	IsMounted(target string) (bool, error)

	// WaitForDevice waits until the device node exists.
	WaitForDevice(ctx context.Context, device string) error
}

type systemMounter struct {
	mounter       mount.Interface
	mounted       func(string) (bool, error)
	exists        func(string) bool
	settleTimeout time.Duration
	pollInterval  time.Duration
}

// NewMounter returns a Mounter backed by mount(8), umount(8) and /proc/self/mountinfo.
// settleTimeout bounds how long device and unmount waits may take.
func NewMounter(settleTimeout, pollInterval time.Duration) Mounter {
	return newSystemMounter(mount.New(""), settleTimeout, pollInterval)
}

func newSystemMounter(mounter mount.Interface, settleTimeout, pollInterval time.Duration) *systemMounter {
	if settleTimeout <= 0 {
		settleTimeout = defaultSettleTimeout
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &systemMounter{
		mounter:       mounter,
		mounted:       mountinfo.Mounted,
		exists:        deviceExists,
		settleTimeout: settleTimeout,
		pollInterval:  pollInterval,
	}
}

func deviceExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (m *systemMounter) Mount(ctx context.Context, device, target string) error {
	if err := m.mounter.Mount(device, target, FilesystemType, Options); err != nil {
		return fmt.Errorf("%w: %s on %s: %v", ErrMountFailed, device, target, err)
	}
	logger.FromContext(ctx).InfoContext(ctx, "mounted volume", "device", device, "target", target)
	return nil
}

func (m *systemMounter) Unmount(ctx context.Context, target string) error {
	if err := m.mounter.Unmount(target); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnmountFailed, target, err)
	}

	// umount returns before the kernel has necessarily released the device
	err := m.poll(ctx, func() error {
		mounted, err := m.mounted(target)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("%w: inspect %s: %v", ErrUnmountFailed, target, err))
		}
		if mounted {
			return errStillMounted
		}
		return nil
	})
	if errors.Is(err, errStillMounted) {
		return fmt.Errorf("%w: %s still mounted after %s", ErrTimeout, target, m.settleTimeout)
	}
	if err != nil {
		return fmt.Errorf("unmount %s: %w", target, err)
	}

	logger.FromContext(ctx).InfoContext(ctx, "unmounted volume", "target", target)
	return nil
}

func (m *systemMounter) IsMounted(target string) (bool, error) {
	mounted, err := m.mounted(target)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return mounted, err
}

func (m *systemMounter) WaitForDevice(ctx context.Context, device string) error {
	err := m.poll(ctx, func() error {
		if !m.exists(device) {
			return errDeviceMissing
		}
		return nil
	})
	if errors.Is(err, errDeviceMissing) {
		return fmt.Errorf("%w: device %s did not appear after %s", ErrTimeout, device, m.settleTimeout)
	}
	if err != nil {
		return fmt.Errorf("wait for device %s: %w", device, err)
	}
	return nil
}

// poll retries check until it succeeds or the settle timeout passes. A caller
// deadline that expires first is reported as ErrTimeout as well.
func (m *systemMounter) poll(ctx context.Context, check func() error) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, check()
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(m.pollInterval)),
		backoff.WithMaxElapsedTime(m.settleTimeout),
	)
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}
