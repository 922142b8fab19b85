// Package volumes orchestrates the lifecycle of plugin volumes: provisioning
// in the cloud, attaching to this host, and mounting on the local filesystem.
package volumes

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/moby/locker"
	"github.com/onkernel/dobs/lib/cloud"
	"github.com/onkernel/dobs/lib/logger"
	"github.com/onkernel/dobs/lib/mounts"
	"github.com/onkernel/dobs/lib/paths"
	"github.com/onkernel/dobs/lib/registry"
	"go.opentelemetry.io/otel/metric"
)

// Names become directories under the mount root and remote volume names.
var validName = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

type Manager interface {
	// Provision creates (or adopts) a cloud volume and registers it under req.Name.
	Provision(ctx context.Context, req ProvisionRequest) (*Volume, error)

	// Deprovision detaches and deletes the cloud volume and forgets the name.
	Deprovision(ctx context.Context, name string) error

	// Mount makes the volume available on this host for callerID and returns the mount path.
	Mount(ctx context.Context, name, callerID string) (string, error)

	// Unmount releases callerID's use of the volume. The last caller out
	// unmounts and detaches it.
	Unmount(ctx context.Context, name, callerID string) error

	// MountPath returns where name is (or would be) mounted.
	MountPath(name string) string

	GetVolume(ctx context.Context, name string) (*Volume, error)
	ListVolumes(ctx context.Context) ([]Volume, error)
}

type manager struct {
	cloud    cloud.Client
	mounter  mounts.Mounter
	registry registry.Registry
	paths    *paths.Paths
	locks    *locker.Locker
	refs     *mountRefs
	metrics  *Metrics
}

// NewManager creates a new volumes manager.
// If meter is nil, metrics are disabled.
func NewManager(c cloud.Client, mounter mounts.Mounter, reg registry.Registry, p *paths.Paths, meter metric.Meter) Manager {
	m := &manager{
		cloud:    c,
		mounter:  mounter,
		registry: reg,
		paths:    p,
		locks:    locker.New(),
		refs:     newMountRefs(),
	}

	if meter != nil {
		metrics, err := newVolumeMetrics(meter, m)
		if err == nil {
			m.metrics = metrics
		}
	}

	return m
}

func (m *manager) lock(name string) func() {
	m.locks.Lock(name)
	return func() { _ = m.locks.Unlock(name) }
}

func (m *manager) lookup(ctx context.Context, name string) (*registry.Entry, error) {
	entry, err := m.registry.Get(ctx, name)
	if errors.Is(err, registry.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read registry entry %s: %w", name, err)
	}
	return entry, nil
}

func (m *manager) Provision(ctx context.Context, req ProvisionRequest) (vol *Volume, err error) {
	start := time.Now()
	defer func() { m.recordOperation(ctx, "provision", start, err) }()

	if !validName.MatchString(req.Name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, req.Name)
	}
	if req.CloudName != "" && !validName.MatchString(req.CloudName) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, req.CloudName)
	}

	defer m.lock(req.Name)()
	log := logger.FromContext(ctx)

	existing, err := m.registry.Get(ctx, req.Name)
	if err == nil {
		log.InfoContext(ctx, "volume already registered", "name", req.Name, "cloud_name", existing.CloudName)
		return m.toVolume(*existing), nil
	}
	if !errors.Is(err, registry.ErrNotFound) {
		return nil, fmt.Errorf("read registry entry %s: %w", req.Name, err)
	}

	remote, err := m.cloud.Provision(ctx, req.Name, req.CloudName, req.SizeGigabytes)
	if err != nil {
		return nil, err
	}

	entry := registry.Entry{
		Name:          req.Name,
		CloudName:     remote.Name,
		Region:        remote.Region,
		SizeGigabytes: remote.SizeGigabytes,
		CreatedAt:     remote.CreatedAt,
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if err := m.registry.Put(ctx, entry); err != nil {
		return nil, fmt.Errorf("register volume %s: %w", req.Name, err)
	}

	log.InfoContext(ctx, "provisioned volume", "name", req.Name, "cloud_name", entry.CloudName, "size_gb", entry.SizeGigabytes)
	return m.toVolume(entry), nil
}

func (m *manager) Deprovision(ctx context.Context, name string) (err error) {
	start := time.Now()
	defer func() { m.recordOperation(ctx, "deprovision", start, err) }()

	defer m.lock(name)()

	entry, err := m.lookup(ctx, name)
	if err != nil {
		return err
	}
	if n := m.refs.count(name); n > 0 {
		return fmt.Errorf("%w: %s has %d active mounts", ErrInUse, name, n)
	}

	if err := m.cloud.Deprovision(ctx, entry.CloudName); err != nil {
		return err
	}
	if err := m.registry.Delete(ctx, name); err != nil {
		return fmt.Errorf("unregister volume %s: %w", name, err)
	}

	logger.FromContext(ctx).InfoContext(ctx, "deprovisioned volume", "name", name, "cloud_name", entry.CloudName)
	return nil
}

func (m *manager) Mount(ctx context.Context, name, callerID string) (path string, err error) {
	start := time.Now()
	defer func() { m.recordOperation(ctx, "mount", start, err) }()

	defer m.lock(name)()
	log := logger.FromContext(ctx)

	entry, err := m.lookup(ctx, name)
	if err != nil {
		return "", err
	}
	target := m.paths.MountPoint(name)

	if m.refs.count(name) > 0 {
		if mounted, err := m.mounter.IsMounted(target); err == nil && mounted {
			n := m.refs.add(name, callerID)
			log.InfoContext(ctx, "volume already mounted", "name", name, "caller", callerID, "mounts", n)
			return target, nil
		}
	}

	if err := m.ensureAttached(ctx, entry); err != nil {
		return "", err
	}

	device := m.paths.Device(entry.CloudName)
	if err := m.mounter.WaitForDevice(ctx, device); err != nil {
		return "", err
	}

	if err := os.MkdirAll(target, 0755); err != nil {
		return "", fmt.Errorf("create mount point %s: %w", target, err)
	}

	mounted, err := m.mounter.IsMounted(target)
	if err != nil {
		return "", fmt.Errorf("inspect mount point %s: %w", target, err)
	}
	if !mounted {
		if err := m.mounter.Mount(ctx, device, target); err != nil {
			return "", err
		}
	}

	n := m.refs.add(name, callerID)
	log.InfoContext(ctx, "volume mounted", "name", name, "caller", callerID, "path", target, "mounts", n)
	return target, nil
}

// ensureAttached makes sure the volume is attached to this host, moving it
// off any other host first.
func (m *manager) ensureAttached(ctx context.Context, entry *registry.Entry) error {
	log := logger.FromContext(ctx)

	hostID, err := m.cloud.ResolveHostID(ctx)
	if err != nil {
		return err
	}

	vol, err := m.cloud.FindVolume(ctx, entry.CloudName)
	if err != nil {
		return err
	}
	if vol == nil {
		return fmt.Errorf("%w: %s", ErrNoSuchVolume, entry.CloudName)
	}

	if vol.AttachedTo(hostID) {
		log.DebugContext(ctx, "volume already attached here", "cloud_name", vol.Name, "host_id", hostID)
		return nil
	}

	for _, other := range vol.HostIDs {
		log.InfoContext(ctx, "volume attached elsewhere, migrating", "cloud_name", vol.Name, "from_host", other, "to_host", hostID)
		if err := m.cloud.Detach(ctx, other, vol); err != nil {
			return err
		}
	}

	return m.cloud.Attach(ctx, hostID, vol)
}

func (m *manager) Unmount(ctx context.Context, name, callerID string) (err error) {
	start := time.Now()
	defer func() { m.recordOperation(ctx, "unmount", start, err) }()

	defer m.lock(name)()
	log := logger.FromContext(ctx)

	entry, err := m.lookup(ctx, name)
	if err != nil {
		return err
	}

	if remaining := m.refs.remove(name, callerID); remaining > 0 {
		log.InfoContext(ctx, "volume still in use", "name", name, "caller", callerID, "mounts", remaining)
		return nil
	}

	target := m.paths.MountPoint(name)
	mounted, err := m.mounter.IsMounted(target)
	if err != nil {
		return fmt.Errorf("inspect mount point %s: %w", target, err)
	}
	if mounted {
		if err := m.mounter.Unmount(ctx, target); err != nil {
			// still mounted, so the caller still holds it
			m.refs.add(name, callerID)
			return err
		}
	}

	hostID, err := m.cloud.ResolveHostID(ctx)
	if err != nil {
		return err
	}
	vol, err := m.cloud.FindVolume(ctx, entry.CloudName)
	if err != nil {
		return err
	}
	if vol == nil || !vol.AttachedTo(hostID) {
		log.InfoContext(ctx, "volume not attached here, skipping detach", "name", name, "host_id", hostID)
		return nil
	}
	if err := m.cloud.Detach(ctx, hostID, vol); err != nil {
		return err
	}

	log.InfoContext(ctx, "volume unmounted", "name", name, "caller", callerID)
	return nil
}

func (m *manager) MountPath(name string) string {
	return m.paths.MountPoint(name)
}

func (m *manager) GetVolume(ctx context.Context, name string) (*Volume, error) {
	entry, err := m.lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	return m.toVolume(*entry), nil
}

func (m *manager) ListVolumes(ctx context.Context) ([]Volume, error) {
	entries, err := m.registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list registry: %w", err)
	}

	vols := make([]Volume, 0, len(entries))
	for _, entry := range entries {
		vols = append(vols, *m.toVolume(entry))
	}
	return vols, nil
}

func (m *manager) toVolume(entry registry.Entry) *Volume {
	return &Volume{
		Name:          entry.Name,
		CloudName:     entry.CloudName,
		Region:        entry.Region,
		SizeGigabytes: entry.SizeGigabytes,
		CreatedAt:     entry.CreatedAt,
		Mountpoint:    m.paths.MountPoint(entry.Name),
		Mounts:        m.refs.count(entry.Name),
	}
}
