// Package paths provides centralized path construction for the plugin's mount root,
// block device nodes and data directory.
package paths

import "path/filepath"

const (
	// DefaultMountRoot is the base directory under which volumes are mounted.
	DefaultMountRoot = "/mnt/volumes"

	// DefaultDeviceDir is where udev publishes stable block device names.
	DefaultDeviceDir = "/dev/disk/by-id"

	// DefaultDataDir holds plugin state such as the durable registry.
	DefaultDataDir = "/var/lib/dobs"

	// devicePrefix is the by-id prefix DigitalOcean volumes are exposed under.
	devicePrefix = "scsi-0DO_Volume_"
)

// Paths provides typed path construction. All methods are pure and perform no I/O.
type Paths struct {
	mountRoot string
	deviceDir string
	dataDir   string
}

// New creates a new Paths instance. Empty arguments fall back to the defaults.
func New(mountRoot, deviceDir, dataDir string) *Paths {
	if mountRoot == "" {
		mountRoot = DefaultMountRoot
	}
	if deviceDir == "" {
		deviceDir = DefaultDeviceDir
	}
	if dataDir == "" {
		dataDir = DefaultDataDir
	}
	return &Paths{
		mountRoot: mountRoot,
		deviceDir: deviceDir,
		dataDir:   dataDir,
	}
}

// MountPoint returns the mount path for a logical volume name.
// It depends on the logical name only, never on remote state.
func (p *Paths) MountPoint(name string) string {
	return filepath.Join(p.mountRoot, name)
}

// Device returns the block device path for a cloud-side volume name.
func (p *Paths) Device(cloudName string) string {
	return filepath.Join(p.deviceDir, devicePrefix+cloudName)
}

// DataDir returns the root data directory.
func (p *Paths) DataDir() string {
	return p.dataDir
}

// RegistryDB returns the path to the bolt registry database.
func (p *Paths) RegistryDB() string {
	return filepath.Join(p.dataDir, "registry.db")
}
