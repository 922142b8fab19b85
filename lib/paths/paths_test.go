package paths

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMountPoint_Stable(t *testing.T) {
	p := New("", "", "")

	first := p.MountPoint("db1")
	second := p.MountPoint("db1")

	assert.Equal(t, "/mnt/volumes/db1", first)
	assert.Equal(t, first, second)
}

func TestMountPoint_CustomRoot(t *testing.T) {
	p := New("/srv/mounts", "", "")
	assert.Equal(t, "/srv/mounts/cache", p.MountPoint("cache"))
}

func TestDevice(t *testing.T) {
	p := New("", "", "")
	assert.Equal(t, "/dev/disk/by-id/scsi-0DO_Volume_db1", p.Device("db1"))

	p = New("", "/tmp/devs", "")
	assert.Equal(t, "/tmp/devs/scsi-0DO_Volume_pg-data", p.Device("pg-data"))
}

func TestRegistryDB(t *testing.T) {
	p := New("", "", "/var/lib/test")
	assert.Equal(t, "/var/lib/test/registry.db", p.RegistryDB())
	assert.Equal(t, "/var/lib/test", p.DataDir())
}
