package registry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]func(t *testing.T) Registry {
	return map[string]func(t *testing.T) Registry{
		"memory": func(t *testing.T) Registry {
			return NewMemory()
		},
		"bolt": func(t *testing.T) Registry {
			r, err := OpenBolt(filepath.Join(t.TempDir(), "registry.db"))
			require.NoError(t, err)
			return r
		},
	}
}

func TestRegistry(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r := open(t)
			defer r.Close()

			_, err := r.Get(ctx, "db1")
			assert.ErrorIs(t, err, ErrNotFound)

			created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
			require.NoError(t, r.Put(ctx, Entry{Name: "db1", CloudName: "db1", Region: "nyc1", SizeGigabytes: 10, CreatedAt: created}))
			require.NoError(t, r.Put(ctx, Entry{Name: "app", CloudName: "app-data", Region: "nyc1", SizeGigabytes: 1}))

			got, err := r.Get(ctx, "db1")
			require.NoError(t, err)
			assert.Equal(t, "db1", got.CloudName)
			assert.Equal(t, 10, got.SizeGigabytes)
			assert.True(t, created.Equal(got.CreatedAt))

			list, err := r.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "app", list[0].Name)
			assert.Equal(t, "db1", list[1].Name)

			// Put overwrites
			require.NoError(t, r.Put(ctx, Entry{Name: "app", CloudName: "other"}))
			got, err = r.Get(ctx, "app")
			require.NoError(t, err)
			assert.Equal(t, "other", got.CloudName)

			require.NoError(t, r.Delete(ctx, "db1"))
			_, err = r.Get(ctx, "db1")
			assert.ErrorIs(t, err, ErrNotFound)

			// Deleting an absent name is not an error
			require.NoError(t, r.Delete(ctx, "db1"))

			list, err = r.List(ctx)
			require.NoError(t, err)
			assert.Len(t, list, 1)
		})
	}
}

func TestBolt_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "registry.db")

	r, err := OpenBolt(path)
	require.NoError(t, err)
	require.NoError(t, r.Put(ctx, Entry{Name: "db1", CloudName: "remote-db1", SizeGigabytes: 5}))
	require.NoError(t, r.Close())

	r, err = OpenBolt(path)
	require.NoError(t, err)
	defer r.Close()

	got, err := r.Get(ctx, "db1")
	require.NoError(t, err)
	assert.Equal(t, "remote-db1", got.CloudName)
	assert.Equal(t, 5, got.SizeGigabytes)
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	r := NewMemory()
	require.NoError(t, r.Put(ctx, Entry{Name: "db1", CloudName: "db1"}))

	got, err := r.Get(ctx, "db1")
	require.NoError(t, err)
	got.CloudName = "mutated"

	again, err := r.Get(ctx, "db1")
	require.NoError(t, err)
	assert.Equal(t, "db1", again.CloudName)
}
