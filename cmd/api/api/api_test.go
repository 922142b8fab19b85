package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/onkernel/dobs/cmd/api/config"
	"github.com/onkernel/dobs/lib/cloud"
	"github.com/onkernel/dobs/lib/volumes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeManager records calls and serves registered volumes from a map.
type fakeManager struct {
	vols    map[string]volumes.Volume
	err     error
	calls   []string
	lastReq volumes.ProvisionRequest
}

func newFakeManager() *fakeManager {
	return &fakeManager{vols: map[string]volumes.Volume{}}
}

func (f *fakeManager) Provision(ctx context.Context, req volumes.ProvisionRequest) (*volumes.Volume, error) {
	f.calls = append(f.calls, "provision:"+req.Name)
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	v := volumes.Volume{Name: req.Name, CloudName: req.CloudName, SizeGigabytes: req.SizeGigabytes}
	f.vols[req.Name] = v
	return &v, nil
}

func (f *fakeManager) Deprovision(ctx context.Context, name string) error {
	f.calls = append(f.calls, "deprovision:"+name)
	if f.err != nil {
		return f.err
	}
	if _, ok := f.vols[name]; !ok {
		return fmt.Errorf("%w: %s", volumes.ErrNotFound, name)
	}
	delete(f.vols, name)
	return nil
}

func (f *fakeManager) Mount(ctx context.Context, name, callerID string) (string, error) {
	f.calls = append(f.calls, "mount:"+name+":"+callerID)
	if f.err != nil {
		return "", f.err
	}
	if _, ok := f.vols[name]; !ok {
		return "", fmt.Errorf("%w: %s", volumes.ErrNotFound, name)
	}
	return f.MountPath(name), nil
}

func (f *fakeManager) Unmount(ctx context.Context, name, callerID string) error {
	f.calls = append(f.calls, "unmount:"+name+":"+callerID)
	if f.err != nil {
		return f.err
	}
	if _, ok := f.vols[name]; !ok {
		return fmt.Errorf("%w: %s", volumes.ErrNotFound, name)
	}
	return nil
}

func (f *fakeManager) MountPath(name string) string {
	return "/mnt/volumes/" + name
}

func (f *fakeManager) GetVolume(ctx context.Context, name string) (*volumes.Volume, error) {
	v, ok := f.vols[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", volumes.ErrNotFound, name)
	}
	v.Mountpoint = f.MountPath(name)
	return &v, nil
}

func (f *fakeManager) ListVolumes(ctx context.Context) ([]volumes.Volume, error) {
	var out []volumes.Volume
	for _, name := range []string{"a", "b", "db1"} {
		if v, ok := f.vols[name]; ok {
			v.Mountpoint = f.MountPath(name)
			out = append(out, v)
		}
	}
	return out, nil
}

func newTestServer(t *testing.T) (*fakeManager, *httptest.Server) {
	t.Helper()
	mgr := newFakeManager()
	svc := New(&config.Config{Region: "nyc1"}, mgr)

	r := chi.NewRouter()
	svc.Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return mgr, srv
}

func call(t *testing.T, srv *httptest.Server, endpoint, body string) map[string]any {
	t.Helper()
	resp, err := http.Post(srv.URL+endpoint, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestActivate(t *testing.T) {
	_, srv := newTestServer(t)
	out := call(t, srv, "/Plugin.Activate", "")
	assert.Equal(t, []any{"VolumeDriver"}, out["Implements"])
}

func TestCapabilities(t *testing.T) {
	_, srv := newTestServer(t)
	out := call(t, srv, "/VolumeDriver.Capabilities", "{}")
	assert.Equal(t, map[string]any{"Scope": "global"}, out["Capabilities"])
}

func TestCreate_Options(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		cloudName string
		size      int
	}{
		{name: "defaults", body: `{"Name":"db1"}`, size: 0},
		{name: "integer size", body: `{"Name":"db1","Opts":{"size":"10"}}`, size: 10},
		{name: "size string", body: `{"Name":"db1","Opts":{"size":"20GB"}}`, size: 20},
		{name: "rounds up", body: `{"Name":"db1","Opts":{"size":"1536MB"}}`, size: 2},
		{name: "name override", body: `{"Name":"db1","Opts":{"name":"remote-db1"}}`, cloudName: "remote-db1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr, srv := newTestServer(t)
			out := call(t, srv, "/VolumeDriver.Create", tt.body)
			assert.Equal(t, "", out["Err"])
			assert.Equal(t, "db1", mgr.lastReq.Name)
			assert.Equal(t, tt.cloudName, mgr.lastReq.CloudName)
			assert.Equal(t, tt.size, mgr.lastReq.SizeGigabytes)
		})
	}
}

func TestCreate_InvalidSize(t *testing.T) {
	mgr, srv := newTestServer(t)

	for _, size := range []string{"-3", "0", "lots"} {
		out := call(t, srv, "/VolumeDriver.Create", `{"Name":"db1","Opts":{"size":"`+size+`"}}`)
		assert.Contains(t, out["Err"], "invalid size", size)
	}
	assert.Empty(t, mgr.calls)
}

func TestCreate_ErrorTranslated(t *testing.T) {
	mgr, srv := newTestServer(t)
	mgr.err = fmt.Errorf("%w: action 7", cloud.ErrTimeout)

	out := call(t, srv, "/VolumeDriver.Create", `{"Name":"db1"}`)
	assert.Contains(t, out["Err"], "timed out")
}

func TestUnknownVolume_NotFoundMessage(t *testing.T) {
	_, srv := newTestServer(t)

	for _, endpoint := range []string{"/VolumeDriver.Remove", "/VolumeDriver.Mount", "/VolumeDriver.Unmount", "/VolumeDriver.Get"} {
		out := call(t, srv, endpoint, `{"Name":"ghost","ID":"c1"}`)
		assert.Equal(t, "Volume not found", out["Err"], endpoint)
	}
}

func TestMountUnmount(t *testing.T) {
	mgr, srv := newTestServer(t)
	call(t, srv, "/VolumeDriver.Create", `{"Name":"db1"}`)

	out := call(t, srv, "/VolumeDriver.Mount", `{"Name":"db1","ID":"container-1"}`)
	assert.Equal(t, "", out["Err"])
	assert.Equal(t, "/mnt/volumes/db1", out["Mountpoint"])

	out = call(t, srv, "/VolumeDriver.Unmount", `{"Name":"db1","ID":"container-1"}`)
	assert.Equal(t, "", out["Err"])

	assert.Equal(t, []string{"provision:db1", "mount:db1:container-1", "unmount:db1:container-1"}, mgr.calls)
}

func TestPath_Unregistered(t *testing.T) {
	mgr, srv := newTestServer(t)

	out := call(t, srv, "/VolumeDriver.Path", `{"Name":"anything"}`)
	assert.Equal(t, "", out["Err"])
	assert.Equal(t, "/mnt/volumes/anything", out["Mountpoint"])
	assert.Empty(t, mgr.calls)
}

func TestGet(t *testing.T) {
	mgr, srv := newTestServer(t)
	mgr.vols["db1"] = volumes.Volume{
		Name:          "db1",
		CloudName:     "remote-db1",
		Region:        "nyc1",
		SizeGigabytes: 10,
		CreatedAt:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	out := call(t, srv, "/VolumeDriver.Get", `{"Name":"db1"}`)
	assert.Equal(t, "", out["Err"])

	vol, ok := out["Volume"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "db1", vol["Name"])
	assert.Equal(t, "/mnt/volumes/db1", vol["Mountpoint"])
	assert.Equal(t, "2024-03-01T12:00:00Z", vol["CreatedAt"])

	status, ok := vol["Status"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "remote-db1", status["cloudName"])
	assert.Equal(t, float64(10), status["sizeGigabytes"])
}

func TestList(t *testing.T) {
	mgr, srv := newTestServer(t)
	mgr.vols["a"] = volumes.Volume{Name: "a"}
	mgr.vols["b"] = volumes.Volume{Name: "b"}

	out := call(t, srv, "/VolumeDriver.List", "{}")
	assert.Equal(t, "", out["Err"])

	vols, ok := out["Volumes"].([]any)
	require.True(t, ok)
	require.Len(t, vols, 2)
	assert.Equal(t, "a", vols[0].(map[string]any)["Name"])
	assert.Equal(t, "/mnt/volumes/b", vols[1].(map[string]any)["Mountpoint"])
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "", want: 0},
		{in: "5", want: 5},
		{in: " 7 ", want: 7},
		{in: "1GB", want: 1},
		{in: "1TB", want: 1024},
		{in: "100MB", want: 1},
		{in: "0", wantErr: true},
		{in: "0GB", wantErr: true},
		{in: "ten", wantErr: true},
	}

	for _, tt := range tests {
		got, err := parseSize(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
