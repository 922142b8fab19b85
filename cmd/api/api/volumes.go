package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/docker/go-plugins-helpers/volume"
	"github.com/onkernel/dobs/lib/logger"
	"github.com/onkernel/dobs/lib/volumes"
	"github.com/samber/lo"
)

// Create options.
const (
	optName = "name"
	optSize = "size"
)

type mountResponse struct {
	volume.MountResponse
	Err string
}

type pathResponse struct {
	volume.PathResponse
	Err string
}

type getResponse struct {
	volume.GetResponse
	Err string
}

type listResponse struct {
	volume.ListResponse
	Err string
}

// Create provisions a volume. Opts may set "name" (remote volume name) and
// "size" (whole gigabytes, or a size such as "10GB").
func (s *ApiService) Create(w http.ResponseWriter, r *http.Request) {
	var req volume.CreateRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, "create", "", fmt.Errorf("decode request: %w", err))
		return
	}

	size, err := parseSize(req.Options[optSize])
	if err != nil {
		fail(w, r, "create", req.Name, err)
		return
	}

	_, err = s.VolumeManager.Provision(r.Context(), volumes.ProvisionRequest{
		Name:          req.Name,
		CloudName:     req.Options[optName],
		SizeGigabytes: size,
	})
	if err != nil {
		fail(w, r, "create", req.Name, err)
		return
	}
	respond(w, r, errorResponse{})
}

// Remove deprovisions a volume.
func (s *ApiService) Remove(w http.ResponseWriter, r *http.Request) {
	var req volume.RemoveRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, "remove", "", fmt.Errorf("decode request: %w", err))
		return
	}

	if err := s.VolumeManager.Deprovision(r.Context(), req.Name); err != nil {
		fail(w, r, "remove", req.Name, err)
		return
	}
	respond(w, r, errorResponse{})
}

// Mount attaches and mounts a volume for the requesting container.
func (s *ApiService) Mount(w http.ResponseWriter, r *http.Request) {
	var req volume.MountRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, "mount", "", fmt.Errorf("decode request: %w", err))
		return
	}

	path, err := s.VolumeManager.Mount(r.Context(), req.Name, req.ID)
	if err != nil {
		fail(w, r, "mount", req.Name, err)
		return
	}
	respond(w, r, mountResponse{MountResponse: volume.MountResponse{Mountpoint: path}})
}

// Path reports where a volume is mounted. It does not check registration.
func (s *ApiService) Path(w http.ResponseWriter, r *http.Request) {
	var req volume.PathRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, "path", "", fmt.Errorf("decode request: %w", err))
		return
	}
	respond(w, r, pathResponse{PathResponse: volume.PathResponse{Mountpoint: s.VolumeManager.MountPath(req.Name)}})
}

// Unmount releases the requesting container's use of a volume.
func (s *ApiService) Unmount(w http.ResponseWriter, r *http.Request) {
	var req volume.UnmountRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, "unmount", "", fmt.Errorf("decode request: %w", err))
		return
	}

	if err := s.VolumeManager.Unmount(r.Context(), req.Name, req.ID); err != nil {
		fail(w, r, "unmount", req.Name, err)
		return
	}
	respond(w, r, errorResponse{})
}

// Get describes a registered volume.
func (s *ApiService) Get(w http.ResponseWriter, r *http.Request) {
	var req volume.GetRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, "get", "", fmt.Errorf("decode request: %w", err))
		return
	}

	vol, err := s.VolumeManager.GetVolume(r.Context(), req.Name)
	if err != nil {
		fail(w, r, "get", req.Name, err)
		return
	}
	respond(w, r, getResponse{GetResponse: volume.GetResponse{Volume: toProtocol(*vol)}})
}

// List describes every registered volume.
func (s *ApiService) List(w http.ResponseWriter, r *http.Request) {
	vols, err := s.VolumeManager.ListVolumes(r.Context())
	if err != nil {
		fail(w, r, "list", "", err)
		return
	}

	logger.FromContext(r.Context()).DebugContext(r.Context(), "listed volumes", "count", len(vols))
	respond(w, r, listResponse{ListResponse: volume.ListResponse{
		Volumes: lo.Map(vols, func(v volumes.Volume, _ int) *volume.Volume { return toProtocol(v) }),
	}})
}

func toProtocol(v volumes.Volume) *volume.Volume {
	out := &volume.Volume{
		Name:       v.Name,
		Mountpoint: v.Mountpoint,
		Status: map[string]interface{}{
			"cloudName":     v.CloudName,
			"region":        v.Region,
			"sizeGigabytes": v.SizeGigabytes,
			"mounts":        v.Mounts,
		},
	}
	if !v.CreatedAt.IsZero() {
		out.CreatedAt = v.CreatedAt.Format(time.RFC3339)
	}
	return out
}

// parseSize converts the size option to whole gigabytes, rounding up.
// An empty value returns 0 so the cloud default applies.
func parseSize(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}

	if n, err := strconv.Atoi(raw); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("invalid size %q: must be positive", raw)
		}
		return n, nil
	}

	var bytes datasize.ByteSize
	if err := bytes.UnmarshalText([]byte(raw)); err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", raw, err)
	}
	if bytes == 0 {
		return 0, fmt.Errorf("invalid size %q: must be positive", raw)
	}
	gb := (uint64(bytes) + uint64(datasize.GB) - 1) / uint64(datasize.GB)
	return int(gb), nil
}
