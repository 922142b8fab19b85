package api

import (
	"net/http"

	"github.com/docker/go-plugins-helpers/volume"
)

type activateResponse struct {
	Implements []string
}

// Activate announces the volume driver capability.
func (s *ApiService) Activate(w http.ResponseWriter, r *http.Request) {
	respond(w, r, activateResponse{Implements: []string{"VolumeDriver"}})
}

// Capabilities reports global scope: a volume is visible to every host in the region.
func (s *ApiService) Capabilities(w http.ResponseWriter, r *http.Request) {
	respond(w, r, volume.CapabilitiesResponse{
		Capabilities: volume.Capability{Scope: "global"},
	})
}
