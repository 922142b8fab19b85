// Package api implements the Docker volume plugin protocol on top of the volume manager.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/onkernel/dobs/cmd/api/config"
	"github.com/onkernel/dobs/lib/logger"
	"github.com/onkernel/dobs/lib/volumes"
)

// ApiService serves the plugin protocol endpoints.
type ApiService struct {
	Config        *config.Config
	VolumeManager volumes.Manager
}

// New creates a new ApiService
func New(config *config.Config, volumeManager volumes.Manager) *ApiService {
	return &ApiService{
		Config:        config,
		VolumeManager: volumeManager,
	}
}

// Routes registers every protocol endpoint on r.
func (s *ApiService) Routes(r chi.Router) {
	r.Post("/Plugin.Activate", s.Activate)
	r.Post("/VolumeDriver.Create", s.Create)
	r.Post("/VolumeDriver.Remove", s.Remove)
	r.Post("/VolumeDriver.Mount", s.Mount)
	r.Post("/VolumeDriver.Path", s.Path)
	r.Post("/VolumeDriver.Unmount", s.Unmount)
	r.Post("/VolumeDriver.Get", s.Get)
	r.Post("/VolumeDriver.List", s.List)
	r.Post("/VolumeDriver.Capabilities", s.Capabilities)
}

// errorResponse is the protocol's failure body. Every response carries Err,
// empty on success.
type errorResponse struct {
	Err string
}

// decode reads a JSON request body into v. Docker sends an empty body for
// parameterless calls, which is accepted.
func decode(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// respond writes v as the protocol response. Failures are reported in Err
// with a 200 status.
func respond(w http.ResponseWriter, r *http.Request, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.FromContext(r.Context()).ErrorContext(r.Context(), "failed to write response", "error", err)
	}
}

// fail logs err and writes its protocol translation.
func fail(w http.ResponseWriter, r *http.Request, op, name string, err error) {
	logger.FromContext(r.Context()).ErrorContext(r.Context(), op+" failed", "name", name, "error", err)
	respond(w, r, errorResponse{Err: errorMessage(err)})
}

// errorMessage translates a manager error into the message Docker shows the user.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, volumes.ErrNotFound):
		return "Volume not found"
	default:
		return err.Error()
	}
}
