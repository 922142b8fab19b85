package cloud

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDropletID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1.json"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"droplet_id": 2756294, "hostname": "sample-droplet", "region": "nyc3"}`))
	}))
	defer srv.Close()

	m := newMetadataClient(srv.URL)
	id, err := m.DropletID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2756294, id)
}

func TestDropletID_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	m := newMetadataClient(srv.URL)
	_, err := m.DropletID(context.Background())
	assert.ErrorIs(t, err, ErrMetadataUnavailable)
}

func TestDropletID_InvalidURL(t *testing.T) {
	m := newMetadataClient("://bad")
	_, err := m.DropletID(context.Background())
	assert.ErrorIs(t, err, ErrMetadataUnavailable)
}

func TestDropletID_BadResponses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{}`},
		{name: "invalid json", status: http.StatusOK, body: `not json`},
		{name: "missing id", status: http.StatusOK, body: `{"hostname": "x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newMetadataClient(srv.URL).DropletID(context.Background())
			assert.ErrorIs(t, err, ErrMetadataUnavailable)
		})
	}
}

func TestDropletID_ContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte(`{"droplet_id": 1}`))
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newMetadataClient(srv.URL).DropletID(ctx)
	assert.ErrorIs(t, err, ErrMetadataUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDropletID_NotCached(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"droplet_id": 1}`))
	}))
	defer srv.Close()

	m := newMetadataClient(srv.URL)
	for i := 0; i < 3; i++ {
		_, err := m.DropletID(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), hits.Load())
}
