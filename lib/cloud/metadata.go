package cloud

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	metadata "github.com/digitalocean/go-metadata"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultMetadataURL is the droplet-local metadata service.
const DefaultMetadataURL = "http://169.254.169.254"

// metadataTimeout bounds a single metadata lookup. The endpoint is link-local,
// so anything slower than this means it is not there.
const metadataTimeout = 5 * time.Second

// hostResolver resolves the id of the droplet the plugin is running on.
type hostResolver interface {
	DropletID(ctx context.Context) (int, error)
}

// metadataClient reads the droplet id from the metadata service.
type metadataClient struct {
	client *metadata.Client
	err    error
}

func newMetadataClient(rawURL string) *metadataClient {
	if rawURL == "" {
		rawURL = DefaultMetadataURL
	}
	base, err := url.Parse(rawURL)
	if err != nil {
		return &metadataClient{err: fmt.Errorf("%w: parse %q: %v", ErrMetadataUnavailable, rawURL, err)}
	}
	return &metadataClient{
		client: metadata.NewClient(
			metadata.WithBaseURL(base),
			metadata.WithHTTPClient(&http.Client{
				Transport: otelhttp.NewTransport(http.DefaultTransport),
				Timeout:   metadataTimeout,
			}),
		),
	}
}

type metadataResult struct {
	md  *metadata.Metadata
	err error
}

// DropletID fetches the metadata document and returns the droplet id.
// The result is never cached.
func (m *metadataClient) DropletID(ctx context.Context) (int, error) {
	if m.err != nil {
		return 0, m.err
	}

	// The metadata client takes no context; the http timeout bounds the abandoned call
	done := make(chan metadataResult, 1)
	go func() {
		md, err := m.client.Metadata()
		done <- metadataResult{md: md, err: err}
	}()

	var res metadataResult
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%w: %w", ErrMetadataUnavailable, ctx.Err())
	case res = <-done:
	}

	if res.err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMetadataUnavailable, res.err)
	}
	if res.md == nil || res.md.DropletID == 0 {
		return 0, fmt.Errorf("%w: droplet_id missing", ErrMetadataUnavailable)
	}
	return res.md.DropletID, nil
}
