package cloud

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/digitalocean/godo"
	"github.com/onkernel/dobs/lib/logger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/oauth2"
)

const (
	defaultActionTimeout = 2 * time.Minute
	defaultPollInterval  = time.Second
	apiTimeout           = 30 * time.Second
)

// Client wraps the DigitalOcean volume API and the host identity lookup.
type Client interface {
	// ResolveHostID returns the id of the droplet we are running on.
	ResolveHostID(ctx context.Context) (int, error)

	// FindVolume returns the named volume in the configured region, or nil if none exists.
	FindVolume(ctx context.Context, name string) (*Volume, error)

	// Provision creates a volume, or returns the existing one with the same name.
	Provision(ctx context.Context, logicalName, cloudName string, sizeGigabytes int) (*Volume, error)

	// Deprovision detaches (if needed) and deletes a volume. Absent volumes are a no-op.
	Deprovision(ctx context.Context, cloudName string) error

	// Attach attaches a volume to a host and waits for the action to finish.
	Attach(ctx context.Context, hostID int, vol *Volume) error

	// Detach detaches a volume from a host and waits for the action to finish.
	Detach(ctx context.Context, hostID int, vol *Volume) error
}

// Config configures the cloud client.
type Config struct {
	Token         string
	Region        string
	APIURL        string
	MetadataURL   string
	UserAgent     string
	ActionTimeout time.Duration
	PollInterval  time.Duration
}

type client struct {
	storage       godo.StorageService
	actions       godo.StorageActionsService
	host          hostResolver
	region        string
	actionTimeout time.Duration
	pollInterval  time.Duration
	metrics       *Metrics
}

// NewClient creates a cloud client authenticated with the configured token.
func NewClient(ctx context.Context, cfg Config, meter metric.Meter) (Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("cloud: token is required")
	}
	if cfg.Region == "" {
		return nil, errors.New("cloud: region is required")
	}

	base := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	httpClient := oauth2.NewClient(
		context.WithValue(ctx, oauth2.HTTPClient, base),
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}),
	)
	httpClient.Timeout = apiTimeout

	opts := []godo.ClientOpt{}
	if cfg.UserAgent != "" {
		opts = append(opts, godo.SetUserAgent(cfg.UserAgent))
	}
	if cfg.APIURL != "" {
		opts = append(opts, godo.SetBaseURL(cfg.APIURL))
	}
	api, err := godo.New(httpClient, opts...)
	if err != nil {
		return nil, fmt.Errorf("create api client: %w", err)
	}

	metrics, err := NewMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}

	return newClient(api.Storage, api.StorageActions, newMetadataClient(cfg.MetadataURL), cfg, metrics), nil
}

func newClient(storage godo.StorageService, actions godo.StorageActionsService, host hostResolver, cfg Config, metrics *Metrics) *client {
	c := &client{
		storage:       storage,
		actions:       actions,
		host:          host,
		region:        cfg.Region,
		actionTimeout: cfg.ActionTimeout,
		pollInterval:  cfg.PollInterval,
		metrics:       metrics,
	}
	if c.actionTimeout <= 0 {
		c.actionTimeout = defaultActionTimeout
	}
	if c.pollInterval <= 0 {
		c.pollInterval = defaultPollInterval
	}
	return c
}

func (c *client) ResolveHostID(ctx context.Context) (int, error) {
	start := time.Now()
	id, err := c.host.DropletID(ctx)
	c.metrics.RecordAPICall(ctx, "metadata", start, err)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (c *client) FindVolume(ctx context.Context, name string) (*Volume, error) {
	start := time.Now()
	vols, _, err := c.storage.ListVolumes(ctx, &godo.ListVolumeParams{
		Region: c.region,
		Name:   name,
	})
	c.metrics.RecordAPICall(ctx, "list_volumes", start, err)
	if err != nil {
		return nil, fmt.Errorf("list volumes named %s: %w", name, err)
	}
	if len(vols) == 0 {
		return nil, nil
	}
	return fromGodo(&vols[0]), nil
}

func (c *client) Provision(ctx context.Context, logicalName, cloudName string, sizeGigabytes int) (*Volume, error) {
	log := logger.FromContext(ctx)

	name := cloudName
	if name == "" {
		name = logicalName
	}
	if sizeGigabytes <= 0 {
		sizeGigabytes = DefaultSizeGigabytes
	}

	existing, err := c.FindVolume(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		// Size and region mismatches are not reconciled.
		log.InfoContext(ctx, "volume already exists", "cloud_name", name, "size_gb", existing.SizeGigabytes)
		return existing, nil
	}

	start := time.Now()
	created, _, err := c.storage.CreateVolume(ctx, &godo.VolumeCreateRequest{
		Region:         c.region,
		Name:           name,
		SizeGigaBytes:  int64(sizeGigabytes),
		FilesystemType: FilesystemType,
	})
	c.metrics.RecordAPICall(ctx, "create_volume", start, err)
	if err != nil {
		return nil, fmt.Errorf("create volume %s: %w", name, err)
	}

	log.InfoContext(ctx, "created volume", "cloud_name", name, "id", created.ID, "size_gb", sizeGigabytes)
	return fromGodo(created), nil
}

func (c *client) Deprovision(ctx context.Context, cloudName string) error {
	log := logger.FromContext(ctx)

	vol, err := c.FindVolume(ctx, cloudName)
	if err != nil {
		return err
	}
	if vol == nil {
		log.InfoContext(ctx, "volume already gone", "cloud_name", cloudName)
		return nil
	}

	if vol.Attached() {
		hostID, err := c.ResolveHostID(ctx)
		if err != nil {
			return err
		}
		if err := c.Detach(ctx, hostID, vol); err != nil {
			return err
		}
	}

	start := time.Now()
	_, err = c.storage.DeleteVolume(ctx, vol.ID)
	c.metrics.RecordAPICall(ctx, "delete_volume", start, err)
	if err != nil {
		return fmt.Errorf("delete volume %s: %w", cloudName, err)
	}

	log.InfoContext(ctx, "deleted volume", "cloud_name", cloudName, "id", vol.ID)
	return nil
}

func (c *client) Attach(ctx context.Context, hostID int, vol *Volume) error {
	logger.FromContext(ctx).InfoContext(ctx, "attaching volume", "cloud_name", vol.Name, "host_id", hostID)

	start := time.Now()
	action, _, err := c.actions.Attach(ctx, vol.ID, hostID)
	c.metrics.RecordAPICall(ctx, "attach", start, err)
	if err != nil {
		return fmt.Errorf("attach volume %s to %d: %w", vol.Name, hostID, err)
	}
	return c.awaitAction(ctx, vol, action, ErrAttachmentFailed)
}

func (c *client) Detach(ctx context.Context, hostID int, vol *Volume) error {
	logger.FromContext(ctx).InfoContext(ctx, "detaching volume", "cloud_name", vol.Name, "host_id", hostID)

	start := time.Now()
	action, _, err := c.actions.DetachByDropletID(ctx, vol.ID, hostID)
	c.metrics.RecordAPICall(ctx, "detach", start, err)
	if err != nil {
		return fmt.Errorf("detach volume %s from %d: %w", vol.Name, hostID, err)
	}
	return c.awaitAction(ctx, vol, action, ErrDetachmentFailed)
}

// awaitAction polls a submitted action until it completes, errors, or times out.
// An action reported completed in the submission response returns immediately.
func (c *client) awaitAction(ctx context.Context, vol *Volume, action *godo.Action, failed error) error {
	if action == nil {
		return fmt.Errorf("%w: no action returned for volume %s", failed, vol.Name)
	}

	switch action.Status {
	case statusCompleted:
		return nil
	case statusErrored:
		return fmt.Errorf("%w: action %d on volume %s", failed, action.ID, vol.Name)
	}

	poll := func() (*godo.Action, error) {
		start := time.Now()
		current, _, err := c.actions.Get(ctx, vol.ID, action.ID)
		c.metrics.RecordAPICall(ctx, "get_action", start, err)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("get action %d: %w", action.ID, err))
		}
		switch current.Status {
		case statusCompleted:
			return current, nil
		case statusErrored:
			return nil, backoff.Permanent(fmt.Errorf("%w: action %d on volume %s", failed, current.ID, vol.Name))
		}
		return nil, errActionPending
	}

	_, err := backoff.Retry(ctx, poll,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.pollInterval)),
		backoff.WithMaxElapsedTime(c.actionTimeout),
	)
	if errors.Is(err, errActionPending) {
		return fmt.Errorf("%w: action %d on volume %s after %s", ErrTimeout, action.ID, vol.Name, c.actionTimeout)
	}
	// The caller's deadline can expire before the action timeout does
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: action %d on volume %s: %w", ErrTimeout, action.ID, vol.Name, err)
	}
	return err
}
