package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ErrConfigMissing is returned when a required setting is absent.
var ErrConfigMissing = errors.New("required configuration missing")

// Registry backends.
const (
	RegistryMemory = "memory"
	RegistryBolt   = "bolt"
)

type Config struct {
	// DigitalOcean
	Token       string
	Region      string
	APIURL      string
	MetadataURL string

	// Plugin
	PluginSocket    string
	SocketGroup     string
	MountRoot       string
	DeviceDir       string
	DataDir         string
	RegistryBackend string

	// Polling
	ActionTimeout time.Duration
	SettleTimeout time.Duration
	PollInterval  time.Duration

	// OpenTelemetry
	OtelEnabled           bool
	OtelEndpoint          string
	OtelServiceName       string
	OtelServiceInstanceID string
	OtelInsecure          bool

	Version string
	Env     string
}

const (
	defaultActionTimeout = 2 * time.Minute
	defaultSettleTimeout = time.Minute

	// requestSlack covers the API calls around the polled waits.
	requestSlack = 30 * time.Second
)

// Load loads configuration from environment variables
// Automatically loads .env file if present
func Load() *Config {
	// Try to load .env file (fail silently if not present)
	_ = godotenv.Load()

	hostname, _ := os.Hostname()

	return &Config{
		Token:       getEnv("DO_TOKEN", ""),
		Region:      getEnv("DO_REGION", ""),
		APIURL:      getEnv("DO_API_URL", ""),
		MetadataURL: getEnv("METADATA_URL", "http://169.254.169.254"),

		PluginSocket:    getEnv("PLUGIN_SOCKET", "/run/docker/plugins/dobs.sock"),
		SocketGroup:     getEnv("SOCKET_GROUP", "root"),
		MountRoot:       getEnv("MOUNT_ROOT", "/mnt/volumes"),
		DeviceDir:       getEnv("DEVICE_DIR", "/dev/disk/by-id"),
		DataDir:         getEnv("DATA_DIR", "/var/lib/dobs"),
		RegistryBackend: getEnv("REGISTRY_BACKEND", RegistryMemory),

		ActionTimeout: getEnvDuration("ACTION_TIMEOUT", defaultActionTimeout),
		SettleTimeout: getEnvDuration("SETTLE_TIMEOUT", defaultSettleTimeout),
		PollInterval:  getEnvDuration("POLL_INTERVAL", time.Second),

		OtelEnabled:           getEnvBool("OTEL_ENABLED", false),
		OtelEndpoint:          getEnv("OTEL_ENDPOINT", "127.0.0.1:4317"),
		OtelServiceName:       getEnv("OTEL_SERVICE_NAME", "dobs"),
		OtelServiceInstanceID: getEnv("OTEL_SERVICE_INSTANCE_ID", hostname),
		OtelInsecure:          getEnvBool("OTEL_INSECURE", true),

		Version: getEnv("VERSION", "dev"),
		Env:     getEnv("ENV", "unset"),
	}
}

// Validate checks that the configuration can start the plugin.
func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("%w: DO_TOKEN", ErrConfigMissing)
	}
	if c.Region == "" {
		return fmt.Errorf("%w: DO_REGION", ErrConfigMissing)
	}
	switch c.RegistryBackend {
	case RegistryMemory, RegistryBolt:
	default:
		return fmt.Errorf("invalid REGISTRY_BACKEND %q: want %s or %s", c.RegistryBackend, RegistryMemory, RegistryBolt)
	}
	return nil
}

// RequestTimeout bounds a single plugin call. A migrating mount detaches, attaches
// and waits for the device, so the budget covers two actions and one settle.
func (c *Config) RequestTimeout() time.Duration {
	action := c.ActionTimeout
	if action <= 0 {
		action = defaultActionTimeout
	}
	settle := c.SettleTimeout
	if settle <= 0 {
		settle = defaultSettleTimeout
	}
	return 2*action + settle + requestSlack
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
