package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server  ServerConfig
	Backend BackendConfig
	Redis   RedisConfig
	Session SessionConfig
	Cache   CacheConfig
	Upload  UploadConfig
	Storage StorageConfig
	Queue   QueueConfig
	Email   EmailConfig
	Tracing TracingConfig
	Metrics MetricsConfig
	Logging LoggingConfig
	Admin   AdminConfig
	Media   MediaConfig
	Webhook WebhookConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	BaseURL         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// BackendConfig points at the external video/user service
type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// SessionConfig holds browser session settings
type SessionConfig struct {
	CookieName   string
	Secret       string
	TTL          time.Duration
	SecureCookie bool
	ResetTTL     time.Duration
}

// CacheConfig holds TTLs for memoized backend reads
type CacheConfig struct {
	Enabled     bool
	CatalogTTL  time.Duration
	VideoTTL    time.Duration
	DurationTTL time.Duration
}

// UploadConfig holds upload form limits
type UploadConfig struct {
	MaxDescriptionLength int
	MaxUploadBytes       int64
	ProgressTTL          time.Duration
}

// StorageConfig holds object storage configuration for thumbnails
type StorageConfig struct {
	Enabled         bool
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	UseSSL          bool
}

// QueueConfig holds message queue configuration
type QueueConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Vhost    string
}

// EmailConfig holds transactional email settings
type EmailConfig struct {
	BaseURL    string
	Username   string
	Password   string
	TemplateID int
}

// TracingConfig holds Jaeger settings
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
}

// MetricsConfig holds the metrics server settings
type MetricsConfig struct {
	Enabled bool
	Port    int
}

// LoggingConfig mirrors logging.Config
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// AdminConfig is the email/password pair that registers with the ADMIN role
type AdminConfig struct {
	Email    string
	Password string
}

// MediaConfig holds ffprobe settings
type MediaConfig struct {
	FFprobePath  string
	ProbeTimeout time.Duration
}

// WebhookConfig lists the endpoints activity events are posted to
type WebhookConfig struct {
	Enabled   bool
	Timeout   time.Duration
	Endpoints []WebhookEndpoint
}

// WebhookEndpoint is one subscriber. An empty Events list receives every
// event type.
type WebhookEndpoint struct {
	URL    string
	Secret string
	Events []string
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Session.Secret == "" {
		return nil, fmt.Errorf("session.secret is required")
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.baseURL", "http://localhost:8080")
	v.SetDefault("server.readTimeout", "30s") // request headers only
	v.SetDefault("server.writeTimeout", "0s") // uploads and streams are long-lived
	v.SetDefault("server.shutdownTimeout", "10s")
	v.SetDefault("server.allowedOrigins", []string{"http://localhost:5173"})

	// Backend defaults
	v.SetDefault("backend.baseURL", "http://localhost:8082")
	v.SetDefault("backend.timeout", "30s")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Session defaults
	v.SetDefault("session.cookieName", "streamflow_session")
	v.SetDefault("session.secret", "")
	v.SetDefault("session.ttl", "168h")
	v.SetDefault("session.secureCookie", false)
	v.SetDefault("session.resetTTL", "15m")

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.catalogTTL", "30s")
	v.SetDefault("cache.videoTTL", "5m")
	v.SetDefault("cache.durationTTL", "24h")

	// Upload defaults
	v.SetDefault("upload.maxDescriptionLength", 500)
	v.SetDefault("upload.maxUploadBytes", 2*1024*1024*1024) // 2GB
	v.SetDefault("upload.progressTTL", "1h")

	// Storage defaults
	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.accessKeyID", "minioadmin")
	v.SetDefault("storage.secretAccessKey", "minioadmin")
	v.SetDefault("storage.bucketName", "thumbnails")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.useSSL", false)

	// Queue defaults
	v.SetDefault("queue.enabled", false)
	v.SetDefault("queue.host", "localhost")
	v.SetDefault("queue.port", 5672)
	v.SetDefault("queue.user", "guest")
	v.SetDefault("queue.password", "guest")
	v.SetDefault("queue.vhost", "/")

	// Email defaults
	v.SetDefault("email.baseURL", "")
	v.SetDefault("email.templateID", 0)

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.serviceName", "streamflow-web")
	v.SetDefault("tracing.endpoint", "http://localhost:14268/api/traces")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// Admin defaults
	v.SetDefault("admin.email", "streamAdmin123@gmail.com")
	v.SetDefault("admin.password", "streamAdmin123")

	// Media defaults
	v.SetDefault("media.ffprobePath", "ffprobe")
	v.SetDefault("media.probeTimeout", "10s")

	// Webhook defaults
	v.SetDefault("webhook.enabled", false)
	v.SetDefault("webhook.timeout", "10s")
}

// Addr returns the listen address for the web server
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Addr returns the Redis address
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
