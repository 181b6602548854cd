package config

import (
	"fmt"
	"net"
	"time"

	"github.com/gogotex/pdf-annotator/internal/storage"
	"github.com/gogotex/pdf-annotator/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server       ServerConfig
	DocService   DocServiceConfig
	Editor       EditorConfig
	MongoDB      MongoDBConfig
	Redis        RedisConfig
	MinIO        storage.MinIOConfig
	Keycloak     KeycloakConfig
	ServiceToken ServiceTokenConfig
	RateLimit    RateLimitConfig
	LogLevel     string
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func (s ServerConfig) Addr() string { return net.JoinHostPort(s.Host, s.Port) }

// DocServiceConfig locates the remote document-processing service.
type DocServiceConfig struct {
	URL     string
	Timeout time.Duration
}

// EditorConfig tunes the editing sessions held by the annotation API.
type EditorConfig struct {
	DisplayWidth   float64
	SessionIdleTTL time.Duration
	SweepInterval  time.Duration
	PreviewTTL     time.Duration
	MaxUploadBytes int64
}

type MongoDBConfig struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr is empty when Redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return net.JoinHostPort(r.Host, r.Port)
}

type KeycloakConfig struct {
	URL          string
	Realm        string
	ClientID     string
	ClientSecret string
	// InsecureTokens skips signature checks; local testing only.
	InsecureTokens bool
}

// Issuer is the OIDC issuer URL of the realm, or "" when not configured.
func (k KeycloakConfig) Issuer() string {
	if k.URL == "" || k.Realm == "" {
		return ""
	}
	return k.URL + "/realms/" + k.Realm
}

// ServiceTokenConfig is the shared secret between the annotation API and
// the document service. An empty secret disables service authentication.
type ServiceTokenConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

type RateLimitConfig struct {
	RPS    float64
	Burst  int
	Window time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "5001")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("SERVER_READ_TIMEOUT", "30s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "60s")
	v.SetDefault("DOCSERVICE_URL", "http://localhost:7200/api")
	v.SetDefault("DOCSERVICE_TIMEOUT", "30s")
	v.SetDefault("EDITOR_DISPLAY_WIDTH", 600)
	v.SetDefault("EDITOR_SESSION_IDLE_TTL", "30m")
	v.SetDefault("EDITOR_SWEEP_INTERVAL", "1m")
	v.SetDefault("EDITOR_PREVIEW_TTL", "1h")
	v.SetDefault("EDITOR_MAX_UPLOAD_BYTES", 50<<20)
	v.SetDefault("MONGODB_DATABASE", "pdf_annotator")
	v.SetDefault("MONGODB_COLLECTION", "uploads")
	v.SetDefault("MONGODB_TIMEOUT", "10s")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("SERVICE_TOKEN_ISSUER", "pdf-annotator")
	v.SetDefault("SERVICE_TOKEN_TTL", "5m")
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("RATE_LIMIT_WINDOW", "1s")
	v.SetDefault("LOG_LEVEL", "info")
}

// LoadConfig loads configuration from an optional .env file, an optional
// file named by CONFIG_FILE, and the environment, in increasing priority.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)
	if f := v.GetString("CONFIG_FILE"); f != "" {
		v.SetConfigFile(f)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", f, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			Host:         v.GetString("SERVER_HOST"),
			Environment:  v.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("SERVER_WRITE_TIMEOUT"),
		},
		DocService: DocServiceConfig{
			URL:     v.GetString("DOCSERVICE_URL"),
			Timeout: v.GetDuration("DOCSERVICE_TIMEOUT"),
		},
		Editor: EditorConfig{
			DisplayWidth:   v.GetFloat64("EDITOR_DISPLAY_WIDTH"),
			SessionIdleTTL: v.GetDuration("EDITOR_SESSION_IDLE_TTL"),
			SweepInterval:  v.GetDuration("EDITOR_SWEEP_INTERVAL"),
			PreviewTTL:     v.GetDuration("EDITOR_PREVIEW_TTL"),
			MaxUploadBytes: v.GetInt64("EDITOR_MAX_UPLOAD_BYTES"),
		},
		MongoDB: MongoDBConfig{
			URI:        v.GetString("MONGODB_URI"),
			Database:   v.GetString("MONGODB_DATABASE"),
			Collection: v.GetString("MONGODB_COLLECTION"),
			Timeout:    v.GetDuration("MONGODB_TIMEOUT"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		// MinIO settings are read from the environment only.
		MinIO: *storage.LoadMinIOConfig(),
		Keycloak: KeycloakConfig{
			URL:            v.GetString("KEYCLOAK_URL"),
			Realm:          v.GetString("KEYCLOAK_REALM"),
			ClientID:       v.GetString("KEYCLOAK_CLIENT_ID"),
			ClientSecret:   v.GetString("KEYCLOAK_CLIENT_SECRET"),
			InsecureTokens: v.GetBool("ALLOW_INSECURE_TOKEN"),
		},
		ServiceToken: ServiceTokenConfig{
			Secret: v.GetString("SERVICE_TOKEN_SECRET"),
			Issuer: v.GetString("SERVICE_TOKEN_ISSUER"),
			TTL:    v.GetDuration("SERVICE_TOKEN_TTL"),
		},
		RateLimit: RateLimitConfig{
			RPS:    v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:  v.GetInt("RATE_LIMIT_BURST"),
			Window: v.GetDuration("RATE_LIMIT_WINDOW"),
		},
		LogLevel: v.GetString("LOG_LEVEL"),
	}

	if cfg.Editor.DisplayWidth <= 0 {
		return nil, fmt.Errorf("EDITOR_DISPLAY_WIDTH must be positive, got %v", cfg.Editor.DisplayWidth)
	}
	if cfg.ServiceToken.Secret == "" {
		logger.Warnf("config: SERVICE_TOKEN_SECRET is not set; calls to the document service are unauthenticated")
	}
	return cfg, nil
}
