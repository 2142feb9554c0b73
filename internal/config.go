package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/studynotes/internal/datastore"
)

// Storage backends.
const (
	StorageFS    = "fs"
	StorageS3    = "s3"
	StorageMinIO = "minio"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Database DatabaseConfig    `yaml:"database"`
	Storage  StorageConfig     `yaml:"storage"`
	Auth     AuthConfig        `yaml:"auth"`
	Redis    RedisConfig       `yaml:"redis"`
	Orphans  OrphansConfig     `yaml:"orphans"`
	Tracing  TracingConfig     `yaml:"tracing"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	sections := []struct {
		name string
		v    validation.Validatable
	}{
		{"app", &c.App},
		{"database", &c.Database},
		{"storage", &c.Storage},
		{"auth", &c.Auth},
		{"redis", &c.Redis},
		{"orphans", &c.Orphans},
		{"tracing", &c.Tracing},
	}
	for _, s := range sections {
		if err := s.v.Validate(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
	// PublicURL is where clients reach the server; the fs bucket serves
	// files under PublicURL + "/files".
	PublicURL   string   `yaml:"public_url"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.PublicURL, validation.Required, is.URL),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.ReadTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.WriteTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.IdleTimeout, validation.Min(time.Duration(0))),
	)
}

// DatabaseConfig selects the note and account database.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// Dialect returns the datastore dialect for Driver.
func (c *DatabaseConfig) Dialect() datastore.Dialect {
	return datastore.Dialect(c.Driver)
}

// Validate validates the database configuration.
func (c *DatabaseConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required,
			validation.In(string(datastore.DialectSQLite), string(datastore.DialectPostgres))),
		validation.Field(&c.DSN, validation.Required),
	)
}

// StorageConfig selects the bucket holding uploaded files.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	// Root is the directory of the fs backend.
	Root          string `yaml:"root"`
	Bucket        string `yaml:"bucket"`
	Endpoint      string `yaml:"endpoint"`
	Region        string `yaml:"region"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	UseSSL        bool   `yaml:"use_ssl"`
	PublicBaseURL string `yaml:"public_base_url"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	remote := c.Backend == StorageS3 || c.Backend == StorageMinIO
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(StorageFS, StorageS3, StorageMinIO)),
		validation.Field(&c.Root, validation.When(c.Backend == StorageFS, validation.Required)),
		validation.Field(&c.Bucket, validation.When(remote, validation.Required)),
		validation.Field(&c.Region, validation.When(c.Backend == StorageS3 && c.Endpoint == "", validation.Required)),
		validation.Field(&c.Endpoint, validation.When(c.Backend == StorageMinIO, validation.Required)),
		validation.Field(&c.AccessKey, validation.When(remote, validation.Required)),
		validation.Field(&c.SecretKey, validation.When(remote, validation.Required)),
		validation.Field(&c.PublicBaseURL, is.URL),
	)
}

// AuthConfig configures the bundled identity provider.
type AuthConfig struct {
	Secret   string        `yaml:"secret"`
	TokenTTL time.Duration `yaml:"token_ttl"`
	ResetTTL time.Duration `yaml:"reset_ttl"`
	// ResetURL is the page password reset links point at.
	ResetURL string `yaml:"reset_url"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Secret, validation.Required, validation.Length(16, 0)),
		validation.Field(&c.TokenTTL, validation.Required, validation.Min(time.Minute)),
		validation.Field(&c.ResetTTL, validation.Required, validation.Min(time.Minute)),
		validation.Field(&c.ResetURL, validation.Required, is.URL),
	)
}

// RedisConfig is optional. Without an address, token revocations and the
// orphan queue are kept in process memory.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Enabled reports whether a Redis server is configured.
func (c *RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// Validate validates the Redis configuration.
func (c *RedisConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DB, validation.Min(0), validation.Max(15)),
	)
}

// OrphansConfig tunes the sweeper that removes objects left behind by
// failed uploads and deletes.
type OrphansConfig struct {
	Interval    time.Duration `yaml:"interval"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// Validate validates the orphan sweeper configuration.
func (c *OrphansConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Interval, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.MaxAttempts, validation.Required, validation.Min(1)),
	)
}

// TracingConfig configures OTLP trace export.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
	Insecure    bool   `yaml:"insecure"`
}

// Validate validates the tracing configuration.
func (c *TracingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Endpoint, validation.When(c.Enabled, validation.Required)),
		validation.Field(&c.ServiceName, validation.When(c.Enabled, validation.Required)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port:         8080,
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 60 * time.Second,
				IdleTimeout:  120 * time.Second,
			},
			PublicURL:   "http://localhost:8080",
			CORSOrigins: []string{"http://localhost:5173"},
		},
		Database: DatabaseConfig{
			Driver: string(datastore.DialectSQLite),
			DSN:    "./studynotes.db",
		},
		Storage: StorageConfig{
			Backend: StorageFS,
			Root:    "./notes",
			Bucket:  "notes",
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
			ResetTTL: time.Hour,
			ResetURL: "http://localhost:5173/reset-password",
		},
		Orphans: OrphansConfig{
			Interval:    time.Minute,
			MaxAttempts: 5,
		},
		Tracing: TracingConfig{
			Endpoint:    "localhost:4318",
			ServiceName: "studynotes",
			Insecure:    true,
		},
	}
}
