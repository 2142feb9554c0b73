package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/studynotes/pkg/config"
)

func validConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.Auth.Secret = "0123456789abcdef0123"
	return cfg
}

func TestDefaultConfig_RequiresSecret(t *testing.T) {
	err := NewDefaultConfig().Validate()
	if err == nil {
		t.Fatal("default config without a secret should fail")
	}
	if !strings.HasPrefix(err.Error(), "auth:") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDefaultConfig_ValidWithSecret(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("default config with secret should pass: %v", err)
	}
}

func TestAuthConfig_ShortSecret(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.Secret = "short"
	if err := cfg.Validate(); err == nil {
		t.Fatal("short secret should fail validation")
	}
}

func TestDatabaseConfig_UnknownDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Driver = "mysql"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown driver should fail validation")
	}
}

func TestStorageConfig_Backends(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*StorageConfig)
		wantErr bool
	}{
		{"fs default", func(*StorageConfig) {}, false},
		{"fs without root", func(c *StorageConfig) { c.Root = "" }, true},
		{"unknown backend", func(c *StorageConfig) { c.Backend = "ftp" }, true},
		{"s3 without credentials", func(c *StorageConfig) { c.Backend = StorageS3; c.Region = "eu-west-1" }, true},
		{"s3 complete", func(c *StorageConfig) {
			c.Backend = StorageS3
			c.Region = "eu-west-1"
			c.AccessKey, c.SecretKey = "ak", "sk"
		}, false},
		{"s3 custom endpoint without region", func(c *StorageConfig) {
			c.Backend = StorageS3
			c.Endpoint = "https://account.r2.cloudflarestorage.com"
			c.AccessKey, c.SecretKey = "ak", "sk"
		}, false},
		{"minio without endpoint", func(c *StorageConfig) {
			c.Backend = StorageMinIO
			c.AccessKey, c.SecretKey = "ak", "sk"
		}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg.Storage)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestTracingConfig_EnabledNeedsEndpoint(t *testing.T) {
	cfg := validConfig()
	cfg.Tracing.Enabled = true
	cfg.Tracing.Endpoint = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("enabled tracing without endpoint should fail")
	}
}

func TestRedisConfig_Enabled(t *testing.T) {
	cfg := validConfig()
	if cfg.Redis.Enabled() {
		t.Error("redis should be disabled by default")
	}
	cfg.Redis.Addr = "localhost:6379"
	if !cfg.Redis.Enabled() {
		t.Error("redis with an address should be enabled")
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	t.Setenv("STUDYNOTES_TEST_SECRET", "from-the-environment-123")
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
app:
  log_level: debug
  http:
    port: 9090
    read_timeout: 5s
auth:
  secret: ${STUDYNOTES_TEST_SECRET}
orphans:
  interval: 30s
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.HTTP.Port != 9090 {
		t.Errorf("port = %d", cfg.App.HTTP.Port)
	}
	if cfg.App.HTTP.ReadTimeout != 5*time.Second {
		t.Errorf("read timeout = %v", cfg.App.HTTP.ReadTimeout)
	}
	if cfg.App.HTTP.WriteTimeout != 60*time.Second {
		t.Errorf("write timeout default lost: %v", cfg.App.HTTP.WriteTimeout)
	}
	if cfg.Auth.Secret != "from-the-environment-123" {
		t.Errorf("secret = %q", cfg.Auth.Secret)
	}
	if cfg.Orphans.Interval != 30*time.Second {
		t.Errorf("interval = %v", cfg.Orphans.Interval)
	}
	if cfg.App.LogLevel.String() != "DEBUG" {
		t.Errorf("log level = %v", cfg.App.LogLevel)
	}
}
