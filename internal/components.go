package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/starford/studynotes/internal/datastore"
	"github.com/starford/studynotes/internal/identity"
	"github.com/starford/studynotes/internal/noteservice"
	"github.com/starford/studynotes/internal/orphans"
	"github.com/starford/studynotes/internal/storage"
)

var errConfigRequired = errors.New("config is required")

// filesPrefix is where the fs bucket is served from.
const filesPrefix = "/files"

func (a *application) setupLogger() *slog.Logger {
	out := a.logOutput
	if out == nil {
		out = os.Stdout
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// components are the collaborators shared by the server and the MCP
// command.
type components struct {
	db     *datastore.DB
	bucket storage.Bucket
	// files serves the fs bucket; nil for remote buckets.
	files   http.Handler
	redis   *redis.Client
	queue   orphans.Queue
	revoker identity.Revoker
	idp     *identity.Local
	notes   *noteservice.Service
}

func (c *components) Close() {
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			slog.Warn("close redis", slog.String("error", err.Error()))
		}
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			slog.Warn("close database", slog.String("error", err.Error()))
		}
	}
}

func newComponents(ctx context.Context, cfg *Config, events noteservice.Publisher) (_ *components, err error) {
	c := &components{}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	c.db, err = datastore.Open(ctx, cfg.Database.Dialect(), cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	if err := c.openBucket(ctx, cfg); err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	if cfg.Redis.Enabled() {
		c.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := c.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		c.queue = orphans.NewRedisQueue(c.redis, orphans.DefaultKey)
		c.revoker = identity.NewRedisRevoker(c.redis)
	} else {
		slog.Warn("redis not configured; token revocations and orphan queue are in memory")
		c.queue = orphans.NewMemoryQueue()
		c.revoker = identity.NewMemoryRevoker()
	}

	c.idp, err = identity.NewLocal(identity.LocalConfig{
		Secret:   cfg.Auth.Secret,
		TokenTTL: cfg.Auth.TokenTTL,
		ResetTTL: cfg.Auth.ResetTTL,
		ResetURL: cfg.Auth.ResetURL,
	}, c.db, c.revoker, identity.LogNotifier{})
	if err != nil {
		return nil, fmt.Errorf("init identity: %w", err)
	}

	c.notes = noteservice.NewService(c.db, c.bucket, c.queue, events)
	return c, nil
}

func (c *components) openBucket(ctx context.Context, cfg *Config) error {
	sc := cfg.Storage
	switch sc.Backend {
	case StorageFS:
		base := sc.PublicBaseURL
		if base == "" {
			base = strings.TrimRight(cfg.App.PublicURL, "/") + filesPrefix
		}
		fs, err := storage.NewFS(sc.Root, base)
		if err != nil {
			return err
		}
		c.bucket, c.files = fs, fs.Handler()
	case StorageS3:
		c.bucket = storage.NewS3(storage.S3Config{
			Endpoint:        sc.Endpoint,
			Region:          sc.Region,
			AccessKeyID:     sc.AccessKey,
			SecretAccessKey: sc.SecretKey,
			Bucket:          sc.Bucket,
			PublicBaseURL:   sc.PublicBaseURL,
		})
	case StorageMinIO:
		m, err := storage.NewMinIO(ctx, storage.MinIOConfig{
			Endpoint:      sc.Endpoint,
			AccessKey:     sc.AccessKey,
			SecretKey:     sc.SecretKey,
			Bucket:        sc.Bucket,
			UseSSL:        sc.UseSSL,
			PublicBaseURL: sc.PublicBaseURL,
		})
		if err != nil {
			return err
		}
		c.bucket = m
	default:
		return fmt.Errorf("unknown storage backend %q", sc.Backend)
	}
	slog.Info("storage ready", slog.String("backend", sc.Backend))
	return nil
}
