package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/backoffice/pkg/observability"
)

// DefaultKey is the single key under which the session token is persisted
const DefaultKey = "backoffice.token"

// Backend names
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendSQL   = "sql"
)

// ErrNotFound is returned by Load when no token is persisted
var ErrNotFound = errors.New("no persisted token")

// Store persists the session token across process restarts.
// It holds exactly one key.
type Store interface {
	// Load returns the persisted token or ErrNotFound
	Load(ctx context.Context) (string, error)

	// Save persists the token, replacing any previous one
	Save(ctx context.Context, token string) error

	// Delete removes the persisted token. Deleting a missing token is not an error.
	Delete(ctx context.Context) error

	// Backend names the storage backend for logs and metrics
	Backend() string

	// Close releases backend resources
	Close() error
}

// Config selects and configures a backend
type Config struct {
	Type string // "file", "redis", "sql"
	Key  string

	// File config
	Dir string

	// Redis config
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// SQL config
	SQLDriver string // "sqlite3" or "postgres"
	SQLDSN    string
}

// DefaultConfig returns the file backend under the user's config directory
func DefaultConfig() Config {
	return Config{
		Type:      BackendFile,
		Key:       DefaultKey,
		Dir:       defaultDir(),
		RedisDB:   -1,
		SQLDriver: "sqlite3",
	}
}

// Validate checks the configuration of the selected backend
func (c Config) Validate() error {
	if c.Key == "" {
		return fmt.Errorf("token store key is required")
	}

	switch c.Type {
	case BackendFile:
		if c.Dir == "" {
			return fmt.Errorf("token store directory is required for file backend")
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("redis URL is required for redis backend")
		}
	case BackendSQL:
		if c.SQLDSN == "" {
			return fmt.Errorf("SQL DSN is required for sql backend")
		}
		if c.SQLDriver != "sqlite3" && c.SQLDriver != "postgres" {
			return fmt.Errorf("invalid SQL driver: %s (must be sqlite3 or postgres)", c.SQLDriver)
		}
	default:
		return fmt.Errorf("invalid token store type: %s (must be file, redis, or sql)", c.Type)
	}

	return nil
}

// Open creates the configured backend
func Open(ctx context.Context, cfg Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case BackendRedis:
		return NewRedisStore(ctx, cfg)
	case BackendSQL:
		return OpenSQLStore(ctx, cfg.SQLDriver, cfg.SQLDSN, cfg.Key)
	default:
		return NewFileStore(cfg.Dir, cfg.Key)
	}
}

// instrumentedStore records metrics and debug logs around another Store
type instrumentedStore struct {
	Store
	metrics *observability.Metrics
	logger  *observability.Logger
}

// Instrument wraps a store with metrics and logging
func Instrument(store Store, metrics *observability.Metrics, logger *observability.Logger) Store {
	if logger == nil {
		logger = observability.Discard()
	}
	return &instrumentedStore{
		Store:   store,
		metrics: metrics,
		logger:  logger.WithField("backend", store.Backend()),
	}
}

func (s *instrumentedStore) Load(ctx context.Context) (string, error) {
	start := time.Now()
	token, err := s.Store.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		s.metrics.RecordTokenStoreOperation("load", s.Backend(), start, nil)
		return "", err
	}
	s.metrics.RecordTokenStoreOperation("load", s.Backend(), start, err)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load persisted token")
	}
	return token, err
}

func (s *instrumentedStore) Save(ctx context.Context, token string) error {
	start := time.Now()
	err := s.Store.Save(ctx, token)
	s.metrics.RecordTokenStoreOperation("save", s.Backend(), start, err)
	if err != nil {
		s.logger.WithError(err).Error("Failed to persist token")
	}
	return err
}

func (s *instrumentedStore) Delete(ctx context.Context) error {
	start := time.Now()
	err := s.Store.Delete(ctx)
	s.metrics.RecordTokenStoreOperation("delete", s.Backend(), start, err)
	if err != nil {
		s.logger.WithError(err).Error("Failed to delete persisted token")
	}
	return err
}
