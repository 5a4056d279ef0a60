// Package state persists per-stream connector state between runs.
package state

import (
	"context"
	"regexp"
	"strings"

	"github.com/ajitpratap0/nebula-gocardless/pkg/config"
	"github.com/ajitpratap0/nebula-gocardless/pkg/connector/core"
	"github.com/ajitpratap0/nebula-gocardless/pkg/errors"
	jsonpool "github.com/ajitpratap0/nebula-gocardless/pkg/json"
)

// Backend names accepted by New.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendS3       = "s3"
)

// Store persists state keyed by stream name.
type Store interface {
	// Load returns the saved state, or nil when the stream has none.
	Load(ctx context.Context, stream string) (core.State, error)
	Save(ctx context.Context, stream string, state core.State) error
	Delete(ctx context.Context, stream string) error
	Close() error
}

// New builds the store selected by cfg.Backend.
func New(ctx context.Context, cfg config.StateConfig) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendFile, "":
		return NewFileStore(cfg.Path)
	case BackendSQLite:
		return NewSQLiteStore(ctx, cfg.DSN, cfg.Table)
	case BackendPostgres:
		return NewPostgresStore(ctx, cfg.DSN, cfg.Table)
	case BackendRedis:
		return NewRedisStore(ctx, cfg.URL, cfg.Namespace)
	case BackendS3:
		return NewS3Store(ctx, S3Config{
			Bucket:   cfg.Bucket,
			Region:   cfg.Region,
			Endpoint: cfg.Endpoint,
			Prefix:   cfg.Namespace,
		})
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown state backend %q", cfg.Backend)
	}
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

func validateStream(stream string) error {
	if stream == "" {
		return errors.New(errors.ErrorTypeValidation, "stream name is required")
	}
	return nil
}

func encode(state core.State) ([]byte, error) {
	if state == nil {
		state = core.State{}
	}
	b, err := jsonpool.Marshal(state)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeState, "failed to encode state")
	}
	return b, nil
}

// decode keeps numbers as json.Number so Unix cursors survive unchanged.
func decode(b []byte) (core.State, error) {
	var s core.State
	if err := jsonpool.Unmarshal(b, &s); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeState, "failed to decode state")
	}
	return s, nil
}
