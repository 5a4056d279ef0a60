package state

import (
	"context"
	stderrors "errors"

	"github.com/ajitpratap0/nebula-gocardless/pkg/connector/core"
	"github.com/ajitpratap0/nebula-gocardless/pkg/errors"
	"github.com/go-redis/redis/v8"
)

// RedisStore keeps each stream's state under "<namespace>:state:<stream>".
type RedisStore struct {
	client    *redis.Client
	namespace string
}

// NewRedisStore connects to url, e.g. redis://localhost:6379/0.
func NewRedisStore(ctx context.Context, url, namespace string) (*RedisStore, error) {
	if url == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "state url is required for the redis backend")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid redis url")
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "ping redis")
	}
	return &RedisStore{client: client, namespace: namespace}, nil
}

func (r *RedisStore) key(stream string) string {
	if r.namespace == "" {
		return "state:" + stream
	}
	return r.namespace + ":state:" + stream
}

func (r *RedisStore) Load(ctx context.Context, stream string) (core.State, error) {
	raw, err := r.client.Get(ctx, r.key(stream)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeState, "load state for "+stream)
	}
	return decode(raw)
}

func (r *RedisStore) Save(ctx context.Context, stream string, state core.State) error {
	if err := validateStream(stream); err != nil {
		return err
	}
	b, err := encode(state)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(stream), b, 0).Err(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "save state for "+stream)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, stream string) error {
	if err := r.client.Del(ctx, r.key(stream)).Err(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "delete state for "+stream)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
