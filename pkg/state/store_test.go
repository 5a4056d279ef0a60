package state

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ajitpratap0/nebula-gocardless/pkg/config"
	"github.com/ajitpratap0/nebula-gocardless/pkg/connector/core"
	"github.com/ajitpratap0/nebula-gocardless/pkg/errors"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore checks the behaviour every backend shares.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	got, err := s.Load(ctx, "payments")
	require.NoError(t, err)
	assert.Nil(t, got)

	first := core.State{"created_at": "2024-01-01T00:00:00.000Z"}
	require.NoError(t, s.Save(ctx, "payments", first))
	require.NoError(t, s.Save(ctx, "refunds", core.State{"created_at": "2023-01-01T00:00:00.000Z"}))

	got, err = s.Load(ctx, "payments")
	require.NoError(t, err)
	assert.Equal(t, first, got)

	second := core.State{"created_at": "2024-02-01T00:00:00.000Z"}
	require.NoError(t, s.Save(ctx, "payments", second))
	got, err = s.Load(ctx, "payments")
	require.NoError(t, err)
	assert.Equal(t, second, got)

	require.NoError(t, s.Delete(ctx, "payments"))
	require.NoError(t, s.Delete(ctx, "payments"))
	got, err = s.Load(ctx, "payments")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = s.Load(ctx, "refunds")
	require.NoError(t, err)
	assert.Equal(t, "2023-01-01T00:00:00.000Z", got["created_at"])

	assert.Error(t, s.Save(ctx, "", first))
	require.NoError(t, s.Close())
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "nested", "state.json"))
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	ctx := context.Background()

	s1, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s1.Save(ctx, "payments", core.State{"created_at": int64(1577836800)}))

	s2, err := NewFileStore(path)
	require.NoError(t, err)
	got, err := s2.Load(ctx, "payments")
	require.NoError(t, err)
	assert.Equal(t, json.Number("1577836800"), got["created_at"])

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are cleaned up")
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	s, err := NewFileStore(path)
	require.NoError(t, err)
	_, err = s.Load(context.Background(), "payments")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeState))
}

func TestDecodeState(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    core.State
		wantErr bool
	}{
		{"iso cursor", `{"created_at":"2024-01-01T00:00:00.000Z"}`, core.State{"created_at": "2024-01-01T00:00:00.000Z"}, false},
		{"unix cursor stays a number", `{"created_at":1704067200}`, core.State{"created_at": json.Number("1704067200")}, false},
		{"trailing document", `{"created_at":1}{"created_at":2}`, nil, true},
		{"not json", `{not json`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decode([]byte(tt.data))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeState))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(context.Background(), ":memory:", "")
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestSQLiteStoreRejectsBadTable(t *testing.T) {
	_, err := NewSQLiteStore(context.Background(), ":memory:", "state; DROP TABLE x")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(context.Background(), "redis://"+mr.Addr(), "gocardless")
	require.NoError(t, err)

	require.NoError(t, s.Save(context.Background(), "mandates", core.State{"created_at": "2024-01-01T00:00:00.000Z"}))
	raw, err := mr.Get("gocardless:state:mandates")
	require.NoError(t, err)
	assert.JSONEq(t, `{"created_at":"2024-01-01T00:00:00.000Z"}`, raw)

	exerciseStore(t, s)
}

func TestRedisStoreUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisStore(context.Background(), "redis://"+addr, "")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     config.StateConfig
		wantErr bool
	}{
		{"memory", config.StateConfig{Backend: "memory"}, false},
		{"file", config.StateConfig{Backend: "file", Path: filepath.Join(dir, "s.json")}, false},
		{"file without path", config.StateConfig{Backend: "file"}, true},
		{"sqlite", config.StateConfig{Backend: "sqlite", DSN: ":memory:", Table: "gc_state"}, false},
		{"postgres without dsn", config.StateConfig{Backend: "postgres"}, true},
		{"redis without url", config.StateConfig{Backend: "redis"}, true},
		{"s3 without bucket", config.StateConfig{Backend: "s3"}, true},
		{"unknown", config.StateConfig{Backend: "etcd"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(ctx, tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NoError(t, s.Close())
		})
	}
}
