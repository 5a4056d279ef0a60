package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nebula-gocardless/pkg/connector/core"
	"github.com/ajitpratap0/nebula-gocardless/pkg/state"
	"github.com/ajitpratap0/nebula-gocardless/pkg/testutil"
)

func writeConfig(t *testing.T, dir, baseURL string) string {
	t.Helper()
	return writeStreamsConfig(t, dir, baseURL, "payments")
}

func writeStreamsConfig(t *testing.T, dir, baseURL, streams string) string {
	t.Helper()
	doc := fmt.Sprintf(`
source:
  name: gocardless
  type: gocardless
  security:
    credentials:
      access_token: ${TEST_GOCARDLESS_TOKEN}
      gocardless_version: "2015-07-06"
      start_date: "2024-01-01T00:00:00Z"
      streams: %s
      base_url: %s
destination:
  name: jsonl
  type: jsonl
  security:
    credentials:
      path: %s
state:
  backend: file
  path: %s
`, streams, baseURL, filepath.Join(dir, "out.jsonl"), filepath.Join(dir, "state.json"))

	path := filepath.Join(dir, "sync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func newAPI(t *testing.T) *testutil.FakeAPI {
	t.Helper()
	api := testutil.NewFakeAPI(t, "secret")
	api.AddResource("payments", "payments",
		map[string]interface{}{"id": "PM2", "created_at": "2024-03-02T10:00:00.000Z", "amount": 500},
		map[string]interface{}{"id": "PM1", "created_at": "2024-03-01T10:00:00.000Z", "amount": 100},
	)
	return api
}

func TestSpecCommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantName string
		wantKey  string
	}{
		{"default connector", []string{"spec"}, "gocardless", "access_token"},
		{"named source", []string{"spec", "gocardless"}, "gocardless", "start_date"},
		{"named destination", []string{"spec", "jsonl"}, "jsonl", "path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			require.NoError(t, err)

			var info map[string]interface{}
			require.NoError(t, json.Unmarshal([]byte(out), &info))
			assert.Equal(t, tt.wantName, info["name"])
			assert.Contains(t, info["config_schema"], tt.wantKey)
		})
	}
}

func TestSpecCommandAll(t *testing.T) {
	out, err := execute(t, "spec", "--all")
	require.NoError(t, err)

	var infos []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info["name"].(string))
	}
	assert.Equal(t, []string{"gocardless", "jsonl"}, names)
}

func TestSpecCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown connector", []string{"spec", "stripe"}},
		{"all with a name", []string{"spec", "--all", "gocardless"}},
		{"too many names", []string{"spec", "gocardless", "jsonl"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestCheckCommand(t *testing.T) {
	t.Setenv("TEST_GOCARDLESS_TOKEN", "secret")
	srv := newAPI(t)
	path := writeConfig(t, t.TempDir(), srv.URL)

	out, err := execute(t, "check", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"SUCCEEDED"`)
}

func TestReadCommand(t *testing.T) {
	t.Setenv("TEST_GOCARDLESS_TOKEN", "secret")
	srv := newAPI(t)
	dir := t.TempDir()
	path := writeConfig(t, dir, srv.URL)

	_, err := execute(t, "read", "--config", path)
	require.NoError(t, err)

	requests := srv.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "500", requests[0].Query().Get("limit"))
	assert.Equal(t, "2024-01-01T00:00:00.000Z", requests[0].Query().Get("created_at[gte]"))

	data, err := os.ReadFile(filepath.Join(dir, "out.jsonl"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"type":"RECORD"`)
	assert.Contains(t, lines[2], `"type":"STATE"`)

	store, err := state.NewFileStore(filepath.Join(dir, "state.json"))
	require.NoError(t, err)
	saved, err := store.Load(context.Background(), "payments")
	require.NoError(t, err)
	assert.Equal(t, core.State{"created_at": "2024-03-02T10:00:00.000Z"}, saved)
}

func TestReadCommandPaymentEvents(t *testing.T) {
	payment := map[string]interface{}{"id": "PM1", "amount": json.Number("1500"), "currency": "GBP"}
	event := map[string]interface{}{
		"id":         "EV1",
		"created_at": "2024-03-01T10:00:00.000Z",
		"action":     "confirmed",
		"links":      map[string]interface{}{"payment": "PM1"},
	}

	tests := []struct {
		name        string
		linked      map[string]interface{}
		wantPayment interface{}
	}{
		{"linked payment attached", map[string]interface{}{"payments": []interface{}{payment}}, payment},
		{"payment missing from linked", map[string]interface{}{"payments": []interface{}{}}, nil},
		{"no linked object", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_GOCARDLESS_TOKEN", "secret")
			srv := testutil.NewFakeAPI(t, "secret")
			srv.AddResource("events", "events", event)
			srv.SetLinked("events", tt.linked)
			dir := t.TempDir()
			path := writeStreamsConfig(t, dir, srv.URL, "payment_events")

			_, err := execute(t, "read", "--config", path)
			require.NoError(t, err)

			requests := srv.Requests()
			require.Len(t, requests, 1)
			assert.Equal(t, "payments", requests[0].Query().Get("resource_type"))
			assert.Equal(t, "payment", requests[0].Query().Get("include"))

			data, err := os.ReadFile(filepath.Join(dir, "out.jsonl"))
			require.NoError(t, err)
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			require.Len(t, lines, 2)

			dec := json.NewDecoder(strings.NewReader(lines[0]))
			dec.UseNumber()
			var msg struct {
				Type   string                 `json:"type"`
				Stream string                 `json:"stream"`
				Data   map[string]interface{} `json:"data"`
			}
			require.NoError(t, dec.Decode(&msg))
			assert.Equal(t, "RECORD", msg.Type)
			assert.Equal(t, "payment_events", msg.Stream)
			assert.Equal(t, "EV1", msg.Data["id"])
			assert.Contains(t, msg.Data, "payment")
			assert.Equal(t, tt.wantPayment, msg.Data["payment"])
		})
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "http://localhost")
	t.Setenv("GOCARDLESS_LOG_LEVEL", "debug")
	t.Setenv("GOCARDLESS_STATE_BACKEND", "memory")

	cfg, err := loadConfig(path, newEnv())
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Source.Observability.LogLevel)
	assert.Equal(t, state.BackendMemory, cfg.State.Backend)

	t.Setenv("GOCARDLESS_STATE_BACKEND", "etcd")
	_, err = loadConfig(path, newEnv())
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"payments", "refunds"}, splitList(" payments, ,refunds "))
}
