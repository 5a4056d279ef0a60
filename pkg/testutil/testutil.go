// Package testutil provides testing utilities shared by connector tests
package testutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	jsonpool "github.com/ajitpratap0/nebula-gocardless/pkg/json"
)

// TestLogger creates a test logger that writes to the test output.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext returns a context with a 30-second timeout, cancelled when
// the test completes.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// FakeAPI serves list endpoints in the GoCardless envelope:
//
//	{"<data key>": [...], "meta": {"cursors": {"after": "<id>|null"}, "limit": n}}
//
// Records are returned in the order they were added. The after cursor is
// the id of the last record on the page.
type FakeAPI struct {
	*httptest.Server

	token string

	mu        sync.Mutex
	resources map[string]fakeResource
	requests  []url.URL
}

type fakeResource struct {
	dataKey string
	records []map[string]interface{}
	linked  map[string]interface{}
}

// NewFakeAPI starts a server that accepts token as a bearer token. The
// server is closed when the test completes.
func NewFakeAPI(t *testing.T, token string) *FakeAPI {
	t.Helper()
	f := &FakeAPI{token: token, resources: make(map[string]fakeResource)}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

// AddResource serves records under path with the given envelope key.
func (f *FakeAPI) AddResource(path, dataKey string, records ...map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resources[path] = fakeResource{dataKey: dataKey, records: records}
}

// SetLinked sets the "linked" object returned with every page of path.
func (f *FakeAPI) SetLinked(path string, linked map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.resources[path]
	r.linked = linked
	f.resources[path] = r
}

// Requests returns the URLs received so far.
func (f *FakeAPI) Requests() []url.URL {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.URL(nil), f.requests...)
}

func (f *FakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, *r.URL)
	res, ok := f.resources[strings.Trim(r.URL.Path, "/")]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if r.Header.Get("Authorization") != "Bearer "+f.token {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"error": map[string]interface{}{"message": "Invalid token", "type": "invalid_api_usage"},
		})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"error": map[string]interface{}{"message": "Resource not found", "type": "invalid_api_usage"},
		})
		return
	}

	query := r.URL.Query()
	limit, err := strconv.Atoi(query.Get("limit"))
	if err != nil || limit <= 0 {
		limit = 50
	}

	start := 0
	if after := query.Get("after"); after != "" {
		for i, rec := range res.records {
			if rec["id"] == after {
				start = i + 1
				break
			}
		}
	}
	end := start + limit
	if end > len(res.records) {
		end = len(res.records)
	}
	page := res.records[start:end]

	var next interface{}
	if end < len(res.records) && len(page) > 0 {
		next = page[len(page)-1]["id"]
	}

	body := map[string]interface{}{
		res.dataKey: page,
		"meta": map[string]interface{}{
			"cursors": map[string]interface{}{"after": next, "before": nil},
			"limit":   limit,
		},
	}
	if res.linked != nil {
		body["linked"] = res.linked
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	_ = jsonpool.NewEncoder(w).Encode(v)
}
