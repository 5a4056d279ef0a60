package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nebula-gocardless/pkg/config"
	"github.com/ajitpratap0/nebula-gocardless/pkg/connector/core"
	"github.com/ajitpratap0/nebula-gocardless/pkg/connector/destinations/jsonl"
	"github.com/ajitpratap0/nebula-gocardless/pkg/errors"
	"github.com/ajitpratap0/nebula-gocardless/pkg/pool"
	"github.com/ajitpratap0/nebula-gocardless/pkg/state"
)

type fakeSource struct {
	order   []string
	records map[string][]map[string]interface{}
	final   map[string]core.State
	fail    map[string]error

	mu     sync.Mutex
	states map[string]core.State
	seeded map[string]core.State
	reads  []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		records: map[string][]map[string]interface{}{},
		final:   map[string]core.State{},
		fail:    map[string]error{},
		states:  map[string]core.State{},
		seeded:  map[string]core.State{},
	}
}

func (f *fakeSource) add(stream string, final core.State, records ...map[string]interface{}) {
	f.order = append(f.order, stream)
	f.records[stream] = records
	f.final[stream] = final
}

func (f *fakeSource) Initialize(context.Context, *config.BaseConfig) error { return nil }
func (f *fakeSource) Check(context.Context) error                         { return nil }
func (f *fakeSource) Close(context.Context) error                         { return nil }
func (f *fakeSource) SupportsIncremental() bool                           { return true }
func (f *fakeSource) Health(context.Context) error                        { return nil }
func (f *fakeSource) Metrics() map[string]interface{}                     { return nil }

func (f *fakeSource) Discover(context.Context) (*core.Catalog, error) {
	catalog := &core.Catalog{}
	for _, name := range f.order {
		catalog.Streams = append(catalog.Streams, core.StreamDescriptor{Name: name})
	}
	return catalog, nil
}

func (f *fakeSource) GetState() map[string]core.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]core.State, len(f.states))
	for k, v := range f.states {
		out[k] = v.Copy()
	}
	return out
}

func (f *fakeSource) SetState(stream string, st core.State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[stream] = st.Copy()
	f.seeded[stream] = st.Copy()
	return nil
}

func (f *fakeSource) Read(ctx context.Context, stream string) (*core.RecordStream, error) {
	f.mu.Lock()
	f.reads = append(f.reads, stream)
	f.mu.Unlock()

	data, ok := f.records[stream]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "stream %q is not configured", stream)
	}
	records := make(chan *pool.Record)
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		defer close(records)
		for _, d := range data {
			record := pool.NewRecord("fake", d)
			if cursor, ok := d["created_at"]; ok {
				record.SetMetadata("cursor", cursor)
			}
			select {
			case records <- record:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
		if err := f.fail[stream]; err != nil {
			errCh <- err
			return
		}
		f.mu.Lock()
		f.states[stream] = f.final[stream]
		f.mu.Unlock()
	}()
	return &core.RecordStream{Stream: stream, Records: records, Errors: errCh}, nil
}

// failingDestination accepts one record and then fails.
type failingDestination struct{}

func (failingDestination) Initialize(context.Context, *config.BaseConfig) error { return nil }
func (failingDestination) Close(context.Context) error                         { return nil }
func (failingDestination) Health(context.Context) error                        { return nil }
func (failingDestination) Metrics() map[string]interface{}                     { return nil }
func (failingDestination) WriteState(context.Context, string, core.State) error {
	return nil
}

func (failingDestination) Write(_ context.Context, stream *core.RecordStream) error {
	<-stream.Records
	return errors.New(errors.ErrorTypeFile, "disk full")
}

func readMessages(t *testing.T, buf *bytes.Buffer) []jsonl.Message {
	t.Helper()
	var out []jsonl.Message
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		var msg jsonl.Message
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &msg))
		out = append(out, msg)
	}
	require.NoError(t, scanner.Err())
	return out
}

func TestRunner_SyncsEveryStream(t *testing.T) {
	src := newFakeSource()
	src.add("payments", core.State{"created_at": "2024-03-02T00:00:00.000Z"},
		map[string]interface{}{"id": "PM1", "created_at": "2024-03-02T00:00:00.000Z"},
		map[string]interface{}{"id": "PM2", "created_at": "2024-03-01T00:00:00.000Z"},
	)
	src.add("refunds", core.State{"created_at": "2024-02-01T00:00:00.000Z"},
		map[string]interface{}{"id": "RF1", "created_at": "2024-02-01T00:00:00.000Z"},
	)

	var buf bytes.Buffer
	store := state.NewMemoryStore()
	runner := NewRunner(src, jsonl.NewWriterDestination(&buf), store, &Config{
		SourceName:   "fake",
		StateBackend: state.BackendMemory,
	})

	result, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, result.SyncID)
	require.Len(t, result.Streams, 2)
	assert.Equal(t, "payments", result.Streams[0].Stream)
	assert.Equal(t, int64(2), result.Streams[0].Records)
	assert.Equal(t, int64(1), result.Streams[1].Records)
	assert.Equal(t, int64(3), result.Records())
	assert.Equal(t, "2024-03-01T00:00:00.000Z", result.Streams[0].LastCursor)

	saved, err := store.Load(context.Background(), "payments")
	require.NoError(t, err)
	assert.Equal(t, core.State{"created_at": "2024-03-02T00:00:00.000Z"}, saved)

	messages := readMessages(t, &buf)
	require.Len(t, messages, 5)
	types := make([]jsonl.MessageType, 0, len(messages))
	for _, m := range messages {
		types = append(types, m.Type)
	}
	assert.Equal(t, []jsonl.MessageType{
		jsonl.MessageTypeRecord, jsonl.MessageTypeRecord, jsonl.MessageTypeState,
		jsonl.MessageTypeRecord, jsonl.MessageTypeState,
	}, types)
	assert.Equal(t, "refunds", messages[4].Stream)
	assert.Equal(t, map[string]interface{}{"created_at": "2024-02-01T00:00:00.000Z"}, messages[4].Data)
}

func TestRunner_LastCursor(t *testing.T) {
	tests := []struct {
		name    string
		records []map[string]interface{}
		want    interface{}
	}{
		{
			name: "newest first",
			records: []map[string]interface{}{
				{"id": "PM3", "created_at": "2024-03-03T00:00:00.000Z"},
				{"id": "PM2", "created_at": "2024-03-02T00:00:00.000Z"},
				{"id": "PM1", "created_at": "2024-03-01T00:00:00.000Z"},
			},
			want: "2024-03-01T00:00:00.000Z",
		},
		{
			name: "unix cursor",
			records: []map[string]interface{}{
				{"id": "PM1", "created_at": int64(1709251200)},
			},
			want: int64(1709251200),
		},
		{
			name: "trailing record without cursor",
			records: []map[string]interface{}{
				{"id": "PM2", "created_at": "2024-03-02T00:00:00.000Z"},
				{"id": "PM1"},
			},
			want: "2024-03-02T00:00:00.000Z",
		},
		{name: "no cursor field", records: []map[string]interface{}{{"id": "PM1"}}},
		{name: "empty stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFakeSource()
			src.add("payments", nil, tt.records...)

			runner := NewRunner(src, jsonl.NewWriterDestination(&bytes.Buffer{}), state.NewMemoryStore(), nil)
			result, err := runner.Run(context.Background())
			require.NoError(t, err)
			require.Len(t, result.Streams, 1)
			assert.Equal(t, int64(len(tt.records)), result.Streams[0].Records)
			assert.Equal(t, tt.want, result.Streams[0].LastCursor)
		})
	}
}

func TestRunner_SeedsSavedState(t *testing.T) {
	src := newFakeSource()
	src.add("payments", core.State{"created_at": "2024-03-02T00:00:00.000Z"})

	store := state.NewMemoryStore()
	saved := core.State{"created_at": "2024-01-01T00:00:00.000Z"}
	require.NoError(t, store.Save(context.Background(), "payments", saved))

	runner := NewRunner(src, jsonl.NewWriterDestination(&bytes.Buffer{}), store, nil)
	_, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, saved, src.seeded["payments"])
}

func TestRunner_SelectedStreams(t *testing.T) {
	src := newFakeSource()
	src.add("payments", nil, map[string]interface{}{"id": "PM1"})
	src.add("refunds", nil, map[string]interface{}{"id": "RF1"})

	runner := NewRunner(src, jsonl.NewWriterDestination(&bytes.Buffer{}), state.NewMemoryStore(), &Config{
		Streams: []string{"refunds"},
	})
	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"refunds"}, src.reads)
	require.Len(t, result.Streams, 1)
	// a stream without a cursor produces no checkpoint
	assert.Nil(t, result.Streams[0].State)
}

func TestRunner_StreamErrorKeepsSavedState(t *testing.T) {
	src := newFakeSource()
	src.add("payments", core.State{"created_at": "2024-03-02T00:00:00.000Z"},
		map[string]interface{}{"id": "PM1", "created_at": "2024-03-02T00:00:00.000Z"},
	)
	src.add("refunds", nil, map[string]interface{}{"id": "RF1"})
	src.fail["payments"] = errors.New(errors.ErrorTypeRateLimit, "too many requests")

	store := state.NewMemoryStore()
	previous := core.State{"created_at": "2024-01-01T00:00:00.000Z"}
	require.NoError(t, store.Save(context.Background(), "payments", previous))

	var buf bytes.Buffer
	runner := NewRunner(src, jsonl.NewWriterDestination(&buf), store, nil)
	result, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeRateLimit))
	assert.Empty(t, result.Streams)
	assert.Equal(t, []string{"payments"}, src.reads)

	saved, err := store.Load(context.Background(), "payments")
	require.NoError(t, err)
	assert.Equal(t, previous, saved)

	for _, m := range readMessages(t, &buf) {
		assert.NotEqual(t, jsonl.MessageTypeState, m.Type)
	}
}

func TestRunner_DestinationFailureReleasesSource(t *testing.T) {
	src := newFakeSource()
	records := make([]map[string]interface{}, 100)
	for i := range records {
		records[i] = map[string]interface{}{"id": i}
	}
	src.add("payments", core.State{"created_at": "2024-03-02T00:00:00.000Z"}, records...)

	store := state.NewMemoryStore()
	runner := NewRunner(src, failingDestination{}, store, &Config{BufferSize: 1})
	_, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))

	saved, err := store.Load(context.Background(), "payments")
	require.NoError(t, err)
	assert.Nil(t, saved)
}

func TestRunner_UnknownStream(t *testing.T) {
	runner := NewRunner(newFakeSource(), jsonl.NewWriterDestination(&bytes.Buffer{}), state.NewMemoryStore(), &Config{
		Streams: []string{"mandates"},
	})
	_, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}
