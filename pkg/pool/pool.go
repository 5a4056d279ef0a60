// Package pool provides typed object pooling and the Record type that flows
// from sources to sinks.
//
// Records should be taken from the pool and released once the sink has
// written them:
//
//	record := pool.NewRecordFromPool("gocardless")
//	defer record.Release()
//	record.Metadata.StreamID = "payments"
package pool

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Pool is a type-safe wrapper around sync.Pool with an optional reset hook
// and usage counters.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
	stats struct {
		allocated int64
		inUse     int64
		gets      int64
	}
}

// New creates a typed pool. reset, if set, is applied before an object goes
// back into the pool.
func New[T any](newFn func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		return newFn()
	}
	return p
}

// Get retrieves an object from the pool, allocating when it is empty.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.inUse, 1)
	atomic.AddInt64(&p.stats.gets, 1)
	return p.pool.Get().(T)
}

// Put returns an object to the pool.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	atomic.AddInt64(&p.stats.inUse, -1)
	p.pool.Put(obj)
}

// Stats returns the number of objects allocated, currently checked out, and
// the total number of Get calls.
func (p *Pool[T]) Stats() (allocated, inUse, gets int64) {
	return atomic.LoadInt64(&p.stats.allocated),
		atomic.LoadInt64(&p.stats.inUse),
		atomic.LoadInt64(&p.stats.gets)
}

// RecordMetadata describes where a record came from.
type RecordMetadata struct {
	// Source is the connector name
	Source string `json:"source,omitempty"`
	// StreamID is the stream the record belongs to
	StreamID string `json:"stream_id,omitempty"`
	// Timestamp is when the record was extracted
	Timestamp time.Time `json:"timestamp"`
	// Custom holds connector-specific metadata (cursor value, page number)
	Custom map[string]interface{} `json:"custom,omitempty"`
}

// Record is one extracted API object.
type Record struct {
	ID       string                 `json:"id"`
	Data     map[string]interface{} `json:"data"`
	Metadata RecordMetadata         `json:"metadata"`
}

var (
	// RecordPool recycles Record values.
	RecordPool = New(
		func() *Record {
			return &Record{}
		},
		func(r *Record) {
			r.ID = ""
			r.Data = nil
			r.Metadata = RecordMetadata{}
		},
	)

	// MapPool recycles map[string]interface{} values, cleared on return.
	MapPool = New(
		func() map[string]interface{} {
			return make(map[string]interface{}, 16)
		},
		func(m map[string]interface{}) {
			for k := range m {
				delete(m, k)
			}
		},
	)
)

var idCounter uint64

// GetRecord retrieves a Record from the pool stamped with the current time.
func GetRecord() *Record {
	r := RecordPool.Get()
	r.Metadata.Timestamp = time.Now()
	return r
}

// PutRecord returns a Record to the pool. Data is not pooled because it
// usually belongs to a decoded API payload.
func PutRecord(record *Record) {
	if record == nil {
		return
	}
	if record.Metadata.Custom != nil {
		PutMap(record.Metadata.Custom)
		record.Metadata.Custom = nil
	}
	RecordPool.Put(record)
}

// GetMap retrieves an empty map from the pool.
func GetMap() map[string]interface{} {
	return MapPool.Get()
}

// PutMap returns a map to the pool. Nil maps are ignored.
func PutMap(m map[string]interface{}) {
	if m != nil {
		MapPool.Put(m)
	}
}

// GenerateID returns a process-unique id of the form "prefix-N".
func GenerateID(prefix string) string {
	n := atomic.AddUint64(&idCounter, 1)
	buf := make([]byte, 0, len(prefix)+21)
	buf = append(buf, prefix...)
	buf = append(buf, '-')
	buf = strconv.AppendUint(buf, n, 10)
	return string(buf)
}

// NewRecordFromPool returns a pooled record tagged with its source.
func NewRecordFromPool(source string) *Record {
	r := GetRecord()
	r.ID = GenerateID("rec")
	r.Metadata.Source = source
	return r
}

// NewRecord returns a pooled record carrying data.
func NewRecord(source string, data map[string]interface{}) *Record {
	r := NewRecordFromPool(source)
	r.Data = data
	return r
}

// SetData sets a data field, creating the data map on first use.
func (r *Record) SetData(key string, value interface{}) {
	if r.Data == nil {
		r.Data = make(map[string]interface{}, 16)
	}
	r.Data[key] = value
}

// GetData retrieves a data field.
func (r *Record) GetData(key string) (interface{}, bool) {
	if r.Data == nil {
		return nil, false
	}
	val, ok := r.Data[key]
	return val, ok
}

// SetMetadata sets a custom metadata field.
func (r *Record) SetMetadata(key string, value interface{}) {
	if r.Metadata.Custom == nil {
		r.Metadata.Custom = GetMap()
	}
	r.Metadata.Custom[key] = value
}

// GetMetadata retrieves a custom metadata field.
func (r *Record) GetMetadata(key string) (interface{}, bool) {
	if r.Metadata.Custom == nil {
		return nil, false
	}
	val, ok := r.Metadata.Custom[key]
	return val, ok
}

// Release returns the record to the pool.
func (r *Record) Release() {
	PutRecord(r)
}

// SetTimestamp sets the extraction timestamp.
func (r *Record) SetTimestamp(t time.Time) {
	r.Metadata.Timestamp = t
}

// GetTimestamp returns the extraction timestamp.
func (r *Record) GetTimestamp() time.Time {
	return r.Metadata.Timestamp
}
