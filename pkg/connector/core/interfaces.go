// Package core defines the contracts between sources, sinks and the sync
// runner.
package core

import (
	"context"
	"time"

	"github.com/ajitpratap0/nebula-gocardless/pkg/config"
	"github.com/ajitpratap0/nebula-gocardless/pkg/pool"
)

// ConnectorType represents the type of connector
type ConnectorType string

const (
	ConnectorTypeSource      ConnectorType = "source"
	ConnectorTypeDestination ConnectorType = "destination"
)

// State is the persisted state of one stream, e.g. {"created_at": "..."}.
type State map[string]interface{}

// Copy returns a shallow copy of s. A nil State copies to nil.
func (s State) Copy() State {
	if s == nil {
		return nil
	}
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// SyncMode is how a stream may be read.
type SyncMode string

const (
	SyncModeFullRefresh SyncMode = "full_refresh"
	SyncModeIncremental SyncMode = "incremental"
)

// Schema describes the records of one stream.
type Schema struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Fields      []Field `json:"fields"`
	Version     int     `json:"version"`
}

// Field represents a field in the schema
type Field struct {
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	Description string    `json:"description,omitempty"`
	Nullable    bool      `json:"nullable"`
	Primary     bool      `json:"primary,omitempty"`
}

// FieldType represents the data type of a field
type FieldType string

const (
	FieldTypeString    FieldType = "string"
	FieldTypeInt       FieldType = "int"
	FieldTypeFloat     FieldType = "float"
	FieldTypeBool      FieldType = "bool"
	FieldTypeTimestamp FieldType = "timestamp"
	FieldTypeDate      FieldType = "date"
	FieldTypeJSON      FieldType = "json"
)

// StreamDescriptor is one entry of a source catalog.
type StreamDescriptor struct {
	Name               string     `json:"name"`
	Schema             *Schema    `json:"schema"`
	SupportedSyncModes []SyncMode `json:"supported_sync_modes"`
	PrimaryKey         string     `json:"primary_key"`
	// CursorField is empty for full-refresh-only streams
	CursorField string `json:"cursor_field,omitempty"`
	// DefaultCursor is the state value assumed when none is persisted
	DefaultCursor string `json:"default_cursor,omitempty"`
}

// Catalog lists the streams a source can read.
type Catalog struct {
	Streams []StreamDescriptor `json:"streams"`
}

// Stream returns the descriptor named name.
func (c *Catalog) Stream(name string) (StreamDescriptor, bool) {
	for _, s := range c.Streams {
		if s.Name == name {
			return s, true
		}
	}
	return StreamDescriptor{}, false
}

// Names returns the stream names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.Streams))
	for _, s := range c.Streams {
		names = append(names, s.Name)
	}
	return names
}

// RecordStream carries the records of one stream. Both channels are closed
// when the read ends; at most one error is sent.
type RecordStream struct {
	Stream  string
	Records <-chan *pool.Record
	Errors  <-chan error
}

// Source is the interface that all source connectors must implement
type Source interface {
	Initialize(ctx context.Context, config *config.BaseConfig) error
	// Check verifies that the configured credentials can reach the API.
	Check(ctx context.Context) error
	Discover(ctx context.Context) (*Catalog, error)
	// Read streams one stream. When the channels close without an error
	// GetState()[stream] holds the stream's final state.
	Read(ctx context.Context, stream string) (*RecordStream, error)
	Close(ctx context.Context) error

	// GetState returns per-stream state keyed by stream name.
	GetState() map[string]State
	SetState(stream string, state State) error

	SupportsIncremental() bool

	Health(ctx context.Context) error
	Metrics() map[string]interface{}
}

// Destination receives records and state checkpoints.
type Destination interface {
	Initialize(ctx context.Context, config *config.BaseConfig) error
	// Write consumes stream until both channels close. It returns the first
	// error received on stream.Errors or raised while writing.
	Write(ctx context.Context, stream *RecordStream) error
	// WriteState emits a state checkpoint for stream.
	WriteState(ctx context.Context, stream string, state State) error
	Close(ctx context.Context) error

	Health(ctx context.Context) error
	Metrics() map[string]interface{}
}

// HealthStatus represents the health status of a connector
type HealthStatus struct {
	Status    string                 `json:"status"` // "healthy", "unhealthy", "degraded"
	Timestamp time.Time              `json:"timestamp"`
	Details   map[string]interface{} `json:"details"`
	Error     error                  `json:"error,omitempty"`
}
