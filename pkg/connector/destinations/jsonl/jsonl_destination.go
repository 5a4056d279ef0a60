// Package jsonl writes records and state checkpoints as JSON lines, one
// message per line, to stdout or a file.
package jsonl

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ajitpratap0/nebula-gocardless/pkg/compression"
	"github.com/ajitpratap0/nebula-gocardless/pkg/config"
	"github.com/ajitpratap0/nebula-gocardless/pkg/connector/core"
	"github.com/ajitpratap0/nebula-gocardless/pkg/errors"
	jsonpool "github.com/ajitpratap0/nebula-gocardless/pkg/json"
	"github.com/ajitpratap0/nebula-gocardless/pkg/logger"
	"github.com/ajitpratap0/nebula-gocardless/pkg/metrics"
	"github.com/ajitpratap0/nebula-gocardless/pkg/pool"
	"go.uber.org/zap"
)

const (
	// ConnectorName is the registry name of the destination
	ConnectorName = "jsonl"

	// StdoutPath selects standard output
	StdoutPath = "-"

	defaultBufferSize = 64 * 1024
)

// MessageType tags each output line.
type MessageType string

const (
	MessageTypeRecord MessageType = "RECORD"
	MessageTypeState  MessageType = "STATE"
)

// Message is one output line.
type Message struct {
	Type   MessageType `json:"type"`
	Stream string      `json:"stream"`
	Data   interface{} `json:"data"`
	// EmittedAt is Unix milliseconds; set on records only
	EmittedAt int64 `json:"emitted_at,omitempty"`
}

// Destination is a JSON-lines sink.
type Destination struct {
	config *config.BaseConfig
	logger *zap.Logger

	path      string
	out       io.Writer
	file      *os.File
	compress  io.WriteCloser
	writer    *bufio.Writer
	encoder   *jsonpool.LineEncoder
	algorithm compression.Algorithm

	mu             sync.Mutex
	closed         bool
	recordsWritten int64
	statesWritten  int64
}

// NewDestination creates an uninitialized destination.
func NewDestination(cfg *config.BaseConfig) (core.Destination, error) {
	return &Destination{
		config: cfg,
		logger: logger.Get().With(zap.String("connector", ConnectorName)),
	}, nil
}

// NewWriterDestination returns an initialized destination writing to w.
func NewWriterDestination(w io.Writer) *Destination {
	d := &Destination{
		logger:    logger.Get().With(zap.String("connector", ConnectorName)),
		path:      StdoutPath,
		out:       w,
		algorithm: compression.None,
	}
	d.writer = bufio.NewWriterSize(w, defaultBufferSize)
	d.encoder = jsonpool.NewLineEncoder(d.writer)
	return d
}

// Initialize opens the output. credentials.path selects a file; empty or
// "-" writes to stdout. Compression follows the advanced settings.
func (d *Destination) Initialize(ctx context.Context, cfg *config.BaseConfig) error {
	if cfg == nil {
		cfg = d.config
	}
	if cfg == nil {
		return errors.New(errors.ErrorTypeConfig, "configuration is required")
	}
	d.config = cfg

	d.path = cfg.Credential("path", StdoutPath)
	d.algorithm = compression.None
	if cfg.Advanced.IsCompressionEnabled() {
		d.algorithm = compression.Algorithm(strings.ToLower(cfg.Advanced.CompressionAlgorithm))
	}

	var out io.Writer = os.Stdout
	if d.path != StdoutPath {
		if ext := compression.Extension(d.algorithm); ext != "" && !strings.HasSuffix(d.path, ext) {
			d.path += ext
		}
		if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to create output directory")
		}
		f, err := os.Create(d.path)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to create output file")
		}
		d.file = f
		out = f
	}

	if d.algorithm != compression.None {
		cw, err := compression.NewWriter(out, &compression.Config{
			Algorithm: d.algorithm,
			Level:     compression.LevelFromInt(cfg.Advanced.CompressionLevel),
		})
		if err != nil {
			d.closeFile()
			return errors.Wrap(err, errors.ErrorTypeConfig, "invalid compression settings")
		}
		d.compress = cw
		out = cw
	}
	d.out = out

	bufferSize := defaultBufferSize
	if cfg.Performance.BufferSize*64 > bufferSize {
		bufferSize = cfg.Performance.BufferSize * 64
	}
	d.writer = bufio.NewWriterSize(out, bufferSize)
	d.encoder = jsonpool.NewLineEncoder(d.writer)

	d.logger.Debug("jsonl destination initialized",
		zap.String("path", d.path),
		zap.String("compression", string(d.algorithm)))
	return nil
}

// Write writes every record of stream as a RECORD message. It returns the
// stream's error, if any, once the records channel closes.
func (d *Destination) Write(ctx context.Context, stream *core.RecordStream) error {
	if d.encoder == nil {
		return errors.New(errors.ErrorTypeConfig, "destination is not initialized")
	}
	written := metrics.RecordsWritten.WithLabelValues(ConnectorName, stream.Stream)

	for {
		select {
		case record, ok := <-stream.Records:
			if !ok {
				if err := d.flush(); err != nil {
					return err
				}
				if err, ok := <-stream.Errors; ok && err != nil {
					return err
				}
				return nil
			}

			err := d.writeRecord(stream.Stream, record)
			pool.PutRecord(record)
			if err != nil {
				return err
			}
			written.Inc()

		case <-ctx.Done():
			_ = d.flush()
			return ctx.Err()
		}
	}
}

func (d *Destination) writeRecord(stream string, record *pool.Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	msg := Message{
		Type:      MessageTypeRecord,
		Stream:    stream,
		Data:      record.Data,
		EmittedAt: record.GetTimestamp().UnixMilli(),
	}
	if err := d.encoder.Encode(msg); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write record")
	}
	atomic.AddInt64(&d.recordsWritten, 1)
	return nil
}

// WriteState writes a STATE message and flushes, so a checkpoint is never
// left buffered behind its records.
func (d *Destination) WriteState(ctx context.Context, stream string, state core.State) error {
	if d.encoder == nil {
		return errors.New(errors.ErrorTypeConfig, "destination is not initialized")
	}

	d.mu.Lock()
	err := d.encoder.Encode(Message{Type: MessageTypeState, Stream: stream, Data: state})
	d.mu.Unlock()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write state")
	}
	atomic.AddInt64(&d.statesWritten, 1)
	return d.flush()
}

func (d *Destination) flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writer.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush output")
	}
	return nil
}

// Close flushes buffered output, finishes the compression stream and closes
// the file. It is safe to call more than once.
func (d *Destination) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed || d.writer == nil {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	var firstErr error
	if err := d.flush(); err != nil {
		firstErr = err
	}
	if d.compress != nil {
		if err := d.compress.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, errors.ErrorTypeFile, "failed to finish compression")
		}
	}
	if err := d.closeFile(); err != nil && firstErr == nil {
		firstErr = errors.Wrap(err, errors.ErrorTypeFile, "failed to close output file")
	}

	d.logger.Debug("jsonl destination closed",
		zap.Int64("records", atomic.LoadInt64(&d.recordsWritten)),
		zap.Int64("states", atomic.LoadInt64(&d.statesWritten)))
	return firstErr
}

func (d *Destination) closeFile() error {
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

// Health reports whether the destination can still accept writes.
func (d *Destination) Health(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.writer == nil {
		return errors.New(errors.ErrorTypeConfig, "destination is not initialized")
	}
	if d.closed {
		return errors.New(errors.ErrorTypeFile, "destination is closed")
	}
	return nil
}

// Metrics returns write counters.
func (d *Destination) Metrics() map[string]interface{} {
	return map[string]interface{}{
		"records_written": atomic.LoadInt64(&d.recordsWritten),
		"states_written":  atomic.LoadInt64(&d.statesWritten),
		"path":            d.path,
		"compression":     string(d.algorithm),
	}
}

// Path returns the resolved output path, "-" for stdout.
func (d *Destination) Path() string {
	return d.path
}
