// Package gocardless reads GoCardless API resources incrementally on
// created_at, following meta.cursors.after through every page.
package gocardless

import (
	"context"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ajitpratap0/nebula-gocardless/pkg/clients"
	"github.com/ajitpratap0/nebula-gocardless/pkg/config"
	"github.com/ajitpratap0/nebula-gocardless/pkg/connector/base"
	"github.com/ajitpratap0/nebula-gocardless/pkg/connector/core"
	"github.com/ajitpratap0/nebula-gocardless/pkg/connector/httpstream"
	"github.com/ajitpratap0/nebula-gocardless/pkg/errors"
	"github.com/ajitpratap0/nebula-gocardless/pkg/logger"
	"github.com/ajitpratap0/nebula-gocardless/pkg/observability"
	"github.com/ajitpratap0/nebula-gocardless/pkg/pool"
	"go.uber.org/zap"
)

const (
	// ConnectorName is the registry name of the source
	ConnectorName = "gocardless"
	// ConnectorVersion is reported by the spec command
	ConnectorVersion = "1.0.0"
)

// streamReader is the piece of httpstream.Reader the source needs.
type streamReader interface {
	ReadStream(ctx context.Context, s httpstream.Stream, state core.State, emit httpstream.EmitFunc) (core.State, error)
}

// Source reads GoCardless list endpoints.
type Source struct {
	*base.BaseConnector

	config     *Config
	baseConfig *config.BaseConfig
	client     *clients.HTTPClient
	reader     streamReader
	tracer     *observability.ConnectorTracer

	streams map[string]httpstream.IncrementalStream
	order   []string

	readers sync.WaitGroup
}

// NewSource creates an uninitialized GoCardless source.
func NewSource(cfg *config.BaseConfig) (core.Source, error) {
	return &Source{
		BaseConnector: base.NewBaseConnector(ConnectorName, core.ConnectorTypeSource, ConnectorVersion),
		baseConfig:    cfg,
		tracer:        observability.NewConnectorTracer(string(core.ConnectorTypeSource), ConnectorName),
	}, nil
}

// Initialize validates the configuration, builds the authenticated client
// and instantiates the selected streams.
func (s *Source) Initialize(ctx context.Context, cfg *config.BaseConfig) error {
	if cfg == nil {
		cfg = s.baseConfig
	}
	if err := s.BaseConnector.Initialize(ctx, cfg); err != nil {
		return err
	}

	gc, err := ParseConfig(cfg)
	if err != nil {
		return err
	}
	s.config = gc
	s.baseConfig = cfg

	if err := s.buildStreams(gc); err != nil {
		return err
	}

	httpCfg := clients.HTTPConfigFromBase(ConnectorName, cfg)
	httpCfg.TokenSource = clients.BearerTokenSource(gc.AccessToken)
	s.client = clients.NewHTTPClient(httpCfg, s.GetLogger())

	reader, err := httpstream.NewReader(httpstream.ReaderConfig{
		BaseURL:   gc.BaseURL,
		Client:    s.client,
		Retrier:   s.BaseConnector,
		Tracer:    s.tracer,
		Collector: s.GetMetricsCollector(),
		Logger:    s.GetLogger(),
	})
	if err != nil {
		return err
	}
	s.reader = reader

	s.SetHealthCheck(s.Check)
	s.UpdateHealth(true, map[string]interface{}{
		"environment": gc.Environment,
		"streams":     len(s.order),
	})

	s.GetLogger().Info("gocardless source initialized",
		zap.String("environment", gc.Environment),
		zap.Strings("streams", s.order),
		zap.Int("lookback_window_days", gc.LookbackWindowDays))
	return nil
}

func (s *Source) buildStreams(gc *Config) error {
	selected := make(map[string]bool, len(gc.Streams))
	for _, name := range gc.Streams {
		selected[name] = true
	}

	s.streams = make(map[string]httpstream.IncrementalStream, len(resources))
	s.order = s.order[:0]
	for _, r := range resources {
		if len(selected) > 0 && !selected[r.name] {
			continue
		}
		delete(selected, r.name)

		st := newStream(r, gc)
		if r.name == "payment_events" {
			s.streams[r.name] = &paymentEvents{stream: st}
		} else {
			s.streams[r.name] = st
		}
		s.order = append(s.order, r.name)
	}

	if len(selected) > 0 {
		unknown := make([]string, 0, len(selected))
		for name := range selected {
			unknown = append(unknown, name)
		}
		sort.Strings(unknown)
		return errors.Newf(errors.ErrorTypeConfig, "unknown streams %s (available: %s)",
			strings.Join(unknown, ", "), strings.Join(StreamNames(), ", "))
	}
	return nil
}

// Check lists a single payment to confirm the credentials work.
func (s *Source) Check(ctx context.Context) error {
	if s.client == nil {
		return errors.New(errors.ErrorTypeConfig, "source is not initialized")
	}

	ctx, span := s.tracer.StartSpan(ctx, "check")
	defer span.End()

	target := strings.TrimSuffix(s.config.BaseURL, "/") + "/payments?limit=1"
	resp, err := s.client.Get(ctx, target, map[string]string{versionHTTP: s.config.Version})
	if err != nil {
		span.RecordError(err)
		return errors.Wrap(err, errors.ErrorTypeConnection, "gocardless API unreachable")
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))

	span.SetAttribute("http.status_code", resp.StatusCode)
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return errors.Newf(errors.ErrorTypeAuthentication, "access token rejected: %s", strings.TrimSpace(string(body)))
	case resp.StatusCode == http.StatusForbidden:
		return errors.Newf(errors.ErrorTypePermission, "access token lacks permission: %s", strings.TrimSpace(string(body)))
	default:
		return errors.Newf(errors.ErrorTypeConnection, "gocardless API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
}

// Discover returns the configured streams.
func (s *Source) Discover(ctx context.Context) (*core.Catalog, error) {
	if s.streams == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "source is not initialized")
	}

	catalog := &core.Catalog{Streams: make([]core.StreamDescriptor, 0, len(s.order))}
	for _, name := range s.order {
		catalog.Streams = append(catalog.Streams, descriptorOf(s.streams[name]))
	}
	return catalog, nil
}

func descriptorOf(st httpstream.IncrementalStream) core.StreamDescriptor {
	switch v := st.(type) {
	case *stream:
		return v.Descriptor()
	case *paymentEvents:
		return v.Descriptor()
	}
	return core.StreamDescriptor{Name: st.Name(), PrimaryKey: primaryKey, CursorField: st.CursorField()}
}

// Streams returns the configured stream names in catalog order.
func (s *Source) Streams() []string {
	return append([]string(nil), s.order...)
}

// Read streams every record of one stream. The stream's state is updated
// only when the read finishes cleanly.
func (s *Source) Read(ctx context.Context, streamName string) (*core.RecordStream, error) {
	if s.reader == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "source is not initialized")
	}
	st, ok := s.streams[streamName]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "stream %q is not configured", streamName)
	}

	bufferSize := s.baseConfig.Performance.BufferSize
	if bufferSize <= 0 {
		bufferSize = 1
	}
	records := make(chan *pool.Record, bufferSize)
	errCh := make(chan error, 1)

	s.readers.Add(1)
	go func() {
		defer s.readers.Done()
		defer close(errCh)
		defer close(records)

		ctx := logger.WithStream(ctx, streamName)
		log := logger.WithContext(ctx)
		started := time.Now()
		var count int64

		emit := func(ctx context.Context, data map[string]interface{}) error {
			record := pool.NewRecord(ConnectorName, data)
			if id, ok := data[primaryKey].(string); ok {
				record.ID = id
			}
			record.Metadata.StreamID = streamName
			if cursor, ok := data[cursorField]; ok {
				record.SetMetadata("cursor", cursor)
			}

			select {
			case records <- record:
				count++
				return nil
			case <-ctx.Done():
				record.Release()
				return ctx.Err()
			}
		}

		state := s.StreamState(streamName)
		final, err := s.reader.ReadStream(ctx, st, state, emit)
		if err != nil {
			errCh <- s.HandleError(ctx, err, streamName)
			return
		}

		if final != nil {
			if err := s.SetState(streamName, final); err != nil {
				errCh <- err
				return
			}
		}
		log.Info("stream read complete",
			zap.Int64("records", count),
			zap.Any("state", final),
			zap.Duration("duration", time.Since(started)))
	}()

	return &core.RecordStream{Stream: streamName, Records: records, Errors: errCh}, nil
}

// SupportsIncremental returns true; every stream is incremental.
func (s *Source) SupportsIncremental() bool {
	return true
}

// Metrics adds client statistics to the base metrics.
func (s *Source) Metrics() map[string]interface{} {
	m := s.BaseConnector.Metrics()
	if s.client != nil {
		stats := s.client.GetStats()
		m["http_requests"] = stats.TotalRequests
		m["http_failed_requests"] = stats.FailedRequests
		m["http_success_rate"] = stats.SuccessRate
		m["circuit_state"] = stats.CircuitState
	}
	return m
}

// Close waits for in-flight reads and releases the client.
func (s *Source) Close(ctx context.Context) error {
	s.readers.Wait()
	if s.client != nil {
		_ = s.client.Close()
	}
	return s.BaseConnector.Close(ctx)
}
