package httpstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ajitpratap0/nebula-gocardless/pkg/clients"
	"github.com/ajitpratap0/nebula-gocardless/pkg/connector/core"
	"github.com/ajitpratap0/nebula-gocardless/pkg/errors"
	jsonpool "github.com/ajitpratap0/nebula-gocardless/pkg/json"
	"github.com/ajitpratap0/nebula-gocardless/pkg/metrics"
	"github.com/ajitpratap0/nebula-gocardless/pkg/observability"
	"go.uber.org/zap"
)

// maxErrorBody caps how much of an error response is kept in the error.
const maxErrorBody = 4 << 10

// EmitFunc receives each parsed record in page order.
type EmitFunc func(ctx context.Context, record map[string]interface{}) error

// Retrier runs fn until it succeeds or fails permanently.
type Retrier interface {
	ExecuteWithRetry(ctx context.Context, fn func() error) error
}

// ReaderConfig configures a Reader. Client and BaseURL are required.
type ReaderConfig struct {
	BaseURL   string
	Client    *clients.HTTPClient
	Retrier   Retrier
	Tracer    *observability.ConnectorTracer
	Collector *metrics.Collector
	Logger    *zap.Logger
}

// Reader executes the page loop for a Stream.
type Reader struct {
	baseURL   *url.URL
	client    *clients.HTTPClient
	retrier   Retrier
	tracer    *observability.ConnectorTracer
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewReader validates cfg and builds a Reader.
func NewReader(cfg ReaderConfig) (*Reader, error) {
	if cfg.Client == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "http client is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.Newf(errors.ErrorTypeConfig, "invalid base url %q", cfg.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	r := &Reader{
		baseURL:   base,
		client:    cfg.Client,
		retrier:   cfg.Retrier,
		tracer:    cfg.Tracer,
		collector: cfg.Collector,
		logger:    cfg.Logger,
	}
	if r.tracer == nil {
		r.tracer = observability.NewConnectorTracer("source", "http")
	}
	if r.collector == nil {
		r.collector = metrics.NewCollector("http")
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r, nil
}

// ReadStream reads every page of s, passing each record to emit. For an
// IncrementalStream the returned state is state folded with every emitted
// record; for other streams it is a copy of state.
func (r *Reader) ReadStream(ctx context.Context, s Stream, state core.State, emit EmitFunc) (core.State, error) {
	current := state.Copy()
	incremental, isIncremental := s.(IncrementalStream)

	token := ""
	for pageNum := 1; ; pageNum++ {
		if err := ctx.Err(); err != nil {
			return current, err
		}

		var (
			page    Page
			records []map[string]interface{}
		)
		_, err := r.tracer.TracePage(ctx, s.Name(), pageNum, func(ctx context.Context) (int, error) {
			var err error
			page, err = r.fetchPage(ctx, s, state, token)
			if err != nil {
				return 0, err
			}
			records, err = s.ParseResponse(page)
			return len(records), err
		})
		if err != nil {
			return current, err
		}

		for _, record := range records {
			if err := emit(ctx, record); err != nil {
				return current, err
			}
			if isIncremental {
				current, err = incremental.UpdatedState(current, record)
				if err != nil {
					return current, err
				}
			}
		}
		r.collector.RecordPage(s.Name(), len(records))

		next, err := s.NextPageToken(page)
		if err != nil {
			return current, err
		}
		r.logger.Debug("page read",
			zap.String("stream", s.Name()),
			zap.Int("page", pageNum),
			zap.Int("records", len(records)),
			zap.Bool("has_next", next != ""))

		if next == "" {
			return current, nil
		}
		if next == token {
			return current, errors.Newf(errors.ErrorTypeData, "stream %s: cursor %q repeated", s.Name(), next)
		}
		token = next
	}
}

// fetchPage requests one page under the retrier and decodes it.
func (r *Reader) fetchPage(ctx context.Context, s Stream, state core.State, token string) (Page, error) {
	ref := &url.URL{Path: strings.TrimPrefix(s.Path(), "/")}
	ref.RawQuery = s.RequestParams(state, token).Encode()
	target := r.baseURL.ResolveReference(ref).String()

	var page Page
	attempt := func() error {
		p, err := r.get(ctx, s, target)
		if err != nil {
			return err
		}
		page = p
		return nil
	}

	var err error
	if r.retrier != nil {
		err = r.retrier.ExecuteWithRetry(ctx, attempt)
	} else {
		err = attempt()
	}
	return page, err
}

func (r *Reader) get(ctx context.Context, s Stream, target string) (Page, error) {
	start := time.Now()
	resp, err := r.client.Get(ctx, target, s.RequestHeaders())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.collector.RecordError(string(errors.ErrorTypeConnection))
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, fmt.Sprintf("GET %s", s.Path()))
	}
	defer resp.Body.Close()

	r.collector.ObserveRequest(s.Path(), resp.StatusCode, time.Since(start))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := errors.FromHTTPStatus(resp.StatusCode, strings.TrimSpace(string(body)))
		r.collector.RecordError(string(apiErr.Type))
		return nil, apiErr.WithDetail("path", s.Path())
	}

	var page Page
	if err := jsonpool.Decode(resp.Body, &page); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, fmt.Sprintf("decode %s response", s.Path()))
	}
	return page, nil
}
