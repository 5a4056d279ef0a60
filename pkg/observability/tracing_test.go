package observability

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func useRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return recorder
}

func TestConnectorTracer_TracePage(t *testing.T) {
	recorder := useRecorder(t)
	ct := NewConnectorTracer("source", "gocardless")

	n, err := ct.TracePage(context.Background(), "payments", 1, func(ctx context.Context) (int, error) {
		return 500, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 500, n)

	_, err = ct.TracePage(context.Background(), "payments", 2, func(ctx context.Context) (int, error) {
		return 0, errors.New("boom")
	})
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "source.gocardless.read_page", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "payments", attrs["stream"])
	assert.Equal(t, "500", attrs["page.records"])
}

func TestInjectHeaders(t *testing.T) {
	useRecorder(t)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	ctx, span := NewSpan(context.Background(), "request")
	defer span.End()

	header := http.Header{}
	InjectHeaders(ctx, header)
	assert.NotEmpty(t, header.Get("traceparent"))
}

func TestInitTracing(t *testing.T) {
	var out bytes.Buffer
	cfg := DefaultTracingConfig("test")
	cfg.Writer = &out

	shutdown, err := InitTracing(cfg)
	require.NoError(t, err)

	_, span := NewConnectorTracer("source", "gocardless").StartSpan(context.Background(), "check")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, out.String(), "source.gocardless.check")
}
