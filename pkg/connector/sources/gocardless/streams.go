package gocardless

import (
	"net/url"
	"strconv"

	"github.com/ajitpratap0/nebula-gocardless/pkg/connector/core"
	"github.com/ajitpratap0/nebula-gocardless/pkg/connector/httpstream"
	"github.com/ajitpratap0/nebula-gocardless/pkg/errors"
)

const (
	// PageSize is the largest page the list endpoints return.
	PageSize = 500

	primaryKey  = "id"
	cursorField = "created_at"
	versionHTTP = "GoCardless-Version"
)

// resource describes one list endpoint.
type resource struct {
	name        string
	path        string
	dataKey     string
	params      url.Values
	description string
}

// resources lists every stream in catalog order.
var resources = []resource{
	{name: "payments", path: "payments", dataKey: "payments", description: "Payments collected against mandates"},
	{
		name:        "payment_events",
		path:        "events",
		dataKey:     "events",
		params:      url.Values{"resource_type": {"payments"}, "include": {"payment"}},
		description: "Payment lifecycle events joined with the linked payment",
	},
	{name: "customers", path: "customers", dataKey: "customers", description: "Customers"},
	{name: "mandates", path: "mandates", dataKey: "mandates", description: "Direct debit mandates"},
	{name: "refunds", path: "refunds", dataKey: "refunds", description: "Refunds of collected payments"},
	{name: "payouts", path: "payouts", dataKey: "payouts", description: "Payouts to the creditor bank account"},
	{name: "subscriptions", path: "subscriptions", dataKey: "subscriptions", description: "Recurring payment subscriptions"},
}

// StreamNames returns every stream name in catalog order.
func StreamNames() []string {
	names := make([]string, len(resources))
	for i, r := range resources {
		names[i] = r.name
	}
	return names
}

// stream is a GoCardless list endpoint read incrementally on created_at.
type stream struct {
	resource
	cursorWindow
	version string
}

var _ httpstream.IncrementalStream = (*stream)(nil)

func newStream(r resource, cfg *Config) *stream {
	return &stream{
		resource: r,
		cursorWindow: cursorWindow{
			field:        cursorField,
			startDate:    cfg.StartDate,
			lookbackDays: cfg.LookbackWindowDays,
		},
		version: cfg.Version,
	}
}

func (s *stream) Name() string         { return s.name }
func (s *stream) Path() string         { return s.path }
func (s *stream) PrimaryKey() []string { return []string{primaryKey} }
func (s *stream) CursorField() string  { return s.field }

// RequestParams sets the page size, the fixed endpoint params, the page
// cursor and the created_at lower bound.
func (s *stream) RequestParams(state core.State, nextPageToken string) url.Values {
	params := url.Values{"limit": {strconv.Itoa(PageSize)}}
	for k, v := range s.params {
		params[k] = append([]string(nil), v...)
	}
	if nextPageToken != "" {
		params.Set("after", nextPageToken)
	}

	// an unusable start point was already rejected when the config was
	// parsed; a corrupt state cursor falls back to the start date
	start, err := s.StartPoint(state)
	if err != nil {
		start, err = s.StartPoint(nil)
	}
	if err == nil {
		if at, err := ParseCursor(start); err == nil {
			params.Set(s.field+"[gte]", FormatCursor(at))
		}
	}
	return params
}

func (s *stream) RequestHeaders() map[string]string {
	return map[string]string{versionHTTP: s.version}
}

// NextPageToken returns meta.cursors.after, or "" on the last page. A
// missing or null meta, cursors or after ends paging; any other non-string
// shape is a data error.
func (s *stream) NextPageToken(page httpstream.Page) (string, error) {
	meta, err := envelopeField[map[string]interface{}](page, "meta")
	if err != nil || meta == nil {
		return "", err
	}
	cursors, err := envelopeField[map[string]interface{}](meta, "cursors")
	if err != nil || cursors == nil {
		return "", err
	}
	return envelopeField[string](cursors, "after")
}

// envelopeField returns obj[key] as T. Absent and null values yield the zero T.
func envelopeField[T any](obj map[string]interface{}, key string) (T, error) {
	var zero T
	raw, ok := obj[key]
	if !ok || raw == nil {
		return zero, nil
	}
	v, ok := raw.(T)
	if !ok {
		return zero, errors.Newf(errors.ErrorTypeData, "unexpected %s in page envelope: %v (%T)", key, raw, raw)
	}
	return v, nil
}

// ParseResponse returns the objects listed under the data key.
func (s *stream) ParseResponse(page httpstream.Page) ([]map[string]interface{}, error) {
	return objects(page, s.dataKey)
}

func objects(page httpstream.Page, key string) ([]map[string]interface{}, error) {
	raw, ok := page[key]
	if !ok || raw == nil {
		return nil, nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeData, "response field %q is not a list", key)
	}

	out := make([]map[string]interface{}, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeData, "%s[%d] is not an object", key, i)
		}
		out = append(out, obj)
	}
	return out, nil
}

// Descriptor returns the catalog entry for the stream.
func (s *stream) Descriptor() core.StreamDescriptor {
	return core.StreamDescriptor{
		Name:               s.name,
		Schema:             schemaFor(s.resource),
		SupportedSyncModes: []core.SyncMode{core.SyncModeFullRefresh, core.SyncModeIncremental},
		PrimaryKey:         primaryKey,
		CursorField:        s.field,
		DefaultCursor:      DefaultCursor,
	}
}
