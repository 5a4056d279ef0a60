package gocardless

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ajitpratap0/nebula-gocardless/pkg/connector/core"
	"github.com/ajitpratap0/nebula-gocardless/pkg/errors"
	jsonpool "github.com/ajitpratap0/nebula-gocardless/pkg/json"
)

const (
	// CursorFormat is how cursor values are written to state.
	CursorFormat = "2006-01-02T15:04:05.000Z07:00"
	// DefaultCursor is assumed when a stream has no state yet.
	DefaultCursor = "1970-01-01T00:00:00.000Z"

	secondsPerDay = 24 * 60 * 60

	// bounds of Unix seconds accepted as cursors: 0001-01-01 to 9999-12-31
	minUnixSeconds = -62135596800
	maxUnixSeconds = 253402300799

	basicDateLayout = "20060102"
)

var cursorLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
	basicDateLayout,
}

// ParseCursor reads a cursor value as an instant. ISO-8601 strings, basic
// dates (YYYYMMDD) and Unix seconds (numeric or numeric string) are
// accepted. Non-finite or out-of-range numbers are data errors.
func ParseCursor(v interface{}) (time.Time, error) {
	if secs, ok := unixSeconds(v); ok {
		return fromUnix(secs), nil
	}

	s, ok := v.(string)
	if !ok {
		return time.Time{}, errors.Newf(errors.ErrorTypeData, "unsupported cursor value %v (%T)", v, v)
	}
	s = strings.TrimSpace(s)
	for _, layout := range cursorLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.Newf(errors.ErrorTypeData, "unparseable cursor value %q", s)
}

// FormatCursor renders t the way cursor values are kept in state.
func FormatCursor(t time.Time) string {
	return t.UTC().Format(CursorFormat)
}

// unixSeconds reports whether v is a Unix timestamp and returns it.
func unixSeconds(v interface{}) (float64, bool) {
	var (
		f   float64
		err error
	)
	switch n := v.(type) {
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case float64:
		f = n
	case jsonpool.Number:
		f, err = n.Float64()
	case string:
		n = strings.TrimSpace(n)
		if isBasicDate(n) {
			return 0, false
		}
		f, err = strconv.ParseFloat(n, 64)
	default:
		return 0, false
	}
	if err != nil || math.IsNaN(f) || f < minUnixSeconds || f > maxUnixSeconds {
		return 0, false
	}
	return f, true
}

// isBasicDate reports whether s is an eight-digit YYYYMMDD date rather
// than Unix seconds.
func isBasicDate(s string) bool {
	if len(s) != len(basicDateLayout) {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func fromUnix(secs float64) time.Time {
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC()
}

// cursorWindow computes where an incremental read starts.
type cursorWindow struct {
	field        string
	startDate    interface{}
	lookbackDays int
}

// StartPoint returns the later of the configured start date and the state's
// cursor, keeping the winner's representation. A non-zero lookback then
// moves it back by abs(days) days: Unix inputs yield whole Unix seconds,
// ISO inputs yield an ISO string.
func (w cursorWindow) StartPoint(state core.State) (interface{}, error) {
	start := w.startDate
	startAt, err := ParseCursor(start)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid start_date")
	}

	if v, ok := state[w.field]; ok && v != nil {
		stateAt, err := ParseCursor(v)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeState, "invalid "+w.field+" in state")
		}
		if stateAt.After(startAt) {
			start, startAt = v, stateAt
		}
	}

	if w.lookbackDays == 0 {
		return start, nil
	}

	days := w.lookbackDays
	if days < 0 {
		days = -days
	}
	if secs, ok := unixSeconds(start); ok {
		return int64(secs - float64(days*secondsPerDay)), nil
	}
	return FormatCursor(startAt.Add(-time.Duration(days) * secondsPerDay * time.Second)), nil
}

// UpdatedState folds one record into state: the cursor becomes the later
// of the record's value and the current one.
func (w cursorWindow) UpdatedState(current core.State, latest map[string]interface{}) (core.State, error) {
	v, ok := latest[w.field]
	if !ok || v == nil {
		return current, nil
	}

	latestAt, err := ParseCursor(v)
	if err != nil {
		return current, errors.Wrap(err, errors.ErrorTypeData, "invalid "+w.field+" on record")
	}

	var cur interface{} = DefaultCursor
	if c, ok := current[w.field]; ok && c != nil {
		cur = c
	}
	currentAt, err := ParseCursor(cur)
	if err != nil {
		return current, errors.Wrap(err, errors.ErrorTypeState, "invalid "+w.field+" in state")
	}

	if currentAt.After(latestAt) {
		latestAt = currentAt
	}

	out := current.Copy()
	if out == nil {
		out = core.State{}
	}
	out[w.field] = FormatCursor(latestAt)
	return out, nil
}
