// Package httpstream runs paginated HTTP list endpoints. Streams describe
// how to build a request and how to read a response; Reader executes the
// page loop and folds incremental state.
package httpstream

import (
	"net/url"

	"github.com/ajitpratap0/nebula-gocardless/pkg/connector/core"
)

// Page is one decoded response envelope.
type Page map[string]interface{}

// Stream describes one paginated resource.
type Stream interface {
	Name() string
	// Path is resolved against the reader's base URL.
	Path() string
	PrimaryKey() []string
	// RequestParams builds the query for one page. state is the state the
	// read started with; nextPageToken is empty for the first page.
	RequestParams(state core.State, nextPageToken string) url.Values
	RequestHeaders() map[string]string
	// NextPageToken returns "" when there are no more pages and an error
	// when the envelope's paging fields are malformed.
	NextPageToken(page Page) (string, error)
	ParseResponse(page Page) ([]map[string]interface{}, error)
}

// IncrementalStream is a Stream that tracks a cursor across reads.
type IncrementalStream interface {
	Stream
	CursorField() string
	UpdatedState(current core.State, latest map[string]interface{}) (core.State, error)
}
