// Package json wraps goccy/go-json with pooled buffers and the decoding
// settings the connector relies on.
package json

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ajitpratap0/nebula-gocardless/pkg/pool"
	gojson "github.com/goccy/go-json"
)

// Number is the representation of numbers decoded with NewDecoder.
type Number = gojson.Number

const maxPooledBuffer = 1 << 20

var bufferPool = pool.New(
	func() *bytes.Buffer { return bytes.NewBuffer(make([]byte, 0, 4096)) },
	func(b *bytes.Buffer) { b.Reset() },
)

// GetBuffer gets a pooled bytes.Buffer
func GetBuffer() *bytes.Buffer {
	return bufferPool.Get()
}

// PutBuffer returns a buffer to the pool
func PutBuffer(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > maxPooledBuffer {
		return
	}
	bufferPool.Put(buf)
}

// NewDecoder returns a decoder that keeps numbers as Number so that ids
// and amounts round-trip without float conversion.
func NewDecoder(r io.Reader) *gojson.Decoder {
	dec := gojson.NewDecoder(r)
	dec.UseNumber()
	return dec
}

// Decode reads one JSON document from r into v.
func Decode(r io.Reader, v interface{}) error {
	return NewDecoder(r).Decode(v)
}

// NewEncoder returns an encoder that does not escape HTML.
func NewEncoder(w io.Writer) *gojson.Encoder {
	enc := gojson.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc
}

// Marshal is a drop-in replacement for json.Marshal
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal decodes the single JSON document in data into v, keeping
// numbers as Number. Anything after the document is an error.
func Unmarshal(data []byte, v interface{}) error {
	dec := NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("json: unexpected data after top-level value at offset %d", dec.InputOffset())
	}
	return nil
}

// MarshalIndent is a drop-in replacement for json.MarshalIndent
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}

// LineEncoder writes one JSON document per line. It is not safe for
// concurrent use.
type LineEncoder struct {
	w     io.Writer
	lines int64
}

// NewLineEncoder creates a LineEncoder writing to w.
func NewLineEncoder(w io.Writer) *LineEncoder {
	return &LineEncoder{w: w}
}

// Encode marshals v and writes it followed by a newline.
func (le *LineEncoder) Encode(v interface{}) error {
	buf := GetBuffer()
	defer PutBuffer(buf)

	if err := NewEncoder(buf).Encode(v); err != nil {
		return err
	}
	if _, err := le.w.Write(buf.Bytes()); err != nil {
		return err
	}
	le.lines++
	return nil
}

// Lines returns the number of documents written.
func (le *LineEncoder) Lines() int64 {
	return le.lines
}
