package compression

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	payload := strings.Repeat(`{"type":"RECORD","stream":"payments","data":{"id":"PM1"}}`+"\n", 200)

	for _, algo := range []Algorithm{None, Gzip, Snappy, S2, LZ4, Zstd} {
		for _, level := range []Level{Fastest, Default, Best} {
			t.Run(string(algo), func(t *testing.T) {
				var buf bytes.Buffer
				w, err := NewWriter(&buf, &Config{Algorithm: algo, Level: level})
				require.NoError(t, err)
				_, err = io.WriteString(w, payload)
				require.NoError(t, err)
				require.NoError(t, w.Close())

				if algo != None {
					assert.Less(t, buf.Len(), len(payload))
				}

				r, err := NewReader(&buf, algo)
				require.NoError(t, err)
				defer r.Close()
				got, err := io.ReadAll(r)
				require.NoError(t, err)
				assert.Equal(t, payload, string(got))
			})
		}
	}
}

func TestUnsupported(t *testing.T) {
	_, err := NewWriter(io.Discard, &Config{Algorithm: "brotli"})
	assert.Error(t, err)
	_, err = NewReader(strings.NewReader(""), "brotli")
	assert.Error(t, err)
}

func TestLevelFromInt(t *testing.T) {
	assert.Equal(t, Default, LevelFromInt(0))
	assert.Equal(t, Fastest, LevelFromInt(1))
	assert.Equal(t, Default, LevelFromInt(6))
	assert.Equal(t, Better, LevelFromInt(7))
	assert.Equal(t, Best, LevelFromInt(9))
	assert.Equal(t, ".zst", Extension(Zstd))
	assert.Equal(t, "", Extension(None))
}
