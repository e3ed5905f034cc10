package codec

import (
	"bytes"
	"io"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPayloads() map[string][]byte {
	rng := rand.New(rand.NewSource(42))
	random := make([]byte, 300*1024)
	rng.Read(random)

	text := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog\n"), 20000)

	return map[string][]byte{
		"one byte": {0x7f},
		"zeros":    make([]byte, 256*1024),
		"text":     text,
		"random":   random,
	}
}

func allCodecs(t *testing.T, level Level) []Codec {
	t.Helper()
	var codecs []Codec
	for _, name := range Names() {
		c, err := New(name, level)
		require.NoError(t, err, name)
		codecs = append(codecs, c)
	}
	return codecs
}

func TestRoundTrip(t *testing.T) {
	for _, level := range []Level{Fastest, Default, Best} {
		for _, c := range allCodecs(t, level) {
			for name, payload := range testPayloads() {
				t.Run(c.Name()+"/"+level.String()+"/"+name, func(t *testing.T) {
					encoded, err := c.Encode(nil, payload)
					require.NoError(t, err)

					decoded, err := c.Decode(nil, encoded)
					require.NoError(t, err)
					assert.True(t, bytes.Equal(payload, decoded), "decoded payload differs")
				})
			}
		}
	}
}

func TestEncodeAppendsToDst(t *testing.T) {
	for _, c := range allCodecs(t, Default) {
		t.Run(c.Name(), func(t *testing.T) {
			prefix := []byte("prefix")
			out, err := c.Encode(append([]byte(nil), prefix...), []byte("payload payload payload"))
			require.NoError(t, err)
			require.True(t, bytes.HasPrefix(out, prefix))

			decoded, err := c.Decode(nil, out[len(prefix):])
			require.NoError(t, err)
			assert.Equal(t, "payload payload payload", string(decoded))
		})
	}
}

func TestFrameLengthSplitsConcatenation(t *testing.T) {
	payloads := testPayloads()
	order := []string{"text", "one byte", "random", "zeros"}

	for _, c := range allCodecs(t, Default) {
		t.Run(c.Name(), func(t *testing.T) {
			var stream []byte
			var lengths []int64
			for _, name := range order {
				before := len(stream)
				var err error
				stream, err = c.Encode(stream, payloads[name])
				require.NoError(t, err)
				lengths = append(lengths, int64(len(stream)-before))
			}

			r := bytes.NewReader(stream)
			limit := int64(len(stream))
			var off int64
			for i, name := range order {
				n, err := c.FrameLength(r, off, limit)
				require.NoError(t, err, "frame %d", i)
				require.Equal(t, lengths[i], n, "frame %d length", i)

				decoded, err := c.Decode(nil, stream[off:off+n])
				require.NoError(t, err)
				assert.True(t, bytes.Equal(payloads[name], decoded), "frame %d content", i)
				off += n
			}

			_, err := c.FrameLength(r, off, limit)
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestFrameLengthRejectsGarbage(t *testing.T) {
	garbage := bytes.Repeat([]byte{0xAB}, 64)
	for _, c := range allCodecs(t, Default) {
		t.Run(c.Name(), func(t *testing.T) {
			_, err := c.FrameLength(bytes.NewReader(garbage), 0, int64(len(garbage)))
			assert.ErrorIs(t, err, ErrCorruptFrame)
		})
	}
}

func TestFrameLengthRejectsTruncation(t *testing.T) {
	payload := testPayloads()["text"]
	for _, c := range allCodecs(t, Default) {
		t.Run(c.Name(), func(t *testing.T) {
			encoded, err := c.Encode(nil, payload)
			require.NoError(t, err)

			truncated := encoded[:len(encoded)-3]
			_, err = c.FrameLength(bytes.NewReader(truncated), 0, int64(len(truncated)))
			assert.Error(t, err)
		})
	}
}

func TestDecodeRejectsCorruptPayload(t *testing.T) {
	payload := testPayloads()["text"]
	for _, c := range allCodecs(t, Default) {
		t.Run(c.Name(), func(t *testing.T) {
			encoded, err := c.Encode(nil, payload)
			require.NoError(t, err)

			corrupt := append([]byte(nil), encoded...)
			for i := len(corrupt) / 2; i < len(corrupt)/2+16 && i < len(corrupt); i++ {
				corrupt[i] ^= 0xFF
			}
			decoded, err := c.Decode(nil, corrupt)
			if err == nil {
				assert.False(t, bytes.Equal(payload, decoded))
			}
		})
	}
}

func TestSkippableFrame(t *testing.T) {
	skippable := []byte{0x50, 0x2A, 0x4D, 0x18, 3, 0, 0, 0, 'a', 'b', 'c'}
	for _, name := range []string{"zstd", "lz4"} {
		c, err := New(name, Default)
		require.NoError(t, err)
		n, err := c.FrameLength(bytes.NewReader(skippable), 0, int64(len(skippable)))
		require.NoError(t, err)
		assert.Equal(t, int64(len(skippable)), n)
	}
}

func TestNewAndParseLevel(t *testing.T) {
	_, err := New("brotli", Default)
	assert.ErrorIs(t, err, ErrUnknownCodec)

	_, err = New("zstd", Level(99))
	assert.ErrorIs(t, err, ErrUnknownLevel)

	c, err := New("ZSTD", 0)
	require.NoError(t, err)
	assert.Equal(t, "zstd", c.Name())

	tests := []struct {
		in   string
		want Level
		err  bool
	}{
		{"fastest", Fastest, false},
		{"", Default, false},
		{"Default", Default, false},
		{"optimal", Better, false},
		{"best", Best, false},
		{"maximum", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.err {
			assert.ErrorIs(t, err, ErrUnknownLevel, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	assert.Equal(t, []string{"gzip", "lz4", "snappy", "zstd"}, Names())
}

func BenchmarkEncode(b *testing.B) {
	payload := bytes.Repeat([]byte("benchmark payload with some repetition "), 1<<15)
	for _, name := range Names() {
		c, err := New(name, Default)
		if err != nil {
			b.Fatal(err)
		}
		b.Run(name, func(b *testing.B) {
			b.SetBytes(int64(len(payload)))
			for i := 0; i < b.N; i++ {
				if _, err := c.Encode(nil, payload); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
