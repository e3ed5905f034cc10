// Package codec provides the byte transforms applied to each block, together
// with scanners that find where one encoded block ends and the next begins.
//
// Every codec writes exactly one self-delimiting frame per Encode call, so an
// output file made of concatenated frames can be split back into blocks by
// walking frame headers alone, without an external index.
package codec

import (
	"io"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrCorruptFrame is returned when a frame header is invalid or claims
	// more bytes than the input holds.
	ErrCorruptFrame = errors.New("codec: corrupt frame")
	// ErrUnknownCodec is returned by New for an unregistered codec name.
	ErrUnknownCodec = errors.New("codec: unknown codec")
	// ErrUnknownLevel is returned by ParseLevel for an unrecognized level.
	ErrUnknownLevel = errors.New("codec: unknown compression level")
)

// Codec is a block transform. Encode and Decode must be safe for concurrent
// use and append their output to dst.
type Codec interface {
	// Name returns the registered name of the codec.
	Name() string
	// Encode compresses src into a single frame appended to dst.
	Encode(dst, src []byte) ([]byte, error)
	// Decode decompresses the single frame in src, appending to dst.
	Decode(dst, src []byte) ([]byte, error)
	// FrameLength returns the length of the frame starting at off, reading
	// no further than limit. It returns io.EOF when off == limit.
	FrameLength(r io.ReaderAt, off, limit int64) (int64, error)
}

// Level selects the speed/ratio trade-off of a codec.
type Level int

const (
	// Fastest favors throughput over ratio.
	Fastest Level = iota + 1
	// Default is each codec's own default.
	Default
	// Better trades some speed for a better ratio.
	Better
	// Best selects the strongest compression the codec offers.
	Best
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case Fastest:
		return "fastest"
	case Default:
		return "default"
	case Better:
		return "better"
	case Best:
		return "best"
	default:
		return "undefined"
	}
}

// ParseLevel parses a level name. "optimal" is accepted as an alias for
// Better.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fastest", "fast":
		return Fastest, nil
	case "", "default":
		return Default, nil
	case "better", "optimal":
		return Better, nil
	case "best":
		return Best, nil
	default:
		return 0, errors.Wrapf(ErrUnknownLevel, "%q", s)
	}
}

type constructor func(Level) (Codec, error)

var registry = map[string]constructor{
	"zstd":   newZstd,
	"gzip":   newGzip,
	"lz4":    newLZ4,
	"snappy": newSnappy,
}

// New returns the codec registered under name, configured for level.
func New(name string, level Level) (Codec, error) {
	ctor, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownCodec, "%q (known: %s)", name, strings.Join(Names(), ", "))
	}
	if level == 0 {
		level = Default
	}
	if level < Fastest || level > Best {
		return nil, errors.Wrapf(ErrUnknownLevel, "%d", int(level))
	}
	return ctor(level)
}

// Names returns the registered codec names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
