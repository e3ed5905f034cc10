package archiver

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/TFMV/flashpack/internal/codec"
	"github.com/pkg/errors"
)

// extent locates one raw block in the source file.
type extent struct {
	index  int64
	offset int64
	length int64
}

// blockSource hands out extents to read stage workers. next returns io.EOF
// when the file is exhausted.
type blockSource interface {
	next() (extent, error)
	// total is the number of extents handed out, valid after next has
	// returned io.EOF to every reader.
	total() int64
}

// fixedSource splits a file of known size into blocks of blockSize bytes.
// Claiming an index is a single atomic increment.
type fixedSource struct {
	size      int64
	blockSize int64
	cursor    atomic.Int64
}

func newFixedSource(size, blockSize int64) *fixedSource {
	return &fixedSource{size: size, blockSize: blockSize}
}

func (s *fixedSource) next() (extent, error) {
	index := s.cursor.Add(1) - 1
	offset := index * s.blockSize
	if offset >= s.size {
		return extent{}, io.EOF
	}
	return extent{
		index:  index,
		offset: offset,
		length: min(s.blockSize, s.size-offset),
	}, nil
}

func (s *fixedSource) total() int64 {
	return (s.size + s.blockSize - 1) / s.blockSize
}

// frameSource splits a file of concatenated codec frames. Finding where the
// next frame ends only reads frame headers, so it is done under a short lock
// while the frame payloads are read in parallel.
type frameSource struct {
	r     io.ReaderAt
	size  int64
	codec codec.Codec

	mu     sync.Mutex
	index  int64
	offset int64
	err    error
}

func newFrameSource(r io.ReaderAt, size int64, c codec.Codec) *frameSource {
	return &frameSource{r: r, size: size, codec: c}
}

func (s *frameSource) next() (extent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return extent{}, s.err
	}

	n, err := s.codec.FrameLength(s.r, s.offset, s.size)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			err = transformError("scan frame", s.index, err)
		}
		s.err = err
		return extent{}, err
	}
	e := extent{index: s.index, offset: s.offset, length: n}
	s.index++
	s.offset += n
	return e, nil
}

func (s *frameSource) total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}
