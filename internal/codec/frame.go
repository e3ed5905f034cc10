package codec

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Skippable frames share one magic range between zstd and lz4.
const (
	skippableMagicMask = 0xFFFFFFF0
	skippableMagic     = 0x184D2A50
)

// readAt reads exactly n bytes at off, treating any read past limit as a
// corrupt frame.
func readAt(r io.ReaderAt, off, limit int64, n int) ([]byte, error) {
	if off+int64(n) > limit {
		return nil, errors.Wrapf(ErrCorruptFrame, "header at %d overruns input of %d bytes", off, limit)
	}
	buf := make([]byte, n)
	m, err := r.ReadAt(buf, off)
	if m == n {
		return buf, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, errors.Wrapf(err, "read frame header at %d", off)
}

func isSkippable(magic uint32) bool {
	return magic&skippableMagicMask == skippableMagic
}

// skippableLength returns the size of a skippable frame: magic, a 4-byte
// little-endian length, and that many bytes of user data.
func skippableLength(r io.ReaderAt, off, limit int64) (int64, error) {
	hdr, err := readAt(r, off, limit, 8)
	if err != nil {
		return 0, err
	}
	n := 8 + int64(binary.LittleEndian.Uint32(hdr[4:]))
	if off+n > limit {
		return 0, errors.Wrapf(ErrCorruptFrame, "skippable frame at %d overruns input", off)
	}
	return n, nil
}

func checkEnd(off, pos, limit int64) (int64, error) {
	if pos > limit {
		return 0, errors.Wrapf(ErrCorruptFrame, "frame at %d overruns input of %d bytes", off, limit)
	}
	return pos - off, nil
}
