package codec

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// Each gzip member carries an extra subfield "FP" holding the total member
// length, in the spirit of BGZF, so members can be located without inflating.
const (
	gzipHeaderLen   = 10
	gzipLengthField = gzipHeaderLen + 2 + 4 // XLEN, SI1, SI2, LEN
	gzipFlagExtra   = 0x04
)

var gzipExtra = []byte{'F', 'P', 4, 0, 0, 0, 0, 0}

type gzipCodec struct {
	level int
}

func newGzip(level Level) (Codec, error) {
	c := &gzipCodec{level: gzip.DefaultCompression}
	switch level {
	case Fastest:
		c.level = gzip.BestSpeed
	case Better:
		c.level = 7
	case Best:
		c.level = gzip.BestCompression
	}
	return c, nil
}

func (c *gzipCodec) Name() string { return "gzip" }

func (c *gzipCodec) Encode(dst, src []byte) ([]byte, error) {
	start := len(dst)
	buf := bytes.NewBuffer(dst)

	zw, err := gzip.NewWriterLevel(buf, c.level)
	if err != nil {
		return nil, errors.Wrap(err, "create gzip writer")
	}
	zw.Header.Extra = append([]byte(nil), gzipExtra...)
	if _, err := zw.Write(src); err != nil {
		return nil, errors.Wrap(err, "gzip write")
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(err, "gzip close")
	}

	out := buf.Bytes()
	member := out[start:]
	binary.LittleEndian.PutUint32(member[gzipLengthField:], uint32(len(member)))
	return out, nil
}

func (c *gzipCodec) Decode(dst, src []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, errors.Wrap(err, "gzip header")
	}
	defer zr.Close()
	zr.Multistream(false)

	buf := bytes.NewBuffer(dst)
	if _, err := io.Copy(buf, zr); err != nil {
		return nil, errors.Wrap(err, "gzip decode")
	}
	return buf.Bytes(), nil
}

func (c *gzipCodec) FrameLength(r io.ReaderAt, off, limit int64) (int64, error) {
	if off >= limit {
		return 0, io.EOF
	}
	hdr, err := readAt(r, off, limit, gzipHeaderLen+2)
	if err != nil {
		return 0, err
	}
	if hdr[0] != 0x1f || hdr[1] != 0x8b || hdr[2] != 8 {
		return 0, errors.Wrapf(ErrCorruptFrame, "bad gzip header at %d", off)
	}
	if hdr[3]&gzipFlagExtra == 0 {
		return 0, errors.Wrapf(ErrCorruptFrame, "gzip member at %d has no length subfield", off)
	}

	xlen := int(binary.LittleEndian.Uint16(hdr[gzipHeaderLen:]))
	extra, err := readAt(r, off+gzipHeaderLen+2, limit, xlen)
	if err != nil {
		return 0, err
	}
	for len(extra) >= 4 {
		n := int(binary.LittleEndian.Uint16(extra[2:]))
		if 4+n > len(extra) {
			break
		}
		if extra[0] == 'F' && extra[1] == 'P' && n == 4 {
			length := int64(binary.LittleEndian.Uint32(extra[4:]))
			// header, extra field, and the 8-byte trailer at minimum
			if length < int64(gzipHeaderLen+2+xlen+8) {
				return 0, errors.Wrapf(ErrCorruptFrame, "gzip member at %d declares %d bytes", off, length)
			}
			return checkEnd(off, off+length, limit)
		}
		extra = extra[4+n:]
	}
	return 0, errors.Wrapf(ErrCorruptFrame, "gzip member at %d has no length subfield", off)
}
