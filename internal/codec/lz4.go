package codec

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

const lz4Magic = 0x184D2204

type lz4Codec struct {
	level lz4.CompressionLevel
}

func newLZ4(level Level) (Codec, error) {
	c := &lz4Codec{level: lz4.Fast}
	switch level {
	case Better:
		c.level = lz4.Level5
	case Best:
		c.level = lz4.Level9
	}
	return c, nil
}

func (c *lz4Codec) Name() string { return "lz4" }

func (c *lz4Codec) Encode(dst, src []byte) ([]byte, error) {
	buf := bytes.NewBuffer(dst)
	zw := lz4.NewWriter(buf)
	if err := zw.Apply(
		lz4.CompressionLevelOption(c.level),
		lz4.ChecksumOption(true),
		lz4.ConcurrencyOption(1),
		lz4.SizeOption(uint64(len(src))),
	); err != nil {
		return nil, errors.Wrap(err, "configure lz4 writer")
	}
	if _, err := zw.Write(src); err != nil {
		return nil, errors.Wrap(err, "lz4 write")
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(err, "lz4 close")
	}
	return buf.Bytes(), nil
}

func (c *lz4Codec) Decode(dst, src []byte) ([]byte, error) {
	zr := lz4.NewReader(bytes.NewReader(src))
	buf := bytes.NewBuffer(dst)
	if _, err := io.Copy(buf, zr); err != nil {
		return nil, errors.Wrap(err, "lz4 decode")
	}
	return buf.Bytes(), nil
}

// FrameLength walks the frame descriptor and the 4-byte block size words up
// to the end mark.
func (c *lz4Codec) FrameLength(r io.ReaderAt, off, limit int64) (int64, error) {
	if off >= limit {
		return 0, io.EOF
	}
	hdr, err := readAt(r, off, limit, 6)
	if err != nil {
		return 0, err
	}
	magic := binary.LittleEndian.Uint32(hdr)
	if isSkippable(magic) {
		return skippableLength(r, off, limit)
	}
	if magic != lz4Magic {
		return 0, errors.Wrapf(ErrCorruptFrame, "bad lz4 magic %#x at %d", magic, off)
	}

	flg := hdr[4]
	if flg>>6 != 1 {
		return 0, errors.Wrapf(ErrCorruptFrame, "unsupported lz4 frame version at %d", off)
	}
	blockChecksum := flg&0x10 != 0
	contentSize := flg&0x08 != 0
	contentChecksum := flg&0x04 != 0
	dictID := flg&0x01 != 0

	pos := off + 6
	if contentSize {
		pos += 8
	}
	if dictID {
		pos += 4
	}
	pos++ // header checksum

	for {
		word, err := readAt(r, pos, limit, 4)
		if err != nil {
			return 0, err
		}
		pos += 4
		v := binary.LittleEndian.Uint32(word)
		if v == 0 {
			break
		}
		pos += int64(v & 0x7FFFFFFF)
		if blockChecksum {
			pos += 4
		}
		if pos > limit {
			return checkEnd(off, pos, limit)
		}
	}

	if contentChecksum {
		pos += 4
	}
	return checkEnd(off, pos, limit)
}
