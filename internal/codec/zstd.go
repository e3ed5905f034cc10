package codec

import (
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

const zstdMagic = 0xFD2FB528

type zstdCodec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newZstd(level Level) (Codec, error) {
	var speed zstd.EncoderLevel
	switch level {
	case Fastest:
		speed = zstd.SpeedFastest
	case Better:
		speed = zstd.SpeedBetterCompression
	case Best:
		speed = zstd.SpeedBestCompression
	default:
		speed = zstd.SpeedDefault
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(speed))
	if err != nil {
		return nil, errors.Wrap(err, "create zstd encoder")
	}
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		encoder.Close()
		return nil, errors.Wrap(err, "create zstd decoder")
	}
	return &zstdCodec{encoder: encoder, decoder: decoder}, nil
}

func (c *zstdCodec) Name() string { return "zstd" }

// Encode uses EncodeAll, which is safe for concurrent callers.
func (c *zstdCodec) Encode(dst, src []byte) ([]byte, error) {
	return c.encoder.EncodeAll(src, dst), nil
}

func (c *zstdCodec) Decode(dst, src []byte) ([]byte, error) {
	out, err := c.decoder.DecodeAll(src, dst)
	if err != nil {
		return nil, errors.Wrap(err, "zstd decode")
	}
	return out, nil
}

// FrameLength walks the frame header and the 3-byte block headers that
// follow it, then the optional content checksum.
func (c *zstdCodec) FrameLength(r io.ReaderAt, off, limit int64) (int64, error) {
	if off >= limit {
		return 0, io.EOF
	}
	hdr, err := readAt(r, off, limit, 4)
	if err != nil {
		return 0, err
	}
	magic := binary.LittleEndian.Uint32(hdr)
	if isSkippable(magic) {
		return skippableLength(r, off, limit)
	}
	if magic != zstdMagic {
		return 0, errors.Wrapf(ErrCorruptFrame, "bad zstd magic %#x at %d", magic, off)
	}

	fhdBuf, err := readAt(r, off+4, limit, 1)
	if err != nil {
		return 0, err
	}
	fhd := fhdBuf[0]
	if fhd&0x08 != 0 {
		return 0, errors.Wrapf(ErrCorruptFrame, "reserved zstd header bit set at %d", off)
	}
	singleSegment := fhd&0x20 != 0
	hasChecksum := fhd&0x04 != 0

	pos := off + 5
	if !singleSegment {
		pos++ // window descriptor
	}
	pos += [4]int64{0, 1, 2, 4}[fhd&0x03]
	switch fhd >> 6 {
	case 0:
		if singleSegment {
			pos++
		}
	case 1:
		pos += 2
	case 2:
		pos += 4
	case 3:
		pos += 8
	}

	for {
		bh, err := readAt(r, pos, limit, 3)
		if err != nil {
			return 0, err
		}
		v := uint32(bh[0]) | uint32(bh[1])<<8 | uint32(bh[2])<<16
		last := v&1 == 1
		size := int64(v >> 3)
		pos += 3
		switch (v >> 1) & 0x03 {
		case 1: // RLE: a single byte repeated size times
			pos++
		case 3:
			return 0, errors.Wrapf(ErrCorruptFrame, "reserved zstd block type at %d", pos-3)
		default:
			pos += size
		}
		if pos > limit {
			return checkEnd(off, pos, limit)
		}
		if last {
			break
		}
	}

	if hasChecksum {
		pos += 4
	}
	return checkEnd(off, pos, limit)
}
