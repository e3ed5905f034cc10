package codec

import (
	"bytes"
	"io"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

const (
	snappyStreamID    = 0xff
	snappyStreamIDLen = 10 // chunk header plus "sNaPpY"
)

// snappyCodec writes one framed stream per block. Snappy has no levels.
type snappyCodec struct{}

func newSnappy(Level) (Codec, error) {
	return snappyCodec{}, nil
}

func (snappyCodec) Name() string { return "snappy" }

func (snappyCodec) Encode(dst, src []byte) ([]byte, error) {
	buf := bytes.NewBuffer(dst)
	zw := snappy.NewBufferedWriter(buf)
	if _, err := zw.Write(src); err != nil {
		return nil, errors.Wrap(err, "snappy write")
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(err, "snappy close")
	}
	return buf.Bytes(), nil
}

func (snappyCodec) Decode(dst, src []byte) ([]byte, error) {
	buf := bytes.NewBuffer(dst)
	if _, err := io.Copy(buf, snappy.NewReader(bytes.NewReader(src))); err != nil {
		return nil, errors.Wrap(err, "snappy decode")
	}
	return buf.Bytes(), nil
}

// FrameLength walks chunk headers from the stream identifier until the next
// stream identifier or the end of input.
func (snappyCodec) FrameLength(r io.ReaderAt, off, limit int64) (int64, error) {
	if off >= limit {
		return 0, io.EOF
	}
	id, err := readAt(r, off, limit, snappyStreamIDLen)
	if err != nil {
		return 0, err
	}
	if id[0] != snappyStreamID || string(id[4:]) != "sNaPpY" {
		return 0, errors.Wrapf(ErrCorruptFrame, "missing snappy stream identifier at %d", off)
	}

	pos := off + snappyStreamIDLen
	for pos < limit {
		hdr, err := readAt(r, pos, limit, 4)
		if err != nil {
			return 0, err
		}
		if hdr[0] == snappyStreamID {
			break
		}
		pos += 4 + int64(uint32(hdr[1])|uint32(hdr[2])<<8|uint32(hdr[3])<<16)
	}
	return checkEnd(off, pos, limit)
}
