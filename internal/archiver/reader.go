package archiver

import (
	"io"

	"github.com/pkg/errors"
)

// read is the loop of one read stage worker. Before claiming a block it
// reserves a block's worth of room in the raw-block queue, which blocks while
// the queue is at its byte cap.
func (r *Run) read() error {
	reserve := r.opts.BlockSize
	for !r.stopped() {
		if err := r.raw.Reserve(reserve); err != nil {
			return err
		}
		e, err := r.source.next()
		if err != nil {
			r.raw.Release(reserve)
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		b, err := r.readBlock(e)
		if err != nil {
			r.raw.Release(reserve)
			return err
		}
		if err := r.raw.Put(b, reserve); err != nil {
			r.buffers.Put(b.Payload)
			return err
		}
		r.observer.BlockRead(b, r.raw.Bytes())
	}
	return nil
}

func (r *Run) readBlock(e extent) (*Block, error) {
	f, err := r.in.get()
	if err != nil {
		return nil, ioError("open source", e.index, err)
	}
	defer r.in.put(f)

	buf := r.buffers.Get(int(e.length))
	n, err := f.ReadAt(buf, e.offset)
	if n < len(buf) {
		r.buffers.Put(buf)
		if err == nil || errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, ioError("read", e.index, err)
	}

	return &Block{
		Index:    e.index,
		Capacity: r.opts.BlockSize,
		Payload:  buf,
		Size:     int64(n),
		Offset:   UnknownOffset,
	}, nil
}
