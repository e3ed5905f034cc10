package archiver

import (
	"github.com/TFMV/flashpack/internal/queue"
	"github.com/pkg/errors"
)

// write is the loop of one write stage worker. Offsets are final by the time
// a block reaches this stage, so writers never wait on each other.
func (r *Run) write() error {
	for {
		b, err := r.ready.Get()
		if err != nil {
			if errors.Is(err, queue.ErrClosed) {
				return nil
			}
			return err
		}
		if err := r.writeBlock(b); err != nil {
			return err
		}
		r.observer.BlockWritten(b)
		r.buffers.Put(b.Payload)
		if r.stopped() {
			return nil
		}
	}
}

func (r *Run) writeBlock(b *Block) error {
	f, err := r.out.get()
	if err != nil {
		return ioError("open destination", b.Index, err)
	}
	defer r.out.put(f)

	if _, err := f.WriteAt(b.Bytes(), b.Offset); err != nil {
		return ioError("write", b.Index, err)
	}
	return nil
}
