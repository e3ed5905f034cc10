package archiver

import (
	"encoding/binary"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

// sequence takes transformed blocks strictly in index order, gives each the
// running output offset, and hands it to the write stage. It is the only
// goroutine that assigns offsets; each step is O(1).
func (r *Run) sequence() error {
	digest := xxhash.New()
	var sum [8]byte
	var index, offset int64

	for !r.stopped() {
		b, err := r.pending.Take(index)
		if errors.Is(err, io.EOF) {
			r.mu.Lock()
			r.blocks = index
			r.outputBytes = offset
			r.digest = digest.Sum64()
			r.mu.Unlock()
			return nil
		}
		if err != nil {
			return err
		}

		b.Offset = offset
		offset += b.Size
		binary.LittleEndian.PutUint64(sum[:], b.Checksum)
		_, _ = digest.Write(sum[:])

		r.observer.BlockSequenced(b)
		if err := r.ready.Put(b, 0); err != nil {
			return err
		}
		index++
	}
	return nil
}
