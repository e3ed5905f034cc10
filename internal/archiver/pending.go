package archiver

import (
	"io"
	"sync"

	"github.com/TFMV/flashpack/internal/queue"
	"github.com/pkg/errors"
)

// pendingStore holds transformed blocks by index until the sequencer takes
// them. Blocks arrive in any order; Take hands them out in the order asked.
type pendingStore struct {
	mu      sync.Mutex
	cond    *sync.Cond
	blocks  map[int64]*Block
	total   int64 // -1 until the read stage knows the block count
	stored  int64
	aborted bool
}

func newPendingStore() *pendingStore {
	p := &pendingStore{blocks: make(map[int64]*Block), total: -1}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Put stores a transformed block. Each index may be stored once.
func (p *pendingStore) Put(b *Block) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.aborted {
		return queue.ErrAborted
	}
	if _, ok := p.blocks[b.Index]; ok {
		return errors.Errorf("block %d stored twice", b.Index)
	}
	p.blocks[b.Index] = b
	p.stored++
	p.cond.Broadcast()
	return nil
}

// Take removes and returns the block with the given index, waiting until it
// is stored. It returns io.EOF once index reaches the known block count.
func (p *pendingStore) Take(index int64) (*Block, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		if p.aborted {
			return nil, queue.ErrAborted
		}
		if b, ok := p.blocks[index]; ok {
			delete(p.blocks, index)
			return b, nil
		}
		if p.total >= 0 && index >= p.total {
			return nil, io.EOF
		}
		p.cond.Wait()
	}
}

// SetTotal records the final block count.
func (p *pendingStore) SetTotal(n int64) {
	p.mu.Lock()
	p.total = n
	p.mu.Unlock()
	p.cond.Broadcast()
}

// Abort wakes the sequencer and rejects further blocks.
func (p *pendingStore) Abort() {
	p.mu.Lock()
	p.aborted = true
	p.blocks = nil
	p.mu.Unlock()
	p.cond.Broadcast()
}

// Len returns the number of blocks waiting for the sequencer.
func (p *pendingStore) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.blocks)
}
