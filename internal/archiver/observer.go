package archiver

// Observer receives a callback as each block passes a stage. Callbacks run
// on the stage's worker and may be concurrent, except BlockSequenced which
// is always called in index order from a single goroutine. Implementations
// must not retain or modify the block's payload.
type Observer interface {
	// BlockRead is called once a raw block is queued; queuedBytes is the
	// size of the raw-block queue right after.
	BlockRead(b *Block, queuedBytes int64)
	BlockTransformed(b *Block)
	BlockSequenced(b *Block)
	BlockWritten(b *Block)
}

// NopObserver ignores every callback. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) BlockRead(*Block, int64) {}
func (NopObserver) BlockTransformed(*Block) {}
func (NopObserver) BlockSequenced(*Block) {}
func (NopObserver) BlockWritten(*Block) {}
