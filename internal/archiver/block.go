package archiver

// UnknownOffset marks a block whose output offset has not been assigned yet.
const UnknownOffset int64 = -1

// Block is one chunk of the file moving through the pipeline. A block is
// owned by exactly one stage at a time; ownership passes with the queue or
// store it is published to.
type Block struct {
	// Index is the ordinal position of the block in the file. The end of
	// stream marker has a negative index.
	Index int64
	// Capacity is the nominal block size the block was read with.
	Capacity int64
	// Payload holds at least Size bytes; only the first Size are valid.
	Payload []byte
	// Size is the number of valid bytes in Payload.
	Size int64
	// Offset is the position of the block in the destination, assigned by
	// the sequencer. UnknownOffset until then.
	Offset int64
	// Checksum is the xxhash64 of the block's uncompressed bytes.
	Checksum uint64
}

// endOfStream tells transform workers that no more raw blocks will arrive.
var endOfStream = &Block{Index: -1, Offset: UnknownOffset}

// Bytes returns the valid part of the payload.
func (b *Block) Bytes() []byte {
	return b.Payload[:b.Size]
}

// EndOfStream reports whether b is the end of stream marker.
func (b *Block) EndOfStream() bool {
	return b.Index < 0
}

func blockSize(b *Block) int64 {
	return b.Size
}
