package archiver

import (
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func compressibleData(n int) []byte {
	var buf bytes.Buffer
	for i := 0; buf.Len() < n; i++ {
		fmt.Fprintf(&buf, "record %08d: the quick brown fox jumps over the lazy dog\n", i)
	}
	return buf.Bytes()[:n]
}

func randomData(n int, seed int64) []byte {
	data := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(data)
	return data
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

type blockRecord struct {
	Index  int64
	Size   int64
	Offset int64
}

// recorder captures what every stage saw. An optional delay slows the
// transform stage down.
type recorder struct {
	mu          sync.Mutex
	read        []blockRecord
	transformed map[int64]int
	sequenced   []blockRecord
	written     map[int64]int
	maxQueued   int64

	delay   time.Duration
	once    sync.Once
	started chan struct{}
}

func newRecorder(delay time.Duration) *recorder {
	return &recorder{
		transformed: make(map[int64]int),
		written:     make(map[int64]int),
		delay:       delay,
		started:     make(chan struct{}),
	}
}

func (r *recorder) BlockRead(b *Block, queued int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.read = append(r.read, blockRecord{Index: b.Index, Size: b.Size, Offset: b.Offset})
	if queued > r.maxQueued {
		r.maxQueued = queued
	}
}

func (r *recorder) BlockTransformed(b *Block) {
	r.once.Do(func() { close(r.started) })
	r.mu.Lock()
	r.transformed[b.Index]++
	r.mu.Unlock()
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
}

func (r *recorder) BlockSequenced(b *Block) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sequenced = append(r.sequenced, blockRecord{Index: b.Index, Size: b.Size, Offset: b.Offset})
}

func (r *recorder) BlockWritten(b *Block) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.written[b.Index]++
}
