package archiver

import (
	"bytes"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/TFMV/flashpack/internal/codec"
	"github.com/TFMV/flashpack/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingStoreOrdersOutOfOrderPuts(t *testing.T) {
	p := newPendingStore()
	order := []int64{3, 0, 4, 1, 2}

	go func() {
		for _, i := range order {
			time.Sleep(time.Millisecond)
			_ = p.Put(&Block{Index: i, Size: i})
		}
		p.SetTotal(int64(len(order)))
	}()

	for i := int64(0); i < int64(len(order)); i++ {
		b, err := p.Take(i)
		require.NoError(t, err)
		assert.Equal(t, i, b.Index)
	}
	_, err := p.Take(int64(len(order)))
	assert.ErrorIs(t, err, io.EOF)
	assert.Zero(t, p.Len())
}

func TestPendingStoreRejectsDuplicates(t *testing.T) {
	p := newPendingStore()
	require.NoError(t, p.Put(&Block{Index: 1}))
	assert.Error(t, p.Put(&Block{Index: 1}))
}

func TestPendingStoreAbortWakesTake(t *testing.T) {
	p := newPendingStore()
	var wg sync.WaitGroup
	wg.Add(1)
	var err error
	go func() {
		defer wg.Done()
		_, err = p.Take(0)
	}()

	time.Sleep(10 * time.Millisecond)
	p.Abort()
	wg.Wait()
	assert.ErrorIs(t, err, queue.ErrAborted)
	assert.ErrorIs(t, p.Put(&Block{Index: 0}), queue.ErrAborted)
}

func TestFixedSource(t *testing.T) {
	s := newFixedSource(10*100+7, 100)
	var got []extent
	for {
		e, err := s.next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, e)
	}
	require.Len(t, got, 11)
	assert.Equal(t, int64(11), s.total())
	for i, e := range got {
		assert.Equal(t, int64(i), e.index)
		assert.Equal(t, int64(i*100), e.offset)
	}
	assert.Equal(t, int64(7), got[10].length)

	assert.Zero(t, newFixedSource(0, 100).total())
}

func TestFixedSourceConcurrentClaims(t *testing.T) {
	s := newFixedSource(1000*64, 64)
	var mu sync.Mutex
	seen := make(map[int64]bool)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				e, err := s.next()
				if err != nil {
					return
				}
				mu.Lock()
				assert.False(t, seen[e.index], "index %d claimed twice", e.index)
				seen[e.index] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 1000)
}

func TestFrameSource(t *testing.T) {
	c, err := codec.New("zstd", codec.Default)
	require.NoError(t, err)

	var stream []byte
	var lengths []int64
	for i := 0; i < 5; i++ {
		before := len(stream)
		stream, err = c.Encode(stream, compressibleData(1000*(i+1)))
		require.NoError(t, err)
		lengths = append(lengths, int64(len(stream)-before))
	}

	s := newFrameSource(bytes.NewReader(stream), int64(len(stream)), c)
	var offset int64
	for i := range lengths {
		e, err := s.next()
		require.NoError(t, err)
		assert.Equal(t, int64(i), e.index)
		assert.Equal(t, offset, e.offset)
		assert.Equal(t, lengths[i], e.length)
		offset += e.length
	}
	_, err = s.next()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, int64(5), s.total())

	bad := newFrameSource(bytes.NewReader([]byte("not a frame at all")), 18, c)
	_, err = bad.next()
	assert.Equal(t, TransformFailure, KindOf(err))
	// The error sticks.
	_, err = bad.next()
	assert.Error(t, err)
}
