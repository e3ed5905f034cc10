// Package buffer provides reusable byte slices for block payloads.
package buffer

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// DefaultBufferSize matches the default block size.
const DefaultBufferSize = 1024 * 1024

// Metrics holds counters for a Pool.
type Metrics struct {
	Gets            uint64
	Puts            uint64
	NewAllocations  uint64
	Oversized       uint64 // Requests larger than the pool's buffer size
	RejectedBuffers uint64 // Buffers too small to be put back
	Size            int
	Name            string
}

// String provides a string representation of the pool metrics.
func (m Metrics) String() string {
	return fmt.Sprintf(
		"BufferPool '%s' Metrics:\n"+
			"  Gets:             %d\n"+
			"  Puts:             %d\n"+
			"  New Allocations:  %d\n"+
			"  Oversized:        %d\n"+
			"  Rejected Buffers: %d\n"+
			"  Size:             %d\n",
		m.Name, m.Gets, m.Puts, m.NewAllocations, m.Oversized, m.RejectedBuffers, m.Size,
	)
}

// Options configures a Pool.
type Options struct {
	BufferSize    int    // Capacity of pooled buffers
	MaxBufferSize int    // Largest capacity accepted back into the pool
	PoolName      string // Name for metrics and logging
}

// DefaultOptions returns the default pool options.
func DefaultOptions() Options {
	return Options{
		BufferSize:    DefaultBufferSize,
		MaxBufferSize: DefaultBufferSize * 2,
		PoolName:      "default",
	}
}

// Pool hands out byte slices of a fixed capacity, reducing allocations while
// blocks churn through the pipeline.
type Pool struct {
	pool    sync.Pool
	size    int
	maxSize int
	name    string

	gets            atomic.Uint64
	puts            atomic.Uint64
	newAllocations  atomic.Uint64
	oversized       atomic.Uint64
	rejectedBuffers atomic.Uint64
}

// NewPool creates a pool with the given options.
func NewPool(options Options) *Pool {
	if options.BufferSize <= 0 {
		options.BufferSize = DefaultBufferSize
	}
	if options.MaxBufferSize < options.BufferSize {
		options.MaxBufferSize = options.BufferSize * 2
	}

	p := &Pool{
		size:    options.BufferSize,
		maxSize: options.MaxBufferSize,
		name:    options.PoolName,
	}
	p.pool.New = func() interface{} {
		p.newAllocations.Add(1)
		buffer := make([]byte, p.size)
		return &buffer // Store pointer to avoid copying the slice header
	}
	return p
}

// Get returns a slice of length n. Requests up to the pool's buffer size are
// served from the pool; larger ones are allocated directly.
func (p *Pool) Get(n int) []byte {
	p.gets.Add(1)
	if n > p.size {
		p.oversized.Add(1)
		return make([]byte, n)
	}
	bufferPtr := p.pool.Get().(*[]byte)
	return (*bufferPtr)[:n]
}

// Put returns a buffer to the pool. The buffer must not be used afterwards.
func (p *Pool) Put(buffer []byte) {
	p.puts.Add(1)
	if cap(buffer) < p.size || cap(buffer) > p.maxSize {
		p.rejectedBuffers.Add(1)
		return // Let it be garbage collected
	}
	buffer = buffer[:p.size]
	p.pool.Put(&buffer)
}

// Size returns the capacity of pooled buffers.
func (p *Pool) Size() int {
	return p.size
}

// Metrics returns a snapshot of the pool's counters.
func (p *Pool) Metrics() Metrics {
	return Metrics{
		Gets:            p.gets.Load(),
		Puts:            p.puts.Load(),
		NewAllocations:  p.newAllocations.Load(),
		Oversized:       p.oversized.Load(),
		RejectedBuffers: p.rejectedBuffers.Load(),
		Size:            p.size,
		Name:            p.name,
	}
}
