package archiver

import "sync"

// handlePool lends file handles to stage workers so that readers and writers
// never share a handle at the same time. Handles are opened on demand and
// kept until close.
type handlePool struct {
	open func() (file, error)
	sync bool

	mu     sync.Mutex
	idle   []file
	opened []file
}

func newHandlePool(open func() (file, error), syncOnClose bool) *handlePool {
	return &handlePool{open: open, sync: syncOnClose}
}

func (p *handlePool) get() (file, error) {
	p.mu.Lock()
	if n := len(p.idle); n > 0 {
		f := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return f, nil
	}
	p.mu.Unlock()

	f, err := p.open()
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.opened = append(p.opened, f)
	p.mu.Unlock()
	return f, nil
}

func (p *handlePool) put(f file) {
	p.mu.Lock()
	p.idle = append(p.idle, f)
	p.mu.Unlock()
}

// close flushes (for write pools) and closes every handle the pool opened,
// returning the first error.
func (p *handlePool) close() error {
	p.mu.Lock()
	opened := p.opened
	p.opened, p.idle = nil, nil
	p.mu.Unlock()

	var first error
	for _, f := range opened {
		if p.sync {
			if err := f.Sync(); err != nil && first == nil {
				first = err
			}
		}
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
