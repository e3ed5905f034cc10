package archiver

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/TFMV/flashpack/internal/buffer"
	"github.com/TFMV/flashpack/internal/codec"
	"github.com/TFMV/flashpack/internal/queue"
	"github.com/TFMV/flashpack/internal/scheduler"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// Result is the outcome of a finished run.
type Result struct {
	ID          string
	Status      Status
	Message     string
	Err         error // nil on Success, *FaultError on Fault, ErrInterrupted otherwise
	Mode        Mode
	Source      string
	Destination string
	Blocks      int64
	SourceBytes int64
	OutputBytes int64
	// Digest is an xxhash64 over the ordered per-block checksums of the
	// uncompressed data.
	Digest  uint64
	Elapsed time.Duration
}

// Run is one compression or decompression in progress. All stages run on a
// scheduler owned by the run; a control goroutine joins them in order and
// computes the Result.
type Run struct {
	id       string
	mode     Mode
	src, dst string
	opts     Options
	codec    codec.Codec
	fs       fileSystem
	logger   log.Logger
	observer Observer
	started  time.Time
	srcSize  int64

	sched   *scheduler.Scheduler
	source  blockSource
	raw     *queue.Queue[*Block]
	ready   *queue.Queue[*Block]
	pending *pendingStore
	buffers *buffer.Pool
	in, out *handlePool
	scan    file

	stop      atomic.Bool
	watchDone chan struct{}
	done      chan struct{}

	mu          sync.Mutex
	status      Status
	faults      []error
	blocks      int64
	outputBytes int64
	digest      uint64
	result      Result
}

// ID returns the identifier of the run.
func (r *Run) ID() string {
	return r.id
}

// Status returns the current state of the run.
func (r *Run) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Done is closed once every stage has joined and the Result is final.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Result blocks until the run has finished and returns its outcome.
func (r *Run) Result() Result {
	<-r.done
	return r.result
}

// Interrupt stops the run and waits for every stage to join. After natural
// completion it returns the result already computed.
func (r *Run) Interrupt() Result {
	r.interrupt()
	return r.Result()
}

func (r *Run) interrupt() {
	r.mu.Lock()
	changed := r.status == InProcess
	if changed {
		r.status = Interrupted
	}
	r.mu.Unlock()

	if changed {
		level.Info(r.logger).Log("msg", "interrupt requested")
		r.abort()
	}
}

// fault records err and stops the pipeline. The first terminal status wins:
// a fault after an interrupt is recorded but the run stays Interrupted.
func (r *Run) fault(err error) {
	r.mu.Lock()
	r.faults = append(r.faults, err)
	if r.status == InProcess {
		r.status = Fault
	}
	r.mu.Unlock()

	level.Error(r.logger).Log("msg", "stage fault", "kind", KindOf(err), "err", err)
	r.abort()
}

func (r *Run) abort() {
	r.stop.Store(true)
	r.raw.Abort()
	r.ready.Abort()
	r.pending.Abort()
}

func (r *Run) stopped() bool {
	return r.stop.Load()
}

// prepare creates the destination and the per-run structures. Nothing runs
// yet; an error here leaves no destination behind.
func (r *Run) prepare() error {
	out, err := r.fs.OpenFile(r.dst, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return ioError("create destination", -1, err)
	}
	if r.mode == Compress && r.srcSize > 0 {
		// Compressed output rarely exceeds the input; the file is cut to
		// its real length on success.
		if err := out.Truncate(r.srcSize); err != nil {
			out.Close()
			r.removeDestination()
			return ioError("pre-size destination", -1, err)
		}
	}
	if err := out.Close(); err != nil {
		r.removeDestination()
		return ioError("create destination", -1, err)
	}

	switch r.mode {
	case Compress:
		r.source = newFixedSource(r.srcSize, r.opts.BlockSize)
	case Decompress:
		scan, err := r.fs.Open(r.src)
		if err != nil {
			r.removeDestination()
			return ioError("open source", -1, err)
		}
		r.scan = scan
		r.source = newFrameSource(scan, r.srcSize, r.codec)
	}

	r.raw = queue.New(r.opts.BufferSize, blockSize)
	r.ready = queue.New[*Block](0, blockSize)
	r.pending = newPendingStore()
	r.in = newHandlePool(func() (file, error) { return r.fs.Open(r.src) }, false)
	r.out = newHandlePool(func() (file, error) { return r.fs.OpenFile(r.dst, os.O_WRONLY, 0) }, true)
	return nil
}

func (r *Run) start(ctx context.Context) {
	r.mu.Lock()
	r.status = InProcess
	r.mu.Unlock()

	level.Debug(r.logger).Log("msg", "run started", "src", r.src, "dst", r.dst, "codec", r.codec.Name(),
		"block_size", r.opts.BlockSize, "buffer_size", r.opts.BufferSize,
		"readers", r.opts.Readers, "workers", r.opts.Workers, "writers", r.opts.Writers)

	// One slot per stage worker, the sequencer, and the context watcher.
	r.sched = scheduler.New(r.opts.Readers+r.opts.Workers+r.opts.Writers+2, r.logger)

	readers := r.launch("read", r.opts.Readers, r.read)
	transformers := r.launch("transform", r.opts.Workers, r.transform)
	sequencer := r.launch("sequence", 1, r.sequence)
	writers := r.launch("write", r.opts.Writers, r.write)
	if err := r.sched.Schedule(r.watch(ctx)); err != nil {
		r.fault(err)
	}

	go r.control(readers, transformers, sequencer, writers)
}

func (r *Run) launch(stage string, n int, fn func() error) *scheduler.Group {
	g := r.sched.NewGroup()
	for i := 0; i < n; i++ {
		if err := g.Go(r.guard(stage, i, fn)); err != nil {
			r.fault(err)
		}
	}
	return g
}

// guard runs one stage worker, turning its error or panic into a run fault.
// Errors caused by the pipeline being aborted are not faults.
func (r *Run) guard(stage string, worker int, fn func() error) func() error {
	return func() (err error) {
		logger := log.With(r.logger, "stage", stage, "worker", worker)
		level.Debug(logger).Log("msg", "worker started")
		defer func() {
			if p := recover(); p != nil {
				err = errors.Errorf("%s worker panicked: %v", stage, p)
			}
			if err != nil && !errors.Is(err, queue.ErrAborted) {
				r.fault(err)
			}
			level.Debug(logger).Log("msg", "worker stopped")
		}()
		return fn()
	}
}

func (r *Run) watch(ctx context.Context) func() {
	return func() {
		select {
		case <-ctx.Done():
			level.Info(r.logger).Log("msg", "context done", "err", ctx.Err())
			r.interrupt()
		case <-r.watchDone:
		}
	}
}

// control joins the stages in pipeline order. Once the readers are done the
// block count is final and the end of stream marker is queued; once the
// sequencer is done nothing more will reach the writers.
func (r *Run) control(readers, transformers, sequencer, writers *scheduler.Group) {
	readers.Wait()
	if !r.stopped() {
		r.pending.SetTotal(r.source.total())
		if err := r.raw.Put(endOfStream, 0); err != nil && !errors.Is(err, queue.ErrAborted) {
			r.fault(err)
		}
	}

	sequencer.Wait()
	r.ready.Close()
	transformers.Wait()
	writers.Wait()

	close(r.watchDone)
	r.sched.Close()
	r.finish()
}

func (r *Run) finish() {
	if !r.Status().Terminal() {
		if err := r.truncate(); err != nil {
			r.fault(err)
		}
	}
	if err := r.out.close(); err != nil {
		r.fault(ioError("flush destination", -1, err))
	}
	if err := r.in.close(); err != nil {
		level.Warn(r.logger).Log("msg", "close source", "err", err)
	}
	if r.scan != nil {
		if err := r.scan.Close(); err != nil {
			level.Warn(r.logger).Log("msg", "close source", "err", err)
		}
	}

	r.mu.Lock()
	if !r.status.Terminal() {
		r.status = Success
	}
	status := r.status
	r.mu.Unlock()

	if status != Success {
		r.removeDestination()
	}

	r.result = r.buildResult(status)
	level.Debug(r.logger).Log("msg", "buffer pool", "metrics", r.buffers.Metrics().String())
	level.Info(r.logger).Log("msg", "run finished", "status", status.String(), "blocks", r.result.Blocks,
		"in", r.result.SourceBytes, "out", r.result.OutputBytes, "elapsed", r.result.Elapsed)
	close(r.done)
}

func (r *Run) truncate() error {
	r.mu.Lock()
	size := r.outputBytes
	r.mu.Unlock()

	f, err := r.out.get()
	if err != nil {
		return ioError("open destination", -1, err)
	}
	defer r.out.put(f)
	if err := f.Truncate(size); err != nil {
		return ioError("truncate destination", -1, err)
	}
	return nil
}

// removeDestination deletes a partial output. Failures are logged only.
func (r *Run) removeDestination() {
	if err := r.fs.Remove(r.dst); err != nil && !os.IsNotExist(err) {
		level.Warn(r.logger).Log("msg", "remove partial output", "path", r.dst, "err", err)
	}
}

func (r *Run) buildResult(status Status) Result {
	res := Result{
		ID:          r.id,
		Status:      status,
		Mode:        r.mode,
		Source:      r.src,
		Destination: r.dst,
		SourceBytes: r.srcSize,
		Elapsed:     time.Since(r.started),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	switch status {
	case Success:
		res.Blocks = r.blocks
		res.OutputBytes = r.outputBytes
		res.Digest = r.digest
		res.Message = fmt.Sprintf("%s: %d blocks, %d -> %d bytes", r.mode, r.blocks, r.srcSize, r.outputBytes)
	case Fault:
		err := &FaultError{Errs: append([]error(nil), r.faults...)}
		res.Err = err
		res.Message = err.Error()
	case Interrupted:
		res.Err = ErrInterrupted
		res.Message = ErrInterrupted.Error()
	}
	return res
}
