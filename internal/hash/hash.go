// Package hash computes whole-file digests used to verify that a restored
// file matches its original.
package hash

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/TFMV/flashpack/internal/buffer"
	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"github.com/zeebo/blake3"
	"golang.org/x/sync/errgroup"
)

// Algorithm represents a supported hash algorithm.
type Algorithm int

const (
	// BLAKE3 is the default algorithm (fast and secure).
	BLAKE3 Algorithm = iota
	// XXH64 is the fastest option; not cryptographic.
	XXH64
	// SHA256 is a secure but slower algorithm.
	SHA256
	// UndefinedAlgorithm is used for error handling.
	UndefinedAlgorithm
)

// String returns the algorithm name.
func (a Algorithm) String() string {
	switch a {
	case BLAKE3:
		return "BLAKE3"
	case XXH64:
		return "XXH64"
	case SHA256:
		return "SHA256"
	default:
		return "Undefined"
	}
}

// ParseAlgorithm parses an algorithm name, case-insensitively.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(s) {
	case "", "blake3":
		return BLAKE3, nil
	case "xxh64", "xxhash":
		return XXH64, nil
	case "sha256":
		return SHA256, nil
	default:
		return UndefinedAlgorithm, errors.Errorf("unsupported hash algorithm: %q", s)
	}
}

// Options configures the hashing behavior.
type Options struct {
	// Algorithm to use for hashing.
	Algorithm Algorithm
	// BufferSize is the size of the buffer used for reading files.
	BufferSize int
	// Concurrency is the number of files hashed at once. A value of 0 or
	// less uses the number of available CPUs.
	Concurrency int
}

// DefaultOptions returns the default hashing options.
func DefaultOptions() Options {
	return Options{
		Algorithm:   BLAKE3,
		BufferSize:  4 * 1024 * 1024,
		Concurrency: 0,
	}
}

// Result represents the result of a hashing operation.
type Result struct {
	Path      string
	Hash      string // hex-encoded
	Algorithm Algorithm
	Size      int64
}

// Read buffers are pooled per buffer size.
var (
	poolsMu sync.Mutex
	pools   = map[int]*buffer.Pool{}
)

func poolFor(size int) *buffer.Pool {
	poolsMu.Lock()
	defer poolsMu.Unlock()
	p, ok := pools[size]
	if !ok {
		p = buffer.NewPool(buffer.Options{BufferSize: size, PoolName: "hash"})
		pools[size] = p
	}
	return p
}

func newHasher(algorithm Algorithm) (hash.Hash, error) {
	switch algorithm {
	case BLAKE3:
		return blake3.New(), nil
	case XXH64:
		return xxhash.New(), nil
	case SHA256:
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s", algorithm)
	}
}

// File computes the digest of the file at path.
func File(path string, opts Options) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	res, err := reader(f, opts)
	if err != nil {
		return Result{}, errors.Wrapf(err, "hash %s", path)
	}
	res.Path = path
	return res, nil
}

// Reader computes the digest of everything read from r.
func Reader(r io.Reader, opts Options) (Result, error) {
	return reader(r, opts)
}

func reader(r io.Reader, opts Options) (Result, error) {
	hasher, err := newHasher(opts.Algorithm)
	if err != nil {
		return Result{}, err
	}

	size := opts.BufferSize
	if size <= 0 {
		size = DefaultOptions().BufferSize
	}
	pool := poolFor(size)
	buf := pool.Get(size)
	defer pool.Put(buf)

	n, err := io.CopyBuffer(hasher, r, buf)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Hash:      hex.EncodeToString(hasher.Sum(nil)),
		Algorithm: opts.Algorithm,
		Size:      n,
	}, nil
}

// Bytes computes the digest of a byte slice.
func Bytes(data []byte, algorithm Algorithm) (Result, error) {
	hasher, err := newHasher(algorithm)
	if err != nil {
		return Result{}, err
	}
	_, _ = hasher.Write(data)
	return Result{
		Hash:      hex.EncodeToString(hasher.Sum(nil)),
		Algorithm: algorithm,
		Size:      int64(len(data)),
	}, nil
}

// Files hashes paths concurrently and returns results in the same order. The
// first error cancels the remaining work.
func Files(ctx context.Context, paths []string, opts Options) ([]Result, error) {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}

	results := make([]Result, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := File(path, opts)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Compare reports whether the files at a and b have the same size and
// digest. Both files are hashed at the same time.
func Compare(ctx context.Context, a, b string, opts Options) (bool, [2]Result, error) {
	var pair [2]Result
	results, err := Files(ctx, []string{a, b}, opts)
	if err != nil {
		return false, pair, err
	}
	copy(pair[:], results)
	return pair[0].Size == pair[1].Size && pair[0].Hash == pair[1].Hash, pair, nil
}
