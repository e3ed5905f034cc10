package archiver

import (
	"io"
	"os"
)

// file is the subset of *os.File the pipeline uses.
type file interface {
	io.ReaderAt
	io.WriterAt
	io.Closer
	Sync() error
	Truncate(size int64) error
}

// fileSystem is the seam between the pipeline and the operating system.
type fileSystem interface {
	Stat(name string) (os.FileInfo, error)
	Open(name string) (file, error)
	OpenFile(name string, flag int, perm os.FileMode) (file, error)
	Remove(name string) error
}

type osFS struct{}

func (osFS) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

func (osFS) Open(name string) (file, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (osFS) OpenFile(name string, flag int, perm os.FileMode) (file, error) {
	f, err := os.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (osFS) Remove(name string) error {
	return os.Remove(name)
}
