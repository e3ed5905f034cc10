package archiver

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrInterrupted is the error of a run stopped by Interrupt or by
// cancellation of its context.
var ErrInterrupted = errors.New("archiver: interrupted by user")

// Kind classifies a failure.
type Kind int

const (
	Unknown Kind = iota
	// IOFailure: source unreadable, destination unwritable, disk full.
	IOFailure
	// TransformFailure: corrupt input to decompression or a codec error.
	TransformFailure
	// ValidationFailure: bad options or paths, reported before launch.
	ValidationFailure
	// InterruptedByUser: the run was interrupted. No *Error carries it;
	// KindOf reports it for ErrInterrupted.
	InterruptedByUser
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case IOFailure:
		return "io failure"
	case TransformFailure:
		return "transform failure"
	case ValidationFailure:
		return "validation failure"
	case InterruptedByUser:
		return "interrupted by user"
	default:
		return "unknown"
	}
}

// Error is a failure of one operation, optionally tied to a block.
type Error struct {
	Kind  Kind
	Op    string
	Index int64 // -1 when no block is involved
	Err   error
}

func (e *Error) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s block %d: %v", e.Op, e.Index, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func ioError(op string, index int64, err error) error {
	return &Error{Kind: IOFailure, Op: op, Index: index, Err: err}
}

func transformError(op string, index int64, err error) error {
	return &Error{Kind: TransformFailure, Op: op, Index: index, Err: err}
}

func validationError(op string, err error) error {
	return &Error{Kind: ValidationFailure, Op: op, Index: -1, Err: err}
}

// KindOf returns the kind of the first *Error found in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return Unknown
	}
	if errors.Is(err, ErrInterrupted) {
		return InterruptedByUser
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// FaultError aggregates every fault recorded during a run.
type FaultError struct {
	Errs []error
}

func (e *FaultError) Error() string {
	if len(e.Errs) == 1 {
		return e.Errs[0].Error()
	}
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d faults: %s", len(e.Errs), strings.Join(msgs, "; "))
}

func (e *FaultError) Unwrap() []error {
	return e.Errs
}
