package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies where a run failed.
type Kind int

const (
	KindArgument Kind = iota + 1
	KindOpen
	KindShape
	KindCodecInit
	KindRead
	KindEncode
	KindSerialize
	KindWrite
)

// Sentinels matched by errors.Is against an *Error of the same Kind.
var (
	ErrArgument  = errors.New("argument error")
	ErrOpen      = errors.New("open error")
	ErrShape     = errors.New("shape error")
	ErrCodecInit = errors.New("codec init error")
	ErrRead      = errors.New("read error")
	ErrEncode    = errors.New("encode error")
	ErrSerialize = errors.New("serialize error")
	ErrWrite     = errors.New("write error")
)

func (k Kind) sentinel() error {
	switch k {
	case KindArgument:
		return ErrArgument
	case KindOpen:
		return ErrOpen
	case KindShape:
		return ErrShape
	case KindCodecInit:
		return ErrCodecInit
	case KindRead:
		return ErrRead
	case KindEncode:
		return ErrEncode
	case KindSerialize:
		return ErrSerialize
	case KindWrite:
		return ErrWrite
	}
	return nil
}

func (k Kind) String() string {
	if s := k.sentinel(); s != nil {
		return s.Error()
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the failure of one step of a run. Index is the slice being
// processed, or -1 when the step is not per slice.
type Error struct {
	Kind  Kind
	Index int
	Step  string
	Err   error
}

func (e *Error) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s: %s slice %d: %v", e.Kind, e.Step, e.Index, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Step, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of e's Kind.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

func runError(kind Kind, step string, err error) *Error {
	return &Error{Kind: kind, Index: -1, Step: step, Err: err}
}

func sliceError(kind Kind, i int, step string, err error) *Error {
	return &Error{Kind: kind, Index: i, Step: step, Err: err}
}

// ArgumentError reports bad invocation before any file is touched.
func ArgumentError(err error) error {
	return runError(KindArgument, "arguments", err)
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// SliceIndex returns the slice an error refers to, or -1.
func SliceIndex(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Index
	}
	return -1
}
