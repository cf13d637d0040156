package result

// A small closed result type for per-frame operations. A frame either
// produces a value, is bypassed (stats not ready, try next frame), or
// fails with a parameter / config error.

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindParam Kind = iota + 1
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindParam:
		return "param"
	case KindConfig:
		return "config"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	ErrBypass = errors.New("bypass")
	ErrParam  = errors.New("param error")
	ErrConfig = errors.New("config error")
)

// Error carries a Kind, so callers can errors.Is against ErrParam / ErrConfig.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrParam:
		return e.Kind == KindParam
	case ErrConfig:
		return e.Kind == KindConfig
	}
	return false
}

func Paramf(op, format string, args ...interface{}) error {
	return &Error{Kind: KindParam, Op: op, Err: fmt.Errorf(format, args...)}
}

func Configf(op, format string, args ...interface{}) error {
	return &Error{Kind: KindConfig, Op: op, Err: fmt.Errorf(format, args...)}
}

// {{{ Result

type Status int

const (
	StatusOk Status = iota
	StatusBypass
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOk:
		return "ok"
	case StatusBypass:
		return "bypass"
	case StatusError:
		return "error"
	default:
		return "?"
	}
}

type Result[T any] struct {
	Value  T
	Status Status
	Err    error // nil when ok; wraps ErrBypass when bypassed
}

func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v, Status: StatusOk}
}

func Bypass[T any](reason string) Result[T] {
	return Result[T]{Status: StatusBypass, Err: fmt.Errorf("%s: %w", reason, ErrBypass)}
}

func Fail[T any](err error) Result[T] {
	return Result[T]{Status: StatusError, Err: err}
}

func (r Result[T]) IsOk() bool     { return r.Status == StatusOk }
func (r Result[T]) IsBypass() bool { return r.Status == StatusBypass }

// Unwrap returns the value, or the error (bypasses included).
func (r Result[T]) Unwrap() (T, error) {
	return r.Value, r.Err
}

// }}}
