package api

import "errors"

// ErrBadRequest marks request decoding and parameter errors raised by the
// handlers themselves. Service errors keep their own sentinels.
var ErrBadRequest = errors.New("bad request")

// Error records the handler operation, the error kind and the cause.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil:
		return e.Err.Error()
	case e.Kind != nil:
		return e.Kind.Error()
	default:
		return e.Op
	}
}

// Unwrap exposes both kind and cause to errors.Is.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// NewKind returns an error of kind with no further cause.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// Wrap annotates err with op, keeping its kind (if any) discoverable.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// WrapKind annotates err with op and kind.
func WrapKind(op string, kind, err error) error {
	if err == nil {
		return NewKind(op, kind)
	}
	return &Error{Op: op, Kind: kind, Err: err}
}
