package inference

import (
	"fmt"

	"github.com/mcncl/schemagen/internal/errors"
)

// invariantViolation is the panic value used for broken engine invariants.
// Derive recovers it and reports an invariant AppError; any other panic is
// re-raised untouched.
type invariantViolation struct {
	msg string
}

func (v *invariantViolation) String() string { return v.msg }

func invariant(format string, args ...any) *invariantViolation {
	return &invariantViolation{msg: fmt.Sprintf(format, args...)}
}

func unsupported(format string, args ...any) error {
	return errors.NewUnsupportedError(fmt.Sprintf(format, args...))
}

// recoverInvariant turns an invariant panic into an error stored in *err.
func recoverInvariant(err *error) {
	r := recover()
	if r == nil {
		return
	}
	v, ok := r.(*invariantViolation)
	if !ok {
		panic(r)
	}
	*err = errors.NewInvariantError(v.msg)
}
