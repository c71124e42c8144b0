package changes

import (
	"fmt"

	"github.com/yevgenykuz/zeebe/internal/cluster/topology"
	zerrors "github.com/yevgenykuz/zeebe/pkg/errors"
)

// ValidationError reports an operation that cannot be applied to the current
// topology.
type ValidationError struct {
	Op     topology.ChangeOperation
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid operation %s: %s", e.Op, e.Reason)
}

func (e *ValidationError) Unwrap() error { return zerrors.ErrValidation }

// ExecutionError reports a failed executor call.
type ExecutionError struct {
	Op  topology.ChangeOperation
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("failed to execute %s: %v", e.Op, e.Err)
}

func (e *ExecutionError) Unwrap() []error { return []error{zerrors.ErrExecution, e.Err} }

func invalid(op topology.ChangeOperation, format string, args ...any) error {
	return &ValidationError{Op: op, Reason: fmt.Sprintf(format, args...)}
}
