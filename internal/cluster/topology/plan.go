package topology

import (
	"golang.org/x/exp/slices"
)

// ChangePlan is an ordered list of operations that move the cluster from one
// configuration to another. Operations run one at a time, head first.
type ChangePlan struct {
	pending   []ChangeOperation
	completed []ChangeOperation
}

// NewChangePlan creates a plan. Both slices are copied.
func NewChangePlan(pending, completed []ChangeOperation) ChangePlan {
	return ChangePlan{pending: cloneOperations(pending), completed: cloneOperations(completed)}
}

// Pending returns the operations that have not completed yet.
func (p ChangePlan) Pending() []ChangeOperation { return cloneOperations(p.pending) }

// Completed returns the operations that already completed, oldest first.
func (p ChangePlan) Completed() []ChangeOperation { return cloneOperations(p.completed) }

// Next returns the operation to execute next.
func (p ChangePlan) Next() (ChangeOperation, bool) {
	if len(p.pending) == 0 {
		return nil, false
	}
	return p.pending[0], true
}

// HasPending reports whether operations remain.
func (p ChangePlan) HasPending() bool { return len(p.pending) > 0 }

func (p ChangePlan) advance() ChangePlan {
	if len(p.pending) == 0 {
		return p
	}
	completed := append(cloneOperations(p.completed), p.pending[0])
	return ChangePlan{pending: cloneOperations(p.pending[1:]), completed: completed}
}

// Equal reports whether both plans hold the same operations in the same order.
func (p ChangePlan) Equal(o ChangePlan) bool {
	return operationsEqual(p.pending, o.pending) && operationsEqual(p.completed, o.completed)
}

func operationsEqual(a, b []ChangeOperation) bool {
	return slices.EqualFunc(a, b, OperationsEqual)
}

func cloneOperations(ops []ChangeOperation) []ChangeOperation {
	if len(ops) == 0 {
		return nil
	}
	return slices.Clone(ops)
}
