// Package errors defines sentinel errors used across the cluster configuration core.
package errors

import "errors"

// Sentinel errors for change operations.
var (
	// ErrValidation indicates an operation's preconditions do not hold against the
	// current topology. No state was changed.
	ErrValidation = errors.New("operation validation failed")

	// ErrExecution indicates the partition executor failed to apply an operation.
	// The change plan halts in place and can be retried.
	ErrExecution = errors.New("operation execution failed")

	// ErrOperationTimeout indicates an operation did not complete within the
	// configured operation timeout.
	ErrOperationTimeout = errors.New("operation timed out")

	// ErrIllegalTransition indicates a lifecycle transition from a state that is not
	// its unique predecessor. This is a programming error or a corrupted topology.
	ErrIllegalTransition = errors.New("illegal lifecycle transition")
)

// Sentinel errors for change plans.
var (
	// ErrEmptyChangePlan indicates a change plan was started without operations.
	ErrEmptyChangePlan = errors.New("change plan has no operations")

	// ErrChangePlanInProgress indicates another change plan is still active.
	ErrChangePlanInProgress = errors.New("another change plan is in progress")

	// ErrNoChangePlan indicates there is no active change plan.
	ErrNoChangePlan = errors.New("no change plan in progress")
)

// Sentinel errors for topology exchange.
var (
	// ErrMalformed indicates bytes that do not decode to a valid message.
	ErrMalformed = errors.New("malformed message")

	// ErrVersionConflict indicates two snapshots with equal versions but different
	// content.
	ErrVersionConflict = errors.New("conflicting topologies with equal version")
)

// Sentinel errors for the node runtime.
var (
	// ErrClusterFailed indicates the configuration manager stopped after an
	// illegal transition and no longer applies operations.
	ErrClusterFailed = errors.New("cluster configuration manager failed")

	// ErrNotStarted indicates the configuration manager has not been started.
	ErrNotStarted = errors.New("cluster configuration manager not started")

	// ErrClosed indicates the resource has been closed.
	ErrClosed = errors.New("resource is closed")
)
