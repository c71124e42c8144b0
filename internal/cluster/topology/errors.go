package topology

import (
	"fmt"

	zerrors "github.com/yevgenykuz/zeebe/pkg/errors"
)

// IllegalTransitionError reports a lifecycle transition requested from a state
// that is not a valid predecessor of the target state.
type IllegalTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal %s transition from %s to %s", e.Entity, e.From, e.To)
}

func (e *IllegalTransitionError) Unwrap() error {
	return zerrors.ErrIllegalTransition
}

// VersionConflictError reports two snapshots that share a version but differ in
// content.
type VersionConflictError struct {
	Version uint64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("topologies with version %d differ", e.Version)
}

func (e *VersionConflictError) Unwrap() error {
	return zerrors.ErrVersionConflict
}

func missingNode(id NodeID) error {
	return fmt.Errorf("node %s is not part of the topology: %w", id, zerrors.ErrIllegalTransition)
}

func missingPartition(id PartitionID) error {
	return fmt.Errorf("partition %d is not hosted by the node: %w", id, zerrors.ErrIllegalTransition)
}
