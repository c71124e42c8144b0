package topology

import (
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
)

// NodeID identifies a cluster member. It is stable across restarts.
type NodeID string

// PartitionID identifies a partition. Valid ids are contiguous, starting at 1.
type PartitionID int32

// MaxPartitions is the highest partition id a cluster may host.
const MaxPartitions PartitionID = 8192

// CompareNodeIDs orders node ids naturally: numeric ids compare by value and
// sort before non-numeric ones, everything else compares lexically.
func CompareNodeIDs(a, b NodeID) int {
	an, aerr := strconv.ParseUint(string(a), 10, 64)
	bn, berr := strconv.ParseUint(string(b), 10, 64)

	switch {
	case aerr == nil && berr == nil:
		if an < bn {
			return -1
		}
		if an > bn {
			return 1
		}
	case aerr == nil:
		return -1
	case berr == nil:
		return 1
	}
	return strings.Compare(string(a), string(b))
}

// SortNodeIDs sorts ids in place using CompareNodeIDs.
func SortNodeIDs(ids []NodeID) {
	slices.SortFunc(ids, CompareNodeIDs)
}

// SortedNodeIDs returns a sorted copy of ids.
func SortedNodeIDs(ids []NodeID) []NodeID {
	sorted := slices.Clone(ids)
	SortNodeIDs(sorted)
	return sorted
}
