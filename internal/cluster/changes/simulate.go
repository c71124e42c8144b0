package changes

import (
	"context"

	"github.com/yevgenykuz/zeebe/internal/cluster/topology"
)

// Simulate runs ops against current with a NoopExecutor and returns the
// resulting topology. It fails with the first operation that does not
// validate, so a plan accepted here is valid as a whole when it is submitted.
func Simulate(current topology.Topology, ops []topology.ChangeOperation) (topology.Topology, error) {
	topo, err := current.StartChangePlan(ops)
	if err != nil {
		return current, err
	}
	ctx := context.Background()
	for _, op := range ops {
		applier, err := New(op, NoopExecutor{})
		if err != nil {
			return current, err
		}
		intent, err := applier.Init(topo)
		if err != nil {
			return current, err
		}
		if topo, err = topo.ApplyTransform(intent); err != nil {
			return current, err
		}
		finish, err := applier.Apply(ctx).Await(ctx)
		if err != nil {
			return current, err
		}
		if topo, err = topo.AdvanceChangePlan(finish); err != nil {
			return current, err
		}
	}
	return topo, nil
}
