package topology

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/samber/lo"
)

// Describe writes a human readable table of t: one row per hosted partition
// followed by the change plan, if any.
func (t Topology) Describe(w io.Writer) error {
	fmt.Fprintf(w, "version: %d\n", t.version)
	if !t.IsInitialized() {
		_, err := fmt.Fprintln(w, "uninitialized")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NODE\tSTATE\tPARTITION\tREPLICA\tPRIORITY\tEXPORTERS")
	for _, id := range t.NodeIDs() {
		node := t.nodes[id]
		pids := node.PartitionIDs()
		if len(pids) == 0 {
			fmt.Fprintf(tw, "%s\t%s\t-\t-\t-\t-\n", id, node.Lifecycle())
			continue
		}
		for _, pid := range pids {
			p, _ := node.Partition(pid)
			exporters := lo.Map(p.Config().ExporterNames(), func(name string, _ int) string {
				s, _ := p.Config().Exporter(name)
				return name + "=" + s.String()
			})
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\t%s\n", id, node.Lifecycle(), pid, p.Lifecycle(), p.Priority(),
				lo.Ternary(len(exporters) == 0, "-", strings.Join(exporters, ",")))
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	plan, ok := t.ChangePlan()
	if !ok {
		return nil
	}
	fmt.Fprintln(w, "change plan:")
	for _, op := range plan.Completed() {
		fmt.Fprintf(w, "  done     %s\n", op)
	}
	for _, op := range plan.Pending() {
		fmt.Fprintf(w, "  pending  %s\n", op)
	}
	return nil
}
