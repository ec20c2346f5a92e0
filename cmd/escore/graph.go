package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"escore/pkg/driver"
	"escore/pkg/modules"
)

// linkRecorder keeps the components the linker closes, in order.
type linkRecorder struct {
	instantiated [][]string
	evaluated    [][]string
}

func identities(component []modules.Module) []string {
	out := make([]string, len(component))
	for i, m := range component {
		out[i] = m.Identity()
	}
	return out
}

func (r *linkRecorder) ComponentInstantiated(c []modules.Module) {
	r.instantiated = append(r.instantiated, identities(c))
}

func (r *linkRecorder) ComponentEvaluated(c []modules.Module) {
	r.evaluated = append(r.evaluated, identities(c))
}

func newGraphCommand(ctx context.Context, o *options, stdout, stderr io.Writer) *cobra.Command {
	var linkOnly bool
	cmd := &cobra.Command{
		Use:   "graph <entry>",
		Short: "Print the link and evaluation order of a module graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec := &linkRecorder{}
			e, err := o.newEngine(nil, stderr, driver.WithLinkObserver(rec))
			if err != nil {
				return err
			}
			err = link(ctx, e.Loader(), specifierFor(args[0]), linkOnly)
			drawGraph(stdout, rec, e.Loader())
			if err != nil {
				return runError{err}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&linkOnly, "link-only", false, "instantiate without evaluating")
	return cmd
}

func link(ctx context.Context, loader *modules.Loader, specifier string, linkOnly bool) error {
	if err := loader.Prefetch(ctx, specifier); err != nil {
		return err
	}
	if !linkOnly {
		_, err := loader.Import(ctx, specifier)
		return err
	}
	identity, err := loader.NormalizeName(specifier, "")
	if err != nil {
		return err
	}
	m, err := loader.Resolve(identity)
	if err != nil {
		return err
	}
	return loader.Linker().Instantiate(m)
}

func drawGraph(w io.Writer, rec *linkRecorder, loader *modules.Loader) {
	graph := loader.Graph()
	section := func(title string, components [][]string) {
		fmt.Fprintf(w, "%s:\n", title)
		for i, c := range components {
			fmt.Fprintf(w, "  %d  %s\n", i+1, strings.Join(c, ", "))
		}
	}
	section("instantiated", rec.instantiated)
	if len(rec.evaluated) > 0 {
		section("evaluated", rec.evaluated)
	}

	if order, err := graph.TopologicalOrder(); err == nil {
		fmt.Fprintf(w, "order: %s\n", strings.Join(order, " -> "))
	}
	if cycles := graph.Cycles(); len(cycles) > 0 {
		fmt.Fprintf(w, "cycles: %s\n", strings.Join(cycles, ", "))
	}
	for _, status := range []modules.Status{modules.Uninstantiated, modules.Instantiated, modules.Evaluated} {
		if ids := loader.ModulesByStatus(status); len(ids) > 0 {
			fmt.Fprintf(w, "status %s: %s\n", status, strings.Join(ids, ", "))
		}
	}
	stats := graph.GetStats()
	fmt.Fprintf(w, "modules: %d, imports: %d\n", stats.TotalModules, stats.TotalDependencies)
}
