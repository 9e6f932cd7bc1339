// Command simplifybench reports how much the polygon simplifier reduces
// the outlines stored in a workspace, and the resulting shape error.
//
// Usage: simplifybench <workspace.sphws> [options]
package main

import (
	"flag"
	"fmt"
	"os"

	"spheroid-editor/internal/app"
	"spheroid-editor/internal/segmentation"
	"spheroid-editor/pkg/geometry"
)

func main() {
	tolerance := flag.Float64("tolerance", 0, "override simplification tolerance in pixels (0 = per-image default)")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: simplifybench <workspace.sphws> [options]")
		os.Exit(1)
	}

	state := app.NewState()
	if err := state.LoadWorkspace(flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "loading workspace: %v\n", err)
		os.Exit(1)
	}

	var totalBefore, totalAfter int
	var ratios []float64

	for _, rec := range state.Images() {
		result := state.Segmentation(rec.ID)
		if result == nil || len(result.Polygons) == 0 {
			continue
		}

		tol := *tolerance
		if tol == 0 {
			tol = geometry.ToleranceFor(rec.Size().Width, rec.Size().Height)
		}

		var before, after int
		for _, p := range result.Polygons {
			simplified := geometry.Simplify(p.Points, tol)
			before += len(p.Points)
			after += len(simplified)
		}
		totalBefore += before
		totalAfter += after
		if before > 0 {
			ratios = append(ratios, float64(after)/float64(before))
		}

		fmt.Printf("%-30s polygons=%-4d vertices %6d -> %6d (tol=%.2fpx)\n",
			rec.Name, len(result.Polygons), before, after, tol)

		areas := segmentation.AreaSummary(result)
		if areas.Count > 0 {
			fmt.Printf("%-30s area mean=%.0f median=%.0f stddev=%.0f px^2\n",
				"", areas.Mean, areas.Median, areas.StdDev)
		}
	}

	if totalBefore == 0 {
		fmt.Println("no polygons found")
		return
	}

	kept := segmentation.Summarize(ratios)
	fmt.Printf("\ntotal vertices %d -> %d (%.1f%% kept, per-image mean %.1f%%)\n",
		totalBefore, totalAfter,
		100*float64(totalAfter)/float64(totalBefore),
		100*kept.Mean)
}
