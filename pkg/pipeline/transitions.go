package pipeline

import (
	"context"

	"github.com/matzehuels/phylomorph/pkg/diff"
	"github.com/matzehuels/phylomorph/pkg/edgechange"
	"github.com/matzehuels/phylomorph/pkg/tree"
)

// Transition summarizes the change between two consecutive trees: their
// split distances, the links that enter and exit, and how the links present
// in both move.
type Transition struct {
	tree.Distance
	Entered int                `json:"entered"`
	Exited  int                `json:"exited"`
	Classes edgechange.Summary `json:"classes"`
}

// Transitions lays out the run and summarizes every consecutive pair.
func (r *Runner) Transitions(ctx context.Context, trees []*tree.Node, opts Options) ([]Transition, error) {
	layouts, _, err := r.Layouts(ctx, trees, opts)
	if err != nil {
		return nil, err
	}
	tol := edgechange.DefaultTolerances()
	dists := tree.Trajectory(trees)
	out := make([]Transition, len(dists))
	for i, d := range dists {
		res := diff.Compute(diff.ElementsOf(layouts[d.From]), diff.ElementsOf(layouts[d.To]), diff.Forward)
		t := Transition{Distance: d, Entered: len(res.Links.Enter), Exited: len(res.Links.Exit)}
		for _, k := range res.Links.Update {
			t.Classes.Add(edgechange.Classify(res.From.Links[k], res.To.Links[k], tol))
		}
		out[i] = t
	}
	return out, nil
}
