package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ariel-frischer/appgen/internal/artifacts"
	"github.com/ariel-frischer/appgen/internal/execution"
	"github.com/ariel-frischer/appgen/internal/workflow"
)

// ErrMissingArtifacts is returned by the validation stage when a completed
// stage did not leave the artifacts it owns.
var ErrMissingArtifacts = errors.New("missing artifacts")

// validation checks every completed stage committed its artifacts.
type validation struct {
	sink artifacts.Sink
}

// Handle implements workflow.Handler.
func (h *validation) Handle(ctx context.Context, in workflow.Input) (workflow.Result, error) {
	var missing []string
	var b strings.Builder
	b.WriteString("# Validation report\n\n")
	for _, s := range in.Completed {
		for _, name := range Produces[s] {
			if _, ok := in.Artifacts[name]; !ok {
				missing = append(missing, s.String()+"/"+name)
				continue
			}
			fmt.Fprintf(&b, "- [x] %s: %s\n", s, name)
		}
	}
	if len(missing) > 0 {
		return workflow.Result{}, fmt.Errorf("%w: %s", ErrMissingArtifacts, strings.Join(missing, ", "))
	}
	fmt.Fprintf(&b, "\n%d stages validated.\n", len(in.Completed))

	a, err := persist(ctx, h.sink, in.ExecutionID, execution.Artifact{
		Name:        execution.ArtifactValidationReport,
		ContentType: "text/markdown",
		Content:     b.String(),
	})
	if err != nil {
		return workflow.Result{}, err
	}
	return workflow.Result{
		Artifacts: []execution.Artifact{a},
		Message:   fmt.Sprintf("validated %d stages", len(in.Completed)),
	}, nil
}
