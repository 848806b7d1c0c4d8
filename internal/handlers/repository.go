package handlers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ariel-frischer/appgen/internal/artifacts"
	"github.com/ariel-frischer/appgen/internal/execution"
	"github.com/ariel-frischer/appgen/internal/publish"
	"github.com/ariel-frischer/appgen/internal/workflow"
)

// ErrPublishingDisabled is returned by the repository stage when no publisher
// is configured.
var ErrPublishingDisabled = errors.New("repository publishing is disabled")

// layoutDirs places artifacts inside the published repository.
var layoutDirs = map[string]string{
	execution.ArtifactFrontendCode:     "frontend",
	execution.ArtifactBackendCode:      "backend",
	execution.ArtifactDeploymentConfig: "deploy",
}

// repository publishes every generated artifact and records the repository URL.
type repository struct {
	publisher publish.Publisher
}

// Handle implements workflow.Handler.
func (h *repository) Handle(ctx context.Context, in workflow.Input) (workflow.Result, error) {
	if h.publisher == nil {
		return workflow.Result{}, ErrPublishingDisabled
	}
	url, err := h.publisher.Publish(ctx, Bundle(in))
	if err != nil {
		return workflow.Result{}, fmt.Errorf("publishing repository: %w", err)
	}
	return workflow.Result{
		Artifacts: []execution.Artifact{{
			Name:        execution.ArtifactRepositoryURL,
			ContentType: "text/plain",
			Content:     url,
			Ref:         url,
		}},
		Message: "published to " + url,
	}, nil
}

// Bundle lays out the artifacts visible to in as repository files, with a
// README built from the requirements. Artifacts without content are skipped.
func Bundle(in workflow.Input) publish.Bundle {
	names := make([]string, 0, len(in.Artifacts))
	for name := range in.Artifacts {
		names = append(names, name)
	}
	sort.Strings(names)

	files := []publish.File{{Path: "README.md", Content: readme(in)}}
	for _, name := range names {
		a := in.Artifacts[name]
		if a.Content == "" {
			continue
		}
		dir, ok := layoutDirs[name]
		if !ok {
			dir = "docs"
		}
		files = append(files, publish.File{Path: dir + "/" + artifacts.FileName(a), Content: a.Content})
	}

	return publish.Bundle{
		ExecutionID: in.ExecutionID,
		Message:     fmt.Sprintf("Generate %s (%s)", in.Requirements.Description, in.ExecutionID),
		Files:       files,
	}
}

func readme(in workflow.Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", in.Requirements.Description)
	fmt.Fprintf(&b, "Project type: %s\n", in.Requirements.ProjectType)
	if len(in.Requirements.Features) > 0 {
		b.WriteString("\n## Features\n")
		for _, f := range in.Requirements.Features {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	fmt.Fprintf(&b, "\nGenerated by appgen, execution %s.\n", in.ExecutionID)
	return b.String()
}
