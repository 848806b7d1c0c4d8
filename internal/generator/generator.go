// Package generator produces artifact content for the stage handlers, either
// offline from embedded templates or by running an external agent CLI.
package generator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ariel-frischer/appgen/internal/execution"
	"github.com/ariel-frischer/appgen/internal/stage"
	"github.com/ariel-frischer/appgen/internal/templates"
)

// Generator kinds accepted by New and the generator.type config key.
const (
	KindTemplate = "template"
	KindCommand  = "command"
)

// Prompt describes one artifact to generate.
type Prompt struct {
	ExecutionID  string
	Stage        stage.Stage
	Artifact     string
	Requirements execution.Requirements
	// Inputs holds earlier artifact values the artifact builds on.
	Inputs map[string]string
}

// Data converts the prompt into template data.
func (p Prompt) Data() templates.Data {
	return templates.Data{
		ExecutionID:  p.ExecutionID,
		Stage:        p.Stage.String(),
		Requirements: p.Requirements,
		Inputs:       p.Inputs,
	}
}

// Text renders the prompt as instructions for an agent CLI.
func (p Prompt) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the %s stage of an application generation pipeline.\n", p.Stage.Title())
	fmt.Fprintf(&b, "Produce the %s artifact for this project and print only its content.\n\n", p.Artifact)
	fmt.Fprintf(&b, "Project: %s\nType: %s\n", p.Requirements.Description, p.Requirements.ProjectType)
	if len(p.Requirements.Features) > 0 {
		fmt.Fprintf(&b, "Features: %s\n", strings.Join(p.Requirements.Features, ", "))
	}
	keys := make([]string, 0, len(p.Inputs))
	for k := range p.Inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n## %s\n%s\n", k, p.Inputs[k])
	}
	if draft, err := templates.Render(p.Artifact, p.Data()); err == nil {
		fmt.Fprintf(&b, "\n## Expected shape\n%s", draft)
	}
	return b.String()
}

// Generator produces the content of one artifact.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// New builds the generator for a configured kind.
func New(kind, command string) (Generator, error) {
	switch kind {
	case "", KindTemplate:
		return TemplateGenerator{}, nil
	case KindCommand:
		return NewCommandGenerator(command)
	default:
		return nil, fmt.Errorf("unknown generator type %q (valid: %s, %s)", kind, KindTemplate, KindCommand)
	}
}

// TemplateGenerator renders the embedded template named after the artifact.
type TemplateGenerator struct{}

// Generate renders p.Artifact's template.
func (TemplateGenerator) Generate(ctx context.Context, p Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return templates.Render(p.Artifact, p.Data())
}
