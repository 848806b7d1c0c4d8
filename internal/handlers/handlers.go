// Package handlers provides the default stage handlers of the generation
// pipeline. Each handler turns the requirements and earlier artifacts into the
// artifacts its stage owns.
package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/ariel-frischer/appgen/internal/artifacts"
	"github.com/ariel-frischer/appgen/internal/execution"
	"github.com/ariel-frischer/appgen/internal/generator"
	"github.com/ariel-frischer/appgen/internal/publish"
	"github.com/ariel-frischer/appgen/internal/stage"
	"github.com/ariel-frischer/appgen/internal/templates"
	"github.com/ariel-frischer/appgen/internal/workflow"
	"gopkg.in/yaml.v3"
)

// Produces lists the artifacts each executable stage commits on success.
var Produces = map[stage.Stage][]string{
	stage.RequirementsAnalysis: {execution.ArtifactRequirementsDoc},
	stage.ArchitectureDesign:   {execution.ArtifactArchitectureDoc, execution.ArtifactDataModel},
	stage.FrontendDevelopment:  {execution.ArtifactFrontendCode},
	stage.BackendDevelopment:   {execution.ArtifactBackendCode},
	stage.Integration:          {execution.ArtifactIntegrationReport},
	stage.SecurityScanning:     {execution.ArtifactSecurityReport},
	stage.Testing:              {execution.ArtifactTestReport},
	stage.DeploymentSetup:      {execution.ArtifactDeploymentConfig},
	stage.GithubDeployment:     {execution.ArtifactRepositoryURL},
	stage.BacklogPublishing:    {execution.ArtifactBacklog, execution.ArtifactSprintPlan},
	stage.Validation:           {execution.ArtifactValidationReport},
	stage.Completion:           {execution.ArtifactCompletionSummary},
}

// Options wires the collaborators the default handlers use.
type Options struct {
	// Generator produces artifact content. Defaults to the template generator.
	Generator generator.Generator
	// Sink stores a copy of every generated artifact. Defaults to NopSink.
	Sink artifacts.Sink
	// Publisher publishes the repository. Nil disables publishing, which makes
	// the repository stage fail.
	Publisher publish.Publisher
}

// Default returns a handler for every executable stage.
func Default(opts Options) map[stage.Stage]workflow.Handler {
	if opts.Generator == nil {
		opts.Generator = generator.TemplateGenerator{}
	}
	if opts.Sink == nil {
		opts.Sink = artifacts.NopSink{}
	}

	gen := func(s stage.Stage, mods ...func(*generating)) workflow.Handler {
		h := &generating{stage: s, names: Produces[s], gen: opts.Generator, sink: opts.Sink}
		for _, mod := range mods {
			mod(h)
		}
		return h
	}

	architecture := gen(stage.ArchitectureDesign,
		requires(execution.ArtifactRequirementsDoc), checkYAML(execution.ArtifactDataModel))
	backend := gen(stage.BackendDevelopment,
		requires(execution.ArtifactArchitectureDoc, execution.ArtifactDataModel))
	integration := gen(stage.Integration,
		requires(execution.ArtifactFrontendCode, execution.ArtifactBackendCode))

	return map[stage.Stage]workflow.Handler{
		stage.RequirementsAnalysis: gen(stage.RequirementsAnalysis),
		stage.ArchitectureDesign:   architecture,
		stage.FrontendDevelopment:  gen(stage.FrontendDevelopment, requires(execution.ArtifactArchitectureDoc)),
		stage.BackendDevelopment:   backend,
		stage.Integration:          integration,
		stage.SecurityScanning:     gen(stage.SecurityScanning, decorate(appendFindings)),
		stage.Testing:              gen(stage.Testing),
		stage.DeploymentSetup:      gen(stage.DeploymentSetup, checkYAML(execution.ArtifactDeploymentConfig)),
		stage.GithubDeployment:     &repository{publisher: opts.Publisher},
		stage.BacklogPublishing:    gen(stage.BacklogPublishing, requires(execution.ArtifactRequirementsDoc)),
		stage.Validation:           &validation{sink: opts.Sink},
		stage.Completion:           gen(stage.Completion),
	}
}

// generating asks the generator for each artifact its stage owns.
type generating struct {
	stage    stage.Stage
	names    []string
	gen      generator.Generator
	sink     artifacts.Sink
	requires []string
	checks   map[string]func(string) error
	decorate func(in workflow.Input, name, content string) string
}

func requires(names ...string) func(*generating) {
	return func(h *generating) { h.requires = append(h.requires, names...) }
}

func checkYAML(name string) func(*generating) {
	return func(h *generating) {
		if h.checks == nil {
			h.checks = make(map[string]func(string) error)
		}
		h.checks[name] = validYAMLMapping
	}
}

func decorate(fn func(in workflow.Input, name, content string) string) func(*generating) {
	return func(h *generating) { h.decorate = fn }
}

// Handle implements workflow.Handler.
func (h *generating) Handle(ctx context.Context, in workflow.Input) (workflow.Result, error) {
	for _, name := range h.requires {
		if _, ok := in.Artifacts[name]; !ok {
			return workflow.Result{}, fmt.Errorf("required artifact %s is missing", name)
		}
	}

	inputs := in.Values()
	out := make([]execution.Artifact, 0, len(h.names))
	for _, name := range h.names {
		content, err := h.gen.Generate(ctx, generator.Prompt{
			ExecutionID:  in.ExecutionID,
			Stage:        h.stage,
			Artifact:     name,
			Requirements: in.Requirements,
			Inputs:       inputs,
		})
		if err != nil {
			return workflow.Result{}, fmt.Errorf("generating %s: %w", name, err)
		}
		if check, ok := h.checks[name]; ok {
			if err := check(content); err != nil {
				return workflow.Result{}, fmt.Errorf("generated %s is invalid: %w", name, err)
			}
		}
		if h.decorate != nil {
			content = h.decorate(in, name, content)
		}

		a, err := persist(ctx, h.sink, in.ExecutionID, execution.Artifact{
			Name:        name,
			ContentType: contentType(name),
			Content:     content,
		})
		if err != nil {
			return workflow.Result{}, err
		}
		out = append(out, a)
		inputs[name] = content
	}
	return workflow.Result{Artifacts: out, Message: "generated " + strings.Join(h.names, ", ")}, nil
}

func persist(ctx context.Context, sink artifacts.Sink, executionID string, a execution.Artifact) (execution.Artifact, error) {
	path, err := sink.Persist(ctx, executionID, a)
	if err != nil {
		return a, fmt.Errorf("persisting %s: %w", a.Name, err)
	}
	a.Path = path
	return a, nil
}

func contentType(name string) string {
	if t, err := templates.Get(name); err == nil && t.ContentType != "" {
		return t.ContentType
	}
	return "text/plain"
}

func validYAMLMapping(content string) error {
	var doc map[string]any
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return err
	}
	if len(doc) == 0 {
		return fmt.Errorf("empty document")
	}
	return nil
}
