package workflow

import (
	"github.com/ariel-frischer/appgen/internal/stage"
)

// Default group names.
const (
	GroupSetup        = "setup"
	GroupPlanning     = "planning"
	GroupDevelopment  = "development"
	GroupQuality      = "quality"
	GroupDelivery     = "delivery"
	GroupFinalization = "finalization"
)

// DefaultLayout returns the standard application-generation pipeline with the
// given handlers attached. Stages without an entry in handlers get a nil
// handler, which NewRegistry rejects for every stage but initialization.
func DefaultLayout(handlers map[stage.Stage]Handler) ([]Group, []Definition) {
	groups := []Group{
		{Name: GroupSetup, Mode: stage.Sequential, Stages: []stage.Stage{stage.Initialization}},
		{Name: GroupPlanning, Mode: stage.Sequential, Stages: []stage.Stage{
			stage.RequirementsAnalysis, stage.ArchitectureDesign,
		}},
		{Name: GroupDevelopment, Mode: stage.Sequential, Stages: []stage.Stage{
			stage.FrontendDevelopment, stage.BackendDevelopment,
		}},
		{Name: GroupQuality, Mode: stage.Sequential, Stages: []stage.Stage{
			stage.Integration, stage.SecurityScanning, stage.Testing,
		}},
		{Name: GroupDelivery, Mode: stage.Sequential, Stages: []stage.Stage{
			stage.DeploymentSetup, stage.GithubDeployment, stage.BacklogPublishing,
		}},
		{Name: GroupFinalization, Mode: stage.Sequential, Stages: []stage.Stage{
			stage.Validation, stage.Completion,
		}},
	}

	deps := func(s ...stage.Stage) []stage.Stage { return s }
	defs := []Definition{
		{Stage: stage.Initialization, Skip: true},
		{Stage: stage.RequirementsAnalysis, Critical: true},
		{Stage: stage.ArchitectureDesign, DependsOn: deps(stage.RequirementsAnalysis), Critical: true},
		{Stage: stage.FrontendDevelopment, DependsOn: deps(stage.ArchitectureDesign), Critical: true},
		{Stage: stage.BackendDevelopment, DependsOn: deps(stage.ArchitectureDesign), Critical: true},
		{Stage: stage.Integration, DependsOn: deps(stage.FrontendDevelopment, stage.BackendDevelopment), Critical: true},
		{Stage: stage.SecurityScanning, DependsOn: deps(stage.Integration)},
		{Stage: stage.Testing, DependsOn: deps(stage.Integration)},
		{Stage: stage.DeploymentSetup, DependsOn: deps(stage.Integration)},
		{Stage: stage.GithubDeployment, DependsOn: deps(stage.DeploymentSetup)},
		{Stage: stage.BacklogPublishing, DependsOn: deps(stage.RequirementsAnalysis)},
		{Stage: stage.Validation, DependsOn: deps(stage.Integration)},
		{Stage: stage.Completion, DependsOn: deps(stage.Integration), Critical: true},
	}
	for i := range defs {
		if h, ok := handlers[defs[i].Stage]; ok {
			defs[i].Handler = h
		}
	}
	return groups, defs
}

// NewDefaultRegistry builds the standard pipeline registry.
func NewDefaultRegistry(handlers map[stage.Stage]Handler) (*Registry, error) {
	return NewRegistry(DefaultLayout(handlers))
}
