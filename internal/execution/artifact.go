package execution

import (
	"errors"
	"time"

	"github.com/ariel-frischer/appgen/internal/stage"
)

// ErrArtifactExists is returned when a stage tries to overwrite an artifact.
var ErrArtifactExists = errors.New("artifact already exists")

// Logical artifact names produced by the default stage handlers.
const (
	ArtifactRequirementsDoc   = "requirements_doc"
	ArtifactArchitectureDoc   = "architecture_doc"
	ArtifactDataModel         = "data_model"
	ArtifactFrontendCode      = "frontend_code"
	ArtifactBackendCode       = "backend_code"
	ArtifactIntegrationReport = "integration_report"
	ArtifactSecurityReport    = "security_report"
	ArtifactTestReport        = "test_report"
	ArtifactDeploymentConfig  = "deployment_config"
	ArtifactRepositoryURL     = "repository_url"
	ArtifactBacklog           = "backlog"
	ArtifactSprintPlan        = "sprint_plan"
	ArtifactValidationReport  = "validation_report"
	ArtifactCompletionSummary = "completion_summary"
)

// Artifact is generated content bound to the stage that produced it.
// Content is write-once per run.
type Artifact struct {
	Name        string      `json:"name" yaml:"name"`
	Stage       stage.Stage `json:"stage" yaml:"stage"`
	ContentType string      `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	Content     string      `json:"content,omitempty" yaml:"content,omitempty"`
	// Ref is an external reference such as a repository URL.
	Ref string `json:"ref,omitempty" yaml:"ref,omitempty"`
	// Path is where a persisted copy of Content was written, if anywhere.
	Path      string    `json:"path,omitempty" yaml:"path,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Value returns the reference when set, otherwise the content.
func (a Artifact) Value() string {
	if a.Ref != "" {
		return a.Ref
	}
	return a.Content
}
