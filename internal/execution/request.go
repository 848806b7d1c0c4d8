package execution

import (
	"errors"
	"maps"
	"slices"
	"strings"
)

// DefaultProjectType is used when a request omits the project type.
const DefaultProjectType = "web_app"

// ErrMissingDescription is returned by Request.Validate when no description is given.
var ErrMissingDescription = errors.New("project description is required")

// Requirements are the immutable input parameters of one workflow run.
type Requirements struct {
	Description           string            `json:"description" yaml:"description"`
	ProjectType           string            `json:"project_type" yaml:"project_type"`
	Features              []string          `json:"features,omitempty" yaml:"features,omitempty"`
	TechnologyPreferences map[string]string `json:"technology_preferences,omitempty" yaml:"technology_preferences,omitempty"`
}

// Clone returns a deep copy so callers can never alias the stored slices or maps.
func (r Requirements) Clone() Requirements {
	out := r
	out.Features = slices.Clone(r.Features)
	if r.TechnologyPreferences != nil {
		out.TechnologyPreferences = maps.Clone(r.TechnologyPreferences)
	}
	return out
}

// Request is the submission payload accepted by the runner and the HTTP API.
type Request struct {
	Description           string            `json:"description" yaml:"description"`
	ProjectType           string            `json:"project_type,omitempty" yaml:"project_type,omitempty"`
	Features              []string          `json:"features,omitempty" yaml:"features,omitempty"`
	TechnologyPreferences map[string]string `json:"technology_preferences,omitempty" yaml:"technology_preferences,omitempty"`
	// MaxStage optionally names the stage after which the run stops.
	// Unknown values are accepted and ignored with a warning.
	MaxStage string `json:"max_stage,omitempty" yaml:"max_stage,omitempty"`
}

// Validate checks the request and applies defaults in place.
func (r *Request) Validate() error {
	r.Description = strings.TrimSpace(r.Description)
	if r.Description == "" {
		return ErrMissingDescription
	}
	r.ProjectType = strings.TrimSpace(r.ProjectType)
	if r.ProjectType == "" {
		r.ProjectType = DefaultProjectType
	}
	features := r.Features[:0:0]
	for _, f := range r.Features {
		if f = strings.TrimSpace(f); f != "" {
			features = append(features, f)
		}
	}
	r.Features = features
	return nil
}

// Requirements extracts the immutable requirement set from the request.
func (r Request) Requirements() Requirements {
	return Requirements{
		Description:           r.Description,
		ProjectType:           r.ProjectType,
		Features:              r.Features,
		TechnologyPreferences: r.TechnologyPreferences,
	}.Clone()
}
