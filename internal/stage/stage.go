// appgen - Application Generation Pipeline
// Author: Ariel Frischer
// Source: https://github.com/ariel-frischer/appgen

// Package stage defines the closed set of workflow stage identifiers.
//
// Stages have a fixed total order. External input is parsed with [Parse], which
// never fails: unknown values map to [Unrecognized] so callers handle them as a
// normal branch (typically "ignore and warn").
package stage

import (
	"fmt"
	"strings"
)

// Stage identifies one named unit of the workflow.
type Stage int

const (
	// Unrecognized is the zero value and the result of parsing unknown input.
	Unrecognized Stage = iota
	Initialization
	RequirementsAnalysis
	ArchitectureDesign
	FrontendDevelopment
	BackendDevelopment
	Integration
	SecurityScanning
	Testing
	DeploymentSetup
	GithubDeployment
	BacklogPublishing
	Validation
	Completion
)

// names holds the wire identifiers, indexed by Stage.
var names = [...]string{
	Unrecognized:         "unrecognized",
	Initialization:       "initialization",
	RequirementsAnalysis: "requirements_analysis",
	ArchitectureDesign:   "architecture_design",
	FrontendDevelopment:  "frontend_development",
	BackendDevelopment:   "backend_development",
	Integration:          "integration",
	SecurityScanning:     "security_scanning",
	Testing:              "testing",
	DeploymentSetup:      "deployment_setup",
	GithubDeployment:     "github_deployment",
	BacklogPublishing:    "backlog_publishing",
	Validation:           "validation",
	Completion:           "completion",
}

var titles = [...]string{
	Unrecognized:         "Unrecognized",
	Initialization:       "Initialization",
	RequirementsAnalysis: "Requirements Analysis",
	ArchitectureDesign:   "Architecture Design",
	FrontendDevelopment:  "Frontend Development",
	BackendDevelopment:   "Backend Development",
	Integration:          "Integration",
	SecurityScanning:     "Security Scanning",
	Testing:              "Testing",
	DeploymentSetup:      "Deployment Setup",
	GithubDeployment:     "Repository Publishing",
	BacklogPublishing:    "Backlog Publishing",
	Validation:           "Validation",
	Completion:           "Completion",
}

var byName = func() map[string]Stage {
	m := make(map[string]Stage, len(names))
	for i, n := range names {
		if Stage(i) == Unrecognized {
			continue
		}
		m[n] = Stage(i)
	}
	return m
}()

// All returns every recognized stage in the fixed total order.
func All() []Stage {
	out := make([]Stage, 0, len(names)-1)
	for i := Initialization; i <= Completion; i++ {
		out = append(out, i)
	}
	return out
}

// Names returns the wire identifiers of all recognized stages in order.
func Names() []string {
	all := All()
	out := make([]string, len(all))
	for i, s := range all {
		out[i] = s.String()
	}
	return out
}

// Parse maps an external identifier to a Stage.
// Matching is case-insensitive and ignores surrounding whitespace; hyphens are
// accepted in place of underscores. Unknown or empty input returns Unrecognized.
func Parse(s string) Stage {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, "-", "_")
	if st, ok := byName[key]; ok {
		return st
	}
	return Unrecognized
}

// Valid reports whether s is one of the recognized stages.
func (s Stage) Valid() bool {
	return s >= Initialization && s <= Completion
}

// Index returns the position of s in the total order, or -1 when unrecognized.
func (s Stage) Index() int {
	if !s.Valid() {
		return -1
	}
	return int(s - Initialization)
}

// Before reports whether s precedes other in the total order.
func (s Stage) Before(other Stage) bool {
	return s.Valid() && other.Valid() && s < other
}

// String returns the wire identifier.
func (s Stage) String() string {
	if s < 0 || int(s) >= len(names) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return names[s]
}

// Title returns a human-readable name for display.
func (s Stage) Title() string {
	if s < 0 || int(s) >= len(titles) {
		return s.String()
	}
	return titles[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown text decodes to
// Unrecognized rather than returning an error.
func (s *Stage) UnmarshalText(text []byte) error {
	*s = Parse(string(text))
	return nil
}

// Mode is the execution mode of a stage group.
type Mode string

const (
	Sequential Mode = "sequential"
	Parallel   Mode = "parallel"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == Sequential || m == Parallel
}
