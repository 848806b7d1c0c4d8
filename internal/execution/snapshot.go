package execution

import (
	"maps"
	"slices"
	"time"

	"github.com/ariel-frischer/appgen/internal/stage"
)

// Snapshot is an immutable, self-contained copy of an execution.
// It is safe to share across goroutines and to serialize.
type Snapshot struct {
	ID              string               `json:"id" yaml:"id"`
	Requirements    Requirements         `json:"requirements" yaml:"requirements"`
	MaxStage        string               `json:"max_stage,omitempty" yaml:"max_stage,omitempty"`
	Status          Status               `json:"status" yaml:"status"`
	Stage           string               `json:"stage" yaml:"stage"`
	ProgressPercent int                  `json:"progress_percent" yaml:"progress_percent"`
	EarlyStopped    bool                 `json:"early_stopped,omitempty" yaml:"early_stopped,omitempty"`
	StagesCompleted []stage.Stage        `json:"stages_completed" yaml:"stages_completed"`
	StagesFailed    []stage.Stage        `json:"stages_failed" yaml:"stages_failed"`
	Errors          []string             `json:"errors" yaml:"errors"`
	Artifacts       map[string]Artifact  `json:"artifacts" yaml:"artifacts"`
	StageStartTimes map[string]time.Time `json:"stage_start_times" yaml:"stage_start_times"`
	StageDurations  map[string]string    `json:"stage_durations" yaml:"stage_durations"`
	CreatedAt       time.Time            `json:"created_at" yaml:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at" yaml:"updated_at"`
	FinishedAt      *time.Time           `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}

// Snapshot returns a deep copy of the execution taken under a read lock.
func (e *Execution) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snap := Snapshot{
		ID:              e.id,
		Requirements:    e.requirements.Clone(),
		MaxStage:        e.rawMaxStage,
		Status:          e.status,
		EarlyStopped:    e.earlyStop,
		StagesCompleted: slices.Clone(e.completed),
		StagesFailed:    slices.Clone(e.failed),
		Errors:          slices.Clone(e.errors),
		Artifacts:       maps.Clone(e.artifacts),
		StageStartTimes: make(map[string]time.Time, len(e.startTimes)),
		StageDurations:  make(map[string]string, len(e.endTimes)),
		CreatedAt:       e.createdAt,
		UpdatedAt:       e.updatedAt,
	}
	if snap.StagesCompleted == nil {
		snap.StagesCompleted = []stage.Stage{}
	}
	if snap.StagesFailed == nil {
		snap.StagesFailed = []stage.Stage{}
	}
	if snap.Errors == nil {
		snap.Errors = []string{}
	}
	if snap.Artifacts == nil {
		snap.Artifacts = map[string]Artifact{}
	}

	for s, t := range e.startTimes {
		snap.StageStartTimes[s.String()] = t
		if end, ok := e.endTimes[s]; ok {
			snap.StageDurations[s.String()] = end.Sub(t).Round(time.Millisecond).String()
		}
	}

	switch {
	case e.finished:
		snap.Stage = TerminalMarker
	case e.current.Valid():
		snap.Stage = e.current.String()
	}

	snap.ProgressPercent = e.progressLocked()
	if !e.finishedAt.IsZero() {
		t := e.finishedAt
		snap.FinishedAt = &t
	}
	return snap
}

func (e *Execution) progressLocked() int {
	if e.status == StatusCompleted {
		return 100
	}
	if e.planned <= 0 {
		return 0
	}
	pct := len(e.completed) * 100 / e.planned
	if pct > 100 {
		pct = 100
	}
	return pct
}

// StatusArtifacts is the artifact subset exposed by the status query.
type StatusArtifacts struct {
	RequirementsDoc string `json:"requirements_doc,omitempty" yaml:"requirements_doc,omitempty"`
	DataModel       string `json:"data_model,omitempty" yaml:"data_model,omitempty"`
	Backlog         string `json:"backlog,omitempty" yaml:"backlog,omitempty"`
	SprintPlan      string `json:"sprint_plan,omitempty" yaml:"sprint_plan,omitempty"`
	RepositoryURL   string `json:"repository_url,omitempty" yaml:"repository_url,omitempty"`
}

// StatusView is the response shape of the status query.
type StatusView struct {
	ID              string          `json:"id" yaml:"id"`
	Stage           string          `json:"stage" yaml:"stage"`
	ProgressPercent int             `json:"progress_percent" yaml:"progress_percent"`
	Status          Status          `json:"status" yaml:"status"`
	StagesCompleted []string        `json:"stages_completed" yaml:"stages_completed"`
	StagesFailed    []string        `json:"stages_failed" yaml:"stages_failed"`
	Errors          []string        `json:"errors" yaml:"errors"`
	Artifacts       StatusArtifacts `json:"artifacts" yaml:"artifacts"`
}

// StatusView renders the snapshot in the status query shape.
func (s Snapshot) StatusView() StatusView {
	v := StatusView{
		ID:              s.ID,
		Stage:           s.Stage,
		ProgressPercent: s.ProgressPercent,
		Status:          s.Status,
		StagesCompleted: stageNames(s.StagesCompleted),
		StagesFailed:    stageNames(s.StagesFailed),
		Errors:          slices.Clone(s.Errors),
	}
	if v.Errors == nil {
		v.Errors = []string{}
	}
	v.Artifacts = StatusArtifacts{
		RequirementsDoc: s.Artifacts[ArtifactRequirementsDoc].Value(),
		DataModel:       s.Artifacts[ArtifactDataModel].Value(),
		Backlog:         s.Artifacts[ArtifactBacklog].Value(),
		SprintPlan:      s.Artifacts[ArtifactSprintPlan].Value(),
		RepositoryURL:   s.Artifacts[ArtifactRepositoryURL].Value(),
	}
	return v
}

func stageNames(stages []stage.Stage) []string {
	out := make([]string, len(stages))
	for i, s := range stages {
		out[i] = s.String()
	}
	return out
}
