package workflow

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/ariel-frischer/appgen/internal/events"
	"github.com/ariel-frischer/appgen/internal/execution"
	"github.com/ariel-frischer/appgen/internal/stage"
	"github.com/stretchr/testify/require"
)

var errHandler = errors.New("handler exploded")

// namedArtifacts are the artifacts the fake pipeline produces per stage, in
// addition to a "done:<stage>" marker used for dependency checks.
var namedArtifacts = map[stage.Stage][]string{
	stage.RequirementsAnalysis: {execution.ArtifactRequirementsDoc},
	stage.ArchitectureDesign:   {execution.ArtifactArchitectureDoc, execution.ArtifactDataModel},
	stage.FrontendDevelopment:  {execution.ArtifactFrontendCode},
	stage.BackendDevelopment:   {execution.ArtifactBackendCode},
}

func marker(s stage.Stage) string {
	return "done:" + s.String()
}

// recorder captures handler invocations, dependency violations and events.
type recorder struct {
	mu         sync.Mutex
	invoked    []stage.Stage
	violations []string
	events     []events.Event
}

func (r *recorder) Report(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) Invoked() []stage.Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]stage.Stage(nil), r.invoked...)
}

func (r *recorder) Events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

func (r *recorder) EventTypes() []events.Type {
	var out []events.Type
	for _, ev := range r.Events() {
		out = append(out, ev.Type)
	}
	return out
}

// behaviour overrides the default successful handler for one stage.
type behaviour func(ctx context.Context, in Input) (Result, error)

func fail(err error) behaviour {
	return func(context.Context, Input) (Result, error) { return Result{}, err }
}

func block() behaviour {
	return func(ctx context.Context, _ Input) (Result, error) {
		<-ctx.Done()
		return Result{}, ctx.Err()
	}
}

func sleep(d time.Duration) behaviour {
	return func(ctx context.Context, in Input) (Result, error) {
		select {
		case <-time.After(d):
			return Result{Artifacts: []execution.Artifact{{Name: marker(in.Stage), Content: "ok"}}}, nil
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
}

// fakeHandlers builds a handler per stage that checks its prerequisites are
// visible, records the call and returns the stage's artifacts.
func (r *recorder) fakeHandlers(deps func(stage.Stage) []stage.Stage, overrides map[stage.Stage]behaviour) map[stage.Stage]Handler {
	out := make(map[stage.Stage]Handler)
	for _, s := range stage.All() {
		out[s] = HandlerFunc(func(ctx context.Context, in Input) (Result, error) {
			r.mu.Lock()
			r.invoked = append(r.invoked, s)
			for _, dep := range deps(s) {
				if _, ok := in.Artifacts[marker(dep)]; !ok {
					r.violations = append(r.violations, s.String()+" ran before "+dep.String())
				}
			}
			r.mu.Unlock()

			if b, ok := overrides[s]; ok {
				return b(ctx, in)
			}
			res := Result{Artifacts: []execution.Artifact{{Name: marker(s), Content: "ok"}}}
			for _, name := range namedArtifacts[s] {
				res.Artifacts = append(res.Artifacts, execution.Artifact{Name: name, Content: in.Requirements.Description})
			}
			return res, nil
		})
	}
	return out
}

func defaultDeps(s stage.Stage) []stage.Stage {
	_, defs := DefaultLayout(nil)
	for _, d := range defs {
		if d.Stage == s {
			return d.DependsOn
		}
	}
	return nil
}

func newDefaultScheduler(t *testing.T, rec *recorder, overrides map[stage.Stage]behaviour, opts ...Option) *Scheduler {
	t.Helper()
	reg, err := NewDefaultRegistry(rec.fakeHandlers(defaultDeps, overrides))
	require.NoError(t, err)
	opts = append([]Option{WithReporter(rec), WithLogger(log.New(io.Discard, "", 0))}, opts...)
	return NewScheduler(reg, opts...)
}

func newExecution(t *testing.T, maxStage string) *execution.Execution {
	t.Helper()
	req := execution.Request{Description: "task manager", ProjectType: "web_app", MaxStage: maxStage}
	require.NoError(t, req.Validate())
	return execution.New("exec-"+t.Name(), req)
}

func executable() []stage.Stage {
	return stage.All()[1:]
}
