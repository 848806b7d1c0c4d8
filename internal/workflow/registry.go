// appgen - Application Generation Pipeline
// Author: Ariel Frischer
// Source: https://github.com/ariel-frischer/appgen

// Package workflow schedules the stages of one application-generation run.
//
// A [Registry] is an immutable table of stage definitions grouped into ordered
// stage groups. It is built once per process and injected into a [Scheduler],
// which walks the groups, checks dependencies, runs each handler under the
// timeout guard and decides whether the run continues, stops early or fails.
package workflow

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ariel-frischer/appgen/internal/stage"
)

// Registry validation errors.
var (
	ErrEmptyRegistry      = errors.New("registry has no groups")
	ErrDuplicateStage     = errors.New("stage declared more than once")
	ErrMissingDefinition  = errors.New("stage has no definition")
	ErrMissingHandler     = errors.New("stage has no handler")
	ErrUngroupedStage     = errors.New("stage is not in any group")
	ErrInvalidDependency  = errors.New("invalid dependency")
	ErrInvalidGroup       = errors.New("invalid group")
	ErrOutOfOrder         = errors.New("stages are not in total order")
	ErrParallelDependency = errors.New("parallel group members depend on each other")
)

// Definition is the static registration of one stage.
type Definition struct {
	Stage     stage.Stage
	DependsOn []stage.Stage
	// Critical stages abort the whole run when they fail.
	Critical bool
	// Skip marks a designated no-op stage that the scheduler passes over.
	Skip bool
	// Timeout overrides the scheduler's per-stage timeout when positive.
	Timeout time.Duration
	Handler Handler
}

// Group is an ordered bundle of stages sharing an execution mode.
type Group struct {
	Name   string
	Mode   stage.Mode
	Stages []stage.Stage
}

// Registry is the immutable stage table.
type Registry struct {
	groups []Group
	defs   map[stage.Stage]Definition
	group  map[stage.Stage]string
	order  []stage.Stage
}

// NewRegistry validates groups and definitions and returns a Registry.
//
// Every grouped stage needs exactly one definition and every definition must be
// grouped. Non-skipped stages need a handler. Execution order (groups in order,
// members in order) must follow the stage total order, dependencies must name
// stages that run earlier, and members of a parallel group may not depend on
// each other.
func NewRegistry(groups []Group, defs []Definition) (*Registry, error) {
	if len(groups) == 0 {
		return nil, ErrEmptyRegistry
	}

	r := &Registry{
		defs:  make(map[stage.Stage]Definition, len(defs)),
		group: make(map[stage.Stage]string),
	}

	for _, d := range defs {
		if !d.Stage.Valid() {
			return nil, fmt.Errorf("definition for %s: %w", d.Stage, ErrMissingDefinition)
		}
		if _, dup := r.defs[d.Stage]; dup {
			return nil, fmt.Errorf("definition for %s: %w", d.Stage, ErrDuplicateStage)
		}
		if !d.Skip && d.Handler == nil {
			return nil, fmt.Errorf("%s: %w", d.Stage, ErrMissingHandler)
		}
		d.DependsOn = slices.Clone(d.DependsOn)
		r.defs[d.Stage] = d
	}

	names := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		if g.Name == "" || !g.Mode.Valid() || len(g.Stages) == 0 {
			return nil, fmt.Errorf("group %q: %w", g.Name, ErrInvalidGroup)
		}
		if _, dup := names[g.Name]; dup {
			return nil, fmt.Errorf("group %q declared twice: %w", g.Name, ErrInvalidGroup)
		}
		names[g.Name] = struct{}{}

		for _, s := range g.Stages {
			if _, seen := r.group[s]; seen {
				return nil, fmt.Errorf("%s: %w", s, ErrDuplicateStage)
			}
			if _, ok := r.defs[s]; !ok {
				return nil, fmt.Errorf("%s: %w", s, ErrMissingDefinition)
			}
			if n := len(r.order); n > 0 && !r.order[n-1].Before(s) {
				return nil, fmt.Errorf("%s after %s: %w", s, r.order[n-1], ErrOutOfOrder)
			}
			r.group[s] = g.Name
			r.order = append(r.order, s)
		}
		r.groups = append(r.groups, Group{Name: g.Name, Mode: g.Mode, Stages: slices.Clone(g.Stages)})
	}

	for s := range r.defs {
		if _, ok := r.group[s]; !ok {
			return nil, fmt.Errorf("%s: %w", s, ErrUngroupedStage)
		}
	}

	for _, g := range r.groups {
		for _, s := range g.Stages {
			if err := r.validateDependencies(g, r.defs[s]); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

func (r *Registry) validateDependencies(g Group, d Definition) error {
	for _, dep := range d.DependsOn {
		if _, ok := r.defs[dep]; !ok {
			return fmt.Errorf("%s depends on unknown stage %s: %w", d.Stage, dep, ErrInvalidDependency)
		}
		if !dep.Before(d.Stage) {
			return fmt.Errorf("%s depends on later stage %s: %w", d.Stage, dep, ErrInvalidDependency)
		}
		if r.defs[dep].Skip {
			return fmt.Errorf("%s depends on no-op stage %s: %w", d.Stage, dep, ErrInvalidDependency)
		}
		if g.Mode == stage.Parallel && r.group[dep] == g.Name {
			return fmt.Errorf("%s depends on %s in group %q: %w", d.Stage, dep, g.Name, ErrParallelDependency)
		}
	}
	return nil
}

// Groups returns a copy of the groups in execution order.
func (r *Registry) Groups() []Group {
	out := make([]Group, len(r.groups))
	for i, g := range r.groups {
		out[i] = Group{Name: g.Name, Mode: g.Mode, Stages: slices.Clone(g.Stages)}
	}
	return out
}

// Definition returns the registration of s.
func (r *Registry) Definition(s stage.Stage) (Definition, bool) {
	d, ok := r.defs[s]
	if ok {
		d.DependsOn = slices.Clone(d.DependsOn)
	}
	return d, ok
}

// GroupOf returns the name of the group containing s.
func (r *Registry) GroupOf(s stage.Stage) (string, bool) {
	name, ok := r.group[s]
	return name, ok
}

// Order returns every registered stage in execution order.
func (r *Registry) Order() []stage.Stage {
	return slices.Clone(r.order)
}

// Contains reports whether s is registered.
func (r *Registry) Contains(s stage.Stage) bool {
	_, ok := r.defs[s]
	return ok
}

// DependenciesMet reports whether every direct prerequisite of s is in
// completed, returning the missing ones in declared order.
func (r *Registry) DependenciesMet(s stage.Stage, completed map[stage.Stage]bool) ([]stage.Stage, bool) {
	d, ok := r.defs[s]
	if !ok {
		return nil, false
	}
	var missing []stage.Stage
	for _, dep := range d.DependsOn {
		if !completed[dep] {
			missing = append(missing, dep)
		}
	}
	return missing, len(missing) == 0
}

// Planned returns the number of executable stages a run would attempt. When
// limited, stages after limit are not counted.
func (r *Registry) Planned(limit stage.Stage, limited bool) int {
	n := 0
	for _, s := range r.order {
		if limited && limit.Before(s) {
			break
		}
		if !r.defs[s].Skip {
			n++
		}
	}
	return n
}
