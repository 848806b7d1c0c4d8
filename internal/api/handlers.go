// Package api exposes workflow submission and status over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/ariel-frischer/appgen/internal/events"
	"github.com/ariel-frischer/appgen/internal/execution"
	"github.com/ariel-frischer/appgen/internal/runner"
	"github.com/ariel-frischer/appgen/internal/workflow"
	"github.com/gin-gonic/gin"
)

// Service is the workflow service the handlers call. *runner.Manager implements it.
type Service interface {
	Submit(ctx context.Context, req execution.Request) (execution.Snapshot, error)
	Status(ctx context.Context, id string) (execution.Snapshot, error)
	List(ctx context.Context, limit int) ([]execution.Snapshot, error)
	Subscribe(id string) (<-chan events.Event, func(), error)
	Registry() *workflow.Registry
}

// WorkflowHandler serves the /api/v1 routes.
type WorkflowHandler struct {
	svc Service
}

// NewWorkflowHandler creates a handler over svc.
func NewWorkflowHandler(svc Service) *WorkflowHandler {
	return &WorkflowHandler{svc: svc}
}

// CreateWorkflow accepts a request and starts it. Unknown max stages are
// accepted; the warning is reported in errors.
func (h *WorkflowHandler) CreateWorkflow(c *gin.Context) {
	var req execution.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap, err := h.svc.Submit(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, execution.ErrMissingDescription):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, runner.ErrShuttingDown):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.Header("Location", "/api/v1/workflows/"+snap.ID)
	c.JSON(http.StatusAccepted, snap.StatusView())
}

// GetWorkflow returns the status of one execution. ?view=full returns the
// complete snapshot including timings and artifact metadata.
func (h *WorkflowHandler) GetWorkflow(c *gin.Context) {
	snap, ok := h.lookup(c)
	if !ok {
		return
	}
	if c.Query("view") == "full" {
		c.JSON(http.StatusOK, snap)
		return
	}
	c.JSON(http.StatusOK, snap.StatusView())
}

// ListWorkflows returns recent executions, newest first.
func (h *WorkflowHandler) ListWorkflows(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	snaps, err := h.svc.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	views := make([]execution.StatusView, 0, len(snaps))
	for _, snap := range snaps {
		views = append(views, snap.StatusView())
	}
	c.JSON(http.StatusOK, gin.H{"workflows": views})
}

// StreamEvents pushes progress events as server-sent events. The stream opens
// with a "snapshot" event and ends after the terminal workflow event. A
// finished execution gets only the snapshot.
func (h *WorkflowHandler) StreamEvents(c *gin.Context) {
	snap, ok := h.lookup(c)
	if !ok {
		return
	}

	ch, cancel, err := h.svc.Subscribe(snap.ID)
	if err != nil && !errors.Is(err, runner.ErrNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if cancel != nil {
		defer cancel()
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.SSEvent("snapshot", snap.StatusView())
	c.Writer.Flush()
	if ch == nil || snap.Status.IsTerminal() {
		return
	}

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-ch:
			if !open {
				return
			}
			c.SSEvent(string(ev.Type), ev)
			c.Writer.Flush()
			if ev.Terminal() {
				return
			}
		}
	}
}

// StageView describes one registered stage.
type StageView struct {
	Name      string   `json:"name"`
	Title     string   `json:"title"`
	DependsOn []string `json:"depends_on"`
	Critical  bool     `json:"critical"`
	Skip      bool     `json:"skip,omitempty"`
	Timeout   string   `json:"timeout,omitempty"`
}

// GroupView describes one stage group.
type GroupView struct {
	Name   string      `json:"name"`
	Mode   string      `json:"mode"`
	Stages []StageView `json:"stages"`
}

// ListStages returns the registry layout.
func (h *WorkflowHandler) ListStages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"groups": Layout(h.svc.Registry())})
}

// Layout converts a registry into its JSON view.
func Layout(reg *workflow.Registry) []GroupView {
	groups := reg.Groups()
	out := make([]GroupView, 0, len(groups))
	for _, g := range groups {
		gv := GroupView{Name: g.Name, Mode: string(g.Mode), Stages: make([]StageView, 0, len(g.Stages))}
		for _, s := range g.Stages {
			def, _ := reg.Definition(s)
			sv := StageView{Name: s.String(), Title: s.Title(), DependsOn: []string{}, Critical: def.Critical, Skip: def.Skip}
			for _, d := range def.DependsOn {
				sv.DependsOn = append(sv.DependsOn, d.String())
			}
			if def.Timeout > 0 {
				sv.Timeout = def.Timeout.String()
			}
			gv.Stages = append(gv.Stages, sv)
		}
		out = append(out, gv)
	}
	return out
}

func (h *WorkflowHandler) lookup(c *gin.Context) (execution.Snapshot, bool) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "workflow id is required"})
		return execution.Snapshot{}, false
	}
	snap, err := h.svc.Status(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, runner.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "workflow not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return execution.Snapshot{}, false
	}
	return snap, true
}
