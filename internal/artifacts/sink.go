// Package artifacts persists generated artifacts outside the execution record.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ariel-frischer/appgen/internal/execution"
)

// ErrInvalidName is returned for artifact or execution names that are not a
// single path element.
var ErrInvalidName = errors.New("invalid artifact name")

// Sink stores one artifact and returns a reference to the stored copy.
type Sink interface {
	Persist(ctx context.Context, executionID string, a execution.Artifact) (string, error)
}

// NopSink stores nothing and returns an empty reference.
type NopSink struct{}

// Persist implements Sink.
func (NopSink) Persist(context.Context, string, execution.Artifact) (string, error) {
	return "", nil
}

var extensions = map[string]string{
	"text/markdown":    ".md",
	"application/yaml": ".yaml",
	"application/json": ".json",
	"text/plain":       ".txt",
}

// Ext returns the file extension for a content type, ".txt" when unknown.
func Ext(contentType string) string {
	if ext, ok := extensions[contentType]; ok {
		return ext
	}
	return ".txt"
}

// FileName returns the on-disk name of an artifact.
func FileName(a execution.Artifact) string {
	return a.Name + Ext(a.ContentType)
}

// DirSink writes artifacts to <dir>/<execution-id>/<name><ext>.
type DirSink struct {
	dir string
}

// NewDirSink creates a sink rooted at dir. The directory is created lazily.
func NewDirSink(dir string) *DirSink {
	return &DirSink{dir: dir}
}

// Dir returns the sink root.
func (s *DirSink) Dir() string {
	return s.dir
}

// Path returns where an artifact of the execution is written.
func (s *DirSink) Path(executionID string, a execution.Artifact) string {
	return filepath.Join(s.dir, executionID, FileName(a))
}

// Persist writes the artifact content and returns the file path.
func (s *DirSink) Persist(ctx context.Context, executionID string, a execution.Artifact) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := checkName(executionID); err != nil {
		return "", err
	}
	if err := checkName(a.Name); err != nil {
		return "", err
	}

	path := s.Path(executionID, a)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating artifact directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%w: %s", execution.ErrArtifactExists, path)
		}
		return "", fmt.Errorf("creating artifact file: %w", err)
	}
	if _, err := f.WriteString(a.Content); err != nil {
		f.Close()
		return "", fmt.Errorf("writing artifact %s: %w", a.Name, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing artifact %s: %w", a.Name, err)
	}
	return path, nil
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
