// Package publish pushes the generated application to a git repository using
// go-git, so no git binary is required.
package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Defaults for commits created by the publisher.
const (
	DefaultAuthorName  = "appgen"
	DefaultAuthorEmail = "appgen@appgen.local"
	DefaultRemoteName  = "origin"
)

var (
	// ErrEmptyBundle is returned when there is nothing to commit.
	ErrEmptyBundle = errors.New("bundle has no files")
	// ErrInvalidPath is returned for bundle paths that escape the repository.
	ErrInvalidPath = errors.New("invalid bundle path")
)

// File is one file of a bundle, addressed by a slash-separated relative path.
type File struct {
	Path    string
	Content string
}

// Bundle is the set of files published for one execution.
type Bundle struct {
	ExecutionID string
	Message     string
	Files       []File
}

// Publisher stores a bundle somewhere addressable and returns its URL.
type Publisher interface {
	Publish(ctx context.Context, b Bundle) (string, error)
}

// debugLogger is a no-op unless set via SetDebugLogger.
var debugLogger func(format string, args ...any)

// SetDebugLogger configures the debug logger for publish operations.
func SetDebugLogger(logger func(format string, args ...any)) {
	debugLogger = logger
}

func logDebug(format string, args ...any) {
	if debugLogger != nil {
		debugLogger(format, args...)
	}
}

// GitOptions configures a GitPublisher.
type GitOptions struct {
	// Root is the directory holding one repository per execution.
	Root string
	// Remote, when set, is pushed to after committing.
	Remote      string
	AuthorName  string
	AuthorEmail string
}

// GitPublisher commits each bundle into <root>/<execution-id> and optionally
// pushes it to a remote.
type GitPublisher struct {
	opts GitOptions
}

// NewGitPublisher validates opts and applies author defaults.
func NewGitPublisher(opts GitOptions) (*GitPublisher, error) {
	if strings.TrimSpace(opts.Root) == "" {
		return nil, errors.New("publish root directory is required")
	}
	if opts.AuthorName == "" {
		opts.AuthorName = DefaultAuthorName
	}
	if opts.AuthorEmail == "" {
		opts.AuthorEmail = DefaultAuthorEmail
	}
	return &GitPublisher{opts: opts}, nil
}

// RepoDir returns the local repository directory for an execution.
func (p *GitPublisher) RepoDir(executionID string) string {
	return filepath.Join(p.opts.Root, executionID)
}

// Publish writes the bundle, commits it and pushes when a remote is configured.
// It returns the remote URL, or a file:// URL for the local repository.
func (p *GitPublisher) Publish(ctx context.Context, b Bundle) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(b.Files) == 0 {
		return "", ErrEmptyBundle
	}
	if b.ExecutionID == "" || strings.ContainsAny(b.ExecutionID, `/\`) || b.ExecutionID == ".." {
		return "", fmt.Errorf("%w: execution id %q", ErrInvalidPath, b.ExecutionID)
	}

	dir, err := filepath.Abs(p.RepoDir(b.ExecutionID))
	if err != nil {
		return "", fmt.Errorf("resolving repository path: %w", err)
	}
	repo, err := openOrInit(dir)
	if err != nil {
		return "", err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("getting worktree: %w", err)
	}

	for _, f := range b.Files {
		rel, err := cleanPath(f.Path)
		if err != nil {
			return "", err
		}
		full := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return "", fmt.Errorf("creating %s: %w", path.Dir(rel), err)
		}
		if err := os.WriteFile(full, []byte(f.Content), 0o644); err != nil {
			return "", fmt.Errorf("writing %s: %w", rel, err)
		}
		if _, err := wt.Add(rel); err != nil {
			return "", fmt.Errorf("staging %s: %w", rel, err)
		}
	}

	msg := b.Message
	if msg == "" {
		msg = "Generate application for execution " + b.ExecutionID
	}
	hash, err := wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{
			Name:  p.opts.AuthorName,
			Email: p.opts.AuthorEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("committing bundle: %w", err)
	}
	logDebug("[publish] committed %s in %s", hash, dir)

	if p.opts.Remote == "" {
		return "file://" + filepath.ToSlash(dir), nil
	}
	if err := push(ctx, repo, p.opts.Remote); err != nil {
		return "", err
	}
	return p.opts.Remote, nil
}

func openOrInit(dir string) (*git.Repository, error) {
	repo, err := git.PlainInit(dir, false)
	if errors.Is(err, git.ErrRepositoryAlreadyExists) {
		logDebug("[publish] reusing repository at %s", dir)
		repo, err = git.PlainOpen(dir)
	}
	if err != nil {
		return nil, fmt.Errorf("opening repository at %s: %w", dir, err)
	}
	return repo, nil
}

func push(ctx context.Context, repo *git.Repository, remote string) error {
	_, err := repo.CreateRemote(&config.RemoteConfig{Name: DefaultRemoteName, URLs: []string{remote}})
	if err != nil && !errors.Is(err, git.ErrRemoteExists) {
		return fmt.Errorf("configuring remote: %w", err)
	}

	logDebug("[publish] pushing to %s", remote)
	err = repo.PushContext(ctx, &git.PushOptions{
		RemoteName: DefaultRemoteName,
		Auth:       authFor(remote),
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("pushing to %s: %w", remote, err)
	}
	return nil
}

// cleanPath normalises a bundle path and rejects absolute or escaping paths.
func cleanPath(p string) (string, error) {
	if p == "" || path.IsAbs(p) || filepath.IsAbs(p) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	clean := path.Clean(strings.ReplaceAll(p, `\`, "/"))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") || clean == ".git" || strings.HasPrefix(clean, ".git/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return clean, nil
}
