package cli

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/ariel-frischer/appgen/internal/artifacts"
	"github.com/ariel-frischer/appgen/internal/config"
	cerrors "github.com/ariel-frischer/appgen/internal/errors"
	"github.com/ariel-frischer/appgen/internal/events"
	"github.com/ariel-frischer/appgen/internal/generator"
	"github.com/ariel-frischer/appgen/internal/handlers"
	"github.com/ariel-frischer/appgen/internal/history"
	"github.com/ariel-frischer/appgen/internal/notify"
	"github.com/ariel-frischer/appgen/internal/publish"
	"github.com/ariel-frischer/appgen/internal/runner"
	"github.com/ariel-frischer/appgen/internal/store"
	"github.com/ariel-frischer/appgen/internal/workflow"
	"github.com/spf13/cobra"
)

// loadConfig resolves the configuration for cmd, applying --state-dir and
// --set on top of the file and environment layers.
func loadConfig(cmd *cobra.Command) (*config.Configuration, error) {
	opts, err := loadOptions(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadWithOptions(opts)
	if err != nil {
		if cerrors.IsCLIError(err) {
			return nil, err
		}
		return nil, cerrors.ConfigParseError(configPathForError(opts), err)
	}
	return cfg, nil
}

func loadOptions(cmd *cobra.Command) (config.LoadOptions, error) {
	path, _ := cmd.Flags().GetString("config")
	sets, _ := cmd.Flags().GetStringArray("set")
	stateDir, _ := cmd.Flags().GetString("state-dir")

	opts := config.LoadOptions{ProjectConfigPath: path, Overrides: map[string]interface{}{}}
	for _, kv := range sets {
		key, value, err := config.ParseOverride(kv)
		if err != nil {
			return opts, cerrors.Wrap(err, cerrors.Argument,
				"Use --set key=value with a key from: appgen config keys")
		}
		opts.Overrides[key] = value
	}
	if stateDir != "" {
		opts.Overrides["state_dir"] = stateDir
	}
	return opts, nil
}

func configPathForError(opts config.LoadOptions) string {
	if opts.ProjectConfigPath != "" {
		return opts.ProjectConfigPath
	}
	return config.ProjectConfigPath()
}

// app bundles the configured collaborators shared by the commands.
type app struct {
	cfg      *config.Configuration
	logger   *log.Logger
	debug    bool
	notifier *notify.Handler
	history  *history.Writer

	closers []io.Closer
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	debug, _ := cmd.Flags().GetBool("debug")

	logger := log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
	notifier := notify.NewHandler(cfg.Notifications)
	notifier.SetDebug(logger, debug)
	if debug {
		publish.SetDebugLogger(func(format string, args ...any) {
			logger.Printf("[DEBUG][publish] "+format, args...)
		})
	}

	hist := history.NewWriter(cfg.StateDir, cfg.MaxHistoryEntries)
	hist.Warnings = cmd.ErrOrStderr()

	return &app{
		cfg:      cfg,
		logger:   logger,
		debug:    debug,
		notifier: notifier,
		history:  hist,
	}, nil
}

func (a *app) debugLog(format string, args ...interface{}) {
	if a.debug {
		a.logger.Printf("[DEBUG][cli] "+format, args...)
	}
}

// registry builds the stage registry with the configured generator, artifact
// sink and publisher.
func (a *app) registry() (*workflow.Registry, error) {
	gen, err := generator.New(a.cfg.Generator.Type, a.cfg.Generator.Command)
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.Configuration,
			"Fix generator.type and generator.command in your config file")
	}
	if cg, ok := gen.(*generator.CommandGenerator); ok {
		if err := cg.Validate(); err != nil {
			return nil, cerrors.GeneratorNotFound(a.cfg.Generator.Command, err)
		}
	}

	var sink artifacts.Sink = artifacts.NopSink{}
	if a.cfg.ArtifactsDir != "" {
		sink = artifacts.NewDirSink(a.cfg.ArtifactsDir)
	}

	opts := handlers.Options{Generator: gen, Sink: sink}
	if a.cfg.Publish.Enabled {
		pub, err := publish.NewGitPublisher(publish.GitOptions{
			Root:        a.cfg.Publish.Root,
			Remote:      a.cfg.Publish.Remote,
			AuthorName:  a.cfg.Publish.AuthorName,
			AuthorEmail: a.cfg.Publish.AuthorEmail,
		})
		if err != nil {
			return nil, cerrors.Wrap(err, cerrors.Configuration, "Set publish.root or disable publishing with publish.enabled: false")
		}
		opts.Publisher = pub
	}
	a.debugLog("generator=%s sink=%T publish=%v", a.cfg.Generator.Type, sink, a.cfg.Publish.Enabled)

	reg, err := workflow.NewDefaultRegistry(handlers.Default(opts))
	if err != nil {
		return nil, fmt.Errorf("building stage registry: %w", err)
	}
	return reg, nil
}

// openStore opens the snapshot database. The caller owns the returned store
// unless it was registered with a.own.
func (a *app) openStore() (*store.Store, error) {
	st, err := store.Open(a.cfg.DBPath)
	if err != nil {
		return nil, cerrors.StateDirNotWritable(a.cfg.DBPath, err)
	}
	return st, nil
}

func (a *app) own(c io.Closer) {
	a.closers = append(a.closers, c)
}

// manager wires a runner with persistence, the event log, notifications and
// any extra options.
func (a *app) manager(extra ...runner.Option) (*runner.Manager, error) {
	reg, err := a.registry()
	if err != nil {
		return nil, err
	}
	st, err := a.openStore()
	if err != nil {
		return nil, err
	}
	a.own(st)

	logs, err := events.NewLogWriter(a.cfg.LogDir())
	if err != nil {
		return nil, cerrors.StateDirNotWritable(a.cfg.LogDir(), err)
	}
	a.own(logs)

	opts := []runner.Option{
		runner.WithStore(st),
		runner.WithReporter(logs),
		runner.WithReporter(a.notifier),
		runner.WithLogger(a.logger),
		runner.WithDebug(a.debug),
		runner.WithSchedulerOptions(
			workflow.WithStageTimeout(a.cfg.StageTimeout),
			workflow.WithMaxParallel(a.cfg.MaxParallel),
			workflow.WithLogger(a.logger),
			workflow.WithDebug(a.debug),
		),
	}
	return runner.New(reg, append(opts, extra...)...), nil
}

// Close releases everything the app opened, newest first.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

