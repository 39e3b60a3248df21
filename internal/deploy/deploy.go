// Package deploy orchestrates install and uninstall operations: locate
// an installer, stage it, drive the right adapter, classify the exit
// code, and keep the host's record state current.
package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/gale-deploy/agent/internal/events"
	"github.com/gale-deploy/agent/internal/installer"
	"github.com/gale-deploy/agent/internal/logging"
	"github.com/gale-deploy/agent/internal/manifest"
	"github.com/gale-deploy/agent/internal/records"
	"github.com/gale-deploy/agent/internal/updates"
)

var log = logging.L("deploy")

// InstallerSelector picks the best installer candidate for this host.
type InstallerSelector interface {
	Best(candidates []manifest.Installer) (*manifest.Installer, error)
}

// Fetcher stages an installer artifact locally, verifying integrity.
type Fetcher interface {
	Fetch(ctx context.Context, location, destDir, expectedSHA256 string) (string, error)
}

// UpdateSource tracks prior installations per package.
type UpdateSource interface {
	UpdatesFor(packageID string) ([]updates.Installation, error)
	Note(packageID, version, installPath string) error
	Forget(packageID string) error
}

// Unlocker releases holds on an installation path.
type Unlocker interface {
	Unlock(path, method string) error
}

// RecordSource enumerates installed software and resolves uninstall keys.
type RecordSource interface {
	Records() ([]records.Record, error)
	Key(recordID string) (string, error)
}

// RecordMatcher resolves a caller-supplied target against the
// installed-record set. Zero, one, or many results.
type RecordMatcher interface {
	Match(recs []records.Record, target string) []records.Record
}

// Recorder maintains the agent's own installed-software ledger.
type Recorder interface {
	Note(rec records.Record, key string) error
	Forget(recordID string) error
}

// ProcessRunner launches an installer and blocks until it exits.
type ProcessRunner interface {
	Run(exe string, args []string) (int, error)
}

// Deps are the engine's collaborators. Selector and Fetcher are
// required for installs, Records and Matcher for uninstalls. Adapters,
// Runner, and Events default when nil; the bookkeeping collaborators
// (Updates, Recorder, Unlocker) are optional.
type Deps struct {
	Selector InstallerSelector
	Fetcher  Fetcher
	Updates  UpdateSource
	Unlocker Unlocker
	Records  RecordSource
	Matcher  RecordMatcher
	Recorder Recorder
	Runner   ProcessRunner
	Adapters *installer.Registry
	Events   events.Sink

	CacheDir string
	LogDir   string
}

// Options are the per-invocation knobs.
type Options struct {
	// Level is the requested interactivity; the effective level may
	// degrade based on what the adapter and package support.
	Level installer.Level
}

// Engine runs one sequential pipeline per operation. It keeps no
// mutable state of its own, so concurrent operations on distinct
// packages are safe.
type Engine struct {
	deps Deps
}

func New(deps Deps) *Engine {
	if deps.Adapters == nil {
		deps.Adapters = installer.Default()
	}
	if deps.Runner == nil {
		deps.Runner = installer.ExecRunner{}
	}
	if deps.Events == nil {
		deps.Events = noopSink{}
	}
	return &Engine{deps: deps}
}

// Install drives one package install end to end. A non-zero installer
// exit surfaces as *ExecError; a process that could not start at all
// surfaces the runner's launch error instead.
func (e *Engine) Install(ctx context.Context, pkg *manifest.Package, opts Options) error {
	opID := events.NewOperationID()
	logger := logging.WithOperation(log, opID, pkg.ID)
	start := time.Now()

	e.deps.Events.Publish(events.Accepted{
		OperationID: opID, Op: events.OpInstall,
		Package: pkg.ID, Version: pkg.Version, At: start,
	})
	logger.Info("install beginning",
		"name", pkg.DisplayName(), "version", pkg.Version, "method", pkg.Method)

	chosen, err := e.deps.Selector.Best(pkg.Installers)
	if err != nil {
		return fmt.Errorf("locate installer for %s: %w", pkg.ID, err)
	}

	localPath, err := e.deps.Fetcher.Fetch(ctx, chosen.Location, e.deps.CacheDir, chosen.SHA256)
	if err != nil {
		return fmt.Errorf("stage installer for %s: %w", pkg.ID, err)
	}

	e.releasePriorInstallations(logger, pkg)

	ad, err := e.deps.Adapters.Install(pkg.Method)
	if err != nil {
		return err
	}

	err = e.execute(logger, execution{
		opID:      opID,
		op:        events.OpInstall,
		pkg:       pkg.ID,
		display:   pkg.DisplayName(),
		version:   pkg.Version,
		adapter:   ad,
		target:    localPath,
		overrides: pkg.Args,
		level:     opts.Level,
	})
	if err != nil {
		return err
	}

	e.noteInstalled(logger, pkg)
	logger.Info("install successful",
		"version", pkg.Version, logging.KeyDurationMs, time.Since(start).Milliseconds())
	return nil
}

// Uninstall resolves target against the installed records and, on an
// unambiguous match, drives the matching uninstall adapter. Zero
// matches and ambiguous matches end the operation without error and
// without touching the host.
func (e *Engine) Uninstall(ctx context.Context, target string, opts Options) error {
	opID := events.NewOperationID()
	logger := logging.WithOperation(log, opID, target)
	start := time.Now()

	e.deps.Events.Publish(events.Accepted{
		OperationID: opID, Op: events.OpUninstall, Package: target, At: start,
	})
	logger.Info("uninstall beginning")

	recs, err := e.deps.Records.Records()
	if err != nil {
		return fmt.Errorf("enumerate installed records: %w", err)
	}

	matches := e.deps.Matcher.Match(recs, target)
	switch len(matches) {
	case 1:
	case 0:
		logger.Warn("no installed record matches target, nothing to uninstall")
		return nil
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = strings.TrimSpace(m.DisplayName + " " + m.Version)
		}
		logger.Warn("target matches more than one installed record, refusing to guess",
			"count", len(matches), "candidates", strings.Join(names, ", "))
		return nil
	}

	rec := matches[0]
	if rec.InstallPath != "" && e.deps.Unlocker != nil {
		if err := e.deps.Unlocker.Unlock(rec.InstallPath, rec.Method); err != nil {
			logger.Warn("could not release installation path",
				"path", rec.InstallPath, logging.KeyError, err)
		}
	}

	key, err := e.deps.Records.Key(rec.ID)
	if err != nil {
		return fmt.Errorf("resolve uninstall key for %s: %w", rec.DisplayName, err)
	}
	if key == "" {
		return fmt.Errorf("record %s has no uninstall key", rec.DisplayName)
	}

	ad, err := e.deps.Adapters.Uninstall(rec.Method)
	if err != nil {
		return err
	}

	err = e.execute(logger, execution{
		opID:    opID,
		op:      events.OpUninstall,
		pkg:     target,
		display: rec.DisplayName,
		version: rec.Version,
		adapter: ad,
		target:  key,
		level:   opts.Level,
	})
	if err != nil {
		return err
	}

	e.forgetRecord(logger, rec)
	logger.Info("uninstall successful",
		"name", rec.DisplayName, logging.KeyDurationMs, time.Since(start).Milliseconds())
	return nil
}

// execution is the shared tail of both pipelines: resolve the command,
// build arguments, run, classify.
type execution struct {
	opID      string
	op        events.Op
	pkg       string
	display   string
	version   string
	adapter   *installer.Adapter
	target    string
	overrides installer.ArgOverrides
	level     installer.Level
}

func (e *Engine) execute(logger *slog.Logger, x execution) error {
	exe, argv := x.adapter.Resolve(x.target)
	logPath := installer.LogFilePath(e.deps.LogDir, x.display)

	level := installer.ResolveLevel(x.level, x.overrides, x.adapter)
	args := installer.BuildArguments(level, x.overrides, x.adapter, logPath)
	argv = append(argv, args.Tokens...)

	command := strings.TrimSpace(exe + " " + installer.Arguments{Tokens: argv}.String())
	e.deps.Events.Publish(events.Executing{
		OperationID: x.opID, Op: x.op, Package: x.pkg, Command: command, At: time.Now(),
	})
	logger.Info("executing installer", "command", command, "level", level.String())

	exitCode, err := e.deps.Runner.Run(exe, argv)
	if err != nil {
		e.deps.Events.Publish(events.Failed{
			OperationID: x.opID, Op: x.op, Package: x.pkg,
			ExitCode: -1, Reason: err.Error(), At: time.Now(),
		})
		return fmt.Errorf("run installer for %s: %w", x.display, err)
	}

	res := installer.Classify(exitCode, x.adapter, args.LogPath)
	if !res.Succeeded {
		e.deps.Events.Publish(events.Failed{
			OperationID: x.opID, Op: x.op, Package: x.pkg,
			ExitCode: res.ExitCode, Reason: res.Reason, LogPath: res.LogPath, At: time.Now(),
		})
		logger.Error("installer failed",
			"exitCode", res.ExitCode, "reason", res.Reason, "logPath", res.LogPath)
		return &ExecError{
			Package:  x.display,
			ExitCode: res.ExitCode,
			Reason:   res.Reason,
			LogPath:  res.LogPath,
		}
	}

	e.deps.Events.Publish(events.Succeeded{
		OperationID: x.opID, Op: x.op, Package: x.pkg, Version: x.version, At: time.Now(),
	})
	return nil
}

// releasePriorInstallations unlocks every known prior installation
// path before the installer replaces files. Best effort per entry;
// entries without a path are skipped.
func (e *Engine) releasePriorInstallations(logger *slog.Logger, pkg *manifest.Package) {
	if e.deps.Updates == nil || e.deps.Unlocker == nil {
		return
	}
	priors, err := e.deps.Updates.UpdatesFor(pkg.ID)
	if err != nil {
		logger.Warn("could not look up prior installations", logging.KeyError, err)
		return
	}
	for _, prior := range priors {
		if prior.InstallPath == "" {
			continue
		}
		logger.Info("releasing prior installation",
			"version", prior.Version, "path", prior.InstallPath)
		if err := e.deps.Unlocker.Unlock(prior.InstallPath, pkg.Method); err != nil {
			logger.Warn("could not fully release prior installation",
				"path", prior.InstallPath, logging.KeyError, err)
		}
	}
}

func (e *Engine) noteInstalled(logger *slog.Logger, pkg *manifest.Package) {
	if e.deps.Updates != nil {
		if err := e.deps.Updates.Note(pkg.ID, pkg.Version, pkg.InstallPath); err != nil {
			logger.Warn("could not record installation in update state", logging.KeyError, err)
		}
	}
	if e.deps.Recorder != nil {
		rec := records.Record{
			ID:          pkg.ID,
			DisplayName: pkg.DisplayName(),
			Version:     pkg.Version,
			Method:      pkg.Method,
			InstallPath: pkg.InstallPath,
		}
		if err := e.deps.Recorder.Note(rec, uninstallKey(pkg)); err != nil {
			logger.Warn("could not record installation in ledger", logging.KeyError, err)
		}
	}
}

func (e *Engine) forgetRecord(logger *slog.Logger, rec records.Record) {
	if e.deps.Recorder != nil {
		if err := e.deps.Recorder.Forget(rec.ID); err != nil {
			logger.Warn("could not drop record from ledger", logging.KeyError, err)
		}
	}
	if e.deps.Updates != nil {
		if err := e.deps.Updates.Forget(rec.ID); err != nil {
			logger.Warn("could not drop update history", logging.KeyError, err)
		}
	}
}

// uninstallKey derives the opaque uninstall key for an install the
// agent performed itself, when the technology makes it derivable.
func uninstallKey(pkg *manifest.Package) string {
	if pkg.Method == installer.MethodSquirrel && pkg.InstallPath != "" {
		return filepath.Join(pkg.InstallPath, "Update.exe")
	}
	return ""
}

type noopSink struct{}

func (noopSink) Publish(events.Event) {}
