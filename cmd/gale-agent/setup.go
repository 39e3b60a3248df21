package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gale-deploy/agent/internal/config"
	"github.com/gale-deploy/agent/internal/deploy"
	"github.com/gale-deploy/agent/internal/events"
	"github.com/gale-deploy/agent/internal/hostinfo"
	"github.com/gale-deploy/agent/internal/installer"
	"github.com/gale-deploy/agent/internal/journal"
	"github.com/gale-deploy/agent/internal/logging"
	"github.com/gale-deploy/agent/internal/manifest"
	"github.com/gale-deploy/agent/internal/mtls"
	"github.com/gale-deploy/agent/internal/records"
	"github.com/gale-deploy/agent/internal/secmem"
	"github.com/gale-deploy/agent/internal/selector"
	"github.com/gale-deploy/agent/internal/transfer"
	"github.com/gale-deploy/agent/internal/transfer/sources"
	"github.com/gale-deploy/agent/internal/unlock"
	"github.com/gale-deploy/agent/internal/updates"
)

// runtime holds one command invocation's wired-up components.
type runtime struct {
	cfg       *config.Config
	engine    *deploy.Engine
	level     installer.Level
	manifests string

	ws      *events.WebsocketSink
	roller  *logging.RotatingWriter
	journal *journal.Writer
}

func newRuntime() (*runtime, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	result := cfg.ValidateTiered()
	if result.HasFatals() {
		return nil, errors.Join(result.Fatals...)
	}

	rt := &runtime{cfg: cfg}

	var out io.Writer
	if cfg.LogFile != "" {
		rt.roller, err = logging.NewRotatingWriter(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out = logging.TeeWriter(os.Stdout, rt.roller)
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, out)
	result.LogWarnings(logging.L("config"))

	for _, dir := range []string{cfg.CacheDir, cfg.LogDir, cfg.StateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	rt.level, err = installer.ParseLevel(cfg.Interactivity)
	if err != nil {
		return nil, err
	}
	if levelFlag != "" {
		rt.level, err = installer.ParseLevel(levelFlag)
		if err != nil {
			return nil, err
		}
	}

	rt.manifests = manifestDir
	if rt.manifests == "" {
		rt.manifests = config.ManifestDir()
	}

	bus := events.NewBus()
	bus.Attach(events.NewLogSink())
	if cfg.EventsURL != "" {
		tlsCfg, err := mtls.ClientConfig(cfg.EventsClientCert, cfg.EventsClientKey, cfg.EventsCACert)
		if err != nil {
			return nil, fmt.Errorf("events tls: %w", err)
		}
		rt.ws = events.NewWebsocketSink(cfg.EventsURL, secmem.New(cfg.EventsToken))
		rt.ws.TLSConfig = tlsCfg
		rt.ws.Start()
		bus.Attach(rt.ws)
	}

	// A broken journal is logged and skipped. Deployments must not
	// stall because the audit trail is unwritable.
	jw, err := journal.NewWriter(journalPath(cfg), cfg.JournalMaxSizeMB, cfg.JournalMaxBackups)
	if err != nil {
		logging.L("journal").Warn("journal disabled", logging.KeyError, err)
	} else {
		rt.journal = jw
		bus.Attach(journal.NewSink(jw))
	}

	stateFile := statePath(cfg)
	ledger := records.NewStateSource(stateFile)

	var matcher deploy.RecordMatcher = records.FuzzyMatcher{}
	if exactMatch {
		matcher = records.ExactMatcher{}
	}

	rt.engine = deploy.New(deploy.Deps{
		Selector: selector.New(hostinfo.Collect()),
		Fetcher: transfer.NewService(
			time.Duration(cfg.DownloadTimeoutSeconds)*time.Second, sources.Defaults()...),
		Updates:  updates.NewTracker(filepath.Join(cfg.StateDir, "updates.json")),
		Unlocker: unlock.New(),
		Records:  records.NewSystemSource(stateFile),
		Matcher:  matcher,
		Recorder: ledger,
		Events:   bus,
		CacheDir: cfg.CacheDir,
		LogDir:   cfg.LogDir,
	})

	return rt, nil
}

func (rt *runtime) Close() {
	if rt.ws != nil {
		rt.ws.Stop()
	}
	if rt.journal != nil {
		rt.journal.Close()
	}
	if rt.roller != nil {
		rt.roller.Close()
	}
}

func statePath(cfg *config.Config) string {
	return filepath.Join(cfg.StateDir, "installed.json")
}

func journalPath(cfg *config.Config) string {
	return filepath.Join(cfg.StateDir, "journal.jsonl")
}

// availablePackages loads every manifest in the manifest directory.
// Broken manifests are reported but do not hide the rest.
func (rt *runtime) availablePackages() ([]*manifest.Package, error) {
	pkgs, err := manifest.LoadDir(rt.manifests)
	if err != nil && len(pkgs) == 0 {
		return nil, fmt.Errorf("load manifests from %s: %w", rt.manifests, err)
	}
	if err != nil {
		logging.L("manifest").Warn("some manifests failed to load", logging.KeyError, err)
	}
	return pkgs, nil
}

// resolvePackages maps install arguments to package descriptors. An
// argument naming a YAML file loads that file directly; anything else
// is looked up by package ID in the manifest directory.
func (rt *runtime) resolvePackages(ids []string) ([]*manifest.Package, error) {
	var available []*manifest.Package

	out := make([]*manifest.Package, 0, len(ids))
	for _, id := range ids {
		ext := strings.ToLower(filepath.Ext(id))
		if ext == ".yaml" || ext == ".yml" {
			pkg, err := manifest.Load(id)
			if err != nil {
				return nil, err
			}
			rt.resolveLocations(pkg)
			out = append(out, pkg)
			continue
		}

		if available == nil {
			var err error
			available, err = rt.availablePackages()
			if err != nil {
				return nil, err
			}
		}

		found := false
		for _, pkg := range available {
			if strings.EqualFold(pkg.ID, id) {
				rt.resolveLocations(pkg)
				out = append(out, pkg)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("no manifest for package %q in %s", id, rt.manifests)
		}
	}
	return out, nil
}

// resolveLocations rewrites repo-relative installer locations against
// the first configured repo.
func (rt *runtime) resolveLocations(pkg *manifest.Package) {
	var repoURL string
	if len(rt.cfg.Repos) > 0 {
		repoURL = rt.cfg.Repos[0].URL
	}
	for i := range pkg.Installers {
		pkg.Installers[i].Location = manifest.ResolveLocation(repoURL, pkg.Installers[i].Location)
	}
}
