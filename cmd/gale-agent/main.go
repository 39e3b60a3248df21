package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/gale-deploy/agent/internal/cache"
	"github.com/gale-deploy/agent/internal/config"
	"github.com/gale-deploy/agent/internal/deploy"
	"github.com/gale-deploy/agent/internal/health"
	"github.com/gale-deploy/agent/internal/hostinfo"
	"github.com/gale-deploy/agent/internal/manifest"
	"github.com/gale-deploy/agent/internal/privilege"
	"github.com/gale-deploy/agent/internal/records"
	"github.com/gale-deploy/agent/internal/workerpool"
)

var (
	version = "0.1.0"

	cfgFile     string
	manifestDir string
	levelFlag   string
	exactMatch  bool

	pruneOlderDays int
	pruneMaxMB     int
)

var rootCmd = &cobra.Command{
	Use:   "gale-agent",
	Short: "Gale deployment agent",
	Long:  `Gale Agent - drives MSI, Inno Setup, NSIS, and Squirrel installers from package manifests`,
}

var installCmd = &cobra.Command{
	Use:   "install <package-id>...",
	Short: "Install one or more packages",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runInstall(args)
	},
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <target>",
	Short: "Uninstall an installed package",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runUninstall(args[0])
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available package manifests",
	Run: func(cmd *cobra.Command, args []string) {
		runList()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show host facts, health checks, and installed software",
	Run: func(cmd *cobra.Command, args []string) {
		runStatus()
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the downloaded installer cache",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached installer artifacts",
	Run: func(cmd *cobra.Command, args []string) {
		runCacheList()
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove stale artifacts and shrink the cache",
	Run: func(cmd *cobra.Command, args []string) {
		runCachePrune()
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached artifact",
	Run: func(cmd *cobra.Command, args []string) {
		runCacheClear()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Gale Agent v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is the platform config dir)")
	rootCmd.PersistentFlags().StringVar(&manifestDir, "manifest-dir", "", "package manifest directory")

	installCmd.Flags().StringVar(&levelFlag, "level", "", "interactivity level: silent, passive, or interactive")
	uninstallCmd.Flags().StringVar(&levelFlag, "level", "", "interactivity level: silent, passive, or interactive")
	uninstallCmd.Flags().BoolVar(&exactMatch, "exact", false, "match the target exactly instead of loosely")

	cachePruneCmd.Flags().IntVar(&pruneOlderDays, "older-than", 0, "remove artifacts older than this many days (0 uses cache_retention_days)")
	cachePruneCmd.Flags().IntVar(&pruneMaxMB, "max-size", 0, "evict oldest artifacts beyond this many MB (0 uses cache_max_size_mb)")

	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runInstall(ids []string) {
	rt, err := newRuntime()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}
	defer rt.Close()

	pkgs, err := rt.resolvePackages(ids)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if !privilege.IsElevated() {
		for _, pkg := range pkgs {
			if privilege.RequiresElevation(pkg.Method) {
				fmt.Fprintf(os.Stderr, "Warning: not running elevated; %s (%s) likely needs administrator rights\n", pkg.ID, pkg.Method)
			}
		}
	}

	opts := deploy.Options{Level: rt.level}
	pool := workerpool.New(rt.cfg.MaxConcurrentInstalls, rt.cfg.InstallQueueSize)

	var mu sync.Mutex
	failures := make(map[string]error)
	for _, pkg := range pkgs {
		pkg := pkg
		ok := pool.Submit(func() {
			if err := rt.engine.Install(context.Background(), pkg, opts); err != nil {
				mu.Lock()
				failures[pkg.ID] = err
				mu.Unlock()
			}
		})
		if !ok {
			mu.Lock()
			failures[pkg.ID] = errors.New("install queue full")
			mu.Unlock()
		}
	}
	// Installers can legitimately run for minutes; wait them out.
	pool.Shutdown(context.Background())

	if len(failures) > 0 {
		for _, pkg := range pkgs {
			if err, ok := failures[pkg.ID]; ok {
				fmt.Fprintf(os.Stderr, "%s: %v\n", pkg.ID, err)
			}
		}
		os.Exit(1)
	}
	fmt.Printf("%d package(s) installed\n", len(pkgs))
}

func runUninstall(target string) {
	rt, err := newRuntime()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}
	defer rt.Close()

	if !privilege.IsElevated() {
		fmt.Fprintln(os.Stderr, "Warning: not running elevated; machine-wide uninstalls likely need administrator rights")
	}

	if err := rt.engine.Uninstall(context.Background(), target, deploy.Options{Level: rt.level}); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", target, err)
		os.Exit(1)
	}
}

func runList() {
	rt, err := newRuntime()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}
	defer rt.Close()

	pkgs, err := rt.availablePackages()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if len(pkgs) == 0 {
		fmt.Printf("No package manifests in %s\n", rt.manifests)
		return
	}

	fmt.Printf("%-24s %-32s %-14s %s\n", "ID", "NAME", "VERSION", "METHOD")
	for _, pkg := range pkgs {
		fmt.Printf("%-24s %-32s %-14s %s\n", pkg.ID, pkg.DisplayName(), pkg.Version, pkg.Method)
	}
}

func runStatus() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Println("Status: Not configured")
		return
	}

	host := hostinfo.Collect()
	fmt.Printf("Host: %s (%s/%s %s)\n", host.Hostname, host.OS, host.Arch, host.OSVersion)
	fmt.Printf("Elevated: %s\n", yesNo(privilege.IsElevated()))
	fmt.Printf("Cache: %s\n", cfg.CacheDir)
	fmt.Printf("State: %s\n", cfg.StateDir)
	for _, repo := range cfg.Repos {
		fmt.Printf("Repo: %s (%s)\n", repo.Name, repo.URL)
	}
	if cfg.EventsURL != "" {
		fmt.Printf("Events: %s\n", cfg.EventsURL)
	}

	source := records.NewSystemSource(statePath(cfg))
	recs, err := source.Records()
	if err != nil {
		fmt.Printf("Installed software: unavailable (%v)\n", err)
	} else {
		fmt.Printf("Installed software: %d records\n", len(recs))
	}

	dir := manifestDir
	if dir == "" {
		dir = config.ManifestDir()
	}

	mon := health.NewMonitor()
	mon.RunAll(
		health.DirWritable("cache", cfg.CacheDir),
		health.DirWritable("logs", cfg.LogDir),
		health.DirWritable("state", cfg.StateDir),
		manifestProbe(dir),
	)

	fmt.Println("Health:")
	for _, chk := range mon.All() {
		if chk.Message != "" {
			fmt.Printf("  %-10s %-10s %s\n", chk.Name, chk.Status, chk.Message)
			continue
		}
		fmt.Printf("  %-10s %s\n", chk.Name, chk.Status)
	}
	fmt.Printf("Overall: %s\n", mon.Overall())
}

// manifestProbe grades the manifest directory: unreadable is unhealthy,
// partially loadable or empty is degraded.
func manifestProbe(dir string) health.Probe {
	return health.Probe{
		Name: "manifests",
		Run: func() (health.Status, string) {
			pkgs, err := manifest.LoadDir(dir)
			switch {
			case err != nil && len(pkgs) == 0:
				return health.Unhealthy, err.Error()
			case err != nil:
				return health.Degraded, fmt.Sprintf("%d loaded, some failed", len(pkgs))
			case len(pkgs) == 0:
				return health.Degraded, "no manifests in " + dir
			}
			return health.Healthy, fmt.Sprintf("%d manifest(s)", len(pkgs))
		},
	}
}

func openCache() (*cache.Store, *config.Config) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}
	return cache.New(cfg.CacheDir), cfg
}

func runCacheList() {
	store, cfg := openCache()
	entries, err := store.List()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if len(entries) == 0 {
		fmt.Printf("Cache is empty (%s)\n", cfg.CacheDir)
		return
	}

	fmt.Printf("%-44s %12s  %s\n", "ARTIFACT", "SIZE", "FETCHED")
	for _, e := range entries {
		fmt.Printf("%-44s %12s  %s\n", e.Name, formatSize(e.Size), e.ModTime.Format("2006-01-02 15:04"))
	}
	fmt.Printf("%d artifact(s), %s total\n", len(entries), formatSize(cache.TotalSize(entries)))
}

func runCachePrune() {
	store, cfg := openCache()

	days := pruneOlderDays
	if days == 0 {
		days = cfg.CacheRetentionDays
	}
	maxMB := pruneMaxMB
	if maxMB == 0 {
		maxMB = cfg.CacheMaxSizeMB
	}

	result, err := store.Prune(time.Duration(days)*24*time.Hour, int64(maxMB)<<20)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("Removed %d artifact(s), freed %s\n", result.Removed, formatSize(result.Freed))
}

func runCacheClear() {
	store, _ := openCache()
	result, err := store.Clear()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("Removed %d artifact(s), freed %s\n", result.Removed, formatSize(result.Freed))
}

func formatSize(n int64) string {
	const mb = 1 << 20
	if n >= mb {
		return fmt.Sprintf("%.1f MB", float64(n)/mb)
	}
	return fmt.Sprintf("%d KB", (n+1023)/1024)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
