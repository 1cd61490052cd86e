package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Sriram-PR/gallery-scraper/pkg/config"
	applog "github.com/Sriram-PR/gallery-scraper/pkg/log"
	"github.com/Sriram-PR/gallery-scraper/pkg/sites"
	"github.com/Sriram-PR/gallery-scraper/pkg/storage"
	"github.com/Sriram-PR/gallery-scraper/pkg/utils"
	"github.com/Sriram-PR/gallery-scraper/pkg/watch"
)

// watchOptions are the parsed flags of the watch subcommand
type watchOptions struct {
	ConfigPath string
	EnvFile    string
	LogLevel   string
	OutputPath string
	Interval   string
	URLs       []string
}

// runWatch handles the watch subcommand
func runWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configFile := fs.String("config", "", "Path to config file (optional)")
	envFile := fs.String("env-file", ".env", "Env file with GALLERY_SCRAPER_* overrides (ignored if missing)")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")
	outputPath := fs.String("output", "", "JSON Lines output file, '-' for stdout (overrides config)")
	interval := fs.String("interval", "24h", "Re-extraction interval (e.g., 30m, 1h, 24h, 7d)")
	urlList := fs.String("urls", "", "Comma-separated URLs, in addition to positional ones")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: gallery-scraper watch [options] <url> [url...]\n\n")
		fmt.Fprintf(os.Stderr, "Re-extracts the URLs on an interval. The archive is always enabled, so each\n")
		fmt.Fprintf(os.Stderr, "pass only emits items that were not seen before.\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  gallery-scraper watch -interval 12h https://pimpandhost.com/album/xYz9\n")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	urls := append(splitURLs(*urlList), fs.Args()...)
	if len(urls) == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one URL is required")
		fs.Usage()
		os.Exit(1)
	}

	os.Exit(doWatch(watchOptions{
		ConfigPath: *configFile,
		EnvFile:    *envFile,
		LogLevel:   *logLevel,
		OutputPath: *outputPath,
		Interval:   *interval,
		URLs:       urls,
	}, os.Stdout, os.Stderr))
}

// doWatch runs the watch scheduler until interrupted.
// Returns exit code (0 = stopped cleanly, 1 = setup error).
func doWatch(opts watchOptions, stdout, stderr io.Writer) int {
	interval, err := watch.ParseInterval(opts.Interval)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	log := applog.NewLogger(opts.LogLevel, stderr)
	appCfg, err := loadAndValidateConfig(opts.ConfigPath, opts.EnvFile, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if opts.OutputPath != "" {
		appCfg.Output.Path = opts.OutputPath
	}
	if err := enableArchive(appCfg); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	registry := sites.NewRegistry()
	for _, u := range opts.URLs {
		if _, ok := registry.Select(u); !ok {
			fmt.Fprintf(stderr, "Error: %v: %s\n", utils.ErrNoExtractor, u)
			return 1
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopSignals := handleSignals(ctx, cancel, log)
	defer stopSignals()

	logEntry := log.WithField("component", "watch")
	pages := newPageClient(appCfg, logEntry)

	store, err := storage.Open(ctx, appCfg.Archive, logEntry)
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to open archive: %v\n", err)
		return 1
	}
	defer store.Close()

	run := func(ctx context.Context, rawURL string) (watch.RunResult, error) {
		summary, err := extractOne(ctx, appCfg, registry, pages, store, stdout, logEntry, rawURL)
		if err != nil {
			return watch.RunResult{}, err
		}
		return watch.RunResult{Emitted: summary.Emitted, Archived: summary.Archived}, nil
	}

	scheduler := watch.NewScheduler(ctx, appCfg.StateDir, opts.URLs, interval, run, logEntry)
	if err := scheduler.Run(); err != nil {
		fmt.Fprintf(stderr, "Watch scheduler error: %v\n", err)
		return 1
	}
	log.Info("Watch mode stopped")
	return 0
}

// enableArchive turns the archive on, filling its defaults if the config left it off.
func enableArchive(appCfg *config.AppConfig) error {
	if appCfg.Archive.Enabled {
		return nil
	}
	appCfg.Archive.Enabled = true
	_, err := appCfg.Validate()
	return err
}
