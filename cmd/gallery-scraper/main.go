package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/gallery-scraper/pkg/config"
	"github.com/Sriram-PR/gallery-scraper/pkg/crawler"
	"github.com/Sriram-PR/gallery-scraper/pkg/extractor"
	"github.com/Sriram-PR/gallery-scraper/pkg/fetch"
	applog "github.com/Sriram-PR/gallery-scraper/pkg/log"
	"github.com/Sriram-PR/gallery-scraper/pkg/output"
	"github.com/Sriram-PR/gallery-scraper/pkg/sites"
	"github.com/Sriram-PR/gallery-scraper/pkg/storage"
	"github.com/Sriram-PR/gallery-scraper/pkg/utils"
)

const version = "0.4.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "extract":
		runExtract(os.Args[2:])
	case "watch":
		runWatch(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "list-extractors":
		runListExtractors(os.Args[2:])
	case "mcp-server":
		runMcpServer(os.Args[2:])
	case "version":
		fmt.Printf("gallery-scraper %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `gallery-scraper - Image gallery metadata extractor

Usage:
  gallery-scraper <command> [options]

Commands:
  extract          Extract gallery or image URLs into download records
  watch            Re-extract URLs on a schedule, emitting only new items
  validate         Validate configuration file
  list-extractors  List supported sites and URL patterns
  mcp-server       Start MCP server for AI tool integration
  version          Show version info

Run 'gallery-scraper <command> -h' for command-specific help.`)
}

// extractOptions are the parsed flags of the extract subcommand
type extractOptions struct {
	ConfigPath      string
	EnvFile         string
	LogLevel        string
	OutputPath      string
	PprofAddr       string
	WriteArchiveLog bool
	URLs            []string
}

// runExtract handles the extract subcommand
func runExtract(args []string) {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	configFile := fs.String("config", "", "Path to config file (optional, defaults apply without one)")
	envFile := fs.String("env-file", ".env", "Env file with GALLERY_SCRAPER_* overrides (ignored if missing)")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")
	outputPath := fs.String("output", "", "JSON Lines output file, '-' for stdout (overrides config)")
	pprofAddr := fs.String("pprof", "", "pprof address, e.g. localhost:6060 (disabled by default)")
	writeArchiveLog := fs.Bool("write-archive-log", false, "Write all archived keys to the state dir on completion")
	urlList := fs.String("urls", "", "Comma-separated URLs, in addition to positional ones")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: gallery-scraper extract [options] <url> [url...]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  gallery-scraper extract https://pixhost.to/gallery/AbC12\n")
		fmt.Fprintf(os.Stderr, "  gallery-scraper extract -config config.yaml -output out.jsonl https://pimpandhost.com/album/xYz9\n")
		fmt.Fprintf(os.Stderr, "  gallery-scraper extract 'piwigo:https://example.org/picture?/7290'\n")
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

	opts := extractOptions{
		ConfigPath:      *configFile,
		EnvFile:         *envFile,
		LogLevel:        *logLevel,
		OutputPath:      *outputPath,
		PprofAddr:       *pprofAddr,
		WriteArchiveLog: *writeArchiveLog,
		URLs:            urls,
	}
	os.Exit(doExtract(opts, os.Stdout, os.Stderr))
}

// loadAndValidateConfig loads the config file and env overrides, validates
// everything and logs warnings.
func loadAndValidateConfig(configFile, envFile string, log *logrus.Logger) (*config.AppConfig, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	if configFile != "" {
		log.Infof("Loading configuration from %s", configFile)
	}
	appCfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if err := appCfg.ApplyEnvOverrides(); err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrConfigValidation, err)
	}

	appWarnings, err := appCfg.Validate()
	for _, w := range appWarnings {
		log.Warn(w)
	}
	if err != nil {
		return nil, err
	}

	for _, key := range sortedSiteKeys(appCfg) {
		siteCfg := appCfg.Sites[key]
		siteWarnings, err := siteCfg.Validate()
		if err != nil {
			return nil, fmt.Errorf("site '%s': %w", key, err)
		}
		for _, w := range siteWarnings {
			log.Warnf("[%s] %s", key, w)
		}
		appCfg.Sites[key] = siteCfg
	}
	return appCfg, nil
}

// startPprof starts the pprof HTTP server if addr is non-empty.
func startPprof(addr string, log *logrus.Logger) {
	if addr != "" {
		go func() {
			log.Infof("Starting pprof server at http://%s/debug/pprof/", addr)
			if err := http.ListenAndServe(addr, nil); err != nil {
				log.Errorf("pprof server error: %v", err)
			}
		}()
	}
}

// handleSignals cancels ctx on SIGINT/SIGTERM. A second signal, or no exit
// within the grace period, terminates the process.
func handleSignals(ctx context.Context, cancel context.CancelFunc, log *logrus.Logger) (stop func()) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Warnf("Received signal: %v. Initiating graceful shutdown...", sig)
			cancel()
		case <-ctx.Done():
			return
		}

		select {
		case sig := <-sigChan:
			log.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn("Graceful shutdown period exceeded after signal. Forcing exit.")
			os.Exit(1)
		}
	}()
	return func() { signal.Stop(sigChan) }
}

// newPageClient builds the HTTP stack: pooled client, retrying fetcher, page reader.
func newPageClient(appCfg *config.AppConfig, log *logrus.Entry) *fetch.PageClient {
	httpClient := fetch.NewClient(appCfg.HTTPClientSettings, log)
	fetcher := fetch.NewFetcher(httpClient, fetch.RetryPolicyFromConfig(appCfg), log)
	return fetch.NewPageClient(fetcher, appCfg.DefaultUserAgent, appCfg.MaxPageSizeBytes, log)
}

// doExtract runs every URL through the crawler. Returns exit code
// (0 = all runs succeeded or were cancelled, 1 = any error).
func doExtract(opts extractOptions, stdout, stderr io.Writer) int {
	log := applog.NewLogger(opts.LogLevel, stderr)

	appCfg, err := loadAndValidateConfig(opts.ConfigPath, opts.EnvFile, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if opts.OutputPath != "" {
		appCfg.Output.Path = opts.OutputPath
	}

	registry := sites.NewRegistry()

	// Reject unsupported URLs before touching the network
	for _, u := range opts.URLs {
		if _, ok := registry.Select(u); !ok {
			fmt.Fprintf(stderr, "Error: %v: %s\n", utils.ErrNoExtractor, u)
			return 1
		}
	}

	startPprof(opts.PprofAddr, log)

	// ===========================================================
	// == Setup Global Context & Signal Handling ==
	// ===========================================================
	var ctx context.Context
	var cancel context.CancelFunc
	if appCfg.GlobalCrawlTimeout > 0 {
		log.Infof("Setting global crawl timeout: %v", appCfg.GlobalCrawlTimeout)
		ctx, cancel = context.WithTimeout(context.Background(), appCfg.GlobalCrawlTimeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	defer cancel()

	stopSignals := handleSignals(ctx, cancel, log)
	defer stopSignals()

	// ===========================================================
	// == Initialize Components ==
	// ===========================================================
	logEntry := log.WithField("component", "extract")

	pages := newPageClient(appCfg, logEntry)

	var store storage.ArchiveStore
	if appCfg.Archive.Enabled {
		store, err = storage.Open(ctx, appCfg.Archive, logEntry)
		if err != nil {
			fmt.Fprintf(stderr, "Error: failed to open archive: %v\n", err)
			return 1
		}
		defer store.Close()
	}

	// ===========================================================
	// == Run ==
	// ===========================================================
	exitCode := 0
	for _, u := range opts.URLs {
		summary, err := extractOne(ctx, appCfg, registry, pages, store, stdout, logEntry, u)
		if err != nil {
			switch {
			case errors.Is(err, context.Canceled):
				log.Warn("Extraction cancelled gracefully.")
				return exitCode
			case errors.Is(err, context.DeadlineExceeded):
				log.Error("Extraction timed out (global timeout).")
				return 1
			default:
				log.WithField("error_type", utils.CategorizeError(err)).Errorf("Extraction of %s failed: %v", u, err)
				exitCode = 1
				continue
			}
		}
		log.Infof("%s: %d emitted, %d archived, %d failed in %v",
			u, summary.Emitted, summary.Archived, summary.Failed, summary.Duration.Round(time.Millisecond))
	}

	if opts.WriteArchiveLog && store != nil {
		logPath := filepath.Join(appCfg.StateDir, "archive-keys.txt")
		if err := store.WriteArchiveLog(logPath); err != nil {
			log.Errorf("Error writing archive log: %v", err)
		}
	}
	return exitCode
}

// extractOne runs one URL with its own output manager, so each run gets
// its own metadata summary.
func extractOne(
	ctx context.Context,
	appCfg *config.AppConfig,
	registry *extractor.Registry,
	pages fetch.PageFetcher,
	store storage.ArchiveStore,
	stdout io.Writer,
	log *logrus.Entry,
	rawURL string,
) (*crawler.Summary, error) {
	out, err := output.NewManager(appCfg, stdout, log)
	if err != nil {
		return nil, err
	}
	summary, runErr := crawler.NewCrawler(appCfg, registry, pages, store, out, log).Run(ctx, rawURL)
	if err := out.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return summary, runErr
}

// runValidate handles the validate subcommand
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	siteKey := fs.String("site", "", "Site category to validate (optional, validates all if empty)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: gallery-scraper validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doValidate(*configFile, *siteKey, os.Stdout, os.Stderr))
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath, siteKey string, stdout, stderr io.Writer) int {
	appCfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	registry := sites.NewRegistry()
	validateSite := func(key string, siteCfg config.SiteConfig) bool {
		if _, ok := registry.Site(key); !ok {
			fmt.Fprintf(stderr, "ERROR: [%s] no such site (see list-extractors)\n", key)
			return false
		}
		siteWarnings, err := siteCfg.Validate()
		if err != nil {
			fmt.Fprintf(stderr, "ERROR: [%s] %v\n", key, err)
			return false
		}
		for _, w := range siteWarnings {
			fmt.Fprintf(stdout, "WARN: [%s] %s\n", key, w)
		}
		return true
	}

	if siteKey != "" {
		siteCfg, ok := appCfg.Sites[siteKey]
		if !ok {
			fmt.Fprintf(stderr, "Error: site '%s' not found in config\n", siteKey)
			return 1
		}
		if !validateSite(siteKey, siteCfg) {
			return 1
		}
		fmt.Fprintf(stdout, "OK: Site '%s' configuration is valid\n", siteKey)
	} else {
		hasError := false
		for _, key := range sortedSiteKeys(appCfg) {
			if !validateSite(key, appCfg.Sites[key]) {
				hasError = true
				continue
			}
			fmt.Fprintf(stdout, "OK: [%s]\n", key)
		}
		if hasError {
			return 1
		}
	}

	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}

// runListExtractors handles the list-extractors subcommand
func runListExtractors(args []string) {
	fs := flag.NewFlagSet("list-extractors", flag.ExitOnError)
	configFile := fs.String("config", "", "Path to config file (optional, marks disabled sites)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: gallery-scraper list-extractors [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doListExtractors(*configFile, os.Stdout, os.Stderr))
}

// doListExtractors lists the site modules in dispatch order.
// Returns exit code (0 = success, 1 = error).
func doListExtractors(configPath string, stdout, stderr io.Writer) int {
	appCfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintln(stdout, "Supported sites:")
	fmt.Fprintln(stdout)
	for _, site := range sites.NewRegistry().Sites() {
		name := site.Category
		if appCfg.SiteFor(site.Category).Disabled {
			name += " (disabled)"
		}
		fmt.Fprintf(stdout, "  %s\n", name)
		for _, p := range site.Patterns {
			fmt.Fprintf(stdout, "    %-8s %-12s %s\n", p.Subcategory, p.Variant, p.Expr)
		}
		fmt.Fprintln(stdout)
	}
	return 0
}

func sortedSiteKeys(appCfg *config.AppConfig) []string {
	keys := make([]string, 0, len(appCfg.Sites))
	for k := range appCfg.Sites {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// splitURLs splits a comma separated list, dropping blanks
func splitURLs(s string) []string {
	var urls []string
	for _, u := range strings.Split(s, ",") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}
