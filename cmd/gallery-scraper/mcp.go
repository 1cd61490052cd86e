package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	applog "github.com/Sriram-PR/gallery-scraper/pkg/log"
	"github.com/Sriram-PR/gallery-scraper/pkg/mcp"
	"github.com/Sriram-PR/gallery-scraper/pkg/sites"
	"github.com/Sriram-PR/gallery-scraper/pkg/storage"
)

// runMcpServer handles the mcp-server subcommand
func runMcpServer(args []string) {
	fs := flag.NewFlagSet("mcp-server", flag.ExitOnError)
	configFile := fs.String("config", "", "Path to config file (optional)")
	envFile := fs.String("env-file", ".env", "Env file with GALLERY_SCRAPER_* overrides (ignored if missing)")
	transport := fs.String("transport", "stdio", "Transport type (stdio, sse)")
	port := fs.Int("port", 8080, "HTTP port (for sse transport)")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: gallery-scraper mcp-server [options]

Start an MCP (Model Context Protocol) server for AI tool integration.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Start with stdio transport
  gallery-scraper mcp-server -config config.yaml

  # Start with SSE transport on port 8080
  gallery-scraper mcp-server -config config.yaml -transport sse -port 8080

Available MCP Tools:
  list_extractors  List supported sites and URL patterns
  match_url        Report which site module handles a URL
  extract          Extract a URL into download records (optionally in background)
  get_job_status   Check a background extraction
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doMcpServer(*configFile, *envFile, *transport, *port, *logLevel, os.Stderr))
}

// doMcpServer is the testable implementation of the MCP server
func doMcpServer(configPath, envFile, transport string, port int, logLevel string, stderr io.Writer) int {
	if transport != "stdio" && transport != "sse" {
		fmt.Fprintf(stderr, "Error: unknown transport: %s (supported: stdio, sse)\n", transport)
		return 1
	}

	// MCP protocol uses stdout, logs go to stderr
	log := applog.NewLogger(logLevel, stderr)

	appCfg, err := loadAndValidateConfig(configPath, envFile, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}

	logEntry := log.WithField("component", "mcp")
	pages := newPageClient(appCfg, logEntry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var store storage.ArchiveStore
	if appCfg.Archive.Enabled {
		store, err = storage.Open(ctx, appCfg.Archive, logEntry)
		if err != nil {
			fmt.Fprintf(stderr, "Error opening archive: %v\n", err)
			return 1
		}
		defer store.Close()
	}

	server, err := mcp.NewServer(&mcp.ServerConfig{
		AppConfig:  appCfg,
		ConfigPath: configPath,
		Transport:  transport,
		Port:       port,
		Logger:     log,
		Registry:   sites.NewRegistry(),
		Fetcher:    pages,
		Store:      store,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error creating MCP server: %v\n", err)
		return 1
	}
	defer server.Shutdown(ctx)

	log.Infof("Starting MCP server (transport: %s)", transport)

	if err := server.Run(); err != nil {
		fmt.Fprintf(stderr, "MCP server error: %v\n", err)
		return 1
	}

	return 0
}
