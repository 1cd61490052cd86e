package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/gallery-scraper/pkg/config"
	"github.com/Sriram-PR/gallery-scraper/pkg/extractor"
	"github.com/Sriram-PR/gallery-scraper/pkg/fetch"
	"github.com/Sriram-PR/gallery-scraper/pkg/storage"
)

const (
	serverName    = "gallery-scraper"
	serverVersion = "0.4.0"
)

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	AppConfig  *config.AppConfig
	ConfigPath string
	Transport  string // "stdio" or "sse"
	Port       int
	Logger     *logrus.Logger

	Registry *extractor.Registry
	Fetcher  fetch.PageFetcher
	Store    storage.ArchiveStore // Optional, enables archive filtering for extract
}

// Server exposes the extractor registry and engine as MCP tools
type Server struct {
	mcpServer  *server.MCPServer
	cfg        *ServerConfig
	log        *logrus.Entry
	jobManager *JobManager
}

// NewServer creates a new MCP server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("AppConfig is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("Registry is required")
	}
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("Fetcher is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithLogging(),
	)

	s := &Server{
		mcpServer:  mcpServer,
		cfg:        cfg,
		log:        cfg.Logger.WithField("component", "mcp"),
		jobManager: NewJobManager(),
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	// list_extractors - List site modules and their URL patterns
	listTool := mcp.NewTool("list_extractors",
		mcp.WithDescription("List the supported sites, their subcategories and URL patterns"),
	)
	s.mcpServer.AddTool(listTool, s.handleListExtractors)

	// match_url - Dispatch without fetching
	matchTool := mcp.NewTool("match_url",
		mcp.WithDescription("Report which site module and pattern would handle a URL, without fetching anything"),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Gallery or image URL, e.g. 'https://pixhost.to/gallery/AbC12'"),
		),
	)
	s.mcpServer.AddTool(matchTool, s.handleMatchURL)

	// extract - Run an extraction
	extractTool := mcp.NewTool("extract",
		mcp.WithDescription("Extract a gallery or image URL and return the directory and download records. With background=true returns a job ID immediately."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Gallery or image URL"),
		),
		mcp.WithBoolean("background",
			mcp.Description("Run as a background job and poll with get_job_status"),
		),
	)
	s.mcpServer.AddTool(extractTool, s.handleExtract)

	// get_job_status - Check a background extraction
	jobStatusTool := mcp.NewTool("get_job_status",
		mcp.WithDescription("Get the status of a background extraction job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by extract"),
		),
	)
	s.mcpServer.AddTool(jobStatusTool, s.handleGetJobStatus)

	s.log.Infof("Registered %d MCP tools", 4)
}

// Run starts the MCP server with the configured transport
func (s *Server) Run() error {
	switch s.cfg.Transport {
	case "stdio":
		s.log.Info("Starting MCP server with stdio transport")
		return server.ServeStdio(s.mcpServer)
	case "sse":
		addr := fmt.Sprintf(":%d", s.cfg.Port)
		s.log.Infof("Starting MCP server with SSE transport on %s", addr)
		sseServer := server.NewSSEServer(s.mcpServer)
		return sseServer.Start(addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}

// Shutdown cancels running extraction jobs
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down MCP server...")
	s.jobManager.CancelAll()
	return nil
}
