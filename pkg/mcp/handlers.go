package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Sriram-PR/gallery-scraper/pkg/crawler"
	"github.com/Sriram-PR/gallery-scraper/pkg/output"
	"github.com/Sriram-PR/gallery-scraper/pkg/utils"
)

// handleListExtractors handles the list_extractors tool
func (s *Server) handleListExtractors(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sites := s.cfg.Registry.Sites()
	extractors := make([]map[string]interface{}, 0, len(sites))

	for _, site := range sites {
		patterns := make([]map[string]interface{}, 0, len(site.Patterns))
		for _, p := range site.Patterns {
			patterns = append(patterns, map[string]interface{}{
				"subcategory": p.Subcategory,
				"variant":     p.Variant.String(),
				"pattern":     p.Expr.String(),
			})
		}
		info := map[string]interface{}{
			"category": site.Category,
			"patterns": patterns,
		}
		if s.cfg.AppConfig.SiteFor(site.Category).Disabled {
			info["disabled"] = true
		}
		extractors = append(extractors, info)
	}

	result := map[string]interface{}{
		"extractors":  extractors,
		"config_path": s.cfg.ConfigPath,
		"total_sites": len(extractors),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleMatchURL handles the match_url tool
func (s *Server) handleMatchURL(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL := request.GetString("url", "")
	if rawURL == "" {
		return mcp.NewToolResultError("url parameter is required"), nil
	}

	d, ok := s.cfg.Registry.Select(rawURL)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("%v: %s", utils.ErrNoExtractor, rawURL)), nil
	}

	result := map[string]interface{}{
		"url":         rawURL,
		"category":    d.Site.Category,
		"subcategory": d.Pattern.Subcategory,
		"variant":     d.Pattern.Variant.String(),
		"captures":    d.Captures,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleExtract handles the extract tool
func (s *Server) handleExtract(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL := request.GetString("url", "")
	if rawURL == "" {
		return mcp.NewToolResultError("url parameter is required"), nil
	}

	// Fail fast on unsupported URLs, even for background jobs
	if _, ok := s.cfg.Registry.Select(rawURL); !ok {
		return mcp.NewToolResultError(fmt.Sprintf("%v: %s", utils.ErrNoExtractor, rawURL)), nil
	}

	if !request.GetBool("background", false) {
		summary, records, err := s.runExtraction(ctx, rawURL)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("extraction failed [%s]: %v", utils.CategorizeError(err), err)), nil
		}
		result := map[string]interface{}{
			"summary": summary.Summary,
			"records": records,
		}
		return mcp.NewToolResultText(formatJSON(result)), nil
	}

	job, created := s.jobManager.CreateJob(rawURL)
	if !created {
		result := map[string]interface{}{
			"status":  "already_running",
			"message": "An extraction is already in progress for this URL",
			"job_id":  job.ID,
			"url":     rawURL,
		}
		return mcp.NewToolResultText(formatJSON(result)), nil
	}

	go s.runExtractJob(job.ID, rawURL)

	result := map[string]interface{}{
		"status":  "started",
		"message": "Extraction started successfully",
		"job_id":  job.ID,
		"url":     rawURL,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleGetJobStatus handles the get_job_status tool
func (s *Server) handleGetJobStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	job := s.jobManager.GetJob(jobID)
	if job == nil {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}

	result := map[string]interface{}{
		"job_id":     job.ID,
		"url":        job.URL,
		"status":     job.Status,
		"started_at": job.StartedAt.Format(time.RFC3339),
		"emitted":    job.Emitted,
		"archived":   job.Archived,
		"failed":     job.Failed,
	}

	if !job.CompletedAt.IsZero() {
		result["completed_at"] = job.CompletedAt.Format(time.RFC3339)
		result["duration_seconds"] = job.CompletedAt.Sub(job.StartedAt).Seconds()
	}
	if job.Status == JobStatusCompleted {
		records, err := splitRecords([]byte(job.Output))
		if err == nil {
			result["records"] = records
		}
	}
	if job.ErrorMessage != "" {
		result["error_message"] = job.ErrorMessage
	}

	return mcp.NewToolResultText(formatJSON(result)), nil
}

// runExtractJob runs an extraction in the background
func (s *Server) runExtractJob(jobID, rawURL string) {
	s.jobManager.UpdateStatus(jobID, JobStatusRunning, "")
	jobCtx := s.jobManager.GetContext(jobID)

	summary, _, err := s.runExtraction(jobCtx, rawURL)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.jobManager.UpdateStatus(jobID, JobStatusCancelled, "")
		} else {
			s.jobManager.UpdateStatus(jobID, JobStatusFailed, err.Error())
		}
		return
	}
	s.jobManager.Finish(jobID, summary.Emitted, summary.Archived, summary.Failed, summary.output)
	s.jobManager.UpdateStatus(jobID, JobStatusCompleted, "")
}

type extraction struct {
	*crawler.Summary
	output string
}

// runExtraction runs one crawl into an in-memory output stream.
func (s *Server) runExtraction(ctx context.Context, rawURL string) (*extraction, []json.RawMessage, error) {
	var buf bytes.Buffer
	out := output.NewWriterManager(s.cfg.AppConfig, &buf, s.log)
	c := crawler.NewCrawler(s.cfg.AppConfig, s.cfg.Registry, s.cfg.Fetcher, s.cfg.Store, out, s.log)

	summary, err := c.Run(ctx, rawURL)
	if closeErr := out.Close(); closeErr != nil {
		s.log.Warnf("Failed to finalize output for %s: %v", rawURL, closeErr)
	}
	if err != nil {
		return nil, nil, err
	}

	records, err := splitRecords(buf.Bytes())
	if err != nil {
		return nil, nil, err
	}
	return &extraction{Summary: summary, output: buf.String()}, records, nil
}

// splitRecords turns a JSON Lines stream into individual raw records
func splitRecords(data []byte) ([]json.RawMessage, error) {
	records := make([]json.RawMessage, 0)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			return nil, fmt.Errorf("invalid output record: %s", line)
		}
		records = append(records, json.RawMessage(bytes.Clone(line)))
	}
	return records, scanner.Err()
}

// formatJSON formats data as indented JSON
func formatJSON(data map[string]interface{}) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}", err.Error())
	}
	return string(b)
}
