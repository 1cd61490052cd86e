// Package watch re-extracts a fixed set of URLs on an interval. Paired with
// an archive store, each pass only emits items added since the last one.
package watch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/gallery-scraper/pkg/utils"
)

// RunResult is what the scheduler keeps from one extraction
type RunResult struct {
	Emitted  int
	Archived int
}

// RunFunc extracts one URL
type RunFunc func(ctx context.Context, rawURL string) (RunResult, error)

// Scheduler manages periodic extraction of URLs
type Scheduler struct {
	urls         []string
	interval     time.Duration
	run          RunFunc
	log          *logrus.Entry
	stateManager *StateManager

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a new watch scheduler. Runs are derived from ctx.
func NewScheduler(ctx context.Context, stateDir string, urls []string, interval time.Duration, run RunFunc, log *logrus.Entry) *Scheduler {
	ctx, cancel := context.WithCancel(ctx)
	return &Scheduler{
		urls:         urls,
		interval:     interval,
		run:          run,
		log:          log,
		stateManager: NewStateManager(stateDir),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Run starts the watch scheduler and blocks until stopped
func (s *Scheduler) Run() error {
	if err := s.stateManager.Load(); err != nil {
		s.log.Warnf("Failed to load watch state: %v (starting fresh)", err)
	}

	s.log.Infof("Starting watch mode for %d URLs with interval %v", len(s.urls), FormatInterval(s.interval))
	s.logSchedule()

	s.runDueURLs()

	ticker := time.NewTicker(s.calculateTickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.log.Info("Watch scheduler shutting down...")
			return nil
		case <-ticker.C:
			s.runDueURLs()
		}
	}
}

// Stop stops the watch scheduler and cancels any extraction in progress
func (s *Scheduler) Stop() {
	s.log.Info("Stopping watch scheduler...")
	s.cancel()
}

// runDueURLs extracts every due URL in order, saving state after each one
func (s *Scheduler) runDueURLs() {
	due := s.getDueURLs()
	if len(due) == 0 {
		s.logNextRun()
		return
	}

	s.log.Infof("Running extraction for %d due URLs", len(due))
	for _, u := range due {
		if s.ctx.Err() != nil {
			return
		}
		res, err := s.run(s.ctx, u)
		if err != nil && errors.Is(err, context.Canceled) {
			return // Interrupted, not a failed run
		}
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"url":        u,
				"error_type": utils.CategorizeError(err),
			}).Errorf("Watch run failed: %v", err)
		} else {
			s.log.WithField("url", u).Infof("Watch run: %d new, %d already archived", res.Emitted, res.Archived)
		}
		s.stateManager.RecordRun(u, res, err)
		if err := s.stateManager.Save(); err != nil {
			s.log.Errorf("Failed to save watch state: %v", err)
		}
	}
	s.logNextRun()
}

// getDueURLs returns the URLs that are due for a run
func (s *Scheduler) getDueURLs() []string {
	var due []string
	for _, u := range s.urls {
		if s.stateManager.ShouldRun(u, s.interval) {
			due = append(due, u)
		}
	}
	return due
}

// calculateTickInterval returns how often to check for due URLs
func (s *Scheduler) calculateTickInterval() time.Duration {
	// At least every minute, at most every 10 minutes, else 1/10th of the interval
	checkInterval := s.interval / 10
	if checkInterval < time.Minute {
		checkInterval = time.Minute
	}
	if checkInterval > 10*time.Minute {
		checkInterval = 10 * time.Minute
	}
	return checkInterval
}

// logSchedule logs the current schedule
func (s *Scheduler) logSchedule() {
	s.log.Info("Watch schedule:")
	for _, u := range s.urls {
		state, exists := s.stateManager.GetURLState(u)
		if !exists {
			s.log.Infof("  %s: never run, will run immediately", u)
			continue
		}
		status := "success"
		if !state.LastRunSuccess {
			status = "failed"
		}
		s.log.Infof("  %s: last run %v (%s, %d items total), next run %v",
			u,
			state.LastRunTime.Format(time.RFC3339),
			status,
			state.TotalEmitted,
			s.stateManager.GetNextRunTime(u, s.interval).Format(time.RFC3339))
	}
}

// logNextRun logs when the next run will occur
func (s *Scheduler) logNextRun() {
	type nextRun struct {
		url  string
		time time.Time
	}
	var runs []nextRun
	for _, u := range s.urls {
		runs = append(runs, nextRun{u, s.stateManager.GetNextRunTime(u, s.interval)})
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].time.Before(runs[j].time)
	})

	if len(runs) > 0 {
		next := runs[0]
		until := max(time.Until(next.time), 0)
		s.log.Infof("Next run: %s in %v (at %s)", next.url, until.Round(time.Second), next.time.Format("15:04:05"))
	}
}

// GetStatus returns the current status of all watched URLs
func (s *Scheduler) GetStatus() map[string]URLStatus {
	status := make(map[string]URLStatus, len(s.urls))
	for _, u := range s.urls {
		state, exists := s.stateManager.GetURLState(u)
		status[u] = URLStatus{
			URL:         u,
			State:       state,
			NextRunTime: s.stateManager.GetNextRunTime(u, s.interval),
			NeverRun:    !exists,
		}
	}
	return status
}

// URLStatus contains the status of a watched URL
type URLStatus struct {
	URL         string
	State       URLState
	NextRunTime time.Time
	NeverRun    bool
}

// FormatInterval formats a duration for display
func FormatInterval(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		mins := int(d.Minutes()) % 60
		if mins > 0 {
			return fmt.Sprintf("%dh%dm", hours, mins)
		}
		return fmt.Sprintf("%dh", hours)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	if hours > 0 {
		return fmt.Sprintf("%dd%dh", days, hours)
	}
	return fmt.Sprintf("%dd", days)
}

// ParseInterval parses a duration string with support for days
func ParseInterval(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err == nil {
		if d <= 0 {
			return 0, fmt.Errorf("interval must be positive: %s", s)
		}
		return d, nil
	}

	var days int
	var remaining string
	n, _ := fmt.Sscanf(s, "%dd%s", &days, &remaining)
	if n >= 1 && days > 0 {
		d = time.Duration(days) * 24 * time.Hour
		if remaining != "" {
			extra, err := time.ParseDuration(remaining)
			if err != nil {
				return 0, fmt.Errorf("invalid interval format: %s", s)
			}
			d += extra
		}
		return d, nil
	}

	return 0, fmt.Errorf("invalid interval format: %s (examples: 30m, 1h, 24h, 7d)", s)
}
