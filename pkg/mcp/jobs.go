package mcp

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Sriram-PR/gallery-scraper/pkg/parse"
)

// JobStatus represents the current state of an extraction job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

func (s JobStatus) active() bool {
	return s == JobStatusPending || s == JobStatusRunning
}

// Job represents a background extraction
type Job struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	Status       JobStatus `json:"status"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at,omitempty"`
	Emitted      int       `json:"emitted"`
	Archived     int       `json:"archived"`
	Failed       int       `json:"failed"`
	Output       string    `json:"-"` // JSON Lines produced by the run
	ErrorMessage string    `json:"error_message,omitempty"`

	ctx    context.Context
	cancel context.CancelFunc
}

// JobManager tracks background extractions. At most one active job per URL.
type JobManager struct {
	jobs  map[string]*Job
	mu    sync.RWMutex
	byURL map[string]string // jobKey(url) -> jobID for active jobs
}

// NewJobManager creates a new job manager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:  make(map[string]*Job),
		byURL: make(map[string]string),
	}
}

// CreateJob registers a job for url, or returns the one already active for it.
// The bool reports whether a new job was created.
func (m *JobManager) CreateJob(url string) (*Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, exists := m.byURL[jobKey(url)]; exists {
		if existing := m.jobs[id]; existing != nil && existing.Status.active() {
			return existing, false
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := &Job{
		ID:        uuid.NewString(),
		URL:       url,
		Status:    JobStatusPending,
		StartedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
	m.jobs[job.ID] = job
	m.byURL[jobKey(url)] = job.ID
	return job, true
}

// GetJob returns a snapshot of the job, or nil.
func (m *JobManager) GetJob(jobID string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil
	}
	snapshot := *job
	return &snapshot
}

// IsRunning checks whether an extraction of url is active
func (m *JobManager) IsRunning(url string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, exists := m.byURL[jobKey(url)]; exists {
		job := m.jobs[id]
		return job != nil && job.Status.active()
	}
	return false
}

// UpdateStatus moves a job to status. Terminal states release the URL.
// A cancelled job stays cancelled.
func (m *JobManager) UpdateStatus(jobID string, status JobStatus, errorMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[jobID]
	if !exists || job.Status == JobStatusCancelled {
		return
	}
	job.Status = status
	if !status.active() {
		job.CompletedAt = time.Now()
		job.cancel()
		if key := jobKey(job.URL); m.byURL[key] == job.ID {
			delete(m.byURL, key)
		}
	}
	if errorMsg != "" {
		job.ErrorMessage = errorMsg
	}
}

// Finish records the counters and output of a completed run
func (m *JobManager) Finish(jobID string, emitted, archived, failed int, output string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, exists := m.jobs[jobID]; exists {
		job.Emitted, job.Archived, job.Failed = emitted, archived, failed
		job.Output = output
	}
}

// CancelJob cancels an active job
func (m *JobManager) CancelJob(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[jobID]
	if !exists || !job.Status.active() {
		return false
	}
	job.cancel()
	job.Status = JobStatusCancelled
	job.CompletedAt = time.Now()
	delete(m.byURL, jobKey(job.URL))
	return true
}

// CancelAll cancels every active job
func (m *JobManager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, job := range m.jobs {
		if job.Status.active() {
			job.cancel()
			job.Status = JobStatusCancelled
			job.CompletedAt = time.Now()
		}
	}
	m.byURL = make(map[string]string)
}

// ListJobs returns snapshots of all jobs
func (m *JobManager) ListJobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		snapshot := *job
		jobs = append(jobs, &snapshot)
	}
	return jobs
}

// GetContext returns the context the job's extraction runs under
func (m *JobManager) GetContext(jobID string) context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if job, exists := m.jobs[jobID]; exists {
		return job.ctx
	}
	return context.Background()
}

// jobKey folds URLs that differ only in case, default port, trailing slash
// or fragment. URLs that do not parse are used as is.
func jobKey(url string) string {
	if key, _, err := parse.ParseAndNormalize(url); err == nil {
		return key
	}
	return url
}
