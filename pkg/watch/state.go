package watch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Sriram-PR/gallery-scraper/pkg/utils"
)

const stateFileName = "watch_state.json"

// URLState contains the last run information for a watched URL
type URLState struct {
	LastRunTime    time.Time `json:"last_run_time"`
	LastRunSuccess bool      `json:"last_run_success"`
	Emitted        int       `json:"emitted"`       // New items in the last run
	Archived       int       `json:"archived"`      // Already-seen items in the last run
	TotalEmitted   int       `json:"total_emitted"` // New items across all runs
	ErrorMessage   string    `json:"error_message,omitempty"`
}

// WatchState contains the persistent state for the watch scheduler
type WatchState struct {
	URLs      map[string]URLState `json:"urls"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// StateManager handles persisting and loading watch state
type StateManager struct {
	stateDir  string
	statePath string
	state     WatchState
	mu        sync.RWMutex
}

// NewStateManager creates a new state manager
func NewStateManager(stateDir string) *StateManager {
	return &StateManager{
		stateDir:  stateDir,
		statePath: filepath.Join(stateDir, stateFileName),
		state: WatchState{
			URLs: make(map[string]URLState),
		},
	}
}

// Load loads the state from disk. A missing file starts fresh.
func (m *StateManager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			m.state = WatchState{URLs: make(map[string]URLState)}
			return nil
		}
		return fmt.Errorf("%w: read state file: %w", utils.ErrFilesystem, err)
	}

	if err := json.Unmarshal(data, &m.state); err != nil {
		return fmt.Errorf("failed to parse state file: %w", err)
	}
	if m.state.URLs == nil {
		m.state.URLs = make(map[string]URLState)
	}
	return nil
}

// Save saves the state to disk
func (m *StateManager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.UpdatedAt = time.Now()

	if err := os.MkdirAll(m.stateDir, 0755); err != nil {
		return fmt.Errorf("%w: create state directory: %w", utils.ErrFilesystem, err)
	}

	data, err := json.MarshalIndent(m.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := os.WriteFile(m.statePath, data, 0644); err != nil {
		return fmt.Errorf("%w: write state file: %w", utils.ErrFilesystem, err)
	}
	return nil
}

// GetURLState returns the state for a specific URL
func (m *StateManager) GetURLState(rawURL string) (URLState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.state.URLs[rawURL]
	return state, ok
}

// RecordRun stores the outcome of a run. Failed runs keep the running total.
func (m *StateManager) RecordRun(rawURL string, res RunResult, runErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.state.URLs[rawURL]
	state := URLState{
		LastRunTime:    time.Now(),
		LastRunSuccess: runErr == nil,
		TotalEmitted:   prev.TotalEmitted,
	}
	if runErr != nil {
		state.ErrorMessage = runErr.Error()
	} else {
		state.Emitted = res.Emitted
		state.Archived = res.Archived
		state.TotalEmitted += res.Emitted
	}
	m.state.URLs[rawURL] = state
}

// ShouldRun checks if a URL is due based on the interval
func (m *StateManager) ShouldRun(rawURL string, interval time.Duration) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.state.URLs[rawURL]
	if !ok {
		return true
	}
	return time.Since(state.LastRunTime) >= interval
}

// GetNextRunTime returns when the URL should next run
func (m *StateManager) GetNextRunTime(rawURL string, interval time.Duration) time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.state.URLs[rawURL]
	if !ok {
		return time.Now()
	}
	return state.LastRunTime.Add(interval)
}

// GetAllURLStates returns a copy of all URL states
func (m *StateManager) GetAllURLStates() map[string]URLState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]URLState, len(m.state.URLs))
	for k, v := range m.state.URLs {
		result[k] = v
	}
	return result
}
