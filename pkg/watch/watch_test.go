package watch

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func TestParseInterval(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"30s", 30 * time.Second, false},
		{"5m", 5 * time.Minute, false},
		{"1h", time.Hour, false},
		{"24h", 24 * time.Hour, false},
		{"1d", 24 * time.Hour, false},
		{"7d", 7 * 24 * time.Hour, false},
		{"1d12h", 36 * time.Hour, false},
		{"2d6h", 54 * time.Hour, false},
		{"0s", 0, true},
		{"-1h", 0, true},
		{"invalid", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseInterval(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseInterval(%q) expected error, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Errorf("ParseInterval(%q) unexpected error: %v", tt.input, err)
				return
			}
			if got != tt.expected {
				t.Errorf("ParseInterval(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFormatInterval(t *testing.T) {
	tests := []struct {
		input    time.Duration
		expected string
	}{
		{30 * time.Second, "30s"},
		{5 * time.Minute, "5m"},
		{time.Hour, "1h"},
		{90 * time.Minute, "1h30m"},
		{24 * time.Hour, "1d"},
		{36 * time.Hour, "1d12h"},
		{7 * 24 * time.Hour, "7d"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			got := FormatInterval(tt.input)
			if got != tt.expected {
				t.Errorf("FormatInterval(%v) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestStateManager(t *testing.T) {
	tmpDir := t.TempDir()
	const u = "https://pixhost.to/gallery/AbC12"

	sm := NewStateManager(tmpDir)
	if err := sm.Load(); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if !sm.ShouldRun(u, time.Hour) {
		t.Error("ShouldRun() should return true for a new URL")
	}

	sm.RecordRun(u, RunResult{Emitted: 3, Archived: 1}, nil)

	if sm.ShouldRun(u, time.Hour) {
		t.Error("ShouldRun() should return false immediately after a run")
	}

	state, ok := sm.GetURLState(u)
	if !ok {
		t.Fatal("GetURLState() should return true for a recorded URL")
	}
	if !state.LastRunSuccess || state.Emitted != 3 || state.Archived != 1 || state.TotalEmitted != 3 {
		t.Errorf("unexpected state after first run: %+v", state)
	}

	if err := sm.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, stateFileName)); os.IsNotExist(err) {
		t.Error("State file should exist after Save()")
	}

	sm2 := NewStateManager(tmpDir)
	if err := sm2.Load(); err != nil {
		t.Fatalf("Load() from saved state failed: %v", err)
	}
	state2, ok := sm2.GetURLState(u)
	if !ok {
		t.Fatal("GetURLState() should return true after Load()")
	}
	if state2.TotalEmitted != 3 {
		t.Errorf("Loaded TotalEmitted = %d, want 3", state2.TotalEmitted)
	}
}

func TestStateManager_RecordRunAccumulates(t *testing.T) {
	sm := NewStateManager(t.TempDir())
	_ = sm.Load()
	const u = "https://pimpandhost.com/album/xYz9"

	sm.RecordRun(u, RunResult{Emitted: 5}, nil)
	sm.RecordRun(u, RunResult{Emitted: 2, Archived: 5}, nil)
	sm.RecordRun(u, RunResult{}, errors.New("status 503"))

	state, _ := sm.GetURLState(u)
	if state.LastRunSuccess {
		t.Error("LastRunSuccess should be false after a failed run")
	}
	if state.ErrorMessage != "status 503" {
		t.Errorf("ErrorMessage = %q, want 'status 503'", state.ErrorMessage)
	}
	if state.TotalEmitted != 7 {
		t.Errorf("TotalEmitted = %d, want 7 (failed runs keep the total)", state.TotalEmitted)
	}
	if len(sm.GetAllURLStates()) != 1 {
		t.Errorf("GetAllURLStates() returned %d states, want 1", len(sm.GetAllURLStates()))
	}
}

func TestStateManager_LoadCorrupt(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, stateFileName), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := NewStateManager(tmpDir).Load(); err == nil {
		t.Error("Load() should fail on a corrupt state file")
	}
}

func TestStateManagerGetNextRunTime(t *testing.T) {
	sm := NewStateManager(t.TempDir())
	_ = sm.Load()
	interval := time.Hour

	nextRun := sm.GetNextRunTime("new", interval)
	if time.Since(nextRun) > time.Second {
		t.Error("GetNextRunTime() for a new URL should be approximately now")
	}

	sm.RecordRun("existing", RunResult{Emitted: 1}, nil)
	state, _ := sm.GetURLState("existing")
	expected := state.LastRunTime.Add(interval)
	if got := sm.GetNextRunTime("existing", interval); got.Sub(expected) > time.Millisecond {
		t.Errorf("GetNextRunTime() = %v, want %v", got, expected)
	}
}

func TestScheduler_RunsDueURLsThenStops(t *testing.T) {
	tmpDir := t.TempDir()
	urls := []string{"https://pixhost.to/gallery/a", "https://pixhost.to/gallery/b"}

	// b ran recently and is not due yet
	pre := NewStateManager(tmpDir)
	_ = pre.Load()
	pre.RecordRun(urls[1], RunResult{Emitted: 4}, nil)
	if err := pre.Save(); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var ran []string
	done := make(chan struct{})
	run := func(ctx context.Context, rawURL string) (RunResult, error) {
		mu.Lock()
		ran = append(ran, rawURL)
		mu.Unlock()
		close(done)
		return RunResult{Emitted: 2}, nil
	}

	s := NewScheduler(context.Background(), tmpDir, urls, time.Hour, run, testLogger())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run() }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler never ran the due URL")
	}
	s.Stop()
	if err := <-errCh; err != nil {
		t.Fatalf("Run() returned %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(ran) != 1 || ran[0] != urls[0] {
		t.Errorf("ran %v, want only %s", ran, urls[0])
	}

	status := s.GetStatus()
	if status[urls[0]].NeverRun || status[urls[0]].State.TotalEmitted != 2 {
		t.Errorf("unexpected status for %s: %+v", urls[0], status[urls[0]])
	}
	if status[urls[1]].State.TotalEmitted != 4 {
		t.Errorf("status for %s lost its history: %+v", urls[1], status[urls[1]])
	}
}

func TestScheduler_CancelledRunNotRecorded(t *testing.T) {
	tmpDir := t.TempDir()
	const u = "https://pixhost.to/gallery/a"

	var s *Scheduler
	run := func(ctx context.Context, rawURL string) (RunResult, error) {
		s.Stop()
		<-ctx.Done()
		return RunResult{}, ctx.Err()
	}
	s = NewScheduler(context.Background(), tmpDir, []string{u}, time.Hour, run, testLogger())

	if err := s.Run(); err != nil {
		t.Fatalf("Run() returned %v", err)
	}
	if _, ok := s.stateManager.GetURLState(u); ok {
		t.Error("an interrupted run should not be recorded")
	}
}

func TestScheduler_FailedRunRecorded(t *testing.T) {
	const u = "https://pixhost.to/gallery/a"
	s := NewScheduler(context.Background(), t.TempDir(), []string{u}, time.Hour,
		func(ctx context.Context, rawURL string) (RunResult, error) {
			return RunResult{}, errors.New("boom")
		}, testLogger())

	s.runDueURLs()

	state, ok := s.stateManager.GetURLState(u)
	if !ok || state.LastRunSuccess || state.ErrorMessage != "boom" {
		t.Errorf("unexpected state: %+v (ok=%v)", state, ok)
	}
}

func TestCalculateTickInterval(t *testing.T) {
	tests := []struct {
		interval time.Duration
		want     time.Duration
	}{
		{5 * time.Minute, time.Minute},
		{30 * time.Minute, 3 * time.Minute},
		{24 * time.Hour, 10 * time.Minute},
	}
	for _, tt := range tests {
		s := &Scheduler{interval: tt.interval}
		if got := s.calculateTickInterval(); got != tt.want {
			t.Errorf("calculateTickInterval(%v) = %v, want %v", tt.interval, got, tt.want)
		}
	}
}
