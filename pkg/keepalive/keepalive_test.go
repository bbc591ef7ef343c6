package keepalive

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeMaintainer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeMaintainer) Maintain(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func TestNewRejectsInvalidSpec(t *testing.T) {
	if _, err := New("every now and then", &fakeMaintainer{}, 0); err == nil {
		t.Error("Expected error for invalid cron spec")
	}
}

func TestRunOnce(t *testing.T) {
	m := &fakeMaintainer{}
	s, err := New("*/10 * * * *", m, time.Second)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	st := s.Status()
	if m.calls != 1 || st.Runs != 1 || st.Status != JobStatusCompleted {
		t.Errorf("Expected one completed run, got calls=%d status=%+v", m.calls, st)
	}
	if st.LastRun.IsZero() {
		t.Error("Expected LastRun to be set")
	}

	m.err = errors.New("restart failed")
	if err := s.RunOnce(context.Background()); err == nil {
		t.Fatal("Expected maintenance error")
	}
	st = s.Status()
	if st.Status != JobStatusFailed || st.Failures != 1 || st.LastError != "restart failed" {
		t.Errorf("Expected failed status, got %+v", st)
	}
}

func TestStartStop(t *testing.T) {
	s, err := New("@every 1h", &fakeMaintainer{}, 0)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if s.jobTimeout != DefaultJobTimeout {
		t.Errorf("Expected default job timeout, got %v", s.jobTimeout)
	}

	s.Start()
	if s.Status().NextRun.IsZero() {
		t.Error("Expected next run once started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
