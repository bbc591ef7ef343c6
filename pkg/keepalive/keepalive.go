// Package keepalive runs session maintenance on a cron schedule so an idle
// session keeps fresh cookies between requests.
package keepalive

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"aliscan/pkg/logger"
)

// Job statuses
const (
	JobStatusScheduled = "scheduled"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// DefaultJobTimeout bounds one maintenance run.
const DefaultJobTimeout = 2 * time.Minute

// Maintainer is satisfied by *aliexpress.Client.
type Maintainer interface {
	Maintain(ctx context.Context) error
}

// JobStatus is a snapshot of the maintenance job.
type JobStatus struct {
	Spec      string    `json:"cron"`
	Status    string    `json:"status"`
	Runs      int       `json:"runs"`
	Failures  int       `json:"failures"`
	LastRun   time.Time `json:"last_run,omitempty"`
	NextRun   time.Time `json:"next_run,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// Scheduler triggers Maintain on a cron spec. Overlapping runs are skipped.
type Scheduler struct {
	cron       *cron.Cron
	target     Maintainer
	jobTimeout time.Duration
	entryID    cron.EntryID

	mu     sync.Mutex
	status JobStatus
}

// New parses spec (standard five-field syntax or descriptors like @every 5m)
// and registers the job. The scheduler is idle until Start.
func New(spec string, target Maintainer, jobTimeout time.Duration) (*Scheduler, error) {
	if jobTimeout <= 0 {
		jobTimeout = DefaultJobTimeout
	}

	s := &Scheduler{
		cron: cron.New(
			cron.WithChain(
				cron.Recover(cron.DefaultLogger),
				cron.SkipIfStillRunning(cron.DefaultLogger),
			),
		),
		target:     target,
		jobTimeout: jobTimeout,
		status:     JobStatus{Spec: spec, Status: JobStatusScheduled},
	}

	id, err := s.cron.AddFunc(spec, s.run)
	if err != nil {
		return nil, fmt.Errorf("failed to add keep-alive job: %w", err)
	}
	s.entryID = id

	logger.Info("Keep-alive job scheduled", zap.String("cron", spec))
	return s, nil
}

// Start begins firing the job in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Info("Keep-alive scheduler started", zap.Time("next_run", s.cron.Entry(s.entryID).Next))
}

// Stop waits for a running job to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		logger.Info("Keep-alive scheduler stopped")
	case <-ctx.Done():
		logger.Warn("Keep-alive shutdown timeout, maintenance may still be running")
	}
}

// RunOnce performs one maintenance pass immediately.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.execute(ctx)
}

// Status returns the job snapshot.
func (s *Scheduler) Status() JobStatus {
	s.mu.Lock()
	st := s.status
	s.mu.Unlock()

	st.NextRun = s.cron.Entry(s.entryID).Next
	return st
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()
	_ = s.execute(ctx)
}

func (s *Scheduler) execute(ctx context.Context) error {
	ctx = logger.WithRequestID(ctx, "keepalive-"+uuid.New().String()[:8])
	log := logger.FromContext(ctx)

	s.mu.Lock()
	s.status.Status = JobStatusRunning
	s.status.LastRun = time.Now()
	s.mu.Unlock()

	start := time.Now()
	err := s.target.Maintain(ctx)

	s.mu.Lock()
	s.status.Runs++
	if err != nil {
		s.status.Status = JobStatusFailed
		s.status.Failures++
		s.status.LastError = err.Error()
	} else {
		s.status.Status = JobStatusCompleted
		s.status.LastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		log.Warn("Keep-alive maintenance failed", zap.Error(err),
			logger.DurationField(time.Since(start).Milliseconds()))
		return err
	}
	log.Debug("Keep-alive maintenance completed",
		logger.DurationField(time.Since(start).Milliseconds()))
	return nil
}
