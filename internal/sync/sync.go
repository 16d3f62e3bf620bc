// Package sync periodically exports the turn log to durable destinations.
package sync

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/schoolline/internal/store"
)

// Destination is the interface for a sync target (S3, git, etc.).
type Destination interface {
	// Name identifies the destination in logs.
	Name() string
	// Write sends the JSONL payload to the destination.
	Write(ctx context.Context, data []byte) error
}

// Scheduler runs periodic exports to one or more destinations.
type Scheduler struct {
	log          store.TurnLog
	destinations []Destination
	interval     time.Duration
	window       time.Duration
	logger       *slog.Logger
	now          func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	status Status
	// newest turn ID covered by the last export every destination accepted
	synced string
	clean  bool
}

// Status is a snapshot of scheduler activity.
type Status struct {
	Runs      int64     `json:"runs"`
	Skipped   int64     `json:"skipped"`
	Failures  int64     `json:"failures"`
	LastRun   time.Time `json:"last_run,omitzero"`
	LastBytes int       `json:"last_bytes"`
}

// NewScheduler creates a scheduler that exports the turn log to the given
// destinations at the specified interval. A positive window limits each
// export to turns newer than now-window; zero exports the whole log.
func NewScheduler(log store.TurnLog, destinations []Destination, interval, window time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		log:          log,
		destinations: destinations,
		interval:     interval,
		window:       window,
		logger:       logger,
		now:          time.Now,
	}
}

// Start begins periodic sync. It runs an initial sync immediately, then
// on each tick.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for the current sync (if any) to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	s.SyncOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SyncOnce(ctx)
		}
	}
}

// Status returns a copy of the current counters.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SyncOnce exports once and writes to every destination. Destination
// failures are logged and do not stop the others. When no turn has been
// recorded since the last export every destination accepted, the upload
// is skipped.
func (s *Scheduler) SyncOnce(ctx context.Context) {
	var since time.Time
	if s.window > 0 {
		since = s.now().Add(-s.window)
	}

	s.mu.Lock()
	s.status.Runs++
	s.status.LastRun = s.now()
	s.mu.Unlock()

	newest, err := s.log.ListTurns(ctx, since, 1)
	if err != nil {
		s.fail("sync export failed", err)
		return
	}
	var head string
	if len(newest) > 0 {
		head = newest[0].ID
	}
	s.mu.Lock()
	unchanged := s.clean && head == s.synced
	if unchanged {
		s.status.Skipped++
	}
	s.mu.Unlock()
	if unchanged {
		s.logger.Debug("sync skipped, no new turns", "newest", head)
		return
	}

	var buf bytes.Buffer
	if err := ExportTurnsJSONL(ctx, s.log, since, &buf); err != nil {
		s.fail("sync export failed", err)
		return
	}
	data := buf.Bytes()

	failed := 0
	for _, dest := range s.destinations {
		if err := dest.Write(ctx, data); err != nil {
			failed++
			s.logger.Error("sync destination write failed", "destination", dest.Name(), "err", err)
		}
	}

	s.mu.Lock()
	s.status.LastBytes = len(data)
	if failed > 0 {
		s.status.Failures++
	}
	s.synced, s.clean = head, failed == 0
	s.mu.Unlock()

	s.logger.Info("sync completed",
		"destinations", len(s.destinations),
		"failed", failed,
		"bytes", len(data),
	)
}

func (s *Scheduler) fail(msg string, err error) {
	s.mu.Lock()
	s.status.Failures++
	s.clean = false
	s.mu.Unlock()
	s.logger.Error(msg, "err", err)
}
