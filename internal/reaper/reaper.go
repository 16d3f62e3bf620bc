// Package reaper deletes idle dial sessions from stores whose rows do not
// expire on their own.
//
// The memory and redis stores age sessions out themselves; postgres keeps a
// row per gateway session forever unless something sweeps it. The Reaper
// runs that sweep on a ticker and keeps running totals, which the server
// reports under "workers" in GET /v1/health.
package reaper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/schoolline/internal/store"
)

const (
	DefaultSessionTTL    = 10 * time.Minute
	DefaultSweepInterval = time.Minute
	sweepTimeout         = 30 * time.Second
)

// Config configures the background sweeper.
type Config struct {
	// SessionTTL is how long a session may sit untouched before it is
	// deleted. Default: 10 minutes.
	SessionTTL time.Duration

	// SweepInterval is how often the reaper runs. Default: 60 seconds.
	SweepInterval time.Duration

	Logger *slog.Logger
}

// Stats is a snapshot of reaper activity.
type Stats struct {
	Sweeps    int64     `json:"sweeps"`
	Purged    int64     `json:"purged"`
	Failures  int64     `json:"failures"`
	LastSweep time.Time `json:"last_sweep,omitzero"`
	LastError string    `json:"last_error,omitempty"`
}

// Reaper periodically purges idle sessions.
type Reaper struct {
	purger store.Purger
	cfg    Config
	now    func() time.Time

	mu    sync.Mutex
	stats Stats

	stop chan struct{}
	done chan struct{}
}

// New returns a Reaper over p. Zero Config fields take their defaults.
func New(p store.Purger, cfg Config) *Reaper {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Reaper{purger: p, cfg: cfg, now: time.Now}
}

// Start launches the sweep loop. Call Stop to shut it down.
func (r *Reaper) Start() {
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	go r.loop()
	r.cfg.Logger.Info("reaper: started",
		"session_ttl", r.cfg.SessionTTL,
		"sweep_interval", r.cfg.SweepInterval)
}

// Stop shuts down the sweep loop and waits for an in-flight sweep.
func (r *Reaper) Stop() {
	if r.stop != nil {
		close(r.stop)
		<-r.done
		r.stop = nil
		r.done = nil
	}
}

// Stats returns a copy of the running totals.
func (r *Reaper) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *Reaper) loop() {
	defer close(r.done)

	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
			_, _ = r.Sweep(ctx)
			cancel()
		}
	}
}

// Sweep deletes sessions idle longer than SessionTTL and returns how many
// were removed.
func (r *Reaper) Sweep(ctx context.Context) (int64, error) {
	now := r.now()
	n, err := r.purger.PurgeSessions(ctx, now.Add(-r.cfg.SessionTTL))

	r.mu.Lock()
	r.stats.Sweeps++
	r.stats.LastSweep = now
	if err != nil {
		r.stats.Failures++
		r.stats.LastError = err.Error()
	} else {
		r.stats.Purged += n
		r.stats.LastError = ""
	}
	r.mu.Unlock()

	if err != nil {
		r.cfg.Logger.Warn("reaper: sweep failed", "err", err)
		return 0, err
	}
	if n > 0 {
		r.cfg.Logger.Info("reaper: purged idle sessions", "count", n, "ttl", r.cfg.SessionTTL)
	}
	return n, nil
}
