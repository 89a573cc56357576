package revocation

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultJanitorInterval = 10 * time.Minute

// Janitor periodically prunes a store in the background.
type Janitor struct {
	pruner   Pruner
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
	log      *zap.Logger

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// JanitorConfig controls sweep cadence.
type JanitorConfig struct {
	Interval time.Duration
	// Timeout bounds a single Prune call. Defaults to Interval.
	Timeout time.Duration
	Now     func() time.Time
	Logger  *zap.Logger
}

// StartJanitor begins sweeping p every cfg.Interval until Stop is called.
func StartJanitor(p Pruner, cfg JanitorConfig) *Janitor {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultJanitorInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = cfg.Interval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	j := &Janitor{
		pruner:   p,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		now:      cfg.Now,
		log:      cfg.Logger,
		done:     make(chan struct{}),
	}
	j.wg.Add(1)
	go j.run()
	return j
}

func (j *Janitor) run() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.Sweep()
		case <-j.done:
			return
		}
	}
}

// Sweep runs one prune immediately and returns the number of entries removed.
func (j *Janitor) Sweep() int64 {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	n, err := j.pruner.Prune(ctx, j.now())
	if err != nil {
		j.log.Warn("revocation prune failed", zap.Error(err))
		return 0
	}
	if n > 0 {
		j.log.Debug("revocation entries pruned", zap.Int64("removed", n))
	}
	return n
}

// Stop halts the janitor and waits for an in-flight sweep to finish.
func (j *Janitor) Stop() {
	if j == nil {
		return
	}
	j.closeOnce.Do(func() {
		close(j.done)
		j.wg.Wait()
	})
}
