// Package cache holds the in-process snapshot cache used by read paths that
// would otherwise hit SQLite on every call.
package cache

import (
	"context"
	"time"

	ledgerlog "ledger/internal/log"
)

// Cache is a keyed store of values of one type whose expired entries can be
// swept by a Janitor.
type Cache[T any] interface {
	Sweeper
	Get(key string) (T, bool)
	Set(key string, data T)
	// Invalidate drops key. Missing keys are ignored.
	Invalidate(key string)
	Len() int
}

// Sweeper is a cache able to drop its expired entries.
type Sweeper interface {
	Sweep() int
}

// Janitor sweeps registered caches on a fixed interval until stopped.
type Janitor struct {
	caches []Sweeper
	stop   chan struct{}
	done   chan struct{}
}

func NewJanitor(caches ...Sweeper) *Janitor {
	return &Janitor{
		caches: caches,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the sweep loop, logging through the logger carried by ctx.
// Call Stop exactly once afterwards.
func (j *Janitor) Start(ctx context.Context, interval time.Duration) {
	logger := ledgerlog.FromContext(ctx).WithComponent(ledgerlog.ComponentCache)
	go j.run(logger, interval)
}

func (j *Janitor) run(logger *ledgerlog.Logger, interval time.Duration) {
	defer close(j.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := j.SweepOnce(); n > 0 {
				logger.Debug("Swept expired cache entries",
					ledgerlog.FieldOperation, ledgerlog.OpSweep,
					ledgerlog.FieldCount, n)
			}
		case <-j.stop:
			return
		}
	}
}

// SweepOnce sweeps every cache and returns the number of evicted entries.
func (j *Janitor) SweepOnce() int {
	total := 0
	for _, c := range j.caches {
		total += c.Sweep()
	}
	return total
}

func (j *Janitor) Stop() {
	close(j.stop)
	<-j.done
}
