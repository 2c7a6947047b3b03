package sync

import (
	"context"
	"log"
	"time"

	"github.com/vitalmesh/telemetryd/internal/store"
)

// Sweeper deletes acknowledged records past the retention horizon. Records
// the server has not confirmed are kept forever; storage is only reclaimed
// for data known to be durable upstream.
type Sweeper struct {
	store      store.Store
	categories []string
	retention  time.Duration
	interval   time.Duration
	stop       chan struct{}
}

// NewSweeper creates a retention sweeper.
func NewSweeper(st store.Store, categories []string, retention, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:      st,
		categories: categories,
		retention:  retention,
		interval:   interval,
		stop:       make(chan struct{}),
	}
}

// Run sweeps on a fixed interval until Stop is called.
func (s *Sweeper) Run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.stop:
			return
		}
	}
}

// Sweep purges synced records older than the retention horizon.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.retention)
	for _, category := range s.categories {
		purged, err := s.store.PurgeOlderThan(ctx, category, cutoff)
		if err != nil {
			log.Printf("⚠️ Retention sweep for %s failed: %v", category, err)
			continue
		}
		if purged > 0 {
			log.Printf("🧹 Purged %d synced %s records older than %s", purged, category, cutoff.Format(time.RFC3339))
		}
	}
}

// Stop halts the sweep loop.
func (s *Sweeper) Stop() {
	close(s.stop)
}
