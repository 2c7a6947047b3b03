package sync

import (
	"context"
	"log"
	"time"

	"github.com/vitalmesh/telemetryd/internal/models"
	"github.com/vitalmesh/telemetryd/internal/store"
	"github.com/vitalmesh/telemetryd/internal/wire"
)

// Scheduler reconciles the durable buffer against server acknowledgments.
// A periodic timer (while connected) and an explicit force trigger each
// start a pass: per category, a bounded oldest-first batch is validated,
// framed, and enqueued with inter-message pacing. Records are marked
// synced only when their ack arrives, never on send.
type Scheduler struct {
	store      store.Store
	dispatcher *Dispatcher
	ledger     *RetryLedger
	meta       wire.Metadata

	categories []string
	batchSize  int
	pacing     time.Duration
	interval   time.Duration

	connected func() bool

	force chan struct{}
	stop  chan struct{}
}

// NewScheduler creates a sync scheduler.
func NewScheduler(st store.Store, dispatcher *Dispatcher, ledger *RetryLedger, meta wire.Metadata, categories []string, batchSize int, pacing, interval time.Duration, connected func() bool) *Scheduler {
	return &Scheduler{
		store:      st,
		dispatcher: dispatcher,
		ledger:     ledger,
		meta:       meta,
		categories: categories,
		batchSize:  batchSize,
		pacing:     pacing,
		interval:   interval,
		connected:  connected,
		force:      make(chan struct{}, 1),
		stop:       make(chan struct{}),
	}
}

// Run drives periodic and forced passes until Stop is called.
func (s *Scheduler) Run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.connected() {
				s.RunPass(context.Background())
			}
		case <-s.force:
			s.RunPass(context.Background())
		case <-s.stop:
			return
		}
	}
}

// ForceSync requests an immediate pass. Coalesces with a pending request.
func (s *Scheduler) ForceSync() {
	select {
	case s.force <- struct{}{}:
	default:
	}
}

// Stop halts the scheduling loop.
func (s *Scheduler) Stop() {
	close(s.stop)
}

// RunPass syncs one batch for every category. Categories fail
// independently: an aborted batch in one never blocks the others.
func (s *Scheduler) RunPass(ctx context.Context) {
	for _, category := range s.categories {
		s.syncCategory(ctx, category)
	}
}

// syncCategory sends one bounded batch of unsynced records, oldest-first.
// A record with an invalid message type is skipped and the batch
// continues — one malformed producer must not stall delivery of valid
// records behind it. A local serialization error aborts the remainder of
// the batch; the next pass retries from the store's current unsynced set.
func (s *Scheduler) syncCategory(ctx context.Context, category string) {
	recs, err := s.store.Unsynced(ctx, category, s.batchSize)
	if err != nil {
		log.Printf("⚠️ Fetch unsynced %s failed: %v", category, err)
		return
	}
	if len(recs) == 0 {
		return
	}

	sent := 0
	for _, rec := range recs {
		typeID := rec.TypeID()
		if !wire.IsValidType(typeID) {
			log.Printf("Skipping %s record %s: invalid message type %q", category, rec.RecordID(), typeID)
			continue
		}

		data, err := rec.WireData()
		if err != nil {
			log.Printf("⚠️ Serializing %s record %s failed, aborting batch: %v", category, rec.RecordID(), err)
			return
		}

		env, err := wire.NewDataFrame(rec.RecordID(), typeID, data, s.meta)
		if err != nil {
			log.Printf("⚠️ Framing %s record %s failed, aborting batch: %v", category, rec.RecordID(), err)
			return
		}

		s.ledger.Sent(rec.RecordID(), category)
		s.dispatcher.Enqueue(env)
		sent++

		// Inter-message pacing throttles burst load on the server.
		select {
		case <-time.After(s.pacing):
		case <-s.stop:
			return
		}
	}

	if sent > 0 {
		log.Printf("📤 Sync pass: %d/%d %s records enqueued", sent, len(recs), category)
	}
}

// HandleAck marks one record synced in response to a server ack. The
// ledger resolves the category; an unknown id (ack after restart, or for
// an already-pruned record) falls back to a tolerant sweep across all
// categories, where marking an absent id is a no-op.
func (s *Scheduler) HandleAck(ctx context.Context, messageID string) {
	if messageID == "" {
		return
	}

	if category, ok := s.ledger.Ack(messageID); ok {
		if err := s.store.MarkSynced(ctx, category, []string{messageID}); err != nil {
			log.Printf("⚠️ Mark synced %s/%s failed: %v", category, messageID, err)
		}
		return
	}

	for _, category := range models.Categories {
		if err := s.store.MarkSynced(ctx, category, []string{messageID}); err != nil {
			log.Printf("⚠️ Mark synced %s/%s failed: %v", category, messageID, err)
		}
	}
}
