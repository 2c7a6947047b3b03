package sync

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/vitalmesh/telemetryd/internal/config"
	"github.com/vitalmesh/telemetryd/internal/models"
	"github.com/vitalmesh/telemetryd/internal/store"
	"github.com/vitalmesh/telemetryd/internal/wire"
)

// Engine wires the store-and-forward pipeline together: connection
// manager, outbound dispatcher, sync scheduler, retry ledger, and
// retention sweeper. Sensor collaborators hand records to Save or push
// them onto the event channel via Publish; everything else is automatic.
type Engine struct {
	mu sync.Mutex

	cfg   *config.Config
	store store.Store
	meta  wire.Metadata

	connection *ConnectionManager
	dispatcher *Dispatcher
	scheduler  *Scheduler
	sweeper    *Sweeper
	ledger     *RetryLedger

	events chan models.Record

	isRunning   bool
	settleTimer *time.Timer
	stopChan    chan struct{}
}

// Status is the observable aggregate exposed to the local HTTP surface.
type Status struct {
	State          ConnState        `json:"state"`
	LastLivenessAt time.Time        `json:"lastLivenessAt"`
	PendingFrames  int              `json:"pendingFrames"`
	UnsyncedCounts map[string]int64 `json:"unsyncedCounts"`
}

// NewEngine builds the pipeline from configuration and an already-migrated
// store. Nothing here is global: the composition root owns the lifecycle.
func NewEngine(cfg *config.Config, st store.Store) *Engine {
	meta := wire.Metadata{
		DeviceID: cfg.Device.ID,
		Source:   cfg.Device.Source,
	}

	connection := NewConnectionManager(cfg.Server, meta, cfg.Device.Secret)
	dispatcher := NewDispatcher(connection)
	ledger := NewRetryLedger()
	scheduler := NewScheduler(
		st, dispatcher, ledger, meta,
		cfg.Sync.Categories,
		cfg.Sync.BatchSize,
		cfg.Sync.PacingDelay,
		cfg.Sync.SyncInterval,
		connection.IsConnected,
	)
	sweeper := NewSweeper(
		st, cfg.Sync.Categories,
		time.Duration(cfg.Sync.RetentionDays)*24*time.Hour,
		cfg.Sync.SweepInterval,
	)

	e := &Engine{
		cfg:        cfg,
		store:      st,
		meta:       meta,
		connection: connection,
		dispatcher: dispatcher,
		scheduler:  scheduler,
		sweeper:    sweeper,
		ledger:     ledger,
		events:     make(chan models.Record, 256),
		stopChan:   make(chan struct{}),
	}

	connection.dispatcher = dispatcher
	connection.onConnected = e.handleConnected
	connection.onInbound = e.handleInbound

	return e
}

// Start launches the worker loops and initiates the first connect.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.isRunning {
		return fmt.Errorf("sync engine already running")
	}
	e.isRunning = true

	log.Println("🔄 Sync engine starting...")

	go e.dispatcher.Run()
	go e.scheduler.Run()
	go e.sweeper.Run()
	go e.eventLoop()
	go e.connection.Connect()

	log.Println("✅ Sync engine started")
	return nil
}

// Stop cancels the connection, the reconnect timer, and every worker
// loop. The durable store is left untouched; unsynced records survive for
// the next run.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.isRunning {
		e.mu.Unlock()
		return
	}
	e.isRunning = false
	if e.settleTimer != nil {
		e.settleTimer.Stop()
		e.settleTimer = nil
	}
	e.mu.Unlock()

	log.Println("🛑 Stopping sync engine...")
	close(e.stopChan)
	e.scheduler.Stop()
	e.sweeper.Stop()
	e.connection.Stop()
	e.dispatcher.Close()
	log.Println("✅ Sync engine stopped")
}

// Save durably appends one record and, when connected, attempts an
// immediate best-effort send bypassing the batch scheduler. The append
// happens regardless of connectivity — durability never depends on the
// socket.
func (e *Engine) Save(ctx context.Context, rec models.Record) error {
	if gen, ok := rec.(*models.GenericRecord); ok && !wire.IsValidType(gen.MessageTypeID) {
		return fmt.Errorf("invalid message type %q", gen.MessageTypeID)
	}

	if err := e.store.Append(ctx, rec); err != nil {
		return err
	}

	if e.connection.IsConnected() {
		e.sendNow(rec)
	}
	return nil
}

// sendNow frames and enqueues one record outside the batch path. Failure
// here is silent beyond a log line: the record is already durable and the
// scheduler will retry it.
func (e *Engine) sendNow(rec models.Record) {
	typeID := rec.TypeID()
	if !wire.IsValidType(typeID) {
		log.Printf("Not sending %s record %s: invalid message type %q", rec.Category(), rec.RecordID(), typeID)
		return
	}

	data, err := rec.WireData()
	if err != nil {
		log.Printf("Immediate send of %s failed to serialize: %v", rec.RecordID(), err)
		return
	}

	env, err := wire.NewDataFrame(rec.RecordID(), typeID, data, e.meta)
	if err != nil {
		log.Printf("Immediate send of %s failed to frame: %v", rec.RecordID(), err)
		return
	}

	e.ledger.Sent(rec.RecordID(), rec.Category())
	e.dispatcher.Enqueue(env)
}

// Publish hands a record to the engine over the event channel. Sensor
// collaborators fire-and-forget into the durable store without touching
// socket code. Blocks only if the channel buffer is full.
func (e *Engine) Publish(rec models.Record) {
	select {
	case e.events <- rec:
	case <-e.stopChan:
	}
}

// eventLoop drains published records into the store.
func (e *Engine) eventLoop() {
	for {
		select {
		case rec := <-e.events:
			if err := e.Save(context.Background(), rec); err != nil {
				log.Printf("⚠️ Saving published %s record failed: %v", rec.Category(), err)
			}
		case <-e.stopChan:
			return
		}
	}
}

// ForceSync requests an immediate sync pass.
func (e *Engine) ForceSync() {
	e.scheduler.ForceSync()
}

// ConnectionState returns the current socket state.
func (e *Engine) ConnectionState() ConnState {
	return e.connection.State()
}

// Status returns the aggregate observable state: connection, pending
// outbound frames, and per-category unsynced counts.
func (e *Engine) Status(ctx context.Context) Status {
	counts := make(map[string]int64, len(e.cfg.Sync.Categories))
	for _, category := range e.cfg.Sync.Categories {
		n, err := e.store.UnsyncedCount(ctx, category)
		if err != nil {
			log.Printf("⚠️ Unsynced count for %s failed: %v", category, err)
			continue
		}
		counts[category] = n
	}

	return Status{
		State:          e.connection.State(),
		LastLivenessAt: e.connection.LastLivenessAt(),
		PendingFrames:  e.ledger.Pending(),
		UnsyncedCounts: counts,
	}
}

// handleConnected runs after every successful connect: announce the
// device, then drain the backlog once the handshake has settled.
func (e *Engine) handleConnected() {
	e.dispatcher.Enqueue(wire.NewDeviceRegisterFrame(e.meta))

	e.mu.Lock()
	if !e.isRunning {
		e.mu.Unlock()
		return
	}
	if e.settleTimer != nil {
		e.settleTimer.Stop()
	}
	e.settleTimer = time.AfterFunc(e.cfg.Server.SettleDelay, e.scheduler.ForceSync)
	e.mu.Unlock()
}

// handleInbound routes one server frame. Ack processing is unordered:
// whichever ack arrives marks its record synced immediately.
func (e *Engine) handleInbound(msg wire.Inbound) {
	switch msg.Type {
	case wire.InConnectionEstablished:
		log.Println("🤝 Server confirmed connection")
	case wire.InHealthCheckPing:
		// Server-initiated liveness; the client only ever pongs.
		e.dispatcher.Enqueue(wire.NewPongFrame(msg.ID, e.meta))
	case wire.InPong:
		// Liveness already recorded by the connection manager.
	case wire.InDataAck, wire.InAudioAck:
		e.scheduler.HandleAck(context.Background(), msg.MessageID)
	case wire.InHeartbeatAck:
		// Informational only; never gates liveness.
	case wire.InDeviceRegistered:
		log.Printf("📱 Device registered with ingestion service")
	case wire.InError, wire.InDataError:
		// Non-fatal: the record stays unsynced and the next pass retries.
		log.Printf("⚠️ Server reported error: %s", msg.Message)
	default:
		log.Printf("Unknown server frame type %q", msg.Type)
	}
}
