package models

import (
	"encoding/json"
	"time"
)

// Category identifiers for the per-category record tables.
const (
	CategoryHeartRate  = "heart_rate"
	CategoryGPS        = "gps"
	CategorySleepState = "sleep_state"
	CategoryPowerEvent = "power_event"
	CategoryGeneric    = "generic"
)

// Categories lists every record category in sync order.
var Categories = []string{
	CategoryHeartRate,
	CategoryGPS,
	CategorySleepState,
	CategoryPowerEvent,
	CategoryGeneric,
}

// Record is one persisted sensor reading or event, tagged with a sync flag.
// Each category has its own table; the id doubles as the idempotency key
// for acknowledgment matching, so it must be unique per device.
type Record interface {
	// RecordID returns the stable unique identifier assigned at creation.
	RecordID() string

	// Category returns the category table this record belongs to.
	Category() string

	// TypeID returns the wire message type identifier for this record.
	TypeID() string

	// WireData builds the category-specific wire payload. Serialization is
	// explicit per category so the wire contract never drifts with struct
	// field renames.
	WireData() (json.RawMessage, error)

	// IsSynced reports whether the server has acknowledged this record.
	IsSynced() bool

	// LocalCreatedAt returns the local insertion time (retention clock and
	// unsynced-queue ordering key).
	LocalCreatedAt() time.Time
}

// RecordBase holds the columns shared by every record table.
type RecordBase struct {
	ID         string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	DeviceID   string    `gorm:"type:varchar(255);not null;index" json:"deviceId"`
	RecordedAt time.Time `gorm:"not null" json:"recordedAt"`
	Timestamp  int64     `gorm:"not null" json:"timestamp"` // capture time, epoch millis
	Synced     bool      `gorm:"not null;default:false;index:idx_unsynced" json:"synced"`
	CreatedAt  time.Time `gorm:"index:idx_unsynced" json:"createdAt"`
}

// RecordID returns the record's stable identifier.
func (b *RecordBase) RecordID() string { return b.ID }

// IsSynced reports whether the record has been acknowledged.
func (b *RecordBase) IsSynced() bool { return b.Synced }

// LocalCreatedAt returns the local insertion time.
func (b *RecordBase) LocalCreatedAt() time.Time { return b.CreatedAt }
