package models

import "encoding/json"

// SleepStateRecord is one inferred sleep-state interval.
type SleepStateRecord struct {
	RecordBase
	State           string  `gorm:"type:varchar(50);not null" json:"state"` // awake, light, deep, rem
	Confidence      float64 `json:"confidence"`
	DurationMinutes int     `json:"durationMinutes"`
}

// TableName specifies the table name
func (SleepStateRecord) TableName() string {
	return "sleep_state_records"
}

// Category returns the record category.
func (r *SleepStateRecord) Category() string { return CategorySleepState }

// TypeID returns the wire message type identifier.
func (r *SleepStateRecord) TypeID() string { return CategorySleepState }

// WireData builds the sleep-state wire payload.
func (r *SleepStateRecord) WireData() (json.RawMessage, error) {
	return json.Marshal(map[string]interface{}{
		"state":            r.State,
		"confidence":       r.Confidence,
		"duration_minutes": r.DurationMinutes,
		"recorded_at":      r.Timestamp,
	})
}
