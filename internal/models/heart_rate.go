package models

import "encoding/json"

// HeartRateRecord is one heart-rate sample.
type HeartRateRecord struct {
	RecordBase
	BPM        int     `gorm:"not null" json:"bpm"`
	Confidence float64 `json:"confidence"`
}

// TableName specifies the table name
func (HeartRateRecord) TableName() string {
	return "heart_rate_records"
}

// Category returns the record category.
func (r *HeartRateRecord) Category() string { return CategoryHeartRate }

// TypeID returns the wire message type identifier.
func (r *HeartRateRecord) TypeID() string { return CategoryHeartRate }

// WireData builds the heart-rate wire payload.
func (r *HeartRateRecord) WireData() (json.RawMessage, error) {
	return json.Marshal(map[string]interface{}{
		"bpm":         r.BPM,
		"confidence":  r.Confidence,
		"recorded_at": r.Timestamp,
	})
}
