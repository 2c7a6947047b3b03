package models

import "encoding/json"

// PowerEventRecord is one battery/power state change.
type PowerEventRecord struct {
	RecordBase
	BatteryLevel int    `gorm:"not null" json:"batteryLevel"` // percent
	Charging     bool   `json:"charging"`
	EventType    string `gorm:"type:varchar(50)" json:"eventType"` // level_change, charge_start, charge_stop, low_battery
}

// TableName specifies the table name
func (PowerEventRecord) TableName() string {
	return "power_event_records"
}

// Category returns the record category.
func (r *PowerEventRecord) Category() string { return CategoryPowerEvent }

// TypeID returns the wire message type identifier.
func (r *PowerEventRecord) TypeID() string { return CategoryPowerEvent }

// WireData builds the power-event wire payload.
func (r *PowerEventRecord) WireData() (json.RawMessage, error) {
	return json.Marshal(map[string]interface{}{
		"battery_level": r.BatteryLevel,
		"charging":      r.Charging,
		"event_type":    r.EventType,
		"recorded_at":   r.Timestamp,
	})
}
