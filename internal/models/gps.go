package models

import "encoding/json"

// GPSRecord is one location fix.
type GPSRecord struct {
	RecordBase
	Latitude  float64 `gorm:"not null" json:"latitude"`
	Longitude float64 `gorm:"not null" json:"longitude"`
	Altitude  float64 `json:"altitude"`
	Accuracy  float64 `json:"accuracy"`
	Heading   float64 `json:"heading"`
	Speed     float64 `json:"speed"`
}

// TableName specifies the table name
func (GPSRecord) TableName() string {
	return "gps_records"
}

// Category returns the record category.
func (r *GPSRecord) Category() string { return CategoryGPS }

// TypeID returns the wire message type identifier.
func (r *GPSRecord) TypeID() string { return CategoryGPS }

// WireData builds the GPS wire payload.
func (r *GPSRecord) WireData() (json.RawMessage, error) {
	return json.Marshal(map[string]interface{}{
		"latitude":    r.Latitude,
		"longitude":   r.Longitude,
		"altitude":    r.Altitude,
		"accuracy":    r.Accuracy,
		"heading":     r.Heading,
		"speed":       r.Speed,
		"recorded_at": r.Timestamp,
	})
}
