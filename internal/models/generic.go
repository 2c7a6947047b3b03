package models

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// GenericRecord carries an opaque payload with a declared message type tag.
// The tag is validated against the wire registry before the record is
// persisted, again before it is framed for sending, and once more when a
// persisted record is replayed during sync. A malformed tag must never
// stall delivery of the valid records behind it.
type GenericRecord struct {
	RecordBase
	MessageTypeID string         `gorm:"type:varchar(100);not null" json:"messageTypeId"`
	Payload       datatypes.JSON `gorm:"type:jsonb" json:"payload"`
}

// TableName specifies the table name
func (GenericRecord) TableName() string {
	return "generic_records"
}

// Category returns the record category.
func (r *GenericRecord) Category() string { return CategoryGeneric }

// TypeID returns the declared wire message type identifier.
func (r *GenericRecord) TypeID() string { return r.MessageTypeID }

// WireData returns the stored payload as-is.
func (r *GenericRecord) WireData() (json.RawMessage, error) {
	if len(r.Payload) == 0 {
		return json.RawMessage("{}"), nil
	}
	return json.RawMessage(r.Payload), nil
}
