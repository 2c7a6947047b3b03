package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/vitalmesh/telemetryd/internal/models"
	"github.com/vitalmesh/telemetryd/internal/wire"
	"gorm.io/datatypes"
)

// recordRequest is the ingest body shared by all categories. Category
// fields are read from the same object; unknown fields are ignored.
type recordRequest struct {
	ID         string `json:"id"`
	RecordedAt int64  `json:"recordedAt"` // epoch millis; 0 means now

	// heart_rate
	BPM        int     `json:"bpm"`
	Confidence float64 `json:"confidence"`

	// gps
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
	Accuracy  float64 `json:"accuracy"`
	Heading   float64 `json:"heading"`
	Speed     float64 `json:"speed"`

	// sleep_state
	State           string `json:"state"`
	DurationMinutes int    `json:"durationMinutes"`

	// power_event
	BatteryLevel int    `json:"batteryLevel"`
	Charging     bool   `json:"charging"`
	EventType    string `json:"eventType"`

	// generic
	MessageTypeID string          `json:"messageTypeId"`
	Payload       json.RawMessage `json:"payload"`
}

// ingestRecord accepts one sensor reading from a local collaborator and
// hands it to the engine's event channel. The record is durably buffered
// regardless of connectivity.
func (r *Router) ingestRecord(w http.ResponseWriter, req *http.Request) {
	category := mux.Vars(req)["category"]

	var body recordRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rec, err := r.buildRecord(category, &body)
	if err != "" {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	r.engine.Publish(rec)
	respondJSON(w, http.StatusAccepted, map[string]string{
		"id":       rec.RecordID(),
		"category": category,
	})
}

// buildRecord maps an ingest body to the category's record model.
func (r *Router) buildRecord(category string, body *recordRequest) (models.Record, string) {
	base := r.newBase(body)

	switch category {
	case models.CategoryHeartRate:
		if body.BPM <= 0 {
			return nil, "bpm must be positive"
		}
		return &models.HeartRateRecord{
			RecordBase: base,
			BPM:        body.BPM,
			Confidence: body.Confidence,
		}, ""
	case models.CategoryGPS:
		return &models.GPSRecord{
			RecordBase: base,
			Latitude:   body.Latitude,
			Longitude:  body.Longitude,
			Altitude:   body.Altitude,
			Accuracy:   body.Accuracy,
			Heading:    body.Heading,
			Speed:      body.Speed,
		}, ""
	case models.CategorySleepState:
		if body.State == "" {
			return nil, "state is required"
		}
		return &models.SleepStateRecord{
			RecordBase:      base,
			State:           body.State,
			Confidence:      body.Confidence,
			DurationMinutes: body.DurationMinutes,
		}, ""
	case models.CategoryPowerEvent:
		return &models.PowerEventRecord{
			RecordBase:   base,
			BatteryLevel: body.BatteryLevel,
			Charging:     body.Charging,
			EventType:    body.EventType,
		}, ""
	case models.CategoryGeneric:
		// First validation gate: an unknown or blank type tag is rejected
		// before anything is persisted.
		if !wire.IsValidType(body.MessageTypeID) {
			return nil, "unknown message type id"
		}
		return &models.GenericRecord{
			RecordBase:    base,
			MessageTypeID: body.MessageTypeID,
			Payload:       datatypes.JSON(body.Payload),
		}, ""
	default:
		return nil, "unknown record category"
	}
}

// newBase fills the shared record columns, assigning an id and capture
// time where the collaborator left them blank.
func (r *Router) newBase(body *recordRequest) models.RecordBase {
	id := body.ID
	if id == "" {
		id = uuid.New().String()
	}
	recordedAt := body.RecordedAt
	if recordedAt == 0 {
		recordedAt = time.Now().UnixMilli()
	}
	return models.RecordBase{
		ID:         id,
		DeviceID:   r.deviceID,
		RecordedAt: time.UnixMilli(recordedAt).UTC(),
		Timestamp:  recordedAt,
	}
}
