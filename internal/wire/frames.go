package wire

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Outbound frame kinds
const (
	KindData            = "data"
	KindHeartbeat       = "heartbeat"
	KindHealthCheckPong = "health_check_pong"
	KindDeviceRegister  = "device_register"
)

// Inbound frame kinds
const (
	InConnectionEstablished = "connection_established"
	InHealthCheckPing       = "health_check_ping"
	InPong                  = "pong"
	InDataAck               = "data_ack"
	InAudioAck              = "audio_ack"
	InError                 = "error"
	InDataError             = "data_error"
	InHeartbeatAck          = "heartbeat_ack"
	InDeviceRegistered      = "device_registered"
)

// Metadata identifies the producing device on every outbound frame.
type Metadata struct {
	DeviceID string `json:"device_id"`
	Source   string `json:"source"`
}

// Envelope is the outbound frame structure written to the socket.
type Envelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Metadata  Metadata        `json:"metadata"`
	Timestamp int64           `json:"timestamp"`
}

// DataPayload is the payload of a KindData envelope.
type DataPayload struct {
	MessageTypeID string          `json:"message_type_id"`
	Data          json.RawMessage `json:"data"`
}

// Inbound is the server frame structure read from the socket. Only the
// fields consumed by the engine are mapped.
type Inbound struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// ParseInbound decodes one server frame.
func ParseInbound(data []byte) (Inbound, error) {
	var msg Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return Inbound{}, err
	}
	return msg, nil
}

// NewDataFrame builds a data envelope for one record. The envelope id is
// the record id so the server's acknowledgment maps back to exactly one
// stored record across reconnects.
func NewDataFrame(recordID, typeID string, data json.RawMessage, meta Metadata) (Envelope, error) {
	payload, err := json.Marshal(DataPayload{
		MessageTypeID: typeID,
		Data:          data,
	})
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID:        recordID,
		Type:      KindData,
		Payload:   payload,
		Metadata:  meta,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// NewHeartbeatFrame builds a presence heartbeat envelope.
func NewHeartbeatFrame(meta Metadata) Envelope {
	return Envelope{
		ID:        uuid.New().String(),
		Type:      KindHeartbeat,
		Metadata:  meta,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewPongFrame builds a health-check pong echoing the server's ping id.
func NewPongFrame(pingID string, meta Metadata) Envelope {
	payload, _ := json.Marshal(map[string]string{"ping_id": pingID})
	return Envelope{
		ID:        uuid.New().String(),
		Type:      KindHealthCheckPong,
		Payload:   payload,
		Metadata:  meta,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewDeviceRegisterFrame builds the registration announcement sent after
// every successful connect.
func NewDeviceRegisterFrame(meta Metadata) Envelope {
	payload, _ := json.Marshal(map[string]string{"device_id": meta.DeviceID, "source": meta.Source})
	return Envelope{
		ID:        uuid.New().String(),
		Type:      KindDeviceRegister,
		Payload:   payload,
		Metadata:  meta,
		Timestamp: time.Now().UnixMilli(),
	}
}
