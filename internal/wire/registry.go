package wire

import "strings"

// Message type identifiers accepted on outbound data frames. The set is a
// static whitelist: a blank or unknown tag is rejected before a frame is
// built, so one malformed producer cannot stall a whole sync pass on the
// server side.
const (
	TypeHeartRate    = "heart_rate"
	TypeGPS          = "gps"
	TypeSleepState   = "sleep_state"
	TypePowerEvent   = "power_event"
	TypeOnBodyStatus = "on_body_status"

	// Registered generic subtypes
	TypeAppLifecycle    = "app_lifecycle"
	TypeScreenText      = "screen_text"
	TypeAudioTranscript = "audio_transcript"
	TypeAccelerometer   = "accelerometer"
	TypeNotification    = "notification"
)

var validTypes = map[string]struct{}{
	TypeHeartRate:       {},
	TypeGPS:             {},
	TypeSleepState:      {},
	TypePowerEvent:      {},
	TypeOnBodyStatus:    {},
	TypeAppLifecycle:    {},
	TypeScreenText:      {},
	TypeAudioTranscript: {},
	TypeAccelerometer:   {},
	TypeNotification:    {},
}

// IsValidType reports whether typeID is a known message type. Blank and
// whitespace-only values are invalid.
func IsValidType(typeID string) bool {
	if strings.TrimSpace(typeID) == "" {
		return false
	}
	_, ok := validTypes[typeID]
	return ok
}

// ValidTypes returns the registered message type identifiers.
func ValidTypes() []string {
	out := make([]string, 0, len(validTypes))
	for t := range validTypes {
		out = append(out, t)
	}
	return out
}
