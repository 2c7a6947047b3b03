package wire

import "testing"

func TestIsValidType(t *testing.T) {
	valid := []string{
		TypeHeartRate, TypeGPS, TypeSleepState, TypePowerEvent,
		TypeOnBodyStatus, TypeAppLifecycle, TypeScreenText,
		TypeAudioTranscript, TypeAccelerometer, TypeNotification,
	}
	for _, typeID := range valid {
		if !IsValidType(typeID) {
			t.Errorf("IsValidType(%q) = false, want true", typeID)
		}
	}

	invalid := []string{"", "   ", "\t", "heartrate", "GPS", "unknown_sensor"}
	for _, typeID := range invalid {
		if IsValidType(typeID) {
			t.Errorf("IsValidType(%q) = true, want false", typeID)
		}
	}
}

func TestValidTypesMatchesRegistry(t *testing.T) {
	types := ValidTypes()
	if len(types) != len(validTypes) {
		t.Fatalf("ValidTypes returned %d entries, want %d", len(types), len(validTypes))
	}
	for _, typeID := range types {
		if !IsValidType(typeID) {
			t.Errorf("ValidTypes returned %q which is not valid", typeID)
		}
	}
}
