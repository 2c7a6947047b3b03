package pairing

import (
	"encoding/json"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// payload is what a companion app scans to link this device.
type payload struct {
	Version  int    `json:"v"`
	BaseURL  string `json:"base_url"`
	DeviceID string `json:"device_id"`
}

// WriteQR renders the pairing payload as a QR PNG at path.
func WriteQR(path, baseURL, deviceID string) error {
	data, err := json.Marshal(payload{
		Version:  1,
		BaseURL:  baseURL,
		DeviceID: deviceID,
	})
	if err != nil {
		return fmt.Errorf("failed to encode pairing payload: %w", err)
	}
	if err := qrcode.WriteFile(string(data), qrcode.Medium, 256, path); err != nil {
		return fmt.Errorf("failed to write pairing QR: %w", err)
	}
	return nil
}
