package domain

import (
	"encoding/json"
	"time"
)

// GenericIoTEvent is parsed first to read message_type and the fields added by the IoT rule.
type GenericIoTEvent struct {
	DeviceID          string          `json:"device_id"`
	MessageType       string          `json:"message_type"`
	Timestamp         string          `json:"timestamp"`
	ReceivedMqttTopic string          `json:"received_mqtt_topic,omitempty"`
	ClientIDFromIoT   string          `json:"client_id_iot,omitempty"`
	RawPayload        json.RawMessage `json:"-"`
}

const MessageTypeCanisterLevel = "canister_level"

type CanisterLevelEvent struct {
	GenericIoTEvent
	MachineID     string `json:"machine_id"`
	CanisterLevel *int   `json:"canister_level"`
}

// Machine returns the machine id, falling back to the thing name.
func (e CanisterLevelEvent) Machine() string {
	if e.MachineID != "" {
		return e.MachineID
	}
	return e.DeviceID
}

type MachineEventLog struct {
	ID              int64           `json:"id"`
	ReceivedAt      time.Time       `json:"received_at"`
	MachineID       string          `json:"machine_id"`
	MqttTopic       string          `json:"mqtt_topic"`
	MessageType     string          `json:"message_type"`
	Payload         json.RawMessage `json:"payload"`
	ProcessedStatus string          `json:"processed_status"` // "pending", "processed", "error"
	ProcessingNotes string          `json:"processing_notes,omitempty"`
}
