package domain

import "time"

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleKitchen Role = "kitchen"
	RoleAgent   Role = "agent"
	RoleMachine Role = "machine"
)

// Notification is an outbox entry produced by the lifecycle core; delivery happens elsewhere.
type Notification struct {
	ID              string        `json:"id"`
	RecipientUserID string        `json:"recipientUserId"`
	Role            Role          `json:"role"`
	RequestID       string        `json:"requestId"`
	Status          RequestStatus `json:"status"`
	Message         string        `json:"message,omitempty"`
}

// RequestEvent is what the dashboard websocket feed and the event log receive.
type RequestEvent struct {
	NotificationID  string        `json:"notificationId"`
	RequestID       string        `json:"requestId"`
	Status          RequestStatus `json:"status"`
	RecipientUserID string        `json:"recipientUserId"`
	Role            Role          `json:"role"`
	Message         string        `json:"message,omitempty"`
	Delivered       bool          `json:"delivered"`
	Timestamp       time.Time     `json:"timestamp"`
}

// PushMessage is the payload handed to a push sender for one device token.
type PushMessage struct {
	Token     string
	Title     string
	Body      string
	RequestID string
	Status    RequestStatus
}

// MachineCommandPayload is published on the machine's IoT topic.
type MachineCommandPayload struct {
	RequestID string        `json:"request_id"`
	Status    RequestStatus `json:"status"`
	Message   string        `json:"message,omitempty"`
}

type DispatchReport struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}
