package domain

import (
	"encoding/json"
	"time"

	"gopkg.in/guregu/null.v4"
)

type RequestStatus string

const (
	StatusPending             RequestStatus = "Pending"
	StatusAccepted            RequestStatus = "Accepted"
	StatusOrderReady          RequestStatus = "OrderReady"
	StatusAssigned            RequestStatus = "Assigned"
	StatusPickedUp            RequestStatus = "PickedUp"
	StatusOngoing             RequestStatus = "Ongoing"
	StatusRefilled            RequestStatus = "Refilled"
	StatusNotRefilled         RequestStatus = "NotRefilled"
	StatusSubmitted           RequestStatus = "Submitted"
	StatusNotSubmitted        RequestStatus = "NotSubmitted"
	StatusCompleted           RequestStatus = "Completed"
	StatusCancelled           RequestStatus = "Cancelled"
	StatusNoKitchensFound     RequestStatus = "No Kitchens Found"
	StatusNoAvailableKitchens RequestStatus = "No Available Kitchens"

	// StatusDeclined is only ever written on audit rows.
	StatusDeclined RequestStatus = "declined"
)

// IsTerminal reports whether no further transition may be applied.
func (s RequestStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoKitchensFound, StatusNoAvailableKitchens:
		return true
	}
	return false
}

// KitchenAssignment is either Unassigned (broadcast to candidates) or Assigned (one kitchen accepted).
type KitchenAssignment interface {
	isKitchenAssignment()
}

type Unassigned struct {
	Candidates []string
}

type Assigned struct {
	Kitchen string
}

func (Unassigned) isKitchenAssignment() {}
func (Assigned) isKitchenAssignment()   {}

// KitchenUserIDs flattens an assignment into the list of kitchens it addresses.
func KitchenUserIDs(a KitchenAssignment) []string {
	switch v := a.(type) {
	case Assigned:
		return []string{v.Kitchen}
	case Unassigned:
		return append([]string(nil), v.Candidates...)
	}
	return nil
}

// AssignedKitchen returns the accepted kitchen, if any.
func AssignedKitchen(a KitchenAssignment) (string, bool) {
	if v, ok := a.(Assigned); ok {
		return v.Kitchen, true
	}
	return "", false
}

// Endpoint is one end of a refill trip (kitchen = source, machine = destination).
type Endpoint struct {
	Address       string  `json:"address"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	ContactName   string  `json:"contactName,omitempty"`
	ContactNumber string  `json:"contactNumber,omitempty"`
}

type Request struct {
	ID              int64             `json:"id"`
	RequestID       string            `json:"requestId"`
	MachineID       string            `json:"machineId"`
	RequestStatus   RequestStatus     `json:"requestStatus"`
	KitchenStatus   RequestStatus     `json:"kitchenStatus"`
	AgentStatus     RequestStatus     `json:"agentStatus"`
	Kitchen         KitchenAssignment `json:"-"`
	AgentUserID     string            `json:"agentUserId"`
	Priority        int               `json:"priority"`
	Quantity        int               `json:"quantity"`
	RequestDateTime string            `json:"requestDateTime"`
	Source          Endpoint          `json:"source"`
	Destination     Endpoint          `json:"destination"`
	Reason          null.String       `json:"reason"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// MarshalJSON keeps the mobile wire shape: kitchenUserId is an array while broadcast
// and a plain string once a kitchen has accepted.
func (r Request) MarshalJSON() ([]byte, error) {
	type plain Request
	var kitchen any = []string{}
	switch v := r.Kitchen.(type) {
	case Assigned:
		kitchen = v.Kitchen
	case Unassigned:
		if len(v.Candidates) > 0 {
			kitchen = v.Candidates
		}
	}
	return json.Marshal(struct {
		plain
		KitchenUserID any `json:"kitchenUserId"`
	}{plain(r), kitchen})
}

// StatusUpdate is an append-only audit row addressed to one kitchen or agent.
type StatusUpdate struct {
	ID            string        `json:"id"`
	RequestID     string        `json:"requestId"`
	UserID        string        `json:"userId"`
	Status        RequestStatus `json:"status"`
	Latitude      float64       `json:"latitude"`
	Longitude     float64       `json:"longitude"`
	DateAndTime   string        `json:"dateAndTime"`
	IsProceedNext bool          `json:"isProceedNext"`
	Reason        null.String   `json:"reason"`
	CreatedAt     time.Time     `json:"createdAt"`
}

type RequestFilterDTO struct {
	MachineID *string `form:"machineId"`
	Status    *string `form:"status"`
}
