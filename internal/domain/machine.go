package domain

import (
	"strings"
	"time"

	"github.com/paulmach/orb"
)

type OnlineStatus string

const (
	Online  OnlineStatus = "online"
	Offline OnlineStatus = "offline"
)

const (
	MachineFullTime = "Full Time"
	MachinePartTime = "Part Time"
)

type MachineAddress struct {
	Building string `json:"building,omitempty"`
	Floor    string `json:"floor,omitempty"`
	Area     string `json:"area,omitempty"`
	District string `json:"district,omitempty"`
	State    string `json:"state,omitempty"`
}

func (a MachineAddress) String() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{a.Building, a.Floor, a.Area, a.District, a.State} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Machine is a vending unit. Coordinates are kept as the decimal strings the admin forms store.
type Machine struct {
	ID                   string         `json:"id"`
	Address              MachineAddress `json:"address"`
	GisLatitude          string         `json:"gisLatitude"`
	GisLongitude         string         `json:"gisLongitude"`
	KitchenIDs           []string       `json:"kitchenId"`
	MachineType          string         `json:"machineType,omitempty"`
	EndTime              string         `json:"endTime,omitempty"`
	TeaFillStartQuantity int            `json:"teaFillStartQuantity"`
	TeaFillEndQuantity   int            `json:"teaFillEndQuantity"`
	Status               OnlineStatus   `json:"status"`
	UpdatedAt            time.Time      `json:"updatedAt"`
}

type Kitchen struct {
	UserID    string       `json:"userId"`
	Name      string       `json:"name"`
	Mobile    string       `json:"mobile,omitempty"`
	Address   string       `json:"address,omitempty"`
	Latitude  float64      `json:"latitude"`
	Longitude float64      `json:"longitude"`
	Status    OnlineStatus `json:"status"`
}

// Location returns the kitchen as an orb point (lon, lat).
func (k Kitchen) Location() orb.Point {
	return orb.Point{k.Longitude, k.Latitude}
}

type Agent struct {
	UserID string       `json:"userId"`
	Name   string       `json:"name"`
	Mobile string       `json:"mobile,omitempty"`
	Status OnlineStatus `json:"status"`
}

type KitchenMember struct {
	UID           string    `json:"uid"`
	KitchenUserID string    `json:"kitchenUserId"`
	Name          string    `json:"name"`
	Mobile        string    `json:"mobile,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

type Canister struct {
	ScanID        string    `json:"scanId"`
	KitchenUserID string    `json:"kitchenUserId"`
	CreatedAt     time.Time `json:"createdAt"`
}

type AddKitchenMemberDTO struct {
	Name   string `json:"name" binding:"required"`
	Mobile string `json:"mobile"`
}
