package service

import (
	"context"
	"tea_refill/internal/domain"
	"tea_refill/internal/repository/memory"
	"testing"
	"time"
)

// Machine M1 sits at Chennai Central. Kitchens are placed due north of it.
const (
	machineLat = 13.0827
	machineLon = 80.2707
	degPerKm   = 1 / 111.195
)

var testNow = time.Date(2026, 10, 16, 10, 0, 0, 0, IST)

func kitchenAt(id string, km float64, status domain.OnlineStatus) domain.Kitchen {
	return domain.Kitchen{
		UserID:    id,
		Name:      "Kitchen " + id,
		Mobile:    "90000000" + id,
		Address:   id + " Street, Chennai",
		Latitude:  machineLat + km*degPerKm,
		Longitude: machineLon,
		Status:    status,
	}
}

type fixture struct {
	store *memory.Store
	svc   *RequestService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	store.SetClock(func() time.Time { return testNow })
	store.PutMachine(domain.Machine{
		ID:                   "M1",
		Address:              domain.MachineAddress{Building: "Tidel Park", Area: "Taramani", District: "Chennai", State: "Tamil Nadu"},
		GisLatitude:          "13.0827",
		GisLongitude:         "80.2707",
		KitchenIDs:           []string{"K1", "K4"},
		MachineType:          domain.MachineFullTime,
		EndTime:              "18:00",
		TeaFillStartQuantity: 5000,
		TeaFillEndQuantity:   2000,
		Status:               domain.Online,
	})
	store.PutKitchen(kitchenAt("K1", 1, domain.Online))
	store.PutKitchen(kitchenAt("K4", 1.5, domain.Offline))
	store.PutAgent(domain.Agent{UserID: "A1", Name: "Ravi", Status: domain.Online})
	store.PutAgent(domain.Agent{UserID: "A2", Name: "Kumar", Status: domain.Offline})

	svc := NewRequestService(store, nil)
	svc.SetClock(func() time.Time { return testNow })
	return &fixture{store: store, svc: svc}
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }

func (f *fixture) trigger(t *testing.T, machineID string, level int) *domain.CanisterCheckResult {
	t.Helper()
	res, err := f.svc.CheckCanisterLevel(context.Background(), domain.CanisterLevelInput{MachineID: machineID, CanisterLevel: intPtr(level)})
	if err != nil {
		t.Fatalf("CheckCanisterLevel(%s, %d) error: %v", machineID, level, err)
	}
	return res
}

func transitionInput(userID, requestID string, proceed bool, reason string) domain.TransitionInput {
	return domain.TransitionInput{
		UserID:        userID,
		RequestID:     requestID,
		Latitude:      floatPtr(13.09),
		Longitude:     floatPtr(80.27),
		Status:        "update",
		DateAndTime:   "16/10/2026, 10:05:00 am",
		IsProceedNext: boolPtr(proceed),
		Reason:        reason,
	}
}

func (f *fixture) request(t *testing.T, requestID string) *domain.Request {
	t.Helper()
	req, err := f.store.Requests().FindByRequestID(context.Background(), requestID)
	if err != nil {
		t.Fatalf("FindByRequestID(%s): %v", requestID, err)
	}
	return req
}

func (f *fixture) updates(t *testing.T, requestID string) []domain.StatusUpdate {
	t.Helper()
	updates, err := f.store.StatusUpdates().FindByRequestID(context.Background(), requestID)
	if err != nil {
		t.Fatalf("FindByRequestID(%s): %v", requestID, err)
	}
	return updates
}

func (f *fixture) countRequests(t *testing.T) int {
	t.Helper()
	all, err := f.store.Requests().Find(context.Background(), domain.RequestFilterDTO{})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	return len(all)
}

func recipients(ns []domain.Notification) map[string]domain.Role {
	out := make(map[string]domain.Role, len(ns))
	for _, n := range ns {
		out[n.RecipientUserID] = n.Role
	}
	return out
}
