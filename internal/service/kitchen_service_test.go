package service

import (
	"context"
	"errors"
	"tea_refill/internal/domain"
	"testing"
)

func TestKitchenServiceAddMember(t *testing.T) {
	f := newFixture(t)
	svc := NewKitchenService(f.store)
	ctx := context.Background()

	first, err := svc.AddMember(ctx, "K1", domain.AddKitchenMemberDTO{Name: "Lakshmi", Mobile: "9000000001"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.AddMember(ctx, "K4", domain.AddKitchenMemberDTO{Name: "Arun"})
	if err != nil {
		t.Fatal(err)
	}
	if first.UID != "USER001" || second.UID != "USER002" {
		t.Errorf("uids = %s, %s; want USER001, USER002", first.UID, second.UID)
	}
	if second.KitchenUserID != "K4" || second.CreatedAt.IsZero() {
		t.Errorf("member = %+v", second)
	}

	if _, err := svc.AddMember(ctx, "K404", domain.AddKitchenMemberDTO{Name: "Ghost"}); !errors.Is(err, ErrKitchenNotFound) {
		t.Errorf("unknown kitchen error = %v, want ErrKitchenNotFound", err)
	}
	if _, err := svc.AddMember(ctx, "K1", domain.AddKitchenMemberDTO{}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("missing name error = %v, want ErrInvalidInput", err)
	}
}

func TestKitchenServiceRegisterCanister(t *testing.T) {
	f := newFixture(t)
	svc := NewKitchenService(f.store)
	ctx := context.Background()

	want := []struct{ kitchen, scanID string }{
		{"K1", "K1_CAN_1"},
		{"K1", "K1_CAN_2"},
		{"K4", "K4_CAN_1"},
		{"K1", "K1_CAN_3"},
	}
	for _, w := range want {
		c, err := svc.RegisterCanister(ctx, w.kitchen)
		if err != nil {
			t.Fatalf("RegisterCanister(%s): %v", w.kitchen, err)
		}
		if c.ScanID != w.scanID {
			t.Errorf("RegisterCanister(%s) = %s, want %s", w.kitchen, c.ScanID, w.scanID)
		}
	}

	boom := errors.New("insert failed")
	f.store.FailOn("kitchens.create_canister", boom)
	if _, err := svc.RegisterCanister(ctx, "K1"); !errors.Is(err, boom) {
		t.Errorf("error = %v, want %v", err, boom)
	}
}
