package service

import (
	"tea_refill/internal/domain"
	"testing"
	"time"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, 10, 16, hour, minute, 0, 0, IST)
}

func TestEvaluateRefillWindow(t *testing.T) {
	machine := func(machineType, endTime string) domain.Machine {
		return domain.Machine{MachineType: machineType, EndTime: endTime, TeaFillStartQuantity: 5000, TeaFillEndQuantity: 2000}
	}

	tests := []struct {
		name        string
		machine     domain.Machine
		now         time.Time
		wantBlocked bool
		wantQty     int
		wantTier    RefillTier
	}{
		{name: "exactly one hour before end", machine: machine(domain.MachineFullTime, "14:00"), now: at(13, 0), wantBlocked: true, wantQty: 0, wantTier: TierBlocked},
		{name: "61 minutes before end", machine: machine(domain.MachineFullTime, "14:00"), now: at(12, 59), wantQty: 2000, wantTier: TierClosing},
		{name: "exactly two hours before end", machine: machine(domain.MachineFullTime, "14:00"), now: at(12, 0), wantQty: 2000, wantTier: TierClosing},
		{name: "121 minutes before end", machine: machine(domain.MachineFullTime, "14:00"), now: at(11, 59), wantQty: 5000, wantTier: TierNormal},
		{name: "end time passed wraps to next day", machine: machine(domain.MachineFullTime, "14:00"), now: at(14, 30), wantQty: 5000, wantTier: TierNormal},
		{name: "end after midnight within the hour", machine: machine(domain.MachineFullTime, "00:30"), now: at(23, 30), wantBlocked: true, wantTier: TierBlocked},
		{name: "end after midnight far away", machine: machine(domain.MachineFullTime, "00:30"), now: at(14, 30), wantQty: 5000, wantTier: TierNormal},
		{name: "at end time", machine: machine(domain.MachineFullTime, "14:00"), now: at(14, 0), wantBlocked: true, wantTier: TierBlocked},
		{name: "single digit hour", machine: machine(domain.MachineFullTime, "9:30"), now: at(8, 0), wantQty: 2000, wantTier: TierClosing},
		{name: "utc clock is read in IST", machine: machine(domain.MachineFullTime, "14:00"), now: time.Date(2026, 10, 16, 7, 30, 0, 0, time.UTC), wantBlocked: true, wantTier: TierBlocked},
		{name: "no end time full time", machine: machine(domain.MachineFullTime, ""), now: at(13, 0), wantQty: 5000, wantTier: TierNormal},
		{name: "no end time part time", machine: machine(domain.MachinePartTime, ""), now: at(13, 0), wantQty: 2000, wantTier: TierClosing},
		{name: "no end time no type", machine: machine("", ""), now: at(13, 0), wantQty: 5000, wantTier: TierNormal},
		{name: "malformed hour treated as absent", machine: machine(domain.MachinePartTime, "25:00"), now: at(13, 0), wantQty: 2000, wantTier: TierClosing},
		{name: "malformed text treated as absent", machine: machine(domain.MachineFullTime, "evening"), now: at(13, 0), wantQty: 5000, wantTier: TierNormal},
		{name: "single digit minute treated as absent", machine: machine(domain.MachineFullTime, "14:5"), now: at(13, 30), wantQty: 5000, wantTier: TierNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateRefillWindow(tt.machine, tt.now)
			if got.Blocked != tt.wantBlocked {
				t.Errorf("Blocked = %v, want %v", got.Blocked, tt.wantBlocked)
			}
			if got.Quantity != tt.wantQty {
				t.Errorf("Quantity = %d, want %d", got.Quantity, tt.wantQty)
			}
			if got.Tier != tt.wantTier {
				t.Errorf("Tier = %s, want %s", got.Tier, tt.wantTier)
			}
		})
	}
}

func TestEvaluateRefillWindowMinutesToClose(t *testing.T) {
	m := domain.Machine{EndTime: "00:30"}
	if got := EvaluateRefillWindow(m, at(23, 30)).MinutesToClose; got != 60 {
		t.Errorf("MinutesToClose = %d, want 60", got)
	}
	if got := EvaluateRefillWindow(domain.Machine{}, at(23, 30)).MinutesToClose; got != -1 {
		t.Errorf("MinutesToClose without end time = %d, want -1", got)
	}
}
