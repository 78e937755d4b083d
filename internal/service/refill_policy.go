package service

import (
	"strconv"
	"strings"
	"tea_refill/internal/domain"
	"time"
)

// IST is the fixed zone every machine schedule is expressed in.
var IST = time.FixedZone("IST", 5*60*60+30*60)

type RefillTier string

const (
	TierBlocked RefillTier = "blocked"
	TierClosing RefillTier = "end"
	TierNormal  RefillTier = "start"
)

const (
	blockWindowMinutes   = 60
	closingWindowMinutes = 120
	minutesPerDay        = 24 * 60
)

type RefillWindow struct {
	Blocked  bool
	Quantity int
	Tier     RefillTier
	// MinutesToClose is -1 when the machine has no usable end time.
	MinutesToClose int
}

// parseClockMinutes accepts H:MM and HH:MM.
func parseClockMinutes(s string) (int, bool) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(h) < 1 || len(h) > 2 || len(m) != 2 {
		return 0, false
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour >= 24 {
		return 0, false
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute >= 60 {
		return 0, false
	}
	return hour*60 + minute, true
}

// EvaluateRefillWindow decides whether a refill may be requested now and how much tea it carries.
func EvaluateRefillWindow(m domain.Machine, now time.Time) RefillWindow {
	endMinutes, ok := parseClockMinutes(m.EndTime)
	if !ok {
		if m.MachineType == "" || m.MachineType == domain.MachineFullTime {
			return RefillWindow{Quantity: m.TeaFillStartQuantity, Tier: TierNormal, MinutesToClose: -1}
		}
		return RefillWindow{Quantity: m.TeaFillEndQuantity, Tier: TierClosing, MinutesToClose: -1}
	}

	local := now.In(IST)
	delta := endMinutes - (local.Hour()*60 + local.Minute())
	if delta < 0 {
		delta += minutesPerDay
	}

	switch {
	case delta <= blockWindowMinutes:
		return RefillWindow{Blocked: true, Tier: TierBlocked, MinutesToClose: delta}
	case delta <= closingWindowMinutes:
		return RefillWindow{Quantity: m.TeaFillEndQuantity, Tier: TierClosing, MinutesToClose: delta}
	default:
		return RefillWindow{Quantity: m.TeaFillStartQuantity, Tier: TierNormal, MinutesToClose: delta}
	}
}
