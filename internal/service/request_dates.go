package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"tea_refill/internal/domain"
	"time"
)

// Historical requestDateTime layouts, matched against the text before the first comma.
var (
	dayMonthYear = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})`) // 16/10/2026
	monthDayYear = regexp.MustCompile(`^(\d{1,2})-(\d{1,2})-(\d{4})`) // 10-16-2026
	yearMonthDay = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})`) // 2026-10-16
)

func dateKey(year, month, day int) string {
	return fmt.Sprintf("%d-%d-%d", year, month, day)
}

// NormalizeRequestDate reduces a stored requestDateTime to an unpadded YYYY-M-D key.
// Input in no known layout is returned unchanged.
func NormalizeRequestDate(raw string) string {
	segment, _, _ := strings.Cut(raw, ",")
	segment = strings.TrimSpace(segment)

	var year, month, day string
	if m := dayMonthYear.FindStringSubmatch(segment); m != nil {
		day, month, year = m[1], m[2], m[3]
	} else if m := monthDayYear.FindStringSubmatch(segment); m != nil {
		month, day, year = m[1], m[2], m[3]
	} else if m := yearMonthDay.FindStringSubmatch(segment); m != nil {
		year, month, day = m[1], m[2], m[3]
	} else {
		return raw
	}

	y, _ := strconv.Atoi(year)
	mo, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	if mo < 1 || mo > 12 || d < 1 || d > 31 {
		return raw
	}
	return dateKey(y, mo, d)
}

// TodayKey is the normalized key of now's IST calendar date.
func TodayKey(now time.Time) string {
	local := now.In(IST)
	return dateKey(local.Year(), int(local.Month()), local.Day())
}

// IsFirstRequestToday reports whether none of the machine's requests was raised on now's IST date.
func IsFirstRequestToday(requests []domain.Request, now time.Time) bool {
	today := TodayKey(now)
	for _, r := range requests {
		key := NormalizeRequestDate(r.RequestDateTime)
		if r.RequestDateTime == "" && !r.CreatedAt.IsZero() {
			key = TodayKey(r.CreatedAt)
		}
		if key == today {
			return false
		}
	}
	return true
}

// FormatRequestDateTime renders t the way the mobile clients store it, e.g. "16/10/2026, 2:30:00 pm".
func FormatRequestDateTime(t time.Time) string {
	local := t.In(IST)
	return fmt.Sprintf("%d/%d/%d, %s", local.Day(), int(local.Month()), local.Year(), local.Format("3:04:05 pm"))
}
