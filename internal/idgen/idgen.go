// Package idgen builds the human-readable business keys (REQ-0001, USER001, K1_CAN_7).
package idgen

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Format is a literal prefix followed by a counter zero-padded to Width digits.
type Format struct {
	Prefix string
	Width  int
}

var (
	RequestIDs = Format{Prefix: "REQ-", Width: 4}
	MemberUIDs = Format{Prefix: "USER", Width: 3}
)

// CanisterScanIDs is the unpadded per-kitchen canister format.
func CanisterScanIDs(kitchenID string) Format {
	return Format{Prefix: kitchenID + "_CAN_"}
}

// Suffix extracts the trailing counter of id. Missing or non-numeric suffixes count as 0
// so corrupt legacy rows never block generation.
func (f Format) Suffix(id string) int64 {
	rest := strings.TrimPrefix(strings.TrimSpace(id), f.Prefix)
	end := len(rest)
	start := end
	for start > 0 && rest[start-1] >= '0' && rest[start-1] <= '9' {
		start--
	}
	if start == end {
		return 0
	}
	n, err := strconv.ParseInt(rest[start:end], 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func (f Format) Format(n int64) string {
	if f.Width <= 0 {
		return f.Prefix + strconv.FormatInt(n, 10)
	}
	return fmt.Sprintf("%s%0*d", f.Prefix, f.Width, n)
}

// Next returns the identifier following last ("" yields counter 1).
func (f Format) Next(last string) string {
	return f.Format(f.Suffix(last) + 1)
}

// Sequence hands out the next identifier of one collection.
type Sequence interface {
	Next(ctx context.Context) (string, error)
}

// LastFunc reads the most recently inserted identifier ("" when the collection is empty).
type LastFunc func(ctx context.Context) (string, error)

// LastIDSequence is the read-then-increment strategy. Callers must pair it with a unique
// constraint and retry, since two readers can observe the same last row.
type LastIDSequence struct {
	Format Format
	Last   LastFunc
}

func (s LastIDSequence) Next(ctx context.Context) (string, error) {
	last, err := s.Last(ctx)
	if err != nil {
		return "", fmt.Errorf("LastIDSequence.Next: %w", err)
	}
	return s.Format.Next(last), nil
}
