package idgen

import (
	"context"
	"errors"
	"testing"
)

func TestFormatNext(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		last   string
		want   string
	}{
		{"empty request collection", RequestIDs, "", "REQ-0001"},
		{"request increments", RequestIDs, "REQ-0041", "REQ-0042"},
		{"request overflows width", RequestIDs, "REQ-9999", "REQ-10000"},
		{"request non-numeric suffix", RequestIDs, "REQ-ABCD", "REQ-0001"},
		{"request legacy without prefix", RequestIDs, "17", "REQ-0018"},
		{"member first", MemberUIDs, "", "USER001"},
		{"member increments", MemberUIDs, "USER009", "USER010"},
		{"member corrupt", MemberUIDs, "USERxx", "USER001"},
		{"canister first", CanisterScanIDs("KITCHEN"), "", "KITCHEN_CAN_1"},
		{"canister unpadded", CanisterScanIDs("KITCHEN"), "KITCHEN_CAN_9", "KITCHEN_CAN_10"},
		{"canister kitchen with digits", CanisterScanIDs("K12"), "K12_CAN_3", "K12_CAN_4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.format.Next(tt.last); got != tt.want {
				t.Errorf("Next(%q) = %q, want %q", tt.last, got, tt.want)
			}
		})
	}
}

func TestLastIDSequenceIsMonotonic(t *testing.T) {
	var stored []string
	seq := LastIDSequence{
		Format: RequestIDs,
		Last: func(ctx context.Context) (string, error) {
			if len(stored) == 0 {
				return "", nil
			}
			return stored[len(stored)-1], nil
		},
	}

	var prev int64
	for i := 0; i < 25; i++ {
		id, err := seq.Next(context.Background())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		n := RequestIDs.Suffix(id)
		if i == 0 && n != 1 {
			t.Fatalf("first id = %q, want suffix 1", id)
		}
		if n <= prev {
			t.Fatalf("id %q does not increase past %d", id, prev)
		}
		prev = n
		stored = append(stored, id)
	}
}

func TestLastIDSequencePropagatesErrors(t *testing.T) {
	boom := errors.New("store down")
	seq := LastIDSequence{Format: RequestIDs, Last: func(context.Context) (string, error) { return "", boom }}
	if _, err := seq.Next(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Next error = %v, want wrapped %v", err, boom)
	}
}
