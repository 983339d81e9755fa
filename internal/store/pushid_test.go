package store

import (
	"sort"
	"testing"
	"time"
)

func TestNewPushIDLengthAndAlphabet(t *testing.T) {
	id := NewPushID(time.Now())
	if len(id) != 20 {
		t.Fatalf("expected 20 characters, got %d", len(id))
	}
	for _, c := range id {
		found := false
		for _, a := range pushAlphabet {
			if c == a {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("character %q outside push alphabet", c)
		}
	}
}

func TestPushAlphabetCoversAllByteValues(t *testing.T) {
	// next maps 6-bit values straight into the alphabet, so it must hold
	// exactly 64 characters in ascending ASCII order.
	if len(pushAlphabet) != 64 {
		t.Fatalf("expected 64 characters, got %d", len(pushAlphabet))
	}
	for i := 1; i < len(pushAlphabet); i++ {
		if pushAlphabet[i-1] >= pushAlphabet[i] {
			t.Fatalf("alphabet not ascending at %d: %q >= %q",
				i, pushAlphabet[i-1], pushAlphabet[i])
		}
	}
}

func TestNewPushIDOrderedAcrossMilliseconds(t *testing.T) {
	earlier := NewPushID(time.UnixMilli(1700000000000))
	later := NewPushID(time.UnixMilli(1700000000001))
	if earlier >= later {
		t.Fatalf("expected %q < %q", earlier, later)
	}
}

func TestNewPushIDOrderedWithinMillisecond(t *testing.T) {
	// More than 64 iterations so the suffix increment wraps past the last
	// alphabet character and carries into the next byte.
	at := time.UnixMilli(1700000000500)
	ids := make([]string, 0, 200)
	for i := 0; i < 200; i++ {
		ids = append(ids, NewPushID(at))
	}

	if !sort.StringsAreSorted(ids) {
		t.Fatal("expected same-millisecond ids to be lexicographically ordered")
	}

	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate push id %q", id)
		}
		seen[id] = struct{}{}
	}
}
