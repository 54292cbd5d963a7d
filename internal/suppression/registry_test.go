package suppression

import (
	"context"
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	if got := NormalizePhone("+1 (512) 555-0100"); got != "5125550100" {
		t.Fatalf("expected last 10 digits, got %q", got)
	}
	if got := NormalizePhone("555-0100"); got != "" {
		t.Fatalf("expected empty for short number, got %q", got)
	}
	if got := NormalizePhone(""); got != "" {
		t.Fatalf("expected empty for empty input, got %q", got)
	}
}

func TestNormalizeAddress(t *testing.T) {
	if got := NormalizeAddress("  123  Main   St "); got != "123 main st" {
		t.Fatalf("unexpected normalization %q", got)
	}
	if got := NormalizeAddress(""); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

func TestMemoryRegistry_BlacklistIdempotent(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()

	added, err := r.AddToBlacklist(ctx, "15125550100")
	if err != nil || !added {
		t.Fatalf("first add: added=%v err=%v", added, err)
	}
	// Same number in a different format dedupes on the last ten digits.
	added, err = r.AddToBlacklist(ctx, "(512) 555-0100")
	if err != nil || added {
		t.Fatalf("second add should report already-present: added=%v err=%v", added, err)
	}
	if r.Size() != 1 {
		t.Fatalf("expected registry size 1, got %d", r.Size())
	}

	hit, err := r.IsBlacklisted(ctx, "512.555.0100")
	if err != nil || !hit {
		t.Fatalf("expected blacklist hit, got hit=%v err=%v", hit, err)
	}
}

func TestMemoryRegistry_ShortNumbersNeverBlacklisted(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()
	if added, _ := r.AddToBlacklist(ctx, "555"); added {
		t.Fatalf("short numbers must not be added")
	}
	if hit, _ := r.IsBlacklisted(ctx, "555"); hit {
		t.Fatalf("short numbers must never match")
	}
}

func TestMemoryRegistry_BookedAddresses(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()

	if err := r.MarkAddressBooked(ctx, " 123 Main  St "); err != nil {
		t.Fatalf("MarkAddressBooked: %v", err)
	}
	hit, err := r.IsAddressBooked(ctx, "123 MAIN ST")
	if err != nil || !hit {
		t.Fatalf("expected booked-address hit, got hit=%v err=%v", hit, err)
	}
	hit, _ = r.IsAddressBooked(ctx, "124 Main St")
	if hit {
		t.Fatalf("unexpected hit for different address")
	}
}
