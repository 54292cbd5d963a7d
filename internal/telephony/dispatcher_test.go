package telephony

import (
	"strings"
	"testing"
)

func TestBuildExternalID_ShortFormUntouched(t *testing.T) {
	id := BuildExternalID("dialer1", "ds42", 17)
	if id != "dialer1:ds42:17" {
		t.Fatalf("unexpected id %q", id)
	}
}

func TestBuildExternalID_TruncatesDatasetSegment(t *testing.T) {
	longDS := strings.Repeat("a", 60)
	id := BuildExternalID("dialer1", longDS, 123)
	if len(id) > MaxExternalIDLen {
		t.Fatalf("id exceeds provider limit: %d chars", len(id))
	}
	camp, ds, row, err := ParseExternalID(id)
	if err != nil {
		t.Fatalf("ParseExternalID: %v", err)
	}
	if camp != "dialer1" || row != 123 {
		t.Fatalf("campaign and row must survive truncation, got %q %d", camp, row)
	}
	if !strings.HasPrefix(longDS, ds) {
		t.Fatalf("dataset segment should be a prefix of the original, got %q", ds)
	}
}

func TestParseExternalID(t *testing.T) {
	camp, ds, row, err := ParseExternalID("dialer2:ds1:5")
	if err != nil {
		t.Fatalf("ParseExternalID: %v", err)
	}
	if camp != "dialer2" || ds != "ds1" || row != 5 {
		t.Fatalf("unexpected parts %q %q %d", camp, ds, row)
	}

	if _, _, _, err := ParseExternalID("no-separators"); err == nil {
		t.Fatalf("expected error for malformed id")
	}
	if _, _, _, err := ParseExternalID("a:b:notanumber"); err == nil {
		t.Fatalf("expected error for non-numeric row")
	}
}

func TestNormalizeE164(t *testing.T) {
	if got := NormalizeE164("(512) 555-0100"); got != "+15125550100" {
		t.Fatalf("expected +1 prefix for bare 10 digits, got %q", got)
	}
	if got := NormalizeE164("+447911123456"); got != "+447911123456" {
		t.Fatalf("expected international number kept, got %q", got)
	}
	if got := NormalizeE164("15125550100"); got != "+15125550100" {
		t.Fatalf("expected leading plus added, got %q", got)
	}
}
