package campaign

import (
	"context"
	"testing"
	"time"
)

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{}.WithDefaults()
	if cfg.CallEverySeconds != 30 {
		t.Fatalf("expected 30s cadence default, got %d", cfg.CallEverySeconds)
	}
	if cfg.VoicemailM != 1 || cfg.VoicemailN != 0 {
		t.Fatalf("expected voicemail off by default, got N=%d M=%d", cfg.VoicemailN, cfg.VoicemailM)
	}
	if len(cfg.DaysOfWeek) != 5 || cfg.DaysOfWeek[0] != 1 || cfg.DaysOfWeek[4] != 5 {
		t.Fatalf("expected Mon-Fri default, got %v", cfg.DaysOfWeek)
	}
	if cfg.VoicemailEnabled() {
		t.Fatalf("voicemail must be disabled by default")
	}
}

func TestConfig_Complete(t *testing.T) {
	cfg := Config{AssistantID: "a", PhoneNumberIDs: []string{"p"}, DatasetID: "d"}
	if !cfg.Complete() {
		t.Fatalf("expected complete config")
	}
	for _, broken := range []Config{
		{PhoneNumberIDs: []string{"p"}, DatasetID: "d"},
		{AssistantID: "a", DatasetID: "d"},
		{AssistantID: "a", PhoneNumberIDs: []string{"p"}},
	} {
		if broken.Complete() {
			t.Fatalf("expected incomplete config: %+v", broken)
		}
	}
}

func TestMemoryStore_RejectsUnknownSlot(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.GetConfig(context.Background(), "dialer9"); err != ErrUnknownCampaign {
		t.Fatalf("expected ErrUnknownCampaign, got %v", err)
	}
}

func TestMemoryStore_DailyRollover(t *testing.T) {
	s := NewMemoryStore()
	now := time.Date(2025, 3, 3, 23, 0, 0, 0, time.UTC)
	s.Clock = func() time.Time { return now }
	ctx := context.Background()

	_, err := s.UpdateState(ctx, func(st *State) {
		d := st.Campaigns["dialer1"]
		d.CallsPlacedToday = 7
		d.CallsAnsweredToday = 3
		d.CallsNotAnsweredToday = 4
		d.CallCount = 42
		st.AppointmentsBookedToday = 2
		st.LastOutcome["dialer1:ds1:0"] = "customer-ended-call"
		st.InFlight["dialer1:ds1:9"] = InFlightCall{PhoneNumberID: "pn-a", DispatchedAt: now}
	})
	if err != nil {
		t.Fatalf("UpdateState: %v", err)
	}

	// Same day: counters survive.
	st, err := s.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if st.Campaigns["dialer1"].CallsPlacedToday != 7 {
		t.Fatalf("expected counters kept on same day, got %+v", st.Campaigns["dialer1"])
	}

	// Next civil day: per-day counters reset, lifetime counter kept.
	now = now.Add(2 * time.Hour)
	st, err = s.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	d := st.Campaigns["dialer1"]
	if d.CallsPlacedToday != 0 || d.CallsAnsweredToday != 0 || d.CallsNotAnsweredToday != 0 {
		t.Fatalf("expected per-day counters reset, got %+v", d)
	}
	if d.CallCount != 42 {
		t.Fatalf("expected lifetime call count kept, got %d", d.CallCount)
	}
	if st.AppointmentsBookedToday != 0 {
		t.Fatalf("expected appointments counter reset, got %d", st.AppointmentsBookedToday)
	}
	if st.DailyStatsDate != "2025-03-04" {
		t.Fatalf("expected new stats date persisted, got %q", st.DailyStatsDate)
	}
	if len(st.LastOutcome) != 0 {
		t.Fatalf("expected outcome-dedupe map flushed, got %d entries", len(st.LastOutcome))
	}
	if _, ok := st.InFlight["dialer1:ds1:9"]; !ok {
		t.Fatal("expected pending in-flight entry to survive rollover")
	}
}

func TestMemoryStore_RolloverHonorsLocation(t *testing.T) {
	s := NewMemoryStore()
	loc := time.FixedZone("CST", -6*3600)
	s.Location = loc
	// 02:00 UTC on Mar 4 is still Mar 3 in CST.
	s.Clock = func() time.Time { return time.Date(2025, 3, 4, 2, 0, 0, 0, time.UTC) }

	st, err := s.GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if st.DailyStatsDate != "2025-03-03" {
		t.Fatalf("expected civil date in dialer zone, got %q", st.DailyStatsDate)
	}
}

func TestMemoryStore_StateIsCopied(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	st, _ := s.GetState(ctx)
	st.Campaigns["dialer1"].CallCount = 99
	st.InFlight["x"] = InFlightCall{PhoneNumberID: "p"}

	fresh, _ := s.GetState(ctx)
	if fresh.Campaigns["dialer1"].CallCount != 0 || len(fresh.InFlight) != 0 {
		t.Fatalf("mutating a returned state must not affect the store")
	}
}
