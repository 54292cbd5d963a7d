package reconcile

import (
	"context"
	"testing"
	"time"

	"outdial/internal/bookings"
	"outdial/internal/campaign"
	"outdial/internal/leads"
	"outdial/internal/suppression"
	"outdial/internal/telephony"
)

type fakeRetries struct {
	scheduled []string
}

func (f *fakeRetries) ScheduleRedial(externalID string) {
	f.scheduled = append(f.scheduled, externalID)
}

type fakeSlots struct {
	released []string
}

func (f *fakeSlots) Release(_ context.Context, externalID string) error {
	f.released = append(f.released, externalID)
	return nil
}

type fixture struct {
	rec       *Reconciler
	campaigns *campaign.MemoryStore
	leadStore *leads.MemoryStore
	suppress  *suppression.MemoryRegistry
	bookings  *bookings.MemoryStore
	retries   *fakeRetries
	slots     *fakeSlots
}

const externalID = "dialer1:ds1:0"

func newFixture(t *testing.T, doubleTap bool) *fixture {
	t.Helper()
	ctx := context.Background()

	cs := campaign.NewMemoryStore()
	if _, err := cs.UpdateConfig(ctx, "dialer1", func(c *campaign.Config) {
		c.AssistantID = "asst-1"
		c.PhoneNumberIDs = []string{"pn-a"}
		c.DatasetID = "ds1"
		c.DoubleTap = doubleTap
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := cs.UpdateState(ctx, func(st *campaign.State) {
		st.Campaigns["dialer1"].Running = true
		st.InFlight[externalID] = campaign.InFlightCall{PhoneNumberID: "pn-a", DispatchedAt: time.Now()}
	}); err != nil {
		t.Fatal(err)
	}

	ls := leads.NewMemoryStore()
	if err := ls.ReplaceRows(ctx, "ds1", "Leads", []leads.Lead{{
		FirstName:  "Ann",
		LastName:   "Rivera",
		Address:    "12 Oak St",
		City:       "Austin",
		Zip:        "78701",
		Phone:      "+15125550001",
		CallStatus: leads.CallStatus{Status: leads.StatusNotCalled},
	}}); err != nil {
		t.Fatal(err)
	}

	f := &fixture{
		campaigns: cs,
		leadStore: ls,
		suppress:  suppression.NewMemoryRegistry(),
		bookings:  bookings.NewMemoryStore(),
		retries:   &fakeRetries{},
		slots:     &fakeSlots{},
	}
	f.rec = New(cs, ls, f.suppress, f.bookings, f.retries, f.slots, nil)
	return f
}

func event(endedReason string) telephony.OutcomeEvent {
	return telephony.OutcomeEvent{
		ExternalID:     externalID,
		EndedReason:    endedReason,
		Transcript:     "hello",
		CustomerNumber: "+15125550001",
	}
}

func TestHandleOutcome_AnsweredCall(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	if err := f.rec.HandleOutcome(ctx, event("customer-ended-call")); err != nil {
		t.Fatalf("handle outcome: %v", err)
	}

	st, _ := f.campaigns.GetState(ctx)
	run := st.Campaigns["dialer1"]
	if run.CallsAnsweredToday != 1 || run.CallsNotAnsweredToday != 0 {
		t.Errorf("stats = (%d, %d), want (1, 0)", run.CallsAnsweredToday, run.CallsNotAnsweredToday)
	}
	if len(st.InFlight) != 0 {
		t.Errorf("in-flight not cleared: %v", st.InFlight)
	}
	if st.LastOutcome[externalID] != "customer-ended-call" {
		t.Errorf("last outcome = %q", st.LastOutcome[externalID])
	}

	lead, _, _ := f.leadStore.Row(ctx, leads.RowRef{DatasetID: "ds1", RowIndex: 0})
	if lead.Status != leads.StatusCalled || lead.EndedReason != "customer-ended-call" || lead.Transcript != "hello" {
		t.Errorf("row after outcome = %+v", lead.CallStatus)
	}
	if len(f.slots.released) != 1 || f.slots.released[0] != externalID {
		t.Errorf("slot releases = %v", f.slots.released)
	}
}

func TestHandleOutcome_NoAnswerStats(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	if err := f.rec.HandleOutcome(ctx, event(ReasonNoAnswer)); err != nil {
		t.Fatal(err)
	}
	st, _ := f.campaigns.GetState(ctx)
	run := st.Campaigns["dialer1"]
	if run.CallsAnsweredToday != 0 || run.CallsNotAnsweredToday != 1 {
		t.Errorf("stats = (%d, %d), want (0, 1)", run.CallsAnsweredToday, run.CallsNotAnsweredToday)
	}
	// Double-tap disabled: no retry armed.
	if len(f.retries.scheduled) != 0 {
		t.Errorf("retries scheduled without double-tap: %v", f.retries.scheduled)
	}
}

func TestHandleOutcome_DuplicateDeliveryCountsOnce(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	ev := event("customer-ended-call")
	for i := 0; i < 3; i++ {
		if err := f.rec.HandleOutcome(ctx, ev); err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
	}
	st, _ := f.campaigns.GetState(ctx)
	if run := st.Campaigns["dialer1"]; run.CallsAnsweredToday != 1 {
		t.Errorf("answered = %d after redelivery, want 1", run.CallsAnsweredToday)
	}
}

func TestHandleOutcome_DoubleTapSingleFire(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	if err := f.rec.HandleOutcome(ctx, event(ReasonNoAnswer)); err != nil {
		t.Fatal(err)
	}

	// Row goes back to not-called but keeps the first attempt's outcome.
	lead, _, _ := f.leadStore.Row(ctx, leads.RowRef{DatasetID: "ds1", RowIndex: 0})
	if lead.Status != leads.StatusNotCalled {
		t.Errorf("row status = %q, want reverted", lead.Status)
	}
	if lead.EndedReason != ReasonNoAnswer {
		t.Errorf("first-attempt outcome lost: %q", lead.EndedReason)
	}
	if len(f.retries.scheduled) != 1 || f.retries.scheduled[0] != externalID {
		t.Fatalf("retries = %v", f.retries.scheduled)
	}
	st, _ := f.campaigns.GetState(ctx)
	if _, ok := st.RetryScheduled[externalID]; !ok {
		t.Error("retry flag not set")
	}

	// The second attempt ends the same way. Its outcome is a duplicate
	// pair, so no third attempt gets armed.
	if err := f.rec.HandleOutcome(ctx, event(ReasonNoAnswer)); err != nil {
		t.Fatal(err)
	}
	if len(f.retries.scheduled) != 1 {
		t.Fatalf("third attempt armed: %v", f.retries.scheduled)
	}
	// The duplicate still resolves the row.
	lead, _, _ = f.leadStore.Row(ctx, leads.RowRef{DatasetID: "ds1", RowIndex: 0})
	if lead.Status != leads.StatusCalled {
		t.Errorf("row left unresolved after second attempt: %q", lead.Status)
	}
}

func TestHandleOutcome_SuccessfulCallBooks(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	ev := event("customer-ended-call")
	ev.SuccessEvaluation = "true"
	if err := f.rec.HandleOutcome(ctx, ev); err != nil {
		t.Fatal(err)
	}

	list, _ := f.bookings.List(ctx)
	if len(list) != 1 {
		t.Fatalf("bookings = %d, want 1", len(list))
	}
	b := list[0]
	if b.FirstName != "Ann" || b.Address != "12 Oak St" || b.Phone != "+15125550001" {
		t.Errorf("booking = %+v", b)
	}
	if hit, _ := f.suppress.IsAddressBooked(ctx, "12 oak st"); !hit {
		t.Error("address not suppressed after booking")
	}
	st, _ := f.campaigns.GetState(ctx)
	if st.AppointmentsBookedToday != 1 {
		t.Errorf("appointments today = %d", st.AppointmentsBookedToday)
	}
}

func TestHandleOutcome_EmptyEndedReasonFirstDeliveryCounts(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	// Some provider reports arrive without an endedReason. The first one
	// is still a fresh outcome, not a duplicate of nothing.
	ev := event("")
	ev.SuccessEvaluation = "true"
	if err := f.rec.HandleOutcome(ctx, ev); err != nil {
		t.Fatal(err)
	}

	st, _ := f.campaigns.GetState(ctx)
	run := st.Campaigns["dialer1"]
	if run.CallsAnsweredToday != 1 {
		t.Errorf("answered today = %d, want 1", run.CallsAnsweredToday)
	}
	list, _ := f.bookings.List(ctx)
	if len(list) != 1 {
		t.Fatalf("bookings = %d, want 1", len(list))
	}

	// A second identical delivery is the real duplicate.
	if err := f.rec.HandleOutcome(ctx, ev); err != nil {
		t.Fatal(err)
	}
	st, _ = f.campaigns.GetState(ctx)
	if st.Campaigns["dialer1"].CallsAnsweredToday != 1 {
		t.Errorf("answered today after redelivery = %d, want 1", st.Campaigns["dialer1"].CallsAnsweredToday)
	}
}

func TestHandleOutcome_BadNumberBlacklists(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	if err := f.rec.HandleOutcome(ctx, event("customer-number-invalid")); err != nil {
		t.Fatal(err)
	}
	if hit, _ := f.suppress.IsBlacklisted(ctx, "+15125550001"); !hit {
		t.Error("invalid number not blacklisted")
	}
}

func TestHandleOutcome_TestCampaignSkipsStats(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	ev := event("customer-ended-call")
	ev.ExternalID = "test:manual:0"
	if err := f.rec.HandleOutcome(ctx, ev); err != nil {
		t.Fatal(err)
	}
	st, _ := f.campaigns.GetState(ctx)
	for id, run := range st.Campaigns {
		if run.CallsAnsweredToday != 0 || run.CallsNotAnsweredToday != 0 {
			t.Errorf("campaign %s stats moved by test call: %+v", id, run)
		}
	}
}

func TestHandleOutcome_MalformedExternalID(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	ev := event("customer-ended-call")
	ev.ExternalID = "garbage"
	if err := f.rec.HandleOutcome(ctx, ev); err != nil {
		t.Fatalf("malformed id should be discarded, got %v", err)
	}
	st, _ := f.campaigns.GetState(ctx)
	if len(st.LastOutcome) != 0 {
		t.Errorf("outcome recorded for malformed id: %v", st.LastOutcome)
	}
}
