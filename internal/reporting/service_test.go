package reporting

import (
	"context"
	"testing"
	"time"

	"outdial/internal/bookings"
	"outdial/internal/campaign"
)

func TestDailyReportAggregates(t *testing.T) {
	ctx := context.Background()

	cs := campaign.NewMemoryStore()
	if _, err := cs.UpdateState(ctx, func(st *campaign.State) {
		st.AppointmentsBookedToday = 2
		st.Campaigns["dialer1"].Running = true
		st.Campaigns["dialer1"].CallsPlacedToday = 10
		st.Campaigns["dialer1"].CallsAnsweredToday = 4
		st.Campaigns["dialer1"].CallsNotAnsweredToday = 6
		st.Campaigns["dialer1"].CallCount = 120
		st.Campaigns["dialer2"].CallsPlacedToday = 10
		st.Campaigns["dialer2"].CallsAnsweredToday = 6
		st.Campaigns["dialer2"].CallsNotAnsweredToday = 4
	}); err != nil {
		t.Fatal(err)
	}

	bk := bookings.NewMemoryStore()
	for _, b := range []bookings.Booking{
		{FirstName: "Ann", Address: "12 Oak St", CreatedAt: time.Now()},
		{FirstName: "Bob", Address: "9 Elm Ave", CreatedAt: time.Now()},
	} {
		if _, err := bk.Add(ctx, b); err != nil {
			t.Fatal(err)
		}
	}

	rpt, err := NewService(cs, bk).Daily(ctx)
	if err != nil {
		t.Fatalf("daily: %v", err)
	}
	if rpt.CallsPlaced != 20 || rpt.CallsAnswered != 10 || rpt.CallsNotAnswered != 10 {
		t.Errorf("totals = (%d, %d, %d)", rpt.CallsPlaced, rpt.CallsAnswered, rpt.CallsNotAnswered)
	}
	if rpt.AppointmentsBooked != 2 || rpt.TotalBookings != 2 {
		t.Errorf("bookings = (%d, %d)", rpt.AppointmentsBooked, rpt.TotalBookings)
	}
	if rpt.AnswerRate != 0.5 {
		t.Errorf("answer rate = %v", rpt.AnswerRate)
	}
	if rpt.ConversionRate != 0.1 {
		t.Errorf("conversion rate = %v", rpt.ConversionRate)
	}
	if len(rpt.Campaigns) != len(campaign.SlotIDs) {
		t.Fatalf("campaign lines = %d", len(rpt.Campaigns))
	}
	if rpt.Campaigns[0].CampaignID != "dialer1" || rpt.Campaigns[0].LifetimeCalls != 120 {
		t.Errorf("dialer1 line = %+v", rpt.Campaigns[0])
	}
}

func TestDailyReportRequiresStores(t *testing.T) {
	if _, err := (&Service{}).Daily(context.Background()); err == nil {
		t.Fatal("expected error with no stores configured")
	}
}
