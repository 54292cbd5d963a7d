// Package reporting aggregates run state and bookings into the dashboard's
// daily report. It reads immutable-ish sources only; nothing here mutates
// dialer state.
package reporting

import (
	"context"
	"errors"

	"outdial/internal/bookings"
	"outdial/internal/campaign"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// CampaignReport is one campaign slot's line in the daily report.
type CampaignReport struct {
	CampaignID      string `json:"campaign_id"`
	Running         bool   `json:"running"`
	Paused          bool   `json:"paused"`
	CallsPlaced     int    `json:"calls_placed"`
	CallsAnswered   int    `json:"calls_answered"`
	CallsNotAnswered int   `json:"calls_not_answered"`
	LifetimeCalls   int    `json:"lifetime_calls"`
}

// DailyReport is the whole-platform view for one civil day.
type DailyReport struct {
	Date               string           `json:"date"`
	AppointmentsBooked int              `json:"appointments_booked"`
	TotalBookings      int              `json:"total_bookings"`
	CallsPlaced        int              `json:"calls_placed"`
	CallsAnswered      int              `json:"calls_answered"`
	CallsNotAnswered   int              `json:"calls_not_answered"`
	AnswerRate         float64          `json:"answer_rate"`
	ConversionRate     float64          `json:"conversion_rate"`
	Campaigns          []CampaignReport `json:"campaigns"`
}

type Service struct {
	campaigns campaign.Store
	bookings  bookings.Store
}

func NewService(campaigns campaign.Store, bookingStore bookings.Store) *Service {
	return &Service{campaigns: campaigns, bookings: bookingStore}
}

// Daily builds today's report. The state store has already rolled the
// counters to the current civil day.
func (s *Service) Daily(ctx context.Context) (DailyReport, error) {
	if s.campaigns == nil || s.bookings == nil {
		return DailyReport{}, errors.New("reporting: stores not configured")
	}

	st, err := s.campaigns.GetState(ctx)
	if err != nil {
		return DailyReport{}, err
	}
	all, err := s.bookings.List(ctx)
	if err != nil {
		return DailyReport{}, err
	}

	out := DailyReport{
		Date:               st.DailyStatsDate,
		AppointmentsBooked: st.AppointmentsBookedToday,
		TotalBookings:      len(all),
	}
	for _, id := range campaign.SlotIDs {
		run := st.Campaigns[id]
		if run == nil {
			continue
		}
		out.Campaigns = append(out.Campaigns, CampaignReport{
			CampaignID:       id,
			Running:          run.Running,
			Paused:           run.Paused,
			CallsPlaced:      run.CallsPlacedToday,
			CallsAnswered:    run.CallsAnsweredToday,
			CallsNotAnswered: run.CallsNotAnsweredToday,
			LifetimeCalls:    run.CallCount,
		})
		out.CallsPlaced += run.CallsPlacedToday
		out.CallsAnswered += run.CallsAnsweredToday
		out.CallsNotAnswered += run.CallsNotAnsweredToday
	}

	if out.CallsPlaced > 0 {
		out.AnswerRate = float64(out.CallsAnswered) / float64(out.CallsPlaced)
		out.ConversionRate = float64(out.AppointmentsBooked) / float64(out.CallsPlaced)
	}
	return out, nil
}
