// Package reconcile turns provider end-of-call reports into durable
// outcomes: lead row updates, daily stats, bookings, blacklist entries,
// and the double-tap second attempt.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"outdial/internal/bookings"
	"outdial/internal/campaign"
	"outdial/internal/leads"
	"outdial/internal/suppression"
	"outdial/internal/telephony"
)

// Ended reasons the provider reports that get special handling.
const (
	ReasonNoAnswer  = "customer-did-not-answer"
	ReasonVoicemail = "voicemail"
	ReasonBusy      = "customer-busy"
)

// retryableReasons qualify for the double-tap second attempt: nobody
// picked up, so a quick redial may catch them.
var retryableReasons = map[string]bool{
	ReasonNoAnswer:  true,
	ReasonVoicemail: true,
	ReasonBusy:      true,
}

// blacklistReasons mean the number itself is bad; calling it again only
// burns provider fees.
var blacklistReasons = map[string]bool{
	"customer-number-invalid":                  true,
	"call.start.error-customer-number-invalid": true,
	"twilio-failed-to-connect-call":            true,
}

// RetryScheduler arms a delayed second attempt. The scheduler engine
// implements it.
type RetryScheduler interface {
	ScheduleRedial(externalID string)
}

// SlotReleaser frees the dispatch slot once the call is resolved.
type SlotReleaser interface {
	Release(ctx context.Context, externalID string) error
}

// Reconciler applies one outcome event to the system. Safe for concurrent
// use; all shared state lives in the stores.
type Reconciler struct {
	campaigns campaign.Store
	leadStore leads.Store
	suppress  suppression.Registry
	bookings  bookings.Store
	retries   RetryScheduler
	slots     SlotReleaser
	log       *slog.Logger
}

func New(
	campaigns campaign.Store,
	leadStore leads.Store,
	suppress suppression.Registry,
	bookingStore bookings.Store,
	retries RetryScheduler,
	slots SlotReleaser,
	log *slog.Logger,
) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{
		campaigns: campaigns,
		leadStore: leadStore,
		suppress:  suppress,
		bookings:  bookingStore,
		retries:   retries,
		slots:     slots,
		log:       log,
	}
}

// HandleOutcome reconciles one end-of-call report. Events with malformed
// external ids are logged and discarded; an unmatchable outcome has
// nothing to reconcile against. Duplicate deliveries (same externalId and
// endedReason) repeat only the idempotent row write, never the counters,
// booking, or retry.
func (r *Reconciler) HandleOutcome(ctx context.Context, ev telephony.OutcomeEvent) error {
	campaignID, datasetID, rowIndex, err := telephony.ParseExternalID(ev.ExternalID)
	if err != nil {
		r.log.Warn("outcome with malformed external id discarded",
			"external_id", ev.ExternalID, "ended_reason", ev.EndedReason)
		return nil
	}
	ref := leads.RowRef{DatasetID: datasetID, RowIndex: rowIndex}

	// Read the row before writing the outcome: the booking needs the
	// lead's name and address, which the event does not carry.
	lead, haveRow, err := r.leadStore.Row(ctx, ref)
	if err != nil {
		r.log.Warn("outcome row lookup failed", "external_id", ev.ExternalID, "err", err)
	}

	doubleTap := false
	if cfg, err := r.campaigns.GetConfig(ctx, campaignID); err == nil {
		doubleTap = cfg.DoubleTap
	}

	countsInStats := campaign.IsValidID(campaignID) && campaignID != campaign.TestCampaignID

	var duplicate, scheduleRetry bool
	if _, err := r.campaigns.UpdateState(ctx, func(st *campaign.State) {
		lastReason, seen := st.LastOutcome[ev.ExternalID]
		duplicate = seen && lastReason == ev.EndedReason
		delete(st.InFlight, ev.ExternalID)
		if duplicate {
			return
		}
		st.LastOutcome[ev.ExternalID] = ev.EndedReason

		if countsInStats {
			run := st.Campaigns[campaignID]
			if ev.EndedReason == ReasonNoAnswer {
				run.CallsNotAnsweredToday++
			} else {
				run.CallsAnsweredToday++
			}
		}

		// One second attempt at most per externalId. The flag survives
		// until the redial fires, and the duplicate check above stops the
		// second attempt's identical outcome from arming a third.
		if doubleTap && retryableReasons[ev.EndedReason] {
			if _, pending := st.RetryScheduled[ev.ExternalID]; !pending {
				st.RetryScheduled[ev.ExternalID] = time.Now()
				scheduleRetry = true
			}
		}
	}); err != nil {
		return fmt.Errorf("reconcile state update: %w", err)
	}

	if r.slots != nil {
		if err := r.slots.Release(ctx, ev.ExternalID); err != nil {
			r.log.Warn("release dispatch slot failed", "external_id", ev.ExternalID, "err", err)
		}
	}

	// Row write is idempotent, so duplicates may repeat it.
	if err := r.leadStore.MarkCalled(ctx, ref, leads.Outcome{
		EndedReason:       ev.EndedReason,
		SuccessEvaluation: ev.SuccessEvaluation,
		Transcript:        ev.Transcript,
	}); err != nil {
		r.log.Warn("outcome row write failed", "external_id", ev.ExternalID, "err", err)
	}

	if duplicate {
		r.log.Debug("duplicate outcome dropped",
			"external_id", ev.ExternalID, "ended_reason", ev.EndedReason)
		return nil
	}

	if ev.Successful() {
		if err := r.recordBooking(ctx, ev, lead, haveRow); err != nil {
			r.log.Error("booking record failed", "external_id", ev.ExternalID, "err", err)
		}
	}

	if blacklistReasons[ev.EndedReason] {
		number := ev.CustomerNumber
		if number == "" && haveRow {
			number = lead.Phone
		}
		if added, err := r.suppress.AddToBlacklist(ctx, number); err != nil {
			r.log.Warn("blacklist add failed", "external_id", ev.ExternalID, "err", err)
		} else if added {
			r.log.Info("number blacklisted", "external_id", ev.ExternalID, "ended_reason", ev.EndedReason)
		}
	}

	if scheduleRetry {
		if err := r.leadStore.Revert(ctx, ref); err != nil {
			r.log.Warn("revert for second attempt failed", "external_id", ev.ExternalID, "err", err)
		} else if r.retries != nil {
			r.retries.ScheduleRedial(ev.ExternalID)
			r.log.Info("double-tap scheduled",
				"external_id", ev.ExternalID, "ended_reason", ev.EndedReason)
		}
	}

	r.log.Info("outcome reconciled",
		"campaign", campaignID, "external_id", ev.ExternalID,
		"ended_reason", ev.EndedReason, "successful", ev.Successful())
	return nil
}

// recordBooking persists a successful call as a booking, feeds the
// booked-address suppression set, and bumps the daily counter. The lead
// row supplies name and address; without it there is no address to
// suppress, so only what the event carries gets stored.
func (r *Reconciler) recordBooking(ctx context.Context, ev telephony.OutcomeEvent, lead leads.Lead, haveRow bool) error {
	b := bookings.Booking{
		Phone:      ev.CustomerNumber,
		Transcript: ev.Transcript,
	}
	if haveRow {
		b.FirstName = lead.FirstName
		b.LastName = lead.LastName
		b.Address = lead.Address
		if b.Phone == "" {
			b.Phone = lead.Phone
		}
	}

	added, err := r.bookings.Add(ctx, b)
	if err != nil {
		return err
	}
	if !added {
		return nil
	}

	if b.Address != "" {
		if err := r.suppress.MarkAddressBooked(ctx, b.Address); err != nil {
			r.log.Warn("mark address booked failed", "address", b.Address, "err", err)
		}
	}
	_, err = r.campaigns.UpdateState(ctx, func(st *campaign.State) {
		st.AppointmentsBookedToday++
	})
	return err
}
