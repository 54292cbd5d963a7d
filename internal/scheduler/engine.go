// Package scheduler drives the per-campaign dialing loops: each tick picks
// the next eligible lead, applies suppression and policy, and dispatches
// one call. It also recovers calls whose outcome never arrived.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"outdial/internal/campaign"
	"outdial/internal/leads"
	"outdial/internal/schedule"
	"outdial/internal/suppression"
	"outdial/internal/telephony"
	"outdial/internal/voicemail"
)

// Synthetic ended reasons written by the scheduler itself, without any
// provider call.
const (
	ReasonBlacklisted       = "blacklisted"
	ReasonAddressBooked     = "address-already-booked"
	ReasonCallFailedTimeout = "call-failed-timeout"
)

const (
	// DefaultStaleAfter is how long a dispatched call may wait for its
	// outcome before the next tick declares it lost.
	DefaultStaleAfter = 2 * time.Minute

	// DefaultRetryDelay is the wait before a double-tap second attempt.
	DefaultRetryDelay = 30 * time.Second
)

// SlotReserver guards the dispatch of one external call id across racing
// ticks. Production uses the Redis-backed implementation; tests use the
// in-process one.
type SlotReserver interface {
	Acquire(ctx context.Context, externalID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, externalID string) error
}

// Engine executes scheduler ticks. It owns no goroutines; Registry runs
// the recurring loops and calls Tick.
type Engine struct {
	campaigns  campaign.Store
	leadStore  leads.Store
	suppress   suppression.Registry
	dispatcher telephony.Dispatcher
	slots      SlotReserver

	location   *time.Location
	clock      func() time.Time
	staleAfter time.Duration
	retryDelay time.Duration
	log        *slog.Logger
}

func NewEngine(
	campaigns campaign.Store,
	leadStore leads.Store,
	suppress suppression.Registry,
	dispatcher telephony.Dispatcher,
	slots SlotReserver,
	loc *time.Location,
	log *slog.Logger,
) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		campaigns:  campaigns,
		leadStore:  leadStore,
		suppress:   suppress,
		dispatcher: dispatcher,
		slots:      slots,
		location:   loc,
		clock:      time.Now,
		staleAfter: DefaultStaleAfter,
		retryDelay: DefaultRetryDelay,
		log:        log,
	}
}

// Tick runs one scheduling pass for a campaign. Most exits are silent
// no-ops: not running, paused, incomplete config, outside the run window,
// or no eligible lead. Errors are transient I/O failures; the loop logs
// them and the next tick retries naturally.
func (e *Engine) Tick(ctx context.Context, campaignID string) error {
	st, err := e.campaigns.GetState(ctx)
	if err != nil {
		return fmt.Errorf("read state: %w", err)
	}
	run := st.Campaigns[campaignID]
	if run == nil || !run.Running || run.Paused {
		return nil
	}

	cfg, err := e.campaigns.GetConfig(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if !cfg.Complete() {
		e.log.Debug("tick skipped: campaign not configured", "campaign", campaignID)
		return nil
	}

	now := e.clock().In(e.location)
	if !schedule.WithinWindow(now, cfg.StartTime, cfg.EndTime) || !schedule.AllowedDay(now, cfg.DaysOfWeek) {
		return nil
	}

	lead, ref, ok, err := e.nextUnsuppressed(ctx, cfg)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	externalID := telephony.BuildExternalID(campaignID, cfg.DatasetID, ref.RowIndex)

	// In-flight guard: never dispatch while an attempt for this row is
	// outstanding. A stale entry means the outcome was lost; classify the
	// attempt as failed and presume the number bad, since not even an
	// error webhook arrived.
	if pending, exists := st.InFlight[externalID]; exists {
		if now.Sub(pending.DispatchedAt) > e.staleAfter {
			e.recoverStale(ctx, campaignID, externalID, lead, ref)
		}
		return nil
	}

	return e.dispatch(ctx, campaignID, cfg, lead, ref, externalID, now)
}

// nextUnsuppressed walks the dataset until it finds a lead that is neither
// blacklisted nor at an already-booked address, marking skipped rows so
// they are never scanned again.
func (e *Engine) nextUnsuppressed(ctx context.Context, cfg campaign.Config) (leads.Lead, leads.RowRef, bool, error) {
	for {
		lead, ref, ok, err := e.leadStore.NextEligible(ctx, cfg.DatasetID, cfg.TargetZip)
		if err != nil {
			return leads.Lead{}, leads.RowRef{}, false, fmt.Errorf("next eligible lead: %w", err)
		}
		if !ok {
			return leads.Lead{}, leads.RowRef{}, false, nil
		}

		if hit, err := e.suppress.IsBlacklisted(ctx, lead.Phone); err != nil {
			return leads.Lead{}, leads.RowRef{}, false, fmt.Errorf("blacklist check: %w", err)
		} else if hit {
			if err := e.leadStore.MarkCalled(ctx, ref, leads.Outcome{EndedReason: ReasonBlacklisted}); err != nil {
				return leads.Lead{}, leads.RowRef{}, false, err
			}
			continue
		}

		if hit, err := e.suppress.IsAddressBooked(ctx, lead.Address); err != nil {
			return leads.Lead{}, leads.RowRef{}, false, fmt.Errorf("booked-address check: %w", err)
		} else if hit {
			if err := e.leadStore.MarkCalled(ctx, ref, leads.Outcome{EndedReason: ReasonAddressBooked}); err != nil {
				return leads.Lead{}, leads.RowRef{}, false, err
			}
			continue
		}

		return lead, ref, true, nil
	}
}

// recoverStale resolves an in-flight call whose outcome never arrived.
func (e *Engine) recoverStale(ctx context.Context, campaignID, externalID string, lead leads.Lead, ref leads.RowRef) {
	e.log.Warn("in-flight call timed out, classifying as failed",
		"campaign", campaignID, "external_id", externalID)

	if err := e.leadStore.MarkCalled(ctx, ref, leads.Outcome{EndedReason: ReasonCallFailedTimeout}); err != nil {
		e.log.Error("stale recovery: mark called failed", "external_id", externalID, "err", err)
	}
	if _, err := e.suppress.AddToBlacklist(ctx, lead.Phone); err != nil {
		e.log.Error("stale recovery: blacklist failed", "external_id", externalID, "err", err)
	}
	if _, err := e.campaigns.UpdateState(ctx, func(st *campaign.State) {
		delete(st.InFlight, externalID)
	}); err != nil {
		e.log.Error("stale recovery: clear in-flight failed", "external_id", externalID, "err", err)
	}
	if e.slots != nil {
		_ = e.slots.Release(ctx, externalID)
	}
}

// dispatch reserves the in-flight slot, places the call, and records the
// bookkeeping. Reservation happens before the provider call so a racing
// tick of the same campaign cannot start a second dispatch in the window
// where the first one is still on the wire; the slot is released again if
// the provider rejects the call.
func (e *Engine) dispatch(ctx context.Context, campaignID string, cfg campaign.Config, lead leads.Lead, ref leads.RowRef, externalID string, now time.Time) error {
	if e.slots != nil {
		acquired, err := e.slots.Acquire(ctx, externalID, e.staleAfter)
		if err != nil {
			return fmt.Errorf("acquire dispatch slot: %w", err)
		}
		if !acquired {
			return nil
		}
	}

	var (
		phoneNumberID string
		leaveVM       bool
	)
	_, err := e.campaigns.UpdateState(ctx, func(st *campaign.State) {
		run := st.Campaigns[campaignID]
		idx := run.RoundRobinIndex % len(cfg.PhoneNumberIDs)
		phoneNumberID = cfg.PhoneNumberIDs[idx]
		run.RoundRobinIndex = (idx + 1) % len(cfg.PhoneNumberIDs)

		// Voicemail cadence reads the pre-increment counter, so the first
		// call of every cycle can be a voicemail call.
		leaveVM = cfg.VoicemailEnabled() && run.CallCount%cfg.VoicemailM < cfg.VoicemailN

		run.CallCount++
		run.CallsPlacedToday++
		st.InFlight[externalID] = campaign.InFlightCall{PhoneNumberID: phoneNumberID, DispatchedAt: now}
	})
	if err != nil {
		if e.slots != nil {
			_ = e.slots.Release(ctx, externalID)
		}
		return fmt.Errorf("reserve in-flight: %w", err)
	}

	vars := leadVariables(lead)
	req := telephony.CallRequest{
		AssistantID:    cfg.AssistantID,
		PhoneNumberID:  phoneNumberID,
		CustomerNumber: lead.Phone,
		CustomerName:   customerName(lead),
		ExternalID:     externalID,
		VariableValues: vars,
	}
	if leaveVM && cfg.VoicemailMessage != "" {
		req.VoicemailMessage = voicemail.Render(cfg.VoicemailMessage, vars)
	}

	res, err := e.dispatcher.PlaceCall(ctx, req)
	if err != nil {
		// The lead's row is untouched, so the next tick retries it with a
		// fresh reservation. No backoff; call volume is low.
		e.log.Error("dispatch failed", "campaign", campaignID, "external_id", externalID, "err", err)
		if _, uerr := e.campaigns.UpdateState(ctx, func(st *campaign.State) {
			delete(st.InFlight, externalID)
			run := st.Campaigns[campaignID]
			run.CallCount--
			run.CallsPlacedToday--
		}); uerr != nil {
			e.log.Error("dispatch failure rollback failed", "external_id", externalID, "err", uerr)
		}
		if e.slots != nil {
			_ = e.slots.Release(ctx, externalID)
		}
		return nil
	}

	e.log.Info("call dispatched",
		"campaign", campaignID, "external_id", externalID,
		"call_id", res.CallID, "caller_id", phoneNumberID, "voicemail", leaveVM)
	return nil
}

// ScheduleRedial arms the double-tap second attempt for an external id.
// The reconciler calls this after a no-answer outcome; firing is delayed
// and revalidates that the row is still uncalled.
func (e *Engine) ScheduleRedial(externalID string) {
	time.AfterFunc(e.retryDelay, func() {
		e.fireRedial(context.Background(), externalID)
	})
}

func (e *Engine) fireRedial(ctx context.Context, externalID string) {
	campaignID, datasetID, rowIndex, err := telephony.ParseExternalID(externalID)
	if err != nil {
		e.log.Error("redial: malformed external id", "external_id", externalID, "err", err)
		return
	}
	ref := leads.RowRef{DatasetID: datasetID, RowIndex: rowIndex}

	// Consume the retry flag regardless of whether the redial goes out,
	// and stand down if another attempt for this id is already in flight:
	// a cadence tick re-selected the reverted row before the timer fired.
	var alreadyInFlight bool
	if _, err := e.campaigns.UpdateState(ctx, func(st *campaign.State) {
		delete(st.RetryScheduled, externalID)
		_, alreadyInFlight = st.InFlight[externalID]
	}); err != nil {
		e.log.Error("redial: state update failed", "external_id", externalID, "err", err)
		return
	}
	if alreadyInFlight {
		e.log.Debug("redial skipped: attempt already in flight", "external_id", externalID)
		return
	}

	lead, ok, err := e.leadStore.Row(ctx, ref)
	if err != nil || !ok {
		e.log.Warn("redial: row unavailable", "external_id", externalID, "err", err)
		return
	}
	if lead.Status != leads.StatusNotCalled {
		// Someone else resolved the row in the meantime.
		return
	}

	cfg, err := e.campaigns.GetConfig(ctx, campaignID)
	if err != nil {
		e.log.Error("redial: read config failed", "external_id", externalID, "err", err)
		return
	}
	if len(cfg.PhoneNumberIDs) == 0 {
		return
	}
	phoneNumberID := cfg.PhoneNumberIDs[0]

	// Same reserve-before-dispatch discipline as a tick: slot first, then
	// the in-flight entry, re-checking it under the state lock.
	if e.slots != nil {
		acquired, err := e.slots.Acquire(ctx, externalID, e.staleAfter)
		if err != nil {
			e.log.Error("redial: acquire dispatch slot failed", "external_id", externalID, "err", err)
			return
		}
		if !acquired {
			return
		}
	}

	now := e.clock().In(e.location)
	var raced bool
	if _, err := e.campaigns.UpdateState(ctx, func(st *campaign.State) {
		if _, pending := st.InFlight[externalID]; pending {
			raced = true
			return
		}
		st.InFlight[externalID] = campaign.InFlightCall{PhoneNumberID: phoneNumberID, DispatchedAt: now}
	}); err != nil {
		e.log.Error("redial: reserve in-flight failed", "external_id", externalID, "err", err)
		if e.slots != nil {
			_ = e.slots.Release(ctx, externalID)
		}
		return
	}
	if raced {
		if e.slots != nil {
			_ = e.slots.Release(ctx, externalID)
		}
		return
	}

	vars := leadVariables(lead)
	_, err = e.dispatcher.PlaceCall(ctx, telephony.CallRequest{
		AssistantID:    cfg.AssistantID,
		PhoneNumberID:  phoneNumberID,
		CustomerNumber: lead.Phone,
		CustomerName:   customerName(lead),
		ExternalID:     externalID,
		VariableValues: vars,
	})
	if err != nil {
		e.log.Error("redial dispatch failed", "external_id", externalID, "err", err)
		if _, uerr := e.campaigns.UpdateState(ctx, func(st *campaign.State) {
			delete(st.InFlight, externalID)
		}); uerr != nil {
			e.log.Error("redial rollback failed", "external_id", externalID, "err", uerr)
		}
		if e.slots != nil {
			_ = e.slots.Release(ctx, externalID)
		}
		return
	}
	e.log.Info("double-tap redial dispatched", "campaign", campaignID, "external_id", externalID)
}

// NextUpPreview describes what a running campaign would dial next.
type NextUpPreview struct {
	Done      bool   `json:"done,omitempty"`
	NoZipLeft bool   `json:"no_contacts_in_target_zip,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
	RowIndex  int    `json:"row_index,omitempty"`
}

// NextUp reports the next lead per running campaign for the dashboard.
// Campaigns that are stopped or unconfigured map to nil.
func (e *Engine) NextUp(ctx context.Context) (map[string]*NextUpPreview, error) {
	st, err := e.campaigns.GetState(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*NextUpPreview, len(campaign.SlotIDs))
	for _, id := range campaign.SlotIDs {
		out[id] = nil
		run := st.Campaigns[id]
		if run == nil || !run.Running {
			continue
		}
		cfg, err := e.campaigns.GetConfig(ctx, id)
		if err != nil || cfg.DatasetID == "" {
			continue
		}
		lead, ref, ok, err := e.leadStore.NextEligible(ctx, cfg.DatasetID, cfg.TargetZip)
		if err != nil {
			e.log.Warn("next-up lookup failed", "campaign", id, "err", err)
			continue
		}
		if !ok {
			out[id] = &NextUpPreview{Done: true, NoZipLeft: cfg.TargetZip != ""}
			continue
		}
		out[id] = &NextUpPreview{
			FirstName: lead.FirstName,
			LastName:  lead.LastName,
			Phone:     lead.Phone,
			RowIndex:  ref.RowIndex,
		}
	}
	return out, nil
}

func leadVariables(l leads.Lead) map[string]string {
	return map[string]string{
		"firstName": l.FirstName,
		"lastName":  l.LastName,
		"address":   l.Address,
		"city":      l.City,
		"zip":       l.Zip,
	}
}

func customerName(l leads.Lead) string {
	name := l.FirstName
	if l.LastName != "" {
		if name != "" {
			name += " "
		}
		name += l.LastName
	}
	return name
}
