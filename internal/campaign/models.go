// Package campaign holds per-campaign dialer configuration and mutable run
// state. The platform runs a small fixed set of campaign slots; slots are
// configured, never created or destroyed.
package campaign

import "time"

// SlotIDs is the fixed set of campaign slots.
var SlotIDs = []string{"dialer1", "dialer2", "dialer3"}

// IsValidID reports whether id names a campaign slot.
func IsValidID(id string) bool {
	for _, s := range SlotIDs {
		if s == id {
			return true
		}
	}
	return false
}

// TestCampaignID marks synthetic test calls. Outcomes for it skip stats.
const TestCampaignID = "test"

// Config is the persisted configuration of one campaign slot.
type Config struct {
	AssistantID    string   `json:"assistant_id"`
	PhoneNumberIDs []string `json:"phone_number_ids"`

	// CallEverySeconds is the tick cadence.
	CallEverySeconds int `json:"call_every_seconds"`

	// DoubleTap enables the automatic second attempt after a
	// no-answer/voicemail/busy outcome.
	DoubleTap bool `json:"double_tap"`

	// Voicemail policy: leave a message on N out of every M calls.
	// N <= 0 or M < 1 disables voicemail.
	VoicemailN       int    `json:"voicemail_n"`
	VoicemailM       int    `json:"voicemail_m"`
	VoicemailMessage string `json:"voicemail_message"`

	DatasetID string `json:"dataset_id"`

	// Run window, "HH:MM" in the dialer time zone. Empty = unbounded.
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`

	// TargetZip restricts lead selection to one postal code when set.
	TargetZip string `json:"target_zip"`

	// DaysOfWeek uses 0=Sun .. 6=Sat. Empty resolves to Mon-Fri.
	DaysOfWeek []int `json:"days_of_week"`
}

// WithDefaults resolves unset fields to their documented defaults.
func (c Config) WithDefaults() Config {
	out := c
	if out.CallEverySeconds <= 0 {
		out.CallEverySeconds = 30
	}
	if out.VoicemailM < 1 {
		out.VoicemailM = 1
	}
	if len(out.DaysOfWeek) == 0 {
		out.DaysOfWeek = []int{1, 2, 3, 4, 5}
	}
	return out
}

// Complete reports whether the campaign can dial: an assistant, at least
// one caller ID, and a dataset.
func (c Config) Complete() bool {
	return c.AssistantID != "" && len(c.PhoneNumberIDs) > 0 && c.DatasetID != ""
}

// VoicemailEnabled reports whether the voicemail cadence is active.
func (c Config) VoicemailEnabled() bool {
	return c.VoicemailN > 0 && c.VoicemailM >= 1
}

// InFlightCall tracks one dispatched call awaiting its outcome event.
type InFlightCall struct {
	PhoneNumberID string    `json:"phone_number_id"`
	DispatchedAt  time.Time `json:"dispatched_at"`
}

// RunState is the mutable runtime state of one campaign slot.
type RunState struct {
	Running bool `json:"running"`
	Paused  bool `json:"paused"`

	// RoundRobinIndex is the cursor into the caller-ID pool. It advances
	// modulo pool size on every dispatch.
	RoundRobinIndex int `json:"round_robin_index"`

	// CallCount is the lifetime dispatch counter driving the voicemail
	// cadence. It never resets at day rollover.
	CallCount int `json:"call_count"`

	CallsPlacedToday      int `json:"calls_placed_today"`
	CallsAnsweredToday    int `json:"calls_answered_today"`
	CallsNotAnsweredToday int `json:"calls_not_answered_today"`
}

// State is the whole persisted run-state document: per-slot state plus the
// cross-campaign maps keyed by external call id.
type State struct {
	// DailyStatsDate is the civil date the daily counters belong to.
	DailyStatsDate          string `json:"daily_stats_date"`
	AppointmentsBookedToday int    `json:"appointments_booked_today"`

	Campaigns map[string]*RunState `json:"campaigns"`

	// InFlight maps externalId to its pending dispatch. At most one entry
	// per externalId.
	InFlight map[string]InFlightCall `json:"in_flight"`

	// RetryScheduled marks externalIds with a pending double-tap so a
	// second no-answer outcome cannot schedule a third attempt.
	RetryScheduled map[string]time.Time `json:"retry_scheduled"`

	// LastOutcome maps externalId to the last processed endedReason.
	// Provider webhook retries are deduped on this pair. Flushed at day
	// rollover so the document stays bounded by one day's call volume.
	LastOutcome map[string]string `json:"last_outcome"`
}

// NewState returns a State with every slot present and maps allocated.
func NewState() State {
	s := State{
		Campaigns:      make(map[string]*RunState, len(SlotIDs)),
		InFlight:       make(map[string]InFlightCall),
		RetryScheduled: make(map[string]time.Time),
		LastOutcome:    make(map[string]string),
	}
	for _, id := range SlotIDs {
		s.Campaigns[id] = &RunState{}
	}
	return s
}

// normalize repairs a state document loaded from storage: missing slots
// and nil maps appear when older documents round-trip.
func (s *State) normalize() {
	if s.Campaigns == nil {
		s.Campaigns = make(map[string]*RunState, len(SlotIDs))
	}
	for _, id := range SlotIDs {
		if s.Campaigns[id] == nil {
			s.Campaigns[id] = &RunState{}
		}
	}
	if s.InFlight == nil {
		s.InFlight = make(map[string]InFlightCall)
	}
	if s.RetryScheduled == nil {
		s.RetryScheduled = make(map[string]time.Time)
	}
	if s.LastOutcome == nil {
		s.LastOutcome = make(map[string]string)
	}
}

// rollover resets all per-day counters when today differs from the stored
// civil date. CallCount and the suppression sets are untouched. Callers
// hold the store's write lock, making the compare-and-reset effectively
// once per day.
//
// The outcome-dedupe map is flushed here too: provider webhook retries
// land within minutes of the call, so entries from a previous day only
// grow the document.
func (s *State) rollover(today string) bool {
	if s.DailyStatsDate == today {
		return false
	}
	s.DailyStatsDate = today
	s.AppointmentsBookedToday = 0
	for _, d := range s.Campaigns {
		d.CallsPlacedToday = 0
		d.CallsAnsweredToday = 0
		d.CallsNotAnsweredToday = 0
	}
	s.LastOutcome = make(map[string]string)
	return true
}
