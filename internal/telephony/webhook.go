package telephony

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

// OutcomeEvent is the provider-agnostic end-of-call report consumed by the
// reconciler. Provider retries can deliver the same event more than once;
// downstream handling dedupes on (ExternalID, EndedReason).
type OutcomeEvent struct {
	ExternalID        string `json:"external_id"`
	EndedReason       string `json:"ended_reason"`
	SuccessEvaluation string `json:"success_evaluation"`
	Transcript        string `json:"transcript"`
	RecordingURL      string `json:"recording_url,omitempty"`
	CustomerNumber    string `json:"customer_number"`
}

// ErrNotEndOfCall marks webhook messages of other types; callers
// acknowledge and ignore them.
var ErrNotEndOfCall = errors.New("telephony: not an end-of-call report")

// vapiWebhook captures the subset of the Vapi webhook payload we care
// about. Everything rides inside a "message" envelope.
type vapiWebhook struct {
	Message struct {
		Type        string `json:"type"`
		EndedReason string `json:"endedReason"`
		Analysis    struct {
			SuccessEvaluation any `json:"successEvaluation"`
		} `json:"analysis"`
		Artifact struct {
			Transcript   string `json:"transcript"`
			RecordingURL string `json:"recordingUrl"`
		} `json:"artifact"`
		Customer *vapiWebhookCustomer `json:"customer"`
		Call     struct {
			Customer *vapiWebhookCustomer `json:"customer"`
		} `json:"call"`
	} `json:"message"`
}

type vapiWebhookCustomer struct {
	Number     string `json:"number"`
	ExternalID string `json:"externalId"`
}

// ParseOutcomeEvent decodes a Vapi end-of-call-report webhook body.
//
// Keep it minimal and provider-adapter-only; what happens to the outcome
// is decided by the reconciler, not here.
func ParseOutcomeEvent(r *http.Request) (OutcomeEvent, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 4<<20))
	if err != nil {
		return OutcomeEvent{}, err
	}
	var w vapiWebhook
	if err := json.Unmarshal(raw, &w); err != nil {
		return OutcomeEvent{}, err
	}
	if w.Message.Type != "end-of-call-report" {
		return OutcomeEvent{}, ErrNotEndOfCall
	}

	customer := w.Message.Customer
	if customer == nil {
		customer = w.Message.Call.Customer
	}

	ev := OutcomeEvent{
		EndedReason:  w.Message.EndedReason,
		Transcript:   w.Message.Artifact.Transcript,
		RecordingURL: w.Message.Artifact.RecordingURL,
	}
	if customer != nil {
		ev.ExternalID = customer.ExternalID
		ev.CustomerNumber = customer.Number
	}
	// successEvaluation arrives as a bool or a string depending on the
	// assistant's analysis schema; normalize to a string.
	switch v := w.Message.Analysis.SuccessEvaluation.(type) {
	case bool:
		if v {
			ev.SuccessEvaluation = "true"
		} else {
			ev.SuccessEvaluation = "false"
		}
	case string:
		ev.SuccessEvaluation = v
	}
	return ev, nil
}

// Successful reports whether the outcome's success evaluation is a truthy
// "true", case-insensitively.
func (e OutcomeEvent) Successful() bool {
	return strings.EqualFold(strings.TrimSpace(e.SuccessEvaluation), "true")
}
