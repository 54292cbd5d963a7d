package telephony

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Dispatcher is the provider-agnostic interface the scheduler uses to place
// outbound calls.
//
// Rules:
// - No provider SDK calls outside telephony adapters.
// - Keep request/response types provider-agnostic; provider raw payloads
//   stay inside the adapter.
type Dispatcher interface {
	// PlaceCall starts an outbound voice-AI call. It returns once the
	// provider accepts the call; the outcome arrives later as a webhook.
	PlaceCall(ctx context.Context, req CallRequest) (CallResult, error)
}

// CallRequest describes one outbound call attempt.
type CallRequest struct {
	AssistantID   string `json:"assistant_id"`
	PhoneNumberID string `json:"phone_number_id"`

	CustomerNumber string `json:"customer_number"`
	CustomerName   string `json:"customer_name"`

	// ExternalID binds the call to (campaign, dataset, row). The provider
	// echoes it back in the end-of-call report.
	ExternalID string `json:"external_id"`

	// VariableValues feed the assistant's prompt template.
	VariableValues map[string]string `json:"variable_values,omitempty"`

	// VoicemailMessage, when non-empty, is spoken if the call hits
	// voicemail. Already rendered; the provider does no substitution.
	VoicemailMessage string `json:"voicemail_message,omitempty"`
}

// CallResult is the provider's acceptance of a call.
type CallResult struct {
	CallID string `json:"call_id"`
}

// MaxExternalIDLen is the provider's identifier length limit.
const MaxExternalIDLen = 40

const externalIDSep = ":"

// BuildExternalID joins campaign, dataset, and row into the opaque token
// carried through the provider. When the full form exceeds the provider
// limit the dataset segment is truncated; two datasets sharing a long
// prefix can then collide, which is accepted as a low-probability risk.
func BuildExternalID(campaignID, datasetID string, rowIndex int) string {
	row := strconv.Itoa(rowIndex)
	full := campaignID + externalIDSep + datasetID + externalIDSep + row
	if len(full) <= MaxExternalIDLen {
		return full
	}
	budget := MaxExternalIDLen - len(campaignID) - len(row) - 2*len(externalIDSep)
	if budget < 0 {
		budget = 0
	}
	if budget > len(datasetID) {
		budget = len(datasetID)
	}
	return campaignID + externalIDSep + datasetID[:budget] + externalIDSep + row
}

// ParseExternalID splits an external id back into its parts. Dataset ids
// never contain the separator, so a well-formed id has exactly three
// segments.
func ParseExternalID(s string) (campaignID, datasetID string, rowIndex int, err error) {
	parts := strings.Split(s, externalIDSep)
	if len(parts) < 3 {
		return "", "", 0, fmt.Errorf("telephony: malformed external id %q", s)
	}
	rowIndex, convErr := strconv.Atoi(parts[len(parts)-1])
	if convErr != nil {
		return "", "", 0, fmt.Errorf("telephony: malformed row index in external id %q", s)
	}
	campaignID = parts[0]
	datasetID = strings.Join(parts[1:len(parts)-1], externalIDSep)
	return campaignID, datasetID, rowIndex, nil
}

// NormalizeE164 converts a raw phone number to E.164. Bare ten-digit
// numbers get the +1 country code; anything else keeps its digits with a
// leading plus.
func NormalizeE164(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteByte(byte(r))
		}
	}
	d := digits.String()
	if len(d) == 10 {
		return "+1" + d
	}
	return "+" + d
}
