package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"outdial/pkg/logger"
)

// VapiDispatcher places calls through the Vapi REST API.
type VapiDispatcher struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewVapiDispatcher(apiKey, baseURL string) *VapiDispatcher {
	if baseURL == "" {
		baseURL = "https://api.vapi.ai"
	}
	return &VapiDispatcher{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type vapiCustomer struct {
	Number     string `json:"number"`
	Name       string `json:"name"`
	ExternalID string `json:"externalId,omitempty"`
}

type vapiOverrides struct {
	VariableValues     map[string]string `json:"variableValues"`
	VoicemailMessage   string            `json:"voicemailMessage,omitempty"`
	VoicemailDetection *vapiVMDetection  `json:"voicemailDetection,omitempty"`
}

type vapiVMDetection struct {
	Provider string `json:"provider"`
}

type vapiCallBody struct {
	AssistantID        string        `json:"assistantId"`
	PhoneNumberID      string        `json:"phoneNumberId"`
	Customer           vapiCustomer  `json:"customer"`
	AssistantOverrides vapiOverrides `json:"assistantOverrides"`
}

func (d *VapiDispatcher) PlaceCall(ctx context.Context, req CallRequest) (CallResult, error) {
	externalID := req.ExternalID
	if len(externalID) > MaxExternalIDLen {
		logger.From(ctx).Warn("external id truncated for provider",
			"external_id", req.ExternalID, "limit", MaxExternalIDLen)
		externalID = externalID[:MaxExternalIDLen]
	}

	vars := map[string]string{
		"firstName": req.VariableValues["firstName"],
		"lastName":  req.VariableValues["lastName"],
		"address":   req.VariableValues["address"],
		"city":      req.VariableValues["city"],
		"zip":       req.VariableValues["zip"],
	}

	body := vapiCallBody{
		AssistantID:   req.AssistantID,
		PhoneNumberID: req.PhoneNumberID,
		Customer: vapiCustomer{
			Number:     NormalizeE164(req.CustomerNumber),
			Name:       req.CustomerName,
			ExternalID: externalID,
		},
		AssistantOverrides: vapiOverrides{VariableValues: vars},
	}
	if req.VoicemailMessage != "" {
		body.AssistantOverrides.VoicemailMessage = req.VoicemailMessage
		body.AssistantOverrides.VoicemailDetection = &vapiVMDetection{Provider: "vapi"}
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := d.post(ctx, "/call", body, &out); err != nil {
		return CallResult{}, err
	}
	return CallResult{CallID: out.ID}, nil
}

// Assistant and PhoneNumber mirror the subset of provider fields the
// dashboard shows when picking a campaign's assistant and caller IDs.
type Assistant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type PhoneNumber struct {
	ID     string `json:"id"`
	Number string `json:"number"`
	Name   string `json:"name"`
}

func (d *VapiDispatcher) ListAssistants(ctx context.Context) ([]Assistant, error) {
	var raw json.RawMessage
	if err := d.get(ctx, "/assistant?limit=100", &raw); err != nil {
		return nil, err
	}
	var out []Assistant
	if err := decodeList(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *VapiDispatcher) ListPhoneNumbers(ctx context.Context) ([]PhoneNumber, error) {
	var raw json.RawMessage
	if err := d.get(ctx, "/phone-number?limit=100", &raw); err != nil {
		return nil, err
	}
	var out []PhoneNumber
	if err := decodeList(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// decodeList accepts both a bare JSON array and the {"data": [...]} wrapper
// the provider uses on some list endpoints.
func decodeList(raw json.RawMessage, out any) error {
	if err := json.Unmarshal(raw, out); err == nil {
		return nil
	}
	var wrapped struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return err
	}
	return json.Unmarshal(wrapped.Data, out)
}

func (d *VapiDispatcher) post(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	return d.do(req, out)
}

func (d *VapiDispatcher) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+path, nil)
	if err != nil {
		return err
	}
	return d.do(req, out)
}

func (d *VapiDispatcher) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+d.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("vapi %s %s: status %d: %s", req.Method, req.URL.Path, res.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}
