package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"outdial/internal/audit"
	"outdial/internal/auth"
	"outdial/internal/bookings"
	"outdial/internal/campaign"
	"outdial/internal/leads"
	"outdial/internal/rbac"
	"outdial/internal/reconcile"
	"outdial/internal/reporting"
	"outdial/internal/scheduler"
	"outdial/internal/telephony"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth       *auth.Manager
	Campaigns  campaign.Store
	Leads      leads.Store
	Bookings   bookings.Store
	Registry   *scheduler.Registry
	Engine     *scheduler.Engine
	Reconciler *reconcile.Reconciler
	Vapi       *telephony.VapiDispatcher
	Audit      *audit.Service
	Reports    *reporting.Service
	Log        *slog.Logger
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, role required"})
		return
	}
	if !rbac.IsKnownRole(req.Role) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Campaign configuration ---

// GetCampaignConfig returns one slot's configuration with defaults applied.
func (h Handlers) GetCampaignConfig(c *gin.Context) {
	cfg, err := h.Campaigns.GetConfig(c.Request.Context(), c.Param("campaign_id"))
	if err != nil {
		abortCampaignErr(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// UpdateCampaignConfig replaces one slot's configuration. The dashboard
// always sends the full document, so this is a whole-document PUT.
func (h Handlers) UpdateCampaignConfig(c *gin.Context) {
	id := c.Param("campaign_id")
	var req campaign.Config
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	cfg, err := h.Campaigns.UpdateConfig(c.Request.Context(), id, func(cur *campaign.Config) {
		*cur = req
	})
	if err != nil {
		abortCampaignErr(c, err)
		return
	}
	h.logAudit(c, func(ctx context.Context, actor, role, ip string) error {
		meta, _ := json.Marshal(req)
		return h.Audit.LogConfigChange(ctx, actor, role, ip, id, string(meta))
	})
	c.JSON(http.StatusOK, cfg)
}

// --- Run state ---

type stateResponse struct {
	campaign.State
	Armed map[string]bool `json:"armed"`
}

// GetState returns the run-state document plus which loops hold a live
// ticker in this process.
func (h Handlers) GetState(c *gin.Context) {
	st, err := h.Campaigns.GetState(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "state read failed"})
		return
	}
	armed := make(map[string]bool, len(campaign.SlotIDs))
	for _, id := range campaign.SlotIDs {
		armed[id] = h.Registry.Armed(id)
	}
	c.JSON(http.StatusOK, stateResponse{State: st, Armed: armed})
}

// GetNextUp previews the next lead each running campaign would dial.
func (h Handlers) GetNextUp(c *gin.Context) {
	previews, err := h.Engine.NextUp(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "next-up lookup failed"})
		return
	}
	c.JSON(http.StatusOK, previews)
}

// --- Campaign control ---

func (h Handlers) StartCampaign(c *gin.Context) {
	h.control(c, "start", h.Registry.Start)
}

func (h Handlers) StopCampaign(c *gin.Context) {
	h.control(c, "stop", h.Registry.Stop)
}

func (h Handlers) PauseCampaign(c *gin.Context) {
	h.control(c, "pause", h.Registry.Pause)
}

func (h Handlers) ResumeCampaign(c *gin.Context) {
	h.control(c, "resume", h.Registry.Resume)
}

func (h Handlers) control(c *gin.Context, action string, fn func(ctx context.Context, id string) error) {
	id := c.Param("campaign_id")
	if err := fn(c.Request.Context(), id); err != nil {
		abortCampaignErr(c, err)
		return
	}
	h.logAudit(c, func(ctx context.Context, actor, role, ip string) error {
		return h.Audit.LogCampaignControl(ctx, actor, role, ip, id, action)
	})
	c.JSON(http.StatusOK, gin.H{"status": "ok", "campaign_id": id, "action": action})
}

// StopAll is the panic button: every loop disarmed, every campaign marked
// stopped.
func (h Handlers) StopAll(c *gin.Context) {
	if err := h.Registry.StopAll(c.Request.Context()); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "stop-all failed"})
		return
	}
	h.logAudit(c, func(ctx context.Context, actor, role, ip string) error {
		return h.Audit.LogCampaignControl(ctx, actor, role, ip, "", "stop-all")
	})
	c.JSON(http.StatusOK, gin.H{"status": "ok", "action": "stop-all"})
}

// --- Test call ---

type testCallRequest struct {
	AssistantID    string `json:"assistant_id"`
	PhoneNumberID  string `json:"phone_number_id"`
	CustomerNumber string `json:"customer_number"`
}

// TestCall places one manual call outside any campaign. Its outcome is
// tagged with the test campaign id so daily stats ignore it.
func (h Handlers) TestCall(c *gin.Context) {
	var req testCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.AssistantID == "" || req.PhoneNumberID == "" || req.CustomerNumber == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "assistant_id, phone_number_id, customer_number required"})
		return
	}

	externalID := telephony.BuildExternalID(campaign.TestCampaignID, "manual", 0)
	res, err := h.Vapi.PlaceCall(c.Request.Context(), telephony.CallRequest{
		AssistantID:    req.AssistantID,
		PhoneNumberID:  req.PhoneNumberID,
		CustomerNumber: req.CustomerNumber,
		ExternalID:     externalID,
	})
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "provider rejected test call"})
		return
	}
	h.logAudit(c, func(ctx context.Context, actor, role, ip string) error {
		return h.Audit.Append(ctx, audit.Event{
			Type:        audit.EventTypeTestCall,
			ActorUserID: actor,
			ActorRole:   role,
			IPAddress:   ip,
			Message:     "test call to " + req.CustomerNumber,
		})
	})
	c.JSON(http.StatusOK, gin.H{"call_id": res.CallID, "external_id": externalID})
}

// VapiInfo lists the provider's assistants and phone numbers for the
// config screen dropdowns.
func (h Handlers) VapiInfo(c *gin.Context) {
	ctx := c.Request.Context()
	assistants, err := h.Vapi.ListAssistants(ctx)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "assistant listing failed"})
		return
	}
	numbers, err := h.Vapi.ListPhoneNumbers(ctx)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "phone number listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"assistants": assistants, "phone_numbers": numbers})
}

// --- Datasets ---

func (h Handlers) ListDatasets(c *gin.Context) {
	ds, err := h.Leads.ListDatasets(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "dataset listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"datasets": ds})
}

type replaceDatasetRequest struct {
	Name string       `json:"name"`
	Rows []leads.Lead `json:"rows"`
}

// ReplaceDataset bulk-imports a lead list, replacing any existing rows
// under the same id. Rows without a status default to not-called.
func (h Handlers) ReplaceDataset(c *gin.Context) {
	id := c.Param("dataset_id")
	if id == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "dataset_id required"})
		return
	}
	var req replaceDatasetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	for i := range req.Rows {
		if req.Rows[i].Status == "" {
			req.Rows[i].Status = leads.StatusNotCalled
		}
	}
	if err := h.Leads.ReplaceRows(c.Request.Context(), id, req.Name, req.Rows); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "dataset import failed"})
		return
	}
	h.logAudit(c, func(ctx context.Context, actor, role, ip string) error {
		return h.Audit.Append(ctx, audit.Event{
			Type:        audit.EventTypeDatasetChange,
			ActorUserID: actor,
			ActorRole:   role,
			IPAddress:   ip,
			Message:     "dataset replaced: " + id,
		})
	})
	c.JSON(http.StatusOK, gin.H{"status": "ok", "dataset_id": id, "rows": len(req.Rows)})
}

func (h Handlers) RemoveDataset(c *gin.Context) {
	id := c.Param("dataset_id")
	if err := h.Leads.RemoveDataset(c.Request.Context(), id); err != nil {
		if errors.Is(err, leads.ErrDatasetNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "dataset not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "dataset removal failed"})
		return
	}
	h.logAudit(c, func(ctx context.Context, actor, role, ip string) error {
		return h.Audit.Append(ctx, audit.Event{
			Type:        audit.EventTypeDatasetChange,
			ActorUserID: actor,
			ActorRole:   role,
			IPAddress:   ip,
			Message:     "dataset removed: " + id,
		})
	})
	c.JSON(http.StatusOK, gin.H{"status": "ok", "dataset_id": id})
}

// GetDailyReport returns today's aggregated dialing stats.
func (h Handlers) GetDailyReport(c *gin.Context) {
	rpt, err := h.Reports.Daily(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "report build failed"})
		return
	}
	c.JSON(http.StatusOK, rpt)
}

// --- Bookings ---

func (h Handlers) ListBookings(c *gin.Context) {
	list, err := h.Bookings.List(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "booking listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": list})
}

// --- Webhooks ---

// VapiWebhook ingests provider end-of-call reports. The provider retries
// on non-2xx, so anything short of a transport failure acks with 200;
// reconciliation problems are logged, never surfaced.
func (h Handlers) VapiWebhook(c *gin.Context) {
	ev, err := telephony.ParseOutcomeEvent(c.Request)
	if err != nil {
		if !errors.Is(err, telephony.ErrNotEndOfCall) {
			h.Log.Warn("webhook parse failed", "err", err)
		}
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	if err := h.Reconciler.HandleOutcome(c.Request.Context(), ev); err != nil {
		h.Log.Error("outcome reconciliation failed", "external_id", ev.ExternalID, "err", err)
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type inboundLookupRequest struct {
	Phone string `json:"phone"`
}

// InboundLookup resolves a caller's phone number to a known lead across
// all datasets, used to greet inbound callers by name.
func (h Handlers) InboundLookup(c *gin.Context) {
	var req inboundLookupRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Phone == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "phone required"})
		return
	}
	ctx := c.Request.Context()
	datasets, err := h.Leads.ListDatasets(ctx)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "dataset listing failed"})
		return
	}
	for _, ds := range datasets {
		lead, ref, ok, err := h.Leads.FindByPhone(ctx, ds.ID, req.Phone)
		if err != nil {
			h.Log.Warn("inbound lookup failed", "dataset", ds.ID, "err", err)
			continue
		}
		if ok {
			c.JSON(http.StatusOK, gin.H{
				"found":      true,
				"dataset_id": ref.DatasetID,
				"row_index":  ref.RowIndex,
				"first_name": lead.FirstName,
				"last_name":  lead.LastName,
				"address":    lead.Address,
				"city":       lead.City,
				"zip":        lead.Zip,
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"found": false})
}

// --- helpers ---

func abortCampaignErr(c *gin.Context, err error) {
	if errors.Is(err, campaign.ErrUnknownCampaign) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown campaign"})
		return
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// logAudit runs an audit write with the caller's identity, best-effort.
func (h Handlers) logAudit(c *gin.Context, fn func(ctx context.Context, actor, role, ip string) error) {
	if h.Audit == nil {
		return
	}
	actor, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	if err := fn(c.Request.Context(), actor, role, c.ClientIP()); err != nil {
		h.Log.Warn("audit write failed", "err", err)
	}
}
