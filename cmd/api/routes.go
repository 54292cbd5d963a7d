package main

import (
	"outdial/internal/httpapi"
	"outdial/internal/rbac"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Provider webhooks (public).
	// NOTE: These should sit behind provider signature validation in production.
	r.POST("/webhooks/vapi", h.VapiWebhook)
	r.POST("/webhooks/inbound-lookup", h.InboundLookup)

	r.POST("/v1/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		// DASHBOARD reads: any authenticated role.
		v1.GET("/state", h.GetState)
		v1.GET("/next-up", h.GetNextUp)
		v1.GET("/bookings", h.ListBookings)
		v1.GET("/datasets", h.ListDatasets)
		v1.GET("/reports/daily", h.GetDailyReport)

		// CAMPAIGN routes
		campaigns := v1.Group("/campaigns")
		{
			campaigns.GET("/:campaign_id/config", h.GetCampaignConfig)

			ops := campaigns.Group("")
			ops.Use(rbac.RequireAnyRole(rbac.RoleOperator))
			{
				ops.POST("/:campaign_id/start", h.StartCampaign)
				ops.POST("/:campaign_id/stop", h.StopCampaign)
				ops.POST("/:campaign_id/pause", h.PauseCampaign)
				ops.POST("/:campaign_id/resume", h.ResumeCampaign)
				ops.POST("/stop-all", h.StopAll)
				ops.POST("/test-call", h.TestCall)
			}

			admin := campaigns.Group("")
			admin.Use(rbac.RequireAnyRole(rbac.RoleAdmin))
			{
				admin.PUT("/:campaign_id/config", h.UpdateCampaignConfig)
			}
		}

		// DATASET writes: admin only.
		datasets := v1.Group("/datasets")
		datasets.Use(rbac.RequireAnyRole(rbac.RoleAdmin))
		{
			datasets.PUT("/:dataset_id", h.ReplaceDataset)
			datasets.DELETE("/:dataset_id", h.RemoveDataset)
		}

		// PROVIDER info for the config screen.
		v1.GET("/vapi/info", rbac.RequireAnyRole(rbac.RoleOperator), h.VapiInfo)
	}
}
