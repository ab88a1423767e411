package main

import (
	"database/sql"
	"time"

	"lead-console/internal/httpapi"
	"lead-console/internal/rbac"
	"lead-console/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc, db *sql.DB, rdb *redis.Client) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(503, gin.H{"status": "degraded", "postgres": err.Error()})
			return
		}
		if err := rdb.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(503, gin.H{"status": "degraded", "redis": err.Error()})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	r.POST("/v1/auth/login", h.Login)
	r.POST("/v1/auth/refresh", h.RefreshToken)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		anyRole := rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleAgent)
		ownerOnly := rbac.RequireAnyRole(rbac.RoleOwner)

		// LEADS routes
		leadsGroup := v1.Group("/leads")
		leadsGroup.Use(anyRole)
		{
			leadsGroup.GET("", h.ListLeads)
			leadsGroup.GET("/export", ownerOnly, h.ExportLeadsCSV)
			leadsGroup.POST("", ownerOnly, h.CreateLead)
			leadsGroup.POST("/bulk", ownerOnly, h.CreateLeadsBulk)
			leadsGroup.PATCH("/:id", ownerOnly, h.UpdateLead)
			leadsGroup.POST("/:id/reset", ownerOnly, h.ResetLead)
			leadsGroup.DELETE("/:id", ownerOnly, h.DeleteLead)
			leadsGroup.DELETE("", ownerOnly, h.DeleteLeads)
			leadsGroup.GET("/:id/history", h.GetLeadHistory)
		}

		// QUEUE routes (the agent work screens)
		v1.GET("/queue", anyRole, h.GetQueues)

		// SESSION routes (one call session per agent identity)
		sess := v1.Group("/session")
		sess.Use(rbac.RequireAnyRole(rbac.RoleAgent))
		{
			sess.GET("", h.GetSession)
			sess.POST("/dial", h.Dial)
			sess.POST("/end", h.EndCall)
			// Recovery resume is the same idempotent end-of-call signal.
			sess.POST("/resume", h.EndCall)
			sess.POST("/submit", h.SubmitOutcome)
			sess.POST("/abandon", h.AbandonOutcome)
			sess.POST("/reset", h.ResetSession)
		}

		// SETTINGS routes (owner management surface)
		settings := v1.Group("/settings")
		settings.Use(ownerOnly)
		{
			settings.GET("/pins", h.GetPINs)
			settings.PUT("/pins", h.SetPINs)
		}
	}
}
