package api

import (
	"net/http"

	"alcyxob/run-planner/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authService service.AuthService,
	planService service.PlanService,
	activityService service.ActivityService,
	linkService service.LinkService,
	settingsService service.SettingsService,
	stravaService service.StravaService,
) {
	authHandler := NewAuthHandler(authService)
	planHandler := NewPlanHandler(planService)
	activityHandler := NewActivityHandler(activityService, linkService)
	linkHandler := NewLinkHandler(linkService)
	settingsHandler := NewSettingsHandler(settingsService)
	stravaHandler := NewStravaHandler(stravaService)

	router.Use(MetricsMiddleware())

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}
	}

	protected := apiV1.Group("")
	protected.Use(AuthMiddleware(jwtSecret))
	{
		protected.GET("/me", authHandler.Me)

		protected.GET("/settings/day-map", settingsHandler.GetDayMap)
		protected.PUT("/settings/day-map", settingsHandler.PutDayMap)

		plans := protected.Group("/plans")
		{
			plans.POST("/generate", planHandler.GeneratePlan)
			plans.POST("/import", planHandler.ImportPlan)
			plans.GET("", planHandler.ListPlans)
			plans.GET("/active", planHandler.GetActivePlan)
			plans.GET("/:planId", planHandler.GetPlan)
			plans.PUT("/:planId", planHandler.UpdatePlan)
			plans.POST("/:planId/activate", planHandler.ActivatePlan)
			plans.POST("/:planId/reflow", planHandler.Reflow)
			plans.POST("/:planId/sessions/:sessionId/done", planHandler.MarkSessionDone)
			plans.POST("/:planId/holidays", planHandler.AddHolidays)
			plans.POST("/:planId/export", planHandler.ExportPlan)

			plans.GET("/:planId/schedule", planHandler.GetSchedule)
			plans.POST("/:planId/schedule/rebuild", planHandler.RebuildSchedule)
			plans.POST("/:planId/schedule/move", planHandler.MoveSession)

			plans.GET("/:planId/links", linkHandler.ListLinks)
			plans.POST("/:planId/links", linkHandler.CreateLink)
			plans.DELETE("/:planId/links", linkHandler.DeleteLink)
			plans.GET("/:planId/candidates", linkHandler.GetActivityCandidates)
			plans.POST("/:planId/auto-match", linkHandler.AutoMatch)
		}

		activities := protected.Group("/activities")
		{
			activities.POST("", activityHandler.IngestActivities)
			activities.GET("", activityHandler.ListActivities)
			activities.GET("/summary", activityHandler.GetSummary)
			activities.POST("/sync", activityHandler.SyncStrava)
			activities.GET("/:activityId/candidates", activityHandler.GetSessionCandidates)
		}

		stravaGroup := protected.Group("/strava")
		{
			stravaGroup.GET("/health", stravaHandler.Health)
			stravaGroup.POST("/push", stravaHandler.PushPlan)
		}
	}
}
