package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alcyxob/run-planner/internal/api"
	"alcyxob/run-planner/internal/config"
	"alcyxob/run-planner/internal/logging"
	"alcyxob/run-planner/internal/planner"
	"alcyxob/run-planner/internal/repository"
	"alcyxob/run-planner/internal/repository/mongo"
	"alcyxob/run-planner/internal/service"
	"alcyxob/run-planner/internal/storage"
	"alcyxob/run-planner/internal/strava"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron"
	log "github.com/sirupsen/logrus"
)

// @title Run Planner API
// @version 1.0
// @description Training plans for a goal race: generation, reflow after missed days, schedules and run matching.
// @contact.name API Support
// @contact.email support@example.com
// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("Could not load config: %v", err)
	}

	logging.Setup(logging.LoggerSetupParams{
		LogFileName:   cfg.Log.File,
		LogToStdout:   cfg.Log.ToStdout,
		LogLevel:      cfg.Log.Level,
		LogFormatJSON: cfg.Log.JSON,
		MaxSizeMB:     cfg.Log.MaxSizeMB,
		MaxBackups:    cfg.Log.MaxBackups,
	})
	log.Info("Starting Run Planner Server...")
	gin.SetMode(cfg.Server.GinMode)

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		log.Fatalf("Could not connect to MongoDB: %v", err)
	}
	defer func() {
		log.Info("Disconnecting MongoDB...")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			log.WithError(err).Error("Failed to disconnect MongoDB")
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	log.WithField("database", cfg.Database.Name).Info("Database connection established")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := mongo.EnsureIndexes(ctx, appDB); err != nil {
			log.WithError(err).Error("Index creation failed")
			return
		}
		log.Info("Index creation process completed")
	}()

	// --- Repositories ---
	userRepo := mongo.NewMongoUserRepository(appDB)
	planRepo := mongo.NewMongoPlanRepository(appDB)
	linkRepo := mongo.NewMongoLinkRepository(appDB)
	activityRepo := mongo.NewMongoActivityRepository(appDB)
	settingsRepo := mongo.NewMongoSettingsRepository(appDB)

	// --- Optional integrations ---
	var planOpts []service.PlanServiceOption
	if cfg.S3.Enabled {
		initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		store, err := storage.NewS3Storage(initCtx, cfg.S3)
		cancel()
		if err != nil {
			log.Fatalf("Failed to initialize S3 storage: %v", err)
		}
		planOpts = append(planOpts, service.WithPlanStorage(store, cfg.S3.ExportPrefix, cfg.S3.URLExpiry))
	} else {
		log.Info("S3 disabled, plan export unavailable")
	}

	var (
		activityOpts  []service.ActivityServiceOption
		stravaAccount service.StravaAccount
	)
	if cfg.Strava.Enabled {
		client := strava.NewClient(cfg.Strava.AccessToken, cfg.Strava.Timeout,
			strava.WithBaseURL(cfg.Strava.BaseURL),
			strava.WithPageSize(cfg.Strava.PageSize),
		)
		activityOpts = append(activityOpts, service.WithRunSource(client))
		stravaAccount = client
	} else {
		log.Info("Strava disabled, activity sync and plan push unavailable")
	}

	// --- Services ---
	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration)
	settingsService := service.NewSettingsService(settingsRepo)
	planService := service.NewPlanService(planRepo, activityRepo, settingsService, planner.New(planner.WithMaxWeeks(cfg.Planner.MaxPlanWeeks)), cfg.Planner.SummaryWeeks, planOpts...)
	activityService := service.NewActivityService(activityRepo, cfg.Planner.SummaryWeeks, activityOpts...)
	linkService := service.NewLinkService(linkRepo, activityRepo, planService, cfg.Planner.MatchThreshold, cfg.Planner.CandidateWindowDays)
	stravaService := service.NewStravaService(stravaAccount, userRepo, planService)

	scheduler := startStravaSync(cfg.Strava, userRepo, activityService)

	// --- HTTP ---
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger())
	api.SetupRoutes(router, cfg.JWT.Secret, authService, planService, activityService, linkService, settingsService, stravaService)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.WithField("address", cfg.Server.Address).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("ListenAndServe Error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	if scheduler != nil {
		scheduler.Stop()
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	log.Info("Server exiting")
}

// startStravaSync pulls new runs for the configured user on a cron schedule.
// It returns nil when Strava or the schedule is not configured.
func startStravaSync(cfg config.StravaConfig, users repository.UserRepository, activities service.ActivityService) *cron.Cron {
	if !cfg.Enabled || cfg.SyncSchedule == "" {
		return nil
	}
	if cfg.SyncUserEmail == "" {
		log.Warn("strava.sync_schedule is set without strava.sync_user_email, background sync disabled")
		return nil
	}

	c := cron.New()
	err := c.AddFunc(cfg.SyncSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		logger := log.WithField("email", cfg.SyncUserEmail)
		user, err := users.GetByEmail(ctx, cfg.SyncUserEmail)
		if err != nil {
			logger.WithError(err).Error("Strava sync: user lookup failed")
			return
		}
		// Zero time lets the service fall back to the summary window.
		n, err := activities.SyncStrava(ctx, user.ID, time.Time{})
		if err != nil {
			logger.WithError(err).Error("Strava sync failed")
			return
		}
		logger.WithField("stored", n).Info("Strava sync completed")
	})
	if err != nil {
		log.WithError(err).Error("Invalid strava.sync_schedule, background sync disabled")
		return nil
	}
	c.Start()
	log.WithField("schedule", cfg.SyncSchedule).Info("Strava background sync scheduled")
	return c
}
