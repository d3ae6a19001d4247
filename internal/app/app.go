// Package app wires repositories, services and HTTP handlers for the
// scheduler binaries.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-session-scheduler/internal/handler"
	"github.com/noah-isme/sma-session-scheduler/internal/repository"
	"github.com/noah-isme/sma-session-scheduler/internal/service"
	"github.com/noah-isme/sma-session-scheduler/pkg/config"
)

// Container holds the assembled scheduler components.
type Container struct {
	DB      *sqlx.DB
	Logger  *zap.Logger
	Metrics *service.MetricsService

	SessionRepo *repository.SessionRepository

	Sessions   *service.SessionService
	Fixed      *service.FixedSessionService
	Extra      *service.ExtraSessionService
	Reschedule *service.RescheduleService
	Semesters  *service.SemesterService
	Rooms      *service.RoomService
	Conflicts  *service.ConflictService
	Calendar   *service.SessionCalendarService
	Sweeper    *service.SemesterSweeper

	cache *repository.CacheRepository
}

// New builds the container. redisClient may be nil when caching is disabled.
func New(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, logger *zap.Logger) *Container {
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := validator.New()
	metrics := service.NewMetricsService()
	locker := service.NewSemesterLocker()

	sessionRepo := repository.NewSessionRepository(db)
	semesterRepo := repository.NewSemesterRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	classRepo := repository.NewClassOfferingRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logger)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logger, cfg.Cache.Enabled && redisClient != nil)

	extra := service.NewExtraSessionService(
		semesterRepo, classRepo, subjectRepo, roomRepo, enrollmentRepo, sessionRepo,
		db, locker, cacheSvc, metrics, logger,
		service.ExtraSessionConfig{ForcedSeed: cfg.Scheduler.ForcedSeed},
	)
	semesters := service.NewSemesterService(semesterRepo, extra, logger)

	c := &Container{
		DB:          db,
		Logger:      logger,
		Metrics:     metrics,
		SessionRepo: sessionRepo,
		Sessions:    service.NewSessionService(sessionRepo, db, locker, cacheSvc, validate, logger, cfg.Cache.TTL),
		Fixed: service.NewFixedSessionService(
			classRepo, subjectRepo, semesterRepo, roomRepo, sessionRepo,
			db, locker, cacheSvc, metrics, logger,
		),
		Extra: extra,
		Reschedule: service.NewRescheduleService(
			sessionRepo, semesterRepo, classRepo, roomRepo,
			db, locker, cacheSvc, metrics, validate, logger,
		),
		Semesters: semesters,
		Rooms:     service.NewRoomService(roomRepo, semesterRepo, sessionRepo, cacheSvc, validate, logger, cfg.Cache.TTL),
		Conflicts: service.NewConflictService(semesterRepo, roomRepo, sessionRepo, enrollmentRepo, validate, logger),
		Calendar:  service.NewSessionCalendarService(classRepo, sessionRepo, roomRepo, cfg.Scheduler.Location(), logger),
		Sweeper: service.NewSemesterSweeper(semesters, service.SemesterSweeperConfig{
			Interval:   cfg.Scheduler.SweepInterval,
			Workers:    cfg.Scheduler.Workers,
			MaxRetries: cfg.Scheduler.MaxRetries,
			RetryDelay: cfg.Scheduler.RetryDelay,
		}, logger),
		cache: cacheRepo,
	}
	return c
}

// RegisterRoutes mounts observability endpoints at the root and the
// scheduling API under prefix.
func (c *Container) RegisterRoutes(r *gin.Engine, prefix string) {
	metricsHandler := handler.NewMetricsHandler(c.Metrics)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", c.ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	sessions := handler.NewSessionHandler(c.Sessions, c.Reschedule)
	classes := handler.NewClassSessionHandler(c.Fixed, c.Calendar)
	semesters := handler.NewSemesterHandler(c.Semesters)
	rooms := handler.NewRoomHandler(c.Rooms, c.Conflicts)

	api := r.Group(prefix)
	api.GET("/metrics/scheduler", metricsHandler.Snapshot)

	api.GET("/sessions", sessions.List)
	api.POST("/sessions/reschedule/batch", sessions.BatchReschedule)
	api.POST("/sessions/reset/batch", sessions.BatchReset)
	api.GET("/sessions/:id", sessions.Get)
	api.PUT("/sessions/:id/reschedule", sessions.Reschedule)
	api.POST("/sessions/:id/reset", sessions.Reset)
	api.POST("/sessions/:id/complete", sessions.Complete)
	api.POST("/sessions/:id/cancel", sessions.Cancel)

	api.POST("/class-offerings/:id/sessions", classes.Generate)
	api.POST("/class-offerings/:id/sessions/regenerate", classes.Regenerate)
	api.GET("/class-offerings/:id/calendar.ics", classes.Calendar)

	api.POST("/semesters/sweep", semesters.Sweep)
	api.GET("/semesters/:id", semesters.Get)
	api.POST("/semesters/:id/activate", semesters.Activate)
	api.POST("/semesters/:id/complete", semesters.Complete)
	api.POST("/semesters/:id/extra-sessions", semesters.ScheduleExtra)

	api.GET("/rooms/available", rooms.Available)
	api.GET("/rooms/online", rooms.Online)
	api.GET("/rooms/:id/utilization", rooms.Utilization)
	api.POST("/conflicts/check", rooms.CheckConflicts)
}

func (c *Container) ready(ctx *gin.Context) {
	pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()
	if err := c.DB.PingContext(pingCtx); err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Close releases the cache client and the database pool.
func (c *Container) Close() {
	if c.cache != nil {
		if err := c.cache.Close(); err != nil {
			c.Logger.Warn("close cache", zap.Error(err))
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.Logger.Warn("close database", zap.Error(err))
		}
	}
}
