package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clinic-sync/core/cache"
	"clinic-sync/core/config"
	"clinic-sync/core/constants"
	"clinic-sync/core/database"
	"clinic-sync/core/logger"
	"clinic-sync/core/tasks"
	"clinic-sync/modules/appointment"
	"clinic-sync/modules/calendar"
	"clinic-sync/modules/credentials"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// Run boots the whole process: config, storage, the HTTP API, the asynq
// worker, and the startup renewal sweep. It blocks until SIGINT/SIGTERM.
func Run() error {
	cfg, err := config.Init()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.App.LogLevel)

	db, err := database.InitDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}

	c := cache.NewCache(cfg.Redis)
	if err := c.Ping(context.Background()); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	scheduler := tasks.NewScheduler(cfg.Redis)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	e.GET("/health", func(ctx echo.Context) error {
		return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	apptSvc := appointment.Init(e, db)
	vault, err := credentials.Init(e, db, c)
	if err != nil {
		return fmt.Errorf("init credentials module: %w", err)
	}
	calendarModule := calendar.Init(e, db, c, scheduler, vault, apptSvc)

	worker, err := tasks.RunWorker(cfg.Redis, calendarModule.TaskHandlers())
	if err != nil {
		return fmt.Errorf("start worker: %w", err)
	}

	// Reconcile the renewal job with the persisted channel; downtime may
	// have swallowed the scheduled run.
	if err := calendarModule.Channels.EnsureRenewalScheduled(context.Background()); err != nil {
		logger.Error("Server:Run:RenewalSweepError", "error", err)
	}

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Error("Server:Run:StartError", "error", err)
		}
	}()
	logger.Info("Server:Run:Started", "host", cfg.Server.Host, "port", cfg.Server.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Server:Run:ShuttingDown")
	worker.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	// Give in-flight log writes a moment before exit.
	time.Sleep(100 * time.Millisecond)
	return nil
}
