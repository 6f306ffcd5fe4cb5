package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/forecastjournal/forecast-dashboard/internal/api/http"
	"github.com/forecastjournal/forecast-dashboard/internal/config"
	"github.com/forecastjournal/forecast-dashboard/internal/dashboard"
	"github.com/forecastjournal/forecast-dashboard/internal/gateway"
	"github.com/forecastjournal/forecast-dashboard/internal/scheduler"
	"github.com/forecastjournal/forecast-dashboard/internal/store"
)

func main() {
	// Load configuration (.env, optional CONFIG_FILE, environment).
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for calls to the forecast API.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	gw := gateway.NewClient(httpClient, gateway.Config{
		BaseURL: cfg.APIBaseURL,
		RPS:     cfg.UpstreamRPS,
		Burst:   cfg.UpstreamBurst,
		Backoff: gateway.BackoffConfig{
			MaxRetries:      cfg.UpstreamMaxRetries,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
		Location: cfg.Location,
	})

	feed := dashboard.NewFeed(cfg.NotificationHistory)
	notifier := dashboard.Notifiers{dashboard.LogNotifier{}, feed}

	ctrl, err := dashboard.New(gw, store.NewViewStore(), notifier, dashboard.Options{
		Cities:      cfg.Cities,
		DefaultCity: cfg.DefaultCity,
		MockDays:    cfg.MockDays,
		Location:    cfg.Location,
	})
	if err != nil {
		log.Fatalf("failed to create dashboard: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// First load runs in the background; mock data is served until it resolves.
	go func() {
		loadCtx, cancel := context.WithTimeout(ctx, 2*cfg.HTTPTimeout)
		defer cancel()
		if err := ctrl.LoadInitial(loadCtx); err != nil {
			log.Printf("initial load: %v", err)
		}
	}()

	sched := scheduler.New(ctrl, cfg.RefreshInterval, 2*cfg.HTTPTimeout)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "forecast-dashboard",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.HTTPTimeout + 10*time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "forecast-dashboard",
		})
	})

	httpapi.RegisterRoutes(app, ctrl, feed)

	go func() {
		log.Printf("INFO: listening on :%s (forecast API %s)", cfg.Port, cfg.APIBaseURL)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
