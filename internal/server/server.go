// server.go
//
// A port reservation registry for fleets of cooperating processes
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of portsmith.
// portsmith is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// portsmith is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with portsmith.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package server

import (
	"errors"
	"io"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	swagger "github.com/gofiber/swagger"
	"github.com/localnerve/portsmith/internal/config"
	"github.com/localnerve/portsmith/internal/events"
	"github.com/localnerve/portsmith/internal/handlers"
	"github.com/localnerve/portsmith/internal/metrics"
	"github.com/localnerve/portsmith/internal/middleware"
	"github.com/localnerve/portsmith/internal/services"
	"github.com/localnerve/portsmith/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	_ "github.com/localnerve/portsmith/docs/api" // Swagger docs
)

const accessLogFormat = "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n"

// New wires the reservation service for cfg on db and returns the HTTP app.
// Metrics are registered with reg.
func New(cfg *config.Config, db *gorm.DB, reg prometheus.Registerer) *fiber.App {
	publisher := events.New(cfg)
	svc := services.NewReservationService(store.New(db), cfg, publisher, metrics.New(reg))
	app := NewWithService(cfg, db, svc, reg)

	if closer, ok := publisher.(io.Closer); ok {
		app.Hooks().OnShutdown(closer.Close)
	}
	return app
}

// NewWithService returns the HTTP app serving svc
func NewWithService(cfg *config.Config, db *gorm.DB, svc *services.ReservationService, reg prometheus.Registerer) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "portsmith",
		ErrorHandler:          customErrorHandler,
		DisableStartupMessage: !cfg.Verbose(),
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(middleware.RequestIDMiddleware())
	if cfg.Verbose() {
		app.Use(logger.New(logger.Config{Format: accessLogFormat}))
	}
	app.Use(compress.New())

	// Prometheus metrics
	prom := fiberprometheus.NewWithRegistry(reg, "portsmith", "http", "", nil)
	prom.RegisterAt(app, "/metrics")
	app.Use(prom.Middleware)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	reservations := &handlers.ReservationHandler{Service: svc}
	health := &handlers.HealthHandler{Config: cfg, DB: db}

	app.Get("/reserved/:port", reservations.GetReservation)
	app.Post("/reserved/:port", reservations.Reserve)
	app.Put("/reserved/:port", reservations.Modify)
	app.Patch("/reserved/:port", reservations.Patch)
	app.Delete("/reserved/:port", reservations.Release)

	app.Get("/get_unreserved", reservations.GetUnreserved)
	app.Post("/reserve_next", reservations.ReserveNext)
	app.Get("/discover", reservations.Discover)

	app.Get("/ping", handlers.Ping)
	app.Get("/health", health.Health)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":    fiber.StatusNotFound,
			"message":   "[404] Resource Not Found",
			"ok":        false,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"url":       c.OriginalURL(),
			"type":      "not_found",
		})
	})

	return app
}

// customErrorHandler handles errors globally
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()
	errorType := "unknown"

	// Check if it's a Fiber error
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
		errorType = "http"
	}

	return c.Status(code).JSON(fiber.Map{
		"status":    code,
		"message":   message,
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
		"type":      errorType,
	})
}
