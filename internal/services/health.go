package services

import (
	"context"
	"fmt"
	"log"

	"github.com/localnerve/portsmith/internal/config"
	"github.com/localnerve/portsmith/internal/utils"
	"gorm.io/gorm"
)

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status       string            `json:"status"`
	Database     string            `json:"database"`
	Broker       string            `json:"broker"`
	Details      map[string]string `json:"details,omitempty"`
	ErrorMessage string            `json:"error,omitempty"`
}

// Healthy reports whether every checked dependency answered
func (r HealthCheckResult) Healthy() bool {
	return r.Status == "healthy"
}

// HealthCheck pings the database and, when events are enabled, the broker
func HealthCheck(ctx context.Context, cfg *config.Config, db *gorm.DB) HealthCheckResult {
	result := HealthCheckResult{
		Status:  "healthy",
		Broker:  "disabled",
		Details: make(map[string]string),
	}

	// Check database connectivity
	sqlDB, err := db.DB()
	if err != nil {
		result.Status = "unhealthy"
		result.Database = "error"
		result.Details["database_error"] = err.Error()
		result.ErrorMessage = fmt.Sprintf("Database connection error: %v", err)
		log.Printf("Health check failed - database connection: %v", err)
	} else if err := sqlDB.PingContext(ctx); err != nil {
		result.Status = "unhealthy"
		result.Database = "unreachable"
		result.Details["database_ping_error"] = err.Error()
		result.ErrorMessage = fmt.Sprintf("Database ping failed: %v", err)
		log.Printf("Health check failed - database ping: %v", err)
	} else {
		result.Database = "ok"
		result.Details["database_type"] = cfg.DBType
		result.Details["database_name"] = cfg.DBDatabase
	}

	if cfg.AMQPURL == "" {
		return finish(result)
	}

	// Check broker connectivity
	if err := utils.PingBroker(cfg.AMQPURL); err != nil {
		result.Status = "unhealthy"
		result.Broker = "unreachable"
		result.Details["broker_error"] = err.Error()
		if result.ErrorMessage == "" {
			result.ErrorMessage = fmt.Sprintf("Broker ping failed: %v", err)
		} else {
			result.ErrorMessage += fmt.Sprintf("; Broker ping failed: %v", err)
		}
		log.Printf("Health check failed - broker ping: %v", err)
	} else {
		result.Broker = "ok"
		result.Details["broker_queue"] = cfg.AMQPQueue
	}

	return finish(result)
}

func finish(result HealthCheckResult) HealthCheckResult {
	if result.Healthy() {
		log.Println("Health check passed - all systems operational")
	}
	return result
}
