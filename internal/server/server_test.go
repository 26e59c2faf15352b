package server

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/portsmith/internal/config"
	"github.com/localnerve/portsmith/internal/database"
	"github.com/localnerve/portsmith/internal/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	return newTestAppWithBroker(t, "")
}

func newTestAppWithBroker(t *testing.T, amqpURL string) *fiber.App {
	t.Helper()
	cfg := &config.Config{
		AMQPURL:             amqpURL,
		AMQPQueue:           "portsmith.test",
		DBType:              "sqlite",
		DBDatabase:          ":memory:",
		LogLevel:            "critical",
		PortFloor:           55001,
		PortCeiling:         65535,
		ReserveNextAttempts: 3,
	}
	db, err := database.Connect(cfg)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	return New(cfg, db, prometheus.NewRegistry())
}

func request(t *testing.T, app *fiber.App, method, target, body string) (*http.Response, string) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	resp, err := app.Test(httptest.NewRequest(method, target, reader))
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func TestReservationScenario(t *testing.T) {
	app := newTestApp(t)

	resp, body := request(t, app, "POST", "/reserved/55010", `{"tags": ["db", "prod"]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)

	resp, body = request(t, app, "GET", "/discover?tag=db&tag=staging", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, body)

	resp, body = request(t, app, "GET", "/discover?tag=db&tag=prod", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[55010]`, body)

	resp, _ = request(t, app, "DELETE", "/reserved/55010", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = request(t, app, "GET", "/reserved/55010", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{}`, body)

	resp, body = request(t, app, "DELETE", "/reserved/55010", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &envelope))
	assert.Equal(t, 404.0, envelope["status"])
	assert.Equal(t, false, envelope["ok"])
	assert.Equal(t, "/reserved/55010", envelope["url"])
	assert.NotEmpty(t, envelope["timestamp"])
}

func TestReservationsSurviveBrokerOutage(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	app := newTestAppWithBroker(t, "amqp://guest:guest@"+addr+"/")

	resp, body := request(t, app, "POST", "/reserved/55011", `{"tags": ["db"]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)

	resp, body = request(t, app, "POST", "/reserve_next", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)

	resp, body = request(t, app, "GET", "/reserved/55011", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"db"`)
}

func TestStatusRoutes(t *testing.T) {
	app := newTestApp(t)

	resp, body := request(t, app, "GET", "/ping", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body)
	assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDHeader))

	resp, body = request(t, app, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"database":"ok"`)

	resp, _ = request(t, app, "GET", "/swagger/doc.json", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsRoute(t *testing.T) {
	app := newTestApp(t)

	resp, _ := request(t, app, "POST", "/reserve_next", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = request(t, app, "GET", "/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNotFound(t *testing.T) {
	resp, body := request(t, newTestApp(t), "GET", "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "[404] Resource Not Found")
}

func TestCustomErrorHandler(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: customErrorHandler})
	app.Get("/teapot", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusTeapot, "short and stout")
	})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("boom")
	})

	resp, body := request(t, app, "GET", "/teapot", "")
	assert.Equal(t, fiber.StatusTeapot, resp.StatusCode)
	assert.Contains(t, body, "short and stout")

	resp, body = request(t, app, "GET", "/boom", "")
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body, `"type":"unknown"`)
}
