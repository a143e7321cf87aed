package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/promptlab-api/internal/observability"
)

func requestCount(t *testing.T, method, route, status string) float64 {
	t.Helper()
	var metric dto.Metric
	require.NoError(t, observability.APIRequests().WithLabelValues(method, route, status).Write(&metric))
	return metric.GetCounter().GetValue()
}

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var lines []map[string]interface{}
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if raw == "" {
			continue
		}
		var line map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(raw), &line))
		lines = append(lines, line)
	}
	return lines
}

func TestObservabilityRecordsStatusOfReturnedErrors(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	app.Use(CorrelationID(), Observability(zerolog.New(&buf)))
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(7))
		c.Locals("user_role", "Teacher")
		return c.Next()
	})
	app.Get("/api/v1/teapot", func(*fiber.Ctx) error { return fiber.ErrTeapot })
	app.Get("/api/v1/broken", func(*fiber.Ctx) error { return errors.New("db gone") })

	teapots := requestCount(t, http.MethodGet, "/api/v1/teapot", "418")
	broken := requestCount(t, http.MethodGet, "/api/v1/broken", "500")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/teapot", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusTeapot, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/broken", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	require.Equal(t, teapots+1, requestCount(t, http.MethodGet, "/api/v1/teapot", "418"))
	require.Equal(t, broken+1, requestCount(t, http.MethodGet, "/api/v1/broken", "500"))

	lines := logLines(t, &buf)
	require.Len(t, lines, 2)
	require.Equal(t, "warn", lines[0]["level"])
	require.Equal(t, float64(418), lines[0]["status"])
	require.Equal(t, float64(7), lines[0]["user_id"])
	require.Equal(t, "teacher", lines[0]["role"])
	require.NotEmpty(t, lines[0]["correlation_id"])
	require.Equal(t, "error", lines[1]["level"])
	require.Equal(t, "db gone", lines[1]["error"])
}

func TestObservabilityIgnoresPathsOutsideAPI(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	app.Use(Observability(zerolog.New(&buf).Level(zerolog.InfoLevel)))
	app.Get("/metrics", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/api/v1/health", func(c *fiber.Ctx) error { return c.SendString("ok") })

	for _, path := range []string{"/metrics", "/api/v1/health"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
	require.Empty(t, strings.TrimSpace(buf.String()), "health checks log at debug")
}
