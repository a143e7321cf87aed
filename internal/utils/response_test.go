package utils_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/promptlab-api/internal/utils"
)

func TestEnvelopeHelpers(t *testing.T) {
	cases := []struct {
		name       string
		handler    fiber.Handler
		status     int
		success    bool
		message    string
		presentKey []string
		absentKey  []string
	}{
		{
			name: "success defaults message",
			handler: func(c *fiber.Ctx) error {
				return utils.SendSuccess(c, "", fiber.Map{"id": 3})
			},
			status:     fiber.StatusOK,
			success:    true,
			message:    "success",
			presentKey: []string{"data"},
			absentKey:  []string{"meta", "details"},
		},
		{
			name: "created status",
			handler: func(c *fiber.Ctx) error {
				return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "project submitted", fiber.Map{"id": 4})
			},
			status:     fiber.StatusCreated,
			success:    true,
			message:    "project submitted",
			presentKey: []string{"data"},
		},
		{
			name: "zero status falls back to 200",
			handler: func(c *fiber.Ctx) error {
				return utils.SendSuccessWithStatus(c, 0, "ok", nil)
			},
			status:    fiber.StatusOK,
			success:   true,
			message:   "ok",
			absentKey: []string{"data", "meta", "details"},
		},
		{
			name: "list with meta",
			handler: func(c *fiber.Ctx) error {
				return utils.OK(c, []int{1, 2}, "", fiber.Map{"unread_count": 2})
			},
			status:     fiber.StatusOK,
			success:    true,
			message:    "success",
			presentKey: []string{"data", "meta"},
		},
		{
			name: "error defaults message",
			handler: func(c *fiber.Ctx) error {
				return utils.SendError(c, fiber.StatusConflict, "")
			},
			status:    fiber.StatusConflict,
			message:   "error",
			absentKey: []string{"data", "meta", "details"},
		},
		{
			name: "validation details",
			handler: func(c *fiber.Ctx) error {
				return utils.Fail(c, fiber.StatusBadRequest, "validation failed", map[string]string{"title": "required"})
			},
			status:     fiber.StatusBadRequest,
			message:    "validation failed",
			presentKey: []string{"details"},
			absentKey:  []string{"data"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", tc.handler)

			resp := performRequest(t, app, http.MethodGet, "/")
			require.Equal(t, tc.status, resp.StatusCode)

			var raw map[string]json.RawMessage
			decode(t, resp, &raw)

			var success bool
			require.NoError(t, json.Unmarshal(raw["success"], &success))
			require.Equal(t, tc.success, success)

			var message string
			require.NoError(t, json.Unmarshal(raw["message"], &message))
			require.Equal(t, tc.message, message)

			for _, key := range tc.presentKey {
				require.Contains(t, raw, key)
			}
			for _, key := range tc.absentKey {
				require.NotContains(t, raw, key)
			}
		})
	}
}

func TestFailDetailsRoundTrip(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid payload", map[string]string{"templateId": "must be an active template"})
	})

	resp := performRequest(t, app, http.MethodGet, "/")
	var payload utils.APIResponse
	decode(t, resp, &payload)

	details, ok := payload.Details.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "must be an active template", details["templateId"])
}

func performRequest(t *testing.T, app *fiber.App, method, path string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}
