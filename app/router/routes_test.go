package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/matbaogit/WFAHub-sub000/app/middleware"
	"github.com/matbaogit/WFAHub-sub000/app/services"
	"github.com/matbaogit/WFAHub-sub000/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoHandler struct{}

func (echoHandler) reply(name string) fiber.Handler {
	return func(c fiber.Ctx) error {
		customerID, _ := c.Locals("customer_id").(uint)
		return c.JSON(fiber.Map{"handler": name, "customer_id": customerID})
	}
}

func (h echoHandler) CreateCampaign(c fiber.Ctx) error   { return h.reply("create")(c) }
func (h echoHandler) UpdateCampaign(c fiber.Ctx) error   { return h.reply("update")(c) }
func (h echoHandler) GetCampaign(c fiber.Ctx) error      { return h.reply("get")(c) }
func (h echoHandler) ListCampaigns(c fiber.Ctx) error    { return h.reply("list")(c) }
func (h echoHandler) PreviewCampaign(c fiber.Ctx) error  { return h.reply("preview")(c) }
func (h echoHandler) StartSending(c fiber.Ctx) error     { return h.reply("send")(c) }
func (h echoHandler) ListRecipients(c fiber.Ctx) error   { return h.reply("recipients")(c) }
func (h echoHandler) ExportRecipients(c fiber.Ctx) error { return h.reply("export")(c) }
func (h echoHandler) UploadRecipients(c fiber.Ctx) error { return h.reply("upload")(c) }
func (h echoHandler) GetBalance(c fiber.Ctx) error       { return h.reply("balance")(c) }
func (h echoHandler) OpenPixel(c fiber.Ctx) error        { return h.reply("pixel")(c) }

func testConfig() *config.ProductionConfig {
	return &config.ProductionConfig{
		Server: config.ServerConfig{
			BodyLimit:    1024 * 1024,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			IdleTimeout:  5 * time.Second,
		},
		Security: config.SecurityConfig{
			AllowedOrigins:    []string{"http://localhost:3000"},
			AllowedMethods:    []string{"GET", "POST", "PUT"},
			AllowedHeaders:    []string{"Authorization", "Content-Type"},
			GlobalRateLimit:   100,
			TrackingRateLimit: 100,
			RateLimitWindow:   time.Minute,
			XFrameOptions:     "DENY",
		},
		JWT: config.JWTConfig{
			SecretKey:      strings.Repeat("s", 32),
			AccessTokenTTL: time.Hour,
			Issuer:         "wfahub",
			Audience:       "wfahub-api",
		},
		Metrics:    config.MetricsConfig{Enabled: true, Path: "/metrics"},
		Deployment: config.DeploymentConfig{Environment: "development", Version: "test"},
	}
}

func newTestRouter(t *testing.T) (*fiber.App, services.TokenService) {
	t.Helper()
	cfg := testConfig()
	tokens, err := services.NewTokenService(cfg.JWT)
	require.NoError(t, err)

	h := echoHandler{}
	r := NewFiberRouter(cfg, Handlers{Campaign: h, Upload: h, Credit: h, Tracking: h}, middleware.NewAuthMiddleware(tokens))
	r.SetupRoutes()
	return r.GetApp(), tokens
}

func TestRoutes_Public(t *testing.T) {
	app, _ := newTestRouter(t)

	for _, path := range []string{
		"/api/v1/health",
		"/api/v1/swagger.json",
		"/metrics",
		"/t/open/5f0c2a57-7c43-4f7e-9d6e-0a7a2b9c1d11/0b6f4a9e-3f3c-4d7a-9a43-5b1c2e7d8f90",
	} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode, path)
	}
}

func TestRoutes_RequireBearerToken(t *testing.T) {
	app, tokens := newTestRouter(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/campaigns", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	token, err := tokens.GenerateAccessToken(42)
	require.NoError(t, err)

	routes := []struct {
		method, path string
	}{
		{http.MethodPost, "/api/v1/campaigns/uploads"},
		{http.MethodPost, "/api/v1/campaigns"},
		{http.MethodGet, "/api/v1/campaigns"},
		{http.MethodGet, "/api/v1/campaigns/abc"},
		{http.MethodPut, "/api/v1/campaigns/abc"},
		{http.MethodPost, "/api/v1/campaigns/abc/preview"},
		{http.MethodPost, "/api/v1/campaigns/abc/send"},
		{http.MethodGet, "/api/v1/campaigns/abc/recipients"},
		{http.MethodGet, "/api/v1/campaigns/abc/recipients/export"},
		{http.MethodGet, "/api/v1/credits/balance"},
	}
	for _, rt := range routes {
		req := httptest.NewRequest(rt.method, rt.path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode, rt.method+" "+rt.path)
	}
}

func TestRoutes_NotFound(t *testing.T) {
	app, _ := newTestRouter(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
