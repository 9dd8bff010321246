package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/matbaogit/WFAHub-sub000/app/dto"
	"github.com/matbaogit/WFAHub-sub000/app/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTokenService struct {
	services.TokenService
	claims *services.TokenClaims
	err    error
	seen   string
}

func (s *stubTokenService) ValidateToken(token string) (*services.TokenClaims, error) {
	s.seen = token
	return s.claims, s.err
}

func newAuthApp(tokens services.TokenService) *fiber.App {
	app := fiber.New()
	app.Get("/whoami", NewAuthMiddleware(tokens).Authenticate(), func(c fiber.Ctx) error {
		id, ok := GetCustomerIDFromContext(c)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		requestID, _ := c.Locals("request_id").(string)
		return c.JSON(fiber.Map{"customer_id": id, "request_id": requestID})
	})
	return app
}

func TestAuthenticate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		header string
		err    error
		code   string
	}{
		{"missing header", "", nil, "MISSING_AUTHORIZATION_HEADER"},
		{"basic scheme", "Basic dXNlcjpwYXNz", nil, "INVALID_AUTHORIZATION_FORMAT"},
		{"expired", "Bearer old", services.ErrTokenExpired, "TOKEN_EXPIRED"},
		{"invalid", "Bearer forged", services.ErrTokenInvalid, "TOKEN_INVALID"},
		{"other failure", "Bearer x", services.ErrSigningUnavailable, "TOKEN_VALIDATION_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newAuthApp(&stubTokenService{err: tt.err})

			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

			var body dto.APIResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.False(t, body.Success)
			detail, ok := body.Error.(map[string]any)
			require.True(t, ok)
			assert.Equal(t, tt.code, detail["code"])
		})
	}
}

func TestAuthenticate_StoresCustomer(t *testing.T) {
	tokens := &stubTokenService{claims: &services.TokenClaims{CustomerID: 42, TokenID: "jti-1"}}
	app := newAuthApp(tokens)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer abc.def.ghi")
	req.Header.Set("X-Request-ID", "req-9")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "abc.def.ghi", tokens.seen)

	var body struct {
		CustomerID uint   `json:"customer_id"`
		RequestID  string `json:"request_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, uint(42), body.CustomerID)
	assert.Equal(t, "req-9", body.RequestID)
}
