package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/peoplelab/hr-kb/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJWTConfig() JWTConfig {
	return JWTConfig{
		Secret:    "test-secret",
		Issuer:    "hr-kb",
		ExpiresIn: time.Hour,
	}
}

func testApp(cfg JWTConfig, extra ...fiber.Handler) *fiber.App {
	app := fiber.New()
	handlers := []any{JWTMiddleware(cfg)}
	for _, h := range extra {
		handlers = append(handlers, h)
	}
	handlers = append(handlers, func(c fiber.Ctx) error {
		uc := GetUserContext(c)
		return c.JSON(fiber.Map{"user_id": uc.UserID, "role": uc.Role})
	})
	app.Get("/protected", handlers[0], handlers[1:]...)
	return app
}

func tokenFor(t *testing.T, role string, cfg JWTConfig) string {
	t.Helper()
	token, err := GenerateJWT(&domain.User{
		ID:       "user-1",
		Email:    "user@example.com",
		FullName: "Test User",
		Role:     role,
	}, cfg)
	require.NoError(t, err)
	return token
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	cfg := testJWTConfig()
	app := testApp(cfg)

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, domain.RoleEmployee, cfg))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestJWTMiddleware_TokenViaQueryParam(t *testing.T) {
	cfg := testJWTConfig()
	app := testApp(cfg)

	req := httptest.NewRequest("GET", "/protected?token="+tokenFor(t, domain.RoleEmployee, cfg), nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestJWTMiddleware_MissingToken(t *testing.T) {
	app := testApp(testJWTConfig())

	resp, err := app.Test(httptest.NewRequest("GET", "/protected", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestJWTMiddleware_WrongSecretRejected(t *testing.T) {
	cfg := testJWTConfig()
	app := testApp(cfg)

	otherCfg := cfg
	otherCfg.Secret = "other-secret"

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, domain.RoleEmployee, otherCfg))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestJWTMiddleware_ExpiredTokenRejected(t *testing.T) {
	cfg := testJWTConfig()
	app := testApp(cfg)

	expiredCfg := cfg
	expiredCfg.ExpiresIn = -time.Hour

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, domain.RoleEmployee, expiredCfg))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequireRole(t *testing.T) {
	cfg := testJWTConfig()
	app := testApp(cfg, RequireRole(domain.RoleHRStaff, domain.RoleAdmin))

	cases := []struct {
		role string
		want int
	}{
		{domain.RoleEmployee, fiber.StatusForbidden},
		{domain.RoleHRStaff, fiber.StatusOK},
		{domain.RoleAdmin, fiber.StatusOK},
	}

	for _, tc := range cases {
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, tc.role, cfg))

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, tc.want, resp.StatusCode, "role %s", tc.role)
	}
}
