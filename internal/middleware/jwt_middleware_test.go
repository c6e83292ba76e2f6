package middleware_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tabiyaku/internal/middleware"
	"tabiyaku/internal/repositories"
	"tabiyaku/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAuthRequired(t *testing.T) {
	users := repositories.NewMockUserRepository()
	authService := services.NewAuthService(users, services.TokenConfig{Secret: "s", TTL: time.Hour}, zap.NewNop())

	_, err := authService.RegisterUser(context.Background(), "akira", "secret123")
	require.NoError(t, err)
	token, err := authService.LoginUser(context.Background(), "akira", "secret123")
	require.NoError(t, err)
	user, err := users.GetByUsername(context.Background(), "akira")
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/whoami", middleware.AuthRequired(authService), func(c *fiber.Ctx) error {
		return c.SendString(middleware.UserID(c))
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"garbage token", "Bearer abc.def.ghi", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, user.ID, string(body))
}
