package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuth_TokenRoundTrip(t *testing.T) {
	a := NewAuth("s3cret")
	token, err := a.GenerateToken("alice", "alice@example.com")
	require.NoError(t, err)

	claims, err := a.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)

	_, err = NewAuth("other").Parse(token)
	assert.Error(t, err)
}

func TestProtected(t *testing.T) {
	a := NewAuth("s3cret")
	app := fiber.New()
	app.Get("/me", a.Protected(), func(c *fiber.Ctx) error {
		return c.SendString(GetUserID(c))
	})

	token, err := a.GenerateToken("alice", "alice@example.com")
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"no bearer prefix", token, http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}
