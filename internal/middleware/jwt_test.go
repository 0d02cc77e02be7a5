package middleware

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	return signed
}

func newProtectedApp() *fiber.App {
	app := fiber.New()
	app.Get("/protected", JWTProtected(testSecret), func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(uint)
		return c.JSON(fiber.Map{"user_id": userID})
	})

	return app
}

func TestJWTProtectedRejectsMissingHeader(t *testing.T) {
	app := newProtectedApp()

	resp, err := app.Test(httptest.NewRequest("GET", "/protected", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestJWTProtectedRejectsMalformedHeader(t *testing.T) {
	app := newProtectedApp()

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Basic abc123")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestJWTProtectedRejectsWrongSecret(t *testing.T) {
	app := newProtectedApp()
	token := signToken(t, "other-secret", jwt.MapClaims{"sub": 1})

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestJWTProtectedRejectsExpiredToken(t *testing.T) {
	app := newProtectedApp()
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub": 1,
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestJWTProtectedAcceptsValidTokenAndBindsUser(t *testing.T) {
	app := newProtectedApp()
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub": 42,
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		UserID uint `json:"user_id"`
	}
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Equal(t, uint(42), payload.UserID)
}

func TestSubjectUserIDFallsBackAcrossClaimKeys(t *testing.T) {
	id, ok := subjectUserID(jwt.MapClaims{"user_id": float64(3)})
	require.True(t, ok)
	require.Equal(t, uint(3), id)

	id, ok = subjectUserID(jwt.MapClaims{"id": "21"})
	require.True(t, ok)
	require.Equal(t, uint(21), id)

	_, ok = subjectUserID(jwt.MapClaims{"email": "someone@example.com"})
	require.False(t, ok)
}

func TestBearerTokenParsing(t *testing.T) {
	token, ok := bearerToken("Bearer abc.def.ghi")
	require.True(t, ok)
	require.Equal(t, "abc.def.ghi", token)

	_, ok = bearerToken("Basic abc123")
	require.False(t, ok)

	_, ok = bearerToken("Bearer   ")
	require.False(t, ok)

	_, ok = bearerToken("")
	require.False(t, ok)
}

func TestNormalizeUserIDAcceptsCommonClaimShapes(t *testing.T) {
	id, err := normalizeUserID(float64(7))
	require.NoError(t, err)
	require.Equal(t, uint(7), id)

	id, err = normalizeUserID("15")
	require.NoError(t, err)
	require.Equal(t, uint(15), id)

	_, err = normalizeUserID(float64(-1))
	require.Error(t, err)

	_, err = normalizeUserID([]string{"nope"})
	require.Error(t, err)
}
