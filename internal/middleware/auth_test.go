package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func guardedRouter(guard gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.GET("/guarded", guard, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"role": c.GetString("role")})
	})
	return r
}

func serve(r *gin.Engine, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func mintToken(t *testing.T, secret string, expiresAt time.Time) string {
	t.Helper()
	claims := APIClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "shieldswap-client",
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestAuthDisabledWithoutSecret(t *testing.T) {
	auth := NewAuthMiddleware("", quietLogger())
	assert.False(t, auth.Enabled())

	w := serve(guardedRouter(auth.RequireAuth()), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRejectsBadTokens(t *testing.T) {
	auth := NewAuthMiddleware("s3cret", quietLogger())
	require.True(t, auth.Enabled())
	r := guardedRouter(auth.RequireAuth())

	cases := []struct {
		name   string
		header string
		code   string
	}{
		{"missing header", "", "MISSING_AUTH_HEADER"},
		{"not bearer", "Token abc", "INVALID_AUTH_FORMAT"},
		{"garbage token", "Bearer not.a.jwt", "INVALID_TOKEN"},
		{"wrong secret", "Bearer " + mintToken(t, "other", time.Now().Add(time.Hour)), "INVALID_TOKEN"},
		{"expired", "Bearer " + mintToken(t, "s3cret", time.Now().Add(-time.Hour)), "INVALID_TOKEN"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			headers := map[string]string{}
			if tc.header != "" {
				headers["Authorization"] = tc.header
			}
			w := serve(r, headers)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), tc.code)
		})
	}
}

func TestAuthAcceptsValidTokenAndExposesRole(t *testing.T) {
	auth := NewAuthMiddleware("s3cret", quietLogger())
	r := guardedRouter(auth.RequireAuth())

	token := mintToken(t, "s3cret", time.Now().Add(time.Hour))
	w := serve(r, map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"role":"admin"`)
}
