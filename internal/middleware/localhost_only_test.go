package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func serveFrom(r *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLoopbackOnlyAllowsLocalCallers(t *testing.T) {
	guard := NewLoopbackOnly(quietLogger(), nil)
	r := guardedRouter(guard.Restrict())

	assert.Equal(t, http.StatusOK, serveFrom(r, "127.0.0.1:54321").Code)
	assert.Equal(t, http.StatusOK, serveFrom(r, "[::1]:54321").Code)

	w := serveFrom(r, "192.0.2.10:54321")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "IP_NOT_ALLOWED")
}

func TestLoopbackOnlyHonorsAllowlist(t *testing.T) {
	guard := NewLoopbackOnly(quietLogger(), []string{"10.0.0.0/8", "203.0.113.7"})
	r := guardedRouter(guard.Restrict())

	assert.Equal(t, http.StatusOK, serveFrom(r, "10.1.2.3:80").Code)
	assert.Equal(t, http.StatusOK, serveFrom(r, "203.0.113.7:80").Code)
	assert.Equal(t, http.StatusForbidden, serveFrom(r, "203.0.113.8:80").Code)
}
