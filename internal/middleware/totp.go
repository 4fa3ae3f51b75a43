package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	"github.com/sirupsen/logrus"
)

// totpHeader carries the one-time code for guarded endpoints.
const totpHeader = "X-TOTP-Code"

// TOTPGuard protects endpoints that reveal or destroy note secrets, such as
// export, import and clear. An empty secret disables the guard.
type TOTPGuard struct {
	secret string
	logger *logrus.Logger
}

// NewTOTPGuard creates the TOTP guard.
func NewTOTPGuard(secret string, logger *logrus.Logger) *TOTPGuard {
	return &TOTPGuard{
		secret: secret,
		logger: logger,
	}
}

// Enabled reports whether a secret is configured.
func (g *TOTPGuard) Enabled() bool {
	return g.secret != ""
}

// Require rejects requests whose X-TOTP-Code header does not verify against
// the configured secret.
func (g *TOTPGuard) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.Enabled() {
			c.Next()
			return
		}

		code := c.GetHeader(totpHeader)
		if code == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "TOTP code required",
				"code":    "MISSING_TOTP_CODE",
			})
			c.Abort()
			return
		}

		if !totp.Validate(code, g.secret) {
			g.logger.WithFields(logrus.Fields{
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			}).Warn("TOTP check failed - code rejected")

			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Invalid TOTP code",
				"code":    "INVALID_TOTP_CODE",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
