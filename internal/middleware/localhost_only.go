package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// LoopbackOnly restricts destructive endpoints to loopback callers. The
// daemon binds 127.0.0.1 by default, but when it is exposed on a LAN the
// clear and sync-trigger routes stay local unless an IP is whitelisted.
type LoopbackOnly struct {
	logger     *logrus.Logger
	allowedIPs []string // extra allowed IPs or CIDR ranges
}

// NewLoopbackOnly creates the loopback restriction middleware.
func NewLoopbackOnly(logger *logrus.Logger, allowedIPs []string) *LoopbackOnly {
	return &LoopbackOnly{
		logger:     logger,
		allowedIPs: allowedIPs,
	}
}

// Restrict rejects requests whose client IP is neither loopback nor
// whitelisted.
func (l *LoopbackOnly) Restrict() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if !l.isAllowed(clientIP) {
			// c.ClientIP can report a forwarded address; a direct loopback
			// connection is still acceptable.
			remoteIP, _, _ := net.SplitHostPort(c.Request.RemoteAddr)
			if remoteIP == clientIP || !isLoopback(remoteIP) {
				l.logger.WithFields(logrus.Fields{
					"client_ip": clientIP,
					"remote_ip": remoteIP,
					"path":      c.Request.URL.Path,
					"method":    c.Request.Method,
				}).Warn("Rejected non-local access to restricted endpoint")

				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"success": false,
					"error":   "This endpoint is only accessible from allowed IP addresses",
					"code":    "IP_NOT_ALLOWED",
				})
				return
			}
		}

		c.Next()
	}
}

func (l *LoopbackOnly) isAllowed(ip string) bool {
	if isLoopback(ip) {
		return true
	}

	parsedIP := net.ParseIP(ip)
	for _, allowed := range l.allowedIPs {
		allowed = strings.TrimSpace(allowed)
		if allowed == "" {
			continue
		}
		if strings.Contains(allowed, "/") {
			_, ipNet, err := net.ParseCIDR(allowed)
			if err != nil {
				l.logger.WithFields(logrus.Fields{
					"allowed": allowed,
					"error":   err.Error(),
				}).Warn("Invalid CIDR in allowedIPs")
				continue
			}
			if parsedIP != nil && ipNet.Contains(parsedIP) {
				return true
			}
			continue
		}
		if allowed == ip {
			return true
		}
		if allowedIP := net.ParseIP(allowed); allowedIP != nil && parsedIP != nil && allowedIP.Equal(parsedIP) {
			return true
		}
	}
	return false
}

func isLoopback(ip string) bool {
	parsedIP := net.ParseIP(ip)
	if parsedIP == nil {
		return ip == "localhost"
	}
	return parsedIP.IsLoopback()
}
