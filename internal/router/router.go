package router

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"shieldswap-client/internal/app"
	"shieldswap-client/internal/config"
	"shieldswap-client/internal/handlers"
)

// corsMiddleware allows the local UI to talk to the daemon. Origins come
// from config (environment overrides are applied at load time); with none
// configured everything is allowed, which is acceptable on loopback.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	allowedOrigins := cfg.CORS.AllowedOrigins
	allowCredentials := cfg.CORS.AllowCredentials
	maxAge := cfg.CORS.MaxAge
	if maxAge <= 0 {
		maxAge = 3600
	}

	originAllowed := func(origin string) bool {
		for _, allowed := range allowedOrigins {
			if strings.TrimSpace(allowed) == origin {
				return true
			}
		}
		return false
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		if len(allowedOrigins) == 0 {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			if originAllowed(origin) {
				c.Header("Access-Control-Allow-Origin", origin)
				if allowCredentials {
					c.Header("Access-Control-Allow-Credentials", "true")
				}
			} else {
				logrus.WithFields(logrus.Fields{
					"origin": origin,
					"path":   c.Request.URL.Path,
				}).Warn("CORS: origin not in whitelist")
			}
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-TOTP-Code")
		c.Header("Access-Control-Max-Age", strconv.Itoa(maxAge))

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// SetupRouter builds the gin engine: health and metrics at the root, the
// versioned API below /api/v1, and the status WebSocket at /ws.
func SetupRouter(cfg *config.Config, container *app.ServiceContainer) *gin.Engine {
	r := gin.Default()

	r.Use(corsMiddleware(cfg))

	// ============ Reachability ============
	r.GET("/ping", handlers.PingHandler)
	healthHandler := handlers.NewHealthHandler(container.NATSClient, container.Synchronizers)
	r.GET("/health", healthHandler.HealthCheckHandler)

	// ============ Prometheus Metrics ============
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ============ Status WebSocket ============
	wsHandler := handlers.NewWebSocketHandler(container.StatusHub)
	r.GET("/ws", wsHandler.HandleWebSocket)

	// ============ API Routes ============
	RegisterAPIRoutes(r, cfg, container)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"message": "Endpoint not found",
			"path":    c.Request.URL.Path,
		})
	})

	return r
}
