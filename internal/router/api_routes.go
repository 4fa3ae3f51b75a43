// Shielded-pool client API, mirroring the ShieldedPool.sol contract surface.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"shieldswap-client/internal/app"
	"shieldswap-client/internal/config"
	"shieldswap-client/internal/handlers"
	"shieldswap-client/internal/middleware"
)

// RegisterAPIRoutes mounts the versioned API. The whole surface sits behind
// the optional JWT guard; endpoints that reveal or destroy note secrets
// additionally require a TOTP code, and clears stay loopback-only.
func RegisterAPIRoutes(r *gin.Engine, cfg *config.Config, container *app.ServiceContainer) {
	logger := logrus.StandardLogger()
	authMiddleware := middleware.NewAuthMiddleware(cfg.Security.JWTSecret, logger)
	totpGuard := middleware.NewTOTPGuard(cfg.Security.TOTPSecret, logger)
	loopbackOnly := middleware.NewLoopbackOnly(logger, nil)

	if authMiddleware.Enabled() {
		logger.Info("API JWT guard enabled")
	}
	if totpGuard.Enabled() {
		logger.Info("API TOTP guard enabled for export/import/clear")
	}

	api := r.Group("/api/v1")
	api.Use(authMiddleware.RequireAuth())
	{
		// ============ Notes ============
		noteHandler := handlers.NewNoteHandler(container.NoteService)
		notes := api.Group("/notes")
		{
			notes.POST("", noteHandler.CreateNoteHandler)
			notes.GET("", noteHandler.ListNotesHandler)
			notes.GET("/count", noteHandler.CountNotesHandler)
			notes.GET("/:id", noteHandler.GetNoteHandler)
			notes.POST("/:id/confirm", noteHandler.ConfirmNoteHandler)
			notes.POST("/:id/spend", noteHandler.SpendNoteHandler)
			notes.DELETE("/:id", noteHandler.DeleteNoteHandler)
			notes.POST("/import-one", noteHandler.ImportNoteHandler)

			// Backup and restore move raw secrets over the wire.
			notes.POST("/export", totpGuard.Require(), noteHandler.ExportNotesHandler)
			notes.POST("/import", totpGuard.Require(), noteHandler.ImportNotesHandler)
			notes.DELETE("", loopbackOnly.Restrict(), totpGuard.Require(), noteHandler.ClearNotesHandler)
		}

		// ============ Commitment Tree ============
		treeHandler := handlers.NewTreeHandler(container.Synchronizers)
		tree := api.Group("/tree")
		{
			tree.GET("", treeHandler.ListNetworksHandler)
			tree.GET("/:network/status", treeHandler.StatusHandler)
			tree.GET("/:network/root", treeHandler.RootHandler)
			tree.GET("/:network/proof/:leafIndex", treeHandler.ProofHandler)
			tree.POST("/:network/sync", treeHandler.SyncHandler)
			tree.POST("/:network/refresh", loopbackOnly.Restrict(), treeHandler.RefreshHandler)
		}

		// ============ Swap Proofs ============
		swapHandler := handlers.NewSwapHandler(container.ProofServices)
		swap := api.Group("/swap")
		{
			swap.POST("/prove", swapHandler.ProveSwapHandler)
			swap.POST("/stealth-address", swapHandler.StealthAddressHandler)
		}
	}
}
