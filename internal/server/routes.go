package server

import (
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"
)

func addRoutes(r chi.Router, logger *slog.Logger, d Deps) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("PCD Trainer API", "/openapi.json", "/docs"))

	// Player routes.
	r.Group(func(r chi.Router) {
		r.Use(compress)
		r.Get("/api/scenarios", handleListScenarios(logger, d.Loader))
		r.Get("/api/scenarios/random", handleRandomScenario(logger, d.Loader))
		r.Post("/api/games", handleCreateGame(logger, d.Loader, d.Sessions))
	})

	r.Route("/api/games/{gameID}", func(r chi.Router) {
		r.Use(gameMiddleware(d.Sessions))

		// Streaming endpoints stay uncompressed.
		r.Get("/events", handleEvents(d.Broker))
		r.Get("/ws", handleGameWS(logger, d.Sessions, d.Synth))

		r.Group(func(r chi.Router) {
			r.Use(compress)
			r.Get("/", handleGetGame())
			r.Delete("/", handleDeleteGame(d.Sessions))
			r.Post("/select", handleSelectFlight(d.Sessions))
			r.Post("/features", handleFeatures(d.Synth))
		})
	})

	// Admin auth.
	r.Post("/api/admin/login", handleAdminLogin(logger, d.Store))
	r.Post("/api/admin/logout", handleAdminLogout(logger, d.Store))

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(adminAuthMiddleware(d.Store))
		r.Use(compress)

		r.Get("/me", handleAdminMe())
		r.Get("/scenarios", handleAdminListScenarios(logger, d.Loader))
		r.Post("/scenarios", handleAdminCreateScenario(logger, d.Loader))
		r.Get("/scenarios/{id}", handleAdminGetScenario(logger, d.Loader))
		r.Delete("/scenarios/{id}", handleAdminDeleteScenario(logger, d.Loader))
		r.Get("/results", handleAdminListResults(logger, d.Store))
	})

	if d.SPADir != "" {
		if info, err := os.Stat(d.SPADir); err == nil && info.IsDir() {
			logger.Info("serving SPA", "dir", d.SPADir)
			r.NotFound(handleSPA(d.SPADir))
		}
	}
}
