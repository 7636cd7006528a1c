package server

import (
	"errors"
	"log/slog"
	"net/http"
)

func handleListScenarios(logger *slog.Logger, loader *ScenarioLoader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := loader.List(r.Context())
		if err != nil {
			logger.Error("listing scenarios", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func handleRandomScenario(logger *slog.Logger, loader *ScenarioLoader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sc, err := loader.Random(r.Context())
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "no scenarios available")
			return
		}
		if err != nil {
			logger.Error("picking random scenario", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, sc)
	}
}
