package server

import (
	"log/slog"
	"net/http"
)

func handleAdminListResults(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results, err := store.ListResults(r.Context(), r.URL.Query().Get("scenarioId"))
		if err != nil {
			logger.Error("listing results", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, results)
	}
}
