package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzhttp"

	"github.com/playpcd/pcdtrainer/internal/engine"
)

type ctxKey int

const (
	ctxKeyGame ctxKey = iota
	ctxKeyAdmin
)

// gameMiddleware resolves {gameID} to a live session.
func gameMiddleware(sessions *Sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			e, ok := sessions.Get(chi.URLParam(r, "gameID"))
			if !ok {
				writeError(w, http.StatusNotFound, "game not found")
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyGame, e)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func adminAuthMiddleware(store Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := adminFromRequest(r, store)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyAdmin, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// compress gzips responses for clients that accept it. Streaming routes
// (SSE, WebSocket) are mounted outside of it.
func compress(next http.Handler) http.Handler {
	return gzhttp.GzipHandler(next)
}

func gameFrom(r *http.Request) *engine.Engine {
	return r.Context().Value(ctxKeyGame).(*engine.Engine)
}

func adminFrom(r *http.Request) adminSession {
	return r.Context().Value(ctxKeyAdmin).(adminSession)
}
