package auth_test

import (
	"io"
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/vertice-erp/vertice-erp/internal/auth"
)

func routerFor(h *auth.Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Route("/auth", h.MountRoutes)
	return r
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
