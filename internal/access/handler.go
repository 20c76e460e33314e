package access

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vertice-erp/vertice-erp/internal/platform/httpx"
)

// Handler exposes the evaluator to the SPA: route guards and tab filtering
// components query these endpoints before rendering.
type Handler struct {
	logger    *slog.Logger
	evaluator *Evaluator
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, evaluator *Evaluator) *Handler {
	return &Handler{logger: logger, evaluator: evaluator}
}

// MountRoutes registers access query routes. Module routes contain slashes,
// so they travel as query parameters rather than path segments.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/routes", h.allowedRoutes)
	r.Get("/check", h.check)
	r.Get("/tabs", h.tabs)
	r.Post("/refresh", h.refresh)
}

type checkResponse struct {
	Route   string `json:"route"`
	Allowed bool   `json:"allowed"`
}

type tabResponse struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
}

type tabsResponse struct {
	Module string        `json:"module"`
	Tabs   []tabResponse `json:"tabs"`
	First  *string       `json:"first"`
}

// allowedRoutes lists every route the caller may visit. Unauthenticated
// callers receive only the baseline routes.
func (h *Handler) allowedRoutes(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromRequest(r)
	if !ok {
		httpx.JSON(w, http.StatusOK, map[string]any{"routes": BaselineRoutes})
		return
	}
	routes := h.evaluator.AllowedRoutes(r.Context(), principal)
	httpx.JSON(w, http.StatusOK, map[string]any{"routes": routes})
}

// check answers a single module or tab access question.
func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	route := r.URL.Query().Get("route")
	if route == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "route parameter required")
		return
	}
	principal, ok := PrincipalFromRequest(r)
	if !ok {
		httpx.JSON(w, http.StatusOK, checkResponse{Route: route, Allowed: IsBaselineRoute(route)})
		return
	}
	allowed := false
	if tab := r.URL.Query().Get("tab"); tab != "" {
		allowed = h.evaluator.HasTabAccess(r.Context(), principal, route, tab)
	} else {
		allowed = h.evaluator.HasAccess(r.Context(), principal, route)
	}
	httpx.JSON(w, http.StatusOK, checkResponse{Route: route, Allowed: allowed})
}

// tabs lists the allowed tabs of a module plus the first allowed tab key,
// which the SPA uses as the landing tab.
func (h *Handler) tabs(w http.ResponseWriter, r *http.Request) {
	module := r.URL.Query().Get("module")
	if module == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "module parameter required")
		return
	}
	principal, ok := PrincipalFromRequest(r)
	if !ok {
		httpx.JSON(w, http.StatusOK, tabsResponse{Module: module, Tabs: []tabResponse{}})
		return
	}
	allowed := h.evaluator.AllowedTabs(r.Context(), principal, module)
	out := make([]tabResponse, 0, len(allowed))
	for _, t := range allowed {
		out = append(out, tabResponse{Key: t.TabKey, Name: t.Name, SortOrder: t.SortOrder})
	}
	resp := tabsResponse{Module: module, Tabs: out}
	if first, ok := h.evaluator.FirstAllowedTab(r.Context(), principal, module); ok {
		resp.First = &first
	}
	httpx.JSON(w, http.StatusOK, resp)
}

// refresh drops the caller's cached snapshot after an admin mutation, so
// the next decision is evaluated against fresh permission data.
func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromRequest(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	if err := h.evaluator.Refresh(r.Context(), principal.ID); err != nil {
		h.logger.Error("refresh permissions", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
