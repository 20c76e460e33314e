package modules

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vertice-erp/vertice-erp/internal/access"
	"github.com/vertice-erp/vertice-erp/internal/platform/httpx"
)

// Handler exposes the module catalog endpoints. Listing is open to any
// authenticated admin surface, mutations are mounted behind the
// cross-company guard at the router.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountReadRoutes registers catalog listing.
func (h *Handler) MountReadRoutes(r chi.Router) {
	r.Get("/", h.handleList)
}

// MountAdminRoutes registers catalog mutations.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Put("/{id}", h.handleUpdate)
	r.Put("/tabs/{id}", h.handleUpdateTab)
}

type moduleCreateRequest struct {
	RoutePath string `json:"route_path" validate:"required,startswith=/"`
	Name      string `json:"name" validate:"required,min=2,max=120"`
	Category  string `json:"category" validate:"max=60"`
	IsCore    bool   `json:"is_core"`
}

type moduleUpdateRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=120"`
	Category string `json:"category" validate:"max=60"`
	IsActive bool   `json:"is_active"`
}

type tabUpdateRequest struct {
	Name      string `json:"name" validate:"required,min=2,max=120"`
	SortOrder int    `json:"sort_order" validate:"gte=0"`
	IsActive  bool   `json:"is_active"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, "list catalog", err)
		return
	}
	httpx.JSON(w, http.StatusOK, catalog)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	principal, ok := access.PrincipalFromRequest(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var req moduleCreateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	m, err := h.service.Create(r.Context(), principal.ID, req.RoutePath, req.Name, req.Category, req.IsCore)
	if err != nil {
		h.fail(w, "create module", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	principal, ok := access.PrincipalFromRequest(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid module id")
		return
	}
	var req moduleUpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	m, err := h.service.Update(r.Context(), principal.ID, id, req.Name, req.Category, req.IsActive)
	if err != nil {
		h.fail(w, "update module", err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) handleUpdateTab(w http.ResponseWriter, r *http.Request) {
	principal, ok := access.PrincipalFromRequest(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid tab id")
		return
	}
	var req tabUpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sm, err := h.service.UpdateTab(r.Context(), principal.ID, id, req.Name, req.SortOrder, req.IsActive)
	if err != nil {
		h.fail(w, "update tab", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sm)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "catalog entry not found")
	case errors.Is(err, ErrCoreImmutable):
		httpx.Problem(w, http.StatusConflict, "Conflict", "core modules cannot be deactivated")
	case errors.Is(err, ErrDuplicateRoute):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "a module with this route already exists")
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
