package users

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

// Handler exposes the user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers user routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleInvite)
	r.Get("/{id}", h.handleGet)
	r.Put("/{id}/profile", h.handleAssignProfile)
	r.Put("/{id}/tabs", h.handleSetTabs)
	r.Put("/{id}/role", h.handleSetRole)
	r.Post("/{id}/activate", h.handleActivate)
	r.Post("/{id}/deactivate", h.handleDeactivate)
}

type inviteRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Name      string `json:"name" validate:"required,min=2,max=120"`
	Role      string `json:"role" validate:"omitempty,oneof=user admin master"`
	ProfileID *int64 `json:"profile_id"`
}

type assignProfileRequest struct {
	ProfileID *int64 `json:"profile_id"`
}

type setTabsRequest struct {
	SubModuleIDs []int64 `json:"sub_module_ids"`
}

type setRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin master"`
}

type userDetailResponse struct {
	User         User    `json:"user"`
	SubModuleIDs []int64 `json:"sub_module_ids"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	principal, ok := access.PrincipalFromRequest(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	list, err := h.service.List(r.Context(), principal.CompanyID)
	if err != nil {
		h.fail(w, "list users", err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	principal, ok := access.PrincipalFromRequest(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	user, tabs, err := h.service.Get(r.Context(), principal.CompanyID, id)
	if err != nil {
		h.fail(w, "get user", err)
		return
	}
	if tabs == nil {
		tabs = []int64{}
	}
	httpx.JSON(w, http.StatusOK, userDetailResponse{User: user, SubModuleIDs: tabs})
}

func (h *Handler) handleInvite(w http.ResponseWriter, r *http.Request) {
	principal, ok := access.PrincipalFromRequest(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var req inviteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	// Granting the master role is reserved for cross-company admins.
	if req.Role == string(access.RoleMaster) && !principal.Role.Capabilities().CrossCompanyAdmin {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "only master accounts may grant the master role")
		return
	}
	user, err := h.service.Invite(r.Context(), principal.ID, principal.CompanyID, req.Email, req.Name, req.Role, req.ProfileID)
	if err != nil {
		h.fail(w, "invite user", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) handleAssignProfile(w http.ResponseWriter, r *http.Request) {
	principal, ok := access.PrincipalFromRequest(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	var req assignProfileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.service.AssignProfile(r.Context(), principal.ID, principal.CompanyID, id, req.ProfileID); err != nil {
		h.fail(w, "assign profile", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetTabs(w http.ResponseWriter, r *http.Request) {
	principal, ok := access.PrincipalFromRequest(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	var req setTabsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.service.SetTabGrants(r.Context(), principal.ID, principal.CompanyID, id, req.SubModuleIDs); err != nil {
		h.fail(w, "set tab grants", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetRole(w http.ResponseWriter, r *http.Request) {
	principal, ok := access.PrincipalFromRequest(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	var req setRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if req.Role == string(access.RoleMaster) && !principal.Role.Capabilities().CrossCompanyAdmin {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "only master accounts may grant the master role")
		return
	}
	if err := h.service.SetRole(r.Context(), principal.ID, principal.CompanyID, id, req.Role); err != nil {
		h.fail(w, "set role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleActivate(w http.ResponseWriter, r *http.Request) {
	h.toggleActive(w, r, true)
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	h.toggleActive(w, r, false)
}

func (h *Handler) toggleActive(w http.ResponseWriter, r *http.Request, active bool) {
	principal, ok := access.PrincipalFromRequest(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	if !active && id == principal.ID {
		httpx.Problem(w, http.StatusConflict, "Conflict", "cannot deactivate the current account")
		return
	}
	if err := h.service.SetActive(r.Context(), principal.ID, principal.CompanyID, id, active); err != nil {
		h.fail(w, "toggle user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "user not found")
	case errors.Is(err, ErrDuplicateEmail):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "a user with this email already exists")
	case errors.Is(err, ErrUnknownProfile):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "profile does not belong to this company")
	case errors.Is(err, ErrUnknownTab):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "grant references an unknown or inactive tab")
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
