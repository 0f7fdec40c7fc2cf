package roles

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-crm/meridian-crm/internal/authz"
	"github.com/meridian-crm/meridian-crm/internal/platform/httpx"
	"github.com/meridian-crm/meridian-crm/internal/registry"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// Handler exposes role administration over JSON. The engine gates access to
// its own administration: every route requires role_management permissions.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	authz    authz.Middleware
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: mw, validate: validator.New()}
}

// MountRoutes registers role administration routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(registry.ModuleRoleManagement, authz.ActionRead))
		r.Get("/", h.listRoles)
		r.Get("/{roleID}", h.getRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(registry.ModuleRoleManagement, authz.ActionCreate))
		r.Post("/", h.createRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(registry.ModuleRoleManagement, authz.ActionUpdate))
		r.Put("/{roleID}", h.updateRole)
		r.Put("/{roleID}/permissions/{module}", h.setPermission)
		r.Delete("/{roleID}/permissions/{module}", h.revokePermission)
		r.Post("/{roleID}/bulk-grant", h.bulkGrant)
		r.Post("/{roleID}/users/{userID}", h.assignRole)
		r.Delete("/{roleID}/users/{userID}", h.revokeRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(registry.ModuleRoleManagement, authz.ActionDelete))
		r.Delete("/{roleID}", h.deleteRole)
	})
}

type createRoleRequest struct {
	Name           string `json:"name" validate:"required,min=2,max=50"`
	DisplayName    string `json:"display_name" validate:"max=100"`
	Description    string `json:"description" validate:"max=255"`
	HierarchyLevel int    `json:"hierarchy_level" validate:"gte=0,lt=100"`
}

type updateRoleRequest struct {
	DisplayName    string `json:"display_name" validate:"required,max=100"`
	Description    string `json:"description" validate:"max=255"`
	HierarchyLevel int    `json:"hierarchy_level" validate:"gte=0,lt=100"`
}

type flagsRequest struct {
	CanCreate     bool `json:"can_create"`
	CanRead       bool `json:"can_read"`
	CanUpdate     bool `json:"can_update"`
	CanDelete     bool `json:"can_delete"`
	ScreenVisible bool `json:"screen_visible"`
}

func (f flagsRequest) toFlags() authz.Flags {
	return authz.Flags{
		CanCreate:     f.CanCreate,
		CanRead:       f.CanRead,
		CanUpdate:     f.CanUpdate,
		CanDelete:     f.CanDelete,
		ScreenVisible: f.ScreenVisible,
	}
}

type roleDetailResponse struct {
	Role   Role    `json:"role"`
	Grants []Grant `json:"grants"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": list})
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	role, grants, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, roleDetailResponse{Role: role, Grants: grants})
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if !h.decode(w, r, &req) {
		return
	}
	role, err := h.service.CreateRole(r.Context(), h.actorID(r), CreateRoleInput{
		Name:           req.Name,
		DisplayName:    req.DisplayName,
		Description:    req.Description,
		HierarchyLevel: req.HierarchyLevel,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	var req updateRoleRequest
	if !h.decode(w, r, &req) {
		return
	}
	role, err := h.service.UpdateRole(r.Context(), h.actorID(r), id, req.DisplayName, req.Description, req.HierarchyLevel)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	if err := h.service.DeleteRole(r.Context(), h.actorID(r), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setPermission(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	var req flagsRequest
	if !h.decode(w, r, &req) {
		return
	}
	module := chi.URLParam(r, "module")
	if err := h.service.SetPermission(r.Context(), h.actorID(r), id, module, req.toFlags()); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) revokePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	module := chi.URLParam(r, "module")
	if err := h.service.RevokePermission(r.Context(), h.actorID(r), id, module); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) bulkGrant(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	var req flagsRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.BulkGrant(r.Context(), h.actorID(r), id, req.toFlags()); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	roleID, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	if err := h.service.AssignRole(r.Context(), h.actorID(r), userID, roleID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) revokeRole(w http.ResponseWriter, r *http.Request) {
	roleID, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	if err := h.service.RevokeRole(r.Context(), h.actorID(r), userID, roleID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid "+name)
		return 0, false
	}
	return id, true
}

func (h *Handler) actorID(r *http.Request) int64 {
	id, _ := shared.CurrentUserID(r.Context())
	return id
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrNotFound, err))
	case errors.Is(err, ErrNameTaken), errors.Is(err, ErrSystemRole), errors.Is(err, ErrRoleInUse), errors.Is(err, ErrDuplicateAssignment):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrConflict, err))
	case errors.Is(err, ErrUnknownModule), errors.Is(err, ErrReservedHierarchy), errors.Is(err, ErrInvalidName):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
	default:
		if h.logger != nil {
			h.logger.Error("role administration", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
	}
}
