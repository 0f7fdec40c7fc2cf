package users

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-crm/meridian-crm/internal/authz"
	"github.com/meridian-crm/meridian-crm/internal/platform/httpx"
	"github.com/meridian-crm/meridian-crm/internal/registry"
)

// Handler exposes the user directory over JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
	authz   authz.Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: mw}
}

// MountRoutes registers user directory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(registry.ModuleUserManagement, authz.ActionRead))
		r.Get("/", h.listUsers)
		r.Get("/{userID}", h.getUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(registry.ModuleUserManagement, authz.ActionUpdate))
		r.Patch("/{userID}/active", h.setActive)
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	list, pagination, err := h.service.ListUsers(r.Context(), page, perPage)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"users":      list,
		"pagination": pagination,
	})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid userID")
		return
	}
	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid userID")
		return
	}
	var req struct {
		IsActive *bool `json:"is_active"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil || req.IsActive == nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "is_active is required")
		return
	}
	user, err := h.service.SetActive(r.Context(), id, *req.IsActive)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrNotFound, err))
		return
	}
	if h.logger != nil {
		h.logger.Error("user directory", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
