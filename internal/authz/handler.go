package authz

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-crm/meridian-crm/internal/platform/httpx"
	"github.com/meridian-crm/meridian-crm/internal/registry"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// PermissionsHandler exposes resolution to clients so session caches can
// populate and refresh themselves. These endpoints are advisory, UI-gating
// reads; the storage-tier procedures stay authoritative for enforcement.
type PermissionsHandler struct {
	logger     *slog.Logger
	resolver   *Resolver
	procedures *Procedures
}

// NewPermissionsHandler builds a PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, resolver *Resolver, procedures *Procedures) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, resolver: resolver, procedures: procedures}
}

// MountRoutes registers permission query routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Get("/me", h.myPermissions)
	r.Get("/me/navigation", h.myNavigation)
	r.Get("/check", h.check)
}

// myPermissions returns the caller's full resolved permission set. Errors
// resolve to an empty set, never to a fault a client could misread as access.
func (h *PermissionsHandler) myPermissions(w http.ResponseWriter, r *http.Request) {
	set := h.resolveCaller(r)
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": set})
}

// myNavigation lists modules whose screens the caller should see, in
// registry display order.
func (h *PermissionsHandler) myNavigation(w http.ResponseWriter, r *http.Request) {
	set := h.resolveCaller(r)
	type navEntry struct {
		Module      string `json:"module"`
		DisplayName string `json:"display_name"`
	}
	var nav []navEntry
	for _, module := range registry.All() {
		if set.Allows(module, ActionVisible) {
			nav = append(nav, navEntry{Module: module, DisplayName: registry.DisplayName(module)})
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"navigation": nav})
}

// check answers a single (module, action) query through the storage-tier
// procedure, so callers can verify the authoritative answer.
func (h *PermissionsHandler) check(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.CurrentUserID(r.Context())
	if !ok {
		httpx.JSON(w, http.StatusOK, map[string]any{"allowed": false})
		return
	}
	module := r.URL.Query().Get("module")
	action := r.URL.Query().Get("action")
	allowed := h.procedures.HasPermission(r.Context(), userID, module, action)
	httpx.JSON(w, http.StatusOK, map[string]any{"allowed": allowed})
}

func (h *PermissionsHandler) resolveCaller(r *http.Request) PermissionSet {
	userID, ok := shared.CurrentUserID(r.Context())
	if !ok {
		return PermissionSet{}
	}
	set, err := h.resolver.Resolve(r.Context(), userID)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("resolve permissions", slog.Int64("user_id", userID), slog.Any("error", err))
		}
		return PermissionSet{}
	}
	return set
}
