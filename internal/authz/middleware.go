package authz

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// DecisionObserver records authorization decisions for observability.
type DecisionObserver interface {
	ObserveDecision(module, action string, allowed bool)
}

// Middleware enforces module permissions on HTTP handlers. Checks fail
// closed: a missing session, an unknown user, or a storage error all deny.
type Middleware struct {
	Resolver  *Resolver
	Logger    *slog.Logger
	Decisions DecisionObserver
}

// Require ensures the current user may perform action on module.
func (m Middleware) Require(module, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, roleNames, ok := m.currentIdentity(r)
			if !ok {
				m.deny(w, module, action)
				return
			}

			// Admin override, checked against the session identity before
			// any grant lookup.
			if HoldsAdmin(roleNames) {
				m.allow(next, w, r, module, action)
				return
			}

			set, err := m.Resolver.Resolve(r.Context(), userID)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("authz resolve", slog.Int64("user_id", userID), slog.Any("error", err))
				}
				m.deny(w, module, action)
				return
			}
			if set.Allows(module, action) {
				m.allow(next, w, r, module, action)
				return
			}
			m.deny(w, module, action)
		})
	}
}

// RequireAny ensures the user holds at least one CRUD flag on module.
func (m Middleware) RequireAny(module string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, roleNames, ok := m.currentIdentity(r)
			if !ok {
				m.deny(w, module, "any")
				return
			}
			if HoldsAdmin(roleNames) {
				m.allow(next, w, r, module, "any")
				return
			}
			set, err := m.Resolver.Resolve(r.Context(), userID)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("authz resolve", slog.Int64("user_id", userID), slog.Any("error", err))
				}
				m.deny(w, module, "any")
				return
			}
			if set.Get(module).Any() {
				m.allow(next, w, r, module, "any")
				return
			}
			m.deny(w, module, "any")
		})
	}
}

func (m Middleware) allow(next http.Handler, w http.ResponseWriter, r *http.Request, module, action string) {
	if m.Decisions != nil {
		m.Decisions.ObserveDecision(module, action, true)
	}
	next.ServeHTTP(w, r)
}

func (m Middleware) deny(w http.ResponseWriter, module, action string) {
	if m.Decisions != nil {
		m.Decisions.ObserveDecision(module, action, false)
	}
	http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
}

func (m Middleware) currentIdentity(r *http.Request) (int64, []string, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, nil, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return 0, nil, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("authz parse user id", slog.String("value", raw))
		}
		return 0, nil, false
	}
	return id, sess.Roles(), true
}
