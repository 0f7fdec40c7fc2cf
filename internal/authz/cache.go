package authz

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ResolveFunc resolves the effective permission set for a user.
type ResolveFunc func(ctx context.Context, userID int64) (PermissionSet, error)

const (
	refreshAttempts = 3
	refreshBackoff  = 50 * time.Millisecond
)

// SessionPermissions is the per-session permission cache consulted by UI
// gating. Exactly one refresh populates it at session start; until that
// completes every predicate denies but Loading reports true, so callers can
// distinguish "not yet loaded" from "denied".
//
// A refresh swaps the whole resolved set atomically. Concurrent readers see
// either the old or the new set in full, never a mixture. Refreshes carry a
// monotonically increasing sequence number; a completion that arrives after a
// newer refresh has already been applied is discarded.
type SessionPermissions struct {
	userID    int64
	roleNames []string
	resolve   ResolveFunc
	logger    *slog.Logger

	set     atomic.Pointer[PermissionSet]
	nextSeq atomic.Uint64

	mu      sync.Mutex
	applied uint64
}

// NewSessionPermissions builds an unpopulated cache for the given identity.
// roleNames come from the identity provider at login and drive the
// client-side admin override independently of cached grant rows.
func NewSessionPermissions(userID int64, roleNames []string, resolve ResolveFunc, logger *slog.Logger) *SessionPermissions {
	names := make([]string, len(roleNames))
	copy(names, roleNames)
	return &SessionPermissions{
		userID:    userID,
		roleNames: names,
		resolve:   resolve,
		logger:    logger,
	}
}

// Loading reports whether the cache has never completed a refresh.
func (s *SessionPermissions) Loading() bool {
	return !s.isAdmin() && s.set.Load() == nil
}

// Refresh re-resolves the permission set and atomically replaces the cached
// copy. Storage errors are retried a bounded number of times; on exhaustion
// the last-known-good set is retained so a transient outage degrades to
// stale-but-still-gating rather than wide open or locked out.
func (s *SessionPermissions) Refresh(ctx context.Context) error {
	seq := s.nextSeq.Add(1)

	var set PermissionSet
	var err error
	for attempt := 0; attempt < refreshAttempts; attempt++ {
		set, err = s.resolve(ctx, s.userID)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			err = ctx.Err()
			break
		}
		time.Sleep(refreshBackoff << attempt)
	}
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("permission refresh failed, keeping cached set", slog.Int64("user_id", s.userID), slog.Any("error", err))
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq < s.applied {
		// A newer refresh already landed; discard this stale completion.
		return nil
	}
	s.applied = seq
	s.set.Store(&set)
	return nil
}

// CanCreate reports create permission for the module.
func (s *SessionPermissions) CanCreate(module string) bool {
	return s.allows(module, ActionCreate)
}

// CanRead reports read permission for the module.
func (s *SessionPermissions) CanRead(module string) bool {
	return s.allows(module, ActionRead)
}

// CanUpdate reports update permission for the module.
func (s *SessionPermissions) CanUpdate(module string) bool {
	return s.allows(module, ActionUpdate)
}

// CanDelete reports delete permission for the module.
func (s *SessionPermissions) CanDelete(module string) bool {
	return s.allows(module, ActionDelete)
}

// IsVisible reports whether the module's screen should appear in navigation.
func (s *SessionPermissions) IsVisible(module string) bool {
	return s.allows(module, ActionVisible)
}

// HasAnyPermission reports whether any CRUD flag is set for the module.
func (s *SessionPermissions) HasAnyPermission(module string) bool {
	if s.isAdmin() {
		return true
	}
	set := s.set.Load()
	if set == nil {
		return false
	}
	return set.Get(module).Any()
}

// Snapshot returns the currently cached set, or nil while loading. The
// returned map must be treated as read-only.
func (s *SessionPermissions) Snapshot() PermissionSet {
	set := s.set.Load()
	if set == nil {
		return nil
	}
	return *set
}

func (s *SessionPermissions) allows(module, action string) bool {
	// The override mirrors the resolution algorithm's short-circuit and is
	// evaluated independently of cache state.
	if s.isAdmin() {
		return true
	}
	set := s.set.Load()
	if set == nil {
		// Loading or never resolved: fail closed.
		return false
	}
	return set.Allows(module, action)
}

func (s *SessionPermissions) isAdmin() bool {
	return HoldsAdmin(s.roleNames)
}
