package rbac

import (
	"net/http"
)

// DenyFunc writes the rejection; status is 401 for anonymous callers, 403 otherwise.
type DenyFunc func(w http.ResponseWriter, r *http.Request, status int)

type Guard struct {
	Checker *Checker
	Deny    DenyFunc
}

func NewGuard(c *Checker, deny DenyFunc) *Guard {
	if c == nil {
		c = NewChecker(nil)
	}
	if deny == nil {
		deny = func(w http.ResponseWriter, r *http.Request, status int) {
			http.Error(w, http.StatusText(status), status)
		}
	}
	return &Guard{Checker: c, Deny: deny}
}

func (g *Guard) reject(w http.ResponseWriter, r *http.Request, role string) {
	if role == "" || role == RoleAnonymous {
		g.Deny(w, r, http.StatusUnauthorized)
		return
	}
	g.Deny(w, r, http.StatusForbidden)
}

// Require enforces a single permission.
func (g *Guard) Require(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if role == "" || !g.Checker.Has(role, perm) {
				g.reject(w, r, role)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuthenticated rejects anonymous callers.
func (g *Guard) RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := RoleFromContext(r.Context())
		if role == "" || role == RoleAnonymous {
			g.reject(w, r, role)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireOwnerOr passes when isOwner holds or the role has perm.
func (g *Guard) RequireOwnerOr(perm string, isOwner func(r *http.Request) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if isOwner(r) || g.Checker.Has(role, perm) {
				next.ServeHTTP(w, r)
				return
			}
			g.reject(w, r, role)
		})
	}
}
