package auth

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/mind-engage/testme/internal/rbac"
	"github.com/mind-engage/testme/internal/users"
)

type UserLookup interface {
	Get(ctx context.Context, id int64) (users.User, error)
}

// AttachRole resolves the session's user against the database and puts the
// principal and its rbac role in the request context. Sessions without a user,
// or whose user no longer exists, run as anonymous.
func AttachRole(lookup UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			s := SessionFromContext(ctx)
			if s.UserID == 0 {
				next.ServeHTTP(w, r.WithContext(rbac.WithRole(ctx, rbac.RoleAnonymous)))
				return
			}

			u, err := lookup.Get(ctx, s.UserID)
			switch {
			case err == nil:
				ctx = WithPrincipal(ctx, Principal{ID: u.ID, Username: u.Username, Role: u.Role()})
				next.ServeHTTP(w, r.WithContext(rbac.WithRole(ctx, u.Role())))
			case errors.Is(err, users.ErrNotFound):
				next.ServeHTTP(w, r.WithContext(rbac.WithRole(ctx, rbac.RoleAnonymous)))
			default:
				log.Printf("attach role: user %d: %v", s.UserID, err)
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		})
	}
}
