package http

import (
	"net/http"

	auth "github.com/mind-engage/testme/internal/auth/middleware"
	"github.com/mind-engage/testme/internal/users"
)

type loginReq struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// POST /api/auth/login  { "username": "...", "password": "..." }
func (s *server) login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	u, err := s.Users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if _, err := s.Sessions.Login(w, r, u.ID); err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, u)
}

func (s *server) logout(w http.ResponseWriter, r *http.Request) {
	if _, err := s.Sessions.Logout(w); err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, nil)
}

// me returns the logged-in user, or null data for an anonymous session.
func (s *server) me(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		respond(w, http.StatusOK, nil)
		return
	}
	u, err := s.Users.Get(r.Context(), p.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, u)
}

type changePasswordReq struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

func (s *server) changePassword(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	var req changePasswordReq
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if _, err := s.Users.Authenticate(r.Context(), p.Username, req.OldPassword); err != nil {
		respondMessage(w, http.StatusForbidden, "incorrect old password", nil)
		return
	}
	if _, err := s.Users.Update(r.Context(), p.ID, users.UserUpdate{Password: &req.NewPassword}); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
