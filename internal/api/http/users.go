package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/testme/internal/rbac"
	"github.com/mind-engage/testme/internal/users"
)

// isSelf reports whether the {id} path parameter is the logged-in user.
func isSelf(r *http.Request) bool {
	uid, _ := principal(r)
	return uid != 0 && chi.URLParam(r, "id") == strconv.FormatInt(uid, 10)
}

// userView hides the email from everyone but the user and admins.
func (s *server) userView(r *http.Request, u users.User) users.User {
	uid, role := principal(r)
	if uid != u.ID && !s.checker.Has(role, rbac.PermUserViewEmail) {
		u.Email = nil
	}
	return u
}

func (s *server) listUsers(w http.ResponseWriter, r *http.Request) {
	n, limit, offset := pageParams(r, s.PageSize)
	list, total, err := s.Users.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, r, err)
		return
	}
	for i := range list {
		list[i] = s.userView(r, list[i])
	}
	respond(w, http.StatusOK, newPage(r, n, limit, total, list))
}

func (s *server) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	u, err := s.Users.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, s.userView(r, u))
}

// registerUser is open to anyone; staff flags cannot be set through it.
func (s *server) registerUser(w http.ResponseWriter, r *http.Request) {
	var req users.NewUser
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	u, err := s.Users.Create(r.Context(), users.NewUser{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, u)
}

func (s *server) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var req users.UserUpdate
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	u, err := s.Users.Update(r.Context(), id, req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, s.userView(r, u))
}

func (s *server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	if err := s.Users.Delete(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	if isSelf(r) {
		_, _ = s.Sessions.Logout(w)
	}
	w.WriteHeader(http.StatusNoContent)
}
