package http

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	auth "github.com/mind-engage/testme/internal/auth/middleware"
	"github.com/mind-engage/testme/internal/quiz"
	"github.com/mind-engage/testme/internal/rbac"
	syncx "github.com/mind-engage/testme/internal/sync"
	"github.com/mind-engage/testme/internal/users"
)

const PermEventsRead = "events:read"

type Deps struct {
	DB       *sql.DB
	Engine   *quiz.Engine
	Catalog  quiz.Catalog
	Users    *users.Store
	Sessions *auth.SessionService
	Events   *syncx.EventRepo

	PageSize    int
	IndexLatest int
}

type server struct {
	Deps
	checker *rbac.Checker
	guard   *rbac.Guard
	pages   *pages
}

// Router mounts the pages, the JSON API and health probes. Every route runs
// behind the session middleware, so each request carries a session key and role.
func Router(d Deps) chi.Router {
	if d.PageSize <= 0 {
		d.PageSize = 100
	}
	s := &server{Deps: d, checker: rbac.NewChecker(nil)}
	s.guard = rbac.NewGuard(s.checker, deny)
	s.pages = newPages(s)

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", s.ready)

	r.Group(func(r chi.Router) {
		r.Use(d.Sessions.Middleware, auth.AttachRole(d.Users))

		s.pages.mount(r)
		r.Route("/api", s.mountAPI)
	})
	return r
}

func (s *server) mountAPI(r chi.Router) {
	g := s.guard

	r.Route("/tags", func(r chi.Router) {
		r.Get("/", s.listTags)
		r.With(g.Require(rbac.PermTagCreate)).Post("/", s.createTag)
		r.Get("/{id}", s.getTag)
		r.With(g.Require(rbac.PermTagModify)).Put("/{id}", s.updateTag)
		r.With(g.Require(rbac.PermTagModify)).Delete("/{id}", s.deleteTag)
	})
	r.Route("/questions", func(r chi.Router) {
		r.Get("/", s.listQuestions)
		r.With(g.Require(rbac.PermQuestionCreate)).Post("/", s.createQuestion)
		r.Get("/{id}", s.getQuestion)
		r.With(g.RequireAuthenticated).Put("/{id}", s.updateQuestion)
		r.With(g.RequireAuthenticated).Delete("/{id}", s.deleteQuestion)
	})
	r.Route("/answers", func(r chi.Router) {
		r.Get("/", s.listAnswers)
		r.With(g.Require(rbac.PermAnswerCreate)).Post("/", s.createAnswer)
		r.Get("/{id}", s.getAnswer)
		r.With(g.RequireAuthenticated).Put("/{id}", s.updateAnswer)
		r.With(g.RequireAuthenticated).Delete("/{id}", s.deleteAnswer)
	})
	r.Route("/quizzes", func(r chi.Router) {
		r.Get("/", s.listQuizzes)
		r.With(g.Require(rbac.PermQuizCreate)).Post("/", s.createQuiz)
		r.Get("/{id}", s.getQuiz)
		r.With(g.RequireAuthenticated).Put("/{id}", s.updateQuiz)
		r.With(g.RequireAuthenticated).Delete("/{id}", s.deleteQuiz)

		r.Get("/{id}/attempt", s.currentAttempt)
		r.Post("/{id}/attempt/responses", s.submitResponse)
		r.Get("/{id}/results", s.attemptResults)
	})
	r.Route("/users", func(r chi.Router) {
		r.Get("/", s.listUsers)
		r.Post("/", s.registerUser)
		r.Get("/{id}", s.getUser)
		r.With(g.RequireOwnerOr(rbac.PermUserModifyAny, isSelf)).Put("/{id}", s.updateUser)
		r.With(g.RequireOwnerOr(rbac.PermUserModifyAny, isSelf)).Delete("/{id}", s.deleteUser)
	})
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.login)
		r.Post("/logout", s.logout)
		r.Get("/me", s.me)
		r.With(g.RequireAuthenticated).Post("/password", s.changePassword)
	})
	r.With(g.Require(PermEventsRead)).Get("/events", s.listEvents)
}

func (s *server) ready(w http.ResponseWriter, r *http.Request) {
	if s.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.DB.PingContext(ctx); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(200)
}

// principal returns the logged-in user id (0 when anonymous) and rbac role.
func principal(r *http.Request) (int64, string) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		return 0, rbac.RoleFromContext(r.Context())
	}
	return p.ID, p.Role
}

// canModify applies the creator-or-admin rule and writes the rejection.
func (s *server) canModify(w http.ResponseWriter, r *http.Request, owner *int64) bool {
	uid, role := principal(r)
	if s.checker.CanModify(role, uid, owner, rbac.PermContentModifyAny) {
		return true
	}
	deny(w, r, http.StatusForbidden)
	return false
}

func creator(r *http.Request) *int64 {
	uid, _ := principal(r)
	if uid == 0 {
		return nil
	}
	return &uid
}

func urlID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		respondMessage(w, http.StatusNotFound, "", nil)
	}
	return id, ok
}
