package http

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"log"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	auth "github.com/mind-engage/testme/internal/auth/middleware"
	"github.com/mind-engage/testme/internal/quiz"
)

//go:embed templates/*.html
var templateFS embed.FS

const NoQuizzesMessage = "No quizzes are available."

type pages struct {
	s    *server
	tmpl map[string]*template.Template
}

func newPages(s *server) *pages {
	p := &pages{s: s, tmpl: map[string]*template.Template{}}
	for _, name := range []string{"index", "quizzes", "quiz", "results"} {
		p.tmpl[name] = template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html"))
	}
	return p
}

func (p *pages) mount(r chi.Router) {
	r.Get("/", p.index)
	r.Get("/quizzes", p.quizzes)
	r.Get("/quizzes/{id}", p.quiz)
	r.Post("/quizzes/{id}", p.submit)
	r.Get("/quizzes/{id}/results", p.results)
}

func (p *pages) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := p.tmpl[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		log.Printf("render %s: %v", name, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (p *pages) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, quiz.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
	if errors.Is(err, quiz.ErrTransactionFailure) {
		http.Error(w, "please retry", http.StatusServiceUnavailable)
		return
	}
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func (p *pages) index(w http.ResponseWriter, r *http.Request) {
	list, err := p.s.Catalog.LatestQuizzes(r.Context(), p.s.IndexLatest)
	if err != nil {
		p.fail(w, r, err)
		return
	}
	p.render(w, http.StatusOK, "index", map[string]any{
		"Quizzes":          list,
		"NoQuizzesMessage": NoQuizzesMessage,
	})
}

func (p *pages) quizzes(w http.ResponseWriter, r *http.Request) {
	list, _, err := p.s.Catalog.ListQuizzes(r.Context(), quiz.ListOpts{})
	if err != nil {
		p.fail(w, r, err)
		return
	}
	p.render(w, http.StatusOK, "quizzes", map[string]any{
		"Quizzes":          list,
		"NoQuizzesMessage": NoQuizzesMessage,
	})
}

type quizPage struct {
	Quiz      quiz.Quiz
	Step      quiz.Step
	InputType string
	Errors    []string
}

func (p *pages) quiz(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	p.showQuestion(w, r, id, http.StatusOK, nil)
}

// showQuestion renders the session's pending question, or sends the browser
// to the results once the attempt has nothing left to answer.
func (p *pages) showQuestion(w http.ResponseWriter, r *http.Request, quizID int64, status int, errs []string) {
	q, err := p.s.Catalog.GetQuiz(r.Context(), quizID)
	if err != nil {
		p.fail(w, r, err)
		return
	}
	st, err := p.s.Engine.Current(r.Context(), quizID, auth.SessionKey(r.Context()))
	if err != nil {
		p.fail(w, r, err)
		return
	}
	if st.Done {
		http.Redirect(w, r, resultsURL(quizID), http.StatusSeeOther)
		return
	}
	input := "radio"
	if st.Mode == quiz.Multiple {
		input = "checkbox"
	}
	p.render(w, status, "quiz", quizPage{Quiz: q, Step: st, InputType: input, Errors: errs})
}

func (p *pages) submit(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	ctx, sk := r.Context(), auth.SessionKey(r.Context())

	a, err := p.s.Engine.InProgress(ctx, id, sk)
	if errors.Is(err, quiz.ErrInvalidStateTransition) {
		// replayed form after the attempt finished
		http.Redirect(w, r, resultsURL(id), http.StatusSeeOther)
		return
	}
	if err != nil {
		p.fail(w, r, err)
		return
	}
	order, err := p.s.Engine.QuestionOrder(ctx, a)
	if err != nil {
		p.fail(w, r, err)
		return
	}
	questionID, _ := strconv.ParseInt(r.PostForm.Get("question"), 10, 64)
	selected := make([]int64, 0, len(r.PostForm["answers"]))
	for _, v := range r.PostForm["answers"] {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			p.showQuestion(w, r, id, http.StatusBadRequest, []string{"Select a valid choice. " + v + " is not one of the available choices."})
			return
		}
		selected = append(selected, n)
	}

	complete, err := p.s.Engine.SubmitResponse(ctx, a, questionID, order, selected)
	var verr *quiz.ValidationError
	switch {
	case errors.As(err, &verr):
		p.showQuestion(w, r, id, http.StatusBadRequest, flatten(verr.Fields))
	case errors.Is(err, quiz.ErrInvalidStateTransition):
		// stale form, show whatever is pending now
		http.Redirect(w, r, quizURL(id), http.StatusSeeOther)
	case err != nil:
		p.fail(w, r, err)
	case complete:
		http.Redirect(w, r, resultsURL(id), http.StatusSeeOther)
	default:
		http.Redirect(w, r, quizURL(id), http.StatusSeeOther)
	}
}

func (p *pages) results(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	q, err := p.s.Catalog.GetQuiz(r.Context(), id)
	if err != nil {
		p.fail(w, r, err)
		return
	}
	a, err := p.s.Engine.Latest(r.Context(), id, auth.SessionKey(r.Context()))
	if errors.Is(err, quiz.ErrNotFound) {
		http.Redirect(w, r, quizURL(id), http.StatusSeeOther)
		return
	}
	if err != nil {
		p.fail(w, r, err)
		return
	}
	res, err := p.s.Engine.Results(r.Context(), a)
	if err != nil {
		p.fail(w, r, err)
		return
	}
	p.render(w, http.StatusOK, "results", map[string]any{"Quiz": q, "Result": res})
}

func quizURL(id int64) string    { return "/quizzes/" + strconv.FormatInt(id, 10) }
func resultsURL(id int64) string { return quizURL(id) + "/results" }

func flatten(fields map[string][]string) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []string
	for _, k := range keys {
		out = append(out, fields[k]...)
	}
	return out
}
