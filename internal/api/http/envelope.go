package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mind-engage/testme/internal/quiz"
	"github.com/mind-engage/testme/internal/users"
)

// envelope is the wrapper every API response is rendered in.
type envelope struct {
	Status  int    `json:"status"`
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func respond(w http.ResponseWriter, status int, data any) {
	respondJSON(w, status, envelope{
		Status:  status,
		Success: status < 400,
		Message: http.StatusText(status),
		Data:    data,
	})
}

func respondMessage(w http.ResponseWriter, status int, msg string, data any) {
	if msg == "" {
		msg = http.StatusText(status)
	}
	respondJSON(w, status, envelope{Status: status, Success: status < 400, Message: msg, Data: data})
}

// deny renders rbac rejections in the envelope.
func deny(w http.ResponseWriter, _ *http.Request, status int) {
	msg := "You do not have permission to perform this action."
	if status == http.StatusUnauthorized {
		msg = "Authentication credentials were not provided."
	}
	respondMessage(w, status, msg, nil)
}

// respondError maps domain errors onto status codes. Validation failures
// keep their field messages in data; anything unknown is logged and hidden.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		qv   *quiz.ValidationError
		verr validator.ValidationErrors
	)
	switch {
	case errors.As(err, &qv):
		respondMessage(w, http.StatusBadRequest, "", qv.Fields)
	case errors.As(err, &verr):
		respondMessage(w, http.StatusBadRequest, "", users.Messages(verr))
	case errors.Is(err, quiz.ErrNotFound), errors.Is(err, users.ErrNotFound):
		respondMessage(w, http.StatusNotFound, "", nil)
	case errors.Is(err, quiz.ErrInvalidStateTransition), errors.Is(err, quiz.ErrConflict):
		respondMessage(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, users.ErrUsernameUnavailable), errors.Is(err, users.ErrEmailInUse):
		respondMessage(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, users.ErrInvalidCredentials):
		respondMessage(w, http.StatusUnauthorized, "Invalid username or password.", nil)
	case errors.Is(err, quiz.ErrTransactionFailure):
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		respondMessage(w, http.StatusServiceUnavailable, "", nil)
	default:
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		respondMessage(w, http.StatusInternalServerError, "", nil)
	}
}

var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}()

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return quiz.NewValidationError("non_field_errors", "JSON parse error: "+err.Error())
	}
	return nil
}

// decode reads a JSON body into dst and runs its validate tags.
func decode(r *http.Request, dst any) error {
	if err := decodeJSON(r, dst); err != nil {
		return err
	}
	if err := validate.Struct(dst); err != nil {
		var verr validator.ValidationErrors
		if errors.As(err, &verr) {
			return fieldErrors(verr)
		}
		return err
	}
	return nil
}

func fieldErrors(verr validator.ValidationErrors) *quiz.ValidationError {
	out := &quiz.ValidationError{}
	for _, fe := range verr {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			out.Add(field, "This field is required.")
		case "max":
			out.Add(field, "Ensure this field has no more than "+fe.Param()+" characters.")
		case "min":
			out.Add(field, "Ensure this field has at least "+fe.Param()+" characters.")
		default:
			out.Add(field, "Invalid value.")
		}
	}
	return out
}

// page is the paginated list payload.
type page struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  any     `json:"results"`
}

// pageParams reads ?page= (1-based) and returns limit/offset for size.
func pageParams(r *http.Request, size int) (n, limit, offset int) {
	n = parseIntDefault(r.URL.Query().Get("page"), 1)
	if n < 1 {
		n = 1
	}
	return n, size, (n - 1) * size
}

func newPage(r *http.Request, n, size, total int, results any) page {
	p := page{Count: total, Results: results}
	link := func(to int) *string {
		u := *r.URL
		q := u.Query()
		q.Set("page", strconv.Itoa(to))
		u.RawQuery = q.Encode()
		s := pageURL(r, &u)
		return &s
	}
	if size > 0 && n*size < total {
		p.Next = link(n + 1)
	}
	if n > 1 {
		p.Previous = link(n - 1)
	}
	return p
}

func pageURL(r *http.Request, u *url.URL) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + u.RequestURI()
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil && id > 0
}
