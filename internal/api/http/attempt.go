package http

import (
	"net/http"

	auth "github.com/mind-engage/testme/internal/auth/middleware"
	"github.com/mind-engage/testme/internal/quiz"
)

type choiceView struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

type questionStep struct {
	ID          int64        `json:"id"`
	Text        string       `json:"text"`
	Description string       `json:"description"`
	Mode        string       `json:"mode"`
	Answers     []choiceView `json:"answers"`
}

type stepView struct {
	Attempt  quiz.Attempt  `json:"attempt"`
	Complete bool          `json:"complete"`
	Position int           `json:"position,omitempty"`
	Total    int           `json:"total"`
	Question *questionStep `json:"question,omitempty"`
}

// newStepView renders the pending question without correctness flags.
func newStepView(st quiz.Step) stepView {
	v := stepView{Attempt: st.Attempt, Complete: st.Done, Position: st.Position, Total: st.Total}
	if st.Done {
		return v
	}
	q := &questionStep{
		ID:          st.Question.ID,
		Text:        st.Question.Text,
		Description: st.Question.Description,
		Mode:        st.Mode.String(),
		Answers:     make([]choiceView, 0, len(st.Answers)),
	}
	for _, a := range st.Answers {
		q.Answers = append(q.Answers, choiceView{ID: a.ID, Text: a.Text})
	}
	v.Question = q
	return v
}

// GET /api/quizzes/{id}/attempt
func (s *server) currentAttempt(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	st, err := s.Engine.Current(r.Context(), id, auth.SessionKey(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, newStepView(st))
}

type submitReq struct {
	QuestionID int64   `json:"question_id" validate:"required"`
	AnswerIDs  []int64 `json:"answer_ids"`
}

// POST /api/quizzes/{id}/attempt/responses  { "question_id": 1, "answer_ids": [2] }
// Only an attempt already in progress accepts responses; otherwise 409.
func (s *server) submitResponse(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var req submitReq
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	ctx, sk := r.Context(), auth.SessionKey(r.Context())

	a, err := s.Engine.InProgress(ctx, id, sk)
	if err != nil {
		respondError(w, r, err)
		return
	}
	order, err := s.Engine.QuestionOrder(ctx, a)
	if err != nil {
		respondError(w, r, err)
		return
	}
	complete, err := s.Engine.SubmitResponse(ctx, a, req.QuestionID, order, req.AnswerIDs)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if complete {
		a, err = s.Engine.Latest(ctx, id, sk)
		if err != nil {
			respondError(w, r, err)
			return
		}
		res, err := s.Engine.Results(ctx, a)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respond(w, http.StatusCreated, map[string]any{"complete": true, "results": res})
		return
	}
	st, err := s.Engine.Current(ctx, id, sk)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, newStepView(st))
}

// GET /api/quizzes/{id}/results grades the session's latest attempt.
func (s *server) attemptResults(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	a, err := s.Engine.Latest(r.Context(), id, auth.SessionKey(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	res, err := s.Engine.Results(r.Context(), a)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, res)
}
