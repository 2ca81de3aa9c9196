package http

import (
	"net/http"
	"strings"

	"github.com/mind-engage/testme/internal/quiz"
)

func (s *server) listOpts(r *http.Request) (n int, opts quiz.ListOpts) {
	n, limit, offset := pageParams(r, s.PageSize)
	return n, quiz.ListOpts{
		Q:      strings.TrimSpace(r.URL.Query().Get("q")),
		Limit:  limit,
		Offset: offset,
	}
}

// ---- tags ----

type tagReq struct {
	Name string `json:"name" validate:"required,max=255"`
}

func (s *server) listTags(w http.ResponseWriter, r *http.Request) {
	n, opts := s.listOpts(r)
	list, total, err := s.Catalog.ListTags(r.Context(), opts)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, newPage(r, n, opts.Limit, total, list))
}

func (s *server) getTag(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	t, err := s.Catalog.GetTag(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, t)
}

func (s *server) createTag(w http.ResponseWriter, r *http.Request) {
	var req tagReq
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	t, err := s.Catalog.CreateTag(r.Context(), strings.TrimSpace(req.Name))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, t)
}

func (s *server) updateTag(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var req tagReq
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	t, err := s.Catalog.UpdateTag(r.Context(), quiz.Tag{ID: id, Name: strings.TrimSpace(req.Name)})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, t)
}

func (s *server) deleteTag(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	if err := s.Catalog.DeleteTag(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- questions ----

type questionReq struct {
	Text        string  `json:"text" validate:"required,max=255"`
	Description string  `json:"description"`
	Tags        []int64 `json:"tags"`
}

type questionView struct {
	quiz.Question
	Answers          []int64 `json:"answers"`
	IsMultipleChoice bool    `json:"is_multiple_choice"`
}

func (s *server) questionView(r *http.Request, q quiz.Question) (questionView, error) {
	answers, err := s.Catalog.ListAnswersForQuestion(r.Context(), q.ID)
	if err != nil {
		return questionView{}, err
	}
	v := questionView{Question: q, Answers: make([]int64, 0, len(answers)), IsMultipleChoice: quiz.IsMultipleChoice(answers)}
	for _, a := range answers {
		v.Answers = append(v.Answers, a.ID)
	}
	return v, nil
}

func (s *server) listQuestions(w http.ResponseWriter, r *http.Request) {
	n, opts := s.listOpts(r)
	list, total, err := s.Catalog.ListQuestions(r.Context(), opts)
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := make([]questionView, 0, len(list))
	for _, q := range list {
		v, err := s.questionView(r, q)
		if err != nil {
			respondError(w, r, err)
			return
		}
		out = append(out, v)
	}
	respond(w, http.StatusOK, newPage(r, n, opts.Limit, total, out))
}

func (s *server) getQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	q, err := s.Catalog.GetQuestion(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	v, err := s.questionView(r, q)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, v)
}

func (s *server) createQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionReq
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	q, err := s.Catalog.CreateQuestion(r.Context(), quiz.Question{
		CreatorID:   creator(r),
		Text:        req.Text,
		Description: req.Description,
		TagIDs:      req.Tags,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	v, err := s.questionView(r, q)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, v)
}

func (s *server) updateQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	cur, err := s.Catalog.GetQuestion(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !s.canModify(w, r, cur.CreatorID) {
		return
	}
	var req questionReq
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	cur.Text, cur.Description, cur.TagIDs = req.Text, req.Description, req.Tags
	q, err := s.Catalog.UpdateQuestion(r.Context(), cur)
	if err != nil {
		respondError(w, r, err)
		return
	}
	v, err := s.questionView(r, q)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, v)
}

func (s *server) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	cur, err := s.Catalog.GetQuestion(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !s.canModify(w, r, cur.CreatorID) {
		return
	}
	if err := s.Catalog.DeleteQuestion(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- answers ----

type answerReq struct {
	Question  int64  `json:"question" validate:"required"`
	Text      string `json:"text" validate:"required,max=255"`
	IsCorrect bool   `json:"is_correct_answer"`
}

func (s *server) listAnswers(w http.ResponseWriter, r *http.Request) {
	n, opts := s.listOpts(r)
	list, total, err := s.Catalog.ListAnswers(r.Context(), opts)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, newPage(r, n, opts.Limit, total, list))
}

func (s *server) getAnswer(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	a, err := s.Catalog.GetAnswer(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, a)
}

func (s *server) createAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerReq
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	a, err := s.Catalog.CreateAnswer(r.Context(), quiz.Answer{
		CreatorID:  creator(r),
		QuestionID: req.Question,
		Text:       req.Text,
		IsCorrect:  req.IsCorrect,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, a)
}

func (s *server) updateAnswer(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	cur, err := s.Catalog.GetAnswer(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !s.canModify(w, r, cur.CreatorID) {
		return
	}
	var req answerReq
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	cur.QuestionID, cur.Text, cur.IsCorrect = req.Question, req.Text, req.IsCorrect
	a, err := s.Catalog.UpdateAnswer(r.Context(), cur)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, a)
}

func (s *server) deleteAnswer(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	cur, err := s.Catalog.GetAnswer(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !s.canModify(w, r, cur.CreatorID) {
		return
	}
	if err := s.Catalog.DeleteAnswer(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- quizzes ----

type quizReq struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Description string  `json:"description"`
	Questions   []int64 `json:"questions"`
}

func (s *server) listQuizzes(w http.ResponseWriter, r *http.Request) {
	n, opts := s.listOpts(r)
	list, total, err := s.Catalog.ListQuizzes(r.Context(), opts)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, newPage(r, n, opts.Limit, total, list))
}

func (s *server) getQuiz(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	q, err := s.Catalog.GetQuiz(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, q)
}

func (s *server) createQuiz(w http.ResponseWriter, r *http.Request) {
	var req quizReq
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	q, err := s.Catalog.CreateQuiz(r.Context(), quiz.Quiz{
		CreatorID:   creator(r),
		Name:        req.Name,
		Description: req.Description,
		QuestionIDs: req.Questions,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, q)
}

func (s *server) updateQuiz(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	cur, err := s.Catalog.GetQuiz(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !s.canModify(w, r, cur.CreatorID) {
		return
	}
	var req quizReq
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	cur.Name, cur.Description, cur.QuestionIDs = req.Name, req.Description, req.Questions
	q, err := s.Catalog.UpdateQuiz(r.Context(), cur)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, q)
}

func (s *server) deleteQuiz(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	cur, err := s.Catalog.GetQuiz(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !s.canModify(w, r, cur.CreatorID) {
		return
	}
	if err := s.Catalog.DeleteQuiz(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
