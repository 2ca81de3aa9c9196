package quiz

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
)

// Engine drives quiz attempts: creation, ordering, response recording,
// progression and scoring. All state lives in the Store.
type Engine struct {
	store   Store
	newSeed func() int64
	events  EventSink
}

const (
	EventAttemptStarted   = "attempt.started"
	EventAttemptCompleted = "attempt.completed"
)

// EventSink receives attempt lifecycle events once they have committed.
type EventSink interface {
	AttemptEvent(ctx context.Context, typ string, a Attempt)
}

type Option func(*Engine)

// WithSeedSource replaces the generator used for new attempt seeds.
func WithSeedSource(f func() int64) Option { return func(e *Engine) { e.newSeed = f } }

func WithEvents(s EventSink) Option { return func(e *Engine) { e.events = s } }

func (e *Engine) emit(ctx context.Context, typ string, a Attempt) {
	if e.events != nil {
		e.events.AttemptEvent(ctx, typ, a)
	}
}

func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		newSeed: func() int64 { return rand.Int64N(MaxSeed + 1) },
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// GetOrCreateAttempt returns the in-progress attempt of sessionKey on quizID,
// creating and persisting a new one (with its first active question) if
// there is none.
func (e *Engine) GetOrCreateAttempt(ctx context.Context, quizID int64, sessionKey string) (Attempt, bool, error) {
	if sessionKey == "" {
		return Attempt{}, false, NewValidationError("session", "session key is required")
	}
	var (
		a       Attempt
		created bool
	)
	err := e.atomically(ctx, func(s Store) error {
		if _, err := s.GetQuiz(ctx, quizID); err != nil {
			return err
		}
		var err error
		a, created, err = s.FindOrCreateInProgressAttempt(ctx, quizID, sessionKey, e.newSeed())
		if err != nil || !created {
			return err
		}
		qs, err := s.ListQuestionsForQuiz(ctx, quizID)
		if err != nil {
			return err
		}
		order := OrderQuestions(questionIDs(qs), a.Seed)
		if len(order) == 0 {
			// nothing to answer
			a.State = StateComplete
			a.ActiveQuestion = nil
		} else {
			first := order[0]
			a.ActiveQuestion = &first
		}
		return s.UpdateAttempt(ctx, a)
	})
	if err != nil {
		return Attempt{}, false, err
	}
	if created {
		e.emit(ctx, EventAttemptStarted, a)
		if a.State == StateComplete {
			e.emit(ctx, EventAttemptCompleted, a)
		}
	}
	return a, created, nil
}

// InProgress returns the session's in-progress attempt on quizID without
// creating one. A session with nothing in progress has nothing to submit to,
// so that case is an ErrInvalidStateTransition.
func (e *Engine) InProgress(ctx context.Context, quizID int64, sessionKey string) (Attempt, error) {
	if sessionKey == "" {
		return Attempt{}, NewValidationError("session", "session key is required")
	}
	if _, err := e.store.GetQuiz(ctx, quizID); err != nil {
		return Attempt{}, err
	}
	a, err := e.store.FindInProgressAttempt(ctx, quizID, sessionKey)
	if errors.Is(err, ErrNotFound) {
		return Attempt{}, fmt.Errorf("no attempt in progress on quiz %d: %w", quizID, ErrInvalidStateTransition)
	}
	return a, err
}

// QuestionOrder lists the attempt's quiz questions and shuffles them with the
// attempt seed.
func (e *Engine) QuestionOrder(ctx context.Context, a Attempt) ([]int64, error) {
	qs, err := e.store.ListQuestionsForQuiz(ctx, a.QuizID)
	if err != nil {
		return nil, err
	}
	return OrderQuestions(questionIDs(qs), a.Seed), nil
}

// ResolveCurrentQuestion picks the question to present. A fresh attempt, or
// one with no responses yet, starts at the head of the order; otherwise the
// persisted active question is still pending.
func ResolveCurrentQuestion(a Attempt, created bool, responseCount int, order []int64) (int64, bool) {
	if a.State == StateComplete {
		return 0, false
	}
	if created || responseCount == 0 {
		if len(order) == 0 {
			return 0, false
		}
		return order[0], true
	}
	if a.ActiveQuestion == nil {
		return 0, false
	}
	return *a.ActiveQuestion, true
}

// pendingQuestion is ResolveCurrentQuestion checked against the current quiz:
// when the resolved question has left the order or was already answered, the
// first unanswered question in order is pending instead. It reports false
// when nothing is left to answer.
func pendingQuestion(a Attempt, created bool, responses []Response, order []int64) (int64, bool) {
	if a.State == StateComplete {
		return 0, false
	}
	answered := make(map[int64]bool, len(responses))
	for _, r := range responses {
		answered[r.QuestionID] = true
	}
	if qid, ok := ResolveCurrentQuestion(a, created, len(responses), order); ok && indexOf(order, qid) >= 0 && !answered[qid] {
		return qid, true
	}
	for _, id := range order {
		if !answered[id] {
			return id, true
		}
	}
	return 0, false
}

// syncActive makes the persisted active question agree with the pending one,
// completing the attempt when nothing is left. The decision is recomputed
// under the attempt lock so a concurrent submission is never overwritten.
func (e *Engine) syncActive(ctx context.Context, a Attempt, created bool, order []int64) (Attempt, error) {
	var completed bool
	err := e.atomically(ctx, func(s Store) error {
		cur, err := s.GetAttemptForUpdate(ctx, a.ID)
		if err != nil {
			return err
		}
		if cur.State != StateInProgress {
			a = cur
			return nil
		}
		responses, err := s.ListResponsesForAttempt(ctx, cur.ID)
		if err != nil {
			return err
		}
		qid, ok := pendingQuestion(cur, created, responses, order)
		switch {
		case !ok:
			cur.State = StateComplete
			cur.ActiveQuestion = nil
			completed = true
		case cur.ActiveQuestion != nil && *cur.ActiveQuestion == qid:
			a = cur
			return nil
		default:
			cur.ActiveQuestion = &qid
		}
		if err := s.UpdateAttempt(ctx, cur); err != nil {
			return err
		}
		a = cur
		return nil
	})
	if err != nil {
		return Attempt{}, err
	}
	if completed {
		e.emit(ctx, EventAttemptCompleted, a)
	}
	return a, nil
}

// SubmitResponse records selected for questionID and advances the attempt.
// It reports whether the attempt is now complete.
func (e *Engine) SubmitResponse(ctx context.Context, a Attempt, questionID int64, order []int64, selected []int64) (bool, error) {
	var (
		complete bool
		final    Attempt
	)
	err := e.atomically(ctx, func(s Store) error {
		cur, err := s.GetAttemptForUpdate(ctx, a.ID)
		if err != nil {
			return err
		}
		if cur.State != StateInProgress {
			return fmt.Errorf("attempt %d is %s: %w", cur.ID, cur.State, ErrInvalidStateTransition)
		}
		if cur.ActiveQuestion == nil || *cur.ActiveQuestion != questionID {
			return fmt.Errorf("question %d is not active in attempt %d: %w", questionID, cur.ID, ErrInvalidStateTransition)
		}
		i := indexOf(order, questionID)
		if i < 0 {
			return fmt.Errorf("question %d is not part of the attempt order: %w", questionID, ErrInvalidStateTransition)
		}

		answers, err := s.ListAnswersForQuestion(ctx, questionID)
		if err != nil {
			return err
		}
		ids, err := NormalizeSelection(ModeFor(answers), answers, selected)
		if err != nil {
			return err
		}

		resp, err := s.CreateResponse(ctx, cur.ID, questionID)
		if err != nil {
			return err
		}
		if err := s.CreateResponseAnswerLinks(ctx, resp.ID, ids); err != nil {
			return err
		}

		if next := i + 1; next >= len(order) {
			cur.ActiveQuestion = nil
			cur.State = StateComplete
		} else {
			n := order[next]
			cur.ActiveQuestion = &n
		}
		if err := s.UpdateAttempt(ctx, cur); err != nil {
			return err
		}
		complete = cur.State == StateComplete
		final = cur
		return nil
	})
	if err == nil && complete {
		e.emit(ctx, EventAttemptCompleted, final)
	}
	return complete, err
}

// Score counts correct responses to questions that belong to the quiz.
func (e *Engine) Score(ctx context.Context, a Attempt) (int, error) {
	r, err := e.Results(ctx, a)
	if err != nil {
		return 0, err
	}
	return r.Score, nil
}

// MaxScore is the number of questions in the attempt's quiz.
func (e *Engine) MaxScore(ctx context.Context, a Attempt) (int, error) {
	qs, err := e.store.ListQuestionsForQuiz(ctx, a.QuizID)
	if err != nil {
		return 0, err
	}
	return len(qs), nil
}

type ResultItem struct {
	QuestionID int64   `json:"question"`
	Text       string  `json:"text"`
	Selected   []int64 `json:"selected"`
	Correct    []int64 `json:"correct"`
	IsCorrect  bool    `json:"is_correct"`
}

type Result struct {
	Attempt  Attempt      `json:"attempt"`
	Score    int          `json:"score"`
	MaxScore int          `json:"max_score"`
	Items    []ResultItem `json:"items"`
}

// Results grades every recorded response of the attempt.
func (e *Engine) Results(ctx context.Context, a Attempt) (Result, error) {
	qs, err := e.store.ListQuestionsForQuiz(ctx, a.QuizID)
	if err != nil {
		return Result{}, err
	}
	byID := make(map[int64]Question, len(qs))
	for _, q := range qs {
		byID[q.ID] = q
	}
	responses, err := e.store.ListResponsesForAttempt(ctx, a.ID)
	if err != nil {
		return Result{}, err
	}
	out := Result{Attempt: a, MaxScore: len(qs), Items: make([]ResultItem, 0, len(responses))}
	for _, r := range responses {
		q, ok := byID[r.QuestionID]
		if !ok {
			continue
		}
		answers, err := e.store.ListAnswersForQuestion(ctx, r.QuestionID)
		if err != nil {
			return Result{}, err
		}
		item := ResultItem{
			QuestionID: q.ID,
			Text:       q.Text,
			Selected:   r.AnswerIDs,
			Correct:    correctIDs(answers),
			IsCorrect:  IsResponseCorrect(r.AnswerIDs, answers),
		}
		if item.IsCorrect {
			out.Score++
		}
		out.Items = append(out.Items, item)
	}
	return out, nil
}

func correctIDs(answers []Answer) []int64 {
	out := []int64{}
	for _, a := range answers {
		if a.IsCorrect {
			out = append(out, a.ID)
		}
	}
	return out
}

// atomically runs fn in a transaction, retrying once on a transient failure.
func (e *Engine) atomically(ctx context.Context, fn func(Store) error) error {
	err := e.store.RunAtomically(ctx, fn)
	if errors.Is(err, ErrTransactionFailure) {
		err = e.store.RunAtomically(ctx, fn)
	}
	return err
}
