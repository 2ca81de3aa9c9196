package quiz

import "context"

// Step is what a controller renders for a quiz visit: either the pending
// question of the session's attempt, or Done when nothing is left to answer.
type Step struct {
	Attempt  Attempt
	Created  bool
	Order    []int64
	Question Question
	Answers  []Answer
	Mode     ChoiceMode
	Position int
	Total    int
	Done     bool
}

// Current resumes (or starts) the session's attempt on quizID and resolves
// its pending question. The persisted active question is brought in line
// with what is presented, so the question shown is always the one
// SubmitResponse accepts.
func (e *Engine) Current(ctx context.Context, quizID int64, sessionKey string) (Step, error) {
	a, created, err := e.GetOrCreateAttempt(ctx, quizID, sessionKey)
	if err != nil {
		return Step{}, err
	}
	qs, err := e.store.ListQuestionsForQuiz(ctx, quizID)
	if err != nil {
		return Step{}, err
	}
	order := OrderQuestions(questionIDs(qs), a.Seed)
	responses, err := e.store.ListResponsesForAttempt(ctx, a.ID)
	if err != nil {
		return Step{}, err
	}

	qid, ok := pendingQuestion(a, created, responses, order)
	if a.State == StateInProgress && (!ok || a.ActiveQuestion == nil || *a.ActiveQuestion != qid) {
		// the quiz changed under the attempt
		if a, err = e.syncActive(ctx, a, created, order); err != nil {
			return Step{}, err
		}
		if a.ActiveQuestion == nil {
			qid, ok = 0, false
		} else {
			qid, ok = *a.ActiveQuestion, true
		}
	}

	st := Step{Attempt: a, Created: created, Order: order, Total: len(order)}
	if !ok {
		st.Done = true
		return st, nil
	}
	for _, q := range qs {
		if q.ID == qid {
			st.Question = q
			break
		}
	}
	if st.Question.ID == 0 {
		return Step{}, notFound("question", qid)
	}
	if st.Answers, err = e.store.ListAnswersForQuestion(ctx, qid); err != nil {
		return Step{}, err
	}
	st.Mode = ModeFor(st.Answers)
	st.Position = indexOf(order, qid) + 1
	return st, nil
}

// Latest returns the session's most recent attempt on quizID.
func (e *Engine) Latest(ctx context.Context, quizID int64, sessionKey string) (Attempt, error) {
	if _, err := e.store.GetQuiz(ctx, quizID); err != nil {
		return Attempt{}, err
	}
	return e.store.LatestAttempt(ctx, quizID, sessionKey)
}
