package quiz_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mind-engage/testme/internal/quiz"
)

// memoryStore is an in-process quiz.Store.
// RunAtomically serialises transactions and restores a snapshot when fn fails.
type memoryStore struct {
	txMu sync.Mutex

	mu        sync.RWMutex
	quizzes   map[int64]quiz.Quiz
	questions map[int64]quiz.Question
	answers   map[int64]quiz.Answer
	attempts  map[int64]quiz.Attempt
	responses map[int64]quiz.Response
	seq       int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		quizzes:   map[int64]quiz.Quiz{},
		questions: map[int64]quiz.Question{},
		answers:   map[int64]quiz.Answer{},
		attempts:  map[int64]quiz.Attempt{},
		responses: map[int64]quiz.Response{},
	}
}

// PutQuiz stores q, assigning an id when it has none.
func (m *memoryStore) PutQuiz(q quiz.Quiz) quiz.Quiz {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q.ID == 0 {
		q.ID = m.next()
	}
	q.QuestionIDs = append([]int64(nil), q.QuestionIDs...)
	m.quizzes[q.ID] = q
	return q
}

// PutQuestion stores q and its answers, assigning ids where missing.
func (m *memoryStore) PutQuestion(q quiz.Question, answers ...quiz.Answer) (quiz.Question, []quiz.Answer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q.ID == 0 {
		q.ID = m.next()
	}
	m.questions[q.ID] = q
	out := make([]quiz.Answer, 0, len(answers))
	for _, a := range answers {
		if a.ID == 0 {
			a.ID = m.next()
		}
		a.QuestionID = q.ID
		m.answers[a.ID] = a
		out = append(out, a)
	}
	return q, out
}

func (m *memoryStore) next() int64 {
	m.seq++
	return m.seq
}

func notFound(kind string, id int64) error {
	return fmt.Errorf("%s %d: %w", kind, id, quiz.ErrNotFound)
}

func (m *memoryStore) GetQuiz(_ context.Context, id int64) (quiz.Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quizzes[id]
	if !ok {
		return quiz.Quiz{}, notFound("quiz", id)
	}
	return q, nil
}

func (m *memoryStore) FindOrCreateInProgressAttempt(_ context.Context, quizID int64, sessionKey string, seed int64) (quiz.Attempt, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.inProgress(quizID, sessionKey); ok {
		return a, false, nil
	}
	now := time.Now().Unix()
	a := quiz.Attempt{
		ID:         m.next(),
		SessionKey: sessionKey,
		QuizID:     quizID,
		Seed:       seed,
		State:      quiz.StateInProgress,
		CreatedOn:  now,
		UpdatedOn:  now,
	}
	m.attempts[a.ID] = a
	return a, true, nil
}

func (m *memoryStore) FindInProgressAttempt(_ context.Context, quizID int64, sessionKey string) (quiz.Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.inProgress(quizID, sessionKey)
	if !ok {
		return quiz.Attempt{}, fmt.Errorf("in-progress attempt for quiz %d: %w", quizID, quiz.ErrNotFound)
	}
	return a, nil
}

func (m *memoryStore) inProgress(quizID int64, sessionKey string) (quiz.Attempt, bool) {
	for _, a := range m.attempts {
		if a.QuizID == quizID && a.SessionKey == sessionKey && a.State == quiz.StateInProgress {
			return a, true
		}
	}
	return quiz.Attempt{}, false
}

func (m *memoryStore) GetAttempt(_ context.Context, id int64) (quiz.Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return quiz.Attempt{}, notFound("attempt", id)
	}
	return a, nil
}

func (m *memoryStore) LatestAttempt(_ context.Context, quizID int64, sessionKey string) (quiz.Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var (
		best  quiz.Attempt
		found bool
	)
	for _, a := range m.attempts {
		if a.QuizID == quizID && a.SessionKey == sessionKey && (!found || a.ID > best.ID) {
			best, found = a, true
		}
	}
	if !found {
		return quiz.Attempt{}, fmt.Errorf("attempt for quiz %d: %w", quizID, quiz.ErrNotFound)
	}
	return best, nil
}

// GetAttemptForUpdate needs no lock beyond txMu.
func (m *memoryStore) GetAttemptForUpdate(ctx context.Context, id int64) (quiz.Attempt, error) {
	return m.GetAttempt(ctx, id)
}

func (m *memoryStore) ListQuestionsForQuiz(_ context.Context, quizID int64) ([]quiz.Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	qz, ok := m.quizzes[quizID]
	if !ok {
		return nil, notFound("quiz", quizID)
	}
	out := make([]quiz.Question, 0, len(qz.QuestionIDs))
	for _, id := range qz.QuestionIDs {
		if q, ok := m.questions[id]; ok {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) ListAnswersForQuestion(_ context.Context, questionID int64) ([]quiz.Answer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.questions[questionID]; !ok {
		return nil, notFound("question", questionID)
	}
	out := []quiz.Answer{}
	for _, a := range m.answers {
		if a.QuestionID == questionID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) CreateResponse(_ context.Context, attemptID, questionID int64) (quiz.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.responses {
		if r.AttemptID == attemptID && r.QuestionID == questionID {
			return quiz.Response{}, fmt.Errorf("response for attempt %d question %d: %w", attemptID, questionID, quiz.ErrConflict)
		}
	}
	r := quiz.Response{ID: m.next(), AttemptID: attemptID, QuestionID: questionID, CreatedOn: time.Now().Unix()}
	m.responses[r.ID] = r
	return r, nil
}

func (m *memoryStore) CreateResponseAnswerLinks(_ context.Context, responseID int64, answerIDs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.responses[responseID]
	if !ok {
		return notFound("response", responseID)
	}
	for _, id := range answerIDs {
		for _, have := range r.AnswerIDs {
			if have == id {
				return fmt.Errorf("answer %d already linked to response %d: %w", id, responseID, quiz.ErrConflict)
			}
		}
		r.AnswerIDs = append(r.AnswerIDs, id)
		if a, ok := m.answers[id]; ok {
			a.Votes++
			m.answers[id] = a
		}
	}
	m.responses[responseID] = r
	return nil
}

func (m *memoryStore) UpdateAttempt(_ context.Context, a quiz.Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.attempts[a.ID]; !ok {
		return notFound("attempt", a.ID)
	}
	a.UpdatedOn = time.Now().Unix()
	m.attempts[a.ID] = a
	return nil
}

func (m *memoryStore) ListResponsesForAttempt(_ context.Context, attemptID int64) ([]quiz.Response, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []quiz.Response{}
	for _, r := range m.responses {
		if r.AttemptID == attemptID {
			r.AnswerIDs = append([]int64(nil), r.AnswerIDs...)
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) RunAtomically(ctx context.Context, fn func(quiz.Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	snap := m.snapshot()
	if err := fn(memTx{m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

// memTx is the quiz.Store handed to RunAtomically callbacks; nested calls join
// the running transaction.
type memTx struct{ *memoryStore }

func (t memTx) RunAtomically(_ context.Context, fn func(quiz.Store) error) error { return fn(t) }

type memSnapshot struct {
	answers   map[int64]quiz.Answer
	attempts  map[int64]quiz.Attempt
	responses map[int64]quiz.Response
	seq       int64
}

func (m *memoryStore) snapshot() memSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := memSnapshot{
		answers:   make(map[int64]quiz.Answer, len(m.answers)),
		attempts:  make(map[int64]quiz.Attempt, len(m.attempts)),
		responses: make(map[int64]quiz.Response, len(m.responses)),
		seq:       m.seq,
	}
	for k, v := range m.answers {
		s.answers[k] = v
	}
	for k, v := range m.attempts {
		s.attempts[k] = v
	}
	for k, v := range m.responses {
		v.AnswerIDs = append([]int64(nil), v.AnswerIDs...)
		s.responses[k] = v
	}
	return s
}

func (m *memoryStore) restore(s memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers = s.answers
	m.attempts = s.attempts
	m.responses = s.responses
	m.seq = s.seq
}
