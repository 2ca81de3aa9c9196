package quiz_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/mind-engage/testme/internal/quiz"
)

/* ---------------- fixture: Q1 (A1 ok, A2) and Q2 (A3 ok, A4 ok, A5) ---------------- */

type fixture struct {
	store      *memoryStore
	quiz       quiz.Quiz
	q1, q2     quiz.Question
	a1, a2     quiz.Answer
	a3, a4, a5 quiz.Answer
}

func newFixture() *fixture {
	m := newMemoryStore()
	q1, as1 := m.PutQuestion(quiz.Question{Text: "Q1"},
		quiz.Answer{Text: "A1", IsCorrect: true},
		quiz.Answer{Text: "A2"},
	)
	q2, as2 := m.PutQuestion(quiz.Question{Text: "Q2"},
		quiz.Answer{Text: "A3", IsCorrect: true},
		quiz.Answer{Text: "A4", IsCorrect: true},
		quiz.Answer{Text: "A5"},
	)
	qz := m.PutQuiz(quiz.Quiz{Name: "scenario", QuestionIDs: []int64{q1.ID, q2.ID}})
	return &fixture{
		store: m, quiz: qz, q1: q1, q2: q2,
		a1: as1[0], a2: as1[1],
		a3: as2[0], a4: as2[1], a5: as2[2],
	}
}

// engine returns an engine whose attempts are ordered [Q1, Q2].
func (f *fixture) engine(t *testing.T, opts ...quiz.Option) *quiz.Engine {
	t.Helper()
	seed := seedFor(t, []int64{f.q1.ID, f.q2.ID}, []int64{f.q1.ID, f.q2.ID})
	opts = append([]quiz.Option{quiz.WithSeedSource(func() int64 { return seed })}, opts...)
	return quiz.NewEngine(f.store, opts...)
}

func start(t *testing.T, e *quiz.Engine, quizID int64, session string) (quiz.Attempt, []int64) {
	t.Helper()
	ctx := context.Background()
	a, _, err := e.GetOrCreateAttempt(ctx, quizID, session)
	if err != nil {
		t.Fatalf("GetOrCreateAttempt: %v", err)
	}
	order, err := e.QuestionOrder(ctx, a)
	if err != nil {
		t.Fatalf("QuestionOrder: %v", err)
	}
	return a, order
}

func reload(t *testing.T, s quiz.Store, id int64) quiz.Attempt {
	t.Helper()
	a, err := s.GetAttempt(context.Background(), id)
	if err != nil {
		t.Fatalf("GetAttempt: %v", err)
	}
	return a
}

func scores(t *testing.T, e *quiz.Engine, a quiz.Attempt) (int, int) {
	t.Helper()
	s, err := e.Score(context.Background(), a)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	m, err := e.MaxScore(context.Background(), a)
	if err != nil {
		t.Fatalf("MaxScore: %v", err)
	}
	return s, m
}

/* ---------------- tests ---------------- */

func TestGetOrCreateAttempt(t *testing.T) {
	f := newFixture()
	e := f.engine(t)
	ctx := context.Background()

	a, created, err := e.GetOrCreateAttempt(ctx, f.quiz.ID, "s1")
	if err != nil || !created {
		t.Fatalf("first call: created=%v err=%v", created, err)
	}
	if a.State != quiz.StateInProgress || a.ActiveQuestion == nil || *a.ActiveQuestion != f.q1.ID {
		t.Fatalf("unexpected attempt %+v", a)
	}
	if got := reload(t, f.store, a.ID); got.ActiveQuestion == nil || *got.ActiveQuestion != f.q1.ID {
		t.Fatalf("active question not persisted: %+v", got)
	}

	again, created, err := e.GetOrCreateAttempt(ctx, f.quiz.ID, "s1")
	if err != nil || created || again.ID != a.ID {
		t.Fatalf("second call: id=%d created=%v err=%v", again.ID, created, err)
	}

	other, created, err := e.GetOrCreateAttempt(ctx, f.quiz.ID, "s2")
	if err != nil || !created || other.ID == a.ID {
		t.Fatalf("other session: id=%d created=%v err=%v", other.ID, created, err)
	}
}

func TestGetOrCreateAttemptErrors(t *testing.T) {
	f := newFixture()
	e := quiz.NewEngine(f.store)
	ctx := context.Background()

	if _, _, err := e.GetOrCreateAttempt(ctx, 9999, "s"); !errors.Is(err, quiz.ErrNotFound) {
		t.Fatalf("unknown quiz: want ErrNotFound, got %v", err)
	}
	if _, _, err := e.GetOrCreateAttempt(ctx, f.quiz.ID, ""); !errors.Is(err, quiz.ErrValidation) {
		t.Fatalf("empty session: want ErrValidation, got %v", err)
	}
}

func TestSeedRange(t *testing.T) {
	f := newFixture()
	e := quiz.NewEngine(f.store)
	for i := 0; i < 20; i++ {
		a, _, err := e.GetOrCreateAttempt(context.Background(), f.quiz.ID, string(rune('a'+i)))
		if err != nil {
			t.Fatal(err)
		}
		if a.Seed < 0 || a.Seed > quiz.MaxSeed {
			t.Fatalf("seed %d out of range", a.Seed)
		}
	}
}

func TestEmptyQuizCompletesImmediately(t *testing.T) {
	m := newMemoryStore()
	qz := m.PutQuiz(quiz.Quiz{Name: "empty"})
	e := quiz.NewEngine(m)

	st, err := e.Current(context.Background(), qz.ID, "s")
	if err != nil {
		t.Fatal(err)
	}
	if !st.Done || st.Attempt.State != quiz.StateComplete || st.Attempt.ActiveQuestion != nil {
		t.Fatalf("want completed attempt, got %+v", st)
	}
	s, max := scores(t, e, st.Attempt)
	if s != 0 || max != 0 {
		t.Fatalf("score %d/%d", s, max)
	}
}

func TestResolveCurrentQuestion(t *testing.T) {
	order := []int64{5, 3, 9}
	active := int64(3)
	a := quiz.Attempt{State: quiz.StateInProgress, ActiveQuestion: &active}

	if got, ok := quiz.ResolveCurrentQuestion(a, true, 0, order); !ok || got != 5 {
		t.Fatalf("created: got %d %v", got, ok)
	}
	if got, ok := quiz.ResolveCurrentQuestion(a, false, 0, order); !ok || got != 5 {
		t.Fatalf("no responses: got %d %v", got, ok)
	}
	if got, ok := quiz.ResolveCurrentQuestion(a, false, 1, order); !ok || got != 3 {
		t.Fatalf("resumed: got %d %v", got, ok)
	}
	done := quiz.Attempt{State: quiz.StateComplete}
	if _, ok := quiz.ResolveCurrentQuestion(done, false, 3, order); ok {
		t.Fatal("complete attempt has no current question")
	}
}

func TestScenarioAllCorrect(t *testing.T) {
	f := newFixture()
	e := f.engine(t)
	ctx := context.Background()
	a, order := start(t, e, f.quiz.ID, "s")
	if !slices.Equal(order, []int64{f.q1.ID, f.q2.ID}) {
		t.Fatalf("order %v", order)
	}

	complete, err := e.SubmitResponse(ctx, a, f.q1.ID, order, []int64{f.a1.ID})
	if err != nil || complete {
		t.Fatalf("Q1: complete=%v err=%v", complete, err)
	}
	a = reload(t, f.store, a.ID)
	if a.State != quiz.StateInProgress || a.ActiveQuestion == nil || *a.ActiveQuestion != f.q2.ID {
		t.Fatalf("after Q1: %+v", a)
	}

	complete, err = e.SubmitResponse(ctx, a, f.q2.ID, order, []int64{f.a4.ID, f.a3.ID})
	if err != nil || !complete {
		t.Fatalf("Q2: complete=%v err=%v", complete, err)
	}
	a = reload(t, f.store, a.ID)
	if a.State != quiz.StateComplete || a.ActiveQuestion != nil {
		t.Fatalf("after Q2: %+v", a)
	}
	if s, m := scores(t, e, a); s != 2 || m != 2 {
		t.Fatalf("score %d/%d, want 2/2", s, m)
	}
}

func TestScenarioWrongAnswerStillAdvances(t *testing.T) {
	f := newFixture()
	e := f.engine(t)
	ctx := context.Background()
	a, order := start(t, e, f.quiz.ID, "s")

	if _, err := e.SubmitResponse(ctx, a, f.q1.ID, order, []int64{f.a2.ID}); err != nil {
		t.Fatal(err)
	}
	if a = reload(t, f.store, a.ID); *a.ActiveQuestion != f.q2.ID {
		t.Fatalf("did not advance: %+v", a)
	}
	if _, err := e.SubmitResponse(ctx, a, f.q2.ID, order, []int64{f.a3.ID, f.a4.ID}); err != nil {
		t.Fatal(err)
	}
	if s, m := scores(t, e, a); s != 1 || m != 2 {
		t.Fatalf("score %d/%d, want 1/2", s, m)
	}

	res, err := e.Results(ctx, reload(t, f.store, a.ID))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Items) != 2 || res.Items[0].IsCorrect || !res.Items[1].IsCorrect {
		t.Fatalf("results %+v", res.Items)
	}
}

func TestScenarioAbandoned(t *testing.T) {
	for _, tc := range []struct {
		name   string
		answer func(f *fixture) int64
		want   int
	}{
		{"correct", func(f *fixture) int64 { return f.a1.ID }, 1},
		{"incorrect", func(f *fixture) int64 { return f.a2.ID }, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			e := f.engine(t)
			a, order := start(t, e, f.quiz.ID, "s")
			if _, err := e.SubmitResponse(context.Background(), a, f.q1.ID, order, []int64{tc.answer(f)}); err != nil {
				t.Fatal(err)
			}
			a = reload(t, f.store, a.ID)
			if a.State != quiz.StateInProgress {
				t.Fatalf("state %s", a.State)
			}
			if s, m := scores(t, e, a); s != tc.want || m != 2 {
				t.Fatalf("score %d/%d, want %d/2", s, m, tc.want)
			}
		})
	}
}

func TestSubmitRejectsNonActiveAndComplete(t *testing.T) {
	f := newFixture()
	e := f.engine(t)
	ctx := context.Background()
	a, order := start(t, e, f.quiz.ID, "s")

	if _, err := e.SubmitResponse(ctx, a, f.q2.ID, order, []int64{f.a3.ID}); !errors.Is(err, quiz.ErrInvalidStateTransition) {
		t.Fatalf("non-active question: got %v", err)
	}
	if _, err := e.SubmitResponse(ctx, a, f.q1.ID, order, []int64{f.a1.ID}); err != nil {
		t.Fatal(err)
	}
	// duplicate submission for Q1 after it advanced
	if _, err := e.SubmitResponse(ctx, a, f.q1.ID, order, []int64{f.a1.ID}); !errors.Is(err, quiz.ErrInvalidStateTransition) {
		t.Fatalf("duplicate: got %v", err)
	}
	if _, err := e.SubmitResponse(ctx, a, f.q2.ID, order, []int64{f.a3.ID, f.a4.ID}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.SubmitResponse(ctx, a, f.q2.ID, order, []int64{f.a3.ID}); !errors.Is(err, quiz.ErrInvalidStateTransition) {
		t.Fatalf("complete attempt: got %v", err)
	}

	rs, err := f.store.ListResponsesForAttempt(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rs) != 2 {
		t.Fatalf("want 2 responses, got %d", len(rs))
	}
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture()
	e := f.engine(t)
	ctx := context.Background()
	a, order := start(t, e, f.quiz.ID, "s")

	for name, sel := range map[string][]int64{
		"empty":          nil,
		"other question": {f.a3.ID},
		"two for single": {f.a1.ID, f.a2.ID},
	} {
		if _, err := e.SubmitResponse(ctx, a, f.q1.ID, order, sel); !errors.Is(err, quiz.ErrValidation) {
			t.Errorf("%s: want ErrValidation, got %v", name, err)
		}
	}
	if got := reload(t, f.store, a.ID); *got.ActiveQuestion != f.q1.ID {
		t.Fatalf("validation failure advanced the attempt: %+v", got)
	}
	if rs, _ := f.store.ListResponsesForAttempt(ctx, a.ID); len(rs) != 0 {
		t.Fatalf("validation failure left %d responses", len(rs))
	}
}

func TestSubmitVotesOncePerSelection(t *testing.T) {
	f := newFixture()
	e := f.engine(t)
	ctx := context.Background()
	a, order := start(t, e, f.quiz.ID, "s")
	if _, err := e.SubmitResponse(ctx, a, f.q1.ID, order, []int64{f.a1.ID, f.a1.ID}); err != nil {
		t.Fatal(err)
	}
	as, err := f.store.ListAnswersForQuestion(ctx, f.q1.ID)
	if err != nil {
		t.Fatal(err)
	}
	if as[0].Votes != 1 || as[1].Votes != 0 {
		t.Fatalf("votes %d/%d", as[0].Votes, as[1].Votes)
	}
}

func TestConcurrentDuplicateSubmission(t *testing.T) {
	f := newFixture()
	e := f.engine(t)
	a, order := start(t, e, f.quiz.ID, "s")

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.SubmitResponse(context.Background(), a, f.q1.ID, order, []int64{f.a1.ID})
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case !errors.Is(err, quiz.ErrInvalidStateTransition):
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("want exactly one accepted submission, got %d", ok)
	}
	rs, _ := f.store.ListResponsesForAttempt(context.Background(), a.ID)
	if len(rs) != 1 {
		t.Fatalf("want 1 response, got %d", len(rs))
	}
}

/* ---------------- failure injection ---------------- */

// flakyStore fails the first n RunAtomically calls with a transaction failure,
// and can fail UpdateAttempt inside the transaction.
type flakyStore struct {
	*memoryStore
	txFailures   int
	calls        int
	failUpdate   bool
	updateFailed error
}

func (s *flakyStore) RunAtomically(ctx context.Context, fn func(quiz.Store) error) error {
	s.calls++
	if s.txFailures > 0 {
		s.txFailures--
		return quiz.ErrTransactionFailure
	}
	return s.memoryStore.RunAtomically(ctx, func(tx quiz.Store) error {
		return fn(&failingTx{Store: tx, parent: s})
	})
}

type failingTx struct {
	quiz.Store
	parent *flakyStore
}

func (t *failingTx) UpdateAttempt(ctx context.Context, a quiz.Attempt) error {
	if t.parent.failUpdate {
		return t.parent.updateFailed
	}
	return t.Store.UpdateAttempt(ctx, a)
}

func TestSubmitRetriesOnceOnTransactionFailure(t *testing.T) {
	f := newFixture()
	fs := &flakyStore{memoryStore: f.store}
	seed := seedFor(t, []int64{f.q1.ID, f.q2.ID}, []int64{f.q1.ID, f.q2.ID})
	e := quiz.NewEngine(fs, quiz.WithSeedSource(func() int64 { return seed }))
	a, order := start(t, e, f.quiz.ID, "s")

	fs.txFailures, fs.calls = 1, 0
	if _, err := e.SubmitResponse(context.Background(), a, f.q1.ID, order, []int64{f.a1.ID}); err != nil {
		t.Fatalf("retry should succeed: %v", err)
	}
	if fs.calls != 2 {
		t.Fatalf("want 2 attempts, got %d", fs.calls)
	}

	fs.txFailures, fs.calls = 2, 0
	_, err := e.SubmitResponse(context.Background(), a, f.q2.ID, order, []int64{f.a3.ID, f.a4.ID})
	if !errors.Is(err, quiz.ErrTransactionFailure) {
		t.Fatalf("want ErrTransactionFailure, got %v", err)
	}
	if fs.calls != 2 {
		t.Fatalf("want 2 attempts, got %d", fs.calls)
	}
}

func TestSubmitRollsBackOnFailure(t *testing.T) {
	f := newFixture()
	fs := &flakyStore{memoryStore: f.store}
	seed := seedFor(t, []int64{f.q1.ID, f.q2.ID}, []int64{f.q1.ID, f.q2.ID})
	e := quiz.NewEngine(fs, quiz.WithSeedSource(func() int64 { return seed }))
	a, order := start(t, e, f.quiz.ID, "s")

	boom := errors.New("disk on fire")
	fs.failUpdate, fs.updateFailed = true, boom
	if _, err := e.SubmitResponse(context.Background(), a, f.q1.ID, order, []int64{f.a1.ID}); !errors.Is(err, boom) {
		t.Fatalf("want storage error propagated, got %v", err)
	}
	ctx := context.Background()
	if rs, _ := f.store.ListResponsesForAttempt(ctx, a.ID); len(rs) != 0 {
		t.Fatalf("rollback left %d responses", len(rs))
	}
	as, _ := f.store.ListAnswersForQuestion(ctx, f.q1.ID)
	if as[0].Votes != 0 {
		t.Fatalf("rollback left votes=%d", as[0].Votes)
	}
	if got := reload(t, f.store, a.ID); *got.ActiveQuestion != f.q1.ID {
		t.Fatalf("rollback left active question %d", *got.ActiveQuestion)
	}
}

/* ---------------- Current / events ---------------- */

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) AttemptEvent(_ context.Context, typ string, _ quiz.Attempt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, typ)
}

func TestCurrentWalksTheAttempt(t *testing.T) {
	f := newFixture()
	rec := &recorder{}
	e := f.engine(t, quiz.WithEvents(rec))
	ctx := context.Background()

	st, err := e.Current(ctx, f.quiz.ID, "s")
	if err != nil {
		t.Fatal(err)
	}
	if st.Done || st.Question.ID != f.q1.ID || st.Position != 1 || st.Total != 2 || st.Mode != quiz.Single {
		t.Fatalf("first step %+v", st)
	}
	if _, err := e.SubmitResponse(ctx, st.Attempt, st.Question.ID, st.Order, []int64{f.a1.ID}); err != nil {
		t.Fatal(err)
	}

	st, err = e.Current(ctx, f.quiz.ID, "s")
	if err != nil {
		t.Fatal(err)
	}
	if st.Created || st.Question.ID != f.q2.ID || st.Position != 2 || st.Mode != quiz.Multiple {
		t.Fatalf("second step %+v", st)
	}
	if _, err := e.SubmitResponse(ctx, st.Attempt, st.Question.ID, st.Order, []int64{f.a3.ID, f.a4.ID}); err != nil {
		t.Fatal(err)
	}

	latest, err := e.Latest(ctx, f.quiz.ID, "s")
	if err != nil || latest.State != quiz.StateComplete {
		t.Fatalf("latest %+v err=%v", latest, err)
	}

	// a new visit starts over
	st, err = e.Current(ctx, f.quiz.ID, "s")
	if err != nil || !st.Created || st.Attempt.ID == latest.ID {
		t.Fatalf("restart %+v err=%v", st, err)
	}

	want := []string{quiz.EventAttemptStarted, quiz.EventAttemptCompleted, quiz.EventAttemptStarted}
	if !slices.Equal(rec.events, want) {
		t.Fatalf("events %v, want %v", rec.events, want)
	}
}

func TestScoreIgnoresQuestionsRemovedFromQuiz(t *testing.T) {
	f := newFixture()
	e := f.engine(t)
	ctx := context.Background()
	a, order := start(t, e, f.quiz.ID, "s")
	if _, err := e.SubmitResponse(ctx, a, f.q1.ID, order, []int64{f.a1.ID}); err != nil {
		t.Fatal(err)
	}
	f.store.PutQuiz(quiz.Quiz{ID: f.quiz.ID, Name: f.quiz.Name, QuestionIDs: []int64{f.q2.ID}})
	s, m := scores(t, e, a)
	if s != 0 || m != 1 || s > m {
		t.Fatalf("score %d/%d", s, m)
	}
}

func TestInProgressNeverCreates(t *testing.T) {
	f := newFixture()
	e := f.engine(t)
	ctx := context.Background()

	if _, err := e.InProgress(ctx, f.quiz.ID, "s"); !errors.Is(err, quiz.ErrInvalidStateTransition) {
		t.Fatalf("before start: got %v", err)
	}
	if _, err := e.InProgress(ctx, 9999, "s"); !errors.Is(err, quiz.ErrNotFound) {
		t.Fatalf("unknown quiz: got %v", err)
	}
	a, order := start(t, e, f.quiz.ID, "s")
	got, err := e.InProgress(ctx, f.quiz.ID, "s")
	if err != nil || got.ID != a.ID {
		t.Fatalf("in progress %+v err=%v", got, err)
	}

	if _, err := e.SubmitResponse(ctx, a, f.q1.ID, order, []int64{f.a1.ID}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.SubmitResponse(ctx, a, f.q2.ID, order, []int64{f.a3.ID, f.a4.ID}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.InProgress(ctx, f.quiz.ID, "s"); !errors.Is(err, quiz.ErrInvalidStateTransition) {
		t.Fatalf("after completion: got %v", err)
	}
	latest, err := e.Latest(ctx, f.quiz.ID, "s")
	if err != nil || latest.ID != a.ID {
		t.Fatalf("a new attempt was created: %+v err=%v", latest, err)
	}
}

func TestCurrentFollowsRemovedActiveQuestion(t *testing.T) {
	f := newFixture()
	e := f.engine(t)
	ctx := context.Background()
	a, _ := start(t, e, f.quiz.ID, "s")

	// Q1 was active and leaves the quiz before anything is answered
	f.store.PutQuiz(quiz.Quiz{ID: f.quiz.ID, Name: f.quiz.Name, QuestionIDs: []int64{f.q2.ID}})
	st, err := e.Current(ctx, f.quiz.ID, "s")
	if err != nil {
		t.Fatal(err)
	}
	if st.Done || st.Question.ID != f.q2.ID || st.Attempt.ID != a.ID {
		t.Fatalf("step %+v", st)
	}
	if got := reload(t, f.store, a.ID); got.ActiveQuestion == nil || *got.ActiveQuestion != f.q2.ID {
		t.Fatalf("active question not repaired: %+v", got)
	}
	complete, err := e.SubmitResponse(ctx, st.Attempt, st.Question.ID, st.Order, []int64{f.a3.ID, f.a4.ID})
	if err != nil || !complete {
		t.Fatalf("submit presented question: complete=%v err=%v", complete, err)
	}
}

func TestCurrentCompletesWhenPendingQuestionRemoved(t *testing.T) {
	f := newFixture()
	rec := &recorder{}
	e := f.engine(t, quiz.WithEvents(rec))
	ctx := context.Background()
	a, order := start(t, e, f.quiz.ID, "s")
	if _, err := e.SubmitResponse(ctx, a, f.q1.ID, order, []int64{f.a1.ID}); err != nil {
		t.Fatal(err)
	}

	f.store.PutQuiz(quiz.Quiz{ID: f.quiz.ID, Name: f.quiz.Name, QuestionIDs: []int64{f.q1.ID}})
	st, err := e.Current(ctx, f.quiz.ID, "s")
	if err != nil {
		t.Fatal(err)
	}
	if !st.Done || st.Attempt.ID != a.ID || st.Attempt.State != quiz.StateComplete {
		t.Fatalf("step %+v", st)
	}
	if got := reload(t, f.store, a.ID); got.State != quiz.StateComplete || got.ActiveQuestion != nil {
		t.Fatalf("attempt %+v", got)
	}
	want := []string{quiz.EventAttemptStarted, quiz.EventAttemptCompleted}
	if !slices.Equal(rec.events, want) {
		t.Fatalf("events %v, want %v", rec.events, want)
	}
}
