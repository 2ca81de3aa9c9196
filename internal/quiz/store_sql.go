package quiz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	dbx "github.com/mind-engage/testme/internal/db"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore implements Store and Catalog on sqlite or postgres.
//
// sqlite runs with a single pooled connection, so every *sql.Rows is drained
// and closed before the next statement is issued.
type SQLStore struct {
	db     *sql.DB
	q      querier
	driver dbx.Driver
	inTx   bool
}

func NewSQLStore(db *sql.DB, driver dbx.Driver) *SQLStore {
	return &SQLStore{db: db, q: db, driver: driver}
}

func (s *SQLStore) RunAtomically(ctx context.Context, fn func(Store) error) error {
	return s.withTx(ctx, func(t *SQLStore) error { return fn(t) })
}

func (s *SQLStore) withTx(ctx context.Context, fn func(*SQLStore) error) error {
	if s.inTx {
		return fn(s)
	}
	err := dbx.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		return fn(&SQLStore{db: s.db, q: tx, driver: s.driver, inTx: true})
	})
	if err != nil && dbx.IsTransient(err) && !errors.Is(err, ErrTransactionFailure) {
		return fmt.Errorf("%w: %w", ErrTransactionFailure, err)
	}
	return err
}

func now() int64 { return time.Now().Unix() }

const attemptCols = `id, session_key, quiz_id, seed, state, active_question_id, created_on, updated_on`

func scanAttempt(row interface{ Scan(...any) error }) (Attempt, error) {
	var (
		a      Attempt
		state  string
		active sql.NullInt64
	)
	if err := row.Scan(&a.ID, &a.SessionKey, &a.QuizID, &a.Seed, &state, &active, &a.CreatedOn, &a.UpdatedOn); err != nil {
		return Attempt{}, err
	}
	a.State = AttemptState(state)
	if active.Valid {
		v := active.Int64
		a.ActiveQuestion = &v
	}
	return a, nil
}

func (s *SQLStore) FindOrCreateInProgressAttempt(ctx context.Context, quizID int64, sessionKey string, seed int64) (Attempt, bool, error) {
	a, err := s.FindInProgressAttempt(ctx, quizID, sessionKey)
	if err == nil {
		return a, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Attempt{}, false, err
	}

	ts := now()
	var id int64
	err = s.q.QueryRowContext(ctx,
		`INSERT INTO quiz_attempts (session_key, quiz_id, seed, state, created_on, updated_on)
		 VALUES ($1,$2,$3,$4,$5,$5)
		 ON CONFLICT DO NOTHING
		 RETURNING id`,
		sessionKey, quizID, seed, string(StateInProgress), ts).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		// a concurrent request created it first
		a, err := s.FindInProgressAttempt(ctx, quizID, sessionKey)
		return a, false, err
	}
	if err != nil {
		return Attempt{}, false, err
	}
	return Attempt{
		ID:         id,
		SessionKey: sessionKey,
		QuizID:     quizID,
		Seed:       seed,
		State:      StateInProgress,
		CreatedOn:  ts,
		UpdatedOn:  ts,
	}, true, nil
}

func (s *SQLStore) FindInProgressAttempt(ctx context.Context, quizID int64, sessionKey string) (Attempt, error) {
	a, err := scanAttempt(s.q.QueryRowContext(ctx,
		`SELECT `+attemptCols+` FROM quiz_attempts WHERE quiz_id=$1 AND session_key=$2 AND state=$3`,
		quizID, sessionKey, string(StateInProgress)))
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, fmt.Errorf("in-progress attempt for quiz %d: %w", quizID, ErrNotFound)
	}
	return a, err
}

func (s *SQLStore) GetAttempt(ctx context.Context, id int64) (Attempt, error) {
	a, err := scanAttempt(s.q.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM quiz_attempts WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, notFound("attempt", id)
	}
	return a, err
}

func (s *SQLStore) GetAttemptForUpdate(ctx context.Context, id int64) (Attempt, error) {
	query := `SELECT ` + attemptCols + ` FROM quiz_attempts WHERE id=$1`
	if s.driver == dbx.DriverPostgres {
		query += ` FOR UPDATE`
	}
	a, err := scanAttempt(s.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, notFound("attempt", id)
	}
	return a, err
}

func (s *SQLStore) LatestAttempt(ctx context.Context, quizID int64, sessionKey string) (Attempt, error) {
	a, err := scanAttempt(s.q.QueryRowContext(ctx,
		`SELECT `+attemptCols+` FROM quiz_attempts WHERE quiz_id=$1 AND session_key=$2 ORDER BY id DESC LIMIT 1`,
		quizID, sessionKey))
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, fmt.Errorf("attempt for quiz %d: %w", quizID, ErrNotFound)
	}
	return a, err
}

func (s *SQLStore) UpdateAttempt(ctx context.Context, a Attempt) error {
	var active any
	if a.ActiveQuestion != nil {
		active = *a.ActiveQuestion
	}
	res, err := s.q.ExecContext(ctx,
		`UPDATE quiz_attempts SET state=$1, active_question_id=$2, updated_on=$3 WHERE id=$4`,
		string(a.State), active, now(), a.ID)
	if err != nil {
		return err
	}
	return expectRow(res, "attempt", a.ID)
}

func (s *SQLStore) ListQuestionsForQuiz(ctx context.Context, quizID int64) ([]Question, error) {
	if err := s.exists(ctx, "quizzes", "quiz", quizID); err != nil {
		return nil, err
	}
	return s.queryQuestions(ctx,
		`SELECT q.id, q.creator_id, q.text, q.description, q.created_on, q.updated_on
		 FROM quiz_questions qq
		 JOIN questions q ON q.id = qq.question_id
		 WHERE qq.quiz_id=$1
		 ORDER BY q.id ASC`, quizID)
}

func (s *SQLStore) ListAnswersForQuestion(ctx context.Context, questionID int64) ([]Answer, error) {
	if err := s.exists(ctx, "questions", "question", questionID); err != nil {
		return nil, err
	}
	return s.queryAnswers(ctx, `SELECT `+answerCols+` FROM answers WHERE question_id=$1 ORDER BY id ASC`, questionID)
}

func (s *SQLStore) CreateResponse(ctx context.Context, attemptID, questionID int64) (Response, error) {
	r := Response{AttemptID: attemptID, QuestionID: questionID, CreatedOn: now()}
	err := s.q.QueryRowContext(ctx,
		`INSERT INTO quiz_question_responses (attempt_id, question_id, created_on) VALUES ($1,$2,$3) RETURNING id`,
		attemptID, questionID, r.CreatedOn).Scan(&r.ID)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return Response{}, fmt.Errorf("response for attempt %d question %d: %w", attemptID, questionID, ErrConflict)
		}
		return Response{}, err
	}
	return r, nil
}

// CreateResponseAnswerLinks links answers to a response and counts a vote for each.
func (s *SQLStore) CreateResponseAnswerLinks(ctx context.Context, responseID int64, answerIDs []int64) error {
	for _, id := range answerIDs {
		if _, err := s.q.ExecContext(ctx,
			`INSERT INTO quiz_question_response_answers (response_id, answer_id) VALUES ($1,$2)`,
			responseID, id); err != nil {
			if dbx.IsUniqueViolation(err) {
				return fmt.Errorf("answer %d already linked to response %d: %w", id, responseID, ErrConflict)
			}
			return err
		}
		if _, err := s.q.ExecContext(ctx, `UPDATE answers SET votes = votes + 1 WHERE id=$1`, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) ListResponsesForAttempt(ctx context.Context, attemptID int64) ([]Response, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT r.id, r.attempt_id, r.question_id, r.created_on, ra.answer_id
		 FROM quiz_question_responses r
		 LEFT JOIN quiz_question_response_answers ra ON ra.response_id = r.id
		 WHERE r.attempt_id=$1
		 ORDER BY r.id ASC, ra.answer_id ASC`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Response{}
	for rows.Next() {
		var (
			r      Response
			answer sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.AttemptID, &r.QuestionID, &r.CreatedOn, &answer); err != nil {
			return nil, err
		}
		if n := len(out); n == 0 || out[n-1].ID != r.ID {
			r.AnswerIDs = []int64{}
			out = append(out, r)
		}
		if answer.Valid {
			last := &out[len(out)-1]
			last.AnswerIDs = append(last.AnswerIDs, answer.Int64)
		}
	}
	return out, rows.Err()
}

func (s *SQLStore) exists(ctx context.Context, table, kind string, id int64) error {
	var one int
	err := s.q.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id=$1`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(kind, id)
	}
	return err
}

func expectRow(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(kind, id)
	}
	return nil
}
