package quiz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"

	dbx "github.com/mind-engage/testme/internal/db"
)

func pageArgs(opts ListOpts) (limit, offset int) {
	limit, offset = opts.Limit, opts.Offset
	if limit <= 0 {
		limit = math.MaxInt32
	}
	if offset < 0 {
		offset = 0
	}
	return
}

func likePattern(q string) string {
	return "%" + strings.ToLower(strings.TrimSpace(q)) + "%"
}

func nullableID(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func idPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func (s *SQLStore) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

func (s *SQLStore) collectIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ---- tags ----

func (s *SQLStore) CreateTag(ctx context.Context, name string) (Tag, error) {
	t := Tag{Name: name}
	err := s.q.QueryRowContext(ctx, `INSERT INTO tags (name) VALUES ($1) RETURNING id`, name).Scan(&t.ID)
	if dbx.IsUniqueViolation(err) {
		return Tag{}, NewValidationError("name", "tag with this name already exists.")
	}
	return t, err
}

func (s *SQLStore) GetTag(ctx context.Context, id int64) (Tag, error) {
	t := Tag{ID: id}
	err := s.q.QueryRowContext(ctx, `SELECT name FROM tags WHERE id=$1`, id).Scan(&t.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return Tag{}, notFound("tag", id)
	}
	return t, err
}

func (s *SQLStore) ListTags(ctx context.Context, opts ListOpts) ([]Tag, int, error) {
	where, args := "", []any{}
	if opts.Q != "" {
		where, args = ` WHERE LOWER(name) LIKE $1`, append(args, likePattern(opts.Q))
	}
	total, err := s.count(ctx, `SELECT COUNT(*) FROM tags`+where, args...)
	if err != nil {
		return nil, 0, err
	}
	limit, offset := pageArgs(opts)
	n := len(args)
	rows, err := s.q.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, name FROM tags%s ORDER BY id ASC LIMIT $%d OFFSET $%d`, where, n+1, n+2),
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []Tag{}
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

func (s *SQLStore) UpdateTag(ctx context.Context, t Tag) (Tag, error) {
	res, err := s.q.ExecContext(ctx, `UPDATE tags SET name=$1 WHERE id=$2`, t.Name, t.ID)
	if dbx.IsUniqueViolation(err) {
		return Tag{}, NewValidationError("name", "tag with this name already exists.")
	}
	if err != nil {
		return Tag{}, err
	}
	return t, expectRow(res, "tag", t.ID)
}

func (s *SQLStore) DeleteTag(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM tags WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return expectRow(res, "tag", id)
}

// ---- questions ----

func (s *SQLStore) queryQuestions(ctx context.Context, query string, args ...any) ([]Question, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	out := []Question{}
	for rows.Next() {
		var (
			q       Question
			creator sql.NullInt64
		)
		if err := rows.Scan(&q.ID, &creator, &q.Text, &q.Description, &q.CreatedOn, &q.UpdatedOn); err != nil {
			_ = rows.Close()
			return nil, err
		}
		q.CreatorID = idPtr(creator)
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	for i := range out {
		tags, err := s.collectIDs(ctx, `SELECT tag_id FROM question_tags WHERE question_id=$1 ORDER BY tag_id ASC`, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].TagIDs = tags
	}
	return out, nil
}

const questionCols = `id, creator_id, text, description, created_on, updated_on`

func (s *SQLStore) CreateQuestion(ctx context.Context, q Question) (Question, error) {
	err := s.withTx(ctx, func(t *SQLStore) error {
		q.CreatedOn = now()
		q.UpdatedOn = q.CreatedOn
		if err := t.q.QueryRowContext(ctx,
			`INSERT INTO questions (creator_id, text, description, created_on, updated_on)
			 VALUES ($1,$2,$3,$4,$4) RETURNING id`,
			nullableID(q.CreatorID), q.Text, q.Description, q.CreatedOn).Scan(&q.ID); err != nil {
			return err
		}
		return t.setQuestionTags(ctx, q.ID, q.TagIDs)
	})
	if err != nil {
		return Question{}, err
	}
	return s.GetQuestion(ctx, q.ID)
}

func (s *SQLStore) setQuestionTags(ctx context.Context, questionID int64, tagIDs []int64) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM question_tags WHERE question_id=$1`, questionID); err != nil {
		return err
	}
	seen := map[int64]bool{}
	for _, id := range tagIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if err := s.exists(ctx, "tags", "tag", id); err != nil {
			if errors.Is(err, ErrNotFound) {
				return NewValidationError("tags", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id))
			}
			return err
		}
		if _, err := s.q.ExecContext(ctx, `INSERT INTO question_tags (question_id, tag_id) VALUES ($1,$2)`, questionID, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) GetQuestion(ctx context.Context, id int64) (Question, error) {
	qs, err := s.queryQuestions(ctx, `SELECT `+questionCols+` FROM questions WHERE id=$1`, id)
	if err != nil {
		return Question{}, err
	}
	if len(qs) == 0 {
		return Question{}, notFound("question", id)
	}
	return qs[0], nil
}

func (s *SQLStore) ListQuestions(ctx context.Context, opts ListOpts) ([]Question, int, error) {
	where, args := "", []any{}
	if opts.Q != "" {
		where, args = ` WHERE LOWER(text) LIKE $1 OR LOWER(description) LIKE $1`, append(args, likePattern(opts.Q))
	}
	total, err := s.count(ctx, `SELECT COUNT(*) FROM questions`+where, args...)
	if err != nil {
		return nil, 0, err
	}
	limit, offset := pageArgs(opts)
	n := len(args)
	qs, err := s.queryQuestions(ctx,
		fmt.Sprintf(`SELECT %s FROM questions%s ORDER BY id ASC LIMIT $%d OFFSET $%d`, questionCols, where, n+1, n+2),
		append(args, limit, offset)...)
	return qs, total, err
}

func (s *SQLStore) UpdateQuestion(ctx context.Context, q Question) (Question, error) {
	err := s.withTx(ctx, func(t *SQLStore) error {
		res, err := t.q.ExecContext(ctx,
			`UPDATE questions SET text=$1, description=$2, updated_on=$3 WHERE id=$4`,
			q.Text, q.Description, now(), q.ID)
		if err != nil {
			return err
		}
		if err := expectRow(res, "question", q.ID); err != nil {
			return err
		}
		return t.setQuestionTags(ctx, q.ID, q.TagIDs)
	})
	if err != nil {
		return Question{}, err
	}
	return s.GetQuestion(ctx, q.ID)
}

func (s *SQLStore) DeleteQuestion(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM questions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return expectRow(res, "question", id)
}

// ---- answers ----

const answerCols = `id, creator_id, question_id, text, votes, is_correct`

func (s *SQLStore) queryAnswers(ctx context.Context, query string, args ...any) ([]Answer, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Answer{}
	for rows.Next() {
		var (
			a       Answer
			creator sql.NullInt64
		)
		if err := rows.Scan(&a.ID, &creator, &a.QuestionID, &a.Text, &a.Votes, &a.IsCorrect); err != nil {
			return nil, err
		}
		a.CreatorID = idPtr(creator)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) CreateAnswer(ctx context.Context, a Answer) (Answer, error) {
	if err := s.exists(ctx, "questions", "question", a.QuestionID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Answer{}, NewValidationError("question", "Invalid hyperlink - Object does not exist.")
		}
		return Answer{}, err
	}
	a.Votes = 0
	err := s.q.QueryRowContext(ctx,
		`INSERT INTO answers (creator_id, question_id, text, is_correct) VALUES ($1,$2,$3,$4) RETURNING id`,
		nullableID(a.CreatorID), a.QuestionID, a.Text, a.IsCorrect).Scan(&a.ID)
	return a, err
}

func (s *SQLStore) GetAnswer(ctx context.Context, id int64) (Answer, error) {
	as, err := s.queryAnswers(ctx, `SELECT `+answerCols+` FROM answers WHERE id=$1`, id)
	if err != nil {
		return Answer{}, err
	}
	if len(as) == 0 {
		return Answer{}, notFound("answer", id)
	}
	return as[0], nil
}

func (s *SQLStore) ListAnswers(ctx context.Context, opts ListOpts) ([]Answer, int, error) {
	where, args := "", []any{}
	if opts.Q != "" {
		where, args = ` WHERE LOWER(text) LIKE $1`, append(args, likePattern(opts.Q))
	}
	total, err := s.count(ctx, `SELECT COUNT(*) FROM answers`+where, args...)
	if err != nil {
		return nil, 0, err
	}
	limit, offset := pageArgs(opts)
	n := len(args)
	as, err := s.queryAnswers(ctx,
		fmt.Sprintf(`SELECT %s FROM answers%s ORDER BY id ASC LIMIT $%d OFFSET $%d`, answerCols, where, n+1, n+2),
		append(args, limit, offset)...)
	return as, total, err
}

// UpdateAnswer changes text, correctness and owning question; votes are not editable.
func (s *SQLStore) UpdateAnswer(ctx context.Context, a Answer) (Answer, error) {
	if err := s.exists(ctx, "questions", "question", a.QuestionID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Answer{}, NewValidationError("question", "Invalid hyperlink - Object does not exist.")
		}
		return Answer{}, err
	}
	res, err := s.q.ExecContext(ctx,
		`UPDATE answers SET question_id=$1, text=$2, is_correct=$3 WHERE id=$4`,
		a.QuestionID, a.Text, a.IsCorrect, a.ID)
	if err != nil {
		return Answer{}, err
	}
	if err := expectRow(res, "answer", a.ID); err != nil {
		return Answer{}, err
	}
	return s.GetAnswer(ctx, a.ID)
}

func (s *SQLStore) DeleteAnswer(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM answers WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return expectRow(res, "answer", id)
}

// ---- quizzes ----

const quizCols = `id, creator_id, name, description, created_on, updated_on`

func (s *SQLStore) queryQuizzes(ctx context.Context, query string, args ...any) ([]Quiz, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	out := []Quiz{}
	for rows.Next() {
		var (
			q       Quiz
			creator sql.NullInt64
		)
		if err := rows.Scan(&q.ID, &creator, &q.Name, &q.Description, &q.CreatedOn, &q.UpdatedOn); err != nil {
			_ = rows.Close()
			return nil, err
		}
		q.CreatorID = idPtr(creator)
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	for i := range out {
		ids, err := s.collectIDs(ctx, `SELECT question_id FROM quiz_questions WHERE quiz_id=$1 ORDER BY question_id ASC`, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].QuestionIDs = ids
	}
	return out, nil
}

func (s *SQLStore) setQuizQuestions(ctx context.Context, quizID int64, questionIDs []int64) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM quiz_questions WHERE quiz_id=$1`, quizID); err != nil {
		return err
	}
	seen := map[int64]bool{}
	for _, id := range questionIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if err := s.exists(ctx, "questions", "question", id); err != nil {
			if errors.Is(err, ErrNotFound) {
				return NewValidationError("questions", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id))
			}
			return err
		}
		if _, err := s.q.ExecContext(ctx, `INSERT INTO quiz_questions (quiz_id, question_id) VALUES ($1,$2)`, quizID, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) CreateQuiz(ctx context.Context, q Quiz) (Quiz, error) {
	err := s.withTx(ctx, func(t *SQLStore) error {
		q.CreatedOn = now()
		q.UpdatedOn = q.CreatedOn
		if err := t.q.QueryRowContext(ctx,
			`INSERT INTO quizzes (creator_id, name, description, created_on, updated_on)
			 VALUES ($1,$2,$3,$4,$4) RETURNING id`,
			nullableID(q.CreatorID), q.Name, q.Description, q.CreatedOn).Scan(&q.ID); err != nil {
			return err
		}
		return t.setQuizQuestions(ctx, q.ID, q.QuestionIDs)
	})
	if err != nil {
		return Quiz{}, err
	}
	return s.GetQuiz(ctx, q.ID)
}

func (s *SQLStore) GetQuiz(ctx context.Context, id int64) (Quiz, error) {
	qs, err := s.queryQuizzes(ctx, `SELECT `+quizCols+` FROM quizzes WHERE id=$1`, id)
	if err != nil {
		return Quiz{}, err
	}
	if len(qs) == 0 {
		return Quiz{}, notFound("quiz", id)
	}
	return qs[0], nil
}

func (s *SQLStore) ListQuizzes(ctx context.Context, opts ListOpts) ([]Quiz, int, error) {
	where, args := "", []any{}
	if opts.Q != "" {
		where, args = ` WHERE LOWER(name) LIKE $1 OR LOWER(description) LIKE $1`, append(args, likePattern(opts.Q))
	}
	total, err := s.count(ctx, `SELECT COUNT(*) FROM quizzes`+where, args...)
	if err != nil {
		return nil, 0, err
	}
	limit, offset := pageArgs(opts)
	n := len(args)
	qs, err := s.queryQuizzes(ctx,
		fmt.Sprintf(`SELECT %s FROM quizzes%s ORDER BY id ASC LIMIT $%d OFFSET $%d`, quizCols, where, n+1, n+2),
		append(args, limit, offset)...)
	return qs, total, err
}

// LatestQuizzes returns up to n quizzes, newest first.
func (s *SQLStore) LatestQuizzes(ctx context.Context, n int) ([]Quiz, error) {
	if n <= 0 {
		return []Quiz{}, nil
	}
	return s.queryQuizzes(ctx, `SELECT `+quizCols+` FROM quizzes ORDER BY created_on DESC, id DESC LIMIT $1`, n)
}

func (s *SQLStore) UpdateQuiz(ctx context.Context, q Quiz) (Quiz, error) {
	err := s.withTx(ctx, func(t *SQLStore) error {
		res, err := t.q.ExecContext(ctx,
			`UPDATE quizzes SET name=$1, description=$2, updated_on=$3 WHERE id=$4`,
			q.Name, q.Description, now(), q.ID)
		if err != nil {
			return err
		}
		if err := expectRow(res, "quiz", q.ID); err != nil {
			return err
		}
		return t.setQuizQuestions(ctx, q.ID, q.QuestionIDs)
	})
	if err != nil {
		return Quiz{}, err
	}
	return s.GetQuiz(ctx, q.ID)
}

func (s *SQLStore) DeleteQuiz(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM quizzes WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return expectRow(res, "quiz", id)
}
