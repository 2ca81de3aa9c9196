package quiz

import "context"

// Store is the storage the attempt engine runs against.
type Store interface {
	GetQuiz(ctx context.Context, id int64) (Quiz, error)
	// FindOrCreateInProgressAttempt returns the in-progress attempt for
	// (quizID, sessionKey), creating one with the given seed if none exists.
	FindOrCreateInProgressAttempt(ctx context.Context, quizID int64, sessionKey string, seed int64) (Attempt, bool, error)
	// FindInProgressAttempt never creates; it fails with ErrNotFound.
	FindInProgressAttempt(ctx context.Context, quizID int64, sessionKey string) (Attempt, error)
	GetAttempt(ctx context.Context, id int64) (Attempt, error)
	// LatestAttempt is the most recently created attempt of sessionKey on quizID.
	LatestAttempt(ctx context.Context, quizID int64, sessionKey string) (Attempt, error)
	// GetAttemptForUpdate reads the attempt and locks its row until the
	// surrounding RunAtomically returns.
	GetAttemptForUpdate(ctx context.Context, id int64) (Attempt, error)
	ListQuestionsForQuiz(ctx context.Context, quizID int64) ([]Question, error)
	ListAnswersForQuestion(ctx context.Context, questionID int64) ([]Answer, error)
	CreateResponse(ctx context.Context, attemptID, questionID int64) (Response, error)
	CreateResponseAnswerLinks(ctx context.Context, responseID int64, answerIDs []int64) error
	UpdateAttempt(ctx context.Context, a Attempt) error
	ListResponsesForAttempt(ctx context.Context, attemptID int64) ([]Response, error)

	// RunAtomically runs fn in one transaction. fn must only use the Store it
	// is handed. Transient conflicts are reported as ErrTransactionFailure.
	RunAtomically(ctx context.Context, fn func(Store) error) error
}

// Catalog is the authoring side: tags, questions, answers and quizzes.
type Catalog interface {
	CreateTag(ctx context.Context, name string) (Tag, error)
	GetTag(ctx context.Context, id int64) (Tag, error)
	ListTags(ctx context.Context, opts ListOpts) ([]Tag, int, error)
	UpdateTag(ctx context.Context, t Tag) (Tag, error)
	DeleteTag(ctx context.Context, id int64) error

	CreateQuestion(ctx context.Context, q Question) (Question, error)
	GetQuestion(ctx context.Context, id int64) (Question, error)
	ListQuestions(ctx context.Context, opts ListOpts) ([]Question, int, error)
	UpdateQuestion(ctx context.Context, q Question) (Question, error)
	DeleteQuestion(ctx context.Context, id int64) error

	CreateAnswer(ctx context.Context, a Answer) (Answer, error)
	GetAnswer(ctx context.Context, id int64) (Answer, error)
	ListAnswers(ctx context.Context, opts ListOpts) ([]Answer, int, error)
	ListAnswersForQuestion(ctx context.Context, questionID int64) ([]Answer, error)
	UpdateAnswer(ctx context.Context, a Answer) (Answer, error)
	DeleteAnswer(ctx context.Context, id int64) error

	CreateQuiz(ctx context.Context, q Quiz) (Quiz, error)
	GetQuiz(ctx context.Context, id int64) (Quiz, error)
	ListQuizzes(ctx context.Context, opts ListOpts) ([]Quiz, int, error)
	LatestQuizzes(ctx context.Context, n int) ([]Quiz, error)
	UpdateQuiz(ctx context.Context, q Quiz) (Quiz, error)
	DeleteQuiz(ctx context.Context, id int64) error
}
