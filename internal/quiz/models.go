package quiz

// AttemptState is the lifecycle state of a QuizAttempt.
type AttemptState string

const (
	StateInProgress AttemptState = "in_progress"
	StateComplete   AttemptState = "complete"
)

type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Question struct {
	ID          int64   `json:"id"`
	CreatorID   *int64  `json:"creator"`
	Text        string  `json:"text"`
	Description string  `json:"description"`
	TagIDs      []int64 `json:"tags"`
	CreatedOn   int64   `json:"created_on"`
	UpdatedOn   int64   `json:"updated_on"`
}

type Answer struct {
	ID         int64  `json:"id"`
	CreatorID  *int64 `json:"creator"`
	QuestionID int64  `json:"question"`
	Text       string `json:"text"`
	Votes      int    `json:"votes"`
	IsCorrect  bool   `json:"is_correct_answer"`
}

type Quiz struct {
	ID          int64   `json:"id"`
	CreatorID   *int64  `json:"creator"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	QuestionIDs []int64 `json:"questions"`
	CreatedOn   int64   `json:"created_on"`
	UpdatedOn   int64   `json:"updated_on"`
}

// Attempt is one session's run through a quiz. ActiveQuestion is nil once
// the attempt is complete.
type Attempt struct {
	ID             int64        `json:"id"`
	SessionKey     string       `json:"-"`
	QuizID         int64        `json:"quiz"`
	Seed           int64        `json:"seed"`
	State          AttemptState `json:"state"`
	ActiveQuestion *int64       `json:"active_question"`
	CreatedOn      int64        `json:"created_on"`
	UpdatedOn      int64        `json:"updated_on"`
}

// Response is the recorded answer selection for one question of an attempt.
type Response struct {
	ID         int64   `json:"id"`
	AttemptID  int64   `json:"attempt"`
	QuestionID int64   `json:"question"`
	AnswerIDs  []int64 `json:"answers"`
	CreatedOn  int64   `json:"created_on"`
}

// ListOpts pages and filters catalog listings.
type ListOpts struct {
	Q      string
	Limit  int
	Offset int
}
