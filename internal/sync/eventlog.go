package syncx

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/mind-engage/testme/internal/quiz"
)

type Event struct {
	Seq       int64  `json:"seq"`
	SiteID    string `json:"site_id"`
	Type      string `json:"type"`
	Key       string `json:"key"`
	DataJSON  string `json:"data"`
	CreatedAt int64  `json:"created_at"`
}

type EventRepo struct {
	db     *sql.DB
	siteID string
}

func NewEventRepo(db *sql.DB, siteID string) *EventRepo {
	if siteID == "" {
		siteID = "local"
	}
	return &EventRepo{db: db, siteID: siteID}
}

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	if e.SiteID == "" {
		e.SiteID = r.siteID
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		e.SiteID, e.Type, e.Key, e.DataJSON, time.Now().Unix())
	return err
}

// Since returns up to limit events with seq > after, oldest first.
func (r *EventRepo) Since(ctx context.Context, after int64, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, site_id, typ, key, data, created_at FROM event_log
		 WHERE seq > $1 ORDER BY seq ASC LIMIT $2`, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Event{}
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Seq, &e.SiteID, &e.Type, &e.Key, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AttemptEvent records an attempt lifecycle change. Failures are logged and
// never reach the caller; the attempt itself has already committed.
func (r *EventRepo) AttemptEvent(ctx context.Context, typ string, a quiz.Attempt) {
	data, _ := json.Marshal(map[string]any{
		"attempt_id": a.ID,
		"quiz_id":    a.QuizID,
		"state":      a.State,
	})
	e := Event{Type: typ, Key: "attempt:" + strconv.FormatInt(a.ID, 10), DataJSON: string(data)}
	if err := r.Append(ctx, e); err != nil {
		log.Printf("event log: %s %s: %v", typ, e.Key, err)
	}
}
