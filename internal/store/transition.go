package store

import (
	"database/sql"
	"time"
)

// Transition is a change of the smoothed mood within a session.
type Transition struct {
	ID          int64     `json:"id"`
	SessionID   string    `json:"session_id"`
	Sequence    int64     `json:"sequence"`
	TimestampMs int64     `json:"timestamp_ms"`
	Mood        string    `json:"mood"`
	Previous    string    `json:"previous,omitempty"`
	Raw         string    `json:"raw"`
	CreatedAt   time.Time `json:"created_at"`
}

// TransitionRepository provides access to recorded mood transitions.
type TransitionRepository struct {
	db *sql.DB
}

// Transitions returns the transition repository for this store.
func (s *Store) Transitions() *TransitionRepository {
	return &TransitionRepository{db: s.db}
}

// Record inserts a transition and sets its ID.
func (r *TransitionRepository) Record(t *Transition) error {
	t.CreatedAt = time.Now()

	result, err := r.db.Exec(
		`INSERT INTO mood_transitions (session_id, sequence, timestamp_ms, mood, previous, raw, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.SessionID, t.Sequence, t.TimestampMs, t.Mood, t.Previous, t.Raw, t.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

// ListBySession retrieves the transitions of a session in order.
func (r *TransitionRepository) ListBySession(sessionID string) ([]Transition, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, sequence, timestamp_ms, mood, previous, raw, created_at
		 FROM mood_transitions WHERE session_id = ? ORDER BY sequence`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transitions []Transition
	for rows.Next() {
		var t Transition
		err := rows.Scan(&t.ID, &t.SessionID, &t.Sequence, &t.TimestampMs, &t.Mood, &t.Previous, &t.Raw, &t.CreatedAt)
		if err != nil {
			return nil, err
		}
		transitions = append(transitions, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return transitions, nil
}

// CountByMood returns how many times each mood was entered in a session.
func (r *TransitionRepository) CountByMood(sessionID string) (map[string]int, error) {
	rows, err := r.db.Query(
		`SELECT mood, COUNT(*) FROM mood_transitions WHERE session_id = ? GROUP BY mood`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var mood string
		var n int
		if err := rows.Scan(&mood, &n); err != nil {
			return nil, err
		}
		counts[mood] = n
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return counts, nil
}
