package store

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Session is one translation, from "start" until the user starts a new one.
type Session struct {
	ID        string
	StartedAt time.Time
	EndedAt   *time.Time
	Text      string
	Commits   int
}

// CommitRecord is a letter committed during a session.
type CommitRecord struct {
	ID            int64
	SessionID     string
	Seq           int
	Letter        string
	Confidence    float64
	HasConfidence bool
	CommittedAt   time.Time
}

// SessionRepository stores sessions and their commits.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create inserts a new session. StartedAt is set if zero.
func (r *SessionRepository) Create(sess *Session) error {
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, started_at, text) VALUES (?, ?, ?)`,
		sess.ID, sess.StartedAt, sess.Text,
	)
	return err
}

// End records the final text of a session and marks it finished.
func (r *SessionRepository) End(id, text string) error {
	result, err := r.db.Exec(
		`UPDATE sessions SET ended_at = ?, text = ? WHERE id = ?`,
		time.Now(), text, id,
	)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

// UpdateText stores the current transcript of a session.
func (r *SessionRepository) UpdateText(id, text string) error {
	result, err := r.db.Exec(`UPDATE sessions SET text = ? WHERE id = ?`, text, id)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

// AppendCommit records the next commit of a session.
func (r *SessionRepository) AppendCommit(sessionID string, letter rune, confidence float64, hasConfidence bool) (*CommitRecord, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var seq int
	err = tx.QueryRow(
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM commits WHERE session_id = ?`,
		sessionID,
	).Scan(&seq)
	if err != nil {
		return nil, err
	}

	rec := &CommitRecord{
		SessionID:     sessionID,
		Seq:           seq,
		Letter:        string(letter),
		Confidence:    confidence,
		HasConfidence: hasConfidence,
		CommittedAt:   time.Now(),
	}

	var conf sql.NullFloat64
	if hasConfidence {
		conf = sql.NullFloat64{Float64: confidence, Valid: true}
	}

	result, err := tx.Exec(
		`INSERT INTO commits (session_id, seq, letter, confidence, committed_at) VALUES (?, ?, ?, ?, ?)`,
		rec.SessionID, rec.Seq, rec.Letter, conf, rec.CommittedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.ID, err = result.LastInsertId()
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return rec, nil
}

const sessionColumns = `s.id, s.started_at, s.ended_at, s.text,
	(SELECT COUNT(*) FROM commits c WHERE c.session_id = s.id)`

func scanSession(row interface{ Scan(...any) error }) (*Session, error) {
	sess := &Session{}
	var ended sql.NullTime
	if err := row.Scan(&sess.ID, &sess.StartedAt, &ended, &sess.Text, &sess.Commits); err != nil {
		return nil, err
	}
	if ended.Valid {
		t := ended.Time
		sess.EndedAt = &t
	}
	return sess, nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	row := r.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions s WHERE s.id = ?`, id)

	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sess, nil
}

// List returns the most recent sessions first. A limit <= 0 returns all.
func (r *SessionRepository) List(limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(
		`SELECT `+sessionColumns+` FROM sessions s ORDER BY s.started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// Commits returns the commits of a session in order.
func (r *SessionRepository) Commits(sessionID string) ([]CommitRecord, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, seq, letter, confidence, committed_at
		 FROM commits
		 WHERE session_id = ?
		 ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var commits []CommitRecord
	for rows.Next() {
		var c CommitRecord
		var conf sql.NullFloat64
		if err := rows.Scan(&c.ID, &c.SessionID, &c.Seq, &c.Letter, &conf, &c.CommittedAt); err != nil {
			return nil, err
		}
		c.Confidence = conf.Float64
		c.HasConfidence = conf.Valid
		commits = append(commits, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return commits, nil
}

// Delete removes a session and its commits.
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

// expectOneRow maps an update or delete that touched nothing to ErrNotFound.
func expectOneRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
