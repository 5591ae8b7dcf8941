package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/zhouzirui/panelroom/backend/internal/model/session"
)

// SQLiteStore persists session records with the pure-Go SQLite driver.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex // serializes writes to avoid SQLITE_BUSY
}

// NewSQLite opens (and creates if needed) the database at dbPath.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		topic TEXT NOT NULL,
		type TEXT NOT NULL,
		scheduled_at INTEGER NOT NULL,
		duration_minutes INTEGER NOT NULL,
		max_participants INTEGER NOT NULL,
		ai_participants INTEGER NOT NULL,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS participants (
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		is_ai INTEGER NOT NULL DEFAULT 0,
		actor_id TEXT,
		PRIMARY KEY (session_id, position)
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSession stores a new scheduled session with one placeholder seat per AI participant.
func (s *SQLiteStore) CreateSession(ctx context.Context, in NewSession) (SessionRecord, error) {
	rec := SessionRecord{
		ID:              uuid.NewString(),
		Title:           in.Title,
		Description:     in.Description,
		Topic:           in.Topic,
		Type:            in.Type,
		ScheduledTime:   in.ScheduledTime.UTC().Truncate(time.Second),
		DurationMinutes: in.DurationMinutes,
		MaxParticipants: in.MaxParticipants,
		AIParticipants:  in.AIParticipants,
		Status:          "scheduled",
		CreatedAt:       time.Now().UTC().Truncate(time.Second),
	}
	for i := 1; i <= in.AIParticipants; i++ {
		rec.Participants = append(rec.Participants, Participant{
			Position: i,
			Name:     fmt.Sprintf("AI Participant %d", i),
			IsAI:     true,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return SessionRecord{}, fmt.Errorf("begin create session: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO sessions (id, title, description, topic, type, scheduled_at, duration_minutes,
		max_participants, ai_participants, status, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Title, rec.Description, rec.Topic, string(rec.Type), rec.ScheduledTime.Unix(),
		rec.DurationMinutes, rec.MaxParticipants, rec.AIParticipants, rec.Status, rec.CreatedAt.Unix(),
	)
	if err != nil {
		return SessionRecord{}, fmt.Errorf("insert session: %w", err)
	}

	for _, p := range rec.Participants {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO participants (session_id, position, name, is_ai) VALUES (?, ?, ?, 1)`,
			rec.ID, p.Position, p.Name,
		); err != nil {
			return SessionRecord{}, fmt.Errorf("insert participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return SessionRecord{}, fmt.Errorf("commit create session: %w", err)
	}
	return rec, nil
}

// GetSession loads a session with its participants in seat order.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, topic, type, scheduled_at, duration_minutes,
		       max_participants, ai_participants, status, created_at
		FROM sessions WHERE id = ?`, id)

	var rec SessionRecord
	var sessionType string
	var scheduledAt, createdAt int64
	err := row.Scan(
		&rec.ID, &rec.Title, &rec.Description, &rec.Topic, &sessionType, &scheduledAt,
		&rec.DurationMinutes, &rec.MaxParticipants, &rec.AIParticipants, &rec.Status, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRecord{}, ErrNotFound
	}
	if err != nil {
		return SessionRecord{}, fmt.Errorf("scan session row: %w", err)
	}
	rec.Type = session.Type(sessionType)
	rec.ScheduledTime = time.Unix(scheduledAt, 0).UTC()
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()

	rows, err := s.db.QueryContext(ctx, `
		SELECT position, name, is_ai, actor_id
		FROM participants WHERE session_id = ? ORDER BY position`, id)
	if err != nil {
		return SessionRecord{}, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p Participant
		var isAI int
		var actorID sql.NullString
		if err := rows.Scan(&p.Position, &p.Name, &isAI, &actorID); err != nil {
			return SessionRecord{}, fmt.Errorf("scan participant row: %w", err)
		}
		p.IsAI = isAI != 0
		p.ActorID = actorID.String
		rec.Participants = append(rec.Participants, p)
	}
	if err := rows.Err(); err != nil {
		return SessionRecord{}, fmt.Errorf("iterate participants: %w", err)
	}
	return rec, nil
}

// LookupSessionConfig returns what the bot orchestrator needs to start a stored session.
func (s *SQLiteStore) LookupSessionConfig(ctx context.Context, id string) (session.Config, error) {
	var topic, sessionType string
	var aiParticipants int
	err := s.db.QueryRowContext(ctx,
		`SELECT topic, type, ai_participants FROM sessions WHERE id = ?`, id,
	).Scan(&topic, &sessionType, &aiParticipants)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Config{}, ErrNotFound
	}
	if err != nil {
		return session.Config{}, fmt.Errorf("lookup session config: %w", err)
	}
	return session.Config{Topic: topic, Type: session.Type(sessionType), ActorCount: aiParticipants}, nil
}

// PersistActorDisplayNames renames the AI seats, in order, to the personas playing them.
// Extra names beyond the stored AI seats are ignored.
func (s *SQLiteStore) PersistActorDisplayNames(ctx context.Context, id string, names []session.ActorName) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin persist names: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM sessions WHERE id = ?`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check session: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}

	for i, name := range names {
		if _, err := tx.ExecContext(ctx,
			`UPDATE participants SET name = ?, actor_id = ? WHERE session_id = ? AND position = ? AND is_ai = 1`,
			name.Name, name.ActorID, id, i+1,
		); err != nil {
			return fmt.Errorf("update participant %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit persist names: %w", err)
	}
	return nil
}
