package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/koscakluka/ema-workflow/core/dialog"
	_ "modernc.org/sqlite"
)

// Fixed width so timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLite keeps sessions in an SQLite database (pure Go, no cgo).
type SQLite struct {
	db *sql.DB
	options
}

// OpenSQLite opens, or creates, the database at dbPath.
func OpenSQLite(dbPath string, opts ...Option) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("error creating db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// A single connection keeps writes serialized and makes :memory: work.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error setting WAL mode: %w", err)
	}

	store := &SQLite{db: db, options: newOptions(opts)}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error migrating database: %w", err)
	}
	return store, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS dialog_sessions (
			conversation_id      TEXT PRIMARY KEY,
			state                TEXT NOT NULL DEFAULT 'READY',
			pending_question     TEXT NOT NULL DEFAULT '',
			pending_workflow_ref TEXT NOT NULL DEFAULT '',
			last_draft           TEXT NOT NULL DEFAULT '',
			updated_at           TEXT NOT NULL
		)
	`)
	return err
}

func (s *SQLite) Load(ctx context.Context, conversationID string) (*dialog.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT conversation_id, state, pending_question, pending_workflow_ref, last_draft, updated_at
		FROM dialog_sessions WHERE conversation_id = ?
	`, conversationID)

	var session dialog.Session
	var state, updatedAt string
	err := row.Scan(&session.ConversationID, &state, &session.PendingQuestion,
		&session.PendingWorkflowRef, &session.LastDraft, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return dialog.NewSession(conversationID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading session: %w", err)
	}

	session.State = dialog.State(state)
	session.UpdatedAt, err = time.Parse(timeLayout, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("error parsing session timestamp: %w", err)
	}
	if err := session.Validate(); err != nil {
		return nil, err
	}
	if s.expired(&session, s.now()) {
		logger.DebugContext(ctx, "dialog session expired", "conversation.id", conversationID)
		return dialog.NewSession(conversationID), nil
	}
	return &session, nil
}

func (s *SQLite) Save(ctx context.Context, session *dialog.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}
	updatedAt := session.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dialog_sessions (conversation_id, state, pending_question, pending_workflow_ref, last_draft, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			state = excluded.state,
			pending_question = excluded.pending_question,
			pending_workflow_ref = excluded.pending_workflow_ref,
			last_draft = excluded.last_draft,
			updated_at = excluded.updated_at
	`, session.ConversationID, string(session.State), session.PendingQuestion,
		session.PendingWorkflowRef, session.LastDraft, updatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("error saving session: %w", err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, conversationID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM dialog_sessions WHERE conversation_id = ?", conversationID); err != nil {
		return fmt.Errorf("error deleting session: %w", err)
	}
	return nil
}

// Sweep deletes every session expired at now.
func (s *SQLite) Sweep(ctx context.Context, now time.Time) (int64, error) {
	if s.idleTTL <= 0 {
		return 0, nil
	}
	cutoff := now.Add(-s.idleTTL).UTC().Format(timeLayout)
	result, err := s.db.ExecContext(ctx, "DELETE FROM dialog_sessions WHERE updated_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("error sweeping sessions: %w", err)
	}
	return result.RowsAffected()
}
