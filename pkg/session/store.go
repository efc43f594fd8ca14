package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/teamwire/teamwire/pkg/sqliteutil"
	"github.com/teamwire/teamwire/pkg/team"
)

var (
	ErrEmptyID  = errors.New("session ID cannot be empty")
	ErrNotFound = errors.New("session not found")
)

// Store is the narrow persistence interface the orchestrator depends
// on. It never exposes the underlying connection.
type Store interface {
	Upsert(ctx context.Context, sess *team.Session) error
	Get(ctx context.Context, id string) (*team.Session, error)
	List(ctx context.Context) ([]*team.Session, error)
	ListByStatus(ctx context.Context, status team.Status) ([]*team.Session, error)
	Close() error
}

// SQLiteStore implements Store using SQLite, one row per team session.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the session database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sqliteutil.OpenDB(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	_, err = db.ExecContext(context.Background(), `
		CREATE TABLE IF NOT EXISTS team_sessions (
			id TEXT PRIMARY KEY,
			agent_team_definition_id TEXT,
			name TEXT,
			workspace TEXT,
			member_conversations TEXT,
			status TEXT,
			created_at INTEGER,
			updated_at INTEGER
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create team_sessions table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Upsert inserts the session row or fully replaces it, keyed on id.
func (s *SQLiteStore) Upsert(ctx context.Context, sess *team.Session) error {
	if sess.ID == "" {
		return ErrEmptyID
	}

	conversationsJSON, err := json.Marshal(sess.MemberConversations)
	if err != nil {
		return fmt.Errorf("failed to encode member conversations: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO team_sessions
			(id, agent_team_definition_id, name, workspace, member_conversations, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.DefinitionID, sess.Name, sess.Workspace,
		string(conversationsJSON), string(sess.Status),
		sess.CreatedAt.UnixMilli(), sess.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}

// Get retrieves a session by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*team.Session, error) {
	if id == "" {
		return nil, ErrEmptyID
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, agent_team_definition_id, name, workspace, member_conversations, status, created_at, updated_at
			FROM team_sessions WHERE id = ?`, id)

	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sess, nil
}

// List returns every session, most recently updated first.
func (s *SQLiteStore) List(ctx context.Context) ([]*team.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, agent_team_definition_id, name, workspace, member_conversations, status, created_at, updated_at
			FROM team_sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	return collectSessions(rows)
}

// ListByStatus returns every session with the given status, most
// recently updated first.
func (s *SQLiteStore) ListByStatus(ctx context.Context, status team.Status) ([]*team.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, agent_team_definition_id, name, workspace, member_conversations, status, created_at, updated_at
			FROM team_sessions WHERE status = ? ORDER BY updated_at DESC`, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions by status: %w", err)
	}
	defer rows.Close()

	return collectSessions(rows)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*team.Session, error) {
	var (
		sess              team.Session
		status            string
		conversationsJSON string
		createdAt         int64
		updatedAt         int64
	)

	err := row.Scan(&sess.ID, &sess.DefinitionID, &sess.Name, &sess.Workspace,
		&conversationsJSON, &status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(conversationsJSON), &sess.MemberConversations); err != nil {
		return nil, fmt.Errorf("failed to decode member conversations: %w", err)
	}
	if sess.MemberConversations == nil {
		sess.MemberConversations = make(map[string]string)
	}

	sess.Status = team.Status(status)
	sess.CreatedAt = time.UnixMilli(createdAt).UTC()
	sess.UpdatedAt = time.UnixMilli(updatedAt).UTC()

	return &sess, nil
}

func collectSessions(rows *sql.Rows) ([]*team.Session, error) {
	var sessions []*team.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session rows: %w", err)
	}
	return sessions, nil
}
