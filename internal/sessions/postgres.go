package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// PostgresConfig holds connection parameters for the Postgres-backed store,
// renamed and trimmed from the teacher's CockroachConfig (the two wire
// protocols are identical; this module targets vanilla Postgres).
type PostgresConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultPostgresConfig returns sane defaults for local development.
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		Host:            "localhost",
		Port:            5432,
		User:            "postgres",
		Database:        "agentcore",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// PostgresStore implements Store against a `session_state` table using
// optimistic concurrency on its `version` column (spec §4.4: "the store may
// additionally use optimistic concurrency … but the core does not rely on
// this for correctness").
//
// Expected schema:
//
//	CREATE TABLE session_state (
//	    session_id       TEXT PRIMARY KEY,
//	    todolist_id      TEXT NOT NULL DEFAULT '',
//	    mission          TEXT NOT NULL DEFAULT '',
//	    answers          JSONB NOT NULL DEFAULT '{}',
//	    pending_question TEXT NOT NULL DEFAULT '',
//	    version          INTEGER NOT NULL DEFAULT 0,
//	    updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//	CREATE TABLE session_locks (
//	    session_id  TEXT PRIMARY KEY,
//	    owner_id    TEXT NOT NULL,
//	    acquired_at TIMESTAMPTZ NOT NULL,
//	    expires_at  TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens and pings a connection using cfg.
func NewPostgresStore(cfg PostgresConfig) (*PostgresStore, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode, int(cfg.ConnectTimeout.Seconds()),
	)
	return NewPostgresStoreFromDSN(dsn, cfg)
}

// NewPostgresStoreFromDSN opens a connection using a raw DSN, for deployments
// that manage connection strings externally (e.g. a secrets manager).
func NewPostgresStoreFromDSN(dsn string, cfg PostgresConfig) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// DB exposes the underlying connection, e.g. for NewDBLocker.
func (s *PostgresStore) DB() *sql.DB { return s.db }

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error { return s.db.Close() }

// Load fetches the current state row, or ErrNotFound.
func (s *PostgresStore) Load(ctx context.Context, sessionID string) (*models.SessionState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, todolist_id, mission, answers, pending_question, version, updated_at
		FROM session_state WHERE session_id = $1
	`, sessionID)

	var (
		state      models.SessionState
		answersRaw []byte
	)
	if err := row.Scan(&state.SessionID, &state.TodoListID, &state.Mission, &answersRaw, &state.PendingQuestion, &state.Version, &state.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load session state: %w", err)
	}
	state.Answers = map[string]string{}
	if len(answersRaw) > 0 {
		if err := json.Unmarshal(answersRaw, &state.Answers); err != nil {
			return nil, fmt.Errorf("decode answers: %w", err)
		}
	}
	return &state, nil
}

// Save upserts the state row, incrementing version atomically via
// `version = session_state.version + 1` inside the UPDATE, avoiding a
// separate read-then-write race at the SQL layer (the executor's session
// lock is still the authority; this is belt-and-suspenders).
func (s *PostgresStore) Save(ctx context.Context, state *models.SessionState) (*models.SessionState, error) {
	if state == nil {
		return nil, errors.New("state is required")
	}
	answersRaw, err := json.Marshal(state.Answers)
	if err != nil {
		return nil, fmt.Errorf("encode answers: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO session_state (session_id, todolist_id, mission, answers, pending_question, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, 1, now())
		ON CONFLICT (session_id) DO UPDATE
		SET todolist_id = EXCLUDED.todolist_id,
			mission = EXCLUDED.mission,
			answers = EXCLUDED.answers,
			pending_question = EXCLUDED.pending_question,
			version = session_state.version + 1,
			updated_at = now()
		RETURNING version, updated_at
	`, state.SessionID, state.TodoListID, state.Mission, answersRaw, state.PendingQuestion)

	saved := *state
	if err := row.Scan(&saved.Version, &saved.UpdatedAt); err != nil {
		return nil, fmt.Errorf("save session state: %w", err)
	}
	return &saved, nil
}

// List returns every known session id.
func (s *PostgresStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT session_id FROM session_state`)
	if err != nil {
		return nil, fmt.Errorf("list session state: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes a session's state row.
func (s *PostgresStore) Delete(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session_state WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session state: %w", err)
	}
	return nil
}

// Cleanup deletes state rows older than olderThan, returning the count
// removed.
func (s *PostgresStore) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM session_state WHERE updated_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("cleanup session state: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rows), nil
}
