package session

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/voxcart/voxcart/pkg/core"
	"github.com/voxcart/voxcart/pkg/core/types"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore keeps one JSONB document per session, with state and start
// time lifted into columns for the sweep query.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres connects a pool and verifies the connection.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open postgres for migrations: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Create implements Store.
func (s *PostgresStore) Create(ctx context.Context, sess *types.Session) error {
	doc, err := json.Marshal(sess)
	if err != nil {
		return core.NewStorageError(fmt.Errorf("marshal session: %w", err))
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO voice_sessions (id, state, started_at, updated_at, doc)
		 VALUES ($1, $2, $3, now(), $4)
		 ON CONFLICT (id) DO NOTHING`,
		sess.ID, string(sess.State), sess.StartedAt, doc)
	if err != nil {
		return core.NewStorageError(err)
	}
	if tag.RowsAffected() == 0 {
		return core.NewStorageError(errDuplicateID(sess.ID))
	}
	return nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, id string) (*types.Session, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM voice_sessions WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.NewNotFoundError("session not found")
	}
	if err != nil {
		return nil, core.NewStorageError(err)
	}
	var sess types.Session
	if err := json.Unmarshal(doc, &sess); err != nil {
		return nil, core.NewStorageError(fmt.Errorf("unmarshal session %s: %w", id, err))
	}
	return &sess, nil
}

// Put implements Store.
func (s *PostgresStore) Put(ctx context.Context, sess *types.Session) error {
	doc, err := json.Marshal(sess)
	if err != nil {
		return core.NewStorageError(fmt.Errorf("marshal session: %w", err))
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO voice_sessions (id, state, started_at, updated_at, doc)
		 VALUES ($1, $2, $3, now(), $4)
		 ON CONFLICT (id) DO UPDATE
		 SET state = EXCLUDED.state, updated_at = now(), doc = EXCLUDED.doc`,
		sess.ID, string(sess.State), sess.StartedAt, doc)
	if err != nil {
		return core.NewStorageError(err)
	}
	return nil
}

// AppendTurn implements Store. Row-locked read-modify-write keeps the stored
// turn count equal to the history length and the analytics counters in the
// same transaction.
func (s *PostgresStore) AppendTurn(ctx context.Context, id string, turn types.Turn, delta types.AnalyticsDelta) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return core.NewStorageError(err)
	}
	defer tx.Rollback(ctx)

	var doc []byte
	err = tx.QueryRow(ctx,
		`SELECT doc FROM voice_sessions WHERE id = $1 FOR UPDATE`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.NewNotFoundError("session not found")
	}
	if err != nil {
		return core.NewStorageError(err)
	}

	var sess types.Session
	if err := json.Unmarshal(doc, &sess); err != nil {
		return core.NewStorageError(fmt.Errorf("unmarshal session %s: %w", id, err))
	}
	sess.AppendTurn(turn)
	sess.Analytics.Apply(delta)

	updated, err := json.Marshal(&sess)
	if err != nil {
		return core.NewStorageError(fmt.Errorf("marshal session: %w", err))
	}
	if _, err := tx.Exec(ctx,
		`UPDATE voice_sessions SET doc = $2, updated_at = now() WHERE id = $1`,
		id, updated); err != nil {
		return core.NewStorageError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return core.NewStorageError(err)
	}
	return nil
}

// ListIdle implements Store.
func (s *PostgresStore) ListIdle(ctx context.Context, state types.SessionState, startedBefore time.Time) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM voice_sessions WHERE state = $1 AND started_at < $2`,
		string(state), startedBefore)
	if err != nil {
		return nil, core.NewStorageError(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, core.NewStorageError(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewStorageError(err)
	}
	return ids, nil
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
