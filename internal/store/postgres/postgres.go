// internal/store/postgres/postgres.go
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github-org-mirror/internal/model"
	"github-org-mirror/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	defaultMaxPoolSize  = 10
	defaultConnAttempts = 10
	defaultConnTimeout  = time.Second
)

// Verify interface compliance.
var _ store.Store = (*Store)(nil)

// Store is a postgres implementation of store.Store. Every collection is a table of
// JSONB documents keyed by (user_id, external_id, parent_id).
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect opens a pool and retries until the database answers a ping.
func Connect(ctx context.Context, url string, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolConfig.MaxConns = defaultMaxPoolSize

	for attempts := defaultConnAttempts; attempts > 0; attempts-- {
		var pool *pgxpool.Pool
		pool, err = pgxpool.NewWithConfig(ctx, poolConfig)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}

		logger.Info("Postgres is trying to connect", "attempts_left", attempts, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(defaultConnTimeout):
		}
	}
	return nil, fmt.Errorf("connect to database: %w", err)
}

// Migrate applies the embedded schema migrations.
func Migrate(dbURL string) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, dbURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

const userColumns = `id, login, access_token, last_synced_at, last_sync_type, sync_in_progress, created_at, updated_at`

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	var syncType string
	err := row.Scan(&u.ID, &u.Login, &u.AccessToken, &u.LastSyncedAt, &syncType, &u.SyncInProgress, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, store.ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	u.LastSyncType = model.SyncType(syncType)
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (model.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (login, access_token, last_synced_at, last_sync_type, sync_in_progress)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		user.Login, user.AccessToken, user.LastSyncedAt, string(user.LastSyncType), user.SyncInProgress)
	created, err := scanUser(row)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	*user = created
	return nil
}

func (s *Store) SaveUser(ctx context.Context, user *model.User) error {
	row := s.pool.QueryRow(ctx, `
		UPDATE users
		SET login = $2, access_token = $3, last_synced_at = $4, last_sync_type = $5,
		    sync_in_progress = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		user.ID, user.Login, user.AccessToken, user.LastSyncedAt, string(user.LastSyncType), user.SyncInProgress)
	saved, err := scanUser(row)
	if err != nil {
		return err
	}
	*user = saved
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// DeleteUser removes the user; documents go with it through ON DELETE CASCADE.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func upsertSQL(table string) string {
	return `INSERT INTO ` + table + ` (user_id, external_id, parent_id, doc)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, external_id, parent_id)
		DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()
		RETURNING id`
}

func (s *Store) Upsert(ctx context.Context, c store.Collection, key store.Key, doc any) (int64, error) {
	table, err := tableName(c)
	if err != nil {
		return 0, err
	}
	body, err := store.Marshal(doc)
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.pool.QueryRow(ctx, upsertSQL(table), key.UserID, key.ExternalID, key.ParentID, []byte(body)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert %s %s: %w", c, key.ExternalID, err)
	}
	return id, nil
}

// BulkUpsert applies all operations in one transaction.
func (s *Store) BulkUpsert(ctx context.Context, c store.Collection, ops []store.Op) error {
	if len(ops) == 0 {
		return nil
	}
	table, err := tableName(c)
	if err != nil {
		return err
	}

	query := upsertSQL(table)
	batch := &pgx.Batch{}
	for _, op := range ops {
		body, err := store.Marshal(op.Doc)
		if err != nil {
			return err
		}
		batch.Queue(query, op.Key.UserID, op.Key.ExternalID, op.Key.ParentID, []byte(body))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // Rollback is a no-op if the transaction is already committed.

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("bulk upsert %s: %w", c, err)
	}
	return tx.Commit(ctx)
}

func (s *Store) FindOne(ctx context.Context, c store.Collection, f store.Filter) (store.Record, error) {
	records, err := s.Find(ctx, c, f, store.Window{Limit: 1})
	if err != nil {
		return store.Record{}, err
	}
	if len(records) == 0 {
		return store.Record{}, store.ErrNotFound
	}
	return records[0], nil
}

func (s *Store) Find(ctx context.Context, c store.Collection, f store.Filter, w store.Window) ([]store.Record, error) {
	table, err := tableName(c)
	if err != nil {
		return nil, err
	}
	where, args, err := buildWhere(f)
	if err != nil {
		return nil, err
	}

	query := `SELECT id, user_id, external_id, parent_id, doc, created_at, updated_at FROM ` + table + where + ` ORDER BY id`
	if w.Limit > 0 {
		args = append(args, w.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if w.Offset > 0 {
		args = append(args, w.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", c, err)
	}
	defer rows.Close()

	records := make([]store.Record, 0)
	for rows.Next() {
		var r store.Record
		var doc []byte
		if err := rows.Scan(&r.ID, &r.Key.UserID, &r.Key.ExternalID, &r.Key.ParentID, &doc, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		r.Doc = doc
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *Store) Count(ctx context.Context, c store.Collection, f store.Filter) (int, error) {
	table, err := tableName(c)
	if err != nil {
		return 0, err
	}
	where, args, err := buildWhere(f)
	if err != nil {
		return 0, err
	}

	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+table+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", c, err)
	}
	return n, nil
}

func buildWhere(f store.Filter) (string, []any, error) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.UserID != 0 {
		add("user_id = $%d", f.UserID)
	}
	if f.ParentID != nil {
		add("parent_id = $%d", *f.ParentID)
	}
	if f.ExternalID != "" {
		add("external_id = $%d", f.ExternalID)
	}
	if len(f.Match) > 0 {
		match, err := store.Marshal(f.Match)
		if err != nil {
			return "", nil, err
		}
		add("doc @> $%d::jsonb", string(match))
	}

	if len(conds) == 0 {
		return "", args, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func tableName(c store.Collection) (string, error) {
	if _, err := store.ParseCollection(string(c)); err != nil {
		return "", err
	}
	return pgx.Identifier{string(c)}.Sanitize(), nil
}
