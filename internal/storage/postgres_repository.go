package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"viewtube/internal/auth"
	"viewtube/internal/models"
)

const pgUniqueViolation = "23505"

// PostgresRepository is the pgx-backed Repository implementation. Uniqueness
// rules live in the schema (unique email, one channel per owner, one reaction
// per viewer per video) so concurrent writers cannot race past them.
type PostgresRepository struct {
	pool *pgxpool.Pool
	cfg  PostgresConfig
	now  func() time.Time
}

// NewPostgresRepository opens a Postgres-backed repository and applies the
// schema migration.
func NewPostgresRepository(ctx context.Context, dsn string, opts ...Option) (*PostgresRepository, error) {
	cfg := newPostgresConfig(dsn, opts...)
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = cfg.MaxConnections
	}
	if cfg.MinConnections >= 0 {
		poolCfg.MinConns = cfg.MinConnections
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckInterval > 0 {
		poolCfg.HealthCheckPeriod = cfg.HealthCheckInterval
	}
	if cfg.AcquireTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.AcquireTimeout
	}
	if cfg.ApplicationName != "" {
		if poolCfg.ConnConfig.RuntimeParams == nil {
			poolCfg.ConnConfig.RuntimeParams = make(map[string]string)
		}
		poolCfg.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}

	repo := &PostgresRepository{pool: pool, cfg: cfg, now: cfg.Clock}
	if err := repo.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

// Close drains the connection pool, honouring the context deadline.
func (r *PostgresRepository) Close(ctx context.Context) error {
	if r == nil || r.pool == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		r.pool.Close()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Ping verifies a connection can be acquired.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return Upstreamf(err, "postgres unreachable")
	}
	return nil
}

func (r *PostgresRepository) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return Upstreamf(err, "acquire postgres connection")
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Upstreamf(err, "begin transaction")
	}
	defer rollbackTx(ctx, tx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return Upstreamf(err, "commit transaction")
	}
	return nil
}

// rollbackTx is safe to defer after Commit: a closed transaction rolls back
// as a no-op.
func rollbackTx(ctx context.Context, tx pgx.Tx) {
	_ = tx.Rollback(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// CreateUser registers a new account. The unique index on email turns a
// duplicate registration into a conflict regardless of concurrent writers.
func (r *PostgresRepository) CreateUser(ctx context.Context, params CreateUserParams) (models.User, error) {
	email := normalizeEmail(params.Email)
	username := normalizeUsername(params.Username)
	hash, err := auth.HashPassword(params.Password)
	if err != nil {
		return models.User{}, Upstreamf(err, "hash password")
	}
	id, err := generateID()
	if err != nil {
		return models.User{}, Upstreamf(err, "generate user id")
	}
	now := r.now()
	user := models.User{
		ID:           id,
		Name:         strings.TrimSpace(params.Name),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err = r.pool.Exec(ctx, `
INSERT INTO users (id, name, username, email, password_hash, avatar_url, avatar_public_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, '', '', $6, $6)`,
		user.ID, user.Name, user.Username, user.Email, user.PasswordHash, now)
	if isUniqueViolation(err) {
		return models.User{}, Conflictf("username %s or email %s is already registered", username, email)
	}
	if err != nil {
		return models.User{}, Upstreamf(err, "insert user")
	}
	return user, nil
}

// AuthenticateUser checks credentials against the stored digest.
func (r *PostgresRepository) AuthenticateUser(ctx context.Context, email, password string) (models.User, error) {
	user, err := r.FindUserByEmail(ctx, email)
	if err != nil {
		return models.User{}, err
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return models.User{}, Unauthorizedf("invalid password")
	}
	return user, nil
}

const userColumns = `u.id, u.name, u.username, u.email, u.password_hash, u.avatar_url, u.avatar_public_id,
COALESCE((SELECT c.id FROM channels c WHERE c.owner_id = u.id), ''), u.created_at, u.updated_at`

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Name, &user.Username, &user.Email, &user.PasswordHash,
		&user.Avatar.URL, &user.Avatar.PublicID, &user.ChannelID,
		&user.CreatedAt, &user.UpdatedAt)
	return user, err
}

// GetUser fetches an account by ID.
func (r *PostgresRepository) GetUser(ctx context.Context, id string) (models.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = $1`, id)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, NotFoundf("user %s not found", id)
	}
	if err != nil {
		return models.User{}, Upstreamf(err, "query user")
	}
	return user, nil
}

// FindUserByEmail fetches an account by normalised email.
func (r *PostgresRepository) FindUserByEmail(ctx context.Context, email string) (models.User, error) {
	normalized := normalizeEmail(email)
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users u WHERE u.email = $1`, normalized)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, NotFoundf("no account registered for %s", normalized)
	}
	if err != nil {
		return models.User{}, Upstreamf(err, "query user")
	}
	return user, nil
}

// UpdateUser applies the optional account mutations.
func (r *PostgresRepository) UpdateUser(ctx context.Context, id string, update UserUpdate) (models.User, error) {
	user, err := r.GetUser(ctx, id)
	if err != nil {
		return models.User{}, err
	}
	if update.Name != nil {
		trimmed := strings.TrimSpace(*update.Name)
		if trimmed == "" {
			return models.User{}, Validationf("name must not be empty")
		}
		user.Name = trimmed
	}
	if update.Avatar != nil {
		user.Avatar = *update.Avatar
	}
	user.UpdatedAt = r.now()

	tag, err := r.pool.Exec(ctx, `
UPDATE users SET name = $2, avatar_url = $3, avatar_public_id = $4, updated_at = $5 WHERE id = $1`,
		user.ID, user.Name, user.Avatar.URL, user.Avatar.PublicID, user.UpdatedAt)
	if err != nil {
		return models.User{}, Upstreamf(err, "update user")
	}
	if tag.RowsAffected() == 0 {
		return models.User{}, NotFoundf("user %s not found", id)
	}
	return user, nil
}
