package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skillcoin/learn-engine/internal/models"
)

// PostgresRepository implements UserRepository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresRepository creates a new PostgreSQL user repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 25
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	} else {
		poolConfig.MinConns = 5
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

const userColumns = `id, email, name, role, password_hash, is_verified, created_at, last_login_at`

// FindByEmail retrieves a user by email, case-insensitively
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanUser(r.pool.QueryRow(ctx, query, strings.ToLower(email)))
}

// FindByID retrieves a user by ID
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(r.pool.QueryRow(ctx, query, id))
}

// Insert creates a new user record
func (r *PostgresRepository) Insert(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (id, email, name, role, password_hash, is_verified, created_at, last_login_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		u.ID,
		strings.ToLower(u.Email),
		u.Name,
		string(u.Role),
		u.PasswordHash,
		u.IsVerified,
		u.CreatedAt,
		nullTime(u.LastLoginAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// Update rewrites a user record
func (r *PostgresRepository) Update(ctx context.Context, u *models.User) error {
	query := `
		UPDATE users
		SET email = $2, name = $3, role = $4, password_hash = $5, is_verified = $6, last_login_at = $7
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query,
		u.ID,
		strings.ToLower(u.Email),
		u.Name,
		string(u.Role),
		u.PasswordHash,
		u.IsVerified,
		nullTime(u.LastLoginAt),
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s not found", u.ID)
	}

	return nil
}

func (r *PostgresRepository) scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var role string
	var lastLogin sql.NullTime

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&role,
		&u.PasswordHash,
		&u.IsVerified,
		&u.CreatedAt,
		&lastLogin,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // not found
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	u.Role = models.Role(role)
	if lastLogin.Valid {
		u.LastLoginAt = &lastLogin.Time
	}

	return &u, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
