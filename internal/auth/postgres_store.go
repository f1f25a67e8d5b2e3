package auth

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres error codes mapped to auth sentinels.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

const postgresCredentialColumns = "id, username, password_hash, salt, banned, activated, last_login, rank_id, created_at, updated_at"

// PostgresStore implements AccountStore over PostgreSQL.
// The pool is owned by the caller; the store never closes it.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed account store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("auth: nil pool")
	}
	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema executes every *.sql file at the root of fsys in name order.
// Files must be idempotent (CREATE ... IF NOT EXISTS).
func (s *PostgresStore) EnsureSchema(ctx context.Context, fsys fs.FS) error {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return fmt.Errorf("listing schema files: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		ddl, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading %s: %w", name, err)
		}
		if _, err := s.pool.Exec(ctx, string(ddl)); err != nil {
			return fmt.Errorf("applying %s: %w", name, err)
		}
	}
	return nil
}

// FindCredentialByUsername retrieves a credential by exact username.
func (s *PostgresStore) FindCredentialByUsername(ctx context.Context, username string) (*Credential, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+postgresCredentialColumns+" FROM users WHERE username = $1", username)
	return scanPostgresCredential(row)
}

// FindRankForUser retrieves the rank joined to username.
func (s *PostgresStore) FindRankForUser(ctx context.Context, username string) (*Rank, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT r.id, r.name, "+flagColumns("r.")+", r.created_at, r.updated_at"+
			" FROM ranks r JOIN users u ON u.rank_id = r.id WHERE u.username = $1", username)
	return scanPostgresRank(row)
}

// UpdateLastLogin records the login time for userID.
func (s *PostgresStore) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, "UPDATE users SET last_login = $1 WHERE id = $2", at.UTC(), userID)
	if err != nil {
		return fmt.Errorf("updating last login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// GetRankByName retrieves a rank by its unique name.
func (s *PostgresStore) GetRankByName(ctx context.Context, name string) (*Rank, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT id, name, "+flagColumns("")+", created_at, updated_at FROM ranks WHERE name = $1", name)
	return scanPostgresRank(row)
}

// ListRanks returns all ranks ordered by name.
func (s *PostgresStore) ListRanks(ctx context.Context) ([]Rank, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, name, "+flagColumns("")+", created_at, updated_at FROM ranks ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("listing ranks: %w", err)
	}
	defer rows.Close()

	ranks := []Rank{}
	for rows.Next() {
		r, err := scanPostgresRank(rows)
		if err != nil {
			return nil, err
		}
		ranks = append(ranks, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ranks: %w", err)
	}
	return ranks, nil
}

// CreateRank inserts a new rank. The ID is generated if empty.
func (s *PostgresStore) CreateRank(ctx context.Context, rank *Rank) error {
	if rank.ID == "" {
		rank.ID = newRankID()
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	rank.CreatedAt, rank.UpdatedAt = now, now

	args := []any{rank.ID, rank.Name}
	args = append(args, flagValues(rank.Permissions, postgresBool)...)
	args = append(args, now, now)

	_, err := s.pool.Exec(ctx,
		"INSERT INTO ranks (id, name, "+flagColumns("")+", created_at, updated_at) VALUES ("+
			placeholders(postgresPlaceholder, 1, len(args))+")",
		args...,
	)
	if err != nil {
		if pgErrCode(err) == pgUniqueViolation {
			return ErrRankExists
		}
		return fmt.Errorf("creating rank: %w", err)
	}
	return nil
}

// UpdateRankPermissions replaces every flag of the named rank.
func (s *PostgresStore) UpdateRankPermissions(ctx context.Context, name string, perms RankPermissions) error {
	args := flagValues(perms, postgresBool)
	next := len(args) + 1
	args = append(args, time.Now().UTC(), name)

	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf("UPDATE ranks SET %s, updated_at = $%d WHERE name = $%d",
			flagAssignments(postgresPlaceholder, 1), next, next+1),
		args...,
	)
	if err != nil {
		return fmt.Errorf("updating rank permissions: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRankNotFound
	}
	return nil
}

// CreateCredential inserts a new user credential. The ID is generated if empty.
func (s *PostgresStore) CreateCredential(ctx context.Context, cred *Credential) error {
	if cred.UserID == "" {
		cred.UserID = newUserID()
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	cred.CreatedAt, cred.UpdatedAt = now, now

	var rankID *string
	if cred.RankID != "" {
		rankID = &cred.RankID
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, username, password_hash, salt, banned, activated, rank_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		cred.UserID, cred.Username, cred.PasswordHash, cred.Salt,
		cred.Banned, cred.Activated, rankID, now, now,
	)
	if err != nil {
		switch pgErrCode(err) {
		case pgUniqueViolation:
			return ErrUsernameExists
		case pgForeignKeyViolation:
			return ErrRankNotFound
		}
		return fmt.Errorf("creating credential: %w", err)
	}
	return nil
}

// SetAccountStatus updates the banned and activated flags of username.
func (s *PostgresStore) SetAccountStatus(ctx context.Context, username string, banned, activated bool) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE users SET banned = $1, activated = $2, updated_at = $3 WHERE username = $4",
		banned, activated, time.Now().UTC(), username,
	)
	if err != nil {
		return fmt.Errorf("updating account status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CountCredentials returns the total number of user accounts.
func (s *PostgresStore) CountCredentials(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

func scanPostgresCredential(s scanner) (*Credential, error) {
	var c Credential
	var rankID *string

	err := s.Scan(&c.UserID, &c.Username, &c.PasswordHash, &c.Salt,
		&c.Banned, &c.Activated, &c.LastLogin, &rankID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning credential: %w", err)
	}
	if rankID != nil {
		c.RankID = *rankID
	}
	return &c, nil
}

func scanPostgresRank(s scanner) (*Rank, error) {
	var r Rank

	dest := append([]any{&r.ID, &r.Name}, flagDest(&r.Permissions)...)
	dest = append(dest, &r.CreatedAt, &r.UpdatedAt)

	if err := s.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRankNotFound
		}
		return nil, fmt.Errorf("scanning rank: %w", err)
	}
	return &r, nil
}

// pgErrCode returns the SQLSTATE of a Postgres error, or "".
func pgErrCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func postgresBool(b bool) any { return b }
