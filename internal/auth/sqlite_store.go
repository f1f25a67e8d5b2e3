package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

const sqliteCredentialColumns = "id, username, password_hash, salt, banned, activated, last_login, rank_id, created_at, updated_at"

// SQLiteStore implements AccountStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed account store.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// FindCredentialByUsername retrieves a credential by exact username.
func (s *SQLiteStore) FindCredentialByUsername(ctx context.Context, username string) (*Credential, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+sqliteCredentialColumns+" FROM users WHERE username = ?", username)
	return scanSQLiteCredential(row)
}

// FindRankForUser retrieves the rank joined to username.
func (s *SQLiteStore) FindRankForUser(ctx context.Context, username string) (*Rank, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT r.id, r.name, "+flagColumns("r.")+", r.created_at, r.updated_at"+
			" FROM ranks r JOIN users u ON u.rank_id = r.id WHERE u.username = ?", username)
	return scanSQLiteRank(row)
}

// UpdateLastLogin records the login time for userID.
func (s *SQLiteStore) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE users SET last_login = ? WHERE id = ?",
		at.UTC().Format(time.RFC3339), userID,
	)
	if err != nil {
		return fmt.Errorf("updating last login: %w", err)
	}
	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// GetRankByName retrieves a rank by its unique name.
func (s *SQLiteStore) GetRankByName(ctx context.Context, name string) (*Rank, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, "+flagColumns("")+", created_at, updated_at FROM ranks WHERE name = ?", name)
	return scanSQLiteRank(row)
}

// ListRanks returns all ranks ordered by name.
func (s *SQLiteStore) ListRanks(ctx context.Context) ([]Rank, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, "+flagColumns("")+", created_at, updated_at FROM ranks ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("listing ranks: %w", err)
	}
	defer rows.Close()

	ranks := []Rank{}
	for rows.Next() {
		r, err := scanSQLiteRank(rows)
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
func (s *SQLiteStore) CreateRank(ctx context.Context, rank *Rank) error {
	if rank.ID == "" {
		rank.ID = newRankID()
	}
	now := time.Now().UTC().Truncate(time.Second)
	rank.CreatedAt, rank.UpdatedAt = now, now
	stamp := now.Format(time.RFC3339)

	args := []any{rank.ID, rank.Name}
	args = append(args, flagValues(rank.Permissions, sqliteBool)...)
	args = append(args, stamp, stamp)

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO ranks (id, name, "+flagColumns("")+", created_at, updated_at) VALUES ("+
			placeholders(sqlitePlaceholder, 1, len(args))+")",
		args...,
	)
	if err != nil {
		if isSQLiteConstraint(err, sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey) {
			return ErrRankExists
		}
		return fmt.Errorf("creating rank: %w", err)
	}
	return nil
}

// UpdateRankPermissions replaces every flag of the named rank.
func (s *SQLiteStore) UpdateRankPermissions(ctx context.Context, name string, perms RankPermissions) error {
	args := flagValues(perms, sqliteBool)
	args = append(args, time.Now().UTC().Format(time.RFC3339), name)

	result, err := s.db.ExecContext(ctx,
		"UPDATE ranks SET "+flagAssignments(sqlitePlaceholder, 1)+", updated_at = ? WHERE name = ?",
		args...,
	)
	if err != nil {
		return fmt.Errorf("updating rank permissions: %w", err)
	}
	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrRankNotFound
	}
	return nil
}

// CreateCredential inserts a new user credential. The ID is generated if empty.
func (s *SQLiteStore) CreateCredential(ctx context.Context, cred *Credential) error {
	if cred.UserID == "" {
		cred.UserID = newUserID()
	}
	now := time.Now().UTC().Truncate(time.Second)
	cred.CreatedAt, cred.UpdatedAt = now, now
	stamp := now.Format(time.RFC3339)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, salt, banned, activated, rank_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cred.UserID, cred.Username, cred.PasswordHash, cred.Salt,
		boolToInt(cred.Banned), boolToInt(cred.Activated),
		nullString(cred.RankID), stamp, stamp,
	)
	if err != nil {
		switch {
		case isSQLiteConstraint(err, sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey):
			return ErrUsernameExists
		case isSQLiteConstraint(err, sqlite3.ErrConstraintForeignKey):
			return ErrRankNotFound
		}
		return fmt.Errorf("creating credential: %w", err)
	}
	return nil
}

// SetAccountStatus updates the banned and activated flags of username.
func (s *SQLiteStore) SetAccountStatus(ctx context.Context, username string, banned, activated bool) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE users SET banned = ?, activated = ?, updated_at = ? WHERE username = ?",
		boolToInt(banned), boolToInt(activated), time.Now().UTC().Format(time.RFC3339), username,
	)
	if err != nil {
		return fmt.Errorf("updating account status: %w", err)
	}
	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CountCredentials returns the total number of user accounts.
func (s *SQLiteStore) CountCredentials(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

func scanSQLiteCredential(s scanner) (*Credential, error) {
	var c Credential
	var banned, activated int
	var lastLogin, rankID sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(&c.UserID, &c.Username, &c.PasswordHash, &c.Salt,
		&banned, &activated, &lastLogin, &rankID, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning credential: %w", err)
	}

	c.Banned = banned != 0
	c.Activated = activated != 0
	if rankID.Valid {
		c.RankID = rankID.String
	}
	if lastLogin.Valid {
		if t, err := time.Parse(time.RFC3339, lastLogin.String); err == nil {
			c.LastLogin = &t
		}
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &c, nil
}

func scanSQLiteRank(s scanner) (*Rank, error) {
	var r Rank
	var createdAt, updatedAt string

	dest := append([]any{&r.ID, &r.Name}, flagDest(&r.Permissions)...)
	dest = append(dest, &createdAt, &updatedAt)

	if err := s.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRankNotFound
		}
		return nil, fmt.Errorf("scanning rank: %w", err)
	}

	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &r, nil
}

// isSQLiteConstraint reports whether err is a constraint violation with one of codes.
func isSQLiteConstraint(err error, codes ...sqlite3.ErrNoExtended) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	for _, code := range codes {
		if sqliteErr.ExtendedCode == code {
			return true
		}
	}
	return false
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func sqliteBool(b bool) any { return boolToInt(b) }
