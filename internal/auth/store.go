package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CredentialStore is the persistence contract the login pipeline needs.
type CredentialStore interface {
	// FindCredentialByUsername returns ErrUserNotFound when no user matches exactly.
	FindCredentialByUsername(ctx context.Context, username string) (*Credential, error)

	// FindRankForUser returns the rank assigned to username, or
	// ErrRankNotFound when the user has none. It is keyed by username, not
	// user ID: the HTTP layer holds only the Basic principal, and usernames
	// are unique.
	FindRankForUser(ctx context.Context, username string) (*Rank, error)

	// UpdateLastLogin is best-effort; concurrent writes are last-writer-wins.
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
}

// AccountStore adds the administration operations used by seeding and the API.
type AccountStore interface {
	CredentialStore
	RankLookup

	CreateRank(ctx context.Context, rank *Rank) error
	ListRanks(ctx context.Context) ([]Rank, error)
	UpdateRankPermissions(ctx context.Context, name string, perms RankPermissions) error

	CreateCredential(ctx context.Context, cred *Credential) error
	SetAccountStatus(ctx context.Context, username string, banned, activated bool) error
	CountCredentials(ctx context.Context) (int, error)
}

func newUserID() string { return "usr-" + uuid.NewString()[:8] }
func newRankID() string { return "rnk-" + uuid.NewString()[:8] }

// placeholderFunc renders the n-th (1-based) bind parameter.
type placeholderFunc func(n int) string

func sqlitePlaceholder(int) string { return "?" }
func postgresPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

// flagColumns lists the rank flag columns in table order, optionally prefixed.
func flagColumns(prefix string) string {
	cols := make([]string, len(roleTable))
	for i, g := range roleTable {
		cols[i] = prefix + g.column
	}
	return strings.Join(cols, ", ")
}

// flagAssignments renders "col = ?" pairs for every flag starting at bind index start.
func flagAssignments(ph placeholderFunc, start int) string {
	sets := make([]string, len(roleTable))
	for i, g := range roleTable {
		sets[i] = g.column + " = " + ph(start+i)
	}
	return strings.Join(sets, ", ")
}

// placeholders renders count bind parameters starting at start.
func placeholders(ph placeholderFunc, start, count int) string {
	out := make([]string, count)
	for i := range out {
		out[i] = ph(start + i)
	}
	return strings.Join(out, ", ")
}

// flagDest returns scan destinations for every flag of p.
func flagDest(p *RankPermissions) []any {
	dest := make([]any, len(roleTable))
	for i, g := range roleTable {
		dest[i] = g.flag(p)
	}
	return dest
}

// flagValues returns flag values of p in table order, converted by conv.
func flagValues(p RankPermissions, conv func(bool) any) []any {
	vals := make([]any, len(roleTable))
	for i, g := range roleTable {
		vals[i] = conv(*g.flag(&p))
	}
	return vals
}

// scanner is an interface for sql.Row, sql.Rows and pgx.Row Scan methods.
type scanner interface {
	Scan(dest ...any) error
}
