package auth

import (
	"errors"
	"regexp"
	"time"
)

// namePattern defines the valid format for usernames and rank names:
// alphanumeric, dots, hyphens, underscores, 1-64 characters.
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// maxNameLength is the maximum allowed username or rank name length.
const maxNameLength = 64

// IsValidUsername checks if a username meets format requirements.
func IsValidUsername(username string) bool {
	return len(username) <= maxNameLength && namePattern.MatchString(username)
}

// IsValidRankName checks if a rank name meets format requirements.
func IsValidRankName(name string) bool {
	return len(name) <= maxNameLength && namePattern.MatchString(name)
}

// Credential is the stored login record for one user.
type Credential struct {
	UserID       string     `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"` // never serialised
	Salt         string     `json:"-"` // never serialised
	Banned       bool       `json:"banned"`
	Activated    bool       `json:"activated"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	RankID       string     `json:"rank_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// RankPermissions holds one flag per (resource, action) pair.
// The mapping from flag to role token lives in roleTable.
type RankPermissions struct {
	PostAdd    bool `json:"post_add"`
	PostEdit   bool `json:"post_edit"`
	PostDelete bool `json:"post_delete"`

	PostCategoryAdd    bool `json:"post_category_add"`
	PostCategoryEdit   bool `json:"post_category_edit"`
	PostCategoryDelete bool `json:"post_category_delete"`

	PostCommentAdd    bool `json:"post_comment_add"`
	PostCommentEdit   bool `json:"post_comment_edit"`
	PostCommentDelete bool `json:"post_comment_delete"`

	UserAdd    bool `json:"user_add"`
	UserEdit   bool `json:"user_edit"`
	UserDelete bool `json:"user_delete"`

	UserGroupAdd    bool `json:"user_group_add"`
	UserGroupEdit   bool `json:"user_group_edit"`
	UserGroupDelete bool `json:"user_group_delete"`

	UserAccountAdd    bool `json:"user_account_add"`
	UserAccountEdit   bool `json:"user_account_edit"`
	UserAccountDelete bool `json:"user_account_delete"`

	UserRankAdd    bool `json:"user_rank_add"`
	UserRankEdit   bool `json:"user_rank_edit"`
	UserRankDelete bool `json:"user_rank_delete"`

	PageAdd    bool `json:"page_add"`
	PageEdit   bool `json:"page_edit"`
	PageDelete bool `json:"page_delete"`
}

// Rank is a named permission bundle assigned to users.
type Rank struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Permissions RankPermissions `json:"permissions"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountBanned       = errors.New("account is banned")
	ErrAccountNotActivated = errors.New("account is not activated")
	ErrCrypto              = errors.New("cryptographic primitive failure")
	ErrDecode              = errors.New("invalid encoding")
	ErrUserNotFound        = errors.New("user not found")
	ErrRankNotFound        = errors.New("rank not found")
	ErrUsernameExists      = errors.New("username already exists")
	ErrRankExists          = errors.New("rank already exists")
	ErrInvalidUsername     = errors.New("invalid username")
	ErrUnauthenticated     = errors.New("authentication required")
	ErrForbidden           = errors.New("insufficient permissions")
)
