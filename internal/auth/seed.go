package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
)

// seedPasswordBytes is the number of random bytes for a generated admin password.
const seedPasswordBytes = 16

// AdminRankName is the rank created for the seeded administrator.
const AdminRankName = "admin"

// SeedAdmin creates the admin rank (every flag set) and an activated admin
// account on first boot when no credentials exist. If password is empty a
// random one is generated and logged once. Returns the password used, or
// "" when seeding was skipped.
func SeedAdmin(ctx context.Context, store AccountStore, username, password string, logger *slog.Logger) (string, error) {
	if !IsValidUsername(username) {
		return "", fmt.Errorf("%w: %q", ErrInvalidUsername, username)
	}

	count, err := store.CountCredentials(ctx)
	if err != nil {
		return "", fmt.Errorf("checking credential count: %w", err)
	}
	if count > 0 {
		logger.Info("credentials exist, skipping admin seed")
		return "", nil
	}

	generated := password == ""
	if generated {
		passwordBytes := make([]byte, seedPasswordBytes)
		if _, err := rand.Read(passwordBytes); err != nil { //nolint:govet // shadow: err re-declared in nested scope
			return "", fmt.Errorf("%w: generating seed password: %v", ErrCrypto, err)
		}
		password = hex.EncodeToString(passwordBytes)
	}

	rank, err := store.GetRankByName(ctx, AdminRankName)
	if errors.Is(err, ErrRankNotFound) {
		rank = &Rank{Name: AdminRankName, Permissions: AllPermissions()}
		err = store.CreateRank(ctx, rank)
	}
	if err != nil {
		return "", fmt.Errorf("preparing admin rank: %w", err)
	}

	hash, salt, err := NewCredentialSecret(password)
	if err != nil {
		return "", fmt.Errorf("hashing seed password: %w", err)
	}

	admin := &Credential{
		Username:     username,
		PasswordHash: hash,
		Salt:         salt,
		Activated:    true,
		RankID:       rank.ID,
	}
	if err := store.CreateCredential(ctx, admin); err != nil {
		return "", fmt.Errorf("creating seed admin: %w", err)
	}

	if generated {
		logger.Warn("seed admin account created",
			"username", username,
			"password", password,
			"action_required", "change this password immediately",
		)
	} else {
		logger.Info("seed admin account created", "username", username)
	}

	return password, nil
}
