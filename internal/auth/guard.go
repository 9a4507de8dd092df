package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	ErrMissingUsername = errors.New("admin username is required when authentication is enabled")
	ErrMissingPassword = errors.New("admin password is required when authentication is enabled")
	ErrInvalidDigest   = errors.New("admin password digest must be 64 hex characters")
)

// Guard decides admission for the single configured admin identity.
//
// Only a SHA-256 digest of the password is retained. It is a single pass with
// no salt or work factor, which is weaker than a password KDF. That is accepted
// here because there is exactly one shared admin credential and no user store.
type Guard struct {
	enabled  bool
	username string
	digest   [sha256.Size]byte
	logger   *zap.Logger
}

// NewGuard builds a Guard from cfg. The plaintext password is hashed and not
// kept. An empty password is hashed like any other value; refusing it at startup
// is the job of ValidateGuardConfig.
func NewGuard(cfg GuardConfig, logger *zap.Logger) (*Guard, error) {
	g := &Guard{
		enabled:  cfg.Enabled,
		username: cfg.Username,
		logger:   logger,
	}

	if cfg.PasswordSHA256 != "" {
		digest, err := decodeDigest(cfg.PasswordSHA256)
		if err != nil {
			return nil, err
		}
		g.digest = digest
	} else {
		g.digest = sha256.Sum256([]byte(cfg.Password))
	}

	if !cfg.Enabled {
		logger.Warn("Admin authentication is disabled, everyone can access the service")
		return g, nil
	}

	if cfg.Username == "" {
		return nil, ErrMissingUsername
	}

	logger.Info("Admin authentication enabled",
		zap.String("username", cfg.Username),
		zap.Bool("prehashed", cfg.PasswordSHA256 != ""))

	return g, nil
}

// Enabled reports whether login attempts are checked at all.
func (g *Guard) Enabled() bool {
	return g.enabled
}

// Verify reports whether the submitted pair matches the admin identity.
// A disabled guard admits everything. Verify never panics and never logs the
// password or its digest.
func (g *Guard) Verify(username, password string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("Credential verification aborted", zap.String("username", username))
			ok = false
		}
	}()

	if !g.enabled {
		g.logger.Debug("Authentication disabled, admitting login", zap.String("username", username))
		return true
	}

	// Both comparisons always run so timing does not reveal which one failed.
	digest := sha256.Sum256([]byte(password))
	userMatch := subtle.ConstantTimeCompare([]byte(username), []byte(g.username))
	passMatch := compareDigest(&digest, &g.digest)

	if userMatch&passMatch == 1 {
		g.logger.Info("Admin login succeeded", zap.String("username", username))
		return true
	}

	g.logger.Warn("Admin login failed: invalid username or password", zap.String("username", username))
	return false
}

// IsAdmin reports whether username is the configured admin. Sessions issued
// to an earlier admin name stop being accepted once the name changes.
func (g *Guard) IsAdmin(username string) bool {
	return subtle.ConstantTimeCompare([]byte(username), []byte(g.username)) == 1
}

// HashPassword returns the hex SHA-256 digest accepted by ADMIN_PASSWORD_SHA256.
func HashPassword(password string) string {
	digest := sha256.Sum256([]byte(password))
	return hex.EncodeToString(digest[:])
}

// compareDigest returns 1 when a and b are equal. Its running time does not
// depend on where they first differ.
func compareDigest(a, b *[sha256.Size]byte) int {
	return subtle.ConstantTimeCompare(a[:], b[:])
}

func decodeDigest(s string) ([sha256.Size]byte, error) {
	var digest [sha256.Size]byte

	raw, err := hex.DecodeString(s)
	if err != nil {
		return digest, fmt.Errorf("%w: %v", ErrInvalidDigest, err)
	}
	if len(raw) != sha256.Size {
		return digest, fmt.Errorf("%w: got %d bytes", ErrInvalidDigest, len(raw))
	}

	copy(digest[:], raw)
	return digest, nil
}
