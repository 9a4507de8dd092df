package auth

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// GuardConfig holds the admin identity read once at startup.
// Fields:
// - Enabled: false opens the service to everyone (ENABLE_AUTH)
// - Username: exact, case-sensitive admin name (ADMIN_USERNAME)
// - Password: plaintext source for the stored digest (ADMIN_PASSWORD)
// - PasswordSHA256: hex digest used instead of Password when set (ADMIN_PASSWORD_SHA256)
type GuardConfig struct {
	Enabled        bool
	Username       string
	Password       string
	PasswordSHA256 string
}

// String redacts the password so the config can be logged or printed.
func (c GuardConfig) String() string {
	return fmt.Sprintf("GuardConfig{Enabled:%t Username:%q Password:[redacted] PasswordSHA256:[redacted]}",
		c.Enabled, c.Username)
}

// NewGuardConfigFromEnv reads the guard settings from the environment.
// ENABLE_AUTH defaults to true and must parse as a boolean; anything else is an
// error rather than a silent disable.
func NewGuardConfigFromEnv() (GuardConfig, error) {
	config := GuardConfig{
		Enabled:        true,
		Username:       os.Getenv("ADMIN_USERNAME"),
		Password:       os.Getenv("ADMIN_PASSWORD"),
		PasswordSHA256: strings.TrimSpace(os.Getenv("ADMIN_PASSWORD_SHA256")),
	}

	if enabledStr := strings.TrimSpace(os.Getenv("ENABLE_AUTH")); enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return config, fmt.Errorf("invalid ENABLE_AUTH value %q: %w", enabledStr, err)
		}
		config.Enabled = enabled
	}

	return config, nil
}

// ValidateGuardConfig rejects configurations that must not reach production:
// an enabled guard without a username, or without any password material.
// There is no fallback credential.
func ValidateGuardConfig(config GuardConfig) error {
	if config.PasswordSHA256 != "" {
		if _, err := decodeDigest(config.PasswordSHA256); err != nil {
			return err
		}
	}

	if !config.Enabled {
		return nil
	}

	if config.Username == "" {
		return ErrMissingUsername
	}

	if config.Password == "" && config.PasswordSHA256 == "" {
		return ErrMissingPassword
	}

	return nil
}
