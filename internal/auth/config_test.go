package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestNewGuardConfigFromEnv(t *testing.T) {
	t.Setenv("ENABLE_AUTH", "")
	t.Setenv("ADMIN_USERNAME", "admin")
	t.Setenv("ADMIN_PASSWORD", "changeme")
	t.Setenv("ADMIN_PASSWORD_SHA256", "")

	config, err := NewGuardConfigFromEnv()
	if err != nil {
		t.Fatalf("Failed to read guard config: %v", err)
	}

	if !config.Enabled {
		t.Error("Expected authentication to be enabled by default")
	}
	if config.Username != "admin" || config.Password != "changeme" {
		t.Errorf("Unexpected credentials in config: %s", config)
	}
}

func TestNewGuardConfigFromEnv_EnableFlag(t *testing.T) {
	tests := []struct {
		value   string
		want    bool
		wantErr bool
	}{
		{"true", true, false},
		{"TRUE", true, false},
		{"1", true, false},
		{"false", false, false},
		{"False", false, false},
		{"0", false, false},
		{"  false ", false, false},
		{"yes", false, true},
		{"disabled", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("ENABLE_AUTH", tt.value)

			config, err := NewGuardConfigFromEnv()
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error for ENABLE_AUTH=%q", tt.value)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if config.Enabled != tt.want {
				t.Errorf("ENABLE_AUTH=%q: Enabled = %t, want %t", tt.value, config.Enabled, tt.want)
			}
		})
	}
}

func TestValidateGuardConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  GuardConfig
		wantErr error
	}{
		{"valid", GuardConfig{Enabled: true, Username: "admin", Password: "changeme"}, nil},
		{"valid digest", GuardConfig{Enabled: true, Username: "admin", PasswordSHA256: HashPassword("x")}, nil},
		{"disabled needs nothing", GuardConfig{Enabled: false}, nil},
		{"missing username", GuardConfig{Enabled: true, Password: "changeme"}, ErrMissingUsername},
		{"missing password", GuardConfig{Enabled: true, Username: "admin"}, ErrMissingPassword},
		{"bad digest", GuardConfig{Enabled: true, Username: "admin", PasswordSHA256: "not-hex"}, ErrInvalidDigest},
		{"bad digest while disabled", GuardConfig{Enabled: false, PasswordSHA256: "abcd"}, ErrInvalidDigest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGuardConfig(tt.config)
			if tt.wantErr == nil && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestGuardConfig_StringRedactsPassword(t *testing.T) {
	config := GuardConfig{Enabled: true, Username: "admin", Password: "hunter2", PasswordSHA256: HashPassword("hunter2")}

	s := config.String()
	if strings.Contains(s, "hunter2") || strings.Contains(s, config.PasswordSHA256) {
		t.Errorf("String() leaks password material: %s", s)
	}
	if !strings.Contains(s, "admin") {
		t.Errorf("String() should include the username: %s", s)
	}
}
