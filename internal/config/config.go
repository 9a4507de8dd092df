// Package config loads the process configuration from the environment and an
// optional .env file. It is read once at startup and not modified afterwards.
package config

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/satriahrh/unified-tts/adapters/tts"
	"github.com/satriahrh/unified-tts/internal/auth"
)

const (
	defaultHost            = "0.0.0.0"
	defaultPort            = 7860
	defaultAuthMessage     = "Please sign in with the admin account"
	defaultSessionTTL      = 24 * time.Hour
	defaultOutputDir       = "/workspace/outputs"
	defaultOutputRetention = 24 * time.Hour
	defaultEngineTimeout   = 5 * time.Minute
	sessionSecretBytes     = 32
)

// ServerConfig holds the listen address.
type ServerConfig struct {
	Host string
	Port int
}

// SessionConfig holds the login session settings.
type SessionConfig struct {
	Secret       []byte
	TTL          time.Duration
	SecureCookie bool
	// Generated is true when no SESSION_SECRET was configured and a random
	// one was made for this process.
	Generated bool
}

// OutputConfig holds where generated audio lives and for how long.
type OutputConfig struct {
	Dir       string
	Retention time.Duration
}

// Config is the root configuration structure.
type Config struct {
	Server      ServerConfig
	Auth        auth.GuardConfig
	AuthMessage string
	Session     SessionConfig
	Runtime     tts.RuntimeOptions
	F5TTS       tts.F5TTSConfig
	IndexTTS    tts.IndexTTSConfig
	Output      OutputConfig
	LogLevel    string
}

// Load reads the .env file named by ENV_FILE (default ".env") if it exists,
// then builds a Config from the environment. Call Validate before use.
func Load() (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	guard, err := auth.NewGuardConfigFromEnv()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("HOST", defaultHost),
		},
		Auth:        guard,
		AuthMessage: getEnv("AUTH_MESSAGE", defaultAuthMessage),
		F5TTS:       tts.NewF5TTSConfigFromEnv(),
		IndexTTS:    tts.NewIndexTTSConfigFromEnv(),
		Output: OutputConfig{
			Dir: getEnv("OUTPUT_DIR", defaultOutputDir),
		},
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	cfg.Server.Port, err = getInt("PORT", defaultPort)
	collect(err)
	cfg.Runtime.UseCPU, err = getBool("USE_CPU", false)
	collect(err)
	cfg.Runtime.UseFP16, err = getBool("USE_FP16", false)
	collect(err)
	cfg.Runtime.UseDeepSpeed, err = getBool("USE_DEEPSPEED", false)
	collect(err)
	cfg.Session.SecureCookie, err = getBool("SESSION_SECURE_COOKIE", false)
	collect(err)
	cfg.Session.TTL, err = getDuration("SESSION_TTL", defaultSessionTTL)
	collect(err)
	cfg.Output.Retention, err = getDuration("OUTPUT_RETENTION", defaultOutputRetention)
	collect(err)

	timeout, err := getDuration("ENGINE_TIMEOUT", defaultEngineTimeout)
	collect(err)
	cfg.F5TTS.Timeout = timeout
	cfg.IndexTTS.Timeout = timeout

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if secret := os.Getenv("SESSION_SECRET"); secret != "" {
		cfg.Session.Secret = []byte(secret)
	} else {
		cfg.Session.Secret = make([]byte, sessionSecretBytes)
		if _, err := rand.Read(cfg.Session.Secret); err != nil {
			return nil, fmt.Errorf("failed to generate session secret: %w", err)
		}
		cfg.Session.Generated = true
	}

	cfg.ApplyRuntime()
	return cfg, nil
}

// ApplyRuntime copies the runtime hints into both engine configs. Call it
// again after changing Runtime.
func (c *Config) ApplyRuntime() {
	c.F5TTS.Runtime = c.Runtime
	c.IndexTTS.Runtime = c.Runtime
}

// Validate reports every problem that must stop the process from starting.
func (c *Config) Validate() error {
	var errs []error

	if err := auth.ValidateGuardConfig(c.Auth); err != nil {
		errs = append(errs, err)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	if len(c.Session.Secret) == 0 {
		errs = append(errs, auth.ErrEmptySecret)
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, fmt.Errorf("session TTL must be positive, got %s", c.Session.TTL))
	}

	if c.F5TTS.URL != tts.MockURL {
		if err := tts.ValidateF5TTSConfig(c.F5TTS); err != nil {
			errs = append(errs, err)
		}
	}
	if c.IndexTTS.URL != tts.MockURL {
		if err := tts.ValidateIndexTTSConfig(c.IndexTTS); err != nil {
			errs = append(errs, err)
		}
	}

	if c.Output.Dir == "" {
		errs = append(errs, fmt.Errorf("output directory cannot be empty"))
	}
	if c.Output.Retention < 0 {
		errs = append(errs, fmt.Errorf("output retention cannot be negative, got %s", c.Output.Retention))
	}

	return errors.Join(errs...)
}

// Address returns host:port for the HTTP listener.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	return b, nil
}

func getInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	return d, nil
}
