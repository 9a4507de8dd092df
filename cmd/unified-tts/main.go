package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/satriahrh/unified-tts/adapters/tts"
	"github.com/satriahrh/unified-tts/domain/entities"
	"github.com/satriahrh/unified-tts/domain/repositories"
	"github.com/satriahrh/unified-tts/internal/api"
	"github.com/satriahrh/unified-tts/internal/auth"
	"github.com/satriahrh/unified-tts/internal/config"
	"github.com/satriahrh/unified-tts/usecase"
)

var Version = "dev"

const (
	shutdownTimeout = 10 * time.Second
	maxUploadBody   = "64M"
)

var rootCmd = &cobra.Command{
	Use:           "unified-tts",
	Short:         "Password-gated web UI for F5-TTS and IndexTTS2",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("unified-tts %s\n", Version)
	},
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Read a password from stdin and print the ADMIN_PASSWORD_SHA256 value for it",
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword(cmd.InOrStdin())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), auth.HashPassword(password))
		return nil
	},
}

var (
	flagHost             string
	flagPort             int
	flagCPU              bool
	flagFP16             bool
	flagDeepSpeed        bool
	flagF5TTSModelDir    string
	flagIndexTTSModelDir string
	flagOutputDir        string
)

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(hashPasswordCmd)

	flags := rootCmd.Flags()
	flags.StringVar(&flagHost, "host", "", "Listen host (overrides HOST)")
	flags.IntVar(&flagPort, "port", 0, "Listen port (overrides PORT)")
	flags.BoolVar(&flagCPU, "cpu", false, "Run inference on CPU (overrides USE_CPU)")
	flags.BoolVar(&flagFP16, "fp16", false, "Use FP16 inference (overrides USE_FP16)")
	flags.BoolVar(&flagDeepSpeed, "deepspeed", false, "Enable DeepSpeed for IndexTTS2 (overrides USE_DEEPSPEED)")
	flags.StringVar(&flagF5TTSModelDir, "f5tts-model-dir", "", "F5-TTS model directory (overrides F5TTS_MODEL_DIR)")
	flags.StringVar(&flagIndexTTSModelDir, "indextts-model-dir", "", "IndexTTS2 checkpoint directory (overrides INDEXTTS_MODEL_DIR)")
	flags.StringVar(&flagOutputDir, "output-dir", "", "Directory for generated audio (overrides OUTPUT_DIR)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Initialize logger
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	guard, err := auth.NewGuard(cfg.Auth, logger)
	if err != nil {
		logger.Error("Refusing to start", zap.Error(err))
		return err
	}

	sessions, err := auth.NewSessionIssuer(cfg.Session.Secret, cfg.Session.TTL)
	if err != nil {
		return err
	}
	if cfg.Session.Generated && guard.Enabled() {
		logger.Warn("SESSION_SECRET not set, sessions will not survive a restart")
	}

	// Initialize engines and usecase services
	loaders := []*usecase.EngineLoader{
		usecase.NewEngineLoader(entities.EngineF5TTS, f5ttsFactory(cfg.F5TTS, logger), logger),
		usecase.NewEngineLoader(entities.EngineIndexTTS2, indexTTSFactory(cfg.IndexTTS, logger), logger),
	}
	service, err := usecase.NewSynthesisService(cfg.Output.Dir, loaders, logger)
	if err != nil {
		return err
	}

	janitor := usecase.NewOutputJanitor(cfg.Output.Dir, cfg.Output.Retention, logger)
	janitor.Start()
	defer janitor.Stop()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = api.NewHTTPErrorHandler(logger)

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLoggerWithConfig(requestLoggerConfig(logger)))
	e.Use(middleware.BodyLimit(maxUploadBody))

	handler := api.NewHandler(guard, sessions, service, api.Options{
		AuthMessage:  cfg.AuthMessage,
		SecureCookie: cfg.Session.SecureCookie,
	}, logger)
	if err := api.InitRoutes(e, handler); err != nil {
		return err
	}

	// Graceful shutdown
	serverErr := make(chan error, 1)
	go func() {
		if err := e.Start(cfg.Address()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	logger.Info("Unified TTS server started",
		zap.String("address", cfg.Address()),
		zap.Bool("auth_enabled", guard.Enabled()),
		zap.String("device", cfg.Runtime.Device()),
		zap.String("output_dir", cfg.Output.Dir))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-serverErr:
		logger.Error("Server failed", zap.Error(err))
		return err
	}

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	logger.Info("Server exited")
	return nil
}

// applyFlags lets explicitly set flags win over the environment.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host = flagHost
	}
	if flags.Changed("port") {
		cfg.Server.Port = flagPort
	}
	if flags.Changed("cpu") {
		cfg.Runtime.UseCPU = flagCPU
	}
	if flags.Changed("fp16") {
		cfg.Runtime.UseFP16 = flagFP16
	}
	if flags.Changed("deepspeed") {
		cfg.Runtime.UseDeepSpeed = flagDeepSpeed
	}
	if flags.Changed("f5tts-model-dir") {
		cfg.F5TTS.ModelDir = flagF5TTSModelDir
	}
	if flags.Changed("indextts-model-dir") {
		cfg.IndexTTS.ModelDir = flagIndexTTSModelDir
	}
	if flags.Changed("output-dir") {
		cfg.Output.Dir = flagOutputDir
	}
	cfg.ApplyRuntime()
}

func f5ttsFactory(cfg tts.F5TTSConfig, logger *zap.Logger) usecase.EngineFactory {
	return func(ctx context.Context) (repositories.TextToSpeech, error) {
		if cfg.URL == tts.MockURL {
			return tts.NewMock(entities.EngineF5TTS, logger), nil
		}
		engine, err := tts.NewF5TTS(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return engine, nil
	}
}

func indexTTSFactory(cfg tts.IndexTTSConfig, logger *zap.Logger) usecase.EngineFactory {
	return func(ctx context.Context) (repositories.TextToSpeech, error) {
		if cfg.URL == tts.MockURL {
			return tts.NewMock(entities.EngineIndexTTS2, logger), nil
		}
		engine, err := tts.NewIndexTTS(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return engine, nil
	}
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

func requestLoggerConfig(logger *zap.Logger) middleware.RequestLoggerConfig {
	return middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				logger.Warn("Request failed", append(fields, zap.Error(v.Error))...)
				return nil
			}
			logger.Info("Request", fields...)
			return nil
		},
	}
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
