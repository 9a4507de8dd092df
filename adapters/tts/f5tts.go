package tts

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/unified-tts/domain/entities"
	"github.com/satriahrh/unified-tts/domain/repositories"
)

const (
	defaultF5TTSURL      = "http://127.0.0.1:7861"
	defaultF5TTSModelDir = "/workspace/F5-TTS"
)

// F5TTSConfig holds configuration for the F5TTS adapter
// Required fields:
// - URL: base URL of the F5-TTS inference server
// Optional fields with defaults:
// - ModelDir: model directory on the inference host (default: "/workspace/F5-TTS")
// - Timeout: per-request timeout (default: 5m)
// - Runtime: device and precision hints
type F5TTSConfig struct {
	URL      string
	ModelDir string
	Timeout  time.Duration
	Runtime  RuntimeOptions
}

// F5TTS implements TextToSpeech against an F5-TTS inference server
type F5TTS struct {
	client   *engineClient
	modelDir string
	runtime  RuntimeOptions
	logger   *zap.Logger
}

// Ensure F5TTS implements the TextToSpeech interface
var _ repositories.TextToSpeech = (*F5TTS)(nil)

type f5InferRequest struct {
	RefText       string  `json:"ref_text"`
	GenText       string  `json:"gen_text"`
	RemoveSilence bool    `json:"remove_silence"`
	Speed         float64 `json:"speed"`
	NFEStep       int     `json:"nfe_step"`
	ModelDir      string  `json:"model_dir"`
	Device        string  `json:"device"`
	UseFP16       bool    `json:"use_fp16"`
}

// NewF5TTSConfigFromEnv creates a new F5TTSConfig from environment variables
func NewF5TTSConfigFromEnv() F5TTSConfig {
	return F5TTSConfig{
		URL:      envOr("F5TTS_URL", defaultF5TTSURL),
		ModelDir: envOr("F5TTS_MODEL_DIR", defaultF5TTSModelDir),
	}
}

// ValidateF5TTSConfig validates the F5TTSConfig
func ValidateF5TTSConfig(config F5TTSConfig) error {
	if err := validateEngineURL("F5-TTS", config.URL); err != nil {
		return err
	}
	if config.Timeout < 0 {
		return fmt.Errorf("timeout must be positive, got %s", config.Timeout)
	}
	return nil
}

// NewF5TTS creates an F5-TTS handle. It fails unless the inference server is
// reachable, so callers can retry construction later.
func NewF5TTS(ctx context.Context, config F5TTSConfig, logger *zap.Logger) (*F5TTS, error) {
	if err := ValidateF5TTSConfig(config); err != nil {
		return nil, err
	}

	modelDir := config.ModelDir
	if modelDir == "" {
		modelDir = defaultF5TTSModelDir
		logger.Info("Using default F5-TTS model dir", zap.String("modelDir", modelDir))
	}

	client := newEngineClient(entities.EngineF5TTS.ShortName(), config.URL, config.Timeout, logger)
	if err := client.checkHealth(ctx); err != nil {
		return nil, err
	}

	return &F5TTS{
		client:   client,
		modelDir: modelDir,
		runtime:  config.Runtime,
		logger:   logger,
	}, nil
}

// Name implements repositories.TextToSpeech
func (f *F5TTS) Name() string {
	return entities.EngineF5TTS.ShortName()
}

// Synthesize implements repositories.TextToSpeech
func (f *F5TTS) Synthesize(ctx context.Context, req entities.SynthesisRequest, outputPath string) error {
	if req.Engine != entities.EngineF5TTS {
		return fmt.Errorf("%w: F5-TTS cannot serve %q", entities.ErrUnknownEngine, req.Engine)
	}

	f.logger.Info("Running F5-TTS inference",
		zap.Int("genTextLength", len(req.GenText)),
		zap.Float64("speed", req.F5.Speed),
		zap.Int("nfeSteps", req.F5.NFESteps),
		zap.Bool("removeSilence", req.F5.RemoveSilence))

	if _, err := os.Stat(req.RefAudio); err != nil {
		return fmt.Errorf("reference audio: %w", err)
	}

	params := f5InferRequest{
		RefText:       req.RefText,
		GenText:       req.GenText,
		RemoveSilence: req.F5.RemoveSilence,
		Speed:         req.F5.Speed,
		NFEStep:       req.F5.NFESteps,
		ModelDir:      f.modelDir,
		Device:        f.runtime.Device(),
		UseFP16:       f.runtime.UseFP16,
	}

	return f.client.infer(ctx, params, map[string]string{"ref_audio": req.RefAudio}, outputPath)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
