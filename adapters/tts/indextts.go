package tts

import (
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/unified-tts/domain/entities"
	"github.com/satriahrh/unified-tts/domain/repositories"
)

const (
	defaultIndexTTSURL      = "http://127.0.0.1:7862"
	defaultIndexTTSModelDir = "/workspace/index-tts/checkpoints"
)

// IndexTTSConfig holds configuration for the IndexTTS adapter
// Required fields:
// - URL: base URL of the IndexTTS2 inference server
// Optional fields with defaults:
// - ModelDir: checkpoint directory on the inference host (default: "/workspace/index-tts/checkpoints")
// - Timeout: per-request timeout (default: 5m)
// - Runtime: device, precision and DeepSpeed hints
type IndexTTSConfig struct {
	URL      string
	ModelDir string
	Timeout  time.Duration
	Runtime  RuntimeOptions
}

// IndexTTS implements TextToSpeech against an IndexTTS2 inference server
type IndexTTS struct {
	client   *engineClient
	modelDir string
	runtime  RuntimeOptions
	logger   *zap.Logger
}

// Ensure IndexTTS implements the TextToSpeech interface
var _ repositories.TextToSpeech = (*IndexTTS)(nil)

type indexInferRequest struct {
	Text          string    `json:"text"`
	EmoVector     []float64 `json:"emo_vector"`
	EmoAlpha      float64   `json:"emo_alpha"`
	ModelDir      string    `json:"model_dir"`
	CfgPath       string    `json:"cfg_path"`
	Device        string    `json:"device"`
	UseFP16       bool      `json:"use_fp16"`
	UseDeepSpeed  bool      `json:"use_deepspeed"`
	UseCUDAKernel bool      `json:"use_cuda_kernel"`
	Verbose       bool      `json:"verbose"`
}

// NewIndexTTSConfigFromEnv creates a new IndexTTSConfig from environment variables
func NewIndexTTSConfigFromEnv() IndexTTSConfig {
	return IndexTTSConfig{
		URL:      envOr("INDEXTTS_URL", defaultIndexTTSURL),
		ModelDir: envOr("INDEXTTS_MODEL_DIR", defaultIndexTTSModelDir),
	}
}

// ValidateIndexTTSConfig validates the IndexTTSConfig
func ValidateIndexTTSConfig(config IndexTTSConfig) error {
	if err := validateEngineURL("IndexTTS2", config.URL); err != nil {
		return err
	}
	if config.Timeout < 0 {
		return fmt.Errorf("timeout must be positive, got %s", config.Timeout)
	}
	return nil
}

// NewIndexTTS creates an IndexTTS2 handle after checking the server is up.
func NewIndexTTS(ctx context.Context, config IndexTTSConfig, logger *zap.Logger) (*IndexTTS, error) {
	if err := ValidateIndexTTSConfig(config); err != nil {
		return nil, err
	}

	modelDir := config.ModelDir
	if modelDir == "" {
		modelDir = defaultIndexTTSModelDir
		logger.Info("Using default IndexTTS2 model dir", zap.String("modelDir", modelDir))
	}

	client := newEngineClient(entities.EngineIndexTTS2.ShortName(), config.URL, config.Timeout, logger)
	if err := client.checkHealth(ctx); err != nil {
		return nil, err
	}

	return &IndexTTS{
		client:   client,
		modelDir: modelDir,
		runtime:  config.Runtime,
		logger:   logger,
	}, nil
}

// Name implements repositories.TextToSpeech
func (x *IndexTTS) Name() string {
	return entities.EngineIndexTTS2.ShortName()
}

// Synthesize implements repositories.TextToSpeech
func (x *IndexTTS) Synthesize(ctx context.Context, req entities.SynthesisRequest, outputPath string) error {
	if req.Engine != entities.EngineIndexTTS2 {
		return fmt.Errorf("%w: IndexTTS2 cannot serve %q", entities.ErrUnknownEngine, req.Engine)
	}

	x.logger.Info("Running IndexTTS2 inference",
		zap.Int("genTextLength", len(req.GenText)),
		zap.Float64("emoAlpha", req.Index.EmoAlpha),
		zap.Float64s("emoVector", req.Index.Emotion[:]),
		zap.Bool("emoAudio", req.Index.EmoAudio != ""))

	if _, err := os.Stat(req.RefAudio); err != nil {
		return fmt.Errorf("reference audio: %w", err)
	}

	params := indexInferRequest{
		Text:         req.GenText,
		EmoVector:    append([]float64(nil), req.Index.Emotion[:]...),
		EmoAlpha:     req.Index.EmoAlpha,
		ModelDir:     x.modelDir,
		CfgPath:      path.Join(x.modelDir, "config.yaml"),
		Device:       x.runtime.Device(),
		UseFP16:      x.runtime.UseFP16,
		UseDeepSpeed: x.runtime.UseDeepSpeed,
		Verbose:      true,
	}

	files := map[string]string{
		"spk_audio_prompt": req.RefAudio,
		"emo_audio_prompt": req.Index.EmoAudio,
	}

	return x.client.infer(ctx, params, files, outputPath)
}
