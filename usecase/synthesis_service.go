package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/unified-tts/domain/entities"
)

const (
	// UploadsDir is the subdirectory of the output directory holding submitted audio.
	UploadsDir = "uploads"

	outputExt = ".wav"
)

// SynthesisService routes form submissions to the selected engine
type SynthesisService struct {
	loaders   map[entities.EngineID]*EngineLoader
	outputDir string
	logger    *zap.Logger
}

// NewSynthesisService creates a new synthesis service writing into outputDir
func NewSynthesisService(outputDir string, loaders []*EngineLoader, logger *zap.Logger) (*SynthesisService, error) {
	if outputDir == "" {
		return nil, fmt.Errorf("output directory cannot be empty")
	}
	if err := os.MkdirAll(filepath.Join(outputDir, UploadsDir), 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	byEngine := make(map[entities.EngineID]*EngineLoader, len(loaders))
	for _, l := range loaders {
		byEngine[l.Engine()] = l
	}

	return &SynthesisService{
		loaders:   byEngine,
		outputDir: outputDir,
		logger:    logger,
	}, nil
}

// OutputDir returns the directory generated audio is written to.
func (s *SynthesisService) OutputDir() string {
	return s.outputDir
}

// UploadDir returns the directory submitted reference audio is staged in.
func (s *SynthesisService) UploadDir() string {
	return filepath.Join(s.outputDir, UploadsDir)
}

// Engines lists the configured engines in display order.
func (s *SynthesisService) Engines() []entities.EngineInfo {
	var infos []entities.EngineInfo
	for _, id := range entities.Engines {
		loader, ok := s.loaders[id]
		if !ok {
			continue
		}
		infos = append(infos, entities.EngineInfo{
			ID:     id,
			Name:   id.DisplayName(),
			Loaded: loader.Loaded(),
		})
	}
	return infos
}

// Synthesize validates req, runs it on its engine and returns where the audio went.
func (s *SynthesisService) Synthesize(ctx context.Context, req entities.SynthesisRequest) (*entities.SynthesisResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	loader, ok := s.loaders[req.Engine]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not configured", entities.ErrUnknownEngine, req.Engine)
	}

	engine, err := loader.Load(ctx)
	if err != nil {
		return nil, err
	}

	fileName := fmt.Sprintf("%s_%s%s", req.Engine, uuid.NewString(), outputExt)
	outputPath := filepath.Join(s.outputDir, fileName)

	if err := engine.Synthesize(ctx, req, outputPath); err != nil {
		s.logger.Error("Synthesis failed",
			zap.String("engine", req.Engine.ShortName()),
			zap.Error(err))
		return nil, fmt.Errorf("%s synthesis failed: %w", req.Engine.ShortName(), err)
	}

	result := &entities.SynthesisResult{
		Engine:   req.Engine,
		Path:     outputPath,
		FileName: fileName,
	}

	var info strings.Builder
	fmt.Fprintf(&info, "%s generated successfully\nPath: %s", req.Engine.ShortName(), outputPath)
	if req.Engine == entities.EngineIndexTTS2 {
		emotion := req.Index.Emotion
		result.Emotion = &emotion
		fmt.Fprintf(&info, "\nEmotion vector: %v", emotion[:])
	}
	result.Info = info.String()

	s.logger.Info("Synthesis completed",
		zap.String("engine", req.Engine.ShortName()),
		zap.String("file", fileName))

	return result, nil
}
