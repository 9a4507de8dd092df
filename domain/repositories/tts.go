package repositories

import (
	"context"

	"github.com/satriahrh/unified-tts/domain/entities"
)

// TextToSpeech abstracts an inference engine
type TextToSpeech interface {
	// Synthesize runs inference for req and writes the audio to outputPath
	Synthesize(ctx context.Context, req entities.SynthesisRequest, outputPath string) error

	// Name identifies the engine in logs
	Name() string
}
