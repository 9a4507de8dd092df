package tts

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/unified-tts/domain/entities"
	"github.com/satriahrh/unified-tts/domain/repositories"
)

// MockURL selects the mock engine in place of an inference server URL.
const MockURL = "mock"

const (
	mockSampleRate    = 24000
	mockPerCharacter  = 60 * time.Millisecond
	mockMaxDuration   = 30 * time.Second
	wavHeaderSize     = 44
	pcm16BytesPerSamp = 2
)

// Mock is a stand-in engine that writes silent 16-bit mono WAV audio whose
// length grows with the input text. It needs no inference server.
type Mock struct {
	engine entities.EngineID
	logger *zap.Logger
}

// Ensure Mock implements the TextToSpeech interface
var _ repositories.TextToSpeech = (*Mock)(nil)

// NewMock creates a mock engine answering for engine.
func NewMock(engine entities.EngineID, logger *zap.Logger) *Mock {
	return &Mock{
		engine: engine,
		logger: logger,
	}
}

// Name implements repositories.TextToSpeech
func (m *Mock) Name() string {
	return "mock " + m.engine.ShortName()
}

// Synthesize implements repositories.TextToSpeech
func (m *Mock) Synthesize(ctx context.Context, req entities.SynthesisRequest, outputPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if req.Engine != m.engine {
		return fmt.Errorf("%w: mock %s cannot serve %q", entities.ErrUnknownEngine, m.engine, req.Engine)
	}

	duration := time.Duration(len([]rune(req.GenText))) * mockPerCharacter
	if duration > mockMaxDuration {
		duration = mockMaxDuration
	}
	samples := int(duration * mockSampleRate / time.Second)

	m.logger.Info("Processing mock text-to-speech",
		zap.String("engine", string(m.engine)),
		zap.Int("genTextLength", len(req.GenText)),
		zap.Duration("duration", duration))

	if _, err := writeFileAtomic(outputPath, bytes.NewReader(silentWAV(mockSampleRate, samples))); err != nil {
		return err
	}
	return nil
}

// silentWAV returns a PCM16 mono RIFF/WAVE file with the given number of zero samples.
func silentWAV(sampleRate, samples int) []byte {
	dataSize := samples * pcm16BytesPerSamp
	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+dataSize))

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))                           // fmt chunk size
	binary.Write(buf, binary.LittleEndian, uint16(1))                            // PCM
	binary.Write(buf, binary.LittleEndian, uint16(1))                            // mono
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))                   // sample rate
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*pcm16BytesPerSamp)) // byte rate
	binary.Write(buf, binary.LittleEndian, uint16(pcm16BytesPerSamp))            // block align
	binary.Write(buf, binary.LittleEndian, uint16(16))                           // bits per sample

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(make([]byte, dataSize))

	return buf.Bytes()
}
