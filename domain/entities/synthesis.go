package entities

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// EngineID identifies one of the inference engines behind the form
type EngineID string

const (
	EngineF5TTS     EngineID = "f5tts"
	EngineIndexTTS2 EngineID = "indextts2"
)

var (
	ErrUnknownEngine     = errors.New("unknown TTS engine")
	ErrMissingRefAudio   = errors.New("reference audio is required")
	ErrEmptyText         = errors.New("text to synthesize cannot be empty")
	ErrInvalidParameter  = errors.New("invalid synthesis parameter")
	ErrEngineUnavailable = errors.New("TTS engine unavailable")
)

// Engines lists every supported engine in display order.
var Engines = []EngineID{EngineF5TTS, EngineIndexTTS2}

// DisplayName returns the label shown in the engine picker.
func (e EngineID) DisplayName() string {
	switch e {
	case EngineF5TTS:
		return "F5-TTS (Fast & Efficient)"
	case EngineIndexTTS2:
		return "IndexTTS2 (Emotion Control)"
	default:
		return string(e)
	}
}

// ShortName is the name used in status messages.
func (e EngineID) ShortName() string {
	switch e {
	case EngineF5TTS:
		return "F5-TTS"
	case EngineIndexTTS2:
		return "IndexTTS2"
	default:
		return string(e)
	}
}

// ParseEngineID accepts either an engine ID or its short name, ignoring case.
func ParseEngineID(s string) (EngineID, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "f5tts", "f5-tts":
		return EngineF5TTS, nil
	case "indextts2", "indextts", "index-tts2":
		return EngineIndexTTS2, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEngine, s)
	}
}

// EngineInfo describes an engine for listings
type EngineInfo struct {
	ID     EngineID `json:"id"`
	Name   string   `json:"name"`
	Loaded bool     `json:"loaded"`
}

// EmotionLabels names the dimensions of an EmotionVector, in order.
var EmotionLabels = [8]string{"happy", "angry", "sad", "fear", "disgust", "low", "surprise", "calm"}

// EmotionVector weights the eight IndexTTS2 emotions, each in [0, 1].
type EmotionVector [8]float64

// F5Params are the F5-TTS specific knobs
type F5Params struct {
	RemoveSilence bool    `json:"remove_silence"`
	Speed         float64 `json:"speed"`
	NFESteps      int     `json:"nfe_steps"`
}

// IndexParams are the IndexTTS2 specific knobs
type IndexParams struct {
	EmoAudio string        `json:"emo_audio,omitempty"`
	EmoAlpha float64       `json:"emo_alpha"`
	Emotion  EmotionVector `json:"emotion"`
}

// DefaultF5Params returns the form defaults for F5-TTS.
func DefaultF5Params() F5Params {
	return F5Params{Speed: 1.0, NFESteps: 32}
}

// DefaultIndexParams returns the form defaults for IndexTTS2.
func DefaultIndexParams() IndexParams {
	return IndexParams{EmoAlpha: 0.65}
}

// SynthesisRequest is one submission of the synthesis form.
// RefAudio and Index.EmoAudio are paths to files on local disk.
type SynthesisRequest struct {
	Engine   EngineID    `json:"engine"`
	RefAudio string      `json:"ref_audio"`
	RefText  string      `json:"ref_text"`
	GenText  string      `json:"gen_text"`
	F5       F5Params    `json:"f5"`
	Index    IndexParams `json:"index"`
}

// NewSynthesisRequest returns a request for engine with default parameters.
func NewSynthesisRequest(engine EngineID) SynthesisRequest {
	return SynthesisRequest{
		Engine: engine,
		F5:     DefaultF5Params(),
		Index:  DefaultIndexParams(),
	}
}

// Validate checks the request before it reaches an engine. Only the
// parameters of the selected engine are range checked.
func (r SynthesisRequest) Validate() error {
	if r.Engine != EngineF5TTS && r.Engine != EngineIndexTTS2 {
		return fmt.Errorf("%w: %q", ErrUnknownEngine, r.Engine)
	}

	if r.RefAudio == "" {
		return ErrMissingRefAudio
	}

	if strings.TrimSpace(r.GenText) == "" {
		return ErrEmptyText
	}

	switch r.Engine {
	case EngineF5TTS:
		if err := checkRange("speed", r.F5.Speed, 0.5, 2.0); err != nil {
			return err
		}
		if r.F5.NFESteps < 4 || r.F5.NFESteps > 64 {
			return fmt.Errorf("%w: nfe_steps must be between 4 and 64, got %d", ErrInvalidParameter, r.F5.NFESteps)
		}
	case EngineIndexTTS2:
		if err := checkRange("emo_alpha", r.Index.EmoAlpha, 0, 1); err != nil {
			return err
		}
		for i, v := range r.Index.Emotion {
			if err := checkRange("emo_"+EmotionLabels[i], v, 0, 1); err != nil {
				return err
			}
		}
	}

	return nil
}

func checkRange(name string, v, min, max float64) error {
	if math.IsNaN(v) || v < min || v > max {
		return fmt.Errorf("%w: %s must be between %g and %g, got %g", ErrInvalidParameter, name, min, max, v)
	}
	return nil
}

// SynthesisResult describes a finished synthesis
type SynthesisResult struct {
	Engine   EngineID       `json:"engine"`
	Path     string         `json:"-"`
	FileName string         `json:"file"`
	Info     string         `json:"info"`
	Emotion  *EmotionVector `json:"emotion,omitempty"`
}
