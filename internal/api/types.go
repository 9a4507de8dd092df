package api

import (
	"context"

	"github.com/satriahrh/unified-tts/domain/entities"
)

// Synthesizer is what the HTTP layer needs from the synthesis service
type Synthesizer interface {
	Synthesize(ctx context.Context, req entities.SynthesisRequest) (*entities.SynthesisResult, error)
	Engines() []entities.EngineInfo
	OutputDir() string
	UploadDir() string
}

// Options tweak how the UI is served
type Options struct {
	// AuthMessage is shown above the login form.
	AuthMessage  string
	SecureCookie bool
}

// SynthesisResponse represents the response payload for a finished synthesis
type SynthesisResponse struct {
	File    string                  `json:"file"`
	URL     string                  `json:"url"`
	Engine  entities.EngineID       `json:"engine"`
	Info    string                  `json:"info"`
	Emotion *entities.EmotionVector `json:"emotion,omitempty"`
}

// EnginesResponse represents the engine listing
type EnginesResponse struct {
	Engines []entities.EngineInfo `json:"engines"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type loginPage struct {
	Message  string
	Username string
	Error    string
}

type emotionSlider struct {
	Name  string
	Value float64
}

type indexPage struct {
	Username    string
	AuthEnabled bool
	Engines     []entities.EngineInfo
	Selected    entities.EngineID
	RefText     string
	GenText     string
	F5          entities.F5Params
	Index       entities.IndexParams
	Emotions    []emotionSlider
	Result      *SynthesisResponse
	Error       string
}

func newIndexPage(req entities.SynthesisRequest) indexPage {
	emotions := make([]emotionSlider, len(entities.EmotionLabels))
	for i, label := range entities.EmotionLabels {
		emotions[i] = emotionSlider{Name: label, Value: req.Index.Emotion[i]}
	}

	return indexPage{
		Selected: req.Engine,
		RefText:  req.RefText,
		GenText:  req.GenText,
		F5:       req.F5,
		Index:    req.Index,
		Emotions: emotions,
	}
}
