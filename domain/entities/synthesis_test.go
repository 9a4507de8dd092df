package entities

import (
	"errors"
	"math"
	"testing"
)

func TestParseEngineID(t *testing.T) {
	tests := map[string]EngineID{
		"f5tts":     EngineF5TTS,
		"F5-TTS":    EngineF5TTS,
		" f5-tts ":  EngineF5TTS,
		"indextts2": EngineIndexTTS2,
		"IndexTTS2": EngineIndexTTS2,
	}

	for in, want := range tests {
		got, err := ParseEngineID(in)
		if err != nil {
			t.Errorf("ParseEngineID(%q) failed: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseEngineID(%q) = %s, want %s", in, got, want)
		}
	}

	if _, err := ParseEngineID("coqui"); !errors.Is(err, ErrUnknownEngine) {
		t.Errorf("Expected ErrUnknownEngine, got %v", err)
	}
}

func TestSynthesisRequest_Validate(t *testing.T) {
	base := func(engine EngineID) SynthesisRequest {
		req := NewSynthesisRequest(engine)
		req.RefAudio = "/tmp/ref.wav"
		req.GenText = "Hello there"
		return req
	}

	tests := []struct {
		name    string
		mutate  func(*SynthesisRequest)
		engine  EngineID
		wantErr error
	}{
		{"valid f5", func(r *SynthesisRequest) {}, EngineF5TTS, nil},
		{"valid index", func(r *SynthesisRequest) {}, EngineIndexTTS2, nil},
		{"unknown engine", func(r *SynthesisRequest) { r.Engine = "other" }, EngineF5TTS, ErrUnknownEngine},
		{"missing ref audio", func(r *SynthesisRequest) { r.RefAudio = "" }, EngineF5TTS, ErrMissingRefAudio},
		{"blank text", func(r *SynthesisRequest) { r.GenText = " \n\t" }, EngineIndexTTS2, ErrEmptyText},
		{"speed too low", func(r *SynthesisRequest) { r.F5.Speed = 0.4 }, EngineF5TTS, ErrInvalidParameter},
		{"speed NaN", func(r *SynthesisRequest) { r.F5.Speed = math.NaN() }, EngineF5TTS, ErrInvalidParameter},
		{"nfe too high", func(r *SynthesisRequest) { r.F5.NFESteps = 65 }, EngineF5TTS, ErrInvalidParameter},
		{"f5 ignores index params", func(r *SynthesisRequest) { r.Index.EmoAlpha = 5 }, EngineF5TTS, nil},
		{"emo alpha above one", func(r *SynthesisRequest) { r.Index.EmoAlpha = 1.01 }, EngineIndexTTS2, ErrInvalidParameter},
		{"negative emotion", func(r *SynthesisRequest) { r.Index.Emotion[7] = -0.1 }, EngineIndexTTS2, ErrInvalidParameter},
		{"index ignores f5 params", func(r *SynthesisRequest) { r.F5.Speed = 0 }, EngineIndexTTS2, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base(tt.engine)
			tt.mutate(&req)

			err := req.Validate()
			if tt.wantErr == nil && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestEngineID_Names(t *testing.T) {
	if EngineF5TTS.DisplayName() != "F5-TTS (Fast & Efficient)" {
		t.Errorf("Unexpected display name %q", EngineF5TTS.DisplayName())
	}
	if EngineIndexTTS2.ShortName() != "IndexTTS2" {
		t.Errorf("Unexpected short name %q", EngineIndexTTS2.ShortName())
	}
}
