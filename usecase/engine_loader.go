package usecase

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/unified-tts/domain/entities"
	"github.com/satriahrh/unified-tts/domain/repositories"
)

// EngineFactory constructs an engine handle. It may be slow.
type EngineFactory func(ctx context.Context) (repositories.TextToSpeech, error)

type loadedEngine struct {
	tts repositories.TextToSpeech
}

// EngineLoader constructs its engine on first use and reuses it afterwards.
// A failed construction is not cached; the next Load tries again.
type EngineLoader struct {
	engine  entities.EngineID
	factory EngineFactory
	logger  *zap.Logger

	// sem admits one construction at a time; waiters give up when their
	// context ends.
	sem    chan struct{}
	handle atomic.Pointer[loadedEngine]
}

// NewEngineLoader creates a loader for engine backed by factory
func NewEngineLoader(engine entities.EngineID, factory EngineFactory, logger *zap.Logger) *EngineLoader {
	return &EngineLoader{
		engine:  engine,
		factory: factory,
		logger:  logger,
		sem:     make(chan struct{}, 1),
	}
}

// Engine returns the engine this loader serves.
func (l *EngineLoader) Engine() entities.EngineID {
	return l.engine
}

// Loaded reports whether the handle has been constructed. It never waits on
// a construction in progress.
func (l *EngineLoader) Loaded() bool {
	return l.handle.Load() != nil
}

// Load returns the engine handle, constructing it if needed. Concurrent
// callers wait for a single construction, or until ctx is done.
func (l *EngineLoader) Load(ctx context.Context) (repositories.TextToSpeech, error) {
	if h := l.handle.Load(); h != nil {
		return h.tts, nil
	}

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("load %s: %w", l.engine.ShortName(), ctx.Err())
	}
	defer func() { <-l.sem }()

	if h := l.handle.Load(); h != nil {
		return h.tts, nil
	}

	l.logger.Info("Loading TTS engine", zap.String("engine", l.engine.ShortName()))
	start := time.Now()

	handle, err := l.factory(ctx)
	if err != nil {
		l.logger.Error("Failed to load TTS engine",
			zap.String("engine", l.engine.ShortName()),
			zap.Error(err))
		return nil, fmt.Errorf("load %s: %w", l.engine.ShortName(), err)
	}

	l.handle.Store(&loadedEngine{tts: handle})
	l.logger.Info("TTS engine loaded",
		zap.String("engine", handle.Name()),
		zap.Duration("elapsed", time.Since(start)))

	return handle, nil
}
