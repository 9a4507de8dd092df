package usecase

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/unified-tts/domain/entities"
)

// OutputJanitor removes generated audio older than the retention period
type OutputJanitor struct {
	dir       string
	retention time.Duration
	interval  time.Duration
	logger    *zap.Logger
	stopChan  chan struct{}
	doneChan  chan struct{}
	started   bool
}

// NewOutputJanitor creates a janitor for dir. A zero retention disables cleanup.
func NewOutputJanitor(dir string, retention time.Duration, logger *zap.Logger) *OutputJanitor {
	interval := retention / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	if interval > 30*time.Minute {
		interval = 30 * time.Minute
	}

	return &OutputJanitor{
		dir:       dir,
		retention: retention,
		interval:  interval,
		logger:    logger,
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
	}
}

// Start begins the background cleanup process
func (j *OutputJanitor) Start() {
	if j.retention <= 0 {
		j.logger.Info("Output cleanup disabled")
		return
	}

	j.started = true
	go j.cleanupLoop()
	j.logger.Info("Output cleanup started",
		zap.String("dir", j.dir),
		zap.Duration("retention", j.retention),
		zap.Duration("interval", j.interval))
}

// Stop stops the cleanup loop and waits for it to exit
func (j *OutputJanitor) Stop() {
	if !j.started {
		return
	}

	select {
	case <-j.stopChan:
	default:
		close(j.stopChan)
	}
	<-j.doneChan
	j.logger.Info("Output cleanup stopped")
}

func (j *OutputJanitor) cleanupLoop() {
	defer close(j.doneChan)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stopChan:
			return
		case now := <-ticker.C:
			j.RunOnce(now)
		}
	}
}

// RunOnce deletes synthesized outputs and staged uploads last modified before
// now minus retention. Files the service did not name are left alone, so the
// output directory may be shared. It returns how many files were removed.
func (j *OutputJanitor) RunOnce(now time.Time) int {
	cutoff := now.Add(-j.retention)
	removed := 0

	dirs := []struct {
		path  string
		owned func(name string) bool
	}{
		{j.dir, isOutputName},
		{filepath.Join(j.dir, UploadsDir), isUploadName},
	}

	for _, d := range dirs {
		dir := d.path
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				j.logger.Error("Failed to list output directory", zap.String("dir", dir), zap.Error(err))
			}
			continue
		}

		for _, entry := range entries {
			if !entry.Type().IsRegular() || !d.owned(entry.Name()) {
				continue
			}
			info, err := entry.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				continue
			}

			path := filepath.Join(dir, entry.Name())
			if err := os.Remove(path); err != nil {
				j.logger.Warn("Failed to remove old output", zap.String("path", path), zap.Error(err))
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		j.logger.Info("Removed old outputs", zap.Int("count", removed))
	}
	return removed
}

// isOutputName matches "<engine>_<uuid>.wav" and the ".<name>.*.part" temp
// files left behind by an interrupted write.
func isOutputName(name string) bool {
	if strings.HasPrefix(name, ".") && strings.HasSuffix(name, ".part") {
		inner, _, ok := strings.Cut(name[1:], outputExt+".")
		if !ok {
			return false
		}
		name = inner + outputExt
	}

	base, ok := strings.CutSuffix(name, outputExt)
	if !ok {
		return false
	}
	for _, engine := range entities.Engines {
		if id, ok := strings.CutPrefix(base, string(engine)+"_"); ok {
			return isUUID(id)
		}
	}
	return false
}

// isUploadName matches the "<uuid><ext>" names given to staged uploads.
func isUploadName(name string) bool {
	return isUUID(strings.TrimSuffix(name, filepath.Ext(name)))
}

func isUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
