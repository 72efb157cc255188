package catalog

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 500 * time.Millisecond

// SeedWatcher reloads seed directories when their YAML files change and
// hands the fresh seeds to Apply. Bursts of events within Debounce collapse
// into one reload.
type SeedWatcher struct {
	Dirs     []string
	Loader   *Loader
	Apply    func(ctx context.Context, seeds []Seed) error
	Debounce time.Duration
	Logger   *zap.Logger
}

// Run watches until ctx is done. It returns an error only if the watch
// cannot be set up.
func (w *SeedWatcher) Run(ctx context.Context) error {
	logger := w.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("seed watcher: %w", err)
	}
	defer fw.Close()

	for _, dir := range w.Dirs {
		if err := addTree(fw, dir); err != nil {
			return fmt.Errorf("seed watcher: %w", err)
		}
	}
	logger.Info("watching seed directories", zap.Strings("dirs", w.Dirs))

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := addTree(fw, ev.Name); err != nil {
						logger.Warn("seed watcher could not follow directory", zap.String("dir", ev.Name), zap.Error(err))
					}
					continue
				}
			}
			if !isYAML(ev.Name) || ev.Op == fsnotify.Chmod {
				continue
			}
			logger.Debug("seed file changed", zap.String("file", ev.Name), zap.String("op", ev.Op.String()))
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Error("seed watcher error", zap.Error(err))

		case <-fire:
			fire = nil
			seeds, err := w.Loader.LoadAll(w.Dirs)
			if err != nil {
				logger.Error("seed reload failed", zap.Error(err))
				continue
			}
			if err := w.Apply(ctx, seeds); err != nil {
				logger.Error("seed apply failed", zap.Error(err))
				continue
			}
			logger.Info("seeds reloaded", zap.Int("seeds", len(seeds)))
		}
	}
}

func addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
}
