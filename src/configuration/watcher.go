package configuration

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultWatchDebounce = 250 * time.Millisecond

// ProfileWatcher calls onChange when the profile file is written, created or
// replaced. Bursts of events within the debounce window collapse into one call.
type ProfileWatcher struct {
	path     string
	debounce time.Duration
	onChange func(path string)
	watcher  *fsnotify.Watcher
	log      zerolog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// WatchProfile starts watching path. The parent directory is watched so that
// editors replacing the file through a rename are noticed.
func WatchProfile(path string, debounce time.Duration, onChange func(path string)) (*ProfileWatcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("could not resolve profile path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("could not create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("could not watch %s: %w", filepath.Dir(absPath), err)
	}

	w := &ProfileWatcher{
		path:     absPath,
		debounce: debounce,
		onChange: onChange,
		watcher:  watcher,
		log:      log.With().Str("module", "Watcher").Logger(),
		closeCh:  make(chan struct{}),
	}
	w.wg.Add(1)
	go w.processLoop()

	w.log.Info().Str("path", absPath).Msg("Watching profile")
	return w, nil
}

func (w *ProfileWatcher) processLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.schedule()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("File watcher error")
		}
	}
}

func (w *ProfileWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.closeCh:
			return
		default:
		}
		w.log.Debug().Str("path", w.path).Msg("Profile changed")
		w.onChange(w.path)
	})
}

// Close stops watching. Pending notifications are dropped.
func (w *ProfileWatcher) Close() error {
	w.mu.Lock()
	select {
	case <-w.closeCh:
		w.mu.Unlock()
		return nil
	default:
		close(w.closeCh)
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	err := w.watcher.Close()
	w.wg.Wait()
	return err
}
