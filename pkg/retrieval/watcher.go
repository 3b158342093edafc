package retrieval

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/PVL-Linh/LegalBot-AI/pkg/documents"
)

// CorpusWatcher reports changed corpus files after a quiet period.
type CorpusWatcher struct {
	watcher  *fsnotify.Watcher
	logger   zerolog.Logger
	onChange func(paths []string)
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	stopCh  chan struct{}
	once    sync.Once
}

// NewCorpusWatcher creates a watcher. onChange receives the distinct
// supported paths touched since the previous call.
func NewCorpusWatcher(logger zerolog.Logger, debounce time.Duration, onChange func(paths []string)) (*CorpusWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	cw := &CorpusWatcher{
		watcher:  watcher,
		logger:   logger.With().Str("component", "corpus_watcher").Logger(),
		onChange: onChange,
		debounce: debounce,
		pending:  make(map[string]struct{}),
		stopCh:   make(chan struct{}),
	}
	go cw.run()
	return cw, nil
}

// Watch starts watching a directory.
func (cw *CorpusWatcher) Watch(dir string) error {
	return cw.watcher.Add(dir)
}

// Stop stops the watcher. Pending changes are dropped.
func (cw *CorpusWatcher) Stop() error {
	var err error
	cw.once.Do(func() {
		close(cw.stopCh)
		cw.mu.Lock()
		if cw.timer != nil {
			cw.timer.Stop()
		}
		cw.mu.Unlock()
		err = cw.watcher.Close()
	})
	return err
}

func (cw *CorpusWatcher) run() {
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if !documents.Supported(event.Name) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				cw.logger.Debug().
					Str("file", filepath.Base(event.Name)).
					Str("op", event.Op.String()).
					Msg("Corpus change detected")
				cw.schedule(event.Name)
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Error().Err(err).Msg("Corpus watcher error")

		case <-cw.stopCh:
			return
		}
	}
}

func (cw *CorpusWatcher) schedule(path string) {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.pending[path] = struct{}{}
	if cw.timer != nil {
		cw.timer.Stop()
	}
	cw.timer = time.AfterFunc(cw.debounce, cw.fire)
}

func (cw *CorpusWatcher) fire() {
	cw.mu.Lock()
	paths := make([]string, 0, len(cw.pending))
	for p := range cw.pending {
		paths = append(paths, p)
	}
	cw.pending = make(map[string]struct{})
	cw.mu.Unlock()

	select {
	case <-cw.stopCh:
		return
	default:
	}
	if len(paths) > 0 {
		cw.onChange(paths)
	}
}
