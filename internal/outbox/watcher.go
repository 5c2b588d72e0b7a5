package outbox

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher rehydrates a Store when its JSONL file is changed by another
// process, such as folio send or folio prune running next to foliod.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	store    *Store
	filePath string
	logger   *slog.Logger
	onChange func()
	done     chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewFileWatcher creates a watcher for the store's persistence file.
func NewFileWatcher(store *Store, filePath string, logger *slog.Logger) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &FileWatcher{
		watcher:  watcher,
		store:    store,
		filePath: filePath,
		logger:   logger,
		done:     make(chan struct{}),
	}, nil
}

// SetChangeCallback sets a function called after each rehydration.
func (fw *FileWatcher) SetChangeCallback(fn func()) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.onChange = fn
}

// Start begins watching the file for changes.
func (fw *FileWatcher) Start() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.running {
		return nil
	}

	// Watch the directory; prune replaces the file.
	if err := fw.watcher.Add(filepath.Dir(fw.filePath)); err != nil {
		return err
	}
	fw.running = true

	go fw.watch()
	return nil
}

// settleDelay coalesces the burst of events a rewrite produces.
const settleDelay = 50 * time.Millisecond

func (fw *FileWatcher) watch() {
	filename := filepath.Base(fw.filePath)

	var settle *time.Timer
	var settled <-chan time.Time
	defer func() {
		if settle != nil {
			settle.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if settle == nil {
				settle = time.NewTimer(settleDelay)
			} else {
				settle.Reset(settleDelay)
			}
			settled = settle.C

		case <-settled:
			settled = nil
			fw.rehydrate()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn("outbox watcher error", "error", err)

		case <-fw.done:
			return
		}
	}
}

func (fw *FileWatcher) rehydrate() {
	fw.logger.Debug("outbox file changed, rehydrating", "file", fw.filePath)
	if err := fw.store.Hydrate(); err != nil {
		fw.logger.Warn("failed to rehydrate outbox", "error", err)
		return
	}

	fw.mu.Lock()
	fn := fw.onChange
	fw.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Stop stops the watcher. It is safe to call more than once.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if !fw.running {
		return nil
	}
	fw.running = false
	close(fw.done)
	return fw.watcher.Close()
}
