package catalog

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"RPGMixer/core/audio"
	"RPGMixer/logger"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last change before a rescan.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reports asset tree changes, coalescing bursts (a copy of many
// files) into one notification.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce func(func())
	Changes  chan struct{}
	Errors   chan error
	closeCh  chan struct{}
	once     sync.Once
}

// NewWatcher watches root and every directory below it.
func NewWatcher(root string, delay time.Duration) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if delay <= 0 {
		delay = DefaultDebounce
	}

	watcher := &Watcher{
		watcher:  w,
		debounce: debounce.New(delay),
		Changes:  make(chan struct{}, 1),
		Errors:   make(chan error, 1),
		closeCh:  make(chan struct{}),
	}
	if err := watcher.addTree(root); err != nil {
		_ = w.Close()
		return nil, err
	}
	go watcher.run()
	return watcher, nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(p)
		}
		return nil
	})
}

// Close stops watching.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) notify() {
	select {
	case w.Changes <- struct{}{}:
	default: // a notification is already pending
	}
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						logger.Warn("failed to watch new directory", logger.String("path", event.Name), logger.ErrorField(err))
					}
					w.debounce(w.notify)
					continue
				}
			}
			if !audio.Supported(event.Name) && event.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.debounce(w.notify)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.Errors <- err:
			default:
				logger.Warn("asset watcher error", logger.ErrorField(err))
			}
		case <-w.closeCh:
			return
		}
	}
}
