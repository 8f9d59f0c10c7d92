package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// EventKind is the type of a vault change.
type EventKind string

const (
	EventAdd    EventKind = "add"
	EventChange EventKind = "change"
	EventDelete EventKind = "delete"
)

// Event is an external change to a note, keyed by absolute path.
type Event struct {
	Kind EventKind `json:"kind"`
	Path string    `json:"path"`
}

// Watcher reports note changes made outside the Store. Changes the Store
// made itself within its suppression window are dropped.
type Watcher struct {
	fsw    *fsnotify.Watcher
	store  *Store
	log    zerolog.Logger
	events chan Event
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// Watch starts watching the vault and every non-hidden subdirectory.
func (s *Store) Watch() (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		fsw:    fsw,
		store:  s,
		log:    s.log.With().Str("component", "vault-watcher").Logger(),
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}
	if err := w.addDirs(s.root); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("add directories to watcher: %w", err)
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Events delivers changes until Close. The channel is closed afterwards.
func (w *Watcher) Events() <-chan Event { return w.events }

// Close stops the watcher.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fsw.Close()
		w.wg.Wait()
		close(w.events)
	})
	return err
}

func (w *Watcher) addDirs(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if out, ok := w.translate(ev); ok {
				select {
				case w.events <- out:
				case <-w.done:
					return
				}
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("watcher error")
		}
	}
}

func (w *Watcher) translate(ev fsnotify.Event) (Event, bool) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addDirs(ev.Name); err != nil {
				w.log.Warn().Err(err).Str("dir", ev.Name).Msg("watch new folder")
			}
			return Event{}, false
		}
	}
	if !strings.EqualFold(filepath.Ext(ev.Name), noteExt) {
		return Event{}, false
	}
	rel, err := filepath.Rel(w.store.root, ev.Name)
	if err != nil || strings.Contains(filepath.ToSlash(rel), "/.") || strings.HasPrefix(rel, ".") {
		return Event{}, false
	}
	if w.store.SelfWrite(ev.Name) {
		w.log.Debug().Str("path", ev.Name).Msg("suppressed self write")
		return Event{}, false
	}

	var kind EventKind
	switch {
	case ev.Has(fsnotify.Create):
		kind = EventAdd
	case ev.Has(fsnotify.Write):
		kind = EventChange
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		kind = EventDelete
	default:
		return Event{}, false
	}
	w.log.Debug().Str("kind", string(kind)).Str("path", ev.Name).Msg("vault change")
	return Event{Kind: kind, Path: ev.Name}, true
}
