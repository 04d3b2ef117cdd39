// Package dropwatch reports what happens in an engine's drop directory: artifacts
// arriving, options files, the engine's log and its completion flags.
package dropwatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ivyci/enginectl/pkg/deploy"
	"github.com/ivyci/enginectl/pkg/logger"
)

// Kind classifies a drop directory event
type Kind string

const (
	ArtifactPlaced  Kind = "artifact-placed"
	ArtifactRemoved Kind = "artifact-removed"
	OptionsPlaced   Kind = "options-placed"
	OptionsRemoved  Kind = "options-removed"
	Deployed        Kind = "deployed"
	FlagCleared     Kind = "flag-cleared"
	LogUpdated      Kind = "log-updated"
	EngineError     Kind = "engine-error"
	TriggerPlaced   Kind = "trigger-placed"
	TriggerConsumed Kind = "trigger-consumed"
)

// Event is one classified change in the drop directory
type Event struct {
	Kind Kind
	// Path is the file that changed
	Path string
	// Artifact is the artifact the file belongs to
	Artifact string
	// Application is the sub directory of the drop directory
	Application string
	Time        time.Time
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s", e.Kind, filepath.Join(e.Application, filepath.Base(e.Path)))
}

type role int

const (
	roleArtifact role = iota
	roleOptions
	roleDeployed
	roleLog
	roleError
	roleTrigger
)

// classify maps a file name to its role and the artifact it belongs to.
// Hidden files, which include the temp files of atomic writes, are skipped.
func classify(path string) (role, string, bool) {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return 0, "", false
	}

	suffixes := []struct {
		suffix string
		role   role
	}{
		{deploy.DeployedSuffix, roleDeployed},
		{deploy.LogSuffix, roleLog},
		{deploy.ErrorSuffix, roleError},
		{deploy.TriggerSuffix, roleTrigger},
	}
	for _, s := range suffixes {
		if strings.HasSuffix(path, s.suffix) {
			return s.role, strings.TrimSuffix(path, s.suffix), true
		}
	}
	if i := strings.LastIndex(name, ".options."); i > 0 {
		return roleOptions, filepath.Join(filepath.Dir(path), name[:i]), true
	}
	return roleArtifact, path, true
}

func kindOf(r role, created bool) (Kind, bool) {
	switch r {
	case roleArtifact:
		if created {
			return ArtifactPlaced, true
		}
		return ArtifactRemoved, true
	case roleOptions:
		if created {
			return OptionsPlaced, true
		}
		return OptionsRemoved, true
	case roleDeployed:
		if created {
			return Deployed, true
		}
		return FlagCleared, true
	case roleLog:
		return LogUpdated, created
	case roleError:
		return EngineError, created
	case roleTrigger:
		if created {
			return TriggerPlaced, true
		}
		return TriggerConsumed, true
	}
	return "", false
}

// Watcher follows a drop directory and its application sub directories
type Watcher struct {
	watcher *fsnotify.Watcher
	logger  logger.Logger
	root    string

	mu      sync.Mutex
	watched map[string]bool
}

// New starts watching root and its existing application directories
func New(root string, log logger.Logger) (*Watcher, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("drop directory %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("drop directory %s is not a directory", root)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		watcher: fw,
		logger:  logger.OrNop(log),
		root:    filepath.Clean(root),
		watched: make(map[string]bool),
	}
	if err := w.add(w.root); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", root, err)
	}

	entries, err := os.ReadDir(w.root)
	if err != nil {
		fw.Close()
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := w.add(filepath.Join(w.root, e.Name())); err != nil {
				w.logger.Warn(fmt.Sprintf("Failed to watch application directory %s: %v", e.Name(), err))
			}
		}
	}
	return w, nil
}

// Close stops watching
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Run delivers events to fn until ctx is done or the watcher is closed.
// fn runs on the watcher goroutine, in the order the events were observed.
func (w *Watcher) Run(ctx context.Context, fn func(Event)) error {
	w.logger.Info(fmt.Sprintf("Watching drop directory %s", w.root))
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if e, ok := w.translate(ev); ok {
				fn(e)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error(fmt.Sprintf("Watcher error: %v", err))
		}
	}
}

// Events is Run with a channel. The channel is closed when ctx is done.
func (w *Watcher) Events(ctx context.Context) <-chan Event {
	out := make(chan Event, 64)
	go func() {
		defer close(out)
		w.Run(ctx, func(e Event) {
			select {
			case out <- e:
			case <-ctx.Done():
			}
		})
	}()
	return out
}

func (w *Watcher) translate(ev fsnotify.Event) (Event, bool) {
	dir := filepath.Dir(ev.Name)

	// application directories appear directly below the root
	if filepath.Clean(dir) == w.root {
		if ev.Has(fsnotify.Create) {
			if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
				if err := w.add(ev.Name); err != nil {
					w.logger.Warn(fmt.Sprintf("Failed to watch application directory %s: %v", ev.Name, err))
				}
			}
		}
		return Event{}, false
	}

	r, artifact, ok := classify(ev.Name)
	if !ok {
		return Event{}, false
	}

	var created bool
	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		created = true
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		created = false
	default:
		return Event{}, false
	}
	if ev.Has(fsnotify.Write) && r != roleLog {
		return Event{}, false
	}

	kind, ok := kindOf(r, created)
	if !ok {
		return Event{}, false
	}
	return Event{
		Kind:        kind,
		Path:        ev.Name,
		Artifact:    artifact,
		Application: filepath.Base(dir),
		Time:        time.Now(),
	}, true
}

func (w *Watcher) add(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watched[dir] {
		return nil
	}
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	w.watched[dir] = true
	w.logger.Debug(fmt.Sprintf("Watching directory: %s", dir))
	return nil
}
