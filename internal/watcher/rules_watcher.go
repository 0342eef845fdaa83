// Package watcher reloads the rule file when it changes on disk.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"faqbot/internal/logging"
	"faqbot/internal/rules"
)

// DefaultDebounce collapses the burst of events an editor save produces.
const DefaultDebounce = 100 * time.Millisecond

// RulesWatcher watches one rule file and hands every successfully compiled
// version to apply. A file that fails to load is logged and the previous
// engine stays in place.
type RulesWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	apply    func(*rules.Engine)
	debounce time.Duration
	log      log.FieldLogger
}

// NewRulesWatcher watches path's directory so atomic replace-on-save editors
// are seen too.
func NewRulesWatcher(path string, apply func(*rules.Engine), logger log.FieldLogger) (*RulesWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("new watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	return &RulesWatcher{
		watcher:  w,
		path:     abs,
		apply:    apply,
		debounce: DefaultDebounce,
		log:      logging.OrDiscard(logger).WithField("rules_file", abs),
	}, nil
}

// Run processes events until ctx is done, then closes the watcher.
func (w *RulesWatcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("watch error")
		case <-timer.C:
			w.reload()
		}
	}
}

// Stop closes the watcher; Run then returns.
func (w *RulesWatcher) Stop() error {
	return w.watcher.Close()
}

func (w *RulesWatcher) reload() {
	engine, err := rules.Load(w.path)
	if err != nil {
		w.log.WithError(err).Error("rule reload failed, keeping previous rules")
		return
	}
	w.apply(engine)
	w.log.WithField("groups", engine.Groups()).Info("rules reloaded")
}
