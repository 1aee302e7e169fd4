package engine

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/risengine/ris/internal/core/event"
	"github.com/risengine/ris/internal/importer"
	"go.uber.org/zap"
)

// HotReloader re-imports the asset sources into the asset directory and,
// when watching, reports source changes to the event queue.
type HotReloader struct {
	log  *zap.Logger
	src  string
	dst  string
	opts importer.Options

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

func NewHotReloader(src, dst string, opts importer.Options, log *zap.Logger) *HotReloader {
	return &HotReloader{log: log, src: src, dst: dst, opts: opts}
}

// Reload imports every source that changed since the last import.
func (h *HotReloader) Reload(ctx context.Context) error {
	stats, err := importer.Import(ctx, h.src, h.dst, h.opts, h.log)
	h.log.Info("assets reimported",
		zap.Int("imported", stats.Imported),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed))
	return err
}

// Watch starts watching the source directory tree. Every create, write,
// remove or rename pushes an event.SourceChanged into q. Directories
// created later are watched too.
func (h *HotReloader) Watch(q *event.Queue) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.watcher != nil {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch %s: %w", h.src, err)
	}
	if err := addTree(watcher, h.src); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", h.src, err)
	}
	h.watcher = watcher
	h.done = make(chan struct{})

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for {
			select {
			case <-h.done:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				h.handle(watcher, q, ev)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				h.log.Warn("source watcher", zap.Error(err))
			}
		}
	}()
	h.log.Info("watching asset sources", zap.String("dir", h.src))
	return nil
}

func (h *HotReloader) handle(watcher *fsnotify.Watcher, q *event.Queue, ev fsnotify.Event) {
	switch {
	case ev.Op&fsnotify.Create == fsnotify.Create:
		if err := addTree(watcher, ev.Name); err != nil {
			h.log.Warn("watch new directory", zap.String("path", ev.Name), zap.Error(err))
		}
	case ev.Op&fsnotify.Write == fsnotify.Write,
		ev.Op&fsnotify.Remove == fsnotify.Remove,
		ev.Op&fsnotify.Rename == fsnotify.Rename:
	default:
		return
	}
	event.Push(q, event.SourceChanged{Path: ev.Name})
}

// addTree watches root and every directory below it. A root that is a
// plain file is ignored.
func addTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return watcher.Add(path)
	})
}

// Close stops watching. It is safe to call when Watch was never called.
func (h *HotReloader) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.watcher == nil {
		return nil
	}
	close(h.done)
	err := h.watcher.Close()
	h.wg.Wait()
	h.watcher = nil
	return err
}
