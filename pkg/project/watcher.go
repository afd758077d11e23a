package project

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/gorazor/pkg/razor"
)

type WatcherOptions struct {
	// IsManifest reports whether a changed file is a tag helper manifest.
	IsManifest func(path string) bool
	// OnManifestChange runs on the watcher goroutine after a manifest changed.
	OnManifestChange func(ctx context.Context)
}

// Watcher feeds Razor files that change on disk into a Manager. fsnotify needs real paths, so
// the afero filesystem must be backed by the OS.
type Watcher struct {
	fsw     *fsnotify.Watcher
	fs      afero.Fs
	root    string
	manager *Manager
	opts    WatcherOptions
}

func NewWatcher(fs afero.Fs, root string, manager *Manager, opts WatcherOptions) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Errorf("creating file watcher: %w", err)
	}
	w := &Watcher{fsw: fsw, fs: fs, root: root, manager: manager, opts: opts}

	err = afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(info.Name(), ".") {
			return filepath.SkipDir
		}
		switch info.Name() {
		case "bin", "obj", "node_modules":
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
	if err != nil {
		fsw.Close()
		return nil, errors.Errorf("watching %s: %w", root, err)
	}
	return w, nil
}

// Load publishes every Razor file under the root.
func (w *Watcher) Load(ctx context.Context) error {
	return afero.Walk(w.fs, w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !razor.IsRazorPath(path) {
			return nil
		}
		return w.refresh(ctx, path)
	})
}

// Run handles file events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if err := w.handle(ctx, ev); err != nil {
				logger.Warn().Err(err).Str("path", ev.Name).Msg("handling file event")
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("file watcher error")
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) error {
	zerolog.Ctx(ctx).Trace().Str("op", ev.Op.String()).Str("path", ev.Name).Msg("file event")

	if ev.Has(fsnotify.Create) {
		if info, err := w.fs.Stat(ev.Name); err == nil && info.IsDir() {
			return w.fsw.Add(ev.Name)
		}
	}

	if w.opts.IsManifest != nil && w.opts.IsManifest(ev.Name) {
		if w.opts.OnManifestChange != nil {
			w.opts.OnManifestChange(ctx)
		}
		return nil
	}

	if !razor.IsRazorPath(ev.Name) {
		return nil
	}
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		return w.manager.Forget(ctx, ev.Name)
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		return w.refresh(ctx, ev.Name)
	}
	return nil
}

func (w *Watcher) refresh(ctx context.Context, path string) error {
	data, err := afero.ReadFile(w.fs, path)
	if err != nil {
		return errors.Errorf("reading %s: %w", path, err)
	}
	_, err = w.manager.Refresh(ctx, path, string(data))
	return err
}

func (w *Watcher) Close() error {
	return w.fsw.Close()
}
