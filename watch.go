package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settle is how long the watched files must stay quiet before a rerun.
const settle = 300 * time.Millisecond

// watch generates once, then again every time the configuration or a parsed
// header changes, until ctx is done. A failing run is logged and the watch
// goes on.
func watch(ctx context.Context, log *slog.Logger, cfgPath string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	cfgPath, err = filepath.Abs(cfgPath)
	if err != nil {
		return err
	}

	// Directories are watched rather than files so that editors replacing a
	// file on save do not end the watch.
	files := make(map[string]bool)
	dirs := make(map[string]bool)

	track := func(paths []string) {
		for _, p := range append(paths, cfgPath) {
			files[filepath.Clean(p)] = true

			dir := filepath.Dir(p)
			if dirs[dir] {
				continue
			}
			if err := w.Add(dir); err != nil {
				log.Warn("cannot watch", "dir", dir, "error", err)
				continue
			}
			dirs[dir] = true
		}
	}

	run := func() {
		headers, err := generate(log, cfgPath)
		if err != nil {
			log.Error("generation failed", "error", err)
		}
		track(headers)
		log.Info("watching", "files", len(files))
	}

	run()

	timer := time.NewTimer(settle)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !files[filepath.Clean(ev.Name)] || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			log.Debug("change", "file", ev.Name, "op", ev.Op.String())
			timer.Reset(settle)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", "error", err)

		case <-timer.C:
			run()
		}
	}
}
