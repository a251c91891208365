package config

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the configuration whenever orchestrator.yaml/.toml changes
// under configDir, invoking onReload with the freshly loaded Config. It
// blocks until ctx is cancelled or the underlying watcher fails to start.
//
// Grounded on the hot-reload pattern used across the pack's fsnotify
// consumers (vanducng-goclaw, teradata-labs-loom): a single watcher on the
// config directory, filtering for Write/Create events on the files this
// package actually reads.
func Watch(ctx context.Context, configDir string, onReload func(*Config, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(configDir); err != nil {
		return err
	}

	log := slog.With("config_dir", configDir)
	log.Info("watching configuration directory for changes")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevantConfigEvent(event) {
				continue
			}
			log.Info("configuration file changed, reloading", "file", event.Name)
			cfg, err := Load(ctx, configDir)
			onReload(cfg, err)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watcher error", "error", err)
		}
	}
}

func relevantConfigEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}
	name := filepath.Base(event.Name)
	return name == "orchestrator.yaml" || name == "orchestrator.toml" || name == ".env"
}
