package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/idgrep/internal/debug"
)

// reloadDebounce coalesces the bursts of events editors produce on save
const reloadDebounce = 150 * time.Millisecond

// Watch reloads configuration whenever it changes on disk and passes each
// valid result to onChange. path is either a configuration file or a
// project directory holding .idgrep.kdl / .idgrep.toml. Invalid files are
// logged and skipped. Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("watch config: %w", err)
	}

	dir := path
	names := map[string]bool{KDLFileName: true, TOMLFileName: true}
	reload := func() (*Config, error) { return LoadWithRoot(dir) }
	if !info.IsDir() {
		// Editors often replace files, so watch the parent directory
		dir = filepath.Dir(path)
		names = map[string]bool{filepath.Base(path): true}
		reload = func() (*Config, error) { return LoadFile(path) }
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch config %s: %w", dir, err)
	}
	debug.LogConfig("watching %s for changes", dir)

	timer := time.NewTimer(reloadDebounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !names[filepath.Base(event.Name)] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			timer.Reset(reloadDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			debug.LogConfig("watcher error: %v", err)
		case <-timer.C:
			cfg, err := reload()
			if err != nil {
				debug.LogConfig("ignoring invalid configuration: %v", err)
				continue
			}
			debug.LogConfig("configuration reloaded from %s", dir)
			onChange(cfg)
		}
	}
}
