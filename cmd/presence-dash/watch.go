package main

import (
	"log/slog"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
)

// configChangedMsg is sent when the config file is written, created or
// replaced.
type configChangedMsg struct{}

const debounceDuration = 100 * time.Millisecond

// watchConfig creates a watcher for the config file at path and returns the
// command that waits for its next change, plus a function that releases the
// watcher. The command is nil if path is empty or the watcher cannot be set
// up; the dashboard then simply does not react to config edits.
func watchConfig(path string) (tea.Cmd, func() error) {
	watcher := initWatcher(path)
	if watcher == nil {
		return nil, func() error { return nil }
	}
	return runWatcher(watcher, filepath.Base(path)), watcher.Close
}

// initWatcher watches the directory holding path. Editors often replace a
// file instead of writing it in place, which a watch on the file itself would
// lose.
func initWatcher(path string) *fsnotify.Watcher {
	if path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("fsnotify: failed to create watcher", "err", err)
		return nil
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close() // Best effort close
		slog.Warn("fsnotify: failed to watch config dir", "dir", dir, "err", err)
		return nil
	}

	return watcher
}

// runWatcher returns a tea.Cmd that blocks until name changes and then
// returns configChangedMsg, debounced so one save yields one message. The
// command can be issued again to wait for the next change.
func runWatcher(watcher *fsnotify.Watcher, name string) tea.Cmd {
	return func() tea.Msg {
		debounceTimer := newDebounceTimer()
		defer debounceTimer.Stop()

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Base(event.Name) != name {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				resetDebounceTimer(debounceTimer)

			case <-debounceTimer.C:
				return configChangedMsg{}

			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				slog.Warn("fsnotify: watcher error", "err", err)
				return nil
			}
		}
	}
}

// newDebounceTimer creates a stopped timer for debouncing file system events.
func newDebounceTimer() *time.Timer {
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	return timer
}

// resetDebounceTimer restarts the debounce window.
func resetDebounceTimer(timer *time.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(debounceDuration)
}
