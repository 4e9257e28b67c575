package hardware

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/lcalzada-xor/wpilot/internal/core/domain"
)

const defaultNetClassPath = "/sys/class/net"

// Watcher emits hotplug events by watching the kernel's network class
// directory. It implements ports.Watcher.
type Watcher struct {
	path string
}

// NewWatcher watches /sys/class/net for adapters appearing or vanishing.
func NewWatcher() *Watcher {
	return &Watcher{path: defaultNetClassPath}
}

// NewWatcherAt watches an alternate directory. Used by tests.
func NewWatcherAt(path string) *Watcher {
	return &Watcher{path: path}
}

// Watch streams add/remove events until ctx is cancelled. Non-wireless
// devices (no wireless/ subdirectory) are filtered out on add; removes are
// forwarded unconditionally because the sysfs entry is already gone.
func (w *Watcher) Watch(ctx context.Context) (<-chan domain.HotplugEvent, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(w.path); err != nil {
		fsw.Close()
		return nil, err
	}

	events := make(chan domain.HotplugEvent, 16)
	go func() {
		defer close(events)
		defer fsw.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				name := filepath.Base(ev.Name)
				switch {
				case ev.Op.Has(fsnotify.Create):
					if !w.isWireless(name) {
						continue
					}
					events <- domain.HotplugEvent{Kind: domain.HotplugAdded, Name: name}
				case ev.Op.Has(fsnotify.Remove):
					events <- domain.HotplugEvent{Kind: domain.HotplugRemoved, Name: name}
				}
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				log.Printf("[HOTPLUG] Watch error: %v", err)
			}
		}
	}()
	return events, nil
}

func (w *Watcher) isWireless(name string) bool {
	info, err := os.Stat(filepath.Join(w.path, name, "wireless"))
	return err == nil && info.IsDir()
}
