package watcher

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/zjrosen/weakcast/internal/config"
	"github.com/zjrosen/weakcast/internal/log"
	"github.com/zjrosen/weakcast/internal/multicast"
)

// ConfigReloader re-reads the config file when it changes and hands the new
// Config to every registered listener. Listeners are held weakly, so a view
// that goes away stops receiving reloads without unregistering.
type ConfigReloader struct {
	path      string
	watcher   *Watcher
	listeners *multicast.Subject[config.Listener]

	mu      sync.RWMutex
	current config.Config

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewConfigReloader prepares a reloader for path, starting from initial.
func NewConfigReloader(path string, initial config.Config, cfg Config, opts ...multicast.Option) (*ConfigReloader, error) {
	cfg.Path = path
	w, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return &ConfigReloader{
		path:      path,
		watcher:   w,
		listeners: multicast.NewSubject[config.Listener](append([]multicast.Option{multicast.WithName("config")}, opts...)...),
		current:   initial,
		stopped:   make(chan struct{}),
	}, nil
}

// Register adds l unless it is already registered.
func (r *ConfigReloader) Register(l config.Listener) bool {
	return r.listeners.AddUnique(l)
}

// Unregister removes l.
func (r *ConfigReloader) Unregister(l config.Listener) {
	r.listeners.Remove(l)
}

// Listeners returns the live listener count.
func (r *ConfigReloader) Listeners() int {
	return r.listeners.Count()
}

// Current returns the last successfully loaded config.
func (r *ConfigReloader) Current() config.Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Start watches the file until ctx is cancelled or Stop is called.
func (r *ConfigReloader) Start(ctx context.Context) error {
	changes, err := r.watcher.Start()
	if err != nil {
		return fmt.Errorf("starting config watcher: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = r.Stop()
				return
			case <-r.stopped:
				return
			case <-changes:
				if _, err := r.Reload(ctx); err != nil {
					log.ErrorErr(log.CatWatcher, "config reload failed, keeping previous config", err, "path", r.path)
				}
			}
		}
	}()
	return nil
}

// Reload loads the file now and notifies listeners. On error the previous
// config stays current and nobody is notified. Returns how many listeners
// were reached.
func (r *ConfigReloader) Reload(ctx context.Context) (int, error) {
	cfg, err := config.Load(r.path)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	prev := r.current
	r.current = cfg
	r.mu.Unlock()

	delivered := r.listeners.Notify(ctx, func(l config.Listener) {
		l.ConfigChanged(cfg)
	})
	log.Info(log.CatConfig, "config reloaded", "path", r.path, "listeners", delivered,
		"changed", strings.Join(Changes(prev, cfg), ", "))
	return delivered, nil
}

// Stop ends watching. Safe to call more than once.
func (r *ConfigReloader) Stop() error {
	var err error
	r.stopOnce.Do(func() {
		close(r.stopped)
		err = r.watcher.Stop()
		r.listeners.Close()
	})
	return err
}
