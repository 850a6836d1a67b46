package cmd

import (
	"context"
	"fmt"
	"runtime"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/zjrosen/weakcast/internal/config"
	"github.com/zjrosen/weakcast/internal/log"
	"github.com/zjrosen/weakcast/internal/multicast"
	"github.com/zjrosen/weakcast/internal/ui/observerview"
	"github.com/zjrosen/weakcast/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch observers disappear interactively",
	Long: `Open a terminal view over a subject whose observers you own. Drop owners,
force a garbage collection and clean up to see live and backing counts diverge
and converge. Edits to the config file's watch section apply while running.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	subject := multicast.NewSubject[*observerview.Observer](multicast.WithName("watch"))
	defer subject.Close()

	path := configPath()
	var reloader *watcher.ConfigReloader
	if path != "" {
		var err error
		reloader, err = watcher.NewConfigReloader(path, cfg, watcher.DefaultConfig(path))
		if err != nil {
			return fmt.Errorf("creating config reloader: %w", err)
		}
		defer func() {
			if err := reloader.Stop(); err != nil {
				log.ErrorErr(log.CatWatcher, "stopping config reloader", err)
			}
		}()
	}

	opts := observerview.Options{
		Observers: cfg.Watch.Observers,
		Tick:      cfg.Watch.Tick,
	}
	if reloader != nil {
		opts.Save = func(n int) error {
			w := reloader.Current().Watch
			w.Observers = n
			return config.SaveWatch(path, w)
		}
	}

	model := observerview.New(ctx, subject, opts)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	// The reloader holds the bridge weakly; it stays registered while this
	// frame references it.
	bridge := &observerview.ConfigBridge{Send: p.Send}
	if reloader != nil {
		reloader.Register(bridge)
		if err := reloader.Start(ctx); err != nil {
			log.ErrorErr(log.CatWatcher, "config reload disabled", err, "path", path)
		}
	}

	_, err := p.Run()
	runtime.KeepAlive(bridge)
	if err != nil {
		return fmt.Errorf("running watch view: %w", err)
	}
	return nil
}
