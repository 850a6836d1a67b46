package watcher

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/zjrosen/weakcast/internal/config"
)

// Changes lists the settings that differ between prev and next as
// "key: new value" lines, in config order.
func Changes(prev, next config.Config) []string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(settings(prev), settings(next))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var changed []string
	for _, d := range diffs {
		if d.Type != diffmatchpatch.DiffInsert {
			continue
		}
		changed = append(changed, strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n")...)
	}
	return changed
}

func settings(cfg config.Config) string {
	var b strings.Builder
	line := func(key string, value any) {
		fmt.Fprintf(&b, "%s: %v\n", key, value)
	}

	line("debug", cfg.Debug)
	line("log_path", cfg.LogPath)
	line("strict_elements", cfg.StrictElements)
	line("stress.observers", cfg.Stress.Observers)
	line("stress.topics", cfg.Stress.Topics)
	line("stress.drop_every", cfg.Stress.DropEvery)
	line("hub.idle_ttl", cfg.Hub.IdleTTL)
	line("hub.cleanup_interval", cfg.Hub.CleanupInterval)
	line("watch.observers", cfg.Watch.Observers)
	line("watch.tick", cfg.Watch.Tick)
	line("tracing.enabled", cfg.Tracing.Enabled)
	line("tracing.exporter", cfg.Tracing.Exporter)
	line("tracing.file_path", cfg.Tracing.FilePath)
	line("tracing.otlp_endpoint", cfg.Tracing.OTLPEndpoint)
	line("tracing.sample_rate", cfg.Tracing.SampleRate)
	line("tracing.service_name", cfg.Tracing.ServiceName)
	line("metrics.addr", cfg.Metrics.Addr)
	return b.String()
}
