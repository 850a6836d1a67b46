package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/weakcast/internal/config"
	"github.com/zjrosen/weakcast/internal/log"
	"github.com/zjrosen/weakcast/internal/metrics"
	"github.com/zjrosen/weakcast/internal/multicast"
	"github.com/zjrosen/weakcast/internal/tracing"
	"github.com/zjrosen/weakcast/internal/ui/styles"
)

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Fan out across many topics while owners drop away",
	Long: `Register observers across hub topics, release every k-th owner, collect,
and publish once per topic. The report shows how many observers each topic
still reached and how many stale entries were pruned on the way.

Example:
  weakcast stress --topics 8 --observers 5000 --drop-every 2
  weakcast stress --metrics-addr localhost:9464   # keep serving /metrics`,
	RunE: runStressCmd,
}

var stressSave bool

func init() {
	rootCmd.AddCommand(stressCmd)

	stressCmd.Flags().Int("observers", 0, "observers per topic (overrides config)")
	stressCmd.Flags().Int("topics", 0, "number of topics (overrides config)")
	stressCmd.Flags().Int("drop-every", 0, "release every k-th owner, 0 keeps all (overrides config)")
	stressCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics here until interrupted")
	stressCmd.Flags().BoolVar(&stressSave, "save", false, "write the stress settings back to the config file")

	_ = viper.BindPFlag("stress.observers", stressCmd.Flags().Lookup("observers"))
	_ = viper.BindPFlag("stress.topics", stressCmd.Flags().Lookup("topics"))
	_ = viper.BindPFlag("stress.drop_every", stressCmd.Flags().Lookup("drop-every"))
	_ = viper.BindPFlag("metrics.addr", stressCmd.Flags().Lookup("metrics-addr"))
}

type stressObserver struct {
	topic string
	id    int
	hits  int
}

type topicReport struct {
	Topic      string
	Registered int
	Released   int
	Delivered  int
	Pruned     int
	Live       int
}

type stressReport struct {
	Topics  []topicReport
	Elapsed time.Duration
}

func (r stressReport) total() topicReport {
	t := topicReport{Topic: "total"}
	for _, tr := range r.Topics {
		t.Registered += tr.Registered
		t.Released += tr.Released
		t.Delivered += tr.Delivered
		t.Pruned += tr.Pruned
		t.Live += tr.Live
	}
	return t
}

func runStressCmd(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("creating tracing provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.ErrorErr(log.CatTrace, "shutting down tracing", err)
		}
	}()

	recorder := metrics.NewRecorder()
	hub := multicast.NewHub[*stressObserver](multicast.HubConfig(cfg.Hub),
		multicast.WithTracer(provider.Tracer()),
		multicast.WithRecorder(recorder),
	)
	defer func() {
		if err := hub.Flush(context.Background()); err != nil {
			log.ErrorErr(log.CatMulticast, "flushing hub", err)
		}
	}()

	errCh := make(chan error, 1)
	if cfg.Metrics.Addr != "" {
		go func() {
			errCh <- recorder.Serve(ctx, cfg.Metrics.Addr)
		}()
	}

	report, err := runStress(ctx, hub, cfg.Stress)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	printStressReport(out, report)

	if stressSave {
		path := configPath()
		if path == "" {
			return errors.New("no config file to save stress settings to")
		}
		if err := config.SaveStress(path, cfg.Stress); err != nil {
			return fmt.Errorf("saving stress settings: %w", err)
		}
		fmt.Fprintf(out, "Saved stress settings to %s\n", path)
	}

	if cfg.Metrics.Addr == "" {
		return nil
	}

	fmt.Fprintf(out, "Serving metrics on http://%s/metrics\n", cfg.Metrics.Addr)
	fmt.Fprintln(out, "Press Ctrl+C to stop")
	select {
	case <-ctx.Done():
		return <-errCh
	case err := <-errCh:
		return err
	}
}

// runStress populates every topic, collects, and publishes once per topic.
func runStress(ctx context.Context, hub *multicast.Hub[*stressObserver], sc config.StressConfig) (stressReport, error) {
	start := time.Now()
	report := stressReport{Topics: make([]topicReport, 0, sc.Topics)}

	owners := make(map[string][]*stressObserver, sc.Topics)
	for i := 0; i < sc.Topics; i++ {
		topic := fmt.Sprintf("topic-%02d", i)
		kept, released, err := populate(ctx, hub, topic, sc.Observers, sc.DropEvery)
		if err != nil {
			return report, err
		}
		owners[topic] = kept
		report.Topics = append(report.Topics, topicReport{
			Topic:      topic,
			Registered: sc.Observers,
			Released:   released,
		})
	}

	runtime.GC()
	runtime.GC()

	for i := range report.Topics {
		tr := &report.Topics[i]
		s, err := hub.Topic(ctx, tr.Topic)
		if err != nil {
			return report, err
		}
		delivered, err := hub.Publish(ctx, tr.Topic, func(o *stressObserver) { o.hits++ })
		if err != nil {
			return report, fmt.Errorf("publishing to %s: %w", tr.Topic, err)
		}
		tr.Delivered = delivered
		tr.Live = s.Len()
		tr.Pruned = s.Pruned()
	}

	runtime.KeepAlive(owners)
	report.Elapsed = time.Since(start)
	log.Info(log.CatMulticast, "stress run finished",
		"topics", len(report.Topics), "delivered", report.total().Delivered, "elapsed", report.Elapsed)
	return report, nil
}

// populate registers n observers on topic and returns the owners that were
// kept along with how many were released.
func populate(ctx context.Context, hub *multicast.Hub[*stressObserver], topic string, n, dropEvery int) ([]*stressObserver, int, error) {
	s, err := hub.Topic(ctx, topic)
	if err != nil {
		return nil, 0, fmt.Errorf("opening %s: %w", topic, err)
	}

	kept := make([]*stressObserver, 0, n)
	released := 0
	for i := 0; i < n; i++ {
		o := &stressObserver{topic: topic, id: i}
		s.Add(o)
		if dropEvery > 0 && (i+1)%dropEvery == 0 {
			released++
			continue
		}
		kept = append(kept, o)
	}
	return kept, released, nil
}

func printStressReport(w io.Writer, r stressReport) {
	var b strings.Builder
	row := func(tr topicReport) {
		fmt.Fprintf(&b, "%-10s %10d %9d %10d %7d %6d\n",
			tr.Topic, tr.Registered, tr.Released, tr.Delivered, tr.Pruned, tr.Live)
	}

	fmt.Fprintf(&b, "%-10s %10s %9s %10s %7s %6s\n",
		"topic", "registered", "released", "delivered", "pruned", "live")
	for _, tr := range r.Topics {
		row(tr)
	}
	row(r.total())

	fmt.Fprintln(w, styles.TitleStyle.Render("stress report"))
	fmt.Fprintln(w, styles.TableStyle.Render(strings.TrimRight(b.String(), "\n")))
	fmt.Fprintln(w, styles.MutedStyle.Render(fmt.Sprintf("elapsed %s", r.Elapsed.Round(time.Microsecond))))
}
