package cmd

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/zjrosen/weakcast/internal/multicast"
	"github.com/zjrosen/weakcast/internal/ui/styles"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Walk through weak registration step by step",
	Long: `Register observers A, B and C, release B, and show how the subject only
forgets B after the garbage collector and a cleanup pass.`,
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

type demoObserver struct {
	name  string
	inbox []string
}

func (o *demoObserver) Receive(msg string) {
	o.inbox = append(o.inbox, msg)
}

// scenarioResult is what each demo step observed.
type scenarioResult struct {
	Registered  []string
	AfterDrop   []string
	Backing     int
	Pruned      int
	AfterPrune  int
	AfterAppend []string
	Delivered   int
	Rejected    bool
}

func runDemo(cmd *cobra.Command, _ []string) error {
	_, err := runScenario(cmd.Context(), cmd.OutOrStdout(), !cfg.StrictElements)
	return err
}

func runScenario(ctx context.Context, w io.Writer, showRejection bool) (scenarioResult, error) {
	var res scenarioResult

	s := multicast.NewSubject[*demoObserver](multicast.WithName("demo"))
	defer s.Close()

	owners := map[string]*demoObserver{}
	for _, name := range []string{"A", "B", "C"} {
		owners[name] = &demoObserver{name: name}
		s.Add(owners[name])
	}
	res.Registered = observerNames(s)
	step(w, 1, "register A, B and C", "observers "+list(res.Registered))

	delete(owners, "B")
	runtime.GC()
	runtime.GC()
	res.AfterDrop = observerNames(s)
	res.Backing = s.Len()
	step(w, 2, "release B and collect",
		fmt.Sprintf("live %s  backing %d", list(res.AfterDrop), res.Backing))

	res.Pruned = s.CleanUp()
	res.AfterPrune = s.Len()
	step(w, 3, "clean up", fmt.Sprintf("pruned %d  backing %d", res.Pruned, res.AfterPrune))

	owners["D"] = &demoObserver{name: "D"}
	s.Add(owners["D"])
	res.AfterAppend = observerNames(s)
	step(w, 4, "add D", "live "+list(res.AfterAppend))

	res.Delivered = s.Notify(ctx, func(o *demoObserver) { o.Receive("hello") })
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("notifying demo observers: %w", err)
	}
	step(w, 5, `notify "hello"`, fmt.Sprintf("delivered %d", res.Delivered))

	if showRejection {
		values := multicast.NewSubject[any](multicast.WithName("values"))
		res.Rejected = !values.Add(42)
		values.Close()
		if res.Rejected {
			stepStyled(w, 6, "register the value 42", "rejected, values cannot be held weakly", styles.StaleStyle)
		} else {
			step(w, 6, "register the value 42", "accepted")
		}
	}

	runtime.KeepAlive(owners)
	return res, nil
}

func observerNames(s *multicast.Subject[*demoObserver]) []string {
	var names []string
	for _, o := range s.Snapshot() {
		names = append(names, o.name)
	}
	return names
}

func list(names []string) string {
	return "[" + strings.Join(names, " ") + "]"
}

func step(w io.Writer, n int, action, result string) {
	stepStyled(w, n, action, result, styles.LiveStyle)
}

func stepStyled(w io.Writer, n int, action, result string, style lipgloss.Style) {
	fmt.Fprintf(w, "%s %s\n", styles.TitleStyle.Render(fmt.Sprintf("%d.", n)), styles.MutedStyle.Render(action))
	fmt.Fprintf(w, "   %s\n", style.Render(result))
}
