// Package observerview is the Bubble Tea view behind `weakcast watch`.
//
// The model owns a set of observers through plain pointers while a
// multicast.Subject holds them weakly. Dropping an owner and running the
// garbage collector makes the subject's live count fall; cleaning up makes
// its backing count follow.
package observerview

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zjrosen/weakcast/internal/config"
	"github.com/zjrosen/weakcast/internal/keys"
	"github.com/zjrosen/weakcast/internal/log"
	"github.com/zjrosen/weakcast/internal/multicast"
	"github.com/zjrosen/weakcast/internal/pubsub"
	"github.com/zjrosen/weakcast/internal/ui/styles"
)

// Observer counts the notifications it has received.
type Observer struct {
	ID       int
	Received int
	Last     string
}

// Handle records one notification.
func (o *Observer) Handle(msg string) {
	o.Received++
	o.Last = msg
}

type (
	tickMsg   struct{ generation int }
	gcDoneMsg struct{}
	savedMsg  struct{ err error }
)

// ConfigMsg carries a reloaded configuration into the update loop.
type ConfigMsg struct {
	Config config.Config
}

// ConfigBridge forwards config reloads to a running program. Register it with
// a watcher.ConfigReloader and keep it referenced for the program's lifetime.
type ConfigBridge struct {
	Send func(tea.Msg)
}

// ConfigChanged implements config.Listener.
func (b *ConfigBridge) ConfigChanged(cfg config.Config) {
	b.Send(ConfigMsg{Config: cfg})
}

// Options configure a Model. Save persists the current owner count; nil
// disables the save key.
type Options struct {
	Observers int
	Tick      time.Duration
	Save      func(observers int) error
}

// Model is the watch view state.
type Model struct {
	ctx     context.Context
	subject *multicast.Subject[*Observer]
	owners  []*Observer
	nextID  int

	tick       time.Duration
	generation int
	sent       int
	save       func(int) error

	events    *pubsub.ContinuousListener[multicast.Change]
	logs      *log.LogListener
	lastEvent string
	lastLog   string
	status    string

	keyMap keys.KeyMap
	help   help.Model
	width  int
}

// New creates a model that notifies through subject. The model subscribes to
// the subject's lifecycle events and, when logging is on, to log entries.
func New(ctx context.Context, subject *multicast.Subject[*Observer], opts Options) Model {
	m := Model{
		ctx:     ctx,
		subject: subject,
		tick:    opts.Tick,
		save:    opts.Save,
		events:  pubsub.NewContinuousListener[multicast.Change](ctx, subject),
		logs:    log.NewListener(ctx),
		keyMap:  keys.DefaultKeyMap(),
		help:    help.New(),
	}
	for i := 0; i < opts.Observers; i++ {
		m = m.addObserver()
	}
	return m
}

// Init starts the event listeners and the notify ticker.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.events.Listen(), m.scheduleTick()}
	if m.logs != nil {
		cmds = append(cmds, m.logs.Listen())
	}
	return tea.Batch(cmds...)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		if msg.generation != m.generation {
			return m, nil
		}
		m = m.notify()
		return m, m.scheduleTick()

	case gcDoneMsg:
		m.status = "garbage collected"
		return m, nil

	case savedMsg:
		if msg.err != nil {
			m.status = "save failed: " + msg.err.Error()
			log.ErrorErr(log.CatUI, "saving observer count", msg.err)
		} else {
			m.status = fmt.Sprintf("saved %d observers", len(m.owners))
		}
		return m, nil

	case ConfigMsg:
		return m.applyConfig(msg.Config)

	case pubsub.Event[multicast.Change]:
		m.lastEvent = fmt.Sprintf("%s %d (backing %d)", msg.Type, msg.Payload.Count, msg.Payload.Backing)
		return m, m.events.Listen()

	case log.LogEvent:
		m.lastLog = strings.TrimSpace(msg.Payload)
		if m.logs == nil {
			return m, nil
		}
		return m, m.logs.Listen()
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keyMap.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keyMap.Add):
		m = m.addObserver()
		m.status = fmt.Sprintf("added observer #%d", m.nextID)

	case key.Matches(msg, m.keyMap.Drop):
		if len(m.owners) == 0 {
			m.status = "no owners left"
			return m, nil
		}
		dropped := m.owners[len(m.owners)-1]
		m.owners[len(m.owners)-1] = nil
		m.owners = m.owners[:len(m.owners)-1]
		m.status = fmt.Sprintf("dropped owner of #%d", dropped.ID)

	case key.Matches(msg, m.keyMap.GC):
		return m, func() tea.Msg {
			runtime.GC()
			runtime.GC()
			return gcDoneMsg{}
		}

	case key.Matches(msg, m.keyMap.CleanUp):
		pruned := m.subject.CleanUp()
		m.status = fmt.Sprintf("pruned %d", pruned)

	case key.Matches(msg, m.keyMap.Notify):
		m = m.notify()

	case key.Matches(msg, m.keyMap.Save):
		if m.save == nil {
			m.status = "no config file to save to"
			return m, nil
		}
		save, n := m.save, len(m.owners)
		return m, func() tea.Msg { return savedMsg{err: save(n)} }
	}
	return m, nil
}

func (m Model) addObserver() Model {
	m.nextID++
	o := &Observer{ID: m.nextID}
	m.owners = append(m.owners, o)
	m.subject.Add(o)
	return m
}

func (m Model) notify() Model {
	m.sent++
	msg := fmt.Sprintf("ping %d", m.sent)
	delivered := m.subject.Notify(m.ctx, func(o *Observer) { o.Handle(msg) })
	m.status = fmt.Sprintf("notified %d", delivered)
	return m
}

func (m Model) applyConfig(cfg config.Config) (tea.Model, tea.Cmd) {
	m.status = "config reloaded"
	for len(m.owners) < cfg.Watch.Observers {
		m = m.addObserver()
	}
	if cfg.Watch.Tick == m.tick {
		return m, nil
	}
	m.tick = cfg.Watch.Tick
	m.generation++
	return m, m.scheduleTick()
}

func (m Model) scheduleTick() tea.Cmd {
	if m.tick <= 0 {
		return nil
	}
	gen := m.generation
	return tea.Tick(m.tick, func(time.Time) tea.Msg { return tickMsg{generation: gen} })
}

// Owners returns how many observers the view still references.
func (m Model) Owners() int { return len(m.owners) }

// Sent returns how many notify passes have run.
func (m Model) Sent() int { return m.sent }

// View renders the model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render("weakcast watch"))
	b.WriteString(styles.MutedStyle.Render("  subject " + m.subject.Name()))
	b.WriteString("\n\n")

	live, backing := m.subject.Count(), m.subject.Len()
	counts := []string{
		styles.Counter("live", live, styles.LiveStyle),
		styles.Counter("stale", backing-live, styles.StaleStyle),
		styles.Counter("backing", backing, styles.PendingStyle),
		styles.Counter("owners", len(m.owners), styles.LabelStyle),
		styles.Counter("sent", m.sent, styles.LabelStyle),
	}
	b.WriteString(strings.Join(counts, "  "))
	b.WriteString("\n\n")

	if len(m.owners) > 0 {
		cards := make([]string, 0, len(m.owners))
		for _, o := range m.owners {
			cards = append(cards, styles.CardStyle.Render(fmt.Sprintf("#%d recv %d", o.ID, o.Received)))
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cards...))
		b.WriteString("\n")
	}

	if m.status != "" {
		b.WriteString(m.status)
		b.WriteString("\n")
	}
	if m.lastEvent != "" {
		b.WriteString(styles.MutedStyle.Render("event: " + m.lastEvent))
		b.WriteString("\n")
	}
	if m.lastLog != "" {
		b.WriteString(styles.MutedStyle.Render(m.fit("log: " + m.lastLog)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keyMap))
	return b.String()
}

// fit truncates a single line to the terminal width once it is known.
func (m Model) fit(line string) string {
	if m.width <= 0 {
		return line
	}
	return styles.TruncateString(line, m.width)
}
