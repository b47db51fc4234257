// Package tui is the host's terminal dashboard: it shows the cave path,
// the players, the narration and the running timer, and maps keys to the
// host controls of a game.
package tui

import (
	"fmt"
	"html"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/ayyybubu/RoD/internal/game"
)

// Host is the part of a game the dashboard drives. *game.Game implements it.
type Host interface {
	StartGame(playerLimit int) bool
	CloseJoinWindow() bool
	StopGame() bool
	RevealNext() bool
	ForceDecision() bool
	GamemasterExit() bool
	Snapshot() game.Snapshot
}

const (
	eventBuffer  = 512
	maxLogLines  = 500
	sidebarWidth = 30
)

// eventMsg carries a game event into the Bubble Tea loop.
type eventMsg struct{ event game.GameEvent }

// tickMsg redraws the countdown.
type tickMsg time.Time

// QuitMsg is a custom message to signal quit
type QuitMsg struct{}

// Dashboard is the Bubble Tea model. It is also a game.EventSubscriber:
// OnEvent only queues, the model reads the queue from its own goroutine.
type Dashboard struct {
	host        Host
	logger      *log.Logger
	playerLimit int
	now         func() time.Time

	events     chan game.GameEvent
	dropped    atomic.Int64
	quitSignal chan struct{}

	logViewport viewport.Model
	gameLog     []string
	snap        game.Snapshot
	timer       *countdown
	status      string

	width       int
	height      int
	initialized bool
	quitting    bool
}

type countdown struct {
	purpose  game.TimerPurpose
	deadline time.Time
}

// NewDashboard creates the model. playerLimit is used when the host
// starts a game from the keyboard.
func NewDashboard(host Host, playerLimit int, logger *log.Logger) *Dashboard {
	vp := viewport.New(10, 5)
	vp.SetContent("")
	return &Dashboard{
		host:        host,
		logger:      logger.WithPrefix("tui"),
		playerLimit: playerLimit,
		now:         time.Now,
		events:      make(chan game.GameEvent, eventBuffer),
		quitSignal:  make(chan struct{}, 1),
		logViewport: vp,
		snap:        host.Snapshot(),
	}
}

// OnEvent queues e for the model. It never blocks the game; when the
// dashboard falls behind, events are dropped and counted.
func (m *Dashboard) OnEvent(e game.GameEvent) {
	select {
	case m.events <- e:
	default:
		m.dropped.Add(1)
	}
}

// Quit asks a running program to exit.
func (m *Dashboard) Quit() {
	select {
	case m.quitSignal <- struct{}{}:
	default:
	}
}

// Init initializes the TUI model
func (m *Dashboard) Init() tea.Cmd {
	return tea.Batch(m.listenForEvents(), m.listenForQuit(), tick())
}

func (m *Dashboard) listenForEvents() tea.Cmd {
	return func() tea.Msg {
		return eventMsg{<-m.events}
	}
}

// listenForQuit returns a command that listens for quit signals
func (m *Dashboard) listenForQuit() tea.Cmd {
	return func() tea.Msg {
		<-m.quitSignal
		return QuitMsg{}
	}
}

func tick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles messages in the TUI
func (m *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case QuitMsg:
		m.quitting = true
		return m, tea.Sequence(tea.ClearScreen, tea.Quit)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.logger.Debug("Updating dimensions", "width", m.width, "height", m.height)

	case eventMsg:
		m.apply(msg.event)
		cmds = append(cmds, m.listenForEvents())

	case tickMsg:
		cmds = append(cmds, tick())

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Sequence(tea.ClearScreen, tea.Quit)
		case "s":
			m.control("start", m.host.StartGame(m.playerLimit))
		case "b":
			m.control("begin", m.host.CloseJoinWindow())
		case "n":
			m.control("reveal", m.host.RevealNext())
		case "d":
			m.control("force decision", m.host.ForceDecision())
		case "g":
			m.control("gamemaster exit", m.host.GamemasterExit())
		case "x":
			m.control("stop", m.host.StopGame())
		case "up", "k":
			m.logViewport.ScrollUp(1)
		case "down", "j":
			m.logViewport.ScrollDown(1)
		case "pgup":
			m.logViewport.HalfPageUp()
		case "pgdown":
			m.logViewport.HalfPageDown()
		case "home":
			m.logViewport.GotoTop()
		case "end":
			m.logViewport.GotoBottom()
		}
		// The viewport's own key map would claim d and f.
		return m, tea.Batch(cmds...)
	}

	var cmd tea.Cmd
	m.logViewport, cmd = m.logViewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *Dashboard) control(name string, ok bool) {
	if ok {
		m.status = SuccessStyle.Render(name)
	} else {
		m.status = ErrorStyle.Render(name + ": not now")
	}
	m.logger.Debug("Host control", "control", name, "applied", ok)
}

// apply folds an event into the view state.
func (m *Dashboard) apply(e game.GameEvent) {
	switch e := e.(type) {
	case game.LogEvent:
		m.addLog(e.Timestamp(), html.UnescapeString(e.Text))
		return
	case game.TimerStartedEvent:
		m.timer = &countdown{purpose: e.Purpose, deadline: e.Deadline}
		return
	case game.TimerCancelledEvent:
		if m.timer != nil && m.timer.purpose == e.Purpose {
			m.timer = nil
		}
		return
	case game.PhaseChangedEvent:
		// Every timer belongs to a phase.
		m.timer = nil
	}
	m.snap = m.host.Snapshot()
}

func (m *Dashboard) addLog(at time.Time, text string) {
	stamp := InfoStyle.Render(at.Format("15:04:05"))
	for _, line := range strings.Split(text, "\n") {
		m.gameLog = append(m.gameLog, stamp+" "+GameLogStyle.Render(line))
	}
	if over := len(m.gameLog) - maxLogLines; over > 0 {
		m.gameLog = m.gameLog[over:]
	}
	m.logViewport.SetContent(strings.Join(m.gameLog, "\n"))
	m.logViewport.GotoBottom()
}

// View renders the TUI
func (m *Dashboard) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	header := m.renderHeader()
	path := paneStyle.Width(max(1, m.width-2)).Render(m.renderPath())
	footer := m.renderFooter()
	used := lipgloss.Height(header) + lipgloss.Height(path) + lipgloss.Height(footer)

	paneHeight := max(1, m.height-used-2)
	logWidth := max(1, m.width-sidebarWidth-4)

	m.logViewport.Width = logWidth
	m.logViewport.Height = paneHeight
	if !m.initialized && logWidth > 1 && paneHeight > 1 {
		m.logViewport.GotoBottom()
		m.initialized = true
	}

	logPane := paneStyle.Width(logWidth).Height(paneHeight).Render(m.logViewport.View())
	sidebar := paneStyle.Width(sidebarWidth).Height(paneHeight).Render(m.renderPlayers())

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		path,
		lipgloss.JoinHorizontal(lipgloss.Top, logPane, sidebar),
		footer,
	)
}

func (m *Dashboard) renderHeader() string {
	s := m.snap
	parts := []string{"Diamant", fmt.Sprintf("phase: %s", s.Phase)}
	if s.Phase.Active() || s.Phase == game.PhaseGameEnd {
		parts = append(parts, fmt.Sprintf("round %d/%d", s.Round, s.MaxRounds))
	}
	if s.GameID != "" {
		parts = append(parts, s.GameID)
	}
	return HeaderStyle.Render(strings.Join(parts, " | "))
}

func (m *Dashboard) renderPath() string {
	if len(m.snap.Path) == 0 {
		return InfoStyle.Render("The cave is closed.")
	}
	cards := make([]string, len(m.snap.Path))
	for i, c := range m.snap.Path {
		cards[i] = renderCard(c)
	}
	line := strings.Join(cards, " ")
	return line + "\n" + WarningStyle.Render(fmt.Sprintf("On the path: %d rubies", m.snap.TreasureOnPath))
}

func renderCard(c game.Card) string {
	switch c.Kind {
	case game.CardTreasure:
		return TreasureStyle.Render(fmt.Sprintf("[%d/%d]", c.Value, c.OriginalValue))
	case game.CardRelic:
		return RelicStyle.Render(fmt.Sprintf("[relic %d]", c.Value))
	case game.CardTrap:
		return TrapStyle.Render(fmt.Sprintf("[%s]", c.Trap))
	default:
		return EntranceStyle.Render("[entrance]")
	}
}

func (m *Dashboard) renderPlayers() string {
	var b strings.Builder
	limit := "no limit"
	if m.snap.PlayerLimit > 0 {
		limit = fmt.Sprintf("limit %d", m.snap.PlayerLimit)
	}
	b.WriteString(InfoStyle.Render(fmt.Sprintf("Players (%d, %s)", len(m.snap.Players), limit)))
	b.WriteString("\n")

	if len(m.snap.Standings) > 0 {
		for _, s := range m.snap.Standings {
			fmt.Fprintf(&b, "%d. %s %s\n", s.Rank, html.UnescapeString(s.Name), TreasureStyle.Render(fmt.Sprint(s.Chest)))
		}
		return b.String()
	}
	for _, p := range m.snap.Players {
		name := html.UnescapeString(p.Name)
		marker := " "
		switch {
		case p.Deciding:
			marker = WarningStyle.Render("»")
		case p.InCave:
			marker = SuccessStyle.Render("•")
		}
		fmt.Fprintf(&b, "%s %-12s %s %3d %s %3d\n", marker, truncate(name, 12),
			InfoStyle.Render("hold"), p.Holding, InfoStyle.Render("chest"), p.Chest)
	}
	return b.String()
}

func (m *Dashboard) renderFooter() string {
	var parts []string
	if m.timer != nil {
		left := max(0, m.timer.deadline.Sub(m.now()))
		parts = append(parts, WarningStyle.Render(fmt.Sprintf("%s %.0fs", m.timer.purpose, left.Seconds())))
	}
	if m.status != "" {
		parts = append(parts, m.status)
	}
	if n := m.dropped.Load(); n > 0 {
		parts = append(parts, ErrorStyle.Render(fmt.Sprintf("%d events dropped", n)))
	}
	parts = append(parts, InfoStyle.Render("s start • b begin • n reveal • d decide • g gamemaster exit • x stop • q quit"))
	return strings.Join(parts, "  ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
