package tui

import (
	"io"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayyybubu/RoD/internal/game"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

func newTestDashboard(t *testing.T) (*Dashboard, *game.Game) {
	t.Helper()
	SetColor(false)
	cfg := game.DefaultConfig()
	cfg.AutoReveal = false
	cfg.SafeFirstCard = true
	g := game.New(cfg, game.WithClock(quartz.NewMock(t)), game.WithLogger(testLogger()))
	d := NewDashboard(g, 0, testLogger())
	g.Subscribe(d)
	return d, g
}

// drain feeds every queued event through Update, as the program loop would.
func drain(d *Dashboard) {
	for {
		select {
		case e := <-d.events:
			d.Update(eventMsg{e})
		default:
			return
		}
	}
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestDashboardHostKeys(t *testing.T) {
	d, g := newTestDashboard(t)

	d.Update(key("s"))
	assert.Equal(t, game.PhaseJoining, g.Phase())
	assert.Contains(t, d.status, "start")

	d.Update(key("n"))
	assert.Contains(t, d.status, "reveal: not now")

	g.HandleCommand("alice", "!join")
	d.Update(key("b"))
	assert.Equal(t, game.PhaseRevealing, g.Phase())
	d.Update(key("n"))
	assert.Equal(t, game.PhaseDeciding, g.Phase())

	d.Update(key("x"))
	assert.Equal(t, game.PhaseWaiting, g.Phase())
}

func TestDashboardFollowsEvents(t *testing.T) {
	d, g := newTestDashboard(t)
	d.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	require.True(t, g.StartGame(0))
	g.HandleCommand("<b>Alice</b>", "!join")
	drain(d)

	require.NotNil(t, d.timer)
	assert.Equal(t, game.TimerJoin, d.timer.purpose)
	assert.Equal(t, game.PhaseJoining, d.snap.Phase)
	require.Len(t, d.snap.Players, 1)

	view := d.View()
	assert.Contains(t, view, "phase: joining")
	assert.Contains(t, view, "<b>Alice</b> joined the game!", "names are shown unescaped in the terminal")
	assert.Contains(t, view, "join")

	require.True(t, g.StopGame())
	drain(d)
	assert.Nil(t, d.timer)
	assert.Equal(t, game.PhaseWaiting, d.snap.Phase)
}

func TestDashboardDropsWhenBehind(t *testing.T) {
	d, _ := newTestDashboard(t)
	for i := 0; i < eventBuffer+3; i++ {
		d.OnEvent(game.LogEvent{Text: "spam"})
	}
	assert.Equal(t, int64(3), d.dropped.Load())

	d.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	assert.Contains(t, d.View(), "3 events dropped")
}

func TestDashboardQuit(t *testing.T) {
	d, _ := newTestDashboard(t)
	d.Quit()
	d.Quit() // does not block

	msg := d.listenForQuit()()
	_, cmd := d.Update(msg)
	assert.NotNil(t, cmd)
	assert.True(t, d.quitting)
	assert.Empty(t, d.View())
}

func TestDashboardLogIsBounded(t *testing.T) {
	d, _ := newTestDashboard(t)
	for i := 0; i < maxLogLines+10; i++ {
		d.apply(game.LogEvent{Header: game.Header{At: time.Unix(0, 0)}, Text: "line"})
	}
	assert.Len(t, d.gameLog, maxLogLines)
}
