package game

import (
	"context"
	"io"
	"slices"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"
)

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

// stackedDeck deals fixed cards. Cards are listed in the order they will be
// revealed; round n uses rounds[n-1], repeating the last entry.
type stackedDeck struct {
	rounds [][]Card
	values []int
	built  int
}

func stacked(rounds ...[]Card) *stackedDeck {
	return &stackedDeck{rounds: rounds, values: []int{1, 5}}
}

func (s *stackedDeck) TreasureValues(int) []int { return slices.Clone(s.values) }

func (s *stackedDeck) Build(int) *Deck {
	cards := slices.Clone(s.rounds[min(s.built, len(s.rounds)-1)])
	s.built++
	slices.Reverse(cards)
	return NewDeck(cards)
}

// manualConfig turns off everything automatic except the join window, so
// tests drive reveals and decisions by hand.
func manualConfig() Config {
	cfg := DefaultConfig()
	cfg.AutoReveal = false
	cfg.RoundBreak = 0
	cfg.SafeFirstCard = false
	cfg.RelicsPerRound = 0
	return cfg
}

type harness struct {
	t     *testing.T
	game  *Game
	clock *quartz.Mock
	rec   *EventRecorder
}

func newHarness(t *testing.T, cfg Config, deck DeckBuilder) *harness {
	t.Helper()
	clock := quartz.NewMock(t)
	g := New(cfg,
		WithClock(clock),
		WithLogger(quietLogger()),
		WithDeckBuilder(deck),
		WithIDGenerator(func() string { return "dmt_test" }),
	)
	rec := &EventRecorder{}
	g.Subscribe(rec)
	return &harness{t: t, game: g, clock: clock, rec: rec}
}

func (h *harness) advance(d time.Duration) {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h.clock.Advance(d).MustWait(ctx)
}

func (h *harness) advanceNext() time.Duration {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d, w := h.clock.AdvanceNext()
	w.MustWait(ctx)
	return d
}

// start opens a game, joins names and lets the join window run out.
func (h *harness) start(limit int, names ...string) {
	h.t.Helper()
	require.True(h.t, h.game.StartGame(limit))
	for _, n := range names {
		h.game.HandleCommand(n, "!join")
	}
	h.advance(h.game.Config().JoinWindow)
}

func (h *harness) reveal() {
	h.t.Helper()
	require.True(h.t, h.game.RevealNext(), "reveal in phase %s", h.game.Phase())
}

func (h *harness) decide() {
	h.t.Helper()
	require.True(h.t, h.game.ForceDecision(), "decide in phase %s", h.game.Phase())
}

func (h *harness) exit(names ...string) {
	h.t.Helper()
	for _, n := range names {
		res := h.game.HandleCommand(n, "!exit")
		require.Equal(h.t, CommandExitQueued, res.Outcome, "exit for %s: %s", n, res.Reason)
	}
}

func (h *harness) player(id string) Player {
	h.t.Helper()
	h.game.mu.Lock()
	defer h.game.mu.Unlock()
	p, ok := h.game.byKey[playerKey(id)]
	require.True(h.t, ok, "player %s not registered", id)
	return *p
}

func (h *harness) round() *Round {
	h.game.mu.Lock()
	defer h.game.mu.Unlock()
	return h.game.round
}

func lastOf[T GameEvent](rec *EventRecorder) (T, bool) {
	var zero T
	events := rec.Events()
	for i := len(events) - 1; i >= 0; i-- {
		if e, ok := events[i].(T); ok {
			return e, true
		}
	}
	return zero, false
}

func allOf[T GameEvent](rec *EventRecorder) []T {
	var out []T
	for _, e := range rec.Events() {
		if v, ok := e.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func treasure(v int) Card { return NewTreasure(v) }
func trap(t TrapType) Card { return NewTrap(t) }
