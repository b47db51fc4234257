package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTreasureSplitAndExit(t *testing.T) {
	// Two players, a 10 ruby card, both leave.
	h := newHarness(t, manualConfig(), stacked([]Card{treasure(10), trap(TrapSnake)}))
	h.start(0, "alice", "bob")
	require.Equal(t, PhaseRevealing, h.game.Phase())

	h.reveal()
	assert.Equal(t, PhaseDeciding, h.game.Phase())
	assert.Equal(t, 5, h.player("alice").Holding)
	assert.Equal(t, 5, h.player("bob").Holding)

	revealed, ok := lastOf[CardRevealedEvent](h.rec)
	require.True(t, ok)
	assert.Equal(t, 0, revealed.Card.Value)
	assert.Equal(t, 10, revealed.Card.OriginalValue)
	assert.Equal(t, 5, revealed.Share)

	h.exit("alice", "bob")
	h.decide()

	for _, name := range []string{"alice", "bob"} {
		p := h.player(name)
		assert.Equal(t, 5, p.Chest, name)
		assert.Equal(t, 0, p.Holding, name)
	}

	ended := allOf[RoundEndedEvent](h.rec)
	require.Len(t, ended, 1)
	assert.Equal(t, EndEveryoneLeft, ended[0].Reason)
	assert.Equal(t, 10, ended[0].Stats.TreasureFound)
	assert.Equal(t, 10, ended[0].Stats.TreasureTaken)
	assert.Equal(t, 2, ended[0].Stats.PlayersExited)

	// RoundBreak is zero, so round 2 is already under way.
	assert.Equal(t, PhaseRevealing, h.game.Phase())
	assert.Equal(t, StatusIn, h.player("alice").Status)
}

func TestRevealSplitKeepsRemainderOnCard(t *testing.T) {
	h := newHarness(t, manualConfig(), stacked([]Card{treasure(10), treasure(3)}))
	h.start(0, "a", "b", "c")

	h.reveal()
	for _, n := range []string{"a", "b", "c"} {
		assert.Equal(t, 3, h.player(n).Holding)
	}
	path := h.round().Path()
	require.Len(t, path, 2)
	assert.Equal(t, CardEntrance, path[0].Kind)
	assert.Equal(t, 1, path[1].Value)
	assert.Equal(t, 10, path[1].OriginalValue)
	assert.Equal(t, 1, h.round().TreasureOnPath())

	// One leaves and takes the lone ruby from the path.
	h.exit("a")
	h.decide()
	assert.Equal(t, 4, h.player("a").Chest)
	assert.Equal(t, StatusExited, h.player("a").Status)
	assert.Equal(t, 0, h.round().TreasureOnPath())
	assert.Equal(t, 0, h.round().Path()[1].Value)

	// The rest continue; the next card splits between two.
	h.reveal()
	assert.Equal(t, 4, h.player("b").Holding)
	assert.Equal(t, 4, h.player("c").Holding)
	assert.Equal(t, 1, h.round().TreasureOnPath())
}

func TestExitSplitDiscardsRemainder(t *testing.T) {
	h := newHarness(t, manualConfig(), stacked([]Card{treasure(7), treasure(9)}))
	h.start(0, "a", "b", "c")

	h.reveal() // 2 each, 1 on the path
	h.exit("a", "b")
	h.decide()

	exited, ok := lastOf[PlayersExitedEvent](h.rec)
	require.True(t, ok)
	assert.Equal(t, 0, exited.Share)
	assert.Equal(t, 1, exited.Discarded)
	assert.Equal(t, []string{"a", "b"}, exited.Players)

	assert.Equal(t, 2, h.player("a").Chest)
	assert.Equal(t, 2, h.player("b").Chest)
	assert.Equal(t, 0, h.round().TreasureOnPath())

	// The discarded ruby is gone for good; c only gets new treasure.
	h.reveal()
	assert.Equal(t, 11, h.player("c").Holding)
	assert.Equal(t, 0, h.round().TreasureOnPath())
}

func TestSingleTrapDoesNotActivate(t *testing.T) {
	h := newHarness(t, manualConfig(), stacked(
		[]Card{treasure(5), trap(TrapSnake), treasure(2)},
		[]Card{trap(TrapSnake), treasure(4)},
	))
	h.start(0, "solo")

	h.reveal()
	h.decide()
	h.reveal()
	assert.Equal(t, PhaseDeciding, h.game.Phase())
	assert.Equal(t, 1, h.round().TrapCount(TrapSnake))
	_, pending := h.round().PendingTrap()
	assert.False(t, pending)

	h.exit("solo")
	h.decide()
	assert.Equal(t, 5, h.player("solo").Chest)

	// Counts reset with the new round.
	require.Equal(t, 2, h.round().Number)
	h.reveal()
	assert.Equal(t, PhaseDeciding, h.game.Phase())
	assert.Equal(t, 1, h.round().TrapCount(TrapSnake))
	assert.Empty(t, allOf[TrapActivatedEvent](h.rec))
}

func TestSecondTrapActivatesAfterDecisions(t *testing.T) {
	cfg := manualConfig()
	cfg.MaxRounds = 1
	h := newHarness(t, cfg, stacked([]Card{trap(TrapLava), treasure(9), trap(TrapLava)}))
	h.start(0, "a", "b", "c")

	h.reveal()
	h.decide()
	h.reveal()
	h.decide()
	for _, n := range []string{"a", "b", "c"} {
		require.Equal(t, 3, h.player(n).Holding)
	}

	h.reveal()
	// Danger is announced but the trap waits for the decision phase.
	assert.Equal(t, PhaseDeciding, h.game.Phase())
	revealed, _ := lastOf[CardRevealedEvent](h.rec)
	assert.True(t, revealed.Danger)
	assert.Equal(t, 2, revealed.TrapCount)
	assert.Empty(t, allOf[TrapActivatedEvent](h.rec))

	h.decide()

	for _, n := range []string{"a", "b", "c"} {
		p := h.player(n)
		assert.Equal(t, 0, p.Holding, n)
		assert.Equal(t, 0, p.Chest, n)
		assert.Equal(t, StatusOut, p.Status, n)
		assert.False(t, p.InCave, n)
	}

	activations := allOf[TrapActivatedEvent](h.rec)
	require.Len(t, activations, 1)
	assert.Equal(t, TrapLava, activations[0].Trap)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, activations[0].Victims)
	assert.Equal(t, 9, activations[0].Lost)

	ended := allOf[RoundEndedEvent](h.rec)
	require.Len(t, ended, 1)
	assert.Equal(t, EndTrap, ended[0].Reason)
	assert.Equal(t, 1, ended[0].Stats.TrapsSprung)
	assert.Equal(t, 3, ended[0].Stats.PlayersTrapped)
	assert.Equal(t, 0, ended[0].Stats.TreasureTaken)
}

func TestExitOnTrapTickEscapes(t *testing.T) {
	cfg := manualConfig()
	cfg.MaxRounds = 1
	h := newHarness(t, cfg, stacked([]Card{treasure(4), trap(TrapSpider), trap(TrapSpider)}))
	h.start(0, "alice", "bob")

	h.reveal()
	h.decide()
	h.reveal()
	h.decide()
	h.reveal() // second spider

	h.exit("alice")
	h.decide()

	assert.Equal(t, 2, h.player("alice").Chest)
	assert.Equal(t, StatusExited, h.player("alice").Status)
	assert.Equal(t, 0, h.player("bob").Chest)
	assert.Equal(t, StatusOut, h.player("bob").Status)

	activations := allOf[TrapActivatedEvent](h.rec)
	require.Len(t, activations, 1)
	assert.Equal(t, []string{"bob"}, activations[0].Victims)
}

func TestDeckExhaustionStrandsPlayers(t *testing.T) {
	h := newHarness(t, manualConfig(), stacked([]Card{treasure(4)}))
	h.start(0, "solo")

	h.reveal()
	h.decide()
	require.Equal(t, PhaseRevealing, h.game.Phase())
	h.reveal()

	ended := allOf[RoundEndedEvent](h.rec)
	require.Len(t, ended, 1)
	assert.Equal(t, EndDeckEmpty, ended[0].Reason)
	assert.Equal(t, 1, ended[0].Stats.PlayersStranded)
	assert.Equal(t, 4, ended[0].Stats.TreasureLost)
	assert.Equal(t, 0, h.player("solo").Chest)
}

func TestSafeFirstCard(t *testing.T) {
	cfg := manualConfig()
	cfg.SafeFirstCard = true

	t.Run("takes the first non-trap out of order", func(t *testing.T) {
		h := newHarness(t, cfg, stacked([]Card{trap(TrapSnake), trap(TrapPoison), treasure(3), treasure(8)}))
		h.start(0, "solo")
		h.reveal()

		path := h.round().Path()
		require.Len(t, path, 2)
		assert.Equal(t, CardTreasure, path[1].Kind)
		assert.Equal(t, 3, path[1].OriginalValue)

		// The traps are still on top afterwards.
		h.decide()
		h.reveal()
		assert.Equal(t, CardTrap, h.round().Path()[2].Kind)
		assert.Equal(t, TrapSnake, h.round().Path()[2].Trap)
	})

	t.Run("synthesises a treasure when only traps remain", func(t *testing.T) {
		deck := stacked([]Card{trap(TrapSnake), trap(TrapSpider)})
		deck.values = []int{2, 9}
		h := newHarness(t, cfg, deck)
		h.start(0, "solo")
		h.reveal()

		path := h.round().Path()
		assert.Equal(t, CardTreasure, path[1].Kind)
		assert.Equal(t, 2, path[1].OriginalValue)
		assert.Equal(t, 2, h.player("solo").Holding)
	})
}

func TestPlayerLimit(t *testing.T) {
	h := newHarness(t, manualConfig(), stacked([]Card{treasure(1)}))
	require.True(t, h.game.StartGame(2))

	assert.Equal(t, CommandJoined, h.game.HandleCommand("one", "!join").Outcome)
	assert.Equal(t, CommandJoined, h.game.HandleCommand("two", "!join").Outcome)

	before := h.game.Snapshot()
	res := h.game.HandleCommand("three", "!join")
	assert.Equal(t, CommandIgnored, res.Outcome)
	assert.Equal(t, ReasonPlayerLimit, res.Reason)
	assert.Equal(t, before, h.game.Snapshot())
	assert.Len(t, allOf[PlayerJoinedEvent](h.rec), 2)
}

func TestFullGameRanksByChest(t *testing.T) {
	// Every round: a 2 is split, alice leaves with 1, bob stays for the 6.
	h := newHarness(t, manualConfig(), stacked([]Card{treasure(2), treasure(6)}))
	h.start(0, "alice", "bob")

	for round := 1; round <= 5; round++ {
		require.Equal(t, round, h.round().Number)
		h.reveal()
		h.exit("alice")
		h.decide()
		h.reveal()
		h.exit("bob")
		h.decide()
	}

	require.Equal(t, PhaseGameEnd, h.game.Phase())
	ended, ok := lastOf[GameEndedEvent](h.rec)
	require.True(t, ok)
	assert.Equal(t, "bob", ended.Winner)
	assert.Equal(t, []Standing{
		{Rank: 1, Name: "bob", Chest: 35},
		{Rank: 2, Name: "alice", Chest: 5},
	}, ended.Standings)
	assert.Equal(t, ended.Standings, h.game.Standings())
	assert.Len(t, allOf[RoundEndedEvent](h.rec), 5)
	assert.True(t, allOf[RoundEndedEvent](h.rec)[4].Final)

	// Nothing moves after the game is over.
	assert.False(t, h.game.RevealNext())
	assert.False(t, h.game.ForceDecision())
}

func TestRankBreaksTiesByJoinOrder(t *testing.T) {
	players := []*Player{
		{ID: "first", JoinOrder: 0, Chest: 10},
		{ID: "second", JoinOrder: 1, Chest: 12},
		{ID: "third", JoinOrder: 2, Chest: 10},
		{ID: "<b>", JoinOrder: 3, Chest: 0},
	}
	got := Rank(players)
	assert.Equal(t, []Standing{
		{Rank: 1, Name: "second", Chest: 12},
		{Rank: 2, Name: "first", Chest: 10},
		{Rank: 3, Name: "third", Chest: 10},
		{Rank: 4, Name: "&lt;b&gt;", Chest: 0},
	}, got)
}

func TestNobodyJoinsAborts(t *testing.T) {
	h := newHarness(t, manualConfig(), stacked([]Card{treasure(1)}))
	h.start(0)

	assert.Equal(t, PhaseWaiting, h.game.Phase())
	aborted, ok := lastOf[GameAbortedEvent](h.rec)
	require.True(t, ok)
	assert.Equal(t, "nobody joined", aborted.Reason)
	assert.Empty(t, allOf[RoundStartedEvent](h.rec))
}

func TestStartGameResetsPlayers(t *testing.T) {
	h := newHarness(t, manualConfig(), stacked([]Card{treasure(2)}))
	h.start(0, "alice")
	assert.False(t, h.game.StartGame(0), "cannot start while running")

	require.True(t, h.game.StopGame())
	assert.Equal(t, PhaseWaiting, h.game.Phase())

	require.True(t, h.game.StartGame(0))
	assert.Empty(t, h.game.Snapshot().Players)
	assert.Equal(t, PhaseJoining, h.game.Phase())
}

func TestStopGameCancelsTimers(t *testing.T) {
	h := newHarness(t, manualConfig(), stacked([]Card{treasure(2)}))
	require.True(t, h.game.StartGame(0))
	h.game.HandleCommand("alice", "!join")
	require.True(t, h.game.StopGame())

	cancelled := allOf[TimerCancelledEvent](h.rec)
	require.Len(t, cancelled, 1)
	assert.Equal(t, TimerJoin, cancelled[0].Purpose)

	// The old join window elapsing must not start a round.
	h.advance(h.game.Config().JoinWindow)
	assert.Equal(t, PhaseWaiting, h.game.Phase())
	assert.Empty(t, allOf[RoundStartedEvent](h.rec))
	assert.False(t, h.game.StopGame())
}

func TestDecisionTimerFiresOnce(t *testing.T) {
	h := newHarness(t, manualConfig(), stacked([]Card{treasure(4), treasure(6)}))
	h.start(0, "alice", "bob")
	h.reveal()
	h.exit("alice")

	h.advance(h.game.Config().DecisionWindow)
	assert.Equal(t, 2, h.player("alice").Chest)
	assert.Equal(t, PhaseRevealing, h.game.Phase())

	// A late manual trigger for the same phase is a no-op.
	assert.False(t, h.game.ForceDecision())
	assert.Equal(t, 2, h.player("alice").Chest)
	assert.Len(t, allOf[PlayersExitedEvent](h.rec), 1)
}

func TestForceDecisionCancelsTimer(t *testing.T) {
	h := newHarness(t, manualConfig(), stacked([]Card{treasure(4), treasure(6)}))
	h.start(0, "alice", "bob")
	h.reveal()
	h.exit("alice")

	h.decide()
	assert.False(t, h.game.ForceDecision())

	// The cancelled decision timer never fires into the next phase.
	h.reveal()
	h.exit("bob")
	h.advance(time.Second)
	assert.Equal(t, PhaseDeciding, h.game.Phase())
	assert.Equal(t, 0, h.player("bob").Chest)

	h.advance(h.game.Config().DecisionWindow - time.Second)
	assert.Equal(t, 8, h.player("bob").Chest)
	assert.Len(t, allOf[PlayersExitedEvent](h.rec), 2)
}

func TestAutomaticPacing(t *testing.T) {
	cfg := manualConfig()
	cfg.AutoReveal = true
	cfg.RevealDelay = 1500 * time.Millisecond
	cfg.RoundBreak = 3 * time.Second
	cfg.MaxRounds = 1
	h := newHarness(t, cfg, stacked([]Card{treasure(6), treasure(2)}))

	h.start(0, "alice", "bob")
	require.Equal(t, PhaseRevealing, h.game.Phase())

	assert.Equal(t, cfg.RevealDelay, h.advanceNext())
	require.Equal(t, PhaseDeciding, h.game.Phase())
	assert.Equal(t, 3, h.player("alice").Holding)

	started, ok := lastOf[TimerStartedEvent](h.rec)
	require.True(t, ok)
	assert.Equal(t, TimerDecision, started.Purpose)
	assert.Equal(t, cfg.DecisionWindow, started.Duration)

	h.exit("alice", "bob")
	assert.Equal(t, cfg.DecisionWindow, h.advanceNext())
	require.Equal(t, PhaseRoundEnd, h.game.Phase())

	assert.Equal(t, cfg.RoundBreak, h.advanceNext())
	assert.Equal(t, PhaseGameEnd, h.game.Phase())
}

func TestGamemaster(t *testing.T) {
	cfg := manualConfig()
	cfg.Gamemaster = true
	h := newHarness(t, cfg, stacked([]Card{treasure(4), treasure(6)}))

	require.True(t, h.game.StartGame(1))
	res := h.game.HandleCommand("gamemaster", "!join")
	assert.Equal(t, ReasonReservedName, res.Reason)
	// The Gamemaster does not count towards the chat limit.
	assert.Equal(t, CommandJoined, h.game.HandleCommand("viewer", "!join").Outcome)
	h.advance(cfg.JoinWindow)

	assert.False(t, h.game.GamemasterExit(), "only during decisions")
	h.reveal()
	assert.Equal(t, 2, h.player(GamemasterID).Holding)

	assert.Equal(t, ReasonUnknownPlayer, h.game.HandleCommand("Gamemaster", "!exit").Reason)
	require.True(t, h.game.GamemasterExit())
	assert.False(t, h.game.GamemasterExit(), "already queued")
	h.decide()

	gm := h.player(GamemasterID)
	assert.True(t, gm.Gamemaster)
	assert.Equal(t, 2, gm.Chest)
	assert.Equal(t, StatusExited, gm.Status)
}

func TestSnapshot(t *testing.T) {
	h := newHarness(t, manualConfig(), stacked([]Card{treasure(5), trap(TrapRockfall)}))
	h.start(3, "alice", "bob")
	h.reveal()
	h.decide()
	h.reveal()

	s := h.game.Snapshot()
	assert.Equal(t, "dmt_test", s.GameID)
	assert.Equal(t, PhaseDeciding, s.Phase)
	assert.Equal(t, 1, s.Round)
	assert.Equal(t, 3, s.PlayerLimit)
	assert.Len(t, s.Players, 2)
	assert.Len(t, s.Path, 3)
	assert.Equal(t, 1, s.TreasureOnPath)
	assert.Equal(t, map[TrapType]int{TrapRockfall: 1}, s.TrapCounts)
	require.NotNil(t, s.Timer)
	assert.Equal(t, TimerDecision, s.Timer.Purpose)
	assert.Equal(t, h.game.Config().DecisionWindow, s.Timer.Remaining)
}

func TestEventsEscapeNames(t *testing.T) {
	h := newHarness(t, manualConfig(), stacked([]Card{treasure(2)}))
	require.True(t, h.game.StartGame(0))
	h.game.HandleCommand(`<img src=x onerror="alert('x')">`, "!join")

	joined, ok := lastOf[PlayerJoinedEvent](h.rec)
	require.True(t, ok)
	assert.Equal(t, "&lt;img src=x onerror=&quot;alert(&#039;x&#039;)&quot;&gt;", joined.Player.Name)

	for _, e := range allOf[LogEvent](h.rec) {
		assert.NotContains(t, e.Text, "<img")
	}
}

func TestCloseJoinWindow(t *testing.T) {
	h := newHarness(t, manualConfig(), stacked([]Card{treasure(2)}))
	assert.False(t, h.game.CloseJoinWindow())

	require.True(t, h.game.StartGame(0))
	h.game.HandleCommand("alice", "!join")
	require.True(t, h.game.CloseJoinWindow())
	assert.Equal(t, PhaseRevealing, h.game.Phase())
	assert.False(t, h.game.CloseJoinWindow())

	cancelled, ok := lastOf[TimerCancelledEvent](h.rec)
	require.True(t, ok)
	assert.Equal(t, TimerJoin, cancelled.Purpose)
	assert.Len(t, allOf[RoundStartedEvent](h.rec), 1)
}
