// Package game implements the rules of Diamant, a push-your-luck cave
// exploration game played from chat.
//
// The main type is Game, which owns the players, the phase and the timers
// of one table, and hands each round to a Round engine that reveals cards,
// splits treasure and resolves traps.
//
// # Basic Usage
//
//	g := game.New(game.DefaultConfig(), game.WithLogger(logger))
//	g.Subscribe(renderer)
//	g.StartGame(0)
//	g.HandleCommand("alice", "!join")
//	// ... the join window elapses, cards are revealed ...
//	g.HandleCommand("alice", "!exit")
//
// # Deterministic Testing
//
// Timers run on a quartz.Clock and decks come from a DeckBuilder, so tests
// can inject a mock clock and a fixed deck:
//
//	clock := quartz.NewMock(t)
//	g := game.New(cfg, game.WithClock(clock), game.WithRand(randutil.New(42)))
//
// Turning AutoReveal off and calling RevealNext and ForceDecision drives a
// game without any clock at all.
//
// # Architecture
//
//   - Deck / ScaledDeckBuilder: per-round decks with treasure scaled to the
//     number of players
//   - Round: path, trap counts, reveal-time and exit-time splits
//   - Game: join window, round sequencing, final ranking, timers
//   - HandleCommand: chat command processing
//
// Every state change is published as a GameEvent. Names that came from chat
// are HTML-escaped before they are put into an event.
package game
