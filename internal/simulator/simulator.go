// Package simulator plays full Diamant games between scripted bots and
// aggregates how each exit strategy fares. Bots talk to the engine exactly
// like chat users do, through HandleCommand, and the host triggers advance
// the game without waiting on any timer.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/ayyybubu/RoD/internal/fileutil"
	"github.com/ayyybubu/RoD/internal/game"
	"github.com/ayyybubu/RoD/internal/randutil"
	"github.com/ayyybubu/RoD/internal/statistics"
)

// maxSteps bounds the host triggers of a single game. A game needs at most
// two per card, so hitting it means the engine stopped advancing.
const maxSteps = 10_000

// ErrStalled is returned when a game stops advancing.
var ErrStalled = errors.New("game stalled")

// Config holds configuration for running simulations
type Config struct {
	Games      int
	Players    int      // seats per game
	Strategies []string // seat i plays Strategies[(i+game) % len]
	Seed       int64
	Rules      game.Config
	Timeout    time.Duration // per game
	Workers    int           // games played in parallel, 0 = GOMAXPROCS
	Logger     *log.Logger
}

// Report is the outcome of a simulation run.
type Report struct {
	Games      int                           `json:"games"`
	Players    int                           `json:"players"`
	Seed       int64                         `json:"seed"`
	Duration   time.Duration                 `json:"duration_ns"`
	Strategies map[string]statistics.Summary `json:"strategies"`
	Rounds     RoundTotals                   `json:"rounds"`

	stats map[string]*statistics.Statistics
}

// RoundTotals adds up the statistics of every round played.
type RoundTotals struct {
	Rounds  int                    `json:"rounds"`
	Reasons map[game.EndReason]int `json:"reasons"`
	game.RoundStats
}

// Stats returns the full statistics of one strategy.
func (r Report) Stats(strategy string) (*statistics.Statistics, bool) {
	s, ok := r.stats[strategy]
	return s, ok
}

// WriteJSON writes the report to path atomically.
func (r Report) WriteJSON(path string) error {
	return fileutil.WriteJSONAtomic(path, r)
}

// seat is one bot in one game.
type seat struct {
	name     string
	strategy Strategy
}

// gameOutcome is what a single game contributes to the report.
type gameOutcome struct {
	seats   []seat
	results []statistics.GameResult
	rounds  []game.RoundEndedEvent
}

// Run plays cfg.Games games and aggregates the results per strategy.
func Run(ctx context.Context, cfg Config) (Report, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if cfg.Games < 1 {
		return Report{}, fmt.Errorf("games must be at least 1, got %d", cfg.Games)
	}
	if cfg.Players < 1 {
		return Report{}, fmt.Errorf("players must be at least 1, got %d", cfg.Players)
	}
	if err := validStrategies(cfg.Strategies); err != nil {
		return Report{}, err
	}
	if err := cfg.Rules.Validate(); err != nil {
		return Report{}, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	// The host drives every step; nothing may be left to a timer.
	cfg.Rules.AutoReveal = false
	cfg.Rules.RoundBreak = 0
	cfg.Rules.Gamemaster = false

	logger := cfg.Logger.WithPrefix("sim")

	// Per-game chatter stays quiet unless debugging.
	gameLogger := cfg.Logger.With()
	if gameLogger.GetLevel() > log.DebugLevel {
		gameLogger.SetLevel(max(gameLogger.GetLevel(), log.WarnLevel))
	}
	cfg.Logger = gameLogger
	logger.Info("Starting simulation", "games", cfg.Games, "players", cfg.Players,
		"strategies", cfg.Strategies, "seed", cfg.Seed, "workers", workers)

	start := time.Now()
	outcomes := make([]gameOutcome, cfg.Games)

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i := 0; i < cfg.Games; i++ {
		eg.Go(func() error {
			outcome, err := playGameWithTimeout(ctx, cfg, i)
			if err != nil {
				return fmt.Errorf("game %d (seed %d): %w", i+1, cfg.Seed+int64(i), err)
			}
			outcomes[i] = outcome
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Report{}, err
	}

	report := Report{
		Games:      cfg.Games,
		Players:    cfg.Players,
		Seed:       cfg.Seed,
		Strategies: make(map[string]statistics.Summary),
		Rounds:     RoundTotals{Reasons: make(map[game.EndReason]int)},
		stats:      make(map[string]*statistics.Statistics),
	}
	// Folded in game order so the report does not depend on scheduling.
	for _, o := range outcomes {
		for i, s := range o.seats {
			st := report.stats[s.strategy.Name()]
			if st == nil {
				st = &statistics.Statistics{}
				report.stats[s.strategy.Name()] = st
			}
			st.Add(o.results[i])
		}
		for _, r := range o.rounds {
			report.Rounds.add(r)
		}
	}
	for name, st := range report.stats {
		if err := st.Validate(); err != nil {
			return Report{}, fmt.Errorf("statistics validation failed for %s: %w", name, err)
		}
		report.Strategies[name] = st.Summarize()
	}
	report.Duration = time.Since(start)

	logger.Info("Simulation finished", "games", cfg.Games, "rounds", report.Rounds.Rounds, "duration", report.Duration)
	return report, nil
}

func (t *RoundTotals) add(e game.RoundEndedEvent) {
	t.Rounds++
	t.Reasons[e.Reason]++
	t.CardsRevealed += e.Stats.CardsRevealed
	t.TreasureFound += e.Stats.TreasureFound
	t.TreasureTaken += e.Stats.TreasureTaken
	t.TreasureLost += e.Stats.TreasureLost
	t.TrapsEncountered += e.Stats.TrapsEncountered
	t.TrapsSprung += e.Stats.TrapsSprung
	t.PlayersExited += e.Stats.PlayersExited
	t.PlayersTrapped += e.Stats.PlayersTrapped
	t.PlayersStranded += e.Stats.PlayersStranded
}

// playGameWithTimeout runs a single game with timeout protection
func playGameWithTimeout(ctx context.Context, cfg Config, index int) (gameOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	return playGame(ctx, cfg, index)
}

// playGame runs one game from StartGame to GameEnd.
func playGame(ctx context.Context, cfg Config, index int) (gameOutcome, error) {
	seed := cfg.Seed + int64(index)
	rng := randutil.New(seed)

	g := game.New(cfg.Rules,
		game.WithLogger(cfg.Logger),
		game.WithRand(rng),
		game.WithIDGenerator(func() string { return fmt.Sprintf("sim_%d", seed) }),
	)

	// Seats rotate every game so join order, which breaks ties, is shared out.
	seats := make([]seat, cfg.Players)
	for i := range seats {
		name := cfg.Strategies[(i+index)%len(cfg.Strategies)]
		strategy, err := NewStrategy(name, randutil.New(seed^int64(i+1)<<32))
		if err != nil {
			return gameOutcome{}, err
		}
		seats[i] = seat{name: fmt.Sprintf("%s%d", name, i+1), strategy: strategy}
	}

	// Events are published under the game lock, and this goroutine is the
	// only caller, so the subscriber needs no locking of its own.
	exits := make(map[string]int)
	var rounds []game.RoundEndedEvent
	g.Subscribe(game.SubscriberFunc(func(e game.GameEvent) {
		switch e := e.(type) {
		case game.PlayersExitedEvent:
			for _, name := range e.Players {
				exits[name]++
			}
		case game.RoundEndedEvent:
			rounds = append(rounds, e)
		}
	}))

	if !g.StartGame(0) {
		return gameOutcome{}, fmt.Errorf("could not start game")
	}
	defer g.StopGame()

	for _, s := range seats {
		if res := g.HandleCommand(s.name, cfg.Rules.JoinCommand); !res.Applied() {
			return gameOutcome{}, fmt.Errorf("%s could not join: %s", s.name, res.Reason)
		}
	}
	g.CloseJoinWindow()

	exit := cfg.Rules.ExitCommands[0]
	for step := 0; ; step++ {
		if err := ctx.Err(); err != nil {
			return gameOutcome{}, err
		}
		if step >= maxSteps {
			return gameOutcome{}, fmt.Errorf("%w in phase %s", ErrStalled, g.Phase())
		}

		switch phase := g.Phase(); phase {
		case game.PhaseRevealing:
			g.RevealNext()
		case game.PhaseDeciding:
			snap := g.Snapshot()
			for _, s := range seats {
				obs, inCave := observe(snap, s.name)
				if inCave && s.strategy.Exit(obs) {
					g.HandleCommand(s.name, exit)
				}
			}
			g.ForceDecision()
		case game.PhaseGameEnd:
			return collect(g, seats, seed, exits, rounds), nil
		default:
			return gameOutcome{}, fmt.Errorf("%w in phase %s", ErrStalled, phase)
		}
	}
}

func collect(g *game.Game, seats []seat, seed int64, exits map[string]int, rounds []game.RoundEndedEvent) gameOutcome {
	byName := make(map[string]game.Standing)
	for _, s := range g.Standings() {
		byName[s.Name] = s
	}
	out := gameOutcome{seats: seats, rounds: rounds}
	for _, s := range seats {
		st := byName[s.name]
		out.results = append(out.results, statistics.GameResult{
			Chest:   st.Chest,
			Rank:    st.Rank,
			Players: len(seats),
			Exits:   exits[s.name],
			Seed:    seed,
		})
	}
	return out
}

// PrintSummary writes a table of the per-strategy results.
func PrintSummary(w io.Writer, r Report) {
	fmt.Fprintf(w, "\n=== FINAL RESULTS: %d games, %d players, seed %d ===\n", r.Games, r.Players, r.Seed)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("strategy", "seats", "mean", "median", "std dev", "95% CI", "win %", "busts", "exits", "best")
	for _, name := range Strategies() {
		s, ok := r.Strategies[name]
		if !ok {
			continue
		}
		t.Row(
			name,
			fmt.Sprint(s.Games),
			fmt.Sprintf("%.2f", s.Mean),
			fmt.Sprintf("%.1f", s.Median),
			fmt.Sprintf("%.2f", s.StdDev),
			fmt.Sprintf("[%.2f, %.2f]", s.CI95Low, s.CI95High),
			fmt.Sprintf("%.1f", s.WinRate*100),
			fmt.Sprint(s.Busts),
			fmt.Sprint(s.Exits),
			fmt.Sprintf("%d (seed %d)", s.MaxChest, s.BestSeed),
		)
	}
	fmt.Fprintln(w, t.Render())

	rt := r.Rounds
	fmt.Fprintf(w, "\n=== ROUNDS ===\n")
	fmt.Fprintf(w, "Rounds played: %d\n", rt.Rounds)
	if rt.Rounds == 0 {
		return
	}
	for _, reason := range []game.EndReason{game.EndEveryoneLeft, game.EndTrap, game.EndDeckEmpty, game.EndCaveEmpty} {
		n := rt.Reasons[reason]
		fmt.Fprintf(w, "  %-14s %6d (%.1f%%)\n", reason, n, float64(n)/float64(rt.Rounds)*100)
	}
	fmt.Fprintf(w, "Cards per round: %.2f\n", float64(rt.CardsRevealed)/float64(rt.Rounds))
	fmt.Fprintf(w, "Treasure found: %d, taken: %d, lost to traps: %d\n", rt.TreasureFound, rt.TreasureTaken, rt.TreasureLost)
	fmt.Fprintf(w, "Players exited: %d, trapped: %d, stranded: %d\n", rt.PlayersExited, rt.PlayersTrapped, rt.PlayersStranded)
}
