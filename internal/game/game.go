package game

import (
	"fmt"
	"io"
	rand "math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/text/cases"

	"github.com/ayyybubu/RoD/internal/gameid"
	"github.com/ayyybubu/RoD/internal/randutil"
)

// Game is the controller for one table. It owns the players, the phase and
// the timers, and delegates each round to a Round.
//
// Every exported method takes the game lock, and so do timer callbacks, so
// commands, timers and host triggers are applied strictly one at a time.
type Game struct {
	mu sync.Mutex

	cfg     Config
	clock   quartz.Clock
	logger  *log.Logger
	builder DeckBuilder
	bus     *SimpleEventBus
	newID   func() string
	timers  *scheduler

	id          string
	phase       Phase
	playerLimit int
	players     []*Player
	byKey       map[string]*Player
	roundNumber int
	round       *Round
	history     []RoundStats
	standings   []Standing
}

// Option configures a Game.
type Option func(*Game)

// WithClock sets the clock used for every timer.
func WithClock(clock quartz.Clock) Option {
	return func(g *Game) { g.clock = clock }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(g *Game) { g.logger = logger }
}

// WithRand sets the random source for the default deck builder.
func WithRand(rng *rand.Rand) Option {
	return func(g *Game) { g.builder = NewDeckBuilder(g.cfg, rng) }
}

// WithDeckBuilder replaces the deck builder entirely.
func WithDeckBuilder(b DeckBuilder) Option {
	return func(g *Game) { g.builder = b }
}

// WithIDGenerator sets how game ids are minted.
func WithIDGenerator(f func() string) Option {
	return func(g *Game) { g.newID = f }
}

// New creates a game in the Waiting phase.
func New(cfg Config, opts ...Option) *Game {
	g := &Game{
		cfg:    cfg,
		clock:  quartz.NewReal(),
		logger: log.NewWithOptions(io.Discard, log.Options{}),
		bus:    NewEventBus(),
		newID:  gameid.Generate,
		byKey:  make(map[string]*Player),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.builder == nil {
		g.builder = NewDeckBuilder(cfg, randutil.New(time.Now().UnixNano()))
	}
	g.logger = g.logger.WithPrefix("game")
	g.timers = newScheduler(g.clock)
	return g
}

// Subscribe registers a subscriber for every future event.
func (g *Game) Subscribe(s EventSubscriber) { g.bus.Subscribe(s) }

// Unsubscribe removes a subscriber.
func (g *Game) Unsubscribe(s EventSubscriber) { g.bus.Unsubscribe(s) }

// Config returns the rules the game runs with.
func (g *Game) Config() Config { return g.cfg }

// Phase returns the current phase.
func (g *Game) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

func (g *Game) header() Header {
	return Header{GameID: g.id, At: g.clock.Now()}
}

func (g *Game) publish(e GameEvent) {
	g.bus.Publish(e)
}

func (g *Game) narrate(format string, args ...any) {
	g.publish(LogEvent{Header: g.header(), Text: fmt.Sprintf(format, args...)})
}

func (g *Game) setPhase(to Phase) {
	from := g.phase
	if from == to {
		return
	}
	g.phase = to
	g.logger.Info("Phase changed", "from", from, "to", to, "round", g.roundNumber)
	g.publish(PhaseChangedEvent{Header: g.header(), From: from, To: to, Round: g.roundNumber})
}

// StartGame begins a new game with an empty player list and opens the join
// window. playerLimit caps chat joins (0 = unlimited). It reports false when
// a game is already running.
func (g *Game) StartGame(playerLimit int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase.Active() {
		g.logger.Debug("Ignoring start, game already running", "phase", g.phase)
		return false
	}

	g.cancelTimers()
	g.id = g.newID()
	g.playerLimit = max(0, playerLimit)
	g.players = nil
	g.byKey = make(map[string]*Player)
	g.roundNumber = 1
	g.round = nil
	g.history = nil
	g.standings = nil

	g.logger.Info("Starting game", "id", g.id, "playerLimit", g.playerLimit, "joinWindow", g.cfg.JoinWindow)
	g.publish(GameStartedEvent{
		Header:      g.header(),
		PlayerLimit: g.playerLimit,
		JoinWindow:  g.cfg.JoinWindow,
		MaxRounds:   g.cfg.MaxRounds,
	})
	g.setPhase(PhaseJoining)
	g.narrate("A new game of Diamant is starting! Type %s to play!", Escape(g.cfg.JoinCommand))

	if g.cfg.Gamemaster {
		g.register(GamemasterID, true)
	}

	g.startTimer(TimerJoin, g.cfg.JoinWindow, g.onJoinExpired)
	return true
}

// StopGame abandons the running game without scoring.
func (g *Game) StopGame() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.phase.Active() {
		return false
	}
	g.abort("stopped by the host")
	return true
}

func (g *Game) abort(reason string) {
	g.cancelTimers()
	g.round = nil
	for _, p := range g.players {
		p.InCave = false
		p.Holding = 0
		p.Pending = DecisionNone
	}
	g.logger.Info("Game aborted", "id", g.id, "reason", reason)
	g.publish(GameAbortedEvent{Header: g.header(), Reason: reason})
	g.setPhase(PhaseWaiting)
	g.narrate("The game was called off: %s.", reason)
}

// register adds a player. The caller has checked phase and limits.
func (g *Game) register(id string, gamemaster bool) *Player {
	p := &Player{
		ID:         id,
		JoinOrder:  len(g.players),
		Status:     StatusWaiting,
		Gamemaster: gamemaster,
	}
	g.players = append(g.players, p)
	g.byKey[playerKey(id)] = p

	g.logger.Info("Player joined", "player", id, "players", len(g.players))
	g.publish(PlayerJoinedEvent{Header: g.header(), Player: p.view(), Players: len(g.players)})
	g.narrate("%s joined the game!", Escape(id))
	return p
}

// chatPlayers counts players subject to the join limit.
func (g *Game) chatPlayers() int {
	n := 0
	for _, p := range g.players {
		if !p.Gamemaster {
			n++
		}
	}
	return n
}

// CloseJoinWindow ends the join window early, as if it had run out.
func (g *Game) CloseJoinWindow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseJoining {
		return false
	}
	g.cancelTimer(TimerJoin)
	g.onJoinExpired()
	return true
}

func (g *Game) onJoinExpired() {
	if g.phase != PhaseJoining {
		return
	}
	if len(g.players) == 0 {
		g.abort("nobody joined")
		return
	}
	g.narrate("The cave opens with %d explorers!", len(g.players))
	g.startRound()
}

// startRound builds a fresh deck and sends everyone into the cave.
func (g *Game) startRound() {
	// Nothing armed for the previous round may fire into this one.
	g.cancelTimer(TimerDecision)
	g.cancelTimer(TimerReveal)

	values := g.builder.TreasureValues(len(g.players))
	deck := g.builder.Build(len(g.players))

	fallback := 1
	if len(values) > 0 {
		fallback = values[0]
	}
	g.round = newRound(g.roundNumber, deck, g.players, roundDeps{
		gameID:        g.id,
		safeFirstCard: g.cfg.SafeFirstCard,
		fallbackValue: fallback,
		now:           func() time.Time { return g.clock.Now() },
		publish:       g.publish,
		logger:        g.logger,
	})

	g.logger.Info("Round started", "round", g.roundNumber, "players", len(g.players), "deck", deck.Len())
	g.publish(RoundStartedEvent{
		Header:         g.header(),
		Round:          g.roundNumber,
		MaxRounds:      g.cfg.MaxRounds,
		TreasureValues: values,
		DeckSize:       deck.Len(),
		Players:        viewsOf(g.players),
	})
	g.narrate("Round %d begins! Everyone enters the cave...", g.roundNumber)
	if g.roundNumber == 1 && len(values) > 0 {
		g.narrate("Treasure values for this round: %s rubies", joinInts(values))
	}
	g.enterRevealing()
}

func (g *Game) enterRevealing() {
	g.setPhase(PhaseRevealing)
	if !g.cfg.AutoReveal {
		return
	}
	if g.cfg.RevealDelay <= 0 {
		g.reveal()
		return
	}
	g.startTimer(TimerReveal, g.cfg.RevealDelay, g.onRevealDue)
}

func (g *Game) onRevealDue() {
	if g.phase != PhaseRevealing {
		return
	}
	g.reveal()
}

// RevealNext reveals the next card now. It is the manual trigger and only
// acts in the Revealing phase.
func (g *Game) RevealNext() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseRevealing {
		return false
	}
	g.cancelTimer(TimerReveal)
	g.reveal()
	return true
}

func (g *Game) reveal() {
	switch g.round.reveal() {
	case stepDecide:
		g.setPhase(PhaseDeciding)
		exits := make([]string, len(g.cfg.ExitCommands))
		for i, c := range g.cfg.ExitCommands {
			exits[i] = Escape(c)
		}
		g.narrate("Time to decide! Type %s to leave with your treasure, or do nothing to keep exploring.", strings.Join(exits, " or "))
		g.startTimer(TimerDecision, g.cfg.DecisionWindow, g.onDecisionExpired)
	case stepEnded:
		g.finishRound()
	}
}

func (g *Game) onDecisionExpired() {
	if g.phase != PhaseDeciding {
		return
	}
	g.decide()
}

// ForceDecision ends the decision phase early. It reports false outside
// the Deciding phase, so a second call for the same phase does nothing.
func (g *Game) ForceDecision() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseDeciding {
		return false
	}
	g.cancelTimer(TimerDecision)
	g.decide()
	return true
}

func (g *Game) decide() {
	switch g.round.processDecisions() {
	case stepContinue:
		g.enterRevealing()
	case stepEnded:
		g.finishRound()
	}
}

// finishRound publishes the round result and schedules what comes next.
func (g *Game) finishRound() {
	stats := g.round.Stats()
	reason := g.round.EndReason()
	final := g.roundNumber >= g.cfg.MaxRounds
	g.history = append(g.history, stats)

	g.setPhase(PhaseRoundEnd)
	g.publish(RoundEndedEvent{
		Header:  g.header(),
		Round:   g.roundNumber,
		Reason:  reason,
		Stats:   stats,
		Path:    g.round.Path(),
		Final:   final,
		Players: viewsOf(g.players),
	})
	g.narrate("Round %d ends! %s", g.roundNumber, describeEnd(reason))
	g.logger.Info("Round ended", "round", g.roundNumber, "reason", reason,
		"found", stats.TreasureFound, "taken", stats.TreasureTaken)

	if g.cfg.RoundBreak <= 0 {
		g.advance()
		return
	}
	g.startTimer(TimerRoundBreak, g.cfg.RoundBreak, g.onRoundBreakOver)
}

func (g *Game) onRoundBreakOver() {
	if g.phase != PhaseRoundEnd {
		return
	}
	g.advance()
}

func (g *Game) advance() {
	if g.roundNumber >= g.cfg.MaxRounds {
		g.endGame()
		return
	}
	g.roundNumber++
	g.startRound()
}

func (g *Game) endGame() {
	g.cancelTimers()
	g.standings = Rank(g.players)
	g.round = nil

	winner := ""
	if len(g.standings) > 0 {
		winner = g.standings[0].Name
	}

	g.setPhase(PhaseGameEnd)
	g.publish(GameEndedEvent{Header: g.header(), Standings: g.standings, Winner: winner})

	var b strings.Builder
	b.WriteString("Game Over! Final Scores:")
	for _, s := range g.standings {
		fmt.Fprintf(&b, "\n%d. %s: %d rubies", s.Rank, s.Name, s.Chest)
	}
	g.narrate("%s", b.String())
	g.logger.Info("Game ended", "id", g.id, "winner", winner, "players", len(g.standings))
}

// GamemasterExit queues an exit for the Gamemaster during the decision phase.
func (g *Game) GamemasterExit() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	p := g.byKey[playerKey(GamemasterID)]
	if p == nil || !p.Gamemaster || g.phase != PhaseDeciding {
		return false
	}
	if !g.round.queueExit(p) {
		return false
	}
	g.publish(PlayersUpdatedEvent{Header: g.header(), Players: viewsOf(g.players)})
	g.narrate("%s decides to leave the cave!", GamemasterID)
	return true
}

// startTimer arms a timer and publishes it. fire runs under the game lock
// and only if the timer was not cancelled or replaced meanwhile.
func (g *Game) startTimer(purpose TimerPurpose, d time.Duration, fire func()) {
	_, deadline := g.timers.start(purpose, d, func(gen uint64) {
		g.mu.Lock()
		defer g.mu.Unlock()
		if !g.timers.live(purpose, gen) {
			g.logger.Debug("Dropping stale timer", "purpose", purpose)
			return
		}
		fire()
	})
	g.publish(TimerStartedEvent{Header: g.header(), Purpose: purpose, Duration: d, Deadline: deadline})
}

func (g *Game) cancelTimer(purpose TimerPurpose) {
	if g.timers.cancel(purpose) {
		g.publish(TimerCancelledEvent{Header: g.header(), Purpose: purpose})
	}
}

func (g *Game) cancelTimers() {
	for _, purpose := range g.timers.cancelAll() {
		g.publish(TimerCancelledEvent{Header: g.header(), Purpose: purpose})
	}
}

// playerKey folds case: chat names differ only in capitalisation between
// display and login forms. Casers hold state, so each call gets its own.
func playerKey(id string) string {
	return cases.Fold().String(id)
}

func describeEnd(reason EndReason) string {
	switch reason {
	case EndEveryoneLeft:
		return "All players have left the cave!"
	case EndTrap:
		return "A trap forced everyone out!"
	case EndDeckEmpty:
		return "The deck is empty!"
	case EndCaveEmpty:
		return "No players left in the cave!"
	default:
		return string(reason)
	}
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}
