package game

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// GamemasterID is the reserved player id for the host-controlled participant.
const GamemasterID = "Gamemaster"

// ErrInvalidConfig is wrapped by Config.Validate failures.
var ErrInvalidConfig = errors.New("invalid game config")

// Config holds the rules and pacing of a game.
type Config struct {
	MaxRounds        int
	TreasureCards    int     // treasure cards per round deck
	TrapCardsPerType int     // copies of each of the five traps
	MinScale         float64 // min treasure = max(1, floor(players*MinScale))
	MaxScale         float64 // max treasure = max(5, floor(players*MaxScale))
	RelicsPerRound   int
	SafeFirstCard    bool // the first card of a round is never a trap
	Gamemaster       bool // register the Gamemaster pseudo-player on start
	PlayerLimit      int  // default limit for chat joins, 0 = unlimited

	JoinWindow     time.Duration
	DecisionWindow time.Duration
	AutoReveal     bool          // reveal automatically after RevealDelay
	RevealDelay    time.Duration // zero reveals immediately
	RoundBreak     time.Duration // pause between RoundEnd and the next round

	JoinCommand  string
	ExitCommands []string
}

// DefaultConfig returns the standard rules.
func DefaultConfig() Config {
	return Config{
		MaxRounds:        5,
		TreasureCards:    15,
		TrapCardsPerType: 3,
		MinScale:         1,
		MaxScale:         4,
		RelicsPerRound:   1,
		SafeFirstCard:    true,
		JoinWindow:       30 * time.Second,
		DecisionWindow:   15 * time.Second,
		AutoReveal:       true,
		RevealDelay:      1500 * time.Millisecond,
		RoundBreak:       3 * time.Second,
		JoinCommand:      "!join",
		ExitCommands:     []string{"!exit", "!roach"},
	}
}

// Validate checks the config for values the engine cannot run with.
func (c Config) Validate() error {
	switch {
	case c.MaxRounds < 1:
		return fmt.Errorf("%w: max rounds must be at least 1, got %d", ErrInvalidConfig, c.MaxRounds)
	case c.TreasureCards < 0:
		return fmt.Errorf("%w: treasure cards must not be negative", ErrInvalidConfig)
	case c.TrapCardsPerType < 0:
		return fmt.Errorf("%w: trap cards per type must not be negative", ErrInvalidConfig)
	case c.RelicsPerRound < 0:
		return fmt.Errorf("%w: relics per round must not be negative", ErrInvalidConfig)
	case c.MinScale < 0 || c.MaxScale < 0:
		return fmt.Errorf("%w: treasure scales must not be negative", ErrInvalidConfig)
	case c.MaxScale < c.MinScale:
		return fmt.Errorf("%w: max scale %.2f is below min scale %.2f", ErrInvalidConfig, c.MaxScale, c.MinScale)
	case c.PlayerLimit < 0:
		return fmt.Errorf("%w: player limit must not be negative", ErrInvalidConfig)
	case c.JoinWindow <= 0:
		return fmt.Errorf("%w: join window must be positive", ErrInvalidConfig)
	case c.DecisionWindow <= 0:
		return fmt.Errorf("%w: decision window must be positive", ErrInvalidConfig)
	case c.RevealDelay < 0 || c.RoundBreak < 0:
		return fmt.Errorf("%w: delays must not be negative", ErrInvalidConfig)
	case strings.TrimSpace(c.JoinCommand) == "":
		return fmt.Errorf("%w: join command is empty", ErrInvalidConfig)
	case len(c.ExitCommands) == 0:
		return fmt.Errorf("%w: at least one exit command is required", ErrInvalidConfig)
	}
	for _, cmd := range c.ExitCommands {
		if strings.TrimSpace(cmd) == "" {
			return fmt.Errorf("%w: exit command is empty", ErrInvalidConfig)
		}
		if strings.EqualFold(cmd, c.JoinCommand) {
			return fmt.Errorf("%w: %q is both the join and an exit command", ErrInvalidConfig, cmd)
		}
	}
	return nil
}
