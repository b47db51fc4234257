package game

import (
	"slices"
	"time"
)

// Snapshot is a copy of the whole table state for renderers that connect
// mid-game. All names are escaped.
type Snapshot struct {
	GameID         string           `json:"game_id"`
	Phase          Phase            `json:"phase"`
	Round          int              `json:"round"`
	MaxRounds      int              `json:"max_rounds"`
	PlayerLimit    int              `json:"player_limit"`
	Players        []PlayerView     `json:"players"`
	Path           []Card           `json:"path"`
	TrapCounts     map[TrapType]int `json:"trap_counts"`
	TreasureOnPath int              `json:"treasure_on_path"`
	History        []RoundStats     `json:"history"`
	Standings      []Standing       `json:"standings,omitempty"`
	Timer          *TimerState      `json:"timer,omitempty"`
}

// TimerState describes the countdown currently shown.
type TimerState struct {
	Purpose   TimerPurpose  `json:"purpose"`
	Remaining time.Duration `json:"remaining"`
}

// Snapshot returns the current state.
func (g *Game) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := Snapshot{
		GameID:      g.id,
		Phase:       g.phase,
		Round:       g.roundNumber,
		MaxRounds:   g.cfg.MaxRounds,
		PlayerLimit: g.playerLimit,
		Players:     viewsOf(g.players),
		TrapCounts:  make(map[TrapType]int),
		History:     slices.Clone(g.history),
		Standings:   slices.Clone(g.standings),
	}
	if g.round != nil {
		s.Path = g.round.Path()
		s.TreasureOnPath = g.round.TreasureOnPath()
		for t, n := range g.round.trapCounts {
			s.TrapCounts[t] = n
		}
	}
	for _, purpose := range []TimerPurpose{TimerJoin, TimerDecision, TimerReveal, TimerRoundBreak} {
		if d, ok := g.timers.remaining(purpose); ok {
			s.Timer = &TimerState{Purpose: purpose, Remaining: d}
			break
		}
	}
	return s
}
