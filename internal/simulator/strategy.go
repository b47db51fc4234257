package simulator

import (
	"fmt"
	rand "math/rand/v2"
	"slices"
	"sort"

	"github.com/ayyybubu/RoD/internal/game"
)

// Observation is what a bot knows when the decision window opens: the
// public table plus its own seat.
type Observation struct {
	Round          int
	MaxRounds      int
	PathLength     int // revealed cards, entrance included
	TreasureOnPath int
	InCave         int // players still exploring, the bot included
	Danger         int // trap types already seen once this round
	Holding        int
	Chest          int
	LeaderChest    int // best chest among the other players
}

// Strategy decides whether a bot leaves the cave.
type Strategy interface {
	Name() string
	Exit(obs Observation) bool
}

// observe builds the observation for the named player from a snapshot.
func observe(snap game.Snapshot, name string) (Observation, bool) {
	obs := Observation{
		Round:          snap.Round,
		MaxRounds:      snap.MaxRounds,
		PathLength:     len(snap.Path),
		TreasureOnPath: snap.TreasureOnPath,
	}
	for _, n := range snap.TrapCounts {
		if n == 1 {
			obs.Danger++
		}
	}
	found := false
	for _, p := range snap.Players {
		if p.InCave {
			obs.InCave++
		}
		if p.Name == name {
			obs.Holding = p.Holding
			obs.Chest = p.Chest
			found = p.InCave
			continue
		}
		obs.LeaderChest = max(obs.LeaderChest, p.Chest)
	}
	return obs, found
}

// cautious banks early and runs at the first sign of a trap.
type cautious struct{}

func (cautious) Name() string { return "cautious" }

func (cautious) Exit(obs Observation) bool {
	return obs.Holding >= 5 || (obs.Danger > 0 && obs.Holding > 0)
}

// greedy only leaves with a large haul.
type greedy struct{ target int }

func (greedy) Name() string { return "greedy" }

func (s greedy) Exit(obs Observation) bool {
	return obs.Holding >= s.target
}

// danger weighs the number of live trap types against what it carries.
type danger struct{}

func (danger) Name() string { return "danger" }

func (danger) Exit(obs Observation) bool {
	switch {
	case obs.Danger >= 3:
		return true
	case obs.Danger == 2:
		return obs.Holding > 0 || obs.TreasureOnPath > 0
	case obs.Danger == 1:
		return obs.Holding >= 8
	}
	// Leftovers on the path are worth collecting while they split well.
	return obs.InCave > 1 && obs.TreasureOnPath >= obs.InCave*2
}

// random leaves with a fixed probability at every decision.
type random struct {
	rng *rand.Rand
	p   float64
}

func (random) Name() string { return "random" }

func (s random) Exit(Observation) bool {
	return s.rng.Float64() < s.p
}

// reckless never leaves: it banks only when the deck runs out.
type reckless struct{}

func (reckless) Name() string { return "reckless" }

func (reckless) Exit(Observation) bool { return false }

// catchUp plays greedy while behind the leader and cautious otherwise.
type catchUp struct{}

func (catchUp) Name() string { return "catchup" }

func (catchUp) Exit(obs Observation) bool {
	if obs.Chest+obs.Holding > obs.LeaderChest {
		return cautious{}.Exit(obs)
	}
	return obs.Holding >= 12 || obs.Danger >= 2
}

var strategies = map[string]func(rng *rand.Rand) Strategy{
	"cautious": func(*rand.Rand) Strategy { return cautious{} },
	"greedy":   func(*rand.Rand) Strategy { return greedy{target: 15} },
	"danger":   func(*rand.Rand) Strategy { return danger{} },
	"random":   func(rng *rand.Rand) Strategy { return random{rng: rng, p: 0.25} },
	"reckless": func(*rand.Rand) Strategy { return reckless{} },
	"catchup":  func(*rand.Rand) Strategy { return catchUp{} },
}

// Strategies lists the known strategy names.
func Strategies() []string {
	names := make([]string, 0, len(strategies))
	for name := range strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewStrategy creates a strategy by name.
func NewStrategy(name string, rng *rand.Rand) (Strategy, error) {
	factory, ok := strategies[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (known: %v)", name, Strategies())
	}
	return factory(rng), nil
}

// validStrategies checks every name once before games are scheduled.
func validStrategies(names []string) error {
	if len(names) == 0 {
		return fmt.Errorf("no strategies given")
	}
	for _, name := range names {
		if !slices.Contains(Strategies(), name) {
			return fmt.Errorf("unknown strategy %q (known: %v)", name, Strategies())
		}
	}
	return nil
}
