package game

import (
	"cmp"
	"slices"
)

// Standing is one line of the final ranking.
type Standing struct {
	Rank       int    `json:"rank"`
	Name       string `json:"name"`
	Chest      int    `json:"chest"`
	Gamemaster bool   `json:"gamemaster,omitempty"`
}

// Rank orders players by chest, highest first. Equal chests keep join
// order, so the earlier joiner ranks higher and wins a tie.
func Rank(players []*Player) []Standing {
	sorted := slices.Clone(players)
	slices.SortStableFunc(sorted, func(a, b *Player) int {
		if c := cmp.Compare(b.Chest, a.Chest); c != 0 {
			return c
		}
		return cmp.Compare(a.JoinOrder, b.JoinOrder)
	})

	out := make([]Standing, len(sorted))
	for i, p := range sorted {
		out[i] = Standing{
			Rank:       i + 1,
			Name:       Escape(p.ID),
			Chest:      p.Chest,
			Gamemaster: p.Gamemaster,
		}
	}
	return out
}

// Standings returns the current ranking. After GameEnd it is the final one.
func (g *Game) Standings() []Standing {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase == PhaseGameEnd {
		return slices.Clone(g.standings)
	}
	return Rank(g.players)
}
