package game

import "fmt"

// Status is where a player stands in the current round.
type Status uint8

const (
	StatusWaiting Status = iota // joined, round not started
	StatusIn                    // in the cave
	StatusExited                // left with their treasure
	StatusOut                   // caught by a trap or stranded
)

func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusIn:
		return "in"
	case StatusExited:
		return "exited"
	case StatusOut:
		return "out"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// MarshalText renders the status by name for JSON payloads.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Decision is a choice queued during the decision phase.
type Decision uint8

const (
	DecisionNone Decision = iota // keep exploring
	DecisionExit
)

// Player is a participant. Players live for the whole game.
type Player struct {
	ID         string
	JoinOrder  int
	InCave     bool
	Holding    int // collected this round, lost to a trap
	Chest      int // banked for the whole game
	Status     Status
	Pending    Decision
	Gamemaster bool
}

// leaveCave takes the player out of the cave. Holding is always cleared
// here; callers bank it first when the player escaped.
func (p *Player) leaveCave(status Status) {
	p.InCave = false
	p.Holding = 0
	p.Pending = DecisionNone
	p.Status = status
}

// enterCave resets the player for a new round.
func (p *Player) enterCave() {
	p.InCave = true
	p.Holding = 0
	p.Pending = DecisionNone
	p.Status = StatusIn
}

// PlayerView is the renderer-facing copy of a player. Name is escaped.
type PlayerView struct {
	Name       string `json:"name"`
	InCave     bool   `json:"in_cave"`
	Holding    int    `json:"holding"`
	Chest      int    `json:"chest"`
	Status     Status `json:"status"`
	Deciding   bool   `json:"deciding"`
	Gamemaster bool   `json:"gamemaster,omitempty"`
}

func (p *Player) view() PlayerView {
	return PlayerView{
		Name:       Escape(p.ID),
		InCave:     p.InCave,
		Holding:    p.Holding,
		Chest:      p.Chest,
		Status:     p.Status,
		Deciding:   p.Pending == DecisionExit,
		Gamemaster: p.Gamemaster,
	}
}

func viewsOf(players []*Player) []PlayerView {
	views := make([]PlayerView, len(players))
	for i, p := range players {
		views[i] = p.view()
	}
	return views
}

func namesOf(players []*Player) []string {
	names := make([]string, len(players))
	for i, p := range players {
		names[i] = Escape(p.ID)
	}
	return names
}
