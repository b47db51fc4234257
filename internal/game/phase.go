package game

import "fmt"

// Phase is the single authoritative state of a game.
//
//	Waiting -> Joining -> Revealing <-> Deciding -> RoundEnd -> (Revealing | GameEnd)
type Phase uint8

const (
	PhaseWaiting Phase = iota
	PhaseJoining
	PhaseRevealing
	PhaseDeciding
	PhaseRoundEnd
	PhaseGameEnd
)

func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "waiting"
	case PhaseJoining:
		return "joining"
	case PhaseRevealing:
		return "revealing"
	case PhaseDeciding:
		return "deciding"
	case PhaseRoundEnd:
		return "round_end"
	case PhaseGameEnd:
		return "game_end"
	default:
		return fmt.Sprintf("Phase(%d)", uint8(p))
	}
}

// MarshalText renders the phase by name for JSON payloads.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Active reports whether a game is running in this phase.
func (p Phase) Active() bool {
	return p != PhaseWaiting && p != PhaseGameEnd
}

// InRound reports whether the round engine owns the phase.
func (p Phase) InRound() bool {
	return p == PhaseRevealing || p == PhaseDeciding || p == PhaseRoundEnd
}
