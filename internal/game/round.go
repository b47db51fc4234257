package game

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

// EndReason explains why a round ended.
type EndReason string

const (
	EndEveryoneLeft EndReason = "everyone_left"
	EndTrap         EndReason = "trap"
	EndDeckEmpty    EndReason = "deck_empty"
	EndCaveEmpty    EndReason = "cave_empty"
)

// RoundStats summarises one round.
type RoundStats struct {
	CardsRevealed    int `json:"cards_revealed"`
	TreasureFound    int `json:"treasure_found"`
	TreasureTaken    int `json:"treasure_taken"`
	TreasureLost     int `json:"treasure_lost"`
	TrapsEncountered int `json:"traps_encountered"`
	TrapsSprung      int `json:"traps_sprung"`
	PlayersExited    int `json:"players_exited"`
	PlayersTrapped   int `json:"players_trapped"`
	PlayersStranded  int `json:"players_stranded"`
}

// step is what the controller does after a round engine operation.
type step uint8

const (
	stepDecide   step = iota + 1 // open the decision phase
	stepContinue                 // back to revealing
	stepEnded                    // round is over
)

// Round is the engine for a single round: it owns the path, the trap
// counts and the treasure lying on the path. It mutates the players it is
// given but never changes the game phase itself.
type Round struct {
	Number int

	deck           *Deck
	players        []*Player
	path           []Card
	trapCounts     map[TrapType]int
	treasureOnPath int
	pendingTrap    TrapType // zero when nothing is queued
	stats          RoundStats
	endReason      EndReason

	safeFirstCard bool
	fallbackValue int

	gameID  string
	now     func() time.Time
	publish func(GameEvent)
	logger  *log.Logger
}

type roundDeps struct {
	gameID        string
	safeFirstCard bool
	fallbackValue int
	now           func() time.Time
	publish       func(GameEvent)
	logger        *log.Logger
}

// newRound puts every player back in the cave and lays the entrance card.
func newRound(number int, deck *Deck, players []*Player, deps roundDeps) *Round {
	for _, p := range players {
		p.enterCave()
	}
	return &Round{
		Number:        number,
		deck:          deck,
		players:       players,
		path:          []Card{Entrance()},
		trapCounts:    make(map[TrapType]int),
		safeFirstCard: deps.safeFirstCard,
		fallbackValue: max(1, deps.fallbackValue),
		gameID:        deps.gameID,
		now:           deps.now,
		publish:       deps.publish,
		logger:        deps.logger.WithPrefix("round").With("round", number),
	}
}

func (r *Round) header() Header {
	return Header{GameID: r.gameID, At: r.now()}
}

func (r *Round) narrate(format string, args ...any) {
	r.publish(LogEvent{Header: r.header(), Text: fmt.Sprintf(format, args...)})
}

func (r *Round) inCave() []*Player {
	var in []*Player
	for _, p := range r.players {
		if p.InCave {
			in = append(in, p)
		}
	}
	return in
}

// draw takes the next card, honouring the safe-first-card rule.
func (r *Round) draw() (Card, bool) {
	if r.safeFirstCard && r.stats.CardsRevealed == 0 {
		if c, ok := r.deck.DrawNonTrap(); ok {
			return c, true
		}
		if r.deck.Len() == 0 {
			return Card{}, false
		}
		r.logger.Debug("Deck holds only traps, synthesising opening treasure", "value", r.fallbackValue)
		return NewTreasure(r.fallbackValue), true
	}
	return r.deck.Draw()
}

// reveal turns over the next card.
func (r *Round) reveal() step {
	card, ok := r.draw()
	if !ok {
		r.narrate("The deck is empty!")
		return r.end(EndDeckEmpty)
	}

	r.stats.CardsRevealed++
	r.path = append(r.path, card)
	idx := len(r.path) - 1
	in := r.inCave()

	ev := CardRevealedEvent{
		Header: r.header(),
		Round:  r.Number,
		Index:  idx,
		InCave: len(in),
	}

	switch card.Kind {
	case CardTreasure, CardRelic:
		r.stats.TreasureFound += card.OriginalValue
		ev.Share = r.split(&r.path[idx], in)
		if card.Kind == CardRelic {
			r.narrate("Revealed: a relic worth %d rubies!", card.OriginalValue)
		} else {
			r.narrate("Revealed: %d rubies!", card.OriginalValue)
		}
		if ev.Share > 0 {
			r.narrate("Each explorer pockets %d, %d stay on the path.", ev.Share, r.path[idx].Value)
		}
	case CardTrap:
		r.stats.TrapsEncountered++
		r.trapCounts[card.Trap]++
		ev.TrapCount = r.trapCounts[card.Trap]
		if ev.TrapCount == 2 {
			ev.Danger = true
			r.pendingTrap = card.Trap
			r.narrate("DANGER! A second %s trap appears! Last chance to flee...", card.Trap)
		} else {
			r.narrate("Revealed: a %s trap! Be careful...", card.Trap)
		}
	case CardEntrance:
	default:
		panic(fmt.Sprintf("unhandled card kind %v", card.Kind))
	}

	ev.Card = r.path[idx]
	ev.TreasureOnPath = r.treasureOnPath
	ev.DeckRemaining = r.deck.Len()
	r.publish(ev)
	if ev.Share > 0 {
		r.publish(PlayersUpdatedEvent{Header: r.header(), Players: viewsOf(r.players)})
	}

	r.logger.Debug("Revealed card", "card", r.path[idx], "inCave", len(in), "onPath", r.treasureOnPath)

	if len(in) == 0 {
		return r.end(EndCaveEmpty)
	}
	return stepDecide
}

// split divides a valuable card between the explorers in the cave. The
// remainder stays on the card; with nobody in the cave all of it does.
func (r *Round) split(card *Card, in []*Player) int {
	if len(in) == 0 {
		r.treasureOnPath += card.Value
		return 0
	}
	share := card.Value / len(in)
	card.Value %= len(in)
	for _, p := range in {
		p.Holding += share
	}
	r.treasureOnPath += card.Value
	return share
}

// queueExit records an exit decision for p.
func (r *Round) queueExit(p *Player) bool {
	if !p.InCave || p.Pending == DecisionExit {
		return false
	}
	p.Pending = DecisionExit
	return true
}

// processDecisions resolves the decision phase: queued exits first, then
// any trap waiting on the card just revealed.
func (r *Round) processDecisions() step {
	in := r.inCave()
	if len(in) == 0 {
		return r.end(EndCaveEmpty)
	}

	var exiting, staying []*Player
	for _, p := range in {
		if p.Pending == DecisionExit {
			exiting = append(exiting, p)
		} else {
			staying = append(staying, p)
		}
	}

	if len(exiting) > 0 {
		r.exit(exiting)
	}

	for _, p := range staying {
		p.Pending = DecisionNone
	}

	if r.pendingTrap != 0 {
		r.spring(r.pendingTrap, staying)
		r.pendingTrap = 0
		return r.end(EndTrap)
	}

	if len(staying) == 0 {
		return r.end(EndEveryoneLeft)
	}
	return stepContinue
}

// exit banks each leaving player's holding plus an equal share of the path.
// The split remainder is discarded and the path is emptied.
func (r *Round) exit(exiting []*Player) {
	share := r.treasureOnPath / len(exiting)
	discarded := r.treasureOnPath % len(exiting)

	for _, p := range exiting {
		award := p.Holding + share
		p.Chest += award
		r.stats.TreasureTaken += award
		r.stats.PlayersExited++
		p.leaveCave(StatusExited)
	}

	for i := range r.path {
		if r.path[i].IsValuable() {
			r.path[i].Value = 0
		}
	}
	r.treasureOnPath = 0

	names := namesOf(exiting)
	r.publish(PlayersExitedEvent{
		Header:    r.header(),
		Round:     r.Number,
		Players:   names,
		Share:     share,
		Discarded: discarded,
	})
	r.publish(PlayersUpdatedEvent{Header: r.header(), Players: viewsOf(r.players)})
	r.narrate("%s left the cave, taking %d rubies each from the path!", joinNames(names), share)
	r.logger.Info("Players exited", "count", len(exiting), "share", share, "discarded", discarded)
}

// spring resolves a trap against everyone still in the cave.
func (r *Round) spring(trap TrapType, victims []*Player) {
	lost := 0
	for _, p := range victims {
		lost += p.Holding
		r.stats.PlayersTrapped++
		p.leaveCave(StatusOut)
	}
	r.stats.TrapsSprung++
	r.stats.TreasureLost += lost

	r.publish(TrapActivatedEvent{
		Header:  r.header(),
		Round:   r.Number,
		Trap:    trap,
		Victims: namesOf(victims),
		Lost:    lost,
	})
	if len(victims) > 0 {
		r.publish(PlayersUpdatedEvent{Header: r.header(), Players: viewsOf(r.players)})
		r.narrate("The %s trap activates! %s lose everything they were carrying!", trap, joinNames(namesOf(victims)))
	} else {
		r.narrate("The %s trap activates, but the cave is already empty.", trap)
	}
	r.logger.Info("Trap activated", "trap", trap, "victims", len(victims), "lost", lost)
}

// end closes the round. Anyone still in the cave forfeits their holding.
func (r *Round) end(reason EndReason) step {
	stranded := r.inCave()
	for _, p := range stranded {
		r.stats.TreasureLost += p.Holding
		r.stats.PlayersStranded++
		p.leaveCave(StatusOut)
	}
	if len(stranded) > 0 {
		r.publish(PlayersUpdatedEvent{Header: r.header(), Players: viewsOf(r.players)})
		r.narrate("%s never made it out and lose their treasure.", joinNames(namesOf(stranded)))
	}
	r.pendingTrap = 0
	r.endReason = reason
	return stepEnded
}

// TreasureOnPath returns the rubies still lying on the path.
func (r *Round) TreasureOnPath() int { return r.treasureOnPath }

// Stats returns the round statistics so far.
func (r *Round) Stats() RoundStats { return r.stats }

// Path returns a copy of the revealed cards.
func (r *Round) Path() []Card {
	out := make([]Card, len(r.path))
	copy(out, r.path)
	return out
}

// TrapCount returns how often trap t has been revealed this round.
func (r *Round) TrapCount(t TrapType) int { return r.trapCounts[t] }

// PendingTrap returns the trap that will spring when decisions resolve.
func (r *Round) PendingTrap() (TrapType, bool) { return r.pendingTrap, r.pendingTrap != 0 }

// EndReason returns why the round ended, empty while it is running.
func (r *Round) EndReason() EndReason { return r.endReason }

func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return "nobody"
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	}
	out := ""
	for i, n := range names {
		switch {
		case i == 0:
			out = n
		case i == len(names)-1:
			out += ", and " + n
		default:
			out += ", " + n
		}
	}
	return out
}
