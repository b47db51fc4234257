package game

import (
	"math"
	rand "math/rand/v2"
	"slices"

	"github.com/ayyybubu/RoD/internal/randutil"
)

// Deck is an ordered pile of cards drawn from the end.
type Deck struct {
	cards []Card
}

// NewDeck wraps cards as a deck. The last card is drawn first.
func NewDeck(cards []Card) *Deck {
	return &Deck{cards: slices.Clone(cards)}
}

// Len returns the number of cards left.
func (d *Deck) Len() int {
	return len(d.cards)
}

// Cards returns a copy of the remaining cards, bottom first.
func (d *Deck) Cards() []Card {
	return slices.Clone(d.cards)
}

// Draw pops the top card.
func (d *Deck) Draw() (Card, bool) {
	if len(d.cards) == 0 {
		return Card{}, false
	}
	last := len(d.cards) - 1
	c := d.cards[last]
	d.cards = d.cards[:last]
	return c, true
}

// DrawNonTrap removes the topmost card that is not a trap, leaving the
// relative order of the other cards untouched.
func (d *Deck) DrawNonTrap() (Card, bool) {
	for i := len(d.cards) - 1; i >= 0; i-- {
		if d.cards[i].Kind != CardTrap {
			c := d.cards[i]
			d.cards = slices.Delete(d.cards, i, i+1)
			return c, true
		}
	}
	return Card{}, false
}

// DeckBuilder creates the deck for each round.
type DeckBuilder interface {
	// TreasureValues returns the treasure values for a round with
	// playerCount players, lowest first.
	TreasureValues(playerCount int) []int
	// Build returns a fresh shuffled deck for playerCount players.
	Build(playerCount int) *Deck
}

// ScaledDeckBuilder builds decks whose treasure values scale with the
// number of players.
type ScaledDeckBuilder struct {
	treasureCards int
	trapCopies    int
	relics        int
	minScale      float64
	maxScale      float64
	rng           *rand.Rand

	cachedFor    int
	cachedValues []int
}

// NewDeckBuilder returns a builder for cfg that shuffles with rng.
func NewDeckBuilder(cfg Config, rng *rand.Rand) *ScaledDeckBuilder {
	return &ScaledDeckBuilder{
		treasureCards: cfg.TreasureCards,
		trapCopies:    cfg.TrapCardsPerType,
		relics:        cfg.RelicsPerRound,
		minScale:      cfg.MinScale,
		maxScale:      cfg.MaxScale,
		rng:           rng,
		cachedFor:     -1,
	}
}

// TreasureValues returns the interpolated values for playerCount. The
// result is cached until a different player count is requested, so every
// caller within a round sees the same table.
func (b *ScaledDeckBuilder) TreasureValues(playerCount int) []int {
	if b.cachedFor != playerCount {
		b.cachedValues = TreasureValues(playerCount, b.treasureCards, b.minScale, b.maxScale)
		b.cachedFor = playerCount
	}
	return slices.Clone(b.cachedValues)
}

// Build returns a freshly shuffled deck. Treasure, relic and trap counts
// are the same every round.
func (b *ScaledDeckBuilder) Build(playerCount int) *Deck {
	values := b.TreasureValues(playerCount)

	cards := make([]Card, 0, len(values)+b.relics+b.trapCopies*len(TrapTypes))
	for _, v := range values {
		cards = append(cards, NewTreasure(v))
	}
	for i := 0; i < b.relics; i++ {
		cards = append(cards, NewRelic(relicValue(values)))
	}
	for _, t := range TrapTypes {
		for i := 0; i < b.trapCopies; i++ {
			cards = append(cards, NewTrap(t))
		}
	}

	randutil.Shuffle(b.rng, cards)
	return &Deck{cards: cards}
}

// TreasureBounds returns the lowest and highest treasure value for a round.
func TreasureBounds(playerCount int, minScale, maxScale float64) (lo, hi int) {
	lo = max(1, int(math.Floor(float64(playerCount)*minScale)))
	hi = max(5, int(math.Floor(float64(playerCount)*maxScale)))
	return lo, max(lo, hi)
}

// TreasureValues spreads count values linearly between the bounds:
// value_i = floor(lo + i*(hi-lo)/(count-1)).
func TreasureValues(playerCount, count int, minScale, maxScale float64) []int {
	if count <= 0 {
		return nil
	}
	lo, hi := TreasureBounds(playerCount, minScale, maxScale)
	if count == 1 {
		return []int{lo}
	}
	values := make([]int, count)
	for i := range values {
		// Integer arithmetic keeps the top value exact.
		values[i] = lo + i*(hi-lo)/(count-1)
	}
	return values
}

func relicValue(values []int) int {
	if len(values) == 0 {
		return 5
	}
	return values[len(values)-1]
}
