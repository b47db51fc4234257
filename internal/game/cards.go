package game

import "fmt"

// CardKind tags which variant a Card holds.
type CardKind uint8

const (
	CardTreasure CardKind = iota
	CardTrap
	CardRelic
	CardEntrance
)

func (k CardKind) String() string {
	switch k {
	case CardTreasure:
		return "treasure"
	case CardTrap:
		return "trap"
	case CardRelic:
		return "relic"
	case CardEntrance:
		return "entrance"
	default:
		return fmt.Sprintf("CardKind(%d)", uint8(k))
	}
}

// MarshalText renders the kind by name for JSON payloads.
func (k CardKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// TrapType identifies one of the five hazards.
type TrapType uint8

// The zero value means "no trap" so non-trap cards omit the field.
const (
	TrapSnake TrapType = iota + 1
	TrapSpider
	TrapLava
	TrapRockfall
	TrapPoison
)

// TrapTypes lists every hazard in deck order.
var TrapTypes = []TrapType{TrapSnake, TrapSpider, TrapLava, TrapRockfall, TrapPoison}

func (t TrapType) String() string {
	switch t {
	case TrapSnake:
		return "snake"
	case TrapSpider:
		return "spider"
	case TrapLava:
		return "lava"
	case TrapRockfall:
		return "rockfall"
	case TrapPoison:
		return "poison"
	default:
		return fmt.Sprintf("TrapType(%d)", uint8(t))
	}
}

// MarshalText renders the trap by name for JSON payloads.
func (t TrapType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// ParseTrapType is the inverse of TrapType.String.
func ParseTrapType(s string) (TrapType, error) {
	for _, t := range TrapTypes {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown trap type %q", s)
}

// Card is a single cave card. Kind selects which fields are meaningful:
// Treasure and Relic use Value/OriginalValue, Trap uses Trap, Entrance uses
// nothing. Value is the amount still lying on the path after splits;
// OriginalValue is what the card was printed with.
type Card struct {
	Kind          CardKind `json:"kind"`
	Value         int      `json:"value,omitempty"`
	OriginalValue int      `json:"original_value,omitempty"`
	Trap          TrapType `json:"trap,omitempty"`
}

// NewTreasure returns a treasure card worth value rubies.
func NewTreasure(value int) Card {
	return Card{Kind: CardTreasure, Value: value, OriginalValue: value}
}

// NewRelic returns a relic card worth value rubies.
func NewRelic(value int) Card {
	return Card{Kind: CardRelic, Value: value, OriginalValue: value}
}

// NewTrap returns a trap card of the given type.
func NewTrap(t TrapType) Card {
	return Card{Kind: CardTrap, Trap: t}
}

// Entrance returns the marker card that opens every path.
func Entrance() Card {
	return Card{Kind: CardEntrance}
}

// IsValuable reports whether the card carries rubies.
func (c Card) IsValuable() bool {
	return c.Kind == CardTreasure || c.Kind == CardRelic
}

func (c Card) String() string {
	switch c.Kind {
	case CardTreasure:
		if c.Value != c.OriginalValue {
			return fmt.Sprintf("%d rubies (%d left)", c.OriginalValue, c.Value)
		}
		return fmt.Sprintf("%d rubies", c.OriginalValue)
	case CardRelic:
		return fmt.Sprintf("relic worth %d", c.OriginalValue)
	case CardTrap:
		return c.Trap.String() + " trap"
	case CardEntrance:
		return "entrance"
	default:
		return c.Kind.String()
	}
}
