package game

import (
	"slices"
	"sync"
	"time"
)

// EventType represents a game event type with type safety
type EventType string

// EventType constants for everything a renderer may want to show.
const (
	EventTypeGameStarted    EventType = "game_started"
	EventTypeGameAborted    EventType = "game_aborted"
	EventTypeGameEnded      EventType = "game_ended"
	EventTypePhaseChanged   EventType = "phase_changed"
	EventTypePlayerJoined   EventType = "player_joined"
	EventTypePlayersUpdated EventType = "players_updated"
	EventTypeRoundStarted   EventType = "round_started"
	EventTypeCardRevealed   EventType = "card_revealed"
	EventTypePlayersExited  EventType = "players_exited"
	EventTypeTrapActivated  EventType = "trap_activated"
	EventTypeRoundEnded     EventType = "round_ended"
	EventTypeTimerStarted   EventType = "timer_started"
	EventTypeTimerCancelled EventType = "timer_cancelled"
	EventTypeLog            EventType = "log"
)

// String returns the string representation of the event type
func (et EventType) String() string {
	return string(et)
}

// GameEvent represents any event that occurs during a game
type GameEvent interface {
	EventType() EventType
	Timestamp() time.Time
}

// Header is embedded in every event.
type Header struct {
	GameID string    `json:"game_id"`
	At     time.Time `json:"at"`
}

func (h Header) Timestamp() time.Time { return h.At }

// GameStartedEvent opens the join window.
type GameStartedEvent struct {
	Header
	PlayerLimit int           `json:"player_limit"`
	JoinWindow  time.Duration `json:"join_window"`
	MaxRounds   int           `json:"max_rounds"`
}

func (e GameStartedEvent) EventType() EventType { return EventTypeGameStarted }

// GameAbortedEvent is published when a game returns to Waiting without scoring.
type GameAbortedEvent struct {
	Header
	Reason string `json:"reason"`
}

func (e GameAbortedEvent) EventType() EventType { return EventTypeGameAborted }

// GameEndedEvent carries the final ranking.
type GameEndedEvent struct {
	Header
	Standings []Standing `json:"standings"`
	Winner    string     `json:"winner"`
}

func (e GameEndedEvent) EventType() EventType { return EventTypeGameEnded }

// PhaseChangedEvent is published on every phase transition.
type PhaseChangedEvent struct {
	Header
	From  Phase `json:"from"`
	To    Phase `json:"to"`
	Round int   `json:"round"`
}

func (e PhaseChangedEvent) EventType() EventType { return EventTypePhaseChanged }

// PlayerJoinedEvent is published for each successful join.
type PlayerJoinedEvent struct {
	Header
	Player  PlayerView `json:"player"`
	Players int        `json:"players"`
}

func (e PlayerJoinedEvent) EventType() EventType { return EventTypePlayerJoined }

// PlayersUpdatedEvent carries every player after holdings, chests or
// statuses changed.
type PlayersUpdatedEvent struct {
	Header
	Players []PlayerView `json:"players"`
}

func (e PlayersUpdatedEvent) EventType() EventType { return EventTypePlayersUpdated }

// RoundStartedEvent is published when everyone enters the cave.
type RoundStartedEvent struct {
	Header
	Round          int          `json:"round"`
	MaxRounds      int          `json:"max_rounds"`
	TreasureValues []int        `json:"treasure_values"`
	DeckSize       int          `json:"deck_size"`
	Players        []PlayerView `json:"players"`
}

func (e RoundStartedEvent) EventType() EventType { return EventTypeRoundStarted }

// CardRevealedEvent is published for every card turned over. Card.Value is
// the amount left on the path after the reveal-time split.
type CardRevealedEvent struct {
	Header
	Round          int  `json:"round"`
	Index          int  `json:"index"`
	Card           Card `json:"card"`
	Share          int  `json:"share"`
	InCave         int  `json:"in_cave"`
	TreasureOnPath int  `json:"treasure_on_path"`
	TrapCount      int  `json:"trap_count,omitempty"`
	Danger         bool `json:"danger,omitempty"`
	DeckRemaining  int  `json:"deck_remaining"`
}

func (e CardRevealedEvent) EventType() EventType { return EventTypeCardRevealed }

// PlayersExitedEvent is published when queued exits are honoured.
type PlayersExitedEvent struct {
	Header
	Round     int      `json:"round"`
	Players   []string `json:"players"`
	Share     int      `json:"share"`
	Discarded int      `json:"discarded"`
}

func (e PlayersExitedEvent) EventType() EventType { return EventTypePlayersExited }

// TrapActivatedEvent is published when a second trap of a type springs.
type TrapActivatedEvent struct {
	Header
	Round   int      `json:"round"`
	Trap    TrapType `json:"trap"`
	Victims []string `json:"victims"`
	Lost    int      `json:"lost"`
}

func (e TrapActivatedEvent) EventType() EventType { return EventTypeTrapActivated }

// RoundEndedEvent closes a round with its statistics.
type RoundEndedEvent struct {
	Header
	Round   int          `json:"round"`
	Reason  EndReason    `json:"reason"`
	Stats   RoundStats   `json:"stats"`
	Path    []Card       `json:"path"`
	Final   bool         `json:"final"`
	Players []PlayerView `json:"players"`
}

func (e RoundEndedEvent) EventType() EventType { return EventTypeRoundEnded }

// TimerStartedEvent lets renderers draw a countdown.
type TimerStartedEvent struct {
	Header
	Purpose  TimerPurpose  `json:"purpose"`
	Duration time.Duration `json:"duration"`
	Deadline time.Time     `json:"deadline"`
}

func (e TimerStartedEvent) EventType() EventType { return EventTypeTimerStarted }

// TimerCancelledEvent is published when a pending countdown is dropped.
type TimerCancelledEvent struct {
	Header
	Purpose TimerPurpose `json:"purpose"`
}

func (e TimerCancelledEvent) EventType() EventType { return EventTypeTimerCancelled }

// LogEvent is a narrative line for the game log. Text is already escaped.
type LogEvent struct {
	Header
	Text string `json:"text"`
}

func (e LogEvent) EventType() EventType { return EventTypeLog }

// EventSubscriber can subscribe to game events. OnEvent is called while the
// game holds its lock: it must not block and must not call back into the game.
type EventSubscriber interface {
	OnEvent(event GameEvent)
}

// SubscriberFunc adapts a function to EventSubscriber.
type SubscriberFunc func(GameEvent)

func (f SubscriberFunc) OnEvent(event GameEvent) { f(event) }

// EventBus manages event publishing and subscription
type EventBus interface {
	Subscribe(subscriber EventSubscriber)
	Unsubscribe(subscriber EventSubscriber)
	Publish(event GameEvent)
}

// SimpleEventBus is a basic in-memory event bus implementation
type SimpleEventBus struct {
	mu          sync.RWMutex
	subscribers []EventSubscriber
}

// NewEventBus creates a new event bus
func NewEventBus() *SimpleEventBus {
	return &SimpleEventBus{}
}

// Subscribe adds a subscriber to receive events
func (bus *SimpleEventBus) Subscribe(subscriber EventSubscriber) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.subscribers = append(bus.subscribers, subscriber)
}

// Unsubscribe removes a subscriber from receiving events. Subscribers that
// are not comparable (plain SubscriberFunc values) cannot be removed.
func (bus *SimpleEventBus) Unsubscribe(subscriber EventSubscriber) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	for i, sub := range bus.subscribers {
		if sameSubscriber(sub, subscriber) {
			bus.subscribers = slices.Delete(bus.subscribers, i, i+1)
			return
		}
	}
}

// Publish sends an event to all subscribers in subscription order
func (bus *SimpleEventBus) Publish(event GameEvent) {
	bus.mu.RLock()
	subs := slices.Clone(bus.subscribers)
	bus.mu.RUnlock()

	for _, subscriber := range subs {
		subscriber.OnEvent(event)
	}
}

func sameSubscriber(a, b EventSubscriber) (same bool) {
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}

// EventRecorder collects events; handy for tests and for replaying a game
// to a late renderer.
type EventRecorder struct {
	mu     sync.Mutex
	events []GameEvent
}

func (r *EventRecorder) OnEvent(event GameEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of everything recorded so far.
func (r *EventRecorder) Events() []GameEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// OfType returns the recorded events of type t.
func (r *EventRecorder) OfType(t EventType) []GameEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []GameEvent
	for _, e := range r.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

// Reset drops everything recorded.
func (r *EventRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
