package overlay

import (
	"encoding/json"
	"time"

	"github.com/ayyybubu/RoD/internal/game"
)

// MessageTypeSnapshot is sent once to every overlay right after it connects.
const MessageTypeSnapshot = "snapshot"

// Message is the envelope every overlay frame uses. Type is a game event
// type or MessageTypeSnapshot.
type Message struct {
	Type string          `json:"type"`
	At   time.Time       `json:"at"`
	Data json.RawMessage `json:"data"`
}

// NewMessage marshals data into an envelope.
func NewMessage(messageType string, at time.Time, data any) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Message{Type: messageType, At: at, Data: dataBytes}, nil
}

func eventMessage(e game.GameEvent) (*Message, error) {
	return NewMessage(e.EventType().String(), e.Timestamp(), e)
}
