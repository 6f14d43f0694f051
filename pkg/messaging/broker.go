package messaging

import (
	"context"
	"encoding/json"
	"time"
)

// Event types carried between instances.
const (
	EventCacheInvalidated = "cache.invalidated"
	EventAlertRaised      = "alert.raised"
	EventAlertHandled     = "alert.handled"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Publisher defines the interface for publishing messages
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload interface{}) error
}

// Message is the envelope every event travels in. Origin identifies the
// publishing process so it can skip its own echoes.
type Message struct {
	Type      string          `json:"type"`
	Origin    string          `json:"origin"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Decode unmarshals the payload into v.
func (m *Message) Decode(v interface{}) error {
	if len(m.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}

// Nop is a Publisher that drops everything.
type Nop struct{}

func (Nop) Publish(context.Context, string, interface{}) error { return nil }
