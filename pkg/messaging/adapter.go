package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aicare/casemgr/pkg/logger"
)

// BrokerAdapter publishes enveloped events on a single channel and
// dispatches incoming ones to a handler.
type BrokerAdapter struct {
	broker  Broker
	channel string
	origin  string
	now     func() time.Time
}

// NewBrokerAdapter tags everything it publishes with a fresh origin ID.
func NewBrokerAdapter(broker Broker, channel string) *BrokerAdapter {
	return &BrokerAdapter{
		broker:  broker,
		channel: channel,
		origin:  uuid.NewString(),
		now:     time.Now,
	}
}

// Origin is this process's identity on the channel.
func (a *BrokerAdapter) Origin() string {
	return a.origin
}

func (a *BrokerAdapter) Publish(ctx context.Context, eventType string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return a.broker.Publish(ctx, a.channel, Message{
		Type:      eventType,
		Origin:    a.origin,
		Timestamp: a.now().UTC(),
		Payload:   raw,
	})
}

// Listen delivers messages published by other processes to handler until ctx
// is done. Handler errors are logged and do not stop the loop.
func (a *BrokerAdapter) Listen(ctx context.Context, log *logger.Logger, handler func(context.Context, Message) error) error {
	msgChan, err := a.broker.Subscribe(ctx, a.channel)
	if err != nil {
		return err
	}

	go func() {
		for raw := range msgChan {
			var msg Message
			if err := json.Unmarshal(raw, &msg); err != nil {
				log.Warn(err, "dropping undecodable message", "channel", a.channel)
				continue
			}
			if msg.Origin == a.origin {
				continue
			}
			if err := handler(ctx, msg); err != nil {
				log.Error(err, "message handler failed", "type", msg.Type)
			}
		}
	}()

	return nil
}

func (a *BrokerAdapter) Close() error {
	return a.broker.Close()
}
