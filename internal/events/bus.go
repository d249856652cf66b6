// Package events carries turn progress from sessions to live UI connections.
package events

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"slmchat/internal/domain"
	"slmchat/internal/logger"
)

const TopicTurns = "chat.turns"

const subscriberBuffer = 64

const (
	TypeTurnStarted   = "turn_started"
	TypeTurnCompleted = "turn_completed"
)

// TurnEvent is the JSON payload published on TopicTurns.
type TurnEvent struct {
	Type      string  `json:"type"`
	SessionID string  `json:"session_id"`
	Turn      int     `json:"turn"`
	User      string  `json:"user"`
	Assistant *string `json:"assistant,omitempty"`
	Kind      string  `json:"kind,omitempty"`
}

// Bus is an in-process pub/sub. Events published with no subscriber are
// dropped. Publishing waits for subscribers to ack so events keep their order.
type Bus struct {
	pubSub *gochannel.GoChannel
	log    logger.Logger
}

func NewBus(log logger.Logger) *Bus {
	if log == nil {
		log = logger.NewNop()
	}
	return &Bus{
		pubSub: gochannel.NewGoChannel(
			gochannel.Config{BlockPublishUntilSubscriberAck: true},
			newWatermillLogger(log),
		),
		log:    log,
	}
}

// TurnStarted publishes a turn_started event.
func (b *Bus) TurnStarted(sessionID string, turn int, t domain.Turn) {
	b.publish(TurnEvent{
		Type:      TypeTurnStarted,
		SessionID: sessionID,
		Turn:      turn,
		User:      t.User,
	})
}

// TurnCompleted publishes a turn_completed event carrying the reply.
func (b *Bus) TurnCompleted(sessionID string, turn int, t domain.Turn, res domain.Result) {
	b.publish(TurnEvent{
		Type:      TypeTurnCompleted,
		SessionID: sessionID,
		Turn:      turn,
		User:      t.User,
		Assistant: t.Assistant,
		Kind:      res.Kind.String(),
	})
}

func (b *Bus) publish(ev TurnEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		b.log.Error("EVENTS", "Failed to encode event", map[string]interface{}{"error": err})
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pubSub.Publish(TopicTurns, msg); err != nil {
		b.log.Error("EVENTS", "Failed to publish event", map[string]interface{}{
			"error":   err,
			"session": ev.SessionID,
		})
	}
}

// Subscribe returns decoded events until ctx is done or the bus is closed.
func (b *Bus) Subscribe(ctx context.Context) (<-chan TurnEvent, error) {
	messages, err := b.pubSub.Subscribe(ctx, TopicTurns)
	if err != nil {
		return nil, err
	}
	out := make(chan TurnEvent, subscriberBuffer)
	go func() {
		defer close(out)
		for msg := range messages {
			var ev TurnEvent
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				b.log.Warn("EVENTS", "Dropping malformed event", map[string]interface{}{"error": err.Error()})
				msg.Ack()
				continue
			}
			msg.Ack()
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (b *Bus) Close() error {
	return b.pubSub.Close()
}
