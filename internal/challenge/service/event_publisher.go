package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"kitarekayasa/internal/challenge/model"
	"kitarekayasa/internal/common/mq"
)

const defaultEventsTopic = "challenge.events"

// EventPublisher delivers committed lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, event model.LifecycleEvent) error
}

// LifecyclePublisher publishes lifecycle events to the message queue, keyed by challenge
// so that one challenge's events stay ordered within a partition.
type LifecyclePublisher struct {
	producer mq.Producer
	topic    string
}

// NewLifecyclePublisher creates a new lifecycle event publisher.
func NewLifecyclePublisher(producer mq.Producer, topic string) *LifecyclePublisher {
	if topic == "" {
		topic = defaultEventsTopic
	}
	return &LifecyclePublisher{producer: producer, topic: topic}
}

// Publish marshals event and sends it.
func (p *LifecyclePublisher) Publish(ctx context.Context, event model.LifecycleEvent) error {
	if p == nil || p.producer == nil {
		return errors.New("lifecycle publisher is nil")
	}
	if event.ChallengeID <= 0 {
		return errors.New("challengeID is required")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal lifecycle event failed: %w", err)
	}
	message := mq.NewMessage(payload)
	message.ID = fmt.Sprintf("%s-%d-%d", event.EventType, event.SubjectID, event.OccurredAt.UnixNano())
	message.Key = fmt.Sprintf("challenge-%d", event.ChallengeID)
	message.Timestamp = event.OccurredAt
	message.SetHeader("event_type", event.EventType)
	if err := p.producer.Publish(ctx, p.topic, message); err != nil {
		return fmt.Errorf("publish lifecycle event failed: %w", err)
	}
	return nil
}
