package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"kitarekayasa/internal/challenge/model"
	"kitarekayasa/internal/challenge/service"
	"kitarekayasa/internal/common/mq"
)

type recordingProducer struct {
	topic    string
	messages []*mq.Message
	err      error
}

func (p *recordingProducer) Publish(ctx context.Context, topic string, message *mq.Message) error {
	if p.err != nil {
		return p.err
	}
	p.topic = topic
	p.messages = append(p.messages, message)
	return nil
}

func (p *recordingProducer) Close() error { return nil }

func TestLifecyclePublisher(t *testing.T) {
	producer := &recordingProducer{}
	publisher := service.NewLifecyclePublisher(producer, "")

	event := model.LifecycleEvent{
		EventType:       model.EventProposalApproved,
		ChallengeID:     12,
		ActorID:         1,
		SubjectID:       30,
		ChallengeStatus: "IN_PROGRESS",
		SubjectStatus:   "APPROVED",
		SolverID:        2,
		OccurredAt:      time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	if err := publisher.Publish(context.Background(), event); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if producer.topic != "challenge.events" {
		t.Fatalf("topic = %s", producer.topic)
	}
	if len(producer.messages) != 1 {
		t.Fatalf("messages = %d", len(producer.messages))
	}
	msg := producer.messages[0]
	if msg.Key != "challenge-12" {
		t.Fatalf("key = %s", msg.Key)
	}
	if v, _ := msg.GetHeader("event_type"); v != model.EventProposalApproved {
		t.Fatalf("event_type header = %s", v)
	}
	var decoded model.LifecycleEvent
	if err := json.Unmarshal(msg.Body, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if decoded.SolverID != 2 || decoded.SubjectID != 30 || !decoded.OccurredAt.Equal(event.OccurredAt) {
		t.Fatalf("decoded event: %+v", decoded)
	}
}

func TestLifecyclePublisherErrors(t *testing.T) {
	if err := service.NewLifecyclePublisher(nil, "t").Publish(context.Background(), model.LifecycleEvent{ChallengeID: 1}); err == nil {
		t.Fatalf("expected error without producer")
	}
	producer := &recordingProducer{}
	if err := service.NewLifecyclePublisher(producer, "t").Publish(context.Background(), model.LifecycleEvent{}); err == nil {
		t.Fatalf("expected error without challenge id")
	}
	producer.err = errors.New("broker down")
	if err := service.NewLifecyclePublisher(producer, "t").Publish(context.Background(), model.LifecycleEvent{ChallengeID: 1}); !errors.Is(err, producer.err) {
		t.Fatalf("expected wrapped broker error, got %v", err)
	}
}
