// Package events turns credential transitions into contract events and
// delivers them to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	contract "vcregistry/contracts/credential"
	"vcregistry/internal/credential/models"
	"vcregistry/internal/platform/kafka/producer"
	id "vcregistry/pkg/domain"
)

// New builds the contract event for a committed transition.
func New(eventType contract.EventType, c models.Credential, actor id.CallerID, occurredAt models.Timestamp, requestID string) contract.Event {
	var expires *int64
	if c.ExpiresAt != nil {
		e := int64(*c.ExpiresAt)
		expires = &e
	}
	return contract.Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Version:    contract.ContractVersion,
		Key:        c.Key().String(),
		SubjectDID: c.SubjectDID,
		Issuer:     c.Issuer.String(),
		CID:        c.CID,
		IssuedAt:   int64(c.IssuedAt),
		ExpiresAt:  expires,
		Revoked:    c.Revoked,
		Actor:      actor.String(),
		OccurredAt: int64(occurredAt),
		RequestID:  requestID,
	}
}

// MessageProducer is satisfied by producer.Producer and producer.NoopProducer.
type MessageProducer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// KafkaPublisher writes events to a single topic keyed by credential key, so
// all transitions of one credential land on the same partition in order.
type KafkaPublisher struct {
	producer MessageProducer
	topic    string
}

func NewKafkaPublisher(p MessageProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: p, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event contract.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode credential event: %w", err)
	}

	headers := map[string]string{
		contract.HeaderEventType:       string(event.Type),
		contract.HeaderContractVersion: event.Version,
	}
	if event.RequestID != "" {
		headers[contract.HeaderRequestID] = event.RequestID
	}

	return p.producer.Produce(ctx, &producer.Message{
		Topic:   p.topic,
		Key:     []byte(event.Key),
		Value:   payload,
		Headers: headers,
	})
}

// NoopPublisher drops events.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, contract.Event) error { return nil }
