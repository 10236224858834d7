package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contract "vcregistry/contracts/credential"
	"vcregistry/internal/credential/models"
	"vcregistry/internal/platform/kafka/producer"
)

type recordingProducer struct {
	messages []*producer.Message
	err      error
}

func (r *recordingProducer) Produce(_ context.Context, msg *producer.Message) error {
	r.messages = append(r.messages, msg)
	return r.err
}

func testCredential() models.Credential {
	exp := models.Timestamp(9_000)
	return models.Credential{
		SubjectDID: "did:example:alice",
		Issuer:     "did:example:university",
		CID:        "QmDegreeCredential01",
		IssuedAt:   1_000,
		ExpiresAt:  &exp,
		Revoked:    true,
	}
}

func TestNew(t *testing.T) {
	evt := New(contract.EventRevoked, testCredential(), "did:example:university", 2_000, "req-1")

	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, contract.EventRevoked, evt.Type)
	assert.Equal(t, contract.ContractVersion, evt.Version)
	assert.Equal(t, "did:example:alice:QmDegreeCredential01", evt.Key)
	assert.Equal(t, int64(2_000), evt.OccurredAt)
	require.NotNil(t, evt.ExpiresAt)
	assert.Equal(t, int64(9_000), *evt.ExpiresAt)
	assert.True(t, evt.Revoked)
}

func TestKafkaPublisher_Publish(t *testing.T) {
	rec := &recordingProducer{}
	pub := NewKafkaPublisher(rec, "credential.events")
	evt := New(contract.EventIssued, testCredential(), "did:example:university", 1_000, "req-7")

	require.NoError(t, pub.Publish(context.Background(), evt))

	require.Len(t, rec.messages, 1)
	msg := rec.messages[0]
	assert.Equal(t, "credential.events", msg.Topic)
	assert.Equal(t, evt.Key, string(msg.Key))
	assert.Equal(t, "credential.issued", msg.Headers[contract.HeaderEventType])
	assert.Equal(t, "req-7", msg.Headers[contract.HeaderRequestID])

	var decoded contract.Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, evt, decoded)
}

func TestKafkaPublisher_PropagatesProducerError(t *testing.T) {
	pub := NewKafkaPublisher(&recordingProducer{err: errors.New("broker down")}, "t")
	err := pub.Publish(context.Background(), contract.Event{Key: "k"})
	assert.ErrorContains(t, err, "broker down")
}

func TestNoopPublisher(t *testing.T) {
	assert.NoError(t, NoopPublisher{}.Publish(context.Background(), contract.Event{}))
}
