package orders

import (
	"context"

	kafkax "github.com/ariefcatur/go-voice-storefront/internal/kafka"
	kafkago "github.com/segmentio/kafka-go"
)

type Publisher interface {
	Publish(ctx context.Context, uid string, env Envelope) error
}

// KafkaPublisher routes envelopes to their topic through the shared producer.
type KafkaPublisher struct {
	Producer *kafkax.Producer
}

func (k KafkaPublisher) Publish(ctx context.Context, uid string, env Envelope) error {
	return k.Producer.Publish(ctx, topicFor(env.EventType), PartitionKey(uid), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(env.EventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
