package finance

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
)

// Notifier hands newly-opened alerts to the external delivery pipeline.
type Notifier interface {
	Publish(ctx context.Context, alert Alert) error
}

type alertPublisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) *pubsub.PublishResult
}

// PubSubNotifier publishes alerts as JSON messages on a Pub/Sub topic.
type PubSubNotifier struct {
	publisher alertPublisher
}

// NewPubSubNotifier wraps a Pub/Sub publisher handle.
func NewPubSubNotifier(publisher *pubsub.Publisher) (*PubSubNotifier, error) {
	if publisher == nil {
		return nil, fmt.Errorf("pubsub publisher required")
	}
	return &PubSubNotifier{publisher: publisher}, nil
}

func (n *PubSubNotifier) Publish(ctx context.Context, alert Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("encoding alert: %w", err)
	}
	result := n.publisher.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"alias":    alert.Alias,
			"severity": string(alert.Severity),
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publishing alert: %w", err)
	}
	return nil
}
