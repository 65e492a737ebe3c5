package export

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// PubSubNotifier publishes run events as JSON messages.
type PubSubNotifier struct {
	topic *pubsub.Topic
}

// NewPubSubNotifier publishes to topicID through client.
func NewPubSubNotifier(client *pubsub.Client, topicID string) (*PubSubNotifier, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client is required")
	}
	if topicID == "" {
		return nil, fmt.Errorf("topic name is required")
	}
	return &PubSubNotifier{topic: client.Topic(topicID)}, nil
}

// Notify publishes event and waits for the server to acknowledge it.
func (n *PubSubNotifier) Notify(ctx context.Context, event Event) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	msg := &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"run_id":  event.RunID,
			"command": event.Command,
			"status":  event.Status,
		},
	}
	id, err := n.topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

// Stop flushes pending messages.
func (n *PubSubNotifier) Stop() {
	n.topic.Stop()
}
