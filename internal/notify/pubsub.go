// Package notify publishes finalized sync runs to Google Pub/Sub so other
// services (ward dashboards, paging) can react without polling the ledger.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"github.com/JonMunkholm/dayroster/internal/core"
)

// PubSubPublisher implements core.Notifier.
type PubSubPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSubPublisher connects to projectID. An empty credentialsJSON uses
// Application Default Credentials.
func NewPubSubPublisher(ctx context.Context, projectID, topic, credentialsJSON string) (*PubSubPublisher, error) {
	if projectID == "" || topic == "" {
		return nil, fmt.Errorf("pubsub publisher needs project and topic")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(credentialsJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	return &PubSubPublisher{client: client, topic: client.Topic(topic)}, nil
}

// Publish blocks until the server acknowledges the message.
func (p *PubSubPublisher) Publish(ctx context.Context, ev core.RunEvent) error {
	msg, err := message(ev)
	if err != nil {
		return err
	}
	if _, err := p.topic.Publish(ctx, msg).Get(ctx); err != nil {
		return fmt.Errorf("publish run %s to %s: %w", ev.SyncID, p.topic.ID(), err)
	}
	return nil
}

// Close flushes pending messages and releases the client.
func (p *PubSubPublisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}

func message(ev core.RunEvent) (*pubsub.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode run event: %w", err)
	}
	return &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"syncId": ev.SyncID,
			"status": string(ev.Status),
			"source": string(ev.Source),
		},
	}, nil
}
