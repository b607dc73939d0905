package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/linden-market/api/internal/services"
)

// PubSubMailPublisher publishes order mail jobs to a Pub/Sub topic. The
// mail worker subscribes to the topic and renders the actual messages.
type PubSubMailPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubMailPublisher constructs a Pub/Sub backed order mail publisher.
func NewPubSubMailPublisher(topic *pubsub.Topic) (*PubSubMailPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub mail publisher: topic is required")
	}
	return &PubSubMailPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishOrderMail enqueues an order mail message on the configured topic.
func (p *PubSubMailPublisher) PublishOrderMail(ctx context.Context, message services.OrderMailMessage) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub mail publisher: not initialised")
	}

	data, err := p.marshal(message)
	if err != nil {
		return fmt.Errorf("marshal order mail: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "type", message.Type)
	setAttr(attrs, "orderId", message.OrderID)
	setAttr(attrs, "orderNumber", message.OrderNumber)
	setAttr(attrs, "recipient", message.Recipient)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish order mail: %w", err)
	}
	return nil
}

var _ services.OrderMailPublisher = (*PubSubMailPublisher)(nil)

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
