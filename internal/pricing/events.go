package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
)

const (
	// EventQuoteCalculated is published once per successful calculation.
	EventQuoteCalculated = "pricing.quote.calculated"

	eventVersion          = 1
	defaultPublishTimeout = 5 * time.Second
)

// EventPublisher emits pricing audit events.
type EventPublisher interface {
	PublishQuote(ctx context.Context, quote Quote) error
}

// EventEnvelope is the stable payload structure of pricing events.
type EventEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	EventType  string          `json:"eventType"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// PubSubPublisher publishes pricing events to a Pub/Sub topic and waits for
// the server acknowledgement.
type PubSubPublisher struct {
	pub     publisher
	timeout time.Duration
	newID   func() string
	clock   func() time.Time
}

var _ EventPublisher = (*PubSubPublisher)(nil)

// NewPubSubPublisher wraps a topic publisher handle.
func NewPubSubPublisher(p *gcppubsub.Publisher) (*PubSubPublisher, error) {
	if p == nil {
		return nil, errors.New("pubsub publisher required")
	}
	return newPubSubPublisher(&gcpPublisher{Publisher: p}), nil
}

func newPubSubPublisher(pub publisher) *PubSubPublisher {
	return &PubSubPublisher{
		pub:     pub,
		timeout: defaultPublishTimeout,
		newID:   uuid.NewString,
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

func (p *PubSubPublisher) PublishQuote(ctx context.Context, quote Quote) error {
	data, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("encode quote: %w", err)
	}
	envelope := EventEnvelope{
		Version:    eventVersion,
		EventID:    p.newID(),
		EventType:  EventQuoteCalculated,
		OccurredAt: p.clock(),
		Data:       data,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encode event envelope: %w", err)
	}

	msg := &gcppubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"event_id":    envelope.EventID,
			"event_type":  envelope.EventType,
			"quote_id":    quote.ID,
			"mode":        string(quote.Mode),
			"customer_id": quote.CustomerID,
			"occurred_at": envelope.OccurredAt.Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	result := p.pub.Publish(publishCtx, msg)
	if result == nil {
		return errors.New("publisher returned nil result")
	}
	if _, err := result.Get(publishCtx); err != nil {
		return fmt.Errorf("publish %s: %w", EventQuoteCalculated, err)
	}
	return nil
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
