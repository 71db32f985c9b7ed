// Package events publishes business.registered notifications after a record
// is committed. Publishing is best-effort: a failure never undoes or retries
// the registration.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	"bizreg/internal/business/models"
	"bizreg/pkg/platform/circuit"
	"bizreg/pkg/requestcontext"
)

const TypeRegistered = "business.registered"

// ErrCircuitOpen is returned while the broker is considered down.
var ErrCircuitOpen = errors.New("event publisher circuit open")

// Registered is the payload of a business.registered event.
type Registered struct {
	EventID       string            `json:"eventId"`
	Type          string            `json:"type"`
	OccurredAt    time.Time         `json:"occurredAt"`
	RequestID     string            `json:"requestId,omitempty"`
	BusinessID    models.BusinessID `json:"businessId"`
	ControlNumber string            `json:"controlNumber"`
	BusinessName  string            `json:"businessName"`
	Status        models.Status     `json:"status"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// NewRegistered builds the event for a freshly created record.
func NewRegistered(ctx context.Context, rec *models.BusinessRecord) Registered {
	return Registered{
		EventID:       uuid.NewString(),
		Type:          TypeRegistered,
		OccurredAt:    requestcontext.Now(ctx),
		RequestID:     requestcontext.RequestID(ctx),
		BusinessID:    rec.ID,
		ControlNumber: rec.ControlNumber,
		BusinessName:  rec.BusinessName,
		Status:        rec.Status,
		CreatedAt:     rec.CreatedAt,
	}
}

// KafkaPublisher produces events keyed by control number, so every event for
// one record lands on the same partition.
type KafkaPublisher struct {
	client  *kgo.Client
	topic   string
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type KafkaOption func(*KafkaPublisher)

func WithBreaker(b *circuit.Breaker) KafkaOption {
	return func(p *KafkaPublisher) {
		if b != nil {
			p.breaker = b
		}
	}
}

func WithLogger(logger *slog.Logger) KafkaOption {
	return func(p *KafkaPublisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewKafka(client *kgo.Client, topic string, opts ...KafkaOption) *KafkaPublisher {
	p := &KafkaPublisher{
		client:  client,
		topic:   topic,
		breaker: circuit.New("kafka"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *KafkaPublisher) PublishRegistered(ctx context.Context, event Registered) error {
	if !p.breaker.Allow() {
		return ErrCircuitOpen
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Type, err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.ControlNumber),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.EventID)},
		},
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		if _, change := p.breaker.RecordFailure(); change.Opened {
			p.logger.WarnContext(ctx, "event publisher circuit opened", "topic", p.topic, "error", err)
		}
		return fmt.Errorf("produce %s event: %w", event.Type, err)
	}
	if _, change := p.breaker.RecordSuccess(); change.Closed {
		p.logger.InfoContext(ctx, "event publisher circuit closed", "topic", p.topic)
	}
	return nil
}

// Nop drops every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) PublishRegistered(context.Context, Registered) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Registered
}

func (r *Recorder) PublishRegistered(_ context.Context, event Registered) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of what has been published so far.
func (r *Recorder) Events() []Registered {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Registered, len(r.events))
	copy(out, r.events)
	return out
}
