package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/cartstore/internal/domain"
	"github.com/utafrali/cartstore/internal/store"
	pkgkafka "github.com/utafrali/cartstore/pkg/kafka"
	"github.com/utafrali/cartstore/pkg/logger"
)

const (
	AggregateTypeCart = "cart"
	SourceCartService = "cart-service"

	EventCartUpdated = "cart.updated"
	EventCartCleared = "cart.cleared"
)

var (
	TopicCartUpdated = pkgkafka.Topic(AggregateTypeCart, "updated")
	TopicCartCleared = pkgkafka.Topic(AggregateTypeCart, "cleared")
)

// CartUpdatedData is the payload of a cart.updated event: the cart as it
// looks after the command plus the changes the command produced.
type CartUpdatedData struct {
	Cart    domain.View    `json:"cart"`
	Changes []store.Change `json:"changes"`
}

// CartClearedData is the payload of a cart.cleared event.
type CartClearedData struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

// Publisher is the subset of pkg/kafka.Producer used here.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes cart change notifications.
type Producer struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewProducer creates a new event producer for the cart service.
func NewProducer(publisher Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		publisher: publisher,
		logger:    logger,
	}
}

// PublishCartUpdated publishes a cart.updated event keyed by session ID.
func (p *Producer) PublishCartUpdated(ctx context.Context, cart *domain.Cart, changes []store.Change) error {
	data := CartUpdatedData{Cart: domain.NewView(cart), Changes: changes}
	if err := p.publish(ctx, TopicCartUpdated, EventCartUpdated, cart.SessionID, data); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published cart.updated event",
		slog.String("session_id", cart.SessionID),
		slog.Int("version", cart.Version),
		slog.Int("changes", len(changes)),
	)
	return nil
}

// PublishCartCleared publishes a cart.cleared event. reason is "cleared" for
// an explicit clear and "session_ended" when the session was deleted.
func (p *Producer) PublishCartCleared(ctx context.Context, sessionID, reason string) error {
	data := CartClearedData{SessionID: sessionID, Reason: reason}
	if err := p.publish(ctx, TopicCartCleared, EventCartCleared, sessionID, data); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published cart.cleared event",
		slog.String("session_id", sessionID),
		slog.String("reason", reason),
	)
	return nil
}

func (p *Producer) publish(ctx context.Context, topic, eventType, sessionID string, data any) error {
	event, err := pkgkafka.NewEvent(eventType, sessionID, AggregateTypeCart, SourceCartService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.publisher.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}
	return nil
}
