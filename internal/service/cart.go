package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/utafrali/cartstore/internal/domain"
	"github.com/utafrali/cartstore/internal/repository"
	"github.com/utafrali/cartstore/internal/store"
	apperrors "github.com/utafrali/cartstore/pkg/errors"
	"github.com/utafrali/cartstore/pkg/logger"
	"github.com/utafrali/cartstore/pkg/tracing"
)

// Default hosting limits.
const (
	DefaultMaxEntriesPerCart   = 50
	DefaultMaxQuantityPerEntry = 100
	DefaultMaxConflictRetries  = 3
)

// Reasons carried by cart.cleared events.
const (
	ClearReasonCleared      = "cleared"
	ClearReasonSessionEnded = "session_ended"
)

// AddItemInput holds the parameters for adding one unit of a product.
type AddItemInput struct {
	Name  string `json:"name" validate:"required,notblank,max=200"`
	Image string `json:"image" validate:"omitempty,max=2048"`
	Cost  string `json:"cost" validate:"required,max=64"`
}

// SetQuantityInput holds the parameters for overwriting an entry's quantity.
type SetQuantityInput struct {
	Quantity *int `json:"quantity" validate:"required,gte=0"`
}

// EventPublisher is notified after a cart change has been saved.
type EventPublisher interface {
	PublishCartUpdated(ctx context.Context, cart *domain.Cart, changes []store.Change) error
	PublishCartCleared(ctx context.Context, sessionID, reason string) error
}

// Options tunes the hosting limits. Zero values fall back to the defaults,
// except MaxConflictRetries where zero means no retry.
type Options struct {
	MaxEntriesPerCart   int
	MaxQuantityPerEntry int
	MaxConflictRetries  int
}

// DefaultOptions returns the default hosting limits.
func DefaultOptions() Options {
	return Options{
		MaxEntriesPerCart:   DefaultMaxEntriesPerCart,
		MaxQuantityPerEntry: DefaultMaxQuantityPerEntry,
		MaxConflictRetries:  DefaultMaxConflictRetries,
	}
}

// CartService hosts one CartStore per session. Each command rebuilds the
// store from the session snapshot, applies itself and saves the result with an
// optimistic version check.
type CartService struct {
	repo   repository.CartRepository
	events EventPublisher
	logger *slog.Logger
	opts   Options
	now    func() time.Time
}

// NewCartService creates a new cart service. events may be nil, in which case
// no change notifications are sent.
func NewCartService(repo repository.CartRepository, events EventPublisher, logger *slog.Logger, opts Options) *CartService {
	if opts.MaxEntriesPerCart <= 0 {
		opts.MaxEntriesPerCart = DefaultMaxEntriesPerCart
	}
	if opts.MaxQuantityPerEntry <= 0 {
		opts.MaxQuantityPerEntry = DefaultMaxQuantityPerEntry
	}
	if opts.MaxConflictRetries < 0 {
		opts.MaxConflictRetries = 0
	}
	return &CartService{
		repo:   repo,
		events: events,
		logger: logger,
		opts:   opts,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// NewSession issues a fresh session ID. The cart itself is created lazily by
// the first command.
func (s *CartService) NewSession(ctx context.Context) string {
	id := uuid.NewString()
	cartOperationsTotal.WithLabelValues("new_session", "ok").Inc()
	s.log(ctx).InfoContext(ctx, "cart session started", slog.String("session_id", id))
	return id
}

// GetCart returns the session's cart. A session without a snapshot has an
// empty cart.
func (s *CartService) GetCart(ctx context.Context, sessionID string) (view domain.View, err error) {
	ctx, finish := s.begin(ctx, "get", sessionID, "")
	defer func() { finish(err) }()

	if err := checkSession(sessionID); err != nil {
		return domain.View{}, err
	}

	cart, err := s.load(ctx, sessionID)
	if err != nil {
		return domain.View{}, err
	}
	return domain.NewView(cart), nil
}

// EntryTotal returns the named entry with its line total.
func (s *CartService) EntryTotal(ctx context.Context, sessionID, name string) (ev domain.EntryView, err error) {
	ctx, finish := s.begin(ctx, "entry_total", sessionID, name)
	defer func() { finish(err) }()

	if err := checkSession(sessionID); err != nil {
		return domain.EntryView{}, err
	}

	cart, err := s.load(ctx, sessionID)
	if err != nil {
		return domain.EntryView{}, err
	}
	st, err := store.FromEntries(cart.Entries)
	if err != nil {
		return domain.EntryView{}, fmt.Errorf("rebuild cart: %w", err)
	}
	if _, err := st.TotalForEntry(name); err != nil {
		return domain.EntryView{}, err
	}
	e, _ := st.Entry(name)
	return domain.NewEntryView(e), nil
}

// AddItem adds one unit of a product. Adding a name already in the cart
// increments it and refreshes its image and cost.
func (s *CartService) AddItem(ctx context.Context, sessionID string, input AddItemInput) (view domain.View, err error) {
	ctx, finish := s.begin(ctx, "add", sessionID, input.Name)
	defer func() { finish(err) }()

	if err := checkSession(sessionID); err != nil {
		return domain.View{}, err
	}

	if strings.TrimSpace(input.Name) == "" {
		return domain.View{}, apperrors.InvalidInput("name is required")
	}
	entry, err := domain.NewCartEntry(input.Name, input.Image, input.Cost)
	if err != nil {
		return domain.View{}, err
	}

	return s.mutate(ctx, "add", sessionID, func(st *store.CartStore) error {
		if existing, ok := st.Entry(entry.Name); ok {
			if existing.Quantity >= s.opts.MaxQuantityPerEntry {
				return s.quantityLimit(entry.Name)
			}
		} else if st.Len() >= s.opts.MaxEntriesPerCart {
			return apperrors.LimitExceeded(fmt.Sprintf("cart must not contain more than %d entries", s.opts.MaxEntriesPerCart))
		}
		st.Add(entry)
		return nil
	})
}

// Increment raises the named entry's quantity by one.
func (s *CartService) Increment(ctx context.Context, sessionID, name string) (view domain.View, err error) {
	ctx, finish := s.begin(ctx, "increment", sessionID, name)
	defer func() { finish(err) }()

	if err := checkSession(sessionID); err != nil {
		return domain.View{}, err
	}

	return s.mutate(ctx, "increment", sessionID, func(st *store.CartStore) error {
		if e, ok := st.Entry(name); ok && e.Quantity >= s.opts.MaxQuantityPerEntry {
			return s.quantityLimit(name)
		}
		return st.Increment(name)
	})
}

// Decrement lowers the named entry's quantity by one and removes it when the
// quantity reaches zero.
func (s *CartService) Decrement(ctx context.Context, sessionID, name string) (view domain.View, err error) {
	ctx, finish := s.begin(ctx, "decrement", sessionID, name)
	defer func() { finish(err) }()

	if err := checkSession(sessionID); err != nil {
		return domain.View{}, err
	}

	return s.mutate(ctx, "decrement", sessionID, func(st *store.CartStore) error {
		return st.Decrement(name)
	})
}

// SetQuantity overwrites the named entry's quantity. Zero removes the entry.
func (s *CartService) SetQuantity(ctx context.Context, sessionID, name string, quantity int) (view domain.View, err error) {
	ctx, finish := s.begin(ctx, "set_quantity", sessionID, name)
	defer func() { finish(err) }()

	if err := checkSession(sessionID); err != nil {
		return domain.View{}, err
	}

	if quantity > s.opts.MaxQuantityPerEntry {
		return domain.View{}, s.quantityLimit(name)
	}
	return s.mutate(ctx, "set_quantity", sessionID, func(st *store.CartStore) error {
		return st.SetQuantity(name, quantity)
	})
}

// RemoveItem deletes the named entry. Removing an absent entry leaves the
// cart unchanged.
func (s *CartService) RemoveItem(ctx context.Context, sessionID, name string) (view domain.View, err error) {
	ctx, finish := s.begin(ctx, "remove", sessionID, name)
	defer func() { finish(err) }()

	if err := checkSession(sessionID); err != nil {
		return domain.View{}, err
	}

	return s.mutate(ctx, "remove", sessionID, func(st *store.CartStore) error {
		st.Remove(name)
		return nil
	})
}

// Clear empties the cart but keeps the session.
func (s *CartService) Clear(ctx context.Context, sessionID string) (view domain.View, err error) {
	ctx, finish := s.begin(ctx, "clear", sessionID, "")
	defer func() { finish(err) }()

	if err := checkSession(sessionID); err != nil {
		return domain.View{}, err
	}

	return s.mutate(ctx, "clear", sessionID, func(st *store.CartStore) error {
		st.Clear()
		return nil
	})
}

// EndSession discards the session's cart snapshot.
func (s *CartService) EndSession(ctx context.Context, sessionID string) (err error) {
	ctx, finish := s.begin(ctx, "end_session", sessionID, "")
	defer func() { finish(err) }()

	if err := checkSession(sessionID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	s.publishCleared(ctx, sessionID, ClearReasonSessionEnded)
	s.log(ctx).InfoContext(ctx, "cart session ended")
	return nil
}

// Checkout is accepted but not supported yet.
func (s *CartService) Checkout(ctx context.Context, sessionID string) (err error) {
	_, finish := s.begin(ctx, "checkout", sessionID, "")
	defer func() { finish(err) }()

	if err := checkSession(sessionID); err != nil {
		return err
	}

	return apperrors.NotImplemented("checkout is not available yet")
}

// mutate runs apply against a store rebuilt from the current snapshot and
// saves the result. A lost version race reloads and reapplies, up to
// MaxConflictRetries times. Commands that change nothing are not saved.
func (s *CartService) mutate(ctx context.Context, op, sessionID string, apply func(*store.CartStore) error) (domain.View, error) {
	for attempt := 0; ; attempt++ {
		cart, err := s.load(ctx, sessionID)
		if err != nil {
			return domain.View{}, err
		}
		st, err := store.FromEntries(cart.Entries)
		if err != nil {
			return domain.View{}, fmt.Errorf("rebuild cart: %w", err)
		}

		var changes []store.Change
		cancel := st.Subscribe(func(c store.Change) { changes = append(changes, c) })
		err = apply(st)
		cancel()
		if err != nil {
			return domain.View{}, err
		}
		if len(changes) == 0 {
			return domain.NewView(cart), nil
		}

		expected := cart.Version
		cart.Entries = st.Entries()
		cart.UpdatedAt = s.now()

		ok, err := s.repo.SaveIfVersion(ctx, cart, expected)
		if err != nil {
			return domain.View{}, fmt.Errorf("save cart: %w", err)
		}
		if ok {
			s.afterSave(ctx, op, cart, changes)
			return domain.NewView(cart), nil
		}

		if attempt >= s.opts.MaxConflictRetries {
			return domain.View{}, apperrors.Conflict("cart was modified concurrently, please retry")
		}
		cartConflictRetriesTotal.WithLabelValues(op).Inc()
		s.log(ctx).DebugContext(ctx, "cart version conflict, retrying",
			slog.String("operation", op),
			slog.Int("attempt", attempt+1),
			slog.Int("expected_version", expected),
		)
	}
}

func (s *CartService) afterSave(ctx context.Context, op string, cart *domain.Cart, changes []store.Change) {
	if s.events != nil {
		if err := s.events.PublishCartUpdated(ctx, cart, changes); err != nil {
			cartEventPublishFailuresTotal.WithLabelValues("cart.updated").Inc()
			s.log(ctx).ErrorContext(ctx, "failed to publish cart.updated event", slog.String("error", err.Error()))
		}
		if op == "clear" {
			s.publishCleared(ctx, cart.SessionID, ClearReasonCleared)
		}
	}

	s.log(ctx).InfoContext(ctx, "cart updated",
		slog.String("operation", op),
		slog.Int("version", cart.Version),
		slog.Int("entries", len(cart.Entries)),
		slog.Int("item_count", cart.ItemCount()),
	)
}

func (s *CartService) publishCleared(ctx context.Context, sessionID, reason string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishCartCleared(ctx, sessionID, reason); err != nil {
		cartEventPublishFailuresTotal.WithLabelValues("cart.cleared").Inc()
		s.log(ctx).ErrorContext(ctx, "failed to publish cart.cleared event", slog.String("error", err.Error()))
	}
}

// load returns the session's snapshot or a new empty cart.
func (s *CartService) load(ctx context.Context, sessionID string) (*domain.Cart, error) {
	cart, err := s.repo.Get(ctx, sessionID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	now := s.now()
	return &domain.Cart{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Entries:   []domain.CartEntry{},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func checkSession(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return apperrors.InvalidInput("session id is required")
	}
	return nil
}

func (s *CartService) quantityLimit(name string) error {
	return apperrors.LimitExceeded(fmt.Sprintf("quantity of %q must not exceed %d", name, s.opts.MaxQuantityPerEntry))
}

// begin starts a span and returns a function that ends it and records the
// outcome.
func (s *CartService) begin(ctx context.Context, op, sessionID, name string) (context.Context, func(error)) {
	ctx, span := tracing.Tracer().Start(ctx, "CartService."+op)
	span.SetAttributes(attribute.String("cart.session_id", sessionID))
	if name != "" {
		span.SetAttributes(attribute.String("cart.entry", name))
	}
	if logger.SessionIDFromContext(ctx) == "" && sessionID != "" {
		ctx = logger.WithSessionID(ctx, sessionID)
	}

	return ctx, func(err error) {
		cartOperationsTotal.WithLabelValues(op, outcome(err)).Inc()
		if err != nil {
			span.RecordError(err)
			if outcome(err) == "error" {
				span.SetStatus(codes.Error, err.Error())
			}
		}
		span.End()
	}
}

func (s *CartService) log(ctx context.Context) *slog.Logger {
	return logger.WithContext(ctx, s.logger)
}
