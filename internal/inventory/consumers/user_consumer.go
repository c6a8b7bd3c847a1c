package consumers

import (
	"context"

	"github.com/wardflow/wardflow-backend/internal/inventory/repository"
	"github.com/wardflow/wardflow-backend/pkg/logger"
	"github.com/wardflow/wardflow-backend/pkg/messaging"
)

// UserEventConsumer maintains the cached actor directory from user events.
// Ledger entries resolve performer names against this cache, so the service
// never calls out to the user service on the write path.
type UserEventConsumer struct {
	consumer      *messaging.Consumer
	userCacheRepo *repository.UserCacheRepository
	logger        *logger.Logger
}

// NewUserEventConsumer creates a new user event consumer
func NewUserEventConsumer(rmq *messaging.RabbitMQ, userCacheRepo *repository.UserCacheRepository, log *logger.Logger) (*UserEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, "hospital-service.user-events", log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeUserEvents, "user.#"); err != nil {
		return nil, err
	}

	c := &UserEventConsumer{
		consumer:      consumer,
		userCacheRepo: userCacheRepo,
		logger:        log,
	}

	consumer.RegisterHandler(messaging.EventUserCreated, c.handleUserCreated)
	consumer.RegisterHandler(messaging.EventUserUpdated, c.handleUserUpdated)
	consumer.RegisterHandler(messaging.EventUserDeleted, c.handleUserDeleted)

	return c, nil
}

// Start starts consuming messages
func (c *UserEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *UserEventConsumer) handleUserCreated(ctx context.Context, event *messaging.Event) error {
	var data messaging.UserCreatedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("user_id", data.UserID).
		Msg("received user created event")

	return c.userCacheRepo.Set(ctx, &repository.CachedUser{
		ID:        data.UserID,
		Email:     data.Email,
		FirstName: data.FirstName,
		LastName:  data.LastName,
		RoleName:  data.RoleName,
	})
}

func (c *UserEventConsumer) handleUserUpdated(ctx context.Context, event *messaging.Event) error {
	var data messaging.UserUpdatedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("user_id", data.UserID).
		Msg("received user updated event")

	existing, err := c.userCacheRepo.Get(ctx, data.UserID)
	if err != nil {
		return err
	}
	if existing == nil {
		// Never saw the created event; nothing to patch
		return nil
	}

	applyField(data.Fields, "email", &existing.Email)
	applyField(data.Fields, "first_name", &existing.FirstName)
	applyField(data.Fields, "last_name", &existing.LastName)
	applyField(data.Fields, "role_name", &existing.RoleName)

	return c.userCacheRepo.Set(ctx, existing)
}

func (c *UserEventConsumer) handleUserDeleted(ctx context.Context, event *messaging.Event) error {
	var data messaging.UserDeletedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("user_id", data.UserID).
		Msg("received user deleted event")

	return c.userCacheRepo.Delete(ctx, data.UserID)
}

// applyField copies a changed field out of the event's change set. Fields
// arrive as {"from": old, "to": new} maps.
func applyField(fields map[string]any, name string, dst *string) {
	change, ok := fields[name].(map[string]any)
	if !ok {
		return
	}
	if to, ok := change["to"].(string); ok {
		*dst = to
	}
}
