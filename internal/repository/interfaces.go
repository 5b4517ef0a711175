package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/OpraEria/gather/internal/model"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert hits a uniqueness constraint
var ErrDuplicate = errors.New("already exists")

// All repository interfaces in one file
type (
	// UserRepository handles user and group lookups
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByUsername(ctx context.Context, username string) (*model.User, error)
		List(ctx context.Context) ([]*model.User, error)
		GetGroup(ctx context.Context, id uuid.UUID) (*model.Group, error)
	}

	// EventRepository handles events and participation
	EventRepository interface {
		Create(ctx context.Context, event *model.Event) error
		Get(ctx context.Context, id uuid.UUID) (*model.Event, error)
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, limit int) ([]*model.Event, error)
		AddParticipant(ctx context.Context, eventID, userID uuid.UUID) error
		RemoveParticipant(ctx context.Context, eventID, userID uuid.UUID) error
		IsParticipant(ctx context.Context, eventID, userID uuid.UUID) (bool, error)
		ListParticipants(ctx context.Context, eventID uuid.UUID) ([]*model.Participant, error)
	}

	// SubscriptionRepository is the durable user -> push credential mapping.
	// Upsert is atomic under concurrent writers for the same user; the
	// conflict target is the user_id uniqueness constraint, last write wins.
	SubscriptionRepository interface {
		Upsert(ctx context.Context, sub *model.PushSubscription) error
		Get(ctx context.Context, userID uuid.UUID) (*model.PushSubscription, error)
		Delete(ctx context.Context, userID uuid.UUID) error
		ListForGroupExcluding(ctx context.Context, groupID, excludedUserID uuid.UUID) ([]*model.PushSubscription, error)
	}
)
