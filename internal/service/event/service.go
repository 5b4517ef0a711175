package event

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/OpraEria/gather/internal/model"
	"github.com/OpraEria/gather/internal/repository"
	"github.com/OpraEria/gather/internal/service/notification"
	"github.com/OpraEria/gather/pkg/logger"
	"github.com/OpraEria/gather/pkg/messaging"
)

const listLimit = 200

var (
	ErrAlreadyParticipating = errors.New("already participating in this event")
	ErrNotParticipating     = errors.New("not participating in this event")
	ErrNotAdminGroup        = errors.New("only the admin group can delete events")
)

type Service interface {
	Create(ctx context.Context, identity *model.SessionIdentity, req *model.CreateEventRequest) (*model.Event, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Event, error)
	List(ctx context.Context) ([]*model.Event, error)
	Delete(ctx context.Context, identity *model.SessionIdentity, id uuid.UUID) error
	Join(ctx context.Context, eventID, userID uuid.UUID) error
	Leave(ctx context.Context, eventID, userID uuid.UUID) error
	Participants(ctx context.Context, eventID uuid.UUID) ([]*model.Participant, error)
}

type service struct {
	repo      repository.EventRepository
	userRepo  repository.UserRepository
	notifySvc notification.Service
	broker    messaging.Broker
	logger    *logger.Logger
}

func NewService(
	repo repository.EventRepository,
	userRepo repository.UserRepository,
	notifySvc notification.Service,
	broker messaging.Broker,
	logger *logger.Logger,
) Service {
	return &service{
		repo:      repo,
		userRepo:  userRepo,
		notifySvc: notifySvc,
		broker:    broker,
		logger:    logger,
	}
}

// Create stores the event and notifies the host's group. Notification
// delivery is secondary: a failed fan-out never fails the creation.
func (s *service) Create(ctx context.Context, identity *model.SessionIdentity, req *model.CreateEventRequest) (*model.Event, error) {
	event := &model.Event{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		StartsAt:    req.StartsAt,
		HostID:      identity.UserID,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	if err := s.broker.Publish(ctx, messaging.ChannelEventActivity, messaging.Message{
		Type:    messaging.TypeEventCreated,
		Payload: event,
	}); err != nil {
		s.logger.Error(err, "failed to publish event activity", "event_id", event.ID.String())
	}

	summary, err := s.notifySvc.Dispatch(ctx, identity, &model.DispatchRequest{
		Body:    fmt.Sprintf("%s – %s", event.Title, event.Location),
		EventID: &event.ID,
	})
	if err != nil {
		s.logger.Error(err, "failed to dispatch event notification", "event_id", event.ID.String())
	} else {
		s.logger.Info("event notification dispatched",
			"event_id", event.ID.String(),
			"sent", summary.Sent,
			"total", summary.Total)
	}

	return event, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	return s.repo.Get(ctx, id)
}

func (s *service) List(ctx context.Context) ([]*model.Event, error) {
	return s.repo.List(ctx, listLimit)
}

func (s *service) Delete(ctx context.Context, identity *model.SessionIdentity, id uuid.UUID) error {
	group, err := s.userRepo.GetGroup(ctx, identity.GroupID)
	if err != nil {
		return fmt.Errorf("failed to resolve group: %w", err)
	}
	if group.Name != model.AdminGroupName {
		return ErrNotAdminGroup
	}

	return s.repo.Delete(ctx, id)
}

func (s *service) Join(ctx context.Context, eventID, userID uuid.UUID) error {
	joined, err := s.repo.IsParticipant(ctx, eventID, userID)
	if err != nil {
		return err
	}
	if joined {
		return ErrAlreadyParticipating
	}

	return s.repo.AddParticipant(ctx, eventID, userID)
}

func (s *service) Leave(ctx context.Context, eventID, userID uuid.UUID) error {
	if err := s.repo.RemoveParticipant(ctx, eventID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotParticipating
		}
		return err
	}
	return nil
}

func (s *service) Participants(ctx context.Context, eventID uuid.UUID) ([]*model.Participant, error) {
	return s.repo.ListParticipants(ctx, eventID)
}
