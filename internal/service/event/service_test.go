package event

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpraEria/gather/internal/model"
	"github.com/OpraEria/gather/internal/repository"
	"github.com/OpraEria/gather/pkg/logger"
	"github.com/OpraEria/gather/pkg/messaging"
)

type fakeEventRepo struct {
	events       map[uuid.UUID]*model.Event
	participants map[uuid.UUID]map[uuid.UUID]bool
	createErr    error
	deleted      []uuid.UUID
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{
		events:       map[uuid.UUID]*model.Event{},
		participants: map[uuid.UUID]map[uuid.UUID]bool{},
	}
}

func (f *fakeEventRepo) Create(_ context.Context, event *model.Event) error {
	if f.createErr != nil {
		return f.createErr
	}
	event.ID = uuid.New()
	f.events[event.ID] = event
	return nil
}

func (f *fakeEventRepo) Get(_ context.Context, id uuid.UUID) (*model.Event, error) {
	event, ok := f.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return event, nil
}

func (f *fakeEventRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.events, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeEventRepo) List(_ context.Context, _ int) ([]*model.Event, error) {
	out := make([]*model.Event, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeEventRepo) AddParticipant(_ context.Context, eventID, userID uuid.UUID) error {
	if f.participants[eventID] == nil {
		f.participants[eventID] = map[uuid.UUID]bool{}
	}
	f.participants[eventID][userID] = true
	return nil
}

func (f *fakeEventRepo) RemoveParticipant(_ context.Context, eventID, userID uuid.UUID) error {
	if !f.participants[eventID][userID] {
		return repository.ErrNotFound
	}
	delete(f.participants[eventID], userID)
	return nil
}

func (f *fakeEventRepo) IsParticipant(_ context.Context, eventID, userID uuid.UUID) (bool, error) {
	return f.participants[eventID][userID], nil
}

func (f *fakeEventRepo) ListParticipants(_ context.Context, eventID uuid.UUID) ([]*model.Participant, error) {
	out := make([]*model.Participant, 0)
	for userID := range f.participants[eventID] {
		out = append(out, &model.Participant{UserID: userID})
	}
	return out, nil
}

type fakeUserRepo struct {
	groups map[uuid.UUID]*model.Group
}

func (f *fakeUserRepo) Create(context.Context, *model.User) error { return errors.New("unused") }
func (f *fakeUserRepo) Get(context.Context, uuid.UUID) (*model.User, error) {
	return nil, errors.New("unused")
}
func (f *fakeUserRepo) GetByUsername(context.Context, string) (*model.User, error) {
	return nil, errors.New("unused")
}
func (f *fakeUserRepo) List(context.Context) ([]*model.User, error) { return nil, nil }
func (f *fakeUserRepo) GetGroup(_ context.Context, id uuid.UUID) (*model.Group, error) {
	group, ok := f.groups[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return group, nil
}

type fakeNotifier struct {
	requests []*model.DispatchRequest
	err      error
}

func (f *fakeNotifier) Subscribe(context.Context, uuid.UUID, json.RawMessage) error { return nil }
func (f *fakeNotifier) Unsubscribe(context.Context, uuid.UUID) error       { return nil }
func (f *fakeNotifier) Dispatch(_ context.Context, _ *model.SessionIdentity, req *model.DispatchRequest) (*model.DispatchSummary, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &model.DispatchSummary{Sent: 1, Total: 1}, nil
}

type fakeBroker struct {
	published []messaging.Message
	err       error
}

func (f *fakeBroker) Publish(_ context.Context, _ string, message interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, message.(messaging.Message))
	return nil
}

func (f *fakeBroker) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeBroker) Close() error { return nil }

func newTestService(repo *fakeEventRepo, users *fakeUserRepo, notifier *fakeNotifier, broker *fakeBroker) Service {
	return NewService(repo, users, notifier, broker, logger.NewLogger(nil))
}

func createRequest() *model.CreateEventRequest {
	return &model.CreateEventRequest{
		Title:    "Sommerfest",
		Location: "Parken",
		StartsAt: time.Now().Add(24 * time.Hour),
	}
}

func TestCreateDispatchesNotification(t *testing.T) {
	repo := newFakeEventRepo()
	notifier := &fakeNotifier{}
	broker := &fakeBroker{}
	svc := newTestService(repo, &fakeUserRepo{}, notifier, broker)

	identity := &model.SessionIdentity{UserID: uuid.New(), GroupID: uuid.New()}
	event, err := svc.Create(context.Background(), identity, createRequest())
	require.NoError(t, err)
	assert.Equal(t, identity.UserID, event.HostID)
	assert.NotEqual(t, uuid.Nil, event.ID)

	require.Len(t, notifier.requests, 1)
	require.NotNil(t, notifier.requests[0].EventID)
	assert.Equal(t, event.ID, *notifier.requests[0].EventID)

	require.Len(t, broker.published, 1)
	assert.Equal(t, "event.created", broker.published[0].Type)
}

func TestCreateSurvivesDispatchFailure(t *testing.T) {
	repo := newFakeEventRepo()
	notifier := &fakeNotifier{err: errors.New("push store down")}
	svc := newTestService(repo, &fakeUserRepo{}, notifier, &fakeBroker{})

	identity := &model.SessionIdentity{UserID: uuid.New(), GroupID: uuid.New()}
	event, err := svc.Create(context.Background(), identity, createRequest())
	require.NoError(t, err, "a failed fan-out never fails creation")
	assert.Contains(t, repo.events, event.ID)
}

func TestCreateSurvivesBrokerFailure(t *testing.T) {
	repo := newFakeEventRepo()
	broker := &fakeBroker{err: errors.New("redis down")}
	svc := newTestService(repo, &fakeUserRepo{}, &fakeNotifier{}, broker)

	identity := &model.SessionIdentity{UserID: uuid.New(), GroupID: uuid.New()}
	_, err := svc.Create(context.Background(), identity, createRequest())
	require.NoError(t, err)
}

func TestCreateRepoFailure(t *testing.T) {
	repo := newFakeEventRepo()
	repo.createErr = errors.New("db down")
	notifier := &fakeNotifier{}
	svc := newTestService(repo, &fakeUserRepo{}, notifier, &fakeBroker{})

	identity := &model.SessionIdentity{UserID: uuid.New(), GroupID: uuid.New()}
	_, err := svc.Create(context.Background(), identity, createRequest())
	assert.Error(t, err)
	assert.Empty(t, notifier.requests, "no notification for an unpersisted event")
}

func TestDeleteRequiresAdminGroup(t *testing.T) {
	repo := newFakeEventRepo()
	adminGroup := uuid.New()
	memberGroup := uuid.New()
	users := &fakeUserRepo{groups: map[uuid.UUID]*model.Group{
		adminGroup:  {Name: model.AdminGroupName},
		memberGroup: {Name: "members"},
	}}
	svc := newTestService(repo, users, &fakeNotifier{}, &fakeBroker{})

	event := &model.Event{}
	require.NoError(t, repo.Create(context.Background(), event))

	err := svc.Delete(context.Background(), &model.SessionIdentity{GroupID: memberGroup}, event.ID)
	assert.ErrorIs(t, err, ErrNotAdminGroup)
	assert.Contains(t, repo.events, event.ID)

	err = svc.Delete(context.Background(), &model.SessionIdentity{GroupID: adminGroup}, event.ID)
	require.NoError(t, err)
	assert.NotContains(t, repo.events, event.ID)
}

func TestJoinTwice(t *testing.T) {
	repo := newFakeEventRepo()
	svc := newTestService(repo, &fakeUserRepo{}, &fakeNotifier{}, &fakeBroker{})

	eventID := uuid.New()
	userID := uuid.New()
	require.NoError(t, svc.Join(context.Background(), eventID, userID))
	assert.ErrorIs(t, svc.Join(context.Background(), eventID, userID), ErrAlreadyParticipating)
}

func TestLeaveWithoutJoining(t *testing.T) {
	repo := newFakeEventRepo()
	svc := newTestService(repo, &fakeUserRepo{}, &fakeNotifier{}, &fakeBroker{})

	err := svc.Leave(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrNotParticipating)
}

func TestJoinThenLeave(t *testing.T) {
	repo := newFakeEventRepo()
	svc := newTestService(repo, &fakeUserRepo{}, &fakeNotifier{}, &fakeBroker{})

	eventID := uuid.New()
	userID := uuid.New()
	require.NoError(t, svc.Join(context.Background(), eventID, userID))

	participants, err := svc.Participants(context.Background(), eventID)
	require.NoError(t, err)
	require.Len(t, participants, 1)
	assert.Equal(t, userID, participants[0].UserID)

	require.NoError(t, svc.Leave(context.Background(), eventID, userID))
	participants, err = svc.Participants(context.Background(), eventID)
	require.NoError(t, err)
	assert.Empty(t, participants)
}
