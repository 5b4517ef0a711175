package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpraEria/gather/internal/model"
	"github.com/OpraEria/gather/internal/repository"
)

func newMockSubscriptionRepo(t *testing.T) (repository.SubscriptionRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sdb := sqlx.NewDb(db, "sqlmock")
	return NewSubscriptionRepository(NewBaseRepository(sdb)), mock
}

const upsertPattern = `(?s)INSERT INTO push_subscriptions.*VALUES \(\$1, \$2, \$3\).*ON CONFLICT \(user_id\).*DO UPDATE SET credential = \$2, created_at = \$3`

func TestSubscriptionUpsert(t *testing.T) {
	repo, mock := newMockSubscriptionRepo(t)

	userID := uuid.New()
	credential := json.RawMessage(`{"endpoint":"https://push.example/a"}`)

	mock.ExpectExec(upsertPattern).
		WithArgs(userID, []byte(credential), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	sub := &model.PushSubscription{UserID: userID, Credential: credential}
	require.NoError(t, repo.Upsert(context.Background(), sub))
	assert.False(t, sub.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

// A second subscribe from the same user runs the same single-row
// statement: the user_id conflict target replaces the credential and
// timestamp instead of inserting a second row.
func TestSubscriptionUpsertOverwrite(t *testing.T) {
	repo, mock := newMockSubscriptionRepo(t)

	userID := uuid.New()
	oldCred := json.RawMessage(`{"endpoint":"https://push.example/old"}`)
	newCred := json.RawMessage(`{"endpoint":"https://push.example/new"}`)

	mock.ExpectExec(upsertPattern).
		WithArgs(userID, []byte(oldCred), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(upsertPattern).
		WithArgs(userID, []byte(newCred), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Upsert(context.Background(), &model.PushSubscription{
		UserID: userID, Credential: oldCred,
	}))
	require.NoError(t, repo.Upsert(context.Background(), &model.PushSubscription{
		UserID: userID, Credential: newCred,
	}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionListForGroupExcluding(t *testing.T) {
	repo, mock := newMockSubscriptionRepo(t)

	groupID := uuid.New()
	excluded := uuid.New()
	other := uuid.New()

	// The query itself must carry the exclusion predicate; the excluded
	// user's credential never reaches the fan-out.
	mock.ExpectQuery(`(?s)SELECT DISTINCT s\.user_id, s\.credential, s\.created_at.*JOIN users u ON s\.user_id = u\.id.*WHERE u\.group_id = \$1 AND u\.id != \$2`).
		WithArgs(groupID, excluded).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "credential", "created_at"}).
			AddRow(other.String(), []byte(`{"endpoint":"https://push.example/b"}`), time.Now()))

	subs, err := repo.ListForGroupExcluding(context.Background(), groupID, excluded)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, other, subs[0].UserID)
	for _, s := range subs {
		assert.NotEqual(t, excluded, s.UserID)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionGetNotFound(t *testing.T) {
	repo, mock := newMockSubscriptionRepo(t)

	userID := uuid.New()
	mock.ExpectQuery(`SELECT \* FROM push_subscriptions WHERE user_id = \$1`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "credential", "created_at"}))

	_, err := repo.Get(context.Background(), userID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionDeleteAbsentRow(t *testing.T) {
	repo, mock := newMockSubscriptionRepo(t)

	userID := uuid.New()
	mock.ExpectExec(`DELETE FROM push_subscriptions WHERE user_id = \$1`).
		WithArgs(userID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.Delete(context.Background(), userID))
	require.NoError(t, mock.ExpectationsWereMet())
}
