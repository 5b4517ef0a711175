package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/OpraEria/gather/internal/model"
	"github.com/OpraEria/gather/internal/repository"
)

// push_subscriptions carries a UNIQUE constraint on user_id, so the
// upsert's conflict target enforces the one-subscription-per-user rule
// at the schema level. Concurrent upserts for the same user resolve to
// last write wins.
type subscriptionRepository struct {
	BaseRepository
}

func NewSubscriptionRepository(base BaseRepository) repository.SubscriptionRepository {
	return &subscriptionRepository{base}
}

func (r *subscriptionRepository) Upsert(ctx context.Context, sub *model.PushSubscription) error {
	query := `
		INSERT INTO push_subscriptions (user_id, credential, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id)
		DO UPDATE SET credential = $2, created_at = $3
	`

	sub.CreatedAt = time.Now()

	if _, err := r.db.ExecContext(ctx, query, sub.UserID, sub.Credential, sub.CreatedAt); err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}

	return nil
}

func (r *subscriptionRepository) Get(ctx context.Context, userID uuid.UUID) (*model.PushSubscription, error) {
	query := `SELECT * FROM push_subscriptions WHERE user_id = $1`

	var sub model.PushSubscription
	if err := r.db.GetContext(ctx, &sub, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return &sub, nil
}

// Delete removes the user's subscription. Deleting an absent row is not
// an error.
func (r *subscriptionRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	query := `DELETE FROM push_subscriptions WHERE user_id = $1`

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}

	return nil
}

func (r *subscriptionRepository) ListForGroupExcluding(ctx context.Context, groupID, excludedUserID uuid.UUID) ([]*model.PushSubscription, error) {
	query := `
		SELECT DISTINCT s.user_id, s.credential, s.created_at
		FROM push_subscriptions s
		JOIN users u ON s.user_id = u.id
		WHERE u.group_id = $1 AND u.id != $2
	`

	var subs []*model.PushSubscription
	if err := r.db.SelectContext(ctx, &subs, query, groupID, excludedUserID); err != nil {
		return nil, fmt.Errorf("failed to list group subscriptions: %w", err)
	}

	return subs, nil
}
