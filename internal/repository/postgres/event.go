package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/OpraEria/gather/internal/model"
	"github.com/OpraEria/gather/internal/repository"
)

type eventRepository struct {
	BaseRepository
}

func NewEventRepository(base BaseRepository) repository.EventRepository {
	return &eventRepository{base}
}

func (r *eventRepository) Create(ctx context.Context, event *model.Event) error {
	query := `
		INSERT INTO events (
			id, title, description, location, starts_at, host_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	event.ID = uuid.New()
	event.CreatedAt = time.Now()
	event.UpdatedAt = event.CreatedAt

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, query,
			event.ID,
			event.Title,
			event.Description,
			event.Location,
			event.StartsAt,
			event.HostID,
			event.CreatedAt,
			event.UpdatedAt,
		)
		return err
	})
}

func (r *eventRepository) Get(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	query := `SELECT * FROM events WHERE id = $1`

	var event model.Event
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	return &event, nil
}

func (r *eventRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *eventRepository) List(ctx context.Context, limit int) ([]*model.Event, error) {
	query := `
		SELECT * FROM events
		ORDER BY starts_at DESC
		LIMIT $1
	`

	var events []*model.Event
	if err := r.db.SelectContext(ctx, &events, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	return events, nil
}

func (r *eventRepository) AddParticipant(ctx context.Context, eventID, userID uuid.UUID) error {
	query := `
		INSERT INTO event_participants (event_id, user_id, created_at)
		VALUES ($1, $2, $3)
	`

	if _, err := r.db.ExecContext(ctx, query, eventID, userID, time.Now()); err != nil {
		return fmt.Errorf("failed to add participant: %w", err)
	}

	return nil
}

func (r *eventRepository) RemoveParticipant(ctx context.Context, eventID, userID uuid.UUID) error {
	query := `DELETE FROM event_participants WHERE event_id = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, eventID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove participant: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *eventRepository) IsParticipant(ctx context.Context, eventID, userID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM event_participants WHERE event_id = $1 AND user_id = $2
		)
	`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, eventID, userID); err != nil {
		return false, fmt.Errorf("failed to check participation: %w", err)
	}

	return exists, nil
}

func (r *eventRepository) ListParticipants(ctx context.Context, eventID uuid.UUID) ([]*model.Participant, error) {
	query := `
		SELECT u.id AS user_id, u.name
		FROM event_participants p
		JOIN users u ON p.user_id = u.id
		WHERE p.event_id = $1
		ORDER BY u.name
	`

	var participants []*model.Participant
	if err := r.db.SelectContext(ctx, &participants, query, eventID); err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}

	return participants, nil
}
