package model

import (
	"time"

	"github.com/google/uuid"
)

// Event represents a planned gathering with a time and location
type Event struct {
	Base
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Location    string    `json:"location" db:"location"`
	StartsAt    time.Time `json:"starts_at" db:"starts_at"`
	HostID      uuid.UUID `json:"host_id" db:"host_id"`
}

// Participation links a user to an event they joined
type Participation struct {
	EventID   uuid.UUID `json:"event_id" db:"event_id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Participant is a projection of a joined user for listing
type Participant struct {
	UserID uuid.UUID `json:"user_id" db:"user_id"`
	Name   string    `json:"name" db:"name"`
}

// CreateEventRequest represents event creation parameters
type CreateEventRequest struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description" binding:"required"`
	Location    string    `json:"location" binding:"required"`
	StartsAt    time.Time `json:"starts_at" binding:"required,upcoming"`
}
