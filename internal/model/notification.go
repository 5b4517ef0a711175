package model

import (
	"github.com/google/uuid"
)

// Defaults substituted into a payload when the caller omits a field.
// The strings match what the companion web client displays.
const (
	DefaultNotificationTitle = "Nytt event!"
	DefaultNotificationBody  = "Et nytt event har blitt publisert"
	NotificationIconPath     = "/icon-192x192.png"
	EventNotificationTag     = "event-notification"
)

// NotificationPayload is the message delivered to every recipient of a
// fan-out. It is built once per dispatch and never persisted.
type NotificationPayload struct {
	Title   string     `json:"title"`
	Body    string     `json:"body"`
	Icon    string     `json:"icon"`
	Badge   string     `json:"badge"`
	URL     string     `json:"url"`
	EventID *uuid.UUID `json:"event_id,omitempty"`
	Tag     string     `json:"tag"`
}

// DispatchRequest asks the dispatcher to notify a group about an event.
// UserID and GroupID are optional; when absent the caller's session
// identity is used instead.
type DispatchRequest struct {
	Title   string     `json:"title"`
	Body    string     `json:"body"`
	EventID *uuid.UUID `json:"event_id"`
	UserID  *uuid.UUID `json:"user_id"`
	GroupID *uuid.UUID `json:"group_id"`
}

// DeliveryOutcome is the result of one delivery attempt
type DeliveryOutcome struct {
	UserID uuid.UUID
	Err    error
}

// OK reports whether the attempt succeeded.
func (o DeliveryOutcome) OK() bool { return o.Err == nil }

// DispatchSummary aggregates delivery outcomes across a fan-out
type DispatchSummary struct {
	Sent  int `json:"sent"`
	Total int `json:"total"`
}
