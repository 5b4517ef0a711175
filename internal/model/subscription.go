package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PushSubscription maps a user to their device's push credential. The
// credential is stored as an opaque JSON blob; only the push transport
// interprets its contents. At most one row exists per user: a new
// subscription for the same user replaces the old one.
type PushSubscription struct {
	UserID     uuid.UUID       `json:"user_id" db:"user_id"`
	Credential json.RawMessage `json:"credential" db:"credential"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// WebPushCredential is the decoded form of a stored credential, used at
// the transport edge when a delivery is attempted.
type WebPushCredential struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// SubscribeRequest carries the device credential to be persisted
type SubscribeRequest struct {
	Subscription json.RawMessage `json:"subscription" binding:"required"`
}
