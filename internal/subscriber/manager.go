// Package subscriber brings a device from "no subscription" to
// "registered and persisted", idempotently. The device platform
// (permission prompts, worker registration, push credentials) sits
// behind the Platform interface; the server sits behind API.
package subscriber

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/OpraEria/gather/pkg/logger"
)

// PermissionState mirrors the platform's notification permission
type PermissionState string

const (
	PermissionUnset   PermissionState = "unset"
	PermissionGranted PermissionState = "granted"
	PermissionDenied  PermissionState = "denied"
)

// WorkerScope is the fixed scope the background worker registers at.
const WorkerScope = "/"

// Platform is the device surface the manager orchestrates
type Platform interface {
	NotificationsSupported() bool
	WorkersSupported() bool
	Permission() PermissionState
	// RequestPermission prompts the user and blocks on their decision.
	RequestPermission(ctx context.Context) (PermissionState, error)
	// RegisterWorker registers the background worker at the given scope
	// and returns once it is active.
	RegisterWorker(ctx context.Context, scope string) error
	// Subscription returns the live device credential, or nil if none.
	Subscription(ctx context.Context) (json.RawMessage, error)
	// Subscribe creates a new credential bound to the server key.
	Subscribe(ctx context.Context, vapidPublicKey string) (json.RawMessage, error)
	// Unsubscribe invalidates the live credential at the platform level.
	Unsubscribe(ctx context.Context) error
}

// API is the server boundary for persisting subscriptions
type API interface {
	Subscribe(ctx context.Context, userID uuid.UUID, credential json.RawMessage) error
	Unsubscribe(ctx context.Context) error
}

// Manager orchestrates the subscription lifecycle on one device
type Manager struct {
	platform Platform
	api      API
	vapidKey string
	logger   *logger.Logger
}

func NewManager(platform Platform, api API, vapidPublicKey string, logger *logger.Logger) *Manager {
	return &Manager{
		platform: platform,
		api:      api,
		vapidKey: vapidPublicKey,
		logger:   logger,
	}
}

// CheckPermission reports the current permission state without side
// effects. A platform without notification support reads as denied.
func (m *Manager) CheckPermission() PermissionState {
	if !m.platform.NotificationsSupported() {
		return PermissionDenied
	}
	return m.platform.Permission()
}

// RequestPermission prompts the user only from the unset state; an
// already-decided permission is returned as is.
func (m *Manager) RequestPermission(ctx context.Context) PermissionState {
	if !m.platform.NotificationsSupported() {
		return PermissionDenied
	}

	current := m.platform.Permission()
	if current != PermissionUnset {
		return current
	}

	state, err := m.platform.RequestPermission(ctx)
	if err != nil {
		m.logger.Error(err, "permission request failed")
		return PermissionDenied
	}
	return state
}

// Subscribe walks the full flow: permission, worker registration,
// credential, server persistence. Every abort leg returns a nil
// credential without an error; only a persistence failure is surfaced.
// When persistence fails the device credential may already exist — an
// accepted inconsistency window, not auto-retried.
func (m *Manager) Subscribe(ctx context.Context, userID uuid.UUID) (json.RawMessage, error) {
	if m.RequestPermission(ctx) != PermissionGranted {
		m.logger.Warn("notification permission not granted")
		return nil, nil
	}

	if !m.platform.WorkersSupported() {
		m.logger.Warn("background workers not supported")
		return nil, nil
	}
	if err := m.platform.RegisterWorker(ctx, WorkerScope); err != nil {
		m.logger.Error(err, "worker registration failed")
		return nil, nil
	}

	credential, err := m.platform.Subscription(ctx)
	if err != nil {
		m.logger.Error(err, "failed to read existing subscription")
		return nil, nil
	}
	if credential == nil {
		credential, err = m.platform.Subscribe(ctx, m.vapidKey)
		if err != nil {
			m.logger.Error(err, "push subscription failed")
			return nil, nil
		}
	} else {
		m.logger.Debug("reusing existing subscription")
	}

	if err := m.api.Subscribe(ctx, userID, credential); err != nil {
		return nil, fmt.Errorf("failed to persist subscription: %w", err)
	}

	return credential, nil
}

// Unsubscribe invalidates the device credential and deletes the
// persisted row. Without a live credential it is a no-op.
func (m *Manager) Unsubscribe(ctx context.Context) (bool, error) {
	credential, err := m.platform.Subscription(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read subscription: %w", err)
	}
	if credential == nil {
		return false, nil
	}

	if err := m.platform.Unsubscribe(ctx); err != nil {
		return false, fmt.Errorf("failed to unsubscribe device: %w", err)
	}

	if err := m.api.Unsubscribe(ctx); err != nil {
		return false, fmt.Errorf("failed to delete persisted subscription: %w", err)
	}

	return true, nil
}
