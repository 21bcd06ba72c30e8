// Package lifecycle advances RFPs through draft -> active -> closed.
//
// Every status change is a single conditional UPDATE, so concurrent
// callers race to one winner and notifications fire at most once per
// transition. Nothing ever leaves closed.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/keen-violet-ibis/rfphub/internal/metrics"
	"github.com/keen-violet-ibis/rfphub/internal/models"
	"github.com/keen-violet-ibis/rfphub/internal/notify"
	"github.com/keen-violet-ibis/rfphub/internal/storage"
)

// ErrInvalidTransition is returned for manual transitions that violate
// the monotonic lifecycle (publishing a closed RFP, reopening, ...).
var ErrInvalidTransition = errors.New("invalid lifecycle transition")

// CloseResult reports one expiry sweep.
type CloseResult struct {
	UpdatedCount int      `json:"updated_count"`
	ClosedIDs    []string `json:"closed_ids"`
}

// Manager owns all RFP status transitions.
type Manager struct {
	store      storage.Storage
	dispatcher *notify.Dispatcher
	// now is swappable for tests.
	now func() time.Time
}

// NewManager creates a Manager.
func NewManager(store storage.Storage, dispatcher *notify.Dispatcher) *Manager {
	return &Manager{store: store, dispatcher: dispatcher, now: time.Now}
}

// Publish moves a draft RFP to active and notifies all bidders. If the
// closing date already passed, the publish is rejected rather than
// publishing an immediately-expired RFP.
func (m *Manager) Publish(ctx context.Context, rfpID string) (*models.RFP, error) {
	rfp, err := m.store.RFPs().GetByID(ctx, rfpID)
	if err != nil {
		return nil, fmt.Errorf("publish rfp: %w", err)
	}
	if rfp == nil {
		return nil, fmt.Errorf("publish rfp %s: %w", rfpID, ErrInvalidTransition)
	}
	if rfp.Status != models.StatusDraft {
		return nil, fmt.Errorf("publish rfp %s from %s: %w", rfpID, rfp.Status, ErrInvalidTransition)
	}
	if rfp.Expired(m.now()) {
		return nil, fmt.Errorf("publish rfp %s past closing date: %w", rfpID, ErrInvalidTransition)
	}

	moved, err := m.store.RFPs().TransitionStatus(ctx, rfpID, models.StatusDraft, models.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("publish rfp: %w", err)
	}
	if !moved {
		// Lost the race to another publisher.
		return nil, fmt.Errorf("publish rfp %s: %w", rfpID, ErrInvalidTransition)
	}
	metrics.RFPTransitions.WithLabelValues(string(models.StatusActive)).Inc()

	if err := m.dispatcher.OnTransition(ctx, notify.Event{
		Kind:     notify.EventRFPPublished,
		RFPID:    rfp.ID,
		RFPTitle: rfp.Title,
	}); err != nil {
		log.Printf("publish rfp %s: notification fan-out: %v", rfpID, err)
	}

	return m.store.RFPs().GetByID(ctx, rfpID)
}

// Close manually moves an active RFP to closed and notifies approved
// access holders. Closing an already-closed RFP is an invalid
// transition; closing a draft is too (drafts are deleted, not closed).
func (m *Manager) Close(ctx context.Context, rfpID string) (*models.RFP, error) {
	rfp, err := m.store.RFPs().GetByID(ctx, rfpID)
	if err != nil {
		return nil, fmt.Errorf("close rfp: %w", err)
	}
	if rfp == nil || rfp.Status != models.StatusActive {
		return nil, fmt.Errorf("close rfp %s: %w", rfpID, ErrInvalidTransition)
	}

	moved, err := m.store.RFPs().TransitionStatus(ctx, rfpID, models.StatusActive, models.StatusClosed)
	if err != nil {
		return nil, fmt.Errorf("close rfp: %w", err)
	}
	if !moved {
		return nil, fmt.Errorf("close rfp %s: %w", rfpID, ErrInvalidTransition)
	}
	metrics.RFPTransitions.WithLabelValues(string(models.StatusClosed)).Inc()

	m.notifyClosed(ctx, rfp.ID, rfp.Title)

	return m.store.RFPs().GetByID(ctx, rfpID)
}

// CloseExpired closes every active RFP whose closing date has passed and
// fans out closed notifications for each. Safe to retry unconditionally:
// a sweep with nothing eligible is a no-op, and a transition only fires
// notifications in the sweep that won it.
func (m *Manager) CloseExpired(ctx context.Context) (CloseResult, error) {
	ids, err := m.store.RFPs().CloseExpired(ctx, m.now())
	if err != nil {
		return CloseResult{}, fmt.Errorf("close expired: %w", err)
	}

	for _, id := range ids {
		metrics.RFPAutoClosed.Inc()
		rfp, err := m.store.RFPs().GetByID(ctx, id)
		if err != nil || rfp == nil {
			log.Printf("close expired: reload rfp %s: %v", id, err)
			continue
		}
		m.notifyClosed(ctx, rfp.ID, rfp.Title)
	}

	return CloseResult{UpdatedCount: len(ids), ClosedIDs: ids}, nil
}

// Reconcile is the read-time guard: callers serving status-filtered
// queries invoke it first so results never contain an RFP that is past
// its deadline but still marked active.
func (m *Manager) Reconcile(ctx context.Context) error {
	_, err := m.CloseExpired(ctx)
	return err
}

// CurrentStatus recomputes an RFP's effective status before a write is
// committed, closing it first if the deadline passed. This is the
// write-time guard: an update racing with deadline passage lands on a
// closed RFP.
func (m *Manager) CurrentStatus(ctx context.Context, rfpID string) (models.RFPStatus, error) {
	rfp, err := m.store.RFPs().GetByID(ctx, rfpID)
	if err != nil {
		return "", fmt.Errorf("current status: %w", err)
	}
	if rfp == nil {
		return "", fmt.Errorf("current status: rfp %s not found", rfpID)
	}
	if rfp.Status == models.StatusActive && rfp.Expired(m.now()) {
		moved, err := m.store.RFPs().TransitionStatus(ctx, rfpID, models.StatusActive, models.StatusClosed)
		if err != nil {
			return "", fmt.Errorf("current status: %w", err)
		}
		if moved {
			metrics.RFPAutoClosed.Inc()
			m.notifyClosed(ctx, rfp.ID, rfp.Title)
		}
		return models.StatusClosed, nil
	}
	return rfp.Status, nil
}

func (m *Manager) notifyClosed(ctx context.Context, rfpID, title string) {
	if err := m.dispatcher.OnTransition(ctx, notify.Event{
		Kind:     notify.EventRFPClosed,
		RFPID:    rfpID,
		RFPTitle: title,
	}); err != nil {
		log.Printf("close rfp %s: notification fan-out: %v", rfpID, err)
	}
}
