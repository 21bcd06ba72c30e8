// Package notify fans state transitions out into per-user notification
// rows. The row is the durable record; an optional delivery layer
// (see WithDelivery) pushes committed rows out-of-band, best-effort.
//
// Exactly-once is the caller's property, not the dispatcher's: writers
// invoke OnTransition only after a state change actually landed (the
// lifecycle manager's conditional updates guarantee a single winner), so
// the dispatcher never needs its own dedup.
package notify

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/keen-violet-ibis/rfphub/internal/metrics"
	"github.com/keen-violet-ibis/rfphub/internal/models"
	"github.com/keen-violet-ibis/rfphub/internal/notifier"
	"github.com/keen-violet-ibis/rfphub/internal/storage"
)

// EventKind identifies the state transition being dispatched.
type EventKind string

const (
	EventRFPPublished     EventKind = "rfp_published"
	EventRFPClosed        EventKind = "rfp_closed"
	EventQuestionAnswered EventKind = "question_answered"
	EventNDADecided       EventKind = "nda_decided"
	EventAccessDecided    EventKind = "access_decided"
)

// Event carries the fields a transition needs for fan-out. Only the
// fields relevant to the Kind are set.
type Event struct {
	Kind EventKind

	RFPID    string
	RFPTitle string

	// Question transitions
	QuestionID string
	AskerID    string

	// NDA and access grant transitions
	GrantID   string
	UserID    string
	CompanyID string
	Status    models.GrantStatus
}

// Dispatcher writes notification rows in response to transitions.
type Dispatcher struct {
	store    storage.Storage
	limiter  *rate.Limiter
	delivery *notifier.Deliverer
}

// NewDispatcher creates a Dispatcher with default fan-out pacing.
func NewDispatcher(store storage.Storage) *Dispatcher {
	// Bulk fan-out (publish to every bidder) is paced so a large
	// recipient set cannot monopolize the single SQLite writer.
	return &Dispatcher{
		store:   store,
		limiter: rate.NewLimiter(rate.Limit(500), 100),
	}
}

// WithDelivery attaches an out-of-band delivery layer. The notification
// row remains the durable record; deliveries are best-effort and their
// failures never fail the fan-out.
func (d *Dispatcher) WithDelivery(del *notifier.Deliverer) *Dispatcher {
	d.delivery = del
	return d
}

// OnTransition dispatches one state transition. It must be invoked only
// after the transition committed; per-recipient writes are independent
// and append-only.
func (d *Dispatcher) OnTransition(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case EventRFPPublished:
		return d.rfpPublished(ctx, ev)
	case EventRFPClosed:
		return d.rfpClosed(ctx, ev)
	case EventQuestionAnswered:
		return d.questionAnswered(ctx, ev)
	case EventNDADecided:
		return d.ndaDecided(ctx, ev)
	case EventAccessDecided:
		return d.accessDecided(ctx, ev)
	default:
		return fmt.Errorf("dispatch: unknown event kind %q", ev.Kind)
	}
}

// rfpPublished notifies every bidder that a new RFP is open.
func (d *Dispatcher) rfpPublished(ctx context.Context, ev Event) error {
	bidders, err := d.store.Users().ListIDsByRole(ctx, models.RoleBidder)
	if err != nil {
		return fmt.Errorf("dispatch %s: %w", ev.Kind, err)
	}
	title := "New RFP published"
	msg := fmt.Sprintf("RFP %q is now accepting proposals.", ev.RFPTitle)
	return d.fanOut(ctx, bidders, models.NotifyRFPPublished, title, msg, ev.RFPID)
}

// rfpClosed notifies every user holding approved access to the RFP.
func (d *Dispatcher) rfpClosed(ctx context.Context, ev Event) error {
	recipients, err := d.store.Access().ApprovedUserIDs(ctx, ev.RFPID)
	if err != nil {
		return fmt.Errorf("dispatch %s: %w", ev.Kind, err)
	}
	title := "RFP closed"
	msg := fmt.Sprintf("RFP %q is no longer accepting proposals.", ev.RFPTitle)
	return d.fanOut(ctx, recipients, models.NotifyRFPClosed, title, msg, ev.RFPID)
}

// questionAnswered notifies the asking principal.
func (d *Dispatcher) questionAnswered(ctx context.Context, ev Event) error {
	title := "Your question was answered"
	msg := fmt.Sprintf("An answer to your question on RFP %q has been published.", ev.RFPTitle)
	return d.fanOut(ctx, []string{ev.AskerID}, models.NotifyQuestionAnswered, title, msg, ev.QuestionID)
}

// ndaDecided notifies the grant's principal: the individual signer, or
// every member of the company for a company-level grant.
func (d *Dispatcher) ndaDecided(ctx context.Context, ev Event) error {
	typ := models.NotifyNDAApproved
	title := "NDA approved"
	msg := fmt.Sprintf("Your NDA for RFP %q was approved.", ev.RFPTitle)
	if ev.Status == models.GrantRejected {
		typ = models.NotifyNDARejected
		title = "NDA rejected"
		msg = fmt.Sprintf("Your NDA for RFP %q was rejected.", ev.RFPTitle)
	}

	recipients := []string{ev.UserID}
	if ev.UserID == "" && ev.CompanyID != "" {
		ids, err := d.store.Companies().MemberIDs(ctx, ev.CompanyID)
		if err != nil {
			return fmt.Errorf("dispatch %s: %w", ev.Kind, err)
		}
		recipients = ids
	}
	return d.fanOut(ctx, recipients, typ, title, msg, ev.GrantID)
}

// accessDecided notifies the grant's principal.
func (d *Dispatcher) accessDecided(ctx context.Context, ev Event) error {
	typ := models.NotifyAccessGranted
	title := "Access granted"
	msg := fmt.Sprintf("You have been granted access to RFP %q.", ev.RFPTitle)
	if ev.Status == models.GrantRejected {
		typ = models.NotifyAccessDenied
		title = "Access denied"
		msg = fmt.Sprintf("Your access request for RFP %q was denied.", ev.RFPTitle)
	}
	return d.fanOut(ctx, []string{ev.UserID}, typ, title, msg, ev.GrantID)
}

// fanOut writes one notification row per recipient. A failed write is
// logged and skipped; remaining recipients still get theirs.
func (d *Dispatcher) fanOut(ctx context.Context, recipients []string, typ models.NotificationType, title, msg, referenceID string) error {
	var failed int
	for _, userID := range recipients {
		if userID == "" {
			continue
		}
		if err := d.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("fan out %s: %w", typ, err)
		}
		n := models.NewNotification(userID, typ, title, msg, referenceID)
		n.ID = uuid.New().String()
		if err := d.store.Notifications().Create(ctx, n); err != nil {
			log.Printf("notify %s to %s failed: %v", typ, userID, err)
			failed++
			continue
		}
		metrics.NotificationsCreated.WithLabelValues(string(typ)).Inc()
		d.deliver(ctx, n)
	}
	if failed > 0 {
		return fmt.Errorf("fan out %s: %d of %d writes failed", typ, failed, len(recipients))
	}
	return nil
}

// deliver pushes one committed row out-of-band. Failures are logged
// only; the row already persisted and the user will see it in-app.
func (d *Dispatcher) deliver(ctx context.Context, n *models.Notification) {
	if d.delivery == nil {
		return
	}
	recipient, err := d.store.Users().GetByID(ctx, n.UserID)
	if err != nil || recipient == nil {
		log.Printf("deliver %s: load recipient %s: %v", n.Type, n.UserID, err)
		return
	}
	if err := d.delivery.Deliver(ctx, notifier.FromNotification(n, recipient)); err != nil {
		log.Printf("deliver %s to %s: %v", n.Type, recipient.Email, err)
	}
}
