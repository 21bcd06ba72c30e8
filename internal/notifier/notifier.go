// Package notifier delivers notification rows out-of-band: email to the
// recipient and webhook posts to an operations channel. The in-app
// notification row written by the dispatcher is the durable record;
// everything here is best-effort on top of it.
package notifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/keen-violet-ibis/rfphub/internal/models"
)

// Message is one outbound delivery. RecipientEmail may be empty for
// senders that target a fixed channel (webhooks).
type Message struct {
	RecipientEmail string
	RecipientName  string
	Kind           models.NotificationType
	Title          string
	Body           string
	ReferenceID    string
	CreatedAt      time.Time
}

// Sender is one delivery channel.
type Sender interface {
	// Name returns the sender name (e.g., "email", "webhook").
	Name() string
	// Send delivers one message.
	Send(ctx context.Context, msg *Message) error
	// Close releases any resources.
	Close() error
}

// ErrRateLimited is returned when a delivery is dropped due to rate limiting.
var ErrRateLimited = fmt.Errorf("delivery rate limited")

// Deliverer routes messages to registered senders under a shared rate
// limit. Per-sender failures are collected, never fatal to the others.
type Deliverer struct {
	mu          sync.RWMutex
	senders     map[string]Sender
	rateLimiter *RateLimiter
}

// NewDeliverer creates a Deliverer with default rate limiting.
func NewDeliverer() *Deliverer {
	return NewDelivererWithRateLimit(DefaultRateLimitConfig())
}

// NewDelivererWithRateLimit creates a Deliverer with a custom rate limit.
func NewDelivererWithRateLimit(config RateLimitConfig) *Deliverer {
	return &Deliverer{
		senders:     make(map[string]Sender),
		rateLimiter: NewRateLimiter(config),
	}
}

// Register adds a sender.
func (d *Deliverer) Register(s Sender) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.senders[s.Name()] = s
}

// Unregister removes a sender by name.
func (d *Deliverer) Unregister(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.senders, name)
}

// Get returns a sender by name.
func (d *Deliverer) Get(name string) (Sender, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.senders[name]
	return s, ok
}

// Deliver sends one message to every registered sender. Returns
// ErrRateLimited when the shared limit drops the message.
func (d *Deliverer) Deliver(ctx context.Context, msg *Message) error {
	if d.rateLimiter != nil && !d.rateLimiter.Allow() {
		return ErrRateLimited
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var errs []error
	for name, s := range d.senders {
		if err := s.Send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("delivery errors: %v", errs)
	}
	return nil
}

// RateLimitStats returns the rate limiter statistics.
func (d *Deliverer) RateLimitStats() RateLimitStats {
	if d.rateLimiter == nil {
		return RateLimitStats{}
	}
	return d.rateLimiter.Stats()
}

// Close closes all registered senders.
func (d *Deliverer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for name, s := range d.senders {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	d.senders = make(map[string]Sender)

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// FromNotification builds a Message from a stored notification row and
// its recipient.
func FromNotification(n *models.Notification, recipient *models.User) *Message {
	msg := &Message{
		Kind:        n.Type,
		Title:       n.Title,
		Body:        n.Message,
		ReferenceID: n.ReferenceID,
		CreatedAt:   n.CreatedAt,
	}
	if recipient != nil {
		msg.RecipientEmail = recipient.Email
		msg.RecipientName = recipient.FullName
	}
	return msg
}
