package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/keen-violet-ibis/rfphub/internal/models"
)

// fakeSender records messages for assertions.
type fakeSender struct {
	mu       sync.Mutex
	name     string
	messages []*Message
	sendErr  error
	closed   bool
}

func (f *fakeSender) Name() string { return f.name }

func (f *fakeSender) Send(ctx context.Context, msg *Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeSender) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func testMessage() *Message {
	return &Message{
		RecipientEmail: "jo@example.com",
		RecipientName:  "Jo Field",
		Kind:           models.NotifyRFPPublished,
		Title:          "New RFP published",
		Body:           "RFP \"Fleet Refresh\" is now accepting proposals.",
		ReferenceID:    "rfp-1",
		CreatedAt:      time.Now(),
	}
}

func TestDeliverer_RoutesToAllSenders(t *testing.T) {
	d := NewDelivererWithRateLimit(RateLimitConfig{Enabled: false})
	email := &fakeSender{name: "email"}
	webhook := &fakeSender{name: "webhook"}
	d.Register(email)
	d.Register(webhook)

	if err := d.Deliver(context.Background(), testMessage()); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	if email.count() != 1 || webhook.count() != 1 {
		t.Fatalf("counts = %d/%d, want 1/1", email.count(), webhook.count())
	}
}

func TestDeliverer_SenderFailureDoesNotBlockOthers(t *testing.T) {
	d := NewDelivererWithRateLimit(RateLimitConfig{Enabled: false})
	broken := &fakeSender{name: "email", sendErr: errors.New("smtp down")}
	working := &fakeSender{name: "webhook"}
	d.Register(broken)
	d.Register(working)

	err := d.Deliver(context.Background(), testMessage())
	if err == nil {
		t.Fatal("expected an aggregate error")
	}
	if working.count() != 1 {
		t.Fatalf("working sender got %d messages, want 1", working.count())
	}
}

func TestDeliverer_RateLimited(t *testing.T) {
	d := NewDelivererWithRateLimit(RateLimitConfig{MaxPerWindow: 2, Window: time.Minute, Enabled: true})
	sender := &fakeSender{name: "email"}
	d.Register(sender)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := d.Deliver(ctx, testMessage()); err != nil {
			t.Fatalf("deliver %d: %v", i, err)
		}
	}

	if err := d.Deliver(ctx, testMessage()); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	if sender.count() != 2 {
		t.Fatalf("sender got %d messages, want 2", sender.count())
	}
}

func TestDeliverer_Unregister(t *testing.T) {
	d := NewDelivererWithRateLimit(RateLimitConfig{Enabled: false})
	sender := &fakeSender{name: "email"}
	d.Register(sender)
	d.Unregister("email")

	if err := d.Deliver(context.Background(), testMessage()); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if sender.count() != 0 {
		t.Fatal("unregistered sender should not receive messages")
	}
}

func TestDeliverer_Close(t *testing.T) {
	d := NewDeliverer()
	sender := &fakeSender{name: "email"}
	d.Register(sender)

	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !sender.closed {
		t.Error("sender should be closed")
	}
	if _, ok := d.Get("email"); ok {
		t.Error("senders should be cleared after close")
	}
}

func TestFromNotification(t *testing.T) {
	n := models.NewNotification("u1", models.NotifyNDAApproved, "NDA approved", "Your NDA was approved.", "grant-1")
	recipient := &models.User{ID: "u1", Email: "jo@example.com", FullName: "Jo Field"}

	msg := FromNotification(n, recipient)
	if msg.RecipientEmail != "jo@example.com" || msg.RecipientName != "Jo Field" {
		t.Fatalf("recipient = %q/%q", msg.RecipientEmail, msg.RecipientName)
	}
	if msg.Kind != models.NotifyNDAApproved || msg.Title != "NDA approved" || msg.ReferenceID != "grant-1" {
		t.Fatalf("msg = %+v", msg)
	}

	// Nil recipient leaves the address empty; email delivery skips it.
	msg = FromNotification(n, nil)
	if msg.RecipientEmail != "" {
		t.Fatalf("recipient email = %q, want empty", msg.RecipientEmail)
	}
}
