// Package notify delivers requisition events to people: e-mail through the Mailer and
// live browser updates through the Hub. Delivery failures never fail the operation that
// produced the event.
package notify

import (
	"context"
	"errors"
	"time"
)

type Kind string

const (
	Submitted Kind = "SUBMITTED"
	Ready     Kind = "READY"
	Returned  Kind = "RETURNED"
	Cancelled Kind = "CANCELLED"
)

// Message is one event about a requisition. To/Cc/Bcc only matter to mail delivery.
type Message struct {
	Kind          Kind              `json:"kind"`
	RequisitionID string            `json:"requisitionId"`
	RequesterID   string            `json:"requesterId"`
	To            []string          `json:"-"`
	Cc            []string          `json:"-"`
	Bcc           []string          `json:"-"`
	Context       map[string]string `json:"context,omitempty"`
	At            time.Time         `json:"at"`
}

type Notifier interface {
	Send(ctx context.Context, m Message) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, m Message) error

func (f Func) Send(ctx context.Context, m Message) error { return f(ctx, m) }

// Multi sends to every notifier and joins their errors.
type Multi []Notifier

func (ms Multi) Send(ctx context.Context, m Message) error {
	var errs []error
	for _, n := range ms {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop drops every message.
type Nop struct{}

func (Nop) Send(context.Context, Message) error { return nil }
