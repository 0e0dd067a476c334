/**
 * @description
 * Delivery of charge notifications to clients. The Dispatcher routes one
 * notification to the system channel, the email channel or both.
 */
package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/transfa/collections-service/internal/domain"
	"go.uber.org/zap"
)

// Message is the channel-independent content of a charge notification.
type Message struct {
	ChargeID    string `json:"charge_id"`
	ClientID    string `json:"client_id"`
	ClientName  string `json:"client_name"`
	ClientEmail string `json:"client_email"`
	Amount      string `json:"amount"`
	DueDate     string `json:"due_date"`
	Status      string `json:"status"`
	Attempt     int    `json:"attempt"`
	DocumentRef string `json:"document_ref,omitempty"`
	PaymentLink string `json:"payment_link,omitempty"`
}

// NewMessage builds the notification content for a charge.
func NewMessage(charge domain.Charge, client domain.Client) Message {
	return Message{
		ChargeID:    charge.ID,
		ClientID:    client.ID,
		ClientName:  client.Name,
		ClientEmail: client.Email,
		Amount:      charge.Amount.StringFixed(2),
		DueDate:     charge.DueDate.Format(domain.DateLayout),
		Status:      string(charge.Status),
		Attempt:     charge.SendAttempts,
		DocumentRef: charge.PaymentDocumentRef,
		PaymentLink: charge.PaymentLinkRef,
	}
}

// Sender delivers a message over one channel.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Dispatcher fans a notification out to the configured senders.
type Dispatcher struct {
	system Sender
	email  Sender
	logger *zap.Logger
}

// NewDispatcher creates a Dispatcher. A nil sender makes its channel fail.
func NewDispatcher(system, email Sender, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{system: system, email: email, logger: logger}
}

// Notify delivers the notification of charge over channel. With ChannelBoth
// every sender is tried and the failures are joined.
func (d *Dispatcher) Notify(ctx context.Context, charge domain.Charge, client domain.Client, channel domain.Channel) error {
	msg := NewMessage(charge, client)

	switch channel {
	case domain.ChannelSystem:
		return d.send(ctx, domain.ChannelSystem, d.system, msg)
	case domain.ChannelEmail:
		return d.send(ctx, domain.ChannelEmail, d.email, msg)
	case domain.ChannelBoth:
		return errors.Join(
			d.send(ctx, domain.ChannelSystem, d.system, msg),
			d.send(ctx, domain.ChannelEmail, d.email, msg),
		)
	default:
		return fmt.Errorf("unsupported notification channel %q", channel)
	}
}

func (d *Dispatcher) send(ctx context.Context, channel domain.Channel, sender Sender, msg Message) error {
	if sender == nil {
		return fmt.Errorf("%s channel is not configured", channel)
	}
	if err := sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("%s channel: %w", channel, err)
	}
	d.logger.Debug("notification delivered",
		zap.String("channel", string(channel)),
		zap.String("charge_id", msg.ChargeID),
		zap.Int("attempt", msg.Attempt),
	)
	return nil
}
