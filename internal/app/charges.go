package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/transfa/collections-service/internal/domain"
	"github.com/transfa/collections-service/internal/store"
	"go.uber.org/zap"
)

// IssueChargeParams carries the input of IssueCharge. DueDate is a civil date
// (YYYY-MM-DD) or an RFC3339 timestamp.
type IssueChargeParams struct {
	ClientID string
	Amount   decimal.Decimal
	DueDate  string
	Notes    string
}

// IssueCharge creates a pending charge for an existing client.
func (s *Service) IssueCharge(ctx context.Context, p IssueChargeParams) (*domain.Charge, error) {
	if err := domain.ValidateAmount(p.Amount); err != nil {
		return nil, err
	}
	dueDate, err := domain.ParseDueDate(p.DueDate)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.ClientID) == "" {
		return nil, &domain.ValidationError{Field: "client_id", Message: "is required"}
	}
	if _, err := s.store.Clients().Get(ctx, p.ClientID); err != nil {
		return nil, err
	}

	actor := domain.ActorFromContext(ctx)
	now := s.now()
	charge := domain.Charge{
		ID:        uuid.NewString(),
		ClientID:  p.ClientID,
		Amount:    p.Amount,
		DueDate:   dueDate,
		CreatedAt: now,
		Status:    domain.ChargeStatusPending,
		Notes:     strings.TrimSpace(p.Notes),
	}

	details := fmt.Sprintf("charge of %s issued, due %s", charge.Amount.StringFixed(2), dueDate.Format(domain.DateLayout))
	if s.docs != nil {
		docRef, linkRef, err := s.docs.Generate(ctx, charge)
		if err != nil {
			s.logger.Warn("payment document generation failed", zap.String("charge_id", charge.ID), zap.Error(err))
			details += "; document generation failed: " + err.Error()
		} else {
			charge.PaymentDocumentRef = docRef
			charge.PaymentLinkRef = linkRef
		}
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		// Locks the client so a concurrent block cascade sees either none or all of this charge.
		if _, err := repos.Clients().GetForUpdate(ctx, charge.ClientID); err != nil {
			return err
		}
		if err := repos.Charges().Insert(ctx, charge); err != nil {
			return err
		}
		return repos.History().Append(ctx, domain.NewHistoryEntry(charge.ID, domain.ActionCreated, actor, details, now))
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, "charge.issued", chargeEvent(charge, actor))
	charge = s.escalate(ctx, charge)
	return &charge, nil
}

// SendCharge dispatches a pending charge for the first time. An empty channel
// selects the configured default.
func (s *Service) SendCharge(ctx context.Context, chargeID string, channel domain.Channel) (*domain.Charge, error) {
	return s.dispatch(ctx, chargeID, channel, false)
}

// ResendCharge dispatches a sent or overdue charge again.
func (s *Service) ResendCharge(ctx context.Context, chargeID string, channel domain.Channel) (*domain.Charge, error) {
	return s.dispatch(ctx, chargeID, channel, true)
}

func (s *Service) dispatch(ctx context.Context, chargeID string, channel domain.Channel, resend bool) (*domain.Charge, error) {
	channel, err := domain.ParseChannel(string(channel))
	if err != nil {
		return nil, err
	}
	if channel == "" {
		channel = s.defaultChannel
	}

	actor := domain.ActorFromContext(ctx)
	action, routingKey := domain.ActionSent, "charge.sent"
	if resend {
		action, routingKey = domain.ActionResent, "charge.resent"
	}

	var (
		updated domain.Charge
		client  domain.Client
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		charge, err := repos.Charges().GetForUpdate(ctx, chargeID)
		if err != nil {
			return err
		}
		now := s.now()
		if resend {
			err = charge.MarkResent(now)
		} else {
			err = charge.MarkSent(now)
		}
		if err != nil {
			return err
		}

		owner, err := repos.Clients().Get(ctx, charge.ClientID)
		if err != nil {
			return err
		}

		if err := repos.Charges().Update(ctx, *charge); err != nil {
			return err
		}
		details := fmt.Sprintf("dispatched via %s, attempt %d", channel, charge.SendAttempts)
		if err := repos.History().Append(ctx, domain.NewHistoryEntry(charge.ID, action, actor, details, now)); err != nil {
			return err
		}
		updated, client = *charge, *owner
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, routingKey, chargeEvent(updated, actor))
	if err := s.notify(ctx, updated, client, channel); err != nil {
		s.recordDispatchFailure(ctx, updated, channel, actor, err)
	}
	updated = s.escalate(ctx, updated)
	return &updated, nil
}

// recordDispatchFailure appends the failed delivery to the charge history. The
// transition is already committed, so a failed append is only logged.
func (s *Service) recordDispatchFailure(ctx context.Context, charge domain.Charge, channel domain.Channel, actor string, cause error) {
	s.logger.Warn("charge dispatch failed",
		zap.String("charge_id", charge.ID),
		zap.String("channel", string(channel)),
		zap.Error(cause),
	)
	details := fmt.Sprintf("dispatch failed: %v (channel %s, attempt %d)", cause, channel, charge.SendAttempts)
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		return repos.History().Append(ctx, domain.NewHistoryEntry(charge.ID, domain.ActionDispatchFailed, actor, details, s.now()))
	})
	if err != nil {
		s.logger.Error("failed to record dispatch failure", zap.String("charge_id", charge.ID), zap.Error(err))
	}
}

func (s *Service) notify(ctx context.Context, charge domain.Charge, client domain.Client, channel domain.Channel) error {
	if s.notifier == nil {
		return fmt.Errorf("no notification sender configured")
	}
	ctx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	defer cancel()
	return s.notifier.Notify(ctx, charge, client, channel)
}

// SetChargeStatus is the administrative override to Paid or Overdue.
func (s *Service) SetChargeStatus(ctx context.Context, chargeID string, status domain.ChargeStatus, notes string) (*domain.Charge, error) {
	var (
		action     domain.HistoryAction
		routingKey string
		apply      func(c *domain.Charge) error
	)
	switch status {
	case domain.ChargeStatusPaid:
		action, routingKey = domain.ActionPaid, "charge.paid"
		apply = func(c *domain.Charge) error { return c.MarkPaid() }
	case domain.ChargeStatusOverdue:
		action, routingKey = domain.ActionAlertSent, "charge.overdue"
		apply = func(c *domain.Charge) error { return c.MarkOverdue() }
	default:
		return nil, &domain.ValidationError{Field: "status", Message: fmt.Sprintf("status can only be set to %s or %s", domain.ChargeStatusPaid, domain.ChargeStatusOverdue)}
	}

	actor := domain.ActorFromContext(ctx)
	notes = strings.TrimSpace(notes)

	var updated domain.Charge
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		charge, err := repos.Charges().GetForUpdate(ctx, chargeID)
		if err != nil {
			return err
		}
		from := charge.Status
		if err := apply(charge); err != nil {
			return err
		}
		details := fmt.Sprintf("status changed from %s to %s", from, charge.Status)
		if notes != "" {
			charge.Notes = notes
			details += ": " + notes
		}
		if err := repos.Charges().Update(ctx, *charge); err != nil {
			return err
		}
		if err := repos.History().Append(ctx, domain.NewHistoryEntry(charge.ID, action, actor, details, s.now())); err != nil {
			return err
		}
		updated = *charge
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, routingKey, chargeEvent(updated, actor))
	updated = s.escalate(ctx, updated)
	return &updated, nil
}

// ReopenCharge moves a blocked charge of a no longer blocked client back to
// target (Pending, Sent or Overdue).
func (s *Service) ReopenCharge(ctx context.Context, chargeID string, target domain.ChargeStatus, notes string) (*domain.Charge, error) {
	actor := domain.ActorFromContext(ctx)
	notes = strings.TrimSpace(notes)

	current, err := s.store.Charges().Get(ctx, chargeID)
	if err != nil {
		return nil, err
	}

	var updated domain.Charge
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		client, err := repos.Clients().GetForUpdate(ctx, current.ClientID)
		if err != nil {
			return err
		}
		charge, err := repos.Charges().GetForUpdate(ctx, chargeID)
		if err != nil {
			return err
		}
		if client.Status == domain.ClientStatusBlocked {
			return &domain.InvalidTransitionError{Entity: "charge", ID: charge.ID, From: "client blocked", Action: "reopen"}
		}
		if err := charge.Reopen(target); err != nil {
			return err
		}
		details := fmt.Sprintf("reopened as %s", target)
		if notes != "" {
			charge.Notes = notes
			details += ": " + notes
		}
		if err := repos.Charges().Update(ctx, *charge); err != nil {
			return err
		}
		if err := repos.History().Append(ctx, domain.NewHistoryEntry(charge.ID, domain.ActionReopened, actor, details, s.now())); err != nil {
			return err
		}
		updated = *charge
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, "charge.reopened", chargeEvent(updated, actor))
	updated = s.escalate(ctx, updated)
	return &updated, nil
}
