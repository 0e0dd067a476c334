package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/transfa/collections-service/internal/domain"
	"github.com/transfa/collections-service/internal/store"
	"go.uber.org/zap"
)

// SweepResult summarizes one escalation sweep.
type SweepResult struct {
	Evaluated      int `json:"evaluated"`
	MarkedOverdue  int `json:"marked_overdue"`
	ClientsBlocked int `json:"clients_blocked"`
	Failed         int `json:"failed"`
}

// escalate evaluates the policy for a charge that was just mutated and blocks
// its client when the policy fires. The command that triggered it is already
// committed, so failures are only logged; the next sweep retries them.
func (s *Service) escalate(ctx context.Context, charge domain.Charge) domain.Charge {
	if !s.autoEscalate {
		return charge
	}
	now := s.now()
	if !s.policy.ShouldBlock(charge, now) {
		return charge
	}

	reason := blockReason(charge.ID, s.policy.DaysOverdue(charge, now))
	if _, err := s.BlockClient(ctx, charge.ClientID, reason, domain.SystemActor); err != nil {
		if !errors.Is(err, domain.ErrInvalidTransition) {
			s.logger.Error("automatic escalation failed",
				zap.String("charge_id", charge.ID),
				zap.String("client_id", charge.ClientID),
				zap.Error(err),
			)
		}
		return charge
	}

	latest, err := s.store.Charges().Get(ctx, charge.ID)
	if err != nil {
		s.logger.Warn("failed to reload escalated charge", zap.String("charge_id", charge.ID), zap.Error(err))
		return charge
	}
	return *latest
}

// RunEscalationSweep walks every charge: sent charges past their due date are
// flagged Overdue, then every client owning a charge the policy fires on is
// blocked.
func (s *Service) RunEscalationSweep(ctx context.Context) (*SweepResult, error) {
	charges, err := s.store.Charges().List(ctx)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{Evaluated: len(charges)}
	now := s.now()

	for i := range charges {
		charge := &charges[i]
		if charge.Status != domain.ChargeStatusSent || s.policy.DaysOverdue(*charge, now) == 0 {
			continue
		}
		marked, err := s.markOverdue(ctx, charge.ID)
		if err != nil {
			s.logger.Error("failed to mark charge overdue", zap.String("charge_id", charge.ID), zap.Error(err))
			result.Failed++
			continue
		}
		if marked != nil {
			*charge = *marked
			result.MarkedOverdue++
		}
	}

	type offender struct {
		chargeID string
		days     int
	}
	worst := make(map[string]offender)
	var order []string
	for _, charge := range charges {
		if !s.policy.ShouldBlock(charge, now) {
			continue
		}
		days := s.policy.DaysOverdue(charge, now)
		current, seen := worst[charge.ClientID]
		if !seen {
			order = append(order, charge.ClientID)
		}
		if !seen || days > current.days {
			worst[charge.ClientID] = offender{chargeID: charge.ID, days: days}
		}
	}

	for _, clientID := range order {
		o := worst[clientID]
		_, err := s.BlockClient(ctx, clientID, blockReason(o.chargeID, o.days), domain.SystemActor)
		switch {
		case err == nil:
			result.ClientsBlocked++
		case errors.Is(err, domain.ErrInvalidTransition):
		default:
			s.logger.Error("failed to block client during sweep", zap.String("client_id", clientID), zap.Error(err))
			result.Failed++
		}
	}

	s.logger.Info("escalation sweep finished",
		zap.Int("evaluated", result.Evaluated),
		zap.Int("marked_overdue", result.MarkedOverdue),
		zap.Int("clients_blocked", result.ClientsBlocked),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// markOverdue flags a sent charge past its due date. It returns nil when the
// charge no longer qualifies.
func (s *Service) markOverdue(ctx context.Context, chargeID string) (*domain.Charge, error) {
	var updated *domain.Charge
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		charge, err := repos.Charges().GetForUpdate(ctx, chargeID)
		if err != nil {
			return err
		}
		now := s.now()
		days := s.policy.DaysOverdue(*charge, now)
		if charge.Status != domain.ChargeStatusSent || days == 0 {
			return nil
		}
		if err := charge.MarkOverdue(); err != nil {
			return err
		}
		if err := repos.Charges().Update(ctx, *charge); err != nil {
			return err
		}
		details := fmt.Sprintf("due date passed %d days ago", days)
		if err := repos.History().Append(ctx, domain.NewHistoryEntry(charge.ID, domain.ActionAlertSent, domain.SystemActor, details, now)); err != nil {
			return err
		}
		updated = charge
		return nil
	})
	if err != nil {
		return nil, err
	}
	if updated != nil {
		s.afterCommit(ctx, "charge.overdue", chargeEvent(*updated, domain.SystemActor))
	}
	return updated, nil
}
