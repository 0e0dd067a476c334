package app

import (
	"context"

	"github.com/transfa/collections-service/internal/domain"
	"github.com/transfa/collections-service/internal/store"
	"go.uber.org/zap"
)

// GetCharge returns one charge.
func (s *Service) GetCharge(ctx context.Context, chargeID string) (*domain.Charge, error) {
	return s.store.Charges().Get(ctx, chargeID)
}

// ListCharges returns the charges matching filter, newest first.
func (s *Service) ListCharges(ctx context.Context, filter domain.ChargeFilter) ([]domain.Charge, error) {
	charges, err := s.store.Charges().List(ctx)
	if err != nil {
		return nil, err
	}
	return domain.FilterCharges(charges, filter, s.now(), s.policy.Location), nil
}

// DaysOverdue exposes the derived overdue age of a charge at the current instant.
func (s *Service) DaysOverdue(charge domain.Charge) int {
	return s.policy.DaysOverdue(charge, s.now())
}

// GetHistory returns the audit trail of one charge, newest first.
func (s *Service) GetHistory(ctx context.Context, chargeID string) ([]domain.HistoryEntry, error) {
	if _, err := s.store.Charges().Get(ctx, chargeID); err != nil {
		return nil, err
	}
	return s.store.History().ListByCharge(ctx, chargeID)
}

// ListHistory returns audit entries across charges, newest first.
func (s *Service) ListHistory(ctx context.Context, filter domain.HistoryFilter) ([]domain.HistoryEntry, error) {
	return s.store.History().List(ctx, filter)
}

// GetStatistics aggregates the current charge and client collections.
func (s *Service) GetStatistics(ctx context.Context) (*domain.Statistics, error) {
	var (
		generation int64
		cacheable  bool
	)
	if s.cache != nil {
		cached, gen, err := s.cache.Get(ctx)
		switch {
		case err != nil:
			s.logger.Warn("failed to read statistics cache", zap.Error(err))
		case cached != nil:
			return cached, nil
		default:
			generation, cacheable = gen, true
		}
	}

	var stats domain.Statistics
	err := s.store.Snapshot(ctx, func(ctx context.Context, repos store.Repositories) error {
		charges, err := repos.Charges().List(ctx)
		if err != nil {
			return err
		}
		clients, err := repos.Clients().List(ctx)
		if err != nil {
			return err
		}
		stats = domain.ComputeStatistics(charges, clients, s.now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	if cacheable {
		stored, err := s.cache.Set(ctx, generation, stats)
		if err != nil {
			s.logger.Warn("failed to write statistics cache", zap.Error(err))
		} else if !stored {
			s.logger.Debug("statistics changed while computing, not cached")
		}
	}
	return &stats, nil
}
