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

// RegisterClientParams carries the input of RegisterClient.
type RegisterClientParams struct {
	Name  string
	Email string
	Phone string
}

// RegisterClient creates an active client.
func (s *Service) RegisterClient(ctx context.Context, p RegisterClientParams) (*domain.Client, error) {
	if err := domain.ValidateClient(p.Name, p.Email); err != nil {
		return nil, err
	}
	client := domain.Client{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(p.Name),
		Email:     strings.TrimSpace(p.Email),
		Phone:     strings.TrimSpace(p.Phone),
		Status:    domain.ClientStatusActive,
		CreatedAt: s.now(),
		TotalOwed: decimal.Zero,
	}
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		return repos.Clients().Insert(ctx, client)
	})
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// BlockClient blocks a client and cascades Blocked to every charge of the
// client that is not paid, in one transaction. An empty actor falls back to
// the actor on ctx.
func (s *Service) BlockClient(ctx context.Context, clientID, reason, actor string) (*domain.Client, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, &domain.ValidationError{Field: "reason", Message: "is required"}
	}
	if actor == "" {
		actor = domain.ActorFromContext(ctx)
	}

	var (
		updated  domain.Client
		cascaded int
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		client, err := repos.Clients().GetForUpdate(ctx, clientID)
		if err != nil {
			return err
		}
		now := s.now()
		if err := client.Block(reason, actor, now); err != nil {
			return err
		}

		charges, err := repos.Charges().ListByClientForUpdate(ctx, clientID)
		if err != nil {
			return err
		}
		owed := decimal.Zero
		for i := range charges {
			charge := &charges[i]
			if !charge.IsOutstanding() {
				continue
			}
			if err := charge.Block(); err != nil {
				return err
			}
			if err := repos.Charges().Update(ctx, *charge); err != nil {
				return err
			}
			entry := domain.NewHistoryEntry(charge.ID, domain.ActionBlocked, actor, "client blocked: "+reason, now)
			if err := repos.History().Append(ctx, entry); err != nil {
				return err
			}
			owed = owed.Add(charge.Amount)
			cascaded++
		}

		if err := repos.Clients().Update(ctx, *client); err != nil {
			return err
		}
		client.TotalOwed = owed
		updated = *client
		return nil
	})
	if err != nil {
		return nil, err
	}

	if cascaded == 0 {
		s.logger.Warn("blocked client has no outstanding charges", zap.String("client_id", clientID))
	}
	s.logger.Info("client blocked",
		zap.String("client_id", clientID),
		zap.String("actor", actor),
		zap.Int("charges_blocked", cascaded),
	)
	s.afterCommit(ctx, "client.blocked", clientEvent(updated, actor, reason))
	return &updated, nil
}

// ReleaseClient lifts a block. Charges stay Blocked; each one gets a Released
// history entry and must be reopened explicitly with ReopenCharge.
func (s *Service) ReleaseClient(ctx context.Context, clientID, reason, actor string) (*domain.Client, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, &domain.ValidationError{Field: "reason", Message: "is required"}
	}
	if actor == "" {
		actor = domain.ActorFromContext(ctx)
	}

	var updated domain.Client
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		client, err := repos.Clients().GetForUpdate(ctx, clientID)
		if err != nil {
			return err
		}
		if err := client.Release(); err != nil {
			return err
		}

		charges, err := repos.Charges().ListByClientForUpdate(ctx, clientID)
		if err != nil {
			return err
		}
		now := s.now()
		for _, charge := range charges {
			if charge.Status != domain.ChargeStatusBlocked {
				continue
			}
			entry := domain.NewHistoryEntry(charge.ID, domain.ActionReleased, actor, "client released: "+reason, now)
			if err := repos.History().Append(ctx, entry); err != nil {
				return err
			}
		}

		if err := repos.Clients().Update(ctx, *client); err != nil {
			return err
		}
		client.TotalOwed = domain.TotalOwed(clientID, charges)
		updated = *client
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("client released", zap.String("client_id", clientID), zap.String("actor", actor))
	s.afterCommit(ctx, "client.released", clientEvent(updated, actor, reason))
	return &updated, nil
}

// TotalOwed sums the amounts of every charge of the client that is not paid.
func (s *Service) TotalOwed(ctx context.Context, clientID string) (decimal.Decimal, error) {
	if _, err := s.store.Clients().Get(ctx, clientID); err != nil {
		return decimal.Zero, err
	}
	charges, err := s.store.Charges().ListByClient(ctx, clientID)
	if err != nil {
		return decimal.Zero, err
	}
	return domain.TotalOwed(clientID, charges), nil
}

// GetClient returns a client with its derived total owed.
func (s *Service) GetClient(ctx context.Context, clientID string) (*domain.Client, error) {
	var client *domain.Client
	err := s.store.Snapshot(ctx, func(ctx context.Context, repos store.Repositories) error {
		c, err := repos.Clients().Get(ctx, clientID)
		if err != nil {
			return err
		}
		charges, err := repos.Charges().ListByClient(ctx, clientID)
		if err != nil {
			return err
		}
		c.TotalOwed = domain.TotalOwed(clientID, charges)
		client = c
		return nil
	})
	return client, err
}

// ListClients returns every client with its derived total owed.
func (s *Service) ListClients(ctx context.Context) ([]domain.Client, error) {
	var clients []domain.Client
	err := s.store.Snapshot(ctx, func(ctx context.Context, repos store.Repositories) error {
		var err error
		clients, err = repos.Clients().List(ctx)
		if err != nil {
			return err
		}
		charges, err := repos.Charges().List(ctx)
		if err != nil {
			return err
		}
		owed := make(map[string]decimal.Decimal, len(clients))
		for _, c := range charges {
			if c.IsOutstanding() {
				owed[c.ClientID] = owed[c.ClientID].Add(c.Amount)
			}
		}
		for i := range clients {
			clients[i].TotalOwed = owed[clients[i].ID]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return clients, nil
}

func blockReason(chargeID string, days int) string {
	return fmt.Sprintf("automatic escalation: charge %s is %d days overdue", chargeID, days)
}
