package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transfa/collections-service/internal/domain"
)

var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func seedClient(t *testing.T, s Store, id string) domain.Client {
	t.Helper()
	c := domain.Client{ID: id, Name: "Client " + id, Email: id + "@example.com", Status: domain.ClientStatusActive, CreatedAt: testNow}
	require.NoError(t, s.WithinTx(context.Background(), func(ctx context.Context, repos Repositories) error {
		return repos.Clients().Insert(ctx, c)
	}))
	return c
}

func newCharge(id, clientID string, created time.Time) domain.Charge {
	return domain.Charge{
		ID:        id,
		ClientID:  clientID,
		Amount:    decimal.RequireFromString("120.50"),
		DueDate:   time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt: created,
		Status:    domain.ChargeStatusPending,
	}
}

func TestMemoryStore_WithinTxRollsBackOnError(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedClient(t, s, "c1")
	errBoom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context, repos Repositories) error {
		charge := newCharge("ch1", "c1", testNow)
		if err := repos.Charges().Insert(ctx, charge); err != nil {
			return err
		}
		if err := repos.History().Append(ctx, domain.NewHistoryEntry("ch1", domain.ActionCreated, "ana", "", testNow)); err != nil {
			return err
		}
		client, err := repos.Clients().GetForUpdate(ctx, "c1")
		if err != nil {
			return err
		}
		client.Status = domain.ClientStatusBlocked
		if err := repos.Clients().Update(ctx, *client); err != nil {
			return err
		}
		return errBoom
	})
	require.Same(t, errBoom, err)

	_, err = s.Charges().Get(ctx, "ch1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	entries, err := s.History().List(ctx, domain.HistoryFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
	client, err := s.Clients().Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.ClientStatusActive, client.Status)
}

func TestMemoryStore_InsertChargeRequiresClient(t *testing.T) {
	s := NewMemoryStore()
	err := s.WithinTx(context.Background(), func(ctx context.Context, repos Repositories) error {
		return repos.Charges().Insert(ctx, newCharge("ch1", "ghost", testNow))
	})
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "client", nf.Entity)
}

func TestMemoryStore_UpdateMissingChargeIsNotFound(t *testing.T) {
	s := NewMemoryStore()
	err := s.WithinTx(context.Background(), func(ctx context.Context, repos Repositories) error {
		return repos.Charges().Update(ctx, newCharge("ch1", "c1", testNow))
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryStore_SnapshotIsReadOnly(t *testing.T) {
	s := NewMemoryStore()
	seedClient(t, s, "c1")

	err := s.Snapshot(context.Background(), func(ctx context.Context, repos Repositories) error {
		clients, err := repos.Clients().List(ctx)
		require.NoError(t, err)
		assert.Len(t, clients, 1)
		return repos.History().Append(ctx, domain.NewHistoryEntry("x", domain.ActionCreated, "", "", testNow))
	})
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestMemoryStore_ListOrdering(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedClient(t, s, "c1")
	seedClient(t, s, "c2")

	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, repos Repositories) error {
		for _, c := range []domain.Charge{
			newCharge("b", "c1", testNow.Add(time.Minute)),
			newCharge("a", "c2", testNow.Add(time.Minute)),
			newCharge("z", "c1", testNow),
		} {
			if err := repos.Charges().Insert(ctx, c); err != nil {
				return err
			}
		}
		return nil
	}))

	all, err := s.Charges().List(ctx)
	require.NoError(t, err)
	var ids []string
	for _, c := range all {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"z", "a", "b"}, ids)

	mine, err := s.Charges().ListByClient(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "z", mine[0].ID)
}

func TestMemoryStore_HistoryNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedClient(t, s, "c1")

	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, repos Repositories) error {
		if err := repos.Charges().Insert(ctx, newCharge("ch1", "c1", testNow)); err != nil {
			return err
		}
		for _, e := range []domain.HistoryEntry{
			domain.NewHistoryEntry("ch1", domain.ActionCreated, "ana", "first", testNow),
			domain.NewHistoryEntry("ch1", domain.ActionSent, "ana", "second", testNow),
			domain.NewHistoryEntry("ch1", domain.ActionResent, "bruno", "third", testNow.Add(time.Hour)),
			domain.NewHistoryEntry("other", domain.ActionCreated, "", "elsewhere", testNow),
		} {
			if err := repos.History().Append(ctx, e); err != nil {
				return err
			}
		}
		return nil
	}))

	entries, err := s.History().ListByCharge(ctx, "ch1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "third", entries[0].Details)
	assert.Equal(t, "second", entries[1].Details)
	assert.Equal(t, "first", entries[2].Details)

	limited, err := s.History().List(ctx, domain.HistoryFilter{Actor: "ana", Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "second", limited[0].Details)

	system, err := s.History().List(ctx, domain.HistoryFilter{Actor: domain.SystemActor})
	require.NoError(t, err)
	require.Len(t, system, 1)
	assert.Equal(t, "other", system[0].ChargeID)
}
