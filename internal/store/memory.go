/**
 * @description
 * Process-local Store. A single RWMutex gives one writer at a time; every
 * transaction works on the live maps and restores a copy taken at Begin when
 * it fails.
 */
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/transfa/collections-service/internal/domain"
)

// MemoryStore keeps charges, clients and history in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	charges map[string]domain.Charge
	clients map[string]domain.Client
	history []domain.HistoryEntry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		charges: make(map[string]domain.Charge),
		clients: make(map[string]domain.Client),
	}
}

type memoryState struct {
	charges map[string]domain.Charge
	clients map[string]domain.Client
	history int
}

func (s *MemoryStore) checkpoint() memoryState {
	st := memoryState{
		charges: make(map[string]domain.Charge, len(s.charges)),
		clients: make(map[string]domain.Client, len(s.clients)),
		history: len(s.history),
	}
	for k, v := range s.charges {
		st.charges[k] = v
	}
	for k, v := range s.clients {
		st.clients[k] = v
	}
	return st
}

func (s *MemoryStore) restore(st memoryState) {
	s.charges = st.charges
	s.clients = st.clients
	s.history = s.history[:st.history]
}

// WithinTx implements Store.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.checkpoint()
	if err := fn(ctx, memoryView{s: s, locked: true}); err != nil {
		s.restore(st)
		return err
	}
	return nil
}

// Snapshot implements Store.
func (s *MemoryStore) Snapshot(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(ctx, memoryView{s: s, locked: true, readOnly: true})
}

func (s *MemoryStore) Charges() ChargeRepository   { return memoryView{s: s}.Charges() }
func (s *MemoryStore) Clients() ClientRepository   { return memoryView{s: s}.Clients() }
func (s *MemoryStore) History() HistoryRepository { return memoryView{s: s}.History() }

// memoryView is a set of repositories over the store. locked means the caller
// already holds the store mutex.
type memoryView struct {
	s        *MemoryStore
	locked   bool
	readOnly bool
}

func (v memoryView) Charges() ChargeRepository   { return memoryCharges{v} }
func (v memoryView) Clients() ClientRepository   { return memoryClients{v} }
func (v memoryView) History() HistoryRepository { return memoryHistory{v} }

func (v memoryView) read(fn func()) {
	if !v.locked {
		v.s.mu.RLock()
		defer v.s.mu.RUnlock()
	}
	fn()
}

func (v memoryView) write(fn func() error) error {
	if v.readOnly {
		return ErrReadOnly
	}
	if !v.locked {
		v.s.mu.Lock()
		defer v.s.mu.Unlock()
	}
	return fn()
}

type memoryCharges struct{ v memoryView }

func (r memoryCharges) Get(ctx context.Context, id string) (*domain.Charge, error) {
	var (
		c  domain.Charge
		ok bool
	)
	r.v.read(func() { c, ok = r.v.s.charges[id] })
	if !ok {
		return nil, &domain.NotFoundError{Entity: "charge", ID: id}
	}
	return &c, nil
}

// GetForUpdate is Get: inside WithinTx the store mutex is already exclusive.
func (r memoryCharges) GetForUpdate(ctx context.Context, id string) (*domain.Charge, error) {
	return r.Get(ctx, id)
}

func (r memoryCharges) List(ctx context.Context) ([]domain.Charge, error) {
	var out []domain.Charge
	r.v.read(func() {
		out = make([]domain.Charge, 0, len(r.v.s.charges))
		for _, c := range r.v.s.charges {
			out = append(out, c)
		}
	})
	sortCharges(out)
	return out, nil
}

func (r memoryCharges) ListByClient(ctx context.Context, clientID string) ([]domain.Charge, error) {
	var out []domain.Charge
	r.v.read(func() {
		for _, c := range r.v.s.charges {
			if c.ClientID == clientID {
				out = append(out, c)
			}
		}
	})
	sortCharges(out)
	return out, nil
}

func (r memoryCharges) ListByClientForUpdate(ctx context.Context, clientID string) ([]domain.Charge, error) {
	return r.ListByClient(ctx, clientID)
}

func (r memoryCharges) Insert(ctx context.Context, charge domain.Charge) error {
	return r.v.write(func() error {
		if _, ok := r.v.s.clients[charge.ClientID]; !ok {
			return &domain.NotFoundError{Entity: "client", ID: charge.ClientID}
		}
		r.v.s.charges[charge.ID] = charge
		return nil
	})
}

func (r memoryCharges) Update(ctx context.Context, charge domain.Charge) error {
	return r.v.write(func() error {
		if _, ok := r.v.s.charges[charge.ID]; !ok {
			return &domain.NotFoundError{Entity: "charge", ID: charge.ID}
		}
		r.v.s.charges[charge.ID] = charge
		return nil
	})
}

// sortCharges orders by creation time, oldest first, with the id as tie breaker.
func sortCharges(charges []domain.Charge) {
	sort.Slice(charges, func(i, j int) bool {
		if charges[i].CreatedAt.Equal(charges[j].CreatedAt) {
			return charges[i].ID < charges[j].ID
		}
		return charges[i].CreatedAt.Before(charges[j].CreatedAt)
	})
}

type memoryClients struct{ v memoryView }

func (r memoryClients) Get(ctx context.Context, id string) (*domain.Client, error) {
	var (
		c  domain.Client
		ok bool
	)
	r.v.read(func() { c, ok = r.v.s.clients[id] })
	if !ok {
		return nil, &domain.NotFoundError{Entity: "client", ID: id}
	}
	return &c, nil
}

func (r memoryClients) GetForUpdate(ctx context.Context, id string) (*domain.Client, error) {
	return r.Get(ctx, id)
}

func (r memoryClients) List(ctx context.Context) ([]domain.Client, error) {
	var out []domain.Client
	r.v.read(func() {
		out = make([]domain.Client, 0, len(r.v.s.clients))
		for _, c := range r.v.s.clients {
			out = append(out, c)
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r memoryClients) Insert(ctx context.Context, client domain.Client) error {
	return r.v.write(func() error {
		r.v.s.clients[client.ID] = client
		return nil
	})
}

func (r memoryClients) Update(ctx context.Context, client domain.Client) error {
	return r.v.write(func() error {
		if _, ok := r.v.s.clients[client.ID]; !ok {
			return &domain.NotFoundError{Entity: "client", ID: client.ID}
		}
		r.v.s.clients[client.ID] = client
		return nil
	})
}

type memoryHistory struct{ v memoryView }

func (r memoryHistory) Append(ctx context.Context, entry domain.HistoryEntry) error {
	return r.v.write(func() error {
		r.v.s.history = append(r.v.s.history, entry)
		return nil
	})
}

func (r memoryHistory) ListByCharge(ctx context.Context, chargeID string) ([]domain.HistoryEntry, error) {
	return r.List(ctx, domain.HistoryFilter{ChargeID: chargeID})
}

func (r memoryHistory) List(ctx context.Context, filter domain.HistoryFilter) ([]domain.HistoryEntry, error) {
	var out []domain.HistoryEntry
	r.v.read(func() { out = filter.Apply(r.v.s.history) })
	return out, nil
}
