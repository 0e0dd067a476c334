/**
 * @description
 * PostgreSQL implementation of the collections Store. Every command runs in one
 * transaction; rows are locked with FOR UPDATE so writers to the same charge or
 * client are serialized. Statistics read from a repeatable-read snapshot.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver and pool.
 */
package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/transfa/collections-service/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore handles database operations for collections.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the collections tables when they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

func (s *PostgresStore) Charges() ChargeRepository   { return pgView{q: s.db}.Charges() }
func (s *PostgresStore) Clients() ClientRepository   { return pgView{q: s.db}.Clients() }
func (s *PostgresStore) History() HistoryRepository { return pgView{q: s.db}.History() }

// WithinTx implements Store.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, pgView{q: tx, inTx: true}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Snapshot implements Store.
func (s *PostgresStore) Snapshot(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, pgView{q: tx, readOnly: true}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgView struct {
	q        querier
	inTx     bool
	readOnly bool
}

func (v pgView) Charges() ChargeRepository   { return pgCharges{v} }
func (v pgView) Clients() ClientRepository   { return pgClients{v} }
func (v pgView) History() HistoryRepository { return pgHistory{v} }

// lockClause adds FOR UPDATE when the view is bound to a write transaction.
func (v pgView) lockClause() string {
	if v.inTx {
		return " FOR UPDATE"
	}
	return ""
}

func (v pgView) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if v.readOnly {
		return pgconn.CommandTag{}, ErrReadOnly
	}
	return v.q.Exec(ctx, sql, args...)
}

const chargeColumns = `id, client_id, amount::text, due_date, created_at, last_sent_at, status,
       payment_document_ref, payment_link_ref, send_attempts, notes`

func scanCharge(row pgx.Row) (*domain.Charge, error) {
	var (
		c      domain.Charge
		amount string
		status string
	)
	if err := row.Scan(
		&c.ID,
		&c.ClientID,
		&amount,
		&c.DueDate,
		&c.CreatedAt,
		&c.LastSentAt,
		&status,
		&c.PaymentDocumentRef,
		&c.PaymentLinkRef,
		&c.SendAttempts,
		&c.Notes,
	); err != nil {
		return nil, err
	}
	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("charge %s: bad amount %q: %w", c.ID, amount, err)
	}
	c.Amount = parsed
	c.Status = domain.ChargeStatus(status)
	c.DueDate = domain.CivilDate(c.DueDate)
	return &c, nil
}

func collectCharges(rows pgx.Rows) ([]domain.Charge, error) {
	defer rows.Close()

	var charges []domain.Charge
	for rows.Next() {
		c, err := scanCharge(rows)
		if err != nil {
			return nil, err
		}
		charges = append(charges, *c)
	}
	return charges, rows.Err()
}

type pgCharges struct{ v pgView }

func (r pgCharges) get(ctx context.Context, id string, lock string) (*domain.Charge, error) {
	query := `SELECT ` + chargeColumns + ` FROM collection_charges WHERE id = $1` + lock
	c, err := scanCharge(r.v.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.NotFoundError{Entity: "charge", ID: id}
		}
		return nil, err
	}
	return c, nil
}

// Get retrieves a charge by id.
func (r pgCharges) Get(ctx context.Context, id string) (*domain.Charge, error) {
	return r.get(ctx, id, "")
}

// GetForUpdate retrieves a charge and locks its row for the rest of the transaction.
func (r pgCharges) GetForUpdate(ctx context.Context, id string) (*domain.Charge, error) {
	return r.get(ctx, id, r.v.lockClause())
}

// List retrieves every charge, oldest first.
func (r pgCharges) List(ctx context.Context) ([]domain.Charge, error) {
	rows, err := r.v.q.Query(ctx, `SELECT `+chargeColumns+` FROM collection_charges ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	return collectCharges(rows)
}

func (r pgCharges) listByClient(ctx context.Context, clientID string, lock string) ([]domain.Charge, error) {
	query := `SELECT ` + chargeColumns + ` FROM collection_charges WHERE client_id = $1 ORDER BY created_at ASC, id ASC` + lock
	rows, err := r.v.q.Query(ctx, query, clientID)
	if err != nil {
		return nil, err
	}
	return collectCharges(rows)
}

// ListByClient retrieves the charges owned by a client.
func (r pgCharges) ListByClient(ctx context.Context, clientID string) ([]domain.Charge, error) {
	return r.listByClient(ctx, clientID, "")
}

// ListByClientForUpdate retrieves and locks every charge owned by a client.
func (r pgCharges) ListByClientForUpdate(ctx context.Context, clientID string) ([]domain.Charge, error) {
	return r.listByClient(ctx, clientID, r.v.lockClause())
}

// Insert writes a new charge.
func (r pgCharges) Insert(ctx context.Context, c domain.Charge) error {
	query := `
		INSERT INTO collection_charges (
			id, client_id, amount, due_date, created_at, last_sent_at, status,
			payment_document_ref, payment_link_ref, send_attempts, notes
		)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.v.exec(ctx, query,
		c.ID,
		c.ClientID,
		c.Amount.String(),
		c.DueDate,
		c.CreatedAt,
		c.LastSentAt,
		string(c.Status),
		c.PaymentDocumentRef,
		c.PaymentLinkRef,
		c.SendAttempts,
		c.Notes,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return &domain.NotFoundError{Entity: "client", ID: c.ClientID}
	}
	return err
}

// Update writes the mutable fields of a charge.
func (r pgCharges) Update(ctx context.Context, c domain.Charge) error {
	query := `
		UPDATE collection_charges
		SET status = $2,
		    last_sent_at = $3,
		    send_attempts = $4,
		    notes = $5,
		    payment_document_ref = $6,
		    payment_link_ref = $7,
		    updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.v.exec(ctx, query, c.ID, string(c.Status), c.LastSentAt, c.SendAttempts, c.Notes, c.PaymentDocumentRef, c.PaymentLinkRef)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &domain.NotFoundError{Entity: "charge", ID: c.ID}
	}
	return nil
}

const clientColumns = `id, name, email, phone, status, blocked_at, block_reason, blocked_by, created_at`

func scanClient(row pgx.Row) (*domain.Client, error) {
	var (
		c      domain.Client
		status string
	)
	if err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Email,
		&c.Phone,
		&status,
		&c.BlockedAt,
		&c.BlockReason,
		&c.BlockedBy,
		&c.CreatedAt,
	); err != nil {
		return nil, err
	}
	c.Status = domain.ClientStatus(status)
	c.TotalOwed = decimal.Zero
	return &c, nil
}

type pgClients struct{ v pgView }

func (r pgClients) get(ctx context.Context, id string, lock string) (*domain.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM collection_clients WHERE id = $1` + lock
	c, err := scanClient(r.v.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.NotFoundError{Entity: "client", ID: id}
		}
		return nil, err
	}
	return c, nil
}

// Get retrieves a client by id.
func (r pgClients) Get(ctx context.Context, id string) (*domain.Client, error) {
	return r.get(ctx, id, "")
}

// GetForUpdate retrieves a client and locks its row.
func (r pgClients) GetForUpdate(ctx context.Context, id string) (*domain.Client, error) {
	return r.get(ctx, id, r.v.lockClause())
}

// List retrieves every client, oldest first.
func (r pgClients) List(ctx context.Context) ([]domain.Client, error) {
	rows, err := r.v.q.Query(ctx, `SELECT `+clientColumns+` FROM collection_clients ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []domain.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, *c)
	}
	return clients, rows.Err()
}

// Insert writes a new client.
func (r pgClients) Insert(ctx context.Context, c domain.Client) error {
	query := `
		INSERT INTO collection_clients (id, name, email, phone, status, blocked_at, block_reason, blocked_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.v.exec(ctx, query, c.ID, c.Name, c.Email, c.Phone, string(c.Status), c.BlockedAt, c.BlockReason, c.BlockedBy, c.CreatedAt)
	return err
}

// Update writes the block state of a client.
func (r pgClients) Update(ctx context.Context, c domain.Client) error {
	query := `
		UPDATE collection_clients
		SET status = $2,
		    blocked_at = $3,
		    block_reason = $4,
		    blocked_by = $5,
		    updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.v.exec(ctx, query, c.ID, string(c.Status), c.BlockedAt, c.BlockReason, c.BlockedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &domain.NotFoundError{Entity: "client", ID: c.ID}
	}
	return nil
}

type pgHistory struct{ v pgView }

// Append inserts one audit entry.
func (r pgHistory) Append(ctx context.Context, e domain.HistoryEntry) error {
	query := `
		INSERT INTO collection_history (id, charge_id, action, occurred_at, actor, details)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.v.exec(ctx, query, e.ID, e.ChargeID, string(e.Action), e.OccurredAt, e.Actor, e.Details)
	return err
}

// ListByCharge retrieves the history of one charge, newest first.
func (r pgHistory) ListByCharge(ctx context.Context, chargeID string) ([]domain.HistoryEntry, error) {
	return r.List(ctx, domain.HistoryFilter{ChargeID: chargeID})
}

// List retrieves history entries matching filter, newest first.
func (r pgHistory) List(ctx context.Context, f domain.HistoryFilter) ([]domain.HistoryEntry, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.ChargeID != "" {
		add("charge_id = $%d", f.ChargeID)
	}
	if f.Action != "" {
		add("action = $%d", string(f.Action))
	}
	if f.Actor != "" {
		add("actor = $%d", f.Actor)
	}
	if !f.From.IsZero() {
		add("occurred_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("occurred_at <= $%d", f.To)
	}

	query := `SELECT id, charge_id, action, occurred_at, actor, details FROM collection_history`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY occurred_at DESC, seq DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.v.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var (
			e      domain.HistoryEntry
			action string
		)
		if err := rows.Scan(&e.ID, &e.ChargeID, &action, &e.OccurredAt, &e.Actor, &e.Details); err != nil {
			return nil, err
		}
		e.Action = domain.HistoryAction(action)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Ping checks connectivity; used by the health endpoint.
func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.db.Ping(ctx)
}
