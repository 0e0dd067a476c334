package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDueDate(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    time.Time
		wantErr bool
	}{
		{name: "civil date", raw: "2026-03-15", want: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)},
		{name: "rfc3339 drops clock", raw: "2026-03-15T18:30:00-03:00", want: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)},
		{name: "padded", raw: "  2026-01-02 ", want: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)},
		{name: "missing", raw: "", wantErr: true},
		{name: "garbage", raw: "15/03/2026", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDueDate(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrValidation))
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "expected %s, got %s", tt.want, got)
		})
	}
}

func TestValidateAmount(t *testing.T) {
	assert.NoError(t, ValidateAmount(decimal.RequireFromString("0.01")))
	assert.ErrorIs(t, ValidateAmount(decimal.Zero), ErrValidation)
	assert.ErrorIs(t, ValidateAmount(decimal.RequireFromString("-10")), ErrValidation)

	assert.NoError(t, ValidateAmount(decimal.RequireFromString("10.500")))
	assert.NoError(t, ValidateAmount(decimal.RequireFromString("999999999999.99")))
	assert.ErrorIs(t, ValidateAmount(decimal.RequireFromString("0.001")), ErrValidation)
	assert.ErrorIs(t, ValidateAmount(decimal.RequireFromString("10.005")), ErrValidation)
	assert.ErrorIs(t, ValidateAmount(decimal.RequireFromString("1000000000000")), ErrValidation)
}

func TestChargeTransitions(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		from    ChargeStatus
		apply   func(c *Charge) error
		want    ChargeStatus
		wantErr bool
	}{
		{name: "send pending", from: ChargeStatusPending, apply: func(c *Charge) error { return c.MarkSent(now) }, want: ChargeStatusSent},
		{name: "send sent", from: ChargeStatusSent, apply: func(c *Charge) error { return c.MarkSent(now) }, wantErr: true},
		{name: "send paid", from: ChargeStatusPaid, apply: func(c *Charge) error { return c.MarkSent(now) }, wantErr: true},
		{name: "send blocked", from: ChargeStatusBlocked, apply: func(c *Charge) error { return c.MarkSent(now) }, wantErr: true},
		{name: "resend sent", from: ChargeStatusSent, apply: func(c *Charge) error { return c.MarkResent(now) }, want: ChargeStatusSent},
		{name: "resend overdue", from: ChargeStatusOverdue, apply: func(c *Charge) error { return c.MarkResent(now) }, want: ChargeStatusOverdue},
		{name: "resend pending", from: ChargeStatusPending, apply: func(c *Charge) error { return c.MarkResent(now) }, wantErr: true},
		{name: "resend paid", from: ChargeStatusPaid, apply: func(c *Charge) error { return c.MarkResent(now) }, wantErr: true},
		{name: "resend blocked", from: ChargeStatusBlocked, apply: func(c *Charge) error { return c.MarkResent(now) }, wantErr: true},
		{name: "pay sent", from: ChargeStatusSent, apply: func(c *Charge) error { return c.MarkPaid() }, want: ChargeStatusPaid},
		{name: "pay blocked", from: ChargeStatusBlocked, apply: func(c *Charge) error { return c.MarkPaid() }, want: ChargeStatusPaid},
		{name: "pay paid", from: ChargeStatusPaid, apply: func(c *Charge) error { return c.MarkPaid() }, wantErr: true},
		{name: "overdue sent", from: ChargeStatusSent, apply: func(c *Charge) error { return c.MarkOverdue() }, want: ChargeStatusOverdue},
		{name: "overdue pending", from: ChargeStatusPending, apply: func(c *Charge) error { return c.MarkOverdue() }, wantErr: true},
		{name: "block overdue", from: ChargeStatusOverdue, apply: func(c *Charge) error { return c.Block() }, want: ChargeStatusBlocked},
		{name: "block paid", from: ChargeStatusPaid, apply: func(c *Charge) error { return c.Block() }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Charge{ID: "c1", Status: tt.from}
			err := tt.apply(&c)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, tt.from, c.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Status)
		})
	}
}

func TestRecordAttemptKeepsLastSentAtMonotonic(t *testing.T) {
	first := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	c := Charge{ID: "c1", Status: ChargeStatusPending}

	require.NoError(t, c.MarkSent(first))
	require.NoError(t, c.MarkResent(first.Add(-time.Minute)))

	assert.Equal(t, 2, c.SendAttempts)
	require.NotNil(t, c.LastSentAt)
	assert.True(t, c.LastSentAt.Equal(first))
}

func TestReopen(t *testing.T) {
	never := Charge{ID: "c1", Status: ChargeStatusBlocked}
	assert.ErrorIs(t, never.Reopen(ChargeStatusSent), ErrValidation)
	require.NoError(t, never.Reopen(ChargeStatusPending))
	assert.Equal(t, ChargeStatusPending, never.Status)

	sent := Charge{ID: "c2", Status: ChargeStatusBlocked, SendAttempts: 2}
	require.NoError(t, sent.Reopen(ChargeStatusOverdue))
	assert.Equal(t, ChargeStatusOverdue, sent.Status)

	paid := Charge{ID: "c3", Status: ChargeStatusBlocked, SendAttempts: 1}
	assert.ErrorIs(t, paid.Reopen(ChargeStatusPaid), ErrValidation)

	notBlocked := Charge{ID: "c4", Status: ChargeStatusSent, SendAttempts: 1}
	assert.ErrorIs(t, notBlocked.Reopen(ChargeStatusPending), ErrInvalidTransition)
}

func TestClientBlockRelease(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	c := Client{ID: "cl1", Status: ClientStatusActive}

	assert.ErrorIs(t, c.Release(), ErrInvalidTransition)

	require.NoError(t, c.Block("25 days overdue", "ana", now))
	assert.Equal(t, ClientStatusBlocked, c.Status)
	assert.Equal(t, "ana", c.BlockedBy)
	assert.ErrorIs(t, c.Block("again", "ana", now), ErrInvalidTransition)

	require.NoError(t, c.Release())
	assert.Equal(t, ClientStatusReleased, c.Status)
	assert.Nil(t, c.BlockedAt)
	assert.Empty(t, c.BlockReason)
	assert.Empty(t, c.BlockedBy)

	require.NoError(t, c.Block("relapsed", "system", now))
}

func TestValidateClient(t *testing.T) {
	assert.NoError(t, ValidateClient("Maria Souza", "maria@example.com"))
	assert.ErrorIs(t, ValidateClient(" ", "maria@example.com"), ErrValidation)
	assert.ErrorIs(t, ValidateClient("Maria", ""), ErrValidation)
	assert.ErrorIs(t, ValidateClient("Maria", "not-an-email"), ErrValidation)
}
