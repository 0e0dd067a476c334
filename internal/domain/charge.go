/**
 * @description
 * Charge model and its status state machine.
 */
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the civil date format used for due dates.
const DateLayout = "2006-01-02"

// ChargeStatus is the lifecycle state of a charge.
type ChargeStatus string

const (
	ChargeStatusPending ChargeStatus = "pending"
	ChargeStatusSent    ChargeStatus = "sent"
	ChargeStatusPaid    ChargeStatus = "paid"
	ChargeStatusOverdue ChargeStatus = "overdue"
	ChargeStatusBlocked ChargeStatus = "blocked"
)

// ChargeStatuses lists every status in lifecycle order.
var ChargeStatuses = []ChargeStatus{
	ChargeStatusPending,
	ChargeStatusSent,
	ChargeStatusOverdue,
	ChargeStatusPaid,
	ChargeStatusBlocked,
}

// ParseChargeStatus converts user input into a ChargeStatus.
func ParseChargeStatus(raw string) (ChargeStatus, error) {
	status := ChargeStatus(strings.ToLower(strings.TrimSpace(raw)))
	for _, s := range ChargeStatuses {
		if s == status {
			return status, nil
		}
	}
	return "", &ValidationError{Field: "status", Message: fmt.Sprintf("unknown charge status %q", raw)}
}

// Charge is a billable amount owed by one client.
type Charge struct {
	ID                 string          `json:"id"`
	ClientID           string          `json:"client_id"`
	Amount             decimal.Decimal `json:"amount"`
	DueDate            time.Time       `json:"due_date"`
	CreatedAt          time.Time       `json:"created_at"`
	LastSentAt         *time.Time      `json:"last_sent_at,omitempty"`
	Status             ChargeStatus    `json:"status"`
	PaymentDocumentRef string          `json:"payment_document_ref"`
	PaymentLinkRef     string          `json:"payment_link_ref"`
	SendAttempts       int             `json:"send_attempts"`
	Notes              string          `json:"notes,omitempty"`
}

// ParseDueDate accepts a civil date (YYYY-MM-DD) or an RFC3339 timestamp and
// returns the date at midnight UTC.
func ParseDueDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, &ValidationError{Field: "due_date", Message: "is required"}
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		ts, tsErr := time.Parse(time.RFC3339, raw)
		if tsErr != nil {
			return time.Time{}, &ValidationError{Field: "due_date", Message: fmt.Sprintf("cannot parse %q", raw)}
		}
		t = ts
	}
	return CivilDate(t), nil
}

// CivilDate drops the clock part of t, keeping its calendar date.
func CivilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// maxAmount is the first value that no longer fits NUMERIC(14, 2).
var maxAmount = decimal.New(1, 12)

// ValidateAmount enforces a positive amount in whole cents below maxAmount.
func ValidateAmount(amount decimal.Decimal) error {
	switch {
	case !amount.IsPositive():
		return &ValidationError{Field: "amount", Message: "must be greater than zero"}
	case !amount.Equal(amount.Truncate(2)):
		return &ValidationError{Field: "amount", Message: "must not have more than 2 decimal places"}
	case amount.GreaterThanOrEqual(maxAmount):
		return &ValidationError{Field: "amount", Message: "must be less than " + maxAmount.String()}
	}
	return nil
}

// IsOutstanding reports whether the charge still counts towards what the client owes.
func (c Charge) IsOutstanding() bool {
	return c.Status != ChargeStatusPaid
}

func (c *Charge) invalid(action string) error {
	return &InvalidTransitionError{Entity: "charge", ID: c.ID, From: string(c.Status), Action: action}
}

// MarkSent records the first dispatch. Only pending charges can be sent; later
// dispatches go through MarkResent.
func (c *Charge) MarkSent(now time.Time) error {
	if c.Status != ChargeStatusPending {
		return c.invalid("send")
	}
	c.Status = ChargeStatusSent
	c.recordAttempt(now)
	return nil
}

// MarkResent records another dispatch of a sent or overdue charge.
func (c *Charge) MarkResent(now time.Time) error {
	if c.Status != ChargeStatusSent && c.Status != ChargeStatusOverdue {
		return c.invalid("resend")
	}
	c.recordAttempt(now)
	return nil
}

func (c *Charge) recordAttempt(now time.Time) {
	c.SendAttempts++
	if c.LastSentAt != nil && now.Before(*c.LastSentAt) {
		now = *c.LastSentAt
	}
	sentAt := now
	c.LastSentAt = &sentAt
}

// MarkPaid settles the charge. Paid is terminal.
func (c *Charge) MarkPaid() error {
	if c.Status == ChargeStatusPaid {
		return c.invalid("pay")
	}
	c.Status = ChargeStatusPaid
	return nil
}

// MarkOverdue flags a sent charge as overdue.
func (c *Charge) MarkOverdue() error {
	if c.Status != ChargeStatusSent {
		return c.invalid("mark overdue")
	}
	c.Status = ChargeStatusOverdue
	return nil
}

// Block forces the charge into Blocked as part of a client block cascade.
func (c *Charge) Block() error {
	if c.Status == ChargeStatusPaid {
		return c.invalid("block")
	}
	c.Status = ChargeStatusBlocked
	return nil
}

// Reopen moves a blocked charge back into the collection flow.
func (c *Charge) Reopen(target ChargeStatus) error {
	if c.Status != ChargeStatusBlocked {
		return c.invalid("reopen")
	}
	switch target {
	case ChargeStatusPending:
	case ChargeStatusSent, ChargeStatusOverdue:
		if c.SendAttempts == 0 {
			return &ValidationError{Field: "status", Message: fmt.Sprintf("charge was never sent and cannot be reopened as %s", target)}
		}
	default:
		return &ValidationError{Field: "status", Message: fmt.Sprintf("cannot reopen a charge as %s", target)}
	}
	c.Status = target
	return nil
}
