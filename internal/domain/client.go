/**
 * @description
 * Client (debtor) model and its blocking lifecycle.
 */
package domain

import (
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ClientStatus is the delinquency state of a client.
type ClientStatus string

const (
	ClientStatusActive   ClientStatus = "active"
	ClientStatusBlocked  ClientStatus = "blocked"
	ClientStatusReleased ClientStatus = "released"
)

// Client is the debtor that owns charges.
type Client struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Email       string       `json:"email"`
	Phone       string       `json:"phone,omitempty"`
	Status      ClientStatus `json:"status"`
	BlockedAt   *time.Time   `json:"blocked_at,omitempty"`
	BlockReason string       `json:"block_reason,omitempty"`
	BlockedBy   string       `json:"blocked_by,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`

	// TotalOwed is derived from the client's charges and never stored.
	TotalOwed decimal.Decimal `json:"total_owed"`
}

// ValidateClient checks the registration fields of a client.
func ValidateClient(name, email string) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	if strings.TrimSpace(email) == "" {
		return &ValidationError{Field: "email", Message: "is required"}
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return &ValidationError{Field: "email", Message: "is not a valid address"}
	}
	return nil
}

func (c *Client) invalid(action string) error {
	return &InvalidTransitionError{Entity: "client", ID: c.ID, From: string(c.Status), Action: action}
}

// Block stamps the block metadata. A client can be blocked from Active or Released.
func (c *Client) Block(reason, actor string, now time.Time) error {
	if c.Status == ClientStatusBlocked {
		return c.invalid("block")
	}
	blockedAt := now
	c.Status = ClientStatusBlocked
	c.BlockedAt = &blockedAt
	c.BlockReason = reason
	c.BlockedBy = actor
	return nil
}

// Release lifts a block and clears its metadata.
func (c *Client) Release() error {
	if c.Status != ClientStatusBlocked {
		return c.invalid("release")
	}
	c.Status = ClientStatusReleased
	c.BlockedAt = nil
	c.BlockReason = ""
	c.BlockedBy = ""
	return nil
}

// TotalOwed sums the amounts of the outstanding charges that belong to clientID.
func TotalOwed(clientID string, charges []Charge) decimal.Decimal {
	total := decimal.Zero
	for _, c := range charges {
		if c.ClientID == clientID && c.IsOutstanding() {
			total = total.Add(c.Amount)
		}
	}
	return total
}
