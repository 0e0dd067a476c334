/**
 * @description
 * Audit history entries and their query filter.
 */
package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// HistoryAction names the fact recorded by a history entry.
type HistoryAction string

const (
	ActionCreated   HistoryAction = "created"
	ActionSent      HistoryAction = "sent"
	ActionResent    HistoryAction = "resent"
	ActionPaid      HistoryAction = "paid"
	ActionBlocked   HistoryAction = "blocked"
	ActionReleased  HistoryAction = "released"
	ActionAlertSent HistoryAction = "alert_sent"
	ActionReopened  HistoryAction = "reopened"

	ActionDispatchFailed HistoryAction = "dispatch_failed"
)

// ParseHistoryAction validates a history action name.
func ParseHistoryAction(raw string) (HistoryAction, error) {
	switch a := HistoryAction(strings.ToLower(strings.TrimSpace(raw))); a {
	case "", ActionCreated, ActionSent, ActionResent, ActionPaid, ActionBlocked,
		ActionReleased, ActionAlertSent, ActionReopened, ActionDispatchFailed:
		return a, nil
	default:
		return "", &ValidationError{Field: "action", Message: fmt.Sprintf("unknown history action %q", raw)}
	}
}

// HistoryEntry is one immutable audit fact about a charge.
type HistoryEntry struct {
	ID         string        `json:"id"`
	ChargeID   string        `json:"charge_id"`
	Action     HistoryAction `json:"action"`
	OccurredAt time.Time     `json:"occurred_at"`
	Actor      string        `json:"actor"`
	Details    string        `json:"details"`
}

// NewHistoryEntry builds an entry with a fresh identifier.
func NewHistoryEntry(chargeID string, action HistoryAction, actor, details string, at time.Time) HistoryEntry {
	if actor == "" {
		actor = SystemActor
	}
	return HistoryEntry{
		ID:         uuid.NewString(),
		ChargeID:   chargeID,
		Action:     action,
		OccurredAt: at,
		Actor:      actor,
		Details:    details,
	}
}

// HistoryFilter narrows audit queries. Zero fields match everything.
// Limit keeps only the most recent entries.
type HistoryFilter struct {
	ChargeID string
	Action   HistoryAction
	Actor    string
	From     time.Time
	To       time.Time
	Limit    int
}

// Match reports whether e satisfies every populated field of f.
func (f HistoryFilter) Match(e HistoryEntry) bool {
	if f.ChargeID != "" && e.ChargeID != f.ChargeID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.Actor != "" && e.Actor != f.Actor {
		return false
	}
	if !f.From.IsZero() && e.OccurredAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.OccurredAt.After(f.To) {
		return false
	}
	return true
}

// Apply filters entries, which must be in append order, and returns them newest first.
func (f HistoryFilter) Apply(entries []HistoryEntry) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		if f.Match(entries[i]) {
			out = append(out, entries[i])
		}
	}
	SortHistory(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// SortHistory orders entries by OccurredAt descending, keeping the relative order of ties.
func SortHistory(entries []HistoryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].OccurredAt.After(entries[j].OccurredAt)
	})
}
