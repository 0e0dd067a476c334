/**
 * @description
 * Overdue age and the escalation policy that decides when a client gets blocked.
 */
package domain

import "time"

// DefaultBlockThresholdDays is the overdue age after which a client is blocked.
const DefaultBlockThresholdDays = 15

// DaysOverdue returns the whole days between the charge's due date and today's
// date in loc. It is zero for paid charges and for charges not yet due.
func DaysOverdue(c Charge, now time.Time, loc *time.Location) int {
	if c.Status == ChargeStatusPaid || c.DueDate.IsZero() {
		return 0
	}
	if loc == nil {
		loc = time.UTC
	}
	today := CivilDate(now.In(loc))
	days := int(today.Sub(CivilDate(c.DueDate)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// EscalationPolicy decides whether a charge forces its client into Blocked.
type EscalationPolicy struct {
	ThresholdDays int
	Location      *time.Location
}

// NewEscalationPolicy returns a policy with the default threshold.
func NewEscalationPolicy(loc *time.Location) EscalationPolicy {
	return EscalationPolicy{ThresholdDays: DefaultBlockThresholdDays, Location: loc}
}

// DaysOverdue evaluates the overdue age in the policy's timezone.
func (p EscalationPolicy) DaysOverdue(c Charge, now time.Time) int {
	return DaysOverdue(c, now, p.Location)
}

// ShouldBlock is true when the charge is neither paid nor blocked and is more
// than ThresholdDays overdue.
func (p EscalationPolicy) ShouldBlock(c Charge, now time.Time) bool {
	if c.Status == ChargeStatusPaid || c.Status == ChargeStatusBlocked {
		return false
	}
	threshold := p.ThresholdDays
	if threshold <= 0 {
		threshold = DefaultBlockThresholdDays
	}
	return p.DaysOverdue(c, now) > threshold
}
