package domain

import (
	"sort"
	"time"
)

// ChargeFilter selects charges. Every populated field must match; an empty
// filter matches every charge. CreatedFrom and CreatedTo are inclusive.
type ChargeFilter struct {
	Status         ChargeStatus
	ClientID       string
	MinDaysOverdue int
	CreatedFrom    time.Time
	CreatedTo      time.Time
}

type chargePredicate func(Charge) bool

func (f ChargeFilter) predicates(now time.Time, loc *time.Location) []chargePredicate {
	var preds []chargePredicate
	if f.Status != "" {
		preds = append(preds, func(c Charge) bool { return c.Status == f.Status })
	}
	if f.ClientID != "" {
		preds = append(preds, func(c Charge) bool { return c.ClientID == f.ClientID })
	}
	if f.MinDaysOverdue > 0 {
		preds = append(preds, func(c Charge) bool { return DaysOverdue(c, now, loc) >= f.MinDaysOverdue })
	}
	if !f.CreatedFrom.IsZero() {
		preds = append(preds, func(c Charge) bool { return !c.CreatedAt.Before(f.CreatedFrom) })
	}
	if !f.CreatedTo.IsZero() {
		preds = append(preds, func(c Charge) bool { return !c.CreatedAt.After(f.CreatedTo) })
	}
	return preds
}

// Match reports whether c satisfies the filter at instant now.
func (f ChargeFilter) Match(c Charge, now time.Time, loc *time.Location) bool {
	for _, pred := range f.predicates(now, loc) {
		if !pred(c) {
			return false
		}
	}
	return true
}

// FilterCharges returns the matching charges, newest first.
func FilterCharges(charges []Charge, f ChargeFilter, now time.Time, loc *time.Location) []Charge {
	preds := f.predicates(now, loc)
	out := make([]Charge, 0, len(charges))
next:
	for _, c := range charges {
		for _, pred := range preds {
			if !pred(c) {
				continue next
			}
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
