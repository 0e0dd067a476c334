/**
 * @description
 * Aggregate financial statistics derived from the charge and client collections.
 */
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Statistics is recomputed on demand and never persisted.
type Statistics struct {
	TotalOutstanding   decimal.Decimal      `json:"total_outstanding"`
	TotalOverdue       decimal.Decimal      `json:"total_overdue"`
	TotalCollected     decimal.Decimal      `json:"total_collected"`
	BlockedClientCount int                  `json:"blocked_client_count"`
	ChargesEverSent    int                  `json:"charges_ever_sent"`
	AverageTicket      decimal.Decimal      `json:"average_ticket"`
	ChargeCount        int                  `json:"charge_count"`
	ClientCount        int                  `json:"client_count"`
	CountByStatus      map[ChargeStatus]int `json:"count_by_status"`
	ComputedAt         time.Time            `json:"computed_at"`
}

// ComputeStatistics aggregates one consistent snapshot of charges and clients.
func ComputeStatistics(charges []Charge, clients []Client, now time.Time) Statistics {
	stats := Statistics{
		TotalOutstanding: decimal.Zero,
		TotalOverdue:     decimal.Zero,
		TotalCollected:   decimal.Zero,
		AverageTicket:    decimal.Zero,
		ChargeCount:      len(charges),
		ClientCount:      len(clients),
		CountByStatus:    make(map[ChargeStatus]int, len(ChargeStatuses)),
		ComputedAt:       now,
	}
	for _, s := range ChargeStatuses {
		stats.CountByStatus[s] = 0
	}

	sum := decimal.Zero
	for _, c := range charges {
		sum = sum.Add(c.Amount)
		stats.CountByStatus[c.Status]++
		if c.SendAttempts > 0 {
			stats.ChargesEverSent++
		}
		switch c.Status {
		case ChargeStatusPending, ChargeStatusSent:
			stats.TotalOutstanding = stats.TotalOutstanding.Add(c.Amount)
		case ChargeStatusOverdue:
			stats.TotalOutstanding = stats.TotalOutstanding.Add(c.Amount)
			stats.TotalOverdue = stats.TotalOverdue.Add(c.Amount)
		case ChargeStatusPaid:
			stats.TotalCollected = stats.TotalCollected.Add(c.Amount)
		}
	}

	for _, c := range clients {
		if c.Status == ClientStatusBlocked {
			stats.BlockedClientCount++
		}
	}

	if len(charges) > 0 {
		stats.AverageTicket = sum.Div(decimal.NewFromInt(int64(len(charges)))).Round(2)
	}
	return stats
}
