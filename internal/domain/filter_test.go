package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCharges(now time.Time) []Charge {
	day := 24 * time.Hour
	return []Charge{
		{ID: "a", ClientID: "c1", Status: ChargeStatusSent, Amount: decimal.NewFromInt(100), DueDate: CivilDate(now).AddDate(0, 0, -20), CreatedAt: now.Add(-30 * day), SendAttempts: 1},
		{ID: "b", ClientID: "c1", Status: ChargeStatusPaid, Amount: decimal.NewFromInt(200), DueDate: CivilDate(now).AddDate(0, 0, -40), CreatedAt: now.Add(-50 * day), SendAttempts: 2},
		{ID: "c", ClientID: "c2", Status: ChargeStatusPending, Amount: decimal.RequireFromString("50.50"), DueDate: CivilDate(now).AddDate(0, 0, 5), CreatedAt: now.Add(-1 * day)},
		{ID: "d", ClientID: "c2", Status: ChargeStatusOverdue, Amount: decimal.NewFromInt(300), DueDate: CivilDate(now).AddDate(0, 0, -3), CreatedAt: now.Add(-10 * day), SendAttempts: 3},
	}
}

func ids(charges []Charge) []string {
	out := make([]string, 0, len(charges))
	for _, c := range charges {
		out = append(out, c.ID)
	}
	return out
}

func TestFilterCharges(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	charges := sampleCharges(now)

	tests := []struct {
		name   string
		filter ChargeFilter
		want   []string
	}{
		{name: "empty filter matches all newest first", filter: ChargeFilter{}, want: []string{"c", "d", "a", "b"}},
		{name: "status", filter: ChargeFilter{Status: ChargeStatusSent}, want: []string{"a"}},
		{name: "client", filter: ChargeFilter{ClientID: "c2"}, want: []string{"c", "d"}},
		{name: "min days overdue", filter: ChargeFilter{MinDaysOverdue: 3}, want: []string{"d", "a"}},
		{name: "created window", filter: ChargeFilter{CreatedFrom: now.Add(-31 * 24 * time.Hour), CreatedTo: now.Add(-5 * 24 * time.Hour)}, want: []string{"d", "a"}},
		{name: "anded", filter: ChargeFilter{ClientID: "c1", MinDaysOverdue: 1}, want: []string{"a"}},
		{name: "no match", filter: ChargeFilter{ClientID: "c3"}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterCharges(charges, tt.filter, now, time.UTC)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestComputeStatistics(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	charges := sampleCharges(now)
	clients := []Client{
		{ID: "c1", Status: ClientStatusActive},
		{ID: "c2", Status: ClientStatusBlocked},
	}

	stats := ComputeStatistics(charges, clients, now)

	assert.True(t, decimal.RequireFromString("450.50").Equal(stats.TotalOutstanding), stats.TotalOutstanding.String())
	assert.True(t, decimal.NewFromInt(300).Equal(stats.TotalOverdue))
	assert.True(t, decimal.NewFromInt(200).Equal(stats.TotalCollected))
	assert.Equal(t, 1, stats.BlockedClientCount)
	assert.Equal(t, 3, stats.ChargesEverSent)
	assert.True(t, decimal.RequireFromString("162.63").Equal(stats.AverageTicket), stats.AverageTicket.String())
	assert.Equal(t, 4, stats.ChargeCount)
	assert.Equal(t, 1, stats.CountByStatus[ChargeStatusPending])
	assert.Equal(t, 0, stats.CountByStatus[ChargeStatusBlocked])
}

func TestComputeStatisticsEmpty(t *testing.T) {
	stats := ComputeStatistics(nil, nil, time.Now())
	require.True(t, stats.AverageTicket.IsZero())
	assert.True(t, stats.TotalOutstanding.IsZero())
	assert.Equal(t, 0, stats.ChargeCount)
}

func TestTotalOwed(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	charges := sampleCharges(now)

	assert.True(t, decimal.NewFromInt(100).Equal(TotalOwed("c1", charges)))
	assert.True(t, decimal.RequireFromString("350.50").Equal(TotalOwed("c2", charges)))
	assert.True(t, TotalOwed("nobody", charges).IsZero())
}

func TestHistoryFilterApply(t *testing.T) {
	base := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	entries := []HistoryEntry{
		{ID: "1", ChargeID: "a", Action: ActionCreated, OccurredAt: base, Actor: "ana"},
		{ID: "2", ChargeID: "a", Action: ActionSent, OccurredAt: base.Add(time.Minute), Actor: "ana"},
		{ID: "3", ChargeID: "b", Action: ActionBlocked, OccurredAt: base.Add(2 * time.Minute), Actor: "system"},
		{ID: "4", ChargeID: "c", Action: ActionBlocked, OccurredAt: base.Add(2 * time.Minute), Actor: "system"},
	}

	all := HistoryFilter{}.Apply(entries)
	assert.Equal(t, []string{"4", "3", "2", "1"}, historyIDs(all))

	byCharge := HistoryFilter{ChargeID: "a"}.Apply(entries)
	assert.Equal(t, []string{"2", "1"}, historyIDs(byCharge))

	blocked := HistoryFilter{Action: ActionBlocked, Limit: 1}.Apply(entries)
	assert.Equal(t, []string{"4"}, historyIDs(blocked))

	window := HistoryFilter{From: base.Add(30 * time.Second), To: base.Add(90 * time.Second)}.Apply(entries)
	assert.Equal(t, []string{"2"}, historyIDs(window))
}

func historyIDs(entries []HistoryEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func TestParseHistoryAction(t *testing.T) {
	got, err := ParseHistoryAction(" Released ")
	require.NoError(t, err)
	assert.Equal(t, ActionReleased, got)

	got, err = ParseHistoryAction("")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = ParseHistoryAction("dispatch_failed")
	require.NoError(t, err)
	assert.Equal(t, ActionDispatchFailed, got)

	_, err = ParseHistoryAction("relesed")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "action", ve.Field)
}
