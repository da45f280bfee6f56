package matcher

import (
	"sort"

	"ledger-reconciliation-service/internal/models"
)

// StatusTotal aggregates one normalized status within a record set.
// Sum is absent when no row in the group carried a parseable amount;
// rows with absent amounts count toward Count but never toward Sum.
type StatusTotal struct {
	Status string
	Count  int
	Sum    models.ScaledAmount
}

// StatusTotals groups the unique partition of a set by normalized
// status and returns per-status counts and amount sums, ordered by
// status. The absent status groups under the empty string.
func StatusTotals(idx *RecordIndex) []StatusTotal {
	groups := make(map[string]*StatusTotal)
	for _, rec := range idx.Unique() {
		total, ok := groups[rec.StatusNorm]
		if !ok {
			total = &StatusTotal{Status: rec.StatusNorm}
			groups[rec.StatusNorm] = total
		}
		total.Count++
		if rec.Amount.Valid {
			total.Sum = models.NewScaledAmount(total.Sum.Units + rec.Amount.Units)
		}
	}

	totals := make([]StatusTotal, 0, len(groups))
	for _, t := range groups {
		totals = append(totals, *t)
	}
	sort.Slice(totals, func(i, j int) bool {
		return totals[i].Status < totals[j].Status
	})
	return totals
}
