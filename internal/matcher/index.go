// Package matcher implements the identifier-keyed reconciliation
// algorithm: duplicate detection, set differences between record sets,
// pair classification, and per-status totals.
package matcher

import (
	"sort"

	"ledger-reconciliation-service/internal/models"
)

// RecordIndex groups one record set's rows by identifier and splits
// them into the unique and duplicated partitions. Identifiers carrying
// more than one row are excluded from join and missing comparisons and
// reported only as duplicates.
type RecordIndex struct {
	set    *models.RecordSet
	byID   map[string][]*models.CanonicalRecord
	unique map[string]*models.CanonicalRecord
}

// NewRecordIndex builds the index in one pass over the set
func NewRecordIndex(set *models.RecordSet) *RecordIndex {
	idx := &RecordIndex{
		set:  set,
		byID: make(map[string][]*models.CanonicalRecord, len(set.Records)),
	}
	for _, r := range set.Records {
		idx.byID[r.ID] = append(idx.byID[r.ID], r)
	}

	idx.unique = make(map[string]*models.CanonicalRecord, len(idx.byID))
	for id, rows := range idx.byID {
		if len(rows) == 1 {
			idx.unique[id] = rows[0]
		}
	}
	return idx
}

// Set returns the indexed record set
func (ri *RecordIndex) Set() *models.RecordSet {
	return ri.set
}

// Unique returns the records whose identifier occurs exactly once,
// keyed by identifier
func (ri *RecordIndex) Unique() map[string]*models.CanonicalRecord {
	return ri.unique
}

// IsDuplicate reports whether id occurs more than once in the set
func (ri *RecordIndex) IsDuplicate(id string) bool {
	return len(ri.byID[id]) > 1
}

// DuplicateRows returns every row belonging to a duplicated
// identifier, ordered by identifier then original row number
func (ri *RecordIndex) DuplicateRows() []*models.CanonicalRecord {
	var rows []*models.CanonicalRecord
	for _, group := range ri.byID {
		if len(group) > 1 {
			rows = append(rows, group...)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ID != rows[j].ID {
			return rows[i].ID < rows[j].ID
		}
		return rows[i].RowNumber < rows[j].RowNumber
	})
	return rows
}
