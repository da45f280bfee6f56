// Package reporter turns reconciliation results into logical row
// tables and persists them as delimited files plus a JSON run summary.
// Absent values render as empty strings in every table.
package reporter

import (
	"strconv"

	"ledger-reconciliation-service/internal/matcher"
	"ledger-reconciliation-service/internal/models"
)

// Table is a named report with a header and scalar rows
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// recordHeader is the fixed prefix of every per-record table
var recordHeader = []string{"txid", "amount_raw", "amount_scaled", "status_raw", "status_norm", "rownum"}

// RecordTable builds a per-record table. keepNames must be the keep
// columns of the set the records were ingested from; each record's
// keep values are appended after the fixed columns.
func RecordTable(name string, records []*models.CanonicalRecord, keepNames []string) Table {
	header := append(append([]string(nil), recordHeader...), keepNames...)

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		row := make([]string, 0, len(header))
		row = append(row,
			r.ID,
			r.AmountRaw,
			r.Amount.String(),
			r.StatusRaw,
			r.StatusNorm,
			strconv.Itoa(r.RowNumber),
		)
		row = append(row, r.Keep...)
		rows = append(rows, row)
	}
	return Table{Name: name, Header: header, Rows: rows}
}

// MismatchTable builds the classified pair table. Keep columns appear
// as base__<name>, other__<name> pairs after the fixed columns.
func MismatchTable(pair *matcher.PairResult) Table {
	header := []string{
		"txid", "mismatch_type",
		"base_amount_raw", "base_amount_scaled",
		"other_amount_raw", "other_amount_scaled",
		"amount_diff_scaled",
		"base_status_raw", "base_status_norm",
		"other_status_raw", "other_status_norm",
		"base_rownum", "other_rownum",
	}
	for _, k := range pair.KeepNames {
		header = append(header, "base__"+k, "other__"+k)
	}

	rows := make([][]string, 0, len(pair.Mismatches))
	for _, mm := range pair.Mismatches {
		row := make([]string, 0, len(header))
		row = append(row,
			mm.ID,
			string(mm.Type),
			mm.BaseAmountRaw,
			mm.BaseAmount.String(),
			mm.OtherAmountRaw,
			mm.OtherAmount.String(),
			mm.AmountDiff.String(),
			mm.BaseStatusRaw,
			mm.BaseStatusNorm,
			mm.OtherStatusRaw,
			mm.OtherStatusNorm,
			strconv.Itoa(mm.BaseRow),
			strconv.Itoa(mm.OtherRow),
		)
		for i := range pair.KeepNames {
			row = append(row, mm.BaseKeep[i], mm.OtherKeep[i])
		}
		rows = append(rows, row)
	}
	return Table{Name: "mismatches", Header: header, Rows: rows}
}

// StatusTotalsTable builds a per-file status roll-up table
func StatusTotalsTable(name string, totals []matcher.StatusTotal) Table {
	rows := make([][]string, 0, len(totals))
	for _, t := range totals {
		rows = append(rows, []string{
			t.Status,
			strconv.Itoa(t.Count),
			t.Sum.String(),
		})
	}
	return Table{
		Name:   name,
		Header: []string{"status_norm", "tx_count", "amount_scaled_sum"},
		Rows:   rows,
	}
}

// AssemblePair builds the five report tables for one matched pair.
// Missing rows carry the columns of the side they were found in, so
// missing_in_base lists other-side records and vice versa.
func AssemblePair(pair *matcher.PairResult, base, other *models.RecordSet) []Table {
	return []Table{
		RecordTable("duplicates_base", pair.DuplicatesBase, base.KeepNames),
		RecordTable("duplicates_other", pair.DuplicatesOther, other.KeepNames),
		RecordTable("missing_in_base", pair.MissingInBase, other.KeepNames),
		RecordTable("missing_in_other", pair.MissingInOther, base.KeepNames),
		MismatchTable(pair),
	}
}
