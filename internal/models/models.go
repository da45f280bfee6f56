package models

import (
	"fmt"
	"strings"
)

// ColumnRef identifies a column either by header name or by position.
// When Index is set it takes precedence over Name; IndexBase declares
// whether positions are counted from 0 or 1.
type ColumnRef struct {
	Name      string `json:"name,omitempty"`
	Index     *int   `json:"index,omitempty"`
	IndexBase int    `json:"index_base,omitempty"`
}

// IsZero reports whether the reference is entirely unset
func (r ColumnRef) IsZero() bool {
	return r.Name == "" && r.Index == nil
}

// String returns a string representation of the ColumnRef
func (r ColumnRef) String() string {
	if r.Index != nil {
		return fmt.Sprintf("index %d (base %d)", *r.Index, r.IndexBase)
	}
	return fmt.Sprintf("name %q", r.Name)
}

// ColumnSpec describes which columns of a file hold the identifier,
// amount, and status values, and which extra columns to carry through
// into reports unchanged. Status may be left unset.
type ColumnSpec struct {
	ID       ColumnRef `json:"transaction_id"`
	Amount   ColumnRef `json:"amount"`
	Status   ColumnRef `json:"status"`
	KeepCols []string  `json:"keep_columns,omitempty"`
}

// Validate performs basic validation on the ColumnSpec
func (cs *ColumnSpec) Validate() error {
	if cs.ID.IsZero() {
		return fmt.Errorf("transaction id column reference is required")
	}
	if cs.Amount.IsZero() {
		return fmt.Errorf("amount column reference is required")
	}
	for _, k := range cs.KeepCols {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("keep column names cannot be empty")
		}
	}
	return nil
}

// CanonicalRecord is one input row after normalization. Keep holds the
// raw values of the requested keep columns, aligned with the owning
// RecordSet's KeepNames.
type CanonicalRecord struct {
	ID         string
	AmountRaw  string
	Amount     ScaledAmount
	StatusRaw  string
	StatusNorm string
	RowNumber  int
	Keep       []string
}

// String returns a string representation of the CanonicalRecord
func (r *CanonicalRecord) String() string {
	return fmt.Sprintf("Record{ID: %s, Amount: %s, Status: %s, Row: %d}",
		r.ID, r.Amount.String(), r.StatusNorm, r.RowNumber)
}

// IngestStats counts rows seen and row-level defects during ingestion
type IngestStats struct {
	RowsTotal     int `json:"rows_total"`
	RowsBadID     int `json:"rows_bad_id"`
	RowsBadAmount int `json:"rows_bad_amount"`
}

// RecordSet holds all canonical records ingested from one file.
// It is immutable once ingestion completes.
type RecordSet struct {
	Name      string
	Path      string
	Header    []string
	KeepNames []string
	Records   []*CanonicalRecord
	Stats     IngestStats
}

// Len returns the number of records in the set
func (rs *RecordSet) Len() int {
	return len(rs.Records)
}
