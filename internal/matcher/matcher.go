package matcher

import (
	"sort"

	"ledger-reconciliation-service/internal/models"
	"ledger-reconciliation-service/pkg/errors"
	"ledger-reconciliation-service/pkg/logger"
)

// MismatchType classifies a joined identifier pair
type MismatchType string

const (
	MismatchAmountParseError MismatchType = "amount_parse_error"
	MismatchAmount           MismatchType = "amount_mismatch"
	MismatchStatus           MismatchType = "status_mismatch"
	MismatchAmountAndStatus  MismatchType = "amount_and_status_mismatch"
)

// Config holds matching parameters
type Config struct {
	// AmountTolerance is the maximum allowed absolute difference
	// between two present amounts, in scaled units
	AmountTolerance int64
}

// DefaultConfig returns a configuration with zero tolerance
func DefaultConfig() *Config {
	return &Config{AmountTolerance: 0}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.AmountTolerance < 0 {
		return errors.ConfigError(errors.CodeInvalidConfig, "amount_tolerance", c.AmountTolerance).
			WithSuggestion("amount_tolerance must be zero or positive")
	}
	return nil
}

// MismatchRow is one classified pair in the mismatch report. BaseKeep
// and OtherKeep are aligned with the owning PairResult's KeepNames.
type MismatchRow struct {
	ID   string
	Type MismatchType

	BaseAmountRaw  string
	BaseAmount     models.ScaledAmount
	OtherAmountRaw string
	OtherAmount    models.ScaledAmount

	// AmountDiff is other minus base, absent when either side's
	// amount is absent
	AmountDiff models.ScaledAmount

	BaseStatusRaw   string
	BaseStatusNorm  string
	OtherStatusRaw  string
	OtherStatusNorm string

	BaseRow  int
	OtherRow int

	BaseKeep  []string
	OtherKeep []string
}

// PairResult is the reconciliation outcome for one base/other pair
type PairResult struct {
	BaseName  string
	OtherName string

	DuplicatesBase  []*models.CanonicalRecord
	DuplicatesOther []*models.CanonicalRecord

	// Missing rows carry the record from the side that has them
	MissingInBase  []*models.CanonicalRecord
	MissingInOther []*models.CanonicalRecord

	Mismatches []*MismatchRow

	// KeepNames lists the keep columns resolvable on both sides, in
	// the base file's order
	KeepNames []string
}

// Matcher reconciles pairs of record sets
type Matcher struct {
	config *Config
	logger logger.Logger
}

// NewMatcher creates a Matcher with the given configuration
func NewMatcher(config *Config, log logger.Logger) (*Matcher, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Matcher{config: config, logger: log.WithComponent("matcher")}, nil
}

// MatchPair reconciles other against base and returns the classified
// result. Both sets are read-only; concurrent calls sharing a base
// index are safe.
func (m *Matcher) MatchPair(baseIdx, otherIdx *RecordIndex) *PairResult {
	base := baseIdx.Set()
	other := otherIdx.Set()

	result := &PairResult{
		BaseName:        base.Name,
		OtherName:       other.Name,
		DuplicatesBase:  baseIdx.DuplicateRows(),
		DuplicatesOther: otherIdx.DuplicateRows(),
		KeepNames:       sharedKeepNames(base.KeepNames, other.KeepNames),
	}

	baseUnique := baseIdx.Unique()
	otherUnique := otherIdx.Unique()

	for id, rec := range otherUnique {
		if _, ok := baseUnique[id]; !ok {
			result.MissingInBase = append(result.MissingInBase, rec)
		}
	}
	for id, rec := range baseUnique {
		if _, ok := otherUnique[id]; !ok {
			result.MissingInOther = append(result.MissingInOther, rec)
		}
	}
	sortByID(result.MissingInBase)
	sortByID(result.MissingInOther)

	baseKeepIdx := keepIndices(base.KeepNames, result.KeepNames)
	otherKeepIdx := keepIndices(other.KeepNames, result.KeepNames)

	for id, b := range baseUnique {
		o, ok := otherUnique[id]
		if !ok {
			continue
		}
		mt := m.classify(b, o)
		if mt == "" {
			continue
		}
		result.Mismatches = append(result.Mismatches, buildMismatchRow(id, mt, b, o, baseKeepIdx, otherKeepIdx))
	}
	sort.Slice(result.Mismatches, func(i, j int) bool {
		return result.Mismatches[i].ID < result.Mismatches[j].ID
	})

	m.logger.WithFields(logger.Fields{
		"base":             base.Name,
		"other":            other.Name,
		"duplicates_base":  len(result.DuplicatesBase),
		"duplicates_other": len(result.DuplicatesOther),
		"missing_in_base":  len(result.MissingInBase),
		"missing_in_other": len(result.MissingInOther),
		"mismatches":       len(result.Mismatches),
	}).Info("Pair matched")

	return result
}

// classify returns the mismatch type for a joined pair, or empty when
// the pair matches. A parse error on either side short-circuits: an
// amount comparison against an absent value is meaningless, so the
// amount and combined classifications only apply to present amounts.
func (m *Matcher) classify(b, o *models.CanonicalRecord) MismatchType {
	if !b.Amount.Valid || !o.Amount.Valid {
		return MismatchAmountParseError
	}

	amountMismatch := absDiff(b.Amount.Units, o.Amount.Units) > m.config.AmountTolerance
	statusMismatch := !models.StatusEqual(b.StatusNorm, o.StatusNorm)

	switch {
	case amountMismatch && statusMismatch:
		return MismatchAmountAndStatus
	case amountMismatch:
		return MismatchAmount
	case statusMismatch:
		return MismatchStatus
	default:
		return ""
	}
}

func buildMismatchRow(id string, mt MismatchType, b, o *models.CanonicalRecord, baseKeepIdx, otherKeepIdx []int) *MismatchRow {
	row := &MismatchRow{
		ID:              id,
		Type:            mt,
		BaseAmountRaw:   b.AmountRaw,
		BaseAmount:      b.Amount,
		OtherAmountRaw:  o.AmountRaw,
		OtherAmount:     o.Amount,
		BaseStatusRaw:   b.StatusRaw,
		BaseStatusNorm:  b.StatusNorm,
		OtherStatusRaw:  o.StatusRaw,
		OtherStatusNorm: o.StatusNorm,
		BaseRow:         b.RowNumber,
		OtherRow:        o.RowNumber,
		BaseKeep:        keepValues(b.Keep, baseKeepIdx),
		OtherKeep:       keepValues(o.Keep, otherKeepIdx),
	}
	if b.Amount.Valid && o.Amount.Valid {
		row.AmountDiff = models.NewScaledAmount(o.Amount.Units - b.Amount.Units)
	}
	return row
}

// sharedKeepNames returns the keep columns requested on both sides,
// in the base side's order
func sharedKeepNames(baseNames, otherNames []string) []string {
	otherSet := make(map[string]struct{}, len(otherNames))
	for _, n := range otherNames {
		otherSet[n] = struct{}{}
	}

	var shared []string
	for _, n := range baseNames {
		if _, ok := otherSet[n]; ok {
			shared = append(shared, n)
		}
	}
	return shared
}

// keepIndices maps each shared keep name to its position in a side's
// own keep list
func keepIndices(sideNames, shared []string) []int {
	pos := make(map[string]int, len(sideNames))
	for i, n := range sideNames {
		pos[n] = i
	}

	indices := make([]int, len(shared))
	for i, n := range shared {
		indices[i] = pos[n]
	}
	return indices
}

func keepValues(keep []string, indices []int) []string {
	values := make([]string, len(indices))
	for i, idx := range indices {
		if idx < len(keep) {
			values[i] = keep[idx]
		}
	}
	return values
}

func sortByID(rows []*models.CanonicalRecord) {
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].ID < rows[j].ID
	})
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
