package parsers

import (
	"strings"

	"golang.org/x/text/cases"

	"ledger-reconciliation-service/internal/models"
	"ledger-reconciliation-service/pkg/errors"
	"ledger-reconciliation-service/pkg/logger"
)

// ResolveColumn maps a column reference to a zero-based position in the
// header. A positional reference takes precedence over a name; the
// name lookup tries an exact match first and falls back to a trimmed,
// case-folded match. role names the column's purpose in error messages.
func ResolveColumn(header []string, ref models.ColumnRef, role string, log logger.Logger) (int, error) {
	if ref.Index != nil {
		if ref.IndexBase != 0 && ref.IndexBase != 1 {
			return 0, errors.ConfigError(errors.CodeInvalidConfig, role+".index_base", ref.IndexBase).
				WithSuggestion("index_base must be 0 or 1")
		}
		if ref.Name != "" && log != nil {
			log.WithFields(logger.Fields{
				"role":  role,
				"name":  ref.Name,
				"index": *ref.Index,
			}).Warn("Column reference has both name and index; using index")
		}
		pos := *ref.Index - ref.IndexBase
		if pos < 0 {
			return 0, errors.ConfigError(errors.CodeInvalidConfig, role+".index", *ref.Index).
				WithSuggestion("column index must not be below the configured index_base")
		}
		return pos, nil
	}

	if ref.Name == "" {
		return 0, errors.ConfigError(errors.CodeMissingConfig, role, "").
			WithSuggestion("set either a column name or a column index")
	}
	return findColumn(header, ref.Name, role)
}

// ResolveKeepColumns resolves each keep-column name against the header.
// Any missing name is fatal for the file.
func ResolveKeepColumns(header []string, names []string) ([]int, error) {
	indices := make([]int, 0, len(names))
	for _, name := range names {
		idx, err := findColumn(header, name, "keep_column")
		if err != nil {
			return nil, err
		}
		indices = append(indices, idx)
	}
	return indices, nil
}

func findColumn(header []string, name string, role string) (int, error) {
	for i, h := range header {
		if h == name {
			return i, nil
		}
	}

	fold := cases.Fold()
	want := fold.String(strings.TrimSpace(name))
	for i, h := range header {
		if fold.String(strings.TrimSpace(h)) == want {
			return i, nil
		}
	}

	return 0, errors.SchemaError(role, name, header)
}
