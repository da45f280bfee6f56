package reporter

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"

	"ledger-reconciliation-service/internal/models"
	"ledger-reconciliation-service/internal/reconciler"
	"ledger-reconciliation-service/pkg/errors"
	"ledger-reconciliation-service/pkg/logger"
)

// Settings records the run parameters echoed into the summary
type Settings struct {
	AmountScale           int   `json:"amount_scale"`
	AmountToleranceScaled int64 `json:"amount_tolerance_scaled"`
}

// FileSummary describes one ingested file in the run summary
type FileSummary struct {
	Path          string   `json:"path"`
	Header        []string `json:"header"`
	RowsTotal     int      `json:"rows_total"`
	RowsBadID     int      `json:"rows_bad_id"`
	RowsBadAmount int      `json:"rows_bad_amount"`
}

// PairSummary holds the exported row counts for one pair
type PairSummary struct {
	DuplicatesBaseRows  int `json:"duplicates_base_rows"`
	DuplicatesOtherRows int `json:"duplicates_other_rows"`
	MissingInBase       int `json:"missing_in_base"`
	MissingInOther      int `json:"missing_in_other"`
	Mismatches          int `json:"mismatches"`
}

// Summary is the JSON document written alongside the report files
type Summary struct {
	ElapsedSeconds float64                 `json:"elapsed_seconds"`
	OutDir         string                  `json:"out_dir"`
	Primary        string                  `json:"primary"`
	Files          map[string]*FileSummary `json:"files"`
	Pairs          map[string]*PairSummary `json:"pairs"`
	Settings       Settings                `json:"settings"`
}

// Writer persists run results under a single output directory
type Writer struct {
	outDir string
	logger logger.Logger
}

// NewWriter creates a Writer rooted at outDir
func NewWriter(outDir string, log logger.Logger) *Writer {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Writer{outDir: outDir, logger: log.WithComponent("reporter")}
}

// WriteRun writes every report table for the run and the summary.
//
// Layout: status_totals__<file>.csv per file at the top level, a
// <primary>__vs__<other>/ directory per pair holding the duplicate,
// missing, and mismatch tables, and summary.json describing the run.
func (w *Writer) WriteRun(result *reconciler.RunResult, settings Settings) (*Summary, error) {
	if err := os.MkdirAll(w.outDir, 0o755); err != nil {
		return nil, errors.FileError(errors.CodeDirectoryError, w.outDir, err)
	}

	summary := &Summary{
		ElapsedSeconds: result.Elapsed.Seconds(),
		OutDir:         w.outDir,
		Primary:        result.Primary,
		Files:          make(map[string]*FileSummary, len(result.Sets)),
		Pairs:          make(map[string]*PairSummary, len(result.Pairs)),
		Settings:       settings,
	}

	setsByName := make(map[string]*models.RecordSet, len(result.Sets))
	for _, set := range result.Sets {
		setsByName[set.Name] = set
		summary.Files[set.Name] = &FileSummary{
			Path:          set.Path,
			Header:        set.Header,
			RowsTotal:     set.Stats.RowsTotal,
			RowsBadID:     set.Stats.RowsBadID,
			RowsBadAmount: set.Stats.RowsBadAmount,
		}

		totals := StatusTotalsTable("status_totals__"+set.Name, result.Totals[set.Name])
		if err := w.writeTable(w.outDir, totals); err != nil {
			return nil, err
		}
	}

	base := setsByName[result.Primary]
	for _, pair := range result.Pairs {
		pairDir := filepath.Join(w.outDir, pair.BaseName+"__vs__"+pair.OtherName)
		if err := os.MkdirAll(pairDir, 0o755); err != nil {
			return nil, errors.FileError(errors.CodeDirectoryError, pairDir, err)
		}

		for _, table := range AssemblePair(pair, base, setsByName[pair.OtherName]) {
			if err := w.writeTable(pairDir, table); err != nil {
				return nil, err
			}
		}

		summary.Pairs[pair.OtherName] = &PairSummary{
			DuplicatesBaseRows:  len(pair.DuplicatesBase),
			DuplicatesOtherRows: len(pair.DuplicatesOther),
			MissingInBase:       len(pair.MissingInBase),
			MissingInOther:      len(pair.MissingInOther),
			Mismatches:          len(pair.Mismatches),
		}
	}

	if err := w.writeSummary(summary); err != nil {
		return nil, err
	}

	w.logger.WithFields(logger.Fields{
		"out_dir": w.outDir,
		"files":   len(summary.Files),
		"pairs":   len(summary.Pairs),
	}).Info("Reports written")

	return summary, nil
}

func (w *Writer) writeTable(dir string, table Table) error {
	path := filepath.Join(dir, table.Name+".csv")
	f, err := os.Create(path)
	if err != nil {
		return errors.FileError(errors.CodeDirectoryError, path, err).
			WithSuggestion("check that the output directory is writable")
	}

	cw := csv.NewWriter(f)
	cw.Write(table.Header)
	for _, row := range table.Rows {
		cw.Write(row)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return errors.Wrap(err, errors.CategoryReconciliation, errors.CodeReportFailed,
			"failed to write report").WithContext("path", path)
	}
	if err := f.Close(); err != nil {
		return errors.FileError(errors.CodeDirectoryError, path, err)
	}
	return nil
}

func (w *Writer) writeSummary(summary *Summary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.CategoryReconciliation, errors.CodeReportFailed,
			"failed to encode summary")
	}

	path := filepath.Join(w.outDir, "summary.json")
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return errors.FileError(errors.CodeDirectoryError, path, err).
			WithSuggestion("check that the output directory is writable")
	}
	return nil
}
