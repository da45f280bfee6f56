package parsers

import (
	"context"
	"io"
	"strings"

	"ledger-reconciliation-service/internal/models"
	"ledger-reconciliation-service/pkg/errors"
	"ledger-reconciliation-service/pkg/logger"
)

// cancellation is checked once per batch of rows
const cancelCheckInterval = 1024

// Ingestor streams source files into canonical record sets
type Ingestor struct {
	logger logger.Logger
}

// NewIngestor creates an Ingestor logging through log
func NewIngestor(log logger.Logger) *Ingestor {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Ingestor{logger: log.WithComponent("ingestor")}
}

// IngestFile reads the file described by spec into a RecordSet.
//
// Row numbers are 1-based counting the header as row 1, so the first
// data row is row 2. A row whose identifier cell is out of range or
// blank is dropped and counted; a row whose amount cell cannot be
// parsed is kept with an absent amount and counted. Missing cells in
// short rows read as empty strings.
func (ing *Ingestor) IngestFile(ctx context.Context, spec *FileSpec) (*models.RecordSet, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	log := ing.logger.WithFields(logger.Fields{
		"file": spec.Name,
		"path": spec.Path,
	})
	log.Info("Starting ingestion")

	src, err := openSource(spec)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	idIdx, err := ResolveColumn(src.Header, spec.Columns.ID, "transaction_id", log)
	if err != nil {
		return nil, err
	}
	amountIdx, err := ResolveColumn(src.Header, spec.Columns.Amount, "amount", log)
	if err != nil {
		return nil, err
	}
	statusIdx := -1
	if !spec.Columns.Status.IsZero() {
		statusIdx, err = ResolveColumn(src.Header, spec.Columns.Status, "status", log)
		if err != nil {
			return nil, err
		}
	}
	keepIdx, err := ResolveKeepColumns(src.Header, spec.Columns.KeepCols)
	if err != nil {
		return nil, err
	}

	set := &models.RecordSet{
		Name:      spec.Name,
		Path:      spec.Path,
		Header:    src.Header,
		KeepNames: append([]string(nil), spec.Columns.KeepCols...),
	}

	progress := logger.NewProgressTracker("ingest "+spec.Name, ing.logger)
	rowNum := 1
	for {
		if rowNum%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, errors.InternalError(errors.CodeCancelled, "ingestion", err).
					WithContext("file", spec.Name)
			}
		}

		row, err := src.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryFile, errors.CodeInvalidFormat,
				"failed to read row").WithContext("path", spec.Path).WithContext("row", rowNum+1)
		}
		rowNum++
		set.Stats.RowsTotal++

		id := strings.TrimSpace(cell(row, idIdx))
		if id == "" {
			set.Stats.RowsBadID++
			continue
		}

		amountRaw := cell(row, amountIdx)
		amount := models.ParseScaledAmount(amountRaw, spec.AmountScale, spec.DecimalComma)
		if !amount.Valid && strings.TrimSpace(amountRaw) != "" {
			set.Stats.RowsBadAmount++
		}

		var statusRaw string
		if statusIdx >= 0 {
			statusRaw = cell(row, statusIdx)
		}

		keep := make([]string, len(keepIdx))
		for i, k := range keepIdx {
			keep[i] = cell(row, k)
		}

		set.Records = append(set.Records, &models.CanonicalRecord{
			ID:         id,
			AmountRaw:  amountRaw,
			Amount:     amount,
			StatusRaw:  statusRaw,
			StatusNorm: models.NormalizeStatus(statusRaw),
			RowNumber:  rowNum,
			Keep:       keep,
		})
		progress.Add(1)
	}
	progress.Complete()

	log.WithFields(logger.Fields{
		"rows_total":      set.Stats.RowsTotal,
		"rows_bad_id":     set.Stats.RowsBadID,
		"rows_bad_amount": set.Stats.RowsBadAmount,
		"records":         len(set.Records),
	}).Info("Ingestion complete")

	return set, nil
}

// cell returns the value at idx, or empty when the row is too short
func cell(row []string, idx int) string {
	if idx >= 0 && idx < len(row) {
		return row[idx]
	}
	return ""
}
