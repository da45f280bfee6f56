package parsers

import (
	"context"
	"os"
	"strings"
	"testing"

	"ledger-reconciliation-service/internal/models"
	"ledger-reconciliation-service/pkg/errors"
)

func writeTempFile(t *testing.T, data []byte) string {
	t.Helper()

	f, err := os.CreateTemp("", "reconcile_test_*.csv")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	t.Cleanup(func() { os.Remove(f.Name()) })

	if _, err := f.Write(data); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Failed to close temp file: %v", err)
	}
	return f.Name()
}

func testSpec(path string) *FileSpec {
	return &FileSpec{
		Name:        "test",
		Path:        path,
		Delimiter:   ',',
		Encoding:    EncodingUTF8,
		AmountScale: 2,
		Columns: models.ColumnSpec{
			ID:     models.ColumnRef{Name: "txid"},
			Amount: models.ColumnRef{Name: "amount"},
			Status: models.ColumnRef{Name: "status"},
		},
	}
}

func TestIngestFile(t *testing.T) {
	path := writeTempFile(t, []byte("txid,amount,status\nT1,100.00,Paid\nT2,50.25,Pending\n"))

	set, err := NewIngestor(nil).IngestFile(context.Background(), testSpec(path))
	if err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}

	if set.Stats.RowsTotal != 2 {
		t.Errorf("RowsTotal = %d, want 2", set.Stats.RowsTotal)
	}
	if len(set.Records) != 2 {
		t.Fatalf("len(Records) = %d, want 2", len(set.Records))
	}

	r := set.Records[0]
	if r.ID != "T1" || !r.Amount.Valid || r.Amount.Units != 10000 {
		t.Errorf("unexpected first record: %v", r)
	}
	if r.StatusNorm != "paid" {
		t.Errorf("StatusNorm = %q, want paid", r.StatusNorm)
	}
	if r.RowNumber != 2 {
		t.Errorf("RowNumber = %d, want 2 (header is row 1)", r.RowNumber)
	}
	if set.Records[1].RowNumber != 3 {
		t.Errorf("second record RowNumber = %d, want 3", set.Records[1].RowNumber)
	}
}

func TestIngestFileRowDefects(t *testing.T) {
	content := "txid,amount,status\n" +
		",100.00,Paid\n" + // blank id: dropped
		"   ,100.00,Paid\n" + // whitespace id: dropped
		"T1,abc,Paid\n" + // bad amount: kept with absent amount
		"T2,,Paid\n" + // blank amount: kept, not a defect
		"T3,10.00,Paid\n"
	path := writeTempFile(t, []byte(content))

	set, err := NewIngestor(nil).IngestFile(context.Background(), testSpec(path))
	if err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}

	if set.Stats.RowsTotal != 5 {
		t.Errorf("RowsTotal = %d, want 5", set.Stats.RowsTotal)
	}
	if set.Stats.RowsBadID != 2 {
		t.Errorf("RowsBadID = %d, want 2", set.Stats.RowsBadID)
	}
	if set.Stats.RowsBadAmount != 1 {
		t.Errorf("RowsBadAmount = %d, want 1", set.Stats.RowsBadAmount)
	}
	if len(set.Records) != 3 {
		t.Fatalf("len(Records) = %d, want 3", len(set.Records))
	}
	if set.Records[0].ID != "T1" || set.Records[0].Amount.Valid {
		t.Errorf("bad-amount row should be kept with absent amount: %v", set.Records[0])
	}
	if set.Records[1].ID != "T2" || set.Records[1].Amount.Valid {
		t.Errorf("blank-amount row should be kept with absent amount: %v", set.Records[1])
	}
}

func TestIngestFileShortRows(t *testing.T) {
	path := writeTempFile(t, []byte("txid,amount,status,note\nT1,5.00\n"))

	spec := testSpec(path)
	spec.Columns.KeepCols = []string{"note"}

	set, err := NewIngestor(nil).IngestFile(context.Background(), spec)
	if err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}

	r := set.Records[0]
	if r.StatusRaw != "" || r.StatusNorm != "" {
		t.Errorf("missing status cell should read as empty, got %q", r.StatusRaw)
	}
	if len(r.Keep) != 1 || r.Keep[0] != "" {
		t.Errorf("missing keep cell should read as empty, got %v", r.Keep)
	}
}

func TestIngestFileBOMHeader(t *testing.T) {
	path := writeTempFile(t, []byte("\xef\xbb\xbftxid,amount,status\nT1,1.00,ok\n"))

	set, err := NewIngestor(nil).IngestFile(context.Background(), testSpec(path))
	if err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}
	if set.Header[0] != "txid" {
		t.Errorf("BOM not stripped from header: %q", set.Header[0])
	}
	if len(set.Records) != 1 {
		t.Errorf("len(Records) = %d, want 1", len(set.Records))
	}
}

func TestIngestFilePaddedHeader(t *testing.T) {
	path := writeTempFile(t, []byte(" txid , amount ,status\nT1,1.00,ok\n"))

	set, err := NewIngestor(nil).IngestFile(context.Background(), testSpec(path))
	if err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}
	if set.Header[0] != "txid" || set.Header[1] != "amount" {
		t.Errorf("header cells not trimmed: %v", set.Header)
	}
	if len(set.Records) != 1 || set.Records[0].Amount.Units != 100 {
		t.Errorf("padded header columns did not resolve: %v", set.Records)
	}
}

func TestIngestFileLatin1(t *testing.T) {
	// "Café" with a latin-1 encoded e-acute in the keep column
	path := writeTempFile(t, []byte("txid,amount,status,merchant\nT1,1.00,ok,Caf\xe9\n"))

	spec := testSpec(path)
	spec.Encoding = EncodingLatin1
	spec.Columns.KeepCols = []string{"merchant"}

	set, err := NewIngestor(nil).IngestFile(context.Background(), spec)
	if err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}
	if set.Records[0].Keep[0] != "Café" {
		t.Errorf("latin-1 cell decoded to %q, want Café", set.Records[0].Keep[0])
	}
}

func TestIngestFileMalformedUTF8Replaced(t *testing.T) {
	path := writeTempFile(t, []byte("txid,amount,status\nT1,1.00,ok\xff\n"))

	set, err := NewIngestor(nil).IngestFile(context.Background(), testSpec(path))
	if err != nil {
		t.Fatalf("malformed bytes should be replaced, not fatal: %v", err)
	}
	if !strings.Contains(set.Records[0].StatusRaw, "�") {
		t.Errorf("expected replacement character in status, got %q", set.Records[0].StatusRaw)
	}
}

func TestIngestFileSemicolonDelimiter(t *testing.T) {
	path := writeTempFile(t, []byte("txid;amount;status\nT1;1,50;ok\n"))

	spec := testSpec(path)
	spec.Delimiter = ';'
	spec.DecimalComma = true

	set, err := NewIngestor(nil).IngestFile(context.Background(), spec)
	if err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}
	if set.Records[0].Amount.Units != 150 {
		t.Errorf("Amount = %d, want 150", set.Records[0].Amount.Units)
	}
}

func TestIngestFileEmpty(t *testing.T) {
	path := writeTempFile(t, nil)

	_, err := NewIngestor(nil).IngestFile(context.Background(), testSpec(path))
	re, ok := errors.AsReconcilerError(err)
	if !ok || re.Code != errors.CodeFileEmpty {
		t.Errorf("expected file_empty error, got %v", err)
	}
}

func TestIngestFileNotFound(t *testing.T) {
	spec := testSpec("/nonexistent/path/data.csv")

	_, err := NewIngestor(nil).IngestFile(context.Background(), spec)
	re, ok := errors.AsReconcilerError(err)
	if !ok || re.Code != errors.CodeFileNotFound {
		t.Errorf("expected file_not_found error, got %v", err)
	}
}

func TestIngestFileMissingColumn(t *testing.T) {
	path := writeTempFile(t, []byte("id,value\nT1,1.00\n"))

	_, err := NewIngestor(nil).IngestFile(context.Background(), testSpec(path))
	re, ok := errors.AsReconcilerError(err)
	if !ok || re.Category != errors.CategorySchema {
		t.Errorf("expected schema error, got %v", err)
	}
}

func TestIngestFileCancellation(t *testing.T) {
	var b strings.Builder
	b.WriteString("txid,amount,status\n")
	for i := 0; i < 3000; i++ {
		b.WriteString("T1,1.00,ok\n")
	}
	path := writeTempFile(t, []byte(b.String()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewIngestor(nil).IngestFile(ctx, testSpec(path))
	re, ok := errors.AsReconcilerError(err)
	if !ok || re.Code != errors.CodeCancelled {
		t.Errorf("expected cancelled error, got %v", err)
	}
}

func TestResolveColumn(t *testing.T) {
	header := []string{"TxID", " Amount ", "status"}

	t.Run("exact match", func(t *testing.T) {
		idx, err := ResolveColumn(header, models.ColumnRef{Name: "TxID"}, "transaction_id", nil)
		if err != nil || idx != 0 {
			t.Errorf("got (%d, %v), want (0, nil)", idx, err)
		}
	})

	t.Run("case folded and trimmed match", func(t *testing.T) {
		idx, err := ResolveColumn(header, models.ColumnRef{Name: "amount"}, "amount", nil)
		if err != nil || idx != 1 {
			t.Errorf("got (%d, %v), want (1, nil)", idx, err)
		}
	})

	t.Run("index base zero", func(t *testing.T) {
		two := 2
		idx, err := ResolveColumn(header, models.ColumnRef{Index: &two}, "status", nil)
		if err != nil || idx != 2 {
			t.Errorf("got (%d, %v), want (2, nil)", idx, err)
		}
	})

	t.Run("index base one", func(t *testing.T) {
		one := 1
		idx, err := ResolveColumn(header, models.ColumnRef{Index: &one, IndexBase: 1}, "transaction_id", nil)
		if err != nil || idx != 0 {
			t.Errorf("got (%d, %v), want (0, nil)", idx, err)
		}
	})

	t.Run("index takes precedence over name", func(t *testing.T) {
		one := 1
		idx, err := ResolveColumn(header, models.ColumnRef{Name: "status", Index: &one}, "status", nil)
		if err != nil || idx != 1 {
			t.Errorf("got (%d, %v), want (1, nil)", idx, err)
		}
	})

	t.Run("index below base", func(t *testing.T) {
		zero := 0
		_, err := ResolveColumn(header, models.ColumnRef{Index: &zero, IndexBase: 1}, "amount", nil)
		re, ok := errors.AsReconcilerError(err)
		if !ok || re.Category != errors.CategoryConfiguration {
			t.Errorf("expected configuration error, got %v", err)
		}
	})

	t.Run("invalid index base", func(t *testing.T) {
		one := 1
		_, err := ResolveColumn(header, models.ColumnRef{Index: &one, IndexBase: 2}, "amount", nil)
		re, ok := errors.AsReconcilerError(err)
		if !ok || re.Category != errors.CategoryConfiguration {
			t.Errorf("expected configuration error, got %v", err)
		}
	})

	t.Run("name not found", func(t *testing.T) {
		_, err := ResolveColumn(header, models.ColumnRef{Name: "missing"}, "amount", nil)
		re, ok := errors.AsReconcilerError(err)
		if !ok || re.Category != errors.CategorySchema {
			t.Errorf("expected schema error, got %v", err)
		}
	})

	t.Run("empty reference", func(t *testing.T) {
		_, err := ResolveColumn(header, models.ColumnRef{}, "amount", nil)
		re, ok := errors.AsReconcilerError(err)
		if !ok || re.Category != errors.CategoryConfiguration {
			t.Errorf("expected configuration error, got %v", err)
		}
	})
}

func TestResolveKeepColumns(t *testing.T) {
	header := []string{"txid", "amount", "note", "merchant"}

	indices, err := ResolveKeepColumns(header, []string{"merchant", "note"})
	if err != nil {
		t.Fatalf("ResolveKeepColumns failed: %v", err)
	}
	if len(indices) != 2 || indices[0] != 3 || indices[1] != 2 {
		t.Errorf("indices = %v, want [3 2]", indices)
	}

	_, err = ResolveKeepColumns(header, []string{"missing"})
	re, ok := errors.AsReconcilerError(err)
	if !ok || re.Category != errors.CategorySchema {
		t.Errorf("expected schema error for missing keep column, got %v", err)
	}
}

func TestFileSpecValidate(t *testing.T) {
	spec := testSpec("/tmp/x.csv")
	if err := spec.Validate(); err != nil {
		t.Errorf("Expected valid spec, got: %v", err)
	}

	badScale := testSpec("/tmp/x.csv")
	badScale.AmountScale = 19
	if err := badScale.Validate(); err == nil {
		t.Error("Expected error for amount_scale > 18")
	}

	badEnc := testSpec("/tmp/x.csv")
	badEnc.Encoding = "ebcdic"
	if err := badEnc.Validate(); err == nil {
		t.Error("Expected error for unsupported encoding")
	}

	noName := testSpec("/tmp/x.csv")
	noName.Name = " "
	if err := noName.Validate(); err == nil {
		t.Error("Expected error for blank file name")
	}
}
