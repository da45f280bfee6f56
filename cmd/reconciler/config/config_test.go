package config

import (
	"os"
	"testing"

	"ledger-reconciliation-service/pkg/errors"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	f, err := os.CreateTemp(t.TempDir(), "run-*.json")
	if err != nil {
		t.Fatalf("failed to create temp config: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("failed to close temp config: %v", err)
	}
	return f.Name()
}

func TestLoadBasicConfig(t *testing.T) {
	path := writeTempConfig(t, `{
		"out_dir": "reports",
		"amount_tolerance": 5,
		"files": [
			{"name": "ledger", "path": "ledger.csv", "columns": {"id": "txid", "amount": "amount", "status": "state"}},
			{"name": "bank", "path": "bank.csv", "columns": {"transaction_id": "ref", "amount": "value"}}
		]
	}`)

	run, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if run.OutDir != "reports" {
		t.Errorf("expected out dir 'reports', got %q", run.OutDir)
	}
	if run.AmountScale != 2 {
		t.Errorf("expected default amount scale 2, got %d", run.AmountScale)
	}
	if run.Config.AmountTolerance != 5 {
		t.Errorf("expected tolerance 5, got %d", run.Config.AmountTolerance)
	}
	if run.Config.Primary != "ledger" {
		t.Errorf("expected primary to default to first file, got %q", run.Config.Primary)
	}
	if len(run.Config.Files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(run.Config.Files))
	}

	ledger := run.Config.Files[0]
	if ledger.Columns.ID.Name != "txid" {
		t.Errorf("expected id column 'txid', got %q", ledger.Columns.ID.Name)
	}
	if ledger.Columns.Status.Name != "state" {
		t.Errorf("expected status column 'state', got %q", ledger.Columns.Status.Name)
	}

	bank := run.Config.Files[1]
	if bank.Columns.ID.Name != "ref" {
		t.Errorf("expected transaction_id alias to resolve id column, got %q", bank.Columns.ID.Name)
	}
	if !bank.Columns.Status.IsZero() {
		t.Errorf("expected status to be absent for bank file")
	}
}

func TestLoadColumnRefForms(t *testing.T) {
	path := writeTempConfig(t, `{
		"index_base": 1,
		"files": [
			{"path": "a.csv", "columns": {"txid": 1, "amount": "3", "status": {"name": "state"}}},
			{"path": "b.csv", "columns": {"id": {"index": 0, "index_base": 0}, "amount": "betrag"}}
		],
		"primary": "file1"
	}`)

	run, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	a := run.Config.Files[0]
	if a.Name != "file1" {
		t.Errorf("expected default name 'file1', got %q", a.Name)
	}
	if a.Columns.ID.Index == nil || *a.Columns.ID.Index != 1 {
		t.Errorf("expected numeric id ref index 1, got %v", a.Columns.ID.Index)
	}
	if a.Columns.ID.IndexBase != 1 {
		t.Errorf("expected id ref to inherit index_base 1, got %d", a.Columns.ID.IndexBase)
	}
	if a.Columns.Amount.Index == nil || *a.Columns.Amount.Index != 3 {
		t.Errorf("expected digit-string amount ref index 3, got %v", a.Columns.Amount.Index)
	}
	if a.Columns.Status.Name != "state" {
		t.Errorf("expected object status ref name 'state', got %q", a.Columns.Status.Name)
	}

	b := run.Config.Files[1]
	if b.Columns.ID.Index == nil || *b.Columns.ID.Index != 0 {
		t.Errorf("expected object id ref index 0, got %v", b.Columns.ID.Index)
	}
	if b.Columns.ID.IndexBase != 0 {
		t.Errorf("expected explicit index_base 0 to override inherited 1, got %d", b.Columns.ID.IndexBase)
	}
	if b.Columns.Amount.Name != "betrag" {
		t.Errorf("expected name amount ref 'betrag', got %q", b.Columns.Amount.Name)
	}
}

func TestLoadDefaultsInheritance(t *testing.T) {
	path := writeTempConfig(t, `{
		"delimiter": ";",
		"encoding": "latin-1",
		"decimal_comma": true,
		"amount_scale": 3,
		"files": [
			{"name": "a", "path": "a.csv", "columns": {"id": "txid", "amount": "amount"}},
			{"name": "b", "path": "b.csv", "delimiter": ",", "encoding": "utf-8",
			 "decimal_comma": false, "amount_scale": 2,
			 "columns": {"id": "txid", "amount": "amount"}}
		]
	}`)

	run, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	a := run.Config.Files[0]
	if a.Delimiter != ';' || a.Encoding != "latin-1" || !a.DecimalComma || a.AmountScale != 3 {
		t.Errorf("file a did not inherit top-level defaults: %+v", a)
	}

	b := run.Config.Files[1]
	if b.Delimiter != ',' || b.Encoding != "utf-8" || b.DecimalComma || b.AmountScale != 2 {
		t.Errorf("file b overrides not applied: %+v", b)
	}
}

func TestLoadKeepColsForms(t *testing.T) {
	path := writeTempConfig(t, `{
		"files": [
			{"name": "a", "path": "a.csv", "keep_cols": ["merchant", " currency "],
			 "columns": {"id": "txid", "amount": "amount"}},
			{"name": "b", "path": "b.csv", "keep_cols": "merchant, currency",
			 "columns": {"id": "txid", "amount": "amount"}}
		]
	}`)

	run, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	for _, spec := range run.Config.Files {
		keeps := spec.Columns.KeepCols
		if len(keeps) != 2 || keeps[0] != "merchant" || keeps[1] != "currency" {
			t.Errorf("file %s: expected keep cols [merchant currency], got %v", spec.Name, keeps)
		}
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid json", `{"files": [`},
		{"no files", `{"files": []}`},
		{"missing amount column", `{"files": [
			{"name": "a", "path": "a.csv", "columns": {"id": "txid"}},
			{"name": "b", "path": "b.csv", "columns": {"id": "txid", "amount": "amount"}}
		]}`},
		{"multi-char delimiter", `{"delimiter": ";;", "files": [
			{"name": "a", "path": "a.csv", "columns": {"id": "txid", "amount": "amount"}},
			{"name": "b", "path": "b.csv", "columns": {"id": "txid", "amount": "amount"}}
		]}`},
		{"unknown primary", `{"primary": "c", "files": [
			{"name": "a", "path": "a.csv", "columns": {"id": "txid", "amount": "amount"}},
			{"name": "b", "path": "b.csv", "columns": {"id": "txid", "amount": "amount"}}
		]}`},
		{"duplicate names", `{"files": [
			{"name": "a", "path": "a.csv", "columns": {"id": "txid", "amount": "amount"}},
			{"name": "a", "path": "b.csv", "columns": {"id": "txid", "amount": "amount"}}
		]}`},
		{"global scale out of range with per-file overrides", `{"amount_scale": 25, "files": [
			{"name": "a", "path": "a.csv", "amount_scale": 2, "columns": {"id": "txid", "amount": "amount"}},
			{"name": "b", "path": "b.csv", "amount_scale": 2, "columns": {"id": "txid", "amount": "amount"}}
		]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTempConfig(t, tt.content)
			if _, err := Load(path); err == nil {
				t.Errorf("expected error for %s", tt.name)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/run.json")
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	re, ok := errors.AsReconcilerError(err)
	if !ok || re.Code != errors.CodeFileNotFound {
		t.Errorf("expected file not found error, got %v", err)
	}
}

func TestTwoFile(t *testing.T) {
	run, err := TwoFile(&TwoFileParams{
		Left:            "left.csv",
		Right:           "right.csv",
		OutDir:          "report",
		IDCol:           "transaction_id",
		AmountCol:       "amount",
		StatusCol:       "status",
		KeepCols:        "merchant,currency",
		Delimiter:       ";",
		Encoding:        "utf-8",
		DecimalComma:    true,
		AmountScale:     2,
		AmountTolerance: 1,
	})
	if err != nil {
		t.Fatalf("TwoFile failed: %v", err)
	}

	if run.OutDir != "report" {
		t.Errorf("expected out dir 'report', got %q", run.OutDir)
	}
	if run.Config.Primary != "left" {
		t.Errorf("expected primary 'left', got %q", run.Config.Primary)
	}
	if len(run.Config.Files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(run.Config.Files))
	}

	left := run.Config.Files[0]
	if left.Name != "left" || left.Path != "left.csv" {
		t.Errorf("unexpected left spec: %+v", left)
	}
	if left.Delimiter != ';' || !left.DecimalComma {
		t.Errorf("parsing options not applied: %+v", left)
	}
	if len(left.Columns.KeepCols) != 2 {
		t.Errorf("expected 2 keep cols, got %v", left.Columns.KeepCols)
	}

	right := run.Config.Files[1]
	if right.Name != "right" || right.Path != "right.csv" {
		t.Errorf("unexpected right spec: %+v", right)
	}
}

func TestTwoFileOutDirGuard(t *testing.T) {
	for _, bad := range []string{"", ".", ".."} {
		run, err := TwoFile(&TwoFileParams{
			Left:      "left.csv",
			Right:     "right.csv",
			OutDir:    bad,
			IDCol:     "transaction_id",
			AmountCol: "amount",
			Delimiter: ",",
			Encoding:  "utf-8",
		})
		if err != nil {
			t.Fatalf("TwoFile failed for out dir %q: %v", bad, err)
		}
		if run.OutDir != "out" {
			t.Errorf("out dir %q: expected fallback to 'out', got %q", bad, run.OutDir)
		}
	}
}

func TestTwoFileMissingSide(t *testing.T) {
	_, err := TwoFile(&TwoFileParams{
		Left:      "left.csv",
		IDCol:     "transaction_id",
		AmountCol: "amount",
		Delimiter: ",",
		Encoding:  "utf-8",
	})
	if err == nil {
		t.Fatal("expected error when right file is missing")
	}
}

func TestTwoFileEmptyStatusColumn(t *testing.T) {
	run, err := TwoFile(&TwoFileParams{
		Left:      "left.csv",
		Right:     "right.csv",
		IDCol:     "transaction_id",
		AmountCol: "amount",
		StatusCol: " ",
		Delimiter: ",",
		Encoding:  "utf-8",
	})
	if err != nil {
		t.Fatalf("TwoFile failed: %v", err)
	}
	if !run.Config.Files[0].Columns.Status.IsZero() {
		t.Errorf("expected blank status column flag to disable the status column")
	}
}
