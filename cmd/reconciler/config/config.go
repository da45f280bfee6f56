// Package config loads reconciliation run configuration, either from
// a JSON file describing any number of source files or from the
// two-file command-line flags.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"ledger-reconciliation-service/internal/models"
	"ledger-reconciliation-service/internal/parsers"
	"ledger-reconciliation-service/internal/reconciler"
	"ledger-reconciliation-service/pkg/errors"
)

// Run is a fully resolved run: the engine configuration plus the
// output settings that live outside the core.
type Run struct {
	Config      *reconciler.RunConfig
	OutDir      string
	AmountScale int
}

// columnRef accepts the flexible JSON forms of a column reference:
// a bare name string, a digit string or number meaning an index, or
// an object with name/index/index_base fields.
type columnRef struct {
	ref     models.ColumnRef
	hasBase bool
}

func (c *columnRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		s = strings.TrimSpace(s)
		if isDigits(s) {
			n, err := strconv.Atoi(s)
			if err != nil {
				return err
			}
			c.ref.Index = &n
			return nil
		}
		c.ref.Name = s
		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		c.ref.Index = &n
		return nil
	}

	var obj struct {
		Name      *string `json:"name"`
		Index     *int    `json:"index"`
		IndexBase *int    `json:"index_base"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("unsupported column reference: %s", string(data))
	}
	if obj.Name != nil {
		c.ref.Name = strings.TrimSpace(*obj.Name)
	}
	c.ref.Index = obj.Index
	if obj.IndexBase != nil {
		c.ref.IndexBase = *obj.IndexBase
		c.hasBase = true
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// keepCols accepts either a JSON array of names or a single
// comma-separated string
type keepCols []string

func (k *keepCols) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*k = splitKeepCols(s)
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("keep_cols must be a list or a comma-separated string")
	}
	var cleaned []string
	for _, v := range list {
		if v = strings.TrimSpace(v); v != "" {
			cleaned = append(cleaned, v)
		}
	}
	*k = cleaned
	return nil
}

func splitKeepCols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

type fileConfig struct {
	Name         string   `json:"name"`
	Label        string   `json:"label"`
	Path         string   `json:"path"`
	Delimiter    *string  `json:"delimiter"`
	Encoding     *string  `json:"encoding"`
	DecimalComma *bool    `json:"decimal_comma"`
	AmountScale  *int     `json:"amount_scale"`
	IndexBase    *int     `json:"index_base"`
	KeepCols     keepCols `json:"keep_cols"`
	KeepColsAlt  keepCols `json:"keepCols"`

	Columns struct {
		ID            *columnRef `json:"id"`
		TransactionID *columnRef `json:"transaction_id"`
		TxID          *columnRef `json:"txid"`
		Amount        *columnRef `json:"amount"`
		Status        *columnRef `json:"status"`
	} `json:"columns"`
}

type runConfigJSON struct {
	OutDir          string  `json:"out_dir"`
	Out             string  `json:"out"`
	Primary         string  `json:"primary"`
	AmountScale     *int    `json:"amount_scale"`
	AmountTolerance *int64  `json:"amount_tolerance"`
	Delimiter       *string `json:"delimiter"`
	Encoding        *string `json:"encoding"`
	DecimalComma    *bool   `json:"decimal_comma"`
	IndexBase       *int    `json:"index_base"`

	Files []fileConfig `json:"files"`
}

// Load reads and resolves a JSON run configuration. Top-level
// delimiter, encoding, decimal_comma, amount_scale, and index_base act
// as defaults that each file entry may override; primary defaults to
// the first file.
func Load(path string) (*Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		return nil, errors.FileError(errors.CodeDirectoryError, path, err)
	}

	var raw runConfigJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, errors.CategoryConfiguration, errors.CodeInvalidConfig,
			"failed to parse config file").WithContext("path", path)
	}

	if len(raw.Files) == 0 {
		return nil, errors.ConfigError(errors.CodeMissingConfig, "files", nil).
			WithSuggestion("the config must contain a non-empty files array")
	}

	outDir := strings.TrimSpace(raw.OutDir)
	if outDir == "" {
		outDir = strings.TrimSpace(raw.Out)
	}
	if outDir == "" {
		outDir = "./out"
	}

	scale := 2
	if raw.AmountScale != nil {
		scale = *raw.AmountScale
	}
	if scale < 0 || scale > 18 {
		return nil, errors.ConfigError(errors.CodeInvalidConfig, "amount_scale", scale).
			WithSuggestion("amount_scale must be between 0 and 18")
	}
	var tolerance int64
	if raw.AmountTolerance != nil {
		tolerance = *raw.AmountTolerance
	}

	specs := make([]*parsers.FileSpec, 0, len(raw.Files))
	for i, fr := range raw.Files {
		spec, err := resolveFile(i, &fr, &raw, scale)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}

	primary := strings.TrimSpace(raw.Primary)
	if primary == "" {
		primary = specs[0].Name
	}

	run := &Run{
		Config: &reconciler.RunConfig{
			Files:           specs,
			Primary:         primary,
			AmountTolerance: tolerance,
		},
		OutDir:      outDir,
		AmountScale: scale,
	}
	if err := run.Config.Validate(); err != nil {
		return nil, err
	}
	return run, nil
}

func resolveFile(i int, fr *fileConfig, raw *runConfigJSON, defaultScale int) (*parsers.FileSpec, error) {
	name := strings.TrimSpace(fr.Name)
	if name == "" {
		name = strings.TrimSpace(fr.Label)
	}
	if name == "" {
		name = fmt.Sprintf("file%d", i+1)
	}

	delimiter := ","
	if raw.Delimiter != nil {
		delimiter = *raw.Delimiter
	}
	if fr.Delimiter != nil {
		delimiter = *fr.Delimiter
	}
	delim, err := parseDelimiter(delimiter)
	if err != nil {
		return nil, err
	}

	enc := "utf-8"
	if raw.Encoding != nil {
		enc = *raw.Encoding
	}
	if fr.Encoding != nil {
		enc = *fr.Encoding
	}

	decimalComma := false
	if raw.DecimalComma != nil {
		decimalComma = *raw.DecimalComma
	}
	if fr.DecimalComma != nil {
		decimalComma = *fr.DecimalComma
	}

	scale := defaultScale
	if fr.AmountScale != nil {
		scale = *fr.AmountScale
	}

	indexBase := 0
	if raw.IndexBase != nil {
		indexBase = *raw.IndexBase
	}
	if fr.IndexBase != nil {
		indexBase = *fr.IndexBase
	}

	idRef := firstRef(fr.Columns.ID, fr.Columns.TransactionID, fr.Columns.TxID)
	if idRef == nil {
		return nil, errors.ConfigError(errors.CodeMissingConfig,
			fmt.Sprintf("files[%d].columns.id", i), nil)
	}
	amountRef := fr.Columns.Amount
	if amountRef == nil {
		return nil, errors.ConfigError(errors.CodeMissingConfig,
			fmt.Sprintf("files[%d].columns.amount", i), nil)
	}

	keep := fr.KeepCols
	if len(keep) == 0 {
		keep = fr.KeepColsAlt
	}

	columns := models.ColumnSpec{
		ID:       applyIndexBase(idRef, indexBase),
		Amount:   applyIndexBase(amountRef, indexBase),
		KeepCols: keep,
	}
	if fr.Columns.Status != nil {
		columns.Status = applyIndexBase(fr.Columns.Status, indexBase)
	}

	return &parsers.FileSpec{
		Name:         name,
		Path:         strings.TrimSpace(fr.Path),
		Delimiter:    delim,
		Encoding:     enc,
		DecimalComma: decimalComma,
		AmountScale:  scale,
		Columns:      columns,
	}, nil
}

func firstRef(refs ...*columnRef) *columnRef {
	for _, r := range refs {
		if r != nil {
			return r
		}
	}
	return nil
}

// applyIndexBase fills in the inherited index base unless the
// reference set its own
func applyIndexBase(c *columnRef, indexBase int) models.ColumnRef {
	ref := c.ref
	if !c.hasBase {
		ref.IndexBase = indexBase
	}
	return ref
}

func parseDelimiter(s string) (rune, error) {
	runes := []rune(s)
	if len(runes) != 1 {
		return 0, errors.ConfigError(errors.CodeInvalidConfig, "delimiter", s).
			WithSuggestion("the delimiter must be a single character")
	}
	return runes[0], nil
}

// TwoFileParams carries the flag values of the left/right CLI mode
type TwoFileParams struct {
	Left            string
	Right           string
	OutDir          string
	IDCol           string
	AmountCol       string
	StatusCol       string
	KeepCols        string
	Delimiter       string
	Encoding        string
	DecimalComma    bool
	AmountScale     int
	AmountTolerance int64
}

// TwoFile builds a run reconciling Right against Left. Both files
// share the same column layout and parsing options.
func TwoFile(p *TwoFileParams) (*Run, error) {
	if p.Left == "" || p.Right == "" {
		return nil, errors.ConfigError(errors.CodeMissingConfig, "left/right", nil).
			WithSuggestion("two-file mode requires both --left and --right, or use --config")
	}

	delim, err := parseDelimiter(p.Delimiter)
	if err != nil {
		return nil, err
	}

	columns := models.ColumnSpec{
		ID:       models.ColumnRef{Name: p.IDCol},
		Amount:   models.ColumnRef{Name: p.AmountCol},
		KeepCols: splitKeepCols(p.KeepCols),
	}
	if s := strings.TrimSpace(p.StatusCol); s != "" {
		columns.Status = models.ColumnRef{Name: s}
	}

	makeSpec := func(name, path string) *parsers.FileSpec {
		return &parsers.FileSpec{
			Name:         name,
			Path:         path,
			Delimiter:    delim,
			Encoding:     p.Encoding,
			DecimalComma: p.DecimalComma,
			AmountScale:  p.AmountScale,
			Columns:      columns,
		}
	}

	outDir := strings.TrimSpace(p.OutDir)
	switch outDir {
	case "", ".", "..":
		outDir = "out"
	}

	run := &Run{
		Config: &reconciler.RunConfig{
			Files:           []*parsers.FileSpec{makeSpec("left", p.Left), makeSpec("right", p.Right)},
			Primary:         "left",
			AmountTolerance: p.AmountTolerance,
		},
		OutDir:      outDir,
		AmountScale: p.AmountScale,
	}
	if err := run.Config.Validate(); err != nil {
		return nil, err
	}
	return run, nil
}
