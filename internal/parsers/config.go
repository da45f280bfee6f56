// Package parsers turns delimited text exports into canonical record
// sets. It handles the messy parts of real ledger exports: per-file
// delimiters and text encodings, BOM-prefixed headers, columns
// addressed by name or position, and rows with missing or malformed
// cells.
package parsers

import (
	"fmt"
	"strings"

	"ledger-reconciliation-service/internal/models"
	"ledger-reconciliation-service/pkg/errors"
)

// Supported text encodings for source files
const (
	EncodingUTF8        = "utf-8"
	EncodingLatin1      = "latin-1"
	EncodingISO88591    = "iso-8859-1"
	EncodingWindows1252 = "windows-1252"
	EncodingUTF16       = "utf-16"
	EncodingUTF16LE     = "utf-16le"
	EncodingUTF16BE     = "utf-16be"
)

// FileSpec holds the resolved configuration for one source file
type FileSpec struct {
	Name         string
	Path         string
	Delimiter    rune
	Encoding     string
	DecimalComma bool
	AmountScale  int
	Columns      models.ColumnSpec
}

// Validate checks the file spec for values the ingestor cannot work with
func (fs *FileSpec) Validate() error {
	if strings.TrimSpace(fs.Name) == "" {
		return errors.ConfigError(errors.CodeMissingConfig, "file.name", fs.Name)
	}
	if strings.TrimSpace(fs.Path) == "" {
		return errors.ConfigError(errors.CodeMissingConfig, "file.path", fs.Path)
	}
	if fs.Delimiter == 0 {
		return errors.ConfigError(errors.CodeInvalidConfig, "file.delimiter", "empty")
	}
	if fs.AmountScale < 0 || fs.AmountScale > 18 {
		return errors.ConfigError(errors.CodeInvalidConfig, "file.amount_scale", fs.AmountScale).
			WithSuggestion("amount_scale must be between 0 and 18")
	}
	if _, err := decoderFor(fs.Encoding); err != nil {
		return err
	}
	if err := fs.Columns.Validate(); err != nil {
		return errors.ConfigError(errors.CodeInvalidConfig, "file.columns", err.Error())
	}
	return nil
}

// String returns a short description of the file spec
func (fs *FileSpec) String() string {
	return fmt.Sprintf("FileSpec{Name: %s, Path: %s, Delimiter: %q, Encoding: %s}",
		fs.Name, fs.Path, fs.Delimiter, fs.Encoding)
}
