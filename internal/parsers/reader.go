package parsers

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"ledger-reconciliation-service/pkg/errors"
)

// decoderFor returns a decoder for the named encoding. Every supported
// decoder replaces malformed byte sequences instead of failing, so a
// corrupt export degrades to replacement characters rather than an
// aborted run.
func decoderFor(name string) (*encoding.Decoder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", EncodingUTF8, "utf8":
		return unicode.UTF8.NewDecoder(), nil
	case EncodingLatin1, EncodingISO88591, "iso8859-1":
		return charmap.ISO8859_1.NewDecoder(), nil
	case EncodingWindows1252, "cp1252":
		return charmap.Windows1252.NewDecoder(), nil
	case EncodingUTF16:
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder(), nil
	case EncodingUTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder(), nil
	case EncodingUTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder(), nil
	default:
		return nil, errors.ConfigError(errors.CodeInvalidConfig, "file.encoding", name).
			WithSuggestion("supported encodings: utf-8, latin-1, iso-8859-1, windows-1252, utf-16, utf-16le, utf-16be")
	}
}

// sourceReader wraps an open file with its decoded CSV reader
type sourceReader struct {
	file   *os.File
	csv    *csv.Reader
	Header []string
}

// Close releases the underlying file
func (sr *sourceReader) Close() error {
	return sr.file.Close()
}

// Read returns the next data row, or io.EOF when exhausted
func (sr *sourceReader) Read() ([]string, error) {
	return sr.csv.Read()
}

// openSource opens the file described by spec, applies its text
// decoder, and consumes the header row. An empty file is fatal.
func openSource(spec *FileSpec) (*sourceReader, error) {
	dec, err := decoderFor(spec.Encoding)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(spec.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, spec.Path, err)
		}
		if os.IsPermission(err) {
			return nil, errors.FileError(errors.CodeFilePermission, spec.Path, err)
		}
		return nil, errors.FileError(errors.CodeDirectoryError, spec.Path, err)
	}

	reader := csv.NewReader(transform.NewReader(file, dec))
	reader.Comma = spec.Delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		file.Close()
		if err == io.EOF {
			return nil, errors.FileError(errors.CodeFileEmpty, spec.Path, err)
		}
		return nil, errors.Wrap(err, errors.CategoryFile, errors.CodeInvalidFormat,
			"failed to read header row").WithContext("path", spec.Path)
	}

	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
	}

	return &sourceReader{file: file, csv: reader, Header: header}, nil
}
