package source

// csv.go reads delimited text with a header row.
//
// Input is decoded to UTF-8 before parsing:
//   - A leading byte order mark selects UTF-8 or UTF-16 and is dropped
//   - Otherwise the named charset is used (default UTF-8)
//   - Invalid UTF-8 is replaced with U+FFFD rather than failing the read

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/JonMunkholm/gridsource/internal/core"
)

// CSVOptions controls how ReadCSV parses its input.
type CSVOptions struct {
	Comma   rune   // field delimiter; zero means ','
	Charset string // WHATWG label such as "windows-1252"; empty means UTF-8
	// StrictQuotes rejects a quote inside an unquoted field and an
	// unterminated quoted field. Off by default so spreadsheet exports
	// such as ="2018-01-02" reach CleanCell.
	StrictQuotes bool
	MaxRows      int // stop after this many data rows; zero means no limit
}

// ReadCSV parses r into rows keyed by the header row.
//
// Cells are cleaned with core.CleanCell. Empty cells are kept as "".
// A record shorter than the header leaves the missing keys absent, and
// cells beyond the header are dropped. An input with no header yields no rows.
func ReadCSV(r io.Reader, opts CSVOptions) ([]core.Row, error) {
	dec, err := decodeReader(r, opts.Charset)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(dec)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = !opts.StrictQuotes
	cr.ReuseRecord = true
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("invalid csv: read header: %w", err)
	}
	keys := headerKeys(header)

	var rows []core.Row
	for opts.MaxRows <= 0 || len(rows) < opts.MaxRows {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid csv: %w", err)
		}
		if isBlankRecord(rec) {
			continue
		}

		var row core.Row
		for i, cell := range rec {
			if i >= len(keys) {
				break
			}
			row.Set(keys[i], core.CleanCell(cell))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ParseComma validates a delimiter given as text. Only single-rune
// delimiters are accepted; "\t" and "tab" both mean a tab.
func ParseComma(s string) (rune, error) {
	switch s {
	case "":
		return ',', nil
	case `\t`, "tab":
		return '\t', nil
	}
	r := []rune(s)
	if len(r) != 1 || r[0] == '"' || r[0] == '\r' || r[0] == '\n' {
		return 0, fmt.Errorf("invalid csv: unusable delimiter %q", s)
	}
	return r[0], nil
}

// decodeReader wraps r so it yields UTF-8. A byte order mark always wins
// over the requested charset.
func decodeReader(r io.Reader, charset string) (io.Reader, error) {
	var enc encoding.Encoding = unicode.UTF8
	if charset != "" && !strings.EqualFold(charset, "utf-8") && !strings.EqualFold(charset, "utf8") {
		e, err := htmlindex.Get(charset)
		if err != nil {
			return nil, fmt.Errorf("encoding error: unknown charset %q", charset)
		}
		enc = e
	}
	return transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder())), nil
}

// isBlankRecord reports whether every cell in rec is empty after trimming.
func isBlankRecord(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
