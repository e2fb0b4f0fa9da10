// Package tabular parses uploaded CSV text into header-keyed rows.
package tabular

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/chartgenie/chartgenie/pkg/models"
)

// Options controls parsing.
type Options struct {
	// DynamicTyping converts numeric cells to float64. Off keeps every
	// cell as the raw string.
	DynamicTyping bool
	// Delimiter for CSV. If 0, auto-detects among ',', ';', '\t' from
	// the header line.
	Delimiter rune
	// MaxRows limits data rows read; 0 means unlimited.
	MaxRows int
}

// Table is a parsed CSV: the header in file order and one row per
// non-empty record.
type Table struct {
	Header []string
	Rows   []models.Row
}

// Parse reads CSV from r. Empty input yields an empty table. Records
// shorter than the header leave the missing cells out of the row;
// cells past the header are dropped.
func Parse(r io.Reader, opt Options) (*Table, error) {
	br := bufio.NewReader(r)
	delim := opt.Delimiter
	if delim == 0 {
		head, _ := br.Peek(4096)
		delim = sniffDelimiter(head)
	}

	cr := csv.NewReader(br)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := nextRecord(cr)
	if errors.Is(err, io.EOF) {
		return &Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	header = uniqueHeader(header)

	t := &Table{Header: header}
	for opt.MaxRows <= 0 || len(t.Rows) < opt.MaxRows {
		rec, err := nextRecord(cr)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(t.Rows)+1, err)
		}
		row := make(models.Row, len(header))
		for i, cell := range rec {
			if i >= len(header) {
				break
			}
			row[header[i]] = convert(cell, opt.DynamicTyping)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// ParseBytes is Parse over an in-memory buffer.
func ParseBytes(data []byte, opt Options) (*Table, error) {
	return Parse(bytes.NewReader(data), opt)
}

// nextRecord skips blank lines, including lines of only whitespace or
// only delimiters.
func nextRecord(cr *csv.Reader) ([]string, error) {
	for {
		rec, err := cr.Read()
		if err != nil {
			return nil, err
		}
		if !blankRecord(rec) {
			// ReuseRecord is off, so rec is ours to keep.
			return rec, nil
		}
	}
}

func blankRecord(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// uniqueHeader suffixes repeated names with _1, _2, ... and names blank
// headers by position.
func uniqueHeader(in []string) []string {
	out := make([]string, len(in))
	seen := make(map[string]int, len(in))
	taken := make(map[string]bool, len(in))
	for i, name := range in {
		name = strings.TrimSpace(name)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		candidate := name
		for taken[candidate] {
			seen[name]++
			candidate = fmt.Sprintf("%s_%d", name, seen[name])
		}
		taken[candidate] = true
		out[i] = candidate
	}
	return out
}

func convert(cell string, dynamic bool) any {
	if !dynamic {
		return cell
	}
	s := strings.TrimSpace(cell)
	// hex floats parse but are not numbers to a spreadsheet user
	if s == "" || strings.ContainsAny(s, "xX") {
		return cell
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return f
	}
	return cell
}

func sniffDelimiter(head []byte) rune {
	line := head
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		line = head[:i]
	}
	best, bestN := ',', bytes.Count(line, []byte{','})
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}
