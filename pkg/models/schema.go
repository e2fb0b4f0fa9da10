package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ── Column Types ─────────────────────────────────────────────

// ColumnType is the semantic type assigned to a dataset column.
type ColumnType string

const (
	ColumnNumber    ColumnType = "number"
	ColumnDate      ColumnType = "date"
	ColumnDateStart ColumnType = "date-start"
	ColumnDateEnd   ColumnType = "date-end"
	ColumnCategory  ColumnType = "category"
	ColumnGeoState  ColumnType = "geo-state"
	ColumnText      ColumnType = "text"
	ColumnLatLon    ColumnType = "latlon"
)

// Valid reports whether t is one of the known column types.
func (t ColumnType) Valid() bool {
	switch t {
	case ColumnNumber, ColumnDate, ColumnDateStart, ColumnDateEnd,
		ColumnCategory, ColumnGeoState, ColumnText, ColumnLatLon:
		return true
	}
	return false
}

// IsDate is true for plain dates and date-start columns, the two types
// usable as a time axis.
func (t ColumnType) IsDate() bool {
	return t == ColumnDate || t == ColumnDateStart
}

// ── Schema ───────────────────────────────────────────────────

// Column is a single schema entry.
type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// Schema is an ordered mapping from column name to ColumnType.
// The zero value is an empty schema ready to use.
type Schema struct {
	cols  []Column
	index map[string]int
}

// NewSchema builds a schema from columns in order. A repeated name
// overwrites the earlier entry's type and keeps its position.
func NewSchema(cols ...Column) Schema {
	var s Schema
	for _, c := range cols {
		s.Set(c.Name, c.Type)
	}
	return s
}

// Set assigns a type to a column, appending it if new.
func (s *Schema) Set(name string, t ColumnType) {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if i, ok := s.index[name]; ok {
		s.cols[i].Type = t
		return
	}
	s.index[name] = len(s.cols)
	s.cols = append(s.cols, Column{Name: name, Type: t})
}

// Type returns the column's type and whether it exists.
func (s Schema) Type(name string) (ColumnType, bool) {
	i, ok := s.index[name]
	if !ok {
		return "", false
	}
	return s.cols[i].Type, true
}

// Has reports whether the column exists.
func (s Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Len returns the number of columns.
func (s Schema) Len() int { return len(s.cols) }

// Columns returns a copy of the entries in order.
func (s Schema) Columns() []Column {
	out := make([]Column, len(s.cols))
	copy(out, s.cols)
	return out
}

// Names returns the column names in order.
func (s Schema) Names() []string {
	out := make([]string, len(s.cols))
	for i, c := range s.cols {
		out[i] = c.Name
	}
	return out
}

// OfType returns the names of columns matching any of the given types,
// in schema order.
func (s Schema) OfType(types ...ColumnType) []string {
	var out []string
	for _, c := range s.cols {
		for _, t := range types {
			if c.Type == t {
				out = append(out, c.Name)
				break
			}
		}
	}
	return out
}

// MarshalJSON writes {"col": {"type": "..."}} preserving column order.
func (s Schema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range s.cols {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteString(`:{"type":`)
		typ, _ := json.Marshal(string(c.Type))
		buf.Write(typ)
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the object form written by MarshalJSON, keeping
// the key order found in the document.
func (s *Schema) UnmarshalJSON(data []byte) error {
	*s = Schema{}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("schema: expected object, got %v", tok)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("schema: expected column name, got %v", keyTok)
		}
		var entry struct {
			Type ColumnType `json:"type"`
		}
		if err := dec.Decode(&entry); err != nil {
			return fmt.Errorf("schema: column %q: %w", name, err)
		}
		if !entry.Type.Valid() {
			entry.Type = ColumnText
		}
		s.Set(name, entry.Type)
	}
	_, err = dec.Token()
	return err
}
