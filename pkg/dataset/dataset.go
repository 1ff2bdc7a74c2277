// Package dataset holds an in-memory, ordered dataset and the operations the
// pipeline chains over it.
package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/xhad/qafilter/internal/models"
	"github.com/xhad/qafilter/internal/types"
)

// Memory is an immutable dataset backed by a slice. Filter and Project return
// new datasets and leave the receiver untouched.
type Memory struct {
	columns []string
	records []models.Record
}

func New(columns []string, records []models.Record) *Memory {
	return &Memory{
		columns: append([]string(nil), columns...),
		records: records,
	}
}

func (d *Memory) Len() int {
	return len(d.records)
}

func (d *Memory) At(i int) models.Record {
	return d.records[i]
}

func (d *Memory) Columns() []string {
	return append([]string(nil), d.columns...)
}

func (d *Memory) Filter(pred types.Predicate) types.Dataset {
	kept := make([]models.Record, 0, len(d.records)/4)
	for _, r := range d.records {
		if pred(r) {
			kept = append(kept, r)
		}
	}
	return &Memory{columns: d.columns, records: kept}
}

// Project keeps only the given fields. Columns are reported in the source
// schema order, and a field missing from a record stays missing.
func (d *Memory) Project(fields []string) types.Dataset {
	keep := make(map[string]bool, len(fields))
	for _, f := range fields {
		keep[f] = true
	}

	columns := make([]string, 0, len(fields))
	for _, c := range d.columns {
		if keep[c] {
			columns = append(columns, c)
		}
	}

	records := make([]models.Record, len(d.records))
	for i, r := range d.records {
		projected := make(models.Record, len(fields))
		for _, f := range fields {
			if v, ok := r[f]; ok {
				projected[f] = v
			}
		}
		records[i] = projected
	}

	return &Memory{columns: columns, records: records}
}

// WriteLineDelimitedJSON writes one JSON object per line. The file is
// truncated first and is not replaced atomically.
func (d *Memory) WriteLineDelimitedJSON(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	for i, r := range d.records {
		line, err := encodeRecord(d.columns, r)
		if err != nil {
			f.Close()
			return fmt.Errorf("failed to encode record %d: %w", i, err)
		}
		if _, err := w.Write(line); err != nil {
			f.Close()
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			f.Close()
			return err
		}
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// encodeRecord marshals r with keys in schema order, followed by any keys the
// schema does not know about in lexical order.
func encodeRecord(columns []string, r models.Record) ([]byte, error) {
	keys := make([]string, 0, len(r))
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		seen[c] = true
		if _, ok := r[c]; ok {
			keys = append(keys, c)
		}
	}
	var extra []string
	for k := range r {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	keys = append(keys, extra...)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSON(&buf, k); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeJSON(&buf, r[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	// Encode always terminates with a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}
