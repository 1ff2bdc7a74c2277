package loader

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/xhad/qafilter/internal/models"
	"github.com/xhad/qafilter/internal/types"
	"github.com/xhad/qafilter/pkg/dataset"
)

// FileLoader reads records from a local file holding either one JSON object
// per line or a single JSON array of objects.
type FileLoader struct {
	Path string
}

func NewFile(path string) *FileLoader {
	return &FileLoader{Path: path}
}

func (l *FileLoader) Load(ctx context.Context) (types.Dataset, error) {
	return ReadFile(ctx, l.Path)
}

// ReadFile decodes path keeping the key order of the objects, so the schema
// follows the file and not map iteration order.
func ReadFile(ctx context.Context, path string) (*dataset.Memory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return decode(ctx, bufio.NewReaderSize(f, 1<<20))
}

func decode(ctx context.Context, r *bufio.Reader) (*dataset.Memory, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	s := &schemaBuilder{seen: make(map[string]bool)}
	var records []models.Record

	first, err := peekNonSpace(r)
	if err == io.EOF {
		return dataset.New(nil, nil), nil
	}
	if err != nil {
		return nil, err
	}

	array := first == '['
	if array {
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
	}

	for dec.More() {
		if len(records)%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		keys, rec, err := decodeObject(dec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", len(records), err)
		}
		s.add(keys)
		records = append(records, rec)
	}

	if array {
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
	}

	return dataset.New(s.columns, records), nil
}

func decodeObject(dec *json.Decoder) ([]string, models.Record, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("expected object, got %v", tok)
	}

	var keys []string
	rec := make(models.Record)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key := tok.(string)

		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, nil, fmt.Errorf("field %q: %w", key, err)
		}
		if _, dup := rec[key]; !dup {
			keys = append(keys, key)
		}
		rec[key] = v
	}

	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return keys, rec, nil
}

func peekNonSpace(r *bufio.Reader) (byte, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, r.UnreadByte()
	}
}

type schemaBuilder struct {
	columns []string
	seen    map[string]bool
}

func (s *schemaBuilder) add(keys []string) {
	for _, k := range keys {
		if !s.seen[k] {
			s.seen[k] = true
			s.columns = append(s.columns, k)
		}
	}
}
