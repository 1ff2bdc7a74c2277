package dataset

import (
	"strings"
	"unicode"

	"github.com/xhad/qafilter/internal/models"
	"github.com/xhad/qafilter/internal/types"
)

// WordCount returns the number of whitespace-delimited tokens in s. The
// information separators U+001C to U+001F count as whitespace too.
func WordCount(s string) int {
	return len(strings.FieldsFunc(s, isSeparator))
}

func isSeparator(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
}

// MinWords keeps records whose field holds a string of at least min words.
// A null or missing field is never kept.
func MinWords(field string, min int) types.Predicate {
	return func(r models.Record) bool {
		text, ok := r.String(field)
		return ok && WordCount(text) >= min
	}
}
