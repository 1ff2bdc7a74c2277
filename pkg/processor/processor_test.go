package processor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/qafilter/internal/models"
	"github.com/xhad/qafilter/pkg/processor"
)

func TestProcessor_Clean(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{})

	tests := []struct {
		name string
		text string
		want string
	}{
		{"plain", "Just   some\ttext ", "Just some text"},
		{"escaped newlines", `first line\nsecond line`, "first line second line"},
		{"line breaks", "one<br />two<br>three", "one two three"},
		{"entities", "salt &amp; pepper", "salt & pepper"},
		{"comparison survives", "a < b and c > d", "a < b and c > d"},
		{"tight comparison", "if a<b then the smaller one wins every single time", "if a<b then the smaller one wins every single time"},
		{"comparison with closing angle", "if a<b then x>y holds", "if a<b then x>y holds"},
		{"entity without markup", "x &lt; 5 &amp;&amp; y", "x < 5 && y"},
		{"tag with attributes", `see <a href="http://example.com">this</a> page`, "see this page"},
		{"noise", "It works. Source(s): me", "It works. me"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Clean(tt.text))
		})
	}
}

func TestProcessor_Truncate(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{MaxLength: 12})

	assert.Equal(t, "short", p.Clean("short"))
	assert.Equal(t, "hello big...", p.Clean("hello big wide world"))
}

func TestProcessor_Process(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{})

	q, a, err := p.Process(models.Record{
		"question_title": "Why is the sky blue?",
		"best_answer":    "Rayleigh<br />scattering",
	})
	require.NoError(t, err)
	assert.Equal(t, "Why is the sky blue?", q)
	assert.Equal(t, "Rayleigh scattering", a)

	_, _, err = p.Process(models.Record{"question_title": "q", "best_answer": nil})
	assert.Error(t, err)

	_, _, err = p.Process(models.Record{"best_answer": "a"})
	assert.Error(t, err)

	_, _, err = p.Process(models.Record{"question_title": "q", "best_answer": "<br/>"})
	assert.Error(t, err)
}
