package processor

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/xhad/qafilter/internal/models"
	"golang.org/x/net/html"
)

type ProcessorConfig struct {
	QuestionField string
	AnswerField   string
	MaxLength     int // in runes, 0 keeps everything
	NoisePatterns []string
}

// Processor turns raw dataset rows into clean question and answer text.
type Processor struct {
	config ProcessorConfig
}

func NewWithConfig(config ProcessorConfig) Processor {
	if config.QuestionField == "" {
		config.QuestionField = "question_title"
	}
	if config.AnswerField == "" {
		config.AnswerField = "best_answer"
	}
	if config.NoisePatterns == nil {
		config.NoisePatterns = getNoisePatterns()
	}

	return Processor{
		config: config,
	}
}

// Process extracts the cleaned question and answer of a record.
func (p *Processor) Process(r models.Record) (string, string, error) {
	question, ok := r.String(p.config.QuestionField)
	if !ok {
		return "", "", fmt.Errorf("record has no %s", p.config.QuestionField)
	}
	answer, ok := r.String(p.config.AnswerField)
	if !ok {
		return "", "", fmt.Errorf("record has no %s", p.config.AnswerField)
	}

	question = p.Clean(question)
	answer = p.Clean(answer)
	if question == "" || answer == "" {
		return "", "", fmt.Errorf("record is empty after cleaning")
	}

	return question, answer, nil
}

// Clean strips markup and escaped line breaks, collapses whitespace and
// truncates to MaxLength on a word boundary.
func (p *Processor) Clean(text string) string {
	text = strings.NewReplacer(`\n`, " ", `\r`, " ", `\t`, " ").Replace(text)
	text = stripMarkup(text)

	for _, pattern := range p.config.NoisePatterns {
		text = strings.ReplaceAll(text, pattern, "")
	}

	text = strings.Join(strings.Fields(text), " ")
	return p.truncate(text)
}

func (p *Processor) truncate(text string) string {
	if p.config.MaxLength <= 0 || utf8.RuneCountInString(text) <= p.config.MaxLength {
		return text
	}

	runes := []rune(text)[:p.config.MaxLength]
	cut := string(runes)
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + "..."
}

// Only real tags go through the parser; "a<b" would otherwise open an element
// and swallow the rest of the text.
var markupTag = regexp.MustCompile(`(?i)</?(br|p|li|ul|ol|div|span|b|i|u|a|strong|em|font|img|hr|blockquote|pre|code|table|tr|td|h[1-6])(\s*/?|\s+[a-z][\w-]*\s*=[^<>]*)>`)

func stripMarkup(text string) string {
	if !markupTag.MatchString(text) {
		return html.UnescapeString(text)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return text
	}
	doc.Find("br, p, li").Each(func(_ int, s *goquery.Selection) {
		s.BeforeNodes(&html.Node{Type: html.TextNode, Data: " "})
	})
	return doc.Text()
}

// Yahoo Answers boilerplate that carries no meaning in a quiz.
func getNoisePatterns() []string {
	return []string{
		"Source(s):",
		"Answered by",
	}
}
