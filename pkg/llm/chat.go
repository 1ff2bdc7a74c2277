package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

const defaultTranslatePrompt = `Sen uzman bir İngilizce-Türkçe çevirmensin. Sana verilen metinleri Türkçeye çevir ve SADECE bir JSON objesi döndür.

KURALLAR:
1. Anlam bütünlüğünü koru ve akıcı bir Türkçe kullan.
2. Başka hiçbir metin veya açıklama ekleme.
3. JSON anahtarları 'trSoru' ve 'trInsanCevap' olmalıdır.
4. JSON değerlerinin içine yeni satır karakteri koyma.

{"trSoru": "...", "trInsanCevap": "..."}`

const defaultAnswerPrompt = `Sen bir yapay zeka değilsin. İnternette bir ankete katılan sıradan bir insansın.
Sana sorulan soruyu kendi fikirlerinle, doğal ve samimi bir dille cevapla.

KURALLAR:
1. Yapay zeka olduğunu asla belli etme.
2. Ansiklopedik olma, her şeyi bilmek zorunda değilsin.
3. Resmi veya akademik bir dil kullanma.
4. Cevabın 3-4 cümle olsun.
5. Ara sıra küçük yazım hataları yapabilirsin ama abartma.

Sadece sorulan soruya odaklan ve cevabını ver.`

var (
	ErrEmptyResponse = errors.New("empty response from LLM")
	ErrMissingKeys   = errors.New("translation is missing trSoru/trInsanCevap")
)

// Generator is the part of llms.Model the chat engine needs.
type Generator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Model            string
	TranslationModel string
	Temperature      float64
	MaxTokens        int
	BaseURL          string // Ollama server URL
	AnswerPrompt     string
	TranslatePrompt  string
}

// Translation holds a Turkish rendition of a question and its human answer.
type Translation struct {
	Question string
	Answer   string
}

// ChatEngine translates source questions and answers them in a human persona.
type ChatEngine struct {
	config    ChatConfig
	llm       Generator
	translate Generator
}

func applyChatDefaults(config ChatConfig) (ChatConfig, error) {
	if config.Model == "" {
		config.Model = "gemma3:27b"
	}
	if config.TranslationModel == "" {
		config.TranslationModel = config.Model
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return config, fmt.Errorf("temperature must be between 0 and 2")
	} else if config.Temperature == 0 {
		config.Temperature = 0.7
	}
	if config.MaxTokens < 0 {
		return config, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434" // Default Ollama URL
	}
	if config.AnswerPrompt == "" {
		config.AnswerPrompt = defaultAnswerPrompt
	}
	if config.TranslatePrompt == "" {
		config.TranslatePrompt = defaultTranslatePrompt
	}
	return config, nil
}

// NewWithConfig creates a new ChatEngine backed by Ollama.
func NewWithConfig(config ChatConfig) (*ChatEngine, error) {
	config, err := applyChatDefaults(config)
	if err != nil {
		return nil, err
	}

	answerLLM, err := ollama.New(ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	translateLLM, err := ollama.New(ollama.WithModel(config.TranslationModel),
		ollama.WithServerURL(config.BaseURL),
		ollama.WithFormat("json"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize translation LLM: %w", err)
	}

	return &ChatEngine{
		config:    config,
		llm:       answerLLM,
		translate: translateLLM,
	}, nil
}

// NewWithGenerators creates a ChatEngine over caller-supplied models.
func NewWithGenerators(config ChatConfig, answer, translate Generator) (*ChatEngine, error) {
	config, err := applyChatDefaults(config)
	if err != nil {
		return nil, err
	}
	if translate == nil {
		translate = answer
	}
	return &ChatEngine{config: config, llm: answer, translate: translate}, nil
}

func (ce *ChatEngine) generate(ctx context.Context, model Generator, system, human string) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, human),
	}

	response, err := model.GenerateContent(ctx, content,
		llms.WithTemperature(ce.config.Temperature),
		llms.WithMaxTokens(ce.config.MaxTokens))
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}

	if response == nil || len(response.Choices) == 0 || response.Choices[0] == nil {
		return "", ErrEmptyResponse
	}

	return response.Choices[0].Content, nil
}

// Translate renders an English question and answer into Turkish.
func (ce *ChatEngine) Translate(ctx context.Context, question, answer string) (*Translation, error) {
	prompt := fmt.Sprintf("Lütfen aşağıdaki metinleri çevir:\nSoru: %s\nCevap: %s", question, answer)

	raw, err := ce.generate(ctx, ce.translate, ce.config.TranslatePrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("translation failed: %w", err)
	}

	return parseTranslation(raw)
}

// Answer produces a short, human-sounding answer to a Turkish question.
func (ce *ChatEngine) Answer(ctx context.Context, question string) (string, error) {
	raw, err := ce.generate(ctx, ce.llm, ce.config.AnswerPrompt, question)
	if err != nil {
		return "", fmt.Errorf("answer failed: %w", err)
	}

	answer := strings.TrimSpace(raw)
	if answer == "" {
		return "", ErrEmptyResponse
	}
	return answer, nil
}

func parseTranslation(raw string) (*Translation, error) {
	sanitized := strings.NewReplacer("\r", " ", "\n", " ").Replace(raw)
	sanitized = strings.TrimSpace(sanitized)
	if sanitized == "" {
		return nil, ErrEmptyResponse
	}

	// Models sometimes wrap the object in prose or a code fence.
	if start, end := strings.Index(sanitized, "{"), strings.LastIndex(sanitized, "}"); start >= 0 && end > start {
		sanitized = sanitized[start : end+1]
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(sanitized), &parsed); err != nil {
		return nil, fmt.Errorf("translation response was not valid JSON: %w", err)
	}

	question := firstString(parsed, "trSoru", "Soru", "soru")
	answer := firstString(parsed, "trInsanCevap", "Cevap", "cevap")
	if question == "" || answer == "" {
		return nil, ErrMissingKeys
	}

	return &Translation{Question: question, Answer: answer}, nil
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
