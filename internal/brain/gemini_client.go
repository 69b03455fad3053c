package brain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/core/domain"
	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/core/ports"
)

// Free-tier budgets. Models not listed here get defaultBudget.
var knownBudgets = map[string]modelConfig{
	"gemini-2.0-flash":      {RPM: 15, RPD: 1500},
	"gemini-2.5-flash":      {RPM: 10, RPD: 250},
	"gemini-2.5-flash-lite": {RPM: 15, RPD: 1000},
}

var defaultBudget = modelConfig{RPM: 10, RPD: 250}

type modelConfig struct {
	Name string
	RPM  int
	RPD  int
}

// contentModels is the slice of *genai.Models the brain uses.
type contentModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiBrain generates text with Gemini, falling back through Models in
// order when one is rate limited, exhausted or unavailable.
type GeminiBrain struct {
	Models []modelConfig

	models contentModels
	log    *slog.Logger

	dailyCount   map[string]int
	minuteCount  map[string]int
	lastResetDay time.Time
	lastResetMin time.Time
	now          func() time.Time
	mu           sync.Mutex
}

func NewGeminiBrain(ctx context.Context, apiKey string, models []string, log *slog.Logger) (*GeminiBrain, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY is required", domain.ErrConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: gemini client: %v", domain.ErrConfig, err)
	}
	return newGeminiBrain(client.Models, models, log), nil
}

func newGeminiBrain(models contentModels, names []string, log *slog.Logger) *GeminiBrain {
	if log == nil {
		log = slog.Default()
	}
	b := &GeminiBrain{
		models:      models,
		log:         log.With(slog.String("component", "brain")),
		dailyCount:  make(map[string]int),
		minuteCount: make(map[string]int),
		now:         time.Now,
	}
	for _, name := range names {
		cfg, ok := knownBudgets[name]
		if !ok {
			cfg = defaultBudget
		}
		cfg.Name = name
		b.Models = append(b.Models, cfg)
	}
	b.lastResetDay = b.now()
	b.lastResetMin = b.now()
	return b
}

// Ensure implementation
var _ ports.Generator = (*GeminiBrain)(nil)

// Generate returns trimmed model output, or "" after logging the failure.
func (b *GeminiBrain) Generate(ctx context.Context, prompt string) string {
	text, err := b.tryGenerateWithFallback(ctx, prompt)
	if err != nil {
		b.log.ErrorContext(ctx, "gemini generate failed", slog.Any("error", err))
		return ""
	}
	return text
}

func (b *GeminiBrain) tryGenerateWithFallback(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for _, cfg := range b.Models {
		if !b.canUseModel(cfg) {
			b.log.DebugContext(ctx, "model budget spent, skipping", slog.String("model", cfg.Name))
			continue
		}

		result, err := b.models.GenerateContent(ctx, cfg.Name, genai.Text(prompt), nil)
		if err != nil {
			if isFallbackError(err) {
				lastErr = err
				continue
			}
			return "", fmt.Errorf("%w: %s: %v", domain.ErrGeneration, cfg.Name, err)
		}
		b.recordUsage(cfg)

		if text := responseText(result); text != "" {
			return text, nil
		}
		lastErr = fmt.Errorf("%s returned no text", cfg.Name)
	}

	if lastErr == nil {
		lastErr = errors.New("no model within budget")
	}
	return "", fmt.Errorf("%w: all models failed: %v", domain.ErrGeneration, lastErr)
}

func responseText(result *genai.GenerateContentResponse) string {
	if result == nil || len(result.Candidates) == 0 {
		return ""
	}
	content := result.Candidates[0].Content
	if content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range content.Parts {
		if part != nil && !part.Thought {
			sb.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}

func isFallbackError(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 429, 404, 503:
			return true
		}
	}
	errStr := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "rate limit", "exhausted", "404", "not found", "unavailable"} {
		if strings.Contains(errStr, marker) {
			return true
		}
	}
	return false
}

func (b *GeminiBrain) canUseModel(cfg modelConfig) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	if now.YearDay() != b.lastResetDay.YearDay() || now.Year() != b.lastResetDay.Year() {
		b.dailyCount = make(map[string]int)
		b.lastResetDay = now
	}
	if now.Sub(b.lastResetMin) >= time.Minute {
		b.minuteCount = make(map[string]int)
		b.lastResetMin = now
	}
	if b.dailyCount[cfg.Name] >= cfg.RPD {
		return false
	}
	if b.minuteCount[cfg.Name] >= cfg.RPM {
		return false
	}
	return true
}

func (b *GeminiBrain) recordUsage(cfg modelConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dailyCount[cfg.Name]++
	b.minuteCount[cfg.Name]++
}
