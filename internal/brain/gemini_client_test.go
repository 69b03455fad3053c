package brain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/logging"
)

type fakeModels struct {
	calls   []string
	replies map[string]func() (*genai.GenerateContentResponse, error)
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls = append(f.calls, model)
	if fn, ok := f.replies[model]; ok {
		return fn()
	}
	return nil, errors.New("unexpected model " + model)
}

func textResponse(parts ...string) func() (*genai.GenerateContentResponse, error) {
	return func() (*genai.GenerateContentResponse, error) {
		content := &genai.Content{Role: "model"}
		for _, p := range parts {
			content.Parts = append(content.Parts, &genai.Part{Text: p})
		}
		return &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{Content: content}},
		}, nil
	}
}

func failWith(err error) func() (*genai.GenerateContentResponse, error) {
	return func() (*genai.GenerateContentResponse, error) { return nil, err }
}

func TestGenerate_TrimsText(t *testing.T) {
	models := &fakeModels{replies: map[string]func() (*genai.GenerateContentResponse, error){
		"gemini-2.0-flash": textResponse("  quiet rooms, ", "loud thoughts\n"),
	}}
	b := newGeminiBrain(models, []string{"gemini-2.0-flash"}, logging.Discard())

	assert.Equal(t, "quiet rooms, loud thoughts", b.Generate(context.Background(), "Mood: numb"))
}

func TestGenerate_FallsBackOnQuota(t *testing.T) {
	models := &fakeModels{replies: map[string]func() (*genai.GenerateContentResponse, error){
		"gemini-2.5-flash":      failWith(genai.APIError{Code: 429, Message: "RESOURCE_EXHAUSTED"}),
		"gemini-2.5-flash-lite": textResponse("second model"),
	}}
	b := newGeminiBrain(models, []string{"gemini-2.5-flash", "gemini-2.5-flash-lite"}, logging.Discard())

	assert.Equal(t, "second model", b.Generate(context.Background(), "p"))
	assert.Equal(t, []string{"gemini-2.5-flash", "gemini-2.5-flash-lite"}, models.calls)
}

func TestGenerate_HardErrorReturnsEmpty(t *testing.T) {
	models := &fakeModels{replies: map[string]func() (*genai.GenerateContentResponse, error){
		"a": failWith(errors.New("permission denied")),
		"b": textResponse("never reached"),
	}}
	b := newGeminiBrain(models, []string{"a", "b"}, logging.Discard())

	assert.Equal(t, "", b.Generate(context.Background(), "p"))
	assert.Equal(t, []string{"a"}, models.calls)
}

func TestGenerate_EmptyCandidates(t *testing.T) {
	models := &fakeModels{replies: map[string]func() (*genai.GenerateContentResponse, error){
		"a": func() (*genai.GenerateContentResponse, error) { return &genai.GenerateContentResponse{}, nil },
	}}
	b := newGeminiBrain(models, []string{"a"}, logging.Discard())

	assert.Equal(t, "", b.Generate(context.Background(), "p"))
}

func TestGenerate_RespectsMinuteBudget(t *testing.T) {
	models := &fakeModels{replies: map[string]func() (*genai.GenerateContentResponse, error){
		"gemini-2.5-flash": textResponse("ok"),
	}}
	b := newGeminiBrain(models, []string{"gemini-2.5-flash"}, logging.Discard())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	b.lastResetMin, b.lastResetDay = now, now

	for i := 0; i < 10; i++ {
		require.Equal(t, "ok", b.Generate(context.Background(), "p"))
	}
	assert.Equal(t, "", b.Generate(context.Background(), "p"), "11th call in the same minute is over budget")
	assert.Len(t, models.calls, 10)

	now = now.Add(time.Minute)
	assert.Equal(t, "ok", b.Generate(context.Background(), "p"))
}

func TestIsFallbackError(t *testing.T) {
	assert.True(t, isFallbackError(genai.APIError{Code: 404}))
	assert.True(t, isFallbackError(errors.New("quota exhausted")))
	assert.False(t, isFallbackError(errors.New("invalid argument")))
}

func TestNewGeminiBrain_RequiresKey(t *testing.T) {
	_, err := NewGeminiBrain(context.Background(), "", nil, nil)
	require.Error(t, err)
}
