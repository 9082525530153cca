package generator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pagelift/pagelift/internal/seo"
)

type fakeModel struct {
	resp *genai.GenerateContentResponse
	err  error

	prompts []string
}

func (f *fakeModel) GenerateContent(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	for _, p := range parts {
		if text, ok := p.(genai.Text); ok {
			f.prompts = append(f.prompts, string(text))
		}
	}
	return f.resp, f.err
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func textResponse(chunks ...string) *genai.GenerateContentResponse {
	parts := make([]genai.Part, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, genai.Text(c))
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: parts}},
		},
	}
}

func testGemini(model contentModel) *Gemini {
	return &Gemini{
		model:  model,
		name:   "gemini-1.5-flash",
		cfg:    Config{TargetWords: 800},
		clock:  fixedClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
		logger: zap.NewNop(),
	}
}

func TestGenerateParsesModelResponse(t *testing.T) {
	t.Parallel()

	model := &fakeModel{resp: textResponse(
		`{"title": "Ten Ways to Brew Better Coffee", "html": "<p>Fresh beans matter.</p><script>alert(1)</script>"}`,
	)}
	g := testGemini(model)

	draft, err := g.Generate(context.Background(), seo.GenerationRequest{
		Topic:    "brewing better coffee",
		Keywords: []string{"coffee", "brewing"},
	})
	require.NoError(t, err)

	require.Equal(t, "Ten Ways to Brew Better Coffee", draft.Title)
	require.Equal(t, "brewing better coffee", draft.Topic)
	require.Equal(t, "gemini-1.5-flash", draft.Model)
	require.Equal(t, []string{"coffee", "brewing"}, draft.Keywords)
	require.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), draft.GeneratedAt)

	require.Contains(t, draft.HTML, "<p>Fresh beans matter.</p>")
	require.NotContains(t, draft.HTML, "script")
}

func TestGenerateStripsCodeFences(t *testing.T) {
	t.Parallel()

	model := &fakeModel{resp: textResponse(
		"```json\n" + `{"title": "Fenced Title", "html": "<p>body</p>"}` + "\n```",
	)}
	g := testGemini(model)

	draft, err := g.Generate(context.Background(), seo.GenerationRequest{Topic: "topic"})
	require.NoError(t, err)
	require.Equal(t, "Fenced Title", draft.Title)
}

func TestGeneratePromptIncludesRequest(t *testing.T) {
	t.Parallel()

	model := &fakeModel{resp: textResponse(`{"title": "T is long enough here", "html": "<p>b</p>"}`)}
	g := testGemini(model)

	_, err := g.Generate(context.Background(), seo.GenerationRequest{
		Topic:       "espresso dialing",
		Keywords:    []string{"grind size", "extraction"},
		TargetWords: 500,
		SiteContext: "a specialty coffee blog",
	})
	require.NoError(t, err)

	require.Len(t, model.prompts, 1)
	prompt := model.prompts[0]
	require.Contains(t, prompt, "espresso dialing")
	require.Contains(t, prompt, "500 words")
	require.Contains(t, prompt, "grind size, extraction")
	require.Contains(t, prompt, "a specialty coffee blog")
}

func TestGenerateRequiresTopic(t *testing.T) {
	t.Parallel()

	g := testGemini(&fakeModel{})
	_, err := g.Generate(context.Background(), seo.GenerationRequest{Topic: "   "})
	require.ErrorContains(t, err, "topic is required")
}

func TestGenerateWrapsModelError(t *testing.T) {
	t.Parallel()

	g := testGemini(&fakeModel{err: errors.New("quota exceeded")})
	_, err := g.Generate(context.Background(), seo.GenerationRequest{Topic: "topic"})
	require.ErrorContains(t, err, "quota exceeded")
}

func TestGenerateRejectsMalformedResponses(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"empty":         "",
		"not json":      "here is your article",
		"missing title": `{"html": "<p>b</p>"}`,
		"missing html":  `{"title": "only a title"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			g := testGemini(&fakeModel{resp: textResponse(raw)})
			_, err := g.Generate(context.Background(), seo.GenerationRequest{Topic: "topic"})
			require.Error(t, err)
		})
	}
}

func TestSanitizeKeepsFormattingTags(t *testing.T) {
	t.Parallel()

	in := `<h2 onclick="x()">Heading</h2><p>text</p><iframe src="x"></iframe>`
	out := Sanitize(in)
	require.Contains(t, out, "<h2>Heading</h2>")
	require.Contains(t, out, "<p>text</p>")
	require.NotContains(t, out, "iframe")
	require.NotContains(t, out, "onclick")
}
