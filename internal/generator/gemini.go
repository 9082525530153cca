// Package generator produces article drafts with the Gemini API and
// sanitizes the returned markup before it enters the pipeline.
package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/pagelift/pagelift/internal/seo"
)

// Config holds the Gemini client settings.
type Config struct {
	APIKey      string
	Model       string
	TargetWords int
}

// contentModel is the slice of *genai.GenerativeModel the generator needs.
type contentModel interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Gemini generates drafts through the Gemini API. It implements
// seo.Generator.
type Gemini struct {
	client *genai.Client
	model  contentModel
	name   string
	cfg    Config
	clock  seo.Clock
	logger *zap.Logger
}

var _ seo.Generator = (*Gemini)(nil)

// New dials the Gemini API and prepares the configured model.
func New(ctx context.Context, cfg Config, clock seo.Clock, logger *zap.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("generator: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.TargetWords <= 0 {
		cfg.TargetWords = 1200
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("generator: creating client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  client.GenerativeModel(cfg.Model),
		name:   cfg.Model,
		cfg:    cfg,
		clock:  clock,
		logger: logger,
	}, nil
}

// Close releases the underlying API client.
func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

// Generate asks the model for a titled HTML article on the requested topic.
// The returned draft is already sanitized.
func (g *Gemini) Generate(ctx context.Context, req seo.GenerationRequest) (seo.Draft, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return seo.Draft{}, fmt.Errorf("generator: topic is required")
	}
	words := req.TargetWords
	if words <= 0 {
		words = g.cfg.TargetWords
	}

	prompt := buildPrompt(req, words)
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return seo.Draft{}, fmt.Errorf("generator: generating content: %w", err)
	}

	title, html, err := parseDraft(responseText(resp))
	if err != nil {
		return seo.Draft{}, err
	}

	draft := seo.Draft{
		Topic:       req.Topic,
		Title:       title,
		HTML:        Sanitize(html),
		Keywords:    req.Keywords,
		Model:       g.name,
		GeneratedAt: g.clock.Now(),
	}
	g.logger.Debug("draft generated",
		zap.String("topic", req.Topic),
		zap.String("model", g.name),
		zap.Int("html_bytes", len(draft.HTML)),
	)
	return draft, nil
}

func buildPrompt(req seo.GenerationRequest, targetWords int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write an SEO-optimized article of roughly %d words about: %s\n\n", targetWords, req.Topic)
	if len(req.Keywords) > 0 {
		fmt.Fprintf(&b, "Work these keywords in naturally: %s\n", strings.Join(req.Keywords, ", "))
	}
	if req.SiteContext != "" {
		fmt.Fprintf(&b, "The article is for this site: %s\n", req.SiteContext)
	}
	b.WriteString(`
Respond with a single JSON object and nothing else:
{"title": "<the article title, 30-60 characters>", "html": "<the article body as HTML using p, h2, h3, ul, ol and li tags only>"}

Do not include the title inside the HTML body. Do not use markdown.`)
	return b.String()
}

// responseText concatenates the text parts of every candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}
	return b.String()
}

// parseDraft decodes the model's JSON reply, tolerating the code fences
// Gemini sometimes wraps it in.
func parseDraft(raw string) (title, html string, err error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", fmt.Errorf("generator: empty model response")
	}

	var out struct {
		Title string `json:"title"`
		HTML  string `json:"html"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return "", "", fmt.Errorf("generator: decoding model response: %w", err)
	}
	if strings.TrimSpace(out.Title) == "" || strings.TrimSpace(out.HTML) == "" {
		return "", "", fmt.Errorf("generator: model response missing title or html")
	}
	return strings.TrimSpace(out.Title), out.HTML, nil
}
