package tool

import (
	"context"
	"encoding/json"
	"log/slog"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"

	"landowebtool/internal/adapter/serper"
	"landowebtool/internal/domain"
	"landowebtool/internal/infra/tracer"
)

const (
	ScrapeToolName = "scrape"

	// MaxScrapeContent caps the page text returned to the model, in bytes.
	MaxScrapeContent = 100_000

	maxDisplayURL = 50
)

// WebScrapeTool extracts page content through the Serper scrape endpoint.
type WebScrapeTool struct {
	serperTool
}

var (
	_ domain.Tool             = (*WebScrapeTool)(nil)
	_ domain.MessageFormatter = (*WebScrapeTool)(nil)
	_ domain.RegistrationGate = (*WebScrapeTool)(nil)
)

// NewWebScrapeTool creates the scrape tool. Settings are read on every call.
func NewWebScrapeTool(settings domain.SettingsProvider, base serper.Config, logger *slog.Logger) *WebScrapeTool {
	return &WebScrapeTool{serperTool: newSerperTool(settings, base, logger)}
}

func (t *WebScrapeTool) Name() string { return ScrapeToolName }
func (t *WebScrapeTool) Description() string {
	return "Extract content from a web page using Serper API. Use this tool when you need to read the full content of a specific URL."
}

func (t *WebScrapeTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		DisplayName: "Web Scraping",
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"url": {"type": "string", "description": "The website address (URL) of the content to be obtained, which can usually be obtained from the search results."}
			},
			"required": ["url"]
		}`),
	}
}

type webScrapeParams struct {
	URL string `json:"url"`
}

func (t *WebScrapeTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, ScrapeToolName, t.logger, params,
		func(ctx context.Context, span trace.Span, p webScrapeParams) (any, error) {
			client, _, err := t.client()
			if err != nil {
				return nil, WithField(err, "url", p.URL)
			}
			span.SetAttributes(tracer.StringAttr("tool.url", p.URL))

			raw, err := client.Scrape(ctx, p.URL)
			if err != nil {
				return nil, WithField(err, "url", p.URL)
			}
			t.logger.Debug("raw scrape response", "bytes", len(raw), "call_id", domain.CallIDFromContext(ctx))

			result, err := serper.FormatScrapeResults(raw, p.URL)
			if err != nil {
				return nil, WithField(err, "url", p.URL)
			}
			if len(result.Content) > MaxScrapeContent {
				result.Content = truncateUTF8(result.Content, MaxScrapeContent)
				result.Truncated = true
			}
			span.SetAttributes(tracer.IntAttr("tool.word_count", result.WordCount))
			return result, nil
		},
	)
}

// FormatMessage renders the in-flight status line, shortening long URLs.
func (t *WebScrapeTool) FormatMessage(params json.RawMessage) string {
	var p webScrapeParams
	_ = json.Unmarshal(params, &p)
	display := p.URL
	if len(display) > maxDisplayURL {
		display = truncateUTF8(display, maxDisplayURL-3) + "..."
	}
	return "Scraping: " + display
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
