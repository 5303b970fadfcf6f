package tool

import (
	"context"
	"encoding/json"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"landowebtool/internal/adapter/serper"
	"landowebtool/internal/domain"
	"landowebtool/internal/infra/tracer"
)

const (
	SearchToolName = "search"

	// defaultSearchCount applies when the settings carry no result count.
	defaultSearchCount = 5
)

// WebSearchTool searches the web through the Serper API.
type WebSearchTool struct {
	serperTool
}

var (
	_ domain.Tool             = (*WebSearchTool)(nil)
	_ domain.MessageFormatter = (*WebSearchTool)(nil)
	_ domain.RegistrationGate = (*WebSearchTool)(nil)
)

// NewWebSearchTool creates the search tool. Settings are read on every call.
func NewWebSearchTool(settings domain.SettingsProvider, base serper.Config, logger *slog.Logger) *WebSearchTool {
	return &WebSearchTool{serperTool: newSerperTool(settings, base, logger)}
}

func (t *WebSearchTool) Name() string { return SearchToolName }
func (t *WebSearchTool) Description() string {
	return "Search the web for information using Serper API. Use this tool when you need to find current information, facts, or data from the internet."
}

func (t *WebSearchTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		DisplayName: "Web Search",
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "The content the user wants to search for, extracted from the user question or chat context."}
			},
			"required": ["query"]
		}`),
	}
}

type webSearchParams struct {
	Query string `json:"query"`
}

func (t *WebSearchTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, SearchToolName, t.logger, params,
		func(ctx context.Context, span trace.Span, p webSearchParams) (any, error) {
			client, st, err := t.client()
			if err != nil {
				return nil, err
			}
			span.SetAttributes(tracer.StringAttr("tool.query", p.Query))

			num := st.MaxResults
			if num == 0 {
				num = defaultSearchCount
			} else {
				num = st.Normalize().MaxResults
			}

			raw, err := client.Search(ctx, p.Query, serper.SearchOptions{Num: num})
			if err != nil {
				return nil, err
			}
			t.logger.Debug("raw search response", "bytes", len(raw), "call_id", domain.CallIDFromContext(ctx))

			results, err := serper.FormatSearchResults(raw)
			if err != nil {
				return nil, err
			}
			span.SetAttributes(tracer.IntAttr("tool.results", results.Count))
			return results, nil
		},
	)
}

// FormatMessage renders the in-flight status line for the host UI.
func (t *WebSearchTool) FormatMessage(params json.RawMessage) string {
	var p webSearchParams
	_ = json.Unmarshal(params, &p)
	return `Searching for: "` + p.Query + `"`
}
