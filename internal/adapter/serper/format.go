package serper

import (
	"encoding/json"
	"fmt"
	"strings"

	"landowebtool/internal/domain"
)

// SearchResultItem is one entry in a normalized search result list.
// Position is omitted for the synthesized answer-box entry.
type SearchResultItem struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Snippet     string `json:"snippet"`
	Position    *int   `json:"position,omitempty"`
	IsAnswerBox bool   `json:"isAnswerBox,omitempty"`
}

// SearchResults is the tool-facing shape of a search response. Everything other
// than Results and Count passes through verbatim and is null when absent.
type SearchResults struct {
	Results          []SearchResultItem `json:"results"`
	Count            int                `json:"count"`
	AnswerBox        json.RawMessage    `json:"answerBox"`
	KnowledgeGraph   json.RawMessage    `json:"knowledgeGraph"`
	RelatedQuestions json.RawMessage    `json:"relatedQuestions"`
	RelatedSearches  json.RawMessage    `json:"relatedSearches"`
	Credits          json.RawMessage    `json:"credits"`
	SearchParameters json.RawMessage    `json:"searchParameters"`
}

// ScrapeResult is the tool-facing shape of a scrape response.
type ScrapeResult struct {
	Title      string `json:"title"`
	URL        string `json:"url"`
	Content    string `json:"content"`
	Markdown   string `json:"markdown"`
	StatusCode int    `json:"statusCode"`
	WordCount  int    `json:"wordCount"`
	Credits    int    `json:"credits"`
	Truncated  bool   `json:"truncated,omitempty"`
}

type organicResult struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Position int    `json:"position"`
}

type answerBox struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Answer  string `json:"answer"`
	Snippet string `json:"snippet"`
}

type searchPayload struct {
	Organic          []organicResult `json:"organic"`
	AnswerBox        json.RawMessage `json:"answerBox"`
	KnowledgeGraph   json.RawMessage `json:"knowledgeGraph"`
	PeopleAlsoAsk    json.RawMessage `json:"peopleAlsoAsk"`
	RelatedSearches  json.RawMessage `json:"relatedSearches"`
	Credits          json.RawMessage `json:"credits"`
	SearchParameters json.RawMessage `json:"searchParameters"`
}

type scrapePayload struct {
	Text       string  `json:"text"`
	Markdown   string  `json:"markdown"`
	StatusCode int     `json:"statusCode"`
	Credits    float64 `json:"credits"`
	Metadata   struct {
		Title string `json:"title"`
	} `json:"metadata"`
}

// FormatSearchResults normalizes a raw search response. An answer box, when
// present, becomes the first result.
func FormatSearchResults(raw json.RawMessage) (*SearchResults, error) {
	body, err := unwrapEnvelope(raw)
	if err != nil {
		return nil, err
	}
	var p searchPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: search payload: %w", domain.ErrResponseFormat, err)
	}

	results := make([]SearchResultItem, 0, len(p.Organic)+1)
	if !isNull(p.AnswerBox) {
		var ab answerBox
		if err := json.Unmarshal(p.AnswerBox, &ab); err != nil {
			return nil, fmt.Errorf("%w: answer box: %w", domain.ErrResponseFormat, err)
		}
		snippet := ab.Answer
		if snippet == "" {
			snippet = ab.Snippet
		}
		results = append(results, SearchResultItem{
			Title:       ab.Title,
			Link:        ab.Link,
			Snippet:     snippet,
			IsAnswerBox: true,
		})
	}
	for _, o := range p.Organic {
		results = append(results, SearchResultItem{
			Title:    o.Title,
			Link:     o.Link,
			Snippet:  o.Snippet,
			Position: &o.Position,
		})
	}

	return &SearchResults{
		Results:          results,
		Count:            len(results),
		AnswerBox:        orNull(p.AnswerBox),
		KnowledgeGraph:   orNull(p.KnowledgeGraph),
		RelatedQuestions: orNull(p.PeopleAlsoAsk),
		RelatedSearches:  orNull(p.RelatedSearches),
		Credits:          orNull(p.Credits),
		SearchParameters: orNull(p.SearchParameters),
	}, nil
}

// FormatScrapeResults normalizes a raw scrape response. The API does not echo the
// page URL, so pageURL is the one the caller requested.
func FormatScrapeResults(raw json.RawMessage, pageURL string) (*ScrapeResult, error) {
	body, err := unwrapEnvelope(raw)
	if err != nil {
		return nil, err
	}
	var p scrapePayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: scrape payload: %w", domain.ErrResponseFormat, err)
	}

	status := p.StatusCode
	if status == 0 {
		status = 200
	}
	return &ScrapeResult{
		Title:      p.Metadata.Title,
		URL:        pageURL,
		Content:    p.Text,
		Markdown:   p.Markdown,
		StatusCode: status,
		WordCount:  len(strings.Fields(p.Text)),
		Credits:    int(p.Credits),
	}, nil
}
