package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/hostkb/internal/apperr"
)

const (
	defaultWebResults = 5
	maxWebResults     = 10
)

// WebSearch queries an HTTP search API that answers
// GET {endpoint}?q=...&count=N with {"results": [{"title","url","snippet"}]}.
type WebSearch struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewWebSearch creates the web_search tool.
func NewWebSearch(endpoint, apiKey string, timeout time.Duration) *WebSearch {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebSearch{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

var webSearchTool = mcp.NewTool("web_search",
	mcp.WithDescription("Search the web for information outside the knowledge base, such as local events, restaurants or transport."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Search query"),
	),
	mcp.WithNumber("max_results",
		mcp.Description("Maximum number of results (default 5)"),
		mcp.Min(1),
		mcp.Max(maxWebResults),
	),
)

func (w *WebSearch) Definition() mcp.Tool { return webSearchTool }

type webSearchArgs struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type webSearchResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Snippet string `json:"snippet"`
	} `json:"results"`
}

func (w *WebSearch) Invoke(ctx context.Context, raw json.RawMessage) (string, error) {
	var args webSearchArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	if strings.TrimSpace(args.Query) == "" {
		return "", apperr.Validation("query", "is required")
	}
	if args.MaxResults == 0 {
		args.MaxResults = defaultWebResults
	}
	if args.MaxResults < 0 || args.MaxResults > maxWebResults {
		return "", apperr.Validation("max_results", "must be between 1 and %d", maxWebResults)
	}

	u, err := url.Parse(w.endpoint)
	if err != nil {
		return "", apperr.Configuration("tools.web_search.endpoint", "invalid URL: %v", err)
	}
	q := u.Query()
	q.Set("q", args.Query)
	q.Set("count", strconv.Itoa(args.MaxResults))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if w.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.apiKey)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return "", apperr.Unavailable("web_search", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		statusErr := fmt.Errorf("search API returned status %d: %s", resp.StatusCode, body)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", apperr.Unavailable("web_search", statusErr)
		}
		return "", statusErr
	}

	var parsed webSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding search response: %w", err)
	}
	if len(parsed.Results) == 0 {
		return "No web results found.", nil
	}
	if len(parsed.Results) > args.MaxResults {
		parsed.Results = parsed.Results[:args.MaxResults]
	}

	var sb strings.Builder
	for i, r := range parsed.Results {
		fmt.Fprintf(&sb, "%d. %s\n   %s\n", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&sb, "   %s\n", r.Snippet)
		}
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
