package agents

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/slaimbot/goslaim/internal/llm"
	. "github.com/slaimbot/goslaim/internal/logging"
)

const searchSummaryPrompt = "Ниже результаты поиска в интернете по запросу пользователя. " +
	"Сделай краткую выжимку на русском языке и укажи самые полезные ссылки.\n\n" +
	"Запрос: %s\n\nРезультаты:\n%s"

// SearchResult is one parsed search hit.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}

// WebSearch queries an HTML search endpoint, scrapes the result list and
// summarizes it through the main model.
type WebSearch struct {
	think      *Think
	endpoint   string
	userAgent  string
	maxResults int
	client     *http.Client
}

func NewWebSearch(think *Think, endpoint, userAgent string, maxResults int) *WebSearch {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &WebSearch{
		think:      think,
		endpoint:   endpoint,
		userAgent:  userAgent,
		maxResults: maxResults,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Respond runs the search and returns user-facing text. Fetch and parse
// failures resolve to apology text.
func (a *WebSearch) Respond(ctx context.Context, query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return "Пожалуйста, укажите поисковый запрос после команды /search"
	}

	results, err := a.Search(ctx, query)
	if err != nil {
		L_error("web_search: query failed", "query", query, "error", err)
		return llm.FormatErrorForUser(err)
	}
	if len(results) == 0 {
		return "Ничего не нашлось 😔 Попробуй переформулировать запрос."
	}

	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n   %s\n   %s\n", i+1, r.Title, r.URL, r.Snippet)
	}

	summary, err := a.think.Summarize(ctx, fmt.Sprintf(searchSummaryPrompt, query, b.String()))
	if err != nil {
		L_warn("web_search: summarize failed, returning raw results", "error", err)
		return "Вот что я нашёл:\n\n" + b.String()
	}
	return summary
}

// Search fetches the result page and extracts up to maxResults hits.
func (a *WebSearch) Search(ctx context.Context, query string) ([]SearchResult, error) {
	reqURL, err := url.Parse(a.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse search endpoint: %w", err)
	}
	q := reqURL.Query()
	q.Set("q", query)
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9,en;q=0.5")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, llm.ErrUnavailable{URL: a.endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, llm.ErrBackend{Status: resp.StatusCode, Detail: "search engine returned non-OK status"}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}

	results := parseSearchResults(string(body), a.maxResults)
	L_debug("web_search: parsed results", "query", query, "count", len(results))
	return results, nil
}

// parseSearchResults walks the DuckDuckGo HTML layout: each hit is a node
// with class "result", the link carries class "result__a" and the snippet
// class "result__snippet".
func parseSearchResults(page string, max int) []SearchResult {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil
	}

	var results []SearchResult
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= max {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" && hasClass(n, "result__a") {
			r := SearchResult{
				Title: strings.TrimSpace(textContent(n)),
				URL:   cleanResultURL(attr(n, "href")),
			}
			if snippet := findSibling(n, "result__snippet"); snippet != nil {
				r.Snippet = strings.TrimSpace(textContent(snippet))
			}
			if r.Title != "" && r.URL != "" {
				results = append(results, r)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results
}

// cleanResultURL unwraps DuckDuckGo's redirect links (/l/?uddg=<target>).
func cleanResultURL(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" {
		return "https:" + href
	}
	return href
}

func hasClass(n *html.Node, class string) bool {
	for _, field := range strings.Fields(attr(n, "class")) {
		if field == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// findSibling searches the enclosing result block for a node carrying the
// given class.
func findSibling(n *html.Node, class string) *html.Node {
	block := n.Parent
	for block != nil && !hasClass(block, "result") {
		block = block.Parent
	}
	if block == nil {
		block = n.Parent
	}
	if block == nil {
		return nil
	}

	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && hasClass(n, class) {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(block)
	return found
}
