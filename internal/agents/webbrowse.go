package agents

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	readability "github.com/go-shiori/go-readability"

	"github.com/slaimbot/goslaim/internal/llm"
	. "github.com/slaimbot/goslaim/internal/logging"
)

const browseSummaryPrompt = "Ниже содержимое веб-страницы. Перескажи её суть " +
	"на русском языке, кратко и по делу.\n\nЗаголовок: %s\nАдрес: %s\n\nСодержимое:\n%s"

const browseMaxContentChars = 16000

// WebBrowse fetches a page, extracts the readable article and summarizes
// it through the main model.
type WebBrowse struct {
	think     *Think
	userAgent string
	client    *http.Client
}

func NewWebBrowse(think *Think, userAgent string) *WebBrowse {
	return &WebBrowse{
		think:     think,
		userAgent: userAgent,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Respond fetches rawURL and returns user-facing summary text.
func (a *WebBrowse) Respond(ctx context.Context, rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "Пожалуйста, укажите адрес страницы."
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		rawURL = "https://" + rawURL
	}

	title, content, err := a.fetch(ctx, rawURL)
	if err != nil {
		L_error("web_browse: fetch failed", "url", rawURL, "error", err)
		return llm.FormatErrorForUser(err)
	}
	if content == "" {
		return "Не смог вытащить текст с этой страницы 😔"
	}

	summary, err := a.think.Summarize(ctx, fmt.Sprintf(browseSummaryPrompt, title, rawURL, content))
	if err != nil {
		L_error("web_browse: summarize failed", "url", rawURL, "error", err)
		return llm.FormatErrorForUser(err)
	}
	return summary
}

func (a *WebBrowse) fetch(ctx context.Context, rawURL string) (title, content string, err error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", "", llm.ErrValidation{Field: "url", Reason: "malformed address"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("create fetch request: %w", err)
	}
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9,en;q=0.5")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", "", llm.ErrUnavailable{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", llm.ErrBackend{Status: resp.StatusCode, Detail: "page returned non-OK status"}
	}

	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return "", "", fmt.Errorf("extract article: %w", err)
	}

	// The extracted article is HTML; markdown survives a model prompt far
	// better than tag soup.
	markdown, err := htmltomarkdown.ConvertString(article.Content)
	if err != nil {
		markdown = article.TextContent
	}
	if len(markdown) > browseMaxContentChars {
		cut := browseMaxContentChars
		for cut > 0 && !utf8.RuneStart(markdown[cut]) {
			cut--
		}
		markdown = markdown[:cut]
	}
	return article.Title, strings.TrimSpace(markdown), nil
}
