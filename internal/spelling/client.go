// Package spelling checks candidate text against a grammar service in
// multiple languages and reconciles the findings into one deduplicated,
// false-positive-filtered error set.
package spelling

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/batflow/batverify/internal/apperr"
	"github.com/batflow/batverify/internal/gcp"
	"github.com/batflow/batverify/internal/models"
)

// maxCheckLength is the documented input cap of the grammar service's free
// tier. Text beyond it is truncated before checking; errors past the cap
// are not reported. Known limitation.
const maxCheckLength = 40000

// Client talks to a LanguageTool-compatible check endpoint.
type Client struct {
	checkURL   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient builds a grammar-service client. The endpoint defaults to the
// public LanguageTool API and can be overridden with GRAMMAR_CHECK_URL.
// Requests are throttled to stay under the service quota.
func NewClient() *Client {
	return &Client{
		checkURL:   gcp.GetEnv("GRAMMAR_CHECK_URL", "https://api.languagetool.org/v2/check"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 3),
	}
}

// NewClientForURL is used by tests to point the client at a fake service.
func NewClientForURL(checkURL string) *Client {
	return &Client{
		checkURL:   checkURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		limiter:    rate.NewLimiter(rate.Inf, 1),
	}
}

// ltMatch mirrors one entry of the service's matches array.
type ltMatch struct {
	Message      string `json:"message"`
	Offset       int    `json:"offset"`
	Length       int    `json:"length"`
	Replacements []struct {
		Value string `json:"value"`
	} `json:"replacements"`
	Rule struct {
		ID          string `json:"id"`
		Description string `json:"description"`
	} `json:"rule"`
	Context struct {
		Text   string `json:"text"`
		Offset int    `json:"offset"`
		Length int    `json:"length"`
	} `json:"context"`
}

// Check runs one language pass over the text. The text is truncated to
// maxCheckLength before checking. Failures are classified as service
// errors; callers degrade to an empty result.
func (c *Client) Check(ctx context.Context, text, language string) ([]models.SpellError, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	// The service counts characters, not bytes: offsets in the response
	// index runes, and the input cap is a rune cap. Truncating by bytes
	// could split a UTF-8 sequence.
	runes := []rune(text)
	if len(runes) > maxCheckLength {
		runes = runes[:maxCheckLength]
	}
	truncated := string(runes)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperr.Wrap(apperr.Service, err, "grammar check cancelled while throttled")
	}

	form := url.Values{
		"text":        {truncated},
		"language":    {language},
		"enabledOnly": {"false"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.checkURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, apperr.Wrap(apperr.Service, err, "build grammar check request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.Service, err, "grammar check call failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperr.New(apperr.Service, "grammar check returned %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Matches []ltMatch `json:"matches"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, apperr.Wrap(apperr.Service, err, "decode grammar check response")
	}

	errors := make([]models.SpellError, 0, len(payload.Matches))
	for _, m := range payload.Matches {
		errors = append(errors, toSpellError(m, runes, language))
	}
	return errors, nil
}

// toSpellError maps one service match onto a SpellError. The match
// offset and length index runes of the checked text.
func toSpellError(m ltMatch, text []rune, language string) models.SpellError {
	word := ""
	if m.Offset >= 0 && m.Length >= 0 && m.Offset+m.Length <= len(text) {
		word = string(text[m.Offset : m.Offset+m.Length])
	}
	suggestions := make([]string, 0, len(m.Replacements))
	for _, r := range m.Replacements {
		suggestions = append(suggestions, r.Value)
		if len(suggestions) == 5 {
			break
		}
	}
	return models.SpellError{
		Message:     m.Message,
		Offset:      m.Offset,
		Length:      m.Length,
		Word:        word,
		Suggestions: suggestions,
		Rule:        m.Rule.ID,
		Language:    language,
		Context:     m.Context.Text,
	}
}

// key is the deduplication identity of a finding.
func key(e models.SpellError) string {
	return fmt.Sprintf("%d:%d", e.Offset, e.Length)
}
