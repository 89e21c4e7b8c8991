package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/deusflow/hnsummary/internal/logger"
	"github.com/deusflow/hnsummary/internal/metrics"
)

// DefaultBaseURL is the public Google Translate endpoint.
const DefaultBaseURL = "https://translate.googleapis.com/translate_a/single"

// maxRunes bounds the text sent in one request.
const maxRunes = 4000

// Translator renders text in another language. It never fails: on any error
// the original text is returned.
type Translator interface {
	Translate(ctx context.Context, text, lang string) string
}

// Cache stores translations by text and target language.
type Cache interface {
	GetTranslation(text, lang string) (string, bool)
	PutTranslation(text, lang, translated string) error
}

// Google translates through the free Google Translate endpoint.
type Google struct {
	client  *http.Client
	baseURL string
	cache   Cache // optional
}

// NewGoogle creates a translator. An empty baseURL uses DefaultBaseURL.
func NewGoogle(baseURL string, timeout time.Duration, cache Cache) *Google {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Google{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		cache:   cache,
	}
}

// Translate returns text in lang. English is the source language and is
// returned as is.
func (g *Google) Translate(ctx context.Context, text, lang string) string {
	target := targetLanguage(lang)
	if strings.TrimSpace(text) == "" || target == "" {
		return text
	}

	if g.cache != nil {
		if translated, ok := g.cache.GetTranslation(text, lang); ok {
			return translated
		}
	}

	result, err := g.translateWithGoogleTranslate(ctx, cleanTextForTranslation(text), target)
	if err != nil || result == "" {
		metrics.Global.IncrementTranslationFailures()
		logger.Warn("translation failed, using original", "lang", lang, "error", err)
		return text
	}

	if g.cache != nil {
		if err := g.cache.PutTranslation(text, lang, result); err != nil {
			logger.Warn("failed to cache translation", "lang", lang, "error", err)
		}
	}
	return result
}

// targetLanguage maps a page language to a Google language code. An empty
// result means no translation is needed.
func targetLanguage(lang string) string {
	switch strings.ToLower(lang) {
	case "", "en":
		return ""
	case "zh", "zh-cn":
		return "zh-CN"
	case "zh-tw":
		return "zh-TW"
	default:
		return lang
	}
}

// translateWithGoogleTranslate queries the public endpoint
func (g *Google) translateWithGoogleTranslate(ctx context.Context, text, to string) (string, error) {
	params := url.Values{}
	params.Set("client", "gtx")
	params.Set("sl", "auto")
	params.Set("tl", to)
	params.Set("dt", "t") // return translations
	params.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP error: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Debug("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("google Translate API returned status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response: %w", err)
	}

	translation, err := parseGoogleTranslateResponse(body)
	if err != nil {
		return "", fmt.Errorf("error parsing response: %w", err)
	}
	return translation, nil
}

// parseGoogleTranslateResponse parses Google Translate API response
func parseGoogleTranslateResponse(body []byte) (string, error) {
	// Google Translate returns array of arrays
	var response []interface{}

	if err := json.Unmarshal(body, &response); err != nil {
		return "", err
	}

	if len(response) == 0 {
		return "", errors.New("empty response from Google Translate")
	}

	// First element contains translations
	translations, ok := response[0].([]interface{})
	if !ok {
		return "", errors.New("unexpected response format")
	}

	var result strings.Builder
	for _, translation := range translations {
		if translationArray, ok := translation.([]interface{}); ok && len(translationArray) > 0 {
			if translatedText, ok := translationArray[0].(string); ok {
				result.WriteString(translatedText)
			}
		}
	}

	return result.String(), nil
}

// cleanTextForTranslation joins lines and limits the request size
func cleanTextForTranslation(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if runes := []rune(text); len(runes) > maxRunes {
		text = string(runes[:maxRunes]) + "..."
	}
	return text
}
