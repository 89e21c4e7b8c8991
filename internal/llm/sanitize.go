package llm

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultContextBudget is the request size, in tokens, accepted by gpt-3.5-turbo.
const DefaultContextBudget = 4096

// Fence delimits article text inside summarization prompts.
const Fence = "```"

// charsPerToken is the rough ratio used to decide whether exact tokenization is needed at all.
// https://platform.openai.com/tokenizer
const charsPerToken = 4

// fenceRe matches a fence together with the whitespace around it.
var fenceRe = regexp.MustCompile(`\s*` + "```" + `\s*`)

// Sanitizer fits untrusted text into a fixed token budget. It holds no mutable
// state and is safe for concurrent use as long as its Tokenizer is.
type Sanitizer struct {
	tok    Tokenizer
	budget int
}

// NewSanitizer returns a Sanitizer for a model accepting budget tokens per request.
// A non-positive budget falls back to DefaultContextBudget.
func NewSanitizer(tok Tokenizer, budget int) *Sanitizer {
	if budget <= 0 {
		budget = DefaultContextBudget
	}
	return &Sanitizer{tok: tok, budget: budget}
}

// Budget returns the context budget in tokens.
func (s *Sanitizer) Budget() int {
	return s.budget
}

// Count returns the exact number of tokens in text.
func (s *Sanitizer) Count(text string) int {
	return len(s.tok.Encode(text))
}

// Sanitize prepares text to be embedded in a prompt that already spends
// overhead tokens. The result never contains a fence and never ends with a
// period or whitespace. Text longer than 2*budget*4 runes is cut to
// budget-overhead tokens; shorter text is only counted by Fit.
// If overhead leaves no room, the result is empty.
func (s *Sanitizer) Sanitize(text string, overhead int) string {
	// Runs first so injected fences cannot close the prompt's own block.
	text = StripFences(text)

	limit := s.budget - overhead
	if limit <= 0 {
		return ""
	}

	if utf8.RuneCountInString(text) > 2*s.budget*charsPerToken {
		text = s.truncateTokens(text, limit)
	}

	return trimEnds(text)
}

// truncateTokens cuts text to at most limit tokens.
func (s *Sanitizer) truncateTokens(text string, limit int) string {
	tokens := s.tok.Encode(text)
	if len(tokens) <= limit {
		return text
	}
	// A token boundary may split a multibyte rune; drop the dangling bytes.
	return strings.ToValidUTF8(s.tok.Decode(tokens[:limit]), "")
}

// Fit is Sanitize followed by an exact token check, so the result never
// exceeds budget-overhead tokens whatever its length.
func (s *Sanitizer) Fit(text string, overhead int) string {
	text = s.Sanitize(text, overhead)
	limit := s.budget - overhead
	if text == "" || s.Count(text) <= limit {
		return text
	}
	return trimEnds(s.truncateTokens(text, limit))
}

// StripFences replaces every fence, and the whitespace around it, with one space
// and trims the result.
func StripFences(text string) string {
	if !strings.Contains(text, Fence) {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(fenceRe.ReplaceAllString(text, " "))
}

func trimEnds(text string) string {
	text = strings.TrimRightFunc(text, func(r rune) bool {
		return r == '.' || unicode.IsSpace(r)
	})
	return strings.TrimLeftFunc(text, unicode.IsSpace)
}
