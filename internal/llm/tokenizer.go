package llm

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer converts text to model tokens and back.
// Decoding a prefix of Encode(x) must re-encode to no more tokens than the prefix holds.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

var (
	encodingsMu sync.Mutex
	encodings   = map[string]*tiktoken.Tiktoken{}
)

// Tiktoken is the BPE tokenizer used by OpenAI models.
type Tiktoken struct {
	model string
	enc   *tiktoken.Tiktoken
}

// NewTiktoken resolves the encoding for model. Encodings are loaded once per
// model and shared across callers.
func NewTiktoken(model string) (*Tiktoken, error) {
	encodingsMu.Lock()
	defer encodingsMu.Unlock()

	enc, ok := encodings[model]
	if !ok {
		var err error
		enc, err = tiktoken.EncodingForModel(model)
		if err != nil {
			return nil, fmt.Errorf("no tokenizer for model %q: %w", model, err)
		}
		encodings[model] = enc
	}
	return &Tiktoken{model: model, enc: enc}, nil
}

func (t *Tiktoken) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

func (t *Tiktoken) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}

// Model returns the model identifier the encoding was selected for.
func (t *Tiktoken) Model() string {
	return t.model
}
