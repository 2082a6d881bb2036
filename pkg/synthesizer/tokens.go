package synthesizer

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encodingCache   = make(map[string]*tiktoken.Tiktoken)
	encodingCacheMu sync.Mutex
)

// tokenCounter counts prompt tokens for the provider's model. When no
// encoding can be resolved it falls back to a characters/4 estimate.
type tokenCounter struct {
	encoding *tiktoken.Tiktoken
}

func newTokenCounter(model string) *tokenCounter {
	encodingCacheMu.Lock()
	defer encodingCacheMu.Unlock()

	if encoding, ok := encodingCache[model]; ok {
		return &tokenCounter{encoding: encoding}
	}

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return &tokenCounter{}
		}
	}

	encodingCache[model] = encoding
	return &tokenCounter{encoding: encoding}
}

func (tc *tokenCounter) count(text string) int {
	if tc == nil || tc.encoding == nil {
		return len(text) / 4
	}
	return len(tc.encoding.Encode(text, nil, nil))
}
