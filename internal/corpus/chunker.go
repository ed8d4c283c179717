package corpus

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the BPE vocabulary used by the OpenAI embedding models.
const DefaultEncoding = "cl100k_base"

// Tokenizer converts text to tokens and back.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

type tiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenTokenizer loads a tiktoken encoding by name.
func NewTiktokenTokenizer(encoding string) (Tokenizer, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", encoding, err)
	}
	return tiktokenTokenizer{enc: enc}, nil
}

func (t tiktokenTokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

func (t tiktokenTokenizer) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}

// Chunker splits long text into overlapping token windows.
type Chunker struct {
	tokenizer Tokenizer
	maxTokens int
	overlap   int
}

// NewChunker validates the window geometry; overlap must be smaller than maxTokens.
func NewChunker(tokenizer Tokenizer, maxTokens, overlap int) (*Chunker, error) {
	if tokenizer == nil {
		return nil, fmt.Errorf("chunker: tokenizer is nil")
	}
	if maxTokens <= 0 {
		return nil, fmt.Errorf("chunker: max tokens must be positive, got %d", maxTokens)
	}
	if overlap < 0 || overlap >= maxTokens {
		return nil, fmt.Errorf("chunker: overlap %d must be in [0, %d)", overlap, maxTokens)
	}
	return &Chunker{tokenizer: tokenizer, maxTokens: maxTokens, overlap: overlap}, nil
}

// Split returns windows of at most maxTokens tokens advancing by maxTokens-overlap.
func (c *Chunker) Split(text string) []string {
	tokens := c.tokenizer.Encode(text)
	if len(tokens) == 0 {
		return nil
	}

	step := c.maxTokens - c.overlap
	var chunks []string
	for start := 0; start < len(tokens); start += step {
		end := start + c.maxTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, c.tokenizer.Decode(tokens[start:end]))
	}
	return chunks
}
