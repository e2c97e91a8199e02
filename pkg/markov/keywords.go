package markov

import (
	"context"
	"fmt"

	"github.com/tinyland-inc/markovrelay/pkg/corpus"
	"github.com/tinyland-inc/markovrelay/pkg/parser"
)

// Keywords implements corpus.KeywordProvider by picking the rarest token of
// the prompt that the corpus has seen at all. Common words carry little
// topic, and unseen words cannot seed a chain.
type Keywords struct {
	stats corpus.WordStatStore
	// MinLength skips tokens shorter than this many runes.
	MinLength int
}

func NewKeywords(stats corpus.WordStatStore, minLength int) *Keywords {
	return &Keywords{stats: stats, MinLength: minLength}
}

func (k *Keywords) Find(ctx context.Context, text string) (string, error) {
	var tokens []string
	seen := map[string]bool{}
	for _, tok := range parser.Tokenize(text) {
		if seen[tok] || len([]rune(tok)) < k.MinLength {
			continue
		}
		seen[tok] = true
		tokens = append(tokens, tok)
	}
	if len(tokens) == 0 {
		return "", nil
	}

	counts, err := k.stats.ReadRange(ctx, tokens)
	if err != nil {
		return "", fmt.Errorf("markov: reading word stats: %w", err)
	}

	best, bestCount := "", int64(0)
	for _, tok := range tokens {
		n := counts[tok]
		if n <= 0 {
			continue
		}
		if best == "" || n < bestCount {
			best, bestCount = tok, n
		}
	}
	return best, nil
}
