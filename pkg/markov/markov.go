// Package markov generates replies from the sentence corpus with a word
// chain built per request, and picks the keyword that seeds it.
package markov

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"

	"github.com/tinyland-inc/markovrelay/pkg/corpus"
	"github.com/tinyland-inc/markovrelay/pkg/logger"
	"github.com/tinyland-inc/markovrelay/pkg/parser"
)

const (
	start = "\x02"
	end   = "\x03"
)

// Options bound a single generation.
type Options struct {
	MaxWords   int
	SampleSize int
}

// Generator implements corpus.Generator.
type Generator struct {
	sentences corpus.SentenceStore
	opts      Options

	mu  sync.Mutex
	rng *rand.Rand
}

func NewGenerator(sentences corpus.SentenceStore, opts Options) *Generator {
	return NewGeneratorRand(sentences, opts, rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
}

// NewGeneratorRand is NewGenerator with a caller supplied source.
func NewGeneratorRand(sentences corpus.SentenceStore, opts Options, rng *rand.Rand) *Generator {
	if opts.MaxWords <= 0 {
		opts.MaxWords = 40
	}
	if opts.SampleSize <= 0 {
		opts.SampleSize = 500
	}
	return &Generator{sentences: sentences, opts: opts, rng: rng}
}

// Generate samples sentences matching f and walks a chain over them. With
// a keyword the sample is restricted to sentences containing it and the
// walk grows in both directions from it; if none do, the keyword is dropped.
func (g *Generator) Generate(ctx context.Context, f corpus.SentenceFilter, keyword string) (string, error) {
	sample, err := g.sample(ctx, f, keyword)
	if err != nil {
		return "", err
	}
	if len(sample) == 0 && keyword != "" {
		keyword = ""
		if sample, err = g.sample(ctx, f, ""); err != nil {
			return "", err
		}
	}
	if len(sample) == 0 {
		return "", nil
	}

	c := newChain(sample)

	g.mu.Lock()
	seed := c.seed(keyword, g.rng)
	words := c.walk(seed, g.opts.MaxWords, g.rng)
	g.mu.Unlock()

	generationSample.Observe(float64(len(sample)))
	generationWords.Observe(float64(len(words)))
	return strings.Join(words, " "), nil
}

func (g *Generator) sample(ctx context.Context, f corpus.SentenceFilter, keyword string) ([]corpus.Sentence, error) {
	if keyword != "" {
		f.Keywords = append(slices.Clone(f.Keywords), keyword)
	}
	out, err := g.sentences.ReadRange(ctx, f, g.opts.SampleSize)
	if err != nil {
		return nil, fmt.Errorf("markov: reading sample: %w", err)
	}
	logger.DebugCF("markov", "Sampled sentences", map[string]any{
		"count":   len(out),
		"keyword": keyword,
	})
	return out, nil
}

// chain maps each word to every word seen after it, and before it, with
// repetition so that sampling is frequency weighted.
type chain struct {
	next  map[string][]string
	prev  map[string][]string
	words [][]string
}

func newChain(sample []corpus.Sentence) *chain {
	c := &chain{next: map[string][]string{}, prev: map[string][]string{}}
	for _, s := range sample {
		words := strings.Fields(s.Text)
		if len(words) == 0 {
			continue
		}
		c.words = append(c.words, words)
		last := start
		for _, w := range words {
			c.next[last] = append(c.next[last], w)
			c.prev[w] = append(c.prev[w], last)
			last = w
		}
		c.next[last] = append(c.next[last], end)
	}
	return c
}

// seed returns a word to grow from. With a keyword it is a random
// occurrence of a word that tokenizes to it; otherwise the sentence start.
func (c *chain) seed(keyword string, rng *rand.Rand) string {
	if keyword == "" {
		return start
	}
	var hits []string
	for _, words := range c.words {
		for _, w := range words {
			if slices.Contains(parser.Tokenize(w), keyword) {
				hits = append(hits, w)
			}
		}
	}
	if len(hits) == 0 {
		return start
	}
	return hits[rng.IntN(len(hits))]
}

func (c *chain) walk(seed string, maxWords int, rng *rand.Rand) []string {
	if seed == start {
		return c.forward(start, maxWords, rng)
	}
	back := c.backward(seed, maxWords/2, rng)
	slices.Reverse(back)
	out := append(back, seed)
	return append(out, c.forward(seed, maxWords-len(out), rng)...)
}

func (c *chain) forward(from string, limit int, rng *rand.Rand) []string {
	var out []string
	cur := from
	for len(out) < limit {
		opts := c.next[cur]
		if len(opts) == 0 {
			break
		}
		cur = opts[rng.IntN(len(opts))]
		if cur == end {
			break
		}
		out = append(out, cur)
	}
	return out
}

func (c *chain) backward(from string, limit int, rng *rand.Rand) []string {
	var out []string
	cur := from
	for len(out) < limit {
		opts := c.prev[cur]
		if len(opts) == 0 {
			break
		}
		cur = opts[rng.IntN(len(opts))]
		if cur == start {
			break
		}
		out = append(out, cur)
	}
	return out
}
