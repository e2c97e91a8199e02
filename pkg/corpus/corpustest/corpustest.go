// Package corpustest provides in-memory corpus collaborators for tests.
package corpustest

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/tinyland-inc/markovrelay/pkg/corpus"
	"github.com/tinyland-inc/markovrelay/pkg/emoji"
	"github.com/tinyland-inc/markovrelay/pkg/parser"
)

// Store records every call and keeps sentences in memory.
type Store struct {
	mu sync.Mutex

	WordStatTexts []string
	Sentences     []corpus.Sentence
	Deletes       []corpus.SentenceFilter
	Permissions   []corpus.AuthorPermission

	// Err, when set, is returned by every write.
	Err error
}

func (s *Store) WriteFromText(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.WordStatTexts = append(s.WordStatTexts, text)
	return nil
}

func (s *Store) ReadRange(_ context.Context, names []string) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(names))
	for _, n := range names {
		for _, text := range s.WordStatTexts {
			for _, w := range parser.Tokenize(text) {
				if w == n {
					out[n]++
				}
			}
		}
	}
	return out, nil
}

func (s *Store) WriteRange(_ context.Context, sentences []corpus.Sentence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Sentences = append(s.Sentences, sentences...)
	return nil
}

func (s *Store) DeleteRange(_ context.Context, f corpus.SentenceFilter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Deletes = append(s.Deletes, f)
	if s.Err != nil {
		return 0, s.Err
	}
	kept := s.Sentences[:0]
	var n int64
	for _, st := range s.Sentences {
		if matches(f, st) {
			n++
			continue
		}
		kept = append(kept, st)
	}
	s.Sentences = kept
	return n, nil
}

func (s *Store) ReadSentences(_ context.Context, f corpus.SentenceFilter, limit int) ([]corpus.Sentence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []corpus.Sentence
	for _, st := range s.Sentences {
		if matches(f, st) {
			out = append(out, st)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func matches(f corpus.SentenceFilter, st corpus.Sentence) bool {
	if !f.Matches(st.Address) {
		return false
	}
	tokens := parser.Tokenize(st.Text)
	for _, kw := range f.Keywords {
		if !slices.Contains(tokens, kw) {
			return false
		}
	}
	return true
}

func (s *Store) WriteAuthorPermission(_ context.Context, p corpus.AuthorPermission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Permissions = append(s.Permissions, p)
	return nil
}

// Writes reports how many corpus writes happened.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.WordStatTexts) + len(s.Sentences)
}

// SentenceView adapts Store to corpus.SentenceStore, whose ReadRange
// collides with the word statistic method of the same name.
type SentenceView struct{ *Store }

func (v SentenceView) ReadRange(ctx context.Context, f corpus.SentenceFilter, limit int) ([]corpus.Sentence, error) {
	return v.ReadSentences(ctx, f, limit)
}

// Sentences returns s as a corpus.SentenceStore.
func Sentences(s *Store) corpus.SentenceStore { return SentenceView{s} }

// SplitParser splits on '.' and drops blank fragments.
type SplitParser struct{}

func (SplitParser) ParseIntoSentences(text string, _ *discordgo.Message) []string {
	var out []string
	for _, part := range strings.Split(text, ".") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Generator returns Text and records the requests it served. When Block
// is set, each call is recorded and then waits for Block to close.
type Generator struct {
	mu       sync.Mutex
	Text     string
	Err      error
	Block    <-chan struct{}
	Filters  []corpus.SentenceFilter
	Keywords []string
}

func (g *Generator) Generate(_ context.Context, f corpus.SentenceFilter, keyword string) (string, error) {
	g.mu.Lock()
	g.Filters = append(g.Filters, f)
	g.Keywords = append(g.Keywords, keyword)
	block := g.Block
	g.mu.Unlock()

	if block != nil {
		<-block
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Text, g.Err
}

func (g *Generator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Filters)
}

// Keywords returns the first word of the text.
type Keywords struct{}

func (Keywords) Find(_ context.Context, text string) (string, error) {
	if f := strings.Fields(text); len(f) > 0 {
		return f[0], nil
	}
	return "", nil
}

// Renderer returns text unchanged.
type Renderer struct{}

func (Renderer) Render(text string, _ emoji.Namespaces) string { return text }
