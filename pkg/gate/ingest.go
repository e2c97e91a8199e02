package gate

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/tinyland-inc/markovrelay/pkg/address"
	"github.com/tinyland-inc/markovrelay/pkg/corpus"
)

// Ingestor writes a message's fragments into the corpus stores.
type Ingestor struct {
	parser    corpus.Parser
	wordStats corpus.WordStatStore
	sentences corpus.SentenceStore
}

func NewIngestor(parser corpus.Parser, wordStats corpus.WordStatStore, sentences corpus.SentenceStore) *Ingestor {
	return &Ingestor{parser: parser, wordStats: wordStats, sentences: sentences}
}

func (in *Ingestor) Parse(m *discordgo.Message) []string {
	return in.parser.ParseIntoSentences(m.Content, m)
}

// Write persists fragments according to plan. Word statistics are updated
// once per fragment. Sentences are stored under addr, which must be the
// message-level address of m.
func (in *Ingestor) Write(ctx context.Context, m *discordgo.Message, addr address.Address, fragments []string, plan IngestPlan) (int, error) {
	if len(fragments) == 0 || plan.Empty() {
		return 0, nil
	}

	if plan.WordStats {
		for _, text := range fragments {
			if err := in.wordStats.WriteFromText(ctx, text); err != nil {
				return 0, fmt.Errorf("writing word statistics: %w", err)
			}
		}
	}

	if !plan.Sentences {
		return 0, nil
	}
	if addr.Level() != address.LevelMessage {
		return 0, fmt.Errorf("sentence address %q is not message level", addr)
	}

	var authorID uint64
	if m.Author != nil {
		id, err := address.ParseSnowflake(m.Author.ID)
		if err != nil {
			return 0, err
		}
		authorID = id
	}
	author := corpus.Author{Service: addr.Service, Instance: addr.Instance, UserID: authorID}

	sentences := make([]corpus.Sentence, 0, len(fragments))
	for _, text := range fragments {
		sentences = append(sentences, corpus.Sentence{
			Address:   addr,
			Author:    author,
			Timestamp: m.Timestamp,
			Text:      text,
		})
	}
	if err := in.sentences.WriteRange(ctx, sentences); err != nil {
		return 0, fmt.Errorf("writing sentences: %w", err)
	}
	return len(sentences), nil
}
