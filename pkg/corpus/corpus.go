// Package corpus defines the records exchanged with the sentence, word
// statistic and permission stores, and the contracts of the text pipeline
// around them.
package corpus

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/tinyland-inc/markovrelay/pkg/address"
	"github.com/tinyland-inc/markovrelay/pkg/emoji"
)

// Author identifies a user on one platform instance.
type Author struct {
	Service  address.ServiceKind
	Instance string
	UserID   uint64
}

// AuthorPermission records an opt-in or opt-out. From nil means every
// scope. When Denied is set To is ignored.
type AuthorPermission struct {
	Author Author
	From   *address.Address
	To     *address.Address
	Denied bool
}

// SentenceFilter selects sentences. An empty Include set is unrestricted;
// otherwise a sentence matches when any included address contains its
// address.
type SentenceFilter struct {
	Include  []address.Address
	Keywords []string
}

// Matches reports whether a sentence at addr passes the address part of f.
func (f SentenceFilter) Matches(addr address.Address) bool {
	if len(f.Include) == 0 {
		return true
	}
	for _, inc := range f.Include {
		if inc.Contains(addr) {
			return true
		}
	}
	return false
}

// Sentence is one parsed fragment of a message.
type Sentence struct {
	Address   address.Address
	Author    Author
	Timestamp time.Time
	Text      string
}

type Parser interface {
	ParseIntoSentences(text string, m *discordgo.Message) []string
}

type WordStatStore interface {
	WriteFromText(ctx context.Context, text string) error
	ReadRange(ctx context.Context, names []string) (map[string]int64, error)
}

type SentenceStore interface {
	WriteRange(ctx context.Context, sentences []Sentence) error
	// DeleteRange removes every sentence matching f and reports how many.
	DeleteRange(ctx context.Context, f SentenceFilter) (int64, error)
	ReadRange(ctx context.Context, f SentenceFilter, limit int) ([]Sentence, error)
}

type Generator interface {
	// Generate may return "" when the corpus has nothing to offer.
	Generate(ctx context.Context, f SentenceFilter, keyword string) (string, error)
}

type KeywordProvider interface {
	Find(ctx context.Context, text string) (string, error)
}

type Renderer interface {
	Render(text string, ns emoji.Namespaces) string
}

type PermissionLedger interface {
	WriteAuthorPermission(ctx context.Context, p AuthorPermission) error
}
