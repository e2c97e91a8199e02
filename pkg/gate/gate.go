// Package gate decides, per received message, what gets ingested and
// whether the bot answers.
package gate

import (
	"strings"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/text/cases"

	"github.com/tinyland-inc/markovrelay/pkg/config"
)

// AuthorAllowed reports whether the allow-list admits id. An empty list
// admits everyone.
func AuthorAllowed(opts *config.BotOptions, id string) bool {
	return len(opts.RestrictToIDs) == 0 || opts.RestrictToIDs.Contains(id)
}

func ShouldIngestWordStats(opts *config.BotOptions, authorID string) bool {
	return (opts.IngestOnMessage || opts.CollectWordStatsOnMessage) && AuthorAllowed(opts, authorID)
}

func ShouldIngestSentences(opts *config.BotOptions, authorID string) bool {
	return opts.IngestOnMessage && AuthorAllowed(opts, authorID)
}

// IngestPlan says which stores receive a message's fragments.
type IngestPlan struct {
	WordStats bool
	Sentences bool
}

// Full is the plan used by an explicit write reaction.
var Full = IngestPlan{WordStats: true, Sentences: true}

func (p IngestPlan) Empty() bool { return !p.WordStats && !p.Sentences }

// Plan combines the passive ingestion rules. A message without fragments
// has nothing to write whatever the flags say.
func Plan(opts *config.BotOptions, authorID string, fragments int) IngestPlan {
	if fragments == 0 {
		return IngestPlan{}
	}
	return IngestPlan{
		WordStats: ShouldIngestWordStats(opts, authorID),
		Sentences: ShouldIngestSentences(opts, authorID),
	}
}

// ContainsName reports whether text mentions name, ignoring case under
// Unicode case folding.
func ContainsName(text, name string) bool {
	if name == "" {
		return false
	}
	fold := cases.Fold()
	return strings.Contains(fold.String(text), fold.String(name))
}

// IsReplyTo reports whether m replies to a message written by userID.
func IsReplyTo(m *discordgo.Message, userID string) bool {
	if userID == "" || m.ReferencedMessage == nil || m.ReferencedMessage.Author == nil {
		return false
	}
	return m.ReferencedMessage.Author.ID == userID
}

// ShouldReply is true when m names the bot or replies to it. The allow-list
// does not apply.
func ShouldReply(opts *config.BotOptions, m *discordgo.Message, botUserID string) bool {
	return ContainsName(m.Content, opts.BotName) || IsReplyTo(m, botUserID)
}
