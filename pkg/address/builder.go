package address

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// ChannelLookup resolves a channel by id. *discordgo.State satisfies it.
type ChannelLookup interface {
	Channel(channelID string) (*discordgo.Channel, error)
}

// Builder turns live Discord channels into thread-level addresses.
type Builder struct {
	instance string
	lookup   ChannelLookup
}

func NewBuilder(instance string, lookup ChannelLookup) *Builder {
	if instance == "" {
		instance = DefaultInstance
	}
	return &Builder{instance: instance, lookup: lookup}
}

func (b *Builder) Instance() string { return b.instance }

// Build returns the thread-level address of ch. Guild channels carry server
// and category (0 without a parent category); threads are addressed under
// their parent channel. Non-guild channels get server and category 0.
//
// The only failures come from resolving a thread's parent channel or from
// malformed snowflakes.
func (b *Builder) Build(ch *discordgo.Channel) (Address, error) {
	channelID, err := ParseSnowflake(ch.ID)
	if err != nil {
		return Address{}, err
	}
	if ch.GuildID == "" {
		return ForThread(b.instance, 0, 0, channelID, 0), nil
	}

	server, err := ParseSnowflake(ch.GuildID)
	if err != nil {
		return Address{}, err
	}

	if !ch.IsThread() {
		category, err := ParseSnowflake(ch.ParentID)
		if err != nil {
			return Address{}, err
		}
		return ForThread(b.instance, server, category, channelID, 0), nil
	}

	parentID, err := ParseSnowflake(ch.ParentID)
	if err != nil {
		return Address{}, err
	}
	var category uint64
	if b.lookup != nil && ch.ParentID != "" {
		parent, err := b.lookup.Channel(ch.ParentID)
		if err != nil {
			return Address{}, fmt.Errorf("resolving parent of thread %s: %w", ch.ID, err)
		}
		if category, err = ParseSnowflake(parent.ParentID); err != nil {
			return Address{}, err
		}
	}
	return ForThread(b.instance, server, category, parentID, channelID), nil
}

// BuildMessage is Build followed by WithMessage.
func (b *Builder) BuildMessage(ch *discordgo.Channel, messageID string) (Address, error) {
	a, err := b.Build(ch)
	if err != nil {
		return Address{}, err
	}
	id, err := ParseSnowflake(messageID)
	if err != nil {
		return Address{}, err
	}
	return a.WithMessage(id), nil
}
