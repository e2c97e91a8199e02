package bus

import (
	"time"

	"github.com/bwmarrin/discordgo"
)

// MessageEvent is a message-create event as received from the gateway.
type MessageEvent struct {
	// ID correlates log lines of one event.
	ID         string
	Message    *discordgo.Message
	ReceivedAt time.Time
}

// ReactionEvent is a reaction-add event. Member is set for guild reactions.
type ReactionEvent struct {
	ID         string
	Reaction   *discordgo.MessageReaction
	Member     *discordgo.Member
	ReceivedAt time.Time
}
