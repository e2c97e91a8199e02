package channels

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/tinyland-inc/markovrelay/pkg/bus"
	"github.com/tinyland-inc/markovrelay/pkg/config"
	"github.com/tinyland-inc/markovrelay/pkg/emoji"
	"github.com/tinyland-inc/markovrelay/pkg/logger"
)

const typingInterval = 8 * time.Second

// Intents are the gateway events the relay needs: guild state for channels
// and emoji, messages with content, and reactions.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildEmojis |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsDirectMessages |
	discordgo.IntentsGuildMessageReactions |
	discordgo.IntentsDirectMessageReactions |
	discordgo.IntentsMessageContent

var ErrEmptyToken = errors.New("discord token is empty")

// DiscordChannel owns the gateway session. Its callbacks only publish to
// the bus; everything else is request/response used by the dispatcher.
type DiscordChannel struct {
	*BaseChannel
	session   *discordgo.Session
	snapshot  *config.Snapshot
	botUserID atomic.Value
}

func NewDiscordChannel(token string, snapshot *config.Snapshot, eb *bus.EventBus) (*DiscordChannel, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrEmptyToken
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = Intents
	session.StateEnabled = true

	return &DiscordChannel{
		BaseChannel: NewBaseChannel("discord", eb),
		session:     session,
		snapshot:    snapshot,
	}, nil
}

func (c *DiscordChannel) Session() *discordgo.Session { return c.session }

func (c *DiscordChannel) Start(ctx context.Context) error {
	logger.InfoC("discord", "Starting Discord bot")

	InstallLogBridge(c.session)

	c.session.AddHandler(c.onReady)
	c.session.AddHandler(c.onMessageCreate)
	c.session.AddHandler(c.onReactionAdd)

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}

	c.SetRunning(true)
	logger.InfoCF("discord", "Discord bot connected", map[string]any{
		"user_id": c.BotUserID(),
	})
	return nil
}

func (c *DiscordChannel) Stop(ctx context.Context) error {
	logger.InfoC("discord", "Stopping Discord bot")
	c.SetRunning(false)

	if err := c.session.Close(); err != nil {
		return fmt.Errorf("failed to close discord session: %w", err)
	}
	return nil
}

func (c *DiscordChannel) onReady(s *discordgo.Session, r *discordgo.Ready) {
	if r.User != nil {
		c.botUserID.Store(r.User.ID)
	}
	logger.InfoCF("discord", "Gateway ready", map[string]any{
		"guilds":     len(r.Guilds),
		"session_id": r.SessionID,
	})

	opts := c.snapshot.Load().Bot
	if err := c.SetPresence(opts.Activity, opts.ActivityType); err != nil {
		logger.WarnCF("discord", "Failed to set presence", map[string]any{"error": err.Error()})
	}
}

func (c *DiscordChannel) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Message == nil {
		return
	}
	c.HandleMessage(m.Message)
}

func (c *DiscordChannel) onReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if r.MessageReaction == nil {
		return
	}
	c.HandleReaction(r.MessageReaction, r.Member)
}

// BotUserID is empty until the first Ready event.
func (c *DiscordChannel) BotUserID() string {
	if id, ok := c.botUserID.Load().(string); ok {
		return id
	}
	if c.session.State != nil && c.session.State.User != nil {
		return c.session.State.User.ID
	}
	return ""
}

// Channel resolves a channel from the state cache, falling back to REST.
func (c *DiscordChannel) Channel(channelID string) (*discordgo.Channel, error) {
	if ch, err := c.session.State.Channel(channelID); err == nil {
		return ch, nil
	}
	ch, err := c.session.Channel(channelID)
	if err != nil {
		return nil, fmt.Errorf("fetching channel %s: %w", channelID, err)
	}
	return ch, nil
}

// Message resolves a message from the state cache, falling back to REST.
func (c *DiscordChannel) Message(ctx context.Context, channelID, messageID string) (*discordgo.Message, error) {
	if m, err := c.session.State.Message(channelID, messageID); err == nil {
		return m, nil
	}
	m, err := c.session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetching message %s: %w", messageID, err)
	}
	return m, nil
}

func (c *DiscordChannel) User(ctx context.Context, userID string) (*discordgo.User, error) {
	u, err := c.session.User(userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetching user %s: %w", userID, err)
	}
	return u, nil
}

// Namespaces snapshots the custom emoji visible from guildID.
func (c *DiscordChannel) Namespaces(guildID string) emoji.Namespaces {
	return emoji.SnapshotFromState(c.session.State, guildID)
}

// Send posts content to channelID over REST. It works while the gateway
// connection is down, so handlers draining after Stop still deliver.
func (c *DiscordChannel) Send(ctx context.Context, channelID, content string) error {
	if _, err := c.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to send discord message: %w", err)
	}
	return nil
}

// Reply sends content as a reply to the referenced message.
func (c *DiscordChannel) Reply(ctx context.Context, ref *discordgo.Message, content string) error {
	if _, err := c.session.ChannelMessageSendReply(ref.ChannelID, content, ref.Reference(), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to send discord reply: %w", err)
	}
	return nil
}

func (c *DiscordChannel) React(ctx context.Context, channelID, messageID string, e *discordgo.Emoji) error {
	if err := c.session.MessageReactionAdd(channelID, messageID, e.APIName(), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to add reaction %s: %w", e.APIName(), err)
	}
	return nil
}

// StartTyping shows the typing indicator in channelID until the returned
// function is called. Discord expires the indicator after about ten
// seconds, so it is refreshed periodically.
func (c *DiscordChannel) StartTyping(channelID string) (stop func()) {
	done := make(chan struct{})
	var once sync.Once

	send := func() {
		if err := c.session.ChannelTyping(channelID); err != nil {
			logger.DebugCF("discord", "Typing indicator failed", map[string]any{
				"channel_id": channelID,
				"error":      err.Error(),
			})
		}
	}

	go func() {
		send()
		ticker := time.NewTicker(typingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				send()
			}
		}
	}()

	return func() { once.Do(func() { close(done) }) }
}

// SetPresence updates the bot's activity. An empty activity clears it.
func (c *DiscordChannel) SetPresence(activity, activityType string) error {
	data := discordgo.UpdateStatusData{Status: string(discordgo.StatusOnline)}
	if activity != "" {
		data.Activities = []*discordgo.Activity{{
			Name: activity,
			Type: ActivityType(activityType),
		}}
		if data.Activities[0].Type == discordgo.ActivityTypeCustom {
			data.Activities[0].State = activity
		}
	}
	return c.session.UpdateStatusComplex(data)
}

// ActivityType maps a configured activity name onto Discord's enum,
// defaulting to "playing".
func ActivityType(name string) discordgo.ActivityType {
	switch strings.ToLower(name) {
	case "streaming":
		return discordgo.ActivityTypeStreaming
	case "listening":
		return discordgo.ActivityTypeListening
	case "watching":
		return discordgo.ActivityTypeWatching
	case "custom":
		return discordgo.ActivityTypeCustom
	case "competing":
		return discordgo.ActivityTypeCompeting
	}
	return discordgo.ActivityTypeGame
}
