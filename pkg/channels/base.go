package channels

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/tinyland-inc/markovrelay/pkg/bus"
	"github.com/tinyland-inc/markovrelay/pkg/logger"
)

type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsRunning() bool
}

// publishTimeout bounds how long a gateway callback waits for room on the
// bus before dropping the event.
const publishTimeout = 5 * time.Second

type BaseChannel struct {
	bus     *bus.EventBus
	running atomic.Bool
	name    string
}

func NewBaseChannel(name string, eb *bus.EventBus) *BaseChannel {
	return &BaseChannel{
		bus:  eb,
		name: name,
	}
}

func (c *BaseChannel) Name() string {
	return c.name
}

func (c *BaseChannel) IsRunning() bool {
	return c.running.Load()
}

func (c *BaseChannel) SetRunning(running bool) {
	c.running.Store(running)
}

// HandleMessage enqueues a received message. It never runs corpus logic,
// so the gateway receive loop is not held up by store or network I/O.
func (c *BaseChannel) HandleMessage(m *discordgo.Message) {
	ev := bus.MessageEvent{
		ID:         NewEventID(),
		Message:    m,
		ReceivedAt: time.Now(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := c.bus.PublishMessage(ctx, ev); err != nil {
		logger.WarnCF(c.name, "Dropping message event", map[string]any{
			"event_id":   ev.ID,
			"message_id": m.ID,
			"error":      err.Error(),
		})
	}
}

// HandleReaction enqueues a reaction-add event.
func (c *BaseChannel) HandleReaction(r *discordgo.MessageReaction, member *discordgo.Member) {
	ev := bus.ReactionEvent{
		ID:         NewEventID(),
		Reaction:   r,
		Member:     member,
		ReceivedAt: time.Now(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := c.bus.PublishReaction(ctx, ev); err != nil {
		logger.WarnCF(c.name, "Dropping reaction event", map[string]any{
			"event_id":   ev.ID,
			"message_id": r.MessageID,
			"error":      err.Error(),
		})
	}
}

// NewEventID returns a correlation id for one inbound event.
func NewEventID() string {
	return uuid.New().String()
}
