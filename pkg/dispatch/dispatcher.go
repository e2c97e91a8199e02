// Package dispatch drains the gateway event streams and runs every event
// through the gate, the moderation protocol and the command router.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/sync/errgroup"

	"github.com/tinyland-inc/markovrelay/pkg/address"
	"github.com/tinyland-inc/markovrelay/pkg/bus"
	"github.com/tinyland-inc/markovrelay/pkg/config"
	"github.com/tinyland-inc/markovrelay/pkg/corpus"
	"github.com/tinyland-inc/markovrelay/pkg/emoji"
	"github.com/tinyland-inc/markovrelay/pkg/gate"
	"github.com/tinyland-inc/markovrelay/pkg/logger"
	"github.com/tinyland-inc/markovrelay/pkg/moderation"
)

// Transport is the subset of the Discord connection the dispatcher uses.
// *channels.DiscordChannel implements it.
type Transport interface {
	BotUserID() string
	Channel(channelID string) (*discordgo.Channel, error)
	Message(ctx context.Context, channelID, messageID string) (*discordgo.Message, error)
	User(ctx context.Context, userID string) (*discordgo.User, error)
	Namespaces(guildID string) emoji.Namespaces
	Send(ctx context.Context, channelID, content string) error
	Reply(ctx context.Context, ref *discordgo.Message, content string) error
	React(ctx context.Context, channelID, messageID string, e *discordgo.Emoji) error
	StartTyping(channelID string) (stop func())
}

// CommandHandler runs text commands. handled reports whether m was one.
type CommandHandler interface {
	Handle(ctx context.Context, m *discordgo.Message, opts *config.BotOptions) (reply string, handled bool, err error)
}

type Deps struct {
	Bus       *bus.EventBus
	Transport Transport
	Config    *config.Snapshot
	Builder   *address.Builder
	Ingestor  *gate.Ingestor
	Protocol  *moderation.Protocol
	Generator corpus.Generator
	Keywords  corpus.KeywordProvider
	Renderer  corpus.Renderer
	Commands  CommandHandler
}

var ErrNotRunning = errors.New("dispatcher not running")

type Dispatcher struct {
	Deps

	running  atomic.Bool
	cancel   context.CancelFunc
	loops    *errgroup.Group
	inflight sync.WaitGroup
}

func New(d Deps) *Dispatcher {
	return &Dispatcher{Deps: d}
}

// Start launches one loop per stream. Each event runs in its own goroutine
// on a context that is not cancelled by Stop, so a handler that has begun
// writing is allowed to finish.
func (d *Dispatcher) Start(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return fmt.Errorf("dispatcher already running")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	handlerCtx := context.WithoutCancel(ctx)

	g, gctx := errgroup.WithContext(loopCtx)
	g.Go(func() error {
		for {
			ev, ok := d.Bus.ConsumeMessage(gctx)
			if !ok {
				return nil
			}
			d.inflight.Add(1)
			go func() {
				defer d.inflight.Done()
				d.HandleMessage(handlerCtx, ev)
			}()
		}
	})
	g.Go(func() error {
		for {
			ev, ok := d.Bus.ConsumeReaction(gctx)
			if !ok {
				return nil
			}
			d.inflight.Add(1)
			go func() {
				defer d.inflight.Done()
				d.HandleReaction(handlerCtx, ev)
			}()
		}
	})
	d.loops = g

	logger.InfoC("dispatch", "Dispatcher started")
	return nil
}

// Stop stops consuming and waits for in-flight handlers until ctx expires.
func (d *Dispatcher) Stop(ctx context.Context) error {
	if !d.running.CompareAndSwap(true, false) {
		return ErrNotRunning
	}
	d.cancel()
	_ = d.loops.Wait()

	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		messages, reactions := d.Bus.Pending()
		logger.InfoCF("dispatch", "Dispatcher stopped", map[string]any{
			"unread_messages":  messages,
			"unread_reactions": reactions,
		})
		return nil
	case <-ctx.Done():
		logger.WarnC("dispatch", "Dispatcher stopped with handlers still running")
		return ctx.Err()
	}
}

func (d *Dispatcher) recoverEvent(kind, eventID string) {
	if r := recover(); r != nil {
		eventPanicCount.WithLabelValues(kind).Inc()
		logger.ErrorCF("dispatch", "Event handler panicked", map[string]any{
			"type":     kind,
			"event_id": eventID,
			"panic":    fmt.Sprint(r),
		})
	}
}

func (d *Dispatcher) fail(kind, eventID, msg string, err error) {
	eventErrorCount.WithLabelValues(kind).Inc()
	logger.ErrorCF("dispatch", msg, map[string]any{
		"type":     kind,
		"event_id": eventID,
		"error":    err.Error(),
	})
}

// isUserMessage filters out system messages such as joins and pins.
func isUserMessage(m *discordgo.Message) bool {
	if m == nil || m.Author == nil {
		return false
	}
	return m.Type == discordgo.MessageTypeDefault || m.Type == discordgo.MessageTypeReply
}

// HandleMessage runs commands, passive ingestion and replies for one
// message. Errors are logged and counted; nothing propagates.
func (d *Dispatcher) HandleMessage(ctx context.Context, ev bus.MessageEvent) {
	defer d.recoverEvent("message", ev.ID)
	start := time.Now()
	defer func() {
		eventProcessDuration.WithLabelValues("message").Observe(time.Since(start).Seconds())
	}()
	eventProcessCount.WithLabelValues("message").Inc()

	m := ev.Message
	if !isUserMessage(m) || m.Author.Bot {
		return
	}

	opts := &d.Config.Load().Bot

	if d.Commands != nil {
		reply, handled, err := d.Commands.Handle(ctx, m, opts)
		if handled {
			d.finishCommand(ctx, ev, m, reply, err)
			return
		}
	}

	if err := d.ingest(ctx, m, opts); err != nil {
		d.fail("message", ev.ID, "Ingestion failed", err)
	}

	if gate.ShouldReply(opts, m, d.Transport.BotUserID()) {
		if err := d.reply(ctx, m, opts); err != nil {
			d.fail("message", ev.ID, "Reply failed", err)
		}
	}
}

func (d *Dispatcher) finishCommand(ctx context.Context, ev bus.MessageEvent, m *discordgo.Message, reply string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		logger.WarnCF("dispatch", "Command failed", map[string]any{
			"event_id": ev.ID,
			"error":    err.Error(),
		})
	}
	commandCount.WithLabelValues(status).Inc()
	if reply == "" {
		return
	}
	if err := d.Transport.Reply(ctx, m, reply); err != nil {
		d.fail("message", ev.ID, "Command reply failed", err)
	}
}

func (d *Dispatcher) ingest(ctx context.Context, m *discordgo.Message, opts *config.BotOptions) error {
	fragments := d.Ingestor.Parse(m)
	plan := gate.Plan(opts, m.Author.ID, len(fragments))
	if plan.Empty() {
		return nil
	}

	// Word statistics need no address, so a failed lookup only drops
	// the sentence half of the plan.
	var addr address.Address
	var addrErr error
	if plan.Sentences {
		if addr, addrErr = d.messageAddress(m); addrErr != nil {
			plan.Sentences = false
		}
	}

	n, err := d.Ingestor.Write(ctx, m, addr, fragments, plan)
	if err != nil {
		return err
	}
	if addrErr != nil {
		return fmt.Errorf("building sentence address: %w", addrErr)
	}
	if n > 0 {
		sentencesIngested.WithLabelValues("message").Add(float64(n))
	}
	logger.DebugCF("dispatch", "Message ingested", map[string]any{
		"message_id": m.ID,
		"fragments":  len(fragments),
		"sentences":  n,
		"word_stats": plan.WordStats,
	})
	return nil
}

func (d *Dispatcher) messageAddress(m *discordgo.Message) (address.Address, error) {
	ch, err := d.Transport.Channel(m.ChannelID)
	if err != nil {
		return address.Address{}, err
	}
	return d.Builder.BuildMessage(ch, m.ID)
}

func (d *Dispatcher) reply(ctx context.Context, m *discordgo.Message, opts *config.BotOptions) error {
	text, err := d.compose(ctx, m)
	if err != nil {
		return err
	}
	kind := "generated"
	if strings.TrimSpace(text) == "" {
		text = opts.EmptyReply
		kind = "empty"
	}
	if err := d.Transport.Send(ctx, m.ChannelID, text); err != nil {
		return err
	}
	repliesSent.WithLabelValues(kind).Inc()
	return nil
}

// compose generates and renders a reply while the typing indicator shows.
func (d *Dispatcher) compose(ctx context.Context, m *discordgo.Message) (string, error) {
	stop := d.Transport.StartTyping(m.ChannelID)
	defer stop()

	keyword, err := d.Keywords.Find(ctx, m.Content)
	if err != nil {
		logger.WarnCF("dispatch", "Keyword lookup failed, generating without one", map[string]any{
			"error": err.Error(),
		})
		keyword = ""
	}
	text, err := d.Generator.Generate(ctx, corpus.SentenceFilter{}, keyword)
	if err != nil {
		return "", fmt.Errorf("generating reply: %w", err)
	}
	return d.Renderer.Render(text, d.Transport.Namespaces(m.GuildID)), nil
}

// HandleReaction runs the moderation protocol for one reaction and adds the
// feedback emoji it asks for.
func (d *Dispatcher) HandleReaction(ctx context.Context, ev bus.ReactionEvent) {
	defer d.recoverEvent("reaction", ev.ID)
	start := time.Now()
	defer func() {
		eventProcessDuration.WithLabelValues("reaction").Observe(time.Since(start).Seconds())
	}()
	eventProcessCount.WithLabelValues("reaction").Inc()

	r := ev.Reaction
	if r == nil {
		return
	}
	opts := &d.Config.Load().Bot
	reacted := r.Emoji

	in := moderation.Reaction{
		ReactorID:    r.UserID,
		ReactorIsBot: d.reactorIsBot(ctx, ev),
		Emoji:        &reacted,
	}

	// Skip the fetches for reactions the protocol discards anyway.
	if !in.ReactorIsBot && opts.ReactMode {
		m, err := d.Transport.Message(ctx, r.ChannelID, r.MessageID)
		if err != nil {
			logger.DebugCF("dispatch", "Reacted message unavailable", map[string]any{
				"event_id":   ev.ID,
				"message_id": r.MessageID,
				"error":      err.Error(),
			})
		} else {
			in.Message = m
			if ch, err := d.Transport.Channel(r.ChannelID); err == nil {
				in.Channel = ch
			}
		}
	}

	res, err := d.Protocol.Handle(ctx, opts, in, d.Transport.Namespaces(r.GuildID))
	if err != nil {
		d.fail("reaction", ev.ID, "Reaction moderation failed", err)
		return
	}
	moderationOutcomes.WithLabelValues(res.Action.String(), res.Outcome.String()).Inc()
	if res.Deleted > 0 {
		sentencesRetracted.Add(float64(res.Deleted))
	}
	if res.Written > 0 {
		sentencesIngested.WithLabelValues("reaction").Add(float64(res.Written))
	}

	if res.Outcome != moderation.OutcomeDiscarded && res.Outcome != moderation.OutcomeIgnored {
		logger.InfoCF("dispatch", "Reaction handled", map[string]any{
			"event_id":   ev.ID,
			"message_id": r.MessageID,
			"action":     res.Action.String(),
			"outcome":    res.Outcome.String(),
			"deleted":    res.Deleted,
			"written":    res.Written,
		})
	}

	if res.Feedback == nil {
		return
	}
	if err := d.Transport.React(ctx, r.ChannelID, r.MessageID, res.Feedback); err != nil {
		d.fail("reaction", ev.ID, "Adding feedback reaction failed", err)
	}
}

func (d *Dispatcher) reactorIsBot(ctx context.Context, ev bus.ReactionEvent) bool {
	if ev.Reaction.UserID == d.Transport.BotUserID() {
		return true
	}
	if ev.Member != nil && ev.Member.User != nil {
		return ev.Member.User.Bot
	}
	u, err := d.Transport.User(ctx, ev.Reaction.UserID)
	if err != nil {
		// unknown reactors are not acted upon
		logger.DebugCF("dispatch", "Reactor lookup failed", map[string]any{
			"event_id": ev.ID,
			"user_id":  ev.Reaction.UserID,
			"error":    err.Error(),
		})
		return true
	}
	return u.Bot
}
