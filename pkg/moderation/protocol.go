// Package moderation implements the reaction protocol through which users
// add a message to the corpus or retract it.
package moderation

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/tinyland-inc/markovrelay/pkg/address"
	"github.com/tinyland-inc/markovrelay/pkg/config"
	"github.com/tinyland-inc/markovrelay/pkg/corpus"
	"github.com/tinyland-inc/markovrelay/pkg/emoji"
	"github.com/tinyland-inc/markovrelay/pkg/gate"
	"github.com/tinyland-inc/markovrelay/pkg/logger"
)

type Action int

const (
	ActionIgnore Action = iota
	ActionWrite
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionWrite:
		return "write"
	case ActionDelete:
		return "delete"
	}
	return "ignore"
}

type Outcome int

const (
	// OutcomeDiscarded: the reaction was not admissible.
	OutcomeDiscarded Outcome = iota
	OutcomeIgnored
	OutcomeUnauthorized
	OutcomeWritten
	OutcomeWriteEmpty
	OutcomeDeleted
)

var outcomeNames = [...]string{"discarded", "ignored", "unauthorized", "written", "write_empty", "deleted"}

func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return fmt.Sprintf("outcome(%d)", int(o))
	}
	return outcomeNames[o]
}

// Reaction is one reaction-added event with the reacted message already
// fetched. Message is nil when it could not be fetched.
type Reaction struct {
	ReactorID    string
	ReactorIsBot bool
	Emoji        *discordgo.Emoji
	Message      *discordgo.Message
	Channel      *discordgo.Channel
}

// Result says what happened. Feedback, when non-nil, is the emoji the bot
// should add to the message.
type Result struct {
	Outcome  Outcome
	Action   Action
	Feedback *discordgo.Emoji
	Written  int
	Deleted  int64
}

var ErrNoChannel = errors.New("reacted message has no resolvable channel")

type Protocol struct {
	ingestor  *gate.Ingestor
	sentences corpus.SentenceStore
	builder   *address.Builder
}

func NewProtocol(ingestor *gate.Ingestor, sentences corpus.SentenceStore, builder *address.Builder) *Protocol {
	return &Protocol{ingestor: ingestor, sentences: sentences, builder: builder}
}

// Admissible reports whether a reaction is looked at at all.
func Admissible(opts *config.BotOptions, r Reaction) bool {
	if r.ReactorIsBot || !opts.ReactMode {
		return false
	}
	if r.Message == nil || r.Message.Author == nil || r.Message.Author.Bot {
		return false
	}
	return true
}

// Authorized applies the configured reaction authorization policy.
func Authorized(opts *config.BotOptions, reactorID, authorID string) bool {
	if len(opts.RestrictToIDs) == 0 {
		return true
	}
	reactorOK := opts.RestrictToIDs.Contains(reactorID)
	if opts.ReactionAuthPolicy == config.AuthPolicyReactor {
		return reactorOK
	}
	return reactorOK && opts.RestrictToIDs.Contains(authorID)
}

// Classify maps the reacted emoji onto an action. Write wins when an emoji
// is configured for both.
func Classify(e *discordgo.Emoji, write, del emoji.Set) Action {
	switch {
	case write.Contains(e):
		return ActionWrite
	case del.Contains(e):
		return ActionDelete
	}
	return ActionIgnore
}

// Handle runs the protocol for one reaction. An error means nothing was
// written and no feedback should be given; emoji resolution failures are
// returned as *emoji.NotFoundError.
func (p *Protocol) Handle(ctx context.Context, opts *config.BotOptions, r Reaction, ns emoji.Namespaces) (Result, error) {
	if !Admissible(opts, r) {
		return Result{Outcome: OutcomeDiscarded}, nil
	}

	authorized := Authorized(opts, r.ReactorID, r.Message.Author.ID)

	write, err := emoji.Resolve(opts.WriteEmojiNames, opts.WriteEmojis, ns)
	if err != nil {
		return Result{}, fmt.Errorf("resolving write emoji: %w", err)
	}
	del, err := emoji.Resolve(opts.DeleteEmojiNames, opts.DeleteEmojis, ns)
	if err != nil {
		return Result{}, fmt.Errorf("resolving delete emoji: %w", err)
	}
	fail, err := emoji.ResolveFail(opts.FailEmojiName, opts.FailEmoji, ns)
	if err != nil {
		logger.WarnCF("moderation", "Fail emoji name not found, using literal", map[string]any{
			"error": err.Error(),
		})
	}

	action := Classify(r.Emoji, write, del)
	res := Result{Action: action}

	if action == ActionIgnore {
		res.Outcome = OutcomeIgnored
		return res, nil
	}

	if !authorized {
		res.Outcome = OutcomeUnauthorized
		if opts.UnauthorizedFeedback {
			res.Feedback = fail.First()
		}
		return res, nil
	}

	if r.Channel == nil {
		return Result{}, ErrNoChannel
	}

	switch action {
	case ActionWrite:
		return p.write(ctx, r, res, fail)
	case ActionDelete:
		return p.delete(ctx, r, res)
	}
	return res, nil
}

func (p *Protocol) write(ctx context.Context, r Reaction, res Result, fail emoji.Set) (Result, error) {
	fragments := p.ingestor.Parse(r.Message)
	if len(fragments) == 0 {
		res.Outcome = OutcomeWriteEmpty
		res.Feedback = fail.First()
		return res, nil
	}

	addr, err := p.builder.BuildMessage(r.Channel, r.Message.ID)
	if err != nil {
		return Result{}, fmt.Errorf("addressing message %s: %w", r.Message.ID, err)
	}

	n, err := p.ingestor.Write(ctx, r.Message, addr, fragments, gate.Full)
	if err != nil {
		return Result{}, err
	}

	res.Outcome = OutcomeWritten
	res.Written = n
	res.Feedback = r.Emoji
	return res, nil
}

func (p *Protocol) delete(ctx context.Context, r Reaction, res Result) (Result, error) {
	addr, err := p.builder.BuildMessage(r.Channel, r.Message.ID)
	if err != nil {
		return Result{}, fmt.Errorf("addressing message %s: %w", r.Message.ID, err)
	}

	filter := corpus.SentenceFilter{Include: []address.Address{addr}}
	n, err := p.sentences.DeleteRange(ctx, filter)
	if err != nil {
		logger.ErrorCF("moderation", "Deleting sentences failed", map[string]any{
			"address": addr.String(),
			"error":   err.Error(),
		})
	}

	res.Outcome = OutcomeDeleted
	res.Deleted = n
	res.Feedback = r.Emoji
	return res, nil
}
