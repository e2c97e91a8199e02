// Package commands implements the prefixed text commands users send to the
// bot: optin, optout and ping.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/tinyland-inc/markovrelay/pkg/address"
	"github.com/tinyland-inc/markovrelay/pkg/config"
	"github.com/tinyland-inc/markovrelay/pkg/corpus"
)

var ErrUsage = errors.New("usage")

// Parse splits content into a command name and arguments when it starts
// with prefix. Names are lower-cased.
func Parse(prefix, content string) (name string, args []string, ok bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}
	fields := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

type handlerFunc func(ctx context.Context, m *discordgo.Message, opts *config.BotOptions, args []string) (string, error)

// Router maps command names, including aliases, to handlers.
type Router struct {
	ledger   corpus.PermissionLedger
	builder  *address.Builder
	lookup   address.ChannelLookup
	handlers map[string]handlerFunc
}

func NewRouter(ledger corpus.PermissionLedger, builder *address.Builder, lookup address.ChannelLookup) *Router {
	r := &Router{ledger: ledger, builder: builder, lookup: lookup}
	r.handlers = map[string]handlerFunc{
		"optin":  r.optIn,
		"oi":     r.optIn,
		"optout": r.optOut,
		"oo":     r.optOut,
		"ping":   ping,
	}
	return r
}

// Handle runs the command in m, if any. handled is false for messages that
// are not a known command; those continue through normal processing. A
// non-empty reply should be sent back even when err is set.
func (r *Router) Handle(ctx context.Context, m *discordgo.Message, opts *config.BotOptions) (reply string, handled bool, err error) {
	name, args, ok := Parse(opts.CommandPrefix, m.Content)
	if !ok {
		return "", false, nil
	}
	h, ok := r.handlers[name]
	if !ok {
		return "", false, nil
	}
	reply, err = h(ctx, m, opts, args)
	return reply, true, err
}

func ping(context.Context, *discordgo.Message, *config.BotOptions, []string) (string, error) {
	return "pong!!", nil
}

func (r *Router) optIn(ctx context.Context, m *discordgo.Message, opts *config.BotOptions, args []string) (string, error) {
	if len(args) != 2 {
		return fmt.Sprintf("Usage: %soptin <fromScope> <toScope>", opts.CommandPrefix), ErrUsage
	}
	from, err := address.ParseScope(args[0])
	if err != nil {
		return err.Error(), err
	}
	to, err := address.ParseScope(args[1])
	if err != nil {
		return err.Error(), err
	}

	here, err := r.here(m)
	if err != nil {
		return err.Error(), err
	}
	perm, err := permission(m, here, from)
	if err != nil {
		return err.Error(), err
	}
	if perm.To, err = address.Widen(to, here); err != nil {
		return err.Error(), err
	}

	if err := r.ledger.WriteAuthorPermission(ctx, perm); err != nil {
		return "", fmt.Errorf("writing permission: %w", err)
	}
	return fmt.Sprintf(`Opted user "%s" into %s from current %s to current %s.`,
		displayName(m.Author), opts.BotName, from, to), nil
}

func (r *Router) optOut(ctx context.Context, m *discordgo.Message, opts *config.BotOptions, args []string) (string, error) {
	if len(args) != 1 {
		return fmt.Sprintf("Usage: %soptout <fromScope>", opts.CommandPrefix), ErrUsage
	}
	from, err := address.ParseScope(args[0])
	if err != nil {
		return err.Error(), err
	}

	here, err := r.here(m)
	if err != nil {
		return err.Error(), err
	}
	perm, err := permission(m, here, from)
	if err != nil {
		return err.Error(), err
	}
	perm.Denied = true

	if err := r.ledger.WriteAuthorPermission(ctx, perm); err != nil {
		return "", fmt.Errorf("writing permission: %w", err)
	}
	return fmt.Sprintf(`Opted user "%s" out of %s from current %s.`,
		displayName(m.Author), opts.BotName, from), nil
}

// here is the thread-level address of the channel m was sent in.
func (r *Router) here(m *discordgo.Message) (address.Address, error) {
	ch, err := r.lookup.Channel(m.ChannelID)
	if err != nil {
		return address.Address{}, err
	}
	return r.builder.Build(ch)
}

func permission(m *discordgo.Message, here address.Address, from address.Scope) (corpus.AuthorPermission, error) {
	userID, err := address.ParseSnowflake(m.Author.ID)
	if err != nil {
		return corpus.AuthorPermission{}, err
	}
	fromAddr, err := address.Widen(from, here)
	if err != nil {
		return corpus.AuthorPermission{}, err
	}
	return corpus.AuthorPermission{
		Author: corpus.Author{Service: here.Service, Instance: here.Instance, UserID: userID},
		From:   fromAddr,
	}, nil
}

func displayName(u *discordgo.User) string {
	if u == nil {
		return ""
	}
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}
