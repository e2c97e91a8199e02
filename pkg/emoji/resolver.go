// Package emoji resolves configured emoji names and literals into the
// concrete emoji a reaction is compared against.
package emoji

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// Namespaces is the set of custom emoji visible while handling one event:
// Local holds the current guild's emoji, Fallback those of every other guild
// the bot shares. Build a fresh value per event; guild emoji change at
// runtime.
type Namespaces struct {
	Local    []*discordgo.Emoji
	Fallback []*discordgo.Emoji
}

// SnapshotFromState copies the emoji of guildID into Local and those of
// every other cached guild into Fallback. An empty guildID (a DM) leaves
// Local empty.
func SnapshotFromState(state *discordgo.State, guildID string) Namespaces {
	var ns Namespaces
	if state == nil {
		return ns
	}
	state.RLock()
	defer state.RUnlock()
	for _, g := range state.Guilds {
		if g == nil {
			continue
		}
		if g.ID == guildID {
			ns.Local = append(ns.Local, g.Emojis...)
		} else {
			ns.Fallback = append(ns.Fallback, g.Emojis...)
		}
	}
	return ns
}

// Lookup returns every emoji named name, local matches first.
func (ns Namespaces) Lookup(name string) []*discordgo.Emoji {
	var out []*discordgo.Emoji
	for _, e := range ns.Local {
		if e != nil && e.Name == name {
			out = append(out, e)
		}
	}
	for _, e := range ns.Fallback {
		if e != nil && e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// NotFoundError reports a configured emoji name that exists in neither
// namespace. It aborts the event that triggered resolution.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("emoji with name %q not found", e.Name)
}

// Set is an ordered collection of emoji compared by Discord API name.
type Set []*discordgo.Emoji

// Key is the identity used for comparison: "name:id" for custom emoji and
// the glyph itself for unicode emoji.
func Key(e *discordgo.Emoji) string {
	if e == nil {
		return ""
	}
	return e.APIName()
}

func (s Set) Contains(e *discordgo.Emoji) bool {
	k := Key(e)
	if k == "" {
		return false
	}
	for _, c := range s {
		if Key(c) == k {
			return true
		}
	}
	return false
}

// First returns the first emoji, or nil for an empty set.
func (s Set) First() *discordgo.Emoji {
	if len(s) == 0 {
		return nil
	}
	return s[0]
}

func (s Set) String() string {
	keys := make([]string, 0, len(s))
	for _, e := range s {
		keys = append(keys, Key(e))
	}
	return "[" + strings.Join(keys, " ") + "]"
}

// Literal wraps a unicode glyph as an emoji.
func Literal(glyph string) *discordgo.Emoji {
	return &discordgo.Emoji{Name: glyph}
}

// Resolve looks every name up in ns, then appends the literals verbatim.
// A name found nowhere yields a *NotFoundError and no set.
func Resolve(names, literals []string, ns Namespaces) (Set, error) {
	var out Set
	for _, name := range names {
		matches := ns.Lookup(name)
		if len(matches) == 0 {
			return nil, &NotFoundError{Name: name}
		}
		out = append(out, matches...)
	}
	for _, l := range literals {
		if l == "" {
			continue
		}
		out = append(out, Literal(l))
	}
	return out, nil
}

// ResolveFail builds the fail-feedback set: the first emoji named name (when
// set) followed by the literal. The set is returned even when name is not
// found, together with a *NotFoundError for the caller to log; feedback can
// always fall back to the literal.
func ResolveFail(name, literal string, ns Namespaces) (Set, error) {
	var (
		out Set
		err error
	)
	if name != "" {
		if matches := ns.Lookup(name); len(matches) > 0 {
			out = append(out, matches[0])
		} else {
			err = &NotFoundError{Name: name}
		}
	}
	return append(out, Literal(literal)), err
}
