// Package render turns generated corpus text back into a Discord message.
package render

import (
	"regexp"
	"strings"

	"github.com/tinyland-inc/markovrelay/pkg/emoji"
)

const maxMessageLength = 2000

var (
	emojiToken   = regexp.MustCompile(`^e:(\w{2,32}):$`)
	massMentions = strings.NewReplacer("@everyone", "@​everyone", "@here", "@​here")
)

// Renderer implements corpus.Renderer.
type Renderer struct{}

func New() *Renderer { return &Renderer{} }

// Render replaces emoji tokens with an emoji from ns when one of that name
// is visible, or with :name: otherwise. Only whole space-separated words are
// tokens, so colons inside ordinary words are left alone. Mass mentions are
// defused and the result is cut to Discord's message limit.
func (r *Renderer) Render(text string, ns emoji.Namespaces) string {
	words := strings.Split(text, " ")
	for i, w := range words {
		m := emojiToken.FindStringSubmatch(w)
		if m == nil {
			continue
		}
		if matches := ns.Lookup(m[1]); len(matches) > 0 {
			words[i] = matches[0].MessageFormat()
		} else {
			words[i] = ":" + m[1] + ":"
		}
	}
	text = massMentions.Replace(strings.Join(words, " "))
	return truncate(strings.TrimSpace(text), maxMessageLength)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
