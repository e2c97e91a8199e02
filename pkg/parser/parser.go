// Package parser turns Discord message markup into plain sentence fragments
// suitable for the corpus.
package parser

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/text/unicode/norm"
)

var (
	codeBlock     = regexp.MustCompile("(?s)```.*?```")
	inlineCode    = regexp.MustCompile("`[^`]*`")
	urlPattern    = regexp.MustCompile(`https?://\S+`)
	customEmoji   = regexp.MustCompile(`<a?:(\w{2,32}):\d+>`)
	userMention   = regexp.MustCompile(`<@!?(\d+)>`)
	otherMention  = regexp.MustCompile(`<(?:#|@&|/[\w -]+:)\d+>|<t:\d+(?::\w)?>`)
	markdownChars = strings.NewReplacer("**", "", "__", "", "~~", "", "||", "")
	sentenceEnd   = regexp.MustCompile(`([.!?…]+)\s+`)
)

// EmojiToken marks a custom emoji inside stored text. The renderer turns it
// back into an emoji the bot can use, or into plain :name:.
func EmojiToken(name string) string {
	return "e:" + name + ":"
}

// Parser implements corpus.Parser for Discord markup.
type Parser struct{}

func New() *Parser { return &Parser{} }

// ParseIntoSentences strips code, links and markup from text, resolves user
// mentions through m, and splits the remainder into sentences. Fragments
// without any letter or digit are dropped, so the result may be empty.
func (p *Parser) ParseIntoSentences(text string, m *discordgo.Message) []string {
	text = norm.NFC.String(text)
	text = codeBlock.ReplaceAllString(text, " ")
	text = inlineCode.ReplaceAllString(text, " ")
	text = urlPattern.ReplaceAllString(text, " ")
	text = customEmoji.ReplaceAllStringFunc(text, func(s string) string {
		return " " + EmojiToken(customEmoji.FindStringSubmatch(s)[1]) + " "
	})
	text = userMention.ReplaceAllStringFunc(text, func(s string) string {
		return mentionName(userMention.FindStringSubmatch(s)[1], m)
	})
	text = otherMention.ReplaceAllString(text, " ")
	text = markdownChars.Replace(text)

	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimLeft(line, "> #-*")
		for _, s := range splitSentences(line) {
			s = strings.Join(strings.Fields(s), " ")
			if hasWord(s) {
				out = append(out, s)
			}
		}
	}
	return out
}

func splitSentences(line string) []string {
	marked := sentenceEnd.ReplaceAllString(line, "$1\x00")
	return strings.Split(marked, "\x00")
}

func hasWord(s string) bool {
	for _, f := range strings.Fields(s) {
		if strings.HasPrefix(f, "e:") && strings.HasSuffix(f, ":") {
			continue
		}
		for _, r := range f {
			if unicode.IsLetter(r) || unicode.IsNumber(r) {
				return true
			}
		}
	}
	return false
}

func mentionName(id string, m *discordgo.Message) string {
	if m != nil {
		for _, u := range m.Mentions {
			if u == nil || u.ID != id {
				continue
			}
			if u.GlobalName != "" {
				return u.GlobalName
			}
			return u.Username
		}
	}
	return " "
}
