package parser

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/tinyland-inc/markovrelay/pkg/logger"
)

var nonTokenChars = regexp.MustCompile(`[^\pL\pN\s]+`)

// Tokenize splits text into lower-case word tokens with diacritics removed.
// It is the key space of the word statistics.
func Tokenize(text string) []string {
	// transformers are stateful; build one per call
	normFunc := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	bare := strings.ToLower(nonTokenChars.ReplaceAllString(norm.NFC.String(text), " "))
	out, _, err := transform.String(normFunc, bare)
	if err != nil {
		logger.WarnCF("parser", "Unicode normalization failed", map[string]any{"error": err.Error()})
		out = bare
	}
	return strings.Fields(out)
}
