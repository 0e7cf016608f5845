package chunker

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	sentenceEnd   = regexp.MustCompile(`[.!?]\s`)
)

// stripPolicy removes every tag, leaving a space where one stood so adjacent
// blocks do not run together.
var stripPolicy = func() *bluemonday.Policy {
	p := bluemonday.StrictPolicy()
	p.AddSpaceWhenStrippingTag(true)
	return p
}()

// maxDecodePasses bounds how many layers of entity encoding are peeled off.
const maxDecodePasses = 4

// SanitizeDescription strips markup, decodes entities and collapses whitespace.
// Entity-encoded tags are decoded before stripping so they never resurface
// as markup, and the result is stable under a second call.
func SanitizeDescription(desc string) string {
	if strings.TrimSpace(desc) == "" {
		return ""
	}
	text := desc
	for range maxDecodePasses {
		next := html.UnescapeString(stripPolicy.Sanitize(html.UnescapeString(text)))
		if next == text {
			break
		}
		text = next
	}
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}

// SummarizeIntent returns the first sentence of desc, capped at
// domain.MaxIntentLength characters, or fallback when desc is empty.
func SummarizeIntent(desc, fallback string) string {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return fallback
	}
	head := desc
	if loc := sentenceEnd.FindStringIndex(desc); loc != nil {
		head = desc[:loc[0]+1]
	}
	return strings.TrimSpace(truncateRunes(head, maxIntentLength))
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
