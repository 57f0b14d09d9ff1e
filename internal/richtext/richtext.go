// Package richtext cleans tweet text and annotates links for Bluesky
// richtext facets. Facet offsets are byte offsets into the UTF-8
// encoding of the text, per the app.bsky.richtext.facet contract.
package richtext

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Facet marks a link over a byte range of the final post text.
type Facet struct {
	ByteStart int
	ByteEnd   int
	URI       string
}

var (
	// t.co is the shortener twitter appends to tweet bodies; those
	// links point back at the source platform and are dropped.
	trackingLinkRe = regexp.MustCompile(`^https?://t\.co/[A-Za-z0-9]+$`)
	trailingLinkRe = regexp.MustCompile(`\s*https?://t\.co/[A-Za-z0-9]+\s*$`)

	linkPrefixes = []string{"https://", "http://"}
)

// StripTrackingLinks removes one or more trailing whitespace-separated
// shortener links from text, repeating until none remain at the tail.
// Occurrences elsewhere in the text are left untouched. The result is
// trimmed of surrounding whitespace.
func StripTrackingLinks(text string) string {
	for {
		stripped := trailingLinkRe.ReplaceAllString(text, "")
		if stripped == text {
			break
		}
		text = stripped
	}
	return strings.TrimSpace(text)
}

// ExtractLinks finds every http(s) URL in text by greedy
// whitespace-terminated matching and returns link facets with byte
// offsets relative to text. Shortener links are excluded. Offsets are
// strictly increasing and non-overlapping; callers concatenating text
// after a header must re-base them.
func ExtractLinks(text string) []Facet {
	var facets []Facet

	pos := 0
	for pos < len(text) {
		start := nextLinkStart(text, pos)
		if start < 0 {
			break
		}

		end := start
		for end < len(text) {
			r, size := utf8.DecodeRuneInString(text[end:])
			if unicode.IsSpace(r) {
				break
			}
			end += size
		}

		pos = end
		uri := text[start:end]
		if bareScheme(uri) || trackingLinkRe.MatchString(uri) {
			continue
		}

		facets = append(facets, Facet{ByteStart: start, ByteEnd: end, URI: uri})
	}

	return facets
}

// bareScheme reports whether uri is a scheme prefix with nothing
// after it ("https://" mentioned mid-sentence is not a link).
func bareScheme(uri string) bool {
	for _, prefix := range linkPrefixes {
		if uri == prefix {
			return true
		}
	}
	return false
}

func nextLinkStart(text string, from int) int {
	best := -1
	for _, prefix := range linkPrefixes {
		if i := strings.Index(text[from:], prefix); i >= 0 {
			abs := from + i
			if best < 0 || abs < best {
				best = abs
			}
		}
	}
	return best
}
