// Package extract turns one message into a deduplicated set of links. It is
// pure: no I/O, no mutation of its input, identical output for identical
// input. Extraction runs as an ordered list of passes, each producing
// tagged candidates, merged by a precedence + dedup rule.
package extract

import (
	"regexp"
	"strings"

	"telelink/pkg/models"
	"telelink/pkg/telegram"
)

// urlPattern matches plain-text URLs: explicit http(s) schemes, bare www.
// prefixes, and bare hosts ending in a common TLD. Trailing punctuation is
// handled separately by trimTrailing, not by the pattern.
var urlPattern = regexp.MustCompile(
	`(?i)(?:https?://[^\s<>"'` + "`" + `]+` +
		`|www\.[^\s<>"'` + "`" + `]+` +
		`|\b[a-z0-9][a-z0-9.-]*\.(?:com|org|net|io|dev|app|me|co|info|xyz)\b(?:/[^\s<>"'` + "`" + `]*)?)`)

// Extract runs all extraction passes over one source message and returns at
// most one link per distinct normalized URL. When the same URL is produced
// by several passes the highest-precedence source kind wins:
// entity-url > entity-text-url > regex > button.
func Extract(msg telegram.Message) []models.Link {
	text := []rune(msg.Text)
	// covered marks runes claimed by a valid entity span; the regex pass
	// only scans the remainder.
	covered := make([]bool, len(text))

	type candidate struct {
		url    string
		source models.LinkSource
		anchor string
	}
	var candidates []candidate

	for _, ent := range msg.Entities {
		if ent.Offset < 0 || ent.Length <= 0 || ent.Offset+ent.Length > len(text) {
			// Malformed offsets: drop the entity and let the regex pass
			// catch whatever is visible in the text.
			continue
		}
		span := string(text[ent.Offset : ent.Offset+ent.Length])
		switch ent.Kind {
		case telegram.EntityURL:
			candidates = append(candidates, candidate{url: span, source: models.SourceEntityURL})
		case telegram.EntityTextURL:
			if ent.URL == "" {
				continue
			}
			candidates = append(candidates, candidate{url: ent.URL, source: models.SourceEntityTextURL, anchor: span})
		default:
			continue
		}
		for i := ent.Offset; i < ent.Offset+ent.Length; i++ {
			covered[i] = true
		}
	}

	// Regex pass over the text not already claimed by entity spans.
	masked := make([]rune, len(text))
	for i, r := range text {
		if covered[i] {
			masked[i] = ' '
		} else {
			masked[i] = r
		}
	}
	for _, match := range urlPattern.FindAllString(string(masked), -1) {
		if url := trimTrailing(match); url != "" {
			candidates = append(candidates, candidate{url: url, source: models.SourceRegex})
		}
	}

	for _, btn := range msg.Buttons {
		if btn.URL == "" {
			continue
		}
		candidates = append(candidates, candidate{url: btn.URL, source: models.SourceButton, anchor: btn.Label})
	}

	// Merge: first occurrence per normalized URL wins unless a later pass
	// carries a strictly higher precedence.
	index := make(map[string]int)
	var links []models.Link
	for _, c := range candidates {
		key := NormalizeURL(c.url)
		if key == "" {
			continue
		}
		if i, seen := index[key]; seen {
			if c.source.Precedence() < links[i].Source.Precedence() {
				links[i] = models.Link{
					MessageID: msg.ID,
					URL:       c.url,
					Domain:    Domain(c.url),
					Source:    c.source,
					Anchor:    c.anchor,
				}
			}
			continue
		}
		index[key] = len(links)
		links = append(links, models.Link{
			MessageID: msg.ID,
			URL:       c.url,
			Domain:    Domain(c.url),
			Source:    c.source,
			Anchor:    c.anchor,
		})
	}
	return links
}

// trailingPunct are characters a URL never meaningfully ends with when it
// is embedded in prose.
const trailingPunct = ".,;:!?'\""

// trimTrailing strips punctuation that belongs to the surrounding sentence
// rather than the URL. Closing brackets are only stripped while they are
// unbalanced within the match, so wiki-style URLs like
// https://en.wikipedia.org/wiki/Go_(language) survive intact.
func trimTrailing(s string) string {
	for len(s) > 0 {
		last := s[len(s)-1]
		if strings.ContainsRune(trailingPunct, rune(last)) {
			s = s[:len(s)-1]
			continue
		}
		var open byte
		switch last {
		case ')':
			open = '('
		case ']':
			open = '['
		case '}':
			open = '{'
		default:
			return s
		}
		if strings.Count(s, string(open)) >= strings.Count(s, string(last)) {
			return s
		}
		s = s[:len(s)-1]
	}
	return s
}
