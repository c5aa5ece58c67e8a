package telegram

import (
	"regexp"
	"strconv"
	"strings"
)

var webClientIDPattern = regexp.MustCompile(`#(-?\d+)`)

// ParseIdentifier normalizes the channel identifiers users paste in:
//
//	https://web.telegram.org/k/#-2179184691  -> -1002179184691
//	https://t.me/channelname                 -> channelname
//	@channelname                             -> channelname
//	-1002179184691                           -> -1002179184691
//
// The return value is either a username (string form) or a numeric id.
func ParseIdentifier(identifier string) (username string, id int64, ok bool) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "", 0, false
	}

	// Web client URLs carry the numeric id in the hash fragment. The web
	// client drops the -100 channel prefix, so it is restored here.
	if strings.Contains(identifier, "web.telegram.org") {
		m := webClientIDPattern.FindStringSubmatch(identifier)
		if m == nil {
			return "", 0, false
		}
		raw, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return "", 0, false
		}
		if raw < 0 && !strings.HasPrefix(m[1], "-100") {
			restored, err := strconv.ParseInt("-100"+strconv.FormatInt(-raw, 10), 10, 64)
			if err != nil {
				return "", 0, false
			}
			return "", restored, true
		}
		return "", raw, true
	}

	if strings.Contains(identifier, "t.me/") {
		idx := strings.Index(identifier, "t.me/")
		name := identifier[idx+len("t.me/"):]
		if i := strings.IndexAny(name, "?#"); i >= 0 {
			name = name[:i]
		}
		// Preview links (t.me/s/<username>) carry an extra path segment.
		name = strings.TrimPrefix(strings.TrimLeft(name, "/"), "s/")
		name = strings.Trim(name, "/")
		if name == "" {
			return "", 0, false
		}
		return name, 0, true
	}

	if n, err := strconv.ParseInt(identifier, 10, 64); err == nil {
		return "", n, true
	}

	return strings.TrimPrefix(identifier, "@"), 0, true
}
