package extract

import (
	"net/url"
	"strings"
)

// NormalizeURL returns the comparison form of a URL: lower-cased scheme and
// host, default ports stripped, trailing slash stripped. Used only for
// dedup keys; stored URLs keep their original casing and path.
func NormalizeURL(raw string) string {
	withScheme := raw
	if !strings.Contains(raw, "://") {
		withScheme = "http://" + raw
	}

	u, err := url.Parse(withScheme)
	if err != nil || u.Host == "" {
		return strings.TrimRight(strings.ToLower(raw), "/")
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	switch {
	case scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}

	normalized := scheme + "://" + host + strings.TrimRight(u.Path, "/")
	if u.RawQuery != "" {
		normalized += "?" + u.RawQuery
	}
	return normalized
}

// Domain returns the host of a URL without any "www." prefix, or "" if the
// URL does not parse.
func Domain(raw string) string {
	withScheme := raw
	if !strings.Contains(raw, "://") {
		withScheme = "http://" + raw
	}
	u, err := url.Parse(withScheme)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}
