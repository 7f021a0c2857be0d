package scanner

import (
	"net/url"
	"strings"
)

const profileMarker = "/profile/"

// NormalizeCode extracts the identity code from a scan payload. Payloads are
// either a bare code or a URL whose path ends in /profile/<code>. Returns ""
// when nothing usable remains.
func NormalizeCode(raw string) string {
	payload := strings.TrimSpace(raw)
	if payload == "" {
		return ""
	}

	if idx := strings.Index(payload, profileMarker); idx >= 0 {
		code := stripQuery(payload[idx+len(profileMarker):])
		code, _, _ = strings.Cut(code, "/")
		return strings.TrimSpace(code)
	}

	if u, err := url.Parse(payload); err == nil && u.Scheme != "" && u.Host != "" {
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		return strings.TrimSpace(segments[len(segments)-1])
	}
	return payload
}

func stripQuery(s string) string {
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		return s[:i]
	}
	return s
}
