package transaction

import (
	"bytes"
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
)

const (
	locationUnknown         = "Unknown"
	locationUnknownOnline   = "Unknown Online Source"
	locationUnknownPhysical = "Unknown Physical Location"
)

var looseHostPattern = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?([^/\s]+)`)

// merchantDomainPattern needs at least one dot so plain words are not taken
// as hosts.
var merchantDomainPattern = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?([a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?(?:\.[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?)+)`)

type locationPayload struct {
	Online      *bool   `json:"online"`
	Address     *string `json:"address"`
	City        *string `json:"city"`
	Region      *string `json:"region"`
	URL         *string `json:"url"`
	Website     *string `json:"website"`
	WebsiteName *string `json:"website_name"`
}

// LocationDisplay renders a raw location payload. The payload may be an
// object or a JSON string holding an object. It never fails: unreadable
// payloads render as "Unknown".
func LocationDisplay(raw []byte, merchantName string) string {
	loc, ok := parseLocation(raw)
	if !ok {
		return locationUnknown
	}

	if loc.isOnline() {
		return onlineDisplay(loc, merchantName)
	}

	if addr := strings.TrimSpace(str(loc.Address)); addr != "" {
		return addr
	}
	if city := strings.TrimSpace(str(loc.City)); city != "" {
		return city
	}
	return locationUnknownPhysical
}

func parseLocation(raw []byte) (*locationPayload, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, false
	}

	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, false
		}
		raw = bytes.TrimSpace([]byte(inner))
		if len(raw) == 0 {
			return nil, false
		}
	}

	var loc locationPayload
	if err := json.Unmarshal(raw, &loc); err != nil {
		return nil, false
	}
	return &loc, true
}

// isOnline holds when the payload says so, or when it has no usable
// physical fields but does carry a web hint.
func (l *locationPayload) isOnline() bool {
	if l.Online != nil && *l.Online {
		return true
	}
	noPhysical := l.City == nil || (l.Address == nil && l.City == nil && l.Region == nil)
	return noPhysical && l.hasWebHint()
}

func (l *locationPayload) hasWebHint() bool {
	return str(l.URL) != "" || str(l.Website) != "" || str(l.WebsiteName) != ""
}

func onlineDisplay(l *locationPayload, merchantName string) string {
	if name := str(l.WebsiteName); name != "" {
		return name
	}

	raw := str(l.URL)
	if raw == "" {
		raw = str(l.Website)
	}
	if raw != "" {
		if host := hostOf(raw); host != "" {
			return host
		}
		return locationUnknownOnline
	}

	if m := merchantDomainPattern.FindStringSubmatch(merchantName); m != nil {
		return strings.TrimPrefix(strings.ToLower(m[1]), "www.")
	}
	return locationUnknownOnline
}

func hostOf(raw string) string {
	candidate := raw
	if !strings.HasPrefix(strings.ToLower(candidate), "http") {
		candidate = "https://" + candidate
	}
	if u, err := url.Parse(candidate); err == nil && u.Hostname() != "" {
		return strings.TrimPrefix(u.Hostname(), "www.")
	}
	if m := looseHostPattern.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return ""
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
