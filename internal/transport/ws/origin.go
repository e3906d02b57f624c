package ws

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// originPolicy is a normalized scheme://host allow-list. "*" allows any origin.
type originPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
}

func newOriginPolicy(origins []string) originPolicy {
	p := originPolicy{allowed: make(map[string]struct{})}
	for _, o := range origins {
		o = strings.TrimSpace(o)
		switch {
		case o == "":
		case o == "*":
			p.allowAll = true
		default:
			n, ok := normalizeOrigin(o)
			if !ok {
				slog.Warn("ignoring invalid origin", "origin", o)
				continue
			}
			p.allowed[n] = struct{}{}
		}
	}
	// nothing configured means no restriction
	if len(p.allowed) == 0 {
		p.allowAll = true
	}
	return p
}

func normalizeOrigin(origin string) (string, bool) {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), true
}

// check is used as websocket.Upgrader.CheckOrigin. Requests without an
// Origin header come from non-browser clients and are accepted.
func (p originPolicy) check(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || p.allowAll {
		return true
	}
	n, ok := normalizeOrigin(origin)
	if ok {
		if _, allowed := p.allowed[n]; allowed {
			return true
		}
	}
	slog.Warn("ws origin rejected", "origin", origin)
	return false
}
