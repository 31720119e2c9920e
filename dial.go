package nats

import (
	"math/rand"
	"net/url"
	"strings"
)

// parseServers splits a comma-separated URL list (or a single URL) into
// bare host:port addresses, the seed list spec.md §4.6 rotates through.
func parseServers(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, normalizeAddr(p))
	}
	return out
}

func normalizeAddr(raw string) string {
	if !strings.Contains(raw, "://") {
		raw = "nats://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	host := u.Host
	if u.Port() == "" {
		host += ":4222"
	}
	return host
}

// shuffle returns a copy of servers in random order, per spec.md §4.6
// ("ordering may be shuffled per connect").
func shuffle(servers []string) []string {
	out := append([]string(nil), servers...)
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// mergeConnectURLs folds newly advertised connect_urls into the known
// server list, preserving existing order and appending unseen addresses.
func mergeConnectURLs(known []string, advertised []string) []string {
	seen := make(map[string]bool, len(known))
	for _, s := range known {
		seen[s] = true
	}
	out := append([]string(nil), known...)
	for _, a := range advertised {
		addr := normalizeAddr(a)
		if !seen[addr] {
			seen[addr] = true
			out = append(out, addr)
		}
	}
	return out
}
