package offline

import (
	"net"
	"strings"
)

// HostSet matches request hosts against a list of entries. It supports
// exact hostnames (with subdomain matching), wildcard DNS patterns
// (*.themoviedb.org) and CIDR ranges for IP-literal hosts. Matching never
// resolves names.
//
// A nil HostSet matches nothing.
type HostSet struct {
	cidrs     []*net.IPNet
	wildcards []string // stored as ".suffix" (e.g. ".tmdb.org" from "*.tmdb.org")
	exact     []string // lowercased hostnames, any port
	origins   []string // lowercased host:port, that port only
}

// NewHostSet builds a HostSet from entries. Each entry is classified as:
//   - CIDR if it contains "/" (e.g. "10.0.0.0/8")
//   - Wildcard if it starts with "*." (e.g. "*.tmdb.org")
//   - Host:port if it carries a port (only that port matches)
//   - Exact hostname otherwise (any port matches)
//
// Returns nil when no usable entry is given.
func NewHostSet(entries ...string) *HostSet {
	h := &HostSet{}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		switch {
		case strings.Contains(entry, "/"):
			if _, cidr, err := net.ParseCIDR(entry); err == nil {
				h.cidrs = append(h.cidrs, cidr)
			}
		case strings.HasPrefix(entry, "*."):
			h.wildcards = append(h.wildcards, strings.ToLower(entry[1:])) // keep the dot
		default:
			if name, port, ok := splitPort(entry); ok {
				h.origins = append(h.origins, net.JoinHostPort(name, port))
			} else {
				h.exact = append(h.exact, hostname(entry))
			}
		}
	}
	if len(h.cidrs)+len(h.wildcards)+len(h.exact)+len(h.origins) == 0 {
		return nil
	}
	return h
}

// Contains reports whether host (which may include a port) matches an
// entry.
func (h *HostSet) Contains(host string) bool {
	if h == nil || host == "" {
		return false
	}
	name := hostname(host)

	if n, port, ok := splitPort(host); ok {
		hp := net.JoinHostPort(n, port)
		for _, entry := range h.origins {
			if hp == entry {
				return true
			}
		}
	}

	for _, entry := range h.exact {
		if name == entry || strings.HasSuffix(name, "."+entry) {
			return true
		}
	}

	for _, suffix := range h.wildcards {
		if strings.HasSuffix(name, suffix) && name != suffix[1:] {
			return true
		}
	}

	if ip := net.ParseIP(name); ip != nil {
		for _, cidr := range h.cidrs {
			if cidr.Contains(ip) {
				return true
			}
		}
	}
	return false
}

// splitPort returns the lowercased host and port of a host:port string.
func splitPort(host string) (name, port string, ok bool) {
	n, p, err := net.SplitHostPort(host)
	if err != nil || p == "" {
		return "", "", false
	}
	return strings.ToLower(n), p, true
}

// hostname strips the port and brackets, and lowercases.
func hostname(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(strings.Trim(host, "[]"))
}
