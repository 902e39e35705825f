package canonical

import (
	"net"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/net/idna"
)

// URL canonicalizes a posting URL:
//   - scheme and host are lowercased, the host is converted to its IDNA ASCII form
//   - default ports, the fragment, and a trailing path slash are removed
//   - tracking parameters (utm_* and the deny-list) are dropped
//   - remaining parameters are ordered by key, then value
//
// Inputs that are not absolute http(s) URLs fall back to their trimmed, lowercased form.
func (c *Canonicalizer) URL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	parsed, err := url.Parse(trimmed)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return strings.ToLower(trimmed)
	}

	out := url.URL{
		Scheme:   parsed.Scheme,
		Host:     canonicalHost(parsed),
		Path:     strings.TrimRight(parsed.Path, "/"),
		RawQuery: c.canonicalQuery(parsed.Query()),
	}
	return out.String()
}

func (c *Canonicalizer) keepParam(key string) bool {
	if key == "" || strings.HasPrefix(key, "utm_") {
		return false
	}
	if _, denied := c.tracking[key]; denied {
		return false
	}
	if len(c.allowed) == 0 {
		return true
	}
	_, ok := c.allowed[key]
	return ok
}

func (c *Canonicalizer) canonicalQuery(params url.Values) string {
	merged := make(map[string][]string, len(params))
	for k, vals := range params {
		key := strings.ToLower(k)
		if !c.keepParam(key) {
			continue
		}
		merged[key] = append(merged[key], vals...)
	}
	if len(merged) == 0 {
		return ""
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf strings.Builder
	for _, k := range keys {
		vals := merged[k]
		sort.Strings(vals)
		for _, v := range vals {
			if buf.Len() > 0 {
				buf.WriteByte('&')
			}
			buf.WriteString(url.QueryEscape(k))
			buf.WriteByte('=')
			buf.WriteString(url.QueryEscape(v))
		}
	}
	return buf.String()
}

func canonicalHost(u *url.URL) string {
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if net.ParseIP(host) == nil {
		if ascii, err := idna.Lookup.ToASCII(host); err == nil {
			host = ascii
		}
	}

	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}

	switch {
	case port != "":
		return net.JoinHostPort(host, port)
	case strings.Contains(host, ":"):
		return "[" + host + "]"
	default:
		return host
	}
}
