// Package canonical normalizes posting fields so the same real-world job produces the same
// fingerprint regardless of which source or URL variant it was discovered through.
//
// Every function is idempotent: applying it to its own output returns the output unchanged.
package canonical

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Options extends the built-in tables.
type Options struct {
	// TrackingParams are additional query keys to drop (matched case-insensitively).
	TrackingParams []string
	// AllowedParams, when non-empty, is the exhaustive set of query keys kept in URLs.
	AllowedParams []string
	// LocationAliases maps alias spellings to a canonical location.
	LocationAliases map[string]string
	// TitleAbbreviations maps single title tokens to their expansion.
	TitleAbbreviations map[string]string
}

// Canonicalizer holds the normalization tables. It is safe for concurrent use once built.
type Canonicalizer struct {
	tracking  map[string]struct{}
	allowed   map[string]struct{}
	locations map[string]string
	titles    map[string][]string
}

var defaultCanonicalizer = sync.OnceValue(func() *Canonicalizer { return New(Options{}) })

// Default returns a Canonicalizer using only the built-in tables.
func Default() *Canonicalizer {
	return defaultCanonicalizer()
}

// New builds a Canonicalizer from the built-in tables plus opts.
func New(opts Options) *Canonicalizer {
	c := &Canonicalizer{
		tracking:  make(map[string]struct{}, len(defaultTrackingParams)+len(opts.TrackingParams)),
		allowed:   make(map[string]struct{}, len(opts.AllowedParams)),
		locations: make(map[string]string, len(defaultLocationAliases)+len(opts.LocationAliases)),
		titles:    make(map[string][]string, len(defaultTitleAbbreviations)+len(opts.TitleAbbreviations)),
	}

	for _, p := range append(append([]string(nil), defaultTrackingParams...), opts.TrackingParams...) {
		if key := strings.ToLower(strings.TrimSpace(p)); key != "" {
			c.tracking[key] = struct{}{}
		}
	}
	for _, p := range opts.AllowedParams {
		if key := strings.ToLower(strings.TrimSpace(p)); key != "" {
			c.allowed[key] = struct{}{}
		}
	}

	c.buildLocations(defaultLocationAliases, opts.LocationAliases)
	c.buildTitles(defaultTitleAbbreviations, opts.TitleAbbreviations)
	return c
}

// Company lightly normalizes a company name. Companies are matched exactly after this step.
func (c *Canonicalizer) Company(raw string) string {
	s := collapseSpaces(strings.ToLower(norm.NFKC.String(raw)))
	return strings.TrimRight(s, " .,;")
}

// Location maps known aliases to a canonical location and otherwise returns the
// normalized, lowercased input.
func (c *Canonicalizer) Location(raw string) string {
	key := locationKey(raw)
	if v, ok := c.locations[key]; ok {
		return v
	}
	return key
}

// Title expands abbreviations and seniority markers token by token.
func (c *Canonicalizer) Title(raw string) string {
	return strings.Join(c.expandTitleTokens(titleTokens(raw)), " ")
}

func (c *Canonicalizer) expandTitleTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if exp, ok := c.titles[tok]; ok {
			out = append(out, exp...)
			continue
		}
		out = append(out, tok)
	}
	return out
}

func (c *Canonicalizer) buildLocations(tables ...map[string]string) {
	for _, table := range tables {
		for alias, canonical := range table {
			key := locationKey(alias)
			if key == "" {
				continue
			}
			c.locations[key] = locationKey(canonical)
		}
	}

	// Resolve alias chains so every target is a fixed point.
	for key, target := range c.locations {
		seen := map[string]bool{key: true}
		for {
			next, ok := c.locations[target]
			if !ok || next == target || seen[target] {
				break
			}
			seen[target] = true
			target = next
		}
		c.locations[key] = target
	}
	for _, target := range c.locations {
		if next, ok := c.locations[target]; ok && next != target {
			c.locations[target] = target
		}
	}
}

func (c *Canonicalizer) buildTitles(tables ...map[string]string) {
	for _, table := range tables {
		for abbr, expansion := range table {
			key := strings.Join(titleTokens(abbr), " ")
			tokens := titleTokens(expansion)
			if key == "" || strings.Contains(key, " ") || len(tokens) == 0 {
				continue
			}
			c.titles[key] = tokens
		}
	}

	// Expand expansions until stable; drop entries that never settle.
	const maxDepth = 4
	for key, tokens := range c.titles {
		stable := false
		for range maxDepth {
			next := c.expandTitleTokens(tokens)
			if equalTokens(next, tokens) {
				stable = true
				break
			}
			tokens = next
		}
		if !stable || containsToken(tokens, key) {
			delete(c.titles, key)
			continue
		}
		c.titles[key] = tokens
	}
}

// locationKey lowercases, NFKC-normalizes, and canonicalizes separators.
// Commas are kept as the only structural punctuation.
func locationKey(raw string) string {
	s := strings.ToLower(norm.NFKC.String(raw))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '%':
			b.WriteRune(r)
		case r == ',':
			b.WriteString(", ")
		default:
			b.WriteByte(' ')
		}
	}

	parts := strings.Split(b.String(), ",")
	cleaned := parts[:0]
	for _, p := range parts {
		if p = collapseSpaces(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return strings.Join(cleaned, ", ")
}

// titleTokens splits a title into lowercase tokens, keeping the symbols that carry meaning
// in job titles (c++, c#, r&d) and treating "/" as its own token.
func titleTokens(raw string) []string {
	s := strings.ToLower(norm.NFKC.String(raw))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '+', r == '#', r == '&':
			b.WriteRune(r)
		case r == '/':
			b.WriteString(" / ")
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Fields(b.String())
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func equalTokens(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func containsToken(tokens []string, tok string) bool {
	for _, t := range tokens {
		if t == tok {
			return true
		}
	}
	return false
}
