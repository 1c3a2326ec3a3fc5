package domain

import (
	"strings"
	"unicode"
)

const (
	// Fragment match weights
	ScoreExactMatch     = 100.0
	ScorePrefixMatch    = 75.0
	ScoreSubstringMatch = 50.0
)

// Query represents a parsed filter typed in the connections pane
type Query struct {
	Raw       string   // Normalized input
	Fragments []string // Space-separated fragments, all must match
}

// ParseQuery parses user input into a structured query
// Examples:
//   - "prod pg" -> ["prod", "pg"]
//   - "  Spark " -> ["spark"]
func ParseQuery(input string) *Query {
	input = strings.TrimSpace(strings.ToLower(input))
	if input == "" {
		return &Query{Raw: input}
	}
	return &Query{
		Raw:       input,
		Fragments: splitAndClean(input, " "),
	}
}

// IsEmpty reports whether the query matches everything.
func (q *Query) IsEmpty() bool {
	return q == nil || len(q.Fragments) == 0
}

// Score returns how well c matches q. Every fragment must match one of the
// connection's display name words, host labels or type, otherwise the
// score is 0.
func Score(q *Query, c *Connection) float64 {
	if q.IsEmpty() || c == nil {
		return 0.0
	}

	targets := connectionFragments(c)

	var total float64
	for _, frag := range q.Fragments {
		best := 0.0
		for _, target := range targets {
			if s := scoreFragment(frag, target); s > best {
				best = s
			}
		}
		if best == 0.0 {
			return 0.0
		}
		total += best
	}
	return total
}

// Filter keeps the connections matching q, preserving input order.
// An empty query returns conns unchanged.
func Filter(q *Query, conns []*Connection) []*Connection {
	if q.IsEmpty() {
		return conns
	}
	out := make([]*Connection, 0, len(conns))
	for _, c := range conns {
		if Score(q, c) > 0 {
			out = append(out, c)
		}
	}
	return out
}

// connectionFragments lists what a query fragment is matched against.
// Example: {Postgres db1.example.com "Prod DB"} ->
// ["prod", "db", "db1", "example", "com", "db1.example.com", "postgres", "prod db"]
func connectionFragments(c *Connection) []string {
	frags := splitAndClean(strings.ToLower(c.displayName), " ")
	frags = append(frags, HostFragments(c.id.Host)...)
	frags = append(frags, strings.ToLower(c.id.Host))
	if c.id.Type != "" {
		frags = append(frags, strings.ToLower(c.id.Type))
	}
	if c.displayName != "" {
		frags = append(frags, strings.ToLower(c.displayName))
	}
	return frags
}

// scoreFragment scores a single query fragment against a target fragment
func scoreFragment(queryFrag, target string) float64 {
	queryFrag = normalizeFragment(queryFrag)
	target = normalizeFragment(target)

	if queryFrag == "" || target == "" {
		return 0.0
	}

	switch {
	case queryFrag == target:
		return ScoreExactMatch
	case strings.HasPrefix(target, queryFrag):
		return ScorePrefixMatch
	case strings.Contains(target, queryFrag):
		return ScoreSubstringMatch
	}
	return 0.0
}

// splitAndClean splits a string by separator and returns non-empty parts
func splitAndClean(s, sep string) []string {
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}

// HostFragments extracts fragments from a host for matching.
// Paths and DSNs are split on separators as well as dots.
// Example: "db1.example.com:5432" -> ["db1", "example", "com", "5432"]
func HostFragments(host string) []string {
	return strings.FieldsFunc(strings.ToLower(host), func(r rune) bool {
		return r == '.' || r == '/' || r == '\\' || r == ':' || r == '=' || r == ';'
	})
}

// normalizeFragment normalizes a fragment for matching
func normalizeFragment(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, s)
}
