package urltemplate

import (
	"net/url"
	"sort"
	"strings"
)

type pair struct {
	key   string
	value string
}

// Query is an ordered collection of query parameters. It keeps the order in
// which keys first appeared, like a browser's URLSearchParams. The zero
// value is an empty collection. A nil *Query reads as empty and ignores
// Delete, but Set needs a non-nil one.
type Query struct {
	pairs []pair
}

// ParseQuery decodes a raw query string (without the leading '?').
// Parsing is lenient: empty pieces are skipped and undecodable escapes are
// kept verbatim.
func ParseQuery(raw string) *Query {
	q := &Query{}
	raw = strings.TrimPrefix(raw, "?")
	for _, piece := range strings.Split(raw, "&") {
		if piece == "" {
			continue
		}
		k, v, _ := strings.Cut(piece, "=")
		q.pairs = append(q.pairs, pair{key: unescape(k), value: unescape(v)})
	}
	return q
}

// FromMap builds a Query from a map with keys in sorted order.
func FromMap(m map[string]string) *Query {
	q := &Query{}
	for _, k := range sortedKeys(m) {
		q.pairs = append(q.pairs, pair{key: k, value: m[k]})
	}
	return q
}

func unescape(s string) string {
	v, err := url.QueryUnescape(s)
	if err != nil {
		return strings.ReplaceAll(s, "+", " ")
	}
	return v
}

// Get returns the first value for name.
func (q *Query) Get(name string) (string, bool) {
	if q == nil {
		return "", false
	}
	for _, p := range q.pairs {
		if p.key == name {
			return p.value, true
		}
	}
	return "", false
}

// Has reports whether name is present.
func (q *Query) Has(name string) bool {
	_, ok := q.Get(name)
	return ok
}

// Set replaces the first occurrence of name with value and removes any
// others. A new name is appended at the end. q must not be nil; Clone turns
// a possibly nil Query into one that can be set.
func (q *Query) Set(name, value string) {
	out := q.pairs[:0]
	found := false
	for _, p := range q.pairs {
		if p.key != name {
			out = append(out, p)
			continue
		}
		if !found {
			out = append(out, pair{key: name, value: value})
			found = true
		}
	}
	if !found {
		out = append(out, pair{key: name, value: value})
	}
	q.pairs = out
}

// Delete removes every occurrence of name. It does nothing on a nil Query.
func (q *Query) Delete(name string) {
	if q == nil {
		return
	}
	out := q.pairs[:0]
	for _, p := range q.pairs {
		if p.key != name {
			out = append(out, p)
		}
	}
	q.pairs = out
}

// Len returns the number of key/value pairs.
func (q *Query) Len() int {
	if q == nil {
		return 0
	}
	return len(q.pairs)
}

// Keys returns the distinct keys in order of first appearance.
func (q *Query) Keys() []string {
	if q == nil {
		return nil
	}
	seen := make(map[string]bool, len(q.pairs))
	var keys []string
	for _, p := range q.pairs {
		if !seen[p.key] {
			seen[p.key] = true
			keys = append(keys, p.key)
		}
	}
	return keys
}

// Map returns the first value of every key.
func (q *Query) Map() map[string]string {
	m := make(map[string]string, q.Len())
	if q == nil {
		return m
	}
	for _, p := range q.pairs {
		if _, ok := m[p.key]; !ok {
			m[p.key] = p.value
		}
	}
	return m
}

// Clone returns an independent copy.
func (q *Query) Clone() *Query {
	if q == nil {
		return &Query{}
	}
	c := &Query{pairs: make([]pair, len(q.pairs))}
	copy(c.pairs, q.pairs)
	return c
}

// Encode serializes the collection in order using form encoding.
func (q *Query) Encode() string {
	if q == nil || len(q.pairs) == 0 {
		return ""
	}
	var b strings.Builder
	for i, p := range q.pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.value))
	}
	return b.String()
}

// String implements fmt.Stringer.
func (q *Query) String() string {
	return q.Encode()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
