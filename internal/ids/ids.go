// Package ids generates and validates Lattice's sortable entity IDs and
// short IDs (spec.md §3 "Identifiers").
//
// Entity IDs are <prefix><26-char Crockford-base32 ULID body>: a
// millisecond timestamp followed by random bits, so lexicographic order
// equals creation order (invariant I1) without any central counter.
package ids

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Entity ID prefixes.
const (
	PrefixTask     = "task_"
	PrefixEvent    = "ev_"
	PrefixArtifact = "art_"
	PrefixResource = "res_"
)

const crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// bodyLen is the number of Crockford-base32 characters in a ULID body:
// 48 bits of timestamp (10 chars) + 80 bits of randomness (16 chars).
const bodyLen = 26

// New returns a new sortable ID with the given prefix, derived from now.
func New(prefix string) string {
	return NewAt(prefix, time.Now())
}

// NewAt returns a new sortable ID with the given prefix, derived from ts.
// Exposed separately so callers that must stay deterministic (tests,
// rebuild paths that re-derive IDs from event timestamps) never touch
// the wall clock indirectly through New.
func NewAt(prefix string, ts time.Time) string {
	ms := uint64(ts.UnixMilli())
	if ms < 0 {
		ms = 0
	}

	var body [bodyLen]byte
	encodeTime(body[:10], ms)

	randBytes := make([]byte, 10)
	_, _ = rand.Read(randBytes) // crypto/rand.Read never returns an error on supported platforms
	encodeRandom(body[10:], randBytes)

	return prefix + string(body[:])
}

func encodeTime(dst []byte, ms uint64) {
	for i := len(dst) - 1; i >= 0; i-- {
		dst[i] = crockford[ms&0x1F]
		ms >>= 5
	}
}

func encodeRandom(dst []byte, src []byte) {
	// 10 bytes (80 bits) -> 16 Crockford chars (5 bits each).
	var bits uint64
	var nbits uint
	si := 0
	for i := range dst {
		for nbits < 5 {
			if si < len(src) {
				bits = bits<<8 | uint64(src[si])
				si++
			} else {
				bits <<= 8
			}
			nbits += 8
		}
		nbits -= 5
		dst[i] = crockford[(bits>>nbits)&0x1F]
	}
}

var entityIDRe = regexp.MustCompile(`^[0-9A-Z]{26}$`)

// Valid reports whether id has the given prefix followed by a
// well-formed ULID-shaped body.
func Valid(id, prefix string) bool {
	rest, ok := strings.CutPrefix(id, prefix)
	if !ok {
		return false
	}
	return entityIDRe.MatchString(rest)
}

// Prefix returns the entity-kind prefix of id ("task_", "ev_", ...), or
// "" if id does not match any known entity ID shape.
func Prefix(id string) string {
	for _, p := range []string{PrefixTask, PrefixEvent, PrefixArtifact, PrefixResource} {
		if Valid(id, p) {
			return p
		}
	}
	return ""
}

var shortIDComponentRe = regexp.MustCompile(`^[A-Z]{1,5}$`)

// ValidShortIDComponent reports whether s is a legal PROJECT or SUB
// component of a short ID: 1-5 uppercase ASCII letters.
func ValidShortIDComponent(s string) bool {
	return shortIDComponentRe.MatchString(s)
}

var shortIDRe = regexp.MustCompile(`^([A-Z]{1,5})(?:-([A-Z]{1,5}))?-([1-9][0-9]*)$`)

// ParseShortID splits a short ID of the form PROJECT[-SUB]-N into its
// project prefix (the part allocate() keys on: "PROJECT" or
// "PROJECT-SUB") and its sequence number.
func ParseShortID(s string) (prefix string, seq int, ok bool) {
	m := shortIDRe.FindStringSubmatch(s)
	if m == nil {
		return "", 0, false
	}
	project, sub, n := m[1], m[2], m[3]
	prefix = project
	if sub != "" {
		prefix = project + "-" + sub
	}
	var seq64 int
	if _, err := fmt.Sscanf(n, "%d", &seq64); err != nil {
		return "", 0, false
	}
	return prefix, seq64, true
}

// FormatShortID renders a short ID for prefix and sequence number n.
func FormatShortID(prefix string, n int) string {
	return fmt.Sprintf("%s-%d", prefix, n)
}
