// Package chanref parses and orders Cryptomatte channel names.
//
// A Cryptomatte channel name has the form "<typename><index>.<chan>" where
// index is a two-digit rank/coverage pair number and chan selects one of the
// four color components that pair is packed into. A legacy (preview) channel
// drops the index: "<typename>.<chan>".
package chanref

import (
	"fmt"
	"strconv"
	"strings"
)

// Chan identifies which of the four packed components a channel occupies.
type Chan int

const (
	Red Chan = iota
	Green
	Blue
	Alpha
)

// String returns the canonical lowercase single-letter form.
func (c Chan) String() string {
	switch c {
	case Red:
		return "r"
	case Green:
		return "g"
	case Blue:
		return "b"
	case Alpha:
		return "a"
	default:
		return "?"
	}
}

var chanByToken = map[string]Chan{
	"r": Red, "red": Red,
	"g": Green, "green": Green,
	"b": Blue, "blue": Blue,
	"a": Alpha, "alpha": Alpha,
}

// Ref is a parsed Cryptomatte channel reference.
//
// A legacy reference (no index in the surface form) has HasIndex == false;
// Index is meaningless in that case.
type Ref struct {
	Typename string
	Index    int
	HasIndex bool
	Chan     Chan
}

// MalformedError reports why a channel name failed to parse.
type MalformedError struct {
	Name   string
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("chanref: malformed channel name %q: %s", e.Name, e.Reason)
}

// Parse tokenizes a full channel name into a Ref.
//
// Accepted grammar: "<typename><II>.<chan>" (rank/coverage channel, II is
// exactly two decimal digits) or "<typename>.<chan>" (legacy/preview
// channel). Chan accepts both the single-letter and long forms of
// r/g/b/a, case-insensitively.
func Parse(s string) (Ref, error) {
	dot := strings.LastIndexByte(s, '.')
	if dot < 0 {
		return Ref{}, &MalformedError{Name: s, Reason: "missing '.' separator"}
	}

	head, tail := s[:dot], s[dot+1:]

	c, ok := chanByToken[strings.ToLower(tail)]
	if !ok || tail == "" {
		return Ref{}, &MalformedError{Name: s, Reason: "unrecognized channel component " + strconv.Quote(tail)}
	}

	// Reject heads that look like a botched index (too few/many digits
	// immediately preceding the dot) before trying to split one off.
	if trailingDigitRunLooksLikeIndex(head) {
		return Ref{}, &MalformedError{Name: s, Reason: "index must be exactly two digits"}
	}

	// Try to split off a trailing two-digit index.
	if len(head) >= 2 {
		maybeIndex := head[len(head)-2:]
		if isTwoDigits(maybeIndex) {
			typename := head[:len(head)-2]
			if typename == "" {
				return Ref{}, &MalformedError{Name: s, Reason: "empty typename"}
			}
			idx, _ := strconv.Atoi(maybeIndex)
			return Ref{Typename: typename, Index: idx, HasIndex: true, Chan: c}, nil
		}
	}

	// No trailing digits: treat the whole head as a legacy typename.
	if head == "" {
		return Ref{}, &MalformedError{Name: s, Reason: "empty typename"}
	}

	return Ref{Typename: head, HasIndex: false, Chan: c}, nil
}

func isTwoDigits(s string) bool {
	if len(s) != 2 {
		return false
	}
	return s[0] >= '0' && s[0] <= '9' && s[1] >= '0' && s[1] <= '9'
}

// trailingDigitRunLooksLikeIndex rejects names like "X0.r" or "X000.r" where
// the author clearly intended an index but didn't supply exactly two digits.
func trailingDigitRunLooksLikeIndex(head string) bool {
	n := 0
	for n < len(head) && head[len(head)-1-n] >= '0' && head[len(head)-1-n] <= '9' {
		n++
	}
	return n > 0 && n != 2
}

// Render produces the canonical surface form of a Ref: lowercase short
// channel letter and, when present, a zero-padded two-digit index.
//
// Round-trip law: Parse(Render(r)) == r for any Ref r produced by Parse.
func Render(r Ref) string {
	if r.HasIndex {
		return fmt.Sprintf("%s%02d.%s", r.Typename, r.Index, r.Chan)
	}
	return fmt.Sprintf("%s.%s", r.Typename, r.Chan)
}

// IsValid reports whether s parses as a rank/coverage channel name (has an
// index) whose typename equals typename.
func IsValid(s, typename string) bool {
	r, err := Parse(s)
	return err == nil && r.HasIndex && r.Typename == typename
}

// IsValidLegacy reports whether s parses as a legacy (no index) channel name
// whose typename equals typename.
func IsValidLegacy(s, typename string) bool {
	r, err := Parse(s)
	return err == nil && !r.HasIndex && r.Typename == typename
}

// Less implements the strict total order from spec §3: lexicographic over
// (typename, index, chan), with chan ordered red < green < blue < alpha.
// Legacy references (no index) sort as if index were -1, i.e. before any
// indexed reference with the same typename.
func Less(a, b Ref) bool {
	if a.Typename != b.Typename {
		return a.Typename < b.Typename
	}
	ai, bi := refIndexKey(a), refIndexKey(b)
	if ai != bi {
		return ai < bi
	}
	return a.Chan < b.Chan
}

func refIndexKey(r Ref) int {
	if !r.HasIndex {
		return -1
	}
	return r.Index
}
