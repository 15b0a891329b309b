package argspec

import (
	"strconv"
	"strings"
)

type matcherKind int

const (
	kindUint matcherKind = iota
	kindString
	kindChunk
)

// chunkRef is one chunk flag as seen on the command line.
type chunkRef struct {
	index   uint64
	arrival int
	value   string
}

// matcher recognises one flag family. The set of kinds is closed, so the
// matchers are plain tagged values dispatched by consume rather than an
// interface.
type matcher struct {
	kind   matcherKind
	option string

	// Exactly one destination is used, depending on kind.
	uintDst   *uint64
	stringDst *string
	chunks    *[]chunkRef

	matched bool
}

func uintMatcher(option string, dst *uint64) *matcher {
	return &matcher{kind: kindUint, option: option, uintDst: dst}
}

func stringMatcher(option string, dst *string) *matcher {
	return &matcher{kind: kindString, option: option, stringDst: dst}
}

func chunkMatcher(prefix string, dst *[]chunkRef) *matcher {
	return &matcher{kind: kindChunk, option: prefix, chunks: dst}
}

// consume tries to match args[i] (and possibly args[i+1]). It returns the
// number of arguments used, or 0 if the argument is not this matcher's flag
// or its value is malformed. Nothing is recorded unless the match succeeds.
func (m *matcher) consume(args []string, i int) int {
	if !strings.HasPrefix(args[i], m.option) {
		return 0
	}
	switch m.kind {
	case kindUint:
		return m.consumeUint(args, i)
	case kindString:
		return m.consumeString(args, i)
	case kindChunk:
		return m.consumeChunk(args, i)
	default:
		return 0
	}
}

// scalarValue handles the "--opt value" and "--opt=value" shapes shared by
// the uint and string kinds.
func (m *matcher) scalarValue(args []string, i int) (string, int, bool) {
	arg := args[i]
	switch {
	case len(arg) == len(m.option):
		if i+1 >= len(args) {
			return "", 0, false
		}
		return args[i+1], 2, true
	case arg[len(m.option)] == '=':
		return arg[len(m.option)+1:], 1, true
	default:
		return "", 0, false
	}
}

func (m *matcher) consumeUint(args []string, i int) int {
	raw, n, ok := m.scalarValue(args, i)
	if !ok {
		return 0
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	*m.uintDst = v
	m.matched = true
	return n
}

func (m *matcher) consumeString(args []string, i int) int {
	raw, n, ok := m.scalarValue(args, i)
	if !ok || raw == "" {
		return 0
	}
	*m.stringDst = raw
	m.matched = true
	return n
}

// consumeChunk handles "--spec-chunk-<N> value" and "--spec-chunk-<N>=value".
// The value may itself contain '=' (base64 padding), so only the first '='
// separates the index from the value.
func (m *matcher) consumeChunk(args []string, i int) int {
	rest := args[i][len(m.option):]

	var (
		rawIndex, value string
		n               int
	)
	if before, after, found := strings.Cut(rest, "="); found {
		rawIndex, value, n = before, after, 1
	} else {
		if i+1 >= len(args) {
			return 0
		}
		rawIndex, value, n = rest, args[i+1], 2
	}

	index, err := strconv.ParseUint(rawIndex, 10, 64)
	if err != nil {
		return 0
	}

	*m.chunks = append(*m.chunks, chunkRef{index: index, arrival: len(*m.chunks), value: value})
	m.matched = true
	return n
}
