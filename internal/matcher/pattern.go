package matcher

import (
	"regexp"

	"github.com/agentstation/hasskey/pkg/errors"
)

// Pattern is a regular expression that must match a property's entire raw
// value. Patterns are compiled once at config load.
type Pattern struct {
	source   string
	compiled *regexp.Regexp
}

// Compile anchors expr at both ends and compiles it.
// The group keeps alternations like "a|b" anchored as a whole.
func Compile(expr string) (*Pattern, error) {
	compiled, err := regexp.Compile(`^(?:` + expr + `)$`)
	if err != nil {
		return nil, errors.NewParseError("regex", "", expr+": "+err.Error(), err)
	}
	return &Pattern{source: expr, compiled: compiled}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(expr string) *Pattern {
	p, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// Literal returns a pattern matching exactly s.
func Literal(s string) *Pattern {
	return MustCompile(regexp.QuoteMeta(s))
}

// Match reports whether the whole of value matches.
func (p *Pattern) Match(value []byte) bool {
	return p.compiled.Match(value)
}

// String returns the pattern as written in the config.
func (p *Pattern) String() string {
	return p.source
}
