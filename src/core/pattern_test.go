package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPatternSetMostSpecificGlobWins(t *testing.T) {
	var ps PatternSet
	broad := NewVariableMap()
	narrow := NewVariableMap()

	ps.Add(NewGlobPattern("/src/*", broad))
	ps.Add(NewGlobPattern("/src/exact.cxx", narrow))

	assert.Same(t, narrow, ps.Match("/src/exact.cxx"))
	assert.Same(t, broad, ps.Match("/src/other.cxx"))
	assert.Nil(t, ps.Match("/elsewhere/x.cxx"))
}

func TestRegexPatternMatches(t *testing.T) {
	vm := NewVariableMap()
	p := NewRegexPattern(`^/gen/.*\.pb\.cxx$`, vm)
	assert.True(t, p.Matches("/gen/foo.pb.cxx"))
	assert.False(t, p.Matches("/src/foo.cxx"))
}

func TestRegexPatternInvalidPanics(t *testing.T) {
	assert.Panics(t, func() { NewRegexPattern("(unclosed", NewVariableMap()) })
}
