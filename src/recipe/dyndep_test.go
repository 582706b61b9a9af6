package recipe

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDepLinesParsesMakeRuleFormat(t *testing.T) {
	deps, err := parseDepLines(strings.NewReader("out.o: a.cxx a.h b.h\n"))
	assert.NoError(t, err)
	assert.Equal(t, []string{"a.cxx", "a.h", "b.h"}, deps)
}

func TestParseDepLinesHandlesLineContinuations(t *testing.T) {
	deps, err := parseDepLines(strings.NewReader("out.o: a.cxx \\\n  a.h \\\n  b.h\n"))
	assert.NoError(t, err)
	assert.Equal(t, []string{"a.cxx", "a.h", "b.h"}, deps)
}
