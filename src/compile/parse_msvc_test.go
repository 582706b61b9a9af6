package compile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMSVCParseDepsExtractsIncludeNotes(t *testing.T) {
	tc := NewMSVCToolchain("cl.exe")
	out := "foo.cxx\n" +
		"Note: including file: C:\\include\\bar.h\n" +
		"Note: including file:  C:\\include\\baz.h\n"
	deps, err := tc.ParseDeps(strings.NewReader(out))
	assert.NoError(t, err)
	assert.Equal(t, []string{`C:\include\bar.h`, `C:\include\baz.h`}, deps)
}

func TestMSVCMissingHeaderDetectsC1083(t *testing.T) {
	tc := NewMSVCToolchain("cl.exe")
	out := "foo.cxx(3): fatal error C1083: Cannot open include file: 'bar.h': No such file or directory\n"
	path, ok := tc.MissingHeader(out)
	assert.True(t, ok)
	assert.Equal(t, "bar.h", path)
}

func TestMSVCMissingHeaderAbsentOnOtherCodes(t *testing.T) {
	tc := NewMSVCToolchain("cl.exe")
	_, ok := tc.MissingHeader("foo.cxx(3): error C2143: syntax error\n")
	assert.False(t, ok)
}
