package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Distances below are the textbook kitten/sitten/sittin/sitting examples
// (1, 2, 3 respectively), chosen so the expected order is never a tie that
// a non-stable sort could resolve either way.

func TestSuggestNoneWithinDistance(t *testing.T) {
	s := Suggest("kitten", []string{"xyzxyz"}, 3)
	assert.Empty(t, s)
}

func TestSuggestSingleMatch(t *testing.T) {
	s := Suggest("kitten", []string{"sitten", "xyzxyz"}, 1)
	assert.Equal(t, []string{"sitten"}, s)
}

func TestSuggestOrdersByDistance(t *testing.T) {
	s := Suggest("kitten", []string{"sitting", "sitten", "sittin"}, 3)
	assert.Equal(t, []string{"sitten", "sittin", "sitting"}, s)
}

func TestPrettyPrintSuggestionEmptyWhenNothingClose(t *testing.T) {
	assert.Equal(t, "", PrettyPrintSuggestion("kitten", []string{"xyzxyz"}, 3))
}

func TestPrettyPrintSuggestionSingle(t *testing.T) {
	s := PrettyPrintSuggestion("kitten", []string{"sitten"}, 1)
	assert.Equal(t, "\nMaybe you meant sitten ?", s)
}

func TestPrettyPrintSuggestionTwo(t *testing.T) {
	s := PrettyPrintSuggestion("kitten", []string{"sittin", "sitten"}, 2)
	assert.Equal(t, "\nMaybe you meant sitten or sittin ?", s)
}

func TestPrettyPrintSuggestionSeveral(t *testing.T) {
	s := PrettyPrintSuggestion("kitten", []string{"sitting", "sittin", "sitten"}, 3)
	assert.Equal(t, "\nMaybe you meant sitten , sittin or sitting ?", s)
}
