package core

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCellTypifyConvertsOnce(t *testing.T) {
	c := NewCell(NamesValue{"1", "2", "3"})
	calls := 0
	convert := func(n NamesValue) (Value, error) {
		calls++
		return ListValue{Int64Value(1), Int64Value(2), Int64Value(3)}, nil
	}

	assert.NoError(t, c.Typify(convert))
	assert.Equal(t, TypeList, c.Get().Type())
	assert.Equal(t, 1, calls)

	assert.NoError(t, c.Typify(convert))
	assert.Equal(t, 1, calls, "already-typified cell must not be converted again")
}

func TestCellTypifyPropagatesError(t *testing.T) {
	c := NewCell(NamesValue{"oops"})
	err := c.Typify(func(NamesValue) (Value, error) { return nil, fmt.Errorf("bad literal") })
	assert.Error(t, err)
	assert.Equal(t, TypeUntyped, c.Get().Type(), "failed conversion leaves the cell untyped")
}

func TestListValueAppendPrepend(t *testing.T) {
	l := ListValue{Int64Value(1), Int64Value(2)}
	appended := l.Append(ListValue{Int64Value(3)})
	assert.Equal(t, 3, appended.(ListValue).Len())

	prepended := l.Prepend(Int64Value(0))
	assert.Equal(t, Int64Value(0), prepended.(ListValue).Item(0))
}

func TestListValueReverse(t *testing.T) {
	l := ListValue{Int64Value(1), Int64Value(2), Int64Value(3)}
	r := l.Reverse().(ListValue)
	assert.Equal(t, Int64Value(3), r.Item(0))
	assert.Equal(t, Int64Value(1), r.Item(2))
}

func TestStringValueCompare(t *testing.T) {
	assert.Equal(t, 0, StringValue("a").Compare(StringValue("a")))
	assert.Less(t, StringValue("a").Compare(StringValue("b")), 0)
}

func TestMapValueSubscript(t *testing.T) {
	m := MapValue{"x": Int64Value(1)}
	v, ok := m.Subscript(StringValue("x"))
	assert.True(t, ok)
	assert.Equal(t, Int64Value(1), v)

	_, ok = m.Subscript(StringValue("missing"))
	assert.False(t, ok)
}

func TestMapValueCompareEquality(t *testing.T) {
	a := MapValue{"x": Int64Value(1)}
	b := MapValue{"x": Int64Value(1)}
	c := MapValue{"x": Int64Value(2)}
	assert.Equal(t, 0, a.Compare(b))
	assert.NotEqual(t, 0, a.Compare(c))
}

func TestNamesValueIsNullOnlyWhenNil(t *testing.T) {
	var nilNames NamesValue
	assert.True(t, nilNames.IsNull())
	assert.False(t, NamesValue{}.IsNull())
}
