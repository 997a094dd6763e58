package codec

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractFlatKeepsOrder(t *testing.T) {
	f := Extract(`{"a":"1","b":"2"}`)
	assert.Equal(t, []string{"a", "b"}, f.Keys())
	v, _ := f.Get("a")
	assert.Equal(t, "1", v)
	v, _ = f.Get("b")
	assert.Equal(t, "2", v)
}

func TestExtractValueShapes(t *testing.T) {
	f := Extract(`{"s":"say \"hi\"","n":-1.5e3,"t":true,"f":false,"z":null,"o":{"k":"v"},"arr":[1,"two",{"x":3}]}`)

	want := map[string]string{
		"s":        `say "hi"`,
		"n":        "-1.5e3",
		"t":        "true",
		"f":        "false",
		"z":        "null",
		"o":        `{"k":"v"}`,
		"o.k":      "v",
		"arr":      `[1,"two",{"x":3}]`,
		"arr[0]":   "1",
		"arr[1]":   "two",
		"arr[2]":   `{"x":3}`,
		"arr[2].x": "3",
	}
	for path, val := range want {
		got, ok := f.Get(path)
		assert.True(t, ok, path)
		assert.Equal(t, val, got, path)
	}
	assert.Equal(t, len(want), f.Len())
}

func TestExtractNestedKeysOnlyUnderFullPath(t *testing.T) {
	f := Extract(`{"user":{"id":7,"name":"a"},"id":9}`)
	assert.Equal(t, []string{"user", "user.id", "user.name", "id"}, f.Keys())
	v, _ := f.Get("id")
	assert.Equal(t, "9", v)
}

func TestExtractDepthBound(t *testing.T) {
	const levels = 12
	var b strings.Builder
	for i := 1; i <= levels; i++ {
		fmt.Fprintf(&b, `{"k%d":`, i)
	}
	b.WriteString(`"leaf"`)
	b.WriteString(strings.Repeat("}", levels))

	f := Extract(b.String())

	path := "k1"
	for i := 2; i <= MaxDepth+1; i++ {
		path += fmt.Sprintf(".k%d", i)
	}
	assert.True(t, f.Has(path), "depth %d should be extracted", MaxDepth)
	assert.False(t, f.Has(path+".k12"))
	for _, k := range f.Keys() {
		assert.NotContains(t, k, "k12")
	}
}

func TestExtractMalformedInput(t *testing.T) {
	tests := []string{
		``,
		`not json at all`,
		`{"a":`,
		`{"a":"unterminated`,
		`{"a":{"b":1}`,
		`{"a":[1,2`,
		`{{{{`,
		`"":1`,
	}
	for _, in := range tests {
		assert.NotPanics(t, func() { Extract(in) }, in)
	}

	f := Extract(`{"a":[1,2, "b":"ok"}`)
	v, ok := f.Get("b")
	assert.True(t, ok)
	assert.Equal(t, "ok", v)
}

func TestExtractRecoversAfterMismatchedBracket(t *testing.T) {
	f := Extract(`{"a":[1}, "b":{"c":1}}`)
	assert.False(t, f.Has("a"))
	v, ok := f.Get("b.c")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
}

func TestIndexBrackets(t *testing.T) {
	text := `{"s":"[{",  "o":{"x":[1]}, "bad":[}`
	ends := indexBrackets(text)
	assert.Zero(t, ends[strings.Index(text, `[{"`)], "bracket inside a string")
	o := strings.Index(text, `{"x"`)
	assert.Equal(t, `{"x":[1]}`, text[o:ends[o]])
	assert.Zero(t, ends[strings.LastIndex(text, "[")], "closed by the wrong type")
	assert.Zero(t, ends[0], "outer object fails with its mismatched child")

	assert.Nil(t, indexBrackets(`"no brackets"`))
}

func TestExtractTopLevelArray(t *testing.T) {
	f := Extract(`[{"a":1},{"b":2}]`)
	assert.True(t, f.Has("a"))
	assert.True(t, f.Has("b"))
}

func TestExtractIntoPrefix(t *testing.T) {
	f := Extract("")
	ExtractInto(f, `{"x":1}`, "body")
	assert.Equal(t, []string{"body.x"}, f.Keys())
}

func TestUnescapeQuotedSinglePass(t *testing.T) {
	assert.Equal(t, `a"b\c`, unescapeQuoted(`a\"b\\c`))
	assert.Equal(t, `\n`, unescapeQuoted(`\n`))
	assert.Equal(t, `\"`, unescapeQuoted(`\\\"`))
	assert.Equal(t, `a\"b\\c`, escapeQuoted(`a"b\c`))
}
