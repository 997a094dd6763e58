// Package mutate substitutes payload values into frame templates, either by
// named field or by §marker§ placeholders.
package mutate

import (
	"regexp"
	"strings"
)

var indexedPath = regexp.MustCompile(`(\w+)\[(\d+)\]`)

// ResolveFieldName reduces a structural path to the member name that
// ReplaceField searches for: the last dotted segment, with any [i] suffix
// removed.
func ResolveFieldName(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		path = path[i+1:]
	}
	if m := indexedPath.FindStringSubmatch(path); m != nil {
		return m[1]
	}
	return path
}

// ReplaceField replaces the value of the first member named after path.
//
// Paths are resolved by name only: "user.id" and "items[0]" target the first
// "id" and "items" members anywhere in text, whatever object they belong to.
// A string value is replaced with value JSON-escaped; failing that the first
// numeric, then boolean/null value is replaced with value verbatim. When no
// member matches, text is returned unchanged.
func ReplaceField(text, path, value string) string {
	name := ResolveFieldName(path)
	if name == "" {
		return text
	}
	key := `"` + regexp.QuoteMeta(name) + `"\s*:\s*`
	for _, c := range []struct {
		re     *regexp.Regexp
		escape bool
	}{
		{compileValue(key, `"(?:[^"\\]|\\.)*"`), true},
		{compileValue(key, `-?[\d.]+`), false},
		{compileValue(key, `(?:true|false|null)`), false},
	} {
		m := c.re.FindStringSubmatchIndex(text)
		if m == nil {
			continue
		}
		repl := value
		if c.escape {
			repl = `"` + escapeJSON(value) + `"`
		}
		return text[:m[2]] + repl + text[m[3]:]
	}
	return text
}

func compileValue(key, value string) *regexp.Regexp {
	return regexp.MustCompile(key + `(` + value + `)`)
}

func escapeJSON(s string) string {
	return jsonEscaper.Replace(s)
}

var jsonEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// ReplaceFields applies ReplaceField for every path in order.
func ReplaceFields(text string, paths []string, value string) string {
	for _, p := range paths {
		text = ReplaceField(text, p, value)
	}
	return text
}
