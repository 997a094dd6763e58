package codec

import (
	"regexp"
	"strconv"
	"strings"

	"wsfuzz/internal/domain"
)

// MaxDepth bounds how many nesting levels Extract descends into. Structures
// nested deeper are still recorded as raw text at the last visited level but
// are not expanded further.
const MaxDepth = 10

// Extract decomposes a structured text payload into a flat path->value map.
//
// This is a best-effort structural scan, NOT a conformant JSON parser, and it
// must stay that way: intercepted traffic is routinely malformed, truncated or
// deliberately hostile, and the scan has to keep yielding whatever key/value
// pairs it can find instead of rejecting the whole payload. Malformed input
// produces fewer fields, never an error.
//
// Paths use "." for object members and "[i]" for array elements
// ("user.tags[0]"). String values are unescaped (\" and \\ only); object and
// array values are stored as their raw text and then expanded.
func Extract(text string) *domain.Fields {
	fields := domain.NewFields()
	ExtractInto(fields, text, "")
	return fields
}

// ExtractInto scans text and stores its fields under prefix.
func ExtractInto(fields *domain.Fields, text, prefix string) {
	extractObject(strings.TrimSpace(text), prefix, fields, 0)
}

var (
	keyPattern    = regexp.MustCompile(`"([^"]+)"\s*:\s*`)
	numberPattern = regexp.MustCompile(`^-?\d+(?:\.\d+)?(?:[eE][+-]?\d+)?`)
)

type valueKind int

const (
	valueNone valueKind = iota
	valueString
	valueScalar
	valueObject
	valueArray
)

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func extractObject(text, prefix string, fields *domain.Fields, depth int) {
	if depth > MaxDepth {
		return
	}
	ends := indexBrackets(text)
	pos := 0
	for pos < len(text) {
		loc := keyPattern.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			return
		}
		key := text[pos+loc[2] : pos+loc[3]]
		start := pos + loc[1]
		end, kind := scanValue(text, start, ends)
		if kind == valueNone {
			pos = start
			continue
		}
		path := joinPath(prefix, key)
		raw := text[start:end]
		switch kind {
		case valueString:
			fields.Set(path, unescapeQuoted(raw[1:len(raw)-1]))
		case valueObject:
			fields.Set(path, raw)
			extractObject(raw, path, fields, depth+1)
		case valueArray:
			fields.Set(path, raw)
			extractArray(raw, path, fields, depth)
		default:
			fields.Set(path, raw)
		}
		pos = end
	}
}

func extractArray(raw, prefix string, fields *domain.Fields, depth int) {
	if depth > MaxDepth || len(raw) < 2 {
		return
	}
	inner := strings.TrimSpace(raw[1 : len(raw)-1])
	if inner == "" {
		return
	}
	for i, elem := range splitElements(inner) {
		if elem == "" {
			continue
		}
		path := prefix + "[" + strconv.Itoa(i) + "]"
		switch elem[0] {
		case '"':
			if len(elem) >= 2 && elem[len(elem)-1] == '"' {
				fields.Set(path, unescapeQuoted(elem[1:len(elem)-1]))
				continue
			}
			fields.Set(path, elem)
		case '{':
			fields.Set(path, elem)
			extractObject(elem, path, fields, depth+1)
		case '[':
			fields.Set(path, elem)
			extractArray(elem, path, fields, depth+1)
		default:
			fields.Set(path, elem)
		}
	}
}

// scanValue returns the end offset of the value starting at text[i]. ends is
// the bracket index of text.
func scanValue(text string, i int, ends []int32) (int, valueKind) {
	if i >= len(text) {
		return i, valueNone
	}
	switch c := text[i]; {
	case c == '"':
		if end := scanString(text, i); end > 0 {
			return end, valueString
		}
	case c == '{' || c == '[':
		if ends != nil && ends[i] > 0 {
			end := int(ends[i])
			if c == '{' {
				return end, valueObject
			}
			return end, valueArray
		}
	case strings.HasPrefix(text[i:], "true"):
		return i + 4, valueScalar
	case strings.HasPrefix(text[i:], "false"):
		return i + 5, valueScalar
	case strings.HasPrefix(text[i:], "null"):
		return i + 4, valueScalar
	case c == '-' || (c >= '0' && c <= '9'):
		if m := numberPattern.FindStringIndex(text[i:]); m != nil {
			return i + m[1], valueScalar
		}
	}
	return i, valueNone
}

// scanString returns the offset just past the closing quote of the string
// literal starting at text[i], or -1 if it is unterminated.
func scanString(text string, i int) int {
	for j := i + 1; j < len(text); j++ {
		switch text[j] {
		case '\\':
			j++
		case '"':
			return j + 1
		}
	}
	return -1
}

// indexBrackets pairs the brackets of text that sit outside string literals
// in a single pass. ends[i] is the offset just past the bracket closing the
// one opened at i, and 0 when that bracket never closes, closes with the
// wrong type, or lies inside a string. It returns nil when text has no
// opening bracket.
func indexBrackets(text string) []int32 {
	if !strings.ContainsAny(text, "{[") {
		return nil
	}
	ends := make([]int32, len(text))
	var open []int
	for j := 0; j < len(text); j++ {
		switch c := text[j]; c {
		case '"':
			end := scanString(text, j)
			if end < 0 {
				return ends
			}
			j = end - 1
		case '{', '[':
			open = append(open, j)
		case '}', ']':
			if len(open) == 0 {
				continue
			}
			top := open[len(open)-1]
			if text[top] != opener(c) {
				// a mismatched closer fails every bracket still open
				open = open[:0]
				continue
			}
			ends[top] = int32(j + 1)
			open = open[:len(open)-1]
		}
	}
	return ends
}

func opener(closer byte) byte {
	if closer == '}' {
		return '{'
	}
	return '['
}

// splitElements splits a list body on commas that sit outside any nested
// object, array or string. Elements are trimmed.
func splitElements(inner string) []string {
	var out []string
	depth, start := 0, 0
	for j := 0; j < len(inner); j++ {
		switch inner[j] {
		case '"':
			end := scanString(inner, j)
			if end < 0 {
				j = len(inner)
				continue
			}
			j = end - 1
		case '{', '[':
			depth++
		case '}', ']':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(inner[start:j]))
				start = j + 1
			}
		}
	}
	return append(out, strings.TrimSpace(inner[start:]))
}

// unescapeQuoted reverses \" and \\ in a single pass. Other escape
// sequences are kept verbatim.
func unescapeQuoted(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && (s[i+1] == '"' || s[i+1] == '\\') {
			b.WriteByte(s[i+1])
			i++
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// escapeQuoted is the inverse of unescapeQuoted.
func escapeQuoted(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
