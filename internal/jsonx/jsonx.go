// Package jsonx contains the defensive JSON handling needed at the AI
// boundary: block extraction from noisy completions and coercion of
// loosely-shaped values into strings.
package jsonx

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

var (
	fenceOpen  = regexp.MustCompile("(?s)^```(?:json)?\\s*")
	fenceClose = regexp.MustCompile("\\s*```$")
	blockRe    = regexp.MustCompile(`(?s)\{.*\}|\[.*\]`)
)

// ExtractBlock returns the first balanced JSON object or array found in
// text. Markdown code fences are stripped first. When nothing balanced can
// be found, "{}" is returned so callers always hold parseable input.
func ExtractBlock(text string) string {
	text = strings.TrimSpace(text)
	text = fenceOpen.ReplaceAllString(text, "")
	text = fenceClose.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	start := -1
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if start != -1 {
				inString = true
			}
		case '{', '[':
			if start == -1 {
				start = i
			}
			stack = append(stack, c)
		case '}', ']':
			if len(stack) == 0 {
				continue
			}
			open := stack[len(stack)-1]
			if (c == '}' && open == '{') || (c == ']' && open == '[') {
				stack = stack[:len(stack)-1]
				if len(stack) == 0 && start != -1 {
					return text[start : i+1]
				}
			}
		}
	}

	// Unbalanced input: fall back to a greedy match before giving up.
	if m := blockRe.FindString(text); m != "" {
		return m
	}
	return "{}"
}

// URLValue is a URL field as asserted by the AI. The collaborator mostly
// returns a plain string, but malformed generations produce objects like
// {"url": "..."} or single-element lists. Unmarshalling coerces all
// accepted shapes to a string and fails closed (empty) on anything else.
type URLValue string

// urlKeys are the object keys checked, in order, when the AI wraps a URL
// in an object.
var urlKeys = []string{"url", "uri", "link", "href", "original", "value"}

func (u *URLValue) UnmarshalJSON(b []byte) error {
	*u = URLValue(coerceToString(b, 0))
	return nil
}

func (u URLValue) String() string { return string(u) }

// CoerceToURLString applies the same coercion to an already-decoded raw
// message, useful when a payload was kept as json.RawMessage.
func CoerceToURLString(raw json.RawMessage) string {
	return coerceToString(raw, 0)
}

// coerceToString enumerates the accepted shapes. Recursion is capped at
// one level: deeper nesting is treated as hallucinated structure.
func coerceToString(b []byte, depth int) string {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return ""
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return ""
		}
		return s
	case '{':
		if depth > 1 {
			return ""
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(b, &obj); err != nil {
			return ""
		}
		for _, k := range urlKeys {
			if v, ok := obj[k]; ok {
				if s := coerceToString(v, depth+1); strings.TrimSpace(s) != "" {
					return s
				}
			}
		}
		return ""
	case '[':
		if depth > 1 {
			return ""
		}
		var list []json.RawMessage
		if err := json.Unmarshal(b, &list); err != nil {
			return ""
		}
		for _, v := range list {
			if s := coerceToString(v, depth+1); s != "" {
				return s
			}
		}
		return ""
	default:
		// Numbers, booleans, and anything else are not URLs.
		return ""
	}
}
