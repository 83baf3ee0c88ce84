// Package jsonx extracts JSON values from free-form model output.
// Models wrap JSON in prose and markdown fences; every worker that parses a
// model response goes through Extract rather than slicing strings itself.
package jsonx

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNoJSON is returned when no JSON object or array is found in the text.
var ErrNoJSON = errors.New("jsonx: no JSON value found in text")

// Extract returns the first balanced JSON object or array in text.
// Markdown code fences are stripped first. Braces inside JSON strings
// (including escaped quotes) do not affect balancing.
func Extract(text string) (json.RawMessage, error) {
	s := stripFences([]byte(text))

	start := -1
	var open, close byte
	for i := 0; i < len(s); i++ {
		if s[i] == '{' || s[i] == '[' {
			start = i
			open = s[i]
			if open == '{' {
				close = '}'
			} else {
				close = ']'
			}
			break
		}
	}
	if start < 0 {
		return nil, ErrNoJSON
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
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
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				candidate := s[start : i+1]
				if !json.Valid(candidate) {
					return nil, fmt.Errorf("jsonx: balanced value is not valid JSON")
				}
				return json.RawMessage(candidate), nil
			}
		}
	}
	return nil, fmt.Errorf("jsonx: unbalanced JSON starting at offset %d", start)
}

// Decode extracts the first JSON value from text and unmarshals it into T.
func Decode[T any](text string) (*T, error) {
	raw, err := Extract(text)
	if err != nil {
		return nil, err
	}
	var result T
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("jsonx: decode: %w", err)
	}
	return &result, nil
}

// stripFences strips markdown code fences and surrounding whitespace.
// Handles ```json\n{...}\n```, ```\n{...}\n```, and bare JSON.
func stripFences(data []byte) []byte {
	s := bytes.TrimSpace(data)
	if len(s) == 0 {
		return s
	}

	if bytes.HasPrefix(s, []byte("```")) {
		if idx := bytes.IndexByte(s, '\n'); idx >= 0 {
			s = s[idx+1:]
		}
		if bytes.HasSuffix(s, []byte("```")) {
			s = s[:len(s)-3]
		}
		s = bytes.TrimSpace(s)
	}

	return s
}
