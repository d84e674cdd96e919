package json

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// Repair rewrites common JSON malformations seen in model output into
// parseable JSON: single-quoted strings, unquoted object keys, trailing
// commas, Python-style True/False/None, unbalanced or unterminated
// brackets, and commentary before or after the JSON body. It returns ""
// when the input contains nothing JSON-like.
//
// Repair is structural only. It does not know any schema; field-level
// coercion (stringified arrays and the like) belongs to the caller.
func Repair(input string) string {
	s := stripMarkdownCodeBlocks(input)

	start := strings.IndexAny(s, "{[")
	if start == -1 {
		return ""
	}
	s = s[start:]

	var (
		out      strings.Builder
		stack    []rune // expected closers, innermost last
		inString bool
		escaped  bool
	)

	i := 0
	runes := []rune(s)
	for i < len(runes) {
		c := runes[i]

		if inString {
			out.WriteRune(c)
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			i++
			continue
		}

		switch {
		case c == '"':
			inString = true
			out.WriteRune(c)
			i++

		case c == '\'':
			// Single-quoted string: convert delimiters, escape inner
			// double quotes, unescape \' which JSON does not allow.
			out.WriteRune('"')
			i++
			for i < len(runes) {
				r := runes[i]
				if r == '\\' && i+1 < len(runes) {
					if runes[i+1] == '\'' {
						out.WriteRune('\'')
					} else {
						out.WriteRune(r)
						out.WriteRune(runes[i+1])
					}
					i += 2
					continue
				}
				if r == '\'' {
					i++
					break
				}
				if r == '"' {
					out.WriteString(`\"`)
					i++
					continue
				}
				out.WriteRune(r)
				i++
			}
			out.WriteRune('"')

		case c == '{':
			stack = append(stack, '}')
			out.WriteRune(c)
			i++

		case c == '[':
			stack = append(stack, ']')
			out.WriteRune(c)
			i++

		case c == '}' || c == ']':
			if len(stack) == 0 {
				// Stray closer before any opener; drop it.
				i++
				continue
			}
			// Close whatever is actually open, which also heals
			// mismatched closers like "[1, 2}".
			out.WriteRune(stack[len(stack)-1])
			stack = stack[:len(stack)-1]
			i++
			if len(stack) == 0 {
				// Body complete; ignore trailing commentary.
				return out.String()
			}

		case c == ',':
			// Drop the comma if only whitespace separates it from a
			// closer (trailing comma) or another comma.
			j := i + 1
			for j < len(runes) && unicode.IsSpace(runes[j]) {
				j++
			}
			if j < len(runes) && (runes[j] == '}' || runes[j] == ']' || runes[j] == ',') {
				i++
				continue
			}
			out.WriteRune(c)
			i++

		case c == '-' || unicode.IsDigit(c):
			// Copy a full JSON number so its exponent letter is never
			// mistaken for a bare identifier.
			out.WriteRune(c)
			i++
			for i < len(runes) {
				r := runes[i]
				if unicode.IsDigit(r) || r == '.' || r == 'e' || r == 'E' || r == '+' || r == '-' {
					out.WriteRune(r)
					i++
					continue
				}
				break
			}

		case isIdentStart(c):
			word, next := readWord(runes, i)
			i = next
			switch word {
			case "true", "false", "null":
				out.WriteString(word)
			case "True":
				out.WriteString("true")
			case "False":
				out.WriteString("false")
			case "None", "nil":
				out.WriteString("null")
			default:
				// Bare identifier: quote it. Covers unquoted keys and
				// unquoted scalar values alike.
				out.WriteRune('"')
				out.WriteString(word)
				out.WriteRune('"')
			}

		default:
			out.WriteRune(c)
			i++
		}
	}

	if inString {
		out.WriteRune('"')
	}
	for len(stack) > 0 {
		// Heal a trailing comma left dangling before forced closers.
		trimmed := strings.TrimRightFunc(out.String(), unicode.IsSpace)
		if strings.HasSuffix(trimmed, ",") {
			out.Reset()
			out.WriteString(strings.TrimSuffix(trimmed, ","))
		}
		out.WriteRune(stack[len(stack)-1])
		stack = stack[:len(stack)-1]
	}
	return out.String()
}

func isIdentStart(c rune) bool {
	return c == '_' || unicode.IsLetter(c)
}

func readWord(runes []rune, i int) (string, int) {
	start := i
	for i < len(runes) && (runes[i] == '_' || unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i])) {
		i++
	}
	return string(runes[start:i]), i
}

// Recover parses a possibly malformed response into dst using layered
// strategies: strict parse, then extraction from surrounding text, then
// structural repair. Returns an error only when every layer fails; the
// caller decides what an acceptable fallback is.
func Recover(response string, dst interface{}) error {
	if err := json.Unmarshal([]byte(response), dst); err == nil {
		return nil
	}

	if extracted, err := extractJSON(response); err == nil {
		if err := json.Unmarshal([]byte(extracted), dst); err == nil {
			return nil
		}
	}

	repaired := Repair(response)
	if repaired == "" {
		preview := response
		if len(preview) > 100 {
			preview = preview[:100] + "..."
		}
		return fmt.Errorf("no recoverable JSON in response: %q", preview)
	}
	if err := json.Unmarshal([]byte(repaired), dst); err != nil {
		return fmt.Errorf("JSON unrecoverable after repair: %w", err)
	}
	return nil
}
