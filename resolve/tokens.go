package resolve

import "strings"

// Token estimation weights. The goal is not tokenizer accuracy but a
// stable, deterministic cost that tracks how code text actually
// tokenizes: every line pays a small overhead for its newline and
// indentation, identifiers split roughly every four characters,
// punctuation runs compress about two to one, and string-literal
// content tokenizes a little denser than code.
const (
	lineOverheadTokens  = 1
	wordCharsPerToken   = 4
	punctCharsPerToken  = 2
	stringCharsPerToken = 5
)

// EstimateTokens estimates the token cost of rendered source text.
// The estimate is deterministic for identical input.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	total := 0
	for _, line := range strings.Split(text, "\n") {
		total += lineOverheadTokens + lineTokens(strings.TrimSpace(line))
	}
	return total
}

func lineTokens(line string) int {
	tokens := 0
	wordLen := 0
	punctLen := 0
	stringLen := 0
	inString := false
	var quote byte

	flushWord := func() {
		if wordLen > 0 {
			tokens += (wordLen + wordCharsPerToken - 1) / wordCharsPerToken
			wordLen = 0
		}
	}
	flushPunct := func() {
		if punctLen > 0 {
			tokens += (punctLen + punctCharsPerToken - 1) / punctCharsPerToken
			punctLen = 0
		}
	}
	flushString := func() {
		// One token for the quote pair plus the weighted content.
		tokens += 1 + (stringLen+stringCharsPerToken-1)/stringCharsPerToken
		stringLen = 0
	}

	for i := 0; i < len(line); i++ {
		c := line[i]
		if inString {
			if c == '\\' && i+1 < len(line) {
				stringLen += 2
				i++
				continue
			}
			if c == quote {
				inString = false
				flushString()
				continue
			}
			stringLen++
			continue
		}
		switch {
		case c == '"' || c == '\'' || c == '`':
			flushWord()
			flushPunct()
			inString = true
			quote = c
		case isWordChar(c):
			flushPunct()
			wordLen++
		case c == ' ' || c == '\t':
			flushWord()
			flushPunct()
		default:
			flushWord()
			punctLen++
		}
	}
	flushWord()
	flushPunct()
	if inString {
		flushString()
	}
	return tokens
}

func isWordChar(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c >= 0x80
}
