package host

import (
	"errors"
	"strings"
)

var (
	errUnmatchedSingle  = errors.New("unmatched '")
	errUnmatchedDouble  = errors.New("unmatched \"")
	errUnmatchedBrace   = errors.New("bad substitution: missing }")
	errUnmatchedBracket = errors.New("missing ]")
)

// --------------------------------------------------------------------------
// Word splitting
// --------------------------------------------------------------------------

// splitWords splits line into raw words. Quotes, escapes, ${...} and
// unquoted [...] are kept intact and protect the whitespace inside them.
// A # at the start of a word starts a comment.
func splitWords(line string) ([]string, error) {
	var (
		words   []string
		current strings.Builder
		inWord  bool
	)
	flush := func() {
		if inWord {
			words = append(words, current.String())
			current.Reset()
			inWord = false
		}
	}

	for i := 0; i < len(line); {
		c := line[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			flush()
			i++
		case c == '#' && !inWord:
			return words, nil
		default:
			end, err := scanUnit(line, i)
			if err != nil {
				return nil, err
			}
			current.WriteString(line[i:end])
			inWord = true
			i = end
		}
	}
	flush()
	return words, nil
}

// scanUnit returns the end of the lexical unit starting at i: a quoted
// string, an escape, a ${...} group, a [...] group or a single byte.
func scanUnit(s string, i int) (int, error) {
	switch s[i] {
	case '\'':
		end := strings.IndexByte(s[i+1:], '\'')
		if end < 0 {
			return 0, errUnmatchedSingle
		}
		return i + 1 + end + 1, nil
	case '"':
		for j := i + 1; j < len(s); j++ {
			switch s[j] {
			case '\\':
				j++
			case '"':
				return j + 1, nil
			}
		}
		return 0, errUnmatchedDouble
	case '\\':
		if i+1 < len(s) {
			return i + 2, nil
		}
		return i + 1, nil
	case '$':
		if i+1 < len(s) && s[i+1] == '{' {
			end, err := matchClose(s, i+1, '{', '}')
			if err != nil {
				return 0, errUnmatchedBrace
			}
			return end + 1, nil
		}
		return i + 1, nil
	case '[':
		end, err := matchClose(s, i, '[', ']')
		if err != nil {
			// a lone [ is an ordinary character
			return i + 1, nil
		}
		return end + 1, nil
	default:
		return i + 1, nil
	}
}

// matchClose returns the index of the closer matching the opener at s[i].
// Quoted strings and escapes inside are skipped.
func matchClose(s string, i int, open, close byte) (int, error) {
	depth := 0
	for j := i; j < len(s); {
		switch s[j] {
		case open:
			depth++
			j++
		case close:
			depth--
			if depth == 0 {
				return j, nil
			}
			j++
		case '\'', '"', '\\':
			end, err := scanUnit(s, j)
			if err != nil {
				return 0, err
			}
			j = end
		default:
			j++
		}
	}
	if close == ']' {
		return 0, errUnmatchedBracket
	}
	return 0, errUnmatchedBrace
}

// --------------------------------------------------------------------------
// Assignments
// --------------------------------------------------------------------------

// assignment is a parsed NAME=value or NAME[key]=value word, key and value still raw
type assignment struct {
	name   string
	key    string
	hasKey bool
	value  string
}

// parseAssignment recognizes NAME=value and NAME[key]=value
func parseAssignment(word string) (assignment, bool) {
	i := 0
	for i < len(word) && isNameByte(word[i], i == 0) {
		i++
	}
	if i == 0 || i >= len(word) {
		return assignment{}, false
	}
	a := assignment{name: word[:i]}

	if word[i] == '[' {
		end, err := matchClose(word, i, '[', ']')
		if err != nil {
			return assignment{}, false
		}
		a.key = word[i+1 : end]
		a.hasKey = true
		i = end + 1
	}
	if i >= len(word) || word[i] != '=' {
		return assignment{}, false
	}
	a.value = word[i+1:]
	return a, true
}

// parseSubscript splits NAME or NAME[key] (as found inside ${...} or unset args)
func parseSubscript(s string) (name, key string, hasKey bool, ok bool) {
	i := 0
	for i < len(s) && isNameByte(s[i], i == 0) {
		i++
	}
	if i == 0 {
		return "", "", false, false
	}
	if i == len(s) {
		return s, "", false, true
	}
	if s[i] != '[' {
		return "", "", false, false
	}
	end, err := matchClose(s, i, '[', ']')
	if err != nil || end != len(s)-1 {
		return "", "", false, false
	}
	return s[:i], s[i+1 : end], true, true
}

// splitLiteralSubscript splits NAME or NAME[key] without treating quotes,
// escapes or brackets inside key as syntax. The key runs from the first [
// to the final ].
func splitLiteralSubscript(s string) (name, key string, hasKey bool, ok bool) {
	i := 0
	for i < len(s) && isNameByte(s[i], i == 0) {
		i++
	}
	switch {
	case i == 0:
		return "", "", false, false
	case i == len(s):
		return s, "", false, true
	case s[i] != '[' || s[len(s)-1] != ']' || len(s) < i+2:
		return "", "", false, false
	}
	return s[:i], s[i+1 : len(s)-1], true, true
}

func isNameByte(c byte, first bool) bool {
	switch {
	case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case !first && c >= '0' && c <= '9':
		return true
	}
	return false
}
