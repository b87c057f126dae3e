package host

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ValentinKolb/tKV/lib/store"
)

// expander removes quotes and escapes from raw words and substitutes
// parameter references against a namespace.
type expander struct {
	ns *Namespace
}

// word expands one raw word
func (x *expander) word(raw string) (string, error) {
	var sb strings.Builder
	for i := 0; i < len(raw); {
		switch c := raw[i]; c {
		case '\'':
			end := strings.IndexByte(raw[i+1:], '\'')
			if end < 0 {
				return "", errUnmatchedSingle
			}
			sb.WriteString(raw[i+1 : i+1+end])
			i += end + 2
		case '"':
			end, err := x.doubleQuoted(raw, i+1, &sb)
			if err != nil {
				return "", err
			}
			i = end
		case '\\':
			if i+1 < len(raw) {
				sb.WriteByte(raw[i+1])
			}
			i += 2
		case '$':
			end, value, err := x.dollar(raw, i)
			if err != nil {
				return "", err
			}
			sb.WriteString(value)
			i = end
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String(), nil
}

// doubleQuoted expands raw[i:] up to the closing quote and returns the index after it
func (x *expander) doubleQuoted(raw string, i int, sb *strings.Builder) (int, error) {
	for i < len(raw) {
		switch c := raw[i]; c {
		case '"':
			return i + 1, nil
		case '\\':
			if i+1 < len(raw) && strings.IndexByte("$\"\\`", raw[i+1]) >= 0 {
				sb.WriteByte(raw[i+1])
				i += 2
				continue
			}
			sb.WriteByte(c)
			i++
		case '$':
			end, value, err := x.dollar(raw, i)
			if err != nil {
				return 0, err
			}
			sb.WriteString(value)
			i = end
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return 0, errUnmatchedDouble
}

// dollar expands the reference starting at raw[i] == '$'.
// It returns the index after the reference and its value.
func (x *expander) dollar(raw string, i int) (int, string, error) {
	if i+1 >= len(raw) {
		return i + 1, "$", nil
	}

	switch next := raw[i+1]; {
	case next == '{':
		end, err := matchClose(raw, i+1, '{', '}')
		if err != nil {
			return 0, "", errUnmatchedBrace
		}
		value, err := x.braced(raw[i+2 : end])
		return end + 1, value, err

	case next == '#' && i+2 < len(raw) && isNameByte(raw[i+2], true):
		j := i + 2
		for j < len(raw) && isNameByte(raw[j], false) {
			j++
		}
		value, err := x.length(raw[i+2 : j])
		return j, value, err

	case isNameByte(next, true):
		j := i + 1
		for j < len(raw) && isNameByte(raw[j], false) {
			j++
		}
		name := raw[i+1 : j]
		if j < len(raw) && raw[j] == '[' {
			if end, err := matchClose(raw, j, '[', ']'); err == nil {
				value, err := x.lookup(name, raw[j+1:end], true)
				return end + 1, value, err
			}
		}
		value, err := x.lookup(name, "", false)
		return j, value, err

	default:
		return i + 1, "$", nil
	}
}

// braced expands the inside of ${...}
func (x *expander) braced(inner string) (string, error) {
	switch {
	case strings.HasPrefix(inner, "("):
		closing := strings.IndexByte(inner, ')')
		if closing < 0 {
			return "", fmt.Errorf("bad substitution: ${%s}", inner)
		}
		flags, name := inner[1:closing], inner[closing+1:]
		if !validName(name) {
			return "", fmt.Errorf("bad substitution: ${%s}", inner)
		}
		switch flags {
		case "k", "v", "kv", "vk":
			return x.list(name, strings.Contains(flags, "k"), strings.Contains(flags, "v"))
		default:
			return "", fmt.Errorf("unsupported flags (%s) in ${%s}", flags, inner)
		}

	case strings.HasPrefix(inner, "#") && validName(inner[1:]):
		return x.length(inner[1:])
	}

	name, key, hasKey, ok := parseSubscript(inner)
	if !ok {
		return "", fmt.Errorf("bad substitution: ${%s}", inner)
	}
	return x.lookup(name, key, hasKey)
}

// lookup resolves NAME or NAME[key]. Unknown names expand to the empty string.
func (x *expander) lookup(name, rawKey string, hasKey bool) (string, error) {
	p, ok := x.ns.Lookup(name)
	if !ok {
		return "", nil
	}

	if p.Type != ParamSpecialHash {
		if hasKey {
			return "", nil
		}
		return p.Value, nil
	}

	if !hasKey {
		return x.list(name, false, true)
	}
	key, err := x.word(rawKey)
	if err != nil {
		return "", err
	}
	value, err := p.Hash.Get(key)
	if err != nil {
		return "", err
	}
	return string(value), nil
}

// list joins the keys and/or values of a hash with single spaces
func (x *expander) list(name string, keys, values bool) (string, error) {
	p, ok := x.ns.Lookup(name)
	if !ok {
		return "", nil
	}
	if p.Type != ParamSpecialHash {
		if values {
			return p.Value, nil
		}
		return "", nil
	}

	var parts []string
	err := p.Hash.Scan(func(e store.Entry) bool {
		if keys {
			parts = append(parts, e.Key())
		}
		if values {
			parts = append(parts, string(e.Value()))
		}
		return true
	})
	if err != nil {
		return "", err
	}
	return strings.Join(parts, " "), nil
}

// length is the entry count of a hash or the character count of a scalar
func (x *expander) length(name string) (string, error) {
	p, ok := x.ns.Lookup(name)
	if !ok {
		return "0", nil
	}
	if p.Type != ParamSpecialHash {
		return strconv.Itoa(utf8.RuneCountInString(p.Value)), nil
	}

	n := 0
	if err := p.Hash.Scan(func(store.Entry) bool {
		n++
		return true
	}); err != nil {
		return "", err
	}
	return strconv.Itoa(n), nil
}
