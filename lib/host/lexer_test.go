package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitWords(t *testing.T) {
	cases := map[string][]string{
		"":                                   nil,
		"   ":                                nil,
		"echo a  b":                          {"echo", "a", "b"},
		`echo 'a b' "c d"`:                   {"echo", "'a b'", `"c d"`},
		`echo a\ b`:                          {"echo", `a\ b`},
		"echo ${h[a b]} $h[c d]":             {"echo", "${h[a b]}", "$h[c d]"},
		"h[my key]=v":                        {"h[my key]=v"},
		"echo x # comment":                   {"echo", "x"},
		"# only a comment":                   nil,
		"echo a#b":                           {"echo", "a#b"},
		"echo [":                             {"echo", "["},
		`ztie -d db/gdbm -f "/tmp/x y.db" h`: {"ztie", "-d", "db/gdbm", "-f", `"/tmp/x y.db"`, "h"},
	}
	for line, expected := range cases {
		words, err := splitWords(line)
		require.NoError(t, err, line)
		assert.Equal(t, expected, words, line)
	}
}

func TestSplitWordsErrors(t *testing.T) {
	for _, line := range []string{`echo 'abc`, `echo "abc`, "echo ${h"} {
		_, err := splitWords(line)
		assert.Error(t, err, line)
	}
}

func TestParseAssignment(t *testing.T) {
	a, ok := parseAssignment("x=1")
	require.True(t, ok)
	assert.Equal(t, assignment{name: "x", value: "1"}, a)

	a, ok = parseAssignment("h[alpha]=1")
	require.True(t, ok)
	assert.Equal(t, assignment{name: "h", key: "alpha", hasKey: true, value: "1"}, a)

	a, ok = parseAssignment(`h["a]b"]=`)
	require.True(t, ok)
	assert.Equal(t, `"a]b"`, a.key)
	assert.Equal(t, "", a.value)

	for _, w := range []string{"echo", "=x", "1x=2", "h[a]", "h[a=1", "$x=1", "-x=1"} {
		_, ok := parseAssignment(w)
		assert.False(t, ok, w)
	}
}

func TestParseSubscript(t *testing.T) {
	name, key, hasKey, ok := parseSubscript("h[k]")
	assert.True(t, ok)
	assert.True(t, hasKey)
	assert.Equal(t, "h", name)
	assert.Equal(t, "k", key)

	name, _, hasKey, ok = parseSubscript("plain")
	assert.True(t, ok)
	assert.False(t, hasKey)
	assert.Equal(t, "plain", name)

	for _, s := range []string{"", "h[k]x", "h[k", "1h", "h-x"} {
		_, _, _, ok := parseSubscript(s)
		assert.False(t, ok, s)
	}
}

func TestSplitLiteralSubscript(t *testing.T) {
	for input, want := range map[string][2]string{
		"h[it's]": {"h", "it's"},
		"h[a]b]":  {"h", "a]b"},
		`h["q"]`:  {"h", `"q"`},
		`h[a\b]`:  {"h", `a\b`},
		"h[]":     {"h", ""},
	} {
		name, key, hasKey, ok := splitLiteralSubscript(input)
		require.True(t, ok, input)
		assert.True(t, hasKey, input)
		assert.Equal(t, want[0], name, input)
		assert.Equal(t, want[1], key, input)
	}

	name, _, hasKey, ok := splitLiteralSubscript("plain")
	assert.True(t, ok)
	assert.False(t, hasKey)
	assert.Equal(t, "plain", name)

	for _, s := range []string{"", "1h", "h[k", "h]", "h-x", "h[k]x"} {
		_, _, _, ok := splitLiteralSubscript(s)
		assert.False(t, ok, s)
	}
}
