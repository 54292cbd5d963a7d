// Package voicemail renders campaign voicemail message templates.
//
// Two independent transforms run before a message is handed to the call
// provider: spin (random choice among pipe-delimited alternatives) and
// variable substitution. The provider does not substitute variables inside
// voicemail messages, so it has to happen here.
package voicemail

import (
	"math/rand"
	"regexp"
	"strings"
)

var (
	spinGroupRe  = regexp.MustCompile(`\{([^{}]*\|[^{}]*)\}`)
	doubleVarRe  = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)
	singleVarRe  = regexp.MustCompile(`\{(\w+)\}`)
	snakeAliasRe = regexp.MustCompile(`_([a-z])`)
)

// Spin replaces every {option1|option2|...} group with one option chosen
// uniformly at random. Groups without a pipe, such as {firstName}, are left
// untouched; those are template variables, not spin groups.
func Spin(text string) string {
	return spinWith(text, rand.Intn)
}

func spinWith(text string, intn func(int) int) string {
	if text == "" {
		return text
	}
	return spinGroupRe.ReplaceAllStringFunc(text, func(m string) string {
		group := m[1 : len(m)-1]
		var options []string
		for _, opt := range strings.Split(group, "|") {
			if s := strings.TrimSpace(opt); s != "" {
				options = append(options, s)
			}
		}
		if len(options) == 0 {
			return ""
		}
		return options[intn(len(options))]
	})
}

// Substitute replaces {{var}} and {var} tokens with values from vars.
// {{var}} always resolves, to the empty string when unknown. A bare {var}
// is replaced only when the variable is known; otherwise it stays literal
// text, since single braces may be deliberate punctuation.
//
// snake_case and camelCase spellings of first/last name both resolve.
func Substitute(text string, vars map[string]string) string {
	if text == "" || len(vars) == 0 {
		return text
	}

	m := make(map[string]string, len(vars)+2)
	for k, v := range vars {
		m[k] = v
	}
	if v, ok := vars["firstName"]; ok {
		m["first_name"] = v
	}
	if v, ok := vars["lastName"]; ok {
		m["last_name"] = v
	}

	lookup := func(key string) string {
		if v, ok := m[key]; ok {
			return v
		}
		camel := snakeAliasRe.ReplaceAllStringFunc(key, func(s string) string {
			return strings.ToUpper(s[1:])
		})
		return m[camel]
	}

	out := doubleVarRe.ReplaceAllStringFunc(text, func(tok string) string {
		key := doubleVarRe.FindStringSubmatch(tok)[1]
		return lookup(key)
	})
	out = singleVarRe.ReplaceAllStringFunc(out, func(tok string) string {
		key := tok[1 : len(tok)-1]
		if _, ok := m[key]; !ok {
			return tok
		}
		return lookup(key)
	})
	return out
}

// Render applies spin then substitution, the order the dialer uses for
// outbound voicemail messages.
func Render(text string, vars map[string]string) string {
	return Substitute(Spin(text), vars)
}
