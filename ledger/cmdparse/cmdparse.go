// Package cmdparse decodes a single command line of the form
//
//	/name key=value key="quoted value" list=[...] obj={...}
//
// into a command name and a map of typed parameters. Decoding never fails:
// malformed lists and objects degrade to best-effort values.
package cmdparse

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Command is a decoded input line.
type Command struct {
	Name   string
	Params Params
}

// Parse decodes line. An empty line yields an empty name.
func Parse(line string) Command {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "/")

	cmd := Command{Params: Params{}}
	name, rest := cutSpace(line)
	cmd.Name = strings.ToLower(name)

	for _, tok := range splitTokens(rest) {
		key, value, ok := strings.Cut(tok, "=")
		if !ok || key == "" {
			continue
		}
		cmd.Params[key] = decodeValue(value)
	}
	return cmd
}

func cutSpace(s string) (first, rest string) {
	end := strings.IndexFunc(s, unicode.IsSpace)
	if end < 0 {
		return s, ""
	}
	return s[:end], strings.TrimSpace(s[end:])
}

// splitTokens splits on whitespace that is not inside single or double
// quotes. Brackets and braces are not tracked here.
func splitTokens(s string) []string {
	var (
		tokens  []string
		current strings.Builder
		quote   rune
	)
	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
			current.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			current.WriteRune(r)
		case unicode.IsSpace(r):
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return tokens
}

var numberRE = regexp.MustCompile(`^-?(?:[0-9]+\.?[0-9]*|\.[0-9]+)$`)

func decodeValue(v string) any {
	switch {
	case isQuoted(v):
		return v[1 : len(v)-1]
	case strings.HasPrefix(v, "[") && strings.HasSuffix(v, "]"):
		var list []any
		if err := json.Unmarshal([]byte(v), &list); err == nil && list != nil {
			return list
		}
		return splitList(v[1 : len(v)-1])
	case strings.HasPrefix(v, "{") && strings.HasSuffix(v, "}"):
		var obj map[string]any
		if err := json.Unmarshal([]byte(v), &obj); err == nil && obj != nil {
			return obj
		}
		return v
	case strings.EqualFold(v, "true"):
		return true
	case strings.EqualFold(v, "false"):
		return false
	case numberRE.MatchString(v):
		if !strings.Contains(v, ".") {
			if i, err := strconv.Atoi(v); err == nil {
				return i
			}
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return v
}

func isQuoted(v string) bool {
	if len(v) < 2 {
		return false
	}
	q := v[0]
	return (q == '"' || q == '\'') && v[len(v)-1] == q
}

// splitList splits the inside of a list that is not valid JSON on commas
// outside braces and quotes. Object-looking elements are decoded when
// possible.
func splitList(s string) []any {
	list := []any{}
	var (
		current strings.Builder
		depth   int
		quote   rune
	)
	add := func() {
		elem := strings.TrimSpace(current.String())
		current.Reset()
		if elem == "" {
			return
		}
		if strings.HasPrefix(elem, "{") && strings.HasSuffix(elem, "}") {
			var obj map[string]any
			if err := json.Unmarshal([]byte(elem), &obj); err == nil && obj != nil {
				list = append(list, obj)
				return
			}
		}
		list = append(list, elem)
	}
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '{':
			depth++
		case r == '}':
			if depth > 0 {
				depth--
			}
		case r == ',' && depth == 0:
			add()
			continue
		}
		current.WriteRune(r)
	}
	add()
	return list
}
