package tag

import (
	"fmt"
	"strconv"
	"strings"
)

// attrs holds the key/value pairs and bare flags of one tag line.
// Declaration order is preserved for flags-only diagnostics.
type attrs struct {
	values map[string]string
	flags  map[string]bool
	used   map[string]bool
}

// parseAttrs tokenizes the remainder of a tag line. Values are either
// bare tokens ending at whitespace or double-quoted strings with \" and
// \\ escapes. A token without '=' is a flag.
func parseAttrs(s string) (*attrs, error) {
	a := &attrs{
		values: make(map[string]string),
		flags:  make(map[string]bool),
		used:   make(map[string]bool),
	}
	i := 0
	for i < len(s) {
		for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
			i++
		}
		if i >= len(s) {
			break
		}
		start := i
		for i < len(s) && s[i] != ' ' && s[i] != '\t' && s[i] != '=' {
			i++
		}
		key := s[start:i]
		if key == "" {
			return nil, fmt.Errorf("unexpected %q", s[i:])
		}
		if i >= len(s) || s[i] != '=' {
			if _, dup := a.flags[key]; dup {
				return nil, fmt.Errorf("duplicate flag %q", key)
			}
			a.flags[key] = true
			continue
		}
		i++ // consume '='
		if i >= len(s) {
			return nil, fmt.Errorf("attribute %q has no value", key)
		}
		var value string
		if s[i] == '"' {
			i++
			var sb strings.Builder
			closed := false
			for i < len(s) {
				c := s[i]
				if c == '\\' && i+1 < len(s) {
					next := s[i+1]
					if next == '"' || next == '\\' {
						sb.WriteByte(next)
						i += 2
						continue
					}
				}
				if c == '"' {
					closed = true
					i++
					break
				}
				sb.WriteByte(c)
				i++
			}
			if !closed {
				return nil, fmt.Errorf("attribute %q has an unterminated quoted value", key)
			}
			value = sb.String()
		} else {
			vstart := i
			for i < len(s) && s[i] != ' ' && s[i] != '\t' {
				i++
			}
			value = s[vstart:i]
		}
		if _, dup := a.values[key]; dup {
			return nil, fmt.Errorf("duplicate attribute %q", key)
		}
		a.values[key] = value
	}
	return a, nil
}

func (a *attrs) has(key string) bool {
	_, ok := a.values[key]
	return ok
}

func (a *attrs) get(key string) (string, bool) {
	v, ok := a.values[key]
	if ok {
		a.used[key] = true
	}
	return v, ok
}

func (a *attrs) flag(key string) bool {
	if a.flags[key] {
		a.used[key] = true
		return true
	}
	return false
}

func (a *attrs) require(key string) (string, error) {
	v, ok := a.get(key)
	if !ok {
		return "", fmt.Errorf("missing required attribute %q", key)
	}
	return v, nil
}

func (a *attrs) intValue(key string) (*int, error) {
	v, ok := a.get(key)
	if !ok {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("attribute %q is not an integer: %q", key, v)
	}
	return &n, nil
}

func (a *attrs) floatValue(key string) (*float64, error) {
	v, ok := a.get(key)
	if !ok {
		return nil, nil
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("attribute %q is not a number: %q", key, v)
	}
	return &n, nil
}

// unknown returns attribute and flag names that were never consumed.
func (a *attrs) unknown() []string {
	var leftover []string
	for key := range a.values {
		if !a.used[key] {
			leftover = append(leftover, key)
		}
	}
	for key := range a.flags {
		if !a.used[key] {
			leftover = append(leftover, key)
		}
	}
	return leftover
}

// quoteAttr renders a value in the quoted attribute form.
func quoteAttr(v string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(v); i++ {
		switch v[i] {
		case '"', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteByte(v[i])
	}
	sb.WriteByte('"')
	return sb.String()
}
