// Package subst binds named placeholders of the form {field_name} in text
// templates. Doubled braces escape literals, so Modelica annotation arrays
// ({{...},{...}}) survive in model templates. Binding validates that every
// placeholder has a value before any substitution happens.
package subst

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnbound = errors.New("subst: unbound placeholder")

type Template struct {
	text   string
	fields []string
}

// Parse scans text for placeholders. Stray single braces are rejected so a
// malformed template fails at load time, not when the solver chokes on it.
func Parse(text string) (*Template, error) {
	t := &Template{text: text}
	seen := make(map[string]bool)

	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '{':
			if i+1 < len(text) && text[i+1] == '{' {
				i++
				continue
			}
			end := strings.IndexByte(text[i:], '}')
			if end < 0 {
				return nil, fmt.Errorf("subst: unmatched '{' at offset %d", i)
			}
			name := text[i+1 : i+end]
			if !validField(name) {
				return nil, fmt.Errorf("subst: invalid placeholder %q at offset %d", name, i)
			}
			if !seen[name] {
				seen[name] = true
				t.fields = append(t.fields, name)
			}
			i += end
		case '}':
			if i+1 < len(text) && text[i+1] == '}' {
				i++
				continue
			}
			return nil, fmt.Errorf("subst: unmatched '}' at offset %d", i)
		}
	}
	return t, nil
}

func validField(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_':
		default:
			return false
		}
	}
	return true
}

// Fields returns the distinct placeholder names in first-appearance order.
func (t *Template) Fields() []string {
	out := make([]string, len(t.fields))
	copy(out, t.fields)
	return out
}

// Render substitutes vars into the template. Every placeholder must be
// bound; bindings without a placeholder are ignored, since nameplate maps
// carry more fields than most templates reference.
func (t *Template) Render(vars map[string]string) (string, error) {
	for _, f := range t.fields {
		if _, ok := vars[f]; !ok {
			return "", fmt.Errorf("%w: %s", ErrUnbound, f)
		}
	}

	var b strings.Builder
	b.Grow(len(t.text))
	text := t.text
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '{':
			if text[i+1] == '{' {
				b.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(text[i:], '}')
			b.WriteString(vars[text[i+1:i+end]])
			i += end
		case '}':
			b.WriteByte('}')
			i++
		default:
			b.WriteByte(text[i])
		}
	}
	return b.String(), nil
}
