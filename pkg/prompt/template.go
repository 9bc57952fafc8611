// Package prompt provides strict text templates and a minimal chain
// (template -> model -> parser) for composing model calls.
package prompt

import (
	"fmt"
	"strings"
	"text/template"
)

// Template wraps text/template with strict missing-key semantics: rendering
// fails instead of emitting "<no value>" when a referenced variable is
// absent.
type Template struct {
	name string
	tpl  *template.Template
}

// NewTemplate parses the given template text.
func NewTemplate(name, text string) (*Template, error) {
	tpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	return &Template{name: name, tpl: tpl}, nil
}

// MustTemplate is NewTemplate that panics on parse errors. Intended for
// package-level template literals.
func MustTemplate(name, text string) *Template {
	t, err := NewTemplate(name, text)
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the template name.
func (t *Template) Name() string { return t.name }

// Render executes the template against vars.
func (t *Template) Render(vars map[string]any) (string, error) {
	var sb strings.Builder
	if err := t.tpl.Execute(&sb, vars); err != nil {
		return "", fmt.Errorf("render template %s: %w", t.name, err)
	}
	return sb.String(), nil
}
