// Package templates renders the customer-facing message text.
package templates

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"text/template"
)

//go:embed *.tmpl
var files embed.FS

// builtin holds the shipped message templates, parsed once.
var builtin = template.Must(newTemplate("builtin").ParseFS(files, "*.tmpl"))

// adhoc caches templates passed to Render, keyed by name and text.
var adhoc sync.Map

// Renderer executes message templates. Unknown fields are errors rather than
// "<no value>" so a broken template never reaches a customer.
type Renderer struct{}

func newTemplate(name string) *template.Template {
	return template.New(name).Option("missingkey=error")
}

// Render parses tmpl (cached) and executes it against data.
func (r Renderer) Render(name, tmpl string, data any) (string, error) {
	if tmpl == "" {
		return "", errors.New("templates: template text required")
	}
	key := name + "\x00" + tmpl
	cached, ok := adhoc.Load(key)
	if !ok {
		t, err := newTemplate(name).Parse(tmpl)
		if err != nil {
			return "", fmt.Errorf("templates: parse %s: %w", name, err)
		}
		cached, _ = adhoc.LoadOrStore(key, t)
	}
	return r.execute(cached.(*template.Template), data)
}

func (Renderer) execute(t *template.Template, data any) (string, error) {
	if t == nil {
		return "", errors.New("templates: unknown template")
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("templates: execute %s: %w", t.Name(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}
