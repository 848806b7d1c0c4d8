// Package templates holds the embedded documents the offline generator renders,
// one per artifact, using Go text/template syntax.
package templates

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// FS embeds all artifact templates.
//
//go:embed *.tmpl
var FS embed.FS

// ErrUnknownTemplate is returned for a name with no embedded template.
var ErrUnknownTemplate = errors.New("unknown template")

const frontmatterDelim = "---"

// Meta is the YAML frontmatter at the top of every template.
type Meta struct {
	Description string `yaml:"description"`
	ContentType string `yaml:"content_type"`
}

// Template is one parsed embedded template.
type Template struct {
	Name string // artifact name, e.g. "requirements_doc"
	File string // embedded filename, e.g. "requirements_doc.md.tmpl"
	Ext  string // output extension including the dot, empty when none
	Meta
	body string
}

// Names returns the names of all embedded templates in lexical order.
func Names() ([]string, error) {
	entries, err := fs.ReadDir(FS, ".")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".tmpl") {
			continue
		}
		name, _ := splitName(entry.Name())
		names = append(names, name)
	}
	return names, nil
}

// Get loads and parses the template for an artifact name.
func Get(name string) (Template, error) {
	entries, err := fs.ReadDir(FS, ".")
	if err != nil {
		return Template{}, err
	}
	for _, entry := range entries {
		base, ext := splitName(entry.Name())
		if base != name {
			continue
		}
		content, err := FS.ReadFile(entry.Name())
		if err != nil {
			return Template{}, fmt.Errorf("reading template %s: %w", entry.Name(), err)
		}
		meta, body, err := SplitFrontmatter(content)
		if err != nil {
			return Template{}, fmt.Errorf("template %s: %w", entry.Name(), err)
		}
		return Template{Name: base, File: entry.Name(), Ext: ext, Meta: meta, body: string(body)}, nil
	}
	return Template{}, fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
}

// Render renders the named template with data.
func Render(name string, data Data) (string, error) {
	t, err := Get(name)
	if err != nil {
		return "", err
	}
	return t.Render(data)
}

// Render executes the template body with data.
func (t Template) Render(data Data) (string, error) {
	tmpl, err := template.New(t.Name).Funcs(funcs).Option("missingkey=zero").Parse(t.body)
	if err != nil {
		return "", fmt.Errorf("parsing template %s: %w", t.Name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing template %s: %w", t.Name, err)
	}
	return strings.TrimSpace(buf.String()) + "\n", nil
}

// SplitFrontmatter separates a leading YAML frontmatter block from the body.
// Content without frontmatter yields a zero Meta and the content unchanged.
func SplitFrontmatter(content []byte) (Meta, []byte, error) {
	var meta Meta
	text := string(content)
	if !strings.HasPrefix(text, frontmatterDelim+"\n") {
		return meta, content, nil
	}
	rest := text[len(frontmatterDelim)+1:]
	end := strings.Index(rest, "\n"+frontmatterDelim+"\n")
	if end < 0 {
		return meta, nil, errors.New("unterminated frontmatter")
	}
	if err := yaml.Unmarshal([]byte(rest[:end]), &meta); err != nil {
		return meta, nil, fmt.Errorf("parsing frontmatter: %w", err)
	}
	return meta, []byte(rest[end+len(frontmatterDelim)+2:]), nil
}

// splitName turns "data_model.yaml.tmpl" into ("data_model", ".yaml").
func splitName(file string) (string, string) {
	file = strings.TrimSuffix(file, ".tmpl")
	if i := strings.Index(file, "."); i >= 0 {
		return file[:i], file[i:]
	}
	return file, ""
}
