package templates

import (
	"strconv"
	"strings"
	"text/template"
	"unicode"

	"github.com/ariel-frischer/appgen/internal/execution"
)

// Data is the value templates are executed against.
type Data struct {
	ExecutionID  string
	Stage        string
	Requirements execution.Requirements
	// Inputs holds earlier artifact values by name.
	Inputs map[string]string
}

// Tech returns the technology preference for key, or fallback when unset.
func (d Data) Tech(key, fallback string) string {
	if v := strings.TrimSpace(d.Requirements.TechnologyPreferences[key]); v != "" {
		return v
	}
	return fallback
}

// Input returns an earlier artifact value, or "" when absent.
func (d Data) Input(name string) string {
	return d.Inputs[name]
}

var funcs = template.FuncMap{
	"add":    func(a, b int) int { return a + b },
	"quote":  strconv.Quote,
	"slug":   Slug,
	"indent": indent,
	"lower":  strings.ToLower,
}

// Slug lowercases s and collapses every run of non-alphanumerics into one dash.
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func indent(n int, s string) string {
	pad := strings.Repeat(" ", n)
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = pad + l
		}
	}
	return strings.Join(lines, "\n")
}
