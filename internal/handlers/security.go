package handlers

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ariel-frischer/appgen/internal/execution"
	"github.com/ariel-frischer/appgen/internal/workflow"
)

// secretPatterns flag credentials committed into generated code.
var secretPatterns = map[string]*regexp.Regexp{
	"aws access key":     regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	"private key":        regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----`),
	"hardcoded password": regexp.MustCompile(`(?i)password\s*[:=]\s*["'][^"']+["']`),
}

var scannedArtifacts = []string{
	execution.ArtifactFrontendCode,
	execution.ArtifactBackendCode,
	execution.ArtifactDeploymentConfig,
}

// Findings scans the code artifacts in in for embedded secrets.
func Findings(in workflow.Input) []string {
	var found []string
	for _, name := range scannedArtifacts {
		a, ok := in.Artifacts[name]
		if !ok {
			continue
		}
		for kind, re := range secretPatterns {
			if n := len(re.FindAllStringIndex(a.Content, -1)); n > 0 {
				found = append(found, fmt.Sprintf("%s: %d %s match(es)", name, n, kind))
			}
		}
	}
	sort.Strings(found)
	return found
}

func appendFindings(in workflow.Input, _, content string) string {
	found := Findings(in)
	if len(found) == 0 {
		return content
	}
	var b strings.Builder
	b.WriteString(strings.TrimRight(content, "\n"))
	b.WriteString("\n\n## Findings\n")
	for _, f := range found {
		fmt.Fprintf(&b, "- %s\n", f)
	}
	return b.String()
}
