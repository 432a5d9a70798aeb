// Package commitmsg picks the commit message for a
// pull request run and expands its placeholders.
package commitmsg

import (
	"strings"

	"github.com/valyala/fasttemplate"
)

const (
	startTag = "{{"
	endTag   = "}}"
)

// Vars are the values a message may reference as
// {{TITLE}}, {{SOURCE_BRANCH}}, {{TARGET_BRANCH}},
// {{PROJECT}} and {{REPO}}.
type Vars struct {
	Title        string
	SourceBranch string
	TargetBranch string
	Project      string
	Repo         string
}

// Select returns the first non-blank candidate, or ""
// when all are blank. Callers pass candidates in
// precedence order.
func Select(candidates ...string) string {
	for _, c := range candidates {
		if strings.TrimSpace(c) != "" {
			return c
		}
	}

	return ""
}

// Generate expands placeholders in msg. Unknown
// placeholders are kept verbatim.
func Generate(msg string, v Vars) string {
	if !strings.Contains(msg, startTag) {
		return msg
	}

	return fasttemplate.ExecuteStringStd(
		msg, startTag, endTag,
		map[string]any{
			"TITLE":         v.Title,
			"SOURCE_BRANCH": v.SourceBranch,
			"TARGET_BRANCH": v.TargetBranch,
			"PROJECT":       v.Project,
			"REPO":          v.Repo,
		},
	)
}
