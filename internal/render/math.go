package render

import (
	"regexp"
	"strings"
)

// The tutoring backend speaks markdown with LaTeX math. Terminals cannot
// typeset it, so formulas are rewritten into code spans (inline math) and
// code blocks (display math) before the markdown pass. The TeX source
// stays readable instead of being mangled by the markdown parser, which
// would otherwise eat backslashes and underscores.
var (
	fenceRe          = regexp.MustCompile("(?ms)^(```|~~~).*?^(```|~~~)[ \t]*$")
	displayBracketRe = regexp.MustCompile(`(?s)\\\[(.+?)\\\]`)
	displayDollarRe  = regexp.MustCompile(`(?s)\$\$(.+?)\$\$`)
	inlineParenRe    = regexp.MustCompile(`\\\((.+?)\\\)`)
	// Single-dollar inline math. Requires a non-space character right after
	// the opening and right before the closing delimiter so prices like
	// "$5 and $10" pass through untouched.
	inlineDollarRe = regexp.MustCompile(`\$([^\s$][^$\n]*?[^\s$]|[^\s$])\$`)
)

// PrepareMath rewrites LaTeX math delimiters into markdown code syntax.
// Fenced code blocks are left alone so code samples containing dollar
// signs (shell prompts, awk) are not mistaken for math.
func PrepareMath(content string) string {
	if !strings.ContainsAny(content, `$\`) {
		return content
	}

	var out strings.Builder
	last := 0
	for _, loc := range fenceRe.FindAllStringIndex(content, -1) {
		out.WriteString(rewriteMath(content[last:loc[0]]))
		out.WriteString(content[loc[0]:loc[1]])
		last = loc[1]
	}
	out.WriteString(rewriteMath(content[last:]))

	return out.String()
}

// rewriteMath converts math delimiters in a fence-free segment. Display
// forms go first so their double dollars are not half-eaten by the inline
// pattern.
func rewriteMath(s string) string {
	s = displayBracketRe.ReplaceAllString(s, "\n```\n$1\n```\n")
	s = displayDollarRe.ReplaceAllString(s, "\n```\n$1\n```\n")
	s = inlineParenRe.ReplaceAllString(s, "`$1`")
	s = inlineDollarRe.ReplaceAllString(s, "`$1`")
	return s
}
