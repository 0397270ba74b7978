package markdown

import (
	"regexp"
	"strings"
)

var (
	codeSpanRe = regexp.MustCompile("`([^`]+)`")
	linkRe     = regexp.MustCompile(`\[([^\]]+)\]\(([^)]*)\)`)
	boldRe     = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicRe   = regexp.MustCompile(`\*([^*]+)\*`)
)

// FormatInline converts the inline spans of a single escaped line into
// HTML. Code spans are extracted first and pass through the remaining
// steps untouched; links are resolved before bold, and bold before italic,
// so that "**" is never mis-read as two single-asterisk italics.
func FormatInline(escapedLine string) string {
	var b strings.Builder
	last := 0
	for _, loc := range codeSpanRe.FindAllStringSubmatchIndex(escapedLine, -1) {
		b.WriteString(formatSpans(escapedLine[last:loc[0]]))
		b.WriteString("<code>")
		b.WriteString(escapedLine[loc[2]:loc[3]])
		b.WriteString("</code>")
		last = loc[1]
	}
	b.WriteString(formatSpans(escapedLine[last:]))
	return b.String()
}

// formatSpans applies link, bold, and italic formatting to a non-code
// segment, in that order.
func formatSpans(s string) string {
	s = linkRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := linkRe.FindStringSubmatch(match)
		label, url := parts[1], strings.TrimSpace(parts[2])
		if !allowedLinkScheme(url) {
			// Disallowed or missing scheme: degrade to the label text.
			return label
		}
		url = strings.ReplaceAll(url, `"`, "&quot;")
		return `<a href="` + url + `" target="_blank" rel="noopener">` + label + `</a>`
	})
	s = boldRe.ReplaceAllString(s, "<strong>$1</strong>")
	s = italicRe.ReplaceAllString(s, "<em>$1</em>")
	return s
}

// allowedLinkScheme reports whether url carries an http, https, or mailto
// scheme. Anything else, including javascript:, relative paths, and the
// empty string, is rejected.
func allowedLinkScheme(url string) bool {
	i := strings.Index(url, ":")
	if i < 0 {
		return false
	}
	switch strings.ToLower(url[:i]) {
	case "http", "https", "mailto":
		return true
	}
	return false
}
