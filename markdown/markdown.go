// Package markdown renders the small Markdown dialect used by agent chat
// messages into HTML.
//
// The dialect is intentionally tiny: paragraphs, headings (levels 1-3),
// flat lists, fenced code blocks, inline code, links, bold, and italic.
// Rendering is a pipeline of total, pure functions: the raw text is
// HTML-escaped exactly once, then partitioned into blocks, with inline
// spans formatted inside each block. Because every pass after Escape
// assumes it is operating on escaped text, callers must always start from
// the pristine raw string, never from previously rendered HTML.
package markdown

import "html"

// Escape neutralizes the five HTML-significant characters (&, <, >, ", ')
// in raw text. It must run exactly once per render pass, before any markup
// is introduced; re-running it on rendered output would double-escape.
func Escape(text string) string {
	return html.EscapeString(text)
}

// Render converts a full raw message body into HTML. The output is
// recomputed from scratch on every call; there is no incremental state.
func Render(raw string) string {
	return RenderBlocks(Escape(raw))
}
