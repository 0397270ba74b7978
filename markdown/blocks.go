package markdown

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	headingRe = regexp.MustCompile(`^(#{1,3}) (.*)$`)
	ulItemRe  = regexp.MustCompile(`^[-*•] +(.*)$`)
	olItemRe  = regexp.MustCompile(`^[0-9]+[.)] +(.*)$`)
)

// blockState accumulates the single block under construction while the
// renderer walks the input line by line.
type blockState struct {
	out []string

	paraLines  []string // inline-formatted paragraph lines
	paraBreaks []bool   // paraBreaks[i]: hard break after line i

	listItems []string
	listTag   string // "ul" or "ol"

	inFence   bool
	codeLines []string
}

// RenderBlocks partitions escaped message text into block-level HTML:
// paragraphs, headings, flat lists, and fenced code blocks. The input must
// already be escaped (see Escape); fence interiors are emitted verbatim
// with no inline formatting.
func RenderBlocks(escapedText string) string {
	escapedText = strings.ReplaceAll(escapedText, "\r\n", "\n")

	st := &blockState{}
	for _, raw := range strings.Split(escapedText, "\n") {
		line := strings.TrimSpace(raw)

		if strings.HasPrefix(line, "```") {
			if st.inFence {
				st.flushFence()
			} else {
				st.flushParagraph()
				st.flushList()
				st.inFence = true
			}
			continue
		}

		if st.inFence {
			// Inside a fence every line is literal, whatever its shape.
			st.codeLines = append(st.codeLines, raw)
			continue
		}

		if m := headingRe.FindStringSubmatch(line); m != nil {
			st.flushParagraph()
			st.flushList()
			level := strconv.Itoa(len(m[1]))
			st.out = append(st.out, "<h"+level+">"+FormatInline(m[2])+"</h"+level+">")
			continue
		}

		if m := ulItemRe.FindStringSubmatch(line); m != nil {
			st.flushParagraph()
			st.startList("ul")
			st.listItems = append(st.listItems, FormatInline(m[1]))
			continue
		}

		if m := olItemRe.FindStringSubmatch(line); m != nil {
			st.flushParagraph()
			st.startList("ol")
			st.listItems = append(st.listItems, FormatInline(m[1]))
			continue
		}

		if line == "" {
			st.flushParagraph()
			st.flushList()
			continue
		}

		// Plain paragraph text. The hard-break marker is two or more
		// trailing spaces, checked before trimming.
		st.flushList()
		st.paraLines = append(st.paraLines, FormatInline(line))
		st.paraBreaks = append(st.paraBreaks, strings.HasSuffix(strings.TrimRight(raw, "\r"), "  "))
	}

	// End of input: fence first (an unterminated fence is still a code
	// block), then paragraph, then list.
	st.flushFence()
	st.flushParagraph()
	st.flushList()

	return strings.Join(st.out, "\n")
}

func (st *blockState) startList(tag string) {
	if st.listTag != "" && st.listTag != tag {
		st.flushList()
	}
	if st.listTag == "" {
		st.listTag = tag
	}
}

func (st *blockState) flushParagraph() {
	if len(st.paraLines) == 0 {
		return
	}
	var b strings.Builder
	for i, line := range st.paraLines {
		if i > 0 {
			if st.paraBreaks[i-1] {
				b.WriteString("<br>")
			} else {
				b.WriteString(" ")
			}
		}
		b.WriteString(line)
	}
	st.out = append(st.out, "<p>"+b.String()+"</p>")
	st.paraLines = nil
	st.paraBreaks = nil
}

func (st *blockState) flushList() {
	if st.listTag == "" {
		return
	}
	var b strings.Builder
	b.WriteString("<" + st.listTag + ">")
	for _, item := range st.listItems {
		b.WriteString("<li>" + item + "</li>")
	}
	b.WriteString("</" + st.listTag + ">")
	st.out = append(st.out, b.String())
	st.listItems = nil
	st.listTag = ""
}

func (st *blockState) flushFence() {
	if !st.inFence && len(st.codeLines) == 0 {
		return
	}
	st.out = append(st.out, "<pre><code>"+strings.Join(st.codeLines, "\n")+"</code></pre>")
	st.codeLines = nil
	st.inFence = false
}
