// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

// Package runbook renders the embedded operator runbook as styled
// terminal text. It walks the goldmark AST directly rather than using
// goldmark's renderer interface because terminal output needs
// accumulate-then-wrap semantics: paragraph inline content collects in
// a buffer and gets word-wrapped as a unit when the paragraph closes.
//
// The runbook is plain operator prose: headings, paragraphs, lists,
// fenced shell blocks, code spans, links. Anything fancier falls back
// to its raw text.
package runbook

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// wrapBreakpoints are the characters ansi.Wrap may break lines at.
const wrapBreakpoints = " ,.;-+|"

// Theme holds the colors for rendered runbook text.
type Theme struct {
	Heading lipgloss.Color
	Normal  lipgloss.Color
	Faint   lipgloss.Color
}

// DefaultTheme returns the standard runbook colors.
func DefaultTheme() Theme {
	return Theme{
		Heading: lipgloss.Color("45"),  // cyan
		Normal:  lipgloss.Color("252"), // near-white
		Faint:   lipgloss.Color("245"), // grey
	}
}

// parserInstance is initialized once and reused. The parser
// configuration never changes and the goldmark Parser is safe to
// share; parsing creates per-call state via Parse(reader).
var (
	parserInstance goldmark.Markdown
	parserOnce     sync.Once
)

func getParser() goldmark.Markdown {
	parserOnce.Do(func() {
		parserInstance = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		)
	})
	return parserInstance
}

// Render parses markdown and renders it as ANSI-styled text wrapped to
// width. Soft line breaks become spaces so hard-wrapped source reflows
// at any terminal width. The color profile is forced to ANSI256: the
// caller has already decided this output is for a terminal.
func Render(input string, theme Theme, width int) string {
	if input == "" {
		return ""
	}
	source := []byte(input)
	document := getParser().Parser().Parse(text.NewReader(source))

	// SetColorProfile is required because lipgloss re-detects the
	// profile from the environment unless one is set explicitly, which
	// would strip colors under tests and pipes.
	styler := lipgloss.NewRenderer(os.Stderr, termenv.WithProfile(termenv.ANSI256))
	styler.SetColorProfile(termenv.ANSI256)

	r := &renderer{
		source: source,
		theme:  theme,
		width:  width,
		styler: styler,
	}
	ast.Walk(document, r.walk)
	return strings.TrimRight(r.output.String(), "\n") + "\n"
}

// renderer walks a goldmark AST and accumulates styled terminal text.
type renderer struct {
	source []byte
	theme  Theme
	width  int
	styler *lipgloss.Renderer

	output strings.Builder

	// inline collects styled fragments within a paragraph or heading,
	// flushed with word-wrap when the block closes.
	inline strings.Builder

	// Prefix stack for nested blocks (lists, blockquotes).
	prefixStack []prefixLevel
	linePrefix  string
	prefixWidth int

	// pendingBullet replaces linePrefix for the next emitted line,
	// then clears. Carries list item bullets.
	pendingBullet string

	// Counters rather than booleans so nested emphasis unwinds.
	boldCount   int
	italicCount int

	listStack []listState

	trailingNewlines int
}

type prefixLevel struct {
	text  string
	width int
}

type listState struct {
	ordered bool
	counter int
	tight   bool
}

func (r *renderer) newStyle() lipgloss.Style {
	return r.styler.NewStyle()
}

// contentWidth is the room left after nesting prefixes, clamped so
// degenerate terminal widths still wrap somewhere.
func (r *renderer) contentWidth() int {
	width := r.width - r.prefixWidth
	if width < 10 {
		width = 10
	}
	return width
}

func (r *renderer) pushPrefix(text string, width int) {
	r.prefixStack = append(r.prefixStack, prefixLevel{text: text, width: width})
	r.linePrefix += text
	r.prefixWidth += width
}

func (r *renderer) popPrefix() {
	if len(r.prefixStack) == 0 {
		return
	}
	top := r.prefixStack[len(r.prefixStack)-1]
	r.prefixStack = r.prefixStack[:len(r.prefixStack)-1]
	r.linePrefix = r.linePrefix[:len(r.linePrefix)-len(top.text)]
	r.prefixWidth -= top.width
}

func (r *renderer) inTightList() bool {
	if len(r.listStack) == 0 {
		return false
	}
	return r.listStack[len(r.listStack)-1].tight
}

func (r *renderer) write(s string) {
	if s == "" {
		return
	}
	r.output.WriteString(s)

	trailing := 0
	allNewlines := true
	for index := len(s) - 1; index >= 0; index-- {
		if s[index] == '\n' {
			trailing++
		} else {
			allNewlines = false
			break
		}
	}
	if allNewlines {
		r.trailingNewlines += trailing
	} else {
		r.trailingNewlines = trailing
	}
}

func (r *renderer) ensureNewline() {
	if r.trailingNewlines < 1 {
		r.write("\n")
	}
}

func (r *renderer) ensureBlankLine() {
	for r.trailingNewlines < 2 {
		r.write("\n")
	}
}

// consumePrefix returns the prefix for the current line: the pending
// bullet once, then the regular line prefix.
func (r *renderer) consumePrefix() string {
	if r.pendingBullet != "" {
		bullet := r.pendingBullet
		r.pendingBullet = ""
		return bullet
	}
	return r.linePrefix
}

func (r *renderer) applyPrefixes(content string) string {
	lines := strings.Split(content, "\n")
	var result strings.Builder
	for index, line := range lines {
		if index == 0 {
			result.WriteString(r.consumePrefix())
		} else {
			result.WriteString(r.linePrefix)
		}
		result.WriteString(line)
		if index < len(lines)-1 {
			result.WriteString("\n")
		}
	}
	return result.String()
}

// flushInline word-wraps the accumulated inline content and prefixes
// each line. Resets the buffer.
func (r *renderer) flushInline() string {
	content := r.inline.String()
	r.inline.Reset()
	if content == "" {
		return ""
	}
	return r.applyPrefixes(ansi.Wrap(content, r.contentWidth(), wrapBreakpoints))
}

func (r *renderer) styledText(content string) string {
	style := r.newStyle().Foreground(r.theme.Normal)
	if r.boldCount > 0 {
		style = style.Bold(true)
	}
	if r.italicCount > 0 {
		style = style.Italic(true)
	}
	return style.Render(content)
}

// highlightCode syntax-highlights shell and config snippets. Unknown
// languages and chroma errors degrade to faint plain text.
func (r *renderer) highlightCode(code, language string) string {
	if language == "" {
		return r.newStyle().Foreground(r.theme.Faint).Render(code)
	}
	var buffer strings.Builder
	if err := quick.Highlight(&buffer, code, language, "terminal256", "monokai"); err != nil {
		return r.newStyle().Foreground(r.theme.Faint).Render(code)
	}
	return buffer.String()
}

func (r *renderer) walk(node ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node.Kind() {

	case ast.KindDocument:

	case ast.KindParagraph, ast.KindTextBlock:
		if entering {
			r.inline.Reset()
		} else if flushed := r.flushInline(); flushed != "" {
			r.write(flushed)
			r.ensureNewline()
			if !r.inTightList() {
				r.ensureBlankLine()
			}
		}

	case ast.KindHeading:
		if entering {
			r.inline.Reset()
		} else {
			r.leaveHeading(node.(*ast.Heading))
		}

	case ast.KindFencedCodeBlock:
		if entering {
			r.renderFencedCodeBlock(node.(*ast.FencedCodeBlock))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindBlockquote:
		if entering {
			r.pushPrefix("│ ", 2)
		} else {
			r.popPrefix()
			r.ensureBlankLine()
		}

	case ast.KindList:
		if entering {
			list := node.(*ast.List)
			start := 0
			if list.IsOrdered() {
				start = list.Start
			}
			r.listStack = append(r.listStack, listState{
				ordered: list.IsOrdered(),
				counter: start,
				tight:   list.IsTight,
			})
		} else {
			if len(r.listStack) > 0 {
				r.listStack = r.listStack[:len(r.listStack)-1]
			}
			if !r.inTightList() {
				r.ensureBlankLine()
			}
		}

	case ast.KindListItem:
		if entering {
			r.enterListItem()
		} else {
			r.popPrefix()
			if r.inTightList() {
				r.ensureNewline()
			} else {
				r.ensureBlankLine()
			}
		}

	case ast.KindThematicBreak:
		if entering {
			rule := r.newStyle().Foreground(r.theme.Faint).
				Render(strings.Repeat("─", r.contentWidth()))
			r.ensureBlankLine()
			r.write(r.applyPrefixes(rule))
			r.ensureNewline()
			r.ensureBlankLine()
		}

	case ast.KindText:
		if entering {
			r.handleText(node.(*ast.Text))
		}

	case ast.KindString:
		if entering {
			r.inline.WriteString(r.styledText(string(node.(*ast.String).Value)))
		}

	case ast.KindEmphasis:
		emphasis := node.(*ast.Emphasis)
		delta := 1
		if !entering {
			delta = -1
		}
		if emphasis.Level >= 2 {
			r.boldCount += delta
		} else {
			r.italicCount += delta
		}

	case ast.KindCodeSpan:
		if entering {
			r.renderCodeSpan(node)
			return ast.WalkSkipChildren, nil
		}

	case ast.KindLink:
		if entering {
			r.renderLink(node.(*ast.Link))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindAutoLink:
		if entering {
			url := string(node.(*ast.AutoLink).URL(r.source))
			r.inline.WriteString(r.newStyle().Foreground(r.theme.Faint).Render(url))
		}

	default:
		// Unsupported structure (tables, raw HTML, images): let the
		// walk descend so its text still lands in the output.
	}

	return ast.WalkContinue, nil
}

func (r *renderer) leaveHeading(heading *ast.Heading) {
	// Strip inline styling; the heading style replaces it.
	content := ansi.Strip(r.inline.String())
	r.inline.Reset()
	if content == "" {
		return
	}

	style := r.newStyle().Bold(true)
	if heading.Level <= 2 {
		style = style.Foreground(r.theme.Heading)
	} else {
		style = style.Foreground(r.theme.Normal)
	}

	wrapped := ansi.Wrap(style.Render(content), r.contentWidth(), wrapBreakpoints)
	r.ensureBlankLine()
	r.write(r.applyPrefixes(wrapped))
	r.ensureNewline()
	r.ensureBlankLine()
}

func (r *renderer) renderFencedCodeBlock(node *ast.FencedCodeBlock) {
	language := string(node.Language(r.source))
	var code strings.Builder
	lines := node.Lines()
	for index := 0; index < lines.Len(); index++ {
		segment := lines.At(index)
		code.Write(segment.Value(r.source))
	}

	highlighted := r.highlightCode(code.String(), language)
	r.ensureBlankLine()
	for _, line := range strings.Split(strings.TrimRight(highlighted, "\n"), "\n") {
		r.write(r.consumePrefix() + "  " + line)
		r.ensureNewline()
	}
	r.ensureBlankLine()
}

func (r *renderer) enterListItem() {
	if len(r.listStack) == 0 {
		return
	}
	top := &r.listStack[len(r.listStack)-1]

	var bullet string
	if top.ordered {
		bullet = fmt.Sprintf("%d. ", top.counter)
		top.counter++
	} else {
		bullet = "- "
	}

	// ASCII bullets, so byte length is visual width.
	continuation := strings.Repeat(" ", len(bullet))
	r.pendingBullet = r.linePrefix + bullet
	r.pushPrefix(continuation, len(bullet))
}

func (r *renderer) handleText(node *ast.Text) {
	value := string(node.Segment.Value(r.source))
	r.inline.WriteString(r.styledText(value))

	if node.SoftLineBreak() {
		// Soft breaks become spaces so hard-wrapped source reflows
		// at the terminal's width.
		r.inline.WriteString(" ")
	}
	if node.HardLineBreak() {
		r.inline.WriteString("\n")
	}
}

func (r *renderer) renderCodeSpan(node ast.Node) {
	var code strings.Builder
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch typed := child.(type) {
		case *ast.Text:
			code.Write(typed.Segment.Value(r.source))
		case *ast.String:
			code.Write(typed.Value)
		}
	}
	r.inline.WriteString(r.newStyle().Foreground(r.theme.Faint).Render(code.String()))
}

func (r *renderer) renderLink(node *ast.Link) {
	displayText := r.renderInlineContent(node)
	r.inline.WriteString(displayText)
	if url := string(node.Destination); url != "" {
		r.inline.WriteString(" " + r.newStyle().Foreground(r.theme.Faint).Render("("+url+")"))
	}
}

// renderInlineContent collects a node's children into a string without
// disturbing the caller's inline buffer or style counters.
func (r *renderer) renderInlineContent(node ast.Node) string {
	savedInline := r.inline.String()
	savedBold := r.boldCount
	savedItalic := r.italicCount

	r.inline.Reset()
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		ast.Walk(child, r.walk)
	}
	result := r.inline.String()

	r.inline.Reset()
	r.inline.WriteString(savedInline)
	r.boldCount = savedBold
	r.italicCount = savedItalic

	return result
}
