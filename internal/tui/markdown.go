package tui

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma"
	"github.com/alecthomas/chroma/formatters"
	"github.com/alecthomas/chroma/lexers"
	"github.com/alecthomas/chroma/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// Markdown goes through goldmark to HTML, then the HTML is rewritten
// tag by tag into lipgloss-styled terminal text. Rewriting HTML instead
// of walking the AST keeps the goldmark extension set (tables, task
// lists, strikethrough) available without per-node renderers.
var (
	mdCodeBlock  = regexp.MustCompile(`(?s)<pre><code(?: class="language-([a-zA-Z0-9]+)")?>(.*?)</code></pre>`)
	mdInlineCode = regexp.MustCompile(`<code>([^<]+)</code>`)
	mdH1         = regexp.MustCompile(`<h1 id="[^"]*">(.*?)</h1>`)
	mdH2         = regexp.MustCompile(`<h2 id="[^"]*">(.*?)</h2>`)
	mdH3         = regexp.MustCompile(`<h3 id="[^"]*">(.*?)</h3>`)
	mdStrong     = regexp.MustCompile(`<strong>(.*?)</strong>`)
	mdEm         = regexp.MustCompile(`<em>(.*?)</em>`)
	mdLink       = regexp.MustCompile(`<a href="([^"]*)">(.*?)</a>`)
	mdBlockquote = regexp.MustCompile(`(?s)<blockquote>(.*?)</blockquote>`)
	mdUList      = regexp.MustCompile(`(?s)<ul>(.*?)</ul>`)
	mdOList      = regexp.MustCompile(`(?s)<ol>(.*?)</ol>`)
	mdListItem   = regexp.MustCompile(`<li>(.*?)</li>`)
	mdAnyTag     = regexp.MustCompile(`<[^>]+>`)
	mdBlankRuns  = regexp.MustCompile(`\n{3,}`)
)

// Reply text keeps its own fixed palette independent of the app theme,
// so code blocks and headings read the same on every theme.
const (
	mdFg        = "#F8F8F2"
	mdBg        = "#282A36"
	mdInlineBg  = "#44475A"
	mdMuted     = "#6272A4"
	mdHeading   = "#BD93F9"
	mdSubhead   = "#FF79C6"
	mdAccent    = "#8BE9FD"
	mdBullet    = "#50FA7B"
	mdOrdinal   = "#FFB86C"
	mdCodeStyle = "dracula"
)

type MarkdownRenderer struct {
	goldmark.Markdown
	formatter chroma.Formatter
	style     *chroma.Style
}

func NewMarkdownRenderer() *MarkdownRenderer {
	md := goldmark.New(
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
		goldmark.WithExtensions(
			extension.GFM,
			extension.Table,
			extension.Strikethrough,
			extension.TaskList,
		),
	)

	return &MarkdownRenderer{
		Markdown:  md,
		formatter: formatters.Get("terminal256"),
		style:     styles.Get(mdCodeStyle),
	}
}

// Render converts markdown to styled terminal text. Input that goldmark
// cannot convert comes back verbatim.
func (r *MarkdownRenderer) Render(content string, width int) string {
	var buf bytes.Buffer
	if err := r.Convert([]byte(content), &buf); err != nil {
		return content
	}
	return r.formatForTerminal(buf.String(), width)
}

// RenderPartial renders a reply that is still streaming. A code fence
// the model has opened but not yet closed would swallow the rest of the
// text, so an odd fence count gets a closing fence before rendering.
func (r *MarkdownRenderer) RenderPartial(content string, width int) string {
	return r.Render(closeOpenFence(content), width)
}

func closeOpenFence(content string) string {
	fences := 0
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			fences++
		}
	}
	if fences%2 == 1 {
		return content + "\n```"
	}
	return content
}

// restyle rewrites every match of re, handing the submatches to fn.
// Matches without the expected groups pass through untouched.
func restyle(re *regexp.Regexp, s string, groups int, fn func(sub []string) string) string {
	return re.ReplaceAllStringFunc(s, func(m string) string {
		sub := re.FindStringSubmatch(m)
		if len(sub) < groups+1 {
			return m
		}
		return fn(sub)
	})
}

func (r *MarkdownRenderer) formatForTerminal(htmlContent string, width int) string {
	result := htmlContent

	// Code blocks are lifted out behind placeholders first; nothing
	// inside them may be touched by the later tag rewrites.
	var codeBlocks []string
	result = restyle(mdCodeBlock, result, 2, func(sub []string) string {
		code := r.decodeHTMLEntities(sub[2])
		codeWidth := width - 8
		if codeWidth < 20 {
			codeWidth = 20
		}
		styled := lipgloss.NewStyle().
			Foreground(lipgloss.Color(mdFg)).
			Background(lipgloss.Color(mdBg)).
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(mdMuted)).
			Width(codeWidth).
			Render(r.RenderCodeBlock(code, sub[1]))

		codeBlocks = append(codeBlocks, styled)
		return fmt.Sprintf("\n{{CODE_BLOCK_%d}}\n", len(codeBlocks)-1)
	})

	result = restyle(mdInlineCode, result, 1, func(sub []string) string {
		return lipgloss.NewStyle().
			Foreground(lipgloss.Color(mdFg)).
			Background(lipgloss.Color(mdInlineBg)).
			Padding(0, 1).
			Render(r.decodeHTMLEntities(sub[1]))
	})

	result = restyle(mdH1, result, 1, func(sub []string) string {
		return lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(mdHeading)).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color(mdMuted)).
			Width(width - 4).
			Render(sub[1]) + "\n"
	})
	result = restyle(mdH2, result, 1, func(sub []string) string {
		return lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(mdSubhead)).
			Width(width - 4).
			Render(sub[1]) + "\n"
	})
	result = restyle(mdH3, result, 1, func(sub []string) string {
		return lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(mdAccent)).
			Width(width - 4).
			Render(sub[1]) + "\n"
	})

	result = restyle(mdStrong, result, 1, func(sub []string) string {
		return lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(mdFg)).
			Render(sub[1])
	})
	result = restyle(mdEm, result, 1, func(sub []string) string {
		return lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color(mdAccent)).
			Render(sub[1])
	})
	result = restyle(mdLink, result, 2, func(sub []string) string {
		return lipgloss.NewStyle().
			Foreground(lipgloss.Color(mdAccent)).
			Underline(true).
			Render(fmt.Sprintf("%s (%s)", sub[2], sub[1]))
	})

	result = restyle(mdBlockquote, result, 1, func(sub []string) string {
		quoted := mdAnyTag.ReplaceAllString(strings.TrimSpace(sub[1]), "")
		return lipgloss.NewStyle().
			Foreground(lipgloss.Color(mdMuted)).
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderForeground(lipgloss.Color(mdHeading)).
			PaddingLeft(2).
			Width(width - 4).
			Render(quoted) + "\n"
	})

	result = restyle(mdUList, result, 1, func(sub []string) string {
		var list strings.Builder
		for _, item := range mdListItem.FindAllStringSubmatch(sub[1], -1) {
			if len(item) < 2 {
				continue
			}
			list.WriteString(lipgloss.NewStyle().
				Foreground(lipgloss.Color(mdBullet)).
				Render("  "))
			list.WriteString(mdAnyTag.ReplaceAllString(item[1], ""))
			list.WriteString("\n")
		}
		return list.String()
	})
	result = restyle(mdOList, result, 1, func(sub []string) string {
		var list strings.Builder
		for i, item := range mdListItem.FindAllStringSubmatch(sub[1], -1) {
			if len(item) < 2 {
				continue
			}
			list.WriteString(lipgloss.NewStyle().
				Foreground(lipgloss.Color(mdOrdinal)).
				Bold(true).
				Render(fmt.Sprintf("  %d. ", i+1)))
			list.WriteString(mdAnyTag.ReplaceAllString(item[1], ""))
			list.WriteString("\n")
		}
		return list.String()
	})

	result = strings.ReplaceAll(result, "<p>", "")
	for _, tag := range []string{"</p>", "<br>", "<br/>", "<br />"} {
		result = strings.ReplaceAll(result, tag, "\n")
	}

	for i, codeBlock := range codeBlocks {
		result = strings.ReplaceAll(result, fmt.Sprintf("{{CODE_BLOCK_%d}}", i), codeBlock)
	}

	result = mdAnyTag.ReplaceAllString(result, "")
	result = r.decodeHTMLEntities(result)
	result = mdBlankRuns.ReplaceAllString(result, "\n\n")
	return strings.TrimSpace(result)
}

// decodeHTMLEntities undoes the escaping goldmark applies on the way to
// HTML, for the common entities that show up in chat replies.
func (r *MarkdownRenderer) decodeHTMLEntities(s string) string {
	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&#x27;", "'",
		"&#x60;", "`",
		"&nbsp;", " ",
		"&hellip;", "...",
		"&copy;", "(c)",
		"&reg;", "(R)",
		"&trade;", "(TM)",
	)
	return replacer.Replace(s)
}

// RenderCodeBlock highlights a fenced block. The language hint wins;
// without one chroma guesses from the content, falling back to plain.
func (r *MarkdownRenderer) RenderCodeBlock(code, lang string) string {
	var lexer chroma.Lexer
	if lang != "" {
		lexer = lexers.Get(lang)
	}
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf bytes.Buffer
	if err := r.formatter.Format(&buf, r.style, iterator); err != nil {
		return code
	}
	return strings.TrimRight(buf.String(), "\n")
}
