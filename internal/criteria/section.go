package criteria

import (
	"bytes"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/text/cases"
)

// SectionTitle is the heading text that introduces the criteria section.
const SectionTitle = "acceptance criteria"

// maxSectionLevel is the deepest heading level accepted as a section start.
const maxSectionLevel = 3

var (
	markdownOnce   sync.Once
	markdownParser goldmark.Markdown
)

func getMarkdownParser() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownParser = goldmark.New()
	})
	return markdownParser
}

// Section is the body of an "Acceptance Criteria" heading.
type Section struct {
	Level   int    `json:"level"`
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// emptyATXPattern matches a heading line with markers and no text, such as
// "##" or "## ##". The parser keeps no source lines for these.
var emptyATXPattern = regexp.MustCompile(`(?m)^ {0,3}(#{1,6})(?:[ \t]+#*)?[ \t]*$`)

// atxHeading is a heading written with leading '#' markers.
type atxHeading struct {
	level     int
	title     string
	lineStart int
	lineEnd   int
}

// ExtractSection locates the first 1-3 level "Acceptance Criteria" heading
// and returns the text under it.
func ExtractSection(description string) (Section, bool) {
	return locateSection(normalizeNewlines(description))
}

func locateSection(source string) (Section, bool) {
	headings := atxHeadings([]byte(source))

	fold := cases.Fold()
	want := fold.String(SectionTitle)

	for i, h := range headings {
		if h.level > maxSectionLevel {
			continue
		}
		if fold.String(strings.TrimSpace(h.title)) != want {
			continue
		}

		boundaries := make(map[int]bool)
		for _, next := range headings[i+1:] {
			if next.level <= h.level {
				boundaries[next.lineStart] = true
			}
		}

		return Section{
			Level:   h.level,
			Heading: strings.TrimSpace(h.title),
			Body:    sectionBody(source, h.lineEnd, boundaries),
		}, true
	}

	return Section{}, false
}

// sectionBody collects lines after the heading until a boundary heading, two
// consecutive blank lines, or the end of the text.
func sectionBody(source string, headingEnd int, boundaries map[int]bool) string {
	var lines []string
	blank := 0

	pos := headingEnd + 1
	for pos < len(source) {
		end := strings.IndexByte(source[pos:], '\n')
		if end < 0 {
			end = len(source)
		} else {
			end += pos
		}

		if boundaries[pos] {
			break
		}

		line := source[pos:end]
		if strings.TrimSpace(line) == "" {
			blank++
			if blank == 2 {
				break
			}
		} else {
			blank = 0
		}
		lines = append(lines, line)
		pos = end + 1
	}

	return strings.TrimRight(strings.Join(lines, "\n"), "\n \t")
}

// atxHeadings walks the markdown AST and returns headings whose source line
// starts with '#'. Headings inside code blocks never reach the AST as
// headings, and setext headings are filtered out by the line check. Empty
// headings are found by scanning lines outside code blocks and carry an
// empty title.
func atxHeadings(source []byte) []atxHeading {
	doc := getMarkdownParser().Parser().Parse(text.NewReader(source))

	var headings []atxHeading
	seen := make(map[int]bool)
	literal := make(map[int]bool)
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				literal[bytes.LastIndexByte(source[:lines.At(i).Start], '\n')+1] = true
			}
			return ast.WalkSkipChildren, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}

		lines := heading.Lines()
		if lines.Len() == 0 {
			return ast.WalkSkipChildren, nil
		}
		start := lines.At(0).Start

		lineStart := bytes.LastIndexByte(source[:start], '\n') + 1
		lineEnd := bytes.IndexByte(source[start:], '\n')
		if lineEnd < 0 {
			lineEnd = len(source)
		} else {
			lineEnd += start
		}

		if !bytes.HasPrefix(bytes.TrimLeft(source[lineStart:lineEnd], " \t"), []byte("#")) {
			return ast.WalkSkipChildren, nil
		}

		headings = append(headings, atxHeading{
			level:     heading.Level,
			title:     string(lines.Value(source)),
			lineStart: lineStart,
			lineEnd:   lineEnd,
		})
		seen[lineStart] = true
		return ast.WalkSkipChildren, nil
	})

	for _, m := range emptyATXPattern.FindAllSubmatchIndex(source, -1) {
		if seen[m[0]] || literal[m[0]] {
			continue
		}
		headings = append(headings, atxHeading{
			level:     m[3] - m[2],
			lineStart: m[0],
			lineEnd:   m[1],
		})
	}
	sort.Slice(headings, func(i, j int) bool {
		return headings[i].lineStart < headings[j].lineStart
	})

	return headings
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
