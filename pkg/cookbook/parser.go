package cookbook

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// ErrParse is the sentinel for malformed cookbook documents.
var ErrParse = errors.New("malformed cookbook document")

// ParseError reports a structural defect in a document with its source line.
type ParseError struct {
	Name string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Name, e.Line, e.Msg)
}

func (e *ParseError) Unwrap() error { return ErrParse }

func parseErrorf(name string, line int, format string, args ...interface{}) error {
	return &ParseError{Name: name, Line: line, Msg: fmt.Sprintf(format, args...)}
}

var (
	reTOCEntry = regexp.MustCompile(`^\s*[-*]\s+\[(.+?)\]\(#([^)]+)\)\s*$`)
	reRefLink  = regexp.MustCompile(`\[[^\]]*\]\((https?://[^)]+)\)`)
	reBareURL  = regexp.MustCompile(`https?://\S+`)
	reFence    = regexp.MustCompile("^```\\s*([A-Za-z0-9_-]*)\\s*$")
)

// ParseDocument scans one Markdown edition of the cookbook into a Document.
//
// The corpus is a fixed line-oriented dialect: an H1 title, a bullet table
// of contents, H2 category headings, H3 recipe headings, tagged fenced
// snippets, caveat paragraphs and reference links. The scanner keeps line
// numbers for every construct so the linter can point at sources.
func ParseDocument(name string, r io.Reader) (*Document, error) {
	doc := &Document{Name: name}

	var (
		curCategory *CategorySection
		curRecipe   *Recipe
		inFence     bool
		fenceLang   string
		fenceLine   int
		fenceBody   strings.Builder
		caveat      strings.Builder
		line        int
	)

	flushCaveat := func() {
		if curRecipe == nil {
			caveat.Reset()
			return
		}
		text := strings.TrimSpace(caveat.String())
		caveat.Reset()
		if text == "" {
			return
		}
		curRecipe.Caveats = append(curRecipe.Caveats, text)
	}

	closeRecipe := func() {
		flushCaveat()
		if curRecipe != nil && curCategory != nil {
			curCategory.Recipes = append(curCategory.Recipes, *curRecipe)
		}
		curRecipe = nil
	}

	closeCategory := func() {
		closeRecipe()
		if curCategory != nil {
			doc.Categories = append(doc.Categories, *curCategory)
		}
		curCategory = nil
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line++
		raw := sc.Text()

		if inFence {
			if strings.HasPrefix(strings.TrimSpace(raw), "```") {
				inFence = false
				if curRecipe != nil {
					curRecipe.Snippets = append(curRecipe.Snippets, Snippet{
						Lang: fenceLang,
						Body: fenceBody.String(),
						Line: fenceLine,
					})
				}
				fenceBody.Reset()
				continue
			}
			fenceBody.WriteString(raw)
			fenceBody.WriteByte('\n')
			continue
		}

		switch {
		case strings.HasPrefix(raw, "### "):
			closeRecipe()
			if curCategory == nil {
				return nil, parseErrorf(name, line, "recipe heading before any category heading")
			}
			title := StripInlineAnchors(strings.TrimPrefix(raw, "### "))
			if title == "" {
				return nil, parseErrorf(name, line, "empty recipe heading")
			}
			curRecipe = &Recipe{
				Title:    title,
				Category: curCategory.Category,
				Anchor:   Slugify(title),
				Line:     line,
			}

		case strings.HasPrefix(raw, "## "):
			closeCategory()
			heading := StripInlineAnchors(strings.TrimPrefix(raw, "## "))
			cat, ok := CategoryByHeading(heading)
			if !ok {
				return nil, parseErrorf(name, line, "unknown category heading %q", heading)
			}
			curCategory = &CategorySection{Category: cat, Heading: heading, Line: line}

		case strings.HasPrefix(raw, "# "):
			if doc.Title == "" {
				doc.Title = StripInlineAnchors(strings.TrimPrefix(raw, "# "))
			}

		default:
			if m := reFence.FindStringSubmatch(raw); m != nil {
				flushCaveat()
				inFence = true
				fenceLang = m[1]
				fenceLine = line
				continue
			}
			if m := reTOCEntry.FindStringSubmatch(raw); m != nil && curCategory == nil {
				doc.TOC = append(doc.TOC, TOCEntry{
					Text:   StripInlineAnchors(m[1]),
					Anchor: m[2],
					Line:   line,
				})
				continue
			}
			if curRecipe != nil {
				trimmed := strings.TrimSpace(raw)
				if trimmed == "" {
					flushCaveat()
					continue
				}
				if strings.HasPrefix(trimmed, "Reference:") || strings.HasPrefix(trimmed, "See:") {
					if url := extractURL(trimmed); url != "" && curRecipe.Reference == "" {
						curRecipe.Reference = url
					}
					continue
				}
				if caveat.Len() > 0 {
					caveat.WriteByte(' ')
				}
				caveat.WriteString(trimmed)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", name, err)
	}
	if inFence {
		return nil, parseErrorf(name, fenceLine, "unterminated code fence")
	}
	closeCategory()

	if doc.Title == "" && len(doc.Categories) == 0 {
		return nil, parseErrorf(name, 1, "empty document")
	}

	doc.Dialect = inferDialect(doc)
	for i := range doc.Categories {
		for j := range doc.Categories[i].Recipes {
			doc.Categories[i].Recipes[j].Dialect = doc.Dialect
		}
	}
	return doc, nil
}

// extractURL pulls the first link target (markdown or bare) out of a line.
func extractURL(line string) string {
	if m := reRefLink.FindStringSubmatch(line); m != nil {
		return m[1]
	}
	if m := reBareURL.FindString(line); m != "" {
		return strings.TrimRight(m, ".,;)")
	}
	return ""
}

// inferDialect decides the document's edition: the title wins when it names
// one, otherwise the majority fence tag decides. Reason is the fallback for
// untagged legacy documents.
func inferDialect(doc *Document) Dialect {
	title := strings.ToLower(doc.Title + " " + doc.Name)
	if strings.Contains(title, "rescript") {
		return DialectReScript
	}
	if strings.Contains(title, "reason") || strings.Contains(title, "bucklescript") {
		return DialectReason
	}
	counts := map[Dialect]int{}
	for _, c := range doc.Categories {
		for _, r := range c.Recipes {
			for _, s := range r.Snippets {
				if d, ok := DialectForFence(s.Lang); ok {
					counts[d]++
				}
			}
		}
	}
	if counts[DialectReScript] > counts[DialectReason] {
		return DialectReScript
	}
	return DialectReason
}
