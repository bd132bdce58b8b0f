package cookbook

import (
	"errors"
	"strings"
	"testing"
)

// fences are written as ''' in fixtures because the fixtures live inside
// raw string literals.
func fixture(s string) string {
	return strings.ReplaceAll(s, "'''", "```")
}

const rescriptEdition = `# ReScript Binding Cookbook

- [Bind to a global value](#bind-to-a-global-value)
- [arr.sort(compareFunction)](#arrsortcomparefunction)

## Globals

### Bind to a global value

'''rescript
@val external setTimeout: (unit => unit, int) => float = "setTimeout"
'''

Reference: https://developer.mozilla.org/en-US/docs/Web/API/setTimeout

## Objects

### arr.sort(compareFunction)

'''rescript
@send external sort: (array<'a>, ('a, 'a) => int) => array<'a> = "sort"
'''

The comparator takes exactly two elements and returns a signed integer
comparison result. Sorts in place.
`

func TestParseDocument(t *testing.T) {
	doc, err := ParseDocument("rescript.md", strings.NewReader(fixture(rescriptEdition)))
	if err != nil {
		t.Fatalf("ParseDocument failed: %v", err)
	}

	if doc.Title != "ReScript Binding Cookbook" {
		t.Errorf("title = %q", doc.Title)
	}
	if doc.Dialect != DialectReScript {
		t.Errorf("dialect = %q, want rescript", doc.Dialect)
	}
	if len(doc.TOC) != 2 {
		t.Fatalf("expected 2 TOC entries, got %d", len(doc.TOC))
	}
	if doc.TOC[1].Anchor != "arrsortcomparefunction" {
		t.Errorf("TOC anchor = %q", doc.TOC[1].Anchor)
	}

	if len(doc.Categories) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(doc.Categories))
	}
	if doc.Categories[0].Category != Globals || doc.Categories[1].Category != Objects {
		t.Errorf("categories = %v, %v", doc.Categories[0].Category, doc.Categories[1].Category)
	}

	recipes := doc.Recipes()
	if len(recipes) != 2 {
		t.Fatalf("expected 2 recipes, got %d", len(recipes))
	}

	global := recipes[0]
	if global.Anchor != "bind-to-a-global-value" {
		t.Errorf("anchor = %q", global.Anchor)
	}
	if global.Reference != "https://developer.mozilla.org/en-US/docs/Web/API/setTimeout" {
		t.Errorf("reference = %q", global.Reference)
	}
	if global.Dialect != DialectReScript {
		t.Errorf("recipe dialect = %q", global.Dialect)
	}
	if len(global.Snippets) != 1 || global.Snippets[0].Lang != "rescript" {
		t.Fatalf("snippets = %+v", global.Snippets)
	}
	if !strings.Contains(global.Snippets[0].Body, `external setTimeout`) {
		t.Errorf("snippet body = %q", global.Snippets[0].Body)
	}

	sort := recipes[1]
	if sort.Title != "arr.sort(compareFunction)" {
		t.Errorf("title = %q", sort.Title)
	}
	if len(sort.Caveats) != 1 {
		t.Fatalf("caveats = %v", sort.Caveats)
	}
	// Caveat paragraphs join their wrapped lines.
	if !strings.Contains(sort.Caveats[0], "signed integer comparison result. Sorts in place.") {
		t.Errorf("caveat = %q", sort.Caveats[0])
	}
	if !sort.HasCaveat("in place") {
		t.Error("expected HasCaveat(\"in place\")")
	}
}

func TestParseDocumentRecipeLines(t *testing.T) {
	doc, err := ParseDocument("rescript.md", strings.NewReader(fixture(rescriptEdition)))
	if err != nil {
		t.Fatalf("ParseDocument failed: %v", err)
	}
	recipes := doc.Recipes()
	if recipes[0].Line != 8 {
		t.Errorf("first recipe line = %d, want 8", recipes[0].Line)
	}
	if recipes[0].Snippets[0].Line != 10 {
		t.Errorf("first snippet line = %d, want 10", recipes[0].Snippets[0].Line)
	}
}

func TestParseDocumentAnchorsInHeadings(t *testing.T) {
	src := fixture(`# Reason Cookbook

## Globals

### <a name="bind-global"></a>Bind to a global value

'''reason
[@bs.val] external pi: float = "Math.PI";
'''
`)
	doc, err := ParseDocument("reason.md", strings.NewReader(src))
	if err != nil {
		t.Fatalf("ParseDocument failed: %v", err)
	}
	r := doc.Recipes()[0]
	if r.Title != "Bind to a global value" {
		t.Errorf("title = %q, want anchor tag stripped", r.Title)
	}
	if r.Anchor != "bind-to-a-global-value" {
		t.Errorf("anchor = %q", r.Anchor)
	}
	if doc.Dialect != DialectReason {
		t.Errorf("dialect = %q", doc.Dialect)
	}
}

func TestParseDocumentErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"recipe before category", "# T\n\n### Early recipe\n"},
		{"unknown category", "# T\n\n## Dragons\n"},
		{"unterminated fence", fixture("# T\n\n## Globals\n\n### R\n\n'''rescript\nexternal x: int = \"x\"\n")},
		{"empty document", ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := ParseDocument("bad.md", strings.NewReader(c.src))
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrParse) {
				t.Errorf("expected ErrParse, got %v", err)
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Errorf("expected *ParseError, got %T", err)
			}
		})
	}
}

func TestInferDialectFromFences(t *testing.T) {
	src := fixture(`# Untitled Cookbook

## Globals

### Bind to a global value

'''rescript
@val external pi: float = "Math.PI"
'''
`)
	doc, err := ParseDocument("cookbook.md", strings.NewReader(src))
	if err != nil {
		t.Fatalf("ParseDocument failed: %v", err)
	}
	if doc.Dialect != DialectReScript {
		t.Errorf("dialect = %q, want rescript (majority fence)", doc.Dialect)
	}
}
