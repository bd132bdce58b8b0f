// Package lint checks the editorial invariants of the cookbook corpus:
// table-of-contents integrity, category parity across the two editions,
// the argument-order convention for mutating vs non-mutating bindings and
// the optional-wrapping rules for absence-detecting recipes.
package lint

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bindbook/bindbook/pkg/cookbook"
)

// Severity ranks a finding.
type Severity uint8

const (
	Warning Severity = iota
	Error
)

func (s Severity) String() string {
	if s == Error {
		return "error"
	}
	return "warning"
}

// Class is the editorial defect class of a finding.
type Class string

const (
	ClassBrokenAnchor   Class = "broken-anchor"
	ClassDuplicateTitle Class = "duplicate-title"
	ClassCategoryOrder  Class = "category-order"
	ClassArgOrder       Class = "arg-order"
	ClassBareAbsence    Class = "bare-absence"
	ClassEditionParity  Class = "edition-parity"
	ClassStaleSnippet   Class = "stale-snippet"
	ClassMissingCaveat  Class = "missing-caveat"
	ClassScenario       Class = "pinned-scenario"
)

// Finding is one detected defect, pinned to a document and line.
type Finding struct {
	Class    Class
	Severity Severity
	Document string
	Line     int
	Message  string
}

func (f Finding) String() string {
	return fmt.Sprintf("%s:%d: %s: %s: %s", f.Document, f.Line, f.Severity, f.Class, f.Message)
}

// HasErrors reports whether any finding is Error severity.
func HasErrors(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == Error {
			return true
		}
	}
	return false
}

// Run checks all documents and returns findings ordered by document then line.
func Run(docs []*cookbook.Document) []Finding {
	var out []Finding
	for _, d := range docs {
		out = append(out, checkAnchors(d)...)
		out = append(out, checkDuplicates(d)...)
		out = append(out, checkCategoryOrder(d)...)
		out = append(out, checkConventions(d)...)
	}
	out = append(out, checkEditionParity(docs)...)
	out = append(out, checkMutationAgreement(docs)...)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Document != out[j].Document {
			return out[i].Document < out[j].Document
		}
		return out[i].Line < out[j].Line
	})
	return out
}

// checkAnchors verifies the TOC↔body bijection: every TOC entry resolves to
// exactly one recipe and every recipe appears in the TOC.
func checkAnchors(d *cookbook.Document) []Finding {
	var out []Finding

	bodyAnchors := make(map[string]int) // anchor -> heading line
	for _, c := range d.Categories {
		for _, r := range c.Recipes {
			if _, seen := bodyAnchors[r.Anchor]; !seen {
				bodyAnchors[r.Anchor] = r.Line
			}
		}
	}

	tocAnchors := make(map[string]int) // anchor -> line of first entry
	for _, e := range d.TOC {
		if first, dup := tocAnchors[e.Anchor]; dup {
			out = append(out, Finding{
				Class:    ClassBrokenAnchor,
				Severity: Error,
				Document: d.Name,
				Line:     e.Line,
				Message:  fmt.Sprintf("table of contents lists anchor #%s more than once (first at line %d)", e.Anchor, first),
			})
			continue
		}
		tocAnchors[e.Anchor] = e.Line
		if _, ok := bodyAnchors[e.Anchor]; !ok {
			out = append(out, Finding{
				Class:    ClassBrokenAnchor,
				Severity: Error,
				Document: d.Name,
				Line:     e.Line,
				Message:  fmt.Sprintf("table of contents entry %q links to #%s which has no recipe body", e.Text, e.Anchor),
			})
		}
		if cookbook.Slugify(e.Text) != e.Anchor {
			out = append(out, Finding{
				Class:    ClassBrokenAnchor,
				Severity: Error,
				Document: d.Name,
				Line:     e.Line,
				Message:  fmt.Sprintf("anchor #%s does not match the slug of its entry text %q", e.Anchor, e.Text),
			})
		}
	}

	for _, c := range d.Categories {
		for _, r := range c.Recipes {
			if _, ok := tocAnchors[r.Anchor]; !ok {
				out = append(out, Finding{
					Class:    ClassBrokenAnchor,
					Severity: Error,
					Document: d.Name,
					Line:     r.Line,
					Message:  fmt.Sprintf("recipe %q is missing from the table of contents", r.Title),
				})
			}
		}
	}
	return out
}

// checkDuplicates flags titles appearing more than once within a category.
func checkDuplicates(d *cookbook.Document) []Finding {
	var out []Finding
	for _, c := range d.Categories {
		seen := make(map[string]int)
		for _, r := range c.Recipes {
			if first, dup := seen[r.Title]; dup {
				out = append(out, Finding{
					Class:    ClassDuplicateTitle,
					Severity: Error,
					Document: d.Name,
					Line:     r.Line,
					Message:  fmt.Sprintf("recipe title %q already used at line %d in category %s", r.Title, first, c.Category),
				})
				continue
			}
			seen[r.Title] = r.Line
		}
	}
	return out
}

// checkCategoryOrder verifies the document carries the canonical category
// sequence, in order, with no strangers.
func checkCategoryOrder(d *cookbook.Document) []Finding {
	var out []Finding
	want := cookbook.CanonicalCategories
	for i, c := range d.Categories {
		if i >= len(want) {
			out = append(out, Finding{
				Class:    ClassCategoryOrder,
				Severity: Error,
				Document: d.Name,
				Line:     c.Line,
				Message:  fmt.Sprintf("unexpected extra category %q", c.Heading),
			})
			continue
		}
		if c.Category != want[i] {
			out = append(out, Finding{
				Class:    ClassCategoryOrder,
				Severity: Error,
				Document: d.Name,
				Line:     c.Line,
				Message:  fmt.Sprintf("category %q out of order: expected %q at position %d", c.Heading, want[i], i+1),
			})
		}
	}
	if len(d.Categories) < len(want) {
		missing := make([]string, 0, len(want)-len(d.Categories))
		for _, c := range want[len(d.Categories):] {
			missing = append(missing, c.String())
		}
		out = append(out, Finding{
			Class:    ClassCategoryOrder,
			Severity: Error,
			Document: d.Name,
			Line:     1,
			Message:  fmt.Sprintf("missing categories: %s", strings.Join(missing, ", ")),
		})
	}
	return out
}

// checkConventions applies per-recipe snippet rules: dialect-consistent
// fences, the mutation argument-order convention and optional wrapping for
// absence-detecting recipes.
func checkConventions(d *cookbook.Document) []Finding {
	var out []Finding
	for _, c := range d.Categories {
		for _, r := range c.Recipes {
			out = append(out, checkRecipe(d, c, r)...)
		}
	}
	return out
}

func checkRecipe(d *cookbook.Document, c cookbook.CategorySection, r cookbook.Recipe) []Finding {
	var out []Finding

	for _, s := range r.Snippets {
		if dialect, ok := cookbook.DialectForFence(s.Lang); ok && dialect != d.Dialect {
			out = append(out, Finding{
				Class:    ClassStaleSnippet,
				Severity: Error,
				Document: d.Name,
				Line:     s.Line,
				Message:  fmt.Sprintf("recipe %q carries a %s snippet inside the %s edition", r.Title, dialect, d.Dialect),
			})
		}
	}

	snip, ok := r.PrimarySnippet()
	if !ok {
		return out
	}
	decl, ok := cookbook.AnalyzeSnippet(snip.Body)
	if !ok {
		return out
	}

	claimsMutation := r.HasCaveat("in place")
	mutating := claimsMutation || decl.Mutating()

	if decl.Instance != cookbook.InstanceNone {
		switch {
		case mutating && decl.Instance != cookbook.InstanceFirst:
			out = append(out, Finding{
				Class:    ClassArgOrder,
				Severity: Error,
				Document: d.Name,
				Line:     snip.Line,
				Message:  fmt.Sprintf("mutating recipe %q must take the instance argument first, found %s", r.Title, decl.Instance),
			})
		case !mutating && decl.Instance == cookbook.InstanceMiddle:
			out = append(out, Finding{
				Class:    ClassArgOrder,
				Severity: Error,
				Document: d.Name,
				Line:     snip.Line,
				Message:  fmt.Sprintf("recipe %q buries the instance argument in the middle of the parameter list", r.Title),
			})
		}
	}

	if mutating && !claimsMutation {
		out = append(out, Finding{
			Class:    ClassMissingCaveat,
			Severity: Warning,
			Document: d.Name,
			Line:     r.Line,
			Message:  fmt.Sprintf("recipe %q binds an in-place operation but no caveat says so", r.Title),
		})
	}

	if discussesAbsence(r) && decl.Wrapping == cookbook.ReturnBare {
		out = append(out, Finding{
			Class:    ClassBareAbsence,
			Severity: Error,
			Document: d.Name,
			Line:     snip.Line,
			Message:  fmt.Sprintf("recipe %q claims to detect absence but returns a bare type instead of an optional-wrapping one", r.Title),
		})
	}

	return out
}

// discussesAbsence reports whether a recipe is about null/undefined
// detection, judged from its title, category and caveats.
func discussesAbsence(r cookbook.Recipe) bool {
	if r.Category == cookbook.NullAndUndefined {
		return true
	}
	t := strings.ToLower(r.Title)
	if strings.Contains(t, "undefined") || strings.Contains(t, "null") {
		return true
	}
	return r.HasCaveat("undefined") || r.HasCaveat("null")
}

// checkEditionParity warns about recipes present in only one edition. The
// corpus keeps the two editions permanently parallel; a one-sided title is
// a pending backfill, never an error.
func checkEditionParity(docs []*cookbook.Document) []Finding {
	byDialect := make(map[cookbook.Dialect]*cookbook.Document)
	for _, d := range docs {
		byDialect[d.Dialect] = d
	}
	reason, okR := byDialect[cookbook.DialectReason]
	rescript, okS := byDialect[cookbook.DialectReScript]
	if !okR || !okS {
		return nil
	}

	var out []Finding
	out = append(out, oneSided(reason, rescript)...)
	out = append(out, oneSided(rescript, reason)...)
	return out
}

// checkMutationAgreement verifies that a recipe carried by both editions
// classifies the same way: a binding cannot be in-place in one dialect and
// pure in the other.
func checkMutationAgreement(docs []*cookbook.Document) []Finding {
	byDialect := make(map[cookbook.Dialect]*cookbook.Document)
	for _, d := range docs {
		byDialect[d.Dialect] = d
	}
	reason, okR := byDialect[cookbook.DialectReason]
	rescript, okS := byDialect[cookbook.DialectReScript]
	if !okR || !okS {
		return nil
	}

	reasonByTitle := make(map[string]cookbook.Recipe)
	for _, r := range reason.Recipes() {
		reasonByTitle[r.Title] = r
	}

	var out []Finding
	for _, r := range rescript.Recipes() {
		counterpart, ok := reasonByTitle[r.Title]
		if !ok {
			continue
		}
		mine, okMine := recipeMutation(r)
		theirs, okTheirs := recipeMutation(counterpart)
		if !okMine || !okTheirs || mine == theirs {
			continue
		}
		mutatingSide, pureSide := rescript.Dialect, reason.Dialect
		if theirs {
			mutatingSide, pureSide = reason.Dialect, rescript.Dialect
		}
		out = append(out, Finding{
			Class:    ClassArgOrder,
			Severity: Error,
			Document: rescript.Name,
			Line:     r.Line,
			Message:  fmt.Sprintf("recipe %q is classified mutating in the %s edition but not in the %s edition", r.Title, mutatingSide, pureSide),
		})
	}
	return out
}

// recipeMutation classifies a recipe's primary declaration. ok is false when
// the recipe has no analyzable snippet.
func recipeMutation(r cookbook.Recipe) (mutating, ok bool) {
	snip, ok := r.PrimarySnippet()
	if !ok {
		return false, false
	}
	decl, ok := cookbook.AnalyzeSnippet(snip.Body)
	if !ok {
		return false, false
	}
	return r.HasCaveat("in place") || decl.Mutating(), true
}

func oneSided(in, other *cookbook.Document) []Finding {
	titles := make(map[string]bool)
	for _, r := range other.Recipes() {
		titles[r.Title] = true
	}
	var out []Finding
	for _, r := range in.Recipes() {
		if !titles[r.Title] {
			out = append(out, Finding{
				Class:    ClassEditionParity,
				Severity: Warning,
				Document: in.Name,
				Line:     r.Line,
				Message:  fmt.Sprintf("recipe %q has no counterpart in the %s edition", r.Title, other.Dialect),
			})
		}
	}
	return out
}
