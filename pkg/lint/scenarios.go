package lint

import (
	"fmt"
	"strings"

	"github.com/bindbook/bindbook/pkg/cookbook"
)

// Pinned titles whose shape the corpus guarantees to downstream readers.
const (
	titleSortComparator = "arr.sort(compareFunction)"
	titleUndefinedCheck = "foo.bar === undefined"
	titleNullCheck      = "foo.bar == null"
)

// CheckScenarios verifies the concrete guarantees the corpus publishes for
// its pinned recipes. Run separately from Run so callers can opt in when a
// document set is expected to be complete.
func CheckScenarios(docs []*cookbook.Document) []Finding {
	var out []Finding
	for _, d := range docs {
		out = append(out, checkSortScenario(d)...)
		out = append(out, checkAbsenceScenarios(d)...)
	}
	return out
}

// checkSortScenario: the sort recipe's snippet places the array argument
// before the comparator, and the comparator takes exactly two elements and
// returns a signed integer comparison result.
func checkSortScenario(d *cookbook.Document) []Finding {
	r, ok := findByTitle(d, titleSortComparator)
	if !ok {
		return []Finding{pinned(d, 0, "title %q must appear exactly once, found 0", titleSortComparator)}
	}
	snip, ok := r.PrimarySnippet()
	if !ok {
		return []Finding{pinned(d, r.Line, "recipe %q has no snippet", r.Title)}
	}
	decl, ok := cookbook.AnalyzeSnippet(snip.Body)
	if !ok {
		return []Finding{pinned(d, snip.Line, "recipe %q snippet has no external declaration", r.Title)}
	}

	var out []Finding
	if decl.Instance != cookbook.InstanceFirst {
		out = append(out, pinned(d, snip.Line, "recipe %q must place the array argument first, found %s", r.Title, decl.Instance))
	}
	if len(decl.Params) < 2 {
		out = append(out, pinned(d, snip.Line, "recipe %q must take a comparator after the array", r.Title))
		return out
	}
	arity, ret, isFunc := decl.FuncParam(len(decl.Params) - 1)
	switch {
	case !isFunc:
		out = append(out, pinned(d, snip.Line, "recipe %q comparator parameter is not a function type", r.Title))
	case arity != 2:
		out = append(out, pinned(d, snip.Line, "recipe %q comparator must take exactly two elements, takes %d", r.Title, arity))
	case !strings.HasPrefix(strings.TrimSpace(ret), "int"):
		out = append(out, pinned(d, snip.Line, "recipe %q comparator must return a signed integer comparison result, returns %q", r.Title, strings.TrimSpace(ret)))
	}
	return out
}

// checkAbsenceScenarios: the undefined-only and null-aware detection
// recipes each exist exactly once and use distinct return wrappings.
func checkAbsenceScenarios(d *cookbook.Document) []Finding {
	var out []Finding

	wrapping := func(title string) (cookbook.ReturnWrapping, int, bool) {
		count := 0
		var w cookbook.ReturnWrapping
		var line int
		for _, r := range d.Recipes() {
			if r.Title != title {
				continue
			}
			count++
			line = r.Line
			if snip, ok := r.PrimarySnippet(); ok {
				if decl, ok := cookbook.AnalyzeSnippet(snip.Body); ok {
					w = decl.Wrapping
				}
			}
		}
		if count != 1 {
			out = append(out, pinned(d, line, "title %q must appear exactly once, found %d", title, count))
			return w, line, false
		}
		return w, line, true
	}

	undefWrap, undefLine, okU := wrapping(titleUndefinedCheck)
	nullWrap, nullLine, okN := wrapping(titleNullCheck)
	if !okU || !okN {
		return out
	}

	if undefWrap != cookbook.ReturnOption {
		out = append(out, pinned(d, undefLine, "%q must use a plain option-wrapping return, found %s", titleUndefinedCheck, undefWrap))
	}
	if nullWrap != cookbook.ReturnNullable {
		out = append(out, pinned(d, nullLine, "%q must use a nullable-aware optional-wrapping return, found %s", titleNullCheck, nullWrap))
	}
	if undefWrap == nullWrap {
		out = append(out, pinned(d, nullLine, "%q and %q must use different return wrappings, both use %s", titleUndefinedCheck, titleNullCheck, nullWrap))
	}
	return out
}

func findByTitle(d *cookbook.Document, title string) (cookbook.Recipe, bool) {
	for _, r := range d.Recipes() {
		if r.Title == title {
			return r, true
		}
	}
	return cookbook.Recipe{}, false
}

func pinned(d *cookbook.Document, line int, format string, args ...interface{}) Finding {
	return Finding{
		Class:    ClassScenario,
		Severity: Error,
		Document: d.Name,
		Line:     line,
		Message:  fmt.Sprintf(format, args...),
	}
}
