package cookbook

// Version returns the current version of the package.
func Version() string { return "0.1.0" }

// Dialect identifies one of the two parallel editions of the cookbook.
// Both editions cover the same task set; rescript is the later, cleaner
// surface syntax for the same underlying binding mechanism.
type Dialect string

const (
	DialectReason   Dialect = "reason"
	DialectReScript Dialect = "rescript"
)

// DialectForFence maps a fenced-code-block language tag to a dialect.
func DialectForFence(lang string) (Dialect, bool) {
	switch lang {
	case "reason", "re":
		return DialectReason, true
	case "rescript", "res":
		return DialectReScript, true
	}
	return "", false
}

// Category is one of the fixed top-level groupings of the cookbook.
type Category uint8

const (
	CategoryUnknown Category = iota
	Globals
	Modules
	Functions
	Objects
	ClassesAndOOP
	NullAndUndefined
)

var categoryNames = [...]string{
	CategoryUnknown:  "unknown",
	Globals:          "Globals",
	Modules:          "Modules",
	Functions:        "Functions",
	Objects:          "Objects",
	ClassesAndOOP:    "Classes and OOP",
	NullAndUndefined: "Null and Undefined",
}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return "unknown"
}

// CanonicalCategories is the required category order. The ordering is part
// of the corpus design: simple global concerns first, escalating to class
// and object binding, ending with nullability idioms.
var CanonicalCategories = []Category{
	Globals,
	Modules,
	Functions,
	Objects,
	ClassesAndOOP,
	NullAndUndefined,
}

// CategoryByHeading resolves a category heading to its Category value.
// Matching is case-insensitive and tolerates "Null / Undefined" variants.
func CategoryByHeading(heading string) (Category, bool) {
	h := normalizeHeading(heading)
	for _, c := range CanonicalCategories {
		if normalizeHeading(c.String()) == h {
			return c, true
		}
	}
	// Accept the slash-separated form of the nullability section.
	if h == "null undefined" {
		return NullAndUndefined, true
	}
	return CategoryUnknown, false
}

// Snippet is one fenced code block inside a recipe body.
type Snippet struct {
	Lang string // fence language tag, e.g. "rescript"
	Body string
	Line int // line of the opening fence
}

// Recipe is the atomic unit of the cookbook: a named host-language usage
// pattern paired with the canonical binding declaration that achieves it.
type Recipe struct {
	Title    string
	Category Category
	Dialect  Dialect
	Anchor   string // slug derived from Title; see Slugify
	Snippets []Snippet
	// Caveats are prose notes about edge cases, deprecations, or required
	// conventions, one entry per paragraph.
	Caveats []string
	// Reference is an optional URL into the external authoritative manual.
	Reference string
	Line      int // line of the recipe heading
}

// PrimarySnippet returns the first snippet tagged with the recipe's own
// dialect, falling back to the first snippet of any tag.
func (r *Recipe) PrimarySnippet() (Snippet, bool) {
	for _, s := range r.Snippets {
		if d, ok := DialectForFence(s.Lang); ok && d == r.Dialect {
			return s, true
		}
	}
	if len(r.Snippets) > 0 {
		return r.Snippets[0], true
	}
	return Snippet{}, false
}

// HasCaveat reports whether any caveat paragraph contains the phrase,
// matched case-insensitively.
func (r *Recipe) HasCaveat(phrase string) bool {
	for _, c := range r.Caveats {
		if containsFold(c, phrase) {
			return true
		}
	}
	return false
}

// TOCEntry is one entry of the hand-maintained table of contents.
type TOCEntry struct {
	Text   string
	Anchor string
	Line   int
}

// CategorySection is an ordered grouping of recipes under one category
// heading.
type CategorySection struct {
	Category Category
	Heading  string // heading text as written
	Line     int
	Recipes  []Recipe
}

// Document is one parsed edition of the cookbook.
type Document struct {
	Name       string // source file name
	Title      string
	Dialect    Dialect
	TOC        []TOCEntry
	Categories []CategorySection
}

// Recipes returns all recipes of the document in corpus order.
func (d *Document) Recipes() []Recipe {
	var out []Recipe
	for _, c := range d.Categories {
		out = append(out, c.Recipes...)
	}
	return out
}

// FindRecipe returns the first recipe whose anchor matches.
func (d *Document) FindRecipe(anchor string) (Recipe, bool) {
	for _, c := range d.Categories {
		for _, r := range c.Recipes {
			if r.Anchor == anchor {
				return r, true
			}
		}
	}
	return Recipe{}, false
}
