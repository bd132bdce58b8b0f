package index

import "time"

// DocumentRow is one indexed edition of the cookbook.
type DocumentRow struct {
	ID       int64
	Dialect  string
	Title    string
	Path     string
	Checksum string
	// LastProcessedRecipe is the resume checkpoint: index of the last
	// recipe committed for this document, -1 when none.
	LastProcessedRecipe int
	AddedAt             time.Time
}

// RecipeRow is the stored form of one recipe plus its snippet analysis.
type RecipeRow struct {
	ID           int64
	DocumentID   int64
	Category     string
	Position     int
	Title        string
	Anchor       string
	Snippet      string
	SnippetLang  string
	CaveatsJSON  string
	ReferenceURL string
	// Analysis columns, derived from the primary snippet's declaration.
	InstancePosition string
	ReturnWrapping   string
	Mutating         bool
	Line             int
}

// RefDocRow caches metadata extracted from an external reference page.
type RefDocRow struct {
	ID        int64
	URL       string
	Title     string
	Excerpt   string
	FetchedAt time.Time
}
