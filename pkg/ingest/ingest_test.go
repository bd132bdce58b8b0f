package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/bindbook/bindbook/pkg/cookbook"
	"github.com/bindbook/bindbook/pkg/index"
	_ "github.com/mattn/go-sqlite3"
)

func setupDB(t *testing.T) *sql.DB {
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	conn.SetMaxOpenConns(1)
	if err := index.InitIndex(conn); err != nil {
		t.Fatalf("failed to init index: %v", err)
	}
	return conn
}

func makeRecipes(n int) []cookbook.Recipe {
	out := make([]cookbook.Recipe, n)
	for i := range out {
		title := fmt.Sprintf("arr.method%d(element)", i)
		out[i] = cookbook.Recipe{
			Title:    title,
			Category: cookbook.Objects,
			Dialect:  cookbook.DialectReScript,
			Anchor:   cookbook.Slugify(title),
			Snippets: []cookbook.Snippet{{
				Lang: "rescript",
				Body: fmt.Sprintf("@send external method%d: (array<'a>, 'a) => unit = \"method%d\"\n", i, i),
				Line: 10 + i,
			}},
			Caveats: []string{"Mutates the array in place."},
			Line:    5 + i,
		}
	}
	return out
}

func TestIngestResume(t *testing.T) {
	conn := setupDB(t)
	defer conn.Close()

	docID, err := index.CreateOrGetDocument(conn, "rescript", "Test", "t.md", "x")
	if err != nil {
		t.Fatal(err)
	}

	recipes := makeRecipes(10)

	// Manually set progress to index 4 (so 5 recipes processed: 0,1,2,3,4)
	if err := index.UpdateDocumentProgress(conn, docID, 4); err != nil {
		t.Fatal(err)
	}

	ingester := NewIngester(conn)
	ingester.BatchSize = 2 // Verify batching doesn't interfere

	count, err := ingester.Ingest(context.Background(), docID, recipes)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	// We expect recipes 5..9 to be indexed.
	if count != 5 {
		t.Errorf("Expected 5 indexed recipes, got %d", count)
	}

	var stored int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM recipes WHERE document_id = ?`, docID).Scan(&stored); err != nil {
		t.Fatal(err)
	}
	if stored != 5 {
		t.Errorf("Expected 5 recipe rows, got %d", stored)
	}

	progress, err := index.GetDocumentProgress(conn, docID)
	if err != nil {
		t.Fatal(err)
	}
	if progress != 9 {
		t.Errorf("Expected checkpoint at 9, got %d", progress)
	}
}

func TestIngestStoresAnalysis(t *testing.T) {
	conn := setupDB(t)
	defer conn.Close()
	docID, _ := index.CreateOrGetDocument(conn, "rescript", "Test", "t.md", "x")

	recipes := makeRecipes(1)
	ingester := NewIngester(conn)
	if _, err := ingester.Ingest(context.Background(), docID, recipes); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	row, err := index.GetRecipeByAnchor(conn, docID, recipes[0].Anchor)
	if err != nil {
		t.Fatalf("get recipe: %v", err)
	}
	if row.InstancePosition != "first" {
		t.Errorf("instance position = %q, want first", row.InstancePosition)
	}
	if !row.Mutating {
		t.Error("expected mutating recipe")
	}
	if row.CaveatsJSON == "" {
		t.Error("expected caveats to be stored")
	}
}

func TestIngestIdempotent(t *testing.T) {
	conn := setupDB(t)
	defer conn.Close()
	docID, _ := index.CreateOrGetDocument(conn, "rescript", "Test", "t.md", "x")
	recipes := makeRecipes(6)

	ingester := NewIngester(conn)
	if _, err := ingester.Ingest(context.Background(), docID, recipes); err != nil {
		t.Fatal(err)
	}
	// A second run resumes past the end and writes nothing.
	count, err := ingester.Ingest(context.Background(), docID, recipes)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("Expected 0 recipes on resume past end, got %d", count)
	}

	var stored int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM recipes WHERE document_id = ?`, docID).Scan(&stored); err != nil {
		t.Fatal(err)
	}
	if stored != 6 {
		t.Errorf("Expected 6 recipe rows, got %d", stored)
	}
}

func TestIngestContextCancel(t *testing.T) {
	conn := setupDB(t)
	defer conn.Close()
	docID, _ := index.CreateOrGetDocument(conn, "rescript", "Test", "t.md", "x")

	recipes := makeRecipes(100)

	ingester := NewIngester(conn)
	ingester.BatchSize = 10

	// Create a context that is ALREADY canceled
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	count, err := ingester.Ingest(ctx, docID, recipes)

	if count != 0 {
		t.Errorf("Expected 0 indexed recipes with canceled context, got %d", count)
	}
	if err != context.Canceled {
		t.Errorf("Expected context.Canceled error, got %v", err)
	}
}
