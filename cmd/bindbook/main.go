package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/bindbook/bindbook/pkg/cookbook"
	"github.com/bindbook/bindbook/pkg/index"
	"github.com/bindbook/bindbook/pkg/ingest"
	"github.com/bindbook/bindbook/pkg/lint"
	"github.com/bindbook/bindbook/pkg/refdoc"

	_ "github.com/mattn/go-sqlite3"
)

func main() {
	dirFlag := flag.String("dir", "corpus", "Directory holding the cookbook editions")
	dbFlag := flag.String("db", "bindbook.db", "Path to SQLite index")
	lintFlag := flag.Bool("lint", false, "Lint the corpus and exit (status 1 on errors)")
	queryFlag := flag.String("query", "", "Search indexed recipes by term")
	categoryFlag := flag.String("category", "", "List indexed recipes of a category")
	dialectFlag := flag.String("dialect", "", "Restrict queries to one dialect edition")
	fetchFlag := flag.Bool("fetch", false, "Download the corpus release when edition files are missing")
	refsFlag := flag.Bool("fetch-refs", false, "Resolve external reference links after ingestion")
	refCacheFlag := flag.String("ref-cache", "refcache.json", "Path to the reference metadata cache")
	flag.Parse()

	// Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	conn, err := sql.Open("sqlite3", *dbFlag)
	if err != nil {
		log.Fatalf("Failed to open index: %v", err)
	}
	defer conn.Close()

	if err := index.InitIndex(conn); err != nil {
		log.Fatalf("Failed to initialize index: %v", err)
	}

	// Read-only query modes don't touch the corpus files.
	if *queryFlag != "" || *categoryFlag != "" {
		runQuery(conn, *dialectFlag, *queryFlag, *categoryFlag)
		return
	}

	if *fetchFlag {
		if err := cookbook.EnsureCorpus(ctx, *dirFlag); err != nil {
			log.Fatalf("Failed to fetch corpus: %v", err)
		}
	}

	docs, err := parseCorpus(*dirFlag)
	if err != nil {
		log.Fatalf("Failed to parse corpus: %v", err)
	}
	fmt.Printf("Parsed %d edition(s) from %s\n", len(docs), *dirFlag)

	findings := lint.Run(docs)
	findings = append(findings, lint.CheckScenarios(docs)...)
	for _, f := range findings {
		fmt.Println(f)
	}
	fmt.Printf("Lint: %d finding(s)\n", len(findings))

	if *lintFlag {
		if lint.HasErrors(findings) {
			os.Exit(1)
		}
		return
	}

	total := 0
	for _, doc := range docs {
		data, err := os.ReadFile(filepath.Join(*dirFlag, doc.Name))
		if err != nil {
			log.Fatalf("Failed to re-read %s: %v", doc.Name, err)
		}
		sum := sha256.Sum256(data)

		docID, err := index.CreateOrGetDocument(conn, string(doc.Dialect), doc.Title, doc.Name, hex.EncodeToString(sum[:]))
		if err != nil {
			log.Fatalf("Failed to persist document %s: %v", doc.Name, err)
		}

		ingester := ingest.NewIngester(conn)
		ingester.Logger = log.Default()
		count, err := ingester.Ingest(ctx, docID, doc.Recipes())
		if err != nil {
			log.Fatalf("Ingestion of %s failed: %v", doc.Name, err)
		}
		fmt.Printf("Indexed %d recipe(s) from %s (%s)\n", count, doc.Name, doc.Dialect)
		total += count
	}

	if *refsFlag {
		resolver, err := refdoc.NewResolver(*refCacheFlag)
		if err != nil {
			log.Fatalf("Failed to load reference cache: %v", err)
		}
		resolver.Logger = log.Default()

		urls, err := index.UnresolvedReferenceURLs(conn)
		if err != nil {
			log.Fatalf("Failed to list reference links: %v", err)
		}
		fetched := resolver.FetchAll(ctx, urls)
		stored, err := resolver.ProcessUpdates(conn)
		if err != nil {
			log.Fatalf("Failed to store reference metadata: %v", err)
		}
		fmt.Printf("References: %d fetched, %d stored\n", fetched, stored)
	}

	fmt.Printf("Processing complete. Indexed %d recipe(s) total.\n", total)
}

// parseCorpus parses every Markdown file in dir, ordered by name so the
// reason edition precedes rescript.
func parseCorpus(dir string) ([]*cookbook.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".md" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil, fmt.Errorf("no markdown editions found in %s", dir)
	}

	var docs []*cookbook.Document
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		doc, err := cookbook.ParseDocument(name, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func runQuery(conn *sql.DB, dialect, term, category string) {
	var rows []index.RecipeRow
	var err error
	if term != "" {
		rows, err = index.SearchRecipes(conn, dialect, term)
	} else {
		rows, err = index.RecipesByCategory(conn, dialect, category)
	}
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	if len(rows) == 0 {
		fmt.Println("No recipes found.")
		return
	}
	for _, r := range rows {
		fmt.Printf("[%s] %s (#%s)\n", r.Category, r.Title, r.Anchor)
		if r.Snippet != "" {
			fmt.Println(indent(r.Snippet))
		}
		if r.ReferenceURL != "" {
			fmt.Printf("  Reference: %s\n", r.ReferenceURL)
		}
	}
	fmt.Printf("%d recipe(s).\n", len(rows))
}

func indent(s string) string {
	var b bytes.Buffer
	for _, line := range bytes.Split([]byte(s), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		b.WriteString("  ")
		b.Write(line)
		b.WriteByte('\n')
	}
	return b.String()
}
