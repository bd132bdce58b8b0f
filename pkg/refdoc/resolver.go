package refdoc

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-shiori/go-readability"

	"github.com/bindbook/bindbook/pkg/index"
)

// maxPageSize caps reference page downloads; manual pages are small and
// anything larger is not worth excerpting.
const maxPageSize = 5 * 1024 * 1024

const excerptLen = 400

// Resolver fetches and caches reference-page metadata. Lookups are
// concurrent-safe; fetches serialize on the same mutex as writes.
type Resolver struct {
	cachePath string
	client    *http.Client
	// Logger is used for per-URL fetch failures. nil means no logging.
	Logger *log.Logger

	mu   sync.RWMutex
	docs map[string]RefDoc
}

// NewResolver loads the cache at cachePath (which may not exist yet).
func NewResolver(cachePath string) (*Resolver, error) {
	docs, err := LoadCache(cachePath)
	if err != nil {
		return nil, err
	}
	return &Resolver{
		cachePath: cachePath,
		client:    &http.Client{Timeout: 30 * time.Second},
		docs:      docs,
	}, nil
}

// Lookup returns the cached metadata for a URL, if present.
func (rs *Resolver) Lookup(rawURL string) (RefDoc, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	d, ok := rs.docs[rawURL]
	return d, ok
}

// Fetch downloads a reference page, extracts title and excerpt and caches
// the result. Cached entries are returned without network access.
func (rs *Resolver) Fetch(ctx context.Context, rawURL string) (RefDoc, error) {
	if d, ok := rs.Lookup(rawURL); ok {
		return d, nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return RefDoc{}, fmt.Errorf("parse reference url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return RefDoc{}, err
	}
	req.Header.Set("User-Agent", "bindbook-cli")

	resp, err := rs.client.Do(req)
	if err != nil {
		return RefDoc{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return RefDoc{}, fmt.Errorf("reference fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return RefDoc{}, fmt.Errorf("read reference body: %w", err)
	}
	if int64(len(body)) >= int64(maxPageSize) {
		return RefDoc{}, fmt.Errorf("reference page exceeded %d bytes", maxPageSize)
	}

	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err != nil {
		return RefDoc{}, fmt.Errorf("extract reference page: %w", err)
	}

	doc := RefDoc{
		URL:       rawURL,
		Title:     article.Title,
		Excerpt:   excerpt(article.TextContent),
		FetchedAt: time.Now().UTC(),
	}

	rs.mu.Lock()
	rs.docs[rawURL] = doc
	err = rs.saveLocked()
	rs.mu.Unlock()
	if err != nil {
		return doc, fmt.Errorf("persist reference cache: %w", err)
	}
	return doc, nil
}

// FetchAll resolves every URL, skipping failures, and returns the number
// newly fetched.
func (rs *Resolver) FetchAll(ctx context.Context, urls []string) int {
	fetched := 0
	for _, u := range urls {
		if _, ok := rs.Lookup(u); ok {
			continue
		}
		if _, err := rs.Fetch(ctx, u); err != nil {
			if ctx.Err() != nil {
				return fetched
			}
			if rs.Logger != nil {
				rs.Logger.Printf("Warning: could not resolve reference %s: %v", u, err)
			}
			continue
		}
		fetched++
	}
	return fetched
}

// saveLocked assumes rs.mu is held.
func (rs *Resolver) saveLocked() error {
	docs := make([]RefDoc, 0, len(rs.docs))
	for _, d := range rs.docs {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].URL < docs[j].URL })
	return SaveCache(rs.cachePath, docs)
}

// excerpt keeps the leading run of readable text, cut at a word boundary.
// Text without spaces is cut at the nearest rune boundary instead.
func excerpt(text string) string {
	t := strings.Join(strings.Fields(text), " ")
	if len(t) <= excerptLen {
		return t
	}
	cut := strings.LastIndexByte(t[:excerptLen], ' ')
	if cut <= 0 {
		cut = excerptLen
		for cut > 0 && !utf8.RuneStart(t[cut]) {
			cut--
		}
	}
	return t[:cut] + "…"
}

// ProcessUpdates backfills the index with cached reference metadata for
// every recipe reference URL not yet stored, and returns how many refdoc
// rows were written.
func (rs *Resolver) ProcessUpdates(conn *sql.DB) (int, error) {
	urls, err := index.UnresolvedReferenceURLs(conn)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, u := range urls {
		doc, ok := rs.Lookup(u)
		if !ok {
			continue
		}
		if err := index.UpsertRefDoc(conn, doc.URL, doc.Title, doc.Excerpt, doc.FetchedAt); err != nil {
			if rs.Logger != nil {
				rs.Logger.Printf("Failed to store reference %s: %v", u, err)
			}
			continue
		}
		updated++
	}
	return updated, nil
}
