// Package refdoc resolves the external reference links recipes point into:
// it fetches each page, extracts a readable title and excerpt and caches
// the result so repeated runs stay offline.
package refdoc

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// RefDoc is the cached metadata of one external reference page.
type RefDoc struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Excerpt   string    `json:"excerpt"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// LoadCache reads a cache file written by SaveCache. A missing file yields
// an empty map, not an error.
func LoadCache(path string) (map[string]RefDoc, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]RefDoc{}, nil
		}
		return nil, err
	}
	defer f.Close()

	var docs []RefDoc
	if err := json.NewDecoder(f).Decode(&docs); err != nil {
		return nil, fmt.Errorf("parse reference cache %s: %w", path, err)
	}
	out := make(map[string]RefDoc, len(docs))
	for _, d := range docs {
		out[d.URL] = d
	}
	return out, nil
}

// SaveCache writes the cache as a JSON array sorted by insertion via the
// caller-provided slice.
func SaveCache(path string, docs []RefDoc) error {
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
