package index

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// isUniqueConstraintErr returns true when the error indicates a unique/constraint violation
func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unique") || strings.Contains(s, "constraint failed")
}

// CreateOrGetDocument returns the existing document id for the dialect or
// inserts a new row and returns its id. Title, path and checksum are
// refreshed on every call since an edition may be re-parsed after edits.
func CreateOrGetDocument(db DBExecutor, dialect, title, path, checksum string) (int64, error) {
	trimmedDialect := strings.TrimSpace(dialect)
	if trimmedDialect == "" {
		return 0, fmt.Errorf("dialect must be non-empty")
	}

	const maxRetries = 3

	var id int64
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := db.QueryRow(`SELECT id FROM documents WHERE dialect = ?`, trimmedDialect).Scan(&id)
		if err == nil {
			// Refresh metadata; a changed checksum invalidates the resume
			// checkpoint because recipe positions may have shifted.
			var stored string
			if err := db.QueryRow(`SELECT IFNULL(checksum, '') FROM documents WHERE id = ?`, id).Scan(&stored); err != nil {
				return 0, err
			}
			if stored != checksum {
				if _, err := db.Exec(
					`UPDATE documents SET title = ?, path = ?, checksum = ?, last_processed_recipe = -1 WHERE id = ?`,
					title, path, checksum, id,
				); err != nil {
					return 0, err
				}
			}
			return id, nil
		}
		if err != sql.ErrNoRows {
			return 0, err
		}

		res, err := db.Exec(
			`INSERT INTO documents (dialect, title, path, checksum) VALUES (?, ?, ?, ?)`,
			trimmedDialect, title, path, checksum,
		)
		if err != nil {
			// Another connection inserted the same dialect; retry the SELECT.
			if isUniqueConstraintErr(err) {
				continue
			}
			return 0, err
		}
		return res.LastInsertId()
	}

	return 0, fmt.Errorf("could not create or get document after %d retries", maxRetries)
}

// GetDocumentByDialect returns the indexed document row for an edition.
func GetDocumentByDialect(db DBExecutor, dialect string) (*DocumentRow, error) {
	var d DocumentRow
	var title, path, checksum sql.NullString
	var added sql.NullTime
	err := db.QueryRow(
		`SELECT id, dialect, title, path, checksum, last_processed_recipe, added_at
		 FROM documents WHERE dialect = ?`, dialect,
	).Scan(&d.ID, &d.Dialect, &title, &path, &checksum, &d.LastProcessedRecipe, &added)
	if err != nil {
		return nil, err
	}
	d.Title = title.String
	d.Path = path.String
	d.Checksum = checksum.String
	d.AddedAt = added.Time
	return &d, nil
}

// UpsertRecipe inserts or refreshes a recipe keyed by (document_id, anchor)
// and returns its id. Rows are never deleted here: a recipe leaving the
// corpus is an editorial event recorded through caveats, not removal.
func UpsertRecipe(db DBExecutor, r RecipeRow) (int64, error) {
	if r.DocumentID <= 0 {
		return 0, fmt.Errorf("documentID must be positive")
	}
	if strings.TrimSpace(r.Title) == "" {
		return 0, fmt.Errorf("title must be non-empty")
	}
	if strings.TrimSpace(r.Anchor) == "" {
		return 0, fmt.Errorf("anchor must be non-empty")
	}

	var id int64
	query := `INSERT INTO recipes (document_id, category, position, title, anchor, snippet, snippet_lang,
	            caveats, reference_url, instance_position, return_wrapping, mutating, line)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	          ON CONFLICT(document_id, anchor)
	          DO UPDATE SET
	            category = excluded.category,
	            position = excluded.position,
	            title = excluded.title,
	            snippet = excluded.snippet,
	            snippet_lang = excluded.snippet_lang,
	            caveats = excluded.caveats,
	            reference_url = COALESCE(NULLIF(excluded.reference_url, ''), recipes.reference_url),
	            instance_position = excluded.instance_position,
	            return_wrapping = excluded.return_wrapping,
	            mutating = excluded.mutating,
	            line = excluded.line
	          RETURNING id`

	err := db.QueryRow(query,
		r.DocumentID, r.Category, r.Position, r.Title, r.Anchor, r.Snippet, r.SnippetLang,
		r.CaveatsJSON, r.ReferenceURL, r.InstancePosition, r.ReturnWrapping, boolToInt(r.Mutating), r.Line,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert recipe: %w", err)
	}
	return id, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// RecipesByCategory returns the recipes of one category, dialect-filtered
// when dialect is non-empty, in corpus order.
func RecipesByCategory(db DBExecutor, dialect, category string) ([]RecipeRow, error) {
	query := `SELECT r.id, r.document_id, r.category, r.position, r.title, r.anchor,
	            r.snippet, r.snippet_lang, r.caveats, r.reference_url,
	            r.instance_position, r.return_wrapping, r.mutating, r.line
	          FROM recipes r JOIN documents d ON d.id = r.document_id
	          WHERE r.category = ?`
	args := []interface{}{category}
	if dialect != "" {
		query += ` AND d.dialect = ?`
		args = append(args, dialect)
	}
	query += ` ORDER BY d.dialect, r.position`
	return queryRecipes(db, query, args...)
}

// likeEscaper neutralizes LIKE metacharacters so a search term is matched
// literally. Recipe titles routinely contain % and _ (format strings,
// snake_case names).
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchRecipes returns recipes whose title or snippet contains the term,
// dialect-filtered when dialect is non-empty.
func SearchRecipes(db DBExecutor, dialect, term string) ([]RecipeRow, error) {
	if strings.TrimSpace(term) == "" {
		return nil, fmt.Errorf("search term must be non-empty")
	}
	pattern := "%" + likeEscaper.Replace(term) + "%"
	query := `SELECT r.id, r.document_id, r.category, r.position, r.title, r.anchor,
	            r.snippet, r.snippet_lang, r.caveats, r.reference_url,
	            r.instance_position, r.return_wrapping, r.mutating, r.line
	          FROM recipes r JOIN documents d ON d.id = r.document_id
	          WHERE (r.title LIKE ? ESCAPE '\' OR r.snippet LIKE ? ESCAPE '\')`
	args := []interface{}{pattern, pattern}
	if dialect != "" {
		query += ` AND d.dialect = ?`
		args = append(args, dialect)
	}
	query += ` ORDER BY d.dialect, r.position`
	return queryRecipes(db, query, args...)
}

// GetRecipeByAnchor returns the recipe with the given anchor in a document.
func GetRecipeByAnchor(db DBExecutor, documentID int64, anchor string) (*RecipeRow, error) {
	rows, err := queryRecipes(db,
		`SELECT id, document_id, category, position, title, anchor, snippet, snippet_lang,
		   caveats, reference_url, instance_position, return_wrapping, mutating, line
		 FROM recipes WHERE document_id = ? AND anchor = ?`, documentID, anchor)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, sql.ErrNoRows
	}
	return &rows[0], nil
}

func queryRecipes(db DBExecutor, query string, args ...interface{}) ([]RecipeRow, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RecipeRow
	for rows.Next() {
		var r RecipeRow
		var snippet, lang, caveats, ref, inst, wrap sql.NullString
		var line sql.NullInt64
		var mutating int
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.Category, &r.Position, &r.Title, &r.Anchor,
			&snippet, &lang, &caveats, &ref, &inst, &wrap, &mutating, &line); err != nil {
			return nil, err
		}
		r.Snippet = snippet.String
		r.SnippetLang = lang.String
		r.CaveatsJSON = caveats.String
		r.ReferenceURL = ref.String
		r.InstancePosition = inst.String
		r.ReturnWrapping = wrap.String
		r.Mutating = mutating != 0
		r.Line = int(line.Int64)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertRefDoc stores or refreshes reference-page metadata for a URL.
func UpsertRefDoc(db DBExecutor, url, title, excerpt string, fetchedAt time.Time) error {
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("url must be non-empty")
	}
	_, err := db.Exec(`INSERT INTO refdocs (url, title, excerpt, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
		  title = excluded.title,
		  excerpt = excluded.excerpt,
		  fetched_at = excluded.fetched_at`,
		url, title, excerpt, fetchedAt)
	return err
}

// UnresolvedReferenceURLs returns distinct recipe reference URLs with no
// cached refdoc row yet.
func UnresolvedReferenceURLs(db DBExecutor) ([]string, error) {
	rows, err := db.Query(`SELECT DISTINCT r.reference_url FROM recipes r
		LEFT JOIN refdocs rd ON rd.url = r.reference_url
		WHERE r.reference_url IS NOT NULL AND r.reference_url != '' AND rd.id IS NULL
		ORDER BY r.reference_url`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// GetRefDoc returns the cached metadata for a reference URL.
func GetRefDoc(db DBExecutor, url string) (*RefDocRow, error) {
	var r RefDocRow
	var title, excerpt sql.NullString
	var fetched sql.NullTime
	err := db.QueryRow(`SELECT id, url, title, excerpt, fetched_at FROM refdocs WHERE url = ?`, url).
		Scan(&r.ID, &r.URL, &title, &excerpt, &fetched)
	if err != nil {
		return nil, err
	}
	r.Title = title.String
	r.Excerpt = excerpt.String
	r.FetchedAt = fetched.Time
	return &r, nil
}

// GetDocumentProgress returns the last committed recipe index for a document.
func GetDocumentProgress(db DBExecutor, documentID int64) (int, error) {
	var index int
	err := db.QueryRow(`SELECT last_processed_recipe FROM documents WHERE id = ?`, documentID).Scan(&index)
	if err != nil {
		return 0, err
	}
	return index, nil
}

// UpdateDocumentProgress updates the resume checkpoint.
func UpdateDocumentProgress(db DBExecutor, documentID int64, index int) error {
	_, err := db.Exec(`UPDATE documents SET last_processed_recipe = ? WHERE id = ?`, index, documentID)
	return err
}
