package index

// migrationsSQL holds the full schema. Statements are split on ';' and run
// in order by InitIndex, so no statement body may contain a semicolon.
const migrationsSQL = `
CREATE TABLE IF NOT EXISTS documents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	dialect TEXT NOT NULL,
	title TEXT,
	path TEXT,
	checksum TEXT,
	last_processed_recipe INTEGER NOT NULL DEFAULT -1,
	added_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(dialect)
);

CREATE TABLE IF NOT EXISTS recipes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	document_id INTEGER NOT NULL REFERENCES documents(id),
	category TEXT NOT NULL,
	position INTEGER NOT NULL,
	title TEXT NOT NULL,
	anchor TEXT NOT NULL,
	snippet TEXT,
	snippet_lang TEXT,
	caveats TEXT,
	reference_url TEXT,
	instance_position TEXT,
	return_wrapping TEXT,
	mutating INTEGER NOT NULL DEFAULT 0,
	line INTEGER,
	UNIQUE(document_id, anchor)
);

CREATE INDEX IF NOT EXISTS idx_recipes_category ON recipes(category);

CREATE INDEX IF NOT EXISTS idx_recipes_title ON recipes(title);

CREATE TABLE IF NOT EXISTS refdocs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	url TEXT NOT NULL UNIQUE,
	title TEXT,
	excerpt TEXT,
	fetched_at TIMESTAMP
);
`
