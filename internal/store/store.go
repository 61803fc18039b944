// Package store persists a built import graph to SQLite so external
// tooling can query it with plain SQL.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer for an exported graph.
type Store struct {
	db *sql.DB
}

// Module is one row of the modules table.
type Module struct {
	Name       string
	IsSquashed bool
}

// Import is one row of the imports table.
type Import struct {
	Importer string
	Imported string
}

// ImportDetail is one row of the import_details table.
type ImportDetail struct {
	Importer     string
	Imported     string
	LineNumber   int
	LineContents string
}

// Open opens a SQLite database at dbPath with WAL mode enabled.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS modules (
  id              INTEGER PRIMARY KEY,
  name            TEXT NOT NULL UNIQUE,
  is_squashed     BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS imports (
  importer_id     INTEGER NOT NULL REFERENCES modules(id),
  imported_id     INTEGER NOT NULL REFERENCES modules(id),
  PRIMARY KEY (importer_id, imported_id)
);

CREATE TABLE IF NOT EXISTS import_details (
  id              INTEGER PRIMARY KEY,
  importer_id     INTEGER NOT NULL REFERENCES modules(id),
  imported_id     INTEGER NOT NULL REFERENCES modules(id),
  line_number     INTEGER NOT NULL,
  line_contents   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_imports_imported ON imports(imported_id);
CREATE INDEX IF NOT EXISTS idx_details_edge ON import_details(importer_id, imported_id);
`

// Save replaces the database contents with the given graph in one
// transaction.
func (s *Store) Save(modules []Module, imports []Import, details []ImportDetail) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"import_details", "imports", "modules"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	ids := make(map[string]int64, len(modules))
	insertModule, err := tx.Prepare("INSERT INTO modules (name, is_squashed) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("prepare modules: %w", err)
	}
	defer insertModule.Close()
	for _, m := range modules {
		res, err := insertModule.Exec(m.Name, m.IsSquashed)
		if err != nil {
			return fmt.Errorf("insert module %s: %w", m.Name, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("module id %s: %w", m.Name, err)
		}
		ids[m.Name] = id
	}

	insertImport, err := tx.Prepare("INSERT INTO imports (importer_id, imported_id) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("prepare imports: %w", err)
	}
	defer insertImport.Close()
	for _, imp := range imports {
		if _, err := insertImport.Exec(ids[imp.Importer], ids[imp.Imported]); err != nil {
			return fmt.Errorf("insert import %s -> %s: %w", imp.Importer, imp.Imported, err)
		}
	}

	insertDetail, err := tx.Prepare(
		"INSERT INTO import_details (importer_id, imported_id, line_number, line_contents) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare details: %w", err)
	}
	defer insertDetail.Close()
	for _, d := range details {
		if _, err := insertDetail.Exec(ids[d.Importer], ids[d.Imported], d.LineNumber, d.LineContents); err != nil {
			return fmt.Errorf("insert detail %s -> %s: %w", d.Importer, d.Imported, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LoadModules returns every module row, ordered by name.
func (s *Store) LoadModules() ([]Module, error) {
	rows, err := s.db.Query("SELECT name, is_squashed FROM modules ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("query modules: %w", err)
	}
	defer rows.Close()

	var modules []Module
	for rows.Next() {
		var m Module
		if err := rows.Scan(&m.Name, &m.IsSquashed); err != nil {
			return nil, fmt.Errorf("scan module: %w", err)
		}
		modules = append(modules, m)
	}
	return modules, rows.Err()
}

// LoadImports returns every edge, ordered by importer then imported
// name.
func (s *Store) LoadImports() ([]Import, error) {
	rows, err := s.db.Query(`
		SELECT a.name, b.name
		FROM imports
		JOIN modules a ON a.id = imports.importer_id
		JOIN modules b ON b.id = imports.imported_id
		ORDER BY a.name, b.name`)
	if err != nil {
		return nil, fmt.Errorf("query imports: %w", err)
	}
	defer rows.Close()

	var imports []Import
	for rows.Next() {
		var imp Import
		if err := rows.Scan(&imp.Importer, &imp.Imported); err != nil {
			return nil, fmt.Errorf("scan import: %w", err)
		}
		imports = append(imports, imp)
	}
	return imports, rows.Err()
}

// LoadDetails returns every import detail row for one edge.
func (s *Store) LoadDetails(importer, imported string) ([]ImportDetail, error) {
	rows, err := s.db.Query(`
		SELECT a.name, b.name, d.line_number, d.line_contents
		FROM import_details d
		JOIN modules a ON a.id = d.importer_id
		JOIN modules b ON b.id = d.imported_id
		WHERE a.name = ? AND b.name = ?
		ORDER BY d.id`, importer, imported)
	if err != nil {
		return nil, fmt.Errorf("query details: %w", err)
	}
	defer rows.Close()

	var details []ImportDetail
	for rows.Next() {
		var d ImportDetail
		if err := rows.Scan(&d.Importer, &d.Imported, &d.LineNumber, &d.LineContents); err != nil {
			return nil, fmt.Errorf("scan detail: %w", err)
		}
		details = append(details, d)
	}
	return details, rows.Err()
}
