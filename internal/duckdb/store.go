// Package duckdb persists annotation results and caches parsed gene models.
// Results go to a DuckDB table with one row per consequence type; parsed
// gene models are cached as gob files next to their source fingerprints.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store holds consequence results in a DuckDB database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create result store directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("result schema: %w", err)
	}
	return s, nil
}

// Path returns the database file, or "" for an in-memory store.
func (s *Store) Path() string {
	return s.path
}

// Count returns the number of stored result rows.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM consequence_results`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count results: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// resultColumns is the column order of consequence_results, which the
// appender relies on.
const resultColumns = `batch_id, chrom, start, end_, ref, alt, variant_id,
	display_consequence, transcript_id, gene_id, gene_name, biotype, strand,
	consequence, impact, cdna_position, cds_position, codon,
	protein_position, amino_acid_change, hgvsp, canonical`

// resultIndexes back the gene and variant searches.
var resultIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_results_gene ON consequence_results (gene_name)`,
	`CREATE INDEX IF NOT EXISTS idx_results_variant ON consequence_results (chrom, start)`,
}

func (s *Store) ensureSchema() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS consequence_results (
		batch_id VARCHAR NOT NULL,
		chrom VARCHAR NOT NULL,
		start BIGINT NOT NULL,
		end_ BIGINT,
		ref VARCHAR,
		alt VARCHAR,
		variant_id VARCHAR,
		display_consequence VARCHAR,
		transcript_id VARCHAR,
		gene_id VARCHAR,
		gene_name VARCHAR,
		biotype VARCHAR,
		strand VARCHAR,
		consequence VARCHAR,
		impact VARCHAR,
		cdna_position BIGINT,
		cds_position BIGINT,
		codon VARCHAR,
		protein_position BIGINT,
		amino_acid_change VARCHAR,
		hgvsp VARCHAR,
		canonical BOOLEAN
	)`); err != nil {
		return err
	}
	for _, stmt := range resultIndexes {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
