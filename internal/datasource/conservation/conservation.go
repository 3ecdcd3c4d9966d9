// Package conservation serves per-position conservation scores (PhyloP,
// PhastCons, GERP) from a DuckDB table.
package conservation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/samber/lo"

	"github.com/inodb/vibe-csq/internal/annotate"
	"github.com/inodb/vibe-csq/internal/cache"
	"github.com/inodb/vibe-csq/internal/vcf"
)

// Store holds conservation scores keyed by position and source.
type Store struct {
	db *sqlx.DB
}

type scoreRow struct {
	Chrom  string  `db:"chrom"`
	Pos    int64   `db:"pos"`
	Source string  `db:"source"`
	Score  float64 `db:"score"`
}

type posKey struct {
	chrom string
	pos   int64
}

// Open opens or creates the conservation database at path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
	}
	db, err := sqlx.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS conservation (
		chrom VARCHAR,
		pos BIGINT,
		source VARCHAR,
		score DOUBLE
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load appends a tab-separated file with a header row and the columns
// chrom, pos, source, score.
func (s *Store) Load(ctx context.Context, path string) error {
	query := fmt.Sprintf(`INSERT INTO conservation
		SELECT CASE WHEN regexp_replace(chrom, '^chr', '') = 'M' THEN 'MT'
				ELSE regexp_replace(chrom, '^chr', '') END,
			pos, lower(source), score
		FROM read_csv('%s', delim='\t', header=true, columns={
			'chrom': 'VARCHAR', 'pos': 'BIGINT', 'source': 'VARCHAR', 'score': 'DOUBLE'
		})
		WHERE score IS NOT NULL`, strings.ReplaceAll(path, "'", "''"))
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("load conservation scores: %w", err)
	}
	return nil
}

// Insert adds a single score.
func (s *Store) Insert(ctx context.Context, chrom string, pos int64, source string, score float64) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO conservation VALUES (?, ?, ?, ?)`,
		cache.NormalizeChrom(chrom), pos, strings.ToLower(source), score)
	return err
}

// LookupConservation returns the scores at each variant's start position,
// ordered by source. Symbolic variants get no scores.
func (s *Store) LookupConservation(ctx context.Context, variants []*vcf.Variant) ([][]annotate.Score, error) {
	wanted := lo.FilterMap(variants, func(v *vcf.Variant, _ int) (int64, bool) {
		return v.Pos, v.SV == nil
	})
	positions := lo.Uniq(wanted)

	byPos := make(map[posKey][]annotate.Score)
	for _, chunk := range lo.Chunk(positions, 1000) {
		query, args, err := sqlx.In(`SELECT chrom, pos, source, score FROM conservation
			WHERE pos IN (?) ORDER BY chrom, pos, source`, chunk)
		if err != nil {
			return nil, fmt.Errorf("build conservation query: %w", err)
		}
		var rows []scoreRow
		if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
			return nil, fmt.Errorf("query conservation: %w", err)
		}
		for _, r := range rows {
			k := posKey{r.Chrom, r.Pos}
			byPos[k] = append(byPos[k], annotate.Score{Source: r.Source, Score: r.Score})
		}
	}

	out := make([][]annotate.Score, len(variants))
	for i, v := range variants {
		if v.SV != nil {
			continue
		}
		out[i] = byPos[posKey{cache.NormalizeChrom(v.Chrom), v.Pos}]
	}
	return out, nil
}
