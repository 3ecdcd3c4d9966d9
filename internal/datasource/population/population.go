// Package population serves known variant identifiers and population allele
// frequencies from a DuckDB table.
package population

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

// Store looks up variation ids and frequencies by exact allele.
type Store struct {
	db *sqlx.DB
}

// row is one (variant, population) record. Rows with an empty study only
// carry an identifier.
type row struct {
	Chrom      string  `db:"chrom"`
	Pos        int64   `db:"pos"`
	Ref        string  `db:"ref"`
	Alt        string  `db:"alt"`
	ID         string  `db:"id"`
	Study      string  `db:"study"`
	Population string  `db:"population"`
	RefFreq    float64 `db:"ref_freq"`
	AltFreq    float64 `db:"alt_freq"`
}

type alleleKey struct {
	chrom    string
	pos      int64
	ref, alt string
}

// Open opens or creates the population database at path.
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
	s := &Store{db: db}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS population_frequencies (
		chrom VARCHAR,
		pos BIGINT,
		ref VARCHAR,
		alt VARCHAR,
		id VARCHAR,
		study VARCHAR,
		population VARCHAR,
		ref_freq DOUBLE,
		alt_freq DOUBLE
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load appends a tab-separated file with a header row and the columns
//
//	chrom  pos  ref  alt  id  study  population  ref_freq  alt_freq
//
// Chromosomes are stored normalized.
func (s *Store) Load(ctx context.Context, path string) error {
	query := fmt.Sprintf(`INSERT INTO population_frequencies
		SELECT `+normalizedChrom+`, pos, upper(ref), upper(alt),
			coalesce(id, ''), coalesce(study, ''), coalesce(population, ''),
			coalesce(ref_freq, 0), coalesce(alt_freq, 0)
		FROM read_csv('%s', delim='\t', header=true, columns={
			'chrom': 'VARCHAR', 'pos': 'BIGINT', 'ref': 'VARCHAR', 'alt': 'VARCHAR',
			'id': 'VARCHAR', 'study': 'VARCHAR', 'population': 'VARCHAR',
			'ref_freq': 'DOUBLE', 'alt_freq': 'DOUBLE'
		})`, strings.ReplaceAll(path, "'", "''"))
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("load population frequencies: %w", err)
	}
	return nil
}

// normalizedChrom strips the "chr" prefix and maps M to MT.
const normalizedChrom = `CASE WHEN regexp_replace(chrom, '^chr', '') = 'M' THEN 'MT'
	ELSE regexp_replace(chrom, '^chr', '') END`

// Count returns the number of stored rows.
func (s *Store) Count() (int64, error) {
	var n int64
	if err := s.db.Get(&n, `SELECT COUNT(*) FROM population_frequencies`); err != nil {
		return 0, fmt.Errorf("count population rows: %w", err)
	}
	return n, nil
}

// batchChunk bounds the number of positions bound into one query.
const batchChunk = 1000

// LookupVariation returns known ids and population frequencies of each
// variant. Variants without records get a nil entry.
func (s *Store) LookupVariation(ctx context.Context, variants []*vcf.Variant) ([]*annotate.VariationResult, error) {
	keys := make([]alleleKey, len(variants))
	for i, v := range variants {
		keys[i] = alleleKey{cache.NormalizeChrom(v.Chrom), v.Pos, strings.ToUpper(v.Ref), strings.ToUpper(v.Alt)}
	}
	positions := lo.Uniq(lo.Map(keys, func(k alleleKey, _ int) int64 { return k.pos }))

	byKey := make(map[alleleKey]*annotate.VariationResult)
	for i := 0; i < len(positions); i += batchChunk {
		chunk := positions[i:min(i+batchChunk, len(positions))]
		query, args, err := sqlx.In(`SELECT chrom, pos, ref, alt, id, study, population, ref_freq, alt_freq
			FROM population_frequencies WHERE pos IN (?)
			ORDER BY chrom, pos, study, population`, chunk)
		if err != nil {
			return nil, fmt.Errorf("build variation query: %w", err)
		}
		var rows []row
		if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
			return nil, fmt.Errorf("query variation: %w", err)
		}
		for _, r := range rows {
			k := alleleKey{r.Chrom, r.Pos, r.Ref, r.Alt}
			res := byKey[k]
			if res == nil {
				res = &annotate.VariationResult{}
				byKey[k] = res
			}
			if r.ID != "" && r.ID != "." && !lo.Contains(res.IDs, r.ID) {
				res.IDs = append(res.IDs, r.ID)
			}
			if r.Study != "" {
				res.PopulationFrequencies = append(res.PopulationFrequencies, annotate.PopulationFrequency{
					Study:         r.Study,
					Population:    r.Population,
					RefAlleleFreq: r.RefFreq,
					AltAlleleFreq: r.AltFreq,
				})
			}
		}
	}

	out := make([]*annotate.VariationResult, len(variants))
	for i, k := range keys {
		out[i] = byKey[k]
	}
	return out, nil
}
