// Package clinvar serves ClinVar clinical assertions from a DuckDB table.
package clinvar

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

// SourceName labels ClinVar trait associations.
const SourceName = "clinvar"

// Store holds ClinVar records keyed by allele.
type Store struct {
	db *sqlx.DB
}

// Record is one ClinVar assertion.
type Record struct {
	Chrom                string `db:"chrom"`
	Pos                  int64  `db:"pos"`
	Ref                  string `db:"ref"`
	Alt                  string `db:"alt"`
	ID                   string `db:"id"`
	Trait                string `db:"trait"`
	ClinicalSignificance string `db:"clinical_significance"`
	ReviewStatus         string `db:"review_status"`
}

type alleleKey struct {
	chrom    string
	pos      int64
	ref, alt string
}

func (r *Record) key() alleleKey {
	return alleleKey{r.Chrom, r.Pos, r.Ref, r.Alt}
}

// Open opens or creates the ClinVar database at path.
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
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS clinvar (
		chrom VARCHAR,
		pos BIGINT,
		ref VARCHAR,
		alt VARCHAR,
		id VARCHAR,
		trait VARCHAR,
		clinical_significance VARCHAR,
		review_status VARCHAR
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
//
//	chrom  pos  ref  alt  id  trait  clinical_significance  review_status
func (s *Store) Load(ctx context.Context, path string) error {
	query := fmt.Sprintf(`INSERT INTO clinvar
		SELECT CASE WHEN regexp_replace(chrom, '^chr', '') = 'M' THEN 'MT'
				ELSE regexp_replace(chrom, '^chr', '') END,
			pos, upper(ref), upper(alt), id,
			coalesce(trait, ''), coalesce(clinical_significance, ''), coalesce(review_status, '')
		FROM read_csv('%s', delim='\t', header=true, columns={
			'chrom': 'VARCHAR', 'pos': 'BIGINT', 'ref': 'VARCHAR', 'alt': 'VARCHAR',
			'id': 'VARCHAR', 'trait': 'VARCHAR',
			'clinical_significance': 'VARCHAR', 'review_status': 'VARCHAR'
		})
		WHERE id IS NOT NULL`, strings.ReplaceAll(path, "'", "''"))
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("load clinvar: %w", err)
	}
	return nil
}

// Insert adds records.
func (s *Store) Insert(ctx context.Context, records ...Record) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, r := range records {
		r.Chrom = cache.NormalizeChrom(r.Chrom)
		r.Ref, r.Alt = strings.ToUpper(r.Ref), strings.ToUpper(r.Alt)
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO clinvar VALUES
			(:chrom, :pos, :ref, :alt, :id, :trait, :clinical_significance, :review_status)`, r); err != nil {
			return fmt.Errorf("insert %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// LookupClinical returns the ClinVar assertions of each variant, matched by
// exact allele.
func (s *Store) LookupClinical(ctx context.Context, variants []*vcf.Variant) ([][]annotate.TraitAssociation, error) {
	keys := lo.Map(variants, func(v *vcf.Variant, _ int) alleleKey {
		return alleleKey{cache.NormalizeChrom(v.Chrom), v.Pos, strings.ToUpper(v.Ref), strings.ToUpper(v.Alt)}
	})
	positions := lo.Uniq(lo.Map(keys, func(k alleleKey, _ int) int64 { return k.pos }))

	byKey := make(map[alleleKey][]annotate.TraitAssociation)
	for _, chunk := range lo.Chunk(positions, 1000) {
		query, args, err := sqlx.In(`SELECT * FROM clinvar WHERE pos IN (?) ORDER BY id, trait`, chunk)
		if err != nil {
			return nil, fmt.Errorf("build clinvar query: %w", err)
		}
		var records []Record
		if err := s.db.SelectContext(ctx, &records, s.db.Rebind(query), args...); err != nil {
			return nil, fmt.Errorf("query clinvar: %w", err)
		}
		for _, r := range records {
			byKey[r.key()] = append(byKey[r.key()], annotate.TraitAssociation{
				Source:               SourceName,
				ID:                   r.ID,
				Trait:                r.Trait,
				ClinicalSignificance: r.ClinicalSignificance,
				ReviewStatus:         r.ReviewStatus,
			})
		}
	}

	out := make([][]annotate.TraitAssociation, len(variants))
	for i, k := range keys {
		out[i] = byKey[k]
	}
	return out, nil
}
