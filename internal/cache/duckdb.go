// Package cache provides gene model loading and lookup for consequence annotation.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/marcboeker/go-duckdb"
)

// DuckDBLoader provides access to gene models stored in a DuckDB database.
// It can serve overlap queries directly or bulk-load everything into a Cache.
type DuckDBLoader struct {
	db   *sql.DB
	path string
}

// NewDuckDBLoader creates a new DuckDB-backed gene loader.
// The path can be a local file path or an S3 URL (s3://bucket/path.duckdb).
func NewDuckDBLoader(path string) (*DuckDBLoader, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	// Enable httpfs extension for S3 support
	if strings.HasPrefix(path, "s3://") {
		if _, err := db.Exec("INSTALL httpfs; LOAD httpfs;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("load httpfs extension: %w", err)
		}
	}

	return &DuckDBLoader{
		db:   db,
		path: path,
	}, nil
}

// Close closes the database connection.
func (l *DuckDBLoader) Close() error {
	return l.db.Close()
}

const geneColumns = `id, name, chrom, start, end_, strand, biotype, source, mirna_accession, mirna_sequence`

// LoadAll loads all genes and regulatory features into the cache.
func (l *DuckDBLoader) LoadAll(ctx context.Context, c *Cache) error {
	genes, err := l.queryGenes(ctx, `SELECT `+geneColumns+` FROM genes ORDER BY chrom, start`)
	if err != nil {
		return err
	}
	for _, g := range genes {
		c.AddGene(g)
	}

	feats, err := l.queryRegulatory(ctx, `SELECT id, chrom, start, end_, feature_type FROM regulatory ORDER BY chrom, start`)
	if err != nil {
		return err
	}
	for _, f := range feats {
		c.AddRegulatoryFeature(f)
	}
	return nil
}

// GenesOverlapping returns all genes overlapping [start, end] on chrom.
func (l *DuckDBLoader) GenesOverlapping(ctx context.Context, chrom string, start, end int64) ([]*Gene, error) {
	return l.queryGenes(ctx, `SELECT `+geneColumns+` FROM genes
		WHERE chrom = ? AND start <= ? AND end_ >= ?
		ORDER BY start`, NormalizeChrom(chrom), end, start)
}

// RegulatoryFeaturesOverlapping returns all regulatory features overlapping [start, end] on chrom.
func (l *DuckDBLoader) RegulatoryFeaturesOverlapping(ctx context.Context, chrom string, start, end int64) ([]*RegulatoryFeature, error) {
	return l.queryRegulatory(ctx, `SELECT id, chrom, start, end_, feature_type FROM regulatory
		WHERE chrom = ? AND start <= ? AND end_ >= ?
		ORDER BY start`, NormalizeChrom(chrom), end, start)
}

func (l *DuckDBLoader) queryGenes(ctx context.Context, query string, args ...any) ([]*Gene, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query genes: %w", err)
	}

	var genes []*Gene
	for rows.Next() {
		g, err := scanGene(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		genes = append(genes, g)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, g := range genes {
		if err := l.loadTranscripts(ctx, g); err != nil {
			return nil, err
		}
		if g.MiRNA != nil {
			if err := l.loadMatures(ctx, g); err != nil {
				return nil, err
			}
		}
	}
	return genes, nil
}

func scanGene(rows *sql.Rows) (*Gene, error) {
	g := &Gene{}
	var source, mirAcc, mirSeq sql.NullString
	if err := rows.Scan(&g.ID, &g.Name, &g.Chrom, &g.Start, &g.End, &g.Strand,
		&g.Biotype, &source, &mirAcc, &mirSeq); err != nil {
		return nil, fmt.Errorf("scan gene: %w", err)
	}
	g.Source = source.String
	if mirSeq.Valid {
		g.MiRNA = &MiRNA{Accession: mirAcc.String, Sequence: mirSeq.String}
	}
	return g, nil
}

// loadTranscripts loads transcripts (and their exons) for a gene.
func (l *DuckDBLoader) loadTranscripts(ctx context.Context, g *Gene) error {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, chrom, start, end_, strand, biotype, protein_id, flags,
		       cds_start, cds_end, cdna_coding_start, cdna_coding_end
		FROM transcripts
		WHERE gene_id = ?
		ORDER BY start, id
	`, g.ID)
	if err != nil {
		return fmt.Errorf("query transcripts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		t := &Transcript{GeneID: g.ID, GeneName: g.Name}
		var proteinID, flags sql.NullString
		var cdsStart, cdsEnd, cdnaStart, cdnaEnd sql.NullInt64
		if err := rows.Scan(&t.ID, &t.Chrom, &t.Start, &t.End, &t.Strand, &t.Biotype,
			&proteinID, &flags, &cdsStart, &cdsEnd, &cdnaStart, &cdnaEnd); err != nil {
			return fmt.Errorf("scan transcript: %w", err)
		}
		t.ProteinID = proteinID.String
		if flags.String != "" {
			t.Flags = strings.Split(flags.String, ",")
		}
		t.CDSStart = cdsStart.Int64
		t.CDSEnd = cdsEnd.Int64
		t.CDNACodingStart = cdnaStart.Int64
		t.CDNACodingEnd = cdnaEnd.Int64
		g.Transcripts = append(g.Transcripts, t)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, t := range g.Transcripts {
		if err := l.loadExons(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// loadExons loads exons for a transcript in transcript order.
func (l *DuckDBLoader) loadExons(ctx context.Context, t *Transcript) error {
	rows, err := l.db.QueryContext(ctx, `
		SELECT exon_number, start, end_, phase, sequence
		FROM exons
		WHERE transcript_id = ?
		ORDER BY exon_number
	`, t.ID)
	if err != nil {
		return fmt.Errorf("query exons: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e Exon
		var phase sql.NullInt64
		var seq sql.NullString
		if err := rows.Scan(&e.Number, &e.Start, &e.End, &phase, &seq); err != nil {
			return fmt.Errorf("scan exon: %w", err)
		}
		e.Phase = -1
		if phase.Valid {
			e.Phase = int(phase.Int64)
		}
		e.Sequence = seq.String
		t.Exons = append(t.Exons, e)
	}
	return rows.Err()
}

func (l *DuckDBLoader) loadMatures(ctx context.Context, g *Gene) error {
	rows, err := l.db.QueryContext(ctx, `
		SELECT accession, sequence, cdna_start, cdna_end
		FROM mirna_matures
		WHERE gene_id = ?
		ORDER BY cdna_start
	`, g.ID)
	if err != nil {
		return fmt.Errorf("query mirna matures: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m MatureMiRNA
		var acc, seq sql.NullString
		if err := rows.Scan(&acc, &seq, &m.CDNAStart, &m.CDNAEnd); err != nil {
			return fmt.Errorf("scan mirna mature: %w", err)
		}
		m.Accession = acc.String
		m.Sequence = seq.String
		g.MiRNA.Matures = append(g.MiRNA.Matures, m)
	}
	return rows.Err()
}

func (l *DuckDBLoader) queryRegulatory(ctx context.Context, query string, args ...any) ([]*RegulatoryFeature, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query regulatory features: %w", err)
	}
	defer rows.Close()

	var feats []*RegulatoryFeature
	for rows.Next() {
		f := &RegulatoryFeature{}
		if err := rows.Scan(&f.ID, &f.Chrom, &f.Start, &f.End, &f.FeatureType); err != nil {
			return nil, fmt.Errorf("scan regulatory feature: %w", err)
		}
		feats = append(feats, f)
	}
	return feats, rows.Err()
}

// CreateSchema creates the database schema for storing gene models.
func (l *DuckDBLoader) CreateSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS genes (
			id VARCHAR PRIMARY KEY,
			name VARCHAR,
			chrom VARCHAR,
			start BIGINT,
			end_ BIGINT,
			strand TINYINT,
			biotype VARCHAR,
			source VARCHAR,
			mirna_accession VARCHAR,
			mirna_sequence VARCHAR
		);

		CREATE TABLE IF NOT EXISTS transcripts (
			id VARCHAR PRIMARY KEY,
			gene_id VARCHAR,
			chrom VARCHAR,
			start BIGINT,
			end_ BIGINT,
			strand TINYINT,
			biotype VARCHAR,
			protein_id VARCHAR,
			flags VARCHAR,
			cds_start BIGINT,
			cds_end BIGINT,
			cdna_coding_start BIGINT,
			cdna_coding_end BIGINT
		);

		CREATE TABLE IF NOT EXISTS exons (
			transcript_id VARCHAR,
			exon_number INTEGER,
			start BIGINT,
			end_ BIGINT,
			phase TINYINT,
			sequence VARCHAR,
			PRIMARY KEY (transcript_id, exon_number)
		);

		CREATE TABLE IF NOT EXISTS mirna_matures (
			gene_id VARCHAR,
			accession VARCHAR,
			sequence VARCHAR,
			cdna_start BIGINT,
			cdna_end BIGINT
		);

		CREATE TABLE IF NOT EXISTS regulatory (
			id VARCHAR,
			chrom VARCHAR,
			start BIGINT,
			end_ BIGINT,
			feature_type VARCHAR
		);

		CREATE INDEX IF NOT EXISTS idx_genes_pos ON genes(chrom, start, end_);
		CREATE INDEX IF NOT EXISTS idx_transcripts_gene ON transcripts(gene_id);
		CREATE INDEX IF NOT EXISTS idx_exons_transcript ON exons(transcript_id);
		CREATE INDEX IF NOT EXISTS idx_regulatory_pos ON regulatory(chrom, start, end_);
	`
	_, err := l.db.Exec(schema)
	return err
}

// InsertGene inserts a gene, its transcripts, exons and miRNA matures.
func (l *DuckDBLoader) InsertGene(g *Gene) error {
	var mirAcc, mirSeq any
	if g.MiRNA != nil {
		mirAcc = nullString(g.MiRNA.Accession)
		mirSeq = g.MiRNA.Sequence
	}
	if _, err := l.db.Exec(`
		INSERT INTO genes (`+geneColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, g.ID, g.Name, NormalizeChrom(g.Chrom), g.Start, g.End, g.Strand, g.Biotype,
		nullString(g.Source), mirAcc, mirSeq); err != nil {
		return fmt.Errorf("insert gene: %w", err)
	}

	for _, t := range g.Transcripts {
		chrom := t.Chrom
		if chrom == "" {
			chrom = g.Chrom
		}
		if _, err := l.db.Exec(`
			INSERT INTO transcripts (id, gene_id, chrom, start, end_, strand, biotype, protein_id,
			                         flags, cds_start, cds_end, cdna_coding_start, cdna_coding_end)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, t.ID, g.ID, NormalizeChrom(chrom), t.Start, t.End, t.Strand, t.Biotype,
			nullString(t.ProteinID), nullString(strings.Join(t.Flags, ",")),
			nullInt64(t.CDSStart), nullInt64(t.CDSEnd),
			nullInt64(t.CDNACodingStart), nullInt64(t.CDNACodingEnd)); err != nil {
			return fmt.Errorf("insert transcript: %w", err)
		}

		for _, e := range t.Exons {
			var phase any
			if e.Phase >= 0 {
				phase = e.Phase
			}
			if _, err := l.db.Exec(`
				INSERT INTO exons (transcript_id, exon_number, start, end_, phase, sequence)
				VALUES (?, ?, ?, ?, ?, ?)
			`, t.ID, e.Number, e.Start, e.End, phase, nullString(e.Sequence)); err != nil {
				return fmt.Errorf("insert exon: %w", err)
			}
		}
	}

	if g.MiRNA != nil {
		for _, m := range g.MiRNA.Matures {
			if _, err := l.db.Exec(`
				INSERT INTO mirna_matures (gene_id, accession, sequence, cdna_start, cdna_end)
				VALUES (?, ?, ?, ?, ?)
			`, g.ID, nullString(m.Accession), nullString(m.Sequence), m.CDNAStart, m.CDNAEnd); err != nil {
				return fmt.Errorf("insert mirna mature: %w", err)
			}
		}
	}
	return nil
}

// InsertRegulatoryFeature inserts a regulatory feature.
func (l *DuckDBLoader) InsertRegulatoryFeature(f *RegulatoryFeature) error {
	if _, err := l.db.Exec(`
		INSERT INTO regulatory (id, chrom, start, end_, feature_type)
		VALUES (?, ?, ?, ?, ?)
	`, f.ID, NormalizeChrom(f.Chrom), f.Start, f.End, f.FeatureType); err != nil {
		return fmt.Errorf("insert regulatory feature: %w", err)
	}
	return nil
}

// GeneCount returns the total number of genes in the database.
func (l *DuckDBLoader) GeneCount() (int, error) {
	var count int
	err := l.db.QueryRow("SELECT COUNT(*) FROM genes").Scan(&count)
	return count, err
}

// Chromosomes returns a sorted list of chromosomes in the database.
func (l *DuckDBLoader) Chromosomes() ([]string, error) {
	rows, err := l.db.Query("SELECT DISTINCT chrom FROM genes ORDER BY chrom")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chroms []string
	for rows.Next() {
		var chrom string
		if err := rows.Scan(&chrom); err != nil {
			return nil, err
		}
		chroms = append(chroms, chrom)
	}
	return chroms, rows.Err()
}

// nullString returns nil if s is empty, otherwise s.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullInt64 returns nil if n is 0, otherwise n.
func nullInt64(n int64) any {
	if n == 0 {
		return nil
	}
	return n
}

// IsDuckDB checks if a path is a DuckDB database file.
func IsDuckDB(path string) bool {
	return strings.HasSuffix(path, ".duckdb") ||
		strings.HasSuffix(path, ".db") ||
		strings.HasPrefix(path, "s3://")
}
