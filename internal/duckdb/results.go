package duckdb

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strings"

	goduckdb "github.com/marcboeker/go-duckdb"
	"github.com/samber/lo"

	"github.com/inodb/vibe-csq/internal/annotate"
	"github.com/inodb/vibe-csq/internal/cache"
)

// ResultRow is one stored consequence type of one variant. A variant with
// no consequence types is stored as a single row with empty transcript
// fields.
type ResultRow struct {
	BatchID            string
	Chrom              string
	Start              int64
	End                int64
	Ref                string
	Alt                string
	VariantID          string
	DisplayConsequence string
	TranscriptID       string
	GeneID             string
	GeneName           string
	Biotype            string
	Strand             string
	Consequence        string // comma separated SO terms, most severe first
	Impact             string
	CDNAPosition       int64
	CDSPosition        int64
	Codon              string
	ProteinPosition    int64
	AminoAcidChange    string // "Gly/Cys"
	HGVSp              string
	Canonical          bool
}

// resultKey is the composite key for deduplicating rows before writing.
type resultKey struct {
	chrom, ref, alt, transcriptID, consequence string
	start                                      int64
}

// FlattenAnnotation converts a VariantAnnotation into result rows.
func FlattenAnnotation(batchID string, va *annotate.VariantAnnotation) []ResultRow {
	base := ResultRow{
		BatchID:            batchID,
		Chrom:              va.Chrom,
		Start:              va.Start,
		End:                va.End,
		Ref:                va.Reference,
		Alt:                va.Alternate,
		VariantID:          va.ID,
		DisplayConsequence: va.DisplayConsequenceType,
	}
	if len(va.ConsequenceTypes) == 0 {
		return []ResultRow{base}
	}

	rows := make([]ResultRow, 0, len(va.ConsequenceTypes))
	for _, ct := range va.ConsequenceTypes {
		r := base
		r.TranscriptID = ct.TranscriptID
		r.GeneID = ct.GeneID
		r.GeneName = ct.GeneName
		r.Biotype = ct.Biotype
		r.Strand = ct.Strand
		r.Consequence = strings.Join(ct.TermNames(), ",")
		r.Impact = annotate.GetImpact(r.Consequence)
		r.CDNAPosition = ct.CDNAPosition
		r.CDSPosition = ct.CDSPosition
		r.Codon = ct.Codon
		r.Canonical = lo.Contains(ct.TranscriptFlags, cache.FlagCanonical)
		if p := ct.Protein; p != nil {
			r.ProteinPosition = p.Position
			if p.Reference != "" || p.Alternate != "" {
				r.AminoAcidChange = p.Reference + "/" + p.Alternate
			}
		}
		r.HGVSp = annotate.FormatHGVSp(ct)
		rows = append(rows, r)
	}
	return rows
}

// WriteAnnotations batch-inserts the annotations under batchID using the
// Appender API. Repeated (variant, transcript, consequence) rows are written once.
func (s *Store) WriteAnnotations(ctx context.Context, batchID string, anns []*annotate.VariantAnnotation) error {
	var rows []ResultRow
	seen := make(map[resultKey]bool)
	for _, va := range anns {
		for _, r := range FlattenAnnotation(batchID, va) {
			k := resultKey{r.Chrom, r.Ref, r.Alt, r.TranscriptID, r.Consequence, r.Start}
			if !seen[k] {
				seen[k] = true
				rows = append(rows, r)
			}
		}
	}
	if len(rows) == 0 {
		return nil
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "consequence_results")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for _, r := range rows {
		if err := appender.AppendRow(
			r.BatchID, r.Chrom, r.Start, r.End, r.Ref, r.Alt, r.VariantID,
			r.DisplayConsequence, r.TranscriptID, r.GeneID, r.GeneName, r.Biotype, r.Strand,
			r.Consequence, r.Impact, r.CDNAPosition, r.CDSPosition, r.Codon,
			r.ProteinPosition, r.AminoAcidChange, r.HGVSp, r.Canonical,
		); err != nil {
			return fmt.Errorf("append consequence result: %w", err)
		}
	}

	return appender.Flush()
}

// ClearResults removes all stored results.
func (s *Store) ClearResults() error {
	_, err := s.db.Exec("DELETE FROM consequence_results")
	return err
}

// DeleteBatch removes the results written under batchID.
func (s *Store) DeleteBatch(ctx context.Context, batchID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM consequence_results WHERE batch_id=?", batchID)
	if err != nil {
		return 0, fmt.Errorf("delete batch: %w", err)
	}
	return res.RowsAffected()
}

// BatchIDs lists the stored batches in first-write order.
func (s *Store) BatchIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT batch_id FROM consequence_results
		GROUP BY batch_id ORDER BY min(rowid)`)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LookupVariant returns the stored rows of a specific variant.
func (s *Store) LookupVariant(ctx context.Context, chrom string, start int64, ref, alt string) ([]ResultRow, error) {
	return s.queryResults(ctx, `WHERE chrom=? AND start=? AND ref=? AND alt=?`, chrom, start, ref, alt)
}

// SearchByGene returns all stored rows for a gene symbol.
func (s *Store) SearchByGene(ctx context.Context, geneName string) ([]ResultRow, error) {
	return s.queryResults(ctx, `WHERE gene_name=?`, geneName)
}

// SearchByProteinChange returns stored rows of a gene with the given HGVS
// protein notation (e.g. "p.Gly12Cys").
func (s *Store) SearchByProteinChange(ctx context.Context, geneName, hgvsp string) ([]ResultRow, error) {
	return s.queryResults(ctx, `WHERE gene_name=? AND hgvsp=?`, geneName, hgvsp)
}

func (s *Store) queryResults(ctx context.Context, where string, args ...any) ([]ResultRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+resultColumns+`
		FROM consequence_results `+where+` ORDER BY rowid`, args...)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var results []ResultRow
	for rows.Next() {
		var r ResultRow
		if err := rows.Scan(
			&r.BatchID, &r.Chrom, &r.Start, &r.End, &r.Ref, &r.Alt, &r.VariantID,
			&r.DisplayConsequence, &r.TranscriptID, &r.GeneID, &r.GeneName, &r.Biotype, &r.Strand,
			&r.Consequence, &r.Impact, &r.CDNAPosition, &r.CDSPosition, &r.Codon,
			&r.ProteinPosition, &r.AminoAcidChange, &r.HGVSp, &r.Canonical,
		); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}
