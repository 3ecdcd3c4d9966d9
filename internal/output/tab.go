// Package output provides annotation output formatters.
package output

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/inodb/vibe-csq/internal/annotate"
	"github.com/inodb/vibe-csq/internal/cache"
)

// tabColumns are the columns of the tab-delimited format, one row per
// consequence type.
var tabColumns = []string{
	"#Uploaded_variation",
	"Location",
	"Allele",
	"Gene",
	"SYMBOL",
	"Feature",
	"Feature_type",
	"Consequence",
	"cDNA_position",
	"CDS_position",
	"Protein_position",
	"Amino_acids",
	"Codons",
	"Existing_variation",
	"IMPACT",
	"STRAND",
	"BIOTYPE",
	"CANONICAL",
	"EXON",
	"HGVSp",
	"FLAGS",
}

// TabWriter writes annotations in tab-delimited format.
type TabWriter struct {
	w *bufio.Writer
}

// NewTabWriter creates a new tab-delimited writer.
func NewTabWriter(w io.Writer) *TabWriter {
	return &TabWriter{w: bufio.NewWriter(w)}
}

// WriteHeader writes the header line.
func (tw *TabWriter) WriteHeader() error {
	_, err := tw.w.WriteString(strings.Join(tabColumns, "\t") + "\n")
	return err
}

// Write writes one row per consequence type of va. A variant without
// consequence types gets a single row.
func (tw *TabWriter) Write(va *annotate.VariantAnnotation) error {
	cts := va.ConsequenceTypes
	if len(cts) == 0 {
		cts = []*annotate.ConsequenceType{{}}
	}
	for _, ct := range cts {
		if _, err := tw.w.WriteString(strings.Join(tabRow(va, ct), "\t") + "\n"); err != nil {
			return err
		}
	}
	return nil
}

func tabRow(va *annotate.VariantAnnotation, ct *annotate.ConsequenceType) []string {
	location := va.Chrom + ":" + strconv.FormatInt(va.Start, 10)
	if va.End > va.Start {
		location += "-" + strconv.FormatInt(va.End, 10)
	}

	featureType := "-"
	if ct.TranscriptID != "" {
		featureType = "Transcript"
	}

	consequence := strings.Join(ct.TermNames(), ",")
	impact := "-"
	if consequence != "" {
		impact = annotate.GetImpact(consequence)
	}

	proteinPos, aminoAcids := "-", "-"
	if p := ct.Protein; p != nil && p.Position > 0 {
		proteinPos = strconv.FormatInt(p.Position, 10)
		if p.Reference != "" || p.Alternate != "" {
			aminoAcids = p.Reference + "/" + p.Alternate
		}
	}

	canonical := "-"
	if lo.Contains(ct.TranscriptFlags, cache.FlagCanonical) {
		canonical = "YES"
	}

	existing := lo.Uniq(lo.Compact(append([]string{va.ID}, va.IDs...)))
	exons := lo.Map(ct.ExonOverlap, func(e annotate.ExonOverlap, _ int) string { return e.Number })

	return []string{
		annotate.FormatVariantID(va.Chrom, va.Start, va.Reference, va.Alternate),
		location,
		orDash(va.Alternate),
		orDash(ct.GeneID),
		orDash(ct.GeneName),
		orDash(ct.TranscriptID),
		featureType,
		orDash(consequence),
		positionOrDash(ct.CDNAPosition),
		positionOrDash(ct.CDSPosition),
		proteinPos,
		aminoAcids,
		orDash(ct.Codon),
		orDash(strings.Join(existing, ",")),
		impact,
		orDash(ct.Strand),
		orDash(ct.Biotype),
		canonical,
		orDash(strings.Join(exons, ",")),
		orDash(annotate.FormatHGVSp(ct)),
		orDash(strings.Join(ct.TranscriptFlags, ",")),
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func positionOrDash(n int64) string {
	if n <= 0 {
		return "-"
	}
	return strconv.FormatInt(n, 10)
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}
