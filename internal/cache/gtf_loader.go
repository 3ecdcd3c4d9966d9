// Package cache provides gene model loading and lookup for consequence annotation.
package cache

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Transcript flags set from GTF tags.
const (
	FlagBasic     = "basic"
	FlagCanonical = "canonical"
	FlagMANE      = "MANE_Select"
)

// gtfTagFlags maps GTF tag values onto transcript flags.
var gtfTagFlags = map[string]string{
	"basic":             FlagBasic,
	"Ensembl_canonical": FlagCanonical,
	"MANE_Select":       FlagMANE,
	"cds_start_NF":      FlagCDSStartNF,
	"cds_end_NF":        FlagCDSEndNF,
	"mRNA_start_NF":     "mRNA_start_NF",
	"mRNA_end_NF":       "mRNA_end_NF",
}

// GTFLoader loads gene models from GENCODE or Ensembl GTF files. Exon
// sequences are cut from the genome when one is set.
type GTFLoader struct {
	path      string
	genome    *Genome
	overrides CanonicalOverrides
}

// NewGTFLoader creates a new GTF loader.
func NewGTFLoader(path string) *GTFLoader {
	return &GTFLoader{path: path}
}

// SetGenome sets the reference used to fill exon sequences.
func (l *GTFLoader) SetGenome(g *Genome) {
	l.genome = g
}

// SetCanonicalOverrides sets per-gene canonical transcript choices. For a
// gene with an override, only the named transcript keeps the canonical flag.
func (l *GTFLoader) SetCanonicalOverrides(o CanonicalOverrides) {
	l.overrides = o
}

// Load loads all genes from the GTF file into the cache.
func (l *GTFLoader) Load(ctx context.Context, c *Cache) error {
	return l.load(ctx, c, "")
}

// LoadChromosome loads the genes of one chromosome.
func (l *GTFLoader) LoadChromosome(ctx context.Context, c *Cache, chrom string) error {
	return l.load(ctx, c, chrom)
}

func (l *GTFLoader) load(ctx context.Context, c *Cache, filterChrom string) error {
	f, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("open GTF file: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(l.path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("open gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	genes, err := l.parseGTF(reader, filterChrom)
	if err != nil {
		return err
	}
	for _, g := range genes {
		if err := l.fillSequences(ctx, g); err != nil {
			return fmt.Errorf("gene %s: %w", g.ID, err)
		}
		c.AddGene(g)
	}
	return nil
}

// gtfFeature represents a parsed GTF line.
type gtfFeature struct {
	chrom       string
	featureType string
	start       int64
	end         int64
	strand      string
	frame       string
	attributes  map[string]string
	tags        []string
}

// gtfTranscript collects the features of one transcript until assembly.
type gtfTranscript struct {
	t     *Transcript
	exons []Exon
	cds   [][2]int64
	frame int // frame of the 5'-most CDS feature, -1 if unknown
}

// parseGTF parses GTF content and returns genes with assembled transcripts,
// ordered by chromosome and start.
func (l *GTFLoader) parseGTF(reader io.Reader, filterChrom string) ([]*Gene, error) {
	scanner := bufio.NewScanner(reader)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	genes := make(map[string]*Gene)
	transcripts := make(map[string]*gtfTranscript)
	var order []string
	if filterChrom != "" {
		filterChrom = NormalizeChrom(filterChrom)
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") || line == "" {
			continue
		}

		feat, err := parseLine(line)
		if err != nil {
			continue
		}
		if filterChrom != "" && feat.chrom != filterChrom {
			continue
		}

		geneID := stripVersion(feat.attributes["gene_id"])
		if geneID == "" {
			continue
		}
		if feat.featureType == "gene" {
			g := geneFor(genes, geneID, feat)
			g.Start, g.End = feat.start, feat.end
			continue
		}

		transcriptID := stripVersion(feat.attributes["transcript_id"])
		if transcriptID == "" {
			continue
		}
		gt, ok := transcripts[transcriptID]
		if !ok {
			gt = &gtfTranscript{t: &Transcript{ID: transcriptID, GeneID: geneID}, frame: -1}
			transcripts[transcriptID] = gt
			order = append(order, transcriptID)
		}

		switch feat.featureType {
		case "transcript":
			t := gt.t
			t.GeneName = feat.attributes["gene_name"]
			t.Chrom = feat.chrom
			t.Start, t.End = feat.start, feat.end
			t.Strand = parseStrand(feat.strand)
			t.Biotype = firstAttribute(feat.attributes, "transcript_type", "transcript_biotype")
			t.ProteinID = stripVersion(feat.attributes["protein_id"])
			for _, tag := range feat.tags {
				if flag, ok := gtfTagFlags[tag]; ok {
					t.Flags = append(t.Flags, flag)
				}
			}
			geneFor(genes, geneID, feat)

		case "exon":
			n, _ := strconv.Atoi(feat.attributes["exon_number"])
			gt.exons = append(gt.exons, Exon{Number: n, Start: feat.start, End: feat.end, Phase: -1})

		case "CDS", "start_codon", "stop_codon":
			gt.cds = append(gt.cds, [2]int64{feat.start, feat.end})
			if feat.featureType == "CDS" {
				if p := feat.attributes["protein_id"]; p != "" && gt.t.ProteinID == "" {
					gt.t.ProteinID = stripVersion(p)
				}
				if f, err := strconv.Atoi(feat.frame); err == nil && gt.isFivePrimeCDS(feat) {
					gt.frame = f
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan GTF: %w", err)
	}

	for _, id := range order {
		gt := transcripts[id]
		if len(gt.exons) == 0 || gt.t.Chrom == "" {
			continue
		}
		gt.assemble()
		g := genes[gt.t.GeneID]
		if g == nil {
			continue
		}
		g.Transcripts = append(g.Transcripts, gt.t)
		g.Start = minNonZero(g.Start, gt.t.Start)
		g.End = max(g.End, gt.t.End)
	}

	out := make([]*Gene, 0, len(genes))
	for _, g := range genes {
		if len(g.Transcripts) == 0 {
			continue
		}
		l.applyCanonicalOverride(g)
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Chrom != out[j].Chrom {
			return out[i].Chrom < out[j].Chrom
		}
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// isFivePrimeCDS reports whether f is the 5'-most CDS feature seen so far.
func (gt *gtfTranscript) isFivePrimeCDS(f *gtfFeature) bool {
	for _, c := range gt.cds[:len(gt.cds)-1] {
		if f.strand == "-" && c[1] > f.end {
			return false
		}
		if f.strand != "-" && c[0] < f.start {
			return false
		}
	}
	return true
}

func geneFor(genes map[string]*Gene, id string, f *gtfFeature) *Gene {
	g, ok := genes[id]
	if !ok {
		g = &Gene{
			ID:      id,
			Name:    f.attributes["gene_name"],
			Chrom:   f.chrom,
			Strand:  parseStrand(f.strand),
			Biotype: firstAttribute(f.attributes, "gene_type", "gene_biotype"),
			Source:  f.attributes["gene_source"],
		}
		genes[id] = g
	}
	return g
}

// assemble orders exons 5' to 3', derives the genomic and cDNA coding
// bounds and sets exon phases.
func (gt *gtfTranscript) assemble() {
	t := gt.t
	exons := gt.exons
	sort.Slice(exons, func(i, j int) bool { return exons[i].Start < exons[j].Start })
	if t.Strand == -1 {
		for i, j := 0, len(exons)-1; i < j; i, j = i+1, j-1 {
			exons[i], exons[j] = exons[j], exons[i]
		}
	}
	for i := range exons {
		if exons[i].Number == 0 {
			exons[i].Number = i + 1
		}
	}
	t.Exons = exons

	if len(gt.cds) == 0 {
		return
	}
	t.CDSStart, t.CDSEnd = gt.cds[0][0], gt.cds[0][1]
	for _, c := range gt.cds[1:] {
		t.CDSStart = min(t.CDSStart, c[0])
		t.CDSEnd = max(t.CDSEnd, c[1])
	}

	plus := t.Strand != -1
	c5, c3 := t.CDSStart, t.CDSEnd
	if !plus {
		c5, c3 = t.CDSEnd, t.CDSStart
	}

	var cum, coding int64
	for i := range exons {
		e := &exons[i]
		cdna := func(pos int64) int64 {
			if plus {
				return cum + pos - e.Start + 1
			}
			return cum + e.End - pos + 1
		}
		if c5 >= e.Start && c5 <= e.End {
			t.CDNACodingStart = cdna(c5)
		}
		if c3 >= e.Start && c3 <= e.End {
			t.CDNACodingEnd = cdna(c3)
		}

		from, to := max(e.Start, t.CDSStart), min(e.End, t.CDSEnd)
		if from <= to {
			fivePrime := e.Start
			if !plus {
				fivePrime = e.End
			}
			switch {
			case fivePrime != c5 && coding == 0:
				// CDS starts inside the exon
			case coding == 0 && gt.frame > 0:
				e.Phase = (3 - gt.frame) % 3
			default:
				e.Phase = int(coding % 3)
			}
			coding += to - from + 1
		}
		cum += e.Length()
	}
}

// fillSequences cuts each exon's forward-strand bases from the genome.
// Chromosomes absent from the genome are left without sequence.
func (l *GTFLoader) fillSequences(ctx context.Context, g *Gene) error {
	if l.genome == nil || !l.genome.HasChrom(g.Chrom) {
		return nil
	}
	for _, t := range g.Transcripts {
		for i := range t.Exons {
			e := &t.Exons[i]
			seq, err := l.genome.Sequence(ctx, t.Chrom, e.Start, e.End)
			if err != nil {
				return fmt.Errorf("exon %d of %s: %w", e.Number, t.ID, err)
			}
			e.Sequence = seq
		}
	}
	return nil
}

// applyCanonicalOverride moves the canonical flag to the override transcript.
func (l *GTFLoader) applyCanonicalOverride(g *Gene) {
	id, ok := l.overrides[g.Name]
	if !ok {
		return
	}
	found := false
	for _, t := range g.Transcripts {
		if t.ID == id {
			found = true
			break
		}
	}
	if !found {
		return
	}
	for _, t := range g.Transcripts {
		t.Flags = removeFlag(t.Flags, FlagCanonical)
		if t.ID == id {
			t.Flags = append(t.Flags, FlagCanonical)
		}
	}
}

func removeFlag(flags []string, flag string) []string {
	out := flags[:0]
	for _, f := range flags {
		if f != flag {
			out = append(out, f)
		}
	}
	return out
}

// parseLine parses a single GTF line.
func parseLine(line string) (*gtfFeature, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 9 {
		return nil, fmt.Errorf("invalid GTF line: expected 9 fields, got %d", len(fields))
	}

	start, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse start: %w", err)
	}
	end, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse end: %w", err)
	}

	attrs, tags := parseAttributes(fields[8])
	return &gtfFeature{
		chrom:       NormalizeChrom(fields[0]),
		featureType: fields[2],
		start:       start,
		end:         end,
		strand:      fields[6],
		frame:       fields[7],
		attributes:  attrs,
		tags:        tags,
	}, nil
}

// parseAttributes parses the GTF attribute column
// (key "value"; key "value"; ...). Repeated "tag" keys are collected
// separately since a transcript usually carries several.
func parseAttributes(attrStr string) (map[string]string, []string) {
	attrs := make(map[string]string)
	var tags []string

	for _, part := range strings.Split(attrStr, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, " ")
		if !ok {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), "\"")
		if key == "tag" {
			tags = append(tags, value)
			continue
		}
		attrs[key] = value
	}
	return attrs, tags
}

func firstAttribute(attrs map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := attrs[k]; v != "" {
			return v
		}
	}
	return ""
}

// parseStrand converts strand string to int8.
func parseStrand(s string) int8 {
	if s == "-" {
		return -1
	}
	return 1
}

// stripVersion removes the version suffix from an Ensembl ID.
// e.g., "ENST00000456328.2" -> "ENST00000456328"
func stripVersion(id string) string {
	if idx := strings.LastIndex(id, "."); idx != -1 {
		return id[:idx]
	}
	return id
}

func minNonZero(a, b int64) int64 {
	if a == 0 {
		return b
	}
	return min(a, b)
}
