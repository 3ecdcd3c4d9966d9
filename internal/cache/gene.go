// Package cache provides gene model loading and lookup for consequence annotation.
package cache

// Gene represents a genomic region with associated transcripts.
type Gene struct {
	ID          string        `json:"id"`   // Gene identifier (e.g., ENSG00000133703)
	Name        string        `json:"name"` // Gene symbol (e.g., KRAS)
	Chrom       string        `json:"chromosome"`
	Start       int64         `json:"start"`  // Gene start position (1-based)
	End         int64         `json:"end"`    // Gene end position (1-based, inclusive)
	Strand      int8          `json:"strand"` // +1 (forward) or -1 (reverse)
	Biotype     string        `json:"biotype"`
	Source      string        `json:"source,omitempty"`
	Transcripts []*Transcript `json:"transcripts"`
	MiRNA       *MiRNA        `json:"mirna,omitempty"` // Only set for miRNA genes
}

// MiRNA holds the precursor sequence and mature products of a miRNA gene.
type MiRNA struct {
	Accession string        `json:"miRBaseAccession,omitempty"`
	Sequence  string        `json:"sequence"`
	Matures   []MatureMiRNA `json:"matures"`
}

// MatureMiRNA is one mature product, located in cDNA coordinates of the precursor.
type MatureMiRNA struct {
	Accession string `json:"accession,omitempty"`
	Sequence  string `json:"sequence,omitempty"`
	CDNAStart int64  `json:"cdnaStart"`
	CDNAEnd   int64  `json:"cdnaEnd"`
}

// IsForwardStrand returns true if the gene is on the forward strand.
func (g *Gene) IsForwardStrand() bool {
	return g.Strand == 1
}

// IsReverseStrand returns true if the gene is on the reverse strand.
func (g *Gene) IsReverseStrand() bool {
	return g.Strand == -1
}

// Contains returns true if the given position is within the gene boundaries.
func (g *Gene) Contains(pos int64) bool {
	return pos >= g.Start && pos <= g.End
}

// Overlaps returns true if the gene overlaps [start, end].
func (g *Gene) Overlaps(start, end int64) bool {
	return g.Start <= end && g.End >= start
}

// RegulatoryFeature is a regulatory element such as a promoter, enhancer or
// transcription-factor binding site.
type RegulatoryFeature struct {
	ID          string `json:"id"`
	Chrom       string `json:"chromosome"`
	Start       int64  `json:"start"`
	End         int64  `json:"end"`
	FeatureType string `json:"featureType"`
}
