// Package cache provides gene model loading and lookup for consequence annotation.
package cache

// Transcript annotation flags that mark a partial coding sequence.
const (
	FlagCDSStartNF = "cds_start_NF"
	FlagCDSEndNF   = "cds_end_NF"
)

// Transcript represents a specific gene isoform.
type Transcript struct {
	ID              string   `json:"id"`                // Transcript ID (e.g., ENST00000311936)
	GeneID          string   `json:"geneId,omitempty"`  // Parent gene ID
	GeneName        string   `json:"geneName,omitempty"` // Parent gene symbol
	Chrom           string   `json:"chromosome"`
	Start           int64    `json:"start"`  // Transcript start (1-based)
	End             int64    `json:"end"`    // Transcript end (1-based, inclusive)
	Strand          int8     `json:"strand"` // +1 or -1
	Biotype         string   `json:"biotype"`
	ProteinID       string   `json:"proteinId,omitempty"`
	Flags           []string `json:"flags,omitempty"` // Annotation flags (basic, canonical, cds_start_NF, ...)
	Exons           []Exon   `json:"exons"`           // Exons in transcript order (5' to 3')
	CDSStart        int64    `json:"genomicCodingStart,omitempty"` // Genomic coding start (1-based), 0 if non-coding
	CDSEnd          int64    `json:"genomicCodingEnd,omitempty"`   // Genomic coding end (1-based), 0 if non-coding
	CDNACodingStart int64    `json:"cdnaCodingStart,omitempty"`    // First coding base in cDNA coordinates
	CDNACodingEnd   int64    `json:"cdnaCodingEnd,omitempty"`      // Last coding base in cDNA coordinates
}

// Exon represents a single exon within a transcript.
type Exon struct {
	Number   int    `json:"exonNumber"`         // Exon number (1-based, transcript order)
	Start    int64  `json:"start"`              // Genomic start (1-based)
	End      int64  `json:"end"`                // Genomic end (1-based, inclusive)
	Phase    int    `json:"phase"`              // CDS phase at the exon start, -1 if non-coding
	Sequence string `json:"sequence,omitempty"` // Exon sequence on the forward genomic strand
}

// IsProteinCoding returns true if the transcript has a coding sequence.
func (t *Transcript) IsProteinCoding() bool {
	return t.CDSStart > 0 && t.CDSEnd > 0
}

// IsForwardStrand returns true if the transcript is on the forward strand.
func (t *Transcript) IsForwardStrand() bool {
	return t.Strand == 1
}

// IsReverseStrand returns true if the transcript is on the reverse strand.
func (t *Transcript) IsReverseStrand() bool {
	return t.Strand == -1
}

// Contains returns true if the given position is within the transcript boundaries.
func (t *Transcript) Contains(pos int64) bool {
	return pos >= t.Start && pos <= t.End
}

// ContainsCDS returns true if the given position is within the CDS boundaries.
func (t *Transcript) ContainsCDS(pos int64) bool {
	if !t.IsProteinCoding() {
		return false
	}
	return pos >= t.CDSStart && pos <= t.CDSEnd
}

// HasFlag reports whether the transcript carries the given annotation flag.
func (t *Transcript) HasFlag(flag string) bool {
	for _, f := range t.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// UnconfirmedStart reports whether the CDS start could not be confirmed.
func (t *Transcript) UnconfirmedStart() bool {
	return t.HasFlag(FlagCDSStartNF)
}

// UnconfirmedEnd reports whether the CDS end could not be confirmed.
func (t *Transcript) UnconfirmedEnd() bool {
	return t.HasFlag(FlagCDSEndNF)
}

// StrandSymbol returns "+" or "-".
func (t *Transcript) StrandSymbol() string {
	if t.Strand == -1 {
		return "-"
	}
	return "+"
}

// FindExon returns the exon containing the given genomic position, or nil if not in an exon.
// Uses binary search. Handles both forward-strand (ascending Start) and
// reverse-strand (descending Start) exon ordering.
func (t *Transcript) FindExon(pos int64) *Exon {
	n := len(t.Exons)
	if n == 0 {
		return nil
	}
	ascending := n < 2 || t.Exons[0].Start <= t.Exons[n-1].Start
	lo, hi := 0, n-1
	for lo <= hi {
		mid := lo + (hi-lo)/2
		e := &t.Exons[mid]
		if pos >= e.Start && pos <= e.End {
			return e
		}
		if ascending {
			if pos < e.Start {
				hi = mid - 1
			} else {
				lo = mid + 1
			}
		} else {
			if pos > e.End {
				hi = mid - 1
			} else {
				lo = mid + 1
			}
		}
	}
	return nil
}

// Length returns the exon length in bases.
func (e *Exon) Length() int64 {
	return e.End - e.Start + 1
}

// IsCoding returns true if the exon carries a reading frame.
func (e *Exon) IsCoding() bool {
	return e.Phase >= 0
}
