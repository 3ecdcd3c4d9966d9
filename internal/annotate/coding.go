package annotate

import (
	"fmt"
	"strings"

	"github.com/inodb/vibe-csq/internal/cache"
)

// oriented holds variant, CDS and transcript bounds in transcript
// orientation: positions grow 5'->3' on both strands, so "before the CDS"
// is always a smaller value. Minus-strand coordinates are negated.
type oriented struct {
	v5, v3 int64
	c5, c3 int64
	t5, t3 int64
}

func (s *solveContext) orient() oriented {
	span, tr := s.sh.span, s.tr
	if !tr.IsReverseStrand() {
		return oriented{span.Start, span.End, tr.CDSStart, tr.CDSEnd, tr.Start, tr.End}
	}
	return oriented{-span.End, -span.Start, -tr.CDSEnd, -tr.CDSStart, -tr.End, -tr.Start}
}

// mod3 is x mod 3 in [0, 2].
func mod3(x int64) int64 {
	m := x % 3
	if m < 0 {
		m += 3
	}
	return m
}

// phasedCodingStart returns the cDNA coding start, moved back to the first
// full codon of the reading frame when the CDS start is unconfirmed.
func (s *solveContext) phasedCodingStart(w *exonWalk) int64 {
	ccs := w.codingStart
	if s.tr.UnconfirmedStart() && w.firstCdsPhase > 0 {
		ccs -= int64((3 - w.firstCdsPhase) % 3)
	}
	return ccs
}

// setCds records the CDS and protein positions of the variant's 5' end.
func (s *solveContext) setCds(w *exonWalk, ccs int64) {
	if w.cdnaStart == -1 {
		return
	}
	cds := w.cdnaStart - ccs + 1
	if cds < 1 {
		return
	}
	s.ct.CDSPosition = cds
	s.ct.Protein = &ProteinVariantAnnotation{Position: (cds-1)/3 + 1}
}

// splicedSequence returns the transcript's exons joined 5'->3'. Exons the
// gene model holds without sequence are read from the genome at their own
// coordinates, so every cDNA position maps to its own exon base.
func (s *solveContext) splicedSequence(w *exonWalk) (string, error) {
	if w.seqReady {
		return w.seq, nil
	}
	tr := s.tr
	var b strings.Builder
	for i := range tr.Exons {
		e := &tr.Exons[i]
		bases := e.Sequence
		if bases == "" {
			if s.env.genome == nil {
				return "", fmt.Errorf("%w: exon %d of %s has no sequence and no genome is set", ErrNoSequence, e.Number, tr.ID)
			}
			g, err := s.env.genome.Sequence(s.env.ctx, s.seqChrom(), e.Start, e.End)
			if err != nil {
				return "", fmt.Errorf("exon %d of %s: %w", e.Number, tr.ID, err)
			}
			if int64(len(g)) != e.Length() {
				return "", fmt.Errorf("%w: exon %d of %s", cache.ErrRegionNotFound, e.Number, tr.ID)
			}
			bases = strings.ToUpper(g)
		}
		if tr.IsReverseStrand() {
			bases = ReverseComplement(bases)
		}
		b.WriteString(bases)
	}
	w.seq, w.seqReady = b.String(), true
	return w.seq, nil
}

// seqChrom is the chromosome genome lookups use for this transcript.
func (s *solveContext) seqChrom() string {
	if s.tr.Chrom != "" {
		return s.tr.Chrom
	}
	return s.variant.Chrom
}

// walkBases returns cDNA positions [from, to] of the walked transcript.
func (s *solveContext) walkBases(w *exonWalk, from, to int64) (string, error) {
	seq, err := s.splicedSequence(w)
	if err != nil {
		return "", err
	}
	return s.cdnaBases(seq, from, to)
}

// cdnaBases returns cDNA positions [from, to] (1-based, inclusive) of the
// spliced sequence. Positions past its 3' end are read from the genome
// beyond the transcript boundary.
func (s *solveContext) cdnaBases(seq string, from, to int64) (string, error) {
	if from < 1 || to < from {
		return "", fmt.Errorf("cDNA range %d-%d out of bounds", from, to)
	}
	n := int64(len(seq))
	if to <= n {
		return seq[from-1 : to], nil
	}

	var b strings.Builder
	if from <= n {
		b.WriteString(seq[from-1:])
		from = n + 1
	}
	k1, k2 := from-n, to-n
	if s.env.genome == nil {
		return "", fmt.Errorf("%w: no genome to extend %s past its end", cache.ErrRegionNotFound, s.tr.ID)
	}
	chrom := s.seqChrom()
	var ext string
	var err error
	if s.tr.IsReverseStrand() {
		ext, err = s.env.genome.Sequence(s.env.ctx, chrom, s.tr.Start-k2, s.tr.Start-k1)
		ext = ReverseComplement(strings.ToUpper(ext))
	} else {
		ext, err = s.env.genome.Sequence(s.env.ctx, chrom, s.tr.End+k1, s.tr.End+k2)
		ext = strings.ToUpper(ext)
	}
	if err != nil {
		return "", fmt.Errorf("extend %s: %w", s.tr.ID, err)
	}
	if int64(len(ext)) != k2-k1+1 {
		return "", fmt.Errorf("%w: %s beyond %s", cache.ErrRegionNotFound, chrom, s.tr.ID)
	}
	b.WriteString(ext)
	return b.String(), nil
}

// decideStop adds the stop codon term implied by replacing ref with alt.
func (s *solveContext) decideStop(ref, alt string) {
	if IsSynonymousCodon(s.mt, ref, alt) {
		if IsStopCodon(s.mt, ref) {
			s.add(StopRetainedVariant)
		}
		return
	}
	if IsStopCodon(s.mt, ref) {
		s.add(StopLost)
	} else if IsStopCodon(s.mt, alt) {
		s.add(StopGained)
	}
}

// setCodonChange records "refCodon/altCodon" with bases [lo, hi) in upper
// case, and the amino acid change.
func (s *solveContext) setCodonChange(ref, alt string, lo, hi int) {
	s.ct.Codon = formatCodon(ref, lo, hi) + "/" + formatCodon(alt, lo, hi)
	if s.ct.Protein == nil {
		return
	}
	s.ct.Protein.Reference = aminoAcidName(s.mt, ref)
	s.ct.Protein.Alternate = aminoAcidName(s.mt, alt)
}

func formatCodon(codon string, lo, hi int) string {
	hi = min(hi, len(codon))
	lo = min(lo, hi)
	return strings.ToLower(codon[:lo]) + strings.ToUpper(codon[lo:hi]) + strings.ToLower(codon[hi:])
}

// classifyCodonChange adds the term for a substitution that keeps the frame.
func (s *solveContext) classifyCodonChange(ref, alt string) {
	s.add(codonChangeTerm(s.mt, ref, alt))
}

// codonChangeTerm names the effect of replacing codon ref with alt.
func codonChangeTerm(mt bool, ref, alt string) string {
	switch {
	case IsSynonymousCodon(mt, ref, alt):
		if IsStopCodon(mt, ref) {
			return StopRetainedVariant
		}
		return SynonymousVariant
	case !validCodon(mt, ref) || !validCodon(mt, alt):
		return CodingSequenceVariant
	case IsStopCodon(mt, ref):
		return StopLost
	case IsStopCodon(mt, alt):
		return StopGained
	default:
		return MissenseVariant
	}
}

func validCodon(mt bool, codon string) bool {
	_, ok := table(mt)[codon]
	return ok
}

// aminoAcidName returns the three-letter name of codon's amino acid, or ""
// for codons containing anything but ACGT.
func aminoAcidName(mt bool, codon string) string {
	aa, err := AminoAcid(mt, codon)
	if err != nil {
		return ""
	}
	return AminoAcidSingleToThree[aa]
}

// annotateProtein asks the protein annotator about non-synonymous changes.
func (s *solveContext) annotateProtein() error {
	p := s.ct.Protein
	if p == nil || s.env.proteins == nil {
		return nil
	}
	if p.Reference == "" || p.Alternate == "" || p.Reference == p.Alternate {
		return nil
	}
	extra, err := s.env.proteins.ProteinAnnotation(s.env.ctx, s.tr.ID, p.Position, p.Reference, p.Alternate)
	if err != nil {
		return fmt.Errorf("protein annotation %s:%d: %w", s.tr.ID, p.Position, err)
	}
	if extra == nil {
		return nil
	}
	p.UniprotAccession = extra.UniprotAccession
	p.Keywords = extra.Keywords
	p.Features = extra.Features
	p.Substitutions = extra.Substitutions
	return nil
}

// solveSpanExon places a variant with reference width relative to the CDS.
// stopTerm is the term used when the span reaches the stop codon; inner
// resolves spans lying entirely inside the CDS without touching a splice
// site.
func (s *solveContext) solveSpanExon(w *exonWalk, stopTerm string, inner func(w *exonWalk, ccs int64) error) error {
	tr := s.tr
	o := s.orient()
	ccs := s.phasedCodingStart(w)

	switch {
	case o.v5 < o.c5:
		if o.t5 < o.c5 || tr.UnconfirmedStart() {
			s.add(FivePrimeUTRVariant)
		}
		if o.v3 < o.c5 {
			return nil
		}
		s.add(CodingSequenceVariant)
		if w.codingStart > 0 || !tr.UnconfirmedStart() {
			s.add(InitiatorCodonVariant)
		}
		if o.v3 > o.c3-3 {
			s.add(stopTerm)
		}
		if o.v3 > o.c3 {
			// The minus strand checks the end flag here, the plus strand the start flag.
			partial := tr.UnconfirmedStart()
			if tr.IsReverseStrand() {
				partial = tr.UnconfirmedEnd()
			}
			if o.t3 > o.c3 || partial {
				s.add(ThreePrimeUTRVariant)
			}
		}
	case o.v5 <= o.c3:
		s.setCds(w, ccs)
		if o.v3 <= o.c3 {
			return s.solveCodingSpan(w, ccs, stopTerm, inner)
		}
		if o.t3 > o.c3 || tr.UnconfirmedEnd() {
			s.add(ThreePrimeUTRVariant)
		}
		s.add(CodingSequenceVariant, stopTerm)
	default:
		if o.t3 > o.c3 || tr.UnconfirmedEnd() {
			s.add(ThreePrimeUTRVariant)
		}
	}
	return nil
}

// solveCodingSpan handles a span lying within the CDS bounds.
func (s *solveContext) solveCodingSpan(w *exonWalk, ccs int64, stopTerm string, inner func(w *exonWalk, ccs int64) error) error {
	coding := false
	if w.cdnaStart != -1 && w.cdnaStart < ccs+3 && (ccs > 0 || !s.tr.UnconfirmedStart()) {
		s.add(InitiatorCodonVariant)
		coding = true
	}
	if w.cdnaEnd != -1 {
		finalPhase := mod3(w.codingEnd - ccs)
		stopSolved := false
		if !w.splicing && w.cdnaStart != -1 {
			coding = true
			if err := inner(w, ccs); err != nil {
				return err
			}
			stopSolved = true
		}
		if w.cdnaEnd >= w.codingEnd-finalPhase {
			if finalPhase != 2 {
				s.add(IncompleteTerminalCodonVariant)
			} else if !stopSolved {
				s.add(stopTerm)
			}
		}
	}
	if !coding {
		s.add(CodingSequenceVariant)
	}
	return nil
}
