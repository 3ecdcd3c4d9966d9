package annotate

import (
	"github.com/inodb/vibe-csq/internal/cache"
	"github.com/inodb/vibe-csq/internal/vcf"
)

// snvConsequences annotates a single-base substitution.
func snvConsequences(env *solveEnv, v *vcf.Variant, genes []*cache.Gene) ([]*ConsequenceType, error) {
	return runShape(env, v, genes, shape{
		span:        Span{Start: v.Pos, End: v.Pos},
		exonVariant: (*solveContext).solveSNVExon,
	})
}

// mnvConsequences annotates a multi-base substitution of equal length.
func mnvConsequences(env *solveEnv, v *vcf.Variant, genes []*cache.Gene) ([]*ConsequenceType, error) {
	return runShape(env, v, genes, shape{
		span: Span{Start: v.Pos, End: v.End},
		exonVariant: func(s *solveContext, w *exonWalk) error {
			return s.solveSpanExon(w, StopLost, s.mnvCodons)
		},
	})
}

func (s *solveContext) solveSNVExon(w *exonWalk) error {
	o := s.orient()
	switch {
	case o.v5 < o.c5:
		s.add(FivePrimeUTRVariant)
		return nil
	case o.v5 > o.c3:
		s.add(ThreePrimeUTRVariant)
		return nil
	case w.cdnaStart == -1:
		s.add(CodingSequenceVariant)
		return nil
	}

	tr := s.tr
	ccs := s.phasedCodingStart(w)
	s.setCds(w, ccs)
	cdna := w.cdnaStart

	if cdna < ccs+3 && !tr.UnconfirmedStart() {
		s.add(InitiatorCodonVariant)
	}
	finalPhase := mod3(w.codingEnd - ccs)
	if cdna >= w.codingEnd-finalPhase && finalPhase != 2 && o.t3 > o.c3 {
		s.add(IncompleteTerminalCodonVariant)
	}

	phase := mod3(cdna - ccs)
	codonStart := cdna - phase
	if codonStart < 1 {
		s.add(CodingSequenceVariant)
		return nil
	}
	ref, err := s.walkBases(w, codonStart, codonStart+2)
	if err != nil {
		return err
	}
	base := s.variant.Alt[0]
	if tr.IsReverseStrand() {
		base = Complement(base)
	}
	alt := MutateCodon(ref, int(phase), base)
	s.setCodonChange(ref, alt, int(phase), int(phase)+1)
	s.classifyCodonChange(ref, alt)
	return nil
}

// mnvCodons classifies every codon touched by the substitution. The codon
// string and amino acid change describe the first one.
func (s *solveContext) mnvCodons(w *exonWalk, ccs int64) error {
	alt := s.variant.Alt
	if s.tr.IsReverseStrand() {
		alt = ReverseComplement(alt)
	}
	first := w.cdnaStart - mod3(w.cdnaStart-ccs)
	last := w.cdnaEnd - mod3(w.cdnaEnd-ccs)
	if first < 1 || int64(len(alt)) != w.cdnaEnd-w.cdnaStart+1 {
		s.add(CodingSequenceVariant)
		return nil
	}

	for start := first; start <= last; start += 3 {
		ref, err := s.walkBases(w, start, start+2)
		if err != nil {
			return err
		}
		mutated := []byte(ref)
		lo, hi := 3, 0
		for i := 0; i < 3; i++ {
			p := start + int64(i)
			if p >= w.cdnaStart && p <= w.cdnaEnd {
				mutated[i] = alt[p-w.cdnaStart]
				lo, hi = min(lo, i), i+1
			}
		}
		if start == first {
			s.setCodonChange(ref, string(mutated), lo, hi)
		}
		s.classifyCodonChange(ref, string(mutated))
	}
	return nil
}
