package annotate

import (
	"strings"

	"github.com/inodb/vibe-csq/internal/cache"
	"github.com/inodb/vibe-csq/internal/vcf"
)

const startCodon = "ATG"

// insertionConsequences annotates an insertion between v.End and v.Pos.
// The span covers the two bases flanking the inserted sequence.
func insertionConsequences(env *solveEnv, v *vcf.Variant, genes []*cache.Gene) ([]*ConsequenceType, error) {
	return runShape(env, v, genes, shape{
		span:        Span{Start: v.Pos - 1, End: v.Pos},
		insertion:   true,
		exonVariant: (*solveContext).solveInsertionExon,
	})
}

func (s *solveContext) solveInsertionExon(w *exonWalk) error {
	tr := s.tr
	o := s.orient()
	ccs := s.phasedCodingStart(w)

	switch {
	case o.v5 < o.c5:
		if o.t5 < o.c5 || tr.UnconfirmedStart() {
			s.add(FivePrimeUTRVariant)
		}
	case o.v5 <= o.c3:
		s.setCds(w, ccs)
		if o.v3 <= o.c3 {
			return s.solveCodingInsertion(w, ccs)
		}
		if o.t3 > o.c3 || tr.UnconfirmedEnd() {
			s.add(ThreePrimeUTRVariant)
		}
	default:
		if o.t3 > o.c3 || tr.UnconfirmedEnd() {
			s.add(ThreePrimeUTRVariant)
		}
	}
	return nil
}

// insertedBases returns the inserted sequence in transcript orientation, or
// "" when it is not spelled out (symbolic alleles).
func (s *solveContext) insertedBases() string {
	alt := s.variant.Alt
	if alt == "" || strings.ContainsAny(alt, "<>") {
		return ""
	}
	if s.tr.IsReverseStrand() {
		return ReverseComplement(alt)
	}
	return alt
}

// solveCodingInsertion handles bases inserted inside the CDS. p is the
// cDNA position of the base 5' of the insertion.
func (s *solveContext) solveCodingInsertion(w *exonWalk, ccs int64) error {
	p := w.cdnaStart
	ins := s.insertedBases()
	if p == -1 || ins == "" {
		s.add(CodingSequenceVariant)
		return nil
	}

	if p < ccs+2 && !s.tr.UnconfirmedStart() && ccs > 0 {
		if err := s.solveStartInsertion(w, ccs, ins); err != nil {
			return err
		}
	}

	finalPhase := mod3(w.codingEnd - ccs)
	if p+1 >= w.codingEnd-finalPhase && finalPhase != 2 {
		s.add(IncompleteTerminalCodonVariant)
	}
	if len(ins)%3 == 0 {
		s.add(InframeInsertion)
	} else {
		s.add(FrameshiftVariant)
	}
	return s.solveInsertionStop(w, ccs, ins)
}

// solveStartInsertion checks whether bases inserted inside the start codon
// change the amino acid it encodes.
func (s *solveContext) solveStartInsertion(w *exonWalk, ccs int64, ins string) error {
	ref, err := s.walkBases(w, ccs, ccs+2)
	if err != nil {
		return err
	}
	if ref != startCodon {
		return nil
	}
	ph := int(w.cdnaStart + 1 - ccs)
	if ph <= 0 || ph > 2 {
		return nil
	}
	fill := ins
	if len(fill) < 3-ph {
		tail, err := s.walkBases(w, w.cdnaStart+1, w.cdnaStart+int64(3-ph-len(fill)))
		if err != nil {
			return err
		}
		fill += tail
	}
	alt := ref[:ph] + fill[:3-ph]
	if !IsSynonymousCodon(s.mt, ref, alt) {
		s.add(InitiatorCodonVariant)
	}
	return nil
}

// solveInsertionStop rebuilds every codon made of inserted bases and checks
// each for a created or destroyed stop codon. The codon string and amino
// acid change describe the first one.
func (s *solveContext) solveInsertionStop(w *exonWalk, ccs int64, ins string) error {
	p := w.cdnaStart
	phase := mod3(p + 1 - ccs)
	codonStart := p + 1 - phase
	if codonStart < 1 {
		return nil
	}
	ref, err := s.walkBases(w, codonStart, codonStart+2)
	if err != nil {
		return err
	}

	// Inserted bases plus enough downstream reference to close the last codon.
	filled := int(phase) + len(ins)
	need := (filled+2)/3*3 - filled
	alt := ref[:phase] + ins
	if need > 0 {
		tail, err := s.walkBases(w, p+1, p+int64(need))
		if err != nil {
			return err
		}
		alt += tail
	}

	for i := 0; i+3 <= len(alt); i += 3 {
		codon := alt[i : i+3]
		if i == 0 {
			s.setCodonChange(ref, codon, int(phase), 3)
		}
		s.decideStop(ref, codon)
	}
	return nil
}
