package annotate

import (
	"github.com/inodb/vibe-csq/internal/cache"
	"github.com/inodb/vibe-csq/internal/vcf"
)

// deletionConsequences annotates the removal of [v.Pos, v.End].
func deletionConsequences(env *solveEnv, v *vcf.Variant, genes []*cache.Gene) ([]*ConsequenceType, error) {
	return runShape(env, v, genes, deletionShape(Span{Start: v.Pos, End: v.End}))
}

// cnvLossConsequences annotates a copy number loss as a deletion of the
// padded event span.
func cnvLossConsequences(env *solveEnv, v *vcf.Variant, genes []*cache.Gene) ([]*ConsequenceType, error) {
	return runShape(env, v, genes, deletionShape(paddedSpan(v, env.opts.CNVExtraPadding)))
}

func deletionShape(span Span) shape {
	return shape{
		span:       span,
		macro:      TranscriptAblation,
		truncation: true,
		exonVariant: func(s *solveContext, w *exonWalk) error {
			return s.solveSpanExon(w, StopLost, s.deletionCodons)
		},
	}
}

// deletionCodons adds the frame impact and rebuilds the codon formed across
// the deletion junction.
func (s *solveContext) deletionCodons(w *exonWalk, ccs int64) error {
	span := s.sh.span
	if (span.End-span.Start+1)%3 == 0 {
		s.add(InframeDeletion)
	} else {
		s.add(FrameshiftVariant)
	}

	phase1 := mod3(w.cdnaStart - ccs)
	codon1 := w.cdnaStart - phase1
	codon2 := w.cdnaEnd - mod3(w.cdnaEnd-ccs)
	if codon1 < 1 {
		return nil
	}
	ref1, err := s.walkBases(w, codon1, codon1+2)
	if err != nil {
		return err
	}
	ref2, err := s.walkBases(w, codon2, codon2+2)
	if err != nil {
		return err
	}

	// The bases following the deletion close the first codon.
	tail, err := s.walkBases(w, w.cdnaEnd+1, w.cdnaEnd+3-phase1)
	if err != nil {
		return err
	}
	alt := ref1[:phase1] + tail
	s.setCodonChange(ref1, alt, int(phase1), 3)

	ref := ref1
	if IsStopCodon(s.mt, ref2) {
		ref = ref2
	}
	s.decideStop(ref, alt)
	return nil
}
