package annotate

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/inodb/vibe-csq/internal/cache"
	"github.com/inodb/vibe-csq/internal/vcf"
)

// paddedSpan returns the event span, widened to the confidence interval
// plus pad on each side when the breakpoints are imprecise.
func paddedSpan(v *vcf.Variant, pad int64) Span {
	if v.SV == nil || !v.IsImprecise() {
		return Span{Start: v.Pos, End: v.End}
	}
	return Span{Start: v.SV.CiStartLeft - pad, End: v.SV.CiEndRight + pad}
}

func regionShape(span Span, macro string) shape {
	return shape{
		span:  span,
		macro: macro,
		exonVariant: func(s *solveContext, w *exonWalk) error {
			return s.solveSpanExon(w, TerminatorCodonVariant, s.regionCodons)
		},
	}
}

// amplificationConsequences annotates duplications and copy number gains.
func amplificationConsequences(env *solveEnv, v *vcf.Variant, genes []*cache.Gene) ([]*ConsequenceType, error) {
	pad := env.opts.SVExtraPadding
	if v.Type == vcf.TypeCNV {
		pad = env.opts.CNVExtraPadding
	}
	return runShape(env, v, genes, regionShape(paddedSpan(v, pad), TranscriptAmplification))
}

// structuralConsequences annotates inversions and CNVs of unknown direction.
func structuralConsequences(env *solveEnv, v *vcf.Variant, genes []*cache.Gene) ([]*ConsequenceType, error) {
	pad := env.opts.SVExtraPadding
	if v.Type == vcf.TypeCNV {
		pad = env.opts.CNVExtraPadding
	}
	return runShape(env, v, genes, regionShape(paddedSpan(v, pad), StructuralVariant))
}

// regionCodons reports whether the span hits a stop codon.
func (s *solveContext) regionCodons(w *exonWalk, ccs int64) error {
	codon1 := w.cdnaStart - mod3(w.cdnaStart-ccs)
	codon2 := w.cdnaEnd - mod3(w.cdnaEnd-ccs)
	if codon1 < 1 {
		s.add(CodingSequenceVariant)
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
	if IsStopCodon(s.mt, ref1) || IsStopCodon(s.mt, ref2) {
		s.add(TerminatorCodonVariant)
	} else {
		s.add(CodingSequenceVariant)
	}
	return nil
}

// breakendConsequences evaluates each end of a breakend against the genes
// of its own chromosome and returns the union of both results.
func breakendConsequences(env *solveEnv, v *vcf.Variant, genes []*cache.Gene) ([]*ConsequenceType, error) {
	ends := []struct {
		chrom string
		span  Span
	}{{v.Chrom, breakendSpan(v.Pos, v.SV, false, env.opts.SVExtraPadding)}}
	if v.SV != nil && v.SV.Mate != nil {
		ends = append(ends, struct {
			chrom string
			span  Span
		}{v.SV.Mate.Chrom, breakendSpan(v.SV.Mate.Pos, v.SV, true, env.opts.SVExtraPadding)})
	}

	var all []*ConsequenceType
	for _, end := range ends {
		chrom := cache.NormalizeChrom(end.chrom)
		onChrom := lo.Filter(genes, func(g *cache.Gene, _ int) bool {
			return cache.NormalizeChrom(g.Chrom) == chrom
		})
		endVariant := *v
		endVariant.Chrom = end.chrom
		cts, err := runShape(env, &endVariant, onChrom, regionShape(end.span, StructuralVariant))
		if err != nil {
			return nil, fmt.Errorf("breakend %s:%d: %w", end.chrom, end.span.Start, err)
		}
		all = append(all, cts...)
	}
	return lo.UniqBy(all, consequenceKey), nil
}

// breakendSpan is the confidence interval of one breakend, padded when it
// is imprecise.
func breakendSpan(pos int64, sv *vcf.StructuralVariation, mate bool, pad int64) Span {
	if sv == nil {
		return Span{Start: pos, End: pos}
	}
	left, right := sv.CiStartLeft, sv.CiStartRight
	if mate {
		if sv.Mate == nil {
			return Span{Start: pos, End: pos}
		}
		left, right = sv.Mate.CiLeft, sv.Mate.CiRight
	}
	if left == right {
		return Span{Start: pos, End: pos}
	}
	return Span{Start: left - pad, End: right + pad}
}

// consequenceKey identifies a consequence type by transcript, positions and
// terms, so identical results from the two breakends collapse.
func consequenceKey(ct *ConsequenceType) string {
	names := ct.TermNames()
	sort.Strings(names)
	return strings.Join([]string{
		ct.TranscriptID,
		strconv.FormatInt(ct.CDNAPosition, 10),
		strconv.FormatInt(ct.CDSPosition, 10),
		strings.Join(names, ","),
	}, "|")
}
