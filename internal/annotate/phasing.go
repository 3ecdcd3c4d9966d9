package annotate

import (
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/inodb/vibe-csq/internal/vcf"
)

// maxPhasedRun is the longest run of SNVs that can share one codon.
const maxPhasedRun = 3

// codonChangeTerms are replaced when phased SNVs are combined.
var codonChangeTerms = map[string]bool{
	SynonymousVariant:   true,
	MissenseVariant:     true,
	StopGained:          true,
	StopLost:            true,
	StopRetainedVariant: true,
}

// phasable reports whether v can take part in a phased run.
func phasable(v *vcf.Variant) bool {
	return v.Type == vcf.TypeSNV && v.Sample != nil && v.Sample.PhaseSet != ""
}

// inPhase reports whether b extends a run starting at first and ending at last.
func inPhase(first, last, b *vcf.Variant) bool {
	if !phasable(last) || !phasable(b) {
		return false
	}
	if last.NormalizeChrom() != b.NormalizeChrom() {
		return false
	}
	if b.Pos-first.Pos >= maxPhasedRun || b.Pos-last.Pos >= maxPhasedRun || b.Pos <= last.Pos {
		return false
	}
	if last.Sample.PhaseSet != b.Sample.PhaseSet {
		return false
	}
	g1, g2 := last.Sample.Genotype, b.Sample.Genotype
	switch {
	case g1 == "" && g2 == "":
		// Pieces of one decomposed call carry no genotype of their own.
		return last.Sample.Call != "" && last.Sample.Call == b.Sample.Call
	case g1 == "" || g2 == "":
		return false
	}
	return sameHaplotype(g1, g2)
}

// sameHaplotype reports whether two genotype calls put their alternate
// alleles on the same haplotype. Both must be phased and carry an alternate
// allele; a hemizygous call only matches another hemizygous call.
func sameHaplotype(gt1, gt2 string) bool {
	a1, ok1 := phasedAlleles(gt1)
	a2, ok2 := phasedAlleles(gt2)
	if !ok1 || !ok2 {
		return false
	}
	if len(a1) == 1 || len(a2) == 1 {
		return len(a1) == len(a2)
	}
	return slices.Equal(a1, a2)
}

// phasedAlleles splits a "|" separated genotype. Unphased calls and calls
// holding only reference or missing alleles are rejected.
func phasedAlleles(gt string) ([]string, bool) {
	if strings.Contains(gt, "/") {
		return nil, false
	}
	alleles := strings.Split(gt, "|")
	alt := lo.ContainsBy(alleles, func(a string) bool {
		return a != "0" && a != "." && a != ""
	})
	return alleles, alt
}

// correctPhasedSNVs recomputes the codon change of SNVs that sit in the same
// codon on the same haplotype, so each reports the combined effect.
// variants must be in coordinate order.
func correctPhasedSNVs(variants []*vcf.Variant, anns []*VariantAnnotation) {
	var run []int
	flush := func() {
		if len(run) > 1 {
			adjustRun(variants, anns, run)
		}
		run = run[:0]
	}

	for i, v := range variants {
		if !phasable(v) || len(anns[i].ConsequenceTypes) == 0 {
			flush()
			continue
		}
		if len(run) > 0 && !inPhase(variants[run[0]], variants[run[len(run)-1]], v) {
			flush()
		}
		run = append(run, i)
		if len(run) == maxPhasedRun {
			flush()
		}
	}
	flush()
}

// phasedMember is one SNV's consequence on a transcript within a run.
type phasedMember struct {
	ann *VariantAnnotation
	ct  *ConsequenceType
	ref string
	alt string
}

// adjustRun combines the codon changes of the SNVs at run that hit the same
// protein position of the same transcript.
func adjustRun(variants []*vcf.Variant, anns []*VariantAnnotation, run []int) {
	mt := variants[run[0]].IsMitochondrial()

	type groupKey struct {
		transcript string
		position   int64
	}
	groups := make(map[groupKey][]phasedMember)
	var order []groupKey
	for _, i := range run {
		for _, ct := range anns[i].ConsequenceTypes {
			if ct.TranscriptID == "" || ct.Protein == nil || ct.Codon == "" {
				continue
			}
			if lo.Contains(anns[i].PhasedTranscripts, ct.TranscriptID) {
				continue
			}
			ref, alt, ok := strings.Cut(strings.ToUpper(ct.Codon), "/")
			if !ok || len(ref) != 3 || len(alt) != 3 {
				continue
			}
			k := groupKey{ct.TranscriptID, ct.Protein.Position}
			if _, seen := groups[k]; !seen {
				order = append(order, k)
			}
			groups[k] = append(groups[k], phasedMember{ann: anns[i], ct: ct, ref: ref, alt: alt})
		}
	}

	for _, k := range order {
		members := groups[k]
		if len(members) < 2 {
			continue
		}
		ref := members[0].ref
		combined := []byte(ref)
		changed := [3]bool{}
		for _, m := range members {
			for p := 0; p < 3; p++ {
				if m.alt[p] != m.ref[p] {
					combined[p] = m.alt[p]
					changed[p] = true
				}
			}
		}
		alt := string(combined)
		codon := maskCodon(ref, changed) + "/" + maskCodon(alt, changed)
		term := codonChangeTerm(mt, ref, alt)

		for _, m := range members {
			names := make([]string, 0, len(m.ct.Terms))
			for _, t := range m.ct.Terms {
				if !codonChangeTerms[t.Name] {
					names = append(names, t.Name)
				}
			}
			m.ct.Terms = MaterializeTerms(append(names, term))
			m.ct.Codon = codon
			m.ct.Protein.Reference = aminoAcidName(mt, ref)
			m.ct.Protein.Alternate = aminoAcidName(mt, alt)
			m.ann.PhasedTranscripts = append(m.ann.PhasedTranscripts, k.transcript)
		}
	}

	for _, i := range run {
		anns[i].DisplayConsequenceType = MostSevere(anns[i].ConsequenceTypes)
	}
}

func maskCodon(codon string, changed [3]bool) string {
	b := []byte(strings.ToLower(codon))
	for i, c := range changed {
		if c {
			b[i] = codon[i]
		}
	}
	return string(b)
}
