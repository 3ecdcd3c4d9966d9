package annotate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertion_PlusStrand(t *testing.T) {
	tests := []struct {
		name  string
		pos   int64
		alt   string
		want  []string
		codon string
	}{
		{"inframe", 1016, "TTT", []string{InframeInsertion}, "GCA/TTT"},
		{"inframe stop", 1016, "TAA", []string{InframeInsertion, StopGained}, "GCA/TAA"},
		{"frameshift", 1016, "T", []string{FrameshiftVariant}, "GCA/TGC"},
		{"frameshift stop", 1016, "TA", []string{FrameshiftVariant, StopGained}, "GCA/TAG"},
		{"stop in second codon", 1016, "GCATGA", []string{InframeInsertion, StopGained}, "GCA/GCA"},
		{"inside codon", 1015, "AA", []string{FrameshiftVariant}, "ggT/ggA"},
		{"start codon", 1011, "C", []string{InitiatorCodonVariant, FrameshiftVariant}, "aTG/aCT"},
		{"symbolic", 1016, "<INS>", []string{CodingSequenceVariant}, ""},
		{"5' UTR", 1005, "TTT", []string{FivePrimeUTRVariant}, ""},
		{"3' UTR", 1090, "TTT", []string{ThreePrimeUTRVariant}, ""},
		{"intron", 1045, "TTT", []string{IntronVariant}, ""},
		{"exon end", 1030, "TTT", []string{SpliceRegionVariant, InframeInsertion}, "gaA/gaT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct := solveOne(t, insertion("1", tt.pos, tt.alt), "ENST0001", plusStrandGene())
			assert.ElementsMatch(t, tt.want, ct.TermNames())
			assert.Equal(t, tt.codon, ct.Codon)
		})
	}
}

func TestInsertion_Positions(t *testing.T) {
	ct := solveOne(t, insertion("1", 1016, "TTT"), "ENST0001", plusStrandGene())
	assert.Equal(t, int64(16), ct.CDNAPosition)
	assert.Equal(t, int64(6), ct.CDSPosition)
	require.NotNil(t, ct.Protein)
	assert.Equal(t, int64(2), ct.Protein.Position)
	require.Len(t, ct.ExonOverlap, 1)
	assert.Equal(t, ExonOverlap{Number: "1/2", Percentage: -1}, ct.ExonOverlap[0])
}

func TestInsertion_MinusStrand(t *testing.T) {
	ct := solveOne(t, insertion("2", 2086, "AAA"), "ENST0002", minusStrandGene())
	assert.Equal(t, []string{InframeInsertion}, ct.TermNames())
	assert.Equal(t, int64(14), ct.CDNAPosition)

	ct = solveOne(t, insertion("2", 2086, "A"), "ENST0002", minusStrandGene())
	assert.Equal(t, []string{FrameshiftVariant}, ct.TermNames())
}

func TestInsertion_FrameImpactByLength(t *testing.T) {
	bases := "ACGCACGCA"
	for n := 1; n <= len(bases); n++ {
		ct := solveOne(t, insertion("1", 1016, bases[:n]), "ENST0001", plusStrandGene())
		names := ct.TermNames()
		if n%3 == 0 {
			assert.Contains(t, names, InframeInsertion, "length %d", n)
			assert.NotContains(t, names, FrameshiftVariant, "length %d", n)
		} else {
			assert.Contains(t, names, FrameshiftVariant, "length %d", n)
			assert.NotContains(t, names, InframeInsertion, "length %d", n)
		}
	}
}

func TestInsertion_Flanking(t *testing.T) {
	// Right before the transcript start the insertion does not overlap it.
	ct := solveOne(t, insertion("1", 1000, "TTT"), "ENST0001", plusStrandGene())
	assert.Equal(t, []string{Upstream2KBVariant}, ct.TermNames())
}
