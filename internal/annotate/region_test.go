package annotate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-csq/internal/cache"
	"github.com/inodb/vibe-csq/internal/vcf"
)

func copyNumber(n int) *int { return &n }

func structural(typ vcf.VariantType, start, end int64, sv *vcf.StructuralVariation) *vcf.Variant {
	if sv == nil {
		sv = &vcf.StructuralVariation{CiStartLeft: start, CiStartRight: start, CiEndLeft: end, CiEndRight: end}
	}
	return &vcf.Variant{Chrom: "1", Pos: start, End: end, Ref: "N", Alt: "<" + string(typ) + ">", Type: typ, SV: sv}
}

func TestRegionShapes(t *testing.T) {
	tests := []struct {
		name string
		v    *vcf.Variant
		want []string
	}{
		{"duplication inside CDS", structural(vcf.TypeDuplication, 1016, 1018, nil), []string{CodingSequenceVariant}},
		{"duplication of stop codon", structural(vcf.TypeDuplication, 1079, 1081, nil), []string{TerminatorCodonVariant}},
		{"duplication of transcript", structural(vcf.TypeDuplication, 900, 1200, nil), []string{TranscriptAmplification}},
		{"duplication across UTR", structural(vcf.TypeDuplication, 1005, 1012, nil), []string{FivePrimeUTRVariant, CodingSequenceVariant, InitiatorCodonVariant}},
		{"inversion of transcript", structural(vcf.TypeInversion, 900, 1200, nil), []string{StructuralVariant}},
		{"inversion in intron", structural(vcf.TypeInversion, 1040, 1045, nil), []string{IntronVariant}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct := solveOne(t, tt.v, "ENST0001", plusStrandGene())
			assert.ElementsMatch(t, tt.want, ct.TermNames())
		})
	}
}

func TestCNV_ByCopyNumber(t *testing.T) {
	tests := []struct {
		name string
		cn   *int
		want string
	}{
		{"gain", copyNumber(4), TranscriptAmplification},
		{"loss", copyNumber(1), TranscriptAblation},
		{"deep loss", copyNumber(0), TranscriptAblation},
		{"neutral", copyNumber(2), StructuralVariant},
		{"unknown", nil, StructuralVariant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := structural(vcf.TypeCNV, 900, 1200, nil)
			v.SV.CopyNumber = tt.cn
			ct := solveOne(t, v, "ENST0001", plusStrandGene())
			assert.Equal(t, []string{tt.want}, ct.TermNames())
		})
	}
}

func TestCNV_LossIsDeletion(t *testing.T) {
	v := structural(vcf.TypeCNV, 1016, 1018, nil)
	v.SV.CopyNumber = copyNumber(1)
	ct := solveOne(t, v, "ENST0001", plusStrandGene())
	assert.Equal(t, []string{InframeDeletion}, ct.TermNames())
}

func TestCNV_ImprecisePadding(t *testing.T) {
	sv := &vcf.StructuralVariation{
		CiStartLeft: 1050, CiStartRight: 1150,
		CiEndLeft: 1150, CiEndRight: 1250,
		CopyNumber: copyNumber(1),
	}
	v := structural(vcf.TypeCNV, 1100, 1200, sv)
	genes := []*cache.Gene{plusStrandGene()}

	cts, err := cnvLossConsequences(testEnv(), v, genes)
	require.NoError(t, err)
	require.Len(t, cts, 1)
	assert.Contains(t, cts[0].TermNames(), FeatureTruncation)

	env := testEnv()
	env.opts.CNVExtraPadding = 100
	cts, err = cnvLossConsequences(env, v, genes)
	require.NoError(t, err)
	require.Len(t, cts, 1)
	assert.Equal(t, []string{TranscriptAblation}, cts[0].TermNames())

	// Structural variant padding does not apply to CNVs.
	env = testEnv()
	env.opts.SVExtraPadding = 100
	cts, err = cnvLossConsequences(env, v, genes)
	require.NoError(t, err)
	assert.NotEqual(t, []string{TranscriptAblation}, cts[0].TermNames())
}

func TestPaddedSpan(t *testing.T) {
	precise := structural(vcf.TypeInversion, 100, 200, nil)
	assert.Equal(t, Span{100, 200}, paddedSpan(precise, 50))

	imprecise := structural(vcf.TypeInversion, 100, 200, &vcf.StructuralVariation{
		CiStartLeft: 90, CiStartRight: 110, CiEndLeft: 190, CiEndRight: 210,
	})
	assert.Equal(t, Span{40, 260}, paddedSpan(imprecise, 50))
	assert.Equal(t, Span{90, 210}, paddedSpan(imprecise, 0))

	small := snv("1", 100, "A", "C")
	assert.Equal(t, Span{100, 100}, paddedSpan(small, 50))
}

func breakend(pos int64, mateChrom string, matePos int64) *vcf.Variant {
	return &vcf.Variant{
		Chrom: "1",
		Pos:   pos,
		End:   pos,
		Ref:   "N",
		Alt:   "N[" + mateChrom + ":" + "x[",
		Type:  vcf.TypeBreakend,
		SV: &vcf.StructuralVariation{
			CiStartLeft: pos, CiStartRight: pos, CiEndLeft: pos, CiEndRight: pos,
			Mate: &vcf.Breakend{Chrom: mateChrom, Pos: matePos, CiLeft: matePos, CiRight: matePos},
		},
	}
}

func TestBreakend_BothEnds(t *testing.T) {
	genes := []*cache.Gene{plusStrandGene(), minusStrandGene()}
	cts, err := breakendConsequences(testEnv(), breakend(1013, "2", 2086), genes)
	require.NoError(t, err)
	require.Len(t, cts, 2)

	byTranscript := make(map[string]*ConsequenceType)
	for _, ct := range cts {
		byTranscript[ct.TranscriptID] = ct
	}
	require.Contains(t, byTranscript, "ENST0001")
	require.Contains(t, byTranscript, "ENST0002")
	assert.Equal(t, []string{CodingSequenceVariant}, byTranscript["ENST0001"].TermNames())
	assert.Equal(t, int64(14), byTranscript["ENST0001"].CDNAPosition)
	assert.Equal(t, []string{CodingSequenceVariant}, byTranscript["ENST0002"].TermNames())
	assert.Equal(t, int64(14), byTranscript["ENST0002"].CDNAPosition)
}

func TestBreakend_DuplicatesCollapse(t *testing.T) {
	genes := []*cache.Gene{plusStrandGene()}
	cts, err := breakendConsequences(testEnv(), breakend(1013, "1", 1013), genes)
	require.NoError(t, err)
	require.Len(t, cts, 1)
	assert.Equal(t, "ENST0001", cts[0].TranscriptID)
}

func TestBreakend_MateWithoutGenes(t *testing.T) {
	genes := []*cache.Gene{plusStrandGene()}
	cts, err := breakendConsequences(testEnv(), breakend(1013, "7", 50000), genes)
	require.NoError(t, err)
	require.Len(t, cts, 2)
	assert.Equal(t, "ENST0001", cts[0].TranscriptID)
	assert.Equal(t, []string{IntergenicVariant}, cts[1].TermNames())
}

func TestSelectCalculator_Unsupported(t *testing.T) {
	tests := []*vcf.Variant{
		{Chrom: "1", Pos: 100, End: 102, Ref: "ACG", Alt: "T", Type: vcf.TypeIndel},
		{Chrom: "1", Pos: 100, End: 100, Ref: "A", Alt: "A", Type: vcf.TypeNoVariation},
		{Chrom: "1", Pos: 100, End: 100, Ref: "A", Alt: "CG", Type: vcf.TypeSNV},
		{Chrom: "1", Pos: 100, End: 100, Ref: "A", Alt: "C"},
	}
	for _, v := range tests {
		_, err := selectCalculator(v)
		assert.ErrorIs(t, err, ErrUnsupportedVariant, v.String())
	}
}
