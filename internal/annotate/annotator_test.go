package annotate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-csq/internal/cache"
	"github.com/inodb/vibe-csq/internal/vcf"
)

// sliceParser serves variants from memory.
type sliceParser struct {
	variants []*vcf.Variant
	err      error
	n        int
}

func (p *sliceParser) Next() (*vcf.Variant, error) {
	if p.n >= len(p.variants) {
		return nil, p.err
	}
	v := p.variants[p.n]
	p.n++
	return v, nil
}

func (p *sliceParser) Close() error    { return nil }
func (p *sliceParser) LineNumber() int { return p.n }

type mockWriter struct {
	header  bool
	written []*VariantAnnotation
	flushed bool
	err     error
}

func (w *mockWriter) WriteHeader() error {
	w.header = true
	return nil
}

func (w *mockWriter) Write(va *VariantAnnotation) error {
	if w.err != nil {
		return w.err
	}
	w.written = append(w.written, va)
	return nil
}

func (w *mockWriter) Flush() error {
	w.flushed = true
	return nil
}

type geneNames map[string][]GeneAnnotation

func (g geneNames) LookupGenes(names []string) map[string][]GeneAnnotation {
	out := make(map[string][]GeneAnnotation)
	for _, n := range names {
		if a, ok := g[n]; ok {
			out[n] = a
		}
	}
	return out
}

func TestAnnotateBatch_Intergenic(t *testing.T) {
	a := NewAnnotator(geneCache(plusStrandGene()))

	anns, err := a.AnnotateBatch(context.Background(), []*vcf.Variant{snv("1", 50000, "A", "G")})
	require.NoError(t, err)
	require.Len(t, anns, 1)

	va := anns[0]
	require.Len(t, va.ConsequenceTypes, 1)
	assert.Equal(t, []string{IntergenicVariant}, va.ConsequenceTypes[0].TermNames())
	assert.Empty(t, va.ConsequenceTypes[0].TranscriptID)
	assert.Equal(t, IntergenicVariant, va.DisplayConsequenceType)
	assert.Empty(t, va.ConsequenceError)
}

func TestAnnotateBatch_OrderAndFields(t *testing.T) {
	a := NewAnnotator(geneCache(plusStrandGene(), minusStrandGene()))
	v1 := snv("1", 1013, "G", "T")
	v1.ID = "rs42"
	v2 := snv("2", 2086, "C", "A")
	v3 := snv("1", 1045, "A", "C")
	v3.ID = "."

	anns, err := a.AnnotateBatch(context.Background(), []*vcf.Variant{v1, v2, v3})
	require.NoError(t, err)
	require.Len(t, anns, 3)

	assert.Equal(t, "1", anns[0].Chrom)
	assert.Equal(t, int64(1013), anns[0].Start)
	assert.Equal(t, "G", anns[0].Reference)
	assert.Equal(t, "T", anns[0].Alternate)
	assert.Equal(t, "rs42", anns[0].ID)
	assert.Equal(t, MissenseVariant, anns[0].DisplayConsequenceType)

	assert.Equal(t, "2", anns[1].Chrom)
	assert.Equal(t, MissenseVariant, anns[1].DisplayConsequenceType)

	assert.Empty(t, anns[2].ID)
	assert.Equal(t, IntronVariant, anns[2].DisplayConsequenceType)
}

func TestAnnotateBatch_Empty(t *testing.T) {
	anns, err := NewAnnotator(cache.New()).AnnotateBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, anns)
}

func TestAnnotateBatch_UnsupportedVariantContinues(t *testing.T) {
	a := NewAnnotator(geneCache(plusStrandGene()))
	indel := &vcf.Variant{Chrom: "1", Pos: 1013, End: 1014, Ref: "GG", Alt: "T", Type: vcf.TypeIndel}

	anns, err := a.AnnotateBatch(context.Background(), []*vcf.Variant{indel, snv("1", 1013, "G", "T")})
	require.NoError(t, err)
	require.Len(t, anns, 2)

	assert.Contains(t, anns[0].ConsequenceError, ErrUnsupportedVariant.Error())
	assert.Empty(t, anns[0].ConsequenceTypes)
	assert.Empty(t, anns[0].DisplayConsequenceType)

	assert.Empty(t, anns[1].ConsequenceError)
	assert.Equal(t, MissenseVariant, anns[1].DisplayConsequenceType)
}

type failingGenes struct{ err error }

func (f failingGenes) GenesOverlapping(context.Context, string, int64, int64) ([]*cache.Gene, error) {
	return nil, f.err
}

func TestAnnotateBatch_GeneSourceFailureFailsBatch(t *testing.T) {
	down := errors.New("gene store closed")
	_, err := NewAnnotator(failingGenes{down}).AnnotateBatch(context.Background(), []*vcf.Variant{snv("1", 1013, "G", "T")})
	require.Error(t, err)
	assert.ErrorIs(t, err, down)
	assert.Contains(t, err.Error(), "1:1013:G:T")
}

func TestAnnotateBatch_Regulatory(t *testing.T) {
	c := geneCache(plusStrandGene())
	c.AddRegulatoryFeature(&cache.RegulatoryFeature{ID: "ENSR0001", Chrom: "1", Start: 1040, End: 1050, FeatureType: "enhancer"})
	a := NewAnnotator(c)
	a.SetRegulatorySource(c)

	anns, err := a.AnnotateBatch(context.Background(), []*vcf.Variant{snv("1", 1045, "A", "C")})
	require.NoError(t, err)

	var names []string
	for _, ct := range anns[0].ConsequenceTypes {
		names = append(names, ct.TermNames()...)
	}
	assert.Contains(t, names, RegulatoryRegionVariant)
	assert.Contains(t, names, IntronVariant)
	assert.Equal(t, IntronVariant, anns[0].DisplayConsequenceType)
}

func TestAnnotateBatch_SkipsConsequenceCategory(t *testing.T) {
	a := NewAnnotator(geneCache(plusStrandGene()))
	a.SetCategories(ResolveCategories(nil, []Category{CategoryConsequenceType}))

	anns, err := a.AnnotateBatch(context.Background(), []*vcf.Variant{snv("1", 1013, "G", "T")})
	require.NoError(t, err)
	assert.Empty(t, anns[0].ConsequenceTypes)
	assert.Empty(t, anns[0].DisplayConsequenceType)
}

func TestAnnotateBatch_BreakendMate(t *testing.T) {
	a := NewAnnotator(geneCache(plusStrandGene(), minusStrandGene()))
	v := &vcf.Variant{
		Chrom: "1", Pos: 1016, End: 1016, Ref: "G", Alt: "G]2:2086]", Type: vcf.TypeBreakend,
		SV: &vcf.StructuralVariation{Mate: &vcf.Breakend{Chrom: "2", Pos: 2086, CiLeft: 2086, CiRight: 2086}},
	}

	anns, err := a.AnnotateBatch(context.Background(), []*vcf.Variant{v})
	require.NoError(t, err)

	var ids []string
	for _, ct := range anns[0].ConsequenceTypes {
		ids = append(ids, ct.TranscriptID)
	}
	assert.ElementsMatch(t, []string{"ENST0001", "ENST0002"}, ids)
}

func TestVariantRegions(t *testing.T) {
	a := NewAnnotator(cache.New())

	got := a.variantRegions(snv("chr1", 1000, "A", "C"))
	assert.Equal(t, []region{{"1", 1000 - GenePadding, 1000 + GenePadding}}, got)

	ins := insertion("1", 1000, "A")
	got = a.variantRegions(ins)
	assert.Equal(t, []region{{"1", 999 - GenePadding, 1000 + GenePadding}}, got)

	bnd := &vcf.Variant{
		Chrom: "1", Pos: 100, End: 100, Type: vcf.TypeBreakend,
		SV: &vcf.StructuralVariation{Mate: &vcf.Breakend{Chrom: "chrX", Pos: 500, CiLeft: 490, CiRight: 510}},
	}
	got = a.variantRegions(bnd)
	require.Len(t, got, 2)
	pad := a.opts.SVExtraPadding
	assert.Equal(t, region{"X", 490 - pad - GenePadding, 510 + pad + GenePadding}, got[1])
}

func TestAnnotateGenes(t *testing.T) {
	a := NewAnnotator(geneCache(plusStrandGene()))
	a.SetGeneAnnotationLookup(geneNames{
		"GENE1": {{GeneName: "GENE1", Source: "oncokb", GeneType: "ONCOGENE"}},
	})

	anns, err := a.AnnotateBatch(context.Background(), []*vcf.Variant{
		snv("1", 1013, "G", "T"),
		snv("1", 50000, "A", "G"),
	})
	require.NoError(t, err)

	require.Len(t, anns[0].GeneAnnotations, 1)
	assert.Equal(t, "ONCOGENE", anns[0].GeneAnnotations[0].GeneType)
	assert.Empty(t, anns[1].GeneAnnotations)
}

func TestAnnotateGenes_CategoryOff(t *testing.T) {
	a := NewAnnotator(geneCache(plusStrandGene()))
	a.SetGeneAnnotationLookup(geneNames{"GENE1": {{GeneName: "GENE1", Source: "oncokb"}}})
	a.SetCategories(ResolveCategories([]Category{CategoryConsequenceType}, nil))

	anns, err := a.AnnotateBatch(context.Background(), []*vcf.Variant{snv("1", 1013, "G", "T")})
	require.NoError(t, err)
	assert.Empty(t, anns[0].GeneAnnotations)
}

func TestAnnotateAll(t *testing.T) {
	var variants []*vcf.Variant
	for i := 0; i < 7; i++ {
		variants = append(variants, snv("1", int64(1013+i), "A", "C"))
	}
	w := &mockWriter{}
	a := NewAnnotator(geneCache(plusStrandGene()))

	require.NoError(t, a.AnnotateAll(context.Background(), &sliceParser{variants: variants}, w, 2, 3))

	require.Len(t, w.written, len(variants))
	for i, va := range w.written {
		assert.Equal(t, int64(1013+i), va.Start, "output order")
	}
	assert.True(t, w.flushed)
}

func TestAnnotateAll_NoVariants(t *testing.T) {
	w := &mockWriter{}
	require.NoError(t, NewAnnotator(cache.New()).AnnotateAll(context.Background(), &sliceParser{}, w, 0, 0))
	assert.Empty(t, w.written)
	assert.True(t, w.flushed)
}

func TestAnnotateAll_ParseError(t *testing.T) {
	bad := errors.New("malformed line")
	p := &sliceParser{variants: []*vcf.Variant{snv("1", 1013, "G", "T")}, err: bad}
	w := &mockWriter{}

	err := NewAnnotator(geneCache(plusStrandGene())).AnnotateAll(context.Background(), p, w, 10, 1)
	require.ErrorIs(t, err, bad)
	assert.Len(t, w.written, 1, "variants read before the error are written")
	assert.False(t, w.flushed)
}

func TestAnnotateAll_WriteError(t *testing.T) {
	full := errors.New("disk full")
	p := &sliceParser{variants: []*vcf.Variant{snv("1", 1013, "G", "T"), snv("1", 1018, "A", "G")}}
	w := &mockWriter{err: full}

	err := NewAnnotator(geneCache(plusStrandGene())).AnnotateAll(context.Background(), p, w, 1, 2)
	require.ErrorIs(t, err, full)
}

func TestAnnotateAll_BatchError(t *testing.T) {
	down := errors.New("gene store closed")
	p := &sliceParser{variants: []*vcf.Variant{snv("1", 1013, "G", "T")}}

	err := NewAnnotator(failingGenes{down}).AnnotateAll(context.Background(), p, &mockWriter{}, 1, 1)
	require.ErrorIs(t, err, down)
	assert.Contains(t, err.Error(), "annotate batch 0")
}
