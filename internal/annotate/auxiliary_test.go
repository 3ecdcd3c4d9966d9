package annotate

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-csq/internal/cache"
	"github.com/inodb/vibe-csq/internal/vcf"
)

type fakeVariation struct{}

func (fakeVariation) LookupVariation(_ context.Context, variants []*vcf.Variant) ([]*VariationResult, error) {
	res := make([]*VariationResult, len(variants))
	for i, v := range variants {
		if v.Pos == 1013 {
			res[i] = &VariationResult{
				IDs:                   []string{"rs1"},
				PopulationFrequencies: []PopulationFrequency{{Study: "GNOMAD_GENOMES", Population: "ALL", RefAlleleFreq: 0.9, AltAlleleFreq: 0.1}},
			}
		}
	}
	return res, nil
}

type scoreFunc func(ctx context.Context, variants []*vcf.Variant) ([][]Score, error)

func (f scoreFunc) LookupConservation(ctx context.Context, variants []*vcf.Variant) ([][]Score, error) {
	return f(ctx, variants)
}

func (f scoreFunc) LookupFunctionalScores(ctx context.Context, variants []*vcf.Variant) ([][]Score, error) {
	return f(ctx, variants)
}

func constantScores(source string, score float64) scoreFunc {
	return func(_ context.Context, variants []*vcf.Variant) ([][]Score, error) {
		res := make([][]Score, len(variants))
		for i := range variants {
			res[i] = []Score{{Source: source, Score: score + float64(i)}}
		}
		return res, nil
	}
}

type clinicalFunc func(ctx context.Context, variants []*vcf.Variant) ([][]TraitAssociation, error)

func (f clinicalFunc) LookupClinical(ctx context.Context, variants []*vcf.Variant) ([][]TraitAssociation, error) {
	return f(ctx, variants)
}

func batchVariants() []*vcf.Variant {
	return []*vcf.Variant{
		snv("1", 1013, "G", "T"),
		snv("1", 1018, "A", "G"),
	}
}

func TestAuxiliary_MergedByIndex(t *testing.T) {
	a := NewAnnotator(geneCache(plusStrandGene()))
	a.SetVariationLookup(fakeVariation{})
	a.SetConservationLookup(constantScores("phylop", 1))
	a.SetFunctionalScoreLookup(constantScores("cadd_scaled", 20))
	a.SetClinicalLookup(clinicalFunc(func(_ context.Context, variants []*vcf.Variant) ([][]TraitAssociation, error) {
		return [][]TraitAssociation{nil, {{Source: "clinvar", ID: "RCV1", ClinicalSignificance: "benign"}}}, nil
	}))

	anns, err := a.AnnotateBatch(context.Background(), batchVariants())
	require.NoError(t, err)
	require.Len(t, anns, 2)

	assert.Equal(t, []string{"rs1"}, anns[0].IDs)
	require.Len(t, anns[0].PopulationFrequencies, 1)
	assert.Nil(t, anns[1].IDs)

	assert.Equal(t, []Score{{Source: "phylop", Score: 1}}, anns[0].Conservation)
	assert.Equal(t, []Score{{Source: "phylop", Score: 2}}, anns[1].Conservation)
	assert.Equal(t, []Score{{Source: "cadd_scaled", Score: 21}}, anns[1].FunctionalScores)

	assert.Empty(t, anns[0].TraitAssociations)
	require.Len(t, anns[1].TraitAssociations, 1)
	assert.Equal(t, "RCV1", anns[1].TraitAssociations[0].ID)

	for _, va := range anns {
		assert.Empty(t, va.Degraded)
		assert.NotEmpty(t, va.ConsequenceTypes)
	}
}

func TestAuxiliary_CategoryFlags(t *testing.T) {
	a := NewAnnotator(geneCache(plusStrandGene()))
	a.SetVariationLookup(fakeVariation{})
	a.SetConservationLookup(constantScores("phylop", 1))
	a.SetCategories(ResolveCategories([]Category{CategoryPopulationFrequencies}, nil))

	anns, err := a.AnnotateBatch(context.Background(), batchVariants())
	require.NoError(t, err)
	assert.Nil(t, anns[0].IDs)
	assert.Len(t, anns[0].PopulationFrequencies, 1)
	assert.Nil(t, anns[0].Conservation)
	assert.Nil(t, anns[0].ConsequenceTypes)
	assert.Empty(t, anns[0].DisplayConsequenceType)
}

func TestAuxiliary_FailureMarksDegraded(t *testing.T) {
	var calls atomic.Int32
	down := errors.New("connection refused")

	a := NewAnnotator(geneCache(plusStrandGene()))
	a.SetConservationLookup(constantScores("phylop", 1))
	a.SetClinicalLookup(clinicalFunc(func(context.Context, []*vcf.Variant) ([][]TraitAssociation, error) {
		calls.Add(1)
		return nil, down
	}))

	anns, err := a.AnnotateBatch(context.Background(), batchVariants())
	require.NoError(t, err)
	assert.Equal(t, int32(auxiliaryRetries+1), calls.Load())

	for _, va := range anns {
		assert.True(t, va.IsDegraded(SourceClinical))
		assert.False(t, va.IsDegraded(SourceConservation))
		assert.NotEmpty(t, va.Conservation)
		assert.Empty(t, va.TraitAssociations)

		var srcErr *SourceError
		require.ErrorAs(t, va.Degraded[SourceClinical], &srcErr)
		assert.Equal(t, SourceClinical, srcErr.Source)
		assert.ErrorIs(t, srcErr, down)
		assert.NotErrorIs(t, srcErr, ErrSourceTimeout)
	}
}

func TestAuxiliary_RetriedFailureRecovers(t *testing.T) {
	var calls atomic.Int32
	a := NewAnnotator(geneCache(plusStrandGene()))
	a.SetConservationLookup(scoreFunc(func(ctx context.Context, variants []*vcf.Variant) ([][]Score, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("busy")
		}
		return constantScores("phylop", 1)(ctx, variants)
	}))

	anns, err := a.AnnotateBatch(context.Background(), batchVariants())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.False(t, anns[0].IsDegraded(SourceConservation))
	assert.Equal(t, []Score{{Source: "phylop", Score: 1}}, anns[0].Conservation)
}

func TestAuxiliary_TimeoutMarksDegraded(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	a := NewAnnotator(geneCache(plusStrandGene()))
	opts := DefaultOptions()
	opts.SourceTimeout = 50 * time.Millisecond
	a.SetOptions(opts)
	a.SetFunctionalScoreLookup(scoreFunc(func(context.Context, []*vcf.Variant) ([][]Score, error) {
		<-release
		return nil, nil
	}))
	a.SetConservationLookup(constantScores("phylop", 1))

	start := time.Now()
	anns, err := a.AnnotateBatch(context.Background(), batchVariants())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	for _, va := range anns {
		require.True(t, va.IsDegraded(SourceFunctionalScore))
		assert.ErrorIs(t, va.Degraded[SourceFunctionalScore], ErrSourceTimeout)
		assert.Nil(t, va.FunctionalScores)
		assert.False(t, va.IsDegraded(SourceConservation))
		assert.NotEmpty(t, va.ConsequenceTypes)
	}
}

func TestAuxiliary_NothingKnownIsNotDegraded(t *testing.T) {
	a := NewAnnotator(cache.New())
	a.SetClinicalLookup(clinicalFunc(func(context.Context, []*vcf.Variant) ([][]TraitAssociation, error) {
		return nil, nil
	}))

	anns, err := a.AnnotateBatch(context.Background(), batchVariants())
	require.NoError(t, err)
	for _, va := range anns {
		assert.False(t, va.IsDegraded(SourceClinical))
		assert.Empty(t, va.TraitAssociations)
	}
}

func TestFetchWithRetry_ContextAware(t *testing.T) {
	_, err := fetchWithRetry(context.Background(), 20*time.Millisecond, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	assert.ErrorIs(t, err, ErrSourceTimeout)

	got, err := fetchWithRetry(context.Background(), 0, func(context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}
