package annotate

import (
	"context"

	"github.com/inodb/vibe-csq/internal/cache"
	"github.com/inodb/vibe-csq/internal/vcf"
)

// GeneSource finds genes, with their transcripts and exons, overlapping a region.
type GeneSource interface {
	GenesOverlapping(ctx context.Context, chrom string, start, end int64) ([]*cache.Gene, error)
}

// RegulatorySource finds regulatory features overlapping a region.
type RegulatorySource interface {
	RegulatoryFeaturesOverlapping(ctx context.Context, chrom string, start, end int64) ([]*cache.RegulatoryFeature, error)
}

// GenomeSequence returns forward-strand reference bases of [start, end].
// A missing region fails with an error wrapping cache.ErrRegionNotFound.
type GenomeSequence interface {
	Sequence(ctx context.Context, chrom string, start, end int64) (string, error)
}

// ProteinAnnotator supplies protein-level detail for a changed residue.
// A nil result with a nil error means nothing is known.
type ProteinAnnotator interface {
	ProteinAnnotation(ctx context.Context, transcriptID string, position int64, ref, alt string) (*ProteinVariantAnnotation, error)
}

// Auxiliary lookups answer for a whole batch. Results are aligned by index
// with the input; a nil or empty entry means nothing is known.
type (
	VariationLookup interface {
		LookupVariation(ctx context.Context, variants []*vcf.Variant) ([]*VariationResult, error)
	}
	ConservationLookup interface {
		LookupConservation(ctx context.Context, variants []*vcf.Variant) ([][]Score, error)
	}
	FunctionalScoreLookup interface {
		LookupFunctionalScores(ctx context.Context, variants []*vcf.Variant) ([][]Score, error)
	}
	ClinicalLookup interface {
		LookupClinical(ctx context.Context, variants []*vcf.Variant) ([][]TraitAssociation, error)
	}
)

// GeneAnnotationLookup returns gene-level knowledge keyed by gene name.
type GeneAnnotationLookup interface {
	LookupGenes(names []string) map[string][]GeneAnnotation
}
