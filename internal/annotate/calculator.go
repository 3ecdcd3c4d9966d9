package annotate

import (
	"errors"
	"fmt"
	"time"

	"github.com/inodb/vibe-csq/internal/cache"
	"github.com/inodb/vibe-csq/internal/vcf"
)

// ErrUnsupportedVariant is returned for variant shapes no calculator handles.
var ErrUnsupportedVariant = errors.New("unsupported variant")

// ErrNoSequence is returned when a codon needs exon bases that the gene
// model does not carry and no genome is configured to supply.
var ErrNoSequence = errors.New("transcript sequence unavailable")

// Options tunes consequence calculation and auxiliary fetching.
type Options struct {
	// SourceTimeout bounds each auxiliary source fetch, retries included.
	SourceTimeout time.Duration
	// SVExtraPadding widens imprecise structural variant breakpoints.
	SVExtraPadding int64
	// CNVExtraPadding widens imprecise copy number breakpoints.
	CNVExtraPadding int64
	// BigDeletionThreshold is the span above which deletions add feature_truncation.
	BigDeletionThreshold int64
	// SpliceSuppressionThreshold is the span above which no splice site terms are reported.
	SpliceSuppressionThreshold int64
}

// DefaultOptions returns the default options.
func DefaultOptions() Options {
	return Options{
		SourceTimeout:              30 * time.Second,
		BigDeletionThreshold:       DefaultBigVariantThreshold,
		SpliceSuppressionThreshold: DefaultBigVariantThreshold,
	}
}

// calculator computes the consequence types of one variant against the
// genes near it.
type calculator func(env *solveEnv, v *vcf.Variant, genes []*cache.Gene) ([]*ConsequenceType, error)

func selectCalculator(v *vcf.Variant) (calculator, error) {
	switch v.Type {
	case vcf.TypeSNV:
		if len(v.Alt) != 1 {
			break
		}
		return snvConsequences, nil
	case vcf.TypeMNV:
		return mnvConsequences, nil
	case vcf.TypeInsertion:
		return insertionConsequences, nil
	case vcf.TypeDeletion:
		return deletionConsequences, nil
	case vcf.TypeDuplication:
		return amplificationConsequences, nil
	case vcf.TypeInversion:
		return structuralConsequences, nil
	case vcf.TypeCNV:
		switch {
		case v.SV == nil || v.SV.CopyNumber == nil || *v.SV.CopyNumber == 2:
			return structuralConsequences, nil
		case *v.SV.CopyNumber < 2:
			return cnvLossConsequences, nil
		default:
			return amplificationConsequences, nil
		}
	case vcf.TypeBreakend:
		return breakendConsequences, nil
	}
	return nil, fmt.Errorf("%w: %s %s", ErrUnsupportedVariant, v.Type, v.String())
}

// consequenceTypes computes the consequence types of v against genes, plus
// the regulatory entries for features.
func consequenceTypes(env *solveEnv, v *vcf.Variant, genes []*cache.Gene, features []*cache.RegulatoryFeature) ([]*ConsequenceType, error) {
	calc, err := selectCalculator(v)
	if err != nil {
		return nil, err
	}
	cts, err := calc(env, v, genes)
	if err != nil {
		return nil, err
	}
	return append(cts, regulatoryConsequences(features)...), nil
}
