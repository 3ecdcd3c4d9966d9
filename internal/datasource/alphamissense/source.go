package alphamissense

import (
	"context"

	"github.com/inodb/vibe-csq/internal/annotate"
	"github.com/inodb/vibe-csq/internal/vcf"
)

// SourceName labels AlphaMissense scores in annotations.
const SourceName = "alphamissense"

// Source serves AlphaMissense scores as functional scores.
// Only SNVs are looked up; everything else gets no score.
type Source struct {
	store *Store
}

// NewSource creates a functional score lookup backed by the given Store.
func NewSource(store *Store) *Source {
	return &Source{store: store}
}

// Store returns the underlying AlphaMissense store.
func (s *Source) Store() *Store {
	return s.store
}

// LookupFunctionalScores returns the AlphaMissense score of each variant.
func (s *Source) LookupFunctionalScores(ctx context.Context, variants []*vcf.Variant) ([][]annotate.Score, error) {
	keys := make([]Key, 0, len(variants))
	for _, v := range variants {
		if v.Type == vcf.TypeSNV {
			keys = append(keys, variantKey(v))
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	found, err := s.store.BatchLookup(keys)
	if err != nil {
		return nil, err
	}

	scores := make([][]annotate.Score, len(variants))
	for i, v := range variants {
		if v.Type != vcf.TypeSNV {
			continue
		}
		if r, ok := found[variantKey(v)]; ok {
			scores[i] = []annotate.Score{{Source: SourceName, Score: r.Score, Description: r.Class}}
		}
	}
	return scores, nil
}

func variantKey(v *vcf.Variant) Key {
	return Key{Chrom: v.Chrom, Pos: v.Pos, Ref: v.Ref, Alt: v.Alt}
}
