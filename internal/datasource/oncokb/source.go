package oncokb

import (
	"github.com/inodb/vibe-csq/internal/annotate"
)

// SourceName labels OncoKB gene annotations.
const SourceName = "oncokb"

// Source serves a CancerGeneList as gene-level knowledge.
type Source struct {
	cgl CancerGeneList
}

// NewSource creates a gene annotation lookup backed by the given CancerGeneList.
func NewSource(cgl CancerGeneList) *Source {
	return &Source{cgl: cgl}
}

// LookupGenes returns the OncoKB classification of each listed cancer gene.
// Genes not in the list are absent from the result.
func (s *Source) LookupGenes(names []string) map[string][]annotate.GeneAnnotation {
	out := make(map[string][]annotate.GeneAnnotation)
	for _, name := range names {
		ga, ok := s.cgl[name]
		if !ok {
			continue
		}
		out[name] = []annotate.GeneAnnotation{{
			GeneName: ga.HugoSymbol,
			Source:   SourceName,
			GeneType: ga.GeneType,
		}}
	}
	return out
}
