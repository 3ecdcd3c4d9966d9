package annotate

import (
	"strconv"
	"strings"
)

// Impact levels for variant consequences.
const (
	ImpactHigh     = "HIGH"
	ImpactModerate = "MODERATE"
	ImpactLow      = "LOW"
	ImpactModifier = "MODIFIER"
)

// ConsequenceType is the effect of a variant on one transcript, or a
// transcript-free entry (intergenic, regulatory).
type ConsequenceType struct {
	GeneID          string                    `json:"geneId,omitempty"`
	GeneName        string                    `json:"geneName,omitempty"`
	TranscriptID    string                    `json:"transcriptId,omitempty"`
	Strand          string                    `json:"strand,omitempty"`
	Biotype         string                    `json:"biotype,omitempty"`
	TranscriptFlags []string                  `json:"transcriptAnnotationFlags,omitempty"`
	CDNAPosition    int64                     `json:"cdnaPosition,omitempty"`
	CDSPosition     int64                     `json:"cdsPosition,omitempty"`
	Codon           string                    `json:"codon,omitempty"`
	ExonOverlap     []ExonOverlap             `json:"exonOverlap,omitempty"`
	Protein         *ProteinVariantAnnotation `json:"proteinVariantAnnotation,omitempty"`
	Terms           []SOTerm                  `json:"sequenceOntologyTerms"`
}

// ExonOverlap records which exon a variant touched and how much of it.
// Percentage is -1 for insertions, which have no reference width.
type ExonOverlap struct {
	Number     string  `json:"number"` // "3/11"
	Percentage float64 `json:"percentage"`
}

// ProteinVariantAnnotation describes the amino acid change at one position.
type ProteinVariantAnnotation struct {
	UniprotAccession string           `json:"uniprotAccession,omitempty"`
	Position         int64            `json:"position"`
	Reference        string           `json:"reference,omitempty"`
	Alternate        string           `json:"alternate,omitempty"`
	Keywords         []string         `json:"keywords,omitempty"`
	Features         []ProteinFeature `json:"features,omitempty"`
	Substitutions    []Score          `json:"substitutionScores,omitempty"`
}

// ProteinFeature is a protein region overlapping the changed position.
type ProteinFeature struct {
	ID          string `json:"id,omitempty"`
	Type        string `json:"type"`
	Start       int64  `json:"start"`
	End         int64  `json:"end"`
	Description string `json:"description,omitempty"`
}

// Score is a named numeric annotation (conservation, functional score).
type Score struct {
	Source      string  `json:"source"`
	Score       float64 `json:"score"`
	Description string  `json:"description,omitempty"`
}

// PopulationFrequency is an allele frequency in one study population.
type PopulationFrequency struct {
	Study         string  `json:"study"`
	Population    string  `json:"population"`
	RefAlleleFreq float64 `json:"refAlleleFreq"`
	AltAlleleFreq float64 `json:"altAlleleFreq"`
}

// VariationResult holds known identifiers and frequencies of one variant.
type VariationResult struct {
	IDs                   []string
	PopulationFrequencies []PopulationFrequency
}

// TraitAssociation is a clinical assertion about a variant.
type TraitAssociation struct {
	Source               string `json:"source"`
	ID                   string `json:"id"`
	Trait                string `json:"trait,omitempty"`
	ClinicalSignificance string `json:"clinicalSignificance,omitempty"`
	ReviewStatus         string `json:"reviewStatus,omitempty"`
}

// GeneAnnotation is gene-level knowledge attached to genes hit by a variant.
type GeneAnnotation struct {
	GeneName string `json:"geneName"`
	Source   string `json:"source"`
	GeneType string `json:"geneType,omitempty"` // "ONCOGENE", "TSG"
}

// VariantAnnotation is the complete result for one input variant.
type VariantAnnotation struct {
	Chrom                  string                `json:"chromosome"`
	Start                  int64                 `json:"start"`
	End                    int64                 `json:"end"`
	Reference              string                `json:"reference"`
	Alternate              string                `json:"alternate"`
	ID                     string                `json:"id,omitempty"`
	IDs                    []string              `json:"xrefs,omitempty"`
	DisplayConsequenceType string                `json:"displayConsequenceType,omitempty"`
	ConsequenceTypes       []*ConsequenceType    `json:"consequenceTypes,omitempty"`
	PopulationFrequencies  []PopulationFrequency `json:"populationFrequencies,omitempty"`
	Conservation           []Score               `json:"conservation,omitempty"`
	FunctionalScores       []Score               `json:"functionalScore,omitempty"`
	TraitAssociations      []TraitAssociation    `json:"traitAssociation,omitempty"`
	GeneAnnotations        []GeneAnnotation      `json:"geneAnnotation,omitempty"`

	// PhasedTranscripts lists transcripts whose coding terms were
	// recomputed from a phased SNV run.
	PhasedTranscripts []string `json:"phasedTranscripts,omitempty"`

	// Degraded holds, per auxiliary source, the reason its data is missing.
	// A source absent from the map either succeeded or found nothing.
	Degraded map[Source]error `json:"-"`

	// ConsequenceError is set when consequence types could not be computed
	// for this variant alone (e.g. unsupported shape).
	ConsequenceError string `json:"consequenceError,omitempty"`
}

// IsDegraded reports whether fetching source failed for this variant.
func (va *VariantAnnotation) IsDegraded(s Source) bool {
	_, ok := va.Degraded[s]
	return ok
}

func (va *VariantAnnotation) markDegraded(s Source, err error) {
	if va.Degraded == nil {
		va.Degraded = make(map[Source]error)
	}
	va.Degraded[s] = err
}

// GetImpact returns the VEP-style impact of a term name. For a comma
// separated list the most severe impact wins.
func GetImpact(terms string) string {
	best := ImpactModifier
	for rest := terms; rest != ""; {
		term := rest
		if i := strings.IndexByte(rest, ','); i >= 0 {
			term, rest = rest[:i], rest[i+1:]
		} else {
			rest = ""
		}
		var impact string
		switch term {
		case TranscriptAblation, SpliceAcceptorVariant, SpliceDonorVariant,
			StopGained, FrameshiftVariant, StopLost, InitiatorCodonVariant,
			TranscriptAmplification:
			impact = ImpactHigh
		case InframeInsertion, InframeDeletion, MissenseVariant:
			impact = ImpactModerate
		case SpliceRegionVariant, IncompleteTerminalCodonVariant,
			StopRetainedVariant, SynonymousVariant:
			impact = ImpactLow
		default:
			impact = ImpactModifier
		}
		if ImpactRank(impact) > ImpactRank(best) {
			best = impact
		}
	}
	return best
}

// ImpactRank returns numeric rank for impact comparison (higher = more severe).
func ImpactRank(impact string) int {
	switch impact {
	case ImpactHigh:
		return 3
	case ImpactModerate:
		return 2
	case ImpactLow:
		return 1
	default:
		return 0
	}
}

// FormatVariantID creates a variant identifier from components.
func FormatVariantID(chrom string, pos int64, ref, alt string) string {
	if ref == "" {
		ref = "-"
	}
	if alt == "" {
		alt = "-"
	}
	return chrom + "_" + strconv.FormatInt(pos, 10) + "_" + ref + "/" + alt
}

// HasTerm reports whether ct carries the named term.
func (ct *ConsequenceType) HasTerm(name string) bool {
	for _, t := range ct.Terms {
		if t.Name == name {
			return true
		}
	}
	return false
}

// TermNames returns the names of ct's terms in order.
func (ct *ConsequenceType) TermNames() []string {
	names := make([]string, len(ct.Terms))
	for i, t := range ct.Terms {
		names[i] = t.Name
	}
	return names
}
