package annotate

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
)

// Sequence Ontology term names.
const (
	TranscriptAblation             = "transcript_ablation"
	SpliceAcceptorVariant          = "splice_acceptor_variant"
	SpliceDonorVariant             = "splice_donor_variant"
	StopGained                     = "stop_gained"
	FrameshiftVariant              = "frameshift_variant"
	StopLost                       = "stop_lost"
	InitiatorCodonVariant          = "initiator_codon_variant"
	TranscriptAmplification        = "transcript_amplification"
	StructuralVariant              = "structural_variant"
	InframeInsertion               = "inframe_insertion"
	InframeDeletion                = "inframe_deletion"
	MissenseVariant                = "missense_variant"
	SpliceRegionVariant            = "splice_region_variant"
	IncompleteTerminalCodonVariant = "incomplete_terminal_codon_variant"
	StopRetainedVariant            = "stop_retained_variant"
	TerminatorCodonVariant         = "terminator_codon_variant"
	SynonymousVariant              = "synonymous_variant"
	CodingSequenceVariant          = "coding_sequence_variant"
	MatureMiRNAVariant             = "mature_miRNA_variant"
	FivePrimeUTRVariant            = "5_prime_UTR_variant"
	ThreePrimeUTRVariant           = "3_prime_UTR_variant"
	NonCodingTranscriptExonVariant = "non_coding_transcript_exon_variant"
	IntronVariant                  = "intron_variant"
	NMDTranscriptVariant           = "NMD_transcript_variant"
	NonCodingTranscriptVariant     = "non_coding_transcript_variant"
	Upstream2KBVariant             = "2KB_upstream_variant"
	UpstreamGeneVariant            = "upstream_gene_variant"
	Downstream2KBVariant           = "2KB_downstream_variant"
	DownstreamGeneVariant          = "downstream_gene_variant"
	TFBSAblation                   = "TFBS_ablation"
	TFBSAmplification              = "TFBS_amplification"
	TFBindingSiteVariant           = "TF_binding_site_variant"
	RegulatoryRegionAblation       = "regulatory_region_ablation"
	RegulatoryRegionAmplification  = "regulatory_region_amplification"
	RegulatoryRegionVariant        = "regulatory_region_variant"
	FeatureElongation              = "feature_elongation"
	FeatureTruncation              = "feature_truncation"
	IntergenicVariant              = "intergenic_variant"
)

// SOTerm is a Sequence Ontology term drawn from the closed dictionary below.
type SOTerm struct {
	Name      string `json:"name"`
	Accession string `json:"accession"`
}

type soEntry struct {
	accession string
	severity  int
}

// soDictionary ranks every known term from 36 (most severe) to 1.
// structural_variant and terminator_codon_variant share the rank of
// transcript_amplification and stop_retained_variant respectively.
var soDictionary = map[string]soEntry{
	TranscriptAblation:             {"SO:0001893", 36},
	SpliceAcceptorVariant:          {"SO:0001574", 35},
	SpliceDonorVariant:             {"SO:0001575", 34},
	StopGained:                     {"SO:0001587", 33},
	FrameshiftVariant:              {"SO:0001589", 32},
	StopLost:                       {"SO:0001578", 31},
	InitiatorCodonVariant:          {"SO:0001582", 30},
	TranscriptAmplification:        {"SO:0001889", 29},
	StructuralVariant:              {"SO:0001537", 29},
	InframeInsertion:               {"SO:0001821", 28},
	InframeDeletion:                {"SO:0001822", 27},
	MissenseVariant:                {"SO:0001583", 26},
	SpliceRegionVariant:            {"SO:0001630", 25},
	IncompleteTerminalCodonVariant: {"SO:0001626", 24},
	StopRetainedVariant:            {"SO:0001567", 23},
	TerminatorCodonVariant:         {"SO:0001590", 23},
	SynonymousVariant:              {"SO:0001819", 22},
	CodingSequenceVariant:          {"SO:0001580", 21},
	MatureMiRNAVariant:             {"SO:0001620", 20},
	FivePrimeUTRVariant:            {"SO:0001623", 19},
	ThreePrimeUTRVariant:           {"SO:0001624", 18},
	NonCodingTranscriptExonVariant: {"SO:0001792", 17},
	IntronVariant:                  {"SO:0001627", 16},
	NMDTranscriptVariant:           {"SO:0001621", 15},
	NonCodingTranscriptVariant:     {"SO:0001619", 14},
	Upstream2KBVariant:             {"SO:0001636", 13},
	UpstreamGeneVariant:            {"SO:0001631", 12},
	Downstream2KBVariant:           {"SO:0002083", 11},
	DownstreamGeneVariant:          {"SO:0001632", 10},
	TFBSAblation:                   {"SO:0001895", 9},
	TFBSAmplification:              {"SO:0001892", 8},
	TFBindingSiteVariant:           {"SO:0001782", 7},
	RegulatoryRegionAblation:       {"SO:0001894", 6},
	RegulatoryRegionAmplification:  {"SO:0001891", 5},
	RegulatoryRegionVariant:        {"SO:0001566", 4},
	FeatureElongation:              {"SO:0001907", 3},
	FeatureTruncation:              {"SO:0001906", 2},
	IntergenicVariant:              {"SO:0001628", 1},
}

// legacyNames maps retired or prefixed term names onto their current name.
var legacyNames = map[string]string{
	"2KB_upstream_gene_variant":   Upstream2KBVariant,
	"2KB_downstream_gene_variant": Downstream2KBVariant,
	"5KB_upstream_variant":        UpstreamGeneVariant,
	"5KB_downstream_variant":      DownstreamGeneVariant,
	"nc_transcript_variant":       NonCodingTranscriptVariant,
	"non_coding_exon_variant":     NonCodingTranscriptExonVariant,
	"synonymous_codon":            SynonymousVariant,
	"non_synonymous_codon":        MissenseVariant,
	"initiator_codon_change":      InitiatorCodonVariant,
	"start_lost":                  InitiatorCodonVariant,
	"inframe_codon_gain":          InframeInsertion,
	"inframe_codon_loss":          InframeDeletion,
}

// CodingTerms is the set of terms describing an effect on the coding sequence.
var CodingTerms = map[string]bool{
	SynonymousVariant:              true,
	MissenseVariant:                true,
	StopGained:                     true,
	StopLost:                       true,
	StopRetainedVariant:            true,
	InitiatorCodonVariant:          true,
	IncompleteTerminalCodonVariant: true,
	InframeInsertion:               true,
	InframeDeletion:                true,
	FrameshiftVariant:              true,
	CodingSequenceVariant:          true,
}

// canonicalName resolves legacy aliases. It panics on a name outside the
// dictionary: every emitted name is a compile-time constant, so an unknown
// one is a programming error.
func canonicalName(name string) string {
	if alias, ok := legacyNames[name]; ok {
		name = alias
	}
	if _, ok := soDictionary[name]; !ok {
		panic(fmt.Sprintf("annotate: unknown sequence ontology term %q", name))
	}
	return name
}

// Severity returns the rank of a term name, 0 if unknown.
func Severity(name string) int {
	if alias, ok := legacyNames[name]; ok {
		name = alias
	}
	return soDictionary[name].severity
}

// MaterializeTerms turns term names into SOTerms, most severe first.
func MaterializeTerms(names []string) []SOTerm {
	resolved := lo.Uniq(lo.Map(names, func(n string, _ int) string {
		return canonicalName(n)
	}))
	sort.Slice(resolved, func(i, j int) bool {
		si, sj := soDictionary[resolved[i]].severity, soDictionary[resolved[j]].severity
		if si != sj {
			return si > sj
		}
		return resolved[i] < resolved[j]
	})
	terms := make([]SOTerm, len(resolved))
	for i, n := range resolved {
		terms[i] = SOTerm{Name: n, Accession: soDictionary[n].accession}
	}
	return terms
}

// MostSevere returns the name of the highest-ranked term across all
// consequence types. The first maximum found wins ties.
func MostSevere(cts []*ConsequenceType) string {
	best, bestRank := "", 0
	for _, ct := range cts {
		for _, term := range ct.Terms {
			if r := Severity(term.Name); r > bestRank {
				best, bestRank = term.Name, r
			}
		}
	}
	return best
}
