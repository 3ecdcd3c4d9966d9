package annotate

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/inodb/vibe-csq/internal/cache"
	"github.com/inodb/vibe-csq/internal/vcf"
)

// Flanking windows around a transcript.
const (
	flankingWindow      = 5000
	flankingInnerWindow = 2000
	innerFlankingPrefix = "2KB_"
)

// solveEnv is the read-only environment shared by every evaluation of one
// variant.
type solveEnv struct {
	ctx      context.Context
	opts     *Options
	genome   GenomeSequence
	proteins ProteinAnnotator
}

// shape holds the coordinate conventions and exon handler of one variant
// shape.
type shape struct {
	span      Span
	insertion bool
	// macro is emitted alone when the span covers the whole transcript.
	// Empty for shapes with no reference width.
	macro string
	// truncation adds feature_truncation to big variants overlapping a transcript.
	truncation  bool
	exonVariant func(s *solveContext, w *exonWalk) error
}

// solveContext is the state of one variant × transcript evaluation. A new
// one is built for every transcript and dropped afterwards.
type solveContext struct {
	env     *solveEnv
	variant *vcf.Variant
	gene    *cache.Gene
	tr      *cache.Transcript
	sh      *shape
	mt      bool
	terms   []string
	ct      *ConsequenceType
}

// exonWalk is what the exon traversal learned about the variant.
type exonWalk struct {
	cdnaStart     int64 // cDNA position of the variant's 5' end, -1 if not exonic
	cdnaEnd       int64 // cDNA position of the variant's 3' end, -1 if not exonic
	firstCdsPhase int
	codingStart   int64 // cDNA position of the first coding base, 0 if unknown
	codingEnd     int64 // cDNA position of the last coding base, 0 if unknown
	splicing      bool
	intronic      bool
	seq           string // spliced transcript sequence, 5'->3', once seqReady
	seqReady      bool
}

// runShape evaluates sh against every transcript of genes.
func runShape(env *solveEnv, v *vcf.Variant, genes []*cache.Gene, sh shape) ([]*ConsequenceType, error) {
	var cts []*ConsequenceType
	intergenic := true
	for _, g := range genes {
		for _, tr := range g.Transcripts {
			intergenic = intergenic && (sh.span.End < tr.Start || sh.span.Start > tr.End)

			s := &solveContext{
				env:     env,
				variant: v,
				gene:    g,
				tr:      tr,
				sh:      &sh,
				mt:      v.IsMitochondrial(),
			}
			ct, err := s.solve()
			if err != nil {
				return nil, fmt.Errorf("transcript %s: %w", tr.ID, err)
			}
			if ct != nil {
				cts = append(cts, ct)
			}
		}
	}
	if len(cts) == 0 && intergenic {
		cts = append(cts, &ConsequenceType{Terms: MaterializeTerms([]string{IntergenicVariant})})
	}
	return cts, nil
}

func (s *solveContext) add(names ...string) {
	s.terms = append(s.terms, names...)
}

func (s *solveContext) has(name string) bool {
	for _, t := range s.terms {
		if t == name {
			return true
		}
	}
	return false
}

// solve returns the consequence type for one transcript, or nil when the
// variant is too far away to be reported.
func (s *solveContext) solve() (*ConsequenceType, error) {
	tr := s.tr
	span := s.sh.span
	s.ct = &ConsequenceType{
		GeneID:       s.gene.ID,
		GeneName:     s.gene.Name,
		TranscriptID: tr.ID,
		Strand:       tr.StrandSymbol(),
		Biotype:      tr.Biotype,
	}
	if len(tr.Flags) > 0 {
		s.ct.TranscriptFlags = append([]string(nil), tr.Flags...)
	}

	switch {
	case s.sh.macro != "" && span.Start <= tr.Start && span.End >= tr.End:
		s.add(s.sh.macro)
	case s.overlapsTranscript():
		if s.sh.truncation && span.End-span.Start > s.env.opts.BigDeletionThreshold {
			s.add(FeatureTruncation)
		}
		if err := s.solveOverlap(); err != nil {
			return nil, err
		}
	default:
		s.solveFlanking()
		if len(s.terms) == 0 {
			return nil, nil
		}
	}

	s.ct.Terms = MaterializeTerms(s.terms)
	if err := s.annotateProtein(); err != nil {
		return nil, err
	}
	return s.ct, nil
}

func (s *solveContext) overlapsTranscript() bool {
	span := s.sh.span
	if s.sh.insertion {
		return span.End > s.tr.Start && span.Start < s.tr.End
	}
	return overlaps(s.tr.Start, s.tr.End, span.Start, span.End)
}

// solveFlanking adds upstream/downstream terms for a variant outside the
// transcript bounds.
func (s *solveContext) solveFlanking() {
	left, right := UpstreamGeneVariant, DownstreamGeneVariant
	if s.tr.IsReverseStrand() {
		left, right = right, left
	}
	span := s.sh.span
	start, end := s.tr.Start, s.tr.End
	if overlaps(start-flankingWindow, start-1, span.Start, span.End) {
		if overlaps(start-flankingInnerWindow, start-1, span.Start, span.End) {
			s.add(innerFlanking(left))
		} else {
			s.add(left)
		}
	}
	if overlaps(end+1, end+flankingWindow, span.Start, span.End) {
		if overlaps(end+1, end+flankingInnerWindow, span.Start, span.End) {
			s.add(innerFlanking(right))
		} else {
			s.add(right)
		}
	}
}

// innerFlanking turns "upstream_gene_variant" into "2KB_upstream_variant".
func innerFlanking(tag string) string {
	return innerFlankingPrefix + strings.Replace(tag, "gene_", "", 1)
}

func (s *solveContext) solveOverlap() error {
	tr := s.tr
	coding := ClassifyBiotype(tr.Biotype) == Coding && tr.CDSStart > 0 && tr.CDSEnd > 0
	if tr.Biotype == biotypeNMD {
		s.add(NMDTranscriptVariant)
	}

	w := s.walk()
	if !coding {
		s.solveMiRNA(w)
		return nil
	}
	if w.intronic {
		return nil
	}
	if s.sh.insertion {
		if w.cdnaStart == -1 && w.cdnaEnd != -1 {
			w.cdnaStart = w.cdnaEnd - 1
		} else if w.cdnaEnd == -1 && w.cdnaStart != -1 {
			w.cdnaEnd = w.cdnaStart + 1
		}
	}
	return s.sh.exonVariant(s, w)
}

// walk visits the exons in transcript order, classifying every intron the
// variant may touch and locating the variant ends in cDNA coordinates.
func (s *solveContext) walk() *exonWalk {
	tr := s.tr
	span := s.sh.span
	plus := !tr.IsReverseStrand()
	total := len(tr.Exons)

	w := &exonWalk{cdnaStart: -1, cdnaEnd: -1, firstCdsPhase: -1}

	// Genomic positions of the variant's and the CDS's 5' and 3' ends.
	g5, g3 := span.Start, span.End
	c5, c3 := tr.CDSStart, tr.CDSEnd
	if !plus {
		g5, g3 = span.End, span.Start
		c5, c3 = tr.CDSEnd, tr.CDSStart
	}

	var cum int64
	for i := range tr.Exons {
		e := &tr.Exons[i]
		first := cum + 1
		cdna := func(pos int64) int64 {
			if plus {
				return first + pos - e.Start
			}
			return first + e.End - pos
		}

		if i > 0 {
			prev := &tr.Exons[i-1]
			var j Junction
			if plus {
				j = Junction{Start: prev.End + 1, End: e.Start - 1, LeftTag: SpliceDonorVariant, RightTag: SpliceAcceptorVariant}
			} else {
				j = Junction{Start: e.End + 1, End: prev.Start - 1, LeftTag: SpliceAcceptorVariant, RightTag: SpliceDonorVariant}
			}
			var r JunctionResult
			if s.sh.insertion {
				r = ClassifyInsertionJunction(j, span)
			} else {
				r = ClassifyJunction(j, span, s.env.opts.SpliceSuppressionThreshold)
			}
			s.add(r.Terms...)
			w.splicing = w.splicing || r.Splicing
			w.intronic = w.intronic || r.Intronic
		}

		if w.firstCdsPhase == -1 && tr.CDSStart > 0 {
			if (plus && tr.CDSStart <= e.End) || (!plus && tr.CDSEnd >= e.Start) {
				w.firstCdsPhase = e.Phase
			}
		}

		if g5 >= e.Start && g5 <= e.End {
			w.cdnaStart = cdna(g5)
		}
		if g3 >= e.Start && g3 <= e.End {
			w.cdnaEnd = cdna(g3)
		}
		if tr.CDSStart > 0 {
			if c5 >= e.Start && c5 <= e.End {
				w.codingStart = cdna(c5)
			}
			if c3 >= e.Start && c3 <= e.End {
				w.codingEnd = cdna(c3)
			}
		}
		if overlaps(e.Start, e.End, span.Start, span.End) {
			s.recordExonOverlap(e, total)
		}

		cum += e.Length()
	}
	if tr.CDNACodingStart > 0 {
		w.codingStart = tr.CDNACodingStart
	}
	if tr.CDNACodingEnd > 0 {
		w.codingEnd = tr.CDNACodingEnd
	}

	if w.cdnaStart != -1 {
		s.ct.CDNAPosition = w.cdnaStart
	} else if s.sh.insertion && w.cdnaEnd != -1 {
		s.ct.CDNAPosition = w.cdnaEnd - 1
	}
	return w
}

func (s *solveContext) recordExonOverlap(e *cache.Exon, total int) {
	number := strconv.Itoa(e.Number) + "/" + strconv.Itoa(total)
	if s.sh.insertion {
		// Insertions touch at most one exon; the last one seen wins.
		s.ct.ExonOverlap = []ExonOverlap{{Number: number, Percentage: -1}}
		return
	}
	span := s.sh.span
	lo, hi := max(span.Start, e.Start), min(span.End, e.End)
	pct := float64(hi-lo+1) * 100 / float64(e.Length())
	s.ct.ExonOverlap = append(s.ct.ExonOverlap, ExonOverlap{Number: number, Percentage: pct})
}

// solveMiRNA adds the non-coding transcript terms, reporting overlaps with
// mature miRNA regions when the gene carries them.
func (s *solveContext) solveMiRNA(w *exonWalk) {
	if s.tr.Biotype == biotypeMiRNA && s.gene.MiRNA != nil {
		start, end := w.cdnaStart, w.cdnaEnd
		if start > end && end != -1 {
			start, end = end, start
		}
		if start == -1 {
			start = 1
		}
		if end == -1 {
			end = int64(len(s.gene.MiRNA.Sequence))
		}
		for _, m := range s.gene.MiRNA.Matures {
			if overlaps(m.CDNAStart, m.CDNAEnd, start, end) {
				s.add(MatureMiRNAVariant)
				return
			}
		}
	}
	if !w.intronic {
		s.add(NonCodingTranscriptExonVariant)
	}
	s.add(NonCodingTranscriptVariant)
}

// regulatoryConsequences returns one regulatory_region_variant entry when any
// feature overlaps, plus TF_binding_site_variant for binding sites.
func regulatoryConsequences(features []*cache.RegulatoryFeature) []*ConsequenceType {
	if len(features) == 0 {
		return nil
	}
	cts := []*ConsequenceType{{Terms: MaterializeTerms([]string{RegulatoryRegionVariant})}}
	for _, f := range features {
		if f.FeatureType == "TF_binding_site" || f.FeatureType == "TF_binding_site_motif" {
			cts = append(cts, &ConsequenceType{Terms: MaterializeTerms([]string{TFBindingSiteVariant})})
			break
		}
	}
	return cts
}
