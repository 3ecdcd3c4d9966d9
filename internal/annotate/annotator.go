// Package annotate computes Sequence Ontology consequences of variants on
// gene and transcript models.
package annotate

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/inodb/vibe-csq/internal/cache"
	"github.com/inodb/vibe-csq/internal/vcf"
)

// GenePadding is the distance around a variant searched for genes and
// regulatory features.
const GenePadding = 5000

// DefaultBatchSize is the number of variants annotated together.
const DefaultBatchSize = 200

// Annotator computes VariantAnnotations for batches of variants.
// All collaborators except the gene source are optional.
type Annotator struct {
	genes           GeneSource
	regulatory      RegulatorySource
	genome          GenomeSequence
	proteins        ProteinAnnotator
	variation       VariationLookup
	conservation    ConservationLookup
	functional      FunctionalScoreLookup
	clinical        ClinicalLookup
	geneAnnotations GeneAnnotationLookup

	categories CategorySet
	phased     bool
	opts       Options
	logger     *zap.Logger
}

// NewAnnotator creates an annotator reading gene models from genes.
func NewAnnotator(genes GeneSource) *Annotator {
	return &Annotator{
		genes:      genes,
		categories: ResolveCategories(nil, nil),
		opts:       DefaultOptions(),
		logger:     zap.NewNop(),
		phased:     true,
	}
}

// SetLogger sets the logger for warning and info messages.
func (a *Annotator) SetLogger(l *zap.Logger) {
	a.logger = l
}

// SetOptions replaces the calculation options.
func (a *Annotator) SetOptions(opts Options) {
	a.opts = opts
}

// SetCategories selects the annotation categories to compute.
func (a *Annotator) SetCategories(cats CategorySet) {
	a.categories = cats
}

// SetPhased turns correction of adjacent phased SNVs on or off. It is on
// by default.
func (a *Annotator) SetPhased(phased bool) {
	a.phased = phased
}

// SetRegulatorySource sets where regulatory features come from.
func (a *Annotator) SetRegulatorySource(r RegulatorySource) { a.regulatory = r }

// SetGenome sets the reference that supplies exon bases missing from the
// gene models and bases past transcript ends.
func (a *Annotator) SetGenome(g GenomeSequence) { a.genome = g }

// SetProteinAnnotator sets the protein detail source.
func (a *Annotator) SetProteinAnnotator(p ProteinAnnotator) { a.proteins = p }

// SetVariationLookup sets the variation id and population frequency source.
func (a *Annotator) SetVariationLookup(l VariationLookup) { a.variation = l }

// SetConservationLookup sets the conservation score source.
func (a *Annotator) SetConservationLookup(l ConservationLookup) { a.conservation = l }

// SetFunctionalScoreLookup sets the functional score source.
func (a *Annotator) SetFunctionalScoreLookup(l FunctionalScoreLookup) { a.functional = l }

// SetClinicalLookup sets the clinical trait association source.
func (a *Annotator) SetClinicalLookup(l ClinicalLookup) { a.clinical = l }

// SetGeneAnnotationLookup sets the gene-level knowledge source.
func (a *Annotator) SetGeneAnnotationLookup(l GeneAnnotationLookup) { a.geneAnnotations = l }

// AnnotateBatch annotates variants and returns one VariantAnnotation per
// variant, in input order. Variants of an unsupported shape, or whose codons
// need exon bases that neither the gene model nor the genome supplies, carry
// a ConsequenceError; any other consequence failure fails the batch.
func (a *Annotator) AnnotateBatch(ctx context.Context, variants []*vcf.Variant) ([]*VariantAnnotation, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := a.logger.With(zap.String("batch", uuid.NewString()))
	start := time.Now()

	anns := make([]*VariantAnnotation, len(variants))
	for i, v := range variants {
		anns[i] = newVariantAnnotation(v)
	}

	aux := a.startAuxiliary(ctx, variants, a.categories)

	if a.categories.Has(CategoryConsequenceType) {
		env := &solveEnv{ctx: ctx, opts: &a.opts, genome: a.genome, proteins: a.proteins}
		for i, v := range variants {
			if err := a.annotateConsequences(ctx, env, v, anns[i]); err != nil {
				log.Error("consequence calculation failed",
					zap.String("variant", v.String()),
					zap.Error(err))
				return nil, fmt.Errorf("variant %s: %w", v.String(), err)
			}
		}
	}

	aux.wait(anns)
	a.annotateGenes(anns)

	if a.phased && a.categories.Has(CategoryConsequenceType) {
		correctPhasedSNVs(variants, anns)
	}

	log.Debug("batch annotated",
		zap.Int("variants", len(variants)),
		zap.Duration("elapsed", time.Since(start)))
	return anns, nil
}

func newVariantAnnotation(v *vcf.Variant) *VariantAnnotation {
	va := &VariantAnnotation{
		Chrom:     v.Chrom,
		Start:     v.Pos,
		End:       v.End,
		Reference: v.Ref,
		Alternate: v.Alt,
	}
	if v.ID != "" && v.ID != "." {
		va.ID = v.ID
	}
	return va
}

func (a *Annotator) annotateConsequences(ctx context.Context, env *solveEnv, v *vcf.Variant, va *VariantAnnotation) error {
	regions := a.variantRegions(v)
	var nearby []*cache.Gene
	for _, r := range regions {
		genes, err := a.genes.GenesOverlapping(ctx, r.chrom, max(r.start, 1), r.end)
		if err != nil {
			return fmt.Errorf("genes on %s: %w", r.chrom, err)
		}
		nearby = append(nearby, genes...)
	}
	nearby = lo.Uniq(nearby)

	var features []*cache.RegulatoryFeature
	if a.regulatory != nil {
		own := regions[0]
		f, err := a.regulatory.RegulatoryFeaturesOverlapping(ctx, own.chrom, own.start, own.end)
		if err != nil {
			return fmt.Errorf("regulatory features: %w", err)
		}
		features = f
	}

	cts, err := consequenceTypes(env, v, nearby, features)
	if errors.Is(err, ErrUnsupportedVariant) || errors.Is(err, ErrNoSequence) {
		a.logger.Warn("skipping consequence types",
			zap.String("variant", v.String()),
			zap.Error(err))
		va.ConsequenceError = err.Error()
		return nil
	}
	if err != nil {
		return err
	}
	va.ConsequenceTypes = cts
	va.DisplayConsequenceType = MostSevere(cts)
	return nil
}

// region is a padded genomic window on a normalized chromosome.
type region struct {
	chrom      string
	start, end int64
}

// variantRegions returns the windows searched for genes around v, its own
// first. Breakends add the window around their mate.
func (a *Annotator) variantRegions(v *vcf.Variant) []region {
	start, end := min(v.Pos, v.End), max(v.Pos, v.End)
	if v.SV != nil && v.IsImprecise() {
		pad := a.opts.SVExtraPadding
		if v.Type == vcf.TypeCNV {
			pad = a.opts.CNVExtraPadding
		}
		start = min(start, v.SV.CiStartLeft-pad)
		end = max(end, v.SV.CiEndRight+pad)
	}
	regions := []region{{cache.NormalizeChrom(v.Chrom), start - GenePadding, end + GenePadding}}
	if v.Type == vcf.TypeBreakend && v.SV != nil && v.SV.Mate != nil {
		m := v.SV.Mate
		from, to := min(m.Pos, m.CiLeft), max(m.Pos, m.CiRight)
		if m.CiLeft != m.CiRight {
			from -= a.opts.SVExtraPadding
			to += a.opts.SVExtraPadding
		}
		regions = append(regions, region{cache.NormalizeChrom(m.Chrom), from - GenePadding, to + GenePadding})
	}
	return regions
}

// annotateGenes attaches gene-level knowledge for every gene a variant hits.
func (a *Annotator) annotateGenes(anns []*VariantAnnotation) {
	if a.geneAnnotations == nil {
		return
	}
	if !a.categories.Has(CategoryGeneDisease) && !a.categories.Has(CategoryDrugInteraction) {
		return
	}
	for _, va := range anns {
		names := lo.Uniq(lo.FilterMap(va.ConsequenceTypes, func(ct *ConsequenceType, _ int) (string, bool) {
			return ct.GeneName, ct.GeneName != ""
		}))
		if len(names) == 0 {
			continue
		}
		known := a.geneAnnotations.LookupGenes(names)
		for _, name := range names {
			va.GeneAnnotations = append(va.GeneAnnotations, known[name]...)
		}
	}
}

// AnnotationWriter writes VariantAnnotations.
type AnnotationWriter interface {
	WriteHeader() error
	Write(va *VariantAnnotation) error
	Flush() error
}

// AnnotateAll annotates all variants from a parser in batches of batchSize,
// running workers batches at once, and writes results in input order.
func (a *Annotator) AnnotateAll(ctx context.Context, parser vcf.VariantReader, writer AnnotationWriter, batchSize, workers int) error {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	// Stops the reader when writing fails.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	items := make(chan WorkItem, 2*workers)
	var parseErr error
	variantCount := 0

	go func() {
		defer close(items)
		seq := 0
		batch := make([]*vcf.Variant, 0, batchSize)
		send := func() bool {
			if len(batch) == 0 {
				return true
			}
			select {
			case items <- WorkItem{Seq: seq, Variants: batch}:
			case <-ctx.Done():
				return false
			}
			seq++
			batch = make([]*vcf.Variant, 0, batchSize)
			return true
		}
		for {
			v, err := parser.Next()
			if err != nil {
				parseErr = fmt.Errorf("line %d: read variant: %w", parser.LineNumber(), err)
				send()
				return
			}
			if v == nil {
				send()
				return
			}
			variantCount++
			batch = append(batch, v)
			if len(batch) == batchSize && !send() {
				return
			}
		}
	}()

	results := a.ParallelAnnotate(ctx, items, workers)

	if err := OrderedCollect(results, func(r WorkResult) error {
		err := writeResult(writer, r)
		if err != nil {
			cancel()
		}
		return err
	}); err != nil {
		return err
	}

	if parseErr != nil {
		return parseErr
	}
	if variantCount == 0 {
		a.logger.Info("0 variants processed")
	}
	return writer.Flush()
}

func writeResult(writer AnnotationWriter, r WorkResult) error {
	if r.Err != nil {
		return fmt.Errorf("annotate batch %d: %w", r.Seq, r.Err)
	}
	for _, va := range r.Annotations {
		if err := writer.Write(va); err != nil {
			return fmt.Errorf("write annotation: %w", err)
		}
	}
	return nil
}
