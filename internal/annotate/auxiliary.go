package annotate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/inodb/vibe-csq/internal/vcf"
)

// Source names an auxiliary annotation source.
type Source string

// Auxiliary sources fetched concurrently with consequence calculation.
const (
	SourceVariation       Source = "variation"
	SourceConservation    Source = "conservation"
	SourceFunctionalScore Source = "functionalScore"
	SourceClinical        Source = "clinical"
)

// auxiliaryWorkers is the number of sources fetched at once.
const auxiliaryWorkers = 4

// Retry schedule of a failing source within its timeout.
const (
	auxiliaryRetries       = 3
	auxiliaryRetryInterval = 100 * time.Millisecond
)

// ErrSourceTimeout is wrapped by SourceError when a source did not answer in time.
var ErrSourceTimeout = errors.New("auxiliary source timed out")

// SourceError reports why an auxiliary source contributed nothing.
type SourceError struct {
	Source Source
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// auxiliaryResult is what one source fetch produced. merge is nil when the
// fetch failed.
type auxiliaryResult struct {
	source Source
	merge  func(anns []*VariantAnnotation)
	err    error
}

// auxiliaryFetch is a set of source fetches running in the background.
type auxiliaryFetch struct {
	g       *errgroup.Group
	results []*auxiliaryResult
}

// startAuxiliary launches one fetch per requested and configured source.
// Results are held back until wait, so nothing writes into the annotations
// while consequence types are still being computed.
func (a *Annotator) startAuxiliary(ctx context.Context, variants []*vcf.Variant, cats CategorySet) *auxiliaryFetch {
	f := &auxiliaryFetch{g: &errgroup.Group{}}
	f.g.SetLimit(auxiliaryWorkers)

	if a.variation != nil && (cats.Has(CategoryVariation) || cats.Has(CategoryPopulationFrequencies)) {
		lookup := a.variation
		withIDs, withFreqs := cats.Has(CategoryVariation), cats.Has(CategoryPopulationFrequencies)
		a.launch(ctx, f, SourceVariation, func(ctx context.Context) (func([]*VariantAnnotation), error) {
			res, err := lookup.LookupVariation(ctx, variants)
			if err != nil {
				return nil, err
			}
			return func(anns []*VariantAnnotation) {
				for i, r := range res {
					if i >= len(anns) || r == nil {
						continue
					}
					if withIDs {
						anns[i].IDs = r.IDs
					}
					if withFreqs {
						anns[i].PopulationFrequencies = r.PopulationFrequencies
					}
				}
			}, nil
		})
	}
	if a.conservation != nil && cats.Has(CategoryConservation) {
		lookup := a.conservation
		a.launch(ctx, f, SourceConservation, func(ctx context.Context) (func([]*VariantAnnotation), error) {
			res, err := lookup.LookupConservation(ctx, variants)
			if err != nil {
				return nil, err
			}
			return func(anns []*VariantAnnotation) {
				for i, n := 0, min(len(res), len(anns)); i < n; i++ {
					anns[i].Conservation = res[i]
				}
			}, nil
		})
	}
	if a.functional != nil && cats.Has(CategoryFunctionalScore) {
		lookup := a.functional
		a.launch(ctx, f, SourceFunctionalScore, func(ctx context.Context) (func([]*VariantAnnotation), error) {
			res, err := lookup.LookupFunctionalScores(ctx, variants)
			if err != nil {
				return nil, err
			}
			return func(anns []*VariantAnnotation) {
				for i, n := 0, min(len(res), len(anns)); i < n; i++ {
					anns[i].FunctionalScores = res[i]
				}
			}, nil
		})
	}
	if a.clinical != nil && cats.Has(CategoryClinical) {
		lookup := a.clinical
		a.launch(ctx, f, SourceClinical, func(ctx context.Context) (func([]*VariantAnnotation), error) {
			res, err := lookup.LookupClinical(ctx, variants)
			if err != nil {
				return nil, err
			}
			return func(anns []*VariantAnnotation) {
				for i, n := 0, min(len(res), len(anns)); i < n; i++ {
					anns[i].TraitAssociations = res[i]
				}
			}, nil
		})
	}
	return f
}

// launch runs fetch in the group with retries under the source timeout.
func (a *Annotator) launch(ctx context.Context, f *auxiliaryFetch, source Source, fetch func(context.Context) (func([]*VariantAnnotation), error)) {
	r := &auxiliaryResult{source: source}
	f.results = append(f.results, r)
	timeout := a.opts.SourceTimeout

	f.g.Go(func() error {
		start := time.Now()
		merge, err := fetchWithRetry(ctx, timeout, fetch)
		if err != nil {
			r.err = &SourceError{Source: source, Err: err}
			a.logger.Warn("auxiliary source failed",
				zap.String("source", string(source)),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err))
			return nil
		}
		r.merge = merge
		a.logger.Debug("auxiliary source done",
			zap.String("source", string(source)),
			zap.Duration("elapsed", time.Since(start)))
		return nil
	})
}

// fetchWithRetry retries fetch with exponential backoff until it succeeds,
// the retries run out or timeout expires. A fetch that ignores its context
// is abandoned when the timeout expires.
func fetchWithRetry[T any](ctx context.Context, timeout time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		var val T
		op := func() error {
			v, err := fetch(ctx)
			if err != nil {
				return err
			}
			val = v
			return nil
		}
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = auxiliaryRetryInterval
		err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(exp, auxiliaryRetries), ctx))
		done <- outcome{val, err}
	}()

	var zero T
	select {
	case o := <-done:
		if o.err != nil {
			if ctx.Err() != nil {
				return zero, timeoutError(ctx, o.err)
			}
			return zero, o.err
		}
		return o.val, nil
	case <-ctx.Done():
		return zero, timeoutError(ctx, ctx.Err())
	}
}

func timeoutError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrSourceTimeout, err)
	}
	return err
}

// wait blocks until every fetch finished, then merges the successful ones
// into anns and flags the failed ones as degraded.
func (f *auxiliaryFetch) wait(anns []*VariantAnnotation) {
	_ = f.g.Wait()
	for _, r := range f.results {
		if r.err != nil {
			for _, va := range anns {
				va.markDegraded(r.source, r.err)
			}
			continue
		}
		r.merge(anns)
	}
}
