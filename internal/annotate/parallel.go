package annotate

import (
	"context"
	"runtime"
	"sync"

	"github.com/inodb/vibe-csq/internal/vcf"
)

// WorkItem is one batch of parsed variants. Seq numbers start at 0 and
// have no gaps.
type WorkItem struct {
	Seq      int
	Variants []*vcf.Variant
}

// WorkResult holds the annotations of one batch, or the error that stopped it.
type WorkResult struct {
	Seq         int
	Variants    []*vcf.Variant
	Annotations []*VariantAnnotation
	Err         error
}

// ParallelAnnotate annotates batches on a pool of workers and sends the
// results in completion order; OrderedCollect restores sequence order.
// Once ctx is done, remaining batches are answered with ctx.Err() without
// being annotated. workers <= 0 means runtime.NumCPU().
func (a *Annotator) ParallelAnnotate(ctx context.Context, items <-chan WorkItem, workers int) <-chan WorkResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	results := make(chan WorkResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w, n := 0, workers; w < n; w++ {
		go func() {
			defer wg.Done()
			for item := range items {
				r := WorkResult{Seq: item.Seq, Variants: item.Variants}
				if r.Err = ctx.Err(); r.Err == nil {
					r.Annotations, r.Err = a.AnnotateBatch(ctx, item.Variants)
				}
				results <- r
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()
	return results
}

// OrderedCollect calls fn for each result in sequence order, holding back
// results that arrive early. It returns when results is closed, or with the
// first error from fn after draining results so the workers can exit.
func OrderedCollect(results <-chan WorkResult, fn func(WorkResult) error) error {
	early := make(map[int]WorkResult)
	next := 0

	for r := range results {
		early[r.Seq] = r
		for {
			ready, ok := early[next]
			if !ok {
				break
			}
			delete(early, next)
			next++
			if err := fn(ready); err != nil {
				for range results {
				}
				return err
			}
		}
	}
	return nil
}
