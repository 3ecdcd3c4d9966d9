package main

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/inodb/vibe-csq/internal/annotate"
	"github.com/inodb/vibe-csq/internal/datasource/alphamissense"
	"github.com/inodb/vibe-csq/internal/datasource/clinvar"
	"github.com/inodb/vibe-csq/internal/datasource/conservation"
	"github.com/inodb/vibe-csq/internal/datasource/oncokb"
	"github.com/inodb/vibe-csq/internal/datasource/population"
)

// sourceOptions holds the paths of the auxiliary sources. Empty paths are
// not opened.
type sourceOptions struct {
	AlphaMissense        string
	AlphaMissensePreload bool
	Population           string
	Conservation         string
	ClinVar              string
	OncoKB               string
}

// auxSources are the opened auxiliary sources.
type auxSources struct {
	functional   *alphamissense.Source
	variation    *population.Store
	conservation *conservation.Store
	clinical     *clinvar.Store
	genes        *oncokb.Source

	closers []func() error
}

func openSources(opts sourceOptions) (_ *auxSources, err error) {
	s := &auxSources{}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	if opts.AlphaMissense != "" {
		store, err := alphamissense.Open(opts.AlphaMissense)
		if err != nil {
			return nil, fmt.Errorf("opening AlphaMissense: %w", err)
		}
		s.closers = append(s.closers, store.Close)
		if !store.Loaded() {
			logger.Warn("AlphaMissense store is empty", zap.String("path", opts.AlphaMissense))
		}
		if opts.AlphaMissensePreload {
			if err := store.PreloadToMemory(); err != nil {
				return nil, err
			}
			logger.Info("AlphaMissense preloaded", zap.Int64("variants", store.MemCacheSize()))
		}
		s.functional = alphamissense.NewSource(store)
	}
	if opts.Population != "" {
		store, err := population.Open(opts.Population)
		if err != nil {
			return nil, fmt.Errorf("opening population frequencies: %w", err)
		}
		s.closers = append(s.closers, store.Close)
		s.variation = store
	}
	if opts.Conservation != "" {
		store, err := conservation.Open(opts.Conservation)
		if err != nil {
			return nil, fmt.Errorf("opening conservation: %w", err)
		}
		s.closers = append(s.closers, store.Close)
		s.conservation = store
	}
	if opts.ClinVar != "" {
		store, err := clinvar.Open(opts.ClinVar)
		if err != nil {
			return nil, fmt.Errorf("opening ClinVar: %w", err)
		}
		s.closers = append(s.closers, store.Close)
		s.clinical = store
	}
	if opts.OncoKB != "" {
		cgl, err := oncokb.LoadCancerGeneList(opts.OncoKB)
		if err != nil {
			return nil, fmt.Errorf("loading OncoKB gene list: %w", err)
		}
		logger.Info("OncoKB cancer genes loaded", zap.Int("genes", cgl.Genes()))
		s.genes = oncokb.NewSource(cgl)
	}
	return s, nil
}

// apply registers the opened sources with the annotator.
func (s *auxSources) apply(ann *annotate.Annotator) {
	if s.functional != nil {
		ann.SetFunctionalScoreLookup(s.functional)
	}
	if s.variation != nil {
		ann.SetVariationLookup(s.variation)
	}
	if s.conservation != nil {
		ann.SetConservationLookup(s.conservation)
	}
	if s.clinical != nil {
		ann.SetClinicalLookup(s.clinical)
	}
	if s.genes != nil {
		ann.SetGeneAnnotationLookup(s.genes)
	}
}

// Close closes every opened store.
func (s *auxSources) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
