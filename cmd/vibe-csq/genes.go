package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/inodb/vibe-csq/internal/annotate"
	"github.com/inodb/vibe-csq/internal/cache"
	"github.com/inodb/vibe-csq/internal/duckdb"
)

// geneOptions selects where gene models come from. Genes wins over GTF.
type geneOptions struct {
	Genes      string // DuckDB gene store, JSON file or JSON cache directory
	Species    string
	Assembly   string
	Preload    bool // read a DuckDB gene store fully into memory
	GTF        string
	GenomePath string // genome FASTA the exon bases of GTF models are cut from
	Canonical  string
	CacheDir   string // gob cache of GTF-derived genes; empty disables it

	genome *cache.Genome // GenomePath, loaded once by loadGenome
}

// loadGenome reads a chromosome FASTA. The same genome cuts exon bases for
// GTF models and supplies bases the gene models lack at annotation time.
func loadGenome(path string) (*cache.Genome, error) {
	if path == "" {
		return nil, nil
	}
	start := time.Now()
	g := cache.NewGenome(path)
	if err := g.Load(); err != nil {
		return nil, fmt.Errorf("loading genome: %w", err)
	}
	logger.Info("genome loaded",
		zap.String("path", path),
		zap.Int("sequences", g.SequenceCount()),
		zap.Duration("elapsed", time.Since(start)))
	return g, nil
}

// geneSources is the gene and regulatory lookup plus its cleanup.
type geneSources struct {
	genes      annotate.GeneSource
	regulatory annotate.RegulatorySource
	close      func() error
}

func openGenes(ctx context.Context, opts geneOptions) (*geneSources, error) {
	switch {
	case opts.Genes != "":
		if cache.IsDuckDB(opts.Genes) {
			return openDuckDBGenes(ctx, opts)
		}
		c, err := loadJSONGenes(opts)
		if err != nil {
			return nil, err
		}
		return memorySources(c), nil
	case opts.GTF != "":
		c, err := loadGTFGenes(ctx, opts)
		if err != nil {
			return nil, err
		}
		return memorySources(c), nil
	}
	return nil, usageErrorf("no gene models: set --genes or --gtf")
}

func memorySources(c *cache.Cache) *geneSources {
	logger.Info("gene models loaded",
		zap.Int("genes", c.GeneCount()),
		zap.Int("transcripts", c.TranscriptCount()))
	return &geneSources{genes: c, regulatory: c, close: func() error { return nil }}
}

func openDuckDBGenes(ctx context.Context, opts geneOptions) (*geneSources, error) {
	loader, err := cache.NewDuckDBLoader(opts.Genes)
	if err != nil {
		return nil, err
	}
	if !opts.Preload {
		logger.Info("querying gene store", zap.String("path", opts.Genes))
		return &geneSources{genes: loader, regulatory: loader, close: loader.Close}, nil
	}
	defer loader.Close()

	c := cache.New()
	if err := loader.LoadAll(ctx, c); err != nil {
		return nil, fmt.Errorf("preloading gene store: %w", err)
	}
	return memorySources(c), nil
}

func loadJSONGenes(opts geneOptions) (*cache.Cache, error) {
	info, err := os.Stat(opts.Genes)
	if err != nil {
		return nil, fmt.Errorf("gene models: %w", err)
	}
	c := cache.New()
	if info.IsDir() {
		err = cache.NewLoader(opts.Genes, opts.Species, opts.Assembly).LoadAll(c)
	} else {
		err = cache.LoadFile(c, opts.Genes)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// loadGTFGenes parses the GTF, or reads the gob cache when it was built from
// the same GTF, genome and canonical files.
func loadGTFGenes(ctx context.Context, opts geneOptions) (*cache.Cache, error) {
	var src duckdb.Sources
	var err error
	if src.GTF, err = duckdb.StatFile(opts.GTF); err != nil {
		return nil, err
	}
	if src.FASTA, err = duckdb.StatFile(opts.GenomePath); err != nil {
		return nil, err
	}
	if src.Canonical, err = duckdb.StatFile(opts.Canonical); err != nil {
		return nil, err
	}

	var gc *duckdb.GeneCache
	if opts.CacheDir != "" {
		gc = duckdb.NewGeneCache(opts.CacheDir)
		if gc.Valid(src) {
			c := cache.New()
			start := time.Now()
			err := gc.Load(c)
			if err == nil {
				logger.Info("gene cache hit", zap.String("dir", opts.CacheDir), zap.Duration("elapsed", time.Since(start)))
				return c, nil
			}
			logger.Warn("gene cache unreadable, rebuilding", zap.Error(err))
			gc.Clear()
		}
	}

	c, err := parseGTF(ctx, opts)
	if err != nil {
		return nil, err
	}
	if gc != nil {
		if err := gc.Write(c, src); err != nil {
			logger.Warn("could not write gene cache", zap.Error(err))
		}
	}
	return c, nil
}

func parseGTF(ctx context.Context, opts geneOptions) (*cache.Cache, error) {
	loader := cache.NewGTFLoader(opts.GTF)
	if opts.genome != nil {
		loader.SetGenome(opts.genome)
	} else {
		logger.Warn("no genome FASTA: GTF exons carry no sequence and coding variants cannot be resolved to codons")
	}
	if opts.Canonical != "" {
		overrides, err := cache.LoadCanonicalOverrides(opts.Canonical)
		if err != nil {
			logger.Warn("could not load canonical overrides", zap.String("path", opts.Canonical), zap.Error(err))
		} else {
			loader.SetCanonicalOverrides(overrides)
			logger.Info("canonical overrides loaded", zap.Int("count", len(overrides)))
		}
	}

	start := time.Now()
	c := cache.New()
	if err := loader.Load(ctx, c); err != nil {
		return nil, fmt.Errorf("loading GTF: %w", err)
	}
	logger.Info("GTF parsed", zap.String("path", opts.GTF), zap.Duration("elapsed", time.Since(start)))
	return c, nil
}
