package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/vibe-csq/internal/cache"
	"github.com/inodb/vibe-csq/internal/datasource/alphamissense"
	"github.com/inodb/vibe-csq/internal/datasource/clinvar"
	"github.com/inodb/vibe-csq/internal/datasource/conservation"
	"github.com/inodb/vibe-csq/internal/datasource/population"
)

func newLoadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load gene models and annotation sources into DuckDB files",
		Example: `  vibe-csq load genes --gtf gencode.gtf.gz --genome GRCh38.primary_assembly.genome.fa.gz genes.duckdb
  vibe-csq load alphamissense AlphaMissense_hg38.tsv.gz am.duckdb
  vibe-csq load clinvar clinvar.tsv clinvar.duckdb`,
	}
	cmd.AddCommand(newLoadGenesCmd())
	cmd.AddCommand(newLoadSourceCmd("alphamissense", "AlphaMissense scores", loadAlphaMissense))
	cmd.AddCommand(newLoadSourceCmd("population", "population frequencies", loadPopulation))
	cmd.AddCommand(newLoadSourceCmd("conservation", "conservation scores", loadConservation))
	cmd.AddCommand(newLoadSourceCmd("clinvar", "ClinVar trait associations", loadClinVar))
	return cmd
}

func newLoadGenesCmd() *cobra.Command {
	var opts geneOptions
	cmd := &cobra.Command{
		Use:   "genes [flags] <output.duckdb>",
		Short: "Store gene models in a DuckDB gene store",
		Long: `Store gene models from a GTF or from JSON documents in a DuckDB gene
store. Regulatory features are stored for chromosomes that have genes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoadGenes(cmd.Context(), opts, args[0])
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.Genes, "json", "", "JSON gene file or JSON cache directory")
	f.StringVar(&opts.Species, "species", "hsapiens", "Species of a JSON cache directory")
	f.StringVar(&opts.Assembly, "assembly", "GRCh38", "Assembly of a JSON cache directory")
	f.StringVar(&opts.GTF, "gtf", "", "GENCODE GTF gene models")
	f.StringVar(&opts.GenomePath, "genome", "", "Chromosome FASTA the GTF exon sequences are cut from")
	f.StringVar(&opts.Canonical, "canonical", "", "Canonical transcript overrides TSV")
	return cmd
}

func runLoadGenes(ctx context.Context, opts geneOptions, outPath string) error {
	var (
		c   *cache.Cache
		err error
	)
	switch {
	case opts.Genes != "":
		c, err = loadJSONGenes(opts)
	case opts.GTF != "":
		if opts.genome, err = loadGenome(opts.GenomePath); err != nil {
			return err
		}
		c, err = parseGTF(ctx, opts)
	default:
		return usageErrorf("set --json or --gtf")
	}
	if err != nil {
		return err
	}

	loader, err := cache.NewDuckDBLoader(outPath)
	if err != nil {
		return err
	}
	defer loader.Close()
	if err := loader.CreateSchema(); err != nil {
		return err
	}

	start := time.Now()
	var features int
	for _, chrom := range c.Chromosomes() {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, g := range c.GenesByChrom(chrom) {
			if err := loader.InsertGene(g); err != nil {
				return fmt.Errorf("storing gene %s: %w", g.ID, err)
			}
		}
		for _, rf := range c.RegulatoryByChrom(chrom) {
			if err := loader.InsertRegulatoryFeature(rf); err != nil {
				return fmt.Errorf("storing regulatory feature %s: %w", rf.ID, err)
			}
			features++
		}
	}

	n, err := loader.GeneCount()
	if err != nil {
		return err
	}
	logger.Info("gene store written",
		zap.String("path", outPath),
		zap.Int("genes", n),
		zap.Int("regulatory", features),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

type loadFunc func(ctx context.Context, tsvPath, dbPath string) error

func newLoadSourceCmd(name, what string, load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <input.tsv[.gz]> <output.duckdb>",
		Short: "Load " + what + " from a TSV file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			if err := load(cmd.Context(), args[0], args[1]); err != nil {
				return fmt.Errorf("loading %s: %w", name, err)
			}
			logger.Info("source loaded",
				zap.String("source", name),
				zap.String("path", args[1]),
				zap.Duration("elapsed", time.Since(start)))
			return nil
		},
	}
}

func loadAlphaMissense(_ context.Context, tsvPath, dbPath string) error {
	store, err := alphamissense.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Load(tsvPath); err != nil {
		return err
	}
	n, err := store.Count()
	if err != nil {
		return err
	}
	logger.Info("AlphaMissense rows", zap.Int64("count", n))
	return nil
}

func loadPopulation(ctx context.Context, tsvPath, dbPath string) error {
	store, err := population.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Load(ctx, tsvPath); err != nil {
		return err
	}
	n, err := store.Count()
	if err != nil {
		return err
	}
	logger.Info("population frequency rows", zap.Int64("count", n))
	return nil
}

func loadConservation(ctx context.Context, tsvPath, dbPath string) error {
	store, err := conservation.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Load(ctx, tsvPath)
}

func loadClinVar(ctx context.Context, tsvPath, dbPath string) error {
	store, err := clinvar.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Load(ctx, tsvPath)
}
