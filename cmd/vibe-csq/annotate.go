package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-csq/internal/annotate"
	"github.com/inodb/vibe-csq/internal/duckdb"
	"github.com/inodb/vibe-csq/internal/maf"
	"github.com/inodb/vibe-csq/internal/output"
	"github.com/inodb/vibe-csq/internal/vcf"
)

func newAnnotateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "annotate [flags] <input-file>",
		Short: "Annotate variants in a VCF or MAF file",
		Long: `Annotate variants in a VCF or MAF file with consequence predictions.

Use '-' to read a VCF from stdin. Auxiliary sources (alphamissense,
population, conservation, clinvar, oncokb) are read from the flags or the
sources.* config keys.`,
		Example: `  vibe-csq annotate --gtf gencode.gtf.gz --genome GRCh38.primary_assembly.genome.fa.gz input.vcf
  vibe-csq annotate --genes genes.duckdb -f json -o out.jsonl input.maf
  vibe-csq annotate --genes genes.duckdb --include consequenceType,clinical input.vcf
  cat input.vcf | vibe-csq annotate --genes genes.duckdb -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runAnnotate(ctx, args[0])
		},
	}

	f := cmd.Flags()
	f.String("input-format", "", "Input format: vcf, maf (auto-detected if not specified)")
	f.StringP("output-format", "f", "tab", "Output format: tab, json")
	f.StringP("output", "o", "", "Output file (default: stdout)")
	f.String("store", "", "Also write results to this DuckDB file")

	f.String("genes", "", "Gene models: DuckDB gene store, JSON file or JSON cache directory")
	f.String("species", "hsapiens", "Species of a JSON cache directory")
	f.String("assembly", "GRCh38", "Assembly of a JSON cache directory")
	f.Bool("preload", false, "Read a DuckDB gene store fully into memory")
	f.String("gtf", "", "GENCODE GTF gene models")
	f.String("canonical", "", "Canonical transcript overrides TSV")
	f.String("cache-dir", "", "Directory caching parsed GTF gene models")
	f.String("genome", "", "Chromosome FASTA: exon bases for GTF models and gene stores without sequence, and bases past transcript ends")

	f.String("include", "", "Comma separated annotation categories to run")
	f.String("exclude", "", "Comma separated annotation categories to skip")
	f.Int("workers", 0, "Batches annotated at once (default: number of CPUs)")
	f.Int("batch-size", annotate.DefaultBatchSize, "Variants per batch")
	f.Duration("source-timeout", annotate.DefaultOptions().SourceTimeout, "Timeout of each auxiliary source")
	f.Int64("sv-extra-padding", 0, "Padding around imprecise structural variant breakpoints")
	f.Int64("cnv-extra-padding", 0, "Padding around imprecise copy number breakpoints")
	f.Bool("phased", true, "Re-annotate phased SNVs sharing a codon (--phased=false to disable)")

	f.String("alphamissense", "", "AlphaMissense DuckDB file")
	f.Bool("alphamissense-preload", false, "Read AlphaMissense scores into memory")
	f.String("population", "", "Population frequency DuckDB file")
	f.String("conservation", "", "Conservation DuckDB file")
	f.String("clinvar", "", "ClinVar DuckDB file")
	f.String("oncokb", "", "OncoKB cancer gene list TSV")

	for _, name := range []string{"genes", "species", "assembly", "preload", "gtf", "canonical", "cache-dir", "genome"} {
		_ = viper.BindPFlag("genes."+name, f.Lookup(name))
	}
	for _, name := range []string{"include", "exclude", "workers", "batch-size", "source-timeout", "sv-extra-padding", "cnv-extra-padding", "phased", "input-format", "output-format", "output", "store"} {
		_ = viper.BindPFlag("annotate."+name, f.Lookup(name))
	}
	for _, name := range []string{"alphamissense", "alphamissense-preload", "population", "conservation", "clinvar", "oncokb"} {
		_ = viper.BindPFlag("sources."+name, f.Lookup(name))
	}
	return cmd
}

func runAnnotate(ctx context.Context, inputPath string) error {
	cats, err := categoriesFromConfig()
	if err != nil {
		return err
	}
	opts := annotate.DefaultOptions()
	opts.SourceTimeout = viper.GetDuration("annotate.source-timeout")
	opts.SVExtraPadding = viper.GetInt64("annotate.sv-extra-padding")
	opts.CNVExtraPadding = viper.GetInt64("annotate.cnv-extra-padding")

	parser, err := openInput(inputPath, viper.GetString("annotate.input-format"))
	if err != nil {
		return err
	}
	defer parser.Close()

	genomePath := dataPath(viper.GetString("genes.genome"))
	genome, err := loadGenome(genomePath)
	if err != nil {
		return err
	}

	genes, err := openGenes(ctx, geneOptions{
		Genes:      dataPath(viper.GetString("genes.genes")),
		Species:    viper.GetString("genes.species"),
		Assembly:   viper.GetString("genes.assembly"),
		Preload:    viper.GetBool("genes.preload"),
		GTF:        dataPath(viper.GetString("genes.gtf")),
		GenomePath: genomePath,
		Canonical:  dataPath(viper.GetString("genes.canonical")),
		CacheDir:   viper.GetString("genes.cache-dir"),
		genome:     genome,
	})
	if err != nil {
		return err
	}
	defer genes.close()

	ann := annotate.NewAnnotator(genes.genes)
	ann.SetLogger(logger)
	ann.SetOptions(opts)
	ann.SetCategories(cats)
	ann.SetPhased(viper.GetBool("annotate.phased"))
	ann.SetRegulatorySource(genes.regulatory)

	if genome != nil {
		ann.SetGenome(genome)
	}

	sources, err := openSources(sourceOptions{
		AlphaMissense:        dataPath(viper.GetString("sources.alphamissense")),
		AlphaMissensePreload: viper.GetBool("sources.alphamissense-preload"),
		Population:           dataPath(viper.GetString("sources.population")),
		Conservation:         dataPath(viper.GetString("sources.conservation")),
		ClinVar:              dataPath(viper.GetString("sources.clinvar")),
		OncoKB:               dataPath(viper.GetString("sources.oncokb")),
	})
	if err != nil {
		return err
	}
	defer sources.Close()
	sources.apply(ann)

	out := io.Writer(os.Stdout)
	if path := viper.GetString("annotate.output"); path != "" {
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer file.Close()
		out = file
	}

	writer, closeStore, err := newWriter(ctx, out, viper.GetString("annotate.output-format"), viper.GetString("annotate.store"))
	if err != nil {
		return err
	}
	defer closeStore()

	if err := writer.WriteHeader(); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if err := ann.AnnotateAll(ctx, parser, writer, viper.GetInt("annotate.batch-size"), viper.GetInt("annotate.workers")); err != nil {
		return err
	}
	return nil
}

func categoriesFromConfig() (annotate.CategorySet, error) {
	include, err := annotate.ParseCategories(viper.GetString("annotate.include"))
	if err != nil {
		return nil, &usageError{err}
	}
	exclude, err := annotate.ParseCategories(viper.GetString("annotate.exclude"))
	if err != nil {
		return nil, &usageError{err}
	}
	return annotate.ResolveCategories(include, exclude), nil
}

func openInput(path, format string) (vcf.VariantReader, error) {
	if format == "" {
		format = detectInputFormat(path)
	}
	var (
		parser vcf.VariantReader
		err    error
	)
	switch format {
	case "maf":
		parser, err = maf.NewParser(path)
	case "vcf":
		parser, err = vcf.NewParser(path)
	default:
		return nil, usageErrorf("unknown input format %q (use --input-format vcf or maf)", format)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("reading variants", zap.String("path", path), zap.String("format", format))
	return parser, nil
}

// newWriter builds the output writer. With a store path, results also go to
// that DuckDB file under a fresh batch id.
func newWriter(ctx context.Context, out io.Writer, format, storePath string) (annotate.AnnotationWriter, func(), error) {
	var writer annotate.AnnotationWriter
	switch format {
	case "tab":
		writer = output.NewTabWriter(out)
	case "json":
		writer = output.NewJSONWriter(out)
	default:
		return nil, nil, usageErrorf("unknown output format %q", format)
	}
	if storePath == "" {
		return writer, func() {}, nil
	}

	store, err := duckdb.Open(storePath)
	if err != nil {
		return nil, nil, err
	}
	rw := duckdb.NewResultWriter(ctx, store)
	logger.Info("storing results", zap.String("path", storePath), zap.String("batch", rw.BatchID()))
	closeStore := func() {
		total, err := store.Count(ctx)
		if err != nil {
			logger.Warn("could not count stored results", zap.Error(err))
		}
		logger.Info("results stored", zap.String("path", store.Path()), zap.String("batch", rw.BatchID()),
			zap.Int("variants", rw.Written()), zap.Int64("total_rows", total))
		store.Close()
	}
	return output.NewMultiWriter(writer, rw), closeStore, nil
}

// detectInputFormat guesses vcf or maf from the file name, then from the
// first bytes of the file. Anything unrecognized is read as VCF.
func detectInputFormat(path string) string {
	lowerPath := strings.TrimSuffix(strings.ToLower(path), ".gz")
	switch {
	case strings.HasSuffix(lowerPath, ".vcf"):
		return "vcf"
	case strings.HasSuffix(lowerPath, ".maf"):
		return "maf"
	}

	// cBioPortal MAF file names
	switch filepath.Base(lowerPath) {
	case "data_mutations.txt", "data_mutations_extended.txt":
		return "maf"
	}

	if path == "-" {
		return "vcf"
	}
	file, err := os.Open(path)
	if err != nil {
		return "vcf"
	}
	defer file.Close()

	buf := make([]byte, 512)
	n, err := file.Read(buf)
	if err != nil || n == 0 {
		return "vcf"
	}
	content := string(buf[:n])
	if strings.HasPrefix(content, "##fileformat=VCF") || strings.HasPrefix(content, "#CHROM") {
		return "vcf"
	}
	if strings.Contains(content, "Hugo_Symbol") && strings.Contains(content, "Chromosome") {
		return "maf"
	}
	return "vcf"
}
