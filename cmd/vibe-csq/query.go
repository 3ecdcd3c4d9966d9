package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/vibe-csq/internal/cache"
	"github.com/inodb/vibe-csq/internal/duckdb"
)

type queryOptions struct {
	gene        string
	hgvsp       string
	variant     string
	listBatches bool
	deleteBatch string
}

func newQueryCmd() *cobra.Command {
	var opts queryOptions
	cmd := &cobra.Command{
		Use:   "query [flags] <results.duckdb>",
		Short: "Query results stored with annotate --store",
		Example: `  vibe-csq query --gene KRAS results.duckdb
  vibe-csq query --gene KRAS --hgvsp p.Gly12Cys results.duckdb
  vibe-csq query --variant 12:25245350:C:A results.duckdb
  vibe-csq query --batches results.duckdb`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.gene, "gene", "", "Gene symbol")
	f.StringVar(&opts.hgvsp, "hgvsp", "", "HGVS protein change within --gene, e.g. p.Gly12Cys")
	f.StringVar(&opts.variant, "variant", "", "Variant as chrom:pos:ref:alt, with '-' for an empty allele")
	f.BoolVar(&opts.listBatches, "batches", false, "List stored batch ids")
	f.StringVar(&opts.deleteBatch, "delete-batch", "", "Delete the rows of a batch")
	return cmd
}

func runQuery(ctx context.Context, out io.Writer, path string, opts queryOptions) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("result store: %w", err)
	}
	store, err := duckdb.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	var rows []duckdb.ResultRow
	switch {
	case opts.listBatches:
		ids, err := store.BatchIDs(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(out, id)
		}
		return nil
	case opts.deleteBatch != "":
		n, err := store.DeleteBatch(ctx, opts.deleteBatch)
		if err != nil {
			return err
		}
		logger.Info("batch deleted", zap.String("batch", opts.deleteBatch), zap.Int64("rows", n))
		return nil
	case opts.variant != "":
		chrom, pos, ref, alt, err := parseVariantArg(opts.variant)
		if err != nil {
			return err
		}
		rows, err = store.LookupVariant(ctx, chrom, pos, ref, alt)
		if err != nil {
			return err
		}
	case opts.gene != "" && opts.hgvsp != "":
		rows, err = store.SearchByProteinChange(ctx, opts.gene, opts.hgvsp)
		if err != nil {
			return err
		}
	case opts.gene != "":
		rows, err = store.SearchByGene(ctx, opts.gene)
		if err != nil {
			return err
		}
	default:
		return usageErrorf("set one of --gene, --variant, --batches or --delete-batch")
	}

	return printRows(out, rows)
}

// parseVariantArg parses chrom:pos:ref:alt. Alleles are compared as stored,
// so they must already be trimmed of shared bases.
func parseVariantArg(s string) (string, int64, string, string, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return "", 0, "", "", usageErrorf("variant %q is not chrom:pos:ref:alt", s)
	}
	pos, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", 0, "", "", usageErrorf("variant %q: invalid position", s)
	}
	allele := func(a string) string {
		if a == "-" {
			return ""
		}
		return strings.ToUpper(a)
	}
	return cache.NormalizeChrom(parts[0]), pos, allele(parts[2]), allele(parts[3]), nil
}

func printRows(out io.Writer, rows []duckdb.ResultRow) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VARIANT\tGENE\tTRANSCRIPT\tCONSEQUENCE\tIMPACT\tHGVSP\tBATCH")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.VariantID, r.GeneName, r.TranscriptID, r.Consequence, r.Impact, r.HGVSp, r.BatchID)
	}
	return tw.Flush()
}
