package annotate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-csq/internal/cache"
	"github.com/inodb/vibe-csq/internal/vcf"
)

// Test transcript layout, shared by both strands in cDNA coordinates:
//
//	exon 1: cDNA 1-30   5'UTR 1-10, CDS 11-30
//	intron: 30 bases
//	exon 2: cDNA 31-70  CDS 31-52, 3'UTR 53-70
//
// The CDS encodes 14 codons:
// ATG GGT GCA AAA TGG CGT GAA CTG CCA TTC GAT TCT GGA TAA
const (
	testUTR5 = "GGCCTTCCAC"
	testCDS  = "ATGGGTGCAAAATGGCGTGAACTGCCATTCGATTCTGGATAA"
	testUTR3 = "GCTTAGCCCGGGTTTAAA"
)

func testExonSequences() (string, string) {
	mrna := testUTR5 + testCDS + testUTR3
	return mrna[:30], mrna[30:]
}

// plusStrandGene returns GENE1 on chromosome 1.
//
//	exon 1: 1000-1029 (CDS from 1010)
//	intron: 1030-1059
//	exon 2: 1060-1099 (CDS to 1081)
func plusStrandGene() *cache.Gene {
	e1, e2 := testExonSequences()
	tr := &cache.Transcript{
		ID:       "ENST0001",
		GeneID:   "ENSG0001",
		GeneName: "GENE1",
		Chrom:    "1",
		Start:    1000,
		End:      1099,
		Strand:   1,
		Biotype:  "protein_coding",
		Flags:    []string{"basic", "canonical"},
		CDSStart: 1010,
		CDSEnd:   1081,
		Exons: []cache.Exon{
			{Number: 1, Start: 1000, End: 1029, Phase: -1, Sequence: e1},
			{Number: 2, Start: 1060, End: 1099, Phase: 2, Sequence: e2},
		},
	}
	return &cache.Gene{
		ID:          "ENSG0001",
		Name:        "GENE1",
		Chrom:       "1",
		Start:       1000,
		End:         1099,
		Strand:      1,
		Biotype:     "protein_coding",
		Transcripts: []*cache.Transcript{tr},
	}
}

// minusStrandGene returns GENE2 on chromosome 2 with the same mRNA as
// plusStrandGene.
//
//	exon 1: 2099-2070 (CDS from 2089)
//	intron: 2069-2040
//	exon 2: 2039-2000 (CDS to 2018)
func minusStrandGene() *cache.Gene {
	e1, e2 := testExonSequences()
	tr := &cache.Transcript{
		ID:       "ENST0002",
		GeneID:   "ENSG0002",
		GeneName: "GENE2",
		Chrom:    "2",
		Start:    2000,
		End:      2099,
		Strand:   -1,
		Biotype:  "protein_coding",
		CDSStart: 2018,
		CDSEnd:   2089,
		Exons: []cache.Exon{
			{Number: 1, Start: 2070, End: 2099, Phase: -1, Sequence: ReverseComplement(e1)},
			{Number: 2, Start: 2000, End: 2039, Phase: 2, Sequence: ReverseComplement(e2)},
		},
	}
	return &cache.Gene{
		ID:          "ENSG0002",
		Name:        "GENE2",
		Chrom:       "2",
		Start:       2000,
		End:         2099,
		Strand:      -1,
		Biotype:     "protein_coding",
		Transcripts: []*cache.Transcript{tr},
	}
}

// nonCodingGene returns a single exon lncRNA on chromosome 3 at 3000-3199.
func nonCodingGene() *cache.Gene {
	tr := &cache.Transcript{
		ID:      "ENST0003",
		Chrom:   "3",
		Start:   3000,
		End:     3199,
		Strand:  1,
		Biotype: "lncRNA",
		Exons:   []cache.Exon{{Number: 1, Start: 3000, End: 3199, Phase: -1}},
	}
	return &cache.Gene{ID: "ENSG0003", Name: "LNC1", Chrom: "3", Start: 3000, End: 3199, Strand: 1, Biotype: "lncRNA", Transcripts: []*cache.Transcript{tr}}
}

func testEnv() *solveEnv {
	opts := DefaultOptions()
	return &solveEnv{ctx: context.Background(), opts: &opts}
}

func snv(chrom string, pos int64, ref, alt string) *vcf.Variant {
	return &vcf.Variant{Chrom: chrom, Pos: pos, End: pos, Ref: ref, Alt: alt, Type: vcf.TypeSNV}
}

func insertion(chrom string, pos int64, alt string) *vcf.Variant {
	return &vcf.Variant{Chrom: chrom, Pos: pos, End: pos - 1, Alt: alt, Type: vcf.TypeInsertion}
}

func deletion(chrom string, start, end int64) *vcf.Variant {
	return &vcf.Variant{Chrom: chrom, Pos: start, End: end, Ref: "N", Type: vcf.TypeDeletion}
}

// solveOne runs the calculator for v against genes and returns the result
// for transcript id.
func solveOne(t *testing.T, v *vcf.Variant, id string, genes ...*cache.Gene) *ConsequenceType {
	t.Helper()
	calc, err := selectCalculator(v)
	require.NoError(t, err)
	cts, err := calc(testEnv(), v, genes)
	require.NoError(t, err)
	for _, ct := range cts {
		if ct.TranscriptID == id {
			return ct
		}
	}
	require.Failf(t, "transcript not annotated", "%s has no consequence for %s", v, id)
	return nil
}

func geneCache(genes ...*cache.Gene) *cache.Cache {
	c := cache.New()
	for _, g := range genes {
		c.AddGene(g)
	}
	return c
}
