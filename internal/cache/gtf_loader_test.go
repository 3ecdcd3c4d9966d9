package cache

import (
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testGTF holds a two-exon gene on each strand. Coordinates match the gene
// fixtures used by the annotate package.
const testGTF = `##description: test
chr1	HAVANA	gene	1000	1099	.	+	.	gene_id "ENSG0001.3"; gene_type "protein_coding"; gene_name "GENE1";
chr1	HAVANA	transcript	1000	1099	.	+	.	gene_id "ENSG0001.3"; transcript_id "ENST0001.2"; gene_name "GENE1"; transcript_type "protein_coding"; tag "basic"; tag "Ensembl_canonical"; tag "MANE_Select";
chr1	HAVANA	exon	1000	1029	.	+	.	gene_id "ENSG0001.3"; transcript_id "ENST0001.2"; exon_number "1";
chr1	HAVANA	exon	1060	1099	.	+	.	gene_id "ENSG0001.3"; transcript_id "ENST0001.2"; exon_number "2";
chr1	HAVANA	CDS	1010	1029	.	+	0	gene_id "ENSG0001.3"; transcript_id "ENST0001.2"; exon_number "1"; protein_id "ENSP0001.1";
chr1	HAVANA	CDS	1060	1078	.	+	1	gene_id "ENSG0001.3"; transcript_id "ENST0001.2"; exon_number "2"; protein_id "ENSP0001.1";
chr1	HAVANA	start_codon	1010	1012	.	+	0	gene_id "ENSG0001.3"; transcript_id "ENST0001.2";
chr1	HAVANA	stop_codon	1079	1081	.	+	0	gene_id "ENSG0001.3"; transcript_id "ENST0001.2";
chr1	HAVANA	transcript	1000	1050	.	+	.	gene_id "ENSG0001.3"; transcript_id "ENST0009.1"; gene_name "GENE1"; transcript_type "retained_intron";
chr1	HAVANA	exon	1000	1050	.	+	.	gene_id "ENSG0001.3"; transcript_id "ENST0009.1"; exon_number "1";
chr2	HAVANA	transcript	2000	2099	.	-	.	gene_id "ENSG0002"; transcript_id "ENST0002"; gene_name "GENE2"; gene_type "protein_coding"; transcript_type "protein_coding"; tag "cds_start_NF";
chr2	HAVANA	exon	2070	2099	.	-	.	gene_id "ENSG0002"; transcript_id "ENST0002"; exon_number "1";
chr2	HAVANA	exon	2000	2039	.	-	.	gene_id "ENSG0002"; transcript_id "ENST0002"; exon_number "2";
chr2	HAVANA	CDS	2070	2089	.	-	0	gene_id "ENSG0002"; transcript_id "ENST0002"; exon_number "1";
chr2	HAVANA	CDS	2021	2039	.	-	1	gene_id "ENSG0002"; transcript_id "ENST0002"; exon_number "2";
chr2	HAVANA	stop_codon	2018	2020	.	-	0	gene_id "ENSG0002"; transcript_id "ENST0002";
malformed line
`

func parseTestGTF(t *testing.T, l *GTFLoader, chrom string) map[string]*Gene {
	t.Helper()
	genes, err := l.parseGTF(strings.NewReader(testGTF), chrom)
	require.NoError(t, err)
	byID := make(map[string]*Gene)
	for _, g := range genes {
		byID[g.ID] = g
	}
	return byID
}

func transcriptByID(g *Gene, id string) *Transcript {
	for _, t := range g.Transcripts {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func TestParseAttributes(t *testing.T) {
	attrs, tags := parseAttributes(`gene_id "ENSG00000133703"; transcript_id "ENST00000311936"; tag "basic"; tag "MANE_Select"; level 2;`)

	assert.Equal(t, "ENSG00000133703", attrs["gene_id"])
	assert.Equal(t, "ENST00000311936", attrs["transcript_id"])
	assert.Equal(t, "2", attrs["level"])
	assert.NotContains(t, attrs, "tag")
	assert.Equal(t, []string{"basic", "MANE_Select"}, tags)
}

func TestStripVersion(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"ENST00000311936.8", "ENST00000311936"},
		{"ENSG00000133703.14", "ENSG00000133703"},
		{"ENST00000311936", "ENST00000311936"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, stripVersion(tt.input), "stripVersion(%q)", tt.input)
	}
}

func TestParseStrand(t *testing.T) {
	assert.Equal(t, int8(1), parseStrand("+"))
	assert.Equal(t, int8(-1), parseStrand("-"))
}

func TestGTFLoader_PlusStrand(t *testing.T) {
	genes := parseTestGTF(t, &GTFLoader{}, "")
	require.Len(t, genes, 2)

	g := genes["ENSG0001"]
	require.NotNil(t, g)
	assert.Equal(t, "GENE1", g.Name)
	assert.Equal(t, "1", g.Chrom)
	assert.Equal(t, "protein_coding", g.Biotype)
	assert.Equal(t, int64(1000), g.Start)
	assert.Equal(t, int64(1099), g.End)
	require.Len(t, g.Transcripts, 2)

	tr := transcriptByID(g, "ENST0001")
	require.NotNil(t, tr)
	assert.Equal(t, "GENE1", tr.GeneName)
	assert.Equal(t, "ENSG0001", tr.GeneID)
	assert.Equal(t, "ENSP0001", tr.ProteinID)
	assert.Equal(t, []string{FlagBasic, FlagCanonical, FlagMANE}, tr.Flags)
	assert.Equal(t, int64(1010), tr.CDSStart)
	assert.Equal(t, int64(1081), tr.CDSEnd)
	assert.Equal(t, int64(11), tr.CDNACodingStart)
	assert.Equal(t, int64(52), tr.CDNACodingEnd)

	require.Len(t, tr.Exons, 2)
	assert.Equal(t, Exon{Number: 1, Start: 1000, End: 1029, Phase: -1}, tr.Exons[0])
	assert.Equal(t, Exon{Number: 2, Start: 1060, End: 1099, Phase: 2}, tr.Exons[1])

	nc := transcriptByID(g, "ENST0009")
	require.NotNil(t, nc)
	assert.Equal(t, "retained_intron", nc.Biotype)
	assert.False(t, nc.IsProteinCoding())
	assert.Equal(t, -1, nc.Exons[0].Phase)
}

func TestGTFLoader_MinusStrand(t *testing.T) {
	g := parseTestGTF(t, &GTFLoader{}, "")["ENSG0002"]
	require.NotNil(t, g, "gene synthesized from transcript lines")
	assert.Equal(t, "GENE2", g.Name)
	assert.Equal(t, int8(-1), g.Strand)
	assert.Equal(t, int64(2000), g.Start)
	assert.Equal(t, int64(2099), g.End)

	tr := g.Transcripts[0]
	assert.True(t, tr.UnconfirmedStart())
	assert.Equal(t, int64(2018), tr.CDSStart)
	assert.Equal(t, int64(2089), tr.CDSEnd)
	assert.Equal(t, int64(11), tr.CDNACodingStart)
	assert.Equal(t, int64(52), tr.CDNACodingEnd)

	require.Len(t, tr.Exons, 2)
	assert.Equal(t, int64(2070), tr.Exons[0].Start, "exons in transcript order")
	assert.Equal(t, -1, tr.Exons[0].Phase)
	assert.Equal(t, int64(2000), tr.Exons[1].Start)
	assert.Equal(t, 2, tr.Exons[1].Phase)
}

func TestGTFLoader_IncompleteStartPhase(t *testing.T) {
	gtf := `1	E	transcript	100	200	.	+	.	gene_id "G"; transcript_id "T"; transcript_type "protein_coding"; tag "cds_start_NF";
1	E	exon	100	150	.	+	.	gene_id "G"; transcript_id "T"; exon_number "1";
1	E	exon	180	200	.	+	.	gene_id "G"; transcript_id "T"; exon_number "2";
1	E	CDS	100	150	.	+	1	gene_id "G"; transcript_id "T";
1	E	CDS	180	200	.	+	0	gene_id "G"; transcript_id "T";
`
	genes, err := (&GTFLoader{}).parseGTF(strings.NewReader(gtf), "")
	require.NoError(t, err)
	require.Len(t, genes, 1)

	tr := genes[0].Transcripts[0]
	assert.Equal(t, 2, tr.Exons[0].Phase)
	assert.Equal(t, 0, tr.Exons[1].Phase, "51 coding bases before exon 2")
	assert.Equal(t, int64(1), tr.CDNACodingStart)
}

func TestGTFLoader_FilterChromosome(t *testing.T) {
	genes := parseTestGTF(t, &GTFLoader{}, "chr2")
	require.Len(t, genes, 1)
	assert.Contains(t, genes, "ENSG0002")
}

func TestGTFLoader_CanonicalOverride(t *testing.T) {
	l := &GTFLoader{}
	l.SetCanonicalOverrides(CanonicalOverrides{"GENE1": "ENST0009", "GENE2": "ENST9999"})
	genes := parseTestGTF(t, l, "")

	g1 := genes["ENSG0001"]
	assert.False(t, transcriptByID(g1, "ENST0001").HasFlag(FlagCanonical))
	assert.True(t, transcriptByID(g1, "ENST0001").HasFlag(FlagBasic))
	assert.True(t, transcriptByID(g1, "ENST0009").HasFlag(FlagCanonical))

	// unknown override transcript leaves the gene alone
	assert.False(t, genes["ENSG0002"].Transcripts[0].HasFlag(FlagCanonical))
}

func TestGTFLoader_LoadWithGenome(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genes.gtf.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(testGTF))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	chr1 := strings.Repeat("A", 999) + strings.Repeat("C", 30) + strings.Repeat("G", 71)
	l := NewGTFLoader(path)
	l.SetGenome(NewGenomeFromSequences(map[string]string{"chr1": chr1}))

	c := New()
	require.NoError(t, l.Load(context.Background(), c))
	assert.Equal(t, 2, c.GeneCount())

	tr := c.GetTranscript("ENST0001")
	require.NotNil(t, tr)
	assert.Equal(t, strings.Repeat("C", 30), tr.Exons[0].Sequence)
	assert.Equal(t, strings.Repeat("G", 40), tr.Exons[1].Sequence)

	// chromosome 2 is absent from the genome
	assert.Empty(t, c.GetTranscript("ENST0002").Exons[0].Sequence)

	genes, err := c.GenesOverlapping(context.Background(), "chr1", 1050, 1050)
	require.NoError(t, err)
	require.Len(t, genes, 1)
	assert.Equal(t, "GENE1", genes[0].Name)
}

func TestGTFLoader_GenomeTooShort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genes.gtf")
	require.NoError(t, os.WriteFile(path, []byte(testGTF), 0o644))

	l := NewGTFLoader(path)
	l.SetGenome(NewGenomeFromSequences(map[string]string{"1": strings.Repeat("A", 1040)}))
	err := l.LoadChromosome(context.Background(), New(), "1")
	require.ErrorIs(t, err, ErrRegionNotFound)
	assert.Contains(t, err.Error(), "ENST0001")
}

func TestGTFLoader_MissingFile(t *testing.T) {
	err := NewGTFLoader(filepath.Join(t.TempDir(), "none.gtf")).Load(context.Background(), New())
	assert.Error(t, err)
}
