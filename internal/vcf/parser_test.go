package vcf

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHeader = "##fileformat=VCFv4.2\n" +
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tSAMPLE1\n"

func parseAll(t *testing.T, body string) []*Variant {
	t.Helper()
	p, err := NewParserFromReader(strings.NewReader(testHeader + body))
	require.NoError(t, err)
	defer p.Close()

	var out []*Variant
	for {
		v, err := p.Next()
		require.NoError(t, err)
		if v == nil {
			return out
		}
		out = append(out, v)
	}
}

func TestParser_SingleVariant(t *testing.T) {
	// KRAS G12C: coding G>T on the reverse strand is genomic C>A.
	vs := parseAll(t, "12\t25245351\trs121913529\tC\tA\t.\tPASS\t.\tGT\t0/1\n")
	require.Len(t, vs, 1)

	v := vs[0]
	assert.Equal(t, "12", v.Chrom)
	assert.Equal(t, int64(25245351), v.Pos)
	assert.Equal(t, int64(25245351), v.End)
	assert.Equal(t, "C", v.Ref)
	assert.Equal(t, "A", v.Alt)
	assert.Equal(t, TypeSNV, v.Type)
	assert.True(t, v.IsSNV())
	require.NotNil(t, v.Sample)
	assert.Equal(t, "0/1", v.Sample.Genotype)
}

func TestParser_Header(t *testing.T) {
	p, err := NewParserFromReader(strings.NewReader(testHeader))
	require.NoError(t, err)

	require.Len(t, p.Header(), 2)
	assert.Equal(t, "##fileformat=VCFv4.2", p.Header()[0])
	assert.True(t, strings.HasPrefix(p.Header()[1], "#CHROM"))
	assert.Equal(t, []string{"SAMPLE1"}, p.SampleNames())

	v, err := p.Next()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestParser_MissingHeader(t *testing.T) {
	_, err := NewParserFromReader(strings.NewReader("1\t100\t.\tA\tG\t.\t.\t.\n"))
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, pe.Line)
}

func TestParser_InvalidPosition(t *testing.T) {
	p, err := NewParserFromReader(strings.NewReader(testHeader + "1\tabc\t.\tA\tG\t.\t.\t.\n"))
	require.NoError(t, err)

	_, err = p.Next()
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 3, pe.Line)
	assert.Contains(t, pe.Error(), "invalid position")
}

func TestParser_SplitsAndNormalizesAlleles(t *testing.T) {
	vs := parseAll(t, "1\t100\t.\tAT\tA,ATCG,GT\t.\tPASS\t.\n")
	require.Len(t, vs, 3)

	del := vs[0]
	assert.Equal(t, TypeDeletion, del.Type)
	assert.Equal(t, int64(101), del.Pos)
	assert.Equal(t, int64(101), del.End)
	assert.Equal(t, "T", del.Ref)
	assert.Equal(t, "", del.Alt)

	ins := vs[1]
	assert.Equal(t, TypeInsertion, ins.Type)
	assert.Equal(t, int64(102), ins.Pos)
	assert.Equal(t, int64(101), ins.End)
	assert.Equal(t, "", ins.Ref)
	assert.Equal(t, "CG", ins.Alt)

	snv := vs[2]
	assert.Equal(t, TypeSNV, snv.Type)
	assert.Equal(t, int64(100), snv.Pos)
	assert.Equal(t, "A", snv.Ref)
	assert.Equal(t, "G", snv.Alt)
}

func TestParser_PhaseSet(t *testing.T) {
	vs := parseAll(t,
		"1\t100\t.\tA\tG\t.\tPASS\t.\tGT:PS\t0|1:95\n"+
			"1\t101\t.\tC\tT\t.\tPASS\t.\tGT:DP\t1/1:30\n")
	require.Len(t, vs, 2)

	assert.Equal(t, "0|1", vs[0].Sample.Genotype)
	assert.Equal(t, "95", vs[0].Sample.PhaseSet)
	assert.Equal(t, "1:100:A:G", vs[0].Sample.Call)

	assert.Equal(t, "1/1", vs[1].Sample.Genotype)
	assert.Empty(t, vs[1].Sample.PhaseSet)
}

func TestParser_StructuralVariants(t *testing.T) {
	vs := parseAll(t,
		"1\t1000\tdel1\tN\t<DEL>\t.\tPASS\tSVTYPE=DEL;END=2000;CIPOS=-10,10;CIEND=-5,5\n"+
			"1\t5000\tcnv1\tN\t<CNV>\t.\tPASS\tSVTYPE=CNV;END=6000;CN=4\n"+
			"2\t300\tcn0\tN\t<CN0>\t.\tPASS\tEND=400\n"+
			"3\t700\tdup1\tN\t<DUP:TANDEM>\t.\tPASS\tEND=800\n")
	require.Len(t, vs, 4)

	del := vs[0]
	assert.Equal(t, TypeDeletion, del.Type)
	assert.Equal(t, int64(1001), del.Pos)
	assert.Equal(t, int64(2000), del.End)
	require.NotNil(t, del.SV)
	assert.Equal(t, int64(991), del.SV.CiStartLeft)
	assert.Equal(t, int64(1011), del.SV.CiStartRight)
	assert.Equal(t, int64(1995), del.SV.CiEndLeft)
	assert.Equal(t, int64(2005), del.SV.CiEndRight)
	assert.True(t, del.IsImprecise())

	cnv := vs[1]
	assert.Equal(t, TypeCNV, cnv.Type)
	require.NotNil(t, cnv.SV.CopyNumber)
	assert.Equal(t, 4, *cnv.SV.CopyNumber)
	assert.False(t, cnv.IsImprecise())

	cn0 := vs[2]
	assert.Equal(t, TypeCNV, cn0.Type)
	require.NotNil(t, cn0.SV.CopyNumber)
	assert.Equal(t, 0, *cn0.SV.CopyNumber)

	assert.Equal(t, TypeDuplication, vs[3].Type)
}

func TestParser_Breakend(t *testing.T) {
	vs := parseAll(t, "2\t321681\tbnd_W\tG\tG]17:198982]\t.\tPASS\tSVTYPE=BND;CIPOS=-3,3\n")
	require.Len(t, vs, 1)

	v := vs[0]
	assert.Equal(t, TypeBreakend, v.Type)
	assert.Equal(t, int64(321681), v.Pos)
	require.NotNil(t, v.SV)
	require.NotNil(t, v.SV.Mate)
	assert.Equal(t, "17", v.SV.Mate.Chrom)
	assert.Equal(t, int64(198982), v.SV.Mate.Pos)
	assert.Equal(t, int64(198982), v.SV.Mate.CiLeft)
	assert.Equal(t, int64(321678), v.SV.CiStartLeft)
	assert.Equal(t, int64(321684), v.SV.CiStartRight)
}

func TestParseInfo(t *testing.T) {
	info := parseInfo("DP=10;SOMATIC;AF=0.5")
	assert.Equal(t, "10", info["DP"])
	assert.Equal(t, true, info["SOMATIC"])
	assert.Equal(t, "0.5", info["AF"])
	assert.Empty(t, parseInfo("."))
}
