package output

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-csq/internal/annotate"
	"github.com/inodb/vibe-csq/internal/cache"
)

func krasG12C() *annotate.VariantAnnotation {
	return &annotate.VariantAnnotation{
		Chrom: "12", Start: 25245351, End: 25245351, Reference: "C", Alternate: "A",
		ID:                     "rs121913530",
		IDs:                    []string{"rs121913530", "COSV55497369"},
		DisplayConsequenceType: annotate.MissenseVariant,
		ConsequenceTypes: []*annotate.ConsequenceType{
			{
				GeneID: "ENSG00000133703", GeneName: "KRAS",
				TranscriptID: "ENST00000311936", Strand: "-", Biotype: "protein_coding",
				TranscriptFlags: []string{cache.FlagBasic, cache.FlagCanonical},
				CDNAPosition:    180, CDSPosition: 34, Codon: "Ggt/Tgt",
				ExonOverlap: []annotate.ExonOverlap{{Number: "2/5", Percentage: 0.82}},
				Protein:     &annotate.ProteinVariantAnnotation{Position: 12, Reference: "Gly", Alternate: "Cys"},
				Terms:       annotate.MaterializeTerms([]string{annotate.MissenseVariant}),
			},
			{
				GeneID: "ENSG00000133703", GeneName: "KRAS",
				TranscriptID: "ENST00000557334", Strand: "-", Biotype: "protein_coding",
				Terms: annotate.MaterializeTerms([]string{annotate.IntronVariant}),
			},
		},
	}
}

func TestTabWriter_WriteHeader(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)

	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.Flush())

	header := strings.TrimSuffix(buf.String(), "\n")
	cols := strings.Split(header, "\t")
	assert.Len(t, cols, len(tabColumns))
	for _, col := range []string{"#Uploaded_variation", "Location", "Allele", "Gene", "Feature", "Consequence", "IMPACT", "CANONICAL", "HGVSp"} {
		assert.Contains(t, cols, col)
	}
}

func TestTabWriter_Write_KRASG12C(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)

	require.NoError(t, w.Write(krasG12C()))
	require.NoError(t, w.Flush())

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)

	fields := strings.Split(lines[0], "\t")
	require.Len(t, fields, len(tabColumns))
	assert.Equal(t, []string{
		"12_25245351_C/A",
		"12:25245351",
		"A",
		"ENSG00000133703",
		"KRAS",
		"ENST00000311936",
		"Transcript",
		"missense_variant",
		"180",
		"34",
		"12",
		"Gly/Cys",
		"Ggt/Tgt",
		"rs121913530,COSV55497369",
		"MODERATE",
		"-",
		"protein_coding",
		"YES",
		"2/5",
		"p.Gly12Cys",
		"basic,canonical",
	}, fields)

	second := strings.Split(lines[1], "\t")
	assert.Equal(t, "intron_variant", second[7])
	assert.Equal(t, "MODIFIER", second[14])
	assert.Equal(t, "-", second[17])
	assert.Equal(t, "-", second[19])
}

func TestTabWriter_Write_NoConsequences(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)

	va := &annotate.VariantAnnotation{
		Chrom: "1", Start: 1000, End: 1999, Reference: "", Alternate: "<DEL>",
		ConsequenceError: "unsupported variant",
	}
	require.NoError(t, w.Write(va))
	require.NoError(t, w.Flush())

	fields := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\t")
	require.Len(t, fields, len(tabColumns))
	assert.Equal(t, "1_1000_-/<DEL>", fields[0])
	assert.Equal(t, "1:1000-1999", fields[1])
	assert.Equal(t, "-", fields[6])
	assert.Equal(t, "-", fields[7])
	assert.Equal(t, "-", fields[14])
}

func TestTabWriter_InsertionAllele(t *testing.T) {
	va := &annotate.VariantAnnotation{Chrom: "1", Start: 101, End: 100, Reference: "", Alternate: "T"}
	fields := tabRow(va, &annotate.ConsequenceType{})
	assert.Equal(t, "1_101_-/T", fields[0])
	assert.Equal(t, "1:101", fields[1])
	assert.Equal(t, "T", fields[2])
}

type fakeWriter struct {
	headers, flushes int
	written          []*annotate.VariantAnnotation
	err              error
}

func (f *fakeWriter) WriteHeader() error { f.headers++; return f.err }
func (f *fakeWriter) Write(va *annotate.VariantAnnotation) error {
	f.written = append(f.written, va)
	return f.err
}
func (f *fakeWriter) Flush() error { f.flushes++; return f.err }

func TestMultiWriter(t *testing.T) {
	a, b := &fakeWriter{}, &fakeWriter{}
	m := NewMultiWriter(a, b)

	require.NoError(t, m.WriteHeader())
	require.NoError(t, m.Write(krasG12C()))
	require.NoError(t, m.Flush())

	for _, f := range []*fakeWriter{a, b} {
		assert.Equal(t, 1, f.headers)
		assert.Len(t, f.written, 1)
		assert.Equal(t, 1, f.flushes)
	}
}

func TestMultiWriter_Errors(t *testing.T) {
	boom := errors.New("disk full")
	a, b := &fakeWriter{err: boom}, &fakeWriter{}
	m := NewMultiWriter(a, b)

	assert.ErrorIs(t, m.Write(krasG12C()), boom)
	assert.Empty(t, b.written, "stops at the first failing writer")

	assert.ErrorIs(t, m.Flush(), boom)
	assert.Equal(t, 1, b.flushes, "every writer is flushed")
}
