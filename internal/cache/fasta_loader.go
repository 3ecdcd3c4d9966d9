// Package cache provides gene model loading and lookup for consequence annotation.
package cache

import (
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrTranscriptFASTA is returned when a FASTA holds transcripts instead of
// chromosomes, such as GENCODE pc_transcripts.fa.
var ErrTranscriptFASTA = errors.New("transcript FASTA where a genome FASTA is expected")

// Genome holds reference chromosome sequences loaded from a FASTA file and
// answers sub-sequence queries for codon reconstruction at transcript edges.
type Genome struct {
	path      string
	sequences map[string]string // normalized chromosome -> sequence
}

// NewGenome creates a genome backed by the FASTA file at path.
func NewGenome(path string) *Genome {
	return &Genome{
		path:      path,
		sequences: make(map[string]string),
	}
}

// NewGenomeFromSequences creates a genome from in-memory sequences.
func NewGenomeFromSequences(seqs map[string]string) *Genome {
	g := &Genome{sequences: make(map[string]string, len(seqs))}
	for chrom, seq := range seqs {
		g.sequences[NormalizeChrom(chrom)] = strings.ToUpper(seq)
	}
	return g
}

// Load parses the FASTA file and stores sequences indexed by chromosome.
func (g *Genome) Load() error {
	f, err := os.Open(g.path)
	if err != nil {
		return fmt.Errorf("open FASTA file: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f

	if strings.HasSuffix(g.path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("open gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	return g.parseFASTA(reader)
}

// parseFASTA parses FASTA content. Headers look like
// ">1 dna:chromosome chromosome:GRCh38:1:1:248956422:1 REF" or ">chr1".
func (g *Genome) parseFASTA(reader io.Reader) error {
	scanner := bufio.NewScanner(reader)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var currentID string
	var currentSeq strings.Builder

	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, ">") {
			if isTranscriptHeader(line) {
				return fmt.Errorf("%w: %.60s", ErrTranscriptFASTA, line)
			}
			if currentID != "" && currentSeq.Len() > 0 {
				g.sequences[currentID] = currentSeq.String()
			}
			currentID = parseChromHeader(line)
			currentSeq.Reset()
		} else {
			currentSeq.WriteString(strings.ToUpper(strings.TrimSpace(line)))
		}
	}

	if currentID != "" && currentSeq.Len() > 0 {
		g.sequences[currentID] = currentSeq.String()
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan FASTA: %w", err)
	}
	return nil
}

// isTranscriptHeader recognizes Ensembl cDNA (">ENST00000641515.2 cdna ...")
// and GENCODE (">ENST00000641515.2|ENSG00000186092.7|...") records.
func isTranscriptHeader(header string) bool {
	id, _, _ := strings.Cut(strings.TrimPrefix(header, ">"), " ")
	return strings.HasPrefix(id, "ENST") || strings.Contains(id, "|ENSG")
}

// parseChromHeader extracts the normalized chromosome name from a FASTA header.
func parseChromHeader(header string) string {
	header = strings.TrimPrefix(header, ">")
	if idx := strings.IndexAny(header, " \t|"); idx != -1 {
		header = header[:idx]
	}
	return NormalizeChrom(header)
}

// Sequence returns the forward-strand bases of chrom in [start, end] (1-based,
// inclusive). It fails with ErrRegionNotFound if any part of the region is absent.
func (g *Genome) Sequence(_ context.Context, chrom string, start, end int64) (string, error) {
	seq, ok := g.sequences[NormalizeChrom(chrom)]
	if !ok || start < 1 || end < start || end > int64(len(seq)) {
		return "", fmt.Errorf("%s:%d-%d: %w", chrom, start, end, ErrRegionNotFound)
	}
	return seq[start-1 : end], nil
}

// SequenceCount returns the number of loaded sequences.
func (g *Genome) SequenceCount() int {
	return len(g.sequences)
}

// HasChrom reports whether a sequence exists for the given chromosome.
func (g *Genome) HasChrom(chrom string) bool {
	_, ok := g.sequences[NormalizeChrom(chrom)]
	return ok
}
