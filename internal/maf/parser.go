// Package maf reads variants from MAF (Mutation Annotation Format) files.
package maf

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/inodb/vibe-csq/internal/vcf"
)

// MAF column names read by the parser.
const (
	ColChromosome         = "Chromosome"
	ColStartPosition      = "Start_Position"
	ColReferenceAllele    = "Reference_Allele"
	ColTumorSeqAllele1    = "Tumor_Seq_Allele1"
	ColTumorSeqAllele2    = "Tumor_Seq_Allele2"
	ColDbSNPRS            = "dbSNP_RS"
	ColTumorSampleBarcode = "Tumor_Sample_Barcode"
)

var requiredColumns = []string{ColChromosome, ColStartPosition, ColReferenceAllele, ColTumorSeqAllele2}

// Parser reads variants from a MAF file. It satisfies vcf.VariantReader.
type Parser struct {
	reader     *bufio.Reader
	in         io.Closer
	lineNumber int
	header     string
	cols       map[string]int
	minFields  int
}

var _ vcf.VariantReader = (*Parser)(nil)

// NewParser opens a MAF file, plain or gzipped, or stdin for "-".
func NewParser(path string) (*Parser, error) {
	in, err := vcf.OpenInput(path)
	if err != nil {
		return nil, err
	}
	p, err := NewParserFromReader(in)
	if err != nil {
		in.Close()
		return nil, err
	}
	p.in = in
	return p, nil
}

// NewParserFromReader reads a MAF stream the caller owns.
func NewParserFromReader(r io.Reader) (*Parser, error) {
	p := &Parser{reader: bufio.NewReader(r)}
	if err := p.readHeader(); err != nil {
		return nil, err
	}
	return p, nil
}

// readLine returns the next line without its terminator. A final line
// without a newline is returned before io.EOF.
func (p *Parser) readLine() (string, error) {
	line, err := p.reader.ReadString('\n')
	if err != nil && !(err == io.EOF && line != "") {
		return "", err
	}
	p.lineNumber++
	return strings.TrimRight(line, "\r\n"), nil
}

// readHeader skips "#" comment lines and indexes the column header.
func (p *Parser) readHeader() error {
	for {
		line, err := p.readLine()
		if err == io.EOF {
			return &ParseError{Line: p.lineNumber, Message: "no header line found"}
		}
		if err != nil {
			return fmt.Errorf("read header: %w", err)
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p.header = line
		break
	}

	p.cols = make(map[string]int)
	for i, name := range strings.Split(p.header, "\t") {
		if _, dup := p.cols[name]; !dup {
			p.cols[name] = i
		}
	}
	missing := lo.Filter(requiredColumns, func(name string, _ int) bool {
		_, ok := p.cols[name]
		return !ok
	})
	if len(missing) > 0 {
		return &ParseError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("required column(s) %s not found in header", strings.Join(missing, ", ")),
		}
	}
	p.minFields = lo.Max(lo.Map(requiredColumns, func(name string, _ int) int { return p.cols[name] })) + 1
	return nil
}

// Column returns the index of a header column, or -1 when the file lacks it.
func (p *Parser) Column(name string) int {
	if i, ok := p.cols[name]; ok {
		return i
	}
	return -1
}

// Next returns the next variant, or nil, nil at end of file.
func (p *Parser) Next() (*vcf.Variant, error) {
	for {
		line, err := p.readLine()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read variant line: %w", err)
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return p.parseRow(strings.Split(line, "\t"))
	}
}

// parseRow converts a MAF row to a normalized Variant. MAF writes empty
// alleles as "-" and places insertions between Start_Position and the
// following base. Tumor_Seq_Allele1 is the tumor allele when
// Tumor_Seq_Allele2 repeats the reference.
func (p *Parser) parseRow(fields []string) (*vcf.Variant, error) {
	if len(fields) < p.minFields {
		return nil, &ParseError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("expected at least %d columns, found %d", p.minFields, len(fields)),
		}
	}

	start := p.get(fields, ColStartPosition)
	pos, err := strconv.ParseInt(start, 10, 64)
	if err != nil {
		return nil, &ParseError{Line: p.lineNumber, Message: fmt.Sprintf("invalid position: %s", start)}
	}

	ref := p.get(fields, ColReferenceAllele)
	alt := p.get(fields, ColTumorSeqAllele2)
	if a1 := p.get(fields, ColTumorSeqAllele1); alt == ref && a1 != "" && a1 != ref {
		alt = a1
	}
	if ref == "-" {
		ref = ""
		pos++
	}
	if alt == "-" {
		alt = ""
	}

	v := &vcf.Variant{
		Chrom:  p.get(fields, ColChromosome),
		Pos:    pos,
		ID:     ".",
		Ref:    ref,
		Alt:    alt,
		Filter: ".",
		Info:   make(map[string]interface{}),
	}
	if id := p.get(fields, ColDbSNPRS); id != "" && id != "novel" {
		v.ID = id
	}
	if sample := p.get(fields, ColTumorSampleBarcode); sample != "" {
		v.Info[ColTumorSampleBarcode] = sample
	}
	vcf.Normalize(v)
	return v, nil
}

// get returns the named field, or "" when the column or field is absent.
func (p *Parser) get(fields []string, name string) string {
	i, ok := p.cols[name]
	if !ok || i >= len(fields) {
		return ""
	}
	return fields[i]
}

// Header returns the MAF column header line.
func (p *Parser) Header() string {
	return p.header
}

// LineNumber returns the line of the last row read.
func (p *Parser) LineNumber() int {
	return p.lineNumber
}

// Close releases the file opened by NewParser.
func (p *Parser) Close() error {
	if p.in == nil {
		return nil
	}
	return p.in.Close()
}

// ParseError is a MAF format error at a given line.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("maf parse error at line %d: %s", e.Line, e.Message)
}
